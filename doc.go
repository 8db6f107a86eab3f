// Package memquota enforces per-task memory quotas over a shared allocator.
// Each logical task is bound to a quota bucket with a fixed byte ceiling; the
// quota-aware allocator facade admits, accounts and refuses allocations so
// that no task can starve the others, and keeps the accounting exactly in
// step with the underlying allocator's real outcome.
package memquota
