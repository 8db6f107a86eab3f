// Package registry maps opaque task handles to quota buckets. The table is
// populated once during bring-up and never mutated afterwards, so resolution
// on the allocation path is lock-free. An unregistered handle never falls
// back to a default bucket - allocation for it is refused outright.
package registry
