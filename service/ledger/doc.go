// Package ledger owns the per-bucket quota counters and is the only package
// allowed to mutate them. Buckets are registered during single-threaded
// bring-up and live for the lifetime of the process; afterwards every
// reserve/release/snapshot goes through one mutex so the counters can never
// tear or drift under concurrent callers.
package ledger
