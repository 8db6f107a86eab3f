// Package monitor periodically reads ledger snapshots and heap free-memory
// statistics and publishes them for reporting. It is strictly read-only with
// respect to the quota state.
package monitor
