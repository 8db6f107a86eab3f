// Package allocator composes the task registry, the quota ledger and the
// underlying heap into a quota-aware allocate/free surface, and is the only
// place where quota reservations and real allocations are tied together. Its
// load-bearing property is that the two can never desynchronise: a ledger
// reservation either ends in a successful heap allocation or is rolled back
// before the call returns.
package allocator
