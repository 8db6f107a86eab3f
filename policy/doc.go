// Package policy provides an optional, context-carried enforcement policy
// that can be applied on top of the quota-aware allocator - for example to
// observe usage without refusing while ceilings are being sized, or to deny
// all allocation during a drain.
package policy
