// Package workload simulates realistic task behaviour against the
// quota-aware allocator: each generator periodically requests a random-sized
// buffer, holds it for a while and frees it again. Generators exist to
// exercise the quota layer; they carry no accounting logic of their own.
package workload
