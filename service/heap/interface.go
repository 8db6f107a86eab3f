// Package heap defines the contract this module consumes from the underlying
// general-purpose allocator. The allocator is an external collaborator -
// quota enforcement composes over it and never looks inside.
package heap

// Allocator is the primitive allocate/free surface. Allocate returns ok=false
// when the platform itself is out of memory - a condition independent of any
// quota. Implementations must be safe for concurrent use; the quota layer
// deliberately calls them outside its own lock.
type Allocator interface {
	// Allocate returns a buffer of exactly size bytes, or ok=false when the
	// request cannot be satisfied.
	Allocate(size int) (buf []byte, ok bool)

	// Free returns a buffer previously obtained from Allocate.
	Free(buf []byte)
}

// Stats mirrors the global free-memory counters a periodic reporter consumes.
type Stats struct {
	// CapacityBytes is the total memory the allocator manages.
	CapacityBytes int `json:"capacity" yaml:"capacity"`

	// FreeBytes is the memory currently available.
	FreeBytes int `json:"free" yaml:"free"`

	// MinFreeBytes is the low-water mark of FreeBytes since start.
	MinFreeBytes int `json:"minFree" yaml:"minFree"`
}

// StatsProvider is implemented by allocators that track free-memory
// statistics.
type StatsProvider interface {
	Stats() Stats
}
