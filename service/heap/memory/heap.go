package memory

import (
	"sync"

	"github.com/viant/memquota/service/heap"
)

// Config for the in-memory heap implementation.
type Config struct {
	// CapacityBytes bounds the total bytes that may be live at once.
	CapacityBytes int
}

// DefaultConfig returns a standard configuration for the in-memory heap.
func DefaultConfig() Config {
	return Config{CapacityBytes: 64 * 1024}
}

// Heap is a capacity-bounded allocator backed by the Go heap. It stands in
// for the platform allocator: requests beyond the remaining capacity fail the
// way real out-of-memory does, and the free/min-free counters feed the
// diagnostic reporter. It carries its own mutex so the quota layer can call
// it without holding the ledger lock.
type Heap struct {
	mu       sync.Mutex
	capacity int
	free     int
	minFree  int
}

// New creates an in-memory heap with the configured capacity.
func New(config Config) *Heap {
	if config.CapacityBytes <= 0 {
		config.CapacityBytes = DefaultConfig().CapacityBytes
	}
	return &Heap{
		capacity: config.CapacityBytes,
		free:     config.CapacityBytes,
		minFree:  config.CapacityBytes,
	}
}

// Allocate returns a size-byte buffer, or ok=false when the remaining
// capacity cannot cover the request.
func (h *Heap) Allocate(size int) ([]byte, bool) {
	if size < 0 {
		return nil, false
	}
	h.mu.Lock()
	if size > h.free {
		h.mu.Unlock()
		return nil, false
	}
	h.free -= size
	if h.free < h.minFree {
		h.minFree = h.free
	}
	h.mu.Unlock()
	return make([]byte, size), true
}

// Free returns buf's bytes to the heap. The buffer length is the allocation
// size: Allocate hands out exact-length buffers and callers must not reslice
// before freeing.
func (h *Heap) Free(buf []byte) {
	if buf == nil {
		return
	}
	h.mu.Lock()
	h.free += len(buf)
	if h.free > h.capacity {
		// More freed than allocated - double free or foreign buffer.
		h.free = h.capacity
	}
	h.mu.Unlock()
}

// Stats returns the current free-memory counters as one consistent view.
func (h *Heap) Stats() heap.Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return heap.Stats{
		CapacityBytes: h.capacity,
		FreeBytes:     h.free,
		MinFreeBytes:  h.minFree,
	}
}

var _ heap.Allocator = (*Heap)(nil)
var _ heap.StatsProvider = (*Heap)(nil)
