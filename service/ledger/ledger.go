package ledger

import (
	"errors"
	"fmt"
	"sync"
)

// Common, reusable ledger errors. Using sentinel variables allows callers to
// reliably detect error conditions via errors.Is instead of brittle string
// comparisons.
var (
	// ErrInvalidCeiling indicates a zero or negative ceiling at registration.
	ErrInvalidCeiling = errors.New("ledger: ceiling must be positive")

	// ErrDuplicateBucket is returned when a bucket name is registered twice.
	ErrDuplicateBucket = errors.New("ledger: bucket already registered")

	// ErrBucketNotFound is returned for a Bucket value that was never
	// assigned by Register.
	ErrBucketNotFound = errors.New("ledger: unknown bucket")

	// ErrReleaseUnderflow indicates a release for more bytes than the bucket
	// currently holds - a caller bookkeeping bug, never clamped silently.
	ErrReleaseUnderflow = errors.New("ledger: release exceeds reserved bytes")

	// ErrSealed is returned when Register is called after Seal.
	ErrSealed = errors.New("ledger: registration closed")
)

// Bucket identifies one quota domain. Values are dense indexes into the
// ledger's fixed bucket table, assigned in registration order.
type Bucket int

// Usage is a consistent (used, ceiling) pair for one bucket.
type Usage struct {
	Bucket  Bucket `json:"bucket" yaml:"bucket"`
	Name    string `json:"name" yaml:"name"`
	Used    int    `json:"used" yaml:"used"`
	Ceiling int    `json:"ceiling" yaml:"ceiling"`
}

type bucket struct {
	name    string
	ceiling int
	used    int
}

// Service holds the quota table. The zero Service is not usable; create one
// with New.
type Service struct {
	mu      sync.Mutex
	buckets []bucket
	byName  map[string]Bucket
	sealed  bool
}

// New creates an empty ledger.
func New() *Service {
	return &Service{byName: make(map[string]Bucket)}
}

// Register creates a bucket with a fixed ceiling and returns its handle. It
// is meant to run during single-threaded bring-up, before any task touches
// the ledger, and fails once Seal has been called.
func (s *Service) Register(name string, ceiling int) (Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return 0, ErrSealed
	}
	if ceiling <= 0 {
		return 0, fmt.Errorf("%w: %q ceiling=%d", ErrInvalidCeiling, name, ceiling)
	}
	if _, ok := s.byName[name]; ok {
		return 0, fmt.Errorf("%w: %q", ErrDuplicateBucket, name)
	}
	id := Bucket(len(s.buckets))
	s.buckets = append(s.buckets, bucket{name: name, ceiling: ceiling})
	s.byName[name] = id
	return id, nil
}

// Seal closes registration. Reserve/release keep working; further Register
// calls fail with ErrSealed.
func (s *Service) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// Lookup returns the bucket registered under name.
func (s *Service) Lookup(name string) (Bucket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byName[name]
	return id, ok
}

// TryReserve admits size bytes against the bucket's ceiling. The ceiling is
// inclusive: a request that lands exactly on it succeeds. On refusal the
// counter is left untouched. An unknown bucket is refused rather than
// admitted against someone else's quota.
func (s *Service) TryReserve(id Bucket, size int) bool {
	if size < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.buckets) {
		return false
	}
	b := &s.buckets[id]
	// Phrased as headroom comparison so used+size cannot overflow.
	if size > b.ceiling-b.used {
		return false
	}
	b.used += size
	return true
}

// Release returns size bytes to the bucket. Releasing more than is currently
// reserved indicates a mismatched allocate/free pair in the caller; the
// counter is left unchanged and the inconsistency is surfaced as
// ErrReleaseUnderflow carrying the bucket name and delta.
func (s *Service) Release(id Bucket, size int) error {
	if size < 0 {
		return fmt.Errorf("ledger: negative release size %d", size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.buckets) {
		return fmt.Errorf("%w: %d", ErrBucketNotFound, id)
	}
	b := &s.buckets[id]
	if size > b.used {
		return fmt.Errorf("%w: bucket %q used=%d release=%d", ErrReleaseUnderflow, b.name, b.used, size)
	}
	b.used -= size
	return nil
}

// Snapshot returns a consistent usage/ceiling pair for one bucket.
func (s *Service) Snapshot(id Bucket) (Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.buckets) {
		return Usage{}, fmt.Errorf("%w: %d", ErrBucketNotFound, id)
	}
	return s.usage(id), nil
}

// Snapshots returns a consistent view across all buckets, in registration
// order.
func (s *Service) Snapshots() []Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Usage, len(s.buckets))
	for i := range s.buckets {
		result[i] = s.usage(Bucket(i))
	}
	return result
}

// usage assumes s.mu is held.
func (s *Service) usage(id Bucket) Usage {
	b := &s.buckets[id]
	return Usage{Bucket: id, Name: b.name, Used: b.used, Ceiling: b.ceiling}
}
