package registry

import (
	"errors"
	"fmt"

	"github.com/viant/memquota/service/ledger"
)

var (
	// ErrUnknownTask is returned when a handle was never registered. Callers
	// must fail closed on it - an unknown task never borrows another task's
	// quota.
	ErrUnknownTask = errors.New("registry: unknown task")

	// ErrDuplicateTask is returned when a handle is registered twice.
	ErrDuplicateTask = errors.New("registry: task already registered")

	// ErrSealed is returned when Register is called after Seal.
	ErrSealed = errors.New("registry: registration closed")
)

// Service resolves task handles of type H to ledger buckets. H is whatever
// equality-comparable token the scheduler hands out; the registry treats it
// as opaque.
type Service[H comparable] struct {
	tasks  map[H]ledger.Bucket
	sealed bool
}

// New creates an empty registry.
func New[H comparable]() *Service[H] {
	return &Service[H]{tasks: make(map[H]ledger.Bucket)}
}

// Register binds a task handle to a bucket. Writes happen only during
// single-threaded bring-up, before any of the registered tasks runs; Seal
// marks the end of that phase.
func (s *Service[H]) Register(handle H, bucket ledger.Bucket) error {
	if s.sealed {
		return ErrSealed
	}
	if _, ok := s.tasks[handle]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateTask, handle)
	}
	s.tasks[handle] = bucket
	return nil
}

// Seal freezes the table. From here on Resolve may be called concurrently
// from any task context without locking.
func (s *Service[H]) Seal() {
	s.sealed = true
}

// Resolve returns the bucket registered for handle.
func (s *Service[H]) Resolve(handle H) (ledger.Bucket, error) {
	bucket, ok := s.tasks[handle]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownTask, handle)
	}
	return bucket, nil
}

// Size returns the number of registered tasks.
func (s *Service[H]) Size() int {
	return len(s.tasks)
}
