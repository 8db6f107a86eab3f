package allocator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/viant/memquota/policy"
	"github.com/viant/memquota/service/event"
	"github.com/viant/memquota/service/heap"
	"github.com/viant/memquota/service/ledger"
	"github.com/viant/memquota/service/registry"
	"github.com/viant/memquota/tracing"
)

// Config represents allocator facade configuration
type Config struct {
	// FailFast panics on release underflow instead of returning an error.
	// Underflow always indicates a mismatched allocate/free pair in the
	// caller; during development aborting is usually preferable to running
	// on with corrupt accounting.
	FailFast bool
}

// Refusal is the payload of refusal events; observability only, refusals are
// also reported synchronously to the caller.
type Refusal struct {
	Bucket    string `json:"bucket"`
	Requested int    `json:"requested"`
	Used      int    `json:"used"`
	Ceiling   int    `json:"ceiling"`
}

// Service is the quota-aware allocation facade, generic over the scheduler's
// task handle type H.
type Service[H comparable] struct {
	config   Config
	registry *registry.Service[H]
	ledger   *ledger.Service
	heap     heap.Allocator
	refusals *event.Publisher[Refusal]
}

// Option adjusts the facade.
type Option[H comparable] func(*Service[H])

// WithConfig sets the facade configuration.
func WithConfig[H comparable](config Config) Option[H] {
	return func(s *Service[H]) {
		s.config = config
	}
}

// WithRefusalPublisher directs refusal events to the supplied publisher.
func WithRefusalPublisher[H comparable](publisher *event.Publisher[Refusal]) Option[H] {
	return func(s *Service[H]) {
		s.refusals = publisher
	}
}

// New creates a quota-aware allocator over the supplied registry, ledger and
// underlying heap. The heap is expected to be independently thread-safe - it
// is deliberately called outside the ledger lock to bound lock hold time.
func New[H comparable](reg *registry.Service[H], led *ledger.Service, underlying heap.Allocator, opts ...Option[H]) *Service[H] {
	ret := &Service[H]{
		registry: reg,
		ledger:   led,
		heap:     underlying,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Allocate returns size bytes charged against the caller's bucket, or an
// error when the task is unknown, policy or quota refuse the request, or the
// underlying heap is exhausted. Every refusal leaves the ledger exactly as it
// was.
func (s *Service[H]) Allocate(ctx context.Context, handle H, size int) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, "memquota.allocate")
	buf, err := s.allocate(ctx, handle, size)
	tracing.EndSpan(span, err)
	return buf, err
}

func (s *Service[H]) allocate(ctx context.Context, handle H, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("allocator: negative size %d", size)
	}
	bucket, err := s.registry.Resolve(handle)
	if err != nil {
		// Fail closed: an unregistered caller never shares another task's
		// quota or an unlimited default.
		return nil, err
	}
	usage, err := s.ledger.Snapshot(bucket)
	if err != nil {
		return nil, err
	}
	if pol := policy.FromContext(ctx); !pol.IsAllowed(usage.Name) {
		s.publishRefusal(ctx, event.KindPolicyDenied, usage, size)
		return nil, fmt.Errorf("%w: bucket %q", ErrPolicyDenied, usage.Name)
	}
	if !s.ledger.TryReserve(bucket, size) {
		usage, _ = s.ledger.Snapshot(bucket)
		s.publishRefusal(ctx, event.KindQuotaRefused, usage, size)
		return nil, fmt.Errorf("%w: bucket %q requested=%d used=%d/%d",
			ErrQuotaExceeded, usage.Name, size, usage.Used, usage.Ceiling)
	}
	// Reservation held. From here every exit path either completes the heap
	// allocation or fully undoes the reservation.
	buf, ok := s.heap.Allocate(size)
	if !ok {
		if rbErr := s.ledger.Release(bucket, size); rbErr != nil {
			// A reservation this call just made cannot underflow; reaching
			// here means the ledger was mutated outside its API.
			log.Printf("memquota: rollback of %d bytes on bucket %q failed: %v", size, usage.Name, rbErr)
		}
		usage, _ = s.ledger.Snapshot(bucket)
		s.publishRefusal(ctx, event.KindHeapRefused, usage, size)
		return nil, fmt.Errorf("%w: bucket %q requested=%d", ErrHeapExhausted, usage.Name, size)
	}
	return buf, nil
}

// Free returns buf to the underlying heap and releases size bytes from the
// caller's bucket. The caller must supply the exact size of the matching
// successful Allocate - the facade has no way to recover it from the buffer
// alone; this is a documented contract, not something Free enforces.
func (s *Service[H]) Free(ctx context.Context, handle H, buf []byte, size int) error {
	_, span := tracing.StartSpan(ctx, "memquota.free")
	err := s.free(handle, buf, size)
	tracing.EndSpan(span, err)
	return err
}

func (s *Service[H]) free(handle H, buf []byte, size int) error {
	bucket, err := s.registry.Resolve(handle)
	if err != nil {
		return err
	}
	s.heap.Free(buf)
	if err := s.ledger.Release(bucket, size); err != nil {
		if errors.Is(err, ledger.ErrReleaseUnderflow) {
			log.Printf("memquota: %v", err)
			if s.config.FailFast {
				panic(err)
			}
		}
		return err
	}
	return nil
}

// Usage returns the current usage/ceiling pair for the caller's bucket.
func (s *Service[H]) Usage(handle H) (ledger.Usage, error) {
	bucket, err := s.registry.Resolve(handle)
	if err != nil {
		return ledger.Usage{}, err
	}
	return s.ledger.Snapshot(bucket)
}

func (s *Service[H]) publishRefusal(ctx context.Context, kind string, usage ledger.Usage, size int) {
	log.Printf("memquota: %s bucket=%q requested=%d used=%d/%d", kind, usage.Name, size, usage.Used, usage.Ceiling)
	if s.refusals == nil {
		return
	}
	anEvent := event.NewEvent(&event.Context{Bucket: usage.Name, Kind: kind, Requested: size}, Refusal{
		Bucket:    usage.Name,
		Requested: size,
		Used:      usage.Used,
		Ceiling:   usage.Ceiling,
	})
	if err := s.refusals.Publish(ctx, anEvent); err != nil {
		log.Printf("memquota: failed to publish refusal event: %v", err)
	}
}
