package memquota

import (
	"fmt"

	"github.com/viant/memquota/service/allocator"
	"github.com/viant/memquota/service/event"
	"github.com/viant/memquota/service/heap"
	hmemory "github.com/viant/memquota/service/heap/memory"
	"github.com/viant/memquota/service/ledger"
	"github.com/viant/memquota/service/monitor"
	"github.com/viant/memquota/service/registry"
)

// Service wires the quota components together: ledger, task registry, heap,
// allocator facade and diagnostic monitor. H is the scheduler's opaque task
// handle type.
type Service[H comparable] struct {
	runtime          *Runtime[H]
	config           *Config
	ledger           *ledger.Service
	registry         *registry.Service[H]
	heap             heap.Allocator
	eventService     *event.Service
	allocatorOptions []allocator.Option[H]
	monitorOptions   []monitor.Option
}

// New creates a Service from the supplied configuration: every configured
// bucket is registered before the call returns and the ceiling set is closed
// once the runtime starts.
func New[H comparable](config *Config, options ...Option[H]) (*Service[H], error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service[H]{config: config}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service[H]) init(options []Option[H]) error {
	for _, option := range options {
		option(s)
	}
	s.ensureBaseSetup()
	s.ledger = ledger.New()
	s.registry = registry.New[H]()
	for _, bucket := range s.config.Buckets {
		if _, err := s.ledger.Register(bucket.ID, bucket.CeilingBytes); err != nil {
			return err
		}
	}

	facadeOptions := append([]allocator.Option[H]{
		allocator.WithRefusalPublisher[H](event.PublisherOf[allocator.Refusal](s.eventService)),
	}, s.allocatorOptions...)
	facade := allocator.New(s.registry, s.ledger, s.heap, facadeOptions...)

	monitorOptions := append([]monitor.Option{
		monitor.WithConfig(s.config.Monitor),
		monitor.WithReportPublisher(event.PublisherOf[monitor.Report](s.eventService)),
	}, s.monitorOptions...)
	if stats, ok := s.heap.(heap.StatsProvider); ok {
		monitorOptions = append(monitorOptions, monitor.WithStatsProvider(stats))
	}

	s.runtime = &Runtime[H]{
		service:   s,
		allocator: facade,
		monitor:   monitor.New(s.ledger, monitorOptions...),
	}
	return nil
}

func (s *Service[H]) ensureBaseSetup() {
	if s.heap == nil {
		s.heap = hmemory.New(hmemory.Config{CapacityBytes: s.config.Heap.CapacityBytes})
	}
	if s.eventService == nil {
		s.eventService = event.New()
	}
}

// RegisterTask binds a scheduler task handle to a configured bucket. Call
// during bring-up, before Runtime.Start; afterwards the table is sealed.
func (s *Service[H]) RegisterTask(handle H, bucketID string) error {
	bucket, ok := s.ledger.Lookup(bucketID)
	if !ok {
		return fmt.Errorf("%w: %q", ledger.ErrBucketNotFound, bucketID)
	}
	return s.registry.Register(handle, bucket)
}

// Allocator returns the quota-aware allocation facade.
func (s *Service[H]) Allocator() *allocator.Service[H] {
	return s.runtime.allocator
}

// Ledger returns the quota ledger, primarily for diagnostics.
func (s *Service[H]) Ledger() *ledger.Service {
	return s.ledger
}

// Events returns the event service carrying refusals and usage reports.
func (s *Service[H]) Events() *event.Service {
	return s.eventService
}

// Runtime returns the runtime controlling the background loops.
func (s *Service[H]) Runtime() *Runtime[H] {
	return s.runtime
}
