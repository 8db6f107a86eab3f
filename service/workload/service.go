package workload

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/viant/memquota/service/allocator"
)

// Config represents one workload generator.
type Config struct {
	// Name labels the generator in logs.
	Name string `json:"name" yaml:"name"`

	// MinSize and MaxSize bound the random request size in bytes.
	MinSize int `json:"minSize" yaml:"minSize"`
	MaxSize int `json:"maxSize" yaml:"maxSize"`

	// Hold is how long an allocation is kept before it is freed.
	Hold time.Duration `json:"hold" yaml:"hold"`

	// Interval is the pause between allocation cycles.
	Interval time.Duration `json:"interval" yaml:"interval"`
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c.MinSize <= 0 || c.MaxSize < c.MinSize {
		return fmt.Errorf("workload %q: invalid size range [%d, %d]", c.Name, c.MinSize, c.MaxSize)
	}
	if c.Hold < 0 {
		return fmt.Errorf("workload %q: hold must be >= 0, got %v", c.Name, c.Hold)
	}
	if c.Interval < 0 {
		return fmt.Errorf("workload %q: interval must be >= 0, got %v", c.Name, c.Interval)
	}
	return nil
}

// Metrics counts generator outcomes.
type Metrics struct {
	Granted int
	Refused int
}

// Service drives one task's allocate/hold/free loop through the facade.
type Service[H comparable] struct {
	config     Config
	facade     *allocator.Service[H]
	handle     H
	rnd        *rand.Rand
	mu         sync.Mutex
	metrics    Metrics
	shutdownCh chan struct{}
}

// New creates a workload generator running as the supplied task handle.
func New[H comparable](facade *allocator.Service[H], handle H, config Config) (*Service[H], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Service[H]{
		config:     config,
		facade:     facade,
		handle:     handle,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		shutdownCh: make(chan struct{}),
	}, nil
}

// Start begins the allocation loop and blocks until ctx is done or Shutdown
// is called.
func (s *Service[H]) Start(ctx context.Context) error {
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-time.After(s.config.Interval):
		}
	}
}

// Shutdown stops the loop. Any buffer held at that moment is freed before
// Start returns.
func (s *Service[H]) Shutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// RunOnce performs a single allocate/hold/free cycle. A refusal is an
// expected outcome, counted and logged, and leaves nothing to free.
func (s *Service[H]) RunOnce(ctx context.Context) error {
	size := s.nextSize()
	buf, err := s.facade.Allocate(ctx, s.handle, size)
	if err != nil {
		s.count(func(m *Metrics) { m.Refused++ })
		log.Printf("workload %q: allocation of %d bytes refused: %v", s.config.Name, size, err)
		return err
	}
	s.count(func(m *Metrics) { m.Granted++ })
	if usage, err := s.facade.Usage(s.handle); err == nil {
		log.Printf("workload %q: allocated %d | usage %d/%d", s.config.Name, size, usage.Used, usage.Ceiling)
	}
	s.hold(ctx)
	return s.facade.Free(ctx, s.handle, buf, size)
}

// Name returns the generator's label.
func (s *Service[H]) Name() string {
	return s.config.Name
}

// Metrics returns a copy of the outcome counters.
func (s *Service[H]) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

func (s *Service[H]) nextSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config.MaxSize == s.config.MinSize {
		return s.config.MinSize
	}
	return s.config.MinSize + s.rnd.Intn(s.config.MaxSize-s.config.MinSize+1)
}

func (s *Service[H]) hold(ctx context.Context) {
	if s.config.Hold <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-s.shutdownCh:
	case <-time.After(s.config.Hold):
	}
}

func (s *Service[H]) count(update func(*Metrics)) {
	s.mu.Lock()
	update(&s.metrics)
	s.mu.Unlock()
}
