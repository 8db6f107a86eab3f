package monitor

import (
	"context"
	"log"
	"time"

	"github.com/viant/memquota/internal/clock"
	"github.com/viant/memquota/service/event"
	"github.com/viant/memquota/service/heap"
	"github.com/viant/memquota/service/ledger"
)

// Config represents monitor service configuration
type Config struct {
	// Interval is how often a usage report is taken.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// LogReports also writes each report through the standard logger.
	LogReports bool `json:"logReports" yaml:"logReports"`
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() Config {
	return Config{
		Interval:   3 * time.Second,
		LogReports: true,
	}
}

// Report is one periodic observation: a consistent per-bucket usage view
// plus the allocator-wide free-memory counters.
type Report struct {
	TakenAt time.Time      `json:"takenAt"`
	Buckets []ledger.Usage `json:"buckets"`
	Heap    *heap.Stats    `json:"heap,omitempty"`
}

// Service takes periodic usage reports
type Service struct {
	config     Config
	ledger     *ledger.Service
	stats      heap.StatsProvider
	reports    *event.Publisher[Report]
	shutdownCh chan struct{}
}

// Option adjusts the monitor.
type Option func(*Service)

// WithConfig sets the monitor configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithStatsProvider attaches allocator-wide free-memory statistics to every
// report.
func WithStatsProvider(stats heap.StatsProvider) Option {
	return func(s *Service) {
		s.stats = stats
	}
}

// WithReportPublisher directs reports to the supplied publisher.
func WithReportPublisher(publisher *event.Publisher[Report]) Option {
	return func(s *Service) {
		s.reports = publisher
	}
}

// New creates a monitor over the supplied ledger.
func New(led *ledger.Service, opts ...Option) *Service {
	ret := &Service{
		config:     DefaultConfig(),
		ledger:     led,
		shutdownCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.config.Interval <= 0 {
		ret.config.Interval = DefaultConfig().Interval
	}
	return ret
}

// Start begins the periodic reporting loop and blocks until ctx is done or
// Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.shutdownCh:
			return nil
		case <-ticker.C:
			s.report(ctx)
		}
	}
}

// Shutdown stops the reporting loop.
func (s *Service) Shutdown() {
	select {
	case <-s.shutdownCh:
	default:
		close(s.shutdownCh)
	}
}

// Take returns one report outside the periodic loop.
func (s *Service) Take() Report {
	report := Report{TakenAt: clock.Now(), Buckets: s.ledger.Snapshots()}
	if s.stats != nil {
		stats := s.stats.Stats()
		report.Heap = &stats
	}
	return report
}

func (s *Service) report(ctx context.Context) {
	report := s.Take()
	if s.config.LogReports {
		for _, usage := range report.Buckets {
			log.Printf("memquota: bucket %q used=%d/%d", usage.Name, usage.Used, usage.Ceiling)
		}
		if report.Heap != nil {
			log.Printf("memquota: heap free=%d minFree=%d", report.Heap.FreeBytes, report.Heap.MinFreeBytes)
		}
	}
	if s.reports == nil {
		return
	}
	anEvent := event.NewEvent(&event.Context{Kind: event.KindUsageReport}, report)
	if err := s.reports.Publish(ctx, anEvent); err != nil {
		log.Printf("memquota: failed to publish usage report: %v", err)
	}
}
