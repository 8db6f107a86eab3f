package memquota

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/viant/memquota/service/allocator"
	"github.com/viant/memquota/service/event"
	"github.com/viant/memquota/service/heap"
	"github.com/viant/memquota/service/monitor"
	"github.com/viant/memquota/tracing"
)

// Option customises the Service.
type Option[H comparable] func(s *Service[H])

// WithHeap sets the underlying allocator. It must be independently
// thread-safe - the facade calls it outside the ledger lock.
func WithHeap[H comparable](underlying heap.Allocator) Option[H] {
	return func(s *Service[H]) {
		s.heap = underlying
	}
}

// WithEventService sets the event service carrying refusal events and usage
// reports.
func WithEventService[H comparable](service *event.Service) Option[H] {
	return func(s *Service[H]) {
		s.eventService = service
	}
}

// WithAllocatorOptions lets the caller supply additional options passed to
// allocator.New (e.g. enabling FailFast).
func WithAllocatorOptions[H comparable](opts ...allocator.Option[H]) Option[H] {
	return func(s *Service[H]) {
		s.allocatorOptions = append(s.allocatorOptions, opts...)
	}
}

// WithMonitorOptions lets the caller supply additional options passed to
// monitor.New.
func WithMonitorOptions[H comparable](opts ...monitor.Option) Option[H] {
	return func(s *Service[H]) {
		s.monitorOptions = append(s.monitorOptions, opts...)
	}
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. Safe to call multiple times - the first successful
// initialisation wins.
func WithTracing[H comparable](serviceName, serviceVersion, outputFile string) Option[H] {
	return func(s *Service[H]) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter (OTLP, Jaeger, Zipkin ...).
func WithTracingExporter[H comparable](serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option[H] {
	return func(s *Service[H]) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
