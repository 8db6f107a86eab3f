package event

import (
	"reflect"
	"sync"

	"github.com/viant/memquota/service/messaging/memory"
)

// Service hands out one publisher/listener pair per payload type, each backed
// by its own in-memory queue.
type Service struct {
	typedPublishers map[reflect.Type]any
	typedListeners  map[reflect.Type]any
	mux             sync.RWMutex
	queueConfig     memory.Config
}

// Option adjusts the event service.
type Option func(s *Service)

// WithQueueConfig sets the configuration applied to every per-type queue.
func WithQueueConfig(config memory.Config) Option {
	return func(s *Service) {
		s.queueConfig = config
	}
}

func New(opts ...Option) *Service {
	ret := &Service{
		typedPublishers: make(map[reflect.Type]any),
		typedListeners:  make(map[reflect.Type]any),
		queueConfig:     memory.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(&t)
	return rType.Elem()
}

// PublisherOf returns the publisher for the provided payload type, creating
// it (and its queue) on first use.
func PublisherOf[T any](s *Service) *Publisher[T] {
	key := keyOf[T]()
	s.mux.RLock()
	ret, ok := s.typedPublishers[key]
	s.mux.RUnlock()
	if ok {
		return ret.(*Publisher[T])
	}
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok = s.typedPublishers[key]; ok {
		return ret.(*Publisher[T])
	}
	queue := memory.NewQueue[Event[T]](s.queueConfig)
	publisher := NewPublisher[T](queue)
	s.typedPublishers[key] = publisher
	return publisher
}

// SetListenerOf registers (replacing any previous) a handler for the provided
// payload type and starts consuming.
func SetListenerOf[T any](s *Service, handler func(*Event[T])) {
	key := keyOf[T]()
	s.mux.RLock()
	previous, ok := s.typedListeners[key]
	s.mux.RUnlock()
	if ok {
		previous.(*Listener[T]).Stop()
	}
	listener := NewListener[T](PublisherOf[T](s), handler)
	s.mux.Lock()
	s.typedListeners[key] = listener
	s.mux.Unlock()
	listener.Start()
}

// Stop stops all listeners.
func (s *Service) Stop() {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, l := range s.typedListeners {
		if stopper, ok := l.(interface{ Stop() }); ok {
			stopper.Stop()
		}
	}
}
