package memquota

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/memquota/service/allocator"
	"github.com/viant/memquota/service/monitor"
	"github.com/viant/memquota/service/workload"
)

// Runtime controls the background loops: the diagnostic monitor and any
// registered workload generators.
type Runtime[H comparable] struct {
	service   *Service[H]
	allocator *allocator.Service[H]
	monitor   *monitor.Service
	workloads []*workload.Service[H]
	started   bool
	wg        sync.WaitGroup
}

// AddWorkload registers a workload generator running as the supplied task
// handle. The handle must already be bound to a bucket via RegisterTask.
// Generators can only be added before Start.
func (r *Runtime[H]) AddWorkload(handle H, config workload.Config) error {
	if r.started {
		return fmt.Errorf("runtime already started")
	}
	if _, err := r.allocator.Usage(handle); err != nil {
		return err
	}
	gen, err := workload.New(r.allocator, handle, config)
	if err != nil {
		return err
	}
	r.workloads = append(r.workloads, gen)
	return nil
}

// Start ends the bring-up phase - registration is sealed so no buckets or
// tasks can appear once tasks run - and launches the monitor and workload
// loops.
func (r *Runtime[H]) Start(ctx context.Context) error {
	if r.started {
		return fmt.Errorf("runtime already started")
	}
	r.started = true
	r.service.registry.Seal()
	r.service.ledger.Seal()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_ = r.monitor.Start(ctx)
	}()
	for _, gen := range r.workloads {
		r.wg.Add(1)
		go func(gen *workload.Service[H]) {
			defer r.wg.Done()
			_ = gen.Start(ctx)
		}(gen)
	}
	return nil
}

// Shutdown stops every background loop and waits for them to exit.
func (r *Runtime[H]) Shutdown() {
	r.monitor.Shutdown()
	for _, gen := range r.workloads {
		gen.Shutdown()
	}
	r.wg.Wait()
}

// Monitor returns the diagnostic monitor.
func (r *Runtime[H]) Monitor() *monitor.Service {
	return r.monitor
}

// Workloads returns the registered workload generators.
func (r *Runtime[H]) Workloads() []*workload.Service[H] {
	return r.workloads
}
