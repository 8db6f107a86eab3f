package allocator_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/memquota/policy"
	"github.com/viant/memquota/service/allocator"
	"github.com/viant/memquota/service/event"
	"github.com/viant/memquota/service/ledger"
	mmemory "github.com/viant/memquota/service/messaging/memory"
	"github.com/viant/memquota/service/registry"
)

// stubHeap counts calls and fails on demand, standing in for the platform
// allocator.
type stubHeap struct {
	mu        sync.Mutex
	allocates int
	frees     int
	failNext  int
}

func (h *stubHeap) Allocate(size int) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.allocates++
	if h.failNext > 0 {
		h.failNext--
		return nil, false
	}
	return make([]byte, size), true
}

func (h *stubHeap) Free(buf []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frees++
}

type fixture struct {
	heap   *stubHeap
	ledger *ledger.Service
	facade *allocator.Service[string]
}

func newFixture(t *testing.T, ceiling int, opts ...allocator.Option[string]) *fixture {
	t.Helper()
	led := ledger.New()
	bucket, err := led.Register("sensor", ceiling)
	require.NoError(t, err)
	reg := registry.New[string]()
	require.NoError(t, reg.Register("sensor-task", bucket))
	reg.Seal()
	led.Seal()
	h := &stubHeap{}
	return &fixture{
		heap:   h,
		ledger: led,
		facade: allocator.New(reg, led, h, opts...),
	}
}

func (f *fixture) used(t *testing.T) int {
	t.Helper()
	usage, err := f.facade.Usage("sensor-task")
	require.NoError(t, err)
	return usage.Used
}

func TestAllocateFree(t *testing.T) {
	f := newFixture(t, 2048)
	ctx := context.Background()

	buf, err := f.facade.Allocate(ctx, "sensor-task", 1200)
	require.NoError(t, err)
	assert.Len(t, buf, 1200)
	assert.Equal(t, 1200, f.used(t))

	require.NoError(t, f.facade.Free(ctx, "sensor-task", buf, 1200))
	assert.Equal(t, 0, f.used(t))
	assert.Equal(t, 1, f.heap.frees)
}

// TestQuotaRefusal verifies that a refused request is deterministic and
// cheap: the underlying heap is never consulted.
func TestQuotaRefusal(t *testing.T) {
	f := newFixture(t, 2048)
	ctx := context.Background()

	buf, err := f.facade.Allocate(ctx, "sensor-task", 1200)
	require.NoError(t, err)

	_, err = f.facade.Allocate(ctx, "sensor-task", 900)
	assert.ErrorIs(t, err, allocator.ErrQuotaExceeded)
	assert.Equal(t, 1200, f.used(t))
	assert.Equal(t, 1, f.heap.allocates)

	require.NoError(t, f.facade.Free(ctx, "sensor-task", buf, 1200))

	// Inclusive ceiling: exact fit succeeds.
	buf, err = f.facade.Allocate(ctx, "sensor-task", 2048)
	require.NoError(t, err)
	assert.Equal(t, 2048, f.used(t))
	require.NoError(t, f.facade.Free(ctx, "sensor-task", buf, 2048))
}

// TestRollbackOnHeapFailure forces the heap to fail N consecutive times and
// expects the bucket's usage to be net zero afterwards - the rollback is the
// single most important property of the facade.
func TestRollbackOnHeapFailure(t *testing.T) {
	f := newFixture(t, 4096)
	ctx := context.Background()
	f.heap.failNext = 5

	for i := 0; i < 5; i++ {
		_, err := f.facade.Allocate(ctx, "sensor-task", 512)
		assert.ErrorIs(t, err, allocator.ErrHeapExhausted)
	}
	assert.Equal(t, 0, f.used(t))

	// The heap recovered - allocation works and is accounted.
	buf, err := f.facade.Allocate(ctx, "sensor-task", 512)
	require.NoError(t, err)
	assert.Equal(t, 512, f.used(t))
	require.NoError(t, f.facade.Free(ctx, "sensor-task", buf, 512))
}

func TestUnknownTask(t *testing.T) {
	f := newFixture(t, 2048)
	ctx := context.Background()

	_, err := f.facade.Allocate(ctx, "never-registered", 100)
	assert.ErrorIs(t, err, registry.ErrUnknownTask)

	// Ledger untouched, heap untouched.
	assert.Equal(t, 0, f.used(t))
	assert.Equal(t, 0, f.heap.allocates)

	err = f.facade.Free(ctx, "never-registered", nil, 100)
	assert.ErrorIs(t, err, registry.ErrUnknownTask)
}

func TestReleaseUnderflowSurfaced(t *testing.T) {
	f := newFixture(t, 2048)
	ctx := context.Background()

	buf, err := f.facade.Allocate(ctx, "sensor-task", 100)
	require.NoError(t, err)

	// Freeing more than was allocated is a caller bug, surfaced not clamped.
	err = f.facade.Free(ctx, "sensor-task", buf, 150)
	assert.ErrorIs(t, err, ledger.ErrReleaseUnderflow)
	assert.Equal(t, 100, f.used(t))
}

func TestFailFastPanicsOnUnderflow(t *testing.T) {
	f := newFixture(t, 2048, allocator.WithConfig[string](allocator.Config{FailFast: true}))
	ctx := context.Background()

	buf, err := f.facade.Allocate(ctx, "sensor-task", 100)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = f.facade.Free(ctx, "sensor-task", buf, 200)
	})
}

func TestPolicyDenied(t *testing.T) {
	f := newFixture(t, 2048)
	ctx := policy.WithPolicy(context.Background(), &policy.Policy{Mode: policy.ModeDeny})

	_, err := f.facade.Allocate(ctx, "sensor-task", 100)
	assert.ErrorIs(t, err, allocator.ErrPolicyDenied)
	assert.Equal(t, 0, f.used(t))
	assert.Equal(t, 0, f.heap.allocates)
}

func TestRefusalEventPublished(t *testing.T) {
	queue := mmemory.NewQueue[event.Event[allocator.Refusal]](mmemory.DefaultConfig())
	publisher := event.NewPublisher(queue)
	f := newFixture(t, 1000, allocator.WithRefusalPublisher[string](publisher))
	ctx := context.Background()

	_, err := f.facade.Allocate(ctx, "sensor-task", 1001)
	require.ErrorIs(t, err, allocator.ErrQuotaExceeded)

	published, err := publisher.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, event.KindQuotaRefused, published.Context.Kind)
	assert.Equal(t, "sensor", published.Data.Bucket)
	assert.Equal(t, 1001, published.Data.Requested)
	assert.Equal(t, 1000, published.Data.Ceiling)
}

// TestConcurrentAllocateFree churns allocate/free pairs from many goroutines
// and expects zero residual usage - no lost updates, no drift.
func TestConcurrentAllocateFree(t *testing.T) {
	f := newFixture(t, 1<<20)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			size := 128 + seed*13
			for j := 0; j < 100; j++ {
				buf, err := f.facade.Allocate(ctx, "sensor-task", size)
				if err != nil {
					continue
				}
				if err := f.facade.Free(ctx, "sensor-task", buf, size); err != nil {
					panic(err)
				}
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, f.used(t))
}
