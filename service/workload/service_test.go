package workload_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/memquota/service/allocator"
	hmemory "github.com/viant/memquota/service/heap/memory"
	"github.com/viant/memquota/service/ledger"
	"github.com/viant/memquota/service/registry"
	"github.com/viant/memquota/service/workload"
)

func newFacade(t *testing.T, ceiling int) (*allocator.Service[string], *ledger.Service) {
	t.Helper()
	led := ledger.New()
	bucket, err := led.Register("sensor", ceiling)
	require.NoError(t, err)
	reg := registry.New[string]()
	require.NoError(t, reg.Register("sensor-task", bucket))
	reg.Seal()
	led.Seal()
	h := hmemory.New(hmemory.Config{CapacityBytes: 1 << 16})
	return allocator.New(reg, led, h), led
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name        string
		config      workload.Config
		expectError bool
	}{
		{name: "valid", config: workload.Config{Name: "sensor", MinSize: 256, MaxSize: 1280}},
		{name: "single size", config: workload.Config{Name: "fixed", MinSize: 64, MaxSize: 64}},
		{name: "zero min", config: workload.Config{Name: "bad", MinSize: 0, MaxSize: 10}, expectError: true},
		{name: "inverted range", config: workload.Config{Name: "bad", MinSize: 100, MaxSize: 10}, expectError: true},
		{name: "negative hold", config: workload.Config{Name: "bad", MinSize: 1, MaxSize: 2, Hold: -time.Second}, expectError: true},
		{name: "negative interval", config: workload.Config{Name: "bad", MinSize: 1, MaxSize: 2, Interval: -time.Millisecond}, expectError: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRunOnce(t *testing.T) {
	facade, led := newFacade(t, 2048)
	gen, err := workload.New(facade, "sensor-task", workload.Config{
		Name:    "sensor",
		MinSize: 256,
		MaxSize: 1024,
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, gen.RunOnce(context.Background()))
	}
	metrics := gen.Metrics()
	assert.Equal(t, 10, metrics.Granted)
	assert.Equal(t, 0, metrics.Refused)

	// Every cycle freed what it allocated.
	bucket, ok := led.Lookup("sensor")
	require.True(t, ok)
	usage, err := led.Snapshot(bucket)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}

func TestRunOnceRefused(t *testing.T) {
	facade, _ := newFacade(t, 100)
	gen, err := workload.New(facade, "sensor-task", workload.Config{
		Name:    "sensor",
		MinSize: 101,
		MaxSize: 101,
	})
	require.NoError(t, err)

	err = gen.RunOnce(context.Background())
	assert.ErrorIs(t, err, allocator.ErrQuotaExceeded)
	assert.Equal(t, 1, gen.Metrics().Refused)
}

func TestStartShutdown(t *testing.T) {
	facade, led := newFacade(t, 4096)
	gen, err := workload.New(facade, "sensor-task", workload.Config{
		Name:     "sensor",
		MinSize:  64,
		MaxSize:  128,
		Interval: time.Millisecond,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- gen.Start(context.Background()) }()

	assert.Eventually(t, func() bool {
		return gen.Metrics().Granted > 0
	}, time.Second, time.Millisecond)

	gen.Shutdown()
	assert.NoError(t, <-done)

	// No residual usage once the loop has exited.
	bucket, ok := led.Lookup("sensor")
	require.True(t, ok)
	usage, err := led.Snapshot(bucket)
	require.NoError(t, err)
	assert.Equal(t, 0, usage.Used)
}
