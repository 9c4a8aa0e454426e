package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rchlabs/rch/rchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	fail atomic.Bool
}

func (p *stubProber) Probe(_ context.Context, _ rchapi.Worker, _ time.Duration) (int, error) {
	if p.fail.Load() {
		return 0, assert.AnError
	}
	return 3, nil
}

func TestHealthLoopProbeOneMarksWorkerUp(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	prober := &stubProber{}
	h := NewHealthLoop(r, prober, HealthLoopConfig{Interval: time.Hour, ProbeTimeout: time.Second})

	h.probeOne(context.Background(), "w1")

	health, ok := r.Health("w1")
	require.True(t, ok)
	assert.Equal(t, rchapi.Up, health.Availability)
	assert.Equal(t, 0, health.ConsecutiveFailure)
}

func TestHealthLoopProbeOneMarksWorkerDownOnFailure(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	prober := &stubProber{}
	prober.fail.Store(true)
	h := NewHealthLoop(r, prober, HealthLoopConfig{Interval: time.Hour, ProbeTimeout: 50 * time.Millisecond})

	h.probeOne(context.Background(), "w1")

	health, ok := r.Health("w1")
	require.True(t, ok)
	assert.Equal(t, rchapi.Down, health.Availability)
	assert.Equal(t, 1, health.ConsecutiveFailure)
}

func TestHealthLoopProbeAllCoversEveryWorker(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	prober := &stubProber{}
	h := NewHealthLoop(r, prober, HealthLoopConfig{Interval: time.Hour, ProbeTimeout: time.Second})

	h.probeAll(context.Background())

	for _, id := range r.WorkerIDs() {
		health, ok := r.Health(id)
		require.True(t, ok)
		assert.Equal(t, rchapi.Up, health.Availability)
	}
}
