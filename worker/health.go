package worker

import (
	"context"
	"time"

	"github.com/buildkite/roko"
	"github.com/rchlabs/rch/pool"
	"github.com/rchlabs/rch/rchapi"
)

// Prober checks that a worker is reachable, within a timeout, and returns
// the worker agent's reported free slot count. The implementation is
// transfer.Prober: a transport Dial plus a Preflight with no required
// tools, over real SSH or the in-process mock.
type Prober interface {
	Probe(ctx context.Context, w rchapi.Worker, timeout time.Duration) (slots int, err error)
}

// HealthLoopConfig tunes the health loop's probe cadence and concurrency.
type HealthLoopConfig struct {
	// Interval between probe rounds. Default 30s.
	Interval time.Duration
	// ProbeTimeout bounds a single probe attempt.
	ProbeTimeout time.Duration
	// Concurrency bounds how many probes run at once; pool.MaxConcurrencyLimit
	// for the pool's own default.
	Concurrency int
}

func DefaultHealthLoopConfig() HealthLoopConfig {
	return HealthLoopConfig{
		Interval:     30 * time.Second,
		ProbeTimeout: 5 * time.Second,
		Concurrency:  pool.MaxConcurrencyLimit,
	}
}

// HealthLoop runs one bounded-rate probe per worker on a timer, fanning
// the round out across a bounded pool so one slow worker doesn't delay the
// rest.
type HealthLoop struct {
	registry *Registry
	prober   Prober
	cfg      HealthLoopConfig
}

func NewHealthLoop(registry *Registry, prober Prober, cfg HealthLoopConfig) *HealthLoop {
	d := DefaultHealthLoopConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = d.Interval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = d.ProbeTimeout
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = d.Concurrency
	}
	return &HealthLoop{registry: registry, prober: prober, cfg: cfg}
}

// Run blocks, probing every registered worker every Interval, until ctx is
// cancelled.
func (h *HealthLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	h.probeAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.probeAll(ctx)
		}
	}
}

func (h *HealthLoop) probeAll(ctx context.Context) {
	p := pool.New(h.cfg.Concurrency)
	for _, id := range h.registry.WorkerIDs() {
		id := id
		p.Spawn(func() { h.probeOne(ctx, id) })
	}
	p.Wait()
}

func (h *HealthLoop) probeOne(ctx context.Context, id string) {
	w, ok := h.registry.Worker(id)
	if !ok {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, h.cfg.ProbeTimeout)
	defer cancel()

	start := time.Now()

	err := roko.NewRetrier(
		roko.WithMaxAttempts(2),
		roko.WithStrategy(roko.Constant(time.Second)),
	).DoWithContext(probeCtx, func(r *roko.Retrier) error {
		_, err := h.prober.Probe(probeCtx, w, h.cfg.ProbeTimeout)
		return err
	})

	latency := time.Since(start)

	if err != nil {
		_ = h.registry.UpdateHealth(id, rchapi.Down, latency, time.Now())
		_ = h.registry.RecordOutcome(id, true)
		return
	}

	_ = h.registry.UpdateHealth(id, rchapi.Up, latency, time.Now())
	_ = h.registry.RecordOutcome(id, false)
}
