package scheduler

import "time"

// SelectionWeights tunes the worker-scoring formula: a weighted sum of free
// slot ratio, inverse latency of the worker's most recent health probe, and
// fingerprint cache affinity.
type SelectionWeights struct {
	SlotWeight  float64
	SpeedWeight float64
	CacheWeight float64
}

// DefaultSelectionWeights matches the documented defaults.
func DefaultSelectionWeights() SelectionWeights {
	return SelectionWeights{SlotWeight: 1.0, SpeedWeight: 1.0, CacheWeight: 0.5}
}

// Config tunes the scheduler's admission and selection behavior.
type Config struct {
	Weights SelectionWeights

	// HalfOpenConcurrentProbes bounds how many concurrent builds a HalfOpen
	// worker admits before being treated as Down for admission.
	HalfOpenConcurrentProbes int

	// MaxSelectionRetries bounds the reserve-then-retry loop in selectWorker
	// when a raced reservation fails.
	MaxSelectionRetries int

	// AllowLocalFallback is not read by the Scheduler: Build takes the
	// fallback choice from its allowLocalFallback argument, which, when
	// true, turns an empty eligible set into AdmissionDenied{NoWorkers}
	// rather than NoWorkersAvailable.
	AllowLocalFallback bool

	// RetryExecuteOnFailover is carried in the configuration but not read
	// by the Scheduler: a worker-fault Execute failure is never retried as
	// a fresh BuildRequest against a different worker, whatever its value.
	// Default false.
	RetryExecuteOnFailover bool

	// BuildTimeout bounds one admitted BuildRequest end to end.
	BuildTimeout time.Duration

	// CancelGrace bounds how long a cancelled build waits for the worker's
	// acknowledgement before the session is marked CancelledDirty.
	CancelGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		Weights:                  DefaultSelectionWeights(),
		HalfOpenConcurrentProbes: 1,
		MaxSelectionRetries:      3,
		BuildTimeout:             300 * time.Second,
		CancelGrace:              5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Weights == (SelectionWeights{}) {
		c.Weights = d.Weights
	}
	if c.HalfOpenConcurrentProbes <= 0 {
		c.HalfOpenConcurrentProbes = d.HalfOpenConcurrentProbes
	}
	if c.MaxSelectionRetries <= 0 {
		c.MaxSelectionRetries = d.MaxSelectionRetries
	}
	if c.BuildTimeout <= 0 {
		c.BuildTimeout = d.BuildTimeout
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = d.CancelGrace
	}
	return c
}
