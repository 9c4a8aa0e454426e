// Package worker maintains the registry of configured workers, their
// health snapshots, and their per-worker circuit breakers.
package worker

import (
	"sync"
	"time"

	"github.com/rchlabs/rch/rchapi"
)

// BreakerConfig tunes one worker's circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	HalfOpenBudget   int
}

// DefaultBreakerConfig is the documented default tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenBudget:   3,
	}
}

// Breaker is a single worker's circuit breaker state machine. Every
// exported method is safe for concurrent use; the breaker is the one piece
// of per-worker state the admission path and the transfer teardown path
// both touch, so its internal lock is never held across I/O.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig

	state               rchapi.CircuitState
	resetDeadline       time.Time
	consecutiveFailures int
	halfOpenInFlight    int
	halfOpenFailures    int
}

// NewBreaker returns a Breaker starting Closed.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 || cfg.ResetTimeout <= 0 || cfg.HalfOpenBudget <= 0 {
		d := DefaultBreakerConfig()
		if cfg.FailureThreshold <= 0 {
			cfg.FailureThreshold = d.FailureThreshold
		}
		if cfg.ResetTimeout <= 0 {
			cfg.ResetTimeout = d.ResetTimeout
		}
		if cfg.HalfOpenBudget <= 0 {
			cfg.HalfOpenBudget = d.HalfOpenBudget
		}
	}
	return &Breaker{cfg: cfg, state: rchapi.Closed}
}

// State returns the breaker's current state, resolving an Open->HalfOpen
// transition if the reset deadline has passed.
func (b *Breaker) State() rchapi.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked(time.Now())
	return b.state
}

// Snapshot returns the breaker's exported-metric fields.
func (b *Breaker) Snapshot() rchapi.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked(time.Now())
	return rchapi.CircuitBreaker{
		State:            b.state,
		FailureThreshold: b.cfg.FailureThreshold,
		ResetDeadline:    b.resetDeadline,
		HalfOpenBudget:   b.cfg.HalfOpenBudget,
		HalfOpenInFlight: b.halfOpenInFlight,
	}
}

func (b *Breaker) maybeRecoverLocked(now time.Time) {
	if b.state == rchapi.Open && !b.resetDeadline.IsZero() && !now.Before(b.resetDeadline) {
		b.state = rchapi.HalfOpen
		b.halfOpenInFlight = 0
		b.halfOpenFailures = 0
	}
}

// Allow reports whether a new BuildRequest may be admitted to this worker,
// and if so reserves any half-open trial budget it consumed. Admission
// must call Allow exactly once per BuildRequest and, on a false result,
// must not call RecordSuccess/RecordFailure for that request.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeRecoverLocked(time.Now())

	switch b.state {
	case rchapi.Closed:
		return true
	case rchapi.HalfOpen:
		if b.halfOpenInFlight >= b.cfg.HalfOpenBudget {
			return false
		}
		b.halfOpenInFlight++
		return true
	default: // Open
		return false
	}
}

// RecordSuccess reports that an admitted BuildRequest completed without a
// worker fault. Application-level build failures must NOT be reported
// here; see RecordFailure's doc comment.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case rchapi.HalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		if b.halfOpenInFlight == 0 && b.halfOpenFailures == 0 {
			b.state = rchapi.Closed
			b.consecutiveFailures = 0
		}
	case rchapi.Closed:
		b.consecutiveFailures = 0
	}
}

// RecordFailure reports a worker fault (transport failure, agent crash, or
// probe failure) for an admitted BuildRequest. A non-zero compiler exit
// from the user's own build (rchapi.ReasonUserBuildFailed) must never be
// passed here — see rchapi.Reason.WorkerFault.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch b.state {
	case rchapi.HalfOpen:
		if b.halfOpenInFlight > 0 {
			b.halfOpenInFlight--
		}
		b.halfOpenFailures++
		b.state = rchapi.Open
		b.resetDeadline = now.Add(b.cfg.ResetTimeout)
	case rchapi.Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.state = rchapi.Open
			b.resetDeadline = now.Add(b.cfg.ResetTimeout)
		}
	}
}

// Reset forces the breaker to Closed, as if by explicit operator action.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = rchapi.Closed
	b.consecutiveFailures = 0
	b.halfOpenInFlight = 0
	b.halfOpenFailures = 0
	b.resetDeadline = time.Time{}
}

// Trip forces the breaker to Open, used by an operator drain: new
// admissions are rejected but in-flight BuildRequests finish normally.
func (b *Breaker) Trip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = rchapi.Open
	b.resetDeadline = time.Now().Add(b.cfg.ResetTimeout)
}
