package worker

import (
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rchlabs/rch/metrics"
	"github.com/rchlabs/rch/rchapi"
)

// entry is one worker's arena slot: the immutable Worker record plus its
// mutable health and breaker. Sessions and the scheduler hold a worker id,
// never a pointer to an entry.
type entry struct {
	mu sync.Mutex

	worker rchapi.Worker
	health rchapi.WorkerHealth

	breaker *Breaker
}

// Registry owns every configured Worker's entry. It is the sole mutator of
// the worker set and of slot counts; the transfer layer only ever borrows
// a worker id for the duration of one session.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*entry
	order   []string // stable registration order
	metrics *metrics.Registry
}

// NewRegistry builds a Registry from the configured Worker set. Workers
// are registered once at daemon start and never mutated by the request
// path; they are retired only on a config reload (see Reload).
func NewRegistry(workers []rchapi.Worker, breakerCfg BreakerConfig, reg *metrics.Registry) *Registry {
	r := &Registry{byID: make(map[string]*entry, len(workers)), metrics: reg}
	for _, w := range workers {
		r.addLocked(w, breakerCfg)
	}
	return r
}

func (r *Registry) addLocked(w rchapi.Worker, breakerCfg BreakerConfig) {
	r.byID[w.ID] = &entry{
		worker:  w,
		health:  rchapi.WorkerHealth{Availability: rchapi.Down, AvailableSlots: w.Capacity},
		breaker: NewBreaker(breakerCfg),
	}
	r.order = append(r.order, w.ID)
}

// Reload replaces the worker set wholesale, used for a config reload. It
// is not called from any request path.
func (r *Registry) Reload(workers []rchapi.Worker, breakerCfg BreakerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[string]*entry, len(workers))
	r.order = nil
	for _, w := range workers {
		r.addLocked(w, breakerCfg)
	}
}

// WorkerIDs returns every registered worker id, in stable registration
// order.
func (r *Registry) WorkerIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Worker returns the immutable Worker record for id.
func (r *Registry) Worker(id string) (rchapi.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return rchapi.Worker{}, false
	}
	return e.worker, true
}

// Health returns a point-in-time copy of a worker's health snapshot.
func (r *Registry) Health(id string) (rchapi.WorkerHealth, bool) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return rchapi.WorkerHealth{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.health, true
}

// Breaker returns the worker's circuit breaker, or nil if id is unknown.
func (r *Registry) Breaker(id string) *Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil
	}
	return e.breaker
}

// ErrUnknownWorker is returned by operations addressed at a worker id the
// registry doesn't recognise.
var ErrUnknownWorker = fmt.Errorf("unknown worker")

// Candidate is one worker's current standing, as seen by the scheduler's
// selection algorithm.
type Candidate struct {
	ID             string
	AvailableSlots int
	Capacity       int
	LatencyP50     time.Duration
	Priority       int
}

// Eligible returns workers whose health is Up and whose breaker is Closed
// or HalfOpen, excluding any with zero AvailableSlots. A HalfOpen worker
// with no remaining trial budget is excluded too, since admitting past the
// budget would make Allow's reservation meaningless.
func (r *Registry) Eligible() []Candidate {
	r.mu.RLock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.RUnlock()

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		r.mu.RLock()
		e, ok := r.byID[id]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		e.mu.Lock()
		health := e.health
		worker := e.worker
		e.mu.Unlock()

		if health.Availability != rchapi.Up {
			continue
		}
		if health.AvailableSlots <= 0 {
			continue
		}

		state := e.breaker.State()
		if state != rchapi.Closed && state != rchapi.HalfOpen {
			continue
		}
		if state == rchapi.HalfOpen {
			snap := e.breaker.Snapshot()
			if snap.HalfOpenInFlight >= snap.HalfOpenBudget {
				continue
			}
		}

		out = append(out, Candidate{
			ID:             id,
			AvailableSlots: health.AvailableSlots,
			Capacity:       worker.Capacity,
			LatencyP50:     health.LatencyP50,
			Priority:       worker.Priority,
		})
	}

	// Deterministic iteration order before scoring/tie-break; callers sort
	// further by score and then by StableHash for the final tie-break.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReserveSlot atomically decrements id's AvailableSlots by one if it is
// positive. It is the single-owner, check-then-decrement path: the
// registry's per-entry lock is held only for the check and decrement,
// never across I/O.
func (r *Registry) ReserveSlot(id string) (bool, error) {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return false, ErrUnknownWorker
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.health.AvailableSlots <= 0 {
		return false, nil
	}
	e.health.AvailableSlots--
	return true, nil
}

// ReleaseSlot increments id's AvailableSlots by one, capped at Capacity.
// It must be called exactly once for every successful ReserveSlot, on the
// BuildRequest's terminal event (teardown).
func (r *Registry) ReleaseSlot(id string) error {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownWorker
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.health.AvailableSlots < e.worker.Capacity {
		e.health.AvailableSlots++
	}
	return nil
}

// UpdateHealth applies the result of one health probe.
func (r *Registry) UpdateHealth(id string, availability rchapi.Availability, latency time.Duration, probedAt time.Time) error {
	r.mu.RLock()
	e, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return ErrUnknownWorker
	}

	e.mu.Lock()
	e.health.Availability = availability
	e.health.LastProbe = probedAt
	e.health.LatencyP50 = latency
	e.mu.Unlock()

	if r.metrics != nil {
		up := 0.0
		if availability == rchapi.Up {
			up = 1
		}
		r.metrics.WorkerUp.WithLabelValues(id).Set(up)
		r.metrics.ProbeLatency.WithLabelValues(id).Observe(latency.Seconds())
	}
	return nil
}

// RecordOutcome reports an admitted BuildRequest's terminal outcome to the
// worker's breaker. isWorkerFault must come from rchapi.Reason.WorkerFault
// for failures, and must be false for success and for UserBuildFailed.
func (r *Registry) RecordOutcome(id string, isWorkerFault bool) error {
	e := r.entry(id)
	if e == nil {
		return ErrUnknownWorker
	}

	if isWorkerFault {
		e.mu.Lock()
		e.health.ConsecutiveFailure++
		failures := e.health.ConsecutiveFailure
		e.mu.Unlock()

		before := e.breaker.State()
		e.breaker.RecordFailure()
		after := e.breaker.State()

		if r.metrics != nil {
			r.metrics.ConsecutiveFailures.WithLabelValues(id).Set(float64(failures))
			r.metrics.CircuitState.WithLabelValues(id).Set(metrics.CircuitStateValue(after.String()))
			if before != rchapi.Open && after == rchapi.Open {
				r.metrics.CircuitTrips.WithLabelValues(id).Inc()
			}
		}
		return nil
	}

	e.mu.Lock()
	e.health.ConsecutiveFailure = 0
	e.mu.Unlock()
	e.breaker.RecordSuccess()

	if r.metrics != nil {
		r.metrics.ConsecutiveFailures.WithLabelValues(id).Set(0)
		r.metrics.CircuitState.WithLabelValues(id).Set(metrics.CircuitStateValue(e.breaker.State().String()))
	}
	return nil
}

// Drain marks a worker Draining: its breaker is tripped Open (rejecting
// new admissions) while in-flight BuildRequests finish normally.
func (r *Registry) Drain(id string) error {
	e := r.entry(id)
	if e == nil {
		return ErrUnknownWorker
	}
	e.mu.Lock()
	e.health.Availability = rchapi.Draining
	e.mu.Unlock()
	e.breaker.Trip()
	return nil
}

// ResetBreaker forces a worker's breaker Closed, as if by explicit
// operator action.
func (r *Registry) ResetBreaker(id string) error {
	e := r.entry(id)
	if e == nil {
		return ErrUnknownWorker
	}
	e.breaker.Reset()
	e.mu.Lock()
	e.health.Availability = rchapi.Up
	e.health.ConsecutiveFailure = 0
	e.mu.Unlock()
	return nil
}

func (r *Registry) entry(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// StableHash hashes a worker id for the final, deterministic tie-break in
// worker selection.
func StableHash(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}
