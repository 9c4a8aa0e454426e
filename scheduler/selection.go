package scheduler

import (
	"github.com/rchlabs/rch/rchapi"
	"github.com/rchlabs/rch/worker"
)

// selectWorker runs the worker-selection algorithm for one admitted build:
// filter to eligible workers, score and tie-break, then atomically reserve
// a slot on the winner and consume its breaker's admission budget. A raced
// reservation (another build claimed the last slot between Eligible and
// ReserveSlot) or a HalfOpen breaker that has no trial budget left for this
// candidate retries from the top, up to cfg.MaxSelectionRetries.
func (s *Scheduler) selectWorker(fingerprint string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxSelectionRetries; attempt++ {
		candidates := s.eligibleForSelection()
		if len(candidates) == 0 {
			return "", rchapi.New(rchapi.ReasonNoWorkersAvailable, "no eligible workers")
		}

		best := s.bestCandidate(fingerprint, candidates)
		ok, err := s.registry.ReserveSlot(best.ID)
		if err != nil {
			lastErr = rchapi.Wrap(rchapi.ReasonNoWorkersAvailable, best.ID, err)
			continue
		}
		if !ok {
			// Another build reserved the last slot between Eligible() and
			// ReserveSlot(); retry selection from the current state.
			continue
		}

		b := s.registry.Breaker(best.ID)
		if b != nil && !b.Allow() {
			_ = s.registry.ReleaseSlot(best.ID)
			lastErr = rchapi.New(rchapi.ReasonNoWorkersAvailable, "half-open trial budget exhausted for "+best.ID)
			continue
		}
		return best.ID, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", rchapi.New(rchapi.ReasonNoWorkersAvailable, "selection retries exhausted")
}

// eligibleForSelection applies the scheduler-level HalfOpen admission cap
// (spec's "at most N concurrent probe builds" rule) on top of the
// registry's own breaker-budget filter in Eligible.
func (s *Scheduler) eligibleForSelection() []worker.Candidate {
	candidates := s.registry.Eligible()
	out := make([]worker.Candidate, 0, len(candidates))
	for _, c := range candidates {
		b := s.registry.Breaker(c.ID)
		if b == nil {
			continue
		}
		snap := b.Snapshot()
		if snap.State == rchapi.HalfOpen && snap.HalfOpenInFlight >= s.cfg.HalfOpenConcurrentProbes {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *Scheduler) bestCandidate(fingerprint string, candidates []worker.Candidate) worker.Candidate {
	affinityWorker, _ := s.affinity.Load(fingerprint)

	best := candidates[0]
	bestScore := s.score(affinityWorker, best)
	for _, c := range candidates[1:] {
		sc := s.score(affinityWorker, c)
		if sc > bestScore || (sc == bestScore && s.tieBreakWins(c, best)) {
			best, bestScore = c, sc
		}
	}
	return best
}

func (s *Scheduler) score(affinityWorker string, c worker.Candidate) float64 {
	slotRatio := 0.0
	if c.Capacity > 0 {
		slotRatio = float64(c.AvailableSlots) / float64(c.Capacity)
	}

	speed := 0.0
	if c.LatencyP50 > 0 {
		speed = 1.0 / c.LatencyP50.Seconds()
	}

	affinity := 0.0
	if affinityWorker != "" && affinityWorker == c.ID {
		affinity = 1.0
	}

	w := s.cfg.Weights
	return w.SlotWeight*slotRatio + w.SpeedWeight*speed + w.CacheWeight*affinity
}

// tieBreakWins reports whether candidate beats incumbent on priority, then
// latency, then stable hash of worker id — applied only when their scores
// are exactly equal.
func (s *Scheduler) tieBreakWins(candidate, incumbent worker.Candidate) bool {
	if candidate.Priority != incumbent.Priority {
		return candidate.Priority > incumbent.Priority
	}
	if candidate.LatencyP50 != incumbent.LatencyP50 {
		return candidate.LatencyP50 < incumbent.LatencyP50
	}
	return worker.StableHash(candidate.ID) < worker.StableHash(incumbent.ID)
}
