// Package scheduler accepts classify/build/cancel/drain/status requests,
// dispatches classification inline, runs the worker-selection algorithm,
// and fans a BuildRequest's events out to every attached subscriber.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/rchlabs/rch/classifier"
	"github.com/rchlabs/rch/metrics"
	"github.com/rchlabs/rch/rchapi"
	"github.com/rchlabs/rch/status"
	"github.com/rchlabs/rch/worker"
)

// buildEntry is the in-flight state for one fingerprint: the BuildRequest
// it represents and every subscriber attached to its event stream.
type buildEntry struct {
	mu     sync.Mutex
	req    rchapi.BuildRequest
	subs   subscriberSet
	cancel context.CancelFunc
}

// Scheduler is the daemon's single stateful core: the worker registry, the
// fingerprint-keyed in-flight table, and the selection/admission policy.
// It owns no transport; Build's execution is delegated to an Executor.
type Scheduler struct {
	cfg        Config
	classifier *classifier.Classifier
	registry   *worker.Registry
	executor   Executor
	metrics    *metrics.Registry

	inFlight *xsync.MapOf[string, *buildEntry] // fingerprint -> entry
	byID     *xsync.MapOf[string, *buildEntry] // BuildRequest id -> entry
	affinity *xsync.MapOf[string, string]       // fingerprint -> last successful worker id
}

func New(cfg Config, cl *classifier.Classifier, reg *worker.Registry, exec Executor, mreg *metrics.Registry) *Scheduler {
	return &Scheduler{
		cfg:        cfg.withDefaults(),
		classifier: cl,
		registry:   reg,
		executor:   exec,
		metrics:    mreg,
		inFlight:   xsync.NewMapOf[string, *buildEntry](),
		byID:       xsync.NewMapOf[string, *buildEntry](),
		affinity:   xsync.NewMapOf[string, string](),
	}
}

// Classify runs the classifier inline; it never errors (see classifier.Classify).
func (s *Scheduler) Classify(cmd rchapi.Command) rchapi.Classification {
	return s.classifier.Classify(cmd)
}

// Build admits cmd as a new BuildRequest, or attaches the caller to an
// already in-flight build sharing the same fingerprint. The returned
// channel delivers Queued through a terminal status; it is closed once the
// terminal event has been sent. A non-nil error means admission was
// refused: a command not classified as a compilation is refused with a nil
// channel, while a refusal for want of an eligible worker comes after
// Queued, with a channel that carries Queued and then Failed.
func (s *Scheduler) Build(ctx context.Context, cmd rchapi.Command, allowLocalFallback bool) (string, <-chan Event, error) {
	ctx, setStatus, doneStatus := status.AddSimpleItem(ctx, "build")
	setStatus("queued")

	classification := s.classifier.Classify(cmd)
	if classification.Verdict != rchapi.Compilation {
		doneStatus()
		return "", nil, rchapi.New(rchapi.ReasonAdmissionDenied, "command not classified as a compilation")
	}

	fp := rchapi.Fingerprint(cmd)

	candidate := &buildEntry{}
	entry, loaded := s.inFlight.LoadOrStore(fp, candidate)
	if loaded {
		if s.metrics != nil {
			s.metrics.DedupAttached.Inc()
		}
		entry.mu.Lock()
		ch := entry.subs.attach()
		reqID := entry.req.ID
		entry.mu.Unlock()
		return reqID, ch, nil
	}

	reqID := uuid.NewString()
	entry = candidate
	entry.mu.Lock()
	entry.req = rchapi.BuildRequest{
		ID:             reqID,
		Classification: classification,
		Fingerprint:    fp,
		Status:         rchapi.Queued,
		CreatedAt:      time.Now(),
	}
	ch := entry.subs.attach()
	entry.mu.Unlock()
	s.byID.Store(reqID, entry)

	if s.metrics != nil {
		s.metrics.InFlightBuilds.Inc()
	}
	s.publish(entry, rchapi.Queued, "", "")

	workerID, err := s.selectWorker(fp)
	if err != nil {
		s.teardown(fp, reqID)
		var rerr *rchapi.Error
		if allowLocalFallback {
			if s.metrics != nil {
				s.metrics.AdmissionDenied.WithLabelValues("no_workers").Inc()
			}
			s.publish(entry, rchapi.Failed, "", rchapi.ReasonAdmissionDenied)
			entry.subs.closeAll()
			doneStatus()
			return reqID, ch, rchapi.New(rchapi.ReasonAdmissionDenied, "no eligible workers; local fallback permitted")
		}
		reason := rchapi.ReasonNoWorkersAvailable
		if errors.As(err, &rerr) {
			reason = rerr.Reason
		}
		s.publish(entry, rchapi.Failed, "", reason)
		entry.subs.closeAll()
		doneStatus()
		return reqID, ch, err
	}

	entry.mu.Lock()
	entry.req.WorkerID = workerID
	entry.req.Status = rchapi.Selected
	entry.mu.Unlock()
	s.publish(entry, rchapi.Selected, workerID, "")
	setStatus("selected:" + workerID)

	buildCtx, cancel := context.WithTimeout(ctx, s.cfg.BuildTimeout)
	entry.mu.Lock()
	entry.cancel = cancel
	entry.mu.Unlock()

	go s.run(buildCtx, cancel, fp, entry, cmd, doneStatus)

	return reqID, ch, nil
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, fp string, e *buildEntry, cmd rchapi.Command, doneStatus func()) {
	defer cancel()
	defer doneStatus()

	e.mu.Lock()
	req := e.req
	e.mu.Unlock()

	emit := func(st rchapi.BuildStatus, detail string) {
		e.mu.Lock()
		e.req.Status = st
		e.mu.Unlock()
		s.publishDetail(e, st, req.WorkerID, "", detail)
	}

	err := s.executor.Execute(ctx, req.WorkerID, req, cmd, emit)

	status, outcome, reason, workerFault := rchapi.Completed, "completed", rchapi.Reason(""), false
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.Canceled):
		status, outcome = rchapi.Cancelled, "cancelled"
		reason = rchapi.ReasonCancelledDirty
		var rerr *rchapi.Error
		if errors.As(err, &rerr) && (rerr.Reason == rchapi.ReasonCancelledClean || rerr.Reason == rchapi.ReasonCancelledDirty) {
			reason = rerr.Reason
		}
		workerFault = reason.WorkerFault()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		status, outcome, reason, workerFault = rchapi.Failed, "failed", rchapi.ReasonExecTimeout, true
	default:
		status, outcome = rchapi.Failed, "failed"
		var rerr *rchapi.Error
		if errors.As(err, &rerr) {
			reason, workerFault = rerr.Reason, rerr.Reason.WorkerFault()
		} else {
			reason, workerFault = rchapi.ReasonAgentCrashed, true
		}
	}

	_ = s.registry.RecordOutcome(req.WorkerID, workerFault)
	_ = s.registry.ReleaseSlot(req.WorkerID)

	if status == rchapi.Completed {
		s.affinity.Store(fp, req.WorkerID)
	}

	if s.metrics != nil {
		s.metrics.BuildsTotal.WithLabelValues(outcome).Inc()
		s.metrics.InFlightBuilds.Dec()
	}

	s.teardown(fp, req.ID)
	s.publish(e, status, req.WorkerID, reason)
	e.subs.closeAll()
}

// Cancel requests termination of an in-flight BuildRequest. Once the build
// has reached a terminal status its id is no longer known, and Cancel
// returns a ReasonUnknownRequest error.
func (s *Scheduler) Cancel(buildID string) error {
	e, ok := s.byID.Load(buildID)
	if !ok {
		return rchapi.New(rchapi.ReasonUnknownRequest, buildID)
	}
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel == nil {
		return rchapi.New(rchapi.ReasonUnknownRequest, "build has no cancellable executor attached yet")
	}
	cancel()
	return nil
}

// Drain marks a worker draining: its breaker trips Open so no new
// BuildRequest is admitted to it, while anything already running there
// finishes normally.
func (s *Scheduler) Drain(workerID string) error {
	if err := s.registry.Drain(workerID); err != nil {
		return rchapi.Wrap(rchapi.ReasonUnknownWorker, workerID, err)
	}
	return nil
}

// Status returns the daemon-wide activity snapshot for the `status` operation.
func (s *Scheduler) Status() status.Snapshot {
	return status.Current()
}

func (s *Scheduler) teardown(fp, reqID string) {
	s.inFlight.Delete(fp)
	s.byID.Delete(reqID)
}

func (s *Scheduler) publish(e *buildEntry, st rchapi.BuildStatus, workerID string, reason rchapi.Reason) {
	s.publishDetail(e, st, workerID, reason, "")
}

// publishDetail is publish plus the free-form progress line an Executor may
// attach to an Uploading/Fetching transition (see transfer.Session.Execute's
// emit callback); detail never carries anything sourced from a worker's
// command or environment, so it needs no redaction before reaching a client.
func (s *Scheduler) publishDetail(e *buildEntry, st rchapi.BuildStatus, workerID string, reason rchapi.Reason, detail string) {
	e.mu.Lock()
	reqID := e.req.ID
	e.mu.Unlock()
	e.subs.publish(Event{
		BuildRequestID: reqID,
		Status:         st,
		WorkerID:       workerID,
		Detail:         detail,
		Reason:         reason,
		At:             time.Now(),
	})
}
