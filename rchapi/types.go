// Package rchapi holds the wire and in-process types shared by the
// classifier, scheduler, worker registry, and transfer layer: commands,
// classifications, worker records, and the build lifecycle.
package rchapi

import (
	"time"

	"github.com/rchlabs/rch/env"
)

// Verdict is the outcome of classifying a Command.
type Verdict int

const (
	LocalReject Verdict = iota
	RemoteCandidate
	Compilation
)

func (v Verdict) String() string {
	switch v {
	case LocalReject:
		return "local_reject"
	case RemoteCandidate:
		return "remote_candidate"
	case Compilation:
		return "compilation"
	default:
		return "unknown"
	}
}

// Tier identifies which classifier tier produced a decisive result.
type Tier int

const (
	TierNegativeKeyword Tier = iota
	TierPositiveKeyword
	TierShellParse
	TierHeuristic
	TierLearnedModel
)

// Command is the immutable input to the classifier.
type Command struct {
	Raw          string
	WorkDir      string
	ToolchainTag string
	// Env is an allowlisted snapshot; see env.Environment.Allowlist.
	Env *env.Environment
}

// Classification is the classifier's output for one Command. It carries no
// reference back to the Command it was produced from.
type Classification struct {
	Verdict    Verdict
	Tier       Tier
	Confidence float64
	Reason     string
}

// Availability is the health state of a Worker.
type Availability int

const (
	Up Availability = iota
	Draining
	Down
)

func (a Availability) String() string {
	switch a {
	case Up:
		return "up"
	case Draining:
		return "draining"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Worker is a registered remote build machine. It is created at daemon
// start from configuration and never mutated by the request path; it is
// retired only on config reload.
type Worker struct {
	ID       string
	Host     string
	Port     int
	User     string
	Capacity int
	Tags     []string
	Priority int
}

// WorkerHealth is the 1:1 health companion of a Worker, mutated only by the
// health loop and circuit transitions.
type WorkerHealth struct {
	Availability       Availability
	LastProbe          time.Time
	LatencyP50         time.Duration
	ConsecutiveFailure int
	AvailableSlots     int
}

// CircuitState is one of the breaker's three states.
type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker is the 1:1 breaker companion of a Worker.
type CircuitBreaker struct {
	State            CircuitState
	FailureThreshold int
	ResetDeadline    time.Time
	HalfOpenBudget   int
	HalfOpenInFlight int
}

// Phase is a TransferSession's current phase.
type Phase int

const (
	PhaseUpload Phase = iota
	PhaseExecute
	PhaseFetch
)

func (p Phase) String() string {
	switch p {
	case PhaseUpload:
		return "upload"
	case PhaseExecute:
		return "execute"
	case PhaseFetch:
		return "fetch"
	default:
		return "unknown"
	}
}

// BuildStatus is a BuildRequest's terminal or in-flight status.
type BuildStatus int

const (
	Queued BuildStatus = iota
	Selected
	Uploading
	Executing
	Fetching
	Completed
	Failed
	Cancelled
)

func (s BuildStatus) String() string {
	switch s {
	case Queued:
		return "queued"
	case Selected:
		return "selected"
	case Uploading:
		return "uploading"
	case Executing:
		return "executing"
	case Fetching:
		return "fetching"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// BuildRequest is one admitted-or-pending remote build, from admission to
// terminal event. It is bound to at most one Worker for its lifetime;
// reassignment requires a new BuildRequest id.
type BuildRequest struct {
	ID             string
	Classification Classification
	Fingerprint    string
	WorkerID       string
	Status         BuildStatus
	CreatedAt      time.Time
}

// TransferSession is 1:1 with a BuildRequest while that request's transfer
// is active.
type TransferSession struct {
	BuildRequestID   string
	WorkerID         string
	BytesTransferred int64
	FilesTransferred int
	CompressedBytes  int64
	Phase            Phase
}

// DecisionLatencySample is one append-only sample into the classifier's
// decision-latency histogram.
type DecisionLatencySample struct {
	Elapsed time.Duration
	Class   Verdict
}

// Fingerprint computes the dedup key for a build: a hash over the
// normalised command, workspace root, toolchain tag, and allowlisted
// environment. Identical fingerprints share one in-flight execution.
func Fingerprint(cmd Command) string {
	return fingerprint(cmd)
}
