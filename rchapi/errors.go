package rchapi

import (
	"errors"
	"fmt"
)

// Reason is a stable error reason code. Every error the core subsystems
// return carries one, plus a short remediation hint.
type Reason string

const (
	// Classifier: non-fatal, always resolve to LocalReject.
	ReasonMalformedInput Reason = "malformed_input"
	ReasonTooLong        Reason = "too_long"
	ReasonClassifierBug  Reason = "classifier_bug"

	// Admission.
	ReasonNoWorkersAvailable Reason = "no_workers_available"
	ReasonAllCircuitsOpen    Reason = "all_circuits_open"
	ReasonAdmissionDenied    Reason = "admission_denied"
	ReasonUnknownRequest     Reason = "unknown_request"
	ReasonUnknownWorker      Reason = "unknown_worker"

	// Transport.
	ReasonSSHConnect      Reason = "ssh_connect"
	ReasonSSHAuth         Reason = "ssh_auth"
	ReasonTimeout         Reason = "timeout"
	ReasonPreflightFailed Reason = "preflight_failed"

	// Execution.
	ReasonUserBuildFailed Reason = "user_build_failed"
	ReasonAgentCrashed    Reason = "agent_crashed"
	ReasonExecTimeout     Reason = "exec_timeout"

	// Session.
	ReasonUploadFailed    Reason = "upload_failed"
	ReasonFetchFailed     Reason = "fetch_failed"
	ReasonCancelledClean  Reason = "cancelled_clean"
	ReasonCancelledDirty  Reason = "cancelled_dirty"

	// Configuration.
	ReasonInvalidConfig Reason = "invalid_config"
	ReasonMissingConfig Reason = "missing_config"
)

// WorkerFault reports whether a Reason counts toward a worker's
// consecutive-failure threshold. UserBuildFailed is the one execution
// outcome that is explicitly not a worker's fault.
func (r Reason) WorkerFault() bool {
	switch r {
	case ReasonSSHConnect, ReasonSSHAuth, ReasonTimeout, ReasonPreflightFailed,
		ReasonAgentCrashed, ReasonExecTimeout, ReasonUploadFailed,
		ReasonFetchFailed, ReasonCancelledDirty:
		return true
	default:
		return false
	}
}

// remediation gives a short human hint per reason code.
var remediation = map[Reason]string{
	ReasonMalformedInput:     "check the command is valid UTF-8 shell input",
	ReasonTooLong:            "shorten the command or split it into multiple invocations",
	ReasonClassifierBug:      "report this with the offending command; it was locally rejected out of caution",
	ReasonNoWorkersAvailable: "no worker has a free slot; the command ran locally instead",
	ReasonAllCircuitsOpen:    "every configured worker's circuit is open; wait for the reset timeout or reset manually",
	ReasonAdmissionDenied:    "the daemon declined to admit this build; it ran locally instead",
	ReasonUnknownRequest:     "the build request id is unrecognised; it may have already completed",
	ReasonUnknownWorker:      "the worker id is not configured",
	ReasonSSHConnect:         "check the worker's host/port and network reachability",
	ReasonSSHAuth:            "check SSH key material and the worker's authorized_keys",
	ReasonTimeout:            "the operation did not complete within its deadline",
	ReasonPreflightFailed:    "the worker is missing a required tool or has insufficient disk",
	ReasonUserBuildFailed:    "the remote build exited non-zero; this is not a worker problem",
	ReasonAgentCrashed:       "the worker agent terminated unexpectedly mid-session",
	ReasonExecTimeout:        "the build exceeded its per-build execute timeout",
	ReasonUploadFailed:       "workspace upload failed after exhausting retries",
	ReasonFetchFailed:        "artifact fetch failed after exhausting retries",
	ReasonCancelledClean:     "the build was cancelled and the worker acknowledged cleanly",
	ReasonCancelledDirty:     "the build was cancelled but the worker did not acknowledge within grace",
	ReasonInvalidConfig:      "check the configuration value's type and allowed range",
	ReasonMissingConfig:      "a required configuration option was not set",
}

// Error is the taxonomy member every core subsystem returns. It always
// carries a Reason and, for UserBuildFailed, the remote exit code.
type Error struct {
	Reason   Reason
	ExitCode int
	Detail   string
	inner    error
}

func New(reason Reason, detail string) *Error {
	return &Error{Reason: reason, Detail: detail}
}

func Wrap(reason Reason, detail string, err error) *Error {
	return &Error{Reason: reason, Detail: detail, inner: err}
}

// NewUserBuildFailed builds the one execution outcome that is explicitly
// not a worker fault: the remote compiler or build tool exited non-zero.
func NewUserBuildFailed(exitCode int) *Error {
	return &Error{Reason: ReasonUserBuildFailed, ExitCode: exitCode}
}

func (e *Error) Error() string {
	hint := remediation[e.Reason]
	switch {
	case e.Reason == ReasonUserBuildFailed:
		return fmt.Sprintf("user_build_failed: exit code %d", e.ExitCode)
	case e.Detail != "" && e.inner != nil:
		return fmt.Sprintf("%s: %s: %v (%s)", e.Reason, e.Detail, e.inner, hint)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Detail, hint)
	case e.inner != nil:
		return fmt.Sprintf("%s: %v (%s)", e.Reason, e.inner, hint)
	default:
		return fmt.Sprintf("%s (%s)", e.Reason, hint)
	}
}

func (e *Error) Unwrap() error { return e.inner }

func (e *Error) Is(target error) bool {
	t := new(Error)
	if !errors.As(target, &t) {
		return false
	}
	return e.Reason == t.Reason
}

// Remediation returns the stored hint text for a Reason.
func Remediation(r Reason) string { return remediation[r] }

// ExitCode is the code the client CLI surfaces to the shell for a given
// error, per the daemon's external exit code table. A nil error maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	rerr := new(Error)
	if !errors.As(err, &rerr) {
		return 1
	}

	switch rerr.Reason {
	case ReasonInvalidConfig, ReasonMissingConfig:
		return 78
	case ReasonNoWorkersAvailable, ReasonAllCircuitsOpen:
		return 102
	case ReasonMalformedInput, ReasonTooLong:
		return 64
	case ReasonUserBuildFailed:
		return rerr.ExitCode
	default:
		return 1
	}
}
