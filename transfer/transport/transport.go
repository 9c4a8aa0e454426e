// Package transport defines the capability set a worker transport backend
// exposes (dial, preflight, open a sub-stream, close) and ships two
// implementations: SSH, multiplexed over one connection with yamux, and an
// in-process Mock for tests and the daemon's own self-checks.
package transport

import (
	"context"
	"io"

	"github.com/rchlabs/rch/rchapi"
)

// PreflightResult is the worker agent's self-report, gathered before any
// workspace bytes move.
type PreflightResult struct {
	AgentVersion  string
	FreeDiskBytes int64
	FreeSlots     int
	Missing       []string
}

// Stream is one multiplexed sub-channel of a Session: Upload, Execute, and
// Fetch each open their own so Upload never shares bytes with Execute,
// while Execute's stdout/stderr stream and its own control traffic overlap
// cleanly on separate streams.
type Stream interface {
	io.ReadWriteCloser
}

// Transport opens sessions to workers. SSH and Mock both
// implement it; the daemon selects one per worker at start, per the
// "dynamic dispatch over a capability set" design.
type Transport interface {
	Dial(ctx context.Context, w rchapi.Worker) (Session, error)
}

// Session is one multiplexed connection to a single worker, alive for the
// duration of a TransferSession.
type Session interface {
	Preflight(ctx context.Context, requiredTools []string) (PreflightResult, error)
	OpenStream(ctx context.Context) (Stream, error)
	// Terminate asks the worker agent to stop whatever it is currently
	// executing for this session. It returns nil once the agent
	// acknowledges, or an error (including ctx's own deadline) if no
	// acknowledgement arrives in time; the caller treats a non-nil error
	// as a dirty cancellation.
	Terminate(ctx context.Context) error
	Close() error
}
