package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rchlabs/rch/rchapi"
)

// Mock is an in-process Transport with no network or subprocess of its
// own: OpenStream hands back an in-memory pipe, and Preflight always
// reports success unless configured otherwise. It exists for the daemon's
// own tests and for a worker-less "dry run" mode; real command execution
// happens in the mock Stream's consumer (transfer.Session), not here.
type Mock struct {
	mu sync.Mutex

	// PreflightFunc, when set, overrides the default always-succeeds
	// preflight response.
	PreflightFunc func(w rchapi.Worker, requiredTools []string) (PreflightResult, error)

	// FreeSlots is reported by Probe (via the default PreflightFunc) when
	// PreflightFunc is nil.
	FreeSlots int

	// TerminateFunc, when set, overrides the default instant clean
	// acknowledgement a mock session gives on Terminate; tests use it to
	// simulate a worker that never acks a cancellation.
	TerminateFunc func(w rchapi.Worker) error

	dialErr error
}

// NewMock returns a Mock that preflights successfully and reports
// freeSlots free capacity until SetDialError changes that.
func NewMock(freeSlots int) *Mock {
	return &Mock{FreeSlots: freeSlots}
}

// SetDialError makes every subsequent Dial fail with err; used to exercise
// worker-fault paths in tests.
func (m *Mock) SetDialError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialErr = err
}

func (m *Mock) Dial(ctx context.Context, w rchapi.Worker) (Session, error) {
	m.mu.Lock()
	err := m.dialErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &mockSession{mock: m, worker: w}, nil
}

type mockSession struct {
	mock   *Mock
	worker rchapi.Worker
}

func (s *mockSession) Preflight(ctx context.Context, requiredTools []string) (PreflightResult, error) {
	if s.mock.PreflightFunc != nil {
		return s.mock.PreflightFunc(s.worker, requiredTools)
	}
	return PreflightResult{AgentVersion: "mock", FreeDiskBytes: 1 << 30, FreeSlots: s.mock.FreeSlots}, nil
}

func (s *mockSession) OpenStream(ctx context.Context) (Stream, error) {
	return &mockStream{}, nil
}

// Terminate acknowledges cleanly by default; set mock.TerminateFunc to
// simulate a worker that fails or never acks a cancellation.
func (s *mockSession) Terminate(ctx context.Context) error {
	if s.mock.TerminateFunc != nil {
		return s.mock.TerminateFunc(s.worker)
	}
	return nil
}

func (s *mockSession) Close() error { return nil }

// mockStream is a plain in-memory byte sink: there is no second party on
// the other end, so a Read simply drains whatever has been Written so far
// and reports io.EOF once empty, rather than blocking for more.
type mockStream struct {
	buf    bytes.Buffer
	closed bool
	mu     sync.Mutex
}

func (s *mockStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf.Len() == 0 {
		return 0, io.EOF
	}
	return s.buf.Read(p)
}

func (s *mockStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("mock stream closed")
	}
	return s.buf.Write(p)
}

func (s *mockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
