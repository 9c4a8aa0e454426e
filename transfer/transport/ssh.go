package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/hashicorp/yamux"
	"golang.org/x/crypto/ssh"

	"github.com/rchlabs/rch/rchapi"
)

// SSH dials one golang.org/x/crypto/ssh client connection per Dial call and
// multiplexes every Preflight/Upload/Execute/Fetch sub-stream of that
// session over it with hashicorp/yamux, rather than opening a new SSH
// channel per phase.
type SSH struct {
	// Signer authenticates to every worker; a single daemon identity.
	Signer  ssh.Signer
	Timeout time.Duration

	// HostKeyCallback validates the worker's host key. Defaults to
	// ssh.InsecureIgnoreHostKey if left nil, which callers should only do
	// in development.
	HostKeyCallback ssh.HostKeyCallback
}

func (t *SSH) Dial(ctx context.Context, w rchapi.Worker) (Session, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hostKeyCallback := t.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	cfg := &ssh.ClientConfig{
		User:            w.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(t.Signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}

	addr := fmt.Sprintf("%s:%d", w.Host, w.Port)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, rchapi.Wrap(rchapi.ReasonSSHAuth, w.ID, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		_ = client.Close()
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, "session open failed", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, "stdin pipe failed", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, "stdout pipe failed", err)
	}

	// The worker agent is invoked with a single fixed argv; it speaks the
	// yamux framing on stdin/stdout from the moment it starts.
	if err := session.Start("rch-agent --mux"); err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, "agent start failed", err)
	}

	muxConn := &stdioConn{in: stdin, out: stdout, closer: session}
	yamuxCfg := yamux.DefaultConfig()
	yamuxSession, err := yamux.Client(muxConn, yamuxCfg)
	if err != nil {
		_ = session.Close()
		_ = client.Close()
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, "yamux handshake failed", err)
	}

	return &sshSession{yamux: yamuxSession, sshSession: session, client: client}, nil
}

type sshSession struct {
	yamux      *yamux.Session
	sshSession *ssh.Session
	client     *ssh.Client
}

func (s *sshSession) Preflight(ctx context.Context, requiredTools []string) (PreflightResult, error) {
	stream, err := s.OpenStream(ctx)
	if err != nil {
		return PreflightResult{}, err
	}
	defer func() { _ = stream.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		if c, ok := stream.(interface{ SetDeadline(time.Time) error }); ok {
			_ = c.SetDeadline(deadline)
		}
	}

	if err := json.NewEncoder(stream).Encode(preflightRequest{RequiredTools: requiredTools}); err != nil {
		return PreflightResult{}, rchapi.Wrap(rchapi.ReasonPreflightFailed, "request encode failed", err)
	}

	var resp PreflightResult
	if err := json.NewDecoder(stream).Decode(&resp); err != nil {
		return PreflightResult{}, rchapi.Wrap(rchapi.ReasonPreflightFailed, "response decode failed", err)
	}
	return resp, nil
}

func (s *sshSession) OpenStream(ctx context.Context) (Stream, error) {
	stream, err := s.yamux.Open()
	if err != nil {
		return nil, rchapi.Wrap(rchapi.ReasonSSHConnect, "yamux stream open failed", err)
	}
	return stream, nil
}

// Terminate opens a dedicated control stream and asks the agent to abort
// whatever it is currently running for this session, waiting for a one-line
// acknowledgement within ctx's deadline. A read error or timeout here means
// the agent's state is unknown, so the caller must treat it as dirty.
func (s *sshSession) Terminate(ctx context.Context) error {
	stream, err := s.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stream.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		if c, ok := stream.(interface{ SetDeadline(time.Time) error }); ok {
			_ = c.SetDeadline(deadline)
		}
	}

	if _, err := stream.Write([]byte("cancel\n")); err != nil {
		return rchapi.Wrap(rchapi.ReasonCancelledDirty, "cancel request failed", err)
	}

	ack := make([]byte, 3)
	if _, err := io.ReadFull(stream, ack); err != nil {
		return rchapi.Wrap(rchapi.ReasonCancelledDirty, "cancel acknowledgement not received", err)
	}
	if string(ack) != "ok\n" {
		return rchapi.New(rchapi.ReasonCancelledDirty, fmt.Sprintf("unexpected cancel acknowledgement %q", ack))
	}
	return nil
}

func (s *sshSession) Close() error {
	_ = s.yamux.Close()
	_ = s.sshSession.Close()
	return s.client.Close()
}

type preflightRequest struct {
	RequiredTools []string `json:"required_tools"`
}

// stdioConn adapts an SSH session's stdin/stdout pipes into the
// io.ReadWriteCloser yamux.Client needs to run its framing over, since an
// SSH Session is not itself a net.Conn.
type stdioConn struct {
	in     io.WriteCloser
	out    io.Reader
	closer io.Closer
}

func (c *stdioConn) Read(p []byte) (int, error)  { return c.out.Read(p) }
func (c *stdioConn) Write(p []byte) (int, error) { return c.in.Write(p) }
func (c *stdioConn) Close() error {
	_ = c.in.Close()
	return c.closer.Close()
}
