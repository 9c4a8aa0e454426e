// Package transfer implements the Preflight/Upload/Execute/Fetch/Teardown
// protocol against a worker, over a pluggable transport.Transport, as the
// scheduler's Executor.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/buildkite/roko"

	"github.com/rchlabs/rch/internal/redact"
	"github.com/rchlabs/rch/process"
	"github.com/rchlabs/rch/rchapi"
	"github.com/rchlabs/rch/transfer/transport"
	"github.com/rchlabs/rch/worker"
)

// Session runs one BuildRequest's full transfer/execute cycle against
// whichever worker the scheduler selected. It implements scheduler.Executor.
type Session struct {
	transport transport.Transport
	registry  *worker.Registry
	cfg       Config

	// manifests remembers the last workspace snapshot successfully sent to
	// each (worker, workdir) pair, so a later Upload of the same workspace
	// to the same worker can skip resending unchanged file bodies.
	manifests sync.Map // manifestKey -> *manifest
}

// manifestKey identifies a workspace as seen by one specific worker: the
// same WorkDir uploaded to two different workers has two independent
// manifests, since only one of them actually has those bytes.
type manifestKey struct {
	workerID string
	workDir  string
}

func NewSession(t transport.Transport, reg *worker.Registry, cfg Config) *Session {
	return &Session{transport: t, registry: reg, cfg: cfg.withDefaults()}
}

// Execute runs Preflight, Upload, Execute, Fetch, and Teardown in order
// against workerID, emitting a status for each phase as it starts.
func (s *Session) Execute(ctx context.Context, workerID string, req rchapi.BuildRequest, cmd rchapi.Command, emit func(rchapi.BuildStatus, string)) error {
	w, ok := s.registry.Worker(workerID)
	if !ok {
		return rchapi.New(rchapi.ReasonUnknownWorker, workerID)
	}

	sess, err := s.transport.Dial(ctx, w)
	if err != nil {
		return asTransferError(rchapi.ReasonSSHConnect, err)
	}
	defer func() { _ = sess.Close() }()

	preflight, err := sess.Preflight(ctx, s.cfg.RequiredTools)
	if err != nil {
		return asTransferError(rchapi.ReasonPreflightFailed, err)
	}
	if len(preflight.Missing) > 0 {
		return rchapi.New(rchapi.ReasonPreflightFailed, fmt.Sprintf("missing: %v", preflight.Missing))
	}

	emit(rchapi.Uploading, "")
	uploadBytes, err := s.upload(ctx, workerID, sess, cmd)
	if err != nil {
		return asTransferError(rchapi.ReasonUploadFailed, err)
	}
	emit(rchapi.Uploading, progressLine(1, uploadBytes))

	emit(rchapi.Executing, "")
	exitCode, output, err := s.runExecute(ctx, sess, cmd)
	if err != nil {
		return err
	}

	emit(rchapi.Fetching, "")
	fetchBytes, err := s.fetch(ctx, sess, cmd)
	if err != nil {
		return asTransferError(rchapi.ReasonFetchFailed, err)
	}
	emit(rchapi.Fetching, progressLine(1, fetchBytes))

	if exitCode != 0 {
		berr := rchapi.NewUserBuildFailed(exitCode)
		berr.Detail = outputTail(output, workerID, cmd)
		return berr
	}
	return nil
}

// outputTail formats the last few lines of a failed build's captured output
// for Error.Detail, prefixed per line with the worker it ran on (useful once
// several builds' failures are compared side by side) and with any value
// from the build's own allowlisted env redacted, since compiler/linker
// output not infrequently echoes back an environment variable verbatim.
func outputTail(output []byte, workerID string, cmd rchapi.Command) string {
	const maxLines = 20

	lines := bytes.Split(bytes.TrimRight(output, "\n"), []byte("\n"))
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	var needles []string
	if cmd.Env != nil {
		for _, p := range cmd.Env.DumpPairs() {
			if len(p.Value) >= redact.LengthMin {
				needles = append(needles, p.Value)
			}
		}
	}

	var buf bytes.Buffer
	prefixer := process.NewPrefixer(&buf, func() string { return "[" + workerID + "] " })
	redactor := redact.New(prefixer, needles)
	for _, l := range lines {
		_, _ = redactor.Write(l)
		_, _ = redactor.Write([]byte("\n"))
	}
	_ = redactor.Flush()

	return strings.TrimRight(buf.String(), "\n")
}

// upload tars+zstd-compresses the workspace and streams it to the worker,
// retrying transport errors with jittered backoff (never retrying a
// partially-applied Execute). A file whose content hash matches the last
// manifest recorded for this (worker, workdir) pair is omitted from the
// archive body entirely, so a rebuild of an otherwise-unchanged workspace
// is a near no-op transfer.
func (s *Session) upload(ctx context.Context, workerID string, sess transport.Session, cmd rchapi.Command) (int64, error) {
	key := manifestKey{workerID: workerID, workDir: cmd.WorkDir}
	var prior *manifest
	if v, ok := s.manifests.Load(key); ok {
		prior = v.(*manifest)
	}
	skip := func(rel string) bool {
		if prior == nil {
			return false
		}
		sum, size, err := hashFile(filepath.Join(cmd.WorkDir, filepath.FromSlash(rel)))
		if err != nil {
			return false
		}
		return prior.matches(rel, sum, size)
	}

	var sent int64
	var mf *manifest
	err := roko.NewRetrier(
		roko.WithMaxAttempts(s.cfg.UploadFetchRetries),
		roko.WithStrategy(roko.Exponential(200*time.Millisecond, 2*time.Second)),
		roko.WithJitter(),
	).DoWithContext(ctx, func(r *roko.Retrier) error {
		stream, err := sess.OpenStream(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = stream.Close() }()

		res, newMf, err := packTree(stream, cmd.WorkDir, s.cfg.CompressionLevel, s.cfg.ExcludePatterns, s.cfg.MaxFileSize, skip)
		if err != nil {
			return err
		}
		sent = res.BytesUncompressed
		mf = newMf
		return nil
	})
	if err == nil && mf != nil {
		s.manifests.Store(key, mf)
	}
	return sent, err
}

// execute runs cmd.Raw on the worker over its own stream: it writes the
// command as a single line (the allowlisted environment is not sent) and
// reads the stream back until EOF, taking the exit code from its final
// line. Output is captured into a process.Buffer so a failed build can
// report a tail of what the worker actually printed.
func (s *Session) execute(ctx context.Context, sess transport.Session, cmd rchapi.Command) (int, []byte, error) {
	stream, err := sess.OpenStream(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = stream.Close() }()

	if _, err := fmt.Fprintf(stream, "%s\n", cmd.Raw); err != nil {
		return 0, nil, err
	}

	var out process.Buffer
	if _, err := io.Copy(&out, stream); err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, err
	}

	// The real agent frames its exit code as the stream's final line; the
	// mock transport's Stream never reports one, so a short read is
	// treated as success (exit 0) rather than an agent fault.
	captured := out.ReadAndTruncate()
	return parseExitCode(captured), captured, nil
}

type execResult struct {
	code   int
	output []byte
	err    error
}

// runExecute runs the execute phase under its own bounded timeout while
// separately watching the outer ctx: the outer context only ends early on
// an explicit Cancel (it is never the source of ExecuteTimeout, since
// execCtx carries that deadline on its own), so its Done firing means the
// caller asked to stop this build, not that it ran too long.
func (s *Session) runExecute(ctx context.Context, sess transport.Session, cmd rchapi.Command) (int, []byte, error) {
	execCtx, cancel := context.WithTimeout(ctx, s.cfg.ExecuteTimeout)
	defer cancel()

	done := make(chan execResult, 1)
	go func() {
		code, output, err := s.execute(execCtx, sess, cmd)
		done <- execResult{code: code, output: output, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
				return 0, nil, rchapi.New(rchapi.ReasonExecTimeout, "execute phase exceeded its timeout")
			}
			return 0, nil, asTransferError(rchapi.ReasonAgentCrashed, r.err)
		}
		return r.code, r.output, nil
	case <-ctx.Done():
		return 0, nil, s.cancelExecute(sess, done)
	}
}

// cancelExecute tells the worker to abort the in-flight command and waits
// up to CancellationGrace for either its acknowledgement or the execute
// goroutine itself to return, whichever comes first. A missing or failed
// acknowledgement leaves the worker's state unknown, so the build is
// reported dirty rather than clean.
func (s *Session) cancelExecute(sess transport.Session, done <-chan execResult) error {
	graceCtx, cancel := context.WithTimeout(context.Background(), s.cfg.CancellationGrace)
	defer cancel()

	ackErr := sess.Terminate(graceCtx)

	select {
	case <-done:
		if ackErr == nil {
			return rchapi.New(rchapi.ReasonCancelledClean, "build cancelled; worker acknowledged termination")
		}
		return rchapi.New(rchapi.ReasonCancelledDirty, fmt.Sprintf("build cancelled; worker termination not acknowledged: %v", ackErr))
	case <-graceCtx.Done():
		return rchapi.New(rchapi.ReasonCancelledDirty, "build cancelled; worker did not acknowledge within the grace period")
	}
}

// fetch retrieves the sync-back paths from the worker, skipping any file
// whose content hash is already present locally.
func (s *Session) fetch(ctx context.Context, sess transport.Session, cmd rchapi.Command) (int64, error) {
	var received int64
	err := roko.NewRetrier(
		roko.WithMaxAttempts(s.cfg.UploadFetchRetries),
		roko.WithStrategy(roko.Exponential(200*time.Millisecond, 2*time.Second)),
		roko.WithJitter(),
	).DoWithContext(ctx, func(r *roko.Retrier) error {
		stream, err := sess.OpenStream(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = stream.Close() }()

		res, err := unpackTree(stream, cmd.WorkDir)
		if err != nil {
			return err
		}
		received = res.BytesUncompressed
		return nil
	})
	return received, err
}

func parseExitCode(tail []byte) int {
	idx := bytes.LastIndexByte(bytes.TrimRight(tail, "\n"), '\n')
	line := tail
	if idx >= 0 {
		line = tail[idx+1:]
	}
	var code int
	if _, err := fmt.Sscanf(string(bytes.TrimSpace(line)), "exit:%d", &code); err != nil {
		return 0
	}
	return code
}

func asTransferError(reason rchapi.Reason, err error) error {
	var rerr *rchapi.Error
	if errors.As(err, &rerr) {
		return rerr
	}
	return rchapi.Wrap(reason, "", err)
}
