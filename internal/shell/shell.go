// Package shell provides a small cross-platform command execution
// abstraction: a virtual shell with its own working directory and
// environment.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rchlabs/rch/env"
	"github.com/rchlabs/rch/logger"
	"github.com/rchlabs/rch/process"
)

// ErrShellNotStarted is returned when the shell has not started a process.
var ErrShellNotStarted = errors.New("shell not started")

// Shell represents a virtual shell: it tracks a working directory, an
// environment, and the currently (or most recently) running process.
type Shell struct {
	Logger

	// The running environment for the shell.
	Env *env.Environment

	// If set, the command arg vectors are appended to the slice as they are
	// executed (or would be executed, in dry-run mode).
	commandLog *[][]string

	// Whether to run the shell in debug mode.
	debug bool

	// Whether to actually execute commands.
	dryRun bool

	// The signal to use to interrupt the process.
	interruptSignal process.Signal

	// The currently-running or last-run process.
	proc atomic.Pointer[process.Process]

	// Whether to allocate a PTY for the child process.
	pty bool

	// Amount of time to wait between sending the InterruptSignal and SIGKILL.
	signalGracePeriod time.Duration

	// stdin is an optional input stream used by Run() and friends.
	stdin io.Reader

	// Where stdout (and usually stderr) of the process is written.
	// Defaults to [os.Stdout].
	stdout io.Writer

	// Current working directory that shell commands get executed in.
	wd string
}

type NewShellOpt = func(*Shell)

func WithCommandLog(log *[][]string) NewShellOpt { return func(s *Shell) { s.commandLog = log } }
func WithDebug(d bool) NewShellOpt               { return func(s *Shell) { s.debug = d } }
func WithDryRun(d bool) NewShellOpt              { return func(s *Shell) { s.dryRun = d } }
func WithEnv(e *env.Environment) NewShellOpt     { return func(s *Shell) { s.Env = e } }
func WithLogger(l Logger) NewShellOpt            { return func(s *Shell) { s.Logger = l } }
func WithPTY(pty bool) NewShellOpt               { return func(s *Shell) { s.pty = pty } }
func WithStdout(w io.Writer) NewShellOpt         { return func(s *Shell) { s.stdout = w } }
func WithWD(wd string) NewShellOpt               { return func(s *Shell) { s.wd = wd } }

func WithInterruptSignal(sig process.Signal) NewShellOpt {
	return func(s *Shell) { s.interruptSignal = sig }
}

func WithSignalGracePeriod(d time.Duration) NewShellOpt {
	return func(s *Shell) { s.signalGracePeriod = d }
}

// New returns a new Shell. The default stdout is [os.Stdout], the default
// logger writes to [os.Stderr], the initial working directory is the result
// of calling [os.Getwd], and the default environment variable set is read
// from [os.Environ].
func New(opts ...NewShellOpt) (*Shell, error) {
	shell := &Shell{}

	for _, opt := range opts {
		opt(shell)
	}

	if shell.Logger == nil {
		shell.Logger = &WriterLogger{Writer: os.Stderr, Ansi: true}
	}
	if shell.Env == nil {
		shell.Env = env.FromSlice(os.Environ())
	}
	if shell.stdout == nil {
		shell.stdout = os.Stdout
	}
	if shell.wd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to find current working directory: %w", err)
		}
		shell.wd = wd
	}

	return shell, nil
}

// CloneWithStdin returns a copy of the Shell with the provided [io.Reader] set
// as the Stdin for the next command. The copy should be discarded after one
// command.
func (s *Shell) CloneWithStdin(r io.Reader) *Shell {
	// Can't copy struct like `newsh := *s` because atomics can't be copied.
	return &Shell{
		Logger:            s.Logger,
		Env:               s.Env,
		stdin:             r,
		stdout:            s.stdout,
		wd:                s.wd,
		interruptSignal:   s.interruptSignal,
		signalGracePeriod: s.signalGracePeriod,
	}
}

// Getwd returns the current working directory of the shell.
func (s *Shell) Getwd() string {
	return s.wd
}

// Chdir changes the working directory of the shell.
func (s *Shell) Chdir(path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.wd, path)
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to change working directory: directory does not exist")
	}

	s.wd = path
	return nil
}

// AbsolutePath returns the absolute path to an executable based on the PATH
// and PATHEXT of the Shell.
func (s *Shell) AbsolutePath(executable string) (string, error) {
	if path.IsAbs(executable) {
		return executable, nil
	}

	envPath, _ := s.Env.Get("PATH")
	fileExtensions, _ := s.Env.Get("PATHEXT")

	absolutePath, err := LookPath(executable, envPath, fileExtensions)
	if err != nil {
		return "", err
	}

	return filepath.Abs(absolutePath)
}

// Interrupt interrupts the running process, if there is one.
func (s *Shell) Interrupt() error { return s.proc.Load().Interrupt() }

// Terminate terminates the running process, if there is one.
func (s *Shell) Terminate() error { return s.proc.Load().Terminate() }

// WaitStatus returns the status of the shell's process.
//
// The shell must have started at least one process.
func (s *Shell) WaitStatus() (process.WaitStatus, error) {
	p := s.proc.Load()
	if p == nil {
		return nil, ErrShellNotStarted
	}
	return p.WaitStatus(), nil
}

// Command represents a command that can be run in a shell.
type Command struct {
	shell   *Shell
	command string
	args    []string
}

// Command returns a command that can be run in the shell.
func (s *Shell) Command(command string, args ...string) Command {
	return Command{
		shell:   s,
		command: command,
		args:    args,
	}
}

// Run runs the command and waits for it to complete.
func (c Command) Run(ctx context.Context, opts ...RunCommandOpt) error {
	cfg := runConfig{
		showStderr: true,
	}
	for _, o := range opts {
		o(&cfg)
	}

	cmdCfg, err := c.shell.buildCommand(c.command, c.args...)
	if err != nil {
		c.shell.Errorf("error building command: %v", err)
		return err
	}

	if cfg.extraEnv != nil {
		environ := env.FromSlice(cmdCfg.Env)
		environ.Merge(cfg.extraEnv)
		cmdCfg.Env = environ.ToSlice()
	}

	pty := c.shell.pty
	stdout := c.shell.stdout

	if cfg.captureStdout != nil {
		pty = false
		sb := new(strings.Builder)
		stdout = sb
		defer func() { *cfg.captureStdout = strings.TrimSpace(sb.String()) }()
	}

	stderr := c.shell.stdout
	if !cfg.showStderr {
		stderr = io.Discard
	}

	return c.shell.executeCommand(ctx, cmdCfg, stdout, stderr, pty)
}

// RunAndCaptureStdout is Run, but automatically captures and returns stdout
// instead of writing it to the shell's configured stdout.
func (c Command) RunAndCaptureStdout(ctx context.Context, opts ...RunCommandOpt) (string, error) {
	var capture string
	opts = append(opts, CaptureStdout(&capture))
	err := c.Run(ctx, opts...)
	return capture, err
}

type runConfig struct {
	captureStdout *string
	showStderr    bool
	extraEnv      *env.Environment
}

// RunCommandOpt is the type of functional options that can be passed to
// Command.Run.
type RunCommandOpt = func(*runConfig)

// CaptureStdout captures the entire stdout stream to a string instead of the
// shell's stdout. By default, it is not captured.
func CaptureStdout(s *string) RunCommandOpt { return func(c *runConfig) { c.captureStdout = s } }

// ShowStderr can be used to hide stderr from the shell's stdout. By default,
// it is enabled.
func ShowStderr(show bool) RunCommandOpt { return func(c *runConfig) { c.showStderr = show } }

// WithExtraEnv can be used to set additional env vars for this run.
func WithExtraEnv(e *env.Environment) RunCommandOpt { return func(c *runConfig) { c.extraEnv = e } }

// buildCommand returns a command config that can later be executed.
func (s *Shell) buildCommand(name string, arg ...string) (process.Config, error) {
	// Always use absolute path: some platforms struggle to find executables
	// relative to an arbitrary working directory.
	absPath, err := s.AbsolutePath(name)
	if err != nil {
		return process.Config{}, err
	}

	return process.Config{
		Path:              absPath,
		Args:              arg,
		Env:               append(s.Env.ToSlice(), "PWD="+s.wd),
		Stdin:             s.stdin,
		Dir:               s.wd,
		InterruptSignal:   s.interruptSignal,
		SignalGracePeriod: s.signalGracePeriod,
	}, nil
}

// executeCommand executes a command.
//
// To ignore an output stream, use either nil or io.Discard:
//
//	s.executeCommand(ctx, cmd, nil, nil, pty)
//	s.executeCommand(ctx, cmd, writer, nil, pty)
//	s.executeCommand(ctx, cmd, writer, writer, pty)
//
// Note that if pty = true, only the stdout writer will be used.
func (s *Shell) executeCommand(ctx context.Context, cmdCfg process.Config, stdout, stderr io.Writer, pty bool) error {
	if s.debug {
		t := time.Now()
		defer func() {
			s.Commentf("command completed in %v", time.Since(t).Round(time.Microsecond))
		}()
	}

	cmdCfg.PTY = pty
	cmdCfg.Stdout = stdout
	cmdCfg.Stderr = stderr

	if cmdCfg.Stdout == nil {
		cmdCfg.Stdout = io.Discard
	}
	if cmdCfg.Stderr == nil {
		cmdCfg.Stderr = io.Discard
	}

	processLogger := logger.Logger(logger.Discard)

	if s.commandLog != nil {
		*s.commandLog = append(*s.commandLog,
			append([]string{cmdCfg.Path}, cmdCfg.Args...),
		)
	}

	if s.dryRun {
		return nil
	}

	p := process.New(processLogger, cmdCfg)
	s.proc.Store(p)

	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("error running %q: %w", strings.Join(append([]string{cmdCfg.Path}, cmdCfg.Args...), " "), err)
	}

	return p.WaitResult()
}

// ExitCode extracts an exit code from an error where the platform supports
// it, otherwise returns 0 for no error and 1 for an error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if cause := new(ExitError); errors.As(err, &cause) {
		return cause.Code
	}

	if cause := new(exec.ExitError); errors.As(err, &cause) {
		return cause.ExitCode()
	}
	return 1
}

// IsExitError reports whether err is an [ExitError] or [exec.ExitError].
func IsExitError(err error) bool {
	if cause := new(ExitError); errors.As(err, &cause) {
		return true
	}
	if cause := new(exec.ExitError); errors.As(err, &cause) {
		return true
	}
	return false
}

// ExitError is an error that carries a shell exit code.
type ExitError struct {
	Code int
	Err  error
}

func (ee *ExitError) Error() string { return ee.Err.Error() }

func (ee *ExitError) Unwrap() error { return ee.Err }
