package shell_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/rchlabs/rch/internal/shell"
)

func TestRunAndCaptureStdout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sh := newShellForTest(t)

	got, err := sh.Command("echo", "hello worker").RunAndCaptureStdout(ctx)
	if err != nil {
		t.Fatalf(`sh.Command("echo", "hello worker").RunAndCaptureStdout(ctx) error = %v`, err)
	}
	if want := "hello worker"; got != want {
		t.Errorf(`RunAndCaptureStdout() = %q, want %q`, got, want)
	}
}

func TestRunAndCaptureWithExitCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sh := newShellForTest(t)

	_, err := sh.Command("sh", "-c", "exit 24").RunAndCaptureStdout(ctx)
	if err == nil {
		t.Fatalf("sh.Command(exit 24).RunAndCaptureStdout(ctx) error = nil, want non-nil error")
	}

	if got, want := shell.ExitCode(err), 24; got != want {
		t.Errorf("shell.ExitCode(%v) = %d, want %d", err, got, want)
	}
}

func TestRunWithStdin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	out := &bytes.Buffer{}
	sh := newShellForTest(t, shell.WithStdout(out))
	cmd := sh.CloneWithStdin(strings.NewReader("hello stdin")).Command("tr", "hs", "HS")
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf(`sh.CloneWithStdin(...).Command("tr", "hs", "HS").Run(ctx) error = %v`, err)
	}
	if got, want := out.String(), "Hello Stdin"; want != got {
		t.Errorf(`sh.CloneWithStdin(...).Command("tr", "hs", "HS") output = %q, want %q`, got, want)
	}
}

func TestContextCancelTerminates(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("not supported on windows")
	}

	sh := newShellForTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sh.Command("sleep", "60").Run(ctx)
	if err == nil {
		t.Errorf("sh.Command(sleep 60).Run(cancelled ctx) error = nil, want non-nil error")
	}
}

func TestInterrupt(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("not supported on windows")
	}

	sh := newShellForTest(t)
	ctx := context.Background()

	go func() {
		<-time.After(50 * time.Millisecond)
		sh.Interrupt() //nolint:errcheck // best-effort signal in test
	}()

	if err := sh.Command("sleep", "10").Run(ctx); err == nil {
		t.Errorf("sh.Command(sleep 10).Run(ctx) error = nil, want non-nil error")
	}
}

func TestDefaultWorkingDirFromSystem(t *testing.T) {
	t.Parallel()

	sh, err := shell.New()
	if err != nil {
		t.Fatalf("shell.New() error = %v", err)
	}

	want, err := os.Getwd()
	if err != nil {
		t.Fatalf("os.Getwd() error = %v", err)
	}
	if got := sh.Getwd(); got != want {
		t.Fatalf("sh.Getwd() = %q, want %q", got, want)
	}
}

func TestWorkingDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tempDir := t.TempDir()

	// macOS has a symlinked temp dir.
	if runtime.GOOS == "darwin" {
		td, err := filepath.EvalSymlinks(tempDir)
		if err != nil {
			t.Fatalf("filepath.EvalSymlinks(tempDir) error = %v", err)
		}
		tempDir = td
	}

	dirs := []string{tempDir, "my", "test", "dirs"}
	if err := os.MkdirAll(filepath.Join(dirs...), 0o700); err != nil {
		t.Fatalf("os.MkdirAll(dirs, 0o700) = %v", err)
	}

	sh := newShellForTest(t)

	for idx := range dirs {
		dir := filepath.Join(dirs[:idx+1]...)

		if err := sh.Chdir(dir); err != nil {
			t.Fatalf("sh.Chdir(%q) = %v", dir, err)
		}
		if got, want := sh.Getwd(), dir; got != want {
			t.Fatalf("sh.Getwd() = %q, want %q", got, want)
		}

		pwd, err := sh.Command("pwd").RunAndCaptureStdout(ctx)
		if err != nil {
			t.Fatalf("sh.Command(pwd).RunAndCaptureStdout(ctx) error = %v", err)
		}
		if got, want := pwd, dir; got != want {
			t.Fatalf("sh.Command(pwd).RunAndCaptureStdout(ctx) = %q, want %q", got, want)
		}
	}
}

func newShellForTest(t *testing.T, opts ...shell.NewShellOpt) *shell.Shell {
	t.Helper()

	opts = append([]shell.NewShellOpt{
		shell.WithLogger(shell.DiscardLogger),
		shell.WithStdout(os.Stdout),
	}, opts...)

	sh, err := shell.New(opts...)
	if err != nil {
		t.Fatalf("shell.New() error = %v", err)
	}
	return sh
}
