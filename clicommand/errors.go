package clicommand

import (
	"errors"
	"fmt"
	"os"

	"github.com/rchlabs/rch/rchapi"
)

// ExitError signals that the command should exit with the wrapped code,
// rather than the generic 1 any other error produces.
type ExitError struct {
	code  int
	inner error
}

func NewExitError(code int, err error) *ExitError {
	return &ExitError{code: code, inner: err}
}

func (e *ExitError) Code() int     { return e.code }
func (e *ExitError) Error() string { return e.inner.Error() }
func (e *ExitError) Unwrap() error { return e.inner }

func (e *ExitError) Is(target error) bool {
	t, ok := target.(*ExitError)
	return ok && e.code == t.code
}

// PrintMessageAndReturnExitCode prints err to stderr, preceded by "rch:
// fatal:", and returns the exit code rch/rchd should pass to os.Exit. A
// rchapi.Error's code is derived through rchapi.ExitCode; any other
// *ExitError's code is used directly; everything else is exit code 1.
func PrintMessageAndReturnExitCode(err error) int {
	if err == nil {
		return 0
	}

	fmt.Fprintf(os.Stderr, "rch: fatal: %s\n", err)

	var eerr *ExitError
	if errors.As(err, &eerr) {
		return eerr.Code()
	}

	var rerr *rchapi.Error
	if errors.As(err, &rerr) {
		return rchapi.ExitCode(err)
	}

	return 1
}
