package scheduler

import (
	"context"

	"github.com/rchlabs/rch/rchapi"
)

// Executor runs one admitted BuildRequest's transfer/execute/fetch cycle
// against the chosen worker, reporting phase transitions through emit as
// they happen. It returns nil on a successful build (including a
// zero-compiler-exit one) and an *rchapi.Error otherwise; a non-zero
// compiler exit is reported as ReasonUserBuildFailed, which is not a
// worker fault. Implementations live in transfer (real SSH transport and
// an in-process mock).
type Executor interface {
	Execute(ctx context.Context, workerID string, req rchapi.BuildRequest, cmd rchapi.Command, emit func(status rchapi.BuildStatus, detail string)) error
}
