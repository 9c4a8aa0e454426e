package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rchlabs/rch/rchapi"
	"github.com/rchlabs/rch/transfer/transport"
	"github.com/rchlabs/rch/worker"
)

func testRegistry(t *testing.T, id string) *worker.Registry {
	t.Helper()
	workers := []rchapi.Worker{{ID: id, Host: id, Port: 22, User: "build", Capacity: 1, Priority: 1}}
	reg := worker.NewRegistry(workers, worker.DefaultBreakerConfig(), nil)
	require.NoError(t, reg.UpdateHealth(id, rchapi.Up, time.Millisecond, time.Now()))
	return reg
}

func TestSessionExecuteHappyPath(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "main.c"), []byte("int main(){}"), 0o644))

	reg := testRegistry(t, "w1")
	mock := transport.NewMock(1)
	sess := NewSession(mock, reg, DefaultConfig())

	req := rchapi.BuildRequest{ID: "req-1", WorkerID: "w1"}
	cmd := rchapi.Command{Raw: "cc -c main.c -o main.o", WorkDir: workDir}

	var statuses []rchapi.BuildStatus
	emit := func(st rchapi.BuildStatus, detail string) { statuses = append(statuses, st) }

	err := sess.Execute(context.Background(), "w1", req, cmd, emit)
	require.NoError(t, err)
	assert.Contains(t, statuses, rchapi.Uploading)
	assert.Contains(t, statuses, rchapi.Executing)
	assert.Contains(t, statuses, rchapi.Fetching)
}

func TestSessionExecuteUnknownWorker(t *testing.T) {
	reg := testRegistry(t, "w1")
	sess := NewSession(transport.NewMock(1), reg, DefaultConfig())

	err := sess.Execute(context.Background(), "ghost", rchapi.BuildRequest{}, rchapi.Command{WorkDir: t.TempDir()}, func(rchapi.BuildStatus, string) {})
	require.Error(t, err)
	var rerr *rchapi.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, rchapi.ReasonUnknownWorker, rerr.Reason)
}

func TestSessionExecutePreflightFailure(t *testing.T) {
	reg := testRegistry(t, "w1")
	mock := transport.NewMock(1)
	mock.PreflightFunc = func(w rchapi.Worker, tools []string) (transport.PreflightResult, error) {
		return transport.PreflightResult{Missing: []string{"tar"}}, nil
	}
	sess := NewSession(mock, reg, DefaultConfig())

	err := sess.Execute(context.Background(), "w1", rchapi.BuildRequest{}, rchapi.Command{WorkDir: t.TempDir()}, func(rchapi.BuildStatus, string) {})
	require.Error(t, err)
	var rerr *rchapi.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, rchapi.ReasonPreflightFailed, rerr.Reason)
}

func TestProberReportsFreeSlots(t *testing.T) {
	reg := testRegistry(t, "w1")
	w, _ := reg.Worker("w1")
	p := Prober{Transport: transport.NewMock(3)}

	slots, err := p.Probe(context.Background(), w, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, slots)
}
