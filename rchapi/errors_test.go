package rchapi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonWorkerFault(t *testing.T) {
	t.Parallel()

	assert.True(t, ReasonSSHAuth.WorkerFault())
	assert.True(t, ReasonAgentCrashed.WorkerFault())
	assert.False(t, ReasonUserBuildFailed.WorkerFault(), "a non-zero compiler exit is not a worker fault")
	assert.False(t, ReasonAdmissionDenied.WorkerFault())
}

func TestErrorIs(t *testing.T) {
	t.Parallel()

	a := New(ReasonSSHConnect, "dial tcp: timeout")
	b := New(ReasonSSHConnect, "a different detail")
	c := New(ReasonSSHAuth, "")

	assert.True(t, errors.Is(a, b), "errors with the same reason should match")
	assert.False(t, errors.Is(a, c))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"no workers", New(ReasonNoWorkersAvailable, ""), 102},
		{"all circuits open", New(ReasonAllCircuitsOpen, ""), 102},
		{"invalid config", New(ReasonInvalidConfig, ""), 78},
		{"too long", New(ReasonTooLong, ""), 64},
		{"user build failed", NewUserBuildFailed(2), 2},
		{"unmapped reason", New(ReasonAgentCrashed, ""), 1},
		{"non-taxonomy error", errors.New("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestUserBuildFailedNotSwallowedByWrap(t *testing.T) {
	t.Parallel()

	err := NewUserBuildFailed(1)
	assert.Contains(t, err.Error(), "exit code 1")
}
