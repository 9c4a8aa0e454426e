package worker

import (
	"testing"
	"time"

	"github.com/rchlabs/rch/rchapi"
	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAfterThreshold(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 5, ResetTimeout: time.Minute, HalfOpenBudget: 3})

	for i := 0; i < 4; i++ {
		assert.True(t, b.Allow())
		b.RecordFailure()
		assert.Equal(t, rchapi.Closed, b.State())
	}

	assert.True(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, rchapi.Open, b.State())

	assert.False(t, b.Allow(), "Open admits no new builds")
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Millisecond, HalfOpenBudget: 3})

	b.Allow()
	b.RecordFailure()
	assert.Equal(t, rchapi.Open, b.State())

	time.Sleep(15 * time.Millisecond)
	assert.Equal(t, rchapi.HalfOpen, b.State())
}

func TestBreakerHalfOpenBudgetBounded(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Nanosecond, HalfOpenBudget: 2})
	b.Allow()
	b.RecordFailure()
	time.Sleep(time.Millisecond)
	assert.Equal(t, rchapi.HalfOpen, b.State())

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	assert.False(t, b.Allow(), "third concurrent half-open trial exceeds the budget")
}

func TestBreakerHalfOpenAllSucceedClosesCircuit(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Nanosecond, HalfOpenBudget: 2})
	b.Allow()
	b.RecordFailure()
	time.Sleep(time.Millisecond)
	b.State() // trigger recovery to HalfOpen

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	b.RecordSuccess()
	b.RecordSuccess()

	assert.Equal(t, rchapi.Closed, b.State())
}

func TestBreakerHalfOpenAnyFailureReopens(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Nanosecond, HalfOpenBudget: 2})
	b.Allow()
	b.RecordFailure()
	time.Sleep(time.Millisecond)
	b.State()

	assert.True(t, b.Allow())
	assert.True(t, b.Allow())
	b.RecordSuccess()
	b.RecordFailure()

	assert.Equal(t, rchapi.Open, b.State())
}

func TestBreakerExplicitReset(t *testing.T) {
	t.Parallel()

	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour, HalfOpenBudget: 1})
	b.Allow()
	b.RecordFailure()
	assert.Equal(t, rchapi.Open, b.State())

	b.Reset()
	assert.Equal(t, rchapi.Closed, b.State())
	assert.True(t, b.Allow())
}
