package worker

import (
	"testing"
	"time"

	"github.com/rchlabs/rch/rchapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkers() []rchapi.Worker {
	return []rchapi.Worker{
		{ID: "w1", Host: "h1", Port: 22, User: "build", Capacity: 2, Priority: 1},
		{ID: "w2", Host: "h2", Port: 22, User: "build", Capacity: 4, Priority: 2},
	}
}

func upBreakerCfg() BreakerConfig {
	return BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute, HalfOpenBudget: 2}
}

func TestEligibleExcludesDownAndFullWorkers(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)

	assert.Empty(t, r.Eligible(), "freshly registered workers start Down")

	require.NoError(t, r.UpdateHealth("w1", rchapi.Up, time.Millisecond, time.Now()))
	require.NoError(t, r.UpdateHealth("w2", rchapi.Up, time.Millisecond, time.Now()))

	elig := r.Eligible()
	assert.Len(t, elig, 2)

	ok, err := r.ReserveSlot("w1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.ReserveSlot("w1")
	require.NoError(t, err)
	assert.True(t, ok)

	elig = r.Eligible()
	assert.Len(t, elig, 1, "w1 has no available slots left")
	assert.Equal(t, "w2", elig[0].ID)
}

func TestReserveAndReleaseSlotRoundTrip(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)

	ok, err := r.ReserveSlot("w1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveSlot("w1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveSlot("w1")
	require.NoError(t, err)
	assert.False(t, ok, "capacity 2 is exhausted")

	require.NoError(t, r.ReleaseSlot("w1"))
	ok, err = r.ReserveSlot("w1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveSlotUnknownWorker(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	_, err := r.ReserveSlot("ghost")
	assert.ErrorIs(t, err, ErrUnknownWorker)
}

func TestRecordOutcomeTripsBreakerAndExcludesFromEligible(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	require.NoError(t, r.UpdateHealth("w1", rchapi.Up, time.Millisecond, time.Now()))
	require.NoError(t, r.UpdateHealth("w2", rchapi.Up, time.Millisecond, time.Now()))

	for i := 0; i < 3; i++ {
		require.NoError(t, r.RecordOutcome("w1", true))
	}

	b := r.Breaker("w1")
	require.NotNil(t, b)
	assert.Equal(t, rchapi.Open, b.State())

	elig := r.Eligible()
	assert.Len(t, elig, 1)
	assert.Equal(t, "w2", elig[0].ID)
}

func TestRecordOutcomeSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	require.NoError(t, r.RecordOutcome("w1", true))
	require.NoError(t, r.RecordOutcome("w1", true))
	require.NoError(t, r.RecordOutcome("w1", false))

	health, ok := r.Health("w1")
	require.True(t, ok)
	assert.Equal(t, 0, health.ConsecutiveFailure)
	assert.Equal(t, rchapi.Closed, r.Breaker("w1").State())
}

func TestDrainTripsBreakerAndMarksDraining(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	require.NoError(t, r.UpdateHealth("w1", rchapi.Up, time.Millisecond, time.Now()))

	require.NoError(t, r.Drain("w1"))

	health, ok := r.Health("w1")
	require.True(t, ok)
	assert.Equal(t, rchapi.Draining, health.Availability)
	assert.Equal(t, rchapi.Open, r.Breaker("w1").State())
	assert.Empty(t, r.Eligible())
}

func TestResetBreakerRestoresUpAndClosed(t *testing.T) {
	t.Parallel()

	r := NewRegistry(testWorkers(), upBreakerCfg(), nil)
	require.NoError(t, r.Drain("w1"))
	require.NoError(t, r.ResetBreaker("w1"))

	health, ok := r.Health("w1")
	require.True(t, ok)
	assert.Equal(t, rchapi.Up, health.Availability)
	assert.Equal(t, rchapi.Closed, r.Breaker("w1").State())
}

func TestStableHashDeterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StableHash("w1"), StableHash("w1"))
	assert.NotEqual(t, StableHash("w1"), StableHash("w2"))
}
