package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tickervault/tickervault/internal/core"
)

type memoryStateStore struct {
	state *core.LimiterState
	saves int
}

func (m *memoryStateStore) LoadState() (*core.LimiterState, error) {
	return m.state, nil
}

func (m *memoryStateStore) SaveState(state *core.LimiterState) error {
	m.saves++
	clone := state.Clone()
	m.state = &clone
	return nil
}

func noop(context.Context) error { return nil }

func newTestLimiter(t *testing.T, store *memoryStateStore, now *time.Time) *Limiter {
	t.Helper()
	limiter, err := Open(store, func() time.Time { return *now })
	require.NoError(t, err)
	return limiter
}

func TestOpenFresh(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)

	state := limiter.Snapshot()
	require.Empty(t, state.Limits)
	require.Empty(t, state.Usage)
	require.Equal(t, now, state.Latest)
	require.Zero(t, limiter.CooldownSeconds())
}

func TestOpenInitializesUsageForLimits(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	store := &memoryStateStore{state: &core.LimiterState{
		Limits: map[core.TimeUnit]int{core.UnitDay: 800, core.UnitMinute: 8},
		Usage:  map[core.TimeUnit]int{core.UnitDay: 12},
		Latest: now.Add(-time.Hour),
	}}

	limiter := newTestLimiter(t, store, &now)

	used, ok := limiter.Usage(core.UnitDay)
	require.True(t, ok)
	require.Equal(t, 12, used)

	// minute is limited but had no persisted counter, so it starts at zero
	used, ok = limiter.Usage(core.UnitMinute)
	require.True(t, ok)
	require.Zero(t, used)

	// usage is only tracked for limited units
	_, ok = limiter.Usage(core.UnitHour)
	require.False(t, ok)
}

func TestOpenRejectsInvalidPersistedLimit(t *testing.T) {
	now := time.Now().UTC()
	store := &memoryStateStore{state: &core.LimiterState{
		Limits: map[core.TimeUnit]int{core.UnitDay: 0},
	}}

	_, err := Open(store, func() time.Time { return now })
	require.ErrorIs(t, err, ErrInvalidLimit)
}

func TestSetLimitWritesThrough(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	store := &memoryStateStore{}
	limiter := newTestLimiter(t, store, &now)

	require.NoError(t, limiter.SetLimit(core.UnitDay, 800))
	require.Equal(t, 1, store.saves)
	require.Equal(t, 800, store.state.Limits[core.UnitDay])
	require.Contains(t, store.state.Usage, core.UnitDay)

	require.ErrorIs(t, limiter.SetLimit(core.UnitDay, 0), ErrInvalidLimit)
	require.Equal(t, 1, store.saves, "rejected limit must not persist")
}

func TestApplyLimitsSkipsInvalid(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	store := &memoryStateStore{}
	limiter := newTestLimiter(t, store, &now)

	rejected, err := limiter.ApplyLimits(map[core.TimeUnit]int{
		core.UnitDay:    800,
		core.UnitMinute: -1,
	})
	require.NoError(t, err)
	require.Equal(t, []core.TimeUnit{core.UnitMinute}, rejected)

	_, ok := limiter.Limit(core.UnitMinute)
	require.False(t, ok)
	max, ok := limiter.Limit(core.UnitDay)
	require.True(t, ok)
	require.Equal(t, 800, max)
}

func TestInvokeIncrementsEveryTrackedUnit(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitDay, 800))
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 8))

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Invoke(context.Background(), noop))
		now = now.Add(time.Second) // stay inside the minute window
	}

	state := limiter.Snapshot()
	require.Equal(t, 3, state.Usage[core.UnitDay])
	require.Equal(t, 3, state.Usage[core.UnitMinute])
	require.Equal(t, now.Add(-time.Second), state.Latest)
}

func TestCooldownSecondsAtLimit(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 2))

	require.Zero(t, limiter.CooldownSeconds())
	require.NoError(t, limiter.Invoke(context.Background(), noop))
	require.Zero(t, limiter.CooldownSeconds())
	require.NoError(t, limiter.Invoke(context.Background(), noop))

	// latest is 13:45:07, so the minute rolls over 53 seconds later
	require.InDelta(t, 53.0, limiter.CooldownSeconds(), 1e-9)
}

func TestCooldownUsesCoarsestExhaustedUnit(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitDay, 1))
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 1))

	require.NoError(t, limiter.Invoke(context.Background(), noop))

	// both units are exhausted; the day window wins because it is coarser
	wantSeconds := time.Date(2025, time.June, 19, 0, 0, 0, 0, time.UTC).Sub(now).Seconds()
	require.InDelta(t, wantSeconds, limiter.CooldownSeconds(), 1e-9)
}

func TestCooldownMonthBoundaryLeapYear(t *testing.T) {
	now := time.Date(2024, time.February, 10, 6, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitMonth, 1))

	require.NoError(t, limiter.Invoke(context.Background(), noop))

	wantSeconds := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC).Sub(now).Seconds()
	require.InDelta(t, wantSeconds, limiter.CooldownSeconds(), 1e-9)
}

func TestRolloverResetsUnitAndFiner(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitDay, 800))
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 8))

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Invoke(context.Background(), noop))
	}

	// crossing only the minute boundary resets minute, not day
	now = now.Add(2 * time.Minute)
	require.NoError(t, limiter.Invoke(context.Background(), noop))

	state := limiter.Snapshot()
	require.Equal(t, 6, state.Usage[core.UnitDay])
	require.Equal(t, 1, state.Usage[core.UnitMinute], "reset then increment")

	// crossing the day boundary resets day and minute alike
	now = now.Add(24 * time.Hour)
	require.NoError(t, limiter.Invoke(context.Background(), noop))

	state = limiter.Snapshot()
	require.Equal(t, 1, state.Usage[core.UnitDay])
	require.Equal(t, 1, state.Usage[core.UnitMinute])
}

func TestRolloverAtCoarsestUnit(t *testing.T) {
	now := time.Date(2025, time.December, 31, 23, 59, 59, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitYear, 1000))

	require.NoError(t, limiter.Invoke(context.Background(), noop))

	now = time.Date(2026, time.January, 1, 0, 0, 1, 0, time.UTC)
	require.NoError(t, limiter.Invoke(context.Background(), noop))

	used, _ := limiter.Usage(core.UnitYear)
	require.Equal(t, 1, used)
}

func TestMinuteLimitExample(t *testing.T) {
	// LIMITS = {minute: 2}: two calls pass with zero cooldown, the third
	// must wait out the remainder of the minute.
	now := time.Date(2025, time.June, 18, 13, 45, 0, 0, time.UTC)
	limiter := newTestLimiter(t, &memoryStateStore{}, &now)
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 2))

	for i := 0; i < 2; i++ {
		require.Zero(t, limiter.CooldownSeconds())
		require.NoError(t, limiter.Invoke(context.Background(), noop))
		now = now.Add(5 * time.Second)
	}

	cooldown := limiter.CooldownSeconds()
	require.Greater(t, cooldown, 0.0)
	require.LessOrEqual(t, cooldown, 60.0)
}

func TestInvokeFailureFlushesWithoutIncrement(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	store := &memoryStateStore{}
	limiter := newTestLimiter(t, store, &now)
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 8))
	require.NoError(t, limiter.Invoke(context.Background(), noop))

	savesBefore := store.saves
	opErr := errors.New("boom")

	err := limiter.Invoke(context.Background(), func(context.Context) error { return opErr })
	require.ErrorIs(t, err, opErr)
	require.Equal(t, savesBefore+1, store.saves, "failure must flush state")

	used, _ := limiter.Usage(core.UnitMinute)
	require.Equal(t, 1, used, "failed operation must not be counted")
	require.Equal(t, 1, store.state.Usage[core.UnitMinute])
}

func TestResetUsage(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	store := &memoryStateStore{}
	limiter := newTestLimiter(t, store, &now)
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 2))
	require.NoError(t, limiter.Invoke(context.Background(), noop))
	require.NoError(t, limiter.Invoke(context.Background(), noop))
	require.Greater(t, limiter.CooldownSeconds(), 0.0)

	require.NoError(t, limiter.ResetUsage())

	used, _ := limiter.Usage(core.UnitMinute)
	require.Zero(t, used)
	require.Zero(t, limiter.CooldownSeconds())
	require.Zero(t, store.state.Usage[core.UnitMinute], "reset must persist")
	require.Equal(t, now, store.state.Latest, "reset keeps the operation time")
}

func TestCloseFlushes(t *testing.T) {
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	store := &memoryStateStore{}
	limiter := newTestLimiter(t, store, &now)
	require.NoError(t, limiter.SetLimit(core.UnitDay, 10))
	require.NoError(t, limiter.Invoke(context.Background(), noop))

	require.NoError(t, limiter.Close())
	require.Equal(t, 1, store.state.Usage[core.UnitDay])
	require.Equal(t, now, store.state.Latest)
}
