package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tickervault/tickervault/internal/core"
	"github.com/tickervault/tickervault/internal/core/engine"
)

func stateFilePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "limits.yaml")
}

func TestStateFileMissingReturnsNil(t *testing.T) {
	f := &StateFile{Path: stateFilePath(t)}

	state, err := f.LoadState()
	require.NoError(t, err)
	require.Nil(t, state)
}

func TestStateFileRoundTrip(t *testing.T) {
	f := &StateFile{Path: stateFilePath(t)}
	latest := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)

	in := &core.LimiterState{
		Limits: map[core.TimeUnit]int{core.UnitDay: 800, core.UnitMinute: 8},
		Usage:  map[core.TimeUnit]int{core.UnitDay: 12, core.UnitMinute: 3},
		Latest: latest,
	}
	require.NoError(t, f.SaveState(in))

	out, err := f.LoadState()
	require.NoError(t, err)
	require.Equal(t, in.Limits, out.Limits)
	require.Equal(t, in.Usage, out.Usage)
	require.Equal(t, latest, out.Latest)
}

func TestStateFileSkipsUnknownUsageKeys(t *testing.T) {
	path := stateFilePath(t)
	doc := "limits:\n" +
		"  minute: \"8\"\n" +
		"usage:\n" +
		"  minute: \"3\"\n" +
		"  fortnight: \"2\"\n" +
		"  hour: \"7\"\n" +
		"  latest_time: \"2025-06-18T13:45:07Z\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	f := &StateFile{Path: path}
	state, err := f.LoadState()
	require.NoError(t, err)

	// fortnight is not a unit; hour has no limit so its usage is dropped
	require.Equal(t, map[core.TimeUnit]int{core.UnitMinute: 3}, state.Usage)
	require.Equal(t, time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC), state.Latest)
}

func TestStateFileSkipsNonIntegerUsage(t *testing.T) {
	path := stateFilePath(t)
	doc := "limits:\n  minute: \"8\"\nusage:\n  minute: \"many\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	f := &StateFile{Path: path}
	state, err := f.LoadState()
	require.NoError(t, err)
	require.Empty(t, state.Usage)
	require.Equal(t, map[core.TimeUnit]int{core.UnitMinute: 8}, state.Limits)
}

func TestStateFileUnknownLimitUnitIsFatal(t *testing.T) {
	path := stateFilePath(t)
	doc := "limits:\n  fortnight: \"10\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	f := &StateFile{Path: path}
	_, err := f.LoadState()
	require.ErrorIs(t, err, ErrUnknownUnit)
}

func TestStateFileNonIntegerLimitIsFatal(t *testing.T) {
	path := stateFilePath(t)
	doc := "limits:\n  minute: \"lots\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	f := &StateFile{Path: path}
	_, err := f.LoadState()
	require.Error(t, err)
}

func TestStateFileAtomicWriteLeavesNoTemp(t *testing.T) {
	path := stateFilePath(t)
	f := &StateFile{Path: path}

	require.NoError(t, f.SaveState(&core.LimiterState{
		Limits: map[core.TimeUnit]int{core.UnitDay: 1},
		Usage:  map[core.TimeUnit]int{core.UnitDay: 0},
		Latest: time.Now().UTC(),
	}))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestLimiterPersistReloadRoundTrip(t *testing.T) {
	path := stateFilePath(t)
	now := time.Date(2025, time.June, 18, 13, 45, 7, 0, time.UTC)
	clock := func() time.Time { return now }

	limiter, err := engine.Open(&StateFile{Path: path}, clock)
	require.NoError(t, err)
	require.NoError(t, limiter.SetLimit(core.UnitDay, 800))
	require.NoError(t, limiter.SetLimit(core.UnitMinute, 8))

	for i := 0; i < 4; i++ {
		require.NoError(t, limiter.Invoke(context.Background(), func(context.Context) error { return nil }))
	}
	require.NoError(t, limiter.Close())

	reloaded, err := engine.Open(&StateFile{Path: path}, clock)
	require.NoError(t, err)

	state := reloaded.Snapshot()
	require.Equal(t, 4, state.Usage[core.UnitDay])
	require.Equal(t, 4, state.Usage[core.UnitMinute])
	require.Equal(t, now, state.Latest)
}
