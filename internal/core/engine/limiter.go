// Package engine implements the calendar-window rate limiter. A limiter
// tracks usage counters for every limited unit of time (year through
// second), rolls counters over when wall-clock time crosses a unit
// boundary, and persists its state so quotas survive process restarts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tickervault/tickervault/internal/core"
)

// StateStore persists limiter state. LoadState returns (nil, nil) when no
// state has been persisted yet.
type StateStore interface {
	LoadState() (*core.LimiterState, error)
	SaveState(state *core.LimiterState) error
}

// ErrInvalidLimit reports a rejected limit value.
var ErrInvalidLimit = errors.New("limit must be a positive integer")

// Limiter owns exclusive, unshared mutable state. It is not safe for
// concurrent use; callers needing concurrency must serialize all calls
// through a single instance.
type Limiter struct {
	store StateStore
	clock func() time.Time

	limits map[core.TimeUnit]int
	usage  map[core.TimeUnit]int
	latest time.Time
}

// Open loads persisted state from the store, or starts fresh when none
// exists. A usage counter is initialized to zero for every limited unit.
func Open(store StateStore, clock func() time.Time) (*Limiter, error) {
	if store == nil {
		return nil, errors.New("limiter state store is required")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	l := &Limiter{
		store:  store,
		clock:  clock,
		limits: make(map[core.TimeUnit]int),
		usage:  make(map[core.TimeUnit]int),
	}

	state, err := store.LoadState()
	if err != nil {
		return nil, err
	}
	if state == nil {
		l.latest = clock()
		return l, nil
	}

	for unit, max := range state.Limits {
		if !unit.Valid() || max <= 0 {
			return nil, fmt.Errorf("persisted limit for %s: %w", unit, ErrInvalidLimit)
		}
		l.limits[unit] = max
		l.usage[unit] = 0
	}
	for unit, count := range state.Usage {
		if _, limited := l.limits[unit]; !limited {
			continue
		}
		if count < 0 {
			count = 0
		}
		l.usage[unit] = count
	}

	l.latest = state.Latest
	if l.latest.IsZero() {
		l.latest = clock()
	}

	return l, nil
}

// SetLimit stores a maximum for one unit and persists the full limiter
// state immediately (write-through). Limits are only ever mutated here,
// never by Invoke.
func (l *Limiter) SetLimit(unit core.TimeUnit, max int) error {
	if !unit.Valid() {
		return fmt.Errorf("set limit: unknown time unit %d", int(unit))
	}
	if max <= 0 {
		return fmt.Errorf("set limit for %s: %w", unit, ErrInvalidLimit)
	}

	l.limits[unit] = max
	if _, ok := l.usage[unit]; !ok {
		l.usage[unit] = 0
	}

	return l.Flush()
}

// ApplyLimits applies a typed batch of limits, skipping invalid entries,
// and persists once. Returns the units that were rejected.
func (l *Limiter) ApplyLimits(limits map[core.TimeUnit]int) ([]core.TimeUnit, error) {
	var rejected []core.TimeUnit
	for _, unit := range core.UnitsCoarseToFine {
		max, ok := limits[unit]
		if !ok {
			continue
		}
		if max <= 0 {
			rejected = append(rejected, unit)
			continue
		}
		l.limits[unit] = max
		if _, tracked := l.usage[unit]; !tracked {
			l.usage[unit] = 0
		}
	}

	if err := l.Flush(); err != nil {
		return rejected, err
	}
	return rejected, nil
}

// Limit returns the configured maximum for a unit.
func (l *Limiter) Limit(unit core.TimeUnit) (int, bool) {
	max, ok := l.limits[unit]
	return max, ok
}

// Usage returns the current counter for a unit.
func (l *Limiter) Usage(unit core.TimeUnit) (int, bool) {
	count, ok := l.usage[unit]
	return count, ok
}

// Snapshot returns a copy of the limiter state for display or export.
func (l *Limiter) Snapshot() core.LimiterState {
	return core.LimiterState{
		Limits: l.limits,
		Usage:  l.usage,
		Latest: l.latest,
	}.Clone()
}

// CooldownSeconds reports how long a caller must wait before another
// invocation stays within every configured limit. Units are consulted
// coarsest first; the first exhausted one determines the cooldown, which
// is the time from the last operation to that unit's next calendar
// boundary. Returns 0 when every counter is below its limit. Advisory
// only: no state is modified.
func (l *Limiter) CooldownSeconds() float64 {
	for _, unit := range core.UnitsCoarseToFine {
		max, limited := l.limits[unit]
		if !limited {
			continue
		}
		if l.usage[unit] >= max {
			boundary := unit.Next(unit.Truncate(l.latest))
			return boundary.Sub(l.latest).Seconds()
		}
	}
	return 0
}

// Invoke executes op and, on success, accounts for it: any unit whose
// period has rolled over since the last operation is reset (together with
// all finer units) before its counter is incremented, and the operation
// time is recorded. On failure the current state is persisted and the
// error is returned unchanged; nothing is incremented for a failed op.
// Retry policy belongs to the caller.
func (l *Limiter) Invoke(ctx context.Context, op func(ctx context.Context) error) error {
	if op == nil {
		return errors.New("invoke: operation is required")
	}

	if err := op(ctx); err != nil {
		if saveErr := l.Flush(); saveErr != nil {
			return fmt.Errorf("%w (also failed to persist usage: %v)", err, saveErr)
		}
		return err
	}

	now := l.clock()
	for _, unit := range core.UnitsCoarseToFine {
		if _, tracked := l.usage[unit]; !tracked {
			continue
		}
		if l.boundaryCrossed(unit, now) {
			l.resetUsage(unit)
		}
		l.usage[unit]++
	}
	l.latest = now

	return nil
}

// ResetUsage zeroes every counter and persists immediately. The last
// operation time is kept so the next rollover check still has an anchor.
func (l *Limiter) ResetUsage() error {
	for unit := range l.usage {
		l.usage[unit] = 0
	}
	return l.Flush()
}

// Flush persists the current state through the store.
func (l *Limiter) Flush() error {
	state := l.Snapshot()
	return l.store.SaveState(&state)
}

// Close persists state on shutdown. Commands defer this so usage is never
// lost on exit.
func (l *Limiter) Close() error {
	return l.Flush()
}

// boundaryCrossed reports whether now falls in a strictly later period of
// unit than the last accounted operation. Comparing truncated timestamps
// makes the check exact at every granularity, including the coarsest.
func (l *Limiter) boundaryCrossed(unit core.TimeUnit, now time.Time) bool {
	return unit.Truncate(now).After(unit.Truncate(l.latest))
}

// resetUsage zeroes the counter for unit and every finer tracked unit.
func (l *Limiter) resetUsage(unit core.TimeUnit) {
	for _, u := range core.UnitsFineToCoarse {
		if _, tracked := l.usage[u]; tracked {
			l.usage[u] = 0
		}
		if u == unit {
			break
		}
	}
}
