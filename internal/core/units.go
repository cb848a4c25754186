package core

import "time"

// TimeUnit identifies a calendar granularity over which a usage cap applies.
// Units are totally ordered from coarsest (year) to finest (second).
type TimeUnit int

const (
	UnitYear TimeUnit = iota
	UnitMonth
	UnitDay
	UnitHour
	UnitMinute
	UnitSecond
)

// unitDefs fixes the coarse-to-fine order as data: each entry pairs the
// canonical persisted name with the calendar component it reads from a
// timestamp. Iteration order everywhere else derives from this table.
var unitDefs = []struct {
	name      string
	component func(time.Time) int
}{
	{"year", func(t time.Time) int { return t.Year() }},
	{"month", func(t time.Time) int { return int(t.Month()) }},
	{"day", func(t time.Time) int { return t.Day() }},
	{"hour", func(t time.Time) int { return t.Hour() }},
	{"minute", func(t time.Time) int { return t.Minute() }},
	{"second", func(t time.Time) int { return t.Second() }},
}

// UnitsCoarseToFine lists every tracked unit from coarsest to finest.
var UnitsCoarseToFine = []TimeUnit{
	UnitYear, UnitMonth, UnitDay, UnitHour, UnitMinute, UnitSecond,
}

// UnitsFineToCoarse lists every tracked unit from finest to coarsest.
var UnitsFineToCoarse = []TimeUnit{
	UnitSecond, UnitMinute, UnitHour, UnitDay, UnitMonth, UnitYear,
}

// ParseUnit maps a lowercase unit name to its TimeUnit. Unknown names
// return ok=false rather than an error so callers can skip them.
func ParseUnit(name string) (TimeUnit, bool) {
	for i, def := range unitDefs {
		if def.name == name {
			return TimeUnit(i), true
		}
	}
	return 0, false
}

// String returns the canonical name used in persisted state.
func (u TimeUnit) String() string {
	if int(u) < 0 || int(u) >= len(unitDefs) {
		return "unknown"
	}
	return unitDefs[u].name
}

// Valid reports whether u is one of the six calendar units.
func (u TimeUnit) Valid() bool {
	return int(u) >= 0 && int(u) < len(unitDefs)
}

// Component extracts the calendar component of t that corresponds to u.
func (u TimeUnit) Component(t time.Time) int {
	return unitDefs[u].component(t)
}

// Truncate zeroes every component of t finer than u while keeping u's own
// and all coarser components. The month and day floors are 1, not 0.
func (u TimeUnit) Truncate(t time.Time) time.Time {
	year, month, day := t.Year(), t.Month(), t.Day()
	hour, minute, sec := t.Hour(), t.Minute(), t.Second()

	switch u {
	case UnitYear:
		return time.Date(year, time.January, 1, 0, 0, 0, 0, t.Location())
	case UnitMonth:
		return time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	case UnitDay:
		return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	case UnitHour:
		return time.Date(year, month, day, hour, 0, 0, 0, t.Location())
	case UnitMinute:
		return time.Date(year, month, day, hour, minute, 0, 0, t.Location())
	default:
		return time.Date(year, month, day, hour, minute, sec, 0, t.Location())
	}
}

// Next advances t by exactly one period of u. AddDate carries variable
// month lengths and leap years correctly for the calendar units.
func (u TimeUnit) Next(t time.Time) time.Time {
	switch u {
	case UnitYear:
		return t.AddDate(1, 0, 0)
	case UnitMonth:
		return t.AddDate(0, 1, 0)
	case UnitDay:
		return t.AddDate(0, 0, 1)
	case UnitHour:
		return t.Add(time.Hour)
	case UnitMinute:
		return t.Add(time.Minute)
	default:
		return t.Add(time.Second)
	}
}
