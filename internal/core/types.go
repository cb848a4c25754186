package core

import "time"

// LimiterState is the persisted view of the rate limiter: configured
// maximums, usage counters, and the time of the last accounted operation.
// Usage has an entry for a unit exactly when Limits does.
type LimiterState struct {
	Limits map[TimeUnit]int `json:"limits"`
	Usage  map[TimeUnit]int `json:"usage"`
	Latest time.Time        `json:"latest_time"`
}

// Clone returns a deep copy so callers can render state without holding
// a reference to the limiter's live maps.
func (s LimiterState) Clone() LimiterState {
	out := LimiterState{
		Limits: make(map[TimeUnit]int, len(s.Limits)),
		Usage:  make(map[TimeUnit]int, len(s.Usage)),
		Latest: s.Latest,
	}
	for unit, max := range s.Limits {
		out.Limits[unit] = max
	}
	for unit, count := range s.Usage {
		out.Usage[unit] = count
	}
	return out
}

// Ticker identifies one instrument on one exchange.
type Ticker struct {
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
}

// Code returns the API identifier, e.g. "AAPL.US".
func (t Ticker) Code() string {
	return t.Symbol + "." + t.Exchange
}

// PriceBar is one end-of-day row for a ticker.
type PriceBar struct {
	Ticker        string  `json:"ticker"`
	Date          string  `json:"date"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	AdjustedClose float64 `json:"adjusted_close"`
	Volume        int64   `json:"volume"`
}

// FetchResult reports the outcome of fetching one ticker.
type FetchResult struct {
	Ticker    Ticker `json:"ticker"`
	Rows      int    `json:"rows"`
	Inserted  int64  `json:"inserted"`
	Malformed int    `json:"malformed"`
}

// FetchRun records one invocation of the fetch command for auditing.
type FetchRun struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Tickers      int       `json:"tickers"`
	RowsInserted int64     `json:"rows_inserted"`
	RowsSkipped  int64     `json:"rows_skipped"`
}
