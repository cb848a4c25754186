package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS stock_data (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		open REAL,
		high REAL,
		low REAL,
		close REAL,
		adjusted_close REAL,
		volume INTEGER,
		PRIMARY KEY (ticker, date)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_stock_data_date ON stock_data(date);`,
	`CREATE TABLE IF NOT EXISTS fetch_runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		tickers INTEGER NOT NULL,
		rows_inserted INTEGER NOT NULL,
		rows_skipped INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_fetch_runs_started ON fetch_runs(started_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}
