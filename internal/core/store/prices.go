package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tickervault/tickervault/internal/core"
)

// InsertBars inserts price rows, skipping any (ticker, date) already
// present, and returns the number of rows actually inserted.
func (s *Store) InsertBars(ctx context.Context, bars []core.PriceBar) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if len(bars) == 0 {
		return 0, nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stock_data (ticker, date, open, high, low, close, adjusted_close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() // nolint:errcheck // best-effort cleanup

	var inserted int64
	for _, bar := range bars {
		res, err := stmt.ExecContext(ctx,
			bar.Ticker, bar.Date, bar.Open, bar.High, bar.Low,
			bar.Close, bar.AdjustedClose, bar.Volume)
		if err != nil {
			return inserted, fmt.Errorf("insert %s %s: %w", bar.Ticker, bar.Date, err)
		}
		affected, err := res.RowsAffected()
		if err == nil {
			inserted += affected
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit insert: %w", err)
	}
	return inserted, nil
}

// CountBars returns the number of stored rows for a ticker.
func (s *Store) CountBars(ctx context.Context, ticker string) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	var count int64
	row := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_data WHERE ticker = ?`, ticker)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count bars: %w", err)
	}
	return count, nil
}

// LatestDate returns the most recent stored date for a ticker, or "" when
// no rows exist.
func (s *Store) LatestDate(ctx context.Context, ticker string) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}

	var date sql.NullString
	row := s.DB.QueryRowContext(ctx,
		`SELECT MAX(date) FROM stock_data WHERE ticker = ?`, ticker)
	if err := row.Scan(&date); err != nil {
		return "", fmt.Errorf("latest date: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

// RecordRun persists one fetch-run audit record.
func (s *Store) RecordRun(ctx context.Context, run core.FetchRun) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if run.ID == "" {
		return errors.New("fetch run id is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO fetch_runs (id, started_at, finished_at, tickers, rows_inserted, rows_skipped)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC().Unix(), run.FinishedAt.UTC().Unix(),
		run.Tickers, run.RowsInserted, run.RowsSkipped)
	if err != nil {
		return fmt.Errorf("record fetch run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent fetch runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.FetchRun, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, started_at, finished_at, tickers, rows_inserted, rows_skipped
		FROM fetch_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list fetch runs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var runs []core.FetchRun
	for rows.Next() {
		var (
			run      core.FetchRun
			started  int64
			finished int64
		)
		if err := rows.Scan(&run.ID, &started, &finished,
			&run.Tickers, &run.RowsInserted, &run.RowsSkipped); err != nil {
			return nil, fmt.Errorf("scan fetch run: %w", err)
		}
		run.StartedAt = time.Unix(started, 0).UTC()
		run.FinishedAt = time.Unix(finished, 0).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fetch runs: %w", err)
	}

	return runs, nil
}
