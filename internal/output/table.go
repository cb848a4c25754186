package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tickervault/tickervault/internal/core"
)

// LimitsTable renders configured limits coarse to fine.
func LimitsTable(state core.LimiterState) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Unit", "Max"})

	for _, unit := range core.UnitsCoarseToFine {
		max, ok := state.Limits[unit]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{unit.String(), max})
	}

	return t.Render()
}

// UsageTable renders per-unit usage against limits plus the current
// cooldown.
func UsageTable(state core.LimiterState, cooldown float64) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Unit", "Used", "Max"})

	for _, unit := range core.UnitsCoarseToFine {
		max, ok := state.Limits[unit]
		if !ok {
			continue
		}
		t.AppendRow(table.Row{unit.String(), state.Usage[unit], max})
	}

	footer := "no cooldown"
	if cooldown > 0 {
		footer = fmt.Sprintf("cooldown %.1fs", cooldown)
	}
	t.AppendFooter(table.Row{"", "", footer})

	return t.Render()
}

// RunsTable renders fetch-run history, newest first.
func RunsTable(runs []core.FetchRun) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Started", "Tickers", "Inserted", "Skipped"})

	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.StartedAt.UTC().Format(time.RFC3339),
			run.Tickers,
			run.RowsInserted,
			run.RowsSkipped,
		})
	}

	return t.Render()
}

// FetchTable renders per-ticker fetch results.
func FetchTable(results []*core.FetchResult) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Ticker", "Rows", "Inserted", "Malformed"})

	var rows, inserted int64
	for _, result := range results {
		if result == nil {
			continue
		}
		t.AppendRow(table.Row{
			result.Ticker.Code(),
			result.Rows,
			result.Inserted,
			result.Malformed,
		})
		rows += int64(result.Rows)
		inserted += result.Inserted
	}
	t.AppendFooter(table.Row{"", rows, inserted, ""})

	return t.Render()
}
