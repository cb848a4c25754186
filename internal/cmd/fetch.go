package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/core"
	"github.com/tickervault/tickervault/internal/core/fetcher"
	"github.com/tickervault/tickervault/internal/observability"
	"github.com/tickervault/tickervault/internal/output"
)

var (
	fetchOutputFormat string
	fetchTickersFile  string
	fetchFrom         string
	fetchWait         bool
	fetchMaxWait      time.Duration
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [TICKER.EXCHANGE...]",
	Short: "Download EOD price history within the configured rate limits",
	Long: `Download end-of-day price history for every ticker in the universe
file (or the tickers given as arguments) and insert new rows into the
price store. Every API request runs through the rate limiter; when a
window is exhausted the command waits out the cooldown (--wait) or
stops.

Each ticker resumes from the day after its latest stored row unless
--from overrides the start date.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutputFormat, "output-format", "o", "table",
		"output format (table|json)")
	fetchCmd.Flags().StringVar(&fetchTickersFile, "tickers-file", "",
		"ticker universe file (default from config)")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "",
		"start date (YYYY-MM-DD) overriding per-ticker resume")
	fetchCmd.Flags().BoolVar(&fetchWait, "wait", false,
		"sleep out cooldowns instead of stopping")
	fetchCmd.Flags().DurationVar(&fetchMaxWait, "max-wait", 0,
		"longest cooldown --wait will sleep (default from config)")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	format, err := resolveFormat(fetchOutputFormat)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.API.Token) == "" {
		return errors.New("API token is required (set TICKERVAULT_API_TOKEN or api.token)")
	}

	wait := fetchWait || cfg.Fetch.Wait
	maxWait := fetchMaxWait
	if maxWait <= 0 {
		maxWait = cfg.Fetch.MaxWait
	}
	if fetchFrom != "" {
		if _, err := time.Parse("2006-01-02", fetchFrom); err != nil {
			return fmt.Errorf("--from: expected YYYY-MM-DD, got %q", fetchFrom)
		}
	}

	tickers, err := resolveTickers(args, cfg)
	if err != nil {
		return err
	}
	if len(tickers) == 0 {
		return errors.New("no tickers to fetch")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	limiter, err := openLimiter(cfg)
	if err != nil {
		return err
	}
	defer limiter.Close() // nolint:errcheck // flushes accumulated usage

	client := &fetcher.Client{
		Store:    s,
		HTTP:     &http.Client{Timeout: cfg.API.Timeout},
		Limiter:  limiter,
		BaseURL:  cfg.API.BaseURL,
		APIToken: cfg.API.Token,
		Logger:   observability.CLILogger,
	}

	startedAt := time.Now().UTC()
	results := make([]*core.FetchResult, 0, len(tickers))

	var failures int
	var stopped error
	for _, ticker := range tickers {
		if err := awaitCooldown(ctx, limiter.CooldownSeconds(), wait, maxWait); err != nil {
			stopped = err
			break
		}

		from := fetchFrom
		if from == "" {
			from, err = resumeDate(ctx, s, ticker)
			if err != nil {
				return err
			}
		}

		result, err := client.FetchTicker(ctx, ticker, from)
		if err != nil {
			if ctx.Err() != nil {
				stopped = ctx.Err()
				break
			}
			failures++
			observability.CLILogger.Error("fetch failed",
				zap.String("ticker", ticker.Code()), zap.Error(err))
			continue
		}

		observability.CLILogger.Info("fetched ticker",
			zap.String("ticker", ticker.Code()),
			zap.String("from", from),
			zap.Int("rows", result.Rows),
			zap.Int64("inserted", result.Inserted))
		results = append(results, result)
	}

	run := buildRun(startedAt, results)
	if err := s.RecordRun(ctx, run); err != nil {
		observability.CLILogger.Warn("failed to record fetch run", zap.Error(err))
	}

	if err := renderFetch(cmd, results, format); err != nil {
		return err
	}
	if format == output.FormatTable {
		cmd.Print(ascii.DrawBox(strings.Join([]string{
			"Fetch Run " + run.ID,
			"",
			fmt.Sprintf("tickers=%d inserted=%d skipped=%d", run.Tickers, run.RowsInserted, run.RowsSkipped),
			fmt.Sprintf("cooldown=%.1fs", limiter.CooldownSeconds()),
		}, "\n"), 0))
	}

	if stopped != nil {
		return stopped
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d tickers failed", failures, len(tickers))
	}
	return nil
}

// resolveTickers returns the universe: SYMBOL.EXCHANGE arguments when
// given, otherwise the configured tickers file.
func resolveTickers(args []string, cfg *config.Config) ([]core.Ticker, error) {
	if len(args) > 0 {
		tickers := make([]core.Ticker, 0, len(args))
		for _, arg := range args {
			symbol, exchange, found := strings.Cut(strings.ToUpper(strings.TrimSpace(arg)), ".")
			if !found || symbol == "" || exchange == "" {
				return nil, fmt.Errorf("expected SYMBOL.EXCHANGE, got %q", arg)
			}
			tickers = append(tickers, core.Ticker{Symbol: symbol, Exchange: exchange})
		}
		return tickers, nil
	}

	path := fetchTickersFile
	if path == "" {
		path = cfg.Fetch.TickersFile
	}
	return core.LoadTickers(path)
}

// resumeDate returns the day after a ticker's latest stored row, or ""
// for a full-history fetch when the store has no rows yet.
func resumeDate(ctx context.Context, s priceHistory, ticker core.Ticker) (string, error) {
	latest, err := s.LatestDate(ctx, ticker.Symbol)
	if err != nil {
		return "", err
	}
	if latest == "" {
		return "", nil
	}

	day, err := time.Parse("2006-01-02", latest)
	if err != nil {
		return "", fmt.Errorf("stored date for %s: %w", ticker.Code(), err)
	}
	return day.AddDate(0, 0, 1).Format("2006-01-02"), nil
}

type priceHistory interface {
	LatestDate(ctx context.Context, ticker string) (string, error)
}

// awaitCooldown enforces the limiter's advisory cooldown before the next
// request. A zero cooldown passes immediately; otherwise the caller either
// sleeps it out (--wait, bounded by maxWait) or stops.
func awaitCooldown(ctx context.Context, cooldown float64, wait bool, maxWait time.Duration) error {
	if cooldown <= 0 {
		return nil
	}

	d := time.Duration(cooldown * float64(time.Second))
	if !wait {
		return fmt.Errorf("rate limit reached: next window opens in %.1fs (re-run with --wait)", cooldown)
	}
	if maxWait > 0 && d > maxWait {
		return fmt.Errorf("rate limit cooldown %.1fs exceeds max wait %s", cooldown, maxWait)
	}

	observability.CLILogger.Info("waiting for rate limit window",
		zap.Duration("cooldown", d))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildRun summarizes a fetch into one audit record. Skipped counts both
// duplicate rows and malformed rows.
func buildRun(startedAt time.Time, results []*core.FetchResult) core.FetchRun {
	var inserted, skipped int64
	for _, result := range results {
		if result == nil {
			continue
		}
		inserted += result.Inserted
		skipped += int64(result.Rows) - result.Inserted + int64(result.Malformed)
	}

	return core.FetchRun{
		ID:           uuid.NewString(),
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		Tickers:      len(results),
		RowsInserted: inserted,
		RowsSkipped:  skipped,
	}
}

func renderFetch(cmd *cobra.Command, results []*core.FetchResult, format output.Format) error {
	if format == output.FormatJSON {
		rendered, err := output.MarshalJSON(map[string]any{"results": results})
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	}

	cmd.Println(output.FetchTable(results))
	return nil
}
