// Package fetcher downloads end-of-day price history from the EOD
// historical data API. Every request runs through the rate limiter so
// API quotas are enforced and accounted for.
package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/core"
	"github.com/tickervault/tickervault/internal/core/engine"
)

const defaultBaseURL = "https://eodhistoricaldata.com"

// PriceStore persists downloaded price rows.
type PriceStore interface {
	InsertBars(ctx context.Context, bars []core.PriceBar) (int64, error)
}

// Client fetches EOD price history for tickers.
type Client struct {
	Store    PriceStore
	HTTP     *http.Client
	Limiter  *engine.Limiter
	BaseURL  string
	APIToken string
	Logger   *logging.Logger
	Clock    func() time.Time
}

// FetchTicker downloads the price history for one ticker and inserts the
// parsed rows, skipping rows already present. The HTTP request is the
// rate-limited operation: a failed request flushes limiter state and is
// not counted against any window.
func (c *Client) FetchTicker(ctx context.Context, ticker core.Ticker, from string) (*core.FetchResult, error) {
	if c == nil || c.Store == nil {
		return nil, errors.New("fetcher is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ticker.Symbol == "" || ticker.Exchange == "" {
		return nil, errors.New("ticker symbol and exchange are required")
	}

	var body []byte
	op := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(ticker, from), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "text/csv")

		client := c.HTTP
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("fetch %s: %w", ticker.Code(), err)
		}
		defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("fetch %s: unexpected status %d", ticker.Code(), resp.StatusCode)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("fetch %s: read body: %w", ticker.Code(), err)
		}
		return nil
	}

	var err error
	if c.Limiter != nil {
		err = c.Limiter.Invoke(ctx, op)
	} else {
		err = op(ctx)
	}
	if err != nil {
		return nil, err
	}

	bars, malformed := parseBars(ticker.Symbol, bytes.NewReader(body))
	if malformed > 0 && c.Logger != nil {
		c.Logger.Warn("skipped malformed price rows",
			zap.String("ticker", ticker.Code()), zap.Int("rows", malformed))
	}

	inserted, err := c.Store.InsertBars(ctx, bars)
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", ticker.Code(), err)
	}

	return &core.FetchResult{
		Ticker:    ticker,
		Rows:      len(bars),
		Inserted:  inserted,
		Malformed: malformed,
	}, nil
}

func (c *Client) requestURL(ticker core.Ticker, from string) string {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	parsed, err := url.Parse(base)
	if err != nil {
		parsed = &url.URL{Scheme: "https", Host: "eodhistoricaldata.com"}
	}
	parsed = parsed.ResolveReference(&url.URL{
		Path: "/api/eod/" + url.PathEscape(ticker.Code()),
	})

	query := parsed.Query()
	query.Set("api_token", c.APIToken)
	query.Set("fmt", "csv")
	query.Set("period", "d")
	if from != "" {
		query.Set("from", from)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String()
}

// parseBars reads the API's CSV payload
// (Date,Open,High,Low,Close,Adjusted_close,Volume) into price rows.
// Short or unparseable rows are counted and skipped, never fatal: the API
// appends junk rows to otherwise good payloads.
func parseBars(symbol string, r io.Reader) ([]core.PriceBar, int) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		bars      []core.PriceBar
		malformed int
	)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			malformed++
			continue
		}
		if len(record) > 0 && strings.EqualFold(record[0], "date") {
			continue // header row
		}
		if len(record) < 7 {
			malformed++
			continue
		}

		bar, ok := parseBar(symbol, record)
		if !ok {
			malformed++
			continue
		}
		bars = append(bars, bar)
	}

	return bars, malformed
}

func parseBar(symbol string, record []string) (core.PriceBar, bool) {
	date := strings.TrimSpace(record[0])
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return core.PriceBar{}, false
	}

	values := make([]float64, 5)
	for i := 0; i < 5; i++ {
		value, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return core.PriceBar{}, false
		}
		values[i] = value
	}

	volume, err := strconv.ParseInt(strings.TrimSpace(record[6]), 10, 64)
	if err != nil {
		// some payloads report volume with a decimal point
		asFloat, ferr := strconv.ParseFloat(strings.TrimSpace(record[6]), 64)
		if ferr != nil {
			return core.PriceBar{}, false
		}
		volume = int64(asFloat)
	}

	return core.PriceBar{
		Ticker:        symbol,
		Date:          date,
		Open:          values[0],
		High:          values[1],
		Low:           values[2],
		Close:         values[3],
		AdjustedClose: values[4],
		Volume:        volume,
	}, true
}
