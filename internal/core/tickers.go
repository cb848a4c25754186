package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseTickers reads a ticker universe: one "SYMBOL,EXCHANGE" entry per
// line. Blank lines and lines starting with '#' are ignored.
func ParseTickers(r io.Reader) ([]Ticker, error) {
	var tickers []Ticker

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		parts := strings.Split(text, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("tickers line %d: expected SYMBOL,EXCHANGE, got %q", line, text)
		}

		symbol := strings.ToUpper(strings.TrimSpace(parts[0]))
		exchange := strings.ToUpper(strings.TrimSpace(parts[1]))
		if symbol == "" || exchange == "" {
			return nil, fmt.Errorf("tickers line %d: empty symbol or exchange", line)
		}

		tickers = append(tickers, Ticker{Symbol: symbol, Exchange: exchange})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tickers: %w", err)
	}

	return tickers, nil
}

// LoadTickers parses a ticker universe from a file.
func LoadTickers(path string) ([]Ticker, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tickers file: %w", err)
	}
	defer file.Close() // nolint:errcheck // best-effort cleanup

	return ParseTickers(file)
}
