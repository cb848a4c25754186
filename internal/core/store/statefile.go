package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/tickervault/tickervault/internal/core"
)

// ErrUnknownUnit reports a time-unit name in the limits group that does
// not match any calendar unit. This is fatal at load time: a misspelled
// limit would silently go unenforced otherwise.
var ErrUnknownUnit = errors.New("unknown time unit")

// StateFile persists limiter state as a two-group YAML document:
//
//	limits:
//	  day: "800"
//	  minute: "8"
//	usage:
//	  day: "12"
//	  minute: "3"
//	  latest_time: "2026-08-25T10:11:12Z"
//
// Both groups are string-keyed and string-valued so foreign keys can be
// carried (and skipped) without schema churn. Saves replace the whole file
// atomically via a temp file and rename.
type StateFile struct {
	Path   string
	Logger *logging.Logger
}

const latestTimeKey = "latest_time"

type stateDoc struct {
	Limits map[string]string `yaml:"limits"`
	Usage  map[string]string `yaml:"usage"`
}

// LoadState parses the persisted document. Unknown keys or non-integer
// values in the usage group are reported and skipped; an unknown unit in
// the limits group aborts with ErrUnknownUnit. A missing file returns
// (nil, nil) so the limiter starts fresh.
func (f *StateFile) LoadState() (*core.LimiterState, error) {
	if f == nil || f.Path == "" {
		return nil, errors.New("state file path is required")
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read limiter state: %w", err)
	}

	var doc stateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse limiter state: %w", err)
	}

	state := &core.LimiterState{
		Limits: make(map[core.TimeUnit]int),
		Usage:  make(map[core.TimeUnit]int),
	}

	for key, value := range doc.Limits {
		unit, ok := core.ParseUnit(key)
		if !ok {
			return nil, fmt.Errorf("limits: %w: %q", ErrUnknownUnit, key)
		}
		max, err := strconv.Atoi(value)
		if err != nil || max <= 0 {
			return nil, fmt.Errorf("limits: value of %s must be a positive integer, got %q", key, value)
		}
		state.Limits[unit] = max
	}

	for key, value := range doc.Usage {
		if key == latestTimeKey {
			parsed, err := time.Parse(time.RFC3339, value)
			if err != nil {
				f.warn("ignoring unparseable latest_time in usage",
					zap.String("value", value), zap.Error(err))
				continue
			}
			state.Latest = parsed
			continue
		}

		unit, ok := core.ParseUnit(key)
		if !ok {
			f.warn("skipping unknown key in usage", zap.String("key", key))
			continue
		}
		count, err := strconv.Atoi(value)
		if err != nil || count < 0 {
			f.warn("skipping non-integer usage value",
				zap.String("key", key), zap.String("value", value))
			continue
		}
		if _, limited := state.Limits[unit]; !limited {
			f.warn("skipping usage for unlimited unit", zap.String("key", key))
			continue
		}
		state.Usage[unit] = count
	}

	return state, nil
}

// SaveState serializes the state back to the two-group document.
func (f *StateFile) SaveState(state *core.LimiterState) error {
	if f == nil || f.Path == "" {
		return errors.New("state file path is required")
	}
	if state == nil {
		return errors.New("limiter state is required")
	}

	doc := stateDoc{
		Limits: make(map[string]string, len(state.Limits)),
		Usage:  make(map[string]string, len(state.Usage)+1),
	}
	for unit, max := range state.Limits {
		doc.Limits[unit.String()] = strconv.Itoa(max)
	}
	for unit, count := range state.Usage {
		doc.Usage[unit.String()] = strconv.Itoa(count)
	}
	if !state.Latest.IsZero() {
		doc.Usage[latestTimeKey] = state.Latest.UTC().Format(time.RFC3339)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode limiter state: %w", err)
	}

	return writeFileAtomic(f.Path, data)
}

func (f *StateFile) warn(msg string, fields ...zap.Field) {
	if f == nil || f.Logger == nil {
		return
	}
	f.Logger.Warn(msg, fields...)
}

// writeFileAtomic writes to a temp file in the destination directory and
// renames it over the target, so a crash never leaves a truncated file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(filepath.Clean(path))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write limiter state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace limiter state: %w", err)
	}
	return nil
}
