package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/core"
	"github.com/tickervault/tickervault/internal/core/engine"
	"github.com/tickervault/tickervault/internal/core/store"
	"github.com/tickervault/tickervault/internal/observability"
	"github.com/tickervault/tickervault/internal/output"
)

// openStore opens the price database and ensures the schema exists.
// Callers must Close the returned store.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// openLimiter opens the rate limiter backed by the configured state file.
// When the persisted state carries no limits yet, the configured seed
// limits are applied so a fresh install starts enforced. Callers must
// Close the returned limiter so usage is flushed on exit.
func openLimiter(cfg *config.Config) (*engine.Limiter, error) {
	stateFile := &store.StateFile{
		Path:   cfg.Limiter.StatePath,
		Logger: observability.CLILogger,
	}

	limiter, err := engine.Open(stateFile, nil)
	if err != nil {
		return nil, fmt.Errorf("open limiter state %s: %w", cfg.Limiter.StatePath, err)
	}

	if len(limiter.Snapshot().Limits) == 0 && len(cfg.Limiter.Limits) > 0 {
		seed := make(map[core.TimeUnit]int, len(cfg.Limiter.Limits))
		for name, max := range cfg.Limiter.Limits {
			unit, ok := core.ParseUnit(name)
			if !ok {
				observability.CLILogger.Warn("ignoring unknown unit in configured limits",
					zap.String("unit", name))
				continue
			}
			seed[unit] = max
		}

		rejected, err := limiter.ApplyLimits(seed)
		if err != nil {
			return nil, fmt.Errorf("seed configured limits: %w", err)
		}
		for _, unit := range rejected {
			observability.CLILogger.Warn("ignoring non-positive configured limit",
				zap.String("unit", unit.String()))
		}
	}

	return limiter, nil
}

// resolveFormat parses an --output-format flag value.
func resolveFormat(value string) (output.Format, error) {
	format, err := output.ParseFormat(value)
	if err != nil {
		return "", fmt.Errorf("--output-format: %w", err)
	}
	return format, nil
}
