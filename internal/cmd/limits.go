package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/core"
	"github.com/tickervault/tickervault/internal/observability"
	"github.com/tickervault/tickervault/internal/output"
)

var limitsOutputFormat string

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage per-window rate limits",
}

var limitsSetCmd = &cobra.Command{
	Use:   "set UNIT=MAX [UNIT=MAX...]",
	Short: "Set maximum operations per calendar window",
	Long: `Set maximum operations per calendar window and persist them
immediately. Units are year, month, day, hour, minute, and second;
maximums must be positive integers.

Example:
  tickervault limits set day=800 minute=8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLimitsSet,
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show configured limits",
	Args:  cobra.NoArgs,
	RunE:  runLimitsList,
}

func init() {
	limitsCmd.PersistentFlags().StringVarP(&limitsOutputFormat, "output-format", "o", "table",
		"output format (table|json)")

	limitsCmd.AddCommand(limitsSetCmd)
	limitsCmd.AddCommand(limitsListCmd)
	rootCmd.AddCommand(limitsCmd)
}

// parseLimitArgs parses UNIT=MAX arguments into typed limits. Unknown
// units and non-positive maximums are rejected before anything mutates.
func parseLimitArgs(args []string) (map[core.TimeUnit]int, error) {
	limits := make(map[core.TimeUnit]int, len(args))

	for _, arg := range args {
		name, value, found := strings.Cut(arg, "=")
		if !found {
			return nil, fmt.Errorf("expected UNIT=MAX, got %q", arg)
		}

		unit, ok := core.ParseUnit(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown time unit %q", strings.TrimSpace(name))
		}

		max, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || max <= 0 {
			return nil, fmt.Errorf("limit for %s must be a positive integer, got %q", unit, value)
		}

		if _, dup := limits[unit]; dup {
			return nil, fmt.Errorf("duplicate limit for %s", unit)
		}
		limits[unit] = max
	}

	return limits, nil
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	format, err := resolveFormat(limitsOutputFormat)
	if err != nil {
		return err
	}

	limits, err := parseLimitArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	limiter, err := openLimiter(cfg)
	if err != nil {
		return err
	}

	if _, err := limiter.ApplyLimits(limits); err != nil {
		return fmt.Errorf("apply limits: %w", err)
	}
	observability.CLILogger.Info("limits updated",
		zap.Int("count", len(limits)), zap.String("state", cfg.Limiter.StatePath))

	return renderLimits(cmd, limiter.Snapshot(), format)
}

func runLimitsList(cmd *cobra.Command, _ []string) error {
	format, err := resolveFormat(limitsOutputFormat)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	limiter, err := openLimiter(cfg)
	if err != nil {
		return err
	}

	return renderLimits(cmd, limiter.Snapshot(), format)
}

func renderLimits(cmd *cobra.Command, state core.LimiterState, format output.Format) error {
	if format == output.FormatJSON {
		limits := make(map[string]int, len(state.Limits))
		for unit, max := range state.Limits {
			limits[unit.String()] = max
		}
		rendered, err := output.MarshalJSON(map[string]any{"limits": limits})
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	}

	cmd.Println(output.LimitsTable(state))
	return nil
}
