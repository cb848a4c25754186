package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/observability"
	"github.com/tickervault/tickervault/internal/output"
)

var (
	usageOutputFormat string
	usageResetYes     bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect or reset rate-limit usage counters",
}

var usageListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show usage counters and the current cooldown",
	Args:  cobra.NoArgs,
	RunE:  runUsageList,
}

var usageResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero every usage counter",
	Long: `Zero every usage counter and persist the reset. This forgets real
API consumption, so it requires --yes.`,
	Args: cobra.NoArgs,
	RunE: runUsageReset,
}

func init() {
	usageCmd.PersistentFlags().StringVarP(&usageOutputFormat, "output-format", "o", "table",
		"output format (table|json)")
	usageResetCmd.Flags().BoolVar(&usageResetYes, "yes", false, "confirm the reset")

	usageCmd.AddCommand(usageListCmd)
	usageCmd.AddCommand(usageResetCmd)
	rootCmd.AddCommand(usageCmd)
}

func runUsageList(cmd *cobra.Command, _ []string) error {
	format, err := resolveFormat(usageOutputFormat)
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

	state := limiter.Snapshot()
	cooldown := limiter.CooldownSeconds()

	if format == output.FormatJSON {
		usage := make(map[string]int, len(state.Usage))
		for unit, count := range state.Usage {
			usage[unit.String()] = count
		}
		rendered, err := output.MarshalJSON(map[string]any{
			"usage":            usage,
			"latest_time":      state.Latest.UTC().Format(time.RFC3339),
			"cooldown_seconds": cooldown,
		})
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	}

	cmd.Println(output.UsageTable(state, cooldown))
	return nil
}

func runUsageReset(_ *cobra.Command, _ []string) error {
	if !usageResetYes {
		return errors.New("usage reset forgets real API consumption; re-run with --yes to confirm")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	limiter, err := openLimiter(cfg)
	if err != nil {
		return err
	}

	if err := limiter.ResetUsage(); err != nil {
		return err
	}
	observability.CLILogger.Info("usage counters reset",
		zap.String("state", cfg.Limiter.StatePath))
	return nil
}
