package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/observability"
	"github.com/tickervault/tickervault/internal/output"
)

var (
	storeOutputFormat string
	storeRunsLimit    int
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the price database",
}

var storeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the price database schema",
	Args:  cobra.NoArgs,
	RunE:  runStoreInit,
}

var storeRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent fetch runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runStoreRuns,
}

func init() {
	storeCmd.PersistentFlags().StringVarP(&storeOutputFormat, "output-format", "o", "table",
		"output format (table|json)")
	storeRunsCmd.Flags().IntVar(&storeRunsLimit, "limit", 20, "maximum runs to show")

	storeCmd.AddCommand(storeInitCmd)
	storeCmd.AddCommand(storeRunsCmd)
	rootCmd.AddCommand(storeCmd)
}

func runStoreInit(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	observability.CLILogger.Info("store initialized",
		zap.String("driver", s.Driver()),
		zap.String("path", cfg.Store.Path))
	return nil
}

func runStoreRuns(cmd *cobra.Command, _ []string) error {
	format, err := resolveFormat(storeOutputFormat)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	s, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close() // nolint:errcheck // best-effort cleanup

	runs, err := s.ListRuns(cmd.Context(), storeRunsLimit)
	if err != nil {
		return err
	}

	if format == output.FormatJSON {
		rendered, err := output.MarshalJSON(map[string]any{"runs": runs})
		if err != nil {
			return err
		}
		cmd.Println(rendered)
		return nil
	}

	cmd.Println(output.RunsTable(runs))
	return nil
}
