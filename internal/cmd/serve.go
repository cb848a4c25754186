package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tickervault/tickervault/internal/config"
	"github.com/tickervault/tickervault/internal/observability"
	"github.com/tickervault/tickervault/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve limiter state over HTTP",
	Long: `Serve a read-only HTTP view of the rate limiter: health, version,
and current usage and limits. The endpoints never consume quota, so
they are safe to poll while fetches run elsewhere.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewServerLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Sync() // nolint:errcheck // stderr sync failures are benign

	limiter, err := openLimiter(cfg)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server.Host, cfg.Server.Port, logger, limiter, versionInfo.Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
