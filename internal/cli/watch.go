// internal/cli/watch.go
package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambv/cpython-stats/internal/api"
	"github.com/ambv/cpython-stats/internal/syncer"
)

const shutdownTimeout = 5 * time.Second

func newWatchCmd(flags *globalFlags, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Import all sources every SYNC_INTERVAL and serve sync status on STATUS_ADDR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			which := sourcePullRequests | sourceCommits
			logger, logLevel := newLogger(cmd.OutOrStdout())
			cfg, err := loadConfig(flags.envFile, which, logLevel)
			if err != nil {
				return err
			}
			if cfg.SyncInterval <= 0 {
				return errors.New("SYNC_INTERVAL must be positive")
			}
			logger.Info("Configuration loaded successfully", "config", cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			a, err := connect(ctx, cfg, logger)
			if err != nil {
				logger.Error("Application startup error", "error", err)
				*exitCode = ExitSyncFailed
				return nil
			}
			defer a.Close()

			appSyncer := syncer.NewSyncer(a.store, logger, cfg.MaxConsecutiveAnomalies)
			sources, failed := buildSources(ctx, logger, a.builders(which))
			for _, r := range failed {
				appSyncer.Record(r)
			}
			if len(sources) == 0 {
				logger.Error("Application startup error", "error", "no source could be started")
				*exitCode = ExitSyncFailed
				return nil
			}
			// Sources that failed to start stay failed until restart.
			*exitCode = exitCodeFor(failed)

			server := &http.Server{
				Addr:              cfg.StatusAddr,
				Handler:           api.NewRouter(appSyncer, a.store, logger),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("Status server listening", "addr", cfg.StatusAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Status server failed", "error", err)
					cancel()
				}
			}()

			// Blocks until a shutdown signal is received.
			appSyncer.Start(ctx, cfg.SyncInterval, sources...)

			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Status server shutdown", "error", err)
			}
			logger.Info("Shutdown complete")
			return nil
		},
	}
}
