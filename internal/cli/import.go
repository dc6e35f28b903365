// internal/cli/import.go
package cli

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ambv/cpython-stats/internal/config"
	"github.com/ambv/cpython-stats/internal/source"
	"github.com/ambv/cpython-stats/internal/syncer"
)

// Number of dangling parent links reported after a commit import.
const unresolvedParentsReported = 20

func newImportCmd(flags *globalFlags, exitCode *int, use, short string, which sourceSet) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, logLevel := newLogger(cmd.OutOrStdout())
			cfg, err := loadConfig(flags.envFile, which, logLevel)
			if err != nil {
				return err
			}
			logger.Info("Configuration loaded successfully", "config", cfg)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			*exitCode = runImport(ctx, cfg, logger, which)
			return nil
		},
	}
}

func runImport(ctx context.Context, cfg *config.Config, logger *slog.Logger, which sourceSet) int {
	a, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Application startup error", "error", err)
		return ExitSyncFailed
	}
	defer a.Close()

	s := syncer.NewSyncer(a.store, logger, cfg.MaxConsecutiveAnomalies)
	results := syncOnce(ctx, s, logger, a.builders(which))
	for _, r := range results {
		report(logger, r)
		if r.Source == source.CommitsName && !r.Failed() {
			a.checkParents(ctx)
		}
	}
	return exitCodeFor(results)
}

// report logs the summary of one run, including every skipped record.
func report(logger *slog.Logger, r syncer.Result) {
	logger = logger.With("source", r.Source)
	for _, an := range r.Anomalies {
		logger.Warn("Skipped record", "key", an.Key, "error", an.Err)
	}
	attrs := []any{
		"state", r.State,
		"batches", r.Batches,
		"seen", r.Seen,
		"inserted", r.Inserted,
		"updated", r.Updated,
		"unchanged", r.Unchanged,
		"anomalies", len(r.Anomalies),
		"duration", r.FinishedAt.Sub(r.StartedAt).String(),
	}
	if r.Failed() {
		logger.Error("Import failed", append(attrs, "error", r.Err)...)
		return
	}
	logger.Info("Import finished", attrs...)
}

// checkParents warns about parent links that point at neither a stored commit nor a boundary.
func (a *app) checkParents(ctx context.Context) {
	dangling, err := a.store.UnresolvedParents(ctx, unresolvedParentsReported)
	if err != nil {
		a.logger.Warn("Could not check commit parents", "error", err)
		return
	}
	for _, d := range dangling {
		a.logger.Warn("Commit parent is not stored", "child", d.ChildSHA, "parent", d.ParentSHA)
	}
}
