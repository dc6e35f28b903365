// internal/cli/app.go
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ambv/cpython-stats/internal/config"
	ghclient "github.com/ambv/cpython-stats/internal/github"
	"github.com/ambv/cpython-stats/internal/gitlog"
	"github.com/ambv/cpython-stats/internal/source"
	"github.com/ambv/cpython-stats/internal/store"
	"github.com/ambv/cpython-stats/internal/syncer"
)

// sourceSet selects which sources a command synchronizes.
type sourceSet int

const (
	sourcePullRequests sourceSet = 1 << iota
	sourceCommits
)

// app holds what every sync command needs once configuration is valid.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	closers []func()
}

// newLogger builds the JSON logger whose level follows LOG_LEVEL once config is loaded.
func newLogger(w io.Writer) (*slog.Logger, *slog.LevelVar) {
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler), logLevel
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}

// loadConfig loads and validates configuration for the given sources. Its errors are usage errors.
func loadConfig(envFile string, sources sourceSet, logLevel *slog.LevelVar) (*config.Config, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if sources&sourcePullRequests != 0 {
		if err := cfg.ValidateGithub(); err != nil {
			return nil, err
		}
	}
	if sources&sourceCommits != 0 {
		if err := cfg.ValidateGit(); err != nil {
			return nil, err
		}
	}
	setLogLevel(cfg.LogLevel, logLevel)
	return cfg, nil
}

// connect opens the database and applies pending migrations.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	dbpool, err := store.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connection established")

	if err := store.Migrate(cfg.DBURL); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store.New(dbpool, logger),
	}
	a.closers = append(a.closers, dbpool.Close)
	return a, nil
}

// Close releases everything opened by connect and sources, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// sourceBuilder constructs one source. Building may touch the network or the disk.
type sourceBuilder struct {
	name  string
	build func(ctx context.Context) (source.Source, error)
}

// builders returns the selected sources in a fixed order: pull requests, then commits.
func (a *app) builders(which sourceSet) []sourceBuilder {
	var out []sourceBuilder
	if which&sourcePullRequests != 0 {
		out = append(out, sourceBuilder{name: source.PullRequestsName, build: a.pullRequests})
	}
	if which&sourceCommits != 0 {
		out = append(out, sourceBuilder{name: source.CommitsName, build: a.commits})
	}
	return out
}

func (a *app) pullRequests(ctx context.Context) (source.Source, error) {
	owner, name, err := a.cfg.Repo()
	if err != nil {
		return nil, err
	}
	client := ghclient.NewClient(a.cfg.GithubToken, a.logger,
		ghclient.WithTimeout(a.cfg.RequestTimeout),
		ghclient.WithMaxRetries(a.cfg.MaxRetries),
	)
	repo, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("checking access to %s/%s: %w", owner, name, err)
	}
	a.logger.Info("GitHub repository reachable", "repo", repo.GetFullName())
	return source.NewPullRequests(client, owner, name, a.cfg.PRPageSize, a.cfg.DefaultSyncSinceTime, a.logger), nil
}

func (a *app) commits(ctx context.Context) (source.Source, error) {
	repo, err := gitlog.Open(ctx, a.cfg.GitRepoLocation, a.logger)
	if err != nil {
		return nil, fmt.Errorf("opening git repository %s: %w", a.cfg.GitRepoLocation, err)
	}
	a.closers = append(a.closers, func() {
		if err := repo.Close(); err != nil {
			a.logger.Warn("Closing git repository", "error", err)
		}
	})
	return source.NewCommits(repo, a.store, a.cfg.GitRepoBranches, a.cfg.CommitChunkSize, a.logger), nil
}

// buildSources builds every source on its own. A source that cannot be built is
// reported as a failed run and does not keep the others from running.
func buildSources(ctx context.Context, logger *slog.Logger, builders []sourceBuilder) ([]source.Source, []syncer.Result) {
	var (
		built  []source.Source
		failed []syncer.Result
	)
	for _, b := range builders {
		started := time.Now().UTC()
		src, err := b.build(ctx)
		if err != nil {
			logger.Error("Source could not be started", "source", b.name, "error", err)
			failed = append(failed, syncer.Result{
				Source:     b.name,
				State:      syncer.StateError,
				Err:        fmt.Errorf("starting %s: %w", b.name, err),
				StartedAt:  started,
				FinishedAt: time.Now().UTC(),
			})
			continue
		}
		built = append(built, src)
	}
	return built, failed
}

// syncOnce runs every source that could be built. Failed builds lead the results.
func syncOnce(ctx context.Context, s *syncer.Syncer, logger *slog.Logger, builders []sourceBuilder) []syncer.Result {
	sources, failed := buildSources(ctx, logger, builders)
	for _, r := range failed {
		s.Record(r)
	}
	return append(failed, s.RunAll(ctx, sources...)...)
}
