// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ambv/cpython-stats/internal/database"
	custom_errors "github.com/ambv/cpython-stats/internal/errors"
	"github.com/ambv/cpython-stats/internal/model"
)

// Writer persists records and the cursor of one batch. Everything written
// through a Writer commits or rolls back together.
type Writer interface {
	Upsert(ctx context.Context, rec model.Record) (model.Outcome, error)
	SaveCursor(ctx context.Context, cursor model.Cursor) error
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the PostgreSQL backed record and cursor store.
type Store struct {
	db     txBeginner
	q      database.Querier
	logger *slog.Logger
}

// NewPool opens a connection pool sized for a handful of concurrent sources.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// New creates a Store on top of pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{db: pool, q: database.New(pool), logger: logger}
}

// Batch runs fn in a transaction holding the per-source write lock. The transaction
// commits only if fn returns nil.
func (s *Store) Batch(ctx context.Context, source string, fn func(Writer) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return &custom_errors.PersistenceError{Op: "begin batch", Err: err}
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	q := database.New(tx)
	if err := q.AcquireSourceLock(ctx, source); err != nil {
		return &custom_errors.PersistenceError{Op: "lock " + source, Err: err}
	}

	if err := fn(&txWriter{tx: tx, q: q}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return &custom_errors.PersistenceError{Op: "commit batch", Err: err}
	}
	return nil
}

// LoadCursor returns the stored cursor of source, or an initial cursor if there is none.
func (s *Store) LoadCursor(ctx context.Context, source string) (model.Cursor, error) {
	row, err := s.q.GetSyncCursor(ctx, source)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Cursor{Source: source}, nil
	}
	if err != nil {
		return model.Cursor{}, &custom_errors.PersistenceError{Op: "load cursor " + source, Err: err}
	}
	return cursorFromRow(row), nil
}

// Cursors returns every stored cursor.
func (s *Store) Cursors(ctx context.Context) ([]model.Cursor, error) {
	rows, err := s.q.ListSyncCursors(ctx)
	if err != nil {
		return nil, &custom_errors.PersistenceError{Op: "list cursors", Err: err}
	}
	out := make([]model.Cursor, 0, len(rows))
	for _, r := range rows {
		out = append(out, cursorFromRow(r))
	}
	return out, nil
}

// KnownCommits reports which of shas are stored as commits or history boundaries.
func (s *Store) KnownCommits(ctx context.Context, shas []string) (map[string]bool, error) {
	known := make(map[string]bool)
	if len(shas) == 0 {
		return known, nil
	}
	rows, err := s.q.KnownCommits(ctx, shas)
	if err != nil {
		return nil, &custom_errors.PersistenceError{Op: "look up commits", Err: err}
	}
	for _, sha := range rows {
		known[sha] = true
	}
	return known, nil
}

// DanglingParent is a parent link that resolves to neither a commit nor a boundary.
type DanglingParent struct {
	ChildSHA  string
	ParentSHA string
}

// UnresolvedParents returns up to limit parent links that point nowhere. Outside of an
// interrupted history walk the result is empty.
func (s *Store) UnresolvedParents(ctx context.Context, limit int) ([]DanglingParent, error) {
	rows, err := s.q.UnresolvedParents(ctx, int32(limit))
	if err != nil {
		return nil, &custom_errors.PersistenceError{Op: "check parents", Err: err}
	}
	out := make([]DanglingParent, 0, len(rows))
	for _, r := range rows {
		out = append(out, DanglingParent{ChildSHA: r.ChildSha, ParentSHA: r.ParentSha})
	}
	return out, nil
}

// Counts is the number of stored records per table.
type Counts struct {
	PullRequests int64 `json:"pull_requests"`
	Commits      int64 `json:"commits"`
}

// Counts returns how many pull requests and commits are stored.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	prs, err := s.q.CountPullRequests(ctx)
	if err != nil {
		return Counts{}, &custom_errors.PersistenceError{Op: "count pull requests", Err: err}
	}
	commits, err := s.q.CountCommits(ctx)
	if err != nil {
		return Counts{}, &custom_errors.PersistenceError{Op: "count commits", Err: err}
	}
	return Counts{PullRequests: prs, Commits: commits}, nil
}

type txWriter struct {
	tx pgx.Tx
	q  database.Querier
}

// Upsert writes rec inside a savepoint, so a rejected record leaves the rest of the batch intact.
func (w *txWriter) Upsert(ctx context.Context, rec model.Record) (model.Outcome, error) {
	sp, err := w.tx.Begin(ctx)
	if err != nil {
		return "", &custom_errors.PersistenceError{Op: "savepoint", Err: err}
	}
	outcome, err := upsertRecord(ctx, database.New(sp), rec)
	if err != nil {
		_ = sp.Rollback(ctx)
		return "", classify(rec, err)
	}
	if err := sp.Commit(ctx); err != nil {
		return "", &custom_errors.PersistenceError{Op: "release savepoint", Err: err}
	}
	return outcome, nil
}

// SaveCursor stores cursor in the batch transaction. An unchanged token is not rewritten.
func (w *txWriter) SaveCursor(ctx context.Context, cursor model.Cursor) error {
	if cursor.IsInitial() {
		return nil
	}
	if _, err := w.q.UpsertSyncCursor(ctx, database.UpsertSyncCursorParams{
		Source: cursor.Source,
		Token:  cursor.Token,
	}); err != nil {
		return &custom_errors.PersistenceError{Op: "save cursor " + cursor.Source, Err: err}
	}
	return nil
}

// classify separates errors caused by the record itself (bad data, constraint
// violations) from errors of the store.
func classify(rec model.Record, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		switch pgErr.Code[:2] {
		case "22", "23":
			return &custom_errors.RecordError{Key: rec.Key(), Err: err}
		}
	}
	var recErr *custom_errors.RecordError
	if errors.As(err, &recErr) {
		return recErr
	}
	return &custom_errors.PersistenceError{Op: fmt.Sprintf("upsert %s %s", rec.Kind(), rec.Key()), Err: err}
}

func cursorFromRow(row database.SyncCursor) model.Cursor {
	c := model.Cursor{Source: row.Source, Token: row.Token}
	if row.AdvancedAt.Valid {
		c.AdvancedAt = row.AdvancedAt.Time.UTC()
	}
	return c
}
