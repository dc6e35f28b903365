// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
	"github.com/ambv/cpython-stats/internal/model"
	"github.com/ambv/cpython-stats/internal/source"
	"github.com/ambv/cpython-stats/internal/store"
)

const (
	// Number of sources to sync in parallel
	concurrency = 5

	defaultMaxConsecutiveAnomalies = 25

	// Upper bound for committing one batch once it has started.
	defaultPersistTimeout = 2 * time.Minute
)

// State is the position of a source in the sync state machine.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateNormalizing State = "normalizing"
	StatePersisting  State = "persisting"
	StateAdvancing   State = "advancing"
	StateError       State = "error"
)

// Store is the persistence used by the Syncer.
type Store interface {
	LoadCursor(ctx context.Context, source string) (model.Cursor, error)
	Batch(ctx context.Context, source string, fn func(store.Writer) error) error
}

// Anomaly is a record that was skipped.
type Anomaly struct {
	Key string
	Err error
}

// Result summarizes one run of one source.
type Result struct {
	Source    string
	State     State
	Batches   int
	Seen      int
	Inserted  int
	Updated   int
	Unchanged int
	Anomalies []Anomaly
	// Cursor is the last cursor saved (or loaded, if nothing was saved).
	Cursor     model.Cursor
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed reports whether the run ended in the error state.
func (r Result) Failed() bool { return r.State == StateError }

// Status is the live view of a source for the status endpoint.
type Status struct {
	Source    string
	State     State
	Since     time.Time
	LastRun   *Result
	LastError string
}

// Syncer orchestrates the fetching and storing of data.
type Syncer struct {
	store          Store
	logger         *slog.Logger
	maxAnomalies   int
	persistTimeout time.Duration

	mu     sync.Mutex
	status map[string]*Status
}

// NewSyncer creates a new Syncer instance. A source is stopped after
// maxConsecutiveAnomalies skipped records in a row.
func NewSyncer(st Store, logger *slog.Logger, maxConsecutiveAnomalies int) *Syncer {
	if maxConsecutiveAnomalies <= 0 {
		maxConsecutiveAnomalies = defaultMaxConsecutiveAnomalies
	}
	return &Syncer{
		store:          st,
		logger:         logger,
		maxAnomalies:   maxConsecutiveAnomalies,
		persistTimeout: defaultPersistTimeout,
		status:         make(map[string]*Status),
	}
}

// Start runs every source immediately and then once per interval until ctx is done.
func (s *Syncer) Start(ctx context.Context, interval time.Duration, sources ...source.Source) {
	s.logger.Info("Starting syncer", "interval", interval.String(), "sources", len(sources))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runSyncCycle(ctx, sources) // Initial sync

	for {
		select {
		case <-ticker.C:
			s.runSyncCycle(ctx, sources)
		case <-ctx.Done():
			s.logger.Info("Syncer shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (s *Syncer) runSyncCycle(ctx context.Context, sources []source.Source) {
	s.logger.Info("Starting new sync cycle")
	results := s.RunAll(ctx, sources...)
	failed := 0
	for _, r := range results {
		if r.Failed() && !errors.Is(r.Err, context.Canceled) {
			failed++
		}
	}
	if failed > 0 {
		s.logger.Error("Sync cycle finished with errors", "failed_sources", failed)
	} else {
		s.logger.Info("Sync cycle finished")
	}
}

// RunAll runs the sources concurrently. A failing source does not affect the others.
func (s *Syncer) RunAll(ctx context.Context, sources ...source.Source) []Result {
	results := make([]Result, len(sources))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, src := range sources {
		g.Go(func() error {
			results[i] = s.Run(ctx, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Run synchronizes one source from its stored cursor until the source is exhausted,
// a batch fails, or ctx is done. ctx is only checked between batches.
func (s *Syncer) Run(ctx context.Context, src source.Source) Result {
	r := &run{
		syncer: s,
		src:    src,
		logger: s.logger.With("source", src.Name()),
		res:    Result{Source: src.Name(), State: StateIdle, StartedAt: time.Now().UTC()},
	}
	r.execute(ctx)
	r.res.FinishedAt = time.Now().UTC()
	s.finish(r.res)
	return r.res
}

// Record stores a result produced outside Run, such as a source that could not be
// started, so that it shows up in Statuses.
func (s *Syncer) Record(res Result) {
	s.setState(res.Source, res.State)
	s.finish(res)
}

// Statuses returns the state of every source that has run at least once.
func (s *Syncer) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, 0, len(s.status))
	for _, st := range s.status {
		cp := *st
		out = append(out, cp)
	}
	return out
}

func (s *Syncer) setState(source string, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[source]
	if !ok {
		st = &Status{Source: source}
		s.status[source] = st
	}
	st.State = state
	st.Since = time.Now().UTC()
}

func (s *Syncer) finish(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[res.Source]
	if !ok {
		st = &Status{Source: res.Source}
		s.status[res.Source] = st
	}
	last := res
	st.LastRun = &last
	st.State = res.State
	st.LastError = ""
	if res.Err != nil {
		st.LastError = res.Err.Error()
	}
}

// run is the state of one Run call.
type run struct {
	syncer      *Syncer
	src         source.Source
	logger      *slog.Logger
	res         Result
	consecutive int
}

func (r *run) transition(to State) {
	from := r.res.State
	r.res.State = to
	r.syncer.setState(r.res.Source, to)
	r.logger.Debug("Sync state transition", "from", from, "to", to, "batch", r.res.Batches)
}

func (r *run) fail(err error) {
	r.res.Err = fmt.Errorf("sync %s failed, last saved cursor %s: %w", r.res.Source, describeCursor(r.res.Cursor), err)
	r.transition(StateError)
	r.logger.Error("Sync failed", "error", err, "cursor", describeCursor(r.res.Cursor), "batches", r.res.Batches)
}

func (r *run) execute(ctx context.Context) {
	// Loading the cursor is the first read of a fetch.
	r.transition(StateFetching)
	cursor, err := r.syncer.store.LoadCursor(ctx, r.res.Source)
	if err != nil {
		r.fail(err)
		return
	}
	r.res.Cursor = cursor
	r.logger.Info("Sync started", "cursor", describeCursor(cursor))

	pager, err := r.src.FetchSince(ctx, cursor)
	if err != nil {
		r.fail(err)
		return
	}

	for {
		if err := ctx.Err(); err != nil {
			r.fail(err)
			return
		}
		if r.res.State != StateFetching {
			r.transition(StateFetching)
		}
		batch, err := pager.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.fail(err)
			return
		}
		if err := r.processBatch(ctx, batch); err != nil {
			r.fail(err)
			return
		}
	}

	r.transition(StateIdle)
	r.logger.Info("Sync finished",
		"batches", r.res.Batches,
		"seen", r.res.Seen,
		"inserted", r.res.Inserted,
		"updated", r.res.Updated,
		"unchanged", r.res.Unchanged,
		"anomalies", len(r.res.Anomalies),
	)
}

// item is a raw record after normalization: either a record or the reason it was skipped.
type item struct {
	key string
	rec model.Record
	err error
}

type counts struct {
	inserted, updated, unchanged int
}

func (r *run) processBatch(ctx context.Context, batch source.Batch) error {
	r.transition(StateNormalizing)
	items := make([]item, 0, len(batch.Records))
	for _, raw := range batch.Records {
		rec, err := r.src.Normalize(raw)
		if err != nil {
			items = append(items, item{key: raw.Key(), err: err})
			continue
		}
		items = append(items, item{key: rec.Key(), rec: rec})
	}

	r.transition(StatePersisting)
	var c counts
	consecutive := r.consecutive
	var anomalies []Anomaly

	// A started batch runs to commit or rollback even if ctx is cancelled meanwhile;
	// cancellation is honoured at the next batch boundary.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.syncer.persistTimeout)
	defer cancel()

	err := r.syncer.store.Batch(pctx, r.res.Source, func(w store.Writer) error {
		for _, it := range items {
			if it.err == nil {
				outcome, err := w.Upsert(pctx, it.rec)
				var recErr *custom_errors.RecordError
				switch {
				case errors.As(err, &recErr):
					it.err = err
				case err != nil:
					return err
				default:
					consecutive = 0
					c.add(outcome)
					continue
				}
			}

			consecutive++
			anomalies = append(anomalies, Anomaly{Key: it.key, Err: it.err})
			r.logger.Warn("Skipping record", "key", it.key, "error", it.err, "consecutive", consecutive)
			if consecutive >= r.syncer.maxAnomalies {
				return &custom_errors.ThresholdExceededError{Source: r.res.Source, Consecutive: consecutive, Last: it.err}
			}
		}

		r.transition(StateAdvancing)
		return w.SaveCursor(pctx, batch.Cursor)
	})
	r.res.Anomalies = append(r.res.Anomalies, anomalies...)
	if err != nil {
		return err
	}

	r.consecutive = consecutive
	r.res.Batches++
	r.res.Seen += len(batch.Records)
	r.res.Inserted += c.inserted
	r.res.Updated += c.updated
	r.res.Unchanged += c.unchanged
	r.res.Cursor = batch.Cursor
	r.logger.Debug("Batch committed", "records", len(batch.Records), "inserted", c.inserted, "updated", c.updated, "cursor", describeCursor(batch.Cursor))
	return nil
}

func (c *counts) add(o model.Outcome) {
	switch o {
	case model.OutcomeInserted:
		c.inserted++
	case model.OutcomeUpdated:
		c.updated++
	default:
		c.unchanged++
	}
}

func describeCursor(c model.Cursor) string {
	if c.IsInitial() {
		return "<initial>"
	}
	return string(c.Token)
}
