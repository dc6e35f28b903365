// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ambv/cpython-stats/internal/model"
	"github.com/ambv/cpython-stats/internal/store"
	"github.com/ambv/cpython-stats/internal/syncer"
)

// StatusSource reports the live orchestrator state of every source.
type StatusSource interface {
	Statuses() []syncer.Status
}

// CursorStore reads persisted sync progress.
type CursorStore interface {
	Cursors(ctx context.Context) ([]model.Cursor, error)
	Counts(ctx context.Context) (store.Counts, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	syncer StatusSource
	store  CursorStore
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with the health and status routes.
func NewRouter(s StatusSource, st CursorStore, logger *slog.Logger) http.Handler {
	h := &Handler{
		syncer: s,
		store:  st,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/sync/status", h.getSyncStatus)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runResponse struct {
	Batches    int       `json:"batches"`
	Seen       int       `json:"seen"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Anomalies  int       `json:"anomalies"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type sourceResponse struct {
	Source     string          `json:"source"`
	State      syncer.State    `json:"state"`
	Since      *time.Time      `json:"state_since,omitempty"`
	LastRun    *runResponse    `json:"last_run,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Cursor     json.RawMessage `json:"cursor,omitempty"`
	AdvancedAt *time.Time      `json:"cursor_advanced_at,omitempty"`
}

type statusResponse struct {
	Sources []sourceResponse `json:"sources"`
	Counts  store.Counts     `json:"counts"`
}

// getSyncStatus merges in-memory orchestrator state with the stored cursors.
// GET /v1/sync/status
func (h *Handler) getSyncStatus(w http.ResponseWriter, r *http.Request) {
	cursors, err := h.store.Cursors(r.Context())
	if err != nil {
		h.logger.Error("Failed to load sync cursors", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	counts, err := h.store.Counts(r.Context())
	if err != nil {
		h.logger.Error("Failed to count records", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	bySource := make(map[string]*sourceResponse)
	get := func(name string) *sourceResponse {
		s, ok := bySource[name]
		if !ok {
			s = &sourceResponse{Source: name, State: syncer.StateIdle}
			bySource[name] = s
		}
		return s
	}

	for _, c := range cursors {
		s := get(c.Source)
		s.Cursor = c.Token
		advanced := c.AdvancedAt
		s.AdvancedAt = &advanced
	}
	for _, st := range h.syncer.Statuses() {
		s := get(st.Source)
		s.State = st.State
		s.LastError = st.LastError
		if !st.Since.IsZero() {
			since := st.Since
			s.Since = &since
		}
		if res := st.LastRun; res != nil {
			s.LastRun = &runResponse{
				Batches:    res.Batches,
				Seen:       res.Seen,
				Inserted:   res.Inserted,
				Updated:    res.Updated,
				Unchanged:  res.Unchanged,
				Anomalies:  len(res.Anomalies),
				StartedAt:  res.StartedAt,
				FinishedAt: res.FinishedAt,
			}
		}
	}

	resp := statusResponse{Sources: make([]sourceResponse, 0, len(bySource)), Counts: counts}
	for _, s := range bySource {
		resp.Sources = append(resp.Sources, *s)
	}
	sort.Slice(resp.Sources, func(i, j int) bool { return resp.Sources[i].Source < resp.Sources[j].Source })

	respondWithJSON(w, http.StatusOK, resp)
}
