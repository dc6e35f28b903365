// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ambv/cpython-stats/internal/model"
	"github.com/ambv/cpython-stats/internal/store"
	"github.com/ambv/cpython-stats/internal/syncer"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Cursors(ctx context.Context) ([]model.Cursor, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Cursor), args.Error(1)
}

func (m *MockStore) Counts(ctx context.Context) (store.Counts, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.Counts), args.Error(1)
}

type fakeStatuses []syncer.Status

func (f fakeStatuses) Statuses() []syncer.Status { return f }

func TestHealthCheck(t *testing.T) {
	router := NewRouter(fakeStatuses(nil), new(MockStore), discard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestGetSyncStatus(t *testing.T) {
	advanced := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	st := new(MockStore)
	st.On("Cursors", mock.Anything).Return([]model.Cursor{
		{Source: "github_pull_requests", Token: json.RawMessage(`{"since":"2024-05-01T00:00:00Z"}`), AdvancedAt: advanced},
		{Source: "git_commits", Token: json.RawMessage(`{"seen_heads":["abc"]}`), AdvancedAt: advanced},
	}, nil)
	st.On("Counts", mock.Anything).Return(store.Counts{PullRequests: 10, Commits: 20}, nil)

	statuses := fakeStatuses{{
		Source:    "git_commits",
		State:     syncer.StateError,
		Since:     advanced,
		LastError: "sync git_commits failed",
		LastRun:   &syncer.Result{Batches: 2, Seen: 7, Inserted: 5, Anomalies: []syncer.Anomaly{{Key: "x"}}},
	}}
	router := NewRouter(statuses, st, discard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sync/status", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, int64(10), resp.Counts.PullRequests)
	require.Len(t, resp.Sources, 2)

	commits := resp.Sources[0]
	assert.Equal(t, "git_commits", commits.Source)
	assert.Equal(t, syncer.StateError, commits.State)
	assert.Equal(t, "sync git_commits failed", commits.LastError)
	require.NotNil(t, commits.LastRun)
	assert.Equal(t, 5, commits.LastRun.Inserted)
	assert.Equal(t, 1, commits.LastRun.Anomalies)
	assert.JSONEq(t, `{"seen_heads":["abc"]}`, string(commits.Cursor))

	prs := resp.Sources[1]
	assert.Equal(t, "github_pull_requests", prs.Source)
	assert.Equal(t, syncer.StateIdle, prs.State, "sources that have not run yet are idle")
	assert.Nil(t, prs.LastRun)
	require.NotNil(t, prs.AdvancedAt)
	assert.True(t, advanced.Equal(*prs.AdvancedAt))
	st.AssertExpectations(t)
}

func TestGetSyncStatus_StoreError(t *testing.T) {
	st := new(MockStore)
	st.On("Cursors", mock.Anything).Return([]model.Cursor(nil), errors.New("db down"))
	router := NewRouter(fakeStatuses(nil), st, discard)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/sync/status", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
	st.AssertNotCalled(t, "Counts", mock.Anything)
}
