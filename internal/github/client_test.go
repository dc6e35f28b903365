// internal/github/client_test.go
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
)

const testAttempts = 3

// setupTestClient creates a httptest server and a client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	// We can pass an empty token because we are not authenticating to the real GitHub.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient("", logger, WithBaseURL(server.URL), WithMaxRetries(testAttempts), WithTimeout(2*time.Second))
	client.retry.initialInterval = time.Millisecond
	client.retry.maxInterval = 5 * time.Millisecond
	client.retry.minRateLimitWait = time.Millisecond

	return client, server
}

func TestClient_GetRepository_Retry(t *testing.T) {
	t.Run("succeeds on first try", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			assert.Equal(t, "/repos/test/repo", r.URL.Path)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		repo, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
		assert.Equal(t, "repo", repo.GetName())
	})

	t.Run("retries on 503 server error and succeeds", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.WriteHeader(http.StatusServiceUnavailable) // Fail first time
				return
			}
			w.WriteHeader(http.StatusOK) // Succeed second time
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "should have made two requests")
	})

	t.Run("waits for primary rate limit reset", func(t *testing.T) {
		var requestCount int32
		resetUnix := time.Now().Unix() + 1
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count == 1 {
				w.Header().Set("X-RateLimit-Limit", "5000")
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", resetUnix))
				w.WriteHeader(http.StatusForbidden)
				fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.False(t, time.Now().Before(time.Unix(resetUnix, 0)), "client should wait for rate limit reset")
		assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
	})

	t.Run("rate limit waits do not use up retries", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := atomic.AddInt32(&requestCount, 1)
			if count <= testAttempts+1 {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintln(w, `{"message": "slow down"}`)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"id": 1, "name": "repo", "owner": {"login": "test"}}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.NoError(t, err)
		assert.Equal(t, int32(testAttempts+2), atomic.LoadInt32(&requestCount))
	})

	t.Run("fails after max retries on persistent server error", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var transient *custom_errors.TransientNetworkError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, testAttempts, transient.Attempts)
		var ghErr *github.ErrorResponse
		assert.ErrorAs(t, err, &ghErr)
		assert.Equal(t, http.StatusInternalServerError, ghErr.Response.StatusCode)
		assert.Equal(t, int32(testAttempts), atomic.LoadInt32(&requestCount))
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var requestCount int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var transient *custom_errors.TransientNetworkError
		assert.False(t, errors.As(err, &transient), "client errors are not transient")
		assert.Equal(t, int32(1), atomic.LoadInt32(&requestCount))
	})

	t.Run("stale rate limit reset backs off and gives up", func(t *testing.T) {
		var requestCount int32
		staleReset := time.Now().Add(-30 * time.Second).Unix()
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", staleReset))
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintln(w, `{"message": "API rate limit exceeded"}`)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()
		client.retry.maxHolds = 3

		start := time.Now()
		_, err := client.GetRepository(context.Background(), "test", "repo")

		require.Error(t, err)
		var rlErr *custom_errors.RateLimitError
		require.ErrorAs(t, err, &rlErr)
		assert.Equal(t, int32(4), atomic.LoadInt32(&requestCount), "initial request plus three holds")
		assert.GreaterOrEqual(t, time.Since(start), 7*time.Millisecond, "holds wait 1ms, 2ms and 4ms")
	})

	t.Run("rate limit wait is cancellable", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		client, server := setupTestClient(t, handler)
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.GetRepository(ctx, "test", "repo")

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		var rlErr *custom_errors.RateLimitError
		assert.ErrorAs(t, err, &rlErr)
	})
}

func TestRetryPolicy_HoldFor(t *testing.T) {
	p := retryPolicy{minRateLimitWait: time.Second, maxInterval: 30 * time.Second}

	future := time.Now().Add(time.Hour)
	assert.InDelta(t, float64(time.Hour), float64(p.holdFor(future, 5)), float64(time.Second), "a future reset is waited for")

	past := time.Now().Add(-time.Minute)
	assert.Equal(t, time.Second, p.holdFor(past, 1))
	assert.Equal(t, 2*time.Second, p.holdFor(past, 2))
	assert.Equal(t, 8*time.Second, p.holdFor(past, 4))
	assert.Equal(t, 30*time.Second, p.holdFor(past, 20), "capped at the max interval")
}

func TestClient_ListPullRequests(t *testing.T) {
	var server *httptest.Server
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/python/cpython/pulls", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "all", q.Get("state"))
		assert.Equal(t, "updated", q.Get("sort"))
		assert.Equal(t, "desc", q.Get("direction"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("per_page"))

		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/python/cpython/pulls?page=3>; rel="next"`, server.URL))
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `[{"number": 7, "updated_at": "2024-01-02T00:00:00Z"}, {"number": 5, "updated_at": "2024-01-01T00:00:00Z"}]`)
	})
	client, srv := setupTestClient(t, handler)
	server = srv
	defer server.Close()

	page, err := client.ListPullRequests(context.Background(), "python", "cpython", 2, 50)

	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 3, page.NextPage)
	require.Len(t, page.PullRequests, 2)
	assert.Equal(t, 7, page.PullRequests[0].GetNumber())
}

func TestClient_ListReviews_Paginates(t *testing.T) {
	var server *httptest.Server
	var requestCount int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		assert.Equal(t, "/repos/python/cpython/pulls/42/reviews", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintln(w, `[{"id": 2, "state": "APPROVED"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/repos/python/cpython/pulls/42/reviews?page=2>; rel="next"`, server.URL))
		fmt.Fprintln(w, `[{"id": 1, "state": "COMMENTED"}]`)
	})
	client, srv := setupTestClient(t, handler)
	server = srv
	defer server.Close()

	reviews, err := client.ListReviews(context.Background(), "python", "cpython", 42)

	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, int64(1), reviews[0].GetID())
	assert.Equal(t, int64(2), reviews[1].GetID())
	assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount))
}

func TestClient_GetPullRequestDetails(t *testing.T) {
	var server *httptest.Server
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/python/cpython/pulls/42/reviews":
			fmt.Fprintln(w, `[{"id": 1, "state": "APPROVED", "body": "LGTM"}]`)
		case "/repos/python/cpython/pulls/42/files":
			if r.URL.Query().Get("page") == "2" {
				fmt.Fprintln(w, `[{"filename": "Lib/b.py", "additions": 0, "deletions": 2, "changes": 2}]`)
				return
			}
			w.Header().Set("Link", fmt.Sprintf(`<%s/repos/python/cpython/pulls/42/files?page=2>; rel="next"`, server.URL))
			fmt.Fprintln(w, `[{"filename": "Lib/a.py", "additions": 3, "deletions": 1, "changes": 4}]`)
		case "/repos/python/cpython/pulls/42/commits":
			fmt.Fprintln(w, `[{"sha": "abc", "author": {"login": "ambv"}}]`)
		case "/repos/python/cpython/issues/42/comments":
			fmt.Fprintln(w, `[{"id": 5, "body": "Thanks!"}]`)
		case "/repos/python/cpython/pulls/42/comments":
			fmt.Fprintln(w, `[{"id": 6, "body": "nit"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	client, srv := setupTestClient(t, handler)
	server = srv
	defer server.Close()

	d, err := client.GetPullRequestDetails(context.Background(), "python", "cpython", 42)

	require.NoError(t, err)
	require.Len(t, d.Reviews, 1)
	assert.Equal(t, "LGTM", d.Reviews[0].GetBody())
	require.Len(t, d.Files, 2)
	assert.Equal(t, "Lib/a.py", d.Files[0].GetFilename())
	assert.Equal(t, 4, d.Files[0].GetChanges())
	assert.Equal(t, 2, d.Files[1].GetDeletions())
	require.Len(t, d.Commits, 1)
	assert.Equal(t, "ambv", d.Commits[0].GetAuthor().GetLogin())
	require.Len(t, d.IssueComments, 1)
	require.Len(t, d.ReviewComments, 1)
	assert.Equal(t, int64(6), d.ReviewComments[0].GetID())
}

func TestClient_GetPullRequestDetails_StopsAtFirstFailure(t *testing.T) {
	var requestCount int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		if r.URL.Path == "/repos/python/cpython/pulls/42/reviews" {
			fmt.Fprintln(w, `[]`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"message": "Not Found"}`)
	})
	client, server := setupTestClient(t, handler)
	defer server.Close()

	_, err := client.GetPullRequestDetails(context.Background(), "python", "cpython", 42)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing files of #42")
	assert.Equal(t, int32(2), atomic.LoadInt32(&requestCount), "404 is not retried")
}
