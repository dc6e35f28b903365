// internal/github/retry.go
package github

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v62/github"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
)

const (
	// Wait used when a secondary rate limit response carries no hint.
	defaultRateLimitWait = time.Minute

	// Consecutive rate-limit holds on one request before giving up.
	maxRateLimitHolds = 10
)

type retryPolicy struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	// minRateLimitWait is the shortest hold; a reset in the past (clock skew)
	// doubles it on every consecutive hold, up to maxInterval.
	minRateLimitWait time.Duration
	maxHolds         int
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:      maxRetries,
		initialInterval:  500 * time.Millisecond,
		maxInterval:      30 * time.Second,
		minRateLimitWait: time.Second,
		maxHolds:         maxRateLimitHolds,
	}
}

// holdFor returns how long the n-th consecutive hold (1-based) waits for reset.
func (p retryPolicy) holdFor(reset time.Time, n int) time.Duration {
	wait := time.Until(reset)
	if wait >= p.minRateLimitWait {
		return wait
	}
	wait = p.minRateLimitWait
	for i := 1; i < n && wait < p.maxInterval; i++ {
		wait *= 2
	}
	return min(wait, max(p.maxInterval, p.minRateLimitWait))
}

func (p retryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialInterval
	eb.MaxInterval = p.maxInterval
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.maxAttempts-1)), ctx)
}

type result[T any] struct {
	value T
	resp  *github.Response
}

// call runs fn until it succeeds, fails permanently or runs out of attempts.
// Rate-limit responses put the request on hold until the reported reset and then
// re-issue it unchanged; the hold does not count as an attempt. More than maxHolds
// holds in a row fail the request with a RateLimitError.
func call[T any](ctx context.Context, c *Client, op string, fn func() (T, *github.Response, error)) (T, *github.Response, error) {
	attempts := 0
	operation := func() (result[T], error) {
		holds := 0
		for {
			v, resp, err := fn()
			if err == nil {
				attempts++
				return result[T]{value: v, resp: resp}, nil
			}
			if reset, ok := rateLimitReset(err, resp); ok {
				holds++
				if holds > c.retry.maxHolds {
					c.logger.Error("GitHub rate limit did not lift", "op", op, "holds", holds-1, "reset", reset.UTC())
					return result[T]{}, backoff.Permanent(&custom_errors.RateLimitError{Reset: reset, Err: err})
				}
				if werr := c.waitForReset(ctx, op, reset, holds, err); werr != nil {
					return result[T]{}, backoff.Permanent(werr)
				}
				continue
			}
			attempts++
			if ctx.Err() != nil || !isRetryable(err) {
				return result[T]{}, backoff.Permanent(err)
			}
			return result[T]{}, err
		}
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Transient GitHub API failure, retrying", "op", op, "attempt", attempts, "wait", wait, "error", err)
	}

	res, err := backoff.RetryNotifyWithData(operation, c.retry.backOff(ctx), notify)
	if err != nil {
		var zero T
		if ctx.Err() == nil && isRetryable(err) {
			return zero, nil, &custom_errors.TransientNetworkError{Op: op, Attempts: attempts, Err: err}
		}
		return zero, nil, err
	}
	return res.value, res.resp, nil
}

func (c *Client) waitForReset(ctx context.Context, op string, reset time.Time, hold int, cause error) error {
	wait := c.retry.holdFor(reset, hold)
	c.logger.Warn("GitHub rate limit hit, waiting for reset", "op", op, "reset", reset.UTC(), "wait", wait.Round(time.Millisecond), "hold", hold, "error", cause)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return &custom_errors.RateLimitError{Reset: reset, Err: ctx.Err()}
	case <-timer.C:
		return nil
	}
}

// rateLimitReset reports whether err is a rate-limit signal and when it lifts.
func rateLimitReset(err error, resp *github.Response) (time.Time, bool) {
	var rlErr *github.RateLimitError
	if errors.As(err, &rlErr) {
		return rlErr.Rate.Reset.Time, true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		if abuseErr.RetryAfter != nil {
			return time.Now().Add(*abuseErr.RetryAfter), true
		}
		return time.Now().Add(defaultRateLimitWait), true
	}

	var errResp *github.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return time.Time{}, false
	}
	r := errResp.Response
	if r.StatusCode != http.StatusTooManyRequests && r.StatusCode != http.StatusForbidden {
		return time.Time{}, false
	}
	if s := r.Header.Get("Retry-After"); s != "" {
		if secs, perr := strconv.Atoi(s); perr == nil {
			return time.Now().Add(time.Duration(secs) * time.Second), true
		}
	}
	if s := r.Header.Get("X-RateLimit-Reset"); s != "" && r.Header.Get("X-RateLimit-Remaining") == "0" {
		if unix, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			return time.Unix(unix, 0), true
		}
	}
	if r.StatusCode == http.StatusTooManyRequests {
		return time.Now().Add(defaultRateLimitWait), true
	}
	// A plain 403 is a permission problem, not a rate limit.
	return time.Time{}, false
}

// isRetryable classifies errors that are expected to go away on their own.
func isRetryable(err error) bool {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code := errResp.Response.StatusCode
		return code >= 500 || code == http.StatusRequestTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
