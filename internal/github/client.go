// internal/github/client.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

const (
	// Default number of attempts for a request failing with a transient error.
	maxRetries = 5

	defaultTimeout = 30 * time.Second
	maxPerPage     = 100
)

// Client is a wrapper around the go-github client.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
	retry  retryPolicy
}

type options struct {
	timeout    time.Duration
	maxRetries int
	baseURL    string
}

// Option customizes a Client.
type Option func(*options)

// WithTimeout sets the timeout applied to every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxRetries sets how many attempts a request gets before a transient failure is returned.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithBaseURL points the client at another API root (GitHub Enterprise or a test server).
func WithBaseURL(raw string) Option {
	return func(o *options) {
		o.baseURL = raw
	}
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger, opts ...Option) *Client {
	o := options{timeout: defaultTimeout, maxRetries: maxRetries}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = o.timeout

	gh := github.NewClient(tc)
	if o.baseURL != "" {
		raw := o.baseURL
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		if u, err := url.Parse(raw); err != nil {
			logger.Error("Ignoring invalid GitHub base URL", "url", raw, "error", err)
		} else {
			gh.BaseURL = u
		}
	}

	retry := defaultRetryPolicy()
	retry.maxAttempts = o.maxRetries
	return &Client{
		gh:     gh,
		logger: logger,
		retry:  retry,
	}
}

// GetRepository fetches repository details. Used to check access before a sync starts.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	repo, _, err := call(ctx, c, "get repository", func() (*github.Repository, *github.Response, error) {
		return c.gh.Repositories.Get(ctx, owner, name)
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// PullRequestPage is one page of pull requests, most recently updated first.
type PullRequestPage struct {
	Page         int
	PullRequests []*github.PullRequest
	// NextPage is 0 on the last page.
	NextPage int
}

// ListPullRequests fetches a single page of pull requests in every state ordered by update time, newest first.
// It never requests more than the one page asked for.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string, page, perPage int) (PullRequestPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}
	opts := &github.PullRequestListOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	c.logger.Debug("Fetching pull requests page", "owner", owner, "repo", name, "page", page)
	prs, resp, err := call(ctx, c, "list pull requests", func() ([]*github.PullRequest, *github.Response, error) {
		return c.gh.PullRequests.List(ctx, owner, name, opts)
	})
	if err != nil {
		return PullRequestPage{}, fmt.Errorf("listing pull requests page %d: %w", page, err)
	}
	return PullRequestPage{Page: page, PullRequests: prs, NextPage: resp.NextPage}, nil
}

// ListReviews fetches all reviews of a pull request.
// It handles API pagination transparently.
func (c *Client) ListReviews(ctx context.Context, owner, name string, number int) ([]*github.PullRequestReview, error) {
	reviews, err := listAll(ctx, c, "list reviews", func(opts *github.ListOptions) ([]*github.PullRequestReview, *github.Response, error) {
		return c.gh.PullRequests.ListReviews(ctx, owner, name, number, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("listing reviews of #%d: %w", number, err)
	}
	return reviews, nil
}

// ListFiles fetches the changed files of a pull request with their line counts.
// GitHub stops listing after 3000 files.
func (c *Client) ListFiles(ctx context.Context, owner, name string, number int) ([]*github.CommitFile, error) {
	files, err := listAll(ctx, c, "list files", func(opts *github.ListOptions) ([]*github.CommitFile, *github.Response, error) {
		return c.gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("listing files of #%d: %w", number, err)
	}
	return files, nil
}

// ListCommits fetches the commits of a pull request, at most 250.
func (c *Client) ListCommits(ctx context.Context, owner, name string, number int) ([]*github.RepositoryCommit, error) {
	commits, err := listAll(ctx, c, "list commits", func(opts *github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
		return c.gh.PullRequests.ListCommits(ctx, owner, name, number, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("listing commits of #%d: %w", number, err)
	}
	return commits, nil
}

// ListIssueComments fetches the conversation comments of a pull request.
func (c *Client) ListIssueComments(ctx context.Context, owner, name string, number int) ([]*github.IssueComment, error) {
	comments, err := listAll(ctx, c, "list issue comments", func(opts *github.ListOptions) ([]*github.IssueComment, *github.Response, error) {
		return c.gh.Issues.ListComments(ctx, owner, name, number, &github.IssueListCommentsOptions{ListOptions: *opts})
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments of #%d: %w", number, err)
	}
	return comments, nil
}

// ListReviewComments fetches the inline diff comments of a pull request.
func (c *Client) ListReviewComments(ctx context.Context, owner, name string, number int) ([]*github.PullRequestComment, error) {
	comments, err := listAll(ctx, c, "list review comments", func(opts *github.ListOptions) ([]*github.PullRequestComment, *github.Response, error) {
		return c.gh.PullRequests.ListComments(ctx, owner, name, number, &github.PullRequestListCommentsOptions{ListOptions: *opts})
	})
	if err != nil {
		return nil, fmt.Errorf("listing review comments of #%d: %w", number, err)
	}
	return comments, nil
}

// PullRequestDetails is everything listed per pull request besides the pull request itself.
type PullRequestDetails struct {
	Reviews        []*github.PullRequestReview
	Files          []*github.CommitFile
	Commits        []*github.RepositoryCommit
	IssueComments  []*github.IssueComment
	ReviewComments []*github.PullRequestComment
}

// GetPullRequestDetails fetches the reviews, files, commits and comments of a pull request.
// The first failing listing aborts the rest.
func (c *Client) GetPullRequestDetails(ctx context.Context, owner, name string, number int) (PullRequestDetails, error) {
	var (
		d   PullRequestDetails
		err error
	)
	if d.Reviews, err = c.ListReviews(ctx, owner, name, number); err != nil {
		return PullRequestDetails{}, err
	}
	if d.Files, err = c.ListFiles(ctx, owner, name, number); err != nil {
		return PullRequestDetails{}, err
	}
	if d.Commits, err = c.ListCommits(ctx, owner, name, number); err != nil {
		return PullRequestDetails{}, err
	}
	if d.IssueComments, err = c.ListIssueComments(ctx, owner, name, number); err != nil {
		return PullRequestDetails{}, err
	}
	if d.ReviewComments, err = c.ListReviewComments(ctx, owner, name, number); err != nil {
		return PullRequestDetails{}, err
	}
	return d, nil
}

// listAll follows NextPage until the last page, retrying each page on its own.
func listAll[T any](ctx context.Context, c *Client, op string, fn func(opts *github.ListOptions) ([]T, *github.Response, error)) ([]T, error) {
	var all []T
	opts := &github.ListOptions{PerPage: maxPerPage}

	for {
		items, resp, err := call(ctx, c, op, func() ([]T, *github.Response, error) {
			return fn(opts)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}
