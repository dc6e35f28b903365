// internal/source/pulls.go
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	ghclient "github.com/ambv/cpython-stats/internal/github"
	"github.com/ambv/cpython-stats/internal/model"
	"github.com/ambv/cpython-stats/internal/normalize"
)

// PullRequestsName is the cursor key of the pull request source.
const PullRequestsName = "github_pull_requests"

// PullRequestLister is the part of the GitHub client used by PullRequests.
type PullRequestLister interface {
	ListPullRequests(ctx context.Context, owner, name string, page, perPage int) (ghclient.PullRequestPage, error)
	GetPullRequestDetails(ctx context.Context, owner, name string, number int) (ghclient.PullRequestDetails, error)
}

// prToken is the pull request cursor.
//
// A window covers everything updated at or after Since. Pages are read newest first,
// so concurrent updates push already-read pull requests further down (re-read, never
// skipped). WindowTop is the newest update seen when the window started; it becomes
// the next window's Since once the window is exhausted.
type prToken struct {
	Since     time.Time  `json:"since"`
	WindowTop *time.Time `json:"window_top,omitempty"`
	NextPage  int        `json:"next_page,omitempty"`
}

// PullRequests synchronizes the pull requests of one repository.
type PullRequests struct {
	client       PullRequestLister
	owner        string
	repo         string
	pageSize     int
	defaultSince time.Time
	logger       *slog.Logger
}

// NewPullRequests creates the pull request source. defaultSince bounds the first run.
func NewPullRequests(client PullRequestLister, owner, repo string, pageSize int, defaultSince time.Time, logger *slog.Logger) *PullRequests {
	return &PullRequests{
		client:       client,
		owner:        owner,
		repo:         repo,
		pageSize:     pageSize,
		defaultSince: defaultSince.UTC(),
		logger:       logger.With("source", PullRequestsName),
	}
}

func (s *PullRequests) Name() string { return PullRequestsName }

// FetchSince resumes the window stored in cursor, or opens a new one at defaultSince.
func (s *PullRequests) FetchSince(_ context.Context, cursor model.Cursor) (Pager, error) {
	tok := prToken{Since: s.defaultSince}
	if err := decodeCursor(cursor, &tok); err != nil {
		return nil, err
	}
	page := tok.NextPage
	if page < 1 {
		page = 1
	}
	s.logger.Info("Fetching pull requests", "since", tok.Since.Format(time.RFC3339), "page", page)
	return &prPager{src: s, since: tok.Since, windowTop: tok.WindowTop, page: page}, nil
}

func (s *PullRequests) Normalize(raw RawRecord) (model.Record, error) {
	if raw.Kind != model.KindPullRequest {
		return nil, fmt.Errorf("pull request source cannot normalize %s records", raw.Kind)
	}
	return normalize.PullRequest(raw.PullRequest, raw.Details)
}

type prPager struct {
	src       *PullRequests
	since     time.Time
	windowTop *time.Time
	page      int
	done      bool
}

func (p *prPager) Next(ctx context.Context) (Batch, error) {
	if p.done {
		return Batch{}, io.EOF
	}
	s := p.src

	res, err := s.client.ListPullRequests(ctx, s.owner, s.repo, p.page, s.pageSize)
	if err != nil {
		return Batch{}, err
	}

	var records []RawRecord
	reachedSince := false
	pageTop := p.windowTop
	for _, pr := range res.PullRequests {
		if pr.UpdatedAt != nil {
			updated := pr.UpdatedAt.UTC()
			if updated.Before(p.since) {
				reachedSince = true
				continue
			}
			if p.windowTop == nil && (pageTop == nil || updated.After(*pageTop)) {
				pageTop = &updated
			}
		}
		var details ghclient.PullRequestDetails
		if pr.Number != nil {
			details, err = s.client.GetPullRequestDetails(ctx, s.owner, s.repo, pr.GetNumber())
			if err != nil {
				return Batch{}, err
			}
		}
		records = append(records, RawRecord{Kind: model.KindPullRequest, PullRequest: pr, Details: details})
	}
	p.windowTop = pageTop

	var tok prToken
	if reachedSince || res.NextPage == 0 {
		next := p.since
		if p.windowTop != nil {
			next = *p.windowTop
		}
		tok = prToken{Since: next}
		p.done = true
	} else {
		tok = prToken{Since: p.since, WindowTop: p.windowTop, NextPage: res.NextPage}
		p.page = res.NextPage
	}
	s.logger.Debug("Fetched pull request page", "page", res.Page, "kept", len(records), "total", len(res.PullRequests), "last", p.done)

	cursor, err := encodeCursor(PullRequestsName, tok)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Records: records, Cursor: cursor}, nil
}
