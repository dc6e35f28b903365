// internal/source/commits.go
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/ambv/cpython-stats/internal/gitlog"
	"github.com/ambv/cpython-stats/internal/model"
	"github.com/ambv/cpython-stats/internal/normalize"
)

// CommitsName is the cursor key of the git commit source.
const CommitsName = "git_commits"

// GitRepository is the part of gitlog.Repo used by Commits.
type GitRepository interface {
	gitlog.ObjectReader
	ResolveRef(ctx context.Context, name string) (sha string, ok bool, err error)
}

// CommitIndex reports which commits are already stored, boundaries included.
type CommitIndex interface {
	KnownCommits(ctx context.Context, shas []string) (map[string]bool, error)
}

// commitToken is the commit cursor.
//
// SeenHeads are branch heads whose whole history is stored. While a walk is in
// progress, Targets holds the heads it was started for and Pending its frontier.
type commitToken struct {
	SeenHeads []string     `json:"seen_heads"`
	Pending   []gitlog.Tip `json:"pending,omitempty"`
	Targets   []string     `json:"targets,omitempty"`
}

// Commits synchronizes the history of the configured branches of a local clone.
type Commits struct {
	repo      GitRepository
	index     CommitIndex
	branches  []string
	chunkSize int
	logger    *slog.Logger
}

// NewCommits creates the git commit source.
func NewCommits(repo GitRepository, index CommitIndex, branches []string, chunkSize int, logger *slog.Logger) *Commits {
	return &Commits{
		repo:      repo,
		index:     index,
		branches:  branches,
		chunkSize: chunkSize,
		logger:    logger.With("source", CommitsName),
	}
}

func (s *Commits) Name() string { return CommitsName }

// FetchSince continues an interrupted walk, or starts a new one from the current branch heads.
func (s *Commits) FetchSince(ctx context.Context, cursor model.Cursor) (Pager, error) {
	var tok commitToken
	if err := decodeCursor(cursor, &tok); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(tok.SeenHeads))
	for _, h := range tok.SeenHeads {
		seen[h] = true
	}
	stopper := &headStopper{seen: seen, index: s.index}

	if len(tok.Pending) > 0 {
		s.logger.Info("Resuming history walk", "pending", len(tok.Pending), "targets", len(tok.Targets))
		return s.newPager(stopper, tok.SeenHeads, tok.Targets, tok.Pending), nil
	}

	targets, err := s.resolveHeads(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []string
	for _, h := range targets {
		if !seen[h] {
			candidates = append(candidates, h)
		}
	}
	known, err := stopper.Known(ctx, candidates)
	if err != nil {
		return nil, err
	}
	var tips []gitlog.Tip
	for _, h := range candidates {
		if !known[h] {
			tips = append(tips, gitlog.Tip{SHA: h})
		}
	}
	s.logger.Info("Walking history", "heads", len(targets), "new_heads", len(tips))
	return s.newPager(stopper, tok.SeenHeads, targets, tips), nil
}

func (s *Commits) newPager(stopper gitlog.Stopper, seenHeads, targets []string, tips []gitlog.Tip) *commitPager {
	return &commitPager{
		src:       s,
		walker:    gitlog.NewWalker(s.repo, stopper, tips, s.logger),
		seenHeads: seenHeads,
		targets:   targets,
	}
}

// resolveHeads maps the configured branch names to commit SHAs, skipping the ones
// that do not exist in the clone.
func (s *Commits) resolveHeads(ctx context.Context) ([]string, error) {
	var heads []string
	dup := make(map[string]bool)
	for _, branch := range s.branches {
		sha, ok, err := s.repo.ResolveRef(ctx, branch)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logger.Warn("Branch not found in repository, skipping", "branch", branch)
			continue
		}
		s.logger.Debug("Resolved branch", "branch", branch, "sha", sha)
		if !dup[sha] {
			dup[sha] = true
			heads = append(heads, sha)
		}
	}
	return heads, nil
}

func (s *Commits) Normalize(raw RawRecord) (model.Record, error) {
	switch {
	case raw.Kind == model.KindCommit && raw.Commit != nil:
		return normalize.Commit(*raw.Commit)
	case raw.Kind == model.KindBoundary && raw.Boundary != nil:
		return normalize.Boundary(raw.Boundary.SHA, raw.Boundary.ChildSHA)
	default:
		return nil, fmt.Errorf("commit source cannot normalize %s records", raw.Kind)
	}
}

type commitPager struct {
	src       *Commits
	walker    *gitlog.Walker
	seenHeads []string
	targets   []string
	done      bool
}

func (p *commitPager) Next(ctx context.Context) (Batch, error) {
	if p.done {
		return Batch{}, io.EOF
	}
	chunk, err := p.walker.Next(ctx, p.src.chunkSize)
	if err != nil {
		return Batch{}, err
	}

	records := make([]RawRecord, 0, chunk.Len())
	for i := range chunk.Commits {
		records = append(records, RawRecord{Kind: model.KindCommit, Commit: &chunk.Commits[i]})
	}
	for _, b := range chunk.Boundaries {
		records = append(records, RawRecord{Kind: model.KindBoundary, Boundary: b})
	}

	var tok commitToken
	if p.walker.Done() {
		tok = commitToken{SeenHeads: p.targets}
		p.done = true
	} else {
		tok = commitToken{SeenHeads: p.seenHeads, Pending: p.walker.Pending(), Targets: p.targets}
	}
	if tok.SeenHeads == nil {
		tok.SeenHeads = []string{}
	}

	cursor, err := encodeCursor(CommitsName, tok)
	if err != nil {
		return Batch{}, err
	}
	return Batch{Records: records, Cursor: cursor}, nil
}

// headStopper stops the walk at heads synchronized by a previous walk and at stored commits.
type headStopper struct {
	seen  map[string]bool
	index CommitIndex
}

func (h *headStopper) Known(ctx context.Context, shas []string) (map[string]bool, error) {
	out := make(map[string]bool)
	var ask []string
	for _, s := range shas {
		if h.seen[s] {
			out[s] = true
		} else {
			ask = append(ask, s)
		}
	}
	if len(ask) == 0 {
		return out, nil
	}
	known, err := h.index.KnownCommits(ctx, ask)
	if err != nil {
		return nil, fmt.Errorf("looking up stored commits: %w", err)
	}
	for s, ok := range known {
		if ok {
			out[s] = true
		}
	}
	return out, nil
}
