// internal/gitlog/walker.go
package gitlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
)

// Tip is an unexplored point of the commit graph. Child is the commit that
// referenced SHA as a parent, empty for a branch head.
type Tip struct {
	SHA   string `json:"sha"`
	Child string `json:"child,omitempty"`
}

// Stopper reports which of the given SHAs are already synchronized.
// The walk does not descend into them.
type Stopper interface {
	Known(ctx context.Context, shas []string) (map[string]bool, error)
}

// Chunk is one slice of a walk.
type Chunk struct {
	Commits    []RawCommit
	Boundaries []*custom_errors.HistoryBoundaryError
}

// Len returns the number of records in the chunk.
func (c Chunk) Len() int { return len(c.Commits) + len(c.Boundaries) }

// Walker traverses history backward from a set of tips, depth first along first parents.
// Every commit reachable from the tips and not stopped is returned exactly once per walk.
type Walker struct {
	reader  ObjectReader
	stopper Stopper
	logger  *slog.Logger

	stack   []Tip
	visited map[string]bool
}

// NewWalker creates a walker starting at tips, explored in the given order.
func NewWalker(reader ObjectReader, stopper Stopper, tips []Tip, logger *slog.Logger) *Walker {
	w := &Walker{
		reader:  reader,
		stopper: stopper,
		logger:  logger,
		visited: make(map[string]bool),
	}
	for i := len(tips) - 1; i >= 0; i-- {
		w.stack = append(w.stack, tips[i])
	}
	return w
}

// Done reports whether the walk has nothing left to explore.
func (w *Walker) Done() bool {
	w.compact()
	for _, tip := range w.stack {
		if !w.visited[tip.SHA] {
			return false
		}
	}
	return true
}

// Pending returns the unexplored frontier, in the order it would be explored.
// A new walker started at Pending() resumes this walk.
func (w *Walker) Pending() []Tip {
	w.compact()
	seen := make(map[string]bool, len(w.stack))
	out := make([]Tip, 0, len(w.stack))
	for i := len(w.stack) - 1; i >= 0; i-- {
		tip := w.stack[i]
		if seen[tip.SHA] || w.visited[tip.SHA] {
			continue
		}
		seen[tip.SHA] = true
		out = append(out, tip)
	}
	return out
}

// Next walks until it has collected n records or the walk is done.
func (w *Walker) Next(ctx context.Context, n int) (Chunk, error) {
	var chunk Chunk
	for chunk.Len() < n && len(w.stack) > 0 {
		tip := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		if w.visited[tip.SHA] {
			continue
		}
		w.visited[tip.SHA] = true

		raw, err := w.reader.ReadCommit(ctx, tip.SHA)
		if errors.Is(err, ErrMissingObject) && tip.Child != "" {
			boundary := &custom_errors.HistoryBoundaryError{SHA: tip.SHA, ChildSHA: tip.Child}
			w.logger.Warn("Reached edge of local history", "sha", tip.SHA, "child", tip.Child)
			chunk.Boundaries = append(chunk.Boundaries, boundary)
			continue
		}
		if err != nil {
			// Leave the tip on the frontier so Pending still covers it.
			w.stack = append(w.stack, tip)
			delete(w.visited, tip.SHA)
			return Chunk{}, fmt.Errorf("reading commit %s: %w", tip.SHA, err)
		}
		chunk.Commits = append(chunk.Commits, raw)

		if err := w.pushParents(ctx, raw); err != nil {
			return Chunk{}, err
		}
	}
	return chunk, nil
}

func (w *Walker) pushParents(ctx context.Context, c RawCommit) error {
	var candidates []string
	for _, p := range c.Parents {
		if !w.visited[p] {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	known, err := w.stopper.Known(ctx, candidates)
	if err != nil {
		return fmt.Errorf("checking parents of %s: %w", c.SHA, err)
	}
	// Reverse so the first parent is explored first.
	for i := len(candidates) - 1; i >= 0; i-- {
		if known[candidates[i]] {
			continue
		}
		w.stack = append(w.stack, Tip{SHA: candidates[i], Child: c.SHA})
	}
	return nil
}

// compact drops visited entries from the top of the stack.
func (w *Walker) compact() {
	for len(w.stack) > 0 && w.visited[w.stack[len(w.stack)-1].SHA] {
		w.stack = w.stack[:len(w.stack)-1]
	}
}
