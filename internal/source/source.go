// internal/source/source.go
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/go-github/v62/github"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
	ghclient "github.com/ambv/cpython-stats/internal/github"
	"github.com/ambv/cpython-stats/internal/gitlog"
	"github.com/ambv/cpython-stats/internal/model"
)

// Source is an upstream that can be synchronized incrementally.
type Source interface {
	// Name identifies the source and its cursor row.
	Name() string
	// FetchSince starts reading everything changed after cursor. Nothing is fetched
	// until the first call to Pager.Next.
	FetchSince(ctx context.Context, cursor model.Cursor) (Pager, error)
	// Normalize converts a raw record into its canonical form.
	Normalize(raw RawRecord) (model.Record, error)
}

// Pager yields batches one at a time. Next returns io.EOF when nothing is left.
type Pager interface {
	Next(ctx context.Context) (Batch, error)
}

// Batch is a unit of work. Cursor becomes valid once every record of the batch is stored.
type Batch struct {
	Records []RawRecord
	Cursor  model.Cursor
}

// RawRecord is a record as delivered by a source, before normalization.
type RawRecord struct {
	Kind model.RecordKind

	PullRequest *github.PullRequest
	Details     ghclient.PullRequestDetails

	Commit   *gitlog.RawCommit
	Boundary *custom_errors.HistoryBoundaryError
}

// Key identifies the raw record for logs and anomaly reports.
func (r RawRecord) Key() string {
	switch {
	case r.PullRequest != nil && r.PullRequest.Number != nil:
		return "#" + strconv.Itoa(r.PullRequest.GetNumber())
	case r.Commit != nil:
		return r.Commit.SHA
	case r.Boundary != nil:
		return r.Boundary.SHA
	default:
		return ""
	}
}

func encodeCursor(source string, token any) (model.Cursor, error) {
	raw, err := json.Marshal(token)
	if err != nil {
		return model.Cursor{}, fmt.Errorf("encoding %s cursor: %w", source, err)
	}
	return model.Cursor{Source: source, Token: raw}, nil
}

func decodeCursor(cursor model.Cursor, token any) error {
	if cursor.IsInitial() {
		return nil
	}
	if err := json.Unmarshal(cursor.Token, token); err != nil {
		return fmt.Errorf("decoding %s cursor %s: %w", cursor.Source, cursor.Token, err)
	}
	return nil
}
