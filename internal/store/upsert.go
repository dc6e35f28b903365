// internal/store/upsert.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ambv/cpython-stats/internal/database"
	custom_errors "github.com/ambv/cpython-stats/internal/errors"
	"github.com/ambv/cpython-stats/internal/model"
)

// upsertRecord writes one record with latest-wins semantics and reports what happened to it.
func upsertRecord(ctx context.Context, q database.Querier, rec model.Record) (model.Outcome, error) {
	switch r := rec.(type) {
	case *model.PullRequest:
		return upsertPullRequest(ctx, q, r)
	case *model.Commit:
		return insertCommit(ctx, q, r)
	case *model.Boundary:
		n, err := q.InsertHistoryBoundary(ctx, database.InsertHistoryBoundaryParams{Sha: r.SHA, ChildSha: r.ChildSHA})
		if err != nil {
			return "", err
		}
		return insertedOrUnchanged(n), nil
	default:
		return "", &custom_errors.RecordError{Key: rec.Key(), Err: fmt.Errorf("unsupported record type %T", rec)}
	}
}

func upsertPullRequest(ctx context.Context, q database.Querier, pr *model.PullRequest) (model.Outcome, error) {
	outcome := model.OutcomeUnchanged
	inserted, err := q.UpsertPullRequest(ctx, pullRequestParams(pr))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Stored row is newer or identical.
	case err != nil:
		return "", err
	case inserted:
		outcome = model.OutcomeInserted
	default:
		outcome = model.OutcomeUpdated
	}

	for _, r := range pr.Reviews {
		_, err := q.UpsertReview(ctx, database.UpsertReviewParams{
			ID:              r.ID,
			PrNumber:        int32(pr.Number),
			ReviewerLogin:   r.ReviewerLogin,
			State:           string(r.State),
			Body:            r.Body,
			SubmittedAt:     timestamptz(r.SubmittedAt),
			SourceUpdatedAt: timestamptz(pr.UpdatedAt),
		})
		if err := childOutcome(&outcome, err); err != nil {
			return "", err
		}
	}

	keep := make([]string, 0, len(pr.Files))
	for _, f := range pr.Files {
		keep = append(keep, f.Filename)
		_, err := q.UpsertPullRequestFile(ctx, database.UpsertPullRequestFileParams{
			PrNumber:        int32(pr.Number),
			Filename:        f.Filename,
			Additions:       int32(f.Additions),
			Deletions:       int32(f.Deletions),
			Changes:         int32(f.Changes),
			SourceUpdatedAt: timestamptz(pr.UpdatedAt),
		})
		if err := childOutcome(&outcome, err); err != nil {
			return "", err
		}
	}
	// Files dropped from the diff since an older version was stored.
	removed, err := q.DeleteStalePullRequestFiles(ctx, database.DeleteStalePullRequestFilesParams{
		PrNumber:        int32(pr.Number),
		Keep:            keep,
		SourceUpdatedAt: timestamptz(pr.UpdatedAt),
	})
	if err != nil {
		return "", err
	}
	if removed > 0 && outcome == model.OutcomeUnchanged {
		outcome = model.OutcomeUpdated
	}

	for _, c := range pr.Comments {
		_, err := q.UpsertPullRequestComment(ctx, database.UpsertPullRequestCommentParams{
			Kind:            string(c.Kind),
			ID:              c.ID,
			PrNumber:        int32(pr.Number),
			AuthorLogin:     c.AuthorLogin,
			Body:            c.Body,
			CreatedAt:       timestamptz(c.CreatedAt),
			SourceUpdatedAt: timestamptz(pr.UpdatedAt),
		})
		if err := childOutcome(&outcome, err); err != nil {
			return "", err
		}
	}
	return outcome, nil
}

// childOutcome folds the result of a child row upsert into the pull request outcome.
// pgx.ErrNoRows means the stored row is newer or identical.
func childOutcome(outcome *model.Outcome, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if *outcome == model.OutcomeUnchanged {
		*outcome = model.OutcomeUpdated
	}
	return nil
}

func pullRequestParams(pr *model.PullRequest) database.UpsertPullRequestParams {
	labels := pr.Labels
	if labels == nil {
		labels = []string{}
	}
	contributors := pr.Contributors
	if contributors == nil {
		contributors = []string{}
	}
	return database.UpsertPullRequestParams{
		Number:          int32(pr.Number),
		Title:           pr.Title,
		AuthorLogin:     pr.AuthorLogin,
		State:           string(pr.State),
		BaseRef:         pr.BaseRef,
		HeadRef:         pr.HeadRef,
		ReviewDecision:  string(pr.ReviewDecision),
		MergeCommitSha:  pgtype.Text{String: pr.MergeCommitSHA, Valid: pr.MergeCommitSHA != ""},
		MergedBy:        pr.MergedBy,
		Draft:           pr.Draft,
		Labels:          labels,
		CreatedAt:       timestamptz(pr.CreatedAt),
		SourceUpdatedAt: timestamptz(pr.UpdatedAt),
		ClosedAt:        nullableTimestamptz(pr.ClosedAt),
		MergedAt:        nullableTimestamptz(pr.MergedAt),
		Body:            pr.Body,
		Contributors:    contributors,
	}
}

func insertCommit(ctx context.Context, q database.Querier, c *model.Commit) (model.Outcome, error) {
	params, err := commitParams(c)
	if err != nil {
		return "", &custom_errors.RecordError{Key: c.SHA, Err: err}
	}
	n, err := q.InsertCommit(ctx, params)
	if err != nil {
		return "", err
	}
	return insertedOrUnchanged(n), nil
}

func commitParams(c *model.Commit) (database.InsertCommitParams, error) {
	coAuthors := c.CoAuthors
	if coAuthors == nil {
		coAuthors = []model.Identity{}
	}
	rawCoAuthors, err := json.Marshal(coAuthors)
	if err != nil {
		return database.InsertCommitParams{}, fmt.Errorf("encoding co-authors: %w", err)
	}
	parents := c.Parents
	if parents == nil {
		parents = []string{}
	}
	return database.InsertCommitParams{
		Sha:            c.SHA,
		AuthorName:     c.Author.Name,
		AuthorEmail:    c.Author.Email,
		AuthorLogin:    c.Author.Login,
		CommitterName:  c.Committer.Name,
		CommitterEmail: c.Committer.Email,
		CoAuthors:      rawCoAuthors,
		AuthoredAt:     timestamptz(c.AuthoredAt),
		CommittedAt:    timestamptz(c.CommittedAt),
		ParentShas:     parents,
		Message:        c.Message,
	}, nil
}

func insertedOrUnchanged(rows int64) model.Outcome {
	if rows > 0 {
		return model.OutcomeInserted
	}
	return model.OutcomeUnchanged
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func nullableTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return timestamptz(*t)
}
