// internal/source/pulls_test.go
package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	ghclient "github.com/ambv/cpython-stats/internal/github"
	"github.com/ambv/cpython-stats/internal/model"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockLister is a mock of the PullRequestLister interface.
type MockLister struct {
	mock.Mock
}

func (m *MockLister) ListPullRequests(ctx context.Context, owner, name string, page, perPage int) (ghclient.PullRequestPage, error) {
	args := m.Called(ctx, owner, name, page, perPage)
	return args.Get(0).(ghclient.PullRequestPage), args.Error(1)
}

func (m *MockLister) GetPullRequestDetails(ctx context.Context, owner, name string, number int) (ghclient.PullRequestDetails, error) {
	args := m.Called(ctx, owner, name, number)
	return args.Get(0).(ghclient.PullRequestDetails), args.Error(1)
}

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func pr(number int, updated time.Time) *github.PullRequest {
	return &github.PullRequest{
		Number:    github.Int(number),
		State:     github.String("open"),
		CreatedAt: &github.Timestamp{Time: day0},
		UpdatedAt: &github.Timestamp{Time: updated},
	}
}

func decodePR(t *testing.T, c model.Cursor) prToken {
	t.Helper()
	var tok prToken
	require.NoError(t, json.Unmarshal(c.Token, &tok))
	return tok
}

func TestPullRequests_WindowAcrossPages(t *testing.T) {
	ctx := context.Background()
	lister := new(MockLister)
	src := NewPullRequests(lister, "python", "cpython", 2, day0, discard)

	lister.On("ListPullRequests", ctx, "python", "cpython", 1, 2).Return(ghclient.PullRequestPage{
		Page:         1,
		PullRequests: []*github.PullRequest{pr(3, day0.Add(3*time.Hour)), pr(2, day0.Add(2*time.Hour))},
		NextPage:     2,
	}, nil).Once()
	lister.On("ListPullRequests", ctx, "python", "cpython", 2, 2).Return(ghclient.PullRequestPage{
		Page:         2,
		PullRequests: []*github.PullRequest{pr(1, day0.Add(time.Hour))},
	}, nil).Once()
	lister.On("GetPullRequestDetails", ctx, "python", "cpython", mock.Anything).Return(ghclient.PullRequestDetails{}, nil).Times(3)

	pager, err := src.FetchSince(ctx, model.Cursor{Source: PullRequestsName})
	require.NoError(t, err)

	first, err := pager.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Records, 2)
	assert.Equal(t, "#3", first.Records[0].Key())
	tok := decodePR(t, first.Cursor)
	assert.Equal(t, day0, tok.Since)
	require.NotNil(t, tok.WindowTop)
	assert.Equal(t, day0.Add(3*time.Hour), *tok.WindowTop)
	assert.Equal(t, 2, tok.NextPage)

	second, err := pager.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, second.Records, 1)
	tok = decodePR(t, second.Cursor)
	assert.Equal(t, day0.Add(3*time.Hour), tok.Since, "window top becomes the next since")
	assert.Nil(t, tok.WindowTop)
	assert.Zero(t, tok.NextPage)

	_, err = pager.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	lister.AssertExpectations(t)
}

func TestPullRequests_StopsAtSince(t *testing.T) {
	ctx := context.Background()
	lister := new(MockLister)
	src := NewPullRequests(lister, "python", "cpython", 3, day0, discard)
	since := day0.Add(2 * time.Hour)
	cursor, err := encodeCursor(PullRequestsName, prToken{Since: since})
	require.NoError(t, err)

	lister.On("ListPullRequests", ctx, "python", "cpython", 1, 3).Return(ghclient.PullRequestPage{
		Page: 1,
		PullRequests: []*github.PullRequest{
			pr(9, day0.Add(5*time.Hour)),
			pr(8, since), // equal to since is still in the window
			pr(7, day0.Add(time.Hour)),
		},
		NextPage: 2,
	}, nil).Once()
	lister.On("GetPullRequestDetails", ctx, "python", "cpython", 9).Return(ghclient.PullRequestDetails{}, nil).Once()
	lister.On("GetPullRequestDetails", ctx, "python", "cpython", 8).Return(ghclient.PullRequestDetails{}, nil).Once()

	pager, err := src.FetchSince(ctx, cursor)
	require.NoError(t, err)

	batch, err := pager.Next(ctx)
	require.NoError(t, err)
	assert.Len(t, batch.Records, 2)
	assert.Equal(t, day0.Add(5*time.Hour), decodePR(t, batch.Cursor).Since)

	_, err = pager.Next(ctx)
	assert.ErrorIs(t, err, io.EOF, "page 2 is never requested")
	lister.AssertExpectations(t)
}

func TestPullRequests_ResumesMidWindow(t *testing.T) {
	ctx := context.Background()
	lister := new(MockLister)
	src := NewPullRequests(lister, "python", "cpython", 50, day0, discard)
	top := day0.Add(10 * time.Hour)
	cursor, err := encodeCursor(PullRequestsName, prToken{Since: day0, WindowTop: &top, NextPage: 2})
	require.NoError(t, err)

	lister.On("ListPullRequests", ctx, "python", "cpython", 2, 50).Return(ghclient.PullRequestPage{Page: 2}, nil).Once()

	pager, err := src.FetchSince(ctx, cursor)
	require.NoError(t, err)
	batch, err := pager.Next(ctx)

	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.Equal(t, top, decodePR(t, batch.Cursor).Since)
	lister.AssertExpectations(t)
}

func TestPullRequests_FetchErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	lister := new(MockLister)
	src := NewPullRequests(lister, "python", "cpython", 50, day0, discard)
	boom := errors.New("boom")
	lister.On("ListPullRequests", ctx, "python", "cpython", 1, 50).Return(ghclient.PullRequestPage{}, boom).Once()

	pager, err := src.FetchSince(ctx, model.Cursor{Source: PullRequestsName})
	require.NoError(t, err)
	_, err = pager.Next(ctx)

	assert.ErrorIs(t, err, boom)
}

func TestPullRequests_DetailsTravelWithTheRecord(t *testing.T) {
	ctx := context.Background()
	lister := new(MockLister)
	src := NewPullRequests(lister, "python", "cpython", 50, day0, discard)
	details := ghclient.PullRequestDetails{
		Files: []*github.CommitFile{{Filename: github.String("Lib/a.py"), Additions: github.Int(1), Changes: github.Int(1)}},
	}
	lister.On("ListPullRequests", ctx, "python", "cpython", 1, 50).Return(ghclient.PullRequestPage{
		Page:         1,
		PullRequests: []*github.PullRequest{pr(2, day0.Add(time.Hour)), pr(1, day0.Add(time.Hour))},
	}, nil).Once()
	lister.On("GetPullRequestDetails", ctx, "python", "cpython", 2).Return(details, nil).Once()
	boom := errors.New("boom")
	lister.On("GetPullRequestDetails", ctx, "python", "cpython", 1).Return(ghclient.PullRequestDetails{}, boom).Once()

	pager, err := src.FetchSince(ctx, model.Cursor{Source: PullRequestsName})
	require.NoError(t, err)
	_, err = pager.Next(ctx)

	assert.ErrorIs(t, err, boom, "a page is all or nothing")

	lister.On("ListPullRequests", ctx, "python", "cpython", 1, 50).Return(ghclient.PullRequestPage{
		Page:         1,
		PullRequests: []*github.PullRequest{pr(2, day0.Add(time.Hour))},
	}, nil).Once()
	lister.On("GetPullRequestDetails", ctx, "python", "cpython", 2).Return(details, nil).Once()

	pager, err = src.FetchSince(ctx, model.Cursor{Source: PullRequestsName})
	require.NoError(t, err)
	batch, err := pager.Next(ctx)
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)

	rec, err := src.Normalize(batch.Records[0])
	require.NoError(t, err)
	assert.Equal(t, []model.File{{Filename: "Lib/a.py", Additions: 1, Changes: 1}}, rec.(*model.PullRequest).Files)
	lister.AssertExpectations(t)
}

func TestPullRequests_BadCursor(t *testing.T) {
	src := NewPullRequests(new(MockLister), "python", "cpython", 50, day0, discard)

	_, err := src.FetchSince(context.Background(), model.Cursor{Source: PullRequestsName, Token: json.RawMessage(`"nope"`)})

	assert.Error(t, err)
}

func TestPullRequests_Normalize(t *testing.T) {
	src := NewPullRequests(new(MockLister), "python", "cpython", 50, day0, discard)

	rec, err := src.Normalize(RawRecord{Kind: model.KindPullRequest, PullRequest: pr(5, day0)})
	require.NoError(t, err)
	assert.Equal(t, "#5", rec.Key())

	_, err = src.Normalize(RawRecord{Kind: model.KindCommit})
	assert.Error(t, err)
}
