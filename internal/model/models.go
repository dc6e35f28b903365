// internal/model/models.go
package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// ReviewState is the verdict of a submitted review.
type ReviewState string

const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewCommented        ReviewState = "commented"
	ReviewDismissed        ReviewState = "dismissed"
)

// RecordKind identifies the canonical record type.
type RecordKind string

const (
	KindPullRequest RecordKind = "pull_request"
	KindCommit      RecordKind = "commit"
	KindBoundary    RecordKind = "boundary"
)

// Record is a normalized record ready to be upserted.
type Record interface {
	Kind() RecordKind
	// Key is the natural identifier rendered as a string, used for logging and anomalies.
	Key() string
}

// Identity is a person as seen by a source: a git ident or a GitHub account.
type Identity struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Login string `json:"login,omitempty"`
}

// CommentKind tells the two GitHub comment families apart. Their IDs overlap.
type CommentKind string

const (
	// CommentIssue is a comment on the conversation tab.
	CommentIssue CommentKind = "issue"
	// CommentReview is an inline comment on the diff.
	CommentReview CommentKind = "review"
)

// PullRequest is the canonical pull request.
type PullRequest struct {
	Number         int
	Title          string
	Body           string
	AuthorLogin    string
	State          PRState
	BaseRef        string
	HeadRef        string
	ReviewDecision ReviewState
	MergeCommitSHA string
	MergedBy       string
	Draft          bool
	Labels         []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
	MergedAt       *time.Time
	Reviews        []Review
	Files          []File
	Comments       []Comment
	// Contributors are the logins of the author, the merger and every commit author
	// and committer GitHub could attribute, sorted.
	Contributors []string
}

func (p *PullRequest) Kind() RecordKind { return KindPullRequest }
func (p *PullRequest) Key() string      { return "#" + strconv.Itoa(p.Number) }

// Review belongs to exactly one PullRequest.
type Review struct {
	ID            int64
	PRNumber      int
	ReviewerLogin string
	State         ReviewState
	Body          string
	SubmittedAt   time.Time
}

// File is the diff summary of one path touched by a pull request.
type File struct {
	Filename  string
	Additions int
	Deletions int
	Changes   int
}

// Comment is a conversation or inline diff comment. Review bodies live on Review.
type Comment struct {
	Kind        CommentKind
	ID          int64
	AuthorLogin string
	Body        string
	CreatedAt   time.Time
}

// Commit is the canonical git commit. Parents keep git's order.
type Commit struct {
	SHA         string
	Author      Identity
	Committer   Identity
	CoAuthors   []Identity
	AuthoredAt  time.Time
	CommittedAt time.Time
	Parents     []string
	Message     string
}

func (c *Commit) Kind() RecordKind { return KindCommit }
func (c *Commit) Key() string      { return c.SHA }

// IsMerge reports whether the commit has more than one parent.
func (c *Commit) IsMerge() bool { return len(c.Parents) > 1 }

// Boundary marks a parent SHA that cannot be resolved in the local clone (shallow edge).
type Boundary struct {
	SHA      string
	ChildSHA string
}

func (b *Boundary) Kind() RecordKind { return KindBoundary }
func (b *Boundary) Key() string      { return b.SHA }

// Cursor is the resume marker of one source. Token is owned by the source that wrote it.
type Cursor struct {
	Source     string
	Token      json.RawMessage
	AdvancedAt time.Time
}

// IsInitial reports whether nothing has been synchronized for the source yet.
func (c Cursor) IsInitial() bool { return len(c.Token) == 0 }

// Outcome is the result of a single upsert.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)
