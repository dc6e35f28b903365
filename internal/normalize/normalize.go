// internal/normalize/normalize.go
package normalize

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/text/encoding/htmlindex"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
	ghclient "github.com/ambv/cpython-stats/internal/github"
	"github.com/ambv/cpython-stats/internal/gitlog"
	"github.com/ambv/cpython-stats/internal/model"
)

const (
	sourceGithub = "github"
	sourceGit    = "git"

	noreplyDomain = "@users.noreply.github.com"
)

var (
	shaRE = regexp.MustCompile(`^[0-9a-f]{40}$`)

	// Co-authored-by: Priyank <5903604+cpriyank@users.noreply.github.com>
	coAuthorRE = regexp.MustCompile(`(?i)^\s*(?:Co-authored-by:|Authored-by:) ([^<]+ )?<(?P<email>.+)>\s*$`)
)

// PullRequest converts a GitHub pull request and its reviews, files, commits and comments
// into the canonical record.
func PullRequest(pr *github.PullRequest, details ghclient.PullRequestDetails) (*model.PullRequest, error) {
	if pr == nil {
		return nil, malformedPR("", "pull_request", "is missing")
	}
	if pr.Number == nil || pr.GetNumber() <= 0 {
		return nil, malformedPR("", "number", "is missing or not positive")
	}
	key := "#" + strconv.Itoa(pr.GetNumber())
	if pr.CreatedAt == nil || pr.CreatedAt.IsZero() {
		return nil, malformedPR(key, "created_at", "is missing")
	}
	if pr.UpdatedAt == nil || pr.UpdatedAt.IsZero() {
		return nil, malformedPR(key, "updated_at", "is missing")
	}

	out := &model.PullRequest{
		Number:         pr.GetNumber(),
		Title:          cleanText(pr.GetTitle()),
		Body:           cleanText(pr.GetBody()),
		AuthorLogin:    pr.GetUser().GetLogin(),
		BaseRef:        pr.GetBase().GetRef(),
		HeadRef:        pr.GetHead().GetRef(),
		MergeCommitSHA: pr.GetMergeCommitSHA(),
		MergedBy:       pr.GetMergedBy().GetLogin(),
		Draft:          pr.GetDraft(),
		CreatedAt:      pr.CreatedAt.UTC(),
		UpdatedAt:      pr.UpdatedAt.UTC(),
		ClosedAt:       utcPtr(pr.ClosedAt),
		MergedAt:       utcPtr(pr.MergedAt),
	}

	switch pr.GetState() {
	case "open":
		out.State = model.PRStateOpen
	case "closed":
		out.State = model.PRStateClosed
	default:
		return nil, malformedPR(key, "state", "has unknown value "+strconv.Quote(pr.GetState()))
	}
	if out.MergedAt != nil {
		out.State = model.PRStateMerged
		if out.ClosedAt == nil {
			closed := *out.MergedAt
			out.ClosedAt = &closed
		}
	}

	for _, l := range pr.Labels {
		if name := l.GetName(); name != "" {
			out.Labels = append(out.Labels, name)
		}
	}
	sort.Strings(out.Labels)

	for _, r := range details.Reviews {
		review, ok, err := Review(out.Number, r)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Reviews = append(out.Reviews, review)
		}
	}
	sort.Slice(out.Reviews, func(i, j int) bool { return out.Reviews[i].ID < out.Reviews[j].ID })
	out.ReviewDecision = ReviewDecision(out.Reviews)

	var err error
	if out.Files, err = files(key, details.Files); err != nil {
		return nil, err
	}
	if out.Comments, err = comments(key, details.IssueComments, details.ReviewComments); err != nil {
		return nil, err
	}
	out.Contributors = contributors(pr, details.Commits)

	return out, nil
}

// files keeps one entry per path, sorted by path.
func files(key string, in []*github.CommitFile) ([]model.File, error) {
	byName := make(map[string]model.File, len(in))
	for _, f := range in {
		name := cleanText(f.GetFilename())
		if name == "" {
			return nil, malformedPR(key, "files.filename", "is missing")
		}
		if f.GetAdditions() < 0 || f.GetDeletions() < 0 || f.GetChanges() < 0 {
			return nil, malformedPR(key, "files", "has a negative line count for "+strconv.Quote(name))
		}
		byName[name] = model.File{
			Filename:  name,
			Additions: f.GetAdditions(),
			Deletions: f.GetDeletions(),
			Changes:   f.GetChanges(),
		}
	}
	if len(byName) == 0 {
		return nil, nil
	}
	out := make([]model.File, 0, len(byName))
	for _, f := range byName {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// comments merges conversation and inline comments in creation order.
func comments(key string, issue []*github.IssueComment, review []*github.PullRequestComment) ([]model.Comment, error) {
	var out []model.Comment
	for _, c := range issue {
		if c.ID == nil {
			return nil, malformedPR(key, "comments.id", "is missing")
		}
		if c.CreatedAt == nil || c.CreatedAt.IsZero() {
			return nil, malformedPR(key, "comments.created_at", "is missing")
		}
		out = append(out, model.Comment{
			Kind:        model.CommentIssue,
			ID:          c.GetID(),
			AuthorLogin: c.GetUser().GetLogin(),
			Body:        cleanText(c.GetBody()),
			CreatedAt:   c.CreatedAt.UTC(),
		})
	}
	for _, c := range review {
		if c.ID == nil {
			return nil, malformedPR(key, "review_comments.id", "is missing")
		}
		if c.CreatedAt == nil || c.CreatedAt.IsZero() {
			return nil, malformedPR(key, "review_comments.created_at", "is missing")
		}
		out = append(out, model.Comment{
			Kind:        model.CommentReview,
			ID:          c.GetID(),
			AuthorLogin: c.GetUser().GetLogin(),
			Body:        cleanText(c.GetBody()),
			CreatedAt:   c.CreatedAt.UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// contributors collects the author, the merger and the GitHub accounts behind each commit.
// Commits whose emails GitHub cannot map to an account contribute nothing.
func contributors(pr *github.PullRequest, commits []*github.RepositoryCommit) []string {
	seen := make(map[string]bool)
	add := func(login string) {
		if login != "" {
			seen[login] = true
		}
	}
	add(pr.GetUser().GetLogin())
	add(pr.GetMergedBy().GetLogin())
	for _, c := range commits {
		add(c.GetAuthor().GetLogin())
		add(c.GetCommitter().GetLogin())
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for login := range seen {
		out = append(out, login)
	}
	sort.Strings(out)
	return out
}

// Review converts one submitted review. Pending reviews are only visible to their author
// and are reported with ok == false.
func Review(prNumber int, r *github.PullRequestReview) (model.Review, bool, error) {
	key := "#" + strconv.Itoa(prNumber)
	if r == nil || r.ID == nil {
		return model.Review{}, false, malformedPR(key, "reviews.id", "is missing")
	}

	var state model.ReviewState
	switch strings.ToUpper(r.GetState()) {
	case "PENDING":
		return model.Review{}, false, nil
	case "APPROVED":
		state = model.ReviewApproved
	case "CHANGES_REQUESTED":
		state = model.ReviewChangesRequested
	case "COMMENTED":
		state = model.ReviewCommented
	case "DISMISSED":
		state = model.ReviewDismissed
	default:
		return model.Review{}, false, malformedPR(key, "reviews.state", "has unknown value "+strconv.Quote(r.GetState()))
	}
	if r.SubmittedAt == nil || r.SubmittedAt.IsZero() {
		return model.Review{}, false, malformedPR(key, "reviews.submitted_at", "is missing")
	}

	return model.Review{
		ID:            r.GetID(),
		PRNumber:      prNumber,
		ReviewerLogin: r.GetUser().GetLogin(),
		State:         state,
		Body:          cleanText(r.GetBody()),
		SubmittedAt:   r.SubmittedAt.UTC(),
	}, true, nil
}

// ReviewDecision folds reviews into the overall verdict. Each reviewer counts with their
// latest approving, change-requesting or dismissed review; comments do not change a verdict.
func ReviewDecision(reviews []model.Review) model.ReviewState {
	ordered := make([]model.Review, len(reviews))
	copy(ordered, reviews)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].SubmittedAt.Before(ordered[j].SubmittedAt) })

	latest := make(map[string]model.ReviewState)
	for _, r := range ordered {
		if r.State == model.ReviewCommented {
			continue
		}
		latest[r.ReviewerLogin] = r.State
	}

	var decision model.ReviewState
	for _, state := range latest {
		switch state {
		case model.ReviewChangesRequested:
			return model.ReviewChangesRequested
		case model.ReviewApproved:
			decision = model.ReviewApproved
		}
	}
	return decision
}

// Commit converts a raw git commit into the canonical record.
func Commit(raw gitlog.RawCommit) (*model.Commit, error) {
	if !shaRE.MatchString(raw.SHA) {
		return nil, malformedCommit("", "sha", "is not 40 lowercase hex digits")
	}
	for _, p := range raw.Parents {
		if !shaRE.MatchString(p) {
			return nil, malformedCommit(raw.SHA, "parent", "is not 40 lowercase hex digits")
		}
	}

	author, authoredAt, err := parseIdent(commitText(raw.Author, raw.Encoding))
	if err != nil {
		return nil, malformedCommit(raw.SHA, "author", err.Error())
	}
	committer, committedAt, err := parseIdent(commitText(raw.Committer, raw.Encoding))
	if err != nil {
		return nil, malformedCommit(raw.SHA, "committer", err.Error())
	}

	parents := make([]string, len(raw.Parents))
	copy(parents, raw.Parents)
	message := commitText(raw.Message, raw.Encoding)

	return &model.Commit{
		SHA:         raw.SHA,
		Author:      author,
		Committer:   committer,
		CoAuthors:   CoAuthors(message),
		AuthoredAt:  authoredAt,
		CommittedAt: committedAt,
		Parents:     parents,
		Message:     message,
	}, nil
}

// commitText decodes s from the commit's declared encoding. Unknown encodings leave s as is.
func commitText(s, encoding string) string {
	if encoding != "" && !strings.EqualFold(encoding, "utf-8") && !strings.EqualFold(encoding, "utf8") {
		if enc, err := htmlindex.Get(encoding); err == nil {
			if decoded, err := enc.NewDecoder().String(s); err == nil {
				s = decoded
			}
		}
	}
	return cleanText(s)
}

// cleanText drops what Postgres cannot store in a text column: NUL bytes and invalid UTF-8.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.ToValidUTF8(s, "")
}

// Boundary validates a history boundary reported by the walker.
func Boundary(sha, childSHA string) (*model.Boundary, error) {
	if !shaRE.MatchString(sha) {
		return nil, malformedCommit(childSHA, "parent", "boundary is not 40 lowercase hex digits")
	}
	return &model.Boundary{SHA: sha, ChildSHA: childSHA}, nil
}

// CoAuthors extracts identities from Co-authored-by and Authored-by trailers.
func CoAuthors(message string) []model.Identity {
	var out []model.Identity
	seen := make(map[string]bool)
	for _, line := range strings.Split(message, "\n") {
		m := coAuthorRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		email := strings.TrimSpace(m[coAuthorRE.SubexpIndex("email")])
		if seen[strings.ToLower(email)] {
			continue
		}
		seen[strings.ToLower(email)] = true
		out = append(out, model.Identity{
			Name:  strings.TrimSpace(m[1]),
			Email: email,
			Login: LoginFromEmail(email),
		})
	}
	return out
}

// LoginFromEmail returns the GitHub login encoded in a users.noreply.github.com address, or "".
//
//	31488909+miss-islington@users.noreply.github.com -> miss-islington
//	ambv@users.noreply.github.com                    -> ambv
func LoginFromEmail(email string) string {
	if !strings.HasSuffix(strings.ToLower(email), noreplyDomain) {
		return ""
	}
	user := email[:len(email)-len(noreplyDomain)]
	id, login, found := strings.Cut(user, "+")
	if !found {
		return user
	}
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return ""
	}
	return login
}

// parseIdent parses "Name <email> <unix-seconds> <+hhmm>".
func parseIdent(s string) (model.Identity, time.Time, error) {
	open := strings.IndexByte(s, '<')
	closing := strings.LastIndexByte(s, '>')
	if s == "" {
		return model.Identity{}, time.Time{}, identError("is missing")
	}
	if open < 0 || closing < open {
		return model.Identity{}, time.Time{}, identError("has no <email>")
	}

	email := strings.TrimSpace(s[open+1 : closing])
	id := model.Identity{
		Name:  strings.TrimSpace(s[:open]),
		Email: email,
		Login: LoginFromEmail(email),
	}

	fields := strings.Fields(s[closing+1:])
	if len(fields) != 2 {
		return model.Identity{}, time.Time{}, identError("has no timestamp")
	}
	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return model.Identity{}, time.Time{}, identError("has a malformed timestamp")
	}
	if _, err := parseOffset(fields[1]); err != nil {
		return model.Identity{}, time.Time{}, identError("has a malformed timezone")
	}
	return id, time.Unix(secs, 0).UTC(), nil
}

// parseOffset validates a git timezone such as +0530 and returns it in seconds east of UTC.
func parseOffset(tz string) (int, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return 0, strconv.ErrSyntax
	}
	hh, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(tz[3:5])
	if err != nil || mm >= 60 {
		return 0, strconv.ErrSyntax
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

type identError string

func (e identError) Error() string { return string(e) }

func utcPtr(ts *github.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.UTC()
	return &t
}

func malformedPR(key, field, reason string) error {
	return &custom_errors.MalformedRecordError{Source: sourceGithub, Key: key, Field: field, Reason: reason}
}

func malformedCommit(key, field, reason string) error {
	return &custom_errors.MalformedRecordError{Source: sourceGit, Key: key, Field: field, Reason: reason}
}
