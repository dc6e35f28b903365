// internal/gitlog/repo.go
package gitlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ErrMissingObject is returned for an object that is not present in the local clone.
var ErrMissingObject = errors.New("object not present in repository")

// ObjectReader reads commit objects by SHA.
type ObjectReader interface {
	ReadCommit(ctx context.Context, sha string) (RawCommit, error)
}

// Repo is a read-only view of a local git clone. Objects are read through a single
// long-running `git cat-file --batch` process.
type Repo struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr bytes.Buffer
}

// Open checks that dir is a git repository and starts the object reader.
func Open(ctx context.Context, dir string, logger *slog.Logger) (*Repo, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("git binary not found: %w", err)
	}
	r := &Repo{dir: dir, logger: logger}
	if _, err := r.git(ctx, "rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("not a git repository %q: %w", dir, err)
	}

	// Not tied to ctx: the process lives until Close.
	cmd := exec.Command("git", "-C", dir, "cat-file", "--batch")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cat-file stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("cat-file stdout: %w", err)
	}
	cmd.Stderr = &r.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting git cat-file: %w", err)
	}
	r.cmd = cmd
	r.stdin = stdin
	r.stdout = bufio.NewReaderSize(stdout, 64*1024)

	logger.Debug("Opened git repository", "dir", dir)
	return r, nil
}

// Close stops the object reader.
func (r *Repo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil
	}
	_ = r.stdin.Close()
	err := r.cmd.Wait()
	r.cmd = nil
	if err != nil {
		return fmt.Errorf("git cat-file: %w: %s", err, strings.TrimSpace(r.stderr.String()))
	}
	return nil
}

// ReadCommit returns the commit object sha. A SHA missing from the clone
// (e.g. past the edge of a shallow clone) yields ErrMissingObject.
func (r *Repo) ReadCommit(ctx context.Context, sha string) (RawCommit, error) {
	if err := ctx.Err(); err != nil {
		return RawCommit{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return RawCommit{}, errors.New("repository is closed")
	}

	if _, err := io.WriteString(r.stdin, sha+"\n"); err != nil {
		return RawCommit{}, fmt.Errorf("requesting object %s: %w", sha, err)
	}
	header, err := r.stdout.ReadString('\n')
	if err != nil {
		return RawCommit{}, fmt.Errorf("reading object %s header: %w", sha, err)
	}

	// "<sha> <type> <size>" or "<name> missing"
	fields := strings.Fields(header)
	if len(fields) == 2 && fields[1] == "missing" {
		return RawCommit{}, fmt.Errorf("%s: %w", sha, ErrMissingObject)
	}
	if len(fields) != 3 {
		return RawCommit{}, fmt.Errorf("object %s: unexpected cat-file header %q", sha, strings.TrimSpace(header))
	}
	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return RawCommit{}, fmt.Errorf("object %s: bad size %q", sha, fields[2])
	}
	body := make([]byte, size+1) // trailing LF
	if _, err := io.ReadFull(r.stdout, body); err != nil {
		return RawCommit{}, fmt.Errorf("reading object %s: %w", sha, err)
	}
	if fields[1] != "commit" {
		return RawCommit{}, fmt.Errorf("object %s is a %s, not a commit", sha, fields[1])
	}
	return parseCommitObject(fields[0], body[:size])
}

// ResolveRef resolves a branch or tag name to a commit SHA. Tags win over local
// branches, local branches over origin remotes. ok is false if no such ref exists.
func (r *Repo) ResolveRef(ctx context.Context, name string) (sha string, ok bool, err error) {
	candidates := []string{
		"refs/tags/" + name,
		"refs/heads/" + name,
		"refs/remotes/origin/" + name,
	}
	for _, ref := range candidates {
		out, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
				continue
			}
			return "", false, fmt.Errorf("resolving %s: %w", ref, err)
		}
		return strings.TrimSpace(out), true, nil
	}
	return "", false, nil
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", r.dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return string(out), fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
		}
		return string(out), fmt.Errorf("git %s: %w", args[0], err)
	}
	return string(out), nil
}
