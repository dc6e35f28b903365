// internal/gitlog/repo_test.go
package gitlog

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRepo creates a throwaway repository:
//
//	c1 - c2 ------ m   (main)
//	       \      /
//	        f1 --     (feature, tag v1 at f1)
func setupTestRepo(t *testing.T) (dir string, revs map[string]string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir = t.TempDir()

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_AUTHOR_DATE=1700000000 +0200",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
			"GIT_COMMITTER_DATE=1700000000 +0200",
			"GIT_CONFIG_GLOBAL=/dev/null",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
		return strings.TrimSpace(string(out))
	}

	run("init", "-q", "-b", "main")
	run("commit", "-q", "--allow-empty", "-m", "c1")
	run("commit", "-q", "--allow-empty", "-m", "c2")
	run("checkout", "-q", "-b", "feature")
	run("commit", "-q", "--allow-empty", "-m", "f1\n\nCo-authored-by: B <b@example.com>")
	run("tag", "v1")
	run("checkout", "-q", "main")
	run("merge", "-q", "--no-ff", "-m", "m", "feature")

	revs = map[string]string{
		"c1": run("rev-parse", "main~1~1"),
		"c2": run("rev-parse", "main~1"),
		"f1": run("rev-parse", "feature"),
		"m":  run("rev-parse", "main"),
	}
	return dir, revs
}

func TestRepo_ReadCommit(t *testing.T) {
	dir, revs := setupTestRepo(t)
	ctx := context.Background()

	repo, err := Open(ctx, dir, discard)
	require.NoError(t, err)
	defer repo.Close()

	merge, err := repo.ReadCommit(ctx, revs["m"])
	require.NoError(t, err)
	assert.Equal(t, revs["m"], merge.SHA)
	assert.Equal(t, []string{revs["c2"], revs["f1"]}, merge.Parents)
	assert.Equal(t, "test <test@test.com> 1700000000 +0200", merge.Author)
	assert.Equal(t, "m\n", merge.Message)

	f1, err := repo.ReadCommit(ctx, revs["f1"])
	require.NoError(t, err)
	assert.Contains(t, f1.Message, "Co-authored-by: B <b@example.com>")

	_, err = repo.ReadCommit(ctx, strings.Repeat("f", 40))
	assert.ErrorIs(t, err, ErrMissingObject)

	// The reader stays usable after a missing object.
	root, err := repo.ReadCommit(ctx, revs["c1"])
	require.NoError(t, err)
	assert.Empty(t, root.Parents)
}

func TestRepo_ResolveRef(t *testing.T) {
	dir, revs := setupTestRepo(t)
	ctx := context.Background()

	repo, err := Open(ctx, dir, discard)
	require.NoError(t, err)
	defer repo.Close()

	got, ok, err := repo.ResolveRef(ctx, "main")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, revs["m"], got)

	got, ok, err = repo.ResolveRef(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, revs["f1"], got)

	_, ok, err = repo.ResolveRef(ctx, "3.7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepo_WalkEndToEnd(t *testing.T) {
	dir, revs := setupTestRepo(t)
	ctx := context.Background()

	repo, err := Open(ctx, dir, discard)
	require.NoError(t, err)
	defer repo.Close()

	w := NewWalker(repo, knownSet{}, []Tip{{SHA: revs["m"]}, {SHA: revs["f1"]}}, discard)
	chunk, err := w.Next(ctx, 100)
	require.NoError(t, err)

	var got []string
	for _, c := range chunk.Commits {
		got = append(got, c.SHA)
	}
	assert.Equal(t, []string{revs["m"], revs["c2"], revs["c1"], revs["f1"]}, got)
	assert.Empty(t, chunk.Boundaries)
}

func TestOpen_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := Open(context.Background(), t.TempDir(), discard)
	assert.Error(t, err)
}
