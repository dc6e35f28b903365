// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/stats")

	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "python/cpython", cfg.GithubRepo)
	assert.Equal(t, []string{"main", "3.10", "3.9", "3.8", "3.7", "3.6", "2.7"}, cfg.GitRepoBranches)
	assert.Equal(t, time.Date(2017, 2, 10, 0, 0, 0, 0, time.UTC), cfg.DefaultSyncSinceTime)
	assert.Equal(t, 50, cfg.PRPageSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.SyncInterval)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("DB_URL", "postgres://localhost/stats")
	t.Setenv("GITHUB_API_TOKEN", "secret")
	t.Setenv("GIT_REPO_BRANCHES", " main , 3.12,,")
	t.Setenv("PR_PAGE_SIZE", "100")
	t.Setenv("REQUEST_TIMEOUT", "5s")

	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.GithubToken, "legacy token variable is honoured")
	assert.Equal(t, []string{"main", "3.12"}, cfg.GitRepoBranches)
	assert.Equal(t, 100, cfg.PRPageSize)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.NoError(t, cfg.ValidateGithub())
}

func TestLoadConfig_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_URL=postgres://file/stats\nGITHUB_REPO=octo/cat\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/stats", cfg.DBURL)
	owner, name, err := cfg.Repo()
	require.NoError(t, err)
	assert.Equal(t, "octo", owner)
	assert.Equal(t, "cat", name)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		_, err := LoadConfig(missingEnvFile(t))
		assert.ErrorContains(t, err, "DB_URL")
	})

	t.Run("bad since date", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost/stats")
		t.Setenv("DEFAULT_SYNC_SINCE_DATE", "yesterday")
		_, err := LoadConfig(missingEnvFile(t))
		assert.ErrorContains(t, err, "RFC3339")
	})

	t.Run("page size over the API maximum", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost/stats")
		t.Setenv("PR_PAGE_SIZE", "101")
		_, err := LoadConfig(missingEnvFile(t))
		assert.ErrorContains(t, err, "PR_PAGE_SIZE")
	})
}

func TestConfig_ValidateGithub(t *testing.T) {
	cfg := &Config{GithubRepo: "python/cpython"}
	assert.ErrorContains(t, cfg.ValidateGithub(), "GITHUB_TOKEN")

	cfg = &Config{GithubToken: "t", GithubRepo: "cpython"}
	var repoErr *custom_errors.ErrInvalidRepoFormat
	assert.ErrorAs(t, cfg.ValidateGithub(), &repoErr)
	assert.Equal(t, "cpython", repoErr.Repo)
}

func TestConfig_LogValueHidesToken(t *testing.T) {
	cfg := &Config{GithubToken: "ghp_supersecret"}
	assert.NotContains(t, cfg.LogValue().String(), "ghp_supersecret")
}
