// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	custom_errors "github.com/ambv/cpython-stats/internal/errors"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	DBURL                   string        `mapstructure:"DB_URL"`
	GithubToken             string        `mapstructure:"GITHUB_TOKEN"`
	GithubRepo              string        `mapstructure:"GITHUB_REPO"`
	GitRepoLocation         string        `mapstructure:"GIT_REPO_LOCATION"`
	GitRepoBranches         []string      `mapstructure:"GIT_REPO_BRANCHES"`
	DefaultSyncSinceDate    string        `mapstructure:"DEFAULT_SYNC_SINCE_DATE"`
	DefaultSyncSinceTime    time.Time     `mapstructure:"-"`
	PRPageSize              int           `mapstructure:"PR_PAGE_SIZE"`
	CommitChunkSize         int           `mapstructure:"COMMIT_CHUNK_SIZE"`
	MaxConsecutiveAnomalies int           `mapstructure:"MAX_CONSECUTIVE_ANOMALIES"`
	RequestTimeout          time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxRetries              int           `mapstructure:"MAX_RETRIES"`
	SyncInterval            time.Duration `mapstructure:"SYNC_INTERVAL"`
	StatusAddr              string        `mapstructure:"STATUS_ADDR"`
}

var keys = []string{
	"LOG_LEVEL",
	"DB_URL",
	"GITHUB_REPO",
	"GIT_REPO_LOCATION",
	"GIT_REPO_BRANCHES",
	"DEFAULT_SYNC_SINCE_DATE",
	"PR_PAGE_SIZE",
	"COMMIT_CHUNK_SIZE",
	"MAX_CONSECUTIVE_ANOMALIES",
	"REQUEST_TIMEOUT",
	"MAX_RETRIES",
	"SYNC_INTERVAL",
	"STATUS_ADDR",
}

// LoadConfig reads configuration from an optional .env file and environment variables.
// An empty envFile means ".env" in the working directory.
func LoadConfig(envFile string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("GITHUB_REPO", "python/cpython")
	v.SetDefault("GIT_REPO_LOCATION", "cpython")
	v.SetDefault("GIT_REPO_BRANCHES", "main,3.10,3.9,3.8,3.7,3.6,2.7")
	v.SetDefault("DEFAULT_SYNC_SINCE_DATE", "2017-02-10T00:00:00Z")
	v.SetDefault("PR_PAGE_SIZE", 50)
	v.SetDefault("COMMIT_CHUNK_SIZE", 500)
	v.SetDefault("MAX_CONSECUTIVE_ANOMALIES", 25)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("MAX_RETRIES", 5)
	v.SetDefault("SYNC_INTERVAL", "1h")
	v.SetDefault("STATUS_ADDR", ":8080")

	// Load from .env file if it exists
	if envFile == "" {
		envFile = ".env"
	}
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("reading %s: %w", envFile, err)
	}

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	_ = v.BindEnv("GITHUB_TOKEN", "GITHUB_TOKEN", "GITHUB_API_TOKEN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.GitRepoBranches = splitList(cfg.GitRepoBranches)

	parsedTime, err := time.Parse(time.RFC3339, cfg.DefaultSyncSinceDate)
	if err != nil {
		return nil, errors.New("DEFAULT_SYNC_SINCE_DATE must be in RFC3339 format (e.g. 2017-02-10T00:00:00Z)")
	}
	cfg.DefaultSyncSinceTime = parsedTime.UTC()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return errors.New("DB_URL is a required configuration field")
	}
	if c.PRPageSize <= 0 || c.PRPageSize > 100 {
		return errors.New("PR_PAGE_SIZE must be between 1 and 100")
	}
	if c.CommitChunkSize <= 0 {
		return errors.New("COMMIT_CHUNK_SIZE must be positive")
	}
	if c.MaxConsecutiveAnomalies <= 0 {
		return errors.New("MAX_CONSECUTIVE_ANOMALIES must be positive")
	}
	if c.MaxRetries <= 0 {
		return errors.New("MAX_RETRIES must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	return nil
}

// ValidateGithub checks what the pull request import needs on top of Validate.
func (c *Config) ValidateGithub() error {
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	_, _, err := c.Repo()
	return err
}

// ValidateGit checks what the commit import needs on top of Validate.
func (c *Config) ValidateGit() error {
	if c.GitRepoLocation == "" {
		return errors.New("GIT_REPO_LOCATION is a required configuration field")
	}
	if len(c.GitRepoBranches) == 0 {
		return errors.New("GIT_REPO_BRANCHES must contain at least one branch")
	}
	return nil
}

// Repo splits GITHUB_REPO into owner and name.
func (c *Config) Repo() (owner, name string, err error) {
	parts := strings.Split(c.GithubRepo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &custom_errors.ErrInvalidRepoFormat{Repo: c.GithubRepo}
	}
	return parts[0], parts[1], nil
}

// LogValue keeps the token out of logs.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("log_level", c.LogLevel),
		slog.String("github_repo", c.GithubRepo),
		slog.String("git_repo_location", c.GitRepoLocation),
		slog.Any("git_repo_branches", c.GitRepoBranches),
		slog.Time("default_since", c.DefaultSyncSinceTime),
		slog.Int("pr_page_size", c.PRPageSize),
		slog.Int("commit_chunk_size", c.CommitChunkSize),
		slog.Bool("github_token_set", c.GithubToken != ""),
	)
}

// splitList trims entries and drops empty ones; env values arrive as one comma separated string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
