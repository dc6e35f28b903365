// internal/cli/root.go
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ambv/cpython-stats/internal/syncer"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitSyncFailed = 1
	ExitUsageError = 2
)

// Run executes the command line and returns an exit code. Commands return an
// error only for usage and configuration problems; runtime failures are logged
// and reported through the exit code.
func Run() int {
	return run(context.Background(), os.Args[1:])
}

func run(ctx context.Context, args []string) int {
	var exitCode = ExitSuccess
	root := newRootCmd(&exitCode)
	root.SetArgs(args)

	if err := root.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}
	return exitCode
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile string
}

func newRootCmd(exitCode *int) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:          "cpython-stats",
		Short:        "Synchronize CPython pull requests and commits into PostgreSQL",
		Long:         "cpython-stats incrementally imports pull requests from GitHub and commits from a local clone. Every run resumes where the previous one stopped.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "Path to a .env file (default: ./.env)")

	root.AddCommand(
		newImportCmd(flags, exitCode, "import-prs", "Import pull requests and reviews from GitHub", sourcePullRequests),
		newImportCmd(flags, exitCode, "import-commits", "Import commits from the local git clone", sourceCommits),
		newImportCmd(flags, exitCode, "import-all", "Import pull requests and commits concurrently", sourcePullRequests|sourceCommits),
		newWatchCmd(flags, exitCode),
		newMigrateCmd(flags),
	)
	return root
}

// exitCodeFor maps the outcome of a set of runs to a process exit code.
func exitCodeFor(results []syncer.Result) int {
	for _, r := range results {
		if r.Failed() {
			return ExitSyncFailed
		}
	}
	return ExitSuccess
}
