// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/envmatrix/envmatrix/internal/report"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

const exitConfig = report.ExitConfigError

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app. Invoked without a
// subcommand it behaves like `envmatrix run`.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}
	runOpts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:   "envmatrix [ENV...] [-- POSARGS...]",
		Short: "Run commands across a matrix of isolated environments",
		Long: TitleStyle.Render("envmatrix") + SubtitleStyle.Render(" - run commands across a matrix of isolated environments") + `

envmatrix reads a tox-style matrix (envmatrix.cue, envmatrix.ini, tox.ini or
pyproject.toml), provisions a fresh isolated environment for each selected
entry, runs its commands in order and summarizes the outcome.

` + SubtitleStyle.Render("Examples:") + `
  envmatrix                      Run the default environment list
  envmatrix py311 lint           Run two environments in that order
  envmatrix -e py312 -- -k slow  Forward "-k slow" to {posargs}
  envmatrix list                 Show declared environments
  envmatrix plan py312           Show what py312 would install and run
  envmatrix watch lint           Rerun lint whenever a file changes`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return app.load(cmd.Context(), flags) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runMatrix(cmd, flags, runOpts, args)
		},
		ValidArgsFunction: completeEnvNames(app, flags),
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/envmatrix/config.cue)")
	rootCmd.PersistentFlags().StringVarP(&flags.matrixPath, "matrix", "c", "", "matrix file (default: first of envmatrix.cue, envmatrix.ini, tox.ini, pyproject.toml)")
	addRunFlags(rootCmd, runOpts)

	rootCmd.AddCommand(
		newRunCommand(app, flags),
		newListCommand(app, flags),
		newPlanCommand(app, flags),
		newWatchCommand(app, flags),
		newConfigCommand(app, flags),
		newCompletionCommand(),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process. It is called by main.main().
func Execute() {
	os.Exit(run(context.Background(), NewApp(Dependencies{}), os.Args[1:]))
}

// run executes the command tree with args and returns the process exit code.
// fang supplies styled help and cancels ctx on the first interrupt.
//
// Handlers render their own failures before returning an *ExitError, so
// cobra and fang error output is discarded and only usage errors, which
// never reach a handler, are printed here.
func run(ctx context.Context, app *App, args []string) int {
	rootCmd := NewRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(app.stdin)
	rootCmd.SetOut(app.stdout)
	rootCmd.SetErr(io.Discard)

	err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, app.verbose))
	return exitConfig
}
