// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/envmatrix/envmatrix/internal/watch"

	"github.com/spf13/cobra"
)

type watchOptions struct {
	run      runOptions
	patterns []string
	ignore   []string
	debounce time.Duration
}

func newWatchCommand(app *App, flags *rootFlags) *cobra.Command {
	opts := &watchOptions{}
	watchCmd := &cobra.Command{
		Use:   "watch [ENV...] [-- POSARGS...]",
		Short: "Rerun environments whenever project files change",
		Long: `Run the selected environments, then watch the project directory and run
them again after every change. Environment work directories, VCS metadata and
Python caches never trigger a rerun. Stop with Ctrl+C.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.watchMatrix(cmd, flags, opts, args)
		},
		ValidArgsFunction: completeEnvNames(app, flags),
	}
	addRunFlags(watchCmd, &opts.run)
	watchCmd.Flags().StringSliceVar(&opts.patterns, "pattern", nil, "only rerun for files matching these globs, e.g. 'src/**/*.py'")
	watchCmd.Flags().StringSliceVar(&opts.ignore, "ignore", nil, "additional globs that never trigger a rerun")
	watchCmd.Flags().DurationVar(&opts.debounce, "debounce", watch.DefaultDebounce, "quiet period before a rerun")
	return watchCmd
}

func (a *App) watchMatrix(cmd *cobra.Command, flags *rootFlags, opts *watchOptions, args []string) error {
	names, posargs := splitArgs(cmd, args)
	names = append(slices.Clone(opts.run.envs), names...)

	plan, err := a.loadPlan(flags, posargs)
	if err != nil {
		return a.fail(err, exitConfig)
	}

	ignore := slices.Clone(opts.ignore)
	for _, dir := range []string{plan.Settings.WorkDir, opts.run.workDir, a.settings().WorkDir} {
		if pat, ok := workDirIgnore(plan.RootDir, dir); ok {
			ignore = append(ignore, pat)
		}
	}

	rerun := func(_ context.Context, changed []string) {
		fmt.Fprintf(a.stderr, "%s %s\n", labelStyle.Render("changed:"), strings.Join(changed, ", "))
		a.runOnceForWatch(cmd, flags, &opts.run, names, posargs)
	}

	w, err := watch.New(watch.Config{
		Root:     plan.RootDir,
		Patterns: opts.patterns,
		Ignore:   ignore,
		Debounce: opts.debounce,
		Rerun:    rerun,
		Logger:   a.logger,
	})
	if err != nil {
		return a.fail(err, exitConfig)
	}

	a.runOnceForWatch(cmd, flags, &opts.run, names, posargs)
	fmt.Fprintln(a.stderr, SubtitleStyle.Render("watching "+plan.RootDir+" for changes"))
	if err := w.Run(cmd.Context()); err != nil {
		return a.fail(err, exitConfig)
	}
	return nil
}

// runOnceForWatch runs the matrix and swallows run failures: they were
// already reported and the watch continues.
func (a *App) runOnceForWatch(cmd *cobra.Command, flags *rootFlags, opts *runOptions, names, posargs []string) {
	err := a.execute(cmd, flags, opts, names, posargs)
	var exitErr *ExitError
	if err != nil && !errors.As(err, &exitErr) {
		a.logger.Warn("run failed", "error", err)
	}
}

// workDirIgnore returns the glob covering dir when it lies under root.
func workDirIgnore(root, dir string) (string, bool) {
	if dir == "" {
		return "", false
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel) + "/**", true
}
