// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/envmatrix/envmatrix/internal/resolve"

	"github.com/spf13/cobra"
	"mvdan.cc/sh/v3/syntax"
)

func newPlanCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [ENV...] [-- POSARGS...]",
		Short: "Show what each environment would install and run",
		Long: `Resolve the matrix and print, for each selected environment, its
dependencies, commands and environment settings. Nothing is provisioned
or executed.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, posargs := splitArgs(cmd, args)
			plan, err := app.loadPlan(flags, posargs)
			if err != nil {
				return app.fail(err, exitConfig)
			}
			runList, err := plan.Select(names)
			if err != nil {
				return app.fail(err, exitConfig)
			}
			renderPlan(app.stdout, plan, runList)
			return nil
		},
		ValidArgsFunction: completeEnvNames(app, flags),
	}
}

func renderPlan(w io.Writer, plan *resolve.Plan, runList []string) {
	for i, name := range runList {
		if i > 0 {
			fmt.Fprintln(w)
		}
		env, _ := plan.Env(name)
		fmt.Fprintln(w, envNameStyle.Render(name))
		if env.Description != "" {
			fmt.Fprintln(w, "  "+SubtitleStyle.Render(env.Description))
		}

		field := func(label, value string) {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(label+":"), value)
		}

		switch {
		case env.SkipInstall:
			field("package", "skipped")
		case plan.Settings.SkipPackage:
			field("package", "skipped (skip_package)")
		case env.UseDevelop:
			field("package", plan.Settings.Package+" (develop)")
		default:
			field("package", plan.Settings.Package)
		}
		if len(env.InstallCommand) > 0 {
			field("install_command", quoteArgv(env.InstallCommand))
		}
		if env.ChangeDir != "" {
			field("change_dir", env.ChangeDir)
		}
		if len(env.PassEnv) > 0 {
			field("pass_env", strings.Join(env.PassEnv, " "))
		}
		for _, k := range slices.Sorted(maps.Keys(env.SetEnv)) {
			field("set_env", k+"="+env.SetEnv[k])
		}

		if len(env.Deps) > 0 {
			fmt.Fprintf(w, "  %s\n", labelStyle.Render("deps:"))
			for _, dep := range env.Deps {
				fmt.Fprintf(w, "    %s\n", dep)
			}
		}
		fmt.Fprintf(w, "  %s\n", labelStyle.Render("commands:"))
		if len(env.Commands) == 0 {
			fmt.Fprintf(w, "    %s\n", VerboseStyle.Render("(none)"))
		}
		for _, argv := range env.Commands {
			fmt.Fprintf(w, "    %s\n", CmdStyle.Render(quoteArgv(argv)))
		}
	}
}

// quoteArgv renders argv as a POSIX shell command line.
func quoteArgv(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		q, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			q = fmt.Sprintf("%q", arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
