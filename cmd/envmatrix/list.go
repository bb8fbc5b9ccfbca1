// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"

	"github.com/spf13/cobra"
)

func newListCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the environments declared in the matrix",
		Long: `List every environment in declaration order. Environments in the default
run list are shown first.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			plan, err := app.loadPlan(flags, nil)
			if err != nil {
				return app.fail(err, exitConfig)
			}
			renderEnvList(app.stdout, plan)
			return nil
		},
	}
}

func renderEnvList(w io.Writer, plan *resolve.Plan) {
	defaults, _ := plan.Select(nil)

	var additional []string
	for _, name := range plan.Order {
		if !slices.Contains(defaults, name) {
			additional = append(additional, name)
		}
	}

	fmt.Fprintln(w, TitleStyle.Render("default environments:"))
	renderEnvGroup(w, plan, defaults)
	if len(additional) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, TitleStyle.Render("additional environments:"))
		renderEnvGroup(w, plan, additional)
	}
}

func renderEnvGroup(w io.Writer, plan *resolve.Plan, names []string) {
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	for _, name := range names {
		env, _ := plan.Env(name)
		line := envNameStyle.Render(fmt.Sprintf("%-*s", width, name))
		if desc := describeEnv(env); desc != "" {
			line += " -> " + desc
		}
		fmt.Fprintln(w, line)
	}
}

func describeEnv(env *resolve.Environment) string {
	switch {
	case env == nil:
		return ""
	case env.Description != "":
		return env.Description
	case env.Name == matrixfile.BaseEnvName:
		return VerboseStyle.Render("[base environment]")
	case env.Derived:
		return VerboseStyle.Render("[no section, inherits the base environment]")
	default:
		return ""
	}
}
