// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/envmatrix/envmatrix/internal/config"

	"github.com/spf13/cobra"
)

func newConfigCommand(app *App, flags *rootFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage envmatrix configuration",
		Long: `Manage the user configuration file.

The file lives at $XDG_CONFIG_HOME/envmatrix/config.cue (or the platform
equivalent). Every key can be overridden with an ENVMATRIX_ environment
variable, e.g. ENVMATRIX_DEFAULT_RUNTIME=virtual.`,
	}

	cfgCmd.AddCommand(
		newConfigShowCommand(app, flags),
		newConfigInitCommand(app),
		newConfigPathCommand(app, flags),
	)
	return cfgCmd
}

func newConfigShowCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, source, err := config.LoadWithSource(cmd.Context(), config.LoadOptions{ConfigFilePath: flags.configPath})
			switch {
			case err != nil:
				source = "(invalid, using defaults)"
			case source == "":
				source = "(none, using defaults)"
			}
			fmt.Fprintln(app.stdout, SubtitleStyle.Render("// source: "+source))
			fmt.Fprint(app.stdout, config.GenerateCUE(app.settings()))
			return nil
		},
	}
}

func newConfigInitCommand(app *App) *cobra.Command {
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig(force)
			if err != nil {
				return app.fail(err, exitConfig)
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Configuration written to"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return initCmd
}

func newConfigPathCommand(app *App, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if flags.configPath != "" {
				fmt.Fprintln(app.stdout, flags.configPath)
				return nil
			}
			path, err := config.ConfigPath()
			if err != nil {
				return app.fail(err, exitConfig)
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	}
}
