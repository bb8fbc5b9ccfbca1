// SPDX-License-Identifier: MPL-2.0

package cmd

import "github.com/spf13/cobra"

// newCompletionCommand creates the `envmatrix completion` command.
func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for envmatrix.

To enable shell completions, run one of the following commands:

` + SubtitleStyle.Render("Bash:") + `
  # Add to ~/.bashrc:
  eval "$(envmatrix completion bash)"

  # Or install system-wide:
  envmatrix completion bash > /etc/bash_completion.d/envmatrix

` + SubtitleStyle.Render("Zsh:") + `
  # Add to ~/.zshrc:
  eval "$(envmatrix completion zsh)"

  # Or install to fpath:
  envmatrix completion zsh > "${fpath[1]}/_envmatrix"

` + SubtitleStyle.Render("Fish:") + `
  envmatrix completion fish > ~/.config/fish/completions/envmatrix.fish

` + SubtitleStyle.Render("PowerShell:") + `
  envmatrix completion powershell | Out-String | Invoke-Expression

  # Or add to $PROFILE:
  envmatrix completion powershell >> $PROFILE
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
