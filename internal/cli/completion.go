package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/offsetwatch/internal/config"
)

func newCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion <shell>",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for offsetwatch.

Bash:
  $ source <(offsetwatch completion bash)

Zsh:
  $ offsetwatch completion zsh > "${fpath[1]}/_offsetwatch"

Fish:
  $ offsetwatch completion fish > ~/.config/fish/completions/offsetwatch.fish

PowerShell:
  PS> offsetwatch completion powershell | Out-String | Invoke-Expression
`,
		// Override parent PersistentPreRunE: completion needs no config.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Args:              cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:         []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}

			return nil
		},
	}

	return cmd
}

// registerEnumCompletion offers a fixed set of values for flag on cmd.
func registerEnumCompletion(cmd *cobra.Command, flag string, values ...string) {
	_ = cmd.RegisterFlagCompletionFunc(flag, func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	})
}

// registerGlobalCompletions wires value completion for the root's
// persistent flags.
func registerGlobalCompletions(root *cobra.Command) {
	registerEnumCompletion(root, "log-level",
		config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarn, config.LogLevelError)
	registerEnumCompletion(root, "log-format", config.LogFormatText, config.LogFormatJSON)
	_ = root.MarkPersistentFlagFilename("settings-path", "json")
	_ = root.MarkPersistentFlagFilename("config", "yaml", "yml")
}
