package cli

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var completionScripts = map[string]func(cmd *cobra.Command, w io.Writer) error{
	"bash":       func(cmd *cobra.Command, w io.Writer) error { return cmd.GenBashCompletionV2(w, true) },
	"zsh":        func(cmd *cobra.Command, w io.Writer) error { return cmd.GenZshCompletion(w) },
	"fish":       func(cmd *cobra.Command, w io.Writer) error { return cmd.GenFishCompletion(w, true) },
	"powershell": func(cmd *cobra.Command, w io.Writer) error { return cmd.GenPowerShellCompletionWithDesc(w) },
}

var completionCmd = &cobra.Command{
	Use:   "completion bash|zsh|fish|powershell",
	Short: "Generate shell completion script",
	Long: `Generate the shell completion script for sgc.

  source <(sgc completion bash)
  sgc completion zsh > "${fpath[1]}/_sgc"
  sgc completion fish > ~/.config/fish/completions/sgc.fish
  sgc completion powershell | Out-String | Invoke-Expression

Pack and set ids complete from the bundled registry, with their display
names as descriptions:
  sgc ota-bundle --dance-pack <TAB>`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return completionScripts[args[0]](cmd.Root(), cmd.OutOrStdout())
	},
}

// completePackIDs completes bundled dance pack ids as "id\tdisplay name".
func completePackIDs(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []cobra.Completion
	for _, id := range reg.PackIDs() {
		if !strings.HasPrefix(id, toComplete) {
			continue
		}
		p, err := reg.Pack(id)
		if err != nil {
			continue
		}
		out = append(out, cobra.CompletionWithDesc(id, p.Metadata.DisplayName))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

// completeSetIDs completes bundled set ids as "id\tdisplay name".
func completeSetIDs(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var out []cobra.Completion
	for _, s := range reg.Sets() {
		if strings.HasPrefix(s.ID, toComplete) {
			out = append(out, cobra.CompletionWithDesc(s.ID, s.DisplayName))
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
