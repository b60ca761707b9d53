package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smartguitar/sgc/internal/catalog"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/errclass"
)

var (
	setValidatePath  string
	setValidateQuiet bool
)

var packListCmd = &cobra.Command{
	Use:   "dance-pack-list",
	Short: "List bundled dance packs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		ids := reg.PackIDs()
		if jsonOutput {
			return outputJSON(ids)
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

type setListEntry struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tier        string `json:"tier"`
	PackCount   int    `json:"pack_count"`
}

var setListCmd = &cobra.Command{
	Use:   "dance-pack-set-list",
	Short: "List bundled dance pack sets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		sets := reg.Sets()
		if jsonOutput {
			entries := make([]setListEntry, 0, len(sets))
			for _, s := range sets {
				entries = append(entries, setListEntry{
					ID:          s.ID,
					DisplayName: s.DisplayName,
					Tier:        s.Tier,
					PackCount:   len(s.Packs),
				})
			}
			return outputJSON(entries)
		}
		for _, s := range sets {
			fmt.Printf("%s  (%s)  %s  [%d packs]\n", s.ID, s.Tier, s.DisplayName, len(s.Packs))
		}
		return nil
	},
}

var setValidateCmd = &cobra.Command{
	Use:   "dance-pack-set-validate [<set-id>]",
	Short: "Validate a dance pack set",
	Long: `Validate a bundled dance pack set, or a set file given with --path, and
check that every pack it references exists.

Examples:
  sgc dance-pack-set-validate groove_foundations_v1
  sgc dance-pack-set-validate --path my_set.yaml -q`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgsFunction: completeSetIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case setValidatePath == "" && len(args) == 0:
			return errclass.ErrSelectorConflict.WithMessage("give a set id or --path")
		case setValidatePath != "" && len(args) == 1:
			return errclass.ErrSelectorConflict.WithMessage("give either a set id or --path, not both")
		}

		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		var set *catalog.Set
		if setValidatePath != "" {
			set, err = catalog.LoadSetFile(setValidatePath)
		} else {
			set, err = reg.Set(args[0])
			err = withSuggestion(err, args[0], reg)
		}
		if err == nil {
			err = reg.ValidateReferences(set)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", color.Error("FAIL:"), err)
			return &exitError{code: 2}
		}

		if setValidateQuiet {
			return nil
		}
		if jsonOutput {
			return outputJSON(map[string]any{"id": set.ID, "ok": true, "packs": set.PackIDs()})
		}
		fmt.Printf("%s %s (%d packs)\n", color.Success("OK:"), set.ID, len(set.Packs))
		for _, id := range set.PackIDs() {
			fmt.Printf("  - %s\n", id)
		}
		return nil
	},
}

var setShowCmd = &cobra.Command{
	Use:               "dance-pack-set-show <set-id>",
	Short:             "Show a dance pack set summary",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeSetIDs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		set, err := reg.Set(args[0])
		if err != nil {
			return withSuggestion(err, args[0], reg)
		}
		sum, err := reg.Summarize(set)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(sum)
		}

		tags := "(none)"
		if len(sum.Tags) > 0 {
			tags = strings.Join(sum.Tags, ", ")
		}
		fmt.Printf("%s %s (%s)\n", color.Header("Set:"), sum.DisplayName, sum.ID)
		fmt.Printf("Tier: %s\n", sum.Tier)
		fmt.Printf("Tags: %s\n", tags)
		fmt.Printf("Packs (%d):\n", sum.PackCount)
		for _, p := range sum.Packs {
			fmt.Printf("  - %s: %s\n", p.PackID, p.DisplayName)
			fmt.Printf("      %s | %s | %s\n", p.Difficulty, p.TempoRange, p.Subdivision)
		}
		return nil
	},
}

func init() {
	setValidateCmd.Flags().StringVar(&setValidatePath, "path", "", "validate a set file instead of a bundled set")
	setValidateCmd.Flags().BoolVarP(&setValidateQuiet, "quiet", "q", false, "print nothing on success")
	setValidateCmd.MarkFlagFilename("path", "yaml", "yml")

	rootCmd.AddCommand(packListCmd)
	rootCmd.AddCommand(setListCmd)
	rootCmd.AddCommand(setValidateCmd)
	rootCmd.AddCommand(setShowCmd)
}
