package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartguitar/sgc/internal/assignment"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/fsutil"
)

var (
	packSession string
	packID      string
	packOutput  string
	packSecret  secretFlags

	payloadSecret secretFlags

	exportSession string
	exportOutput  string
)

var packCmd = &cobra.Command{
	Use:   "ota-pack",
	Short: "Emit an assignment payload",
	Long: `Emit the assignment envelope for a session or a dance pack, signed when a
secret is available. This is the assignment.json carried by every bundle.

Examples:
  sgc ota-pack --dance-pack rock_straight_v1 --secret-file ota.key
  sgc ota-pack --session session.json -o assignment.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := selectAssignment(packSession, packID)
		if err != nil {
			return err
		}
		sg, err := packSecret.signer()
		if err != nil {
			return err
		}
		data, err := assignment.SignedPayload(a, sg)
		if err != nil {
			return err
		}
		return emit(data, packOutput)
	},
}

var payloadVerifyCmd = &cobra.Command{
	Use:   "ota-verify <payload>",
	Short: "Check the signature of an assignment payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sg, err := payloadSecret.requireSigner()
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(args[0])
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return errclass.ErrFileNotFound.WithMessagef("payload %s", args[0])
			}
			return fmt.Errorf("read payload: %w", err)
		}

		status, err := sg.CheckDocument(raw, false)
		if jsonOutput {
			if jerr := outputJSON(map[string]any{"path": args[0], "signature": status, "ok": err == nil}); jerr != nil {
				return jerr
			}
		} else if err == nil {
			fmt.Println(color.Success("OK:") + " signature valid")
		} else {
			fmt.Println(color.Error("FAIL:") + " signature invalid or missing")
		}
		if err != nil {
			return &exitError{code: 1}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export-bundle",
	Short: "Export the unsigned assignment envelope of a session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportSession == "" {
			return errclass.ErrSelectorConflict.WithMessage("--session is required")
		}
		s, err := assignment.LoadSession(exportSession)
		if err != nil {
			return err
		}
		data, err := assignment.Wrap(s.Assignment).Marshal()
		if err != nil {
			return err
		}
		return emit(data, exportOutput)
	},
}

// selectAssignment resolves exactly one of a session file and a pack id.
func selectAssignment(sessionPath, id string) (*assignment.Assignment, error) {
	switch {
	case sessionPath != "" && id != "":
		return nil, errclass.ErrSelectorConflict.WithMessage("choose only one of --session, --dance-pack")
	case sessionPath != "":
		s, err := assignment.LoadSession(sessionPath)
		if err != nil {
			return nil, err
		}
		return s.Assignment, nil
	case id != "":
		reg, err := loadRegistry()
		if err != nil {
			return nil, err
		}
		p, err := reg.Pack(id)
		if err != nil {
			return nil, withSuggestion(err, id, reg)
		}
		return assignment.FromPack(p), nil
	default:
		return nil, errclass.ErrSelectorConflict.WithMessage("choose one of --session, --dance-pack")
	}
}

// emit prints data, or writes it to path when one is given.
func emit(data []byte, path string) error {
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := fsutil.AtomicWrite(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Written to %s\n", color.Path(path))
	return nil
}

func init() {
	packCmd.Flags().StringVar(&packSession, "session", "", "session JSON file")
	packCmd.Flags().StringVar(&packID, "dance-pack", "", "bundled dance pack id")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "write the payload to this file")
	packSecret.AddFlags(packCmd.Flags())
	packCmd.RegisterFlagCompletionFunc("dance-pack", completePackIDs)

	payloadSecret.AddFlags(payloadVerifyCmd.Flags())

	exportCmd.Flags().StringVar(&exportSession, "session", "", "session JSON file (required)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the envelope to this file")

	rootCmd.AddCommand(packCmd)
	rootCmd.AddCommand(payloadVerifyCmd)
	rootCmd.AddCommand(exportCmd)
}
