package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartguitar/sgc/internal/verify"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/webhook"
)

var (
	verifySecret        secretFlags
	verifyAllowUnsigned bool
)

var verifyBundleCmd = &cobra.Command{
	Use:   "ota-verify-bundle <path>",
	Short: "Verify an OTA bundle folder or zip",
	Long: `Verify an OTA bundle against its manifest.

The path may be a bundle directory or a zip; the form is detected. Every
declared artifact is re-hashed and every problem is reported. Given a secret,
manifest signatures are checked as well.

Examples:
  sgc ota-verify-bundle out/ota_bundle__rock_straight_v1
  sgc ota-verify-bundle out/ota_bundle__groove_foundations_v1.zip --secret-file ota.key`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), args[0], (*verify.Verifier).VerifyPath)
	},
}

var verifyFolderCmd = &cobra.Command{
	Use:   "ota-verify-folder <dir>",
	Short: "Verify an OTA bundle directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), args[0], (*verify.Verifier).VerifyFolder)
	},
}

var verifyZipCmd = &cobra.Command{
	Use:   "ota-verify-zip <zip>",
	Short: "Verify a zipped OTA bundle",
	Long: `Verify a zipped OTA bundle. The zip is extracted to a temporary directory
that is removed again whatever the outcome.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerify(cmd.Context(), args[0], (*verify.Verifier).VerifyZip)
	},
}

func runVerify(ctx context.Context, p string, fn func(*verify.Verifier, context.Context, string) (*verify.Result, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	sg, err := verifySecret.signer()
	if err != nil {
		return err
	}
	v := verify.NewVerifier(verify.Options{
		Signer:        sg,
		AllowUnsigned: verifyAllowUnsigned,
		Metrics:       metricsReg,
	})

	res, err := fn(v, ctx, p)
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := outputJSON(res); err != nil {
			return err
		}
	} else {
		printResult(res)
	}
	if !res.OK {
		notify(ctx, webhook.Event{Event: webhook.EventVerifyFailed, Subject: p, Reasons: res.Reasons()})
		return &exitError{code: 1}
	}
	return nil
}

func printResult(res *verify.Result) {
	for _, u := range res.Undeclared {
		fmt.Fprintf(os.Stderr, "%s undeclared file %s\n", color.Warning("warning:"), color.Path(u))
	}
	if res.OK {
		fmt.Println(color.Success("OK"))
		return
	}
	for _, f := range res.Failures {
		fmt.Printf("%s %s\n", color.Error("FAIL:"), f.String())
	}
}

func init() {
	for _, c := range []*cobra.Command{verifyBundleCmd, verifyFolderCmd, verifyZipCmd} {
		verifySecret.AddFlags(c.Flags())
		c.Flags().BoolVar(&verifyAllowUnsigned, "allow-unsigned", false, "accept manifests without a signature when a secret is given")
		rootCmd.AddCommand(c)
	}
}
