package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartguitar/sgc/internal/audit"
	"github.com/smartguitar/sgc/internal/bundle"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/progress"
	"github.com/smartguitar/sgc/pkg/webhook"
)

var (
	bundleSelector    bundle.Selector
	bundleOut         string
	bundleManifest    string
	bundleName        string
	bundleMultiPack   bool
	bundleZip         bool
	bundleProduct     string
	bundleDeviceModel string
	bundleMinFirmware string
	bundleAttach      []string
	bundleCompression string
	bundleForce       bool
	bundleSecret      secretFlags
)

var bundleCmd = &cobra.Command{
	Use:   "ota-bundle",
	Short: "Build OTA bundles",
	Long: `Build OTA bundles from exactly one input: a session file, a dance pack
(by id or file) or a dance pack set (by id or file).

A set builds one bundle per pack, or a single combined bundle with
--multi-pack. Every run writes ota_manifest.json describing what was built.

Examples:
  sgc ota-bundle --dance-pack rock_straight_v1 --out out/
  sgc ota-bundle --dance-pack-set groove_foundations_v1 --out out/ --zip
  sgc ota-bundle --dance-pack-set groove_foundations_v1 --multi-pack --out out/ --secret-file ota.key
  sgc ota-bundle --session session.json --out out/ --attach notes.txt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		level, err := compressionLevel(bundleCompression)
		if err != nil {
			return err
		}
		sg, err := bundleSecret.signer()
		if err != nil {
			return err
		}
		reg, err := loadRegistry()
		if err != nil {
			return err
		}

		opts := bundle.Options{
			Selector:     bundleSelector,
			Out:          bundleOut,
			ManifestPath: bundleManifest,
			Name:         bundleName,
			MultiPack:    bundleMultiPack,
			Zip:          bundleZip,
			Product:      firstNonEmpty(bundleProduct, cfg.Product),
			DeviceModel:  firstNonEmpty(bundleDeviceModel, cfg.DeviceModel),
			MinFirmware:  firstNonEmpty(bundleMinFirmware, cfg.MinFirmware),
			Attach:       bundleAttach,
			Compression:  level,
			Force:        bundleForce,
			Signer:       sg,
			Registry:     reg,
			Metrics:      metricsReg,
		}
		if !jsonOutput {
			opts.Progress = progress.Lines(os.Stderr)
		}

		res, err := bundle.Build(ctx, opts)
		if err != nil {
			query := bundleSelector.PackID
			if query == "" {
				query = bundleSelector.SetID
			}
			return withSuggestion(err, query, reg)
		}
		subject := buildSubject(res.Manifest)
		recordRelease(audit.EventBuild, subject, buildDetails(res.ManifestPath, res.Manifest))
		notify(ctx, webhook.Event{
			Event:    webhook.EventBuilt,
			Product:  opts.Product,
			Mode:     string(res.Mode),
			Subject:  subject,
			Manifest: res.ManifestPath,
		})

		if jsonOutput {
			return outputJSON(res.Manifest)
		}
		for _, out := range res.Outputs() {
			fmt.Printf("Bundle: %s\n", color.Path(out.BundleDir))
			if out.ZipPath != nil {
				fmt.Printf("Zip: %s\n", color.Path(*out.ZipPath))
			}
		}
		fmt.Printf("Manifest: %s\n", color.Path(res.ManifestPath))
		return nil
	},
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func init() {
	f := bundleCmd.Flags()
	f.StringVar(&bundleSelector.SessionPath, "session", "", "session JSON file")
	f.StringVar(&bundleSelector.PackID, "dance-pack", "", "bundled dance pack id")
	f.StringVar(&bundleSelector.PackPath, "dance-pack-path", "", "dance pack YAML file")
	f.StringVar(&bundleSelector.SetID, "dance-pack-set", "", "bundled dance pack set id")
	f.StringVar(&bundleSelector.SetPath, "dance-pack-set-path", "", "dance pack set YAML file")
	f.StringVar(&bundleOut, "out", "", "output directory (required)")
	f.StringVar(&bundleManifest, "manifest", "", "OTA manifest path (default <out>/ota_manifest.json)")
	f.StringVar(&bundleName, "name", "", "bundle name (not allowed when building one bundle per pack)")
	f.BoolVar(&bundleMultiPack, "multi-pack", false, "combine every pack of the set into one bundle")
	f.BoolVar(&bundleZip, "zip", false, "also write <name>.zip for each top-level bundle")
	f.StringVar(&bundleProduct, "product", "", "product name (default from config, smart-guitar)")
	f.StringVar(&bundleDeviceModel, "device-model", "", "target device model")
	f.StringVar(&bundleMinFirmware, "min-firmware", "", "minimum firmware version")
	f.StringArrayVar(&bundleAttach, "attach", nil, "file copied into attachments/ of every bundle (repeatable)")
	f.StringVar(&bundleCompression, "compression", "", "zip compression: none, fast, default, max (default from config)")
	f.BoolVar(&bundleForce, "force", false, "replace existing bundles")
	bundleSecret.AddFlags(f)

	bundleCmd.MarkFlagRequired("out")
	bundleCmd.MarkFlagFilename("session", "json")
	bundleCmd.MarkFlagFilename("dance-pack-path", "yaml", "yml")
	bundleCmd.MarkFlagFilename("dance-pack-set-path", "yaml", "yml")
	bundleCmd.MarkFlagDirname("out")
	bundleCmd.RegisterFlagCompletionFunc("dance-pack", completePackIDs)
	bundleCmd.RegisterFlagCompletionFunc("dance-pack-set", completeSetIDs)

	rootCmd.AddCommand(bundleCmd)
}
