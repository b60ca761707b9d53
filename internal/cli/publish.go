package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smartguitar/sgc/internal/audit"
	"github.com/smartguitar/sgc/internal/publish"
	"github.com/smartguitar/sgc/internal/verify"
	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/config"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/template"
	"github.com/smartguitar/sgc/pkg/webhook"
)

var (
	publishBucket        string
	publishPrefix        string
	publishEndpoint      string
	publishVerify        bool
	publishAllowUnsigned bool
	publishSecret        secretFlags
)

// newObjectStore connects to the configured object store. Tests replace it.
var newObjectStore = func(ctx context.Context, pc config.PublishConfig) (publish.ObjectStore, error) {
	return publish.NewS3Client(ctx, pc)
}

var publishCmd = &cobra.Command{
	Use:   "ota-publish <ota-manifest>",
	Short: "Upload zipped bundles to object storage",
	Long: `Upload every zip listed in an OTA manifest, then the manifest itself, to an
S3-compatible bucket. Build with --zip first.

The prefix may contain {date}, {month}, {unix}, {user} and {product}.

Credentials are taken from SGC_S3_ACCESS_KEY and SGC_S3_SECRET_KEY when both
are set, otherwise from the default AWS credential chain.

Examples:
  sgc ota-publish out/ota_manifest.json --bucket firmware --prefix ota/2026-10
  sgc ota-publish out/ota_manifest.json --prefix "ota/{product}/{date}"
  sgc ota-publish out/ota_manifest.json --verify --secret-file ota.key`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		pc := cfg.Publish
		if publishBucket != "" {
			pc.Bucket = publishBucket
		}
		if publishPrefix != "" {
			pc.Prefix = publishPrefix
		}
		if publishEndpoint != "" {
			pc.Endpoint = publishEndpoint
		}

		prefix, err := template.Expand(pc.Prefix, time.Now(), map[string]string{"product": cfg.Product})
		if err != nil {
			return errclass.ErrNameInvalid.WithMessage(err.Error())
		}

		opts := publish.Options{Bucket: pc.Bucket, Prefix: prefix, Metrics: metricsReg}
		if publishVerify {
			sg, err := publishSecret.signer()
			if err != nil {
				return err
			}
			opts.Verifier = verify.NewVerifier(verify.Options{
				Signer:        sg,
				AllowUnsigned: publishAllowUnsigned,
				Metrics:       metricsReg,
			})
		}

		store, err := newObjectStore(ctx, pc)
		if err != nil {
			return err
		}
		p, err := publish.NewPublisher(store, opts)
		if err != nil {
			return err
		}
		report, err := p.Publish(ctx, args[0])
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(report.Objects))
		for _, obj := range report.Objects {
			keys = append(keys, obj.Key)
		}
		recordRelease(audit.EventPublish, report.Bucket, map[string]any{"manifest": args[0], "keys": keys})
		notify(ctx, webhook.Event{
			Event:    webhook.EventPublished,
			Manifest: args[0],
			Bucket:   report.Bucket,
			Keys:     keys,
		})

		if jsonOutput {
			return outputJSON(report)
		}
		for _, obj := range report.Objects {
			fmt.Printf("Uploaded: s3://%s/%s %s\n", report.Bucket, obj.Key, color.Dim(fmt.Sprintf("(%d bytes)", obj.Size)))
		}
		return nil
	},
}

func init() {
	f := publishCmd.Flags()
	f.StringVar(&publishBucket, "bucket", "", "target bucket (default from config)")
	f.StringVar(&publishPrefix, "prefix", "", "key prefix (default from config)")
	f.StringVar(&publishEndpoint, "endpoint", "", "S3 endpoint for non-AWS stores (default from config)")
	f.BoolVar(&publishVerify, "verify", false, "verify every zip before uploading")
	f.BoolVar(&publishAllowUnsigned, "allow-unsigned", false, "with --verify and a secret, accept unsigned manifests")
	publishSecret.AddFlags(f)

	rootCmd.AddCommand(publishCmd)
}
