package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/smartguitar/sgc/internal/packager"
	"github.com/smartguitar/sgc/pkg/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Inspect sgc configuration",
	Long: `Inspect sgc configuration.

The file is taken from --config, else $SGC_CONFIG, else ./sgc.yaml when it
exists. Command-line flags override it.

Configuration options:
  product           - Product written into bundle manifests (default smart-guitar)
  device_model      - Device model targeted by bundles
  min_firmware      - Minimum firmware version targeted by bundles
  secret_file       - HMAC secret used when no --secret flag is given
  compression       - Zip compression: none, fast, default, max
  metrics_file      - Prometheus textfile written after every command
  audit_log         - Hash-chained release log appended by builds and publishes
  logging.level     - debug, info, warn, error
  publish.*         - bucket, prefix, endpoint, region, force_path_style
                      (prefix may use {date}, {month}, {unix}, {user}, {product})
  webhooks.*        - hooks (url, secret, events), max_retries, retry_delay, timeout

Available commands:
  show              - Show the effective configuration
  init <path>       - Write a config file holding the defaults`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(cfg)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		if path := config.ResolvePath(configPath); path != "" {
			fmt.Printf("# Location: %s\n", path)
		} else {
			fmt.Println("# Location: (defaults)")
		}
		fmt.Print(string(data))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a config file holding the defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if err := packager.ClaimOutput(path, configInitForce); err != nil {
			return err
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		fmt.Printf("Written to %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
