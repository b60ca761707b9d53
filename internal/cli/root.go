package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/smartguitar/sgc/pkg/color"
	"github.com/smartguitar/sgc/pkg/config"
	"github.com/smartguitar/sgc/pkg/errclass"
	"github.com/smartguitar/sgc/pkg/logging"
	"github.com/smartguitar/sgc/pkg/metrics"
)

var (
	jsonOutput  bool
	noColor     bool
	configPath  string
	logLevel    string
	metricsFile string
	auditLog    string

	// cfg is the effective configuration, loaded before every command.
	cfg = config.Default()
	// metricsReg is non-nil when a metrics textfile was requested.
	metricsReg    *metrics.Registry
	metricsTarget string

	rootCmd = &cobra.Command{
		Use:   "sgc",
		Short: "sgc - OTA bundle tools for the Smart Guitar",
		Long: `sgc builds OTA bundles for the Smart Guitar: directories (optionally zipped)
of hash-addressed, optionally HMAC-signed artifacts derived from a practice
session, a dance pack or a dance pack set. It also verifies bundles against
their manifests and publishes them to object storage.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $SGC_CONFIG or ./sgc.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile on exit")
	rootCmd.PersistentFlags().StringVar(&auditLog, "audit-log", "", "append builds and publishes to this release log (default from config)")
}

// setup loads the configuration and configures logging and metrics.
func setup(cmd *cobra.Command, args []string) error {
	color.Init(noColor)

	path := config.ResolvePath(configPath)
	loaded, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errclass.ErrFileNotFound.WithMessagef("config file %s", path)
		}
		return err
	}
	cfg = loaded
	if auditLog != "" {
		cfg.AuditLog = auditLog
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return err
	}
	logging.SetGlobal(logging.NewLoggerTo(lvl, os.Stderr))

	metricsTarget = metricsFile
	if metricsTarget == "" {
		metricsTarget = cfg.MetricsFile
	}
	metricsReg = nil
	if metricsTarget != "" {
		metricsReg = metrics.NewRegistry()
	}
	logging.Debug("configuration loaded", map[string]any{"path": path, "log_level": level})
	return nil
}

// Execute runs the root command and exits with its status: 0 on success,
// 2 when an input file is missing, 1 for every other failure.
func Execute() {
	err := rootCmd.Execute()
	if werr := flushMetrics(); werr != nil {
		fmtErr("write metrics: %v", werr)
	}
	if err == nil {
		return
	}
	var exit *exitError
	if !errors.As(err, &exit) {
		fmtErr("%v", err)
	}
	os.Exit(exitCode(err))
}

func flushMetrics() error {
	if metricsReg == nil {
		return nil
	}
	return metricsReg.WriteTextfile(metricsTarget)
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exitError reports a failure whose message was already printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exitCode(err error) int {
	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	if errors.Is(err, errclass.ErrFileNotFound) {
		return 2
	}
	return 1
}
