// Package config provides configuration file support for sgc.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/smartguitar/sgc/pkg/webhook"
)

// EnvConfigPath names the environment variable consulted when no explicit
// config path is given.
const EnvConfigPath = "SGC_CONFIG"

// DefaultFileName is looked up in the working directory as a last resort.
const DefaultFileName = "sgc.yaml"

// Config represents the sgc configuration.
type Config struct {
	Product     string         `yaml:"product" json:"product"`
	DeviceModel string         `yaml:"device_model,omitempty" json:"device_model,omitempty"`
	MinFirmware string         `yaml:"min_firmware,omitempty" json:"min_firmware,omitempty"`
	SecretFile  string         `yaml:"secret_file,omitempty" json:"secret_file,omitempty"`
	Compression string         `yaml:"compression" json:"compression"`
	MetricsFile string         `yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
	AuditLog    string         `yaml:"audit_log,omitempty" json:"audit_log,omitempty"`
	Logging     LoggingConfig  `yaml:"logging" json:"logging"`
	Publish     PublishConfig  `yaml:"publish" json:"publish"`
	Webhooks    webhook.Config `yaml:"webhooks" json:"webhooks"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// PublishConfig configures the object store targeted by ota-publish.
type PublishConfig struct {
	Bucket         string `yaml:"bucket,omitempty" json:"bucket,omitempty"`
	Prefix         string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Endpoint       string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Region         string `yaml:"region" json:"region"`
	ForcePathStyle bool   `yaml:"force_path_style" json:"force_path_style"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Product:     "smart-guitar",
		Compression: "default",
		Logging: LoggingConfig{
			Level: "warn",
		},
		Publish: PublishConfig{
			Region:         "us-east-1",
			ForcePathStyle: true,
		},
		Webhooks: webhook.DefaultConfig(),
	}
}

// ResolvePath picks the config file to read: explicit path, then
// $SGC_CONFIG, then ./sgc.yaml. It returns "" when none applies.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return DefaultFileName
	}
	return ""
}

// Load reads configuration from path. An empty path or a missing file
// yields the defaults; an explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Compression {
	case "none", "fast", "default", "max":
	default:
		return fmt.Errorf("config: compression must be one of none, fast, default, max (got %q)", c.Compression)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	if c.Product == "" {
		return errors.New("config: product must not be empty")
	}
	if err := c.Webhooks.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Save writes configuration to path.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
