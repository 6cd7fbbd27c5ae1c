// Package config loads cachesyncd's configuration from flags, a config
// file and environment variables, grounded on the teacher's
// internal/config (Cobra flag binding + Viper layered sources +
// mapstructure unmarshal, CACHESYNC_ env prefix in place of the teacher's
// MAXIOFS_ prefix).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for cachesyncd.
type Config struct {
	Listen   string `mapstructure:"listen"`
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`

	// Remote is where the Network Gateway points.
	Remote RemoteConfig `mapstructure:"remote"`

	// Sync names the reserved namespace/collection the Sync Ledger lives
	// under (§6 "Configurable namespaces": "appdata"/"sync" are
	// configuration, not hard-coded).
	Sync SyncConfig `mapstructure:"sync"`

	Metrics MetricsConfig `mapstructure:"metrics"`
}

// RemoteConfig configures the Network Gateway.
type RemoteConfig struct {
	Backend string `mapstructure:"backend"` // "http" or "s3"
	AppKey  string `mapstructure:"app_key"`

	// http backend
	BaseURL string `mapstructure:"base_url"`

	// s3 backend
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`

	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
	UseDeltaFetch  bool `mapstructure:"use_delta_fetch"`
}

// Timeout returns the configured remote timeout as a time.Duration.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SyncConfig names the reserved entity-namespace and ledger-collection
// path segments, plus the push fan-out bound.
type SyncConfig struct {
	Namespace      string `mapstructure:"namespace"`
	LedgerCollection string `mapstructure:"ledger_collection"`
	FanOut         int    `mapstructure:"fan_out"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Listen string `mapstructure:"listen"`
	Path   string `mapstructure:"path"`
}

// Load loads configuration from flags, CACHESYNC_-prefixed environment
// variables, an optional config file and defaults, in that precedence
// order (a flag counts only when it was set explicitly).
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CACHESYNC")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8090")
	v.SetDefault("log_level", "info")

	v.SetDefault("remote.backend", "http")
	v.SetDefault("remote.timeout_seconds", 30)
	v.SetDefault("remote.use_delta_fetch", true)
	v.SetDefault("remote.use_path_style", true)

	v.SetDefault("sync.namespace", "appdata")
	v.SetDefault("sync.ledger_collection", "sync")
	v.SetDefault("sync.fan_out", 8)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.listen", ":9100")
	v.SetDefault("metrics.path", "/metrics")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":          "listen",
		"data-dir":        "data_dir",
		"log-level":       "log_level",
		"remote-backend":  "remote.backend",
		"remote-base-url": "remote.base_url",
		"remote-app-key":  "remote.app_key",
		"remote-bucket":   "remote.bucket",
	}
	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("data_dir is required: specify via --data-dir flag, config file, or CACHESYNC_DATA_DIR environment variable")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if !filepath.IsAbs(cfg.DataDir) {
		abs, err := filepath.Abs(cfg.DataDir)
		if err == nil {
			cfg.DataDir = abs
		}
	}

	switch cfg.Remote.Backend {
	case "http":
		if cfg.Remote.BaseURL == "" {
			return fmt.Errorf("remote.base_url is required for the http remote backend")
		}
	case "s3":
		if cfg.Remote.Bucket == "" {
			return fmt.Errorf("remote.bucket is required for the s3 remote backend")
		}
	default:
		return fmt.Errorf("unknown remote.backend %q: must be \"http\" or \"s3\"", cfg.Remote.Backend)
	}

	return nil
}
