package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/waverider/pkg/content"
	"github.com/spf13/viper"
)

// Config represents the complete waverider configuration.
//
// This structure captures all configurable aspects of the server:
//   - Logging configuration
//   - HTTP boundary settings and cache expiry policy
//   - Metrics exposure
//   - Backing store selection and configuration (store-specific)
//   - Content manager tunables
//   - Optional archiving of pruned revisions
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (WAVERIDER_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each backend defines its own configuration type and constructor. The
// Config struct carries type-specific maps (e.g. store.badger, archive.s3)
// and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains HTTP boundary settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Store specifies the backing key-value store
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Content contains content manager tunables
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Archive configures where pruned revisions are copied before deletion
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains HTTP boundary settings.
type ServerConfig struct {
	// Port is the HTTP listen port
	Port int `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// ExpireSecs is the max-age advertised in Cache-Control
	ExpireSecs int `mapstructure:"expire_secs" yaml:"expire_secs" validate:"gte=0"`

	// ExpireTypesExcluded lists content types served without max-age
	ExpireTypesExcluded []string `mapstructure:"expire_types_excluded" yaml:"expire_types_excluded"`

	// WriteRateLimit caps PUT/DELETE/purge requests per second (0 = unlimited)
	WriteRateLimit uint `mapstructure:"write_rate_limit" yaml:"write_rate_limit"`

	// WriteBurst is the number of writes allowed at once (0 = WriteRateLimit)
	WriteBurst uint `mapstructure:"write_burst" yaml:"write_burst"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the /metrics server
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the metrics HTTP listen port. When it equals server.port
	// the content server serves the scrape endpoint at /_metrics instead.
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// StoreConfig specifies the backing store.
//
// The Type field determines which implementation is used.
type StoreConfig struct {
	// Type specifies which store implementation to use
	// Valid values: badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// GCInterval is how often space freed by pruning is reclaimed from the
	// store. 0 disables collection.
	// Default: 10m
	GCInterval time.Duration `mapstructure:"gc_interval" yaml:"gc_interval" validate:"gte=0"`

	// GCDiscardRatio is the dead share a badger value log file needs before
	// it is rewritten.
	// Default: 0.5
	GCDiscardRatio float64 `mapstructure:"gc_discard_ratio" yaml:"gc_discard_ratio" validate:"gte=0,lt=1"`
}

// ContentConfig contains content manager tunables.
type ContentConfig struct {
	// Revisions is the number of revisions kept per key (0 keeps all)
	Revisions int `mapstructure:"revisions" yaml:"revisions" validate:"gte=0"`

	// ReadChunkSize is the range size used when streaming data out
	ReadChunkSize int64 `mapstructure:"read_chunk_size" yaml:"read_chunk_size" validate:"gt=0"`

	// MetaCacheSize is the number of meta records kept in memory (0 disables)
	MetaCacheSize int64 `mapstructure:"meta_cache_size" yaml:"meta_cache_size" validate:"gte=0"`
}

// ArchiveConfig configures archiving of pruned revisions.
type ArchiveConfig struct {
	// Enabled turns archiving on. When off, pruned revisions are dropped.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Type specifies the archive backend
	// Valid values: memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=memory s3"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (WAVERIDER_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: WAVERIDER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("WAVERIDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 0 is meaningful for these, so ApplyDefaults cannot fill them in
	defaults := content.DefaultSettings()
	v.SetDefault("content.revisions", defaults.Revisions)
	v.SetDefault("server.expire_secs", defaults.ExpireSecs)
	v.SetDefault("store.gc_interval", DefaultGCInterval)

	// AutomaticEnv only applies to keys viper already knows about, so
	// register the scalar keys that are commonly overridden.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/waverider/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.port",
	"server.shutdown_timeout",
	"server.expire_secs",
	"server.write_rate_limit",
	"metrics.enabled",
	"metrics.port",
	"store.type",
	"store.badger.db_path",
	"store.gc_interval",
	"content.revisions",
	"content.read_chunk_size",
	"content.meta_cache_size",
	"archive.enabled",
	"archive.type",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		// An explicit path that does not exist falls back to defaults too
		if configPath != "" && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "waverider")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "waverider")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
