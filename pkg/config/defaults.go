package config

import (
	"strings"
	"time"

	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/stream"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
//
// Revisions and ExpireSecs are the exception: 0 is a meaningful value for
// both, so their defaults are registered with viper in Load and set by
// GetDefaultConfig rather than here.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyStoreDefaults(&cfg.Store)
	applyContentDefaults(&cfg.Content)
	applyArchiveDefaults(&cfg.Archive)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets HTTP server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Port == 0 {
		cfg.Port = 2000
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ExpireTypesExcluded == nil {
		cfg.ExpireTypesExcluded = content.DefaultSettings().ExpireTypesExcluded
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyStoreDefaults sets backing store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.GCDiscardRatio == 0 {
		cfg.GCDiscardRatio = 0.5
	}

	_, hasPath := cfg.Badger["db_path"]
	inMemory, _ := cfg.Badger["in_memory"].(bool)
	if !hasPath && !inMemory {
		cfg.Badger["db_path"] = "/tmp/waverider-data"
	}
}

func applyContentDefaults(cfg *ContentConfig) {
	if cfg.ReadChunkSize == 0 {
		cfg.ReadChunkSize = stream.DefaultChunkSize
	}
	if cfg.MetaCacheSize == 0 {
		cfg.MetaCacheSize = 10000
	}
}

// DefaultGCInterval is how often store space is reclaimed unless configured.
const DefaultGCInterval = 10 * time.Minute

func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	settings := content.DefaultSettings()

	cfg := &Config{
		Server: ServerConfig{
			ExpireSecs:          settings.ExpireSecs,
			ExpireTypesExcluded: settings.ExpireTypesExcluded,
		},
		Store: StoreConfig{
			GCInterval: DefaultGCInterval,
		},
		Content: ContentConfig{
			Revisions:     settings.Revisions,
			ReadChunkSize: settings.ReadChunkSize,
		},
		Archive: ArchiveConfig{
			S3: map[string]any{
				"region":     "us-east-1",
				"bucket":     "waverider-archive",
				"key_prefix": "revisions/",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
