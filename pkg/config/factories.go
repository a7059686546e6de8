package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/archive"
	archiveS3 "github.com/marmos91/waverider/pkg/archive/s3"
	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/gc"
	"github.com/marmos91/waverider/pkg/kv"
	"github.com/marmos91/waverider/pkg/kv/badger"
	"github.com/marmos91/waverider/pkg/metrics"
	"github.com/marmos91/waverider/pkg/server"
	"github.com/mitchellh/mapstructure"
)

// s3YAMLConfig represents the archive.s3 section.
type s3YAMLConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// CreateStore creates the backing store based on configuration.
//
// This factory function uses the Type field to determine which store
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the store's constructor.
//
// Supported types:
//   - "badger": Uses pkg/kv/badger (on disk, or in memory with in_memory: true)
func CreateStore(ctx context.Context, cfg *StoreConfig) (kv.Store, error) {
	switch cfg.Type {
	case "badger":
		return createBadgerStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown store type: %q (supported: badger)", cfg.Type)
	}
}

// createBadgerStore creates a BadgerDB store.
func createBadgerStore(ctx context.Context, options map[string]any) (kv.Store, error) {
	var badgerCfg badger.BadgerStoreConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &badgerCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("invalid badger config: %w", err)
	}

	if badgerCfg.DBPath == "" && !badgerCfg.InMemory {
		return nil, fmt.Errorf("badger store: db_path is required unless in_memory is set")
	}

	store, err := badger.NewBadgerStore(ctx, badgerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	return store, nil
}

// CreateCollector returns a garbage collector for store, or nil when the
// store reclaims space on its own or collection is disabled (gc_interval 0).
func CreateCollector(cfg *StoreConfig, store kv.Store) *gc.Collector {
	target, ok := store.(kv.GarbageCollector)
	if !ok || cfg.GCInterval <= 0 {
		return nil
	}
	return gc.NewCollector(target, gc.Config{
		Interval:     cfg.GCInterval,
		DiscardRatio: cfg.GCDiscardRatio,
	})
}

// CreateArchiver creates the archiver for pruned revisions.
//
// Returns:
//   - archive.Archiver: nil when archiving is disabled
//   - error: Configuration or initialization error
func CreateArchiver(ctx context.Context, cfg *ArchiveConfig) (archive.Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Type {
	case "memory":
		logger.Warn("Memory archive enabled: archived revisions are lost on restart")
		return archive.NewMemoryArchiver(), nil
	case "s3":
		return createS3Archiver(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive type: %q (supported: memory, s3)", cfg.Type)
	}
}

// createS3Archiver creates an S3-backed archiver.
func createS3Archiver(ctx context.Context, options map[string]any) (archive.Archiver, error) {
	var s3Cfg s3YAMLConfig
	if err := mapstructure.Decode(options, &s3Cfg); err != nil {
		return nil, fmt.Errorf("invalid s3 config: %w", err)
	}

	if s3Cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 archive: bucket is required")
	}
	if s3Cfg.Region == "" {
		return nil, fmt.Errorf("S3 archive: region is required")
	}

	client, err := archiveS3.NewS3ClientFromConfig(
		ctx,
		s3Cfg.Endpoint,
		s3Cfg.Region,
		s3Cfg.AccessKeyID,
		s3Cfg.SecretAccessKey,
		s3Cfg.ForcePathStyle,
		s3Cfg.MaxRetries,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	archiver, err := archiveS3.NewS3Archiver(ctx, archiveS3.S3ArchiverConfig{
		Client:    client,
		Bucket:    s3Cfg.Bucket,
		KeyPrefix: s3Cfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 archiver: %w", err)
	}

	logger.Info("S3 archive initialized: bucket=%s, region=%s, prefix=%s",
		s3Cfg.Bucket, s3Cfg.Region, s3Cfg.KeyPrefix)

	return archiver, nil
}

// ContentSettings converts the configuration into content manager tunables.
func (c *Config) ContentSettings() content.Settings {
	return content.Settings{
		Revisions:           c.Content.Revisions,
		ExpireSecs:          c.Server.ExpireSecs,
		ExpireTypesExcluded: c.Server.ExpireTypesExcluded,
		ReadChunkSize:       c.Content.ReadChunkSize,
	}
}

// CreateManager wires store, archiver and metrics into a content manager.
// The caller owns store and archiver and closes them after the manager.
func CreateManager(cfg *Config, store kv.Store, archiver archive.Archiver, contentMetrics content.Metrics) (*content.Manager, error) {
	settings := cfg.ContentSettings()

	return content.NewManager(store, content.Options{
		Settings:      &settings,
		MetaCacheSize: cfg.Content.MetaCacheSize,
		Metrics:       contentMetrics,
		Archiver:      archiver,
	})
}

// CreateServer builds the content HTTP server from the server section.
// mr may be nil; a shared-port scrape handler in it is mounted at /_metrics.
func CreateServer(cfg *Config, mgr *content.Manager, mr *MetricsResult) *server.Server {
	var (
		httpMetrics metrics.HTTPMetrics
		scrape      http.Handler
	)
	if mr != nil {
		httpMetrics = mr.HTTPMetrics
		scrape = mr.ScrapeHandler
	}

	return server.New(mgr, server.Config{
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		WriteRateLimit:  cfg.Server.WriteRateLimit,
		WriteBurst:      cfg.Server.WriteBurst,
		MetricsHandler:  scrape,
	}, httpMetrics)
}
