package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 2000 {
		t.Errorf("Expected default port 2000, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.Server.ExpireTypesExcluded) != 1 {
		t.Errorf("Expected default excluded types, got %v", cfg.Server.ExpireTypesExcluded)
	}
}

func TestApplyDefaults_ExplicitEmptyExclusionsKept(t *testing.T) {
	cfg := &Config{Server: ServerConfig{ExpireTypesExcluded: []string{}}}
	ApplyDefaults(cfg)

	if len(cfg.Server.ExpireTypesExcluded) != 0 {
		t.Errorf("Expected explicit empty list to be kept, got %v", cfg.Server.ExpireTypesExcluded)
	}
}

func TestApplyDefaults_Store(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Store.Type != "badger" {
		t.Errorf("Expected default store type 'badger', got %q", cfg.Store.Type)
	}
	if cfg.Store.Badger["db_path"] != "/tmp/waverider-data" {
		t.Errorf("Expected default db_path, got %v", cfg.Store.Badger["db_path"])
	}
	if cfg.Store.GCDiscardRatio != 0.5 {
		t.Errorf("Expected default gc_discard_ratio 0.5, got %v", cfg.Store.GCDiscardRatio)
	}
}

func TestApplyDefaults_StoreInMemory(t *testing.T) {
	cfg := &Config{Store: StoreConfig{Badger: map[string]any{"in_memory": true}}}
	ApplyDefaults(cfg)

	if _, ok := cfg.Store.Badger["db_path"]; ok {
		t.Error("Expected no db_path for an in-memory store")
	}
}

func TestApplyDefaults_Content(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Content.ReadChunkSize != 65536 {
		t.Errorf("Expected default read chunk size 65536, got %d", cfg.Content.ReadChunkSize)
	}
	if cfg.Content.MetaCacheSize != 10000 {
		t.Errorf("Expected default meta cache size 10000, got %d", cfg.Content.MetaCacheSize)
	}
	if cfg.Content.Revisions != 0 {
		t.Errorf("Expected revisions left untouched, got %d", cfg.Content.Revisions)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		Server:  ServerConfig{Port: 1234, ShutdownTimeout: time.Second},
		Metrics: MetricsConfig{Port: 4321},
		Content: ContentConfig{ReadChunkSize: 1024, MetaCacheSize: 5},
		Archive: ArchiveConfig{Type: "s3"},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Logging overridden: %+v", cfg.Logging)
	}
	if cfg.Server.Port != 1234 || cfg.Server.ShutdownTimeout != time.Second {
		t.Errorf("Server overridden: %+v", cfg.Server)
	}
	if cfg.Metrics.Port != 4321 {
		t.Errorf("Metrics port overridden: %d", cfg.Metrics.Port)
	}
	if cfg.Content.ReadChunkSize != 1024 || cfg.Content.MetaCacheSize != 5 {
		t.Errorf("Content overridden: %+v", cfg.Content)
	}
	if cfg.Archive.Type != "s3" {
		t.Errorf("Archive type overridden: %q", cfg.Archive.Type)
	}
}
