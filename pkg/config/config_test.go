package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "info"

store:
  type: "badger"
  badger:
    in_memory: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected level normalized to 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Port != 2000 {
		t.Errorf("Expected default port 2000, got %d", cfg.Server.Port)
	}
	if cfg.Content.Revisions != 5 {
		t.Errorf("Expected default revisions 5, got %d", cfg.Content.Revisions)
	}
	if cfg.Server.ExpireSecs != 3600 {
		t.Errorf("Expected default expire_secs 3600, got %d", cfg.Server.ExpireSecs)
	}
	if _, ok := cfg.Store.Badger["db_path"]; ok {
		t.Errorf("Expected no default db_path for an in-memory store, got %v", cfg.Store.Badger["db_path"])
	}
}

func TestLoad_ZeroRevisionsIsKept(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
content:
  revisions: 0
server:
  expire_secs: 0
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Content.Revisions != 0 {
		t.Errorf("Expected explicit revisions 0 (unlimited), got %d", cfg.Content.Revisions)
	}
	if cfg.Server.ExpireSecs != 0 {
		t.Errorf("Expected explicit expire_secs 0, got %d", cfg.Server.ExpireSecs)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A non-existent explicit path keeps the user's own config out of the test
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Store.Type != "badger" {
		t.Errorf("Expected default store type 'badger', got %q", cfg.Store.Type)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Archive.Enabled {
		t.Error("Expected archive disabled by default")
	}
	if cfg.Store.GCInterval != DefaultGCInterval {
		t.Errorf("Expected default gc_interval %v, got %v", DefaultGCInterval, cfg.Store.GCInterval)
	}
}

func TestLoad_GCSettings(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
store:
  gc_interval: 0s
  gc_discard_ratio: 0.7
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Store.GCInterval != 0 {
		t.Errorf("Expected explicit gc_interval 0 (disabled), got %v", cfg.Store.GCInterval)
	}
	if cfg.Store.GCDiscardRatio != 0.7 {
		t.Errorf("Expected gc_discard_ratio 0.7, got %v", cfg.Store.GCDiscardRatio)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	invalidContent := `
logging:
  level: INFO
  invalid yaml here: [
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("content:\n  revisions: -1\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for negative revisions")
	}
	if !strings.Contains(err.Error(), "Revisions") {
		t.Errorf("Expected error to name Revisions, got: %v", err)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("logging:\n  level: INFO\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("WAVERIDER_LOGGING_LEVEL", "DEBUG")
	t.Setenv("WAVERIDER_CONTENT_REVISIONS", "12")
	t.Setenv("WAVERIDER_SERVER_PORT", "9999")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected env override 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Content.Revisions != 12 {
		t.Errorf("Expected env override revisions 12, got %d", cfg.Content.Revisions)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected env override port 9999, got %d", cfg.Server.Port)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Content.Revisions != 5 {
		t.Errorf("Expected revisions 5, got %d", cfg.Content.Revisions)
	}
	if cfg.Content.ReadChunkSize != 64*1024 {
		t.Errorf("Expected read chunk size 64KiB, got %d", cfg.Content.ReadChunkSize)
	}
	if len(cfg.Server.ExpireTypesExcluded) != 1 || cfg.Server.ExpireTypesExcluded[0] != "text/html" {
		t.Errorf("Expected expire_types_excluded [text/html], got %v", cfg.Server.ExpireTypesExcluded)
	}
	if cfg.Archive.S3["bucket"] == "" {
		t.Error("Expected a sample S3 bucket in the default config")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestContentSettings(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Content.Revisions = 3
	cfg.Server.ExpireSecs = 60

	s := cfg.ContentSettings()
	if s.Revisions != 3 || s.ExpireSecs != 60 {
		t.Errorf("Unexpected settings: %+v", s)
	}
	if s.Expires("text/html") {
		t.Error("Expected text/html to be excluded from expiry")
	}
	if !s.Expires("text/plain") {
		t.Error("Expected text/plain to expire")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	expected := filepath.Join(tmpDir, "waverider", "config.yaml")
	if got := GetDefaultConfigPath(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh directory")
	}
}

func TestGetConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if got := GetConfigDir(); got != filepath.Join(tmpDir, "waverider") {
		t.Errorf("Unexpected config dir %q", got)
	}
}
