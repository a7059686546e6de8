package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/marmos91/waverider/pkg/archive"
)

func TestCreateStore_BadgerInMemory(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true},
	}

	store, err := CreateStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create badger store: %v", err)
	}
	defer func() { _ = store.Close() }()
}

func TestCreateStore_BadgerOnDisk(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type: "badger",
		Badger: map[string]any{
			"db_path":             t.TempDir(),
			"block_cache_size_mb": "16",
		},
	}

	store, err := CreateStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create badger store: %v", err)
	}
	defer func() { _ = store.Close() }()
}

func TestCreateStore_BadgerMissingPath(t *testing.T) {
	_, err := CreateStore(context.Background(), &StoreConfig{Type: "badger", Badger: map[string]any{}})
	if err == nil {
		t.Fatal("Expected error for missing db_path")
	}
	if !strings.Contains(err.Error(), "db_path is required") {
		t.Errorf("Expected 'db_path is required' error, got: %v", err)
	}
}

func TestCreateStore_UnknownType(t *testing.T) {
	_, err := CreateStore(context.Background(), &StoreConfig{Type: "unknown"})
	if err == nil {
		t.Fatal("Expected error for unknown store type")
	}
	if !strings.Contains(err.Error(), "unknown store type") {
		t.Errorf("Expected 'unknown store type' error, got: %v", err)
	}
}

func TestCreateCollector(t *testing.T) {
	ctx := context.Background()
	cfg := &StoreConfig{
		Type:       "badger",
		Badger:     map[string]any{"db_path": t.TempDir()},
		GCInterval: DefaultGCInterval,
	}

	store, err := CreateStore(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	collector := CreateCollector(cfg, store)
	if collector == nil {
		t.Fatal("Expected a collector for the badger store")
	}
	if _, err := collector.RunNow(ctx); err != nil {
		t.Errorf("RunNow failed: %v", err)
	}

	cfg.GCInterval = 0
	if CreateCollector(cfg, store) != nil {
		t.Error("Expected no collector when gc_interval is 0")
	}
}

func TestCreateArchiver_Disabled(t *testing.T) {
	a, err := CreateArchiver(context.Background(), &ArchiveConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if a != nil {
		t.Error("Expected nil archiver when disabled")
	}
}

func TestCreateArchiver_Memory(t *testing.T) {
	a, err := CreateArchiver(context.Background(), &ArchiveConfig{Enabled: true, Type: "memory"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := a.(*archive.MemoryArchiver); !ok {
		t.Errorf("Expected *archive.MemoryArchiver, got %T", a)
	}
}

func TestCreateArchiver_S3Validation(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		wantErr string
	}{
		{"missing bucket", map[string]any{"region": "us-east-1"}, "bucket is required"},
		{"missing region", map[string]any{"bucket": "b"}, "region is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CreateArchiver(context.Background(), &ArchiveConfig{Enabled: true, Type: "s3", S3: tt.options})
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected %q error, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateArchiver_UnknownType(t *testing.T) {
	_, err := CreateArchiver(context.Background(), &ArchiveConfig{Enabled: true, Type: "tape"})
	if err == nil {
		t.Fatal("Expected error for unknown archive type")
	}
}

func TestCreateManager(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Content.Revisions = 2

	store, err := CreateStore(ctx, &StoreConfig{Type: "badger", Badger: map[string]any{"in_memory": true}})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	m, err := CreateManager(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer func() { _ = m.Close() }()

	if got := m.Settings().Revisions; got != 2 {
		t.Errorf("Expected revisions 2, got %d", got)
	}

	for range 3 {
		if _, err := m.Set(ctx, "example.com:/", []byte("x"), "text/plain", nil); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	ids, err := m.GetAllVersions(ctx, "example.com:/")
	if err != nil {
		t.Fatalf("GetAllVersions failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 retained revisions, got %v", ids)
	}
}

func TestCreateServer(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Server.Port = 2345

	store, err := CreateStore(ctx, &StoreConfig{Type: "badger", Badger: map[string]any{"in_memory": true}})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	m, err := CreateManager(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer func() { _ = m.Close() }()

	srv := CreateServer(cfg, m, nil)
	if srv.Port() != 2345 {
		t.Errorf("Expected port 2345, got %d", srv.Port())
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/_metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected /_metrics to be unmounted without a scrape handler, got %d", rec.Code)
	}
}

func TestCreateServer_SharedMetricsPort(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()

	store, err := CreateStore(ctx, &StoreConfig{Type: "badger", Badger: map[string]any{"in_memory": true}})
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer func() { _ = store.Close() }()

	m, err := CreateManager(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	defer func() { _ = m.Close() }()

	scrape := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# scrape\n"))
	})
	srv := CreateServer(cfg, m, &MetricsResult{ScrapeHandler: scrape})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/_metrics", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "# scrape\n" {
		t.Errorf("Expected scrape handler at /_metrics, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestInitializeMetrics_Disabled(t *testing.T) {
	cfg := GetDefaultConfig()

	res := InitializeMetrics(cfg)
	if res.Server != nil {
		t.Error("Expected nil server when metrics are disabled")
	}
	if res.ContentMetrics != nil {
		t.Error("Expected nil content metrics when disabled")
	}
	if res.HTTPMetrics == nil {
		t.Error("Expected no-op HTTP metrics, got nil")
	}
}
