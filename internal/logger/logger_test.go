package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("WARN", "text", "stdout"))
	SetOutput(&buf)
	defer func() { require.NoError(t, Configure("INFO", "text", "stdout")) }()

	Info("hidden %d", 1)
	Warn("shown %d", 2)

	assert.NotContains(t, buf.String(), "hidden 1")
	assert.Contains(t, buf.String(), "shown 2")
	assert.Equal(t, LevelWarn, GetLevel())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Configure("DEBUG", "json", "stdout"))
	SetOutput(&buf)
	defer func() { require.NoError(t, Configure("INFO", "text", "stdout")) }()

	Debug("prune %s", "example.com:/a")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "prune example.com:/a", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waverider.log")
	require.NoError(t, Configure("INFO", "text", path))
	defer func() { require.NoError(t, Configure("INFO", "text", "stdout")) }()

	Error("disk %s", "full")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk full")
}

func TestConfigure_UnknownFormat(t *testing.T) {
	assert.Error(t, Configure("INFO", "xml", "stdout"))
}
