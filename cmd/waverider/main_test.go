package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/waverider/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "example.com:/index.html"

// writeTestConfig writes a config pointing at an on-disk store in a temp dir.
func writeTestConfig(t *testing.T, revisions int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
logging:
  level: ERROR
store:
  type: badger
  badger:
    db_path: %q
content:
  revisions: %d
`, filepath.Join(dir, "db"), revisions)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed stores n revisions of key directly through the backend.
func seed(t *testing.T, configPath, key string, n int) {
	t.Helper()
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	b, err := openBackend(ctx, cfg, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	for i := range n {
		_, err := b.mgr.Set(ctx, key, []byte(fmt.Sprintf("revision %d", i)), "text/plain", nil)
		require.NoError(t, err)
	}
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waverider.yaml")

	out, err := run(t, "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "init", "--path", path, "--force")
	require.NoError(t, err)
}

func TestPrepareDBCommand_Idempotent(t *testing.T) {
	configPath := writeTestConfig(t, 5)

	first, err := run(t, "--config", configPath, "prepare-db")
	require.NoError(t, err)
	assert.Contains(t, first, "DB has been prepared")

	second, err := run(t, "--config", configPath, "prepare-db")
	require.NoError(t, err)
	assert.Equal(t, first, second, "the server id must survive a second prepare")
}

func TestVersionsCommand(t *testing.T) {
	configPath := writeTestConfig(t, 0)
	seed(t, configPath, testKey, 3)

	out, err := run(t, "--config", configPath, "versions", testKey)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "3\ttext/plain\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "1\t"), lines[2])
}

func TestVersionsCommand_Meta(t *testing.T) {
	configPath := writeTestConfig(t, 0)

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	b, err := openBackend(ctx, cfg, nil)
	require.NoError(t, err)
	_, err = b.mgr.Set(ctx, testKey, []byte("hello"), "text/plain", map[string]string{"author": "jane"})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	out, err := run(t, "--config", configPath, "versions", "--meta", testKey)
	require.NoError(t, err)

	fields := strings.Split(strings.TrimSpace(out), "\t")
	require.Len(t, fields, 7)
	assert.Equal(t, "1", fields[0])
	assert.Equal(t, "Content-Encoding=gzip", fields[1], "fields are printed in name order")
	assert.Equal(t, "author=jane", fields[2])
	assert.True(t, strings.HasPrefix(fields[3], "digest="), fields[3])
	assert.True(t, strings.HasPrefix(fields[4], "len="), fields[4])
	assert.True(t, strings.HasPrefix(fields[5], "mtime="), fields[5])
	assert.Equal(t, "type=text/plain", fields[6])
}

func TestVersionsCommand_RequiresKey(t *testing.T) {
	_, err := run(t, "versions")
	require.Error(t, err)
}

func TestPurgeCommand(t *testing.T) {
	configPath := writeTestConfig(t, 0)
	seed(t, configPath, testKey, 4)

	out, err := run(t, "--config", configPath, "purge", testKey, "--keep", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 3 revision(s)")

	out, err = run(t, "--config", configPath, "versions", testKey)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestPurgeCommand_UnlimitedRetention(t *testing.T) {
	configPath := writeTestConfig(t, 0)

	_, err := run(t, "--config", configPath, "purge", testKey)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keep must be at least 1")
}

func TestLogLevelFlag_Invalid(t *testing.T) {
	configPath := writeTestConfig(t, 5)

	_, err := run(t, "--config", configPath, "--log-level", "LOUD", "prepare-db")
	require.Error(t, err)
}
