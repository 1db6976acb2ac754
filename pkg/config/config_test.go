package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":6380", cfg.Server.ListenAddress)
	assert.Equal(t, 1000, cfg.Storage.IndexBatchSize)
	assert.Equal(t, "flush-resize", cfg.Storage.MatrixSyncPolicy)
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "falkordb.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen_address: ":7000"
query:
  timeout: 5s
storage:
  index_batch_size: 50
`), 0o644))

	t.Setenv("FALKORDB_LISTEN_ADDRESS", ":7001")
	t.Setenv("FALKORDB_INDEX_BATCH_SIZE", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.ListenAddress, "env overrides file")
	assert.Equal(t, 5*time.Second, cfg.Query.Timeout, "file overrides default")
	assert.Equal(t, 50, cfg.Storage.IndexBatchSize)
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cfg := Default()
	cfg.Storage.MatrixSyncPolicy = "eager"
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/falkordb.yml")
	assert.Error(t, err)
}
