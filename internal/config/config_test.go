package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 7700, cfg.Node.Port)
	assert.Equal(t, "./data/index", cfg.Index.Path)
	assert.False(t, cfg.Cluster.Enabled)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yamlContent := `
node:
  shard_id: 3
  port: 8800
index:
  path: /var/lib/stract/shard-3
search:
  max_results: 50
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "searcher.yaml"), []byte(yamlContent), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Node.ShardID)
	assert.Equal(t, 8800, cfg.Node.Port)
	assert.Equal(t, "/var/lib/stract/shard-3", cfg.Index.Path)
	assert.Equal(t, 50, cfg.Search.MaxResults)
	// Defaults survive for fields not set in the file.
	assert.Equal(t, 275, cfg.Search.SnippetLength)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Node.Port, cfg.Node.Port)
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "searcher.yaml"), []byte("node:\n  port: 8800\n"), 0o644))

	t.Setenv("STRACT_PORT", "9900")
	t.Setenv("STRACT_SHARD_ID", "7")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9900, cfg.Node.Port)
	assert.Equal(t, 7, cfg.Node.ShardID)
}

func TestEnvSeedsEnableCluster(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STRACT_SEEDS", "10.0.0.1:7946,10.0.0.2:7946")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Cluster.Enabled)
	assert.Equal(t, []string{"10.0.0.1:7946", "10.0.0.2:7946"}, cfg.Cluster.Seeds)
}

func TestEnvAdmissionLimitOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STRACT_ADMISSION_LIMIT", "32")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Node.AdmissionLimit)
}

func TestEnvMaxConcurrentSearchesOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STRACT_MAX_CONCURRENT_SEARCHES", "64")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Node.AdmissionLimit)
}

func TestEnvMetricsPortOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STRACT_METRICS_PORT", "9999")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.MetricsPort)
}

func TestValidateRejectsBadMetricsPort(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.MetricsPort = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := NewConfig()
	cfg.Node.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyIndexPath(t *testing.T) {
	cfg := NewConfig()
	cfg.Index.Path = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsClusterWithoutSeeds(t *testing.T) {
	cfg := NewConfig()
	cfg.Cluster.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadTimeout(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.RequestTimeout = "not-a-duration"
	assert.Error(t, cfg.Validate())
}

func TestWriteYAMLRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")
	cfg := NewConfig()
	cfg.Node.ShardID = 5

	require.NoError(t, cfg.WriteYAML(path))

	loaded := NewConfig()
	require.NoError(t, loaded.loadYAML(path))
	assert.Equal(t, 5, loaded.Node.ShardID)
}

func TestGetUserConfigPathRespectsXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdgtest")
	assert.Equal(t, "/tmp/xdgtest/stract/searcher.yaml", GetUserConfigPath())
}
