package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogDir(t *testing.T) {
	dir := DefaultLogDir()
	assert.True(t, strings.HasSuffix(dir, filepath.Join(".stract", "logs")))
}

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	assert.True(t, strings.HasSuffix(path, "searcher.log"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.True(t, cfg.WriteToStderr)
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, "debug", cfg.Level)
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:         "debug",
		FilePath:      filepath.Join(dir, "searcher.log"),
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	defer cleanup()

	logger.Info("hello", slog.String("shard", "0"))

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "shard")
}

func TestLevelFromString(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, LevelFromString(in), in)
	}
}

func TestFindLogFile_NotFound(t *testing.T) {
	_, err := FindLogFile(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}

func TestFindLogFile_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searcher.log")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	found, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestEnsureLogDir(t *testing.T) {
	err := EnsureLogDir()
	require.NoError(t, err)

	info, err := os.Stat(DefaultLogDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRotatingWriter_ImmediateSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searcher.log")

	w, err := NewRotatingWriter(path, 10, 3)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("line one\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\n", string(data))
}

func TestRotatingWriter_DisableImmediateSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searcher.log")

	w, err := NewRotatingWriter(path, 10, 3)
	require.NoError(t, err)
	defer w.Close()

	w.SetImmediateSync(false)
	_, err = w.Write([]byte("buffered\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "buffered\n", string(data))
}

func TestRotatingWriter_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searcher.log")

	w, err := NewRotatingWriter(path, 0, 2) // maxSizeMB=0 forces rotation on any write
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "searcher.log")

	w, err := NewRotatingWriter(path, 0, 1)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		_, err = w.Write([]byte("entry\n"))
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 1)
}

func TestRotatingWriter_CloseSuccess(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "searcher.log"), 10, 3)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
}

func TestRotatingWriter_SyncSuccess(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "searcher.log"), 10, 3)
	require.NoError(t, err)
	defer w.Close()
	assert.NoError(t, w.Sync())
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRotatingWriter(filepath.Join(dir, "searcher.log"), 10, 3)
	require.NoError(t, err)
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = w.Write([]byte("concurrent\n"))
		}()
	}
	wg.Wait()
}
