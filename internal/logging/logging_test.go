package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/logging"
)

func TestSetupWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "photoidx.log")

	cfg := logging.Config{
		Level:         "debug",
		FilePath:      logPath,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	logger, cleanup, err := logging.Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("indexing started", "root", "/photos")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "indexing started")
	assert.Contains(t, string(data), `"root":"/photos"`)
}

func TestDefaultConfigPointsAtDefaultLogPath(t *testing.T) {
	cfg := logging.DefaultConfig()
	assert.Equal(t, logging.DefaultLogPath(), cfg.FilePath)
	assert.Equal(t, "info", cfg.Level)
}

func TestFindLogFileMissing(t *testing.T) {
	_, err := logging.FindLogFile(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}

func TestParseLogSource(t *testing.T) {
	assert.Equal(t, logging.LogSourceCLI, logging.ParseLogSource("cli"))
	assert.Equal(t, logging.LogSourceMCP, logging.ParseLogSource("mcp"))
	assert.Equal(t, logging.LogSourceAll, logging.ParseLogSource("all"))
	assert.Equal(t, logging.LogSourceCLI, logging.ParseLogSource("unknown"))
}

func TestFindLogFileBySourceExplicitPathOverridesSource(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.log")
	require.NoError(t, os.WriteFile(explicit, []byte("{}"), 0o644))

	paths, err := logging.FindLogFileBySource(logging.LogSourceAll, explicit)
	require.NoError(t, err)
	assert.Equal(t, []string{explicit}, paths)
}

func TestFindLogFileBySourceExplicitMissingPathErrors(t *testing.T) {
	_, err := logging.FindLogFileBySource(logging.LogSourceAll, filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}
