package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Options{Verbosity: 1}.level())
	assert.Equal(t, zapcore.InfoLevel, Options{Verbosity: 0}.level())
	assert.Equal(t, zapcore.ErrorLevel, Options{Verbosity: -1}.level())
}

func TestNewWritesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgqd.log")
	logger, err := New(Options{LogFile: path, Format: "json"})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestNewDefaultsToStderr(t *testing.T) {
	logger, err := New(Options{})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
