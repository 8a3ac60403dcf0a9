package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgqd.pid")
	require.NoError(t, Write(path))

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestWriteEmptyPathIsNoop(t *testing.T) {
	assert.NoError(t, Write(""))
}

func TestReadMissingFileFails(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.pid"))
	assert.Error(t, err)
}

func TestRemoveMissingFileIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		Remove(filepath.Join(t.TempDir(), "missing.pid"))
	})
}

func TestRemoveDeletesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pgqd.pid")
	require.NoError(t, Write(path))
	Remove(path)
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
