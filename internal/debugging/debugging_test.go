package debugging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.txt")

	logger, closer, err := Enable(path)
	require.NoError(t, err)

	require.NoError(t, level.Debug(logger).Log("msg", "rva to file offset", "rva", "0x1200"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=debug")
	assert.Contains(t, string(data), `msg="rva to file offset" rva=0x1200`)
	assert.Contains(t, string(data), "ts=")
}

func TestEnableUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "debug.txt")

	logger, closer, err := Enable(path)
	require.Error(t, err)
	require.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}

func TestFilterLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, level.AllowInfo())

	require.NoError(t, level.Debug(logger).Log("msg", "hidden"))
	require.NoError(t, level.Info(logger).Log("msg", "shown"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
