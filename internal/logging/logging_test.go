package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutDebugDiscards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swashark.log")
	log, closer, err := New(false, path)
	require.NoError(t, err)
	log.Info().Msg("dropped")
	require.NoError(t, closer.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNewWithDebugWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swashark.log")
	log, closer, err := New(true, path)
	require.NoError(t, err)
	log.Debug().Str("op", "GET:/pets").Msg("hello")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message":"hello"`)
	assert.Contains(t, string(b), `"op":"GET:/pets"`)
	assert.Contains(t, string(b), `"component":"swashark"`)
}

func TestNewBadPath(t *testing.T) {
	_, _, err := New(true, filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}

func TestConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	log := Console(&buf, false)
	log.Debug().Msg("quiet")
	log.Info().Msg("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")

	buf.Reset()
	verbose := Console(&buf, true)
	verbose.Debug().Msg("verbose")
	assert.Contains(t, buf.String(), "verbose")
}
