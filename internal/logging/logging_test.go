package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/amancevice/epaper/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreLogger(t *testing.T) {
	t.Helper()
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })
}

func TestInitLevel(t *testing.T) {
	restoreLogger(t)

	var buf bytes.Buffer
	require.NoError(t, Init(config.Log{Level: "warn"}, &buf))

	log.Info().Msg("hidden")
	log.Warn().Str("bus", "SPI0.0").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"message":"shown"`)
	assert.Contains(t, out, `"bus":"SPI0.0"`)
	assert.Contains(t, out, `"time":`)
	assert.Contains(t, out, `"caller":`)
}

func TestInitFile(t *testing.T) {
	restoreLogger(t)

	path := filepath.Join(t.TempDir(), "logs", "epaper.log")
	require.NoError(t, Init(config.Log{Level: "debug", File: path}))

	log.Debug().Msg("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestInitBadLevel(t *testing.T) {
	restoreLogger(t)

	err := Init(config.Log{Level: "loud"})
	assert.Error(t, err)
}
