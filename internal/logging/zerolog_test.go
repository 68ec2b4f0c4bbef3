package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, ZerologLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, ZerologLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ZerologLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ZerologLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ZerologLevel("whatever"))
}

func TestNewZerolog_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := NewZerolog(&buf, "info", "")
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Str("backend", "sqlite").Msg("Session stored")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "Session stored")
	assert.Contains(t, out, "backend=sqlite")
}
