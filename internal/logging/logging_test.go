package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/connectin-session/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json outside DEV", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.New(&buf, "PROD", "info")
		logger.Info().Str("component", "session").Msg("hello")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		require.Equal(t, "hello", line["message"])
		require.Equal(t, "session", line["component"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.New(&buf, "PROD", "warn")
		logger.Info().Msg("dropped")
		require.Empty(t, buf.String())
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.New(&buf, "PROD", "loud")
		logger.Debug().Msg("dropped")
		logger.Info().Msg("kept")
		require.Contains(t, buf.String(), "kept")
		require.NotContains(t, buf.String(), "dropped")
	})

	t.Run("console in DEV", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.New(&buf, "DEV", "info")
		logger.Info().Msg("pretty")
		require.Contains(t, buf.String(), "pretty")
		require.False(t, json.Valid(buf.Bytes()))
	})
}
