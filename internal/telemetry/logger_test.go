package telemetry

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithBindsFieldsToChildLogger(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, zerolog.InfoLevel)
	child := root.With("component", "orderbook").With("symbol", "BTCUSDT")

	child.Info().Msg("book ready")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "orderbook", decoded["component"])
	assert.Equal(t, "BTCUSDT", decoded["symbol"])
	assert.Equal(t, "book ready", decoded["message"])
}

func TestLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, zerolog.WarnLevel)

	root.Info().Msg("should be dropped")
	assert.Equal(t, 0, buf.Len())

	root.Warn().Msg("should appear")
	assert.Greater(t, buf.Len(), 0)
}
