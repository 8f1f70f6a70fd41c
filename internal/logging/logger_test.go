package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warning "))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewJSONWithSession(t *testing.T) {
	var buf bytes.Buffer
	logger := ForSession(New("info", "json", &buf), "sess_1")
	logger.Debug("hidden")
	logger.Info("phase changed", "to", "GSL")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "phase changed", line["msg"])
	assert.Equal(t, "sess_1", line["session_id"])
	assert.Equal(t, "GSL", line["to"])
}
