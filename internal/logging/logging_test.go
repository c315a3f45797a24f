package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, "info", "json")
	require.NoError(t, err)

	logger.Info("container packed", "bytes", 42)
	logger.Debug("hidden")

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "container packed", record["msg"])
	assert.EqualValues(t, 42, record["bytes"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, "debug", "logfmt")
	require.NoError(t, err)

	logger.Debug("observing host", "platform", "linux")
	assert.Contains(t, buf.String(), "msg=\"observing host\"")
	assert.Contains(t, buf.String(), "platform=linux")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "path", "/tmp/x")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "/tmp/x")
}

func TestNewRejectsUnknown(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nowhere")
	assert.False(t, logger.Enabled(t.Context(), 0))
}
