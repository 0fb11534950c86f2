package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestJSONBatchOperation(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", FormatJSON, false).WithComponent("engine")

	log.BatchOperation("add", 3, 2, 1, 12)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Batch operation completed", record["msg"])
	assert.Equal(t, "engine", record["component"])
	assert.Equal(t, "add", record["action"])
	assert.Equal(t, float64(1), record["failed"])
}

func TestSilentDropsInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", FormatText, true)

	log.Info("hidden")
	log.ForwardingChange("interface", 5, true, false)
	assert.Empty(t, buf.String())

	log.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestPerformanceAtDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", FormatJSON, false)

	log.Performance("route calls", map[string]interface{}{"total": 4, "failed": 1})

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "performance metrics", record["msg"])
	assert.Equal(t, "route calls", record["operation"])
	assert.Equal(t, float64(4), record["total"])
	assert.Equal(t, float64(1), record["failed"])
}
