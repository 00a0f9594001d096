package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestInitWithWriterJSON(t *testing.T) {
	prev := L
	defer func() { L = prev; slog.SetDefault(prev) }()

	var buf bytes.Buffer
	initWithWriter(&buf, "info", "json")
	L.Info("import finished", "added", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "import finished", entry["msg"])
	assert.Equal(t, float64(3), entry["added"])
	assert.NotEmpty(t, entry["time"])
}

func TestInitWithWriterTextRespectsLevel(t *testing.T) {
	prev := L
	defer func() { L = prev; slog.SetDefault(prev) }()

	var buf bytes.Buffer
	initWithWriter(&buf, "warn", "text")
	L.Info("hidden")
	L.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
}
