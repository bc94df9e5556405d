package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("gate").
		With("template", "usage-table").
		Error(context.Background(), errors.New("boom"), "admission failed", "findings", 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "admission failed", entry["msg"])
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "gate", entry["component"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "usage-table", entry["template"])
	assert.Equal(t, float64(2), entry["findings"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden debug")
	logger.Info(context.Background(), "hidden info")
	logger.Warn(context.Background(), nil, "visible warning")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warning")
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "normal log message", SanitizeForLog("normal log message"))
	assert.Equal(t, "line one line two", SanitizeForLog("line one\nline two"))

	long := strings.Repeat("a", 500)
	sanitized := SanitizeForLog(long)
	assert.True(t, strings.HasSuffix(sanitized, "...[TRUNCATED]"))
	assert.Len(t, sanitized, 200+len("...[TRUNCATED]"))
}

func TestLogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	LogSecurityEvent(logger, context.Background(), "template_rejected", map[string]interface{}{
		"template": "evil\ntemplate",
		"findings": 3,
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "security", entry["event_type"])
	assert.Equal(t, "template_rejected", entry["event"])
	assert.Equal(t, "evil template", entry["template"])
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	assert.NotPanics(t, func() {
		logger.With("k", "v").WithComponent("x").Error(context.Background(), errors.New("e"), "msg")
	})
}
