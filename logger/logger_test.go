package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw        string
		production bool
		want       zerolog.Level
	}{
		{"", false, zerolog.DebugLevel},
		{"", true, zerolog.InfoLevel},
		{"warn", false, zerolog.WarnLevel},
		{"ERROR", true, zerolog.ErrorLevel},
		{"loud", false, zerolog.InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.raw, tt.production), "raw=%q production=%v", tt.raw, tt.production)
	}
}

func TestJSONLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "json").
		WithField("component", "steam").
		WithFields(Fields{"account": "76561197960287930"})

	l.Warn().Int("status", 429).Msg("rate limited")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "steam", line["component"])
	assert.Equal(t, "76561197960287930", line["account"])
	assert.Equal(t, float64(429), line["status"])
	assert.Equal(t, "rate limited", line["message"])
}

func TestConsoleLoggerIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "").Info().Msg("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestFormatName(t *testing.T) {
	assert.Equal(t, "json", formatName("JSON"))
	assert.Equal(t, "console", formatName(""))
	assert.Equal(t, "console", formatName("pretty"))
}
