package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		checkFunc func(t *testing.T, output string)
	}{
		{
			name: "text logger info level",
			config: Config{
				Level:  "info",
				Format: "text",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
				assert.Contains(t, output, `msg="test message"`)
			},
		},
		{
			name: "json logger debug level",
			config: Config{
				Level:  "debug",
				Format: "json",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				var logEntry map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(output), &logEntry))
				assert.Equal(t, "DEBUG", logEntry["level"])
				assert.Equal(t, "test message", logEntry["msg"])
			},
		},
		{
			name: "unknown level falls back to info",
			config: Config{
				Level:  "not-a-level",
				Format: "text",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.config, &buf)
			slog.SetDefault(logger)

			if tt.config.Level == "debug" {
				slog.Debug("test message")
			} else {
				slog.Info("test message")
			}

			tt.checkFunc(t, buf.String())
		})
	}
}

func TestNewDefaultsToStdoutWriter(t *testing.T) {
	logger := New(Config{Level: "info", Format: "text"}, nil)
	assert.NotNil(t, logger)
}
