package infrastructure

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krxflow/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestCreateLoggerConsole(t *testing.T) {
	logger, err := createLogger(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "console",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestCreateLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	logger, err := createLogger(config.LoggingConfig{
		Level:    "debug",
		Format:   "text",
		Output:   "file",
		FilePath: path,
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	t.Cleanup(CloseLogFile)

	logger.Info("hello")
	assert.FileExists(t, path)
}
