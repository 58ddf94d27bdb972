package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLoggerWithWritersFansOut(t *testing.T) {
	var text, js bytes.Buffer
	log := SetupLoggerWithWriters(&text, &js, slog.LevelInfo)

	log.Debug("hidden")
	log.Info("batch created", "batch", "b-1", "password", "hunter2",
		"error", errors.New("POST https://u:p@host/x failed"))

	assert.NotContains(t, text.String(), "hidden")
	assert.Contains(t, text.String(), "batch created")
	assert.NotContains(t, text.String(), "hunter2")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &rec))
	assert.Equal(t, "b-1", rec["batch"])
	assert.Equal(t, "***", rec["password"])
	assert.Equal(t, "POST https://*:*@host/x failed", rec["error"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{" warn ", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetupLoggerWithoutFile(t *testing.T) {
	log, cleanup := SetupLogger("", slog.LevelWarn)
	require.NotNil(t, log)
	assert.NoError(t, cleanup())
	assert.False(t, log.Enabled(t.Context(), slog.LevelInfo))
}
