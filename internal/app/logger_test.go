package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerHonoursFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "staging", LogFormat: "json", LogLevel: "warn"})

	logger.Info("dropped")
	require.Zero(t, buf.Len())

	logger.Warn("kept")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "exhibitpos", entry["service"])
	require.Equal(t, "staging", entry["env"])
}

func TestTruthyFlag(t *testing.T) {
	for _, raw := range []string{"1", "true", " YES ", "on"} {
		require.True(t, truthy(raw), raw)
	}
	require.False(t, truthy("0"))
	require.False(t, truthy(""))
}
