package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	env := func(v string) func(string) string {
		return func(key string) string {
			if key == DebugEnv {
				return v
			}
			return ""
		}
	}

	tests := []struct {
		name    string
		verbose bool
		env     string
		want    slog.Level
	}{
		{"default", false, "", slog.LevelInfo},
		{"verbose", true, "", slog.LevelDebug},
		{"env", false, "1", slog.LevelDebug},
		{"env false", false, "false", slog.LevelInfo},
		{"env garbage", false, "yes please", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Level(tt.verbose, env(tt.env)))
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	log := NewLogger(&buf, slog.LevelInfo)
	log.Debug("hidden")
	log.Warn("function needs manual interop", "function", "ImpellerPathBuilderAddData")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "function=ImpellerPathBuilderAddData")
	require.NotContains(t, out, "source=")

	buf.Reset()
	NewLogger(&buf, slog.LevelDebug).Debug("model built")
	require.Contains(t, buf.String(), "source=logutil_test.go:")
}
