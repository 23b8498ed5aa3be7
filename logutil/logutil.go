// Package logutil builds the slog logger used by the command.
package logutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
)

// DebugEnv turns on debug logging when set to a true value.
const DebugEnv = "IMPELLER_INTEROP_DEBUG"

func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.SourceKey {
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// Level returns the level selected by the verbose flag or the value of
// DebugEnv, as looked up by getenv.
func Level(verbose bool, getenv func(string) string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if on, err := strconv.ParseBool(getenv(DebugEnv)); err == nil && on {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
