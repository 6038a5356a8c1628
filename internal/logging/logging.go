package logging

import (
	"log/slog"
	"os"
	"time"
)

var globalLogger *slog.Logger

// Configure builds the global JSON logger. Level comes from LOG_LEVEL so the
// logger can be set up before the full config is parsed.
func Configure() {
	var level slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				// Rename the time key to timestamp and pin the format
				return slog.String(
					"timestamp",
					a.Value.Time().Format(time.RFC3339),
				)
			}
			return a
		},
		Level: level,
	})
	globalLogger = slog.New(handler).With("component", "main")
}

func GetLogger() *slog.Logger {
	if globalLogger == nil {
		Configure()
	}
	return globalLogger
}

// GetComponentLogger returns a child logger tagged with the given component.
func GetComponentLogger(name string) *slog.Logger {
	return GetLogger().With("component", name)
}
