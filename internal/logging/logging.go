// Package logging configures the process-wide slog.Logger every other
// package obtains via slog.Default(), grounded on pkg/logger/logger.go's
// level-parsing and handler-selection shape but trimmed to the two
// formats this server actually needs.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a level name to a slog.Level, defaulting to info
// for anything unrecognized.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init builds and installs the default logger. format "json" selects
// slog.JSONHandler (for log-aggregator consumption); anything else
// (including "") selects slog.TextHandler, matching RVC_LOG_FORMAT's
// documented values.
func Init(level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// FromEnv initializes the default logger from RVC_LOG_LEVEL and
// RVC_LOG_FORMAT, falling back to info/text.
func FromEnv() *slog.Logger {
	return Init(ParseLevel(os.Getenv("RVC_LOG_LEVEL")), os.Getenv("RVC_LOG_FORMAT"))
}
