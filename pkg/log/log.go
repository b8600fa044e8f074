// Package log configures structured logging for the engine services.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide default logger at the given level. Unknown
// levels fall back to info. LOG_FORMAT=json switches to the JSON handler for
// log shippers; text stays the default for operators reading the stream
// directly.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelInfo
	}

	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, options)
	} else {
		handler = slog.NewTextHandler(os.Stderr, options)
	}

	slog.SetDefault(slog.New(handler))
}

// WithModule returns the default logger tagged with the component name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
