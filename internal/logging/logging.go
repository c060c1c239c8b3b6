// Package logging configures the process-wide slog logger.
package logging

import (
	"log/slog"
	"os"
)

// Init sets the default logger, reading the level from LOG_LEVEL. Accepted
// values are slog's level names (debug, info, warn, error, with optional
// offsets like warn+2); anything else keeps the default. The server and the
// client both stay quiet below warn unless asked.
func Init() {
	level := slog.LevelWarn
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(v)); err == nil {
			level = parsed
		}
	}

	slog.SetDefault(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	))
}
