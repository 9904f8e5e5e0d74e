package cli

import (
	"log/slog"
	"os"
)

// NewLogger builds the root slog.Logger for the process, wiring Flags's
// configured level into the handler at startup, as the teacher's
// cmd/tusd/cli/log.go wires its own logger once for the process lifetime.
func NewLogger() *slog.Logger {
	var level slog.Level
	switch Flags.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
