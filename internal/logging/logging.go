package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a process-wide slog logger writing to stderr, in either
// "text" or "json" form. verbose raises the floor from info to debug;
// every router/handler/policy log call in the process goes through
// whichever handler this installs.
func Setup(format string, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(newHandler(format, os.Stderr, level)))
}

func newHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
