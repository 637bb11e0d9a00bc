package infra

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger builds the process-wide slog logger. Output is mirrored to
// stdout and a log file so a crashed session still leaves a trace on disk.
func SetupLogger(logLevel, logFormat, logFile string) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stdout
	if f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		w = io.MultiWriter(os.Stdout, f)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToUpper(logFormat) == "JSON" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
