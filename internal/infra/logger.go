package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new slog.Logger writing JSON to stdout and,
// when logging.file is set, to a rotated file as well.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(logWriter(cfg.Logging.File), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Logging.Level),
	}))
}

func logWriter(file string) io.Writer {
	if file == "" {
		return os.Stdout
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		// Fallback to stdout if directory creation fails
		return os.Stdout
	}

	fileLogger := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    10, // Megabytes
		MaxBackups: 3,
		MaxAge:     28, // Days
		Compress:   true,
	}

	return io.MultiWriter(os.Stdout, fileLogger)
}

// ParseLevel maps a config string to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
