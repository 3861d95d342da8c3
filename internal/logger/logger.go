package logger

import (
	"io"
	"log/slog"
	"os"

	"medical-rag-platform/internal/config"
)

var Logger *slog.Logger

// InitLogger initializes structured logging based on configuration
func InitLogger(cfg *config.Config) {
	initWith(os.Stdout, cfg.GinMode)
}

func initWith(w io.Writer, mode string) {
	level := slog.LevelInfo
	if mode == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: mode == "debug",
	}

	Logger = slog.New(slog.NewJSONHandler(w, opts))
	Logger.Debug("Structured logging initialized", "level", level.String())
}

// With returns a child logger carrying the given attributes, or a discard
// logger when logging has not been initialized.
func With(args ...any) *slog.Logger {
	if Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return Logger.With(args...)
}

// Helper functions for common log operations
func Info(msg string, args ...any) {
	if Logger != nil {
		Logger.Info(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if Logger != nil {
		Logger.Error(msg, args...)
	}
}

func Debug(msg string, args ...any) {
	if Logger != nil {
		Logger.Debug(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if Logger != nil {
		Logger.Warn(msg, args...)
	}
}
