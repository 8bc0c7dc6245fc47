// Package logger provides the process-wide structured logger: a
// log/slog JSON handler writing to stdout, initialised once and reused
// across the pipeline, archive ingestor, and CLI.
package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
	level         = slog.LevelInfo
)

// SetLevel overrides the log level used when the logger is first
// initialised; it has no effect after Init has already run. Callers set
// this from the loaded config's app.log_level before any log call.
func SetLevel(l slog.Level) {
	level = l
}

// Init initialises the default logger with a JSON handler writing to
// os.Stdout. It runs only once; later calls are no-ops.
func Init() {
	once.Do(func() {
		defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(defaultLogger)
	})
}

// Get returns the process logger, initialising it on first use.
func Get() *slog.Logger {
	Init()
	return defaultLogger
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message, attaching err under the "error" key when
// non-nil.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Error(msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a
// slog.Level, defaulting to Info for anything unrecognised.
func ParseLevel(s string) slog.Level {
	switch s {
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
