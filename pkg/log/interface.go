// Package log provides structured logging for diamondprep.
//
// Packages log through the small Logger interface below. The default
// implementation forwards to log/slog (see SetupLogger); tests swap in a
// TestLogger that captures JSON lines in memory. Structured warnings raised
// through pkg/errors are routed to zerolog by InstallWarningSink.
//
// Example usage:
//
//	logger := log.GetLogger().With(log.ComponentKey, "diamonds")
//	logger.Info("Downloaded source",
//	    log.SourceURLKey, url,
//	    log.SamplesKey, rows,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. Error treats a leading error value
// specially so that its stack trace reaches the handler.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error it
	// is attached under ErrAttrKey.
	//
	// Example:
	//   logger.Error("Preparation failed", err, log.ArtifactKey, key)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}
