// Package logging provides standardized logging utilities for the Eden engine.
// This file defines the core logger instance and level management.
//
// This file is part of the consolidated logging package structure, which includes:
//   - logger.go (this file): Core logger implementation and level management
//   - context.go: Context-aware logging functionality
//   - method.go: Method entry/exit logging (both with and without context)
//   - error.go: Error logging functionality
//   - structured_logging.go: Structured logging convenience functions
//   - constants.go: Constants used throughout the logging package
//   - console_writer.go: Console writer functionality
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors zerolog.Level so callers never need to import zerolog directly.
type Level = zerolog.Level

const (
	TraceLevel = zerolog.TraceLevel
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// DefaultLogger is the process-wide structured logger. Every dispatched
// request builds on it via With() rather than replacing it, so a single
// sink and level apply across the mount's lifetime.
var DefaultLogger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	DefaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// SetOutput redirects where log events are written (e.g. a log file handed
// to the session by configuration, or a console writer for interactive use).
func SetOutput(w io.Writer) {
	DefaultLogger = DefaultLogger.Output(w)
}

// SetLevel adjusts the minimum level that reaches the sink.
func SetLevel(level Level) {
	DefaultLogger = DefaultLogger.Level(level)
}

// IsLevelEnabled reports whether an event at the given level would actually
// be written, letting hot paths skip building fields for a discarded event.
func IsLevelEnabled(level Level) bool {
	return level >= DefaultLogger.GetLevel()
}

// Trace starts a trace-level event on the default logger.
func Trace() *zerolog.Event { return DefaultLogger.Trace() }

// Debug starts a debug-level event on the default logger.
func Debug() *zerolog.Event { return DefaultLogger.Debug() }

// Info starts an info-level event on the default logger.
func Info() *zerolog.Event { return DefaultLogger.Info() }

// Warn starts a warn-level event on the default logger.
func Warn() *zerolog.Event { return DefaultLogger.Warn() }

// Error starts an error-level event on the default logger.
func Error() *zerolog.Event { return DefaultLogger.Error() }

// Fatal starts a fatal-level event on the default logger.
func Fatal() *zerolog.Event { return DefaultLogger.Fatal() }

// ParseLevel converts a config string ("debug", "info", ...) to a Level,
// defaulting to InfoLevel for anything unrecognized.
func ParseLevel(s string) Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return InfoLevel
	}
	return level
}
