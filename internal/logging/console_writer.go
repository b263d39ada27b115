// Package logging provides standardized logging utilities for the Eden engine.
// This file defines console writer functionality.
//
// The daemon's default output is JSON, suited to the log file a background
// mount writes to. Run in the foreground for debugging instead, and a
// human-readable console writer is used so timestamps and fields are legible
// on a terminal.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewConsoleWriterWithOptions creates a new console writer with custom settings.
func NewConsoleWriterWithOptions(output io.Writer, timeFormat string) io.Writer {
	writer := zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	writer.FormatTimestamp = func(input interface{}) string {
		switch v := input.(type) {
		case time.Time:
			return v.Format(timeFormat)
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	}
	return writer
}
