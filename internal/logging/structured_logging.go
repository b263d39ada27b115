// Package logging provides standardized logging utilities for the Eden engine.
// This file defines logging functions that carry a LogContext instead of a
// plain message, for call sites that already have per-request or per-mount
// fields (opcode, path, mount point) accumulated in a LogContext and want
// them attached to the line automatically rather than passed in by hand.
package logging

// LogErrorWithContext logs an error with the given context.
// The fields parameter can be either a variadic list of key-value pairs or a map[string]interface{}.
func LogErrorWithContext(err error, ctx LogContext, msg string, fields ...interface{}) {
	if err == nil {
		return
	}

	if !IsLevelEnabled(ErrorLevel) {
		return
	}

	logger := WithLogContext(ctx)
	event := logger.Error().Err(err)

	if len(fields) == 1 {
		if fieldsMap, ok := fields[0].(map[string]interface{}); ok {
			for key, value := range fieldsMap {
				event = event.Interface(key, value)
			}
			event.Msg(msg)
			return
		}
	}

	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, ok := fields[i].(string)
			if !ok {
				continue
			}
			event = event.Interface(key, fields[i+1])
		}
	}

	event.Msg(msg)
}

// LogInfoWithContext logs an info message with the given context.
func LogInfoWithContext(ctx LogContext, msg string) {
	if !IsLevelEnabled(InfoLevel) {
		return
	}

	ctx.Logger().Info().Msg(msg)
}
