package logging

import "github.com/rs/zerolog"

// LogContext carries the per-request fields that should be attached to every
// log line emitted while handling one kernel request: the opcode name, the
// inode involved, and the request id assigned by the channel. It is built
// once per dispatch and threaded through explicitly rather than stashed in
// a goroutine-local slot (see reqctx.Context in internal/reqctx).
type LogContext struct {
	fields map[string]interface{}
}

// NewLogContext creates an empty context ready to accumulate fields.
func NewLogContext() LogContext {
	return LogContext{fields: make(map[string]interface{})}
}

// With returns a copy of the context with an additional field set.
func (c LogContext) With(key string, value interface{}) LogContext {
	next := make(map[string]interface{}, len(c.fields)+1)
	for k, v := range c.fields {
		next[k] = v
	}
	next[key] = value
	return LogContext{fields: next}
}

// Logger materializes a zerolog.Logger carrying every field accumulated so far.
func (c LogContext) Logger() zerolog.Logger {
	return WithLogContext(c)
}

// WithLogContext builds a logger derived from DefaultLogger carrying ctx's fields.
func WithLogContext(ctx LogContext) zerolog.Logger {
	logCtx := DefaultLogger.With()
	for k, v := range ctx.fields {
		logCtx = logCtx.Interface(k, v)
	}
	return logCtx.Logger()
}
