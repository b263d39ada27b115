package logging

import (
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// callerMethodName walks one frame above LogMethodCall's caller to recover a
// short "pkg.Func" name for the entry/exit pair, so call sites don't have to
// repeat their own name as a string literal.
func callerMethodName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// LogMethodCall logs method entry at trace level and returns the method name
// and start time, to be passed to LogMethodReturn via defer.
func LogMethodCall() (string, time.Time) {
	name := callerMethodName(3)
	start := time.Now()
	if IsLevelEnabled(TraceLevel) {
		DefaultLogger.Trace().
			Str(FieldMethod, name).
			Str(FieldPhase, PhaseEntry).
			Msg(MsgMethodCalled)
	}
	return name, start
}

// LogMethodReturn logs method exit at trace level with elapsed duration and
// the returned value.
func LogMethodReturn(name string, start time.Time, result interface{}) {
	if !IsLevelEnabled(TraceLevel) {
		return
	}
	DefaultLogger.Trace().
		Str(FieldMethod, name).
		Str(FieldPhase, PhaseExit).
		Dur(FieldDuration, time.Since(start)).
		Interface(FieldReturn, result).
		Msg(MsgMethodCompleted)
}

// LogMethodCallWithContext is the context-aware counterpart of LogMethodCall:
// it logs through a logger carrying ctx's fields and hands that logger back
// so the caller doesn't have to rebuild it for the matching return log.
func LogMethodCallWithContext(name string, ctx LogContext) (string, time.Time, zerolog.Logger, LogContext) {
	start := time.Now()
	logger := ctx.Logger()
	if IsLevelEnabled(TraceLevel) {
		logger.Trace().
			Str(FieldMethod, name).
			Str(FieldPhase, PhaseEntry).
			Msg(MsgMethodCalled)
	}
	return name, start, logger, ctx
}

// LogMethodReturnWithContext logs method exit using the logger produced by
// LogMethodCallWithContext.
func LogMethodReturnWithContext(name string, start time.Time, logger zerolog.Logger, _ LogContext, result interface{}) {
	if !IsLevelEnabled(TraceLevel) {
		return
	}
	logger.Trace().
		Str(FieldMethod, name).
		Str(FieldPhase, PhaseExit).
		Dur(FieldDuration, time.Since(start)).
		Interface(FieldReturn, result).
		Msg(MsgMethodCompleted)
}
