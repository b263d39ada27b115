package logging

// HumanReadableTimeFormat is the time layout the foreground console writer
// renders timestamps with; the daemonized JSON sink uses zerolog's own Unix
// time format instead (see logger.go's init).
const HumanReadableTimeFormat = "2006-01-02 15:04:05"

// Field names and messages used by the method entry/exit tracer in
// method.go, so every traced call spells its keys the same way.
const (
	FieldMethod   = "method"      // Method or function name
	FieldPhase    = "phase"       // Phase of a traced call (entry/exit)
	FieldDuration = "duration_ms" // Duration of an operation
	FieldReturn   = "return"      // Return value of a traced call

	PhaseEntry = "entry"
	PhaseExit  = "exit"

	MsgMethodCalled    = "Method called"
	MsgMethodCompleted = "Method completed"
)
