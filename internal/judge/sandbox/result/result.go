// Package result defines sandbox execution results and submission statuses.
package result

// Outcome is the classification of one sandbox invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "AC"
	OutcomeTimeout Outcome = "TLE"
	OutcomeRuntime Outcome = "RE"
	OutcomeCompile Outcome = "CE"
)

// Status is the submission-level verdict.
type Status string

const (
	StatusAccepted          Status = "accepted"
	StatusWrongAnswer       Status = "wrong_answer"
	StatusTimeLimitExceeded Status = "time_limit_exceeded"
	StatusRuntimeError      Status = "runtime_error"
	StatusCompilationError  Status = "compilation_error"
	StatusCustomRunComplete Status = "custom_run_complete"
	StatusError             Status = "error"
)

// StatusForOutcome maps a failing outcome to the verdict it forces.
func StatusForOutcome(o Outcome) Status {
	switch o {
	case OutcomeTimeout:
		return StatusTimeLimitExceeded
	case OutcomeCompile:
		return StatusCompilationError
	case OutcomeRuntime:
		return StatusRuntimeError
	default:
		return StatusAccepted
	}
}

// RunResult captures raw process data from the engine.
type RunResult struct {
	ExitCode        int
	Killed          bool
	WallTimeMs      int64
	Stdout          string
	Stderr          string
	StdoutTruncated bool
	StderrTruncated bool
}

// ExecutionResult is the classified output of one sandbox invocation.
type ExecutionResult struct {
	JobID      string
	Outcome    Outcome
	Stdout     string
	Stderr     string
	ExitCode   int
	WallTimeMs int64
}
