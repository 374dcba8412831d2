// Package classifier maps raw process termination data to an execution outcome.
package classifier

import (
	"strings"

	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
)

const (
	DefaultCompileMarker = "error:"
	DefaultTimeoutNote   = "Time Limit Exceeded"
)

// Input is everything a classifier may look at.
type Input struct {
	Killed   bool
	ExitCode int
	Stderr   string
	Language profile.Language
}

// Decision is the classified outcome together with the stderr to report.
type Decision struct {
	Outcome result.Outcome
	Stderr  string
}

// Classifier decides the outcome of one sandbox invocation.
type Classifier interface {
	Classify(in Input) Decision
}

// MarkerClassifier recognises compile failures by a substring in stderr.
// It cannot tell a compiler diagnostic from a program that prints the marker.
type MarkerClassifier struct {
	Marker      string
	TimeoutNote string
}

// NewMarkerClassifier returns a classifier with the default marker and note.
func NewMarkerClassifier() *MarkerClassifier {
	return &MarkerClassifier{Marker: DefaultCompileMarker, TimeoutNote: DefaultTimeoutNote}
}

// Classify applies, in order: killed, non-zero exit, success.
func (c *MarkerClassifier) Classify(in Input) Decision {
	if in.Killed {
		return Decision{Outcome: result.OutcomeTimeout, Stderr: strings.TrimSpace(in.Stderr + "\n" + c.timeoutNote())}
	}
	if in.ExitCode != 0 {
		if in.Language.Compiled && strings.Contains(in.Stderr, c.marker()) {
			return Decision{Outcome: result.OutcomeCompile, Stderr: in.Stderr}
		}
		return Decision{Outcome: result.OutcomeRuntime, Stderr: in.Stderr}
	}
	return Decision{Outcome: result.OutcomeSuccess, Stderr: in.Stderr}
}

func (c *MarkerClassifier) marker() string {
	if c.Marker == "" {
		return DefaultCompileMarker
	}
	return c.Marker
}

func (c *MarkerClassifier) timeoutNote() string {
	if c.TimeoutNote == "" {
		return DefaultTimeoutNote
	}
	return c.TimeoutNote
}
