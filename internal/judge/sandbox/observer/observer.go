// Package observer defines hooks that watch a grading run as it progresses.
package observer

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
)

// TraceObserver receives every trace line in order, as soon as it is produced.
type TraceObserver interface {
	OnLine(ctx context.Context, line string)
}

// ExecutionObserver receives one event per finished sandbox invocation.
type ExecutionObserver interface {
	ObserveExecution(ctx context.Context, languageID string, res result.ExecutionResult)
}

// TraceFunc adapts a function to TraceObserver.
type TraceFunc func(ctx context.Context, line string)

// OnLine calls f.
func (f TraceFunc) OnLine(ctx context.Context, line string) {
	f(ctx, line)
}

// Noop ignores everything.
type Noop struct{}

// OnLine does nothing.
func (Noop) OnLine(context.Context, string) {}

// ObserveExecution does nothing.
func (Noop) ObserveExecution(context.Context, string, result.ExecutionResult) {}
