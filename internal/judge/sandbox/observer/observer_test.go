package observer

import (
	"context"
	"testing"

	"codejudge/internal/judge/sandbox/result"
)

func TestTraceFuncForwardsLines(t *testing.T) {
	var got []string
	obs := TraceFunc(func(_ context.Context, line string) {
		got = append(got, line)
	})
	obs.OnLine(context.Background(), "a")
	obs.OnLine(context.Background(), "b")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected lines: %q", got)
	}
}

func TestLoggingWithoutInitDoesNotPanic(t *testing.T) {
	var obs ExecutionObserver = Logging{}
	for _, outcome := range []result.Outcome{result.OutcomeSuccess, result.OutcomeTimeout, result.OutcomeRuntime, result.OutcomeCompile} {
		obs.ObserveExecution(context.Background(), "python", result.ExecutionResult{Outcome: outcome})
	}
	var _ TraceObserver = Noop{}
	var _ ExecutionObserver = Noop{}
}
