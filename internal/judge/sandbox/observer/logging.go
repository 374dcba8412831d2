package observer

import (
	"context"

	"codejudge/internal/judge/sandbox/result"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Logging writes one structured line per sandbox invocation.
type Logging struct{}

// ObserveExecution logs the outcome at info level, runtime failures and timeouts at warn.
func (Logging) ObserveExecution(ctx context.Context, languageID string, res result.ExecutionResult) {
	fields := []zap.Field{
		zap.String("language", languageID),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("exit_code", res.ExitCode),
		zap.Int64("wall_time_ms", res.WallTimeMs),
		zap.Int("stdout_bytes", len(res.Stdout)),
	}
	switch res.Outcome {
	case result.OutcomeTimeout, result.OutcomeRuntime:
		logger.Warn(ctx, "sandbox execution failed", fields...)
	default:
		logger.Info(ctx, "sandbox execution finished", fields...)
	}
}
