// Package sandbox runs one program against one input inside an isolated
// container and classifies how it ended.
package sandbox

import (
	"context"

	"codejudge/internal/judge/sandbox/classifier"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/internal/judge/sandbox/workspace"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	systemErrorPrefix = "System Error: "
	dockerErrorPrefix = "Docker Execution Error: "
)

// Job is one sandbox invocation request.
type Job struct {
	Language string
	Source   string
	Stdin    string
}

// Executor runs a single job. The grading harness depends on this interface.
type Executor interface {
	Execute(ctx context.Context, job Job) (result.ExecutionResult, error)
}

// Launcher composes the language table, workspace, engine and classifier.
type Launcher struct {
	table      *profile.Table
	engine     engine.Engine
	classifier classifier.Classifier
	observer   observer.ExecutionObserver
	workRoot   string
	limits     spec.ResourceLimit
	newJobID   func() string
}

// Option customizes a Launcher.
type Option func(*Launcher)

// WithObserver registers an execution observer.
func WithObserver(obs observer.ExecutionObserver) Option {
	return func(l *Launcher) {
		if obs != nil {
			l.observer = obs
		}
	}
}

// WithLimits overrides the engine limits per invocation.
func WithLimits(limits spec.ResourceLimit) Option {
	return func(l *Launcher) { l.limits = limits }
}

// WithJobIDGenerator replaces uuid based job ids.
func WithJobIDGenerator(gen func() string) Option {
	return func(l *Launcher) {
		if gen != nil {
			l.newJobID = gen
		}
	}
}

// NewLauncher creates a launcher. A nil classifier falls back to the marker heuristic.
func NewLauncher(table *profile.Table, eng engine.Engine, cls classifier.Classifier, workRoot string, opts ...Option) *Launcher {
	if cls == nil {
		cls = classifier.NewMarkerClassifier()
	}
	l := &Launcher{
		table:      table,
		engine:     eng,
		classifier: cls,
		observer:   observer.Noop{},
		workRoot:   workRoot,
		newJobID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Languages exposes the immutable language table.
func (l *Launcher) Languages() *profile.Table {
	return l.table
}

// Execute runs job to completion. Only an unknown language returns an error;
// every other failure is folded into a runtime outcome.
func (l *Launcher) Execute(ctx context.Context, job Job) (result.ExecutionResult, error) {
	lang, err := l.table.Get(job.Language)
	if err != nil {
		return result.ExecutionResult{}, err
	}

	jobID := l.newJobID()
	ctx = logger.WithJobID(ctx, jobID)

	ws, err := workspace.Create(l.workRoot, jobID)
	if err != nil {
		logger.Error(ctx, "create workspace failed", zap.Error(err))
		return l.failed(ctx, jobID, lang.ID, systemErrorPrefix+err.Error()), nil
	}
	defer ws.Cleanup(ctx)

	if err := ws.WriteFile(lang.SourceFile, job.Source); err != nil {
		logger.Error(ctx, "write source failed", zap.Error(err))
		return l.failed(ctx, jobID, lang.ID, systemErrorPrefix+err.Error()), nil
	}

	raw, err := l.engine.Run(ctx, spec.RunSpec{
		JobID:   jobID,
		HostDir: ws.Dir,
		Image:   lang.Image,
		Cmd:     lang.Command,
		Stdin:   job.Stdin,
		Limits:  l.limits,
	})
	if err != nil {
		prefix := systemErrorPrefix
		if appErr.Is(err, appErr.SandboxStartError) || appErr.Is(err, appErr.SandboxRuntimeError) {
			prefix = dockerErrorPrefix
		}
		logger.Warn(ctx, "sandbox run failed", zap.String("language", lang.ID), zap.Error(err))
		res := l.failed(ctx, jobID, lang.ID, prefix+err.Error())
		res.Stdout = raw.Stdout
		return res, nil
	}

	decision := l.classifier.Classify(classifier.Input{
		Killed:   raw.Killed,
		ExitCode: raw.ExitCode,
		Stderr:   raw.Stderr,
		Language: lang,
	})
	res := result.ExecutionResult{
		JobID:      jobID,
		Outcome:    decision.Outcome,
		Stdout:     raw.Stdout,
		Stderr:     decision.Stderr,
		ExitCode:   raw.ExitCode,
		WallTimeMs: raw.WallTimeMs,
	}
	logger.Debug(ctx, "sandbox finished",
		zap.String("outcome", string(res.Outcome)),
		zap.Int("exit_code", res.ExitCode),
		zap.Int64("wall_time_ms", res.WallTimeMs),
		zap.Bool("stdout_truncated", raw.StdoutTruncated),
	)
	l.observer.ObserveExecution(ctx, lang.ID, res)
	return res, nil
}

func (l *Launcher) failed(ctx context.Context, jobID, languageID, stderr string) result.ExecutionResult {
	res := result.ExecutionResult{
		JobID:    jobID,
		Outcome:  result.OutcomeRuntime,
		Stderr:   stderr,
		ExitCode: -1,
	}
	l.observer.ObserveExecution(ctx, languageID, res)
	return res
}
