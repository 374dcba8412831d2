package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"codejudge/internal/common/mq"
	"codejudge/internal/judge/model"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultAcquireTimeout = 2 * time.Second
	defaultLookupTimeout  = 3 * time.Second
	defaultPublishTimeout = 2 * time.Second
	defaultMaxCodeBytes   = 64 << 10
	defaultMaxInputBytes  = 1 << 20
)

// Config holds service dependencies and settings.
type Config struct {
	Executor       sandbox.Executor
	Languages      *profile.Table
	Questions      repository.QuestionRepository
	Publisher      repository.VerdictEventPublisher
	PoolSize       int
	AcquireTimeout time.Duration
	LookupTimeout  time.Duration
	PublishTimeout time.Duration
	MaxCodeBytes   int
	MaxInputBytes  int
}

// Service turns execute requests into verdicts.
type Service struct {
	harness        *Harness
	languages      *profile.Table
	questions      repository.QuestionRepository
	publisher      repository.VerdictEventPublisher
	limiter        *mq.TokenLimiter
	acquireTimeout time.Duration
	lookupTimeout  time.Duration
	publishTimeout time.Duration
	maxCodeBytes   int
	maxInputBytes  int
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if cfg.Languages == nil {
		return nil, fmt.Errorf("language table is required")
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = repository.NoopVerdictEventPublisher{}
	}
	s := &Service{
		harness:        NewHarness(cfg.Executor),
		languages:      cfg.Languages,
		questions:      cfg.Questions,
		publisher:      publisher,
		limiter:        mq.NewTokenLimiter(cfg.PoolSize),
		acquireTimeout: orDefault(cfg.AcquireTimeout, defaultAcquireTimeout),
		lookupTimeout:  orDefault(cfg.LookupTimeout, defaultLookupTimeout),
		publishTimeout: orDefault(cfg.PublishTimeout, defaultPublishTimeout),
		maxCodeBytes:   cfg.MaxCodeBytes,
		maxInputBytes:  cfg.MaxInputBytes,
	}
	if s.maxCodeBytes <= 0 {
		s.maxCodeBytes = defaultMaxCodeBytes
	}
	if s.maxInputBytes <= 0 {
		s.maxInputBytes = defaultMaxInputBytes
	}
	return s, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Languages lists the supported languages in id order.
func (s *Service) Languages() []model.LanguageInfo {
	langs := s.languages.Languages()
	out := make([]model.LanguageInfo, 0, len(langs))
	for _, l := range langs {
		out = append(out, model.LanguageInfo{
			ID:         l.ID,
			Name:       l.Name,
			Image:      l.Image,
			SourceFile: l.SourceFile,
			Compiled:   l.Compiled,
		})
	}
	return out
}

// Execute grades req. See ExecuteWithObserver.
func (s *Service) Execute(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error) {
	return s.ExecuteWithObserver(ctx, req, nil)
}

// ExecuteWithObserver grades req and streams every trace line to obs.
//
// A non-nil error is returned for rejected requests (invalid input, full
// queue) and for question lookup failures; the latter also carry a
// status=error response to send back.
func (s *Service) ExecuteWithObserver(ctx context.Context, req model.ExecuteRequest, obs observer.TraceObserver) (model.ExecuteResponse, error) {
	if err := s.validate(req); err != nil {
		return model.ExecuteResponse{}, err
	}

	var question *model.Question
	if req.QuestionID != "" {
		q, err := s.lookup(ctx, req.QuestionID)
		if err != nil {
			logger.Error(ctx, "question lookup failed", zap.String("question_id", req.QuestionID), zap.Error(err))
			return model.ErrorResponse(ServerErrorPrefix + err.Error()), appErr.Wrapf(err, appErr.JudgeSystemError, "question lookup failed")
		}
		question = q
	}

	if question == nil && req.CustomInput == "" {
		return model.ErrorResponse(QuestionNotFoundLog), nil
	}
	if question.IsArchitectural() {
		return model.ExecuteResponse{Status: result.StatusAccepted, Logs: append([]string{}, architecturalLogs...)}, nil
	}

	gradeReq := GradeRequest{Language: req.Language, Code: req.Code, Mode: ModeCompare, Observer: obs}
	if req.CustomInput != "" {
		gradeReq.Mode = ModeCustom
		gradeReq.Cases = []Case{{Input: req.CustomInput}}
	} else {
		gradeReq.Cases = CasesFromQuestion(question.TestCases)
		if len(gradeReq.Cases) == 0 {
			return model.ErrorResponse(NoTestCasesLog), nil
		}
	}

	if _, ok := s.languages.Lookup(req.Language); !ok {
		return model.ErrorResponse(LanguageNotSupportedLog), nil
	}

	if err := s.acquire(ctx); err != nil {
		return model.ExecuteResponse{}, err
	}
	defer s.limiter.Release()

	jobID := uuid.NewString()
	ctx = logger.WithJobID(ctx, jobID)
	start := time.Now()
	verdict := s.harness.Grade(ctx, gradeReq)
	logger.Info(ctx, "submission graded",
		zap.String("language", req.Language),
		zap.String("question_id", req.QuestionID),
		zap.String("status", string(verdict.Status)),
		zap.Int("passed", verdict.Passed),
		zap.Int("total", verdict.Total),
		zap.Duration("elapsed", time.Since(start)),
	)
	s.publish(ctx, model.VerdictEvent{
		JobID:      jobID,
		QuestionID: req.QuestionID,
		Language:   req.Language,
		Status:     verdict.Status,
		Passed:     verdict.Passed,
		Total:      verdict.Total,
		Custom:     gradeReq.Mode == ModeCustom,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().Unix(),
	})
	return verdict.Response(), nil
}

func (s *Service) validate(req model.ExecuteRequest) error {
	if req.Language == "" {
		return appErr.ValidationError("language", "required")
	}
	if req.Code == "" {
		return appErr.ValidationError("code", "required")
	}
	if len(req.Code) > s.maxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "code exceeds %d bytes", s.maxCodeBytes)
	}
	if len(req.CustomInput) > s.maxInputBytes {
		return appErr.Newf(appErr.CustomInputTooLarge, "custom input exceeds %d bytes", s.maxInputBytes)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, id string) (*model.Question, error) {
	if s.questions == nil {
		return nil, nil
	}
	ctxLookup, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()
	return s.questions.GetQuestion(ctxLookup, id)
}

func (s *Service) acquire(ctx context.Context) error {
	ctxAcquire, cancel := context.WithTimeout(ctx, s.acquireTimeout)
	defer cancel()
	err := s.limiter.Acquire(ctxAcquire)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return appErr.Wrapf(ctx.Err(), appErr.Timeout, "request cancelled while waiting for a sandbox slot")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		logger.Warn(ctx, "sandbox pool is full", zap.Int("capacity", s.limiter.Capacity()))
		return appErr.New(appErr.JudgeQueueFull).WithMessage("sandbox pool is full")
	}
	return err
}

func (s *Service) publish(ctx context.Context, event model.VerdictEvent) {
	ctxPub, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.PublishVerdict(ctxPub, event); err != nil {
		logger.Warn(ctx, "publish verdict event failed", zap.String("job_id", event.JobID), zap.Error(err))
	}
}
