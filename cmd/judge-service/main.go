package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/db"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/common/storage"
	"codejudge/internal/judge/controller"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/service"
	"codejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/judge_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "judge service exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	table, err := profile.NewTable(appCfg.Languages)
	if err != nil {
		return fmt.Errorf("build language table failed: %w", err)
	}
	if err := os.MkdirAll(appCfg.Sandbox.WorkRoot, 0o755); err != nil {
		return fmt.Errorf("create work root failed: %w", err)
	}

	eng, err := engine.NewDockerEngine(appCfg.Sandbox.toEngineConfig())
	if err != nil {
		return fmt.Errorf("init sandbox engine failed: %w", err)
	}
	defer func() {
		_ = eng.Close()
	}()
	launcher := sandbox.NewLauncher(table, eng, nil, appCfg.Sandbox.WorkRoot,
		sandbox.WithObserver(observer.Logging{}),
	)

	var redisCache *cache.RedisCache
	if appCfg.needsRedis() {
		redisCache, err = cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			return fmt.Errorf("init redis failed: %w", err)
		}
		defer func() {
			_ = redisCache.Close()
		}()
	}

	questions, closeQuestions, err := buildQuestionRepository(ctx, appCfg, redisCache)
	if err != nil {
		return err
	}
	defer closeQuestions()

	publisher, closePublisher, err := buildVerdictPublisher(appCfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	judgeSvc, err := service.NewService(service.Config{
		Executor:       launcher,
		Languages:      table,
		Questions:      questions,
		Publisher:      publisher,
		PoolSize:       appCfg.Worker.PoolSize,
		AcquireTimeout: appCfg.Worker.AcquireTimeout,
		LookupTimeout:  appCfg.Questions.LookupTimeout,
		PublishTimeout: appCfg.Events.Timeout,
		MaxCodeBytes:   appCfg.Server.MaxCodeBytes,
		MaxInputBytes:  appCfg.Server.MaxInputBytes,
	})
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}

	var limiter commonmw.Limiter
	if rateLimitEnabled(appCfg.Server.RateLimit) {
		limiter = service.NewRateLimitService(redisCache, appCfg.Server.RateLimit.Window, 0)
	}

	httpServer := buildHTTPServer(appCfg.Server, judgeSvc, limiter)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("init http listener failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Strings("languages", table.IDs()),
			zap.String("question_source", appCfg.Questions.Source),
			zap.Int("pool_size", appCfg.Worker.PoolSize),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server stopped: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	return nil
}

// buildQuestionRepository opens the configured question source and, when
// enabled, wraps it with the redis cache. The returned func releases clients.
func buildQuestionRepository(ctx context.Context, appCfg *AppConfig, redisCache *cache.RedisCache) (repository.QuestionRepository, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var repo repository.QuestionRepository
	switch appCfg.Questions.Source {
	case questionSourceFile:
		fileRepo, err := repository.NewFileQuestionRepository(appCfg.Questions.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("load question bank failed: %w", err)
		}
		logger.Info(ctx, "question bank loaded", zap.String("path", appCfg.Questions.Path), zap.Int("questions", fileRepo.Len()))
		repo = fileRepo
	case questionSourceMySQL:
		mysqlDB, err := db.NewMySQLWithConfig(&appCfg.MySQL)
		if err != nil {
			return nil, nil, fmt.Errorf("init database failed: %w", err)
		}
		closers = append(closers, func() { _ = mysqlDB.Close() })
		repo = repository.NewMySQLQuestionRepository(mysqlDB)
	case questionSourceBundle:
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			return nil, nil, fmt.Errorf("init minio failed: %w", err)
		}
		repo = repository.NewBundleQuestionRepository(objStorage, appCfg.Questions.Bucket, appCfg.Questions.Key, appCfg.Questions.BundleTTL)
	}

	if appCfg.Questions.Cache.Enabled && redisCache != nil {
		repo = repository.NewCachedQuestionRepository(repo, redisCache, appCfg.Questions.Cache.TTL, appCfg.Questions.Cache.MissTTL)
	}
	return repo, closeAll, nil
}

func buildVerdictPublisher(appCfg *AppConfig) (repository.VerdictEventPublisher, func(), error) {
	if !appCfg.Kafka.enabled() {
		return repository.NoopVerdictEventPublisher{}, func() {}, nil
	}
	producer, err := mq.NewKafkaProducer(appCfg.Kafka.toMQConfig())
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka failed: %w", err)
	}
	return repository.NewMQVerdictEventPublisher(producer, appCfg.Events.Topic), func() { _ = producer.Close() }, nil
}

func buildHTTPServer(cfg ServerConfig, judgeSvc controller.JudgeService, limiter commonmw.Limiter) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())
	router.Use(commonmw.CORSMiddleware(cfg.CORS))

	judgeController := controller.NewJudgeController(judgeSvc, originChecker(cfg.AllowedOrigins))
	executeLimit := commonmw.RateLimitMiddleware(limiter, "execute", cfg.RateLimit)
	router.POST("/api/execute", executeLimit, judgeController.Execute)
	router.GET("/api/execute/stream", executeLimit, judgeController.Stream)
	router.GET("/api/v1/judge/languages", judgeController.Languages)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// originChecker accepts any origin when none are configured.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
