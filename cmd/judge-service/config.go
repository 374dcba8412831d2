package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codejudge/internal/common/cache"
	"codejudge/internal/common/db"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/common/storage"
	"codejudge/internal/judge/repository"
	"codejudge/internal/judge/sandbox/engine"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/spec"
	"codejudge/pkg/utils/logger"

	"github.com/segmentio/kafka-go"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 120 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultAcquireTimeout  = 2 * time.Second
	defaultBundleTTL       = 5 * time.Minute
	defaultQuestionTTL     = 10 * time.Minute
	defaultQuestionMissTTL = time.Minute
	defaultRateLimitWindow = time.Minute

	questionSourceFile   = "file"
	questionSourceMySQL  = "mysql"
	questionSourceBundle = "bundle"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	MaxCodeBytes   int           `yaml:"maxCodeBytes"`
	MaxInputBytes  int           `yaml:"maxInputBytes"`

	CORS      commonmw.CORSConfig      `yaml:"cors"`
	RateLimit commonmw.RateLimitPolicy `yaml:"rateLimit"`
}

// SandboxConfig holds container runtime settings.
type SandboxConfig struct {
	Host             string   `yaml:"host"`
	Network          string   `yaml:"network"`
	MountTarget      string   `yaml:"mountTarget"`
	WorkRoot         string   `yaml:"workRoot"`
	TimeoutMs        int64    `yaml:"timeoutMs"`
	KillGraceMs      int64    `yaml:"killGraceMs"`
	OutputLimitBytes int      `yaml:"outputLimitBytes"`
	MemoryMB         int64    `yaml:"memoryMB"`
	CPUs             float64  `yaml:"cpus"`
	PIDs             int64    `yaml:"pids"`
	CapDrop          []string `yaml:"capDrop"`
	SecurityOpt      []string `yaml:"securityOpt"`
}

// WorkerConfig bounds concurrent grading.
type WorkerConfig struct {
	PoolSize       int           `yaml:"poolSize"`
	AcquireTimeout time.Duration `yaml:"acquireTimeout"`
}

// QuestionCacheConfig holds redis question cache settings.
type QuestionCacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
	MissTTL time.Duration `yaml:"missTTL"`
}

// QuestionsConfig selects and configures the question source.
type QuestionsConfig struct {
	Source        string              `yaml:"source"`
	Path          string              `yaml:"path"`
	Bucket        string              `yaml:"bucket"`
	Key           string              `yaml:"key"`
	BundleTTL     time.Duration       `yaml:"bundleTTL"`
	LookupTimeout time.Duration       `yaml:"lookupTimeout"`
	Cache         QuestionCacheConfig `yaml:"cache"`
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	ClientID     string        `yaml:"clientID"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
}

// EventsConfig holds verdict event settings.
type EventsConfig struct {
	Topic   string        `yaml:"topic"`
	Timeout time.Duration `yaml:"timeout"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	Server    ServerConfig           `yaml:"server"`
	Logger    logger.Config          `yaml:"logger"`
	Sandbox   SandboxConfig          `yaml:"sandbox"`
	Languages []profile.LanguageSpec `yaml:"languages"`
	Worker    WorkerConfig           `yaml:"worker"`
	Questions QuestionsConfig        `yaml:"questions"`
	Redis     cache.RedisConfig      `yaml:"redis"`
	MySQL     db.MySQLConfig         `yaml:"mysql"`
	MinIO     storage.MinIOConfig    `yaml:"minio"`
	Kafka     KafkaConfig            `yaml:"kafka"`
	Events    EventsConfig           `yaml:"events"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	applyCORSDefaults(&cfg.Server.CORS)
	if cfg.Server.RateLimit.Window == 0 {
		cfg.Server.RateLimit.Window = defaultRateLimitWindow
	}
	if cfg.Sandbox.WorkRoot == "" {
		cfg.Sandbox.WorkRoot = filepath.Join(os.TempDir(), "judge-work")
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = profile.DefaultLanguages()
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 1
	}
	if cfg.Worker.AcquireTimeout == 0 {
		cfg.Worker.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.Questions.Source == "" {
		cfg.Questions.Source = questionSourceFile
	}
	cfg.Questions.Source = strings.ToLower(cfg.Questions.Source)
	if cfg.Questions.Bucket == "" {
		cfg.Questions.Bucket = cfg.MinIO.Bucket
	}
	if cfg.Questions.BundleTTL == 0 {
		cfg.Questions.BundleTTL = defaultBundleTTL
	}
	if cfg.Questions.Cache.TTL == 0 {
		cfg.Questions.Cache.TTL = defaultQuestionTTL
	}
	if cfg.Questions.Cache.MissTTL == 0 {
		cfg.Questions.Cache.MissTTL = defaultQuestionMissTTL
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = repository.DefaultVerdictTopic
	}
	applyRedisDefaults(&cfg.Redis)
}

func validateConfig(cfg *AppConfig) error {
	switch cfg.Questions.Source {
	case questionSourceFile:
		if cfg.Questions.Path == "" {
			return fmt.Errorf("questions.path is required for the file source")
		}
	case questionSourceMySQL:
		if cfg.MySQL.DSN == "" {
			return fmt.Errorf("mysql dsn is required for the mysql source")
		}
	case questionSourceBundle:
		if cfg.MinIO.Endpoint == "" || cfg.Questions.Bucket == "" || cfg.Questions.Key == "" {
			return fmt.Errorf("minio endpoint, questions.bucket and questions.key are required for the bundle source")
		}
	default:
		return fmt.Errorf("unknown question source %q", cfg.Questions.Source)
	}
	if cfg.needsRedis() && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when the question cache or rate limiting is enabled")
	}
	return nil
}

func (c *AppConfig) needsRedis() bool {
	return c.Questions.Cache.Enabled || rateLimitEnabled(c.Server.RateLimit)
}

func rateLimitEnabled(p commonmw.RateLimitPolicy) bool {
	return p.IPMax > 0 || p.RouteMax > 0
}

func applyCORSDefaults(cfg *commonmw.CORSConfig) {
	if !cfg.Enabled {
		return
	}
	defaults := commonmw.DefaultCORSConfig()
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaults.AllowedOrigins
	}
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaults.AllowedMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaults.AllowedHeaders
	}
	if len(cfg.ExposedHeaders) == 0 {
		cfg.ExposedHeaders = defaults.ExposedHeaders
	}
	if cfg.MaxAge == "" {
		cfg.MaxAge = defaults.MaxAge
	}
}

func applyRedisDefaults(cfg *cache.RedisConfig) {
	if cfg == nil {
		return
	}
	defaults := cache.DefaultRedisConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaults.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = defaults.PoolSize
	}
	if cfg.MinIdleConns == 0 {
		cfg.MinIdleConns = defaults.MinIdleConns
	}
	if cfg.PoolTimeout == 0 {
		cfg.PoolTimeout = defaults.PoolTimeout
	}
	if cfg.ConnMaxIdleTime == 0 {
		cfg.ConnMaxIdleTime = defaults.ConnMaxIdleTime
	}
}

func (k KafkaConfig) enabled() bool {
	return len(k.Brokers) > 0
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		WriteTimeout: k.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  parseCompression(k.Compression),
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}

func (s SandboxConfig) toEngineConfig() engine.Config {
	return engine.Config{
		Host:             s.Host,
		Network:          s.Network,
		MountTarget:      s.MountTarget,
		KillGraceMs:      s.KillGraceMs,
		OutputLimitBytes: s.OutputLimitBytes,
		Limits:           s.limits(),
		CapDrop:          s.CapDrop,
		SecurityOpt:      s.SecurityOpt,
	}
}

func (s SandboxConfig) limits() spec.ResourceLimit {
	return spec.ResourceLimit{
		WallTimeMs: s.TimeoutMs,
		MemoryMB:   s.MemoryMB,
		CPUs:       s.CPUs,
		PIDs:       s.PIDs,
	}
}
