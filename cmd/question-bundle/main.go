// Command question-bundle compresses a question bank file and uploads it to
// object storage, where the judge service's bundle source picks it up.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"codejudge/internal/common/storage"
	"codejudge/internal/judge/repository"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "configs/judge_service.yaml"
	defaultBankPath   = "configs/questions.yaml"
	defaultBundleKey  = "questions/bank.json.zst"
	uploadTimeout     = 30 * time.Second
)

type bundleConfig struct {
	Logger    logger.Config       `yaml:"logger"`
	MinIO     storage.MinIOConfig `yaml:"minio"`
	Questions struct {
		Bucket string `yaml:"bucket"`
		Key    string `yaml:"key"`
	} `yaml:"questions"`
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to judge service config (minio section is used)")
	bankPath := flag.String("bank", defaultBankPath, "Question bank yaml/json file")
	key := flag.String("key", "", "Override object key")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *key != "" {
		cfg.Questions.Key = *key
	}
	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := publish(cfg, *bankPath); err != nil {
		logger.Error(context.Background(), "publish question bundle failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*bundleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	var cfg bundleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file failed: %w", err)
	}
	if cfg.Questions.Bucket == "" {
		cfg.Questions.Bucket = cfg.MinIO.Bucket
	}
	if cfg.Questions.Key == "" {
		cfg.Questions.Key = defaultBundleKey
	}
	return &cfg, nil
}

func publish(cfg *bundleConfig, bankPath string) error {
	questions, err := repository.LoadQuestionBank(bankPath)
	if err != nil {
		return err
	}
	// Indexing rejects empty and duplicate ids before anything is uploaded.
	if _, err := repository.NewMemoryQuestionRepository(questions); err != nil {
		return err
	}

	store, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init minio failed: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	size, err := repository.PublishBundle(ctx, store, cfg.Questions.Bucket, cfg.Questions.Key, questions)
	if err != nil {
		return err
	}
	logger.Info(ctx, "question bundle published",
		zap.String("bucket", cfg.Questions.Bucket),
		zap.String("key", cfg.Questions.Key),
		zap.Int("questions", len(questions)),
		zap.Int("bytes", size),
	)
	return nil
}
