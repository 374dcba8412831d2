package main

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "judge_service.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

func TestLoadAppConfigDefaults(t *testing.T) {
	path := writeConfig(t, "questions:\n  path: configs/questions.yaml\n")
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != defaultHTTPAddr {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Questions.Source != questionSourceFile {
		t.Fatalf("unexpected source: %s", cfg.Questions.Source)
	}
	if cfg.Worker.PoolSize != 1 || cfg.Worker.AcquireTimeout != defaultAcquireTimeout {
		t.Fatalf("unexpected worker config: %+v", cfg.Worker)
	}
	if len(cfg.Languages) != 4 {
		t.Fatalf("expected default languages, got %d", len(cfg.Languages))
	}
	if cfg.Events.Topic != "judge.verdict" {
		t.Fatalf("unexpected topic: %s", cfg.Events.Topic)
	}
	if cfg.Kafka.enabled() {
		t.Fatalf("kafka should be disabled without brokers")
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
  cors:
    enabled: true
  rateLimit:
    ipMax: 10
sandbox:
  timeoutMs: 3000
  memoryMB: 128
  cpus: 1.5
  host: tcp://docker:2375
  capDrop: [ALL]
worker:
  poolSize: 4
  acquireTimeout: 500ms
questions:
  source: BUNDLE
  key: questions.json.zst
  cache:
    enabled: true
minio:
  endpoint: localhost:9000
  bucket: judge
redis:
  addr: localhost:6379
kafka:
  brokers: [localhost:9092]
  compression: zstd
  requiredAcks: -1
languages:
  - id: go
    name: Go
    image: golang:1.22
    sourceFile: main.go
    command: go run main.go
`)
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Questions.Source != questionSourceBundle || cfg.Questions.Bucket != "judge" {
		t.Fatalf("unexpected questions config: %+v", cfg.Questions)
	}
	if cfg.Worker.AcquireTimeout != 500*time.Millisecond || cfg.Worker.PoolSize != 4 {
		t.Fatalf("unexpected worker config: %+v", cfg.Worker)
	}
	if len(cfg.Languages) != 1 || cfg.Languages[0].ID != "go" {
		t.Fatalf("unexpected languages: %+v", cfg.Languages)
	}

	engineCfg := cfg.Sandbox.toEngineConfig()
	if engineCfg.Limits.WallTimeMs != 3000 || engineCfg.Limits.MemoryMB != 128 || engineCfg.Limits.CPUs != 1.5 {
		t.Fatalf("unexpected limits: %+v", engineCfg.Limits)
	}
	if engineCfg.Host != "tcp://docker:2375" || len(engineCfg.CapDrop) != 1 || engineCfg.CapDrop[0] != "ALL" {
		t.Fatalf("unexpected docker settings: %+v", engineCfg)
	}

	mqCfg := cfg.Kafka.toMQConfig()
	if mqCfg.Compression != kafka.Zstd || mqCfg.RequiredAcks != kafka.RequireAll {
		t.Fatalf("unexpected kafka config: %+v", mqCfg)
	}
	if cfg.Redis.PoolSize == 0 {
		t.Fatalf("expected redis defaults applied")
	}
	if !cfg.needsRedis() || cfg.Server.RateLimit.Window != defaultRateLimitWindow {
		t.Fatalf("unexpected rate limit config: %+v", cfg.Server.RateLimit)
	}
	if len(cfg.Server.CORS.AllowedOrigins) != 1 || cfg.Server.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("expected cors defaults, got %+v", cfg.Server.CORS)
	}
}

func TestLoadAppConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{name: "file without path", body: "questions:\n  source: file\n"},
		{name: "mysql without dsn", body: "questions:\n  source: mysql\n"},
		{name: "bundle without key", body: "questions:\n  source: bundle\nminio:\n  endpoint: x\n  bucket: b\n"},
		{name: "unknown source", body: "questions:\n  source: ftp\n"},
		{name: "cache without redis", body: "questions:\n  path: q.yaml\n  cache:\n    enabled: true\n"},
		{name: "rate limit without redis", body: "server:\n  rateLimit:\n    ipMax: 5\nquestions:\n  path: q.yaml\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadAppConfig(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestOriginChecker(t *testing.T) {
	if originChecker(nil) != nil {
		t.Fatalf("expected nil checker for empty allow list")
	}
	check := originChecker([]string{"https://judge.example.com"})
	req := httptest.NewRequest("GET", "/api/execute/stream", nil)
	if !check(req) {
		t.Fatalf("request without origin should pass")
	}
	req.Header.Set("Origin", "https://judge.example.com")
	if !check(req) {
		t.Fatalf("allowed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Fatalf("unknown origin accepted")
	}
}
