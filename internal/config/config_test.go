package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.Exam.Year != nil || cfg.Server.URL != nil {
		t.Fatalf("expected empty config")
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[exam]
year = 2026
shift = "evening"
duration = "2h30m"
checkpoint-interval = "45s"

[server]
url = "http://exam.local:8080"

[store]
backend = "redis"
redis-ttl = "72h"

[serve]
allowed-origins = ["http://a", "http://b"]
per-subject = 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *cfg.Exam.Year != 2026 || *cfg.Exam.Shift != "evening" {
		t.Fatalf("unexpected exam section %+v", cfg.Exam)
	}
	if cfg.Exam.Duration.Duration != 150*time.Minute || cfg.Exam.CheckpointInterval.Duration != 45*time.Second {
		t.Fatalf("unexpected durations")
	}
	if *cfg.Server.URL != "http://exam.local:8080" || cfg.Server.Token != nil {
		t.Fatalf("unexpected server section")
	}
	if *cfg.Store.Backend != "redis" || cfg.Store.RedisTTL.Duration != 72*time.Hour {
		t.Fatalf("unexpected store section")
	}
	if len(cfg.Serve.AllowedOrigins) != 2 || *cfg.Serve.PerSubject != 10 {
		t.Fatalf("unexpected serve section")
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[exam]\nduration = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := EnvServer + "=http://from-file\n" + EnvToken + "=file-token\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(EnvServer, "http://from-env")
	t.Setenv(EnvToken, "")
	if err := os.Unsetenv(EnvToken); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	env := LoadEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	if env.Server != "http://from-env" {
		t.Fatalf("environment should win over dotenv, got %q", env.Server)
	}
	if env.Token != "file-token" {
		t.Fatalf("expected token from dotenv, got %q", env.Token)
	}
	if StringPtr("") != nil || *StringPtr("x") != "x" {
		t.Fatalf("StringPtr mismatch")
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "tuiexam", "config.toml") {
		t.Fatalf("config path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "tuiexam", "tuiexam.db") {
		t.Fatalf("db path %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/data", "tuiexam", "tuiexam.log") {
		t.Fatalf("log path %s", got)
	}
}
