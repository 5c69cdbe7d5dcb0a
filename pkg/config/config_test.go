package config

import (
	"os"
	"path/filepath"
	"testing"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.SQLite.Path != "./data/ainews.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Dedup.Threshold != 0.7 || !cfg.Classifier.InDomainOnly || cfg.Search.DefaultLimit != 50 {
		t.Fatalf("unexpected domain defaults: %+v", cfg)
	}
	if len(cfg.Ranking.TrustedSources) != 4 {
		t.Fatalf("expected default trusted sources, got %v", cfg.Ranking.TrustedSources)
	}
	if cfg.ListenAddr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr())
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	yaml := []byte("server:\n  port: 9090\ndedup:\n  threshold: 0.8\nsearch:\n  defaultLimit: 10\n  maxLimit: 20\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("AINEWS_LOGGING_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("AINEWS_SQLITE_PATH", filepath.Join(dir, "news.db"))
	t.Cleanup(func() { os.Unsetenv("AINEWS_LOGGING_LEVEL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Dedup.Threshold != 0.8 || cfg.Search.MaxLimit != 20 {
		t.Fatalf("config file not applied: %+v", cfg)
	}
	if cfg.SQLite.Path != filepath.Join(dir, "news.db") {
		t.Fatalf("env override not applied: %q", cfg.SQLite.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf(".env not applied: %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("AINEWS_DEDUP_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}
