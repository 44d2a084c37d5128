package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != defaultAPIBase {
		t.Fatalf("APIBase = %q, want %q", cfg.APIBase, defaultAPIBase)
	}
	if cfg.PollSeconds != defaultPollSeconds {
		t.Fatalf("PollSeconds = %d, want %d", cfg.PollSeconds, defaultPollSeconds)
	}
	if cfg.Token != "" || cfg.RedisURL != "" {
		t.Fatalf("Token/RedisURL = %q/%q, want empty", cfg.Token, cfg.RedisURL)
	}

	wantLogDir, err := expandPath(defaultLogDir)
	if err != nil {
		t.Fatalf("expandPath(defaultLogDir) returned error: %v", err)
	}
	if cfg.LogDir != wantLogDir {
		t.Fatalf("LogDir = %q, want %q", cfg.LogDir, wantLogDir)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
api_base = "  https://arbor.internal  "
token = "  arb_pat_abc  "
redis_url = " redis://127.0.0.1:6379/2 "
poll_seconds = 45
log_dir = "  ~/.canopy/logs  "
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != "https://arbor.internal" {
		t.Fatalf("APIBase = %q", cfg.APIBase)
	}
	if cfg.Token != "arb_pat_abc" {
		t.Fatalf("Token = %q", cfg.Token)
	}
	if cfg.RedisURL != "redis://127.0.0.1:6379/2" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.PollSeconds != 45 {
		t.Fatalf("PollSeconds = %d, want 45", cfg.PollSeconds)
	}
	if !strings.HasPrefix(cfg.LogDir, home) {
		t.Fatalf("LogDir = %q, want it under HOME %q", cfg.LogDir, home)
	}
	if cfg.DebugLogPath() != filepath.Join(cfg.LogDir, "canopy.log") {
		t.Fatalf("DebugLogPath = %q", cfg.DebugLogPath())
	}
}

func TestLoad_PartialConfigKeepsDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`token = "arb_pat_abc"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != defaultAPIBase {
		t.Fatalf("APIBase = %q, want default", cfg.APIBase)
	}
	if cfg.PollSeconds != defaultPollSeconds {
		t.Fatalf("PollSeconds = %d, want default", cfg.PollSeconds)
	}
}

func TestLoad_BadTOMLIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_base = [broken`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
