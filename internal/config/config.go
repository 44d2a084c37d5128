package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds everything Canopy needs to reach an Arbor instance.
type Config struct {
	APIBase     string
	Token       string
	RedisURL    string // empty selects the in-memory cache
	PollSeconds int
	LogDir      string
}

const (
	defaultConfigPath  = "~/.config/canopy/config.toml"
	defaultLogDir      = "~/.local/share/canopy/logs"
	defaultAPIBase     = "127.0.0.1:8640"
	defaultPollSeconds = 30
)

// Load locates and parses the Canopy config, falling back to defaults when
// the file is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		APIBase:     defaultAPIBase,
		PollSeconds: defaultPollSeconds,
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.LogDir = mustExpand(defaultLogDir)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBase     string `toml:"api_base"`
		Token       string `toml:"token"`
		RedisURL    string `toml:"redis_url"`
		PollSeconds int    `toml:"poll_seconds"`
		LogDir      string `toml:"log_dir"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if base := strings.TrimSpace(raw.APIBase); base != "" {
		cfg.APIBase = base
	}
	cfg.Token = strings.TrimSpace(raw.Token)
	cfg.RedisURL = strings.TrimSpace(raw.RedisURL)
	if raw.PollSeconds > 0 {
		cfg.PollSeconds = raw.PollSeconds
	}

	cfg.LogDir = strings.TrimSpace(raw.LogDir)
	if cfg.LogDir == "" {
		cfg.LogDir = defaultLogDir
	}
	cfg.LogDir = mustExpand(cfg.LogDir)

	return cfg, nil
}

// DebugLogPath returns the file Canopy writes its own diagnostics to while
// the TUI owns the terminal.
func (c Config) DebugLogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/canopy.log")
	}
	return filepath.Join(c.LogDir, "canopy.log")
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
