package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Mode != ModeLocal {
		t.Errorf("Mode = %q, want local", cfg.Mode)
	}
	if cfg.Sync.Interval != 20*time.Second {
		t.Errorf("Sync.Interval = %v, want 20s", cfg.Sync.Interval)
	}
	if cfg.Picker.MaxAttempts != 64 {
		t.Errorf("Picker.MaxAttempts = %d, want 64", cfg.Picker.MaxAttempts)
	}
	if cfg.IsRemoteConfigured() {
		t.Error("remote should not be configured by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadConfigFrom(t *testing.T) {
	path := writeConfig(t, `
mode: remote
remote:
  url: https://example.supabase.co
  api_key: anon
  timeout: 5s
sync:
  interval: 1m
picker:
  max_attempts: 8
logging:
  level: debug
`)

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Mode != ModeRemote {
		t.Errorf("Mode = %q", cfg.Mode)
	}
	if !cfg.IsRemoteConfigured() || cfg.Remote.APIKey != "anon" {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	if cfg.Remote.Timeout != 5*time.Second || cfg.Sync.Interval != time.Minute {
		t.Errorf("durations = %v, %v", cfg.Remote.Timeout, cfg.Sync.Interval)
	}
	if cfg.Picker.MaxAttempts != 8 {
		t.Errorf("MaxAttempts = %d", cfg.Picker.MaxAttempts)
	}
	// Unset keys keep their defaults.
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "mode: local\n")
	t.Setenv("PICKFLIX_MODE", "sqlite")
	t.Setenv("PICKFLIX_REMOTE_URL", "http://localhost:8080")
	t.Setenv("PICKFLIX_SYNC_INTERVAL", "3s")

	cfg, err := LoadConfigFrom(path)
	if err != nil {
		t.Fatalf("LoadConfigFrom: %v", err)
	}
	if cfg.Mode != ModeSQLite {
		t.Errorf("Mode = %q, want sqlite", cfg.Mode)
	}
	if cfg.Remote.URL != "http://localhost:8080" {
		t.Errorf("Remote.URL = %q", cfg.Remote.URL)
	}
	if cfg.Sync.Interval != 3*time.Second {
		t.Errorf("Sync.Interval = %v", cfg.Sync.Interval)
	}
}

func TestLoadConfigInvalidMode(t *testing.T) {
	path := writeConfig(t, "mode: carrier-pigeon\n")
	_, err := LoadConfigFrom(path)
	if err == nil || !strings.Contains(err.Error(), "invalid mode") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidateRejectsNegatives(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Picker.MaxAttempts = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative max_attempts accepted")
	}

	cfg = DefaultConfig()
	cfg.Sync.Interval = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("negative interval accepted")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Errorf("ExpandHome = %q", got)
	}
	if got := ExpandHome("/abs"); got != "/abs" {
		t.Errorf("ExpandHome(/abs) = %q", got)
	}
}
