//go:build !integration

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	cfg, err := Parse([]byte(`
bot:
  token: "abc"
storage:
  backend: memory
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bot.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Bot.Workers)
	}
	if cfg.SMM.Timeout != 15*time.Second {
		t.Errorf("expected default panel timeout 15s, got %s", cfg.SMM.Timeout)
	}
	if cfg.State.Backend != StateMemory {
		t.Errorf("expected memory state backend, got %q", cfg.State.Backend)
	}
	if cfg.Dispatch.PerOrderTimeout <= cfg.SMM.Timeout {
		t.Errorf("per-order timeout %s should exceed the panel timeout", cfg.Dispatch.PerOrderTimeout)
	}
}

func TestParse_TimeoutClamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"3s", 10 * time.Second},
		{"12s", 12 * time.Second},
		{"1m", 15 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg, err := Parse([]byte("bot: {token: x}\nstorage: {backend: memory}\nsmm: {timeout: " + tt.in + "}\n"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.SMM.Timeout != tt.want {
				t.Errorf("expected %s, got %s", tt.want, cfg.SMM.Timeout)
			}
		})
	}
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing token", "storage: {backend: memory}"},
		{"postgres without url", "bot: {token: x}\nstorage: {backend: postgres}"},
		{"unknown storage", "bot: {token: x}\nstorage: {backend: mongo}"},
		{"redis state without redis", "bot: {token: x}\nstorage: {backend: memory}\nstate: {backend: redis}"},
		{"redis enabled without url", "bot: {token: x}\nstorage: {backend: memory}\nredis: {enabled: true}"},
		{"bad key length", "bot: {token: x}\nstorage: {backend: memory}\nsecurity: {encryption_key: short}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("BOT_TOKEN", "")
			t.Setenv("REDIS_URL", "")
			t.Setenv("DATABASE_URL", "")
			t.Setenv("ENCRYPTION_KEY", "")
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("bot: {token: from-file}\nstorage: {backend: memory}\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bot.Token != "from-env" {
		t.Errorf("expected env override, got %q", cfg.Bot.Token)
	}
	if !cfg.Runtime.Dev {
		t.Error("dev flag should be carried into Runtime")
	}
}
