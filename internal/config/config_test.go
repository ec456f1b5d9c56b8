package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("applies defaults for missing sections", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "server.yaml")
		if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("expected port 8080, got %d", cfg.Server.Port)
		}
		if cfg.Server.Host != "localhost" {
			t.Errorf("expected default host, got %q", cfg.Server.Host)
		}
		if cfg.Publishing.SyncMaxAttempts != 3 || cfg.Publishing.JobMaxAttempts != 3 {
			t.Errorf("expected attempts to default to 3, got %+v", cfg.Publishing)
		}
		if cfg.Redis.QueueKey != "autopost:publishing-jobs" {
			t.Errorf("unexpected queue key %q", cfg.Redis.QueueKey)
		}
		if !cfg.Agents.Medium.IsEnabled() || !cfg.Agents.LinkedIn.IsEnabled() {
			t.Error("expected agents to be enabled by default")
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "server.yaml")
		body := "image:\n  api_key: sk-test\nagents:\n  linkedin:\n    enabled: false\n"
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.Image.APIKey != "sk-test" {
			t.Errorf("expected api key from file, got %q", cfg.Image.APIKey)
		}
		if cfg.Agents.LinkedIn.IsEnabled() {
			t.Error("expected linkedin to be disabled")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
			t.Error("expected error for missing file, got nil")
		}
	})
}
