package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"GARDEN_PORT", "GARDEN_API_URL", "GARDEN_UI_DIR", "GARDEN_POLL_INTERVAL",
		"GARDEN_COMPLETION_DELAY", "GARDEN_ACCESS_TOKENS", "GARDEN_KUBE_ENABLED",
		"GARDEN_POLL_MAX_ATTEMPTS",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.Port != "8900" {
		t.Errorf("Port = %q, want 8900", cfg.Port)
	}
	if !cfg.Detached() {
		t.Error("expected detached mode with no GARDEN_API_URL")
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.CompletionDelay != 3*time.Second {
		t.Errorf("CompletionDelay = %v, want 3s", cfg.CompletionDelay)
	}
	if len(cfg.AccessTokens) != 0 {
		t.Errorf("AccessTokens = %v, want none", cfg.AccessTokens)
	}
	if cfg.KubeEnabled {
		t.Error("KubeEnabled should default to false")
	}
	if cfg.PollMaxAttempts != 0 {
		t.Errorf("PollMaxAttempts = %d, want 0", cfg.PollMaxAttempts)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GARDEN_PORT", "9999")
	t.Setenv("GARDEN_API_URL", "https://deploy.example.com")
	t.Setenv("GARDEN_POLL_INTERVAL", "500ms")
	t.Setenv("GARDEN_COMPLETION_DELAY", "not-a-duration")
	t.Setenv("GARDEN_ACCESS_TOKENS", " ghp_one , ,ghp_two")
	t.Setenv("GARDEN_S3_USE_SSL", "false")
	t.Setenv("GARDEN_POLL_MAX_ATTEMPTS", "120")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if cfg.Detached() {
		t.Error("expected live mode with GARDEN_API_URL set")
	}
	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v, want 500ms", cfg.PollInterval)
	}
	if cfg.CompletionDelay != 3*time.Second {
		t.Errorf("CompletionDelay = %v, want fallback 3s", cfg.CompletionDelay)
	}
	if len(cfg.AccessTokens) != 2 || cfg.AccessTokens[0] != "ghp_one" || cfg.AccessTokens[1] != "ghp_two" {
		t.Errorf("AccessTokens = %v", cfg.AccessTokens)
	}
	if cfg.S3UseSSL {
		t.Error("S3UseSSL should be false")
	}
	if cfg.PollMaxAttempts != 120 {
		t.Errorf("PollMaxAttempts = %d, want 120", cfg.PollMaxAttempts)
	}
}

func TestDetached(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"", true},
		{"mock", true},
		{" MOCK ", true},
		{"http://localhost:8080", false},
	}
	for _, tt := range tests {
		if got := Detached(tt.url); got != tt.want {
			t.Errorf("Detached(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
