package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/technicia/chat-bfa/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	if cfg.BackendURL != "http://localhost:8000" {
		t.Errorf("expected default backend url, got %q", cfg.BackendURL)
	}
	if cfg.BackendProfile != config.ProfileIndex {
		t.Errorf("expected profile %q, got %q", config.ProfileIndex, cfg.BackendProfile)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.MaxRetries)
	}
	if cfg.QueryLimit != 5 {
		t.Errorf("expected query limit 5, got %d", cfg.QueryLimit)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend:9000")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("PORT", "not-a-number")

	cfg := config.Load()

	if cfg.BackendURL != "http://backend:9000" {
		t.Errorf("expected env backend url, got %q", cfg.BackendURL)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m ttl, got %s", cfg.SessionTTL)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected fallback port on bad input, got %d", cfg.Port)
	}
}

func TestLoad_NonPositiveDurationsFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "0s")
	t.Setenv("HTTP_TIMEOUT", "-5s")

	cfg := config.Load()

	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("expected default ttl, got %s", cfg.SessionTTL)
	}
	if cfg.HTTPTimeout != 2*time.Minute {
		t.Errorf("expected default timeout, got %s", cfg.HTTPTimeout)
	}
}

func TestProfile(t *testing.T) {
	p, err := config.Profile(config.ProfileChat)
	if err != nil {
		t.Fatalf("expected chat profile, got %v", err)
	}
	if p.SupportsUpload() {
		t.Error("chat profile must not support upload")
	}
	if p.AnswerField != "response" {
		t.Errorf("expected answer field 'response', got %q", p.AnswerField)
	}
	if p.HealthPath != "/health" {
		t.Errorf("expected chat health path /health, got %q", p.HealthPath)
	}

	p, err = config.Profile(config.ProfileIndex)
	if err != nil {
		t.Fatalf("expected index profile, got %v", err)
	}
	if !p.SupportsUpload() || p.IndexPath != "/api/index/file" {
		t.Errorf("unexpected index profile: %+v", p)
	}

	if _, err := config.Profile("nope"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nBACKEND_PROFILE=chat\nWATCH_DIR=\"/tmp/docs\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BACKEND_PROFILE", "index")
	t.Setenv("WATCH_DIR", "")
	os.Unsetenv("WATCH_DIR")

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := os.Getenv("BACKEND_PROFILE"); got != "index" {
		t.Errorf("expected env to win, got %q", got)
	}
	if got := os.Getenv("WATCH_DIR"); got != "/tmp/docs" {
		t.Errorf("expected value from file, got %q", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}
