package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// clearEnv はテストに影響する環境変数を空にする。
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BACKEND_URL", "API_TIMEOUT", "BACKEND_STRICT_EGRESS",
		"SESSION_BACKEND", "SESSION_TTL", "WORKSPACE_IDLE_TTL", "CLEANUP_SCHEDULE",
		"DATABASE_URL", "REDIS_URL", "PAGE_SIZE", "RATE_LIMIT_GENERAL", "RATE_LIMIT_WRITE",
		"LOG_LEVEL", "SERVER_PORT", "BASE_URL", "COOKIE_DOMAIN", "CORS_ALLOWED_ORIGIN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.BackendURL != "http://localhost:5000" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.SessionBackend != SessionBackendMemory {
		t.Errorf("SessionBackend = %q, want memory", cfg.SessionBackend)
	}
	if cfg.SessionTTL != 720*time.Hour || cfg.WorkspaceIdleTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %v, WorkspaceIdleTTL = %v", cfg.SessionTTL, cfg.WorkspaceIdleTTL)
	}
	if cfg.CleanupSchedule != "@every 10m" {
		t.Errorf("CleanupSchedule = %q", cfg.CleanupSchedule)
	}
	if cfg.APITimeout != 10*time.Second {
		t.Errorf("APITimeout = %v", cfg.APITimeout)
	}
	if cfg.PageSize != 9 {
		t.Errorf("PageSize = %d, want 9", cfg.PageSize)
	}
	if cfg.RateLimitGeneral != 120 || cfg.RateLimitWrite != 20 {
		t.Errorf("rate limits = %d/%d", cfg.RateLimitGeneral, cfg.RateLimitWrite)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.ServerPort != "8080" || cfg.CookieSecure {
		t.Errorf("ServerPort = %q, CookieSecure = %v", cfg.ServerPort, cfg.CookieSecure)
	}
	if cfg.BackendStrictEgress {
		t.Error("BackendStrictEgress should default to false")
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "https://api.btp.example.fr/")
	t.Setenv("BASE_URL", "https://btp.example.fr")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKEND_STRICT_EGRESS", "true")
	t.Setenv("PAGE_SIZE", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.BackendURL != "https://api.btp.example.fr" {
		t.Errorf("BackendURL = %q, trailing slash should be trimmed", cfg.BackendURL)
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true for https BASE_URL")
	}
	if cfg.SessionBackend != SessionBackendRedis || cfg.RedisURL == "" {
		t.Errorf("SessionBackend = %q, RedisURL = %q", cfg.SessionBackend, cfg.RedisURL)
	}
	if cfg.LogLevel != slog.LevelDebug || !cfg.BackendStrictEgress || cfg.PageSize != 12 {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

// TestLoad_BackendRequiresURL は永続化先に応じた必須変数の欠落を検証する。
func TestLoad_BackendRequiresURL(t *testing.T) {
	tests := []struct {
		backend string
		missing string
	}{
		{"postgres", "DATABASE_URL"},
		{"redis", "REDIS_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("SESSION_BACKEND", tt.backend)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("error should mention %s: %v", tt.missing, err)
			}
		})
	}
}

// TestLoad_InvalidValuesAreReportedTogether は不正な値がまとめて報告されることを検証する。
func TestLoad_InvalidValuesAreReportedTogether(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_TIMEOUT", "soon")
	t.Setenv("PAGE_SIZE", "0")
	t.Setenv("LOG_LEVEL", "verbose")
	t.Setenv("SESSION_BACKEND", "mongo")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, key := range []string{"API_TIMEOUT", "PAGE_SIZE", "LOG_LEVEL", "SESSION_BACKEND"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error should mention %s: %v", key, err)
		}
	}
}
