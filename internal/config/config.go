package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// セッションの永続化先。
const (
	SessionBackendMemory   = "memory"
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote API
	BackendURL          string
	APITimeout          time.Duration
	BackendStrictEgress bool

	// Session
	SessionBackend   string
	SessionTTL       time.Duration
	WorkspaceIdleTTL time.Duration
	CleanupSchedule  string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	RedisURL          string

	// Listing
	PageSize int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitWrite   int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は .env（存在すれば）と環境変数からConfigを読み込む。
// 既に設定されている環境変数は .env で上書きしない。
// 必須環境変数の欠落と不正な値はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	env := &envReader{}
	cfg := &Config{}

	cfg.BackendURL = strings.TrimRight(env.string("BACKEND_URL", "http://localhost:5000"), "/")
	cfg.APITimeout = env.duration("API_TIMEOUT", 10*time.Second)
	cfg.BackendStrictEgress = env.bool("BACKEND_STRICT_EGRESS", false)

	cfg.SessionBackend = strings.ToLower(env.string("SESSION_BACKEND", SessionBackendMemory))
	cfg.SessionTTL = env.duration("SESSION_TTL", 720*time.Hour)
	cfg.WorkspaceIdleTTL = env.duration("WORKSPACE_IDLE_TTL", 2*time.Hour)
	cfg.CleanupSchedule = env.string("CLEANUP_SCHEDULE", "@every 10m")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DBMaxOpenConns = env.int("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = env.int("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = env.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.PageSize = env.int("PAGE_SIZE", 9)
	cfg.RateLimitGeneral = env.int("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = env.int("RATE_LIMIT_WRITE", 20)
	cfg.LogLevel = env.level("LOG_LEVEL", slog.LevelInfo)

	cfg.ServerPort = env.string("SERVER_PORT", "8080")
	cfg.BaseURL = env.string("BASE_URL", "http://localhost:8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = env.string("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = env.string("CORS_ALLOWED_ORIGIN", "")

	switch cfg.SessionBackend {
	case SessionBackendMemory:
	case SessionBackendPostgres:
		if cfg.DatabaseURL == "" {
			env.missing = append(env.missing, "DATABASE_URL")
		}
	case SessionBackendRedis:
		if cfg.RedisURL == "" {
			env.missing = append(env.missing, "REDIS_URL")
		}
	default:
		env.invalid = append(env.invalid, "SESSION_BACKEND")
	}

	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		env.invalid = append(env.invalid, "BACKEND_URL")
	}
	if cfg.PageSize <= 0 {
		env.invalid = append(env.invalid, "PAGE_SIZE")
	}
	if cfg.RateLimitGeneral <= 0 {
		env.invalid = append(env.invalid, "RATE_LIMIT_GENERAL")
	}
	if cfg.RateLimitWrite <= 0 {
		env.invalid = append(env.invalid, "RATE_LIMIT_WRITE")
	}

	if err := env.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envReader は環境変数を型付きで読み、欠落と不正な値を記録する。
type envReader struct {
	missing []string
	invalid []string
}

func (e *envReader) err() error {
	var parts []string
	if len(e.missing) > 0 {
		parts = append(parts, fmt.Sprintf("required environment variables are not set: %v", e.missing))
	}
	if len(e.invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid environment variables: %v", e.invalid))
	}
	if len(parts) == 0 {
		return nil
	}
	return errors.New(strings.Join(parts, "; "))
}

func (e *envReader) string(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (e *envReader) int(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return i
}

func (e *envReader) bool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return b
}

func (e *envReader) duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return d
}

func (e *envReader) level(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		e.invalid = append(e.invalid, key)
		return defaultVal
	}
	return lvl
}
