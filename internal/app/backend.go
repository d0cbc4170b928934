package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/btpmatch/internal/config"
	"github.com/hitoshi/btpmatch/internal/database"
	"github.com/hitoshi/btpmatch/internal/repository"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/worker/cleanup"
)

// sessionBackend はセッションKVストアと、その死活監視・後始末をまとめたもの。
type sessionBackend struct {
	kv     repository.KVStore
	purger cleanup.Purger // TTLをストア自身が管理する場合は nil
	health func(ctx context.Context) error
	close  func()
}

// openSessionBackend は SESSION_BACKEND に応じたKVストアを開く。
// postgres の場合は起動時に未適用のマイグレーションを適用する。
func openSessionBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sessionBackend, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		version, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("database connection established",
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
			slog.Uint64("schema_version", uint64(version)),
		)

		kv := repository.NewPostgresKV(db)
		return &sessionBackend{
			kv:     kv,
			purger: kv,
			health: db.PingContext,
			close:  func() { db.Close() },
		}, nil

	case config.SessionBackendRedis:
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		logger.Info("redis connection established")

		return &sessionBackend{
			kv: repository.NewRedisKV(client),
			health: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: func() { client.Close() },
		}, nil

	default:
		kv := repository.NewMemoryKV()
		return &sessionBackend{
			kv:     kv,
			purger: kv,
			close:  func() {},
		}, nil
	}
}

// newBackendHTTPClient はリモートAPI用のHTTPクライアントを生成する。
// BACKEND_STRICT_EGRESS が有効な場合はプライベートアドレスへの接続を拒否するクライアントを使う。
func newBackendHTTPClient(cfg *config.Config, guard security.EgressGuard) (*http.Client, error) {
	if !cfg.BackendStrictEgress {
		return &http.Client{Timeout: cfg.APITimeout}, nil
	}
	port, err := security.PortOf(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BACKEND_URL: %w", err)
	}
	return guard.NewStrictClient(cfg.APITimeout, port), nil
}

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second
