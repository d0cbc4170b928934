package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/btpmatch/internal/account"
	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/auth"
	"github.com/hitoshi/btpmatch/internal/config"
	"github.com/hitoshi/btpmatch/internal/database"
	"github.com/hitoshi/btpmatch/internal/handler"
	"github.com/hitoshi/btpmatch/internal/logger"
	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/middleware"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/session"
	"github.com/hitoshi/btpmatch/internal/worker/cleanup"
	"github.com/hitoshi/btpmatch/internal/workspace"
)

// Init はアプリケーションの初期化を行う。
// 設定読み込み前にINFOレベルでログを使えるようにし、読み込み後にLOG_LEVELで設定し直す。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_url", cfg.BackendURL),
		slog.String("session_backend", cfg.SessionBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg, log)
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(ctx, cfg, log)
	}
}

// runServe はBFFサーバーモードで起動する。
// セッションストアを開き、全依存関係をワイヤリングし、HTTPサーバーとクリーンアップスケジューラを起動する。
// ctx がキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	backend, err := openSessionBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	guard := security.NewEgressGuard()
	httpClient, err := newBackendHTTPClient(cfg, guard)
	if err != nil {
		return err
	}
	remote := apiclient.NewClient(httpClient, cfg.BackendURL, log, collector)
	sanitizer := security.NewSanitizer()

	sessions := session.NewStore(backend.kv, remote, cfg.SessionTTL, log, collector)
	registry := workspace.NewRegistry(workspace.Deps{
		Sessions:  sessions,
		Providers: remote,
		Missions:  remote,
		Reviews:   remote,
		Sanitizer: sanitizer,
		PageSize:  cfg.PageSize,
		Logger:    log,
		Metrics:   collector,
	})
	services := handler.NewWorkspaceServices(registry,
		auth.NewService(remote, log),
		account.NewService(remote, guard, sanitizer),
		remote, sanitizer, log)

	limiter := middleware.NewRateLimiter(
		middleware.PerMinuteConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite), log)
	defer limiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		HealthCheck:    backend.health,
		MetricsHandler: metrics.Handler(reg),
		Logger:         log,
		VisitorConfig: middleware.VisitorConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       int(cfg.SessionTTL / time.Second),
		},
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,

		AuthService:     services,
		ProviderService: services,
		RatingService:   services,
		MissionService:  services,
		AccountService:  services,
		Terminator:      services,
	})

	// ワークスペースはこのプロセスのメモリにあるため、破棄はサーバー自身が行う
	job := cleanup.NewCleanupJob(backend.purger, registry, log)
	job.IdleTTL = cfg.WorkspaceIdleTTL
	scheduler := cleanup.NewScheduler(job, cfg.CleanupSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.APITimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("BFF server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down BFF server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("BFF server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 共有ストア（PostgreSQL）の期限切れセッションを定期的に削除する。
// ワークスペースはサーバープロセスが保持するため、ここでは扱わない。
func runWorker(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.SessionBackend != config.SessionBackendPostgres {
		return fmt.Errorf("worker requires SESSION_BACKEND=%s, got %q", config.SessionBackendPostgres, cfg.SessionBackend)
	}

	backend, err := openSessionBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backend.close()

	scheduler := cleanup.NewScheduler(cleanup.NewCleanupJob(backend.purger, nil, log), cfg.CleanupSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	log.Info("worker starting", slog.String("schedule", cfg.CleanupSchedule))
	<-ctx.Done()
	log.Info("shutting down worker...")
	scheduler.Stop()

	log.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}

	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
