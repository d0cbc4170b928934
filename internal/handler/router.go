package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/btpmatch/internal/middleware"
)

// healthTimeout はヘルスチェックでストアに問い合わせる際のタイムアウト。
const healthTimeout = 2 * time.Second

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック（nil の場合は常に正常）
	HealthCheck func(ctx context.Context) error
	// /metrics で公開するハンドラー（nil の場合はルートを登録しない）
	MetricsHandler http.Handler

	// ミドルウェア依存
	Logger            *slog.Logger
	VisitorConfig     middleware.VisitorConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	AuthService     AuthServiceInterface
	ProviderService ProviderServiceInterface
	RatingService   RatingServiceInterface
	MissionService  MissionServiceInterface
	AccountService  AccountServiceInterface
	Terminator      SessionTerminator
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Visitor → Logging → RateLimit(General) → CSRF → RateLimit(Write)
//
// /health と /metrics は訪問者Cookieとレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", healthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Terminator)
	providerHandler := NewProviderHandler(deps.ProviderService, deps.Terminator)
	ratingHandler := NewRatingHandler(deps.RatingService, deps.Terminator)
	missionHandler := NewMissionHandler(deps.MissionService, deps.Terminator)
	accountHandler := NewAccountHandler(deps.AccountService, deps.Terminator)

	// --- 訪問者単位のルート ---
	// ミドルウェアスタック: Visitor → Logging → RateLimit(General) → CSRF → RateLimit(Write)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewVisitorMiddleware(deps.VisitorConfig))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// CSRFトークン取得はCSRF検証の外に置く
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig, logger))
			r.Use(deps.RateLimiter.WriteMiddleware())

			// 認証
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.Me)
				r.Post("/refresh", authHandler.Refresh)
			})

			// 提供者一覧
			r.Route("/providers", func(r chi.Router) {
				r.Get("/", providerHandler.ListProviders)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", providerHandler.GetProvider)
					r.Post("/rating", ratingHandler.Open)
				})
			})

			// フィルタ
			r.Route("/filters", func(r chi.Router) {
				r.Post("/panel", providerHandler.OpenFilterPanel)
				r.Put("/draft", providerHandler.SetFilterDraft)
				r.Post("/apply", providerHandler.ApplyFilters)
				r.Post("/reset", providerHandler.ResetFilterDraft)
				r.Delete("/{key}", providerHandler.RemoveFilter)
			})

			// 評価ダイアログ
			r.Route("/rating", func(r chi.Router) {
				r.Put("/criteria", ratingHandler.UpdateCriteria)
				r.Post("/submit", ratingHandler.Submit)
				r.Post("/cancel", ratingHandler.Cancel)
			})

			// ミッション
			r.Route("/missions", func(r chi.Router) {
				r.Get("/", missionHandler.ListMissions)
				r.Post("/", missionHandler.CreateMission)
				r.Get("/mine", missionHandler.MyMissions)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", missionHandler.GetMission)
					r.Put("/", missionHandler.UpdateMission)
					r.Post("/status", missionHandler.ChangeStatus)
					r.Post("/apply", missionHandler.Apply)
					r.Get("/applications", missionHandler.ListApplications)
				})
			})

			// 応募
			r.Route("/applications", func(r chi.Router) {
				r.Get("/mine", missionHandler.MyApplications)
				r.Patch("/{id}", missionHandler.UpdateApplicationStatus)
			})

			// アカウント管理
			r.Route("/account", func(r chi.Router) {
				r.Delete("/", accountHandler.DeleteAccount)
				r.Put("/profile", accountHandler.UpdateProfile)
				r.Put("/password", accountHandler.ChangePassword)
				r.Post("/availability", accountHandler.ToggleAvailability)
				r.Post("/uploads/{kind}", accountHandler.Upload)
				r.Delete("/images/{imageId}", accountHandler.DeleteImage)
			})

			// 連絡先の表示切り替え
			r.Route("/toggles", func(r chi.Router) {
				r.Post("/phone/{id}", providerHandler.TogglePhone)
				r.Post("/email", providerHandler.ToggleEmail)
			})
		})
	})

	return r
}

// healthHandler は GET /health のハンドラーを返す。
// セッションストアに到達できない場合は503を返す。
func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
