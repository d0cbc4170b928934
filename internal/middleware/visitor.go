// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

const visitorCookieName = "btp_visitor"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// visitorIDContextKey はリクエストコンテキストに訪問者IDを格納するためのキー。
var visitorIDContextKey = contextKey("visitor_id")

// VisitorConfig は訪問者Cookieの設定。
type VisitorConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // 秒
}

// NewVisitorMiddleware は訪問者IDのCookieを読み取り、コンテキストに注入するミドルウェアを返す。
// Cookieが無い、またはUUIDとして不正な場合は新しい訪問者IDを発行する。
// 訪問者IDはセッションとワークスペースのキーになる。ログイン状態とは独立している。
func NewVisitorMiddleware(config VisitorConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			visitorID := ""
			if cookie, err := r.Cookie(visitorCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					visitorID = id.String()
				}
			}

			if visitorID == "" {
				visitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     visitorCookieName,
					Value:    visitorID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), visitorIDContextKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VisitorIDFromContext はリクエストコンテキストから訪問者IDを取得する。
// 訪問者ミドルウェアを通過したリクエストでのみ有効。
func VisitorIDFromContext(ctx context.Context) (string, error) {
	visitorID, ok := ctx.Value(visitorIDContextKey).(string)
	if !ok || visitorID == "" {
		return "", fmt.Errorf("visitor ID not found in context")
	}
	return visitorID, nil
}

// ContextWithVisitorID はコンテキストに訪問者IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithVisitorID(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, visitorIDContextKey, visitorID)
}
