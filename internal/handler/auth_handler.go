package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/btpmatch/internal/auth"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.Registration) (string, error)
	Login(ctx context.Context, visitorID string, in auth.Credentials) (*sessionResponse, error)
	Logout(ctx context.Context, visitorID string) (string, error)
	Me(ctx context.Context, visitorID string) (*sessionResponse, error)
	Refresh(ctx context.Context, visitorID string) (*sessionResponse, error)
}

// AuthHandler は新規登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service    AuthServiceInterface
	terminator SessionTerminator
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, terminator SessionTerminator) *AuthHandler {
	return &AuthHandler{service: service, terminator: terminator}
}

// Register は新規登録を行う。登録後はログイン画面へ誘導する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in auth.Registration
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	msg, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: msg, Redirect: "/login"})
}

// Login はログインしてセッションを返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var in auth.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	resp, err := h.service.Login(r.Context(), visitorID, in)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	redirect, err := h.service.Logout(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Redirect: redirect})
}

// Me は現在のセッションを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Me(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh はリモートAPIからユーザーを取り直す。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Refresh(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
