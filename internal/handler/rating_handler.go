package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/btpmatch/internal/rating"
)

// RatingServiceInterface は評価ダイアログのハンドラーが必要とするサービスインターフェース。
type RatingServiceInterface interface {
	OpenRating(ctx context.Context, visitorID, providerID string) (rating.State, error)
	UpdateRating(ctx context.Context, visitorID string, scores map[string]int, comment *string) (rating.State, error)
	SubmitRating(ctx context.Context, visitorID string) (*ratingSubmitResponse, error)
	CancelRating(ctx context.Context, visitorID string) (rating.State, error)
}

// ratingCriteriaRequest は PUT /rating/criteria のリクエストボディ。
type ratingCriteriaRequest struct {
	Scores  map[string]int `json:"scores"`
	Comment *string        `json:"comment"`
}

// RatingHandler は評価ダイアログのHTTPハンドラー。
type RatingHandler struct {
	service    RatingServiceInterface
	terminator SessionTerminator
}

// NewRatingHandler はRatingHandlerを生成する。
func NewRatingHandler(service RatingServiceInterface, terminator SessionTerminator) *RatingHandler {
	return &RatingHandler{service: service, terminator: terminator}
}

// Open は評価ダイアログを開く。評価済みの場合はダイアログを開かずに通知を返す。
// POST /providers/{id}/rating
func (h *RatingHandler) Open(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	state, err := h.service.OpenRating(r.Context(), visitorID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// UpdateCriteria は基準ごとの点数とコメントを更新する。
// PUT /rating/criteria
func (h *RatingHandler) UpdateCriteria(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var req ratingCriteriaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	state, err := h.service.UpdateRating(r.Context(), visitorID, req.Scores, req.Comment)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Submit は評価を送信する。
// POST /rating/submit
func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.SubmitRating(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Cancel は評価ダイアログを閉じる。
// POST /rating/cancel
func (h *RatingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	state, err := h.service.CancelRating(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
