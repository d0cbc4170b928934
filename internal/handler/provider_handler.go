package handler

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/btpmatch/internal/display"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/search"
)

// ProviderServiceInterface は提供者一覧・フィルタ・連絡先表示のハンドラーが必要とするサービスインターフェース。
type ProviderServiceInterface interface {
	ListProviders(ctx context.Context, visitorID string, page int, query url.Values) (*providerPageResponse, error)
	GetProvider(ctx context.Context, visitorID, providerID string) (*display.Profile, error)
	OpenFilterPanel(ctx context.Context, visitorID string) (*filterPanelResponse, error)
	SetFilterDraft(ctx context.Context, visitorID string, draft search.Criteria) (*filterPanelResponse, error)
	ApplyFilters(ctx context.Context, visitorID string) (*providerPageResponse, error)
	ResetFilterDraft(ctx context.Context, visitorID string) (*filterPanelResponse, error)
	RemoveFilter(ctx context.Context, visitorID string, key search.FilterKey) (*providerPageResponse, error)
	TogglePhone(ctx context.Context, visitorID, providerID string) (*toggleResponse, error)
	ToggleEmail(ctx context.Context, visitorID string) (*toggleResponse, error)
}

// ProviderHandler は提供者検索のHTTPハンドラー。
type ProviderHandler struct {
	service    ProviderServiceInterface
	terminator SessionTerminator
}

// NewProviderHandler はProviderHandlerを生成する。
func NewProviderHandler(service ProviderServiceInterface, terminator SessionTerminator) *ProviderHandler {
	return &ProviderHandler{service: service, terminator: terminator}
}

// ListProviders は提供者一覧の指定ページを返す。
// クエリにフィルタ項目が含まれていれば、その条件で適用済みフィルタを置き換える。
// GET /providers?page=N
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page := 0
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			handleServiceError(w, r, h.terminator, model.NewInvalidRequestError("numéro de page invalide"))
			return
		}
		page = n
	}

	resp, err := h.service.ListProviders(r.Context(), visitorID, page, query)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProvider は提供者のプロフィールを返す。
// GET /providers/{id}
func (h *ProviderHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProvider(r.Context(), visitorID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// OpenFilterPanel はフィルタパネルを開く。
// POST /filters/panel
func (h *ProviderHandler) OpenFilterPanel(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.OpenFilterPanel(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetFilterDraft は下書きの条件を置き換える。
// PUT /filters/draft
func (h *ProviderHandler) SetFilterDraft(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var draft search.Criteria
	if err := decodeJSON(w, r, &draft); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	if draft.MinRating < 0 || draft.MinRating > 5 {
		handleServiceError(w, r, h.terminator, model.NewInvalidRequestError("note minimale hors limites"))
		return
	}

	resp, err := h.service.SetFilterDraft(r.Context(), visitorID, draft)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApplyFilters は下書きを確定して一覧を取得し直す。
// POST /filters/apply
func (h *ProviderHandler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ApplyFilters(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ResetFilterDraft は下書きをデフォルトに戻す。適用済みの条件は変えない。
// POST /filters/reset
func (h *ProviderHandler) ResetFilterDraft(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ResetFilterDraft(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// RemoveFilter は適用済みの条件を1つ外す。
// DELETE /filters/{key}
func (h *ProviderHandler) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	raw := chi.URLParam(r, "key")
	key, valid := search.ParseFilterKey(raw)
	if !valid {
		handleServiceError(w, r, h.terminator, model.NewInvalidFilterKeyError(raw))
		return
	}

	resp, err := h.service.RemoveFilter(r.Context(), visitorID, key)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// TogglePhone は提供者の電話番号の表示を切り替える。
// POST /toggles/phone/{id}
func (h *ProviderHandler) TogglePhone(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.TogglePhone(r.Context(), visitorID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ToggleEmail はメールアドレスの表示を切り替える。
// POST /toggles/email
func (h *ProviderHandler) ToggleEmail(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ToggleEmail(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
