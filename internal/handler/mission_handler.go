package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/btpmatch/internal/mission"
	"github.com/hitoshi/btpmatch/internal/model"
)

// MissionServiceInterface はミッション関連のハンドラーが必要とするサービスインターフェース。
type MissionServiceInterface interface {
	ListMissions(ctx context.Context, visitorID string, filter mission.ListFilter) ([]missionResponse, error)
	MyMissions(ctx context.Context, visitorID string) ([]missionResponse, error)
	GetMission(ctx context.Context, visitorID, missionID string) (*missionDetailResponse, error)
	CreateMission(ctx context.Context, visitorID string, form mission.Form) (*missionResponse, error)
	UpdateMission(ctx context.Context, visitorID, missionID string, edit mission.Edit) (*missionResponse, error)
	ChangeMissionStatus(ctx context.Context, visitorID, missionID string, status model.MissionStatus) (*missionResponse, error)
	Apply(ctx context.Context, visitorID, missionID string) (*applicationResponse, error)
	ListApplications(ctx context.Context, visitorID, missionID string) ([]applicationResponse, error)
	UpdateApplicationStatus(ctx context.Context, visitorID, applicationID string, status model.ApplicationStatus) (*applicationResponse, error)
	MyApplications(ctx context.Context, visitorID string) ([]applicationResponse, error)
}

// statusRequest はミッション・応募の状態変更リクエスト。
type statusRequest struct {
	Status string `json:"status"`
}

// MissionHandler はミッションと応募のHTTPハンドラー。
type MissionHandler struct {
	service    MissionServiceInterface
	terminator SessionTerminator
}

// NewMissionHandler はMissionHandlerを生成する。
func NewMissionHandler(service MissionServiceInterface, terminator SessionTerminator) *MissionHandler {
	return &MissionHandler{service: service, terminator: terminator}
}

// ListMissions はミッション一覧を返す。trade, location, duration, budget, status で絞り込める。
// GET /missions
func (h *MissionHandler) ListMissions(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ListMissions(r.Context(), visitorID, mission.FilterFromQuery(r.URL.Query()))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MyMissions はログイン中のユーザーが投稿したミッションを返す。
// GET /missions/mine
func (h *MissionHandler) MyMissions(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.MyMissions(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetMission はミッション詳細を返す。
// GET /missions/{id}
func (h *MissionHandler) GetMission(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.GetMission(r.Context(), visitorID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateMission はミッションを投稿する。
// POST /missions
func (h *MissionHandler) CreateMission(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var form mission.Form
	if err := decodeJSON(w, r, &form); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	resp, err := h.service.CreateMission(r.Context(), visitorID, form)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// UpdateMission はミッションのタイトルと説明を更新する。投稿者のみ。
// PUT /missions/{id}
func (h *MissionHandler) UpdateMission(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var edit mission.Edit
	if err := decodeJSON(w, r, &edit); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	resp, err := h.service.UpdateMission(r.Context(), visitorID, chi.URLParam(r, "id"), edit)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChangeStatus はミッションの状態を変更する。投稿者のみ。
// POST /missions/{id}/status
func (h *MissionHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	status, valid := model.ParseMissionStatus(req.Status)
	if !valid {
		handleServiceError(w, r, h.terminator, model.NewInvalidRequestError("statut de mission inconnu"))
		return
	}

	resp, err := h.service.ChangeMissionStatus(r.Context(), visitorID, chi.URLParam(r, "id"), status)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Apply はミッションに応募する。
// POST /missions/{id}/apply
func (h *MissionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Apply(r.Context(), visitorID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListApplications はミッションへの応募一覧を返す。
// GET /missions/{id}/applications
func (h *MissionHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ListApplications(r.Context(), visitorID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateApplicationStatus は応募を承認または却下する。
// PATCH /applications/{id}
func (h *MissionHandler) UpdateApplicationStatus(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	status, valid := model.ParseApplicationStatus(req.Status)
	if !valid {
		handleServiceError(w, r, h.terminator, model.NewInvalidRequestError("statut de candidature inconnu"))
		return
	}

	resp, err := h.service.UpdateApplicationStatus(r.Context(), visitorID, chi.URLParam(r, "id"), status)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MyApplications はログイン中のユーザーの応募一覧を返す。
// GET /applications/mine
func (h *MissionHandler) MyApplications(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.MyApplications(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
