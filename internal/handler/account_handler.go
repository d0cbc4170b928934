package handler

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/btpmatch/internal/account"
	"github.com/hitoshi/btpmatch/internal/model"
)

// maxUploadBytes はアップロードする画像1枚の上限。
const maxUploadBytes = 10 << 20

// AccountServiceInterface はアカウント管理のハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	UpdateProfile(ctx context.Context, visitorID string, upd account.ProfileUpdate) (*userResponse, error)
	ChangePassword(ctx context.Context, visitorID string, in account.PasswordChange) error
	ToggleAvailability(ctx context.Context, visitorID string) (*userResponse, error)
	Upload(ctx context.Context, visitorID, kind, filename string, content io.Reader) (*userResponse, error)
	DeleteImage(ctx context.Context, visitorID, imageID string) (*userResponse, error)
	DeleteAccount(ctx context.Context, visitorID string) (string, error)
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service    AccountServiceInterface
	terminator SessionTerminator
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, terminator SessionTerminator) *AccountHandler {
	return &AccountHandler{service: service, terminator: terminator}
}

// UpdateProfile はプロフィールを部分更新する。
// PUT /account/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var upd account.ProfileUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	resp, err := h.service.UpdateProfile(r.Context(), visitorID, upd)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ChangePassword はパスワードを変更する。
// PUT /account/password
func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	var in account.PasswordChange
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}

	if err := h.service.ChangePassword(r.Context(), visitorID, in); err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Mot de passe modifié avec succès."})
}

// ToggleAvailability は稼働状況（企業は採用受付）を切り替える。
// POST /account/availability
func (h *AccountHandler) ToggleAvailability(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.ToggleAvailability(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Upload は画像をアップロードする。
// ファイルは種別と同じ名前のフィールド（ギャラリーは images）か file フィールドで受け取る。
// POST /account/uploads/{kind}
func (h *AccountHandler) Upload(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	kind := chi.URLParam(r, "kind")
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		handleServiceError(w, r, h.terminator, model.NewInvalidRequestError("formulaire d'envoi invalide"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := uploadedFile(r, kind)
	if err != nil {
		handleServiceError(w, r, h.terminator, model.NewInvalidRequestError("aucun fichier reçu"))
		return
	}
	defer file.Close()

	resp, err := h.service.Upload(r.Context(), visitorID, kind, header.Filename, file)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func uploadedFile(r *http.Request, kind string) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(kind)
	if err == nil {
		return file, header, nil
	}
	return r.FormFile("file")
}

// DeleteImage はギャラリーの画像を削除する。
// DELETE /account/images/{imageId}
func (h *AccountHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.DeleteImage(r.Context(), visitorID, chi.URLParam(r, "imageId"))
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteAccount は退会処理を実行する。
// DELETE /account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := requireVisitorID(w, r)
	if !ok {
		return
	}

	redirect, err := h.service.DeleteAccount(r.Context(), visitorID)
	if err != nil {
		handleServiceError(w, r, h.terminator, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Votre compte a été supprimé.", Redirect: redirect})
}
