// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/middleware"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/session"
	"github.com/hitoshi/btpmatch/internal/validation"
)

// maxBodyBytes はJSONリクエストボディの上限。
const maxBodyBytes = 1 << 20

// SessionTerminator はリモートAPIの401を受けたときに訪問者のセッションを終了させる。
// 戻り値はリダイレクト先。
type SessionTerminator interface {
	ForceLogout(ctx context.Context, visitorID string) string
}

// messageResponse は結果メッセージだけを返すレスポンス。
type messageResponse struct {
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvにデコードする。
// 不正なJSONは INVALID_REQUEST として返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewInvalidRequestError("corps JSON invalide")
	}
	return nil
}

// requireVisitorID はコンテキストから訪問者IDを取り出す。
// 無ければ400を書き込み ok=false を返す。
func requireVisitorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	visitorID, err := middleware.VisitorIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("visiteur inconnu"))
		return "", false
	}
	return visitorID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// リモートAPIの401はセッションを終了させ、ログイン画面へのリダイレクト先を添えて返す。
func handleServiceError(w http.ResponseWriter, r *http.Request, terminator SessionTerminator, err error) {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		redirect := session.LoginPath
		if visitorID, idErr := middleware.VisitorIDFromContext(r.Context()); idErr == nil && terminator != nil {
			redirect = terminator.ForceLogout(r.Context(), visitorID)
		}
		middleware.WriteErrorResponseWithRedirect(w, http.StatusUnauthorized, model.NewUnauthorizedError(), redirect)
		return
	}

	var verr *validation.Error
	if errors.As(err, &verr) {
		middleware.WriteErrorResponse(w, http.StatusUnprocessableEntity, model.NewValidationError(verr.Violations))
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode == http.StatusUnauthorized {
			middleware.WriteErrorResponseWithRedirect(w, statusCode, apiErr, session.LoginPath)
			return
		}
		middleware.WriteErrorResponse(w, statusCode, apiErr)
		return
	}

	var statusErr *apiclient.StatusError
	if errors.As(err, &statusErr) {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewRemoteAPIError(statusErr.Message))
		return
	}

	var transportErr *apiclient.TransportError
	if errors.As(err, &transportErr) {
		slog.Warn("remote api unreachable",
			slog.String("route", transportErr.Route),
			slog.String("error", transportErr.Err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewRemoteUnavailableError())
		return
	}

	slog.Error("internal server error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidFilterKey, model.ErrCodeInvalidUploadKind:
		return http.StatusBadRequest
	case model.ErrCodeValidationFailed, model.ErrCodeRatingIncomplete:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSelfRating, model.ErrCodeNotProfessional, model.ErrCodeOwnMission, model.ErrCodeNotMissionOwner:
		return http.StatusForbidden
	case model.ErrCodeMissionNotFound, model.ErrCodeApplicationNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyRated, model.ErrCodeAlreadyApplied, model.ErrCodeMissionNotOpen,
		model.ErrCodeInvalidStatusTransition, model.ErrCodeRatingNotOpen:
		return http.StatusConflict
	case model.ErrCodeRemoteAPIFailed:
		return http.StatusBadGateway
	case model.ErrCodeRemoteUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
