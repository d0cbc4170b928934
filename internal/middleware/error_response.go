package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/btpmatch/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category"`
	Action   string            `json:"action"`
	Fields   map[string]string `json:"fields,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteErrorResponseWithRedirect(w, statusCode, apiErr, "")
}

// WriteErrorResponseWithRedirect はリダイレクト先を添えてエラーレスポンスを書き込む。
// セッション失効時にログイン画面へ誘導するために使う。
func WriteErrorResponseWithRedirect(w http.ResponseWriter, statusCode int, apiErr *model.APIError, redirect string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Fields:   apiErr.Fields,
		Redirect: redirect,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Une erreur interne est survenue.",
		Category: "system",
		Action:   "Veuillez réessayer dans quelques instants.",
	})
}

func writeForbidden(w http.ResponseWriter, code, message string) {
	WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
		Code:     code,
		Message:  message,
		Category: "system",
		Action:   "Rechargez la page puis réessayez.",
	})
}
