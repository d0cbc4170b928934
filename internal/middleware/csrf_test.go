package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func csrfHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{}, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

// TestCSRFMiddleware_SafeMethods_PassWithoutToken は安全なメソッドがトークン無しで通過することを検証する。
func TestCSRFMiddleware_SafeMethods_PassWithoutToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		called := false
		req := httptest.NewRequest(method, "/providers", nil)
		w := httptest.NewRecorder()

		csrfHandler(&called).ServeHTTP(w, req)

		if !called || w.Code != http.StatusOK {
			t.Errorf("%s: called=%v status=%d", method, called, w.Code)
		}
	}
}

// TestCSRFMiddleware_StateChangingMethods は状態変更メソッドのトークン検証を検証する。
func TestCSRFMiddleware_StateChangingMethods(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"no cookie", "", "tok", http.StatusForbidden},
		{"no header", "tok", "", http.StatusForbidden},
		{"mismatch", "tok", "other", http.StatusForbidden},
		{"match", "tok", "tok", http.StatusOK},
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		for _, tt := range tests {
			t.Run(method+" "+tt.name, func(t *testing.T) {
				called := false
				req := httptest.NewRequest(method, "/missions", nil)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(csrfHeaderName, tt.header)
				}
				w := httptest.NewRecorder()

				csrfHandler(&called).ServeHTTP(w, req)

				if w.Code != tt.wantStatus {
					t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
				}
				if called != (tt.wantStatus == http.StatusOK) {
					t.Errorf("handler called = %v", called)
				}
			})
		}
	}
}

// TestCSRFMiddleware_RejectionIsJSON は拒否時に統一エラーフォーマットを返すことを検証する。
func TestCSRFMiddleware_RejectionIsJSON(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodPost, "/rating/submit", nil)
	w := httptest.NewRecorder()

	csrfHandler(&called).ServeHTTP(w, req)

	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != errCodeCSRFRejected || body.Message == "" {
		t.Errorf("unexpected body: %+v", body)
	}
}

// TestCSRFMiddleware_GETRequest_SetsCookieOnce はCookieが無い場合だけ発行することを検証する。
func TestCSRFMiddleware_GETRequest_SetsCookieOnce(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	w := httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, req)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != csrfCookieName || cookies[0].Value == "" {
		t.Fatalf("expected a csrf cookie, got %+v", cookies)
	}
	if cookies[0].HttpOnly {
		t.Error("csrf cookie must be readable from JavaScript")
	}

	req = httptest.NewRequest(http.MethodGet, "/providers", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	csrfHandler(&called).ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("existing cookie should not be replaced")
	}
}

// TestCSRFTokenHandler_ReturnsCookieToken はトークン取得エンドポイントがCookieと同じ値を返すことを検証する。
func TestCSRFTokenHandler_ReturnsCookieToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	w := httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{CookieSecure: true}).ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != body["token"] {
		t.Errorf("token %q does not match cookie %+v", body["token"], cookies)
	}
	if !cookies[0].Secure {
		t.Error("cookie should be secure when configured")
	}

	req = httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w = httptest.NewRecorder()
	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)
	json.NewDecoder(w.Body).Decode(&body)
	if body["token"] != "existing" {
		t.Errorf("token = %q, want existing", body["token"])
	}
}
