package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized はリモートAPIが401を返したことを表す。
// セッションの強制ログアウトを判断する唯一のシグナル。
var ErrUnauthorized = errors.New("リモートAPIが認証エラー(401)を返しました")

// StatusError はリモートAPIが2xx以外を返した場合のエラー。
// Message にはレスポンスボディの {message} を格納する（無ければ空）。
type StatusError struct {
	Route      string
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: ステータス %d: %s", e.Route, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: ステータス %d", e.Route, e.StatusCode)
}

// Is は 401 の StatusError を ErrUnauthorized と同一視する。
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// TransportError はリモートAPIへの通信自体が失敗した場合のエラー。
type TransportError struct {
	Route string
	Err   error
}

// Error はerrorインターフェースを実装する。
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: 通信に失敗しました: %v", e.Route, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound はリモートAPIが404を返したかを判定する。
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// ServerMessage はエラーに含まれるサーバー側メッセージを返す。
func ServerMessage(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
