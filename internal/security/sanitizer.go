// Package security はアプリケーションのセキュリティ機能を提供する。
//
// Sanitizer は利用者が入力したテキスト（ミッションの説明、評価のコメント）を
// リモートAPIへ送る前と表示する前に無害化する。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Sanitizer は利用者入力の無害化インターフェース。
type Sanitizer interface {
	// Text はすべてのタグを除去したプレーンテキストを返す。
	// 実体参照は元の文字に戻すため、JSONにそのまま載せられる。
	Text(raw string) string

	// HTML は段落・改行・リスト・強調・httpsリンクだけを残したHTMLを返す。
	// aタグには target="_blank" と rel="noopener noreferrer" が付与される。
	HTML(raw string) string
}

type sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
func NewSanitizer() *sanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("https")
	rich.AllowRelativeURLs(false)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// Text はタグを除去し、前後の空白を取り除く。
func (s *sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// HTML は許可リストに含まれるタグだけを残す。
func (s *sanitizer) HTML(raw string) string {
	return s.rich.Sanitize(raw)
}

var _ Sanitizer = (*sanitizer)(nil)
