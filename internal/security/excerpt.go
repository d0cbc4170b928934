package security

import (
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// DefaultExcerptLength はカード表示用の抜粋の最大文字数（rune数）。
const DefaultExcerptLength = 160

// skipped はテキストとして扱わない要素。
var skipped = map[string]bool{
	"script": true,
	"style":  true,
}

// Excerpt はHTMLまたはプレーンテキストから本文を取り出し、
// 連続する空白を1つにまとめて最大maxRunes文字に切り詰める。
// 切り詰めた場合は末尾に "…" を付ける。
func Excerpt(content string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptLength
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(content))
	depth := 0
loop:
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return ""
			}
			break loop
		case html.StartTagToken:
			name, _ := z.TagName()
			if skipped[string(name)] {
				depth++
			}
			// ブロック要素の境界で単語がつながらないようにする
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipped[string(name)] && depth > 0 {
				depth--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}
		}
	}

	text := strings.Join(strings.FieldsFunc(b.String(), unicode.IsSpace), " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return strings.TrimRightFunc(string(runes[:maxRunes]), unicode.IsSpace) + "…"
}
