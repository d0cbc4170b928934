package display

import (
	"strings"
	"unicode"
)

// Trade は職種カタログの1件。
type Trade struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
}

// Trades は職種カタログ。表示順を兼ねる。
var Trades = []Trade{
	{ID: "peintre", Label: "Peintre", Color: "bg-orange-500"},
	{ID: "plombier", Label: "Plombier", Color: "bg-blue-500"},
	{ID: "macon", Label: "Maçon", Color: "bg-amber-600"},
	{ID: "electricien", Label: "Électricien", Color: "bg-yellow-500"},
	{ID: "menuisier", Label: "Menuisier", Color: "bg-amber-800"},
	{ID: "carreleur", Label: "Carreleur", Color: "bg-teal-500"},
}

const defaultTradeColor = "bg-gray-500"

// LookupTrade はIDから職種を探す。
func LookupTrade(id string) (Trade, bool) {
	for _, t := range Trades {
		if t.ID == id {
			return t, true
		}
	}
	return Trade{}, false
}

// TradeName は職種のラベルを返す。カタログに無ければIDをそのまま返す。
func TradeName(id string) string {
	if t, ok := LookupTrade(id); ok {
		return t.Label
	}
	return id
}

// TradeColor は職種バッジの色クラスを返す。
func TradeColor(id string) string {
	if t, ok := LookupTrade(id); ok {
		return t.Color
	}
	return defaultTradeColor
}

// BlurredPhone は電話番号の先頭4桁だけを残して伏せる。
// 10桁の番号は "06 12 •• •• ••" の形式、それ以外はすべての数字を伏せる。
func BlurredPhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)

	if len([]rune(cleaned)) == 10 {
		r := []rune(cleaned)
		return string(r[0:2]) + " " + string(r[2:4]) + " •• •• ••"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return '•'
		}
		return r
	}, cleaned)
}

// BlurredEmail はメールアドレスのローカル部の先頭3文字とドメインだけを残す。
// ローカル部が3文字以下なら "*@domain" を返す。
func BlurredEmail(email string) string {
	local, domain, _ := strings.Cut(email, "@")
	r := []rune(local)
	if len(r) <= 3 {
		return "*@" + domain
	}
	return string(r[:3]) + "***@" + domain
}
