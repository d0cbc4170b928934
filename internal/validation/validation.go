// Package validation はフォーム入力の検証ヘルパーを提供する。
// 検証結果はフィールド名 → メッセージの Violations に蓄積し、
// ネットワーク呼び出しの前に送信をブロックするために使う。
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Violations はフィールドごとの検証エラーメッセージ。
type Violations map[string]string

// Empty は違反が1件もないかを返す。
func (v Violations) Empty() bool { return len(v) == 0 }

// add は同じフィールドに最初に付いたメッセージを優先して記録する。
func (v Violations) add(field, msg string) {
	if _, exists := v[field]; !exists {
		v[field] = msg
	}
}

// Err は違反があれば *Error を、なければ nil を返す。
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Violations: v}
}

// Error は検証失敗を表すエラー型。
type Error struct {
	Violations Violations
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("検証エラー: %d 件", len(e.Violations))
}

var (
	phonePattern = regexp.MustCompile(`^0[1-9]\d{8}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}$`)
	siretPattern = regexp.MustCompile(`^\d{14}$`)
)

// Required は空白以外の値が入っているかを検証する。
func Required(field, value, msg string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.add(field, msg)
	}
}

// MinLength は文字数（rune数）が min 以上かを検証する。
func MinLength(field, value string, min int, msg string, v Violations) {
	if utf8.RuneCountInString(strings.TrimSpace(value)) < min {
		v.add(field, msg)
	}
}

// Email はメールアドレス形式を検証する。
func Email(field, value string, v Violations) {
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != strings.TrimSpace(value) {
		v.add(field, "Veuillez entrer une adresse email valide")
	}
}

// Phone はフランスの電話番号形式（0 + 9桁）を検証する。
func Phone(field, value string, v Violations) {
	if !phonePattern.MatchString(strings.ReplaceAll(value, " ", "")) {
		v.add(field, "Le numéro de téléphone doit être au format français (10 chiffres)")
	}
}

// ZipCode は5桁の郵便番号を検証する。
func ZipCode(field, value string, v Violations) {
	if !zipPattern.MatchString(value) {
		v.add(field, "Le code postal doit contenir 5 chiffres")
	}
}

// Siret は14桁のSIRET番号を検証する。
func Siret(field, value string, v Violations) {
	if !siretPattern.MatchString(strings.ReplaceAll(value, " ", "")) {
		v.add(field, "Le numéro SIRET doit contenir 14 chiffres")
	}
}

// Password はパスワード長（8文字以上）を検証する。
func Password(field, value string, v Violations) {
	if utf8.RuneCountInString(value) < 8 {
		v.add(field, "Le mot de passe doit contenir au moins 8 caractères")
	}
}

// Confirmation は確認入力が一致するかを検証する。
func Confirmation(field, value, confirm string, v Violations) {
	if value != confirm {
		v.add(field, "Les mots de passe ne correspondent pas")
	}
}

// OptionalURL は空文字、または http(s) の絶対URLであることを検証する。
func OptionalURL(field, value string, v Violations) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.add(field, "Veuillez entrer une URL valide")
	}
}

// RangeInt は整数が [min, max] に収まっているかを検証する。
func RangeInt(field string, val, min, max int, msg string, v Violations) {
	if val < min || val > max {
		v.add(field, msg)
	}
}

// PositiveFloat は正の数であることを検証する。
func PositiveFloat(field string, val float64, msg string, v Violations) {
	if val <= 0 {
		v.add(field, msg)
	}
}

// OneOf は値が候補のいずれかであることを検証する。
func OneOf(field, value string, allowed []string, msg string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(field, msg)
}
