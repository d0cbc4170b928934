// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// UserKind はユーザー種別の判別子を表す。
// リモートAPIの userType フィールドの値をそのまま使う。
type UserKind string

const (
	// KindIndividual は個人の職人（professionnel）を表す。
	KindIndividual UserKind = "professionnel"
	// KindCompany は企業（entreprise）を表す。
	KindCompany UserKind = "entreprise"
)

// ParseUserKind は文字列からユーザー種別を解釈する。
// 未知の値の場合は ok=false を返す。
func ParseUserKind(s string) (UserKind, bool) {
	switch UserKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIndividual:
		return KindIndividual, true
	case KindCompany:
		return KindCompany, true
	}
	return "", false
}

// Opposite は検索対象とする反対側の種別を返す。
func (k UserKind) Opposite() UserKind {
	if k == KindCompany {
		return KindIndividual
	}
	return KindCompany
}

// AggregateRating は評価の集計値（平均と件数）を表す。
type AggregateRating struct {
	Mean  float64
	Count int
}

// Image はユーザーに紐づく画像ギャラリーの1枚を表す。
type Image struct {
	ID  string
	URL string
}

// Availability はユーザーの稼働状況フラグを表す。
type Availability struct {
	Available       bool // 個人: 稼働可能
	Mobile          bool // 個人: 出張可能
	ShortMissions   bool // 短期ミッション可
	LongMissions    bool // 長期ミッション可
	RecruitmentOpen bool // 企業: 採用受付中
}

// SocialLinks はプロフィールに掲載する外部リンク。
type SocialLinks struct {
	Website   string
	Facebook  string
	Instagram string
	LinkedIn  string
}

// Individual は個人の職人に固有のプロフィール。
type Individual struct {
	FirstName string
	LastName  string
}

// Company は企業に固有のプロフィール。
// FirstName / LastName は担当者名。
type Company struct {
	CompanyName    string
	CompanyAddress string
	CompanyZipCode string
	CompanyCity    string
	LogoURL        string
	FirstName      string
	LastName       string
}

// User はマーケットプレイスの利用者（検索結果では「提供者」）を表す。
// Individual と Company のどちらか一方だけが非nilになるタグ付きユニオン。
// 住所や連絡先など両者に共通の項目は User 直下に持つ。
type User struct {
	ID          string
	Email       string
	Phone       string
	Trade       string
	Description string
	Address     string
	ZipCode     string
	City        string
	Department  string
	Country     string
	Siret       string
	AvatarURL   string
	BannerURL   string
	Social      SocialLinks
	Availability
	Rating  AggregateRating
	Images  []Image
	Reviews []Review

	Individual *Individual
	Company    *Company

	CreatedAt time.Time
}

// Kind はユーザー種別を返す。
func (u *User) Kind() UserKind {
	if u.Company != nil {
		return KindCompany
	}
	return KindIndividual
}

// IsCompany は企業ユーザーかどうかを返す。
func (u *User) IsCompany() bool {
	return u.Company != nil
}

// DisplayName は画面表示用の名前を返す。
// 企業は会社名、個人は「名 姓」。
func DisplayName(u *User) string {
	if u == nil {
		return ""
	}
	if u.Company != nil {
		if u.Company.CompanyName == "" {
			return "Entreprise"
		}
		return u.Company.CompanyName
	}
	if u.Individual == nil {
		return ""
	}
	return strings.TrimSpace(u.Individual.FirstName + " " + u.Individual.LastName)
}

// Initials はアバター代替表示用の頭文字を返す。
func Initials(u *User) string {
	if u == nil {
		return ""
	}
	if u.Company != nil {
		if r := []rune(u.Company.CompanyName); len(r) > 0 {
			return strings.ToUpper(string(r[0]))
		}
		return "E"
	}
	if u.Individual == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range []string{u.Individual.FirstName, u.Individual.LastName} {
		if r := []rune(s); len(r) > 0 {
			b.WriteRune(r[0])
		}
	}
	return strings.ToUpper(b.String())
}

// LogoURL はカードに表示する画像URLを返す。
// 企業はロゴ、個人はアバター。
func LogoURL(u *User) string {
	if u == nil {
		return ""
	}
	if u.Company != nil {
		return u.Company.LogoURL
	}
	return u.AvatarURL
}

// Location は所在地の表示文字列を返す。
// 企業は「郵便番号, 市」、個人は「市, 県」。
func Location(u *User) string {
	if u == nil {
		return ""
	}
	parts := []string{u.City, u.Department}
	if u.Company != nil {
		parts = []string{u.Company.CompanyZipCode, u.Company.CompanyCity}
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// IsOpenForWork は種別に応じた受付フラグを返す。
// 企業は採用受付、個人は稼働可能フラグ。
func IsOpenForWork(u *User) bool {
	if u == nil {
		return false
	}
	if u.Company != nil {
		return u.RecruitmentOpen
	}
	return u.Available
}
