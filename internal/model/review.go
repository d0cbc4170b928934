package model

import "time"

// Review は提供者に対する評価を表す。作成後は変更されない。
type Review struct {
	ID           string
	TargetUserID string
	AuthorID     string
	Rating       float64        // 5基準の単純平均
	Comment      string
	Criteria     map[string]int // 基準ID → 1..5
	CreatedAt    time.Time
}

// Session は訪問者ごとの認証セッションを表す。
// Token と User は常に揃って存在するか、揃って存在しない。
type Session struct {
	Token string
	User  *User
}

// Authenticated はログイン済みかどうかを返す。
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}
