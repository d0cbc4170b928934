// Package search は提供者検索のフィルタ状態、ページング、一覧取得を提供する。
package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/btpmatch/internal/model"
)

// allValue は「すべて」を表す選択肢の値。未指定と同じに扱う。
const allValue = "all"

// Criteria は提供者検索のフィルタ条件。
// ゼロ値がデフォルト（フィルタ無し）を表す。
type Criteria struct {
	Trade         string `json:"trade"`
	Department    string `json:"department"`
	City          string `json:"city"`
	Available     bool   `json:"available"`
	Mobile        bool   `json:"mobile"`
	ShortMissions bool   `json:"shortMissions"`
	LongMissions  bool   `json:"longMissions"`
	MinRating     int    `json:"minRating"`
}

// FilterKey はCriteriaの1フィールドを指すキー。
type FilterKey string

const (
	KeyTrade         FilterKey = "trade"
	KeyDepartment    FilterKey = "department"
	KeyCity          FilterKey = "city"
	KeyAvailable     FilterKey = "available"
	KeyMobile        FilterKey = "mobile"
	KeyShortMissions FilterKey = "shortMissions"
	KeyLongMissions  FilterKey = "longMissions"
	KeyMinRating     FilterKey = "minRating"
)

// AllKeys は表示順のフィルタキー一覧。
var AllKeys = []FilterKey{
	KeyTrade, KeyDepartment, KeyCity,
	KeyAvailable, KeyMobile, KeyShortMissions, KeyLongMissions,
	KeyMinRating,
}

// ParseFilterKey は文字列からフィルタキーを解釈する。
// 旧フロントエンドの availability / mobility も受け付ける。
func ParseFilterKey(s string) (FilterKey, bool) {
	switch s {
	case "availability":
		return KeyAvailable, true
	case "mobility":
		return KeyMobile, true
	}
	for _, k := range AllKeys {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func isUnset(s string) bool {
	return s == "" || s == allValue
}

// IsActive は指定フィールドがデフォルト値と異なるかを返す。
func (c Criteria) IsActive(key FilterKey) bool {
	switch key {
	case KeyTrade:
		return !isUnset(c.Trade)
	case KeyDepartment:
		return !isUnset(c.Department)
	case KeyCity:
		return c.City != ""
	case KeyAvailable:
		return c.Available
	case KeyMobile:
		return c.Mobile
	case KeyShortMissions:
		return c.ShortMissions
	case KeyLongMissions:
		return c.LongMissions
	case KeyMinRating:
		return c.MinRating > 0
	}
	return false
}

// ActiveCount はデフォルト値と異なるフィールドの数を返す。
func (c Criteria) ActiveCount() int {
	n := 0
	for _, k := range AllKeys {
		if c.IsActive(k) {
			n++
		}
	}
	return n
}

// Remove は指定フィールドだけをデフォルト値に戻したコピーを返す。
// bool は false、数値は 0、文字列は "" になる。
func (c Criteria) Remove(key FilterKey) Criteria {
	switch key {
	case KeyTrade:
		c.Trade = ""
	case KeyDepartment:
		c.Department = ""
	case KeyCity:
		c.City = ""
	case KeyAvailable:
		c.Available = false
	case KeyMobile:
		c.Mobile = false
	case KeyShortMissions:
		c.ShortMissions = false
	case KeyLongMissions:
		c.LongMissions = false
	case KeyMinRating:
		c.MinRating = 0
	}
	return c
}

// Matches は提供者がフィルタ条件を満たすかを判定する純粋関数。
// 一覧の正はサーバー側の絞り込みで、これは楽観的な評価更新の後に再適用するために使う。
func Matches(u *model.User, c Criteria) bool {
	if u == nil {
		return false
	}
	if !isUnset(c.Trade) && u.Trade != c.Trade {
		return false
	}
	if !isUnset(c.Department) && !strings.Contains(u.Department, c.Department) {
		return false
	}
	if c.City != "" && !strings.Contains(strings.ToLower(userCity(u)), strings.ToLower(c.City)) {
		return false
	}
	if c.Available && !u.Available {
		return false
	}
	if c.Mobile && !u.Mobile {
		return false
	}
	if c.ShortMissions && !u.ShortMissions {
		return false
	}
	if c.LongMissions && !u.LongMissions {
		return false
	}
	if c.MinRating > 0 && u.Rating.Mean < float64(c.MinRating) {
		return false
	}
	return true
}

func userCity(u *model.User) string {
	if u.City == "" && u.Company != nil {
		return u.Company.CompanyCity
	}
	return u.City
}

// Filter は条件を満たす提供者だけを元の順序で返す。
func Filter(users []*model.User, c Criteria) []*model.User {
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		if Matches(u, c) {
			out = append(out, u)
		}
	}
	return out
}

// TargetKind は閲覧者に対して検索すべき提供者の種別を返す。
// 企業には個人を、個人には企業を、未ログインには個人を見せる。
func TargetKind(viewer model.Session) model.UserKind {
	if !viewer.Authenticated() {
		return model.KindIndividual
	}
	return viewer.User.Kind().Opposite()
}

// Query はリモートAPIの GET /api/users に渡すクエリを組み立てる。
func Query(c Criteria, viewer model.Session) url.Values {
	q := url.Values{}
	if !isUnset(c.Trade) {
		q.Set("trade", c.Trade)
	}
	if !isUnset(c.Department) {
		q.Set("department", c.Department)
	}
	if c.City != "" {
		q.Set("city", c.City)
	}
	if c.Available {
		q.Set("available", "true")
	}
	if c.Mobile {
		q.Set("mobile", "true")
	}
	if c.ShortMissions {
		q.Set("shortMissions", "true")
	}
	if c.LongMissions {
		q.Set("longMissions", "true")
	}
	if c.MinRating > 0 {
		q.Set("minRating", strconv.Itoa(c.MinRating))
	}
	q.Set("userType", string(TargetKind(viewer)))
	return q
}

// CriteriaFromQuery はURLクエリからフィルタ条件を読み取る。
// ok はフィルタ関連のパラメータが1つでも含まれていたかを示す。
func CriteriaFromQuery(q url.Values) (c Criteria, ok bool) {
	for _, k := range AllKeys {
		if q.Has(string(k)) {
			ok = true
			break
		}
	}
	c = Criteria{
		Trade:         q.Get("trade"),
		Department:    q.Get("department"),
		City:          q.Get("city"),
		Available:     q.Get("available") == "true",
		Mobile:        q.Get("mobile") == "true",
		ShortMissions: q.Get("shortMissions") == "true",
		LongMissions:  q.Get("longMissions") == "true",
	}
	if v, err := strconv.Atoi(q.Get("minRating")); err == nil && v > 0 {
		c.MinRating = v
	}
	return c, ok
}
