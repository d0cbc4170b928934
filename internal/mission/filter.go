package mission

import (
	"net/url"
	"strings"

	"github.com/hitoshi/btpmatch/internal/model"
)

// BudgetBand はミッション一覧の予算帯フィルタ。
type BudgetBand string

const (
	BudgetAll    BudgetBand = ""
	BudgetLow    BudgetBand = "low"    // 1000 未満
	BudgetMedium BudgetBand = "medium" // 1000 以上 5000 以下
	BudgetHigh   BudgetBand = "high"   // 5000 超
)

// ListFilter はミッション一覧の絞り込み条件。ゼロ値はすべて表示。
type ListFilter struct {
	Trade    string              `json:"trade,omitempty"`
	Location string              `json:"location,omitempty"`
	Duration model.DurationKind  `json:"duration,omitempty"`
	Budget   BudgetBand          `json:"budget,omitempty"`
	Status   model.MissionStatus `json:"status,omitempty"`
}

// FilterFromQuery はURLクエリから絞り込み条件を組み立てる。
// "all" と未知の値は条件なしとして扱う。
func FilterFromQuery(q url.Values) ListFilter {
	var f ListFilter
	if t := strings.TrimSpace(q.Get("trade")); t != "" && t != "all" {
		f.Trade = t
	}
	f.Location = strings.TrimSpace(q.Get("location"))
	switch d := model.DurationKind(q.Get("duration")); d {
	case model.DurationShort, model.DurationLong:
		f.Duration = d
	}
	switch b := BudgetBand(q.Get("budget")); b {
	case BudgetLow, BudgetMedium, BudgetHigh:
		f.Budget = b
	}
	if st, ok := model.ParseMissionStatus(q.Get("status")); ok {
		f.Status = st
	}
	return f
}

// Matches はミッションが条件を満たすかを返す。
// 予算帯は予算の上限（無ければ下限）で判定し、予算未設定のミッションは帯指定時に除外する。
func (f ListFilter) Matches(m model.Mission) bool {
	if f.Trade != "" && m.Trade != f.Trade {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(m.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.Duration != "" && m.DurationKind != f.Duration {
		return false
	}
	if f.Status != "" && m.Status != f.Status {
		return false
	}
	if f.Budget != BudgetAll {
		amount := m.Budget.Max
		if amount == 0 {
			amount = m.Budget.Min
		}
		if amount <= 0 {
			return false
		}
		switch f.Budget {
		case BudgetLow:
			if amount >= 1000 {
				return false
			}
		case BudgetMedium:
			if amount < 1000 || amount > 5000 {
				return false
			}
		case BudgetHigh:
			if amount <= 5000 {
				return false
			}
		}
	}
	return true
}

// FilterMissions は条件に合うミッションだけを元の順序で返す。
func FilterMissions(missions []model.Mission, f ListFilter) []model.Mission {
	out := make([]model.Mission, 0, len(missions))
	for _, m := range missions {
		if f.Matches(m) {
			out = append(out, m)
		}
	}
	return out
}
