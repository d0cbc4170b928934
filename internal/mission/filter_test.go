package mission

import (
	"net/url"
	"testing"

	"github.com/hitoshi/btpmatch/internal/model"
)

func budgeted(id string, amount float64) model.Mission {
	m := openMission(id, "c1")
	m.Budget = model.Budget{Min: amount, Max: amount, Kind: model.BudgetFixed}
	return m
}

func missionIDs(ms []model.Mission) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}

func TestFilterMissions_BudgetBands(t *testing.T) {
	missions := []model.Mission{
		budgeted("low", 500),
		budgeted("edge-1000", 1000),
		budgeted("edge-5000", 5000),
		budgeted("high", 8000),
		openMission("none", "c1"),
	}

	tests := []struct {
		band BudgetBand
		want []string
	}{
		{BudgetAll, []string{"low", "edge-1000", "edge-5000", "high", "none"}},
		{BudgetLow, []string{"low"}},
		{BudgetMedium, []string{"edge-1000", "edge-5000"}},
		{BudgetHigh, []string{"high"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.band), func(t *testing.T) {
			got := missionIDs(FilterMissions(missions, ListFilter{Budget: tt.band}))
			if len(got) != len(tt.want) {
				t.Fatalf("件数が一致しません: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("順序または内容が一致しません: got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestListFilter_Matches(t *testing.T) {
	m := openMission("m1", "c1")
	m.DurationKind = model.DurationShort

	tests := []struct {
		name string
		f    ListFilter
		want bool
	}{
		{"条件なし", ListFilter{}, true},
		{"職種一致", ListFilter{Trade: "peintre"}, true},
		{"職種不一致", ListFilter{Trade: "plombier"}, false},
		{"地域は部分一致・大小無視", ListFilter{Location: "lyo"}, true},
		{"地域不一致", ListFilter{Location: "Paris"}, false},
		{"期間一致", ListFilter{Duration: model.DurationShort}, true},
		{"期間不一致", ListFilter{Duration: model.DurationLong}, false},
		{"ステータス一致", ListFilter{Status: model.MissionOpen}, true},
		{"ステータス不一致", ListFilter{Status: model.MissionClosed}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Matches(m); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterFromQuery(t *testing.T) {
	q := url.Values{
		"trade":    {"all"},
		"location": {" Lyon "},
		"duration": {"long"},
		"budget":   {"medium"},
		"status":   {"terminée"},
	}
	f := FilterFromQuery(q)
	want := ListFilter{Location: "Lyon", Duration: model.DurationLong, Budget: BudgetMedium, Status: model.MissionClosed}
	if f != want {
		t.Errorf("FilterFromQuery() = %+v, want %+v", f, want)
	}

	if got := FilterFromQuery(url.Values{"duration": {"all"}, "budget": {"huge"}, "status": {"?"}}); got != (ListFilter{}) {
		t.Errorf("未知の値は条件なしであるべきです: got %+v", got)
	}
}
