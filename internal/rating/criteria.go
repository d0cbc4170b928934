// Package rating は提供者の評価（5基準・各1..5）の入力と送信を扱う。
package rating

import (
	"math"

	"github.com/hitoshi/btpmatch/internal/model"
)

// MaxScore は1基準あたりの最高点。
const MaxScore = 5

// Criterion は評価基準1件。
type Criterion struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Criteria は評価基準の一覧。表示順を兼ねる。
var Criteria = []Criterion{
	{ID: "professionalism", Label: "Professionnalisme"},
	{ID: "speed", Label: "Rapidité"},
	{ID: "efficiency", Label: "Efficacité"},
	{ID: "communication", Label: "Communication"},
	{ID: "quality", Label: "Qualité du travail"},
}

// IsCriterion は id が評価基準かを返す。
func IsCriterion(id string) bool {
	for _, c := range Criteria {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Average は点数の単純平均を返す。空なら0。
func Average(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	total := 0
	for _, s := range scores {
		total += s
	}
	return float64(total) / float64(len(scores))
}

// Round1 は小数第1位に丸める。
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Aggregate は新しい評価を1件加えた集計値を返す。
// 平均は (旧平均*件数 + score) / (件数+1) を小数第1位に丸めた値。
func Aggregate(old model.AggregateRating, score float64) model.AggregateRating {
	count := old.Count + 1
	return model.AggregateRating{
		Mean:  Round1((old.Mean*float64(old.Count) + score) / float64(count)),
		Count: count,
	}
}
