package mission

import (
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/validation"
)

const dateLayout = "2006-01-02"

// Form はミッション作成フォームの入力値。
// 送信に失敗した場合は入力を保持し、成功した場合は空に戻す。
type Form struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Trade        string `json:"trade"`
	Location     string `json:"location"`
	Budget       string `json:"budget"`
	BudgetType   string `json:"budgetType"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	DurationType string `json:"durationType"`
}

// IsZero はフォームが未入力かを返す。
func (f Form) IsZero() bool {
	return f == Form{}
}

// Input はフォームを検証し、リモートAPIに送る入力に変換する。
// タイトルはタグを除去し、説明は許可リストのHTMLに無害化する。
// 検証に失敗した場合は *validation.Error を返す。
func (f Form) Input(san security.Sanitizer) (apiclient.MissionInput, error) {
	v := validation.Violations{}

	title := san.Text(f.Title)
	description := san.HTML(strings.TrimSpace(f.Description))

	validation.Required("title", title, "Le titre est requis", v)
	validation.MinLength("title", title, 3, "Le titre doit contenir au moins 3 caractères", v)
	validation.Required("description", san.Text(description), "La description est requise", v)
	validation.Required("trade", f.Trade, "Le métier est requis", v)
	validation.Required("location", f.Location, "La localisation est requise", v)

	var budget *float64
	kind := model.BudgetKind(strings.TrimSpace(f.BudgetType))
	if kind != "" {
		validation.OneOf("budgetType", string(kind), []string{string(model.BudgetHourly), string(model.BudgetFixed)},
			"Type de budget invalide", v)
		amount, err := parseAmount(f.Budget)
		if err != nil {
			v["budget"] = "Veuillez entrer un montant valide"
		} else {
			validation.PositiveFloat("budget", amount, "Le budget doit être supérieur à 0", v)
			budget = &amount
		}
	} else if strings.TrimSpace(f.Budget) != "" {
		v["budgetType"] = "Choisissez un type de budget"
	}

	start, startOK := parseDate("startDate", f.StartDate, v)
	end, endOK := parseDate("endDate", f.EndDate, v)
	if startOK && endOK && start != nil && end != nil && end.Before(*start) {
		v["endDate"] = "La date de fin doit être postérieure à la date de début"
	}

	var duration *model.DurationKind
	if d := strings.TrimSpace(f.DurationType); d != "" {
		validation.OneOf("durationType", d, []string{string(model.DurationShort), string(model.DurationLong)},
			"Durée invalide", v)
		dk := model.DurationKind(d)
		duration = &dk
	}

	if err := v.Err(); err != nil {
		return apiclient.MissionInput{}, err
	}

	trade := strings.TrimSpace(f.Trade)
	location := strings.TrimSpace(f.Location)
	return apiclient.MissionInput{
		Title:        &title,
		Description:  &description,
		Trade:        &trade,
		Location:     &location,
		Budget:       budget,
		BudgetKind:   &kind,
		StartDate:    start,
		EndDate:      end,
		DurationKind: duration,
	}, nil
}

// parseAmount は "1 500,50" のようなフランス語表記の金額も受け付ける。
func parseAmount(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func parseDate(field, s string, v validation.Violations) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		v[field] = "Date invalide (AAAA-MM-JJ)"
		return nil, false
	}
	return &t, true
}

// Edit はミッション編集（タイトルと説明）の入力値。
type Edit struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Input は編集内容を検証して更新用の入力に変換する。
func (e Edit) Input(san security.Sanitizer) (apiclient.MissionInput, error) {
	v := validation.Violations{}
	title := san.Text(e.Title)
	description := san.HTML(strings.TrimSpace(e.Description))
	validation.Required("title", title, "Le titre est requis", v)
	validation.MinLength("title", title, 3, "Le titre doit contenir au moins 3 caractères", v)
	validation.Required("description", san.Text(description), "La description est requise", v)
	if err := v.Err(); err != nil {
		return apiclient.MissionInput{}, err
	}
	return apiclient.MissionInput{Title: &title, Description: &description}, nil
}
