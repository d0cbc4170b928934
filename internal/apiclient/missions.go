package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/btpmatch/internal/model"
)

// MissionInput はミッション作成・更新の入力。
// 更新時は nil でないフィールドだけを送る。
type MissionInput struct {
	Title        *string
	Description  *string
	Trade        *string
	Location     *string
	Budget       *float64 // budgetMin と budgetMax の両方に同じ値を送る
	BudgetKind   *model.BudgetKind
	StartDate    *time.Time
	EndDate      *time.Time
	DurationKind *model.DurationKind
	Status       *model.MissionStatus
}

// body はリモートAPIに送るJSONボディを組み立てる。
func (in MissionInput) body() map[string]any {
	b := make(map[string]any)
	if in.Title != nil {
		b["title"] = *in.Title
	}
	if in.Description != nil {
		b["description"] = *in.Description
	}
	if in.Trade != nil {
		b["trade"] = *in.Trade
	}
	if in.Location != nil {
		b["location"] = *in.Location
	}
	if in.BudgetKind != nil {
		b["budgetType"] = string(*in.BudgetKind)
		if in.Budget != nil && *in.BudgetKind != "" {
			v := strconv.FormatFloat(*in.Budget, 'f', -1, 64)
			b["budgetMin"] = v
			b["budgetMax"] = v
		} else {
			b["budgetMin"] = nil
			b["budgetMax"] = nil
		}
	}
	if in.StartDate != nil {
		b["startDate"] = formatDate(*in.StartDate)
	}
	if in.EndDate != nil {
		b["endDate"] = formatDate(*in.EndDate)
	}
	if in.DurationKind != nil {
		b["durationType"] = string(*in.DurationKind)
	}
	if in.Status != nil {
		b["status"] = missionStatusToWire(*in.Status)
	}
	return b
}

type missionsResponse struct {
	Missions []wireMission `json:"missions"`
}

type missionResponse struct {
	Mission *wireMission `json:"mission"`
	Message string       `json:"message"`
}

type applicationsResponse struct {
	Applications []wireApplication `json:"applications"`
}

type applicationResponse struct {
	Application *wireApplication `json:"application"`
	Message     string           `json:"message"`
}

func toMissions(ws []wireMission) []model.Mission {
	out := make([]model.Mission, 0, len(ws))
	for i := range ws {
		out = append(out, ws[i].toModel())
	}
	return out
}

func toApplications(ws []wireApplication, missionID string) []model.Application {
	out := make([]model.Application, 0, len(ws))
	for _, a := range ws {
		out = append(out, a.toModel(missionID))
	}
	return out
}

// ListMissions は GET /api/missions を呼び出す。
func (c *Client) ListMissions(ctx context.Context, token string) ([]model.Mission, error) {
	var resp missionsResponse
	err := c.do(ctx, call{
		route:  "GET /api/missions",
		method: http.MethodGet,
		path:   "/api/missions",
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return toMissions(resp.Missions), nil
}

// ListMyMissions は GET /api/missions/my を呼び出す。
func (c *Client) ListMyMissions(ctx context.Context, token string) ([]model.Mission, error) {
	var resp missionsResponse
	err := c.do(ctx, call{
		route:  "GET /api/missions/my",
		method: http.MethodGet,
		path:   "/api/missions/my",
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return toMissions(resp.Missions), nil
}

// GetMission は GET /api/missions/:id を呼び出す。
func (c *Client) GetMission(ctx context.Context, token, missionID string) (*model.Mission, error) {
	var resp missionResponse
	err := c.do(ctx, call{
		route:  "GET /api/missions/:id",
		method: http.MethodGet,
		path:   "/api/missions/" + pathID(missionID),
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Mission == nil {
		return nil, fmt.Errorf("レスポンスに mission が含まれていません")
	}
	m := resp.Mission.toModel()
	return &m, nil
}

// CreateMission は POST /api/missions を呼び出す。
func (c *Client) CreateMission(ctx context.Context, token string, in MissionInput) (*model.Mission, error) {
	var resp missionResponse
	err := c.do(ctx, call{
		route:    "POST /api/missions",
		method:   http.MethodPost,
		path:     "/api/missions",
		token:    token,
		jsonBody: in.body(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Mission == nil {
		// 2xx でも mission が無い場合はサーバーのメッセージをそのまま失敗として返す
		return nil, &StatusError{Route: "POST /api/missions", StatusCode: http.StatusUnprocessableEntity, Message: resp.Message}
	}
	m := resp.Mission.toModel()
	return &m, nil
}

// UpdateMission は PUT /api/missions/:id を呼び出し、更新後のミッションを返す。
func (c *Client) UpdateMission(ctx context.Context, token, missionID string, in MissionInput) (*model.Mission, error) {
	var resp missionResponse
	err := c.do(ctx, call{
		route:    "PUT /api/missions/:id",
		method:   http.MethodPut,
		path:     "/api/missions/" + pathID(missionID),
		token:    token,
		jsonBody: in.body(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Mission == nil {
		return nil, nil
	}
	m := resp.Mission.toModel()
	return &m, nil
}

// ApplyToMission は POST /api/missions/:id/apply を呼び出す。
func (c *Client) ApplyToMission(ctx context.Context, token, missionID string) (*model.Application, error) {
	var resp applicationResponse
	err := c.do(ctx, call{
		route:  "POST /api/missions/:id/apply",
		method: http.MethodPost,
		path:   "/api/missions/" + pathID(missionID) + "/apply",
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Application == nil {
		return nil, &StatusError{Route: "POST /api/missions/:id/apply", StatusCode: http.StatusUnprocessableEntity, Message: resp.Message}
	}
	a := resp.Application.toModel(missionID)
	return &a, nil
}

// ListApplicationsForMission は GET /api/missions/:id/applications を呼び出す。
func (c *Client) ListApplicationsForMission(ctx context.Context, token, missionID string) ([]model.Application, error) {
	var resp applicationsResponse
	err := c.do(ctx, call{
		route:  "GET /api/missions/:id/applications",
		method: http.MethodGet,
		path:   "/api/missions/" + pathID(missionID) + "/applications",
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return toApplications(resp.Applications, missionID), nil
}

// ListMyApplications は GET /api/missions/applications/my を呼び出す。
func (c *Client) ListMyApplications(ctx context.Context, token string) ([]model.Application, error) {
	var resp applicationsResponse
	err := c.do(ctx, call{
		route:  "GET /api/missions/applications/my",
		method: http.MethodGet,
		path:   "/api/missions/applications/my",
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return toApplications(resp.Applications, ""), nil
}

// UpdateApplicationStatus は PATCH /api/missions/applications/:id を呼び出す。
func (c *Client) UpdateApplicationStatus(ctx context.Context, token, applicationID string, status model.ApplicationStatus) (*model.Application, error) {
	var resp applicationResponse
	err := c.do(ctx, call{
		route:    "PATCH /api/missions/applications/:id",
		method:   http.MethodPatch,
		path:     "/api/missions/applications/" + pathID(applicationID),
		token:    token,
		jsonBody: map[string]string{"status": string(status)},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Application == nil {
		return nil, nil
	}
	a := resp.Application.toModel("")
	return &a, nil
}
