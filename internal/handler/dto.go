package handler

import (
	"time"

	"github.com/hitoshi/btpmatch/internal/display"
	"github.com/hitoshi/btpmatch/internal/mission"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/rating"
	"github.com/hitoshi/btpmatch/internal/search"
)

// userResponse はログイン中のユーザー自身に返すユーザー情報。
type userResponse struct {
	ID             string              `json:"id"`
	UserType       model.UserKind      `json:"userType"`
	DisplayName    string              `json:"displayName"`
	FirstName      string              `json:"firstName,omitempty"`
	LastName       string              `json:"lastName,omitempty"`
	CompanyName    string              `json:"companyName,omitempty"`
	CompanyAddress string              `json:"companyAddress,omitempty"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone"`
	Trade          string              `json:"trade"`
	TradeLabel     string              `json:"tradeLabel"`
	Description    string              `json:"description"`
	Address        string              `json:"address"`
	ZipCode        string              `json:"zipCode"`
	City           string              `json:"city"`
	Department     string              `json:"department"`
	Country        string              `json:"country"`
	Siret          string              `json:"siret"`
	AvatarURL      string              `json:"avatarUrl,omitempty"`
	BannerURL      string              `json:"bannerUrl,omitempty"`
	LogoURL        string              `json:"logoUrl,omitempty"`
	Available      bool                `json:"available"`
	Mobile         bool                `json:"mobile"`
	ShortMissions  bool                `json:"shortMissions"`
	LongMissions   bool                `json:"longMissions"`
	Recruitment    bool                `json:"recruitment"`
	Rating         float64             `json:"rating"`
	RatingCount    int                 `json:"ratingCount"`
	Social         map[string]string   `json:"social,omitempty"`
	Images         []display.ImageView `json:"images"`
}

func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	resp := &userResponse{
		ID:            u.ID,
		UserType:      u.Kind(),
		DisplayName:   model.DisplayName(u),
		Email:         u.Email,
		Phone:         u.Phone,
		Trade:         u.Trade,
		TradeLabel:    display.TradeName(u.Trade),
		Description:   u.Description,
		Address:       u.Address,
		ZipCode:       u.ZipCode,
		City:          u.City,
		Department:    u.Department,
		Country:       u.Country,
		Siret:         u.Siret,
		AvatarURL:     u.AvatarURL,
		BannerURL:     u.BannerURL,
		LogoURL:       model.LogoURL(u),
		Available:     u.Available,
		Mobile:        u.Mobile,
		ShortMissions: u.ShortMissions,
		LongMissions:  u.LongMissions,
		Recruitment:   u.RecruitmentOpen,
		Rating:        u.Rating.Mean,
		RatingCount:   u.Rating.Count,
		Images:        make([]display.ImageView, 0, len(u.Images)),
	}
	switch {
	case u.Company != nil:
		resp.CompanyName = u.Company.CompanyName
		resp.CompanyAddress = u.Company.CompanyAddress
		resp.FirstName = u.Company.FirstName
		resp.LastName = u.Company.LastName
	case u.Individual != nil:
		resp.FirstName = u.Individual.FirstName
		resp.LastName = u.Individual.LastName
	}

	social := map[string]string{}
	for key, link := range map[string]string{
		"website":   u.Social.Website,
		"facebook":  u.Social.Facebook,
		"instagram": u.Social.Instagram,
		"linkedin":  u.Social.LinkedIn,
	} {
		if link != "" {
			social[key] = link
		}
	}
	if len(social) > 0 {
		resp.Social = social
	}
	for _, img := range u.Images {
		resp.Images = append(resp.Images, display.ImageView{ID: img.ID, URL: img.URL})
	}
	return resp
}

// sessionResponse は現在のセッション状態。
type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *userResponse `json:"user,omitempty"`
}

func toSessionResponse(sess model.Session) *sessionResponse {
	if !sess.Authenticated() {
		return &sessionResponse{}
	}
	return &sessionResponse{Authenticated: true, User: toUserResponse(sess.User)}
}

// providerPageResponse は提供者一覧の1ページ分。
type providerPageResponse struct {
	Providers     []display.ProviderCard `json:"providers"`
	Page          int                    `json:"page"`
	TotalPages    int                    `json:"totalPages"`
	Total         int                    `json:"total"`
	PageSize      int                    `json:"pageSize"`
	Applied       search.Criteria        `json:"applied"`
	ActiveFilters int                    `json:"activeFilters"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
}

func toProviderPageResponse(v search.View, viewer model.Session) *providerPageResponse {
	return &providerPageResponse{
		Providers:     display.ProviderCards(v.Providers, viewer),
		Page:          v.Page,
		TotalPages:    v.TotalPages,
		Total:         v.Total,
		PageSize:      v.PageSize,
		Applied:       v.Applied,
		ActiveFilters: v.ActiveCount,
		Loading:       v.Loading,
		Error:         v.Error,
	}
}

// filterPanelResponse はフィルタパネルの状態。
type filterPanelResponse struct {
	PanelOpen     bool            `json:"panelOpen"`
	Draft         search.Criteria `json:"draft"`
	Applied       search.Criteria `json:"applied"`
	ActiveFilters int             `json:"activeFilters"`
}

func toFilterPanelResponse(v search.View) *filterPanelResponse {
	return &filterPanelResponse{
		PanelOpen:     v.PanelOpen,
		Draft:         v.Draft,
		Applied:       v.Applied,
		ActiveFilters: v.ActiveCount,
	}
}

// toggleResponse は連絡先の表示切り替えの結果。
type toggleResponse struct {
	Visible bool `json:"visible"`
}

// budgetResponse はミッションの予算。
type budgetResponse struct {
	Min  float64          `json:"min"`
	Max  float64          `json:"max"`
	Kind model.BudgetKind `json:"kind"`
}

// posterResponse はミッション投稿者の要約。
type posterResponse struct {
	ID       string         `json:"id"`
	UserType model.UserKind `json:"userType"`
	Name     string         `json:"name"`
	LogoURL  string         `json:"logoUrl,omitempty"`
}

// missionResponse はミッション1件のカード。
type missionResponse struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Excerpt        string              `json:"excerpt"`
	Trade          string              `json:"trade"`
	TradeLabel     string              `json:"tradeLabel"`
	Location       string              `json:"location"`
	Budget         budgetResponse      `json:"budget"`
	StartDate      *time.Time          `json:"startDate,omitempty"`
	EndDate        *time.Time          `json:"endDate,omitempty"`
	DurationType   model.DurationKind  `json:"durationType,omitempty"`
	Status         model.MissionStatus `json:"status"`
	StatusLabel    string              `json:"statusLabel"`
	Poster         posterResponse      `json:"poster"`
	ApplicantCount int                 `json:"applicantCount"`
	IsOwner        bool                `json:"isOwner"`
	AlreadyApplied bool                `json:"alreadyApplied"`
	CanApply       bool                `json:"canApply"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toMissionResponse(c mission.Card) missionResponse {
	m := c.Mission
	logo := m.Poster.CompanyLogo
	if logo == "" {
		logo = m.Poster.AvatarURL
	}
	return missionResponse{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		Excerpt:      c.Excerpt,
		Trade:        m.Trade,
		TradeLabel:   display.TradeName(m.Trade),
		Location:     m.Location,
		Budget:       budgetResponse{Min: m.Budget.Min, Max: m.Budget.Max, Kind: m.Budget.Kind},
		StartDate:    optionalTime(m.StartDate),
		EndDate:      optionalTime(m.EndDate),
		DurationType: m.DurationKind,
		Status:       m.Status,
		StatusLabel:  c.StatusLabel,
		Poster: posterResponse{
			ID:       m.Poster.ID,
			UserType: m.Poster.Kind,
			Name:     m.Poster.Name(),
			LogoURL:  logo,
		},
		ApplicantCount: c.ApplicantCount,
		IsOwner:        c.IsOwner,
		AlreadyApplied: c.AlreadyApplied,
		CanApply:       c.CanApply,
		CreatedAt:      m.CreatedAt,
	}
}

func toMissionResponses(cards []mission.Card) []missionResponse {
	out := make([]missionResponse, 0, len(cards))
	for _, c := range cards {
		out = append(out, toMissionResponse(c))
	}
	return out
}

// missionDetailResponse はミッション詳細。応募一覧は投稿者にだけ含める。
type missionDetailResponse struct {
	missionResponse
	Applications []applicationResponse `json:"applications,omitempty"`
}

// applicationResponse は応募1件。
type applicationResponse struct {
	ID          string                  `json:"id"`
	MissionID   string                  `json:"missionId"`
	ApplicantID string                  `json:"applicantId"`
	Applicant   *display.ProviderCard   `json:"applicant,omitempty"`
	Status      model.ApplicationStatus `json:"status"`
	CreatedAt   time.Time               `json:"createdAt"`
}

func toApplicationResponse(a model.Application, viewer model.Session) applicationResponse {
	resp := applicationResponse{
		ID:          a.ID,
		MissionID:   a.MissionID,
		ApplicantID: a.ApplicantID,
		Status:      a.Status,
		CreatedAt:   a.CreatedAt,
	}
	if a.Applicant != nil {
		card := display.NewProviderCard(a.Applicant, viewer)
		resp.Applicant = &card
	}
	return resp
}

func toApplicationResponses(apps []model.Application, viewer model.Session) []applicationResponse {
	out := make([]applicationResponse, 0, len(apps))
	for _, a := range apps {
		out = append(out, toApplicationResponse(a, viewer))
	}
	return out
}

// ratingSubmitResponse は評価送信の結果。
type ratingSubmitResponse struct {
	Review *display.ReviewView `json:"review,omitempty"`
	State  rating.State        `json:"state"`
}
