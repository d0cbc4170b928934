package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/btpmatch/internal/model"
)

// wireID は数値・文字列どちらのJSON表現も受け付けるID。
type wireID string

// UnmarshalJSON はJSONの数値または文字列からIDを読み取る。
func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("IDの形式が不正です: %s", b)
	}
	*id = wireID(b)
	return nil
}

// wireNumber は数値・数値文字列どちらも受け付ける数値。
type wireNumber float64

// UnmarshalJSON はJSONの数値または数値文字列を読み取る。空文字列は0とする。
func (n *wireNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("数値の形式が不正です: %s", b)
	}
	*n = wireNumber(f)
	return nil
}

// parseTime はRFC3339または日付のみの文字列を解釈する。解釈できない場合はゼロ値。
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// formatTime はゼロ値を空文字として時刻を文字列化する。
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// formatDate は日付のみを YYYY-MM-DD で文字列化する。
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

type wireImage struct {
	ID  wireID `json:"id"`
	URL string `json:"url"`
}

type wireReview struct {
	ID        wireID         `json:"id"`
	UserID    wireID         `json:"userId"`
	AuthorID  wireID         `json:"authorId"`
	Rating    wireNumber     `json:"rating"`
	Comment   string         `json:"comment"`
	Criteria  map[string]int `json:"criteria,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

func (w wireReview) toModel() model.Review {
	return model.Review{
		ID:           string(w.ID),
		TargetUserID: string(w.UserID),
		AuthorID:     string(w.AuthorID),
		Rating:       float64(w.Rating),
		Comment:      w.Comment,
		Criteria:     w.Criteria,
		CreatedAt:    parseTime(w.CreatedAt),
	}
}

// wireUser はリモートAPIのユーザー表現（userType で個人/企業を判別する平坦な形）。
type wireUser struct {
	ID             wireID       `json:"id"`
	UserType       string       `json:"userType"`
	Email          string       `json:"email,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	Trade          string       `json:"trade,omitempty"`
	Description    string       `json:"description,omitempty"`
	FirstName      string       `json:"firstName,omitempty"`
	LastName       string       `json:"lastName,omitempty"`
	Address        string       `json:"address,omitempty"`
	ZipCode        string       `json:"zipCode,omitempty"`
	City           string       `json:"city,omitempty"`
	Department     string       `json:"department,omitempty"`
	Country        string       `json:"country,omitempty"`
	Siret          string       `json:"siret,omitempty"`
	Avatar         string       `json:"avatar,omitempty"`
	Banner         string       `json:"banner,omitempty"`
	CompanyName    string       `json:"companyName,omitempty"`
	CompanyAddress string       `json:"companyAddress,omitempty"`
	CompanyZipCode string       `json:"companyZipCode,omitempty"`
	CompanyCity    string       `json:"companyCity,omitempty"`
	CompanyLogo    string       `json:"companyLogo,omitempty"`
	Available      bool         `json:"available"`
	Mobile         bool         `json:"mobile"`
	ShortMissions  bool         `json:"shortMissions"`
	LongMissions   bool         `json:"longMissions"`
	Recruitment    bool         `json:"recruitment"`
	Rating         wireNumber   `json:"rating"`
	RatingCount    int          `json:"ratingCount"`
	Images         []wireImage  `json:"images,omitempty"`
	Reviews        []wireReview `json:"reviews,omitempty"`
	FacebookURL    string       `json:"facebookUrl,omitempty"`
	InstagramURL   string       `json:"instagramUrl,omitempty"`
	LinkedinURL    string       `json:"linkedinUrl,omitempty"`
	WebsiteURL     string       `json:"websiteUrl,omitempty"`
	CreatedAt      string       `json:"createdAt,omitempty"`
}

func (w *wireUser) toModel() *model.User {
	if w == nil {
		return nil
	}
	u := &model.User{
		ID:          string(w.ID),
		Email:       w.Email,
		Phone:       w.Phone,
		Trade:       w.Trade,
		Description: w.Description,
		Address:     w.Address,
		ZipCode:     w.ZipCode,
		City:        w.City,
		Department:  w.Department,
		Country:     w.Country,
		Siret:       w.Siret,
		AvatarURL:   w.Avatar,
		BannerURL:   w.Banner,
		Social: model.SocialLinks{
			Website:   w.WebsiteURL,
			Facebook:  w.FacebookURL,
			Instagram: w.InstagramURL,
			LinkedIn:  w.LinkedinURL,
		},
		Availability: model.Availability{
			Available:       w.Available,
			Mobile:          w.Mobile,
			ShortMissions:   w.ShortMissions,
			LongMissions:    w.LongMissions,
			RecruitmentOpen: w.Recruitment,
		},
		Rating:    model.AggregateRating{Mean: float64(w.Rating), Count: w.RatingCount},
		CreatedAt: parseTime(w.CreatedAt),
	}
	for _, img := range w.Images {
		u.Images = append(u.Images, model.Image{ID: string(img.ID), URL: img.URL})
	}
	for _, r := range w.Reviews {
		u.Reviews = append(u.Reviews, r.toModel())
	}

	// 判別子に応じてどちらか一方のペイロードだけを持たせる
	if kind, _ := model.ParseUserKind(w.UserType); kind == model.KindCompany {
		u.Company = &model.Company{
			CompanyName:    w.CompanyName,
			CompanyAddress: w.CompanyAddress,
			CompanyZipCode: w.CompanyZipCode,
			CompanyCity:    w.CompanyCity,
			LogoURL:        w.CompanyLogo,
			FirstName:      w.FirstName,
			LastName:       w.LastName,
		}
	} else {
		u.Individual = &model.Individual{
			FirstName: w.FirstName,
			LastName:  w.LastName,
		}
	}
	return u
}

func userToWire(u *model.User) *wireUser {
	if u == nil {
		return nil
	}
	w := &wireUser{
		ID:            wireID(u.ID),
		UserType:      string(u.Kind()),
		Email:         u.Email,
		Phone:         u.Phone,
		Trade:         u.Trade,
		Description:   u.Description,
		Address:       u.Address,
		ZipCode:       u.ZipCode,
		City:          u.City,
		Department:    u.Department,
		Country:       u.Country,
		Siret:         u.Siret,
		Avatar:        u.AvatarURL,
		Banner:        u.BannerURL,
		Available:     u.Available,
		Mobile:        u.Mobile,
		ShortMissions: u.ShortMissions,
		LongMissions:  u.LongMissions,
		Recruitment:   u.RecruitmentOpen,
		Rating:        wireNumber(u.Rating.Mean),
		RatingCount:   u.Rating.Count,
		FacebookURL:   u.Social.Facebook,
		InstagramURL:  u.Social.Instagram,
		LinkedinURL:   u.Social.LinkedIn,
		WebsiteURL:    u.Social.Website,
		CreatedAt:     formatTime(u.CreatedAt),
	}
	for _, img := range u.Images {
		w.Images = append(w.Images, wireImage{ID: wireID(img.ID), URL: img.URL})
	}
	for _, r := range u.Reviews {
		w.Reviews = append(w.Reviews, wireReview{
			ID:        wireID(r.ID),
			UserID:    wireID(r.TargetUserID),
			AuthorID:  wireID(r.AuthorID),
			Rating:    wireNumber(r.Rating),
			Comment:   r.Comment,
			Criteria:  r.Criteria,
			CreatedAt: formatTime(r.CreatedAt),
		})
	}
	switch {
	case u.Company != nil:
		w.CompanyName = u.Company.CompanyName
		w.CompanyAddress = u.Company.CompanyAddress
		w.CompanyZipCode = u.Company.CompanyZipCode
		w.CompanyCity = u.Company.CompanyCity
		w.CompanyLogo = u.Company.LogoURL
		w.FirstName = u.Company.FirstName
		w.LastName = u.Company.LastName
	case u.Individual != nil:
		w.FirstName = u.Individual.FirstName
		w.LastName = u.Individual.LastName
	}
	return w
}

// MarshalUser はユーザーをリモートAPIと同じJSON形式にシリアライズする。
// セッションの永続化に使う。
func MarshalUser(u *model.User) ([]byte, error) {
	if u == nil {
		return nil, fmt.Errorf("ユーザーが nil です")
	}
	return json.Marshal(userToWire(u))
}

// UnmarshalUser は MarshalUser またはリモートAPIが返したJSONからユーザーを復元する。
func UnmarshalUser(b []byte) (*model.User, error) {
	var w wireUser
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("ユーザーJSONのパースに失敗しました: %w", err)
	}
	if w.ID == "" {
		return nil, fmt.Errorf("ユーザーIDがありません")
	}
	return w.toModel(), nil
}

// wirePoster はミッション投稿者の要約。
type wirePoster struct {
	ID          wireID `json:"id"`
	UserType    string `json:"userType"`
	Avatar      string `json:"avatar"`
	CompanyLogo string `json:"companyLogo"`
	CompanyName string `json:"companyName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
}

type wireApplication struct {
	ID        wireID       `json:"id"`
	MissionID wireID       `json:"missionId"`
	UserID    wireID       `json:"userId"`
	Status    string       `json:"status"`
	CreatedAt string       `json:"createdAt"`
	User      *wireUser    `json:"user"`
	Mission   *wireMission `json:"mission"`
}

func (w wireApplication) toModel(parentMissionID string) model.Application {
	a := model.Application{
		ID:          string(w.ID),
		MissionID:   string(w.MissionID),
		ApplicantID: string(w.UserID),
		CreatedAt:   parseTime(w.CreatedAt),
	}
	if w.Mission != nil && w.Mission.ID != "" {
		a.MissionID = string(w.Mission.ID)
	}
	if a.MissionID == "" {
		a.MissionID = parentMissionID
	}
	if w.User != nil {
		a.Applicant = w.User.toModel()
		if a.ApplicantID == "" {
			a.ApplicantID = string(w.User.ID)
		}
	}
	st, ok := model.ParseApplicationStatus(w.Status)
	if !ok {
		st = model.ApplicationPending
	}
	a.Status = st
	return a
}

type wireMission struct {
	ID           wireID            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Trade        string            `json:"trade"`
	Location     string            `json:"location"`
	BudgetMin    wireNumber        `json:"budgetMin"`
	BudgetMax    wireNumber        `json:"budgetMax"`
	BudgetType   string            `json:"budgetType"`
	StartDate    string            `json:"startDate"`
	EndDate      string            `json:"endDate"`
	DurationType string            `json:"durationType"`
	Status       string            `json:"status"`
	CreatedAt    string            `json:"createdAt"`
	PostedBy     wireID            `json:"postedBy"`
	PostedByUser *wirePoster       `json:"postedByUser"`
	Applications []wireApplication `json:"applications"`
}

func (w *wireMission) toModel() model.Mission {
	m := model.Mission{
		ID:          string(w.ID),
		Title:       w.Title,
		Description: w.Description,
		Trade:       w.Trade,
		Location:    w.Location,
		Budget: model.Budget{
			Min:  float64(w.BudgetMin),
			Max:  float64(w.BudgetMax),
			Kind: model.BudgetKind(w.BudgetType),
		},
		StartDate:    parseTime(w.StartDate),
		EndDate:      parseTime(w.EndDate),
		DurationKind: model.DurationKind(w.DurationType),
		PostedBy:     string(w.PostedBy),
		CreatedAt:    parseTime(w.CreatedAt),
	}
	// 未知の表記は募集中として扱う
	st, ok := model.ParseMissionStatus(w.Status)
	if !ok {
		st = model.MissionOpen
	}
	m.Status = st
	if p := w.PostedByUser; p != nil {
		kind, _ := model.ParseUserKind(p.UserType)
		m.Poster = model.PosterSummary{
			ID:          string(p.ID),
			Kind:        kind,
			AvatarURL:   p.Avatar,
			CompanyLogo: p.CompanyLogo,
			CompanyName: p.CompanyName,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
		}
		if m.PostedBy == "" {
			m.PostedBy = string(p.ID)
		}
	}
	m.Applications = make([]model.Application, 0, len(w.Applications))
	for _, a := range w.Applications {
		m.Applications = append(m.Applications, a.toModel(m.ID))
	}
	return m
}

// missionStatusToWire はリモートAPIが書き込み時に受け付ける表記へ変換する。
func missionStatusToWire(s model.MissionStatus) string {
	switch s {
	case model.MissionOpen:
		return "ouvert"
	case model.MissionPending:
		return "en attente"
	case model.MissionClosed:
		return "terminée"
	}
	return string(s)
}
