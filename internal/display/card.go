package display

import (
	"time"

	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/security"
)

// ProviderCard は一覧に表示する提供者カード。
// 未ログインの閲覧者にはぼかした状態で表示し、紹介文を含めない。
type ProviderCard struct {
	ID            string         `json:"id"`
	Kind          model.UserKind `json:"userType"`
	Name          string         `json:"name"`
	Initials      string         `json:"initials"`
	Trade         string         `json:"trade"`
	TradeLabel    string         `json:"tradeLabel"`
	TradeColor    string         `json:"tradeColor"`
	Location      string         `json:"location"`
	LogoURL       string         `json:"logoUrl,omitempty"`
	BannerURL     string         `json:"bannerUrl,omitempty"`
	Rating        float64        `json:"rating"`
	RatingCount   int            `json:"ratingCount"`
	OpenForWork   bool           `json:"openForWork"`
	Mobile        bool           `json:"mobile"`
	ShortMissions bool           `json:"shortMissions"`
	LongMissions  bool           `json:"longMissions"`
	Excerpt       string         `json:"excerpt,omitempty"`
	Blurred       bool           `json:"blurred"`
}

// NewProviderCard は閲覧者から見た提供者カードを組み立てる。
func NewProviderCard(u *model.User, viewer model.Session) ProviderCard {
	c := ProviderCard{
		ID:            u.ID,
		Kind:          u.Kind(),
		Name:          model.DisplayName(u),
		Initials:      model.Initials(u),
		Trade:         u.Trade,
		TradeLabel:    TradeName(u.Trade),
		TradeColor:    TradeColor(u.Trade),
		Location:      model.Location(u),
		LogoURL:       model.LogoURL(u),
		BannerURL:     u.BannerURL,
		Rating:        u.Rating.Mean,
		RatingCount:   u.Rating.Count,
		OpenForWork:   model.IsOpenForWork(u),
		Mobile:        u.Mobile,
		ShortMissions: u.ShortMissions,
		LongMissions:  u.LongMissions,
		Blurred:       !viewer.Authenticated(),
	}
	if !c.Blurred {
		c.Excerpt = security.Excerpt(u.Description, security.DefaultExcerptLength)
	}
	return c
}

// ProviderCards は提供者の一覧をカードに変換する。
func ProviderCards(users []*model.User, viewer model.Session) []ProviderCard {
	out := make([]ProviderCard, 0, len(users))
	for _, u := range users {
		out = append(out, NewProviderCard(u, viewer))
	}
	return out
}

// ReviewView はプロフィールに表示する評価1件。
type ReviewView struct {
	ID        string         `json:"id"`
	AuthorID  string         `json:"authorId"`
	Rating    float64        `json:"rating"`
	Comment   string         `json:"comment"`
	Criteria  map[string]int `json:"criteria,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ImageView はギャラリー画像1枚。
type ImageView struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Profile は提供者のプロフィール画面。
// 電話番号とメールアドレスは表示切り替えがオフの間は伏せた値になる。
type Profile struct {
	ProviderCard
	Description  string            `json:"description"`
	Phone        string            `json:"phone"`
	PhoneVisible bool              `json:"phoneVisible"`
	Email        string            `json:"email"`
	EmailVisible bool              `json:"emailVisible"`
	Social       map[string]string `json:"social,omitempty"`
	Images       []ImageView       `json:"images"`
	Reviews      []ReviewView      `json:"reviews"`
	IsSelf       bool              `json:"isSelf"`
}

// NewProfile は表示切り替えの状態に従ってプロフィールを組み立てる。
// 紹介文と評価コメントは表示前に無害化する。
func NewProfile(u *model.User, viewer model.Session, toggles *Toggles, san security.Sanitizer) Profile {
	p := Profile{
		ProviderCard: NewProviderCard(u, viewer),
		Description:  san.HTML(u.Description),
		PhoneVisible: toggles.PhoneVisible(u.ID),
		EmailVisible: toggles.EmailVisible(),
		Images:       make([]ImageView, 0, len(u.Images)),
		Reviews:      make([]ReviewView, 0, len(u.Reviews)),
		IsSelf:       viewer.Authenticated() && viewer.User.ID == u.ID,
	}
	p.Blurred = false
	p.Excerpt = ""

	p.Phone = BlurredPhone(u.Phone)
	if p.PhoneVisible {
		p.Phone = u.Phone
	}
	p.Email = BlurredEmail(u.Email)
	if p.EmailVisible {
		p.Email = u.Email
	}
	if u.Phone == "" {
		p.Phone = ""
	}
	if u.Email == "" {
		p.Email = ""
	}

	social := map[string]string{
		"website":   u.Social.Website,
		"facebook":  u.Social.Facebook,
		"instagram": u.Social.Instagram,
		"linkedin":  u.Social.LinkedIn,
	}
	for k, v := range social {
		if v == "" {
			delete(social, k)
		}
	}
	if len(social) > 0 {
		p.Social = social
	}

	for _, img := range u.Images {
		p.Images = append(p.Images, ImageView{ID: img.ID, URL: img.URL})
	}
	for _, r := range u.Reviews {
		p.Reviews = append(p.Reviews, ReviewView{
			ID:        r.ID,
			AuthorID:  r.AuthorID,
			Rating:    r.Rating,
			Comment:   san.Text(r.Comment),
			Criteria:  r.Criteria,
			CreatedAt: r.CreatedAt,
		})
	}
	return p
}
