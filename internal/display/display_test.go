package display

import (
	"sync"
	"testing"

	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/security"
)

func TestBlurredPhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0612345678", "06 12 •• •• ••"},
		{"06 12 34 56 78", "06 12 •• •• ••"},
		{"+33612345678", "+•••••••••••"},
		{"12345", "•••••"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BlurredPhone(tt.in); got != tt.want {
			t.Errorf("BlurredPhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBlurredEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcdef@example.fr", "abc***@example.fr"},
		{"abc@example.fr", "*@example.fr"},
		{"élodie@example.fr", "élo***@example.fr"},
	}
	for _, tt := range tests {
		if got := BlurredEmail(tt.in); got != tt.want {
			t.Errorf("BlurredEmail(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTradeName(t *testing.T) {
	if got := TradeName("macon"); got != "Maçon" {
		t.Errorf("TradeName(macon) = %q", got)
	}
	if got := TradeName("couvreur"); got != "couvreur" {
		t.Errorf("カタログに無い職種はIDを返すべきです: got %q", got)
	}
	if got := TradeColor("couvreur"); got != defaultTradeColor {
		t.Errorf("カタログに無い職種は既定の色を返すべきです: got %q", got)
	}
	if len(Trades) != 6 {
		t.Errorf("職種は6件であるべきです: got %d", len(Trades))
	}
}

func TestToggles_Independent(t *testing.T) {
	tg := NewToggles()

	if !tg.TogglePhone("a") {
		t.Error("1回目の切り替えで表示になるべきです")
	}
	if tg.PhoneVisible("b") {
		t.Error("他の提供者の電話番号には影響しないべきです")
	}
	if tg.EmailVisible() {
		t.Error("メールアドレスには影響しないべきです")
	}
	if tg.TogglePhone("a") {
		t.Error("2回目の切り替えで非表示に戻るべきです")
	}
	if !tg.ToggleEmail() {
		t.Error("メールアドレスが表示になるべきです")
	}

	tg.Reset()
	if tg.EmailVisible() || tg.PhoneVisible("a") {
		t.Error("Reset 後はすべて非表示であるべきです")
	}
}

func TestToggles_Concurrent(t *testing.T) {
	tg := NewToggles()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tg.TogglePhone("a")
		}()
	}
	wg.Wait()
	if tg.PhoneVisible("a") {
		t.Error("偶数回の切り替えで非表示に戻るべきです")
	}
}

func provider() *model.User {
	return &model.User{
		ID:          "pro-1",
		Email:       "jean.dupont@example.fr",
		Phone:       "0612345678",
		Trade:       "peintre",
		City:        "Lyon",
		Department:  "69",
		Description: "<p>Peintre depuis 20 ans</p><script>x()</script>",
		Individual:  &model.Individual{FirstName: "Jean", LastName: "Dupont"},
		Rating:      model.AggregateRating{Mean: 4.5, Count: 2},
		Reviews:     []model.Review{{ID: "r1", Rating: 4, Comment: "<b>Super</b>"}},
	}
}

func TestNewProviderCard_BlurredForAnonymous(t *testing.T) {
	anon := NewProviderCard(provider(), model.Session{})
	if !anon.Blurred || anon.Excerpt != "" {
		t.Errorf("未ログインではぼかして紹介文を含めないべきです: got %+v", anon)
	}

	viewer := model.Session{Token: "t", User: &model.User{ID: "c1", Company: &model.Company{}}}
	c := NewProviderCard(provider(), viewer)
	if c.Blurred {
		t.Error("ログイン済みではぼかさないべきです")
	}
	if c.Name != "Jean Dupont" || c.TradeLabel != "Peintre" || c.Location != "Lyon, 69" {
		t.Errorf("カードの内容が一致しません: got %+v", c)
	}
	if c.Excerpt != "Peintre depuis 20 ans" {
		t.Errorf("紹介文の抜粋が一致しません: got %q", c.Excerpt)
	}
}

func TestNewProfile_FollowsToggles(t *testing.T) {
	san := security.NewSanitizer()
	tg := NewToggles()
	u := provider()

	p := NewProfile(u, model.Session{}, tg, san)
	if p.Phone != "06 12 •• •• ••" || p.Email != "jea***@example.fr" {
		t.Errorf("切り替え前は伏せるべきです: phone=%q email=%q", p.Phone, p.Email)
	}
	if p.Description != "<p>Peintre depuis 20 ans</p>" {
		t.Errorf("紹介文は無害化されるべきです: got %q", p.Description)
	}
	if p.Reviews[0].Comment != "Super" {
		t.Errorf("コメントはタグを除去するべきです: got %q", p.Reviews[0].Comment)
	}

	tg.TogglePhone("pro-1")
	p = NewProfile(u, model.Session{}, tg, san)
	if p.Phone != "0612345678" || !p.PhoneVisible {
		t.Errorf("切り替え後は電話番号を表示するべきです: got %q", p.Phone)
	}
	if p.EmailVisible {
		t.Error("メールアドレスは切り替えていないので伏せたままであるべきです")
	}
}
