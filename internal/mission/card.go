package mission

import (
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/security"
)

// Card は一覧・詳細画面に表示するミッション1件分の表示モデル。
type Card struct {
	Mission        model.Mission
	Excerpt        string
	StatusLabel    string
	ApplicantCount int
	IsOwner        bool
	AlreadyApplied bool
	CanApply       bool
}

// Cards は条件に合うミッションを閲覧者から見たカードとして返す。
func (b *Board) Cards(sess model.Session, f ListFilter) []Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cards(sess, FilterMissions(b.missions, f))
}

// MyCards は閲覧者が投稿したミッションのカードを返す。
func (b *Board) MyCards(sess model.Session) []Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cards(sess, b.mine)
}

// CardFor は1件のミッションを閲覧者から見たカードにする。
func (b *Board) CardFor(sess model.Session, m model.Mission) Card {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.card(sess, m)
}

func (b *Board) cards(sess model.Session, missions []model.Mission) []Card {
	out := make([]Card, 0, len(missions))
	for _, m := range missions {
		out = append(out, b.card(sess, m))
	}
	return out
}

func (b *Board) card(sess model.Session, m model.Mission) Card {
	c := Card{
		Mission:        m,
		Excerpt:        security.Excerpt(m.Description, security.DefaultExcerptLength),
		StatusLabel:    m.Status.Label(),
		ApplicantCount: m.ApplicantCount(),
	}
	if !sess.Authenticated() {
		return c
	}
	c.IsOwner = m.PostedBy == sess.User.ID
	c.AlreadyApplied = b.alreadyApplied(m.ID)
	c.CanApply = sess.User.Kind() == model.KindIndividual &&
		m.Status == model.MissionOpen &&
		!c.IsOwner &&
		!c.AlreadyApplied
	return c
}
