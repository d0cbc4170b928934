package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/validation"
)

// Remote は評価関連のリモートAPI呼び出しのインターフェース。
type Remote interface {
	HasRated(ctx context.Context, token, userID, authorID string) (bool, error)
	CreateReview(ctx context.Context, token string, in apiclient.ReviewInput) (*model.Review, error)
}

// ProviderPatcher は送信成功後に一覧上の提供者の集計値を更新する。
type ProviderPatcher interface {
	PatchProvider(id string, patch func(u *model.User)) bool
}

const (
	noticeAlreadyRated = "Vous avez déjà noté cet utilisateur."
	noticeSubmitted    = "Votre évaluation a été enregistrée avec succès."
	errSubmitFailed    = "Une erreur est survenue lors de la soumission de l'évaluation."
)

// State は評価ダイアログの状態のスナップショット。
type State struct {
	Open       bool           `json:"open"`
	TargetID   string         `json:"targetId,omitempty"`
	TargetName string         `json:"targetName,omitempty"`
	Scores     map[string]int `json:"scores,omitempty"`
	Comment    string         `json:"comment,omitempty"`
	Average    float64        `json:"average"`
	Submitting bool           `json:"submitting"`
	Notice     string         `json:"notice,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (s State) clone() State {
	if s.Scores != nil {
		scores := make(map[string]int, len(s.Scores))
		for k, v := range s.Scores {
			scores[k] = v
		}
		s.Scores = scores
	}
	return s
}

// orderedScores は基準の表示順に並べた点数を返す。
func (s State) orderedScores() []int {
	out := make([]int, 0, len(Criteria))
	for _, c := range Criteria {
		out = append(out, s.Scores[c.ID])
	}
	return out
}

// missing は未採点の基準のラベルを返す。
func (s State) missing() []string {
	var out []string
	for _, c := range Criteria {
		if s.Scores[c.ID] <= 0 {
			out = append(out, c.Label)
		}
	}
	return out
}

// Dialog は1訪問者の評価ダイアログを保持する。
type Dialog struct {
	remote    Remote
	sanitizer security.Sanitizer
	providers ProviderPatcher
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu    sync.Mutex
	seq   uint64
	state State
}

// NewDialog はDialogを生成する。providers は nil でもよい。
func NewDialog(remote Remote, sanitizer security.Sanitizer, providers ProviderPatcher, logger *slog.Logger, mc metrics.MetricsCollector) *Dialog {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Dialog{
		remote:    remote,
		sanitizer: sanitizer,
		providers: providers,
		logger:    logger,
		metrics:   mc,
	}
}

// State は現在の状態を返す。
func (d *Dialog) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.clone()
}

// Open は評価済みかを確認してからダイアログを開く。
// 評価済みの場合はダイアログを開かずに通知を設定し、AlreadyRated エラーを返す。
// 確認そのものが失敗した場合（401を除く）はダイアログを開く。
func (d *Dialog) Open(ctx context.Context, sess model.Session, target *model.User) (State, error) {
	if !sess.Authenticated() {
		return State{}, model.NewUnauthorizedError()
	}
	if target.ID == sess.User.ID {
		return State{}, model.NewSelfRatingError()
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	hasRated, err := d.remote.HasRated(ctx, sess.Token, target.ID, sess.User.ID)
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return State{}, fmt.Errorf("failed to check rating: %w", err)
		}
		d.logger.Warn("hasRated check failed, opening dialog anyway",
			slog.String("target_id", target.ID),
			slog.String("error", err.Error()),
		)
		hasRated = false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		d.metrics.RecordStaleResultDiscarded("rating_open")
		return d.state.clone(), nil
	}
	if hasRated {
		d.state = State{Notice: noticeAlreadyRated}
		return d.state.clone(), model.NewAlreadyRatedError()
	}

	scores := make(map[string]int, len(Criteria))
	for _, c := range Criteria {
		scores[c.ID] = 0
	}
	d.state = State{
		Open:       true,
		TargetID:   target.ID,
		TargetName: model.DisplayName(target),
		Scores:     scores,
	}
	return d.state.clone(), nil
}

// Update は点数とコメントを書き換える。scores に含まれない基準は変更しない。
// 点数は 0（未採点）から 5 まで。
func (d *Dialog) Update(scores map[string]int, comment *string) (State, error) {
	v := validation.Violations{}
	for id, score := range scores {
		if !IsCriterion(id) {
			v["criteria."+id] = "Critère inconnu"
			continue
		}
		validation.RangeInt("criteria."+id, score, 0, MaxScore, "La note doit être comprise entre 1 et 5", v)
	}
	if err := v.Err(); err != nil {
		return d.State(), err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.state.Open {
		return d.state.clone(), model.NewRatingNotOpenError()
	}
	for id, score := range scores {
		d.state.Scores[id] = score
	}
	if comment != nil {
		d.state.Comment = *comment
	}
	d.state.Average = Round1(Average(d.state.orderedScores()))
	d.state.Error = ""
	return d.state.clone(), nil
}

// Submit は評価を送信する。未採点の基準が残っている場合は送信しない。
// 失敗した場合はダイアログを開いたまま入力を保持する。自動リトライはしない。
// 成功した場合はダイアログを閉じ、一覧上の提供者の集計値を更新する。
func (d *Dialog) Submit(ctx context.Context, sess model.Session) (*model.Review, State, error) {
	if !sess.Authenticated() {
		return nil, State{}, model.NewUnauthorizedError()
	}

	d.mu.Lock()
	if !d.state.Open {
		st := d.state.clone()
		d.mu.Unlock()
		return nil, st, model.NewRatingNotOpenError()
	}
	if missing := d.state.missing(); len(missing) > 0 {
		st := d.state.clone()
		d.mu.Unlock()
		return nil, st, model.NewRatingIncompleteError(missing)
	}
	if d.state.Submitting {
		st := d.state.clone()
		d.mu.Unlock()
		return nil, st, model.NewInvalidRequestError("une évaluation est déjà en cours d'envoi")
	}
	d.state.Submitting = true
	d.state.Error = ""
	snapshot := d.state.clone()
	d.mu.Unlock()

	avg := Average(snapshot.orderedScores())
	review, err := d.remote.CreateReview(ctx, sess.Token, apiclient.ReviewInput{
		TargetUserID: snapshot.TargetID,
		AuthorID:     sess.User.ID,
		Rating:       avg,
		Comment:      d.sanitizer.Text(strings.TrimSpace(snapshot.Comment)),
		Criteria:     snapshot.Scores,
	})

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		if d.state.TargetID == snapshot.TargetID {
			d.state.Submitting = false
			d.state.Error = errSubmitFailed
		}
		d.logger.Error("failed to submit rating",
			slog.String("target_id", snapshot.TargetID),
			slog.String("error", err.Error()),
		)
		return nil, d.state.clone(), fmt.Errorf("failed to submit rating: %w", err)
	}

	if d.providers != nil {
		d.providers.PatchProvider(snapshot.TargetID, func(u *model.User) {
			u.Rating = Aggregate(u.Rating, avg)
		})
	}
	d.metrics.RecordRatingSubmitted()
	if d.state.TargetID == snapshot.TargetID {
		d.state = State{Notice: noticeSubmitted}
	}

	d.logger.Info("rating submitted",
		slog.String("target_id", snapshot.TargetID),
		slog.String("author_id", sess.User.ID),
		slog.Float64("rating", avg),
	)
	return review, d.state.clone(), nil
}

// Cancel はダイアログを閉じ、入力を破棄する。
func (d *Dialog) Cancel() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	d.state = State{}
	return d.state
}
