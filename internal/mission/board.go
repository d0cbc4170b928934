// Package mission はミッションの投稿・閲覧・応募・応募者管理の状態を保持する。
//
// 成功した呼び出しの結果だけを手元の状態に反映する。
// 応募ステータスの変更のみ楽観的に反映し、失敗時に元へ戻す。
package mission

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/optimistic"
	"github.com/hitoshi/btpmatch/internal/security"
)

// Remote はミッション関連のリモートAPI呼び出しのインターフェース。
type Remote interface {
	ListMissions(ctx context.Context, token string) ([]model.Mission, error)
	ListMyMissions(ctx context.Context, token string) ([]model.Mission, error)
	GetMission(ctx context.Context, token, missionID string) (*model.Mission, error)
	CreateMission(ctx context.Context, token string, in apiclient.MissionInput) (*model.Mission, error)
	UpdateMission(ctx context.Context, token, missionID string, in apiclient.MissionInput) (*model.Mission, error)
	ApplyToMission(ctx context.Context, token, missionID string) (*model.Application, error)
	ListApplicationsForMission(ctx context.Context, token, missionID string) ([]model.Application, error)
	ListMyApplications(ctx context.Context, token string) ([]model.Application, error)
	UpdateApplicationStatus(ctx context.Context, token, applicationID string, status model.ApplicationStatus) (*model.Application, error)
}

const (
	flowMissions       = "missions"
	flowMyMissions     = "my_missions"
	flowMyApplications = "my_applications"
)

func flowMission(id string) string      { return "mission:" + id }
func flowApplications(id string) string { return "applications:" + id }

// trackedApplication は応募1件と、楽観的に更新されるステータス。
type trackedApplication struct {
	app    model.Application
	status *optimistic.Tracked[model.ApplicationStatus]
}

func (t *trackedApplication) view() model.Application {
	a := t.app
	a.Status = t.status.Optimistic()
	return a
}

// Board は1訪問者のミッション関連の状態を保持する。
// リモート呼び出し中はロックを保持せず、取得系はフローごとのシーケンス番号で
// 古いレスポンスを破棄する。
type Board struct {
	remote    Remote
	sanitizer security.Sanitizer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector

	mu             sync.Mutex
	seqs           map[string]uint64
	missions       []model.Mission
	mine           []model.Mission
	myApplications []model.Application
	applications   map[string][]*trackedApplication
	form           Form
	loaded         bool
}

// NewBoard はBoardを生成する。
func NewBoard(remote Remote, sanitizer security.Sanitizer, logger *slog.Logger, mc metrics.MetricsCollector) *Board {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Board{
		remote:       remote,
		sanitizer:    sanitizer,
		logger:       logger,
		metrics:      mc,
		seqs:         make(map[string]uint64),
		applications: make(map[string][]*trackedApplication),
	}
}

// begin はフローのシーケンス番号を進めて返す。ロックを保持して呼ぶこと。
func (b *Board) begin(flow string) uint64 {
	b.seqs[flow]++
	return b.seqs[flow]
}

// stale はより新しい取得が開始されていれば true を返す。ロックを保持して呼ぶこと。
func (b *Board) stale(flow string, seq uint64) bool {
	if b.seqs[flow] == seq {
		return false
	}
	b.metrics.RecordStaleResultDiscarded(flow)
	b.logger.Debug("discarding stale mission result",
		slog.String("flow", flow),
		slog.Uint64("seq", seq),
		slog.Uint64("latest_seq", b.seqs[flow]),
	)
	return true
}

// Load は全ミッションを取得し直す。失敗した場合は以前の一覧を保持する。
func (b *Board) Load(ctx context.Context, sess model.Session) error {
	b.mu.Lock()
	seq := b.begin(flowMissions)
	b.mu.Unlock()

	missions, err := b.remote.ListMissions(ctx, sess.Token)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(flowMissions, seq) {
		return nil
	}
	if err != nil {
		b.logger.Error("failed to fetch missions", slog.String("error", err.Error()))
		return fmt.Errorf("failed to fetch missions: %w", err)
	}
	b.missions = missions
	b.loaded = true
	return nil
}

// LoadMine は閲覧者が投稿したミッションを取得し直す。
func (b *Board) LoadMine(ctx context.Context, sess model.Session) error {
	if !sess.Authenticated() {
		return model.NewUnauthorizedError()
	}
	b.mu.Lock()
	seq := b.begin(flowMyMissions)
	b.mu.Unlock()

	missions, err := b.remote.ListMyMissions(ctx, sess.Token)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(flowMyMissions, seq) {
		return nil
	}
	if err != nil {
		b.logger.Error("failed to fetch my missions",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to fetch my missions: %w", err)
	}
	b.mine = missions
	return nil
}

// LoadMyApplications は閲覧者の応募一覧を取得し直す。
func (b *Board) LoadMyApplications(ctx context.Context, sess model.Session) error {
	if !sess.Authenticated() {
		return model.NewUnauthorizedError()
	}
	b.mu.Lock()
	seq := b.begin(flowMyApplications)
	b.mu.Unlock()

	apps, err := b.remote.ListMyApplications(ctx, sess.Token)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(flowMyApplications, seq) {
		return nil
	}
	if err != nil {
		b.logger.Error("failed to fetch my applications",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to fetch my applications: %w", err)
	}
	b.myApplications = apps
	return nil
}

// Loaded は全ミッションを一度でも取得できたかを返す。
func (b *Board) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Missions は条件に合うミッションのコピーを返す。
func (b *Board) Missions(f ListFilter) []model.Mission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return FilterMissions(b.missions, f)
}

// MyMissions は閲覧者が投稿したミッションのコピーを返す。
func (b *Board) MyMissions() []model.Mission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Mission(nil), b.mine...)
}

// MyApplications は閲覧者の応募一覧のコピーを返す。
func (b *Board) MyApplications() []model.Application {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Application(nil), b.myApplications...)
}

// AlreadyApplied は閲覧者の応募一覧に missionID への応募があるかを返す。
func (b *Board) AlreadyApplied(missionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.alreadyApplied(missionID)
}

func (b *Board) alreadyApplied(missionID string) bool {
	for _, a := range b.myApplications {
		if a.MissionID == missionID {
			return true
		}
	}
	return false
}

// lookup は手元の一覧からミッションを探す。ロックを保持して呼ぶこと。
func (b *Board) lookup(id string) (model.Mission, bool) {
	for _, list := range [][]model.Mission{b.mine, b.missions} {
		for _, m := range list {
			if m.ID == id {
				return m, true
			}
		}
	}
	return model.Mission{}, false
}

// store は手元の一覧に含まれる同じIDのミッションを置き換える。ロックを保持して呼ぶこと。
func (b *Board) store(m model.Mission) {
	for _, list := range [][]model.Mission{b.mine, b.missions} {
		for i := range list {
			if list[i].ID == m.ID {
				list[i] = m
			}
		}
	}
}

// Get はミッション1件を取得し、手元の一覧にも反映する。
func (b *Board) Get(ctx context.Context, sess model.Session, id string) (*model.Mission, error) {
	flow := flowMission(id)
	b.mu.Lock()
	seq := b.begin(flow)
	b.mu.Unlock()

	m, err := b.remote.GetMission(ctx, sess.Token, id)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewMissionNotFoundError(id)
		}
		b.logger.Error("failed to fetch mission",
			slog.String("mission_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to fetch mission: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.stale(flow, seq) {
		b.store(*m)
	}
	return m, nil
}

// Form は作成フォームの現在の入力値を返す。
func (b *Board) Form() Form {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.form
}

// CreateMission はミッションを投稿する。
// 成功した場合は自分のミッション一覧と全体の一覧に追加し、フォームを空に戻す。
// 失敗した場合はフォームの入力を保持したままエラーを返す。
func (b *Board) CreateMission(ctx context.Context, sess model.Session, f Form) (*model.Mission, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}

	b.mu.Lock()
	b.form = f
	b.mu.Unlock()

	in, err := f.Input(b.sanitizer)
	if err != nil {
		return nil, err
	}

	m, err := b.remote.CreateMission(ctx, sess.Token, in)
	if err != nil {
		b.logger.Error("failed to create mission",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create mission: %w", err)
	}
	if m.PostedBy == "" {
		m.PostedBy = sess.User.ID
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// 作成と並行して自分のミッションを読み込んでいた場合、既に含まれていることがある
	if i, ok := findMission(b.mine, m.ID); ok {
		b.mine[i] = *m
	} else {
		b.mine = append(b.mine, *m)
	}
	if _, ok := findMission(b.missions, m.ID); !ok {
		b.missions = append(b.missions, *m)
	}
	b.form = Form{}

	b.logger.Info("mission created",
		slog.String("mission_id", m.ID),
		slog.String("user_id", sess.User.ID),
	)
	return m, nil
}

func findMission(list []model.Mission, id string) (int, bool) {
	for i := range list {
		if list[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// owned はミッションを取得し、閲覧者が投稿者であることを確認する。
func (b *Board) owned(ctx context.Context, sess model.Session, id string) (model.Mission, error) {
	b.mu.Lock()
	m, ok := b.lookup(id)
	b.mu.Unlock()
	if !ok {
		fetched, err := b.Get(ctx, sess, id)
		if err != nil {
			return model.Mission{}, err
		}
		m = *fetched
	}
	if m.PostedBy != sess.User.ID {
		return model.Mission{}, model.NewNotMissionOwnerError()
	}
	return m, nil
}

// UpdateMission はタイトルと説明を更新し、返されたフィールドを手元の状態にマージする。
func (b *Board) UpdateMission(ctx context.Context, sess model.Session, id string, e Edit) (*model.Mission, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}
	current, err := b.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	in, err := e.Input(b.sanitizer)
	if err != nil {
		return nil, err
	}
	return b.update(ctx, sess, current, in)
}

// ChangeStatus は投稿者としてミッションのステータスを変更する。
// 許可されていない遷移はネットワーク呼び出しの前に拒否する。
func (b *Board) ChangeStatus(ctx context.Context, sess model.Session, id string, to model.MissionStatus) (*model.Mission, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}
	current, err := b.owned(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(to) {
		return nil, model.NewInvalidStatusTransitionError(current.Status.Label(), to.Label())
	}
	return b.update(ctx, sess, current, apiclient.MissionInput{Status: &to})
}

func (b *Board) update(ctx context.Context, sess model.Session, current model.Mission, in apiclient.MissionInput) (*model.Mission, error) {
	updated, err := b.remote.UpdateMission(ctx, sess.Token, current.ID, in)
	if err != nil {
		b.logger.Error("failed to update mission",
			slog.String("mission_id", current.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to update mission: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	base, ok := b.lookup(current.ID)
	if !ok {
		base = current
	}
	merged := merge(base, updated, in)
	b.store(merged)
	return &merged, nil
}

// merge は返されたミッションを手元のミッションに重ねる。
// サーバーが本体を返さない場合は送信した値を反映する。
func merge(base model.Mission, updated *model.Mission, in apiclient.MissionInput) model.Mission {
	if updated == nil {
		if in.Title != nil {
			base.Title = *in.Title
		}
		if in.Description != nil {
			base.Description = *in.Description
		}
		if in.Status != nil {
			base.Status = *in.Status
		}
		return base
	}
	out := *updated
	if out.Applications == nil {
		out.Applications = base.Applications
	}
	if out.Poster == (model.PosterSummary{}) {
		out.Poster = base.Poster
	}
	if out.PostedBy == "" {
		out.PostedBy = base.PostedBy
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = base.CreatedAt
	}
	return out
}

// Apply は閲覧者としてミッションに応募する。
// 未ログイン、個人事業者以外、応募済み、自分のミッション、募集終了はネットワーク呼び出しの前に拒否する。
func (b *Board) Apply(ctx context.Context, sess model.Session, missionID string) (*model.Application, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}
	if sess.User.Kind() != model.KindIndividual {
		return nil, model.NewNotProfessionalError()
	}

	b.mu.Lock()
	if b.alreadyApplied(missionID) {
		b.mu.Unlock()
		return nil, model.NewAlreadyAppliedError()
	}
	m, known := b.lookup(missionID)
	b.mu.Unlock()

	if known {
		if m.PostedBy == sess.User.ID {
			return nil, model.NewOwnMissionError()
		}
		if m.Status != model.MissionOpen {
			return nil, model.NewMissionNotOpenError()
		}
	}

	app, err := b.remote.ApplyToMission(ctx, sess.Token, missionID)
	if err != nil {
		b.logger.Error("failed to apply to mission",
			slog.String("mission_id", missionID),
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to apply to mission: %w", err)
	}
	if app.MissionID == "" {
		app.MissionID = missionID
	}
	if app.ApplicantID == "" {
		app.ApplicantID = sess.User.ID
	}
	if app.Status == "" {
		app.Status = model.ApplicationPending
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alreadyApplied(missionID) {
		b.myApplications = append(b.myApplications, *app)
		for _, list := range [][]model.Mission{b.mine, b.missions} {
			if i, ok := findMission(list, missionID); ok {
				apps := make([]model.Application, 0, len(list[i].Applications)+1)
				apps = append(apps, list[i].Applications...)
				list[i].Applications = append(apps, *app)
			}
		}
	}
	b.metrics.RecordApplicationSubmitted()

	b.logger.Info("applied to mission",
		slog.String("mission_id", missionID),
		slog.String("application_id", app.ID),
		slog.String("user_id", sess.User.ID),
	)
	return app, nil
}

// LoadApplications はミッションの応募一覧を取得し直す。
// 取得結果はサーバー側の確定値として扱い、確定待ちの楽観的更新は破棄する。
func (b *Board) LoadApplications(ctx context.Context, sess model.Session, missionID string) ([]model.Application, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}
	flow := flowApplications(missionID)
	b.mu.Lock()
	seq := b.begin(flow)
	b.mu.Unlock()

	apps, err := b.remote.ListApplicationsForMission(ctx, sess.Token, missionID)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stale(flow, seq) {
		return b.applicationsView(missionID), nil
	}
	if err != nil {
		b.logger.Error("failed to fetch applications",
			slog.String("mission_id", missionID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to fetch applications: %w", err)
	}

	prev := make(map[string]*trackedApplication, len(b.applications[missionID]))
	for _, ta := range b.applications[missionID] {
		prev[ta.app.ID] = ta
	}
	tracked := make([]*trackedApplication, 0, len(apps))
	for _, a := range apps {
		if ta, ok := prev[a.ID]; ok {
			ta.app = a
			ta.status.Reset(a.Status)
			tracked = append(tracked, ta)
			continue
		}
		tracked = append(tracked, &trackedApplication{app: a, status: optimistic.New(a.Status)})
	}
	b.applications[missionID] = tracked

	for _, list := range [][]model.Mission{b.mine, b.missions} {
		if i, ok := findMission(list, missionID); ok {
			list[i].Applications = append([]model.Application(nil), apps...)
		}
	}
	return b.applicationsView(missionID), nil
}

// Applications は手元にあるミッションの応募一覧を、楽観的な状態込みで返す。
func (b *Board) Applications(missionID string) []model.Application {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.applicationsView(missionID)
}

func (b *Board) applicationsView(missionID string) []model.Application {
	tracked := b.applications[missionID]
	out := make([]model.Application, 0, len(tracked))
	for _, ta := range tracked {
		out = append(out, ta.view())
	}
	return out
}

func (b *Board) findApplication(applicationID string) *trackedApplication {
	for _, tracked := range b.applications {
		for _, ta := range tracked {
			if ta.app.ID == applicationID {
				return ta
			}
		}
	}
	return nil
}

// UpdateApplicationStatus は応募を承認または却下する。
// 応答を待たずに手元の状態を変更し、失敗した場合は元の状態に戻す。
func (b *Board) UpdateApplicationStatus(ctx context.Context, sess model.Session, applicationID string, to model.ApplicationStatus) (*model.Application, error) {
	if !sess.Authenticated() {
		return nil, model.NewUnauthorizedError()
	}

	b.mu.Lock()
	ta := b.findApplication(applicationID)
	if ta == nil {
		b.mu.Unlock()
		return nil, model.NewApplicationNotFoundError(applicationID)
	}
	if m, ok := b.lookup(ta.app.MissionID); ok && m.PostedBy != sess.User.ID {
		b.mu.Unlock()
		return nil, model.NewNotMissionOwnerError()
	}
	from := ta.status.Optimistic()
	if !from.CanTransitionTo(to) {
		b.mu.Unlock()
		return nil, model.NewInvalidStatusTransitionError(string(from), string(to))
	}
	tok := ta.status.Begin(to)
	b.mu.Unlock()

	updated, err := b.remote.UpdateApplicationStatus(ctx, sess.Token, applicationID, to)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		ta.status.Rollback(tok)
		b.logger.Error("failed to update application status",
			slog.String("application_id", applicationID),
			slog.String("status", string(to)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to update application status: %w", err)
	}

	confirmed := to
	if updated != nil && updated.Status != "" {
		confirmed = updated.Status
	}
	ta.status.Commit(tok, confirmed)

	for _, list := range [][]model.Mission{b.mine, b.missions} {
		if i, ok := findMission(list, ta.app.MissionID); ok {
			apps := append([]model.Application(nil), list[i].Applications...)
			for j := range apps {
				if apps[j].ID == applicationID {
					apps[j].Status = confirmed
				}
			}
			list[i].Applications = apps
		}
	}

	v := ta.view()
	return &v, nil
}

// Forget はログアウト時に閲覧者固有の状態（自分のミッション、応募、フォーム）を破棄する。
func (b *Board) Forget() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mine = nil
	b.myApplications = nil
	b.applications = make(map[string][]*trackedApplication)
	b.form = Form{}
	for flow := range b.seqs {
		b.seqs[flow]++
	}
}
