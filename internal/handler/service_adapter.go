package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/hitoshi/btpmatch/internal/account"
	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/auth"
	"github.com/hitoshi/btpmatch/internal/display"
	"github.com/hitoshi/btpmatch/internal/mission"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/rating"
	"github.com/hitoshi/btpmatch/internal/search"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/session"
	"github.com/hitoshi/btpmatch/internal/workspace"
)

// WorkspaceResolver は訪問者IDからワークスペースを引くインターフェース。
type WorkspaceResolver interface {
	Get(ctx context.Context, visitorID string) (*workspace.Workspace, error)
}

// UserFetcher は提供者1人を取得するインターフェース。
type UserFetcher interface {
	GetUser(ctx context.Context, token, userID string) (*model.User, error)
}

// WorkspaceServices は訪問者のワークスペースとドメインサービスを
// 各ハンドラーのサービスインターフェースに適合させるアダプタ。
type WorkspaceServices struct {
	workspaces WorkspaceResolver
	auth       *auth.Service
	account    *account.Service
	users      UserFetcher
	sanitizer  security.Sanitizer
	logger     *slog.Logger
}

// NewWorkspaceServices はWorkspaceServicesを生成する。
func NewWorkspaceServices(workspaces WorkspaceResolver, authSvc *auth.Service, accountSvc *account.Service, users UserFetcher, sanitizer security.Sanitizer, logger *slog.Logger) *WorkspaceServices {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceServices{
		workspaces: workspaces,
		auth:       authSvc,
		account:    accountSvc,
		users:      users,
		sanitizer:  sanitizer,
		logger:     logger,
	}
}

var (
	_ AuthServiceInterface     = (*WorkspaceServices)(nil)
	_ ProviderServiceInterface = (*WorkspaceServices)(nil)
	_ RatingServiceInterface   = (*WorkspaceServices)(nil)
	_ MissionServiceInterface  = (*WorkspaceServices)(nil)
	_ AccountServiceInterface  = (*WorkspaceServices)(nil)
	_ SessionTerminator        = (*WorkspaceServices)(nil)
)

func (a *WorkspaceServices) workspace(ctx context.Context, visitorID string) (*workspace.Workspace, error) {
	ws, err := a.workspaces.Get(ctx, visitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}
	return ws, nil
}

// ForceLogout はリモートAPIの401を受けたときにセッションを終了させ、画面状態を捨てる。
// セッションが既に終了していれば強制ログアウトとして二重に記録しない。
func (a *WorkspaceServices) ForceLogout(ctx context.Context, visitorID string) string {
	ws, err := a.workspaces.Get(ctx, visitorID)
	if err != nil {
		a.logger.Error("failed to resolve workspace for forced logout",
			slog.String("visitor_id", visitorID),
			slog.String("error", err.Error()),
		)
		return session.LoginPath
	}

	redirect := session.LoginPath
	if ws.Session.Current().Authenticated() {
		redirect = ws.Session.ForceLogout(ctx)
	}
	ws.SessionChanged()
	return redirect
}

// --- 認証 ---

// Register は新規登録を行う。訪問者のセッションには影響しない。
func (a *WorkspaceServices) Register(ctx context.Context, in auth.Registration) (string, error) {
	return a.auth.Register(ctx, in)
}

// Login はログインし、閲覧者が変わったので画面状態を作り直す。
func (a *WorkspaceServices) Login(ctx context.Context, visitorID string, in auth.Credentials) (*sessionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess, err := a.auth.Login(ctx, ws.Session, in)
	if err != nil {
		return nil, err
	}
	ws.SessionChanged()
	return toSessionResponse(sess), nil
}

// Logout はログアウトする。ストアの削除に失敗してもメモリ上の画面状態は捨てる。
func (a *WorkspaceServices) Logout(ctx context.Context, visitorID string) (string, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return "", err
	}
	redirect, err := a.auth.Logout(ctx, ws.Session)
	ws.SessionChanged()
	return redirect, err
}

// Me は現在のセッションを返す。
func (a *WorkspaceServices) Me(ctx context.Context, visitorID string) (*sessionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess, err := a.auth.Me(ws.Session)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

// Refresh はユーザーを取り直す。
func (a *WorkspaceServices) Refresh(ctx context.Context, visitorID string) (*sessionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess, err := a.auth.Refresh(ctx, ws.Session)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(sess), nil
}

// --- 提供者一覧・フィルタ ---

// ListProviders は一覧の指定ページを返す。
// 未取得であれば取得し、クエリにフィルタがあれば適用済みの条件を置き換えて取得し直す。
// 401以外の取得失敗はエラーではなく、空の一覧とエラーメッセージとして返す。
func (a *WorkspaceServices) ListProviders(ctx context.Context, visitorID string, page int, query url.Values) (*providerPageResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()

	refetch := ws.Listing.NeedsLoad()
	if c, ok := search.CriteriaFromQuery(query); ok && ws.Listing.Seed(c) {
		refetch = true
	}
	if refetch {
		if err := a.refreshListing(ctx, ws, sess); err != nil {
			return nil, err
		}
	}
	return toProviderPageResponse(ws.Listing.View(page), sess), nil
}

func (a *WorkspaceServices) refreshListing(ctx context.Context, ws *workspace.Workspace, sess model.Session) error {
	if err := ws.Listing.Refresh(ctx, sess); err != nil && errors.Is(err, apiclient.ErrUnauthorized) {
		return err
	}
	return nil
}

// provider は手元の一覧から提供者を探し、無ければリモートAPIから取得する。
func (a *WorkspaceServices) provider(ctx context.Context, ws *workspace.Workspace, sess model.Session, providerID string, preferCached bool) (*model.User, error) {
	if preferCached {
		if u := ws.Listing.Provider(providerID); u != nil {
			return u, nil
		}
	}
	u, err := a.users.GetUser(ctx, sess.Token, providerID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("failed to fetch provider: %w", err)
	}
	return u, nil
}

// GetProvider はプロフィール画面を返す。評価やギャラリーを含めるため常に取得し直す。
func (a *WorkspaceServices) GetProvider(ctx context.Context, visitorID, providerID string) (*display.Profile, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	u, err := a.provider(ctx, ws, sess, providerID, false)
	if err != nil {
		return nil, err
	}
	profile := display.NewProfile(u, sess, ws.Toggles, a.sanitizer)
	return &profile, nil
}

// OpenFilterPanel はパネルを開き、下書きを適用済みの条件で初期化する。
func (a *WorkspaceServices) OpenFilterPanel(ctx context.Context, visitorID string) (*filterPanelResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	ws.Listing.OpenPanel()
	return toFilterPanelResponse(ws.Listing.View(0)), nil
}

// SetFilterDraft は下書きを置き換える。
func (a *WorkspaceServices) SetFilterDraft(ctx context.Context, visitorID string, draft search.Criteria) (*filterPanelResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	ws.Listing.SetDraft(draft)
	return toFilterPanelResponse(ws.Listing.View(0)), nil
}

// ApplyFilters は下書きを確定し、条件が変わっていれば取得し直す。
func (a *WorkspaceServices) ApplyFilters(ctx context.Context, visitorID string) (*providerPageResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	if ws.Listing.ApplyDraft() || ws.Listing.NeedsLoad() {
		if err := a.refreshListing(ctx, ws, sess); err != nil {
			return nil, err
		}
	}
	return toProviderPageResponse(ws.Listing.View(1), sess), nil
}

// ResetFilterDraft は下書きをデフォルトに戻す。
func (a *WorkspaceServices) ResetFilterDraft(ctx context.Context, visitorID string) (*filterPanelResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	ws.Listing.ResetDraft()
	return toFilterPanelResponse(ws.Listing.View(0)), nil
}

// RemoveFilter は適用済みの条件を1つ外し、取得し直す。
func (a *WorkspaceServices) RemoveFilter(ctx context.Context, visitorID string, key search.FilterKey) (*providerPageResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	if ws.Listing.RemoveApplied(key) {
		if err := a.refreshListing(ctx, ws, sess); err != nil {
			return nil, err
		}
	}
	return toProviderPageResponse(ws.Listing.View(0), sess), nil
}

// TogglePhone は提供者の電話番号の表示を切り替える。
func (a *WorkspaceServices) TogglePhone(ctx context.Context, visitorID, providerID string) (*toggleResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	return &toggleResponse{Visible: ws.Toggles.TogglePhone(providerID)}, nil
}

// ToggleEmail はメールアドレスの表示を切り替える。
func (a *WorkspaceServices) ToggleEmail(ctx context.Context, visitorID string) (*toggleResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	return &toggleResponse{Visible: ws.Toggles.ToggleEmail()}, nil
}

// --- 評価 ---

// OpenRating は評価ダイアログを開く。
func (a *WorkspaceServices) OpenRating(ctx context.Context, visitorID, providerID string) (rating.State, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return rating.State{}, err
	}
	sess := ws.Session.Current()
	if !sess.Authenticated() {
		return rating.State{}, model.NewUnauthorizedError()
	}
	target, err := a.provider(ctx, ws, sess, providerID, true)
	if err != nil {
		return rating.State{}, err
	}
	return ws.Rating.Open(ctx, sess, target)
}

// UpdateRating は点数とコメントを更新する。
func (a *WorkspaceServices) UpdateRating(ctx context.Context, visitorID string, scores map[string]int, comment *string) (rating.State, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return rating.State{}, err
	}
	return ws.Rating.Update(scores, comment)
}

// SubmitRating は評価を送信する。
func (a *WorkspaceServices) SubmitRating(ctx context.Context, visitorID string) (*ratingSubmitResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	review, state, err := ws.Rating.Submit(ctx, ws.Session.Current())
	if err != nil {
		return nil, err
	}
	resp := &ratingSubmitResponse{State: state}
	if review != nil {
		resp.Review = &display.ReviewView{
			ID:        review.ID,
			AuthorID:  review.AuthorID,
			Rating:    review.Rating,
			Comment:   a.sanitizer.Text(review.Comment),
			Criteria:  review.Criteria,
			CreatedAt: review.CreatedAt,
		}
	}
	return resp, nil
}

// CancelRating はダイアログを閉じる。
func (a *WorkspaceServices) CancelRating(ctx context.Context, visitorID string) (rating.State, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return rating.State{}, err
	}
	return ws.Rating.Cancel(), nil
}

// --- ミッション ---

// ListMissions はミッション一覧を取得し直して返す。
// ログイン中の個人事業者には応募済みかどうかも示すため、自分の応募も取り直す。
func (a *WorkspaceServices) ListMissions(ctx context.Context, visitorID string, filter mission.ListFilter) ([]missionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	if err := ws.Missions.Load(ctx, sess); err != nil {
		return nil, err
	}
	if sess.Authenticated() && sess.User.Kind() == model.KindIndividual {
		if err := ws.Missions.LoadMyApplications(ctx, sess); err != nil {
			return nil, err
		}
	}
	return toMissionResponses(ws.Missions.Cards(sess, filter)), nil
}

// MyMissions は自分が投稿したミッションを返す。
func (a *WorkspaceServices) MyMissions(ctx context.Context, visitorID string) ([]missionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	if err := ws.Missions.LoadMine(ctx, sess); err != nil {
		return nil, err
	}
	return toMissionResponses(ws.Missions.MyCards(sess)), nil
}

// GetMission はミッション詳細を返す。投稿者には応募一覧も含める。
func (a *WorkspaceServices) GetMission(ctx context.Context, visitorID, missionID string) (*missionDetailResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	m, err := ws.Missions.Get(ctx, sess, missionID)
	if err != nil {
		return nil, err
	}

	card := ws.Missions.CardFor(sess, *m)
	resp := &missionDetailResponse{missionResponse: toMissionResponse(card)}
	if card.IsOwner {
		apps, err := ws.Missions.LoadApplications(ctx, sess, missionID)
		if err != nil {
			return nil, err
		}
		resp.Applications = toApplicationResponses(apps, sess)
	}
	return resp, nil
}

// CreateMission はミッションを投稿する。
func (a *WorkspaceServices) CreateMission(ctx context.Context, visitorID string, form mission.Form) (*missionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	m, err := ws.Missions.CreateMission(ctx, sess, form)
	if err != nil {
		return nil, err
	}
	resp := toMissionResponse(ws.Missions.CardFor(sess, *m))
	return &resp, nil
}

// UpdateMission はミッションのタイトルと説明を更新する。
func (a *WorkspaceServices) UpdateMission(ctx context.Context, visitorID, missionID string, edit mission.Edit) (*missionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	m, err := ws.Missions.UpdateMission(ctx, sess, missionID, edit)
	if err != nil {
		return nil, err
	}
	resp := toMissionResponse(ws.Missions.CardFor(sess, *m))
	return &resp, nil
}

// ChangeMissionStatus はミッションの状態を変更する。
func (a *WorkspaceServices) ChangeMissionStatus(ctx context.Context, visitorID, missionID string, status model.MissionStatus) (*missionResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	m, err := ws.Missions.ChangeStatus(ctx, sess, missionID, status)
	if err != nil {
		return nil, err
	}
	resp := toMissionResponse(ws.Missions.CardFor(sess, *m))
	return &resp, nil
}

// Apply はミッションに応募する。
func (a *WorkspaceServices) Apply(ctx context.Context, visitorID, missionID string) (*applicationResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	app, err := ws.Missions.Apply(ctx, sess, missionID)
	if err != nil {
		return nil, err
	}
	resp := toApplicationResponse(*app, sess)
	return &resp, nil
}

// ListApplications はミッションの応募一覧を取得し直して返す。
func (a *WorkspaceServices) ListApplications(ctx context.Context, visitorID, missionID string) ([]applicationResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	apps, err := ws.Missions.LoadApplications(ctx, sess, missionID)
	if err != nil {
		return nil, err
	}
	return toApplicationResponses(apps, sess), nil
}

// UpdateApplicationStatus は応募の状態を変更する。
func (a *WorkspaceServices) UpdateApplicationStatus(ctx context.Context, visitorID, applicationID string, status model.ApplicationStatus) (*applicationResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	app, err := ws.Missions.UpdateApplicationStatus(ctx, sess, applicationID, status)
	if err != nil {
		return nil, err
	}
	resp := toApplicationResponse(*app, sess)
	return &resp, nil
}

// MyApplications は自分の応募一覧を取得し直して返す。
func (a *WorkspaceServices) MyApplications(ctx context.Context, visitorID string) ([]applicationResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	sess := ws.Session.Current()
	if err := ws.Missions.LoadMyApplications(ctx, sess); err != nil {
		return nil, err
	}
	return toApplicationResponses(ws.Missions.MyApplications(), sess), nil
}

// --- アカウント ---

// UpdateProfile はプロフィールを更新する。
func (a *WorkspaceServices) UpdateProfile(ctx context.Context, visitorID string, upd account.ProfileUpdate) (*userResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	u, err := a.account.UpdateProfile(ctx, ws.Session, upd)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// ChangePassword はパスワードを変更する。
func (a *WorkspaceServices) ChangePassword(ctx context.Context, visitorID string, in account.PasswordChange) error {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return err
	}
	return a.account.ChangePassword(ctx, ws.Session, in)
}

// ToggleAvailability は稼働状況を切り替える。
func (a *WorkspaceServices) ToggleAvailability(ctx context.Context, visitorID string) (*userResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	u, err := a.account.ToggleAvailability(ctx, ws.Session)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// Upload は画像をアップロードする。
func (a *WorkspaceServices) Upload(ctx context.Context, visitorID, kind, filename string, content io.Reader) (*userResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	u, err := a.account.Upload(ctx, ws.Session, kind, filename, content)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// DeleteImage はギャラリーの画像を削除する。
func (a *WorkspaceServices) DeleteImage(ctx context.Context, visitorID, imageID string) (*userResponse, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	u, err := a.account.DeleteImage(ctx, ws.Session, imageID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// DeleteAccount は退会し、画面状態を捨てる。
func (a *WorkspaceServices) DeleteAccount(ctx context.Context, visitorID string) (string, error) {
	ws, err := a.workspace(ctx, visitorID)
	if err != nil {
		return "", err
	}
	redirect, err := a.account.DeleteAccount(ctx, ws.Session)
	if err != nil {
		return "", err
	}
	ws.SessionChanged()
	return redirect, nil
}
