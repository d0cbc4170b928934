package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/btpmatch/internal/account"
	"github.com/hitoshi/btpmatch/internal/auth"
	"github.com/hitoshi/btpmatch/internal/display"
	"github.com/hitoshi/btpmatch/internal/middleware"
	"github.com/hitoshi/btpmatch/internal/mission"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/rating"
	"github.com/hitoshi/btpmatch/internal/search"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.Registration) (string, error)
	loginFn    func(ctx context.Context, visitorID string, in auth.Credentials) (*sessionResponse, error)
	logoutFn   func(ctx context.Context, visitorID string) (string, error)
	meFn       func(ctx context.Context, visitorID string) (*sessionResponse, error)
	refreshFn  func(ctx context.Context, visitorID string) (*sessionResponse, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.Registration) (string, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return "", nil
}

func (m *mockAuthService) Login(ctx context.Context, visitorID string, in auth.Credentials) (*sessionResponse, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, visitorID, in)
	}
	return &sessionResponse{}, nil
}

func (m *mockAuthService) Logout(ctx context.Context, visitorID string) (string, error) {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, visitorID)
	}
	return "/login", nil
}

func (m *mockAuthService) Me(ctx context.Context, visitorID string) (*sessionResponse, error) {
	if m.meFn != nil {
		return m.meFn(ctx, visitorID)
	}
	return &sessionResponse{}, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, visitorID string) (*sessionResponse, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, visitorID)
	}
	return &sessionResponse{}, nil
}

type mockProviderService struct {
	listProvidersFn func(ctx context.Context, visitorID string, page int, query url.Values) (*providerPageResponse, error)
	getProviderFn   func(ctx context.Context, visitorID, providerID string) (*display.Profile, error)
	setDraftFn      func(ctx context.Context, visitorID string, draft search.Criteria) (*filterPanelResponse, error)
	removeFilterFn  func(ctx context.Context, visitorID string, key search.FilterKey) (*providerPageResponse, error)
	togglePhoneFn   func(ctx context.Context, visitorID, providerID string) (*toggleResponse, error)
}

func (m *mockProviderService) ListProviders(ctx context.Context, visitorID string, page int, query url.Values) (*providerPageResponse, error) {
	if m.listProvidersFn != nil {
		return m.listProvidersFn(ctx, visitorID, page, query)
	}
	return &providerPageResponse{Providers: []display.ProviderCard{}}, nil
}

func (m *mockProviderService) GetProvider(ctx context.Context, visitorID, providerID string) (*display.Profile, error) {
	if m.getProviderFn != nil {
		return m.getProviderFn(ctx, visitorID, providerID)
	}
	return &display.Profile{}, nil
}

func (m *mockProviderService) OpenFilterPanel(ctx context.Context, visitorID string) (*filterPanelResponse, error) {
	return &filterPanelResponse{PanelOpen: true}, nil
}

func (m *mockProviderService) SetFilterDraft(ctx context.Context, visitorID string, draft search.Criteria) (*filterPanelResponse, error) {
	if m.setDraftFn != nil {
		return m.setDraftFn(ctx, visitorID, draft)
	}
	return &filterPanelResponse{Draft: draft}, nil
}

func (m *mockProviderService) ApplyFilters(ctx context.Context, visitorID string) (*providerPageResponse, error) {
	return &providerPageResponse{Page: 1}, nil
}

func (m *mockProviderService) ResetFilterDraft(ctx context.Context, visitorID string) (*filterPanelResponse, error) {
	return &filterPanelResponse{}, nil
}

func (m *mockProviderService) RemoveFilter(ctx context.Context, visitorID string, key search.FilterKey) (*providerPageResponse, error) {
	if m.removeFilterFn != nil {
		return m.removeFilterFn(ctx, visitorID, key)
	}
	return &providerPageResponse{}, nil
}

func (m *mockProviderService) TogglePhone(ctx context.Context, visitorID, providerID string) (*toggleResponse, error) {
	if m.togglePhoneFn != nil {
		return m.togglePhoneFn(ctx, visitorID, providerID)
	}
	return &toggleResponse{Visible: true}, nil
}

func (m *mockProviderService) ToggleEmail(ctx context.Context, visitorID string) (*toggleResponse, error) {
	return &toggleResponse{Visible: true}, nil
}

type mockRatingService struct {
	openFn   func(ctx context.Context, visitorID, providerID string) (rating.State, error)
	updateFn func(ctx context.Context, visitorID string, scores map[string]int, comment *string) (rating.State, error)
	submitFn func(ctx context.Context, visitorID string) (*ratingSubmitResponse, error)
}

func (m *mockRatingService) OpenRating(ctx context.Context, visitorID, providerID string) (rating.State, error) {
	if m.openFn != nil {
		return m.openFn(ctx, visitorID, providerID)
	}
	return rating.State{Open: true, TargetID: providerID}, nil
}

func (m *mockRatingService) UpdateRating(ctx context.Context, visitorID string, scores map[string]int, comment *string) (rating.State, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, visitorID, scores, comment)
	}
	return rating.State{Open: true, Scores: scores}, nil
}

func (m *mockRatingService) SubmitRating(ctx context.Context, visitorID string) (*ratingSubmitResponse, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, visitorID)
	}
	return &ratingSubmitResponse{}, nil
}

func (m *mockRatingService) CancelRating(ctx context.Context, visitorID string) (rating.State, error) {
	return rating.State{}, nil
}

type mockMissionService struct {
	listMissionsFn   func(ctx context.Context, visitorID string, filter mission.ListFilter) ([]missionResponse, error)
	createMissionFn  func(ctx context.Context, visitorID string, form mission.Form) (*missionResponse, error)
	changeStatusFn   func(ctx context.Context, visitorID, missionID string, status model.MissionStatus) (*missionResponse, error)
	applyFn          func(ctx context.Context, visitorID, missionID string) (*applicationResponse, error)
	updateAppFn      func(ctx context.Context, visitorID, applicationID string, status model.ApplicationStatus) (*applicationResponse, error)
	myApplicationsFn func(ctx context.Context, visitorID string) ([]applicationResponse, error)
}

func (m *mockMissionService) ListMissions(ctx context.Context, visitorID string, filter mission.ListFilter) ([]missionResponse, error) {
	if m.listMissionsFn != nil {
		return m.listMissionsFn(ctx, visitorID, filter)
	}
	return []missionResponse{}, nil
}

func (m *mockMissionService) MyMissions(ctx context.Context, visitorID string) ([]missionResponse, error) {
	return []missionResponse{}, nil
}

func (m *mockMissionService) GetMission(ctx context.Context, visitorID, missionID string) (*missionDetailResponse, error) {
	return &missionDetailResponse{missionResponse: missionResponse{ID: missionID}}, nil
}

func (m *mockMissionService) CreateMission(ctx context.Context, visitorID string, form mission.Form) (*missionResponse, error) {
	if m.createMissionFn != nil {
		return m.createMissionFn(ctx, visitorID, form)
	}
	return &missionResponse{}, nil
}

func (m *mockMissionService) UpdateMission(ctx context.Context, visitorID, missionID string, edit mission.Edit) (*missionResponse, error) {
	return &missionResponse{ID: missionID, Title: edit.Title}, nil
}

func (m *mockMissionService) ChangeMissionStatus(ctx context.Context, visitorID, missionID string, status model.MissionStatus) (*missionResponse, error) {
	if m.changeStatusFn != nil {
		return m.changeStatusFn(ctx, visitorID, missionID, status)
	}
	return &missionResponse{ID: missionID, Status: status}, nil
}

func (m *mockMissionService) Apply(ctx context.Context, visitorID, missionID string) (*applicationResponse, error) {
	if m.applyFn != nil {
		return m.applyFn(ctx, visitorID, missionID)
	}
	return &applicationResponse{MissionID: missionID}, nil
}

func (m *mockMissionService) ListApplications(ctx context.Context, visitorID, missionID string) ([]applicationResponse, error) {
	return []applicationResponse{}, nil
}

func (m *mockMissionService) UpdateApplicationStatus(ctx context.Context, visitorID, applicationID string, status model.ApplicationStatus) (*applicationResponse, error) {
	if m.updateAppFn != nil {
		return m.updateAppFn(ctx, visitorID, applicationID, status)
	}
	return &applicationResponse{ID: applicationID, Status: status}, nil
}

func (m *mockMissionService) MyApplications(ctx context.Context, visitorID string) ([]applicationResponse, error) {
	if m.myApplicationsFn != nil {
		return m.myApplicationsFn(ctx, visitorID)
	}
	return []applicationResponse{}, nil
}

type mockAccountService struct {
	updateProfileFn  func(ctx context.Context, visitorID string, upd account.ProfileUpdate) (*userResponse, error)
	changePasswordFn func(ctx context.Context, visitorID string, in account.PasswordChange) error
	uploadFn         func(ctx context.Context, visitorID, kind, filename string, content io.Reader) (*userResponse, error)
	deleteAccountFn  func(ctx context.Context, visitorID string) (string, error)
}

func (m *mockAccountService) UpdateProfile(ctx context.Context, visitorID string, upd account.ProfileUpdate) (*userResponse, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, visitorID, upd)
	}
	return &userResponse{}, nil
}

func (m *mockAccountService) ChangePassword(ctx context.Context, visitorID string, in account.PasswordChange) error {
	if m.changePasswordFn != nil {
		return m.changePasswordFn(ctx, visitorID, in)
	}
	return nil
}

func (m *mockAccountService) ToggleAvailability(ctx context.Context, visitorID string) (*userResponse, error) {
	return &userResponse{Available: true}, nil
}

func (m *mockAccountService) Upload(ctx context.Context, visitorID, kind, filename string, content io.Reader) (*userResponse, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, visitorID, kind, filename, content)
	}
	return &userResponse{}, nil
}

func (m *mockAccountService) DeleteImage(ctx context.Context, visitorID, imageID string) (*userResponse, error) {
	return &userResponse{}, nil
}

func (m *mockAccountService) DeleteAccount(ctx context.Context, visitorID string) (string, error) {
	if m.deleteAccountFn != nil {
		return m.deleteAccountFn(ctx, visitorID)
	}
	return "/login", nil
}

// mockTerminator はSessionTerminatorのモック実装。呼ばれた訪問者IDを記録する。
type mockTerminator struct {
	calls []string
}

func (m *mockTerminator) ForceLogout(ctx context.Context, visitorID string) string {
	m.calls = append(m.calls, visitorID)
	return "/login"
}

// --- compile-time interface checks ---
var (
	_ AuthServiceInterface     = (*mockAuthService)(nil)
	_ ProviderServiceInterface = (*mockProviderService)(nil)
	_ RatingServiceInterface   = (*mockRatingService)(nil)
	_ MissionServiceInterface  = (*mockMissionService)(nil)
	_ AccountServiceInterface  = (*mockAccountService)(nil)
	_ SessionTerminator        = (*mockTerminator)(nil)
)

// --- テストヘルパー ---

const testVisitorID = "0b6f3f5e-7c1a-4d2e-9f00-1a2b3c4d5e6f"

// withVisitor はテスト用にリクエストコンテキストに訪問者IDを注入するヘルパー。
func withVisitor(r *http.Request) *http.Request {
	return r.WithContext(middleware.ContextWithVisitorID(r.Context(), testVisitorID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
