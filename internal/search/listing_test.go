package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/model"
)

// --- モック定義 ---

type mockProviderSource struct {
	listUsersFn func(ctx context.Context, token string, query url.Values) ([]*model.User, error)
}

func (m *mockProviderSource) ListUsers(ctx context.Context, token string, query url.Values) ([]*model.User, error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(ctx, token, query)
	}
	return nil, nil
}

type staleCounter struct {
	metrics.Nop
	mu    sync.Mutex
	flows []string
}

func (s *staleCounter) RecordStaleResultDiscarded(flow string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = append(s.flows, flow)
}

var _ ProviderSource = (*mockProviderSource)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func manyProviders(n int) []*model.User {
	out := make([]*model.User, n)
	for i := range out {
		out[i] = provider(string(rune('a'+i%26))+string(rune('0'+i/26)), "peintre", "69", "Lyon", 4)
	}
	return out
}

// --- テスト ---

func TestListing_RefreshSendsAppliedFiltersAndTargetKind(t *testing.T) {
	var gotQuery url.Values
	var gotToken string
	src := &mockProviderSource{
		listUsersFn: func(_ context.Context, token string, q url.Values) ([]*model.User, error) {
			gotToken, gotQuery = token, q
			return nil, nil
		},
	}
	l := NewListing(src, 0, discardLogger(), nil)
	l.Seed(Criteria{Trade: "peintre"})

	viewer := model.Session{Token: "tok", User: &model.User{ID: "u1", Company: &model.Company{}}}
	if err := l.Refresh(context.Background(), viewer); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	if gotToken != "tok" {
		t.Errorf("token = %q, want %q", gotToken, "tok")
	}
	if gotQuery.Get("trade") != "peintre" {
		t.Errorf("trade = %q, want %q", gotQuery.Get("trade"), "peintre")
	}
	if gotQuery.Get("userType") != "professionnel" {
		t.Errorf("userType = %q, want %q", gotQuery.Get("userType"), "professionnel")
	}
}

func TestListing_PaginatesByNine(t *testing.T) {
	src := &mockProviderSource{
		listUsersFn: func(context.Context, string, url.Values) ([]*model.User, error) {
			return manyProviders(20), nil
		},
	}
	l := NewListing(src, DefaultPageSize, discardLogger(), nil)
	l.Refresh(context.Background(), model.Session{})

	v := l.View(1)
	if v.TotalPages != 3 || v.Total != 20 || len(v.Providers) != 9 {
		t.Errorf("1ページ目が不正: pages=%d total=%d len=%d", v.TotalPages, v.Total, len(v.Providers))
	}

	v = l.View(99)
	if v.Page != 3 || len(v.Providers) != 2 {
		t.Errorf("範囲外のページが丸められていません: page=%d len=%d", v.Page, len(v.Providers))
	}

	// 0 は現在のページを維持する
	if v = l.View(0); v.Page != 3 {
		t.Errorf("View(0).Page = %d, want 3", v.Page)
	}
}

func TestListing_EmptyResultHasZeroPages(t *testing.T) {
	l := NewListing(&mockProviderSource{}, 9, discardLogger(), nil)
	l.Refresh(context.Background(), model.Session{})

	v := l.View(1)
	if v.TotalPages != 0 || v.Page != 1 || len(v.Providers) != 0 {
		t.Errorf("空の一覧が不正: %+v", v)
	}
}

func TestListing_FailureClearsResults(t *testing.T) {
	fail := false
	src := &mockProviderSource{
		listUsersFn: func(context.Context, string, url.Values) ([]*model.User, error) {
			if fail {
				return nil, errors.New("connection refused")
			}
			return manyProviders(5), nil
		},
	}
	l := NewListing(src, 9, discardLogger(), nil)
	l.Refresh(context.Background(), model.Session{})

	fail = true
	if err := l.Refresh(context.Background(), model.Session{}); err == nil {
		t.Fatal("expected error, got nil")
	}

	v := l.View(1)
	if v.Total != 0 || len(v.Providers) != 0 {
		t.Errorf("失敗後に一覧が残っています: total=%d", v.Total)
	}
	if v.Error == "" {
		t.Error("失敗後にエラーメッセージが設定されていません")
	}
}

// 古い取得のレスポンスが新しい取得の結果を上書きしないこと
func TestListing_StaleResponseIsDiscarded(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	calls := 0
	var mu sync.Mutex

	src := &mockProviderSource{
		listUsersFn: func(_ context.Context, _ string, q url.Values) ([]*model.User, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				close(firstStarted)
				<-releaseFirst
				return []*model.User{provider("old", "peintre", "69", "Lyon", 4)}, nil
			}
			return []*model.User{provider("new", "plombier", "69", "Lyon", 4)}, nil
		},
	}
	mc := &staleCounter{}
	l := NewListing(src, 9, discardLogger(), mc)

	done := make(chan error)
	go func() { done <- l.Refresh(context.Background(), model.Session{}) }()
	<-firstStarted

	if err := l.Refresh(context.Background(), model.Session{}); err != nil {
		t.Fatalf("2回目の Refresh returned error: %v", err)
	}
	close(releaseFirst)
	if err := <-done; err != nil {
		t.Fatalf("1回目の Refresh returned error: %v", err)
	}

	v := l.View(1)
	if len(v.Providers) != 1 || v.Providers[0].ID != "new" {
		t.Errorf("古いレスポンスで上書きされました: %v", ids(v.Providers))
	}
	if len(mc.flows) != 1 || mc.flows[0] != "providers" {
		t.Errorf("破棄の記録が不正: %v", mc.flows)
	}
}

func TestListing_ApplyDraftResetsPage(t *testing.T) {
	src := &mockProviderSource{
		listUsersFn: func(context.Context, string, url.Values) ([]*model.User, error) {
			return manyProviders(20), nil
		},
	}
	l := NewListing(src, 9, discardLogger(), nil)
	l.Refresh(context.Background(), model.Session{})
	l.View(2)

	l.OpenPanel()
	l.SetDraft(Criteria{Mobile: true})
	if v := l.View(0); v.Page != 2 || v.Applied.Mobile {
		t.Errorf("下書きが表示に影響しました: page=%d applied=%+v", v.Page, v.Applied)
	}

	if !l.ApplyDraft() {
		t.Fatal("ApplyDraft() = false, want true")
	}
	if v := l.View(0); v.Page != 1 || !v.Applied.Mobile || v.ActiveCount != 1 {
		t.Errorf("Apply後の状態が不正: page=%d applied=%+v count=%d", v.Page, v.Applied, v.ActiveCount)
	}
}

func TestListing_RemoveAppliedRederivesView(t *testing.T) {
	users := []*model.User{
		provider("1", "peintre", "69", "Lyon", 4),
		provider("2", "plombier", "69", "Lyon", 4),
	}
	src := &mockProviderSource{
		listUsersFn: func(context.Context, string, url.Values) ([]*model.User, error) {
			return users, nil
		},
	}
	l := NewListing(src, 9, discardLogger(), nil)
	l.Seed(Criteria{Trade: "peintre", City: "Lyon"})
	l.Refresh(context.Background(), model.Session{})

	if !l.RemoveApplied(KeyTrade) {
		t.Fatal("RemoveApplied() = false, want true")
	}
	v := l.View(0)
	if v.Applied.Trade != "" || v.Applied.City != "Lyon" || v.ActiveCount != 1 {
		t.Errorf("外した後の条件が不正: %+v", v.Applied)
	}
	if v.Total != 2 {
		t.Errorf("Total = %d, want 2", v.Total)
	}
}

func TestListing_PatchProviderReappliesPredicate(t *testing.T) {
	users := []*model.User{
		provider("1", "peintre", "69", "Lyon", 4.0),
		provider("2", "peintre", "69", "Lyon", 4.5),
	}
	src := &mockProviderSource{
		listUsersFn: func(context.Context, string, url.Values) ([]*model.User, error) {
			return users, nil
		},
	}
	l := NewListing(src, 9, discardLogger(), nil)
	l.Seed(Criteria{MinRating: 4})
	l.Refresh(context.Background(), model.Session{})

	ok := l.PatchProvider("1", func(u *model.User) {
		u.Rating = model.AggregateRating{Mean: 3.5, Count: 2}
	})
	if !ok {
		t.Fatal("PatchProvider() = false, want true")
	}

	v := l.View(1)
	if len(v.Providers) != 1 || v.Providers[0].ID != "2" {
		t.Errorf("評価更新後の絞り込みが不正: %v", ids(v.Providers))
	}
	// 元のスライスは変更しない
	if users[0].Rating.Mean != 4.0 {
		t.Error("PatchProviderが元のユーザーを書き換えました")
	}
	if got := l.Provider("1"); got == nil || got.Rating.Count != 2 {
		t.Error("一覧内の提供者が更新されていません")
	}
}

func TestListing_NeedsLoad(t *testing.T) {
	l := NewListing(&mockProviderSource{}, 9, discardLogger(), nil)
	if !l.NeedsLoad() {
		t.Error("初回は NeedsLoad() = true であるべき")
	}
	l.Refresh(context.Background(), model.Session{})
	if l.NeedsLoad() {
		t.Error("取得後は NeedsLoad() = false であるべき")
	}
}

func TestListing_InvalidateForcesReload(t *testing.T) {
	users := manyProviders(12)
	src := &mockProviderSource{
		listUsersFn: func(ctx context.Context, token string, query url.Values) ([]*model.User, error) {
			return users, nil
		},
	}
	l := NewListing(src, 9, discardLogger(), nil)
	l.Refresh(context.Background(), model.Session{})
	l.View(2)

	l.Invalidate()

	if !l.NeedsLoad() {
		t.Error("Invalidate 後は NeedsLoad() = true であるべき")
	}
	v := l.View(0)
	if v.Total != 0 || v.Page != 1 {
		t.Errorf("Invalidate 後は空の1ページ目であるべき: total=%d page=%d", v.Total, v.Page)
	}
}
