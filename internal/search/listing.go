package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/model"
)

// DefaultPageSize は1ページあたりの提供者カード数。
const DefaultPageSize = 9

// ProviderSource は提供者一覧を取得するインターフェース。
type ProviderSource interface {
	ListUsers(ctx context.Context, token string, query url.Values) ([]*model.User, error)
}

// View は一覧の1ページ分のスナップショット。
type View struct {
	Providers   []*model.User
	Page        int
	TotalPages  int
	Total       int
	PageSize    int
	Applied     Criteria
	Draft       Criteria
	PanelOpen   bool
	ActiveCount int
	Loading     bool
	Loaded      bool
	Error       string
}

// Listing は1訪問者の提供者一覧の状態を保持する。
//
// 取得ごとにシーケンス番号を採番し、より新しい取得が開始されていた場合は
// 古いレスポンスを破棄する。リモート呼び出し中はロックを保持しない。
type Listing struct {
	source   ProviderSource
	pageSize int
	logger   *slog.Logger
	metrics  metrics.MetricsCollector

	mu       sync.Mutex
	filters  FilterState
	seq      uint64
	raw      []*model.User
	filtered []*model.User
	page     int
	loading  bool
	loaded   bool
	lastErr  string
}

// NewListing はListingを生成する。pageSize が 0 以下なら DefaultPageSize を使う。
func NewListing(source ProviderSource, pageSize int, logger *slog.Logger, mc metrics.MetricsCollector) *Listing {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Listing{
		source:   source,
		pageSize: pageSize,
		logger:   logger,
		metrics:  mc,
		page:     1,
	}
}

// Refresh は適用済みの条件と閲覧者の反対側の種別で一覧を取得し直す。
// 失敗した場合は一覧を空にしてエラーを返す。自動リトライはしない。
// 取得中に別の Refresh が開始されていた場合、このレスポンスは破棄される。
func (l *Listing) Refresh(ctx context.Context, viewer model.Session) error {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	query := Query(l.filters.Applied(), viewer)
	l.loading = true
	l.mu.Unlock()

	users, err := l.source.ListUsers(ctx, viewer.Token, query)

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq {
		l.metrics.RecordStaleResultDiscarded("providers")
		l.logger.Debug("discarding stale provider list",
			slog.Uint64("seq", seq),
			slog.Uint64("latest_seq", l.seq),
		)
		return nil
	}

	l.loading = false
	l.loaded = true
	if err != nil {
		l.raw = nil
		l.filtered = nil
		l.page = 1
		l.lastErr = "Une erreur est survenue lors de la récupération des prestataires."
		l.logger.Error("failed to fetch providers",
			slog.String("query", query.Encode()),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to fetch providers: %w", err)
	}

	l.raw = users
	l.filtered = users
	l.lastErr = ""
	l.page = ClampPage(l.page, TotalPages(len(l.filtered), l.pageSize))
	return nil
}

// NeedsLoad は一度も取得していない場合に true を返す。
func (l *Listing) NeedsLoad() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.loaded && !l.loading
}

// Invalidate は取得済みの一覧を破棄し、次の表示で取得し直すようにする。
// 閲覧者の種別が変わるログイン・ログアウト時に使う。進行中の取得は破棄される。
func (l *Listing) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.raw = nil
	l.filtered = nil
	l.page = 1
	l.loading = false
	l.loaded = false
	l.lastErr = ""
}

// View は指定ページのスナップショットを返す。page が 0 以下なら現在のページ。
// ページ番号は [1, totalPages] に丸められ、現在のページとして記憶される。
func (l *Listing) View(page int) View {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := TotalPages(len(l.filtered), l.pageSize)
	if page <= 0 {
		page = l.page
	}
	l.page = ClampPage(page, total)

	return View{
		Providers:   PageSlice(l.filtered, l.page, l.pageSize),
		Page:        l.page,
		TotalPages:  total,
		Total:       len(l.filtered),
		PageSize:    l.pageSize,
		Applied:     l.filters.Applied(),
		Draft:       l.filters.Draft(),
		PanelOpen:   l.filters.PanelOpen(),
		ActiveCount: l.filters.ActiveCount(),
		Loading:     l.loading,
		Loaded:      l.loaded,
		Error:       l.lastErr,
	}
}

// Provider は現在の一覧から指定IDの提供者を探す。
func (l *Listing) Provider(id string) *model.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, u := range l.raw {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// OpenPanel はフィルタパネルを開き、下書きを適用済みの条件で初期化する。
func (l *Listing) OpenPanel() Criteria {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters.OpenPanel()
	return l.filters.Draft()
}

// SetDraft は下書きを置き換える。表示結果には影響しない。
func (l *Listing) SetDraft(c Criteria) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters.SetDraft(c)
}

// ResetDraft は下書きをデフォルトに戻す。
func (l *Listing) ResetDraft() Criteria {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters.ResetDraft()
	return l.filters.Draft()
}

// ApplyDraft は下書きを確定し、ページを1に戻す。
// 戻り値が true の場合、呼び出し側は Refresh で取得し直す。
func (l *Listing) ApplyDraft() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.page = 1
	return l.filters.ApplyDraft()
}

// RemoveApplied は適用済み条件の1フィールドを外し、手元の一覧を即座に絞り直す。
// 戻り値が true の場合、呼び出し側は Refresh で取得し直す。
func (l *Listing) RemoveApplied(key FilterKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.filters.RemoveApplied(key) {
		return false
	}
	l.filtered = Filter(l.raw, l.filters.Applied())
	l.page = 1
	return true
}

// ClearApplied は適用済みの条件をすべて外す。
func (l *Listing) ClearApplied() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.filters.ClearApplied() {
		return false
	}
	l.filtered = l.raw
	l.page = 1
	return true
}

// Seed はURLクエリ由来の条件で適用済みと下書きを置き換える。
func (l *Listing) Seed(c Criteria) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.filters.Seed(c) {
		return false
	}
	l.page = 1
	return true
}

// PatchProvider は指定IDの提供者をコピーしてpatchを適用し、
// 手元の述語で絞り込みを再適用する。評価の楽観的更新に使う。
func (l *Listing) PatchProvider(id string, patch func(u *model.User)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	found := false
	next := make([]*model.User, len(l.raw))
	for i, u := range l.raw {
		if u.ID == id {
			cp := *u
			patch(&cp)
			next[i] = &cp
			found = true
			continue
		}
		next[i] = u
	}
	if !found {
		return false
	}
	l.raw = next
	l.filtered = Filter(l.raw, l.filters.Applied())
	l.page = ClampPage(l.page, TotalPages(len(l.filtered), l.pageSize))
	return true
}
