// Package workspace は訪問者ごとの画面状態（ワークスペース）を管理する。
//
// ワークスペースはセッション、提供者一覧、ミッション、評価ダイアログ、
// 連絡先の表示切り替えをまとめたもので、訪問者IDをキーに保持する。
// 各コンポーネントは自身のミューテックスで状態を守る。
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/btpmatch/internal/display"
	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/mission"
	"github.com/hitoshi/btpmatch/internal/rating"
	"github.com/hitoshi/btpmatch/internal/search"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/session"
)

// SessionOpener は訪問者のセッションを開くインターフェース。
type SessionOpener interface {
	Open(ctx context.Context, visitorID string) (*session.Handle, error)
}

// Deps はワークスペースの各コンポーネントが共有する依存。
type Deps struct {
	Sessions  SessionOpener
	Providers search.ProviderSource
	Missions  mission.Remote
	Reviews   rating.Remote
	Sanitizer security.Sanitizer
	PageSize  int
	Logger    *slog.Logger
	Metrics   metrics.MetricsCollector
}

// Workspace は1訪問者の画面状態。
type Workspace struct {
	Session  *session.Handle
	Listing  *search.Listing
	Missions *mission.Board
	Rating   *rating.Dialog
	Toggles  *display.Toggles

	lastSeen atomic.Int64
}

func newWorkspace(h *session.Handle, deps Deps) *Workspace {
	listing := search.NewListing(deps.Providers, deps.PageSize, deps.Logger, deps.Metrics)
	return &Workspace{
		Session:  h,
		Listing:  listing,
		Missions: mission.NewBoard(deps.Missions, deps.Sanitizer, deps.Logger, deps.Metrics),
		Rating:   rating.NewDialog(deps.Reviews, deps.Sanitizer, listing, deps.Logger, deps.Metrics),
		Toggles:  display.NewToggles(),
	}
}

func (w *Workspace) touch(now time.Time) {
	w.lastSeen.Store(now.UnixNano())
}

// LastSeen は最後にアクセスされた時刻を返す。
func (w *Workspace) LastSeen() time.Time {
	return time.Unix(0, w.lastSeen.Load())
}

// SessionChanged はログイン・ログアウトで閲覧者が変わったときに呼ぶ。
// 前の閲覧者に紐づく状態を捨て、一覧は次の表示で取得し直す。
func (w *Workspace) SessionChanged() {
	w.Missions.Forget()
	w.Rating.Cancel()
	w.Toggles.Reset()
	w.Listing.Invalidate()
}

// Registry は訪問者IDごとのワークスペースを保持する。
type Registry struct {
	deps Deps
	now  func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// NewRegistry はRegistryを生成する。
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &Registry{
		deps:       deps,
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
}

// Get は訪問者のワークスペースを返す。無ければ永続化されたセッションを読み込んで作成する。
// セッションの読み込み中はロックを保持しない。
func (r *Registry) Get(ctx context.Context, visitorID string) (*Workspace, error) {
	r.mu.RLock()
	ws, exists := r.workspaces[visitorID]
	r.mu.RUnlock()

	if exists {
		ws.touch(r.now())
		return ws, nil
	}

	h, err := r.deps.Sessions.Open(ctx, visitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// ダブルチェック
	if ws, exists := r.workspaces[visitorID]; exists {
		ws.touch(r.now())
		return ws, nil
	}

	ws = newWorkspace(h, r.deps)
	ws.touch(r.now())
	r.workspaces[visitorID] = ws
	r.deps.Metrics.SetActiveWorkspaces(len(r.workspaces))
	return ws, nil
}

// Len は保持しているワークスペースの数を返す。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// Sweep は idle より長くアクセスの無いワークスペースを破棄し、破棄した数を返す。
// セッションは永続ストアに残るので、次のアクセスで復元される。
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)

	r.mu.Lock()
	removed := 0
	for id, ws := range r.workspaces {
		if ws.LastSeen().Before(cutoff) {
			delete(r.workspaces, id)
			removed++
		}
	}
	remaining := len(r.workspaces)
	r.mu.Unlock()

	r.deps.Metrics.SetActiveWorkspaces(remaining)
	if removed > 0 {
		r.deps.Logger.Info("idle workspaces evicted",
			slog.Int("removed", removed),
			slog.Int("remaining", remaining),
		)
	}
	return removed
}
