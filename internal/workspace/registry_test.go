package workspace

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/repository"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/session"
)

type gaugeRecorder struct {
	metrics.Nop
	mu   sync.Mutex
	last int
}

func (g *gaugeRecorder) SetActiveWorkspaces(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = n
}

type failingOpener struct{}

func (failingOpener) Open(ctx context.Context, visitorID string) (*session.Handle, error) {
	return nil, errors.New("kv unavailable")
}

func newTestRegistry(kv repository.KVStore, mc metrics.MetricsCollector) *Registry {
	return NewRegistry(Deps{
		Sessions:  session.NewStore(kv, nil, time.Hour, nil, mc),
		Sanitizer: security.NewSanitizer(),
		Metrics:   mc,
	})
}

func TestRegistry_GetReturnsSameWorkspace(t *testing.T) {
	gauge := &gaugeRecorder{}
	r := newTestRegistry(repository.NewMemoryKV(), gauge)

	a, err := r.Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	b, _ := r.Get(context.Background(), "v1")
	if a != b {
		t.Error("同じ訪問者には同じワークスペースを返すべきです")
	}
	c, _ := r.Get(context.Background(), "v2")
	if a == c {
		t.Error("訪問者ごとに別のワークスペースであるべきです")
	}
	if r.Len() != 2 || gauge.last != 2 {
		t.Errorf("Len() = %d, gauge = %d, want 2", r.Len(), gauge.last)
	}
}

func TestRegistry_ConcurrentGetCreatesOne(t *testing.T) {
	r := newTestRegistry(repository.NewMemoryKV(), nil)

	var wg sync.WaitGroup
	got := make([]*Workspace, 50)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = r.Get(context.Background(), "v1")
		}(i)
	}
	wg.Wait()

	for i := range got {
		if got[i] != got[0] {
			t.Fatal("同時アクセスでもワークスペースは1つであるべきです")
		}
	}
}

func TestRegistry_RestoresPersistedSession(t *testing.T) {
	kv := repository.NewMemoryKV()
	r := newTestRegistry(kv, nil)

	ws, _ := r.Get(context.Background(), "v1")
	user := &model.User{ID: "u1", Individual: &model.Individual{FirstName: "Jean"}}
	if err := ws.Session.Login(context.Background(), "tok", user); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// プロセス再起動を想定して新しいRegistryで開き直す
	restored, err := newTestRegistry(kv, nil).Get(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if sess := restored.Session.Current(); sess.Token != "tok" || sess.User.ID != "u1" {
		t.Errorf("セッションが復元されていません: %+v", sess)
	}
}

func TestRegistry_SweepEvictsIdle(t *testing.T) {
	gauge := &gaugeRecorder{}
	r := newTestRegistry(repository.NewMemoryKV(), gauge)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	r.Get(context.Background(), "old")
	now = now.Add(90 * time.Minute)
	r.Get(context.Background(), "fresh")
	now = now.Add(60 * time.Minute)

	if removed := r.Sweep(2 * time.Hour); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if r.Len() != 1 || gauge.last != 1 {
		t.Errorf("Len() = %d, gauge = %d, want 1", r.Len(), gauge.last)
	}
}

func TestRegistry_OpenFailure(t *testing.T) {
	r := NewRegistry(Deps{Sessions: failingOpener{}})
	if _, err := r.Get(context.Background(), "v1"); err == nil {
		t.Fatal("expected error when the session cannot be opened")
	}
	if r.Len() != 0 {
		t.Error("失敗した場合はワークスペースを登録しないこと")
	}
}

func TestWorkspace_SessionChangedResetsViewerState(t *testing.T) {
	r := newTestRegistry(repository.NewMemoryKV(), nil)
	ws, _ := r.Get(context.Background(), "v1")

	ws.Toggles.TogglePhone("pro-1")
	ws.Toggles.ToggleEmail()
	ws.SessionChanged()

	if ws.Toggles.PhoneVisible("pro-1") || ws.Toggles.EmailVisible() {
		t.Error("表示切り替えはリセットされるべきです")
	}
	if !ws.Listing.NeedsLoad() {
		t.Error("一覧は取得し直すべきです")
	}
	if ws.Rating.State().Open {
		t.Error("評価ダイアログは閉じるべきです")
	}
}
