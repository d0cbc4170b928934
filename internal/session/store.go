// Package session は訪問者ごとの認証セッション（トークンと現在のユーザー）を管理する。
//
// セッションはKVストアに "session:<visitorID>:token" と "session:<visitorID>:user" の
// 2つのキーで永続化され、Handle の生成時に1回だけ読み込まれる。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/metrics"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/repository"
)

// LoginPath はログアウト後のリダイレクト先。
const LoginPath = "/login"

// ErrSessionChanged は取得元のトークンが既に現在のセッションのものではないことを示す。
// 取得中にログアウトや別ユーザーでのログインが起きた場合に返る。
var ErrSessionChanged = errors.New("session changed while the user was being fetched")

const (
	tokenKey = "token"
	userKey  = "user"
)

// storageKey は訪問者ごとに名前空間を切ったKVキーを返す。
func storageKey(visitorID, name string) string {
	return "session:" + visitorID + ":" + name
}

// UserFetcher は現在のユーザーをリモートAPIから再取得するインターフェース。
type UserFetcher interface {
	GetUser(ctx context.Context, token, userID string) (*model.User, error)
}

// Store はセッションの永続化とリフレッシュを担う。全訪問者で共有する。
type Store struct {
	kv      repository.KVStore
	users   UserFetcher
	ttl     time.Duration
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	refreshGroup singleflight.Group
}

// NewStore はStoreを生成する。mc が nil の場合は記録しない。
func NewStore(kv repository.KVStore, users UserFetcher, ttl time.Duration, logger *slog.Logger, mc metrics.MetricsCollector) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Store{
		kv:      kv,
		users:   users,
		ttl:     ttl,
		logger:  logger,
		metrics: mc,
	}
}

// Open は訪問者のセッションを永続ストアから読み込み、Handleを返す。
// トークンとユーザーの片方しか無い、またはユーザーが壊れている場合は
// 両方のキーを削除して未ログインとして扱う。
func (s *Store) Open(ctx context.Context, visitorID string) (*Handle, error) {
	h := &Handle{store: s, visitorID: visitorID}

	token, err := s.kv.Get(ctx, storageKey(visitorID, tokenKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load session token: %w", err)
	}
	rawUser, err := s.kv.Get(ctx, storageKey(visitorID, userKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load session user: %w", err)
	}

	if token == nil && rawUser == nil {
		return h, nil
	}

	var user *model.User
	if token != nil && rawUser != nil {
		user, err = apiclient.UnmarshalUser(rawUser)
		if err != nil {
			s.logger.Warn("discarding corrupted session user",
				slog.String("visitor_id", visitorID),
				slog.String("error", err.Error()),
			)
		}
	}
	if user == nil || len(token) == 0 {
		if err := s.clear(ctx, visitorID); err != nil {
			return nil, err
		}
		return h, nil
	}

	h.current = model.Session{Token: string(token), User: user}
	return h, nil
}

func (s *Store) persist(ctx context.Context, visitorID, token string, user *model.User) error {
	raw, err := apiclient.MarshalUser(user)
	if err != nil {
		return fmt.Errorf("failed to encode session user: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey(visitorID, tokenKey), []byte(token), s.ttl); err != nil {
		return fmt.Errorf("failed to persist session token: %w", err)
	}
	if err := s.kv.Set(ctx, storageKey(visitorID, userKey), raw, s.ttl); err != nil {
		return fmt.Errorf("failed to persist session user: %w", err)
	}
	return nil
}

func (s *Store) clear(ctx context.Context, visitorID string) error {
	err := s.kv.Delete(ctx,
		storageKey(visitorID, tokenKey),
		storageKey(visitorID, userKey),
	)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Handle は1訪問者のセッション。どのコンポーネントからも読まれるが、
// 変更は Login / Logout / ReplaceUser / RefreshUser を通してのみ行う。
type Handle struct {
	store     *Store
	visitorID string

	// writeMu は永続化を含む書き込みを直列化する。mu より先に取る。
	writeMu sync.Mutex

	mu      sync.RWMutex
	current model.Session
}

// VisitorID は訪問者IDを返す。
func (h *Handle) VisitorID() string {
	return h.visitorID
}

// Current は現在のセッションのスナップショットを返す。
func (h *Handle) Current() model.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Login はセッションを丸ごと置き換えて永続化する。
// 永続化に失敗した場合はセッションを変更しない。
func (h *Handle) Login(ctx context.Context, token string, user *model.User) error {
	if token == "" || user == nil {
		return errors.New("login requires both token and user")
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.store.persist(ctx, h.visitorID, token, user); err != nil {
		return err
	}

	h.mu.Lock()
	h.current = model.Session{Token: token, User: user}
	h.mu.Unlock()

	h.store.logger.Info("user logged in",
		slog.String("visitor_id", h.visitorID),
		slog.String("user_id", user.ID),
	)
	return nil
}

// Logout はセッションを消去し、永続ストアからも削除する。
// 戻り値はリダイレクト先。ストアの削除に失敗してもメモリ上のセッションは消去する。
func (h *Handle) Logout(ctx context.Context) (string, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.mu.Lock()
	h.current = model.Session{}
	h.mu.Unlock()

	if err := h.store.clear(ctx, h.visitorID); err != nil {
		h.store.logger.Error("failed to clear persisted session",
			slog.String("visitor_id", h.visitorID),
			slog.String("error", err.Error()),
		)
		return LoginPath, err
	}

	h.store.logger.Info("user logged out", slog.String("visitor_id", h.visitorID))
	return LoginPath, nil
}

// ForceLogout は401を受けたときのログアウト。強制ログアウトとして記録する。
func (h *Handle) ForceLogout(ctx context.Context) string {
	h.store.metrics.RecordForcedLogout()
	redirect, _ := h.Logout(ctx)
	return redirect
}

// ReplaceUser は token のセッションが続いている場合に限り、現在のユーザーを差し替えて永続化する。
// token は user を取得したときのトークン。未ログイン、またはその後にログアウトや
// 再ログインでトークンが変わっていた場合は何も書かずに ErrSessionChanged を返す。
func (h *Handle) ReplaceUser(ctx context.Context, token string, user *model.User) error {
	if user == nil {
		return nil
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	cur := h.Current()
	if !cur.Authenticated() || cur.Token != token {
		return ErrSessionChanged
	}
	if err := h.store.persist(ctx, h.visitorID, token, user); err != nil {
		return err
	}

	h.mu.Lock()
	h.current.User = user
	h.mu.Unlock()
	return nil
}

// RefreshUser は GET /api/users/:id で現在のユーザーを再取得する。
// 同じ訪問者の同時リフレッシュは1回のリモート呼び出しにまとめる。
// 401の場合はログアウトし、apiclient.ErrUnauthorized を返す。
// その他の失敗ではセッションを変更しない。取得中にセッションが変わった場合は
// 取得結果を捨て、その時点のセッションを返す。
func (h *Handle) RefreshUser(ctx context.Context) (model.Session, error) {
	cur := h.Current()
	if !cur.Authenticated() {
		return cur, nil
	}

	_, err, _ := h.store.refreshGroup.Do(h.visitorID+":"+cur.Token, func() (any, error) {
		user, err := h.store.users.GetUser(ctx, cur.Token, cur.User.ID)
		if err != nil {
			if errors.Is(err, apiclient.ErrUnauthorized) && h.Current().Token == cur.Token {
				h.ForceLogout(ctx)
			}
			return nil, err
		}
		err = h.ReplaceUser(ctx, cur.Token, user)
		if errors.Is(err, ErrSessionChanged) {
			h.store.logger.Info("discarding refreshed user of a replaced session",
				slog.String("visitor_id", h.visitorID),
			)
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return h.Current(), fmt.Errorf("failed to refresh user: %w", err)
	}
	return h.Current(), nil
}
