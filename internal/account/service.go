// Package account はログイン中の利用者自身のアカウント管理を提供する。
// プロフィール更新、パスワード変更、稼働状況の切り替え、画像のアップロードと削除、退会。
package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/security"
	"github.com/hitoshi/btpmatch/internal/session"
	"github.com/hitoshi/btpmatch/internal/validation"
)

// Remote はアカウント関連のリモートAPI呼び出しのインターフェース。
type Remote interface {
	UpdateUser(ctx context.Context, token, userID string, fields map[string]any) (*model.User, error)
	ChangePassword(ctx context.Context, token, userID, current, next, confirm string) error
	DeleteUser(ctx context.Context, token, userID string) error
	Upload(ctx context.Context, token, userID string, kind apiclient.UploadKind, filename string, content io.Reader) (*model.User, error)
	DeleteImage(ctx context.Context, token, userID, imageID string) error
}

// SessionHandle は訪問者のセッション操作のインターフェース。
type SessionHandle interface {
	Current() model.Session
	ReplaceUser(ctx context.Context, token string, user *model.User) error
	RefreshUser(ctx context.Context) (model.Session, error)
	Logout(ctx context.Context) (string, error)
}

// URLValidator は外部リンクが公開URLかを検証する。
type URLValidator interface {
	ValidatePublicURL(rawURL string) error
}

// Service はアカウント管理のサービス層。
// 書き込みに成功した場合はセッションの現在のユーザーを返された内容で置き換える。
type Service struct {
	remote    Remote
	guard     URLValidator
	sanitizer security.Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(remote Remote, guard URLValidator, sanitizer security.Sanitizer) *Service {
	return &Service{
		remote:    remote,
		guard:     guard,
		sanitizer: sanitizer,
	}
}

func currentSession(h SessionHandle) (model.Session, error) {
	sess := h.Current()
	if !sess.Authenticated() {
		return model.Session{}, model.NewUnauthorizedError()
	}
	return sess, nil
}

// apply は返されたユーザーでセッションを置き換える。
// サーバーがユーザーを返さない場合は再取得する。token は書き込みに使ったトークンで、
// その間にセッションが入れ替わっていた場合は置き換えずに現在のユーザーを返す。
func (s *Service) apply(ctx context.Context, h SessionHandle, token string, updated *model.User) (*model.User, error) {
	if updated == nil {
		sess, err := h.RefreshUser(ctx)
		if err != nil {
			return nil, err
		}
		return sess.User, nil
	}
	if err := h.ReplaceUser(ctx, token, updated); err != nil {
		if errors.Is(err, session.ErrSessionChanged) {
			cur, err := currentSession(h)
			if err != nil {
				return nil, err
			}
			return cur.User, nil
		}
		return nil, fmt.Errorf("セッションの更新に失敗しました: %w", err)
	}
	return updated, nil
}

// UpdateProfile はプロフィールを部分更新する。
func (s *Service) UpdateProfile(ctx context.Context, h SessionHandle, upd ProfileUpdate) (*model.User, error) {
	sess, err := currentSession(h)
	if err != nil {
		return nil, err
	}
	fields, err := upd.fields(s.sanitizer, s.guard)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return sess.User, nil
	}

	updated, err := s.remote.UpdateUser(ctx, sess.Token, sess.User.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	slog.Info("profile updated",
		slog.String("user_id", sess.User.ID),
		slog.Int("fields", len(fields)),
	)
	return s.apply(ctx, h, sess.Token, updated)
}

// PasswordChange はパスワード変更の入力。
type PasswordChange struct {
	Current string `json:"currentPassword"`
	New     string `json:"newPassword"`
	Confirm string `json:"confirmPassword"`
}

// ChangePassword はパスワードを変更する。パスワードはリモートAPIへ転送するだけで保持しない。
func (s *Service) ChangePassword(ctx context.Context, h SessionHandle, in PasswordChange) error {
	sess, err := currentSession(h)
	if err != nil {
		return err
	}

	v := validation.Violations{}
	validation.Required("currentPassword", in.Current, "Le mot de passe actuel est requis", v)
	validation.Password("newPassword", in.New, v)
	validation.Confirmation("confirmPassword", in.New, in.Confirm, v)
	if err := v.Err(); err != nil {
		return err
	}

	if err := s.remote.ChangePassword(ctx, sess.Token, sess.User.ID, in.Current, in.New, in.Confirm); err != nil {
		return fmt.Errorf("パスワードの変更に失敗しました: %w", err)
	}
	slog.Info("password changed", slog.String("user_id", sess.User.ID))
	return nil
}

// ToggleAvailability は稼働状況を反転する。
// 企業は採用受付（recruitment）、個人は稼働可能（available）を切り替える。
func (s *Service) ToggleAvailability(ctx context.Context, h SessionHandle) (*model.User, error) {
	sess, err := currentSession(h)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if sess.User.IsCompany() {
		fields = map[string]any{"recruitment": !sess.User.RecruitmentOpen}
	} else {
		fields = map[string]any{"available": !sess.User.Available}
	}

	updated, err := s.remote.UpdateUser(ctx, sess.Token, sess.User.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("稼働状況の更新に失敗しました: %w", err)
	}
	return s.apply(ctx, h, sess.Token, updated)
}

// Upload は画像をアップロードする。kind は avatar, banner, company-logo, images のいずれか。
func (s *Service) Upload(ctx context.Context, h SessionHandle, kind, filename string, content io.Reader) (*model.User, error) {
	sess, err := currentSession(h)
	if err != nil {
		return nil, err
	}
	k, ok := apiclient.ParseUploadKind(kind)
	if !ok {
		return nil, model.NewInvalidUploadKindError(kind)
	}
	if k == apiclient.UploadCompanyLogo && !sess.User.IsCompany() {
		return nil, model.NewInvalidRequestError("seules les entreprises peuvent ajouter un logo")
	}

	updated, err := s.remote.Upload(ctx, sess.Token, sess.User.ID, k, filename, content)
	if err != nil {
		return nil, fmt.Errorf("画像のアップロードに失敗しました: %w", err)
	}
	slog.Info("image uploaded",
		slog.String("user_id", sess.User.ID),
		slog.String("kind", string(k)),
	)
	return s.apply(ctx, h, sess.Token, updated)
}

// DeleteImage はギャラリーの画像を1枚削除し、セッションのユーザーからも取り除く。
func (s *Service) DeleteImage(ctx context.Context, h SessionHandle, imageID string) (*model.User, error) {
	sess, err := currentSession(h)
	if err != nil {
		return nil, err
	}
	if err := s.remote.DeleteImage(ctx, sess.Token, sess.User.ID, imageID); err != nil {
		return nil, fmt.Errorf("画像の削除に失敗しました: %w", err)
	}

	cp := *sess.User
	cp.Images = make([]model.Image, 0, len(sess.User.Images))
	for _, img := range sess.User.Images {
		if img.ID != imageID {
			cp.Images = append(cp.Images, img)
		}
	}
	return s.apply(ctx, h, sess.Token, &cp)
}

// DeleteAccount は退会処理を実行する。
// リモートAPIでアカウントを削除した後にログアウトし、リダイレクト先を返す。
func (s *Service) DeleteAccount(ctx context.Context, h SessionHandle) (string, error) {
	sess, err := currentSession(h)
	if err != nil {
		return "", err
	}

	slog.Info("退会処理を開始します", slog.String("user_id", sess.User.ID))

	if err := s.remote.DeleteUser(ctx, sess.Token, sess.User.ID); err != nil {
		return "", fmt.Errorf("アカウントの削除に失敗しました: %w", err)
	}

	redirect, err := h.Logout(ctx)
	if err != nil {
		// リモート側は削除済みなので、ローカルの後始末の失敗はログに残すだけにする
		slog.Error("failed to clear session after account deletion",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", sess.User.ID))
	return redirect, nil
}
