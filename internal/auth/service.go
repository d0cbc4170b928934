// Package auth は新規登録、ログイン、ログアウトの認証フローを提供する。
// 認証そのものはリモートAPIが行い、ここではトークンとユーザーを訪問者のセッションに保持する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/btpmatch/internal/apiclient"
	"github.com/hitoshi/btpmatch/internal/model"
	"github.com/hitoshi/btpmatch/internal/validation"
)

// Remote は認証に使うリモートAPI呼び出しのインターフェース。
type Remote interface {
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.AuthResult, error)
	Login(ctx context.Context, email, password string) (*apiclient.AuthResult, error)
}

// SessionHandle は訪問者のセッション操作のインターフェース。
type SessionHandle interface {
	Current() model.Session
	Login(ctx context.Context, token string, user *model.User) error
	Logout(ctx context.Context) (string, error)
	RefreshUser(ctx context.Context) (model.Session, error)
}

const (
	msgRegisterFailed = "Erreur lors de l'inscription"
	msgLoginFailed    = "Erreur lors de la connexion"
	msgRegistered     = "Votre compte a été créé avec succès."
)

// Registration は新規登録フォームの入力。
type Registration struct {
	UserType        string `json:"userType"`
	Trade           string `json:"trade"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Address         string `json:"address"`
	City            string `json:"city"`
	ZipCode         string `json:"zipCode"`
	Department      string `json:"department"`
	Country         string `json:"country"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Phone           string `json:"phone"`
	Siret           string `json:"siret"`
	CompanyName     string `json:"companyName"`
	CompanyAddress  string `json:"companyAddress"`
}

// request は入力を検証してリモートAPIのリクエストに変換する。
func (r Registration) request() (apiclient.RegisterRequest, error) {
	v := validation.Violations{}
	trim := strings.TrimSpace

	kind, ok := model.ParseUserKind(r.UserType)
	if !ok {
		validation.OneOf("userType", r.UserType,
			[]string{string(model.KindCompany), string(model.KindIndividual)},
			"Veuillez choisir un type de compte", v)
	}
	validation.Required("trade", trim(r.Trade), "Veuillez choisir un métier", v)
	validation.MinLength("firstName", r.FirstName, 2, "Le prénom doit contenir au moins 2 caractères", v)
	validation.MinLength("lastName", r.LastName, 2, "Le nom doit contenir au moins 2 caractères", v)
	validation.Required("address", trim(r.Address), "L'adresse est requise", v)
	validation.Required("city", trim(r.City), "La ville est requise", v)
	validation.ZipCode("zipCode", trim(r.ZipCode), v)
	validation.Email("email", trim(r.Email), v)
	validation.Password("password", r.Password, v)
	validation.Confirmation("confirmPassword", r.Password, r.ConfirmPassword, v)
	validation.Phone("phone", trim(r.Phone), v)
	validation.Siret("siret", trim(r.Siret), v)

	if kind == model.KindCompany {
		validation.Required("companyName", trim(r.CompanyName), "Le nom de l'entreprise est requis", v)
		validation.Required("companyAddress", trim(r.CompanyAddress), "L'adresse de l'entreprise est requise", v)
	}

	if err := v.Err(); err != nil {
		return apiclient.RegisterRequest{}, err
	}

	country := trim(r.Country)
	if country == "" {
		country = "France"
	}
	req := apiclient.RegisterRequest{
		UserType:        string(kind),
		Trade:           trim(r.Trade),
		FirstName:       trim(r.FirstName),
		LastName:        trim(r.LastName),
		Address:         trim(r.Address),
		City:            trim(r.City),
		ZipCode:         trim(r.ZipCode),
		Department:      trim(r.Department),
		Country:         country,
		Email:           trim(r.Email),
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
		Phone:           trim(r.Phone),
		Siret:           strings.ReplaceAll(trim(r.Siret), " ", ""),
	}
	if kind == model.KindCompany {
		req.CompanyName = trim(r.CompanyName)
		req.CompanyAddress = trim(r.CompanyAddress)
	}
	return req, nil
}

// Credentials はログインフォームの入力。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	remote Remote
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(remote Remote, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{remote: remote, logger: logger}
}

// Register は新規登録を行い、表示用のメッセージを返す。
// 登録だけではログインしない。
func (s *Service) Register(ctx context.Context, in Registration) (string, error) {
	req, err := in.request()
	if err != nil {
		return "", err
	}

	res, err := s.remote.Register(ctx, req)
	if err != nil {
		return "", remoteFailure(err, msgRegisterFailed)
	}

	s.logger.Info("new user registered",
		slog.String("user_type", req.UserType),
		slog.String("trade", req.Trade),
	)
	if res.Message != "" {
		return res.Message, nil
	}
	return msgRegistered, nil
}

// Login はリモートAPIで認証し、成功したらセッションを置き換える。
// トークンかユーザーが欠けた応答は失敗として扱う。
func (s *Service) Login(ctx context.Context, h SessionHandle, in Credentials) (model.Session, error) {
	v := validation.Violations{}
	validation.Email("email", strings.TrimSpace(in.Email), v)
	validation.Required("password", in.Password, "Le mot de passe est requis", v)
	if err := v.Err(); err != nil {
		return model.Session{}, err
	}

	res, err := s.remote.Login(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		return model.Session{}, remoteFailure(err, msgLoginFailed)
	}
	if res.Token == "" || res.User == nil {
		return model.Session{}, model.NewRemoteAPIError(firstNonEmpty(res.Message, msgLoginFailed))
	}

	if err := h.Login(ctx, res.Token, res.User); err != nil {
		return model.Session{}, fmt.Errorf("セッションの保存に失敗しました: %w", err)
	}
	return h.Current(), nil
}

// Logout はセッションを破棄し、リダイレクト先を返す。
func (s *Service) Logout(ctx context.Context, h SessionHandle) (string, error) {
	redirect, err := h.Logout(ctx)
	if err != nil {
		return redirect, fmt.Errorf("failed to clear session: %w", err)
	}
	return redirect, nil
}

// Me は現在のセッションを返す。未ログインの場合はエラー。
func (s *Service) Me(h SessionHandle) (model.Session, error) {
	sess := h.Current()
	if !sess.Authenticated() {
		return model.Session{}, model.NewUnauthorizedError()
	}
	return sess, nil
}

// Refresh はリモートAPIから現在のユーザーを取り直す。
func (s *Service) Refresh(ctx context.Context, h SessionHandle) (model.Session, error) {
	if !h.Current().Authenticated() {
		return model.Session{}, model.NewUnauthorizedError()
	}
	return h.RefreshUser(ctx)
}

// remoteFailure は登録・ログイン時のリモートエラーを利用者向けのエラーに変換する。
// ここでの401は資格情報の誤りであり、セッション失効ではない。
func remoteFailure(err error, fallback string) error {
	var statusErr *apiclient.StatusError
	if errors.As(err, &statusErr) {
		return model.NewRemoteAPIError(firstNonEmpty(statusErr.Message, fallback))
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
