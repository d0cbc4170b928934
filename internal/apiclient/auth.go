package apiclient

import (
	"context"
	"net/http"

	"github.com/hitoshi/btpmatch/internal/model"
)

// RegisterRequest は新規登録のリクエストボディ。
// 企業（entreprise）の場合のみ会社関連の項目を送る。
type RegisterRequest struct {
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
	CompanyName     string `json:"companyName,omitempty"`
	CompanyAddress  string `json:"companyAddress,omitempty"`
}

// AuthResult は登録・ログインの結果。
// 登録APIはトークンを返さない場合がある。
type AuthResult struct {
	Token   string
	User    *model.User
	Message string
}

type authResponse struct {
	Token   string    `json:"token"`
	User    *wireUser `json:"user"`
	Message string    `json:"message"`
}

func (r authResponse) toResult() *AuthResult {
	return &AuthResult{
		Token:   r.Token,
		User:    r.User.toModel(),
		Message: r.Message,
	}
}

// Register は POST /api/register を呼び出す。
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	var resp authResponse
	err := c.do(ctx, call{
		route:    "POST /api/register",
		method:   http.MethodPost,
		path:     "/api/register",
		jsonBody: req,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}

// Login は POST /api/login を呼び出す。
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var resp authResponse
	err := c.do(ctx, call{
		route:  "POST /api/login",
		method: http.MethodPost,
		path:   "/api/login",
		jsonBody: map[string]string{
			"email":    email,
			"password": password,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toResult(), nil
}
