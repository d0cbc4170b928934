package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/hitoshi/btpmatch/internal/model"
)

// UploadKind はプロフィール画像のアップロード種別。
type UploadKind string

const (
	UploadAvatar      UploadKind = "avatar"
	UploadBanner      UploadKind = "banner"
	UploadCompanyLogo UploadKind = "company-logo"
	UploadGallery     UploadKind = "images"
)

// ParseUploadKind は文字列からアップロード種別を解釈する。
func ParseUploadKind(s string) (UploadKind, bool) {
	switch k := UploadKind(s); k {
	case UploadAvatar, UploadBanner, UploadCompanyLogo, UploadGallery:
		return k, true
	}
	return "", false
}

// formField はmultipartのファイルフィールド名を返す。
func (k UploadKind) formField() string {
	switch k {
	case UploadCompanyLogo:
		return "logo"
	case UploadGallery:
		return "image"
	}
	return string(k)
}

type userResponse struct {
	User    *wireUser `json:"user"`
	Message string    `json:"message"`
}

// ListUsers は GET /api/users を呼び出す。
// レスポンスは {users: [...]} と素の配列の両方を受け付ける。
func (c *Client) ListUsers(ctx context.Context, token string, query url.Values) ([]*model.User, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		route:  "GET /api/users",
		method: http.MethodGet,
		path:   "/api/users",
		query:  query,
		token:  token,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var ws []wireUser
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &ws); err != nil {
			return nil, fmt.Errorf("GET /api/users: レスポンスJSONのパースに失敗しました: %w", err)
		}
	} else if len(trimmed) > 0 {
		var wrapped struct {
			Users []wireUser `json:"users"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("GET /api/users: レスポンスJSONのパースに失敗しました: %w", err)
		}
		ws = wrapped.Users
	}

	users := make([]*model.User, 0, len(ws))
	for i := range ws {
		users = append(users, ws[i].toModel())
	}
	return users, nil
}

// GetUser は GET /api/users/:id を呼び出す。
func (c *Client) GetUser(ctx context.Context, token, userID string) (*model.User, error) {
	var resp userResponse
	err := c.do(ctx, call{
		route:  "GET /api/users/:id",
		method: http.MethodGet,
		path:   "/api/users/" + pathID(userID),
		token:  token,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("レスポンスに user が含まれていません")
	}
	return resp.User.toModel(), nil
}

// UpdateUser は PUT /api/users/:id を呼び出す。
// fields はリモートAPIのフィールド名をキーとする部分更新。
// サーバーが更新後のユーザーを返さない場合は nil を返す。
func (c *Client) UpdateUser(ctx context.Context, token, userID string, fields map[string]any) (*model.User, error) {
	var resp userResponse
	err := c.do(ctx, call{
		route:    "PUT /api/users/:id",
		method:   http.MethodPut,
		path:     "/api/users/" + pathID(userID),
		token:    token,
		jsonBody: fields,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.User.toModel(), nil
}

// ChangePassword は PUT /api/users/:id/password を呼び出す。
func (c *Client) ChangePassword(ctx context.Context, token, userID, current, next, confirm string) error {
	return c.do(ctx, call{
		route:  "PUT /api/users/:id/password",
		method: http.MethodPut,
		path:   "/api/users/" + pathID(userID) + "/password",
		token:  token,
		jsonBody: map[string]string{
			"currentPassword": current,
			"newPassword":     next,
			"confirmPassword": confirm,
		},
	}, nil)
}

// DeleteUser は DELETE /api/users/:id を呼び出す。
func (c *Client) DeleteUser(ctx context.Context, token, userID string) error {
	return c.do(ctx, call{
		route:  "DELETE /api/users/:id",
		method: http.MethodDelete,
		path:   "/api/users/" + pathID(userID),
		token:  token,
	}, nil)
}

// Upload は POST /api/users/:id/{avatar|banner|company-logo|images} にファイルを送る。
// サーバーが更新後のユーザーを返さない場合は nil を返す。
func (c *Client) Upload(ctx context.Context, token, userID string, kind UploadKind, filename string, content io.Reader) (*model.User, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(kind.formField(), filename)
	if err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗しました: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("アップロード内容の読み取りに失敗しました: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("multipartの作成に失敗しました: %w", err)
	}

	var resp userResponse
	err = c.do(ctx, call{
		route:       "POST /api/users/:id/" + string(kind),
		method:      http.MethodPost,
		path:        "/api/users/" + pathID(userID) + "/" + string(kind),
		token:       token,
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.User.toModel(), nil
}

// DeleteImage は DELETE /api/users/:id/images/:imageId を呼び出す。
func (c *Client) DeleteImage(ctx context.Context, token, userID, imageID string) error {
	return c.do(ctx, call{
		route:  "DELETE /api/users/:id/images/:imageId",
		method: http.MethodDelete,
		path:   "/api/users/" + pathID(userID) + "/images/" + pathID(imageID),
		token:  token,
	}, nil)
}
