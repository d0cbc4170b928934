package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hitoshi/btpmatch/internal/model"
)

// ReviewInput は評価投稿のリクエスト。
type ReviewInput struct {
	TargetUserID string
	AuthorID     string
	Rating       float64
	Comment      string
	Criteria     map[string]int
}

// HasRated は GET /api/reviews/hasRated を呼び出し、
// authorID が userID を既に評価しているかを返す。
func (c *Client) HasRated(ctx context.Context, token, userID, authorID string) (bool, error) {
	var resp struct {
		HasRated bool `json:"hasRated"`
	}
	err := c.do(ctx, call{
		route:  "GET /api/reviews/hasRated",
		method: http.MethodGet,
		path:   "/api/reviews/hasRated",
		query:  url.Values{"userId": {userID}, "authorId": {authorID}},
		token:  token,
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.HasRated, nil
}

// CreateReview は POST /api/reviews を呼び出す。
// サーバーが作成した評価を返さない場合は送信内容から組み立てる。
func (c *Client) CreateReview(ctx context.Context, token string, in ReviewInput) (*model.Review, error) {
	var resp struct {
		Review *wireReview `json:"review"`
	}
	err := c.do(ctx, call{
		route:  "POST /api/reviews",
		method: http.MethodPost,
		path:   "/api/reviews",
		token:  token,
		jsonBody: map[string]any{
			"userId":   in.TargetUserID,
			"authorId": in.AuthorID,
			"rating":   in.Rating,
			"comment":  in.Comment,
			"criteria": in.Criteria,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Review != nil {
		r := resp.Review.toModel()
		return &r, nil
	}
	return &model.Review{
		TargetUserID: in.TargetUserID,
		AuthorID:     in.AuthorID,
		Rating:       in.Rating,
		Comment:      in.Comment,
		Criteria:     in.Criteria,
	}, nil
}
