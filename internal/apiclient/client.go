// Package apiclient はマーケットプレイスのリモートREST APIクライアントを提供する。
// 各エンドポイントを型付きの関数として包み、HTTPの失敗をエラーとして返す。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/btpmatch/internal/metrics"
)

const (
	// DefaultBaseURL はリモートAPIのデフォルトのベースURL。
	DefaultBaseURL = "http://localhost:5000"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（4MB）。
	maxResponseSize = 4 << 20
	userAgent       = "BTPMatch/1.0"
)

// Client はリモートAPIのクライアント。
// 認証が必要な呼び出しには Authorization: Bearer <token> を付与する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	metrics    metrics.MetricsCollector
}

// NewClient はClient の新しいインスタンスを生成する。
// baseURL が空の場合は DefaultBaseURL を使う。mc が nil の場合は記録しない。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, mc metrics.MetricsCollector) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    mc,
	}
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call は1回のリモートAPI呼び出しを表す。
type call struct {
	route       string // メトリクス・ログ用のルート名（例: "GET /api/missions/:id"）
	method      string
	path        string
	query       url.Values
	token       string
	jsonBody    any
	rawBody     io.Reader
	contentType string
}

// do はリモートAPIを呼び出し、2xxならレスポンスJSONを out にデコードする。
// 401 は ErrUnauthorized と同一視される StatusError、その他の非2xxは StatusError、
// 通信失敗は TransportError を返す。
func (c *Client) do(ctx context.Context, cl call, out any) error {
	// 1. リクエストURL構築
	reqURL := c.baseURL + cl.path
	if len(cl.query) > 0 {
		reqURL += "?" + cl.query.Encode()
	}

	// 2. ボディ構築
	var body io.Reader
	contentType := cl.contentType
	if cl.jsonBody != nil {
		b, err := json.Marshal(cl.jsonBody)
		if err != nil {
			return fmt.Errorf("リクエストJSONのエンコードに失敗しました: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	} else if cl.rawBody != nil {
		body = cl.rawBody
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, reqURL, body)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	// 3. 実行
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRemoteTransportError(cl.route)
		c.logger.Error("リモートAPIの呼び出しに失敗しました",
			slog.String("route", cl.route),
			slog.String("error", err.Error()),
		)
		return &TransportError{Route: cl.route, Err: err}
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteCall(cl.route, resp.StatusCode, time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("route", cl.route),
			slog.String("error", err.Error()),
		)
		return &TransportError{Route: cl.route, Err: err}
	}

	// 4. ステータス判定
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{
			Route:      cl.route,
			StatusCode: resp.StatusCode,
			Message:    extractMessage(raw),
		}
		level := slog.LevelWarn
		if resp.StatusCode >= 500 {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "リモートAPIがエラーステータスを返しました",
			slog.String("route", cl.route),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", se.Message),
		)
		return se
	}

	// 5. デコード
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("リモートAPIのレスポンスのパースに失敗しました",
			slog.String("route", cl.route),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: レスポンスJSONのパースに失敗しました: %w", cl.route, err)
	}
	return nil
}

// extractMessage はエラーレスポンスの {message} を取り出す。
func extractMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// pathID はパスセグメントとしてIDをエスケープする。
func pathID(id string) string {
	return url.PathEscape(id)
}
