// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントやフロー層から利用する。
type MetricsCollector interface {
	RecordRemoteCall(endpoint string, statusCode int, duration time.Duration)
	RecordRemoteTransportError(endpoint string)
	RecordForcedLogout()
	RecordRatingSubmitted()
	RecordApplicationSubmitted()
	RecordStaleResultDiscarded(flow string)
	SetActiveWorkspaces(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	remoteCalls      *prometheus.CounterVec
	remoteLatency    *prometheus.HistogramVec
	remoteTransport  *prometheus.CounterVec
	forcedLogouts    prometheus.Counter
	ratingsSubmitted prometheus.Counter
	applications     prometheus.Counter
	staleDiscarded   *prometheus.CounterVec
	activeWorkspaces prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpmatch_remote_calls_total",
			Help: "リモートAPI呼び出しのエンドポイント・ステータス別合計数",
		}, []string{"endpoint", "status_code"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "btpmatch_remote_call_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		remoteTransport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpmatch_remote_transport_errors_total",
			Help: "リモートAPIへの通信失敗の合計数",
		}, []string{"endpoint"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btpmatch_forced_logouts_total",
			Help: "401応答による強制ログアウトの合計数",
		}),
		ratingsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btpmatch_ratings_submitted_total",
			Help: "送信に成功した評価の合計数",
		}),
		applications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btpmatch_applications_submitted_total",
			Help: "送信に成功したミッション応募の合計数",
		}),
		staleDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btpmatch_stale_results_discarded_total",
			Help: "後発リクエストに追い越されて破棄された取得結果の数",
		}, []string{"flow"}),
		activeWorkspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "btpmatch_active_workspaces",
			Help: "メモリ上に保持している訪問者ワークスペース数",
		}),
	}

	reg.MustRegister(
		c.remoteCalls,
		c.remoteLatency,
		c.remoteTransport,
		c.forcedLogouts,
		c.ratingsSubmitted,
		c.applications,
		c.staleDiscarded,
		c.activeWorkspaces,
	)

	return c
}

// RecordRemoteCall はリモートAPI呼び出しの結果とレイテンシを記録する。
// endpoint はパスパラメータを含まないルート名（例: "GET /api/missions/:id"）。
func (c *Collector) RecordRemoteCall(endpoint string, statusCode int, duration time.Duration) {
	c.remoteCalls.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.remoteLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRemoteTransportError は通信失敗を記録する。
func (c *Collector) RecordRemoteTransportError(endpoint string) {
	c.remoteTransport.WithLabelValues(endpoint).Inc()
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordRatingSubmitted は評価送信成功を記録する。
func (c *Collector) RecordRatingSubmitted() {
	c.ratingsSubmitted.Inc()
}

// RecordApplicationSubmitted は応募成功を記録する。
func (c *Collector) RecordApplicationSubmitted() {
	c.applications.Inc()
}

// RecordStaleResultDiscarded は古い取得結果の破棄を記録する。
func (c *Collector) RecordStaleResultDiscarded(flow string) {
	c.staleDiscarded.WithLabelValues(flow).Inc()
}

// SetActiveWorkspaces は保持中のワークスペース数を設定する。
func (c *Collector) SetActiveWorkspaces(n int) {
	c.activeWorkspaces.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しない MetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordRemoteCall(string, int, time.Duration) {}
func (Nop) RecordRemoteTransportError(string)           {}
func (Nop) RecordForcedLogout()                         {}
func (Nop) RecordRatingSubmitted()                      {}
func (Nop) RecordApplicationSubmitted()                 {}
func (Nop) RecordStaleResultDiscarded(string)           {}
func (Nop) SetActiveWorkspaces(int)                     {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
