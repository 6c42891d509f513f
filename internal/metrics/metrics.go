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
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordSubmission(kind string)
	RecordModeration(kind, action string)
	RecordAuthEvent(event, outcome string)
	RecordHTTPStatus(statusCode int)
	RecordDashboardLatency(duration time.Duration)
	RecordCleanup(target string, deleted int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissions      *prometheus.CounterVec
	moderation       *prometheus.CounterVec
	authEvents       *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	dashboardLatency prometheus.Histogram
	cleanupDeleted   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministry_submissions_total",
			Help: "公開フォームからの投稿数（種別ごと）",
		}, []string{"kind"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministry_moderation_actions_total",
			Help: "モデレーション操作数（種別・操作ごと）",
		}, []string{"kind", "action"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministry_auth_events_total",
			Help: "認証イベント数（イベント・結果ごと）",
		}, []string{"event", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministry_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		dashboardLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ministry_admin_dashboard_latency_seconds",
			Help:    "管理ダッシュボード一括読み込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ministry_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数（対象ごと）",
		}, []string{"target"}),
	}

	reg.MustRegister(
		c.submissions,
		c.moderation,
		c.authEvents,
		c.httpStatus,
		c.dashboardLatency,
		c.cleanupDeleted,
	)

	return c
}

// RecordSubmission は投稿を記録する。
func (c *Collector) RecordSubmission(kind string) {
	c.submissions.WithLabelValues(kind).Inc()
}

// RecordModeration はモデレーション操作を記録する。
func (c *Collector) RecordModeration(kind, action string) {
	c.moderation.WithLabelValues(kind, action).Inc()
}

// RecordAuthEvent は認証イベントを記録する。
func (c *Collector) RecordAuthEvent(event, outcome string) {
	c.authEvents.WithLabelValues(event, outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordDashboardLatency は管理ダッシュボード読み込みのレイテンシを記録する。
func (c *Collector) RecordDashboardLatency(duration time.Duration) {
	c.dashboardLatency.Observe(duration.Seconds())
}

// RecordCleanup はクリーンアップで削除された行数を記録する。
func (c *Collector) RecordCleanup(target string, deleted int64) {
	c.cleanupDeleted.WithLabelValues(target).Add(float64(deleted))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordSubmission(string)              {}
func (Nop) RecordModeration(string, string)      {}
func (Nop) RecordAuthEvent(string, string)       {}
func (Nop) RecordHTTPStatus(int)                 {}
func (Nop) RecordDashboardLatency(time.Duration) {}
func (Nop) RecordCleanup(string, int64)          {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
