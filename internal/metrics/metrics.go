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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordRefreshSuccess()
	RecordRefreshFailure()
	RecordHTTPStatus(statusCode int)
	RecordOAuthLatency(duration time.Duration)
	RecordSessionsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loginSuccess    prometheus.Counter
	loginFail       *prometheus.CounterVec
	refreshSuccess  prometheus.Counter
	refreshFail     prometheus.Counter
	httpStatus      *prometheus.CounterVec
	oauthLatency    prometheus.Histogram
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonbook_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonbook_login_fail_total",
			Help: "ログイン失敗の合計数（原因別）",
		}, []string{"reason"}),
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonbook_refresh_success_total",
			Help: "トークンリフレッシュ成功の合計数",
		}),
		refreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonbook_refresh_fail_total",
			Help: "トークンリフレッシュ失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lessonbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		oauthLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lessonbook_oauth_latency_seconds",
			Help:    "OAuthプロバイダー呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lessonbook_sessions_cleaned_total",
			Help: "クリーンアップで削除されたセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.loginSuccess,
		c.loginFail,
		c.refreshSuccess,
		c.refreshFail,
		c.httpStatus,
		c.oauthLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を原因付きで記録する。
func (c *Collector) RecordLoginFailure(reason string) {
	c.loginFail.WithLabelValues(reason).Inc()
}

// RecordRefreshSuccess はトークンリフレッシュ成功を記録する。
func (c *Collector) RecordRefreshSuccess() {
	c.refreshSuccess.Inc()
}

// RecordRefreshFailure はトークンリフレッシュ失敗を記録する。
func (c *Collector) RecordRefreshFailure() {
	c.refreshFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordOAuthLatency はOAuthプロバイダー呼び出しのレイテンシを記録する。
func (c *Collector) RecordOAuthLatency(duration time.Duration) {
	c.oauthLatency.Observe(duration.Seconds())
}

// RecordSessionsCleaned はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
