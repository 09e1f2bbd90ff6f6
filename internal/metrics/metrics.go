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
// 外部求人ソースのアダプタ、求人サービス、通知ディスパッチャから利用する。
type MetricsCollector interface {
	RecordExternalFetchSuccess()
	RecordExternalFetchFailure(reason string)
	RecordExternalHTTPStatus(statusCode int)
	RecordExternalFetchLatency(duration time.Duration)
	RecordSkillsParseFailure()
	RecordListingCreated()
	RecordNotificationSent()
	RecordNotificationFailed()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess    prometheus.Counter
	fetchFail       *prometheus.CounterVec
	httpStatus      *prometheus.CounterVec
	fetchLatency    prometheus.Histogram
	skillsParseFail prometheus.Counter
	listingsCreated prometheus.Counter
	notifySent      prometheus.Counter
	notifyFail      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobberwocky_external_fetch_success_total",
			Help: "外部求人ソース取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobberwocky_external_fetch_fail_total",
			Help: "外部求人ソース取得失敗の合計数（理由別）",
		}, []string{"reason"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobberwocky_external_http_status_total",
			Help: "外部求人ソースのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobberwocky_external_fetch_latency_seconds",
			Help:    "外部求人ソース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		skillsParseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobberwocky_skills_parse_fail_total",
			Help: "スキル定義マークアップの解析失敗の合計数",
		}),
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobberwocky_listings_created_total",
			Help: "作成された求人の合計数",
		}),
		notifySent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobberwocky_notifications_sent_total",
			Help: "送信に成功した通知メールの合計数",
		}),
		notifyFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobberwocky_notifications_failed_total",
			Help: "送信に失敗した通知メールの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.httpStatus,
		c.fetchLatency,
		c.skillsParseFail,
		c.listingsCreated,
		c.notifySent,
		c.notifyFail,
	)

	return c
}

// RecordExternalFetchSuccess は外部求人ソース取得の成功を記録する。
func (c *Collector) RecordExternalFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordExternalFetchFailure は外部求人ソース取得の失敗を理由（エラーコード）別に記録する。
func (c *Collector) RecordExternalFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordExternalHTTPStatus は外部求人ソースのHTTPステータスコードを記録する。
func (c *Collector) RecordExternalHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordExternalFetchLatency は外部求人ソース取得のレイテンシを記録する。
func (c *Collector) RecordExternalFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordSkillsParseFailure はスキル定義の解析失敗を記録する。
func (c *Collector) RecordSkillsParseFailure() {
	c.skillsParseFail.Inc()
}

// RecordListingCreated は求人作成を記録する。
func (c *Collector) RecordListingCreated() {
	c.listingsCreated.Inc()
}

// RecordNotificationSent は通知送信の成功を記録する。
func (c *Collector) RecordNotificationSent() {
	c.notifySent.Inc()
}

// RecordNotificationFailed は通知送信の失敗を記録する。
func (c *Collector) RecordNotificationFailed() {
	c.notifyFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
