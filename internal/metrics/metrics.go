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
// リコンサイラ、キャッシュ、ストレージ、サービス層から利用する。
type MetricsCollector interface {
	RecordAuthEvent(eventType string)
	RecordCacheHit()
	RecordCacheMiss()
	RecordSignedURL()
	RecordStorageError(operation string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordActiveSessions(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authEvents     *prometheus.CounterVec
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	signedURLs     prometheus.Counter
	storageErrors  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehub_auth_events_total",
			Help: "処理された認証イベントの種別ごとの合計数",
		}, []string{"event"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resourcehub_resource_cache_hits_total",
			Help: "リソースキャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resourcehub_resource_cache_misses_total",
			Help: "リソースキャッシュミス（フェッチ発生）の合計数",
		}),
		signedURLs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resourcehub_signed_urls_total",
			Help: "発行された署名付きダウンロードURLの合計数",
		}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehub_storage_errors_total",
			Help: "オブジェクトストレージ操作失敗の操作別合計数",
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resourcehub_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resourcehub_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "resourcehub_active_sessions",
			Help: "現在アクティブなブラウザセッション数",
		}),
	}

	reg.MustRegister(
		c.authEvents,
		c.cacheHits,
		c.cacheMisses,
		c.signedURLs,
		c.storageErrors,
		c.httpStatus,
		c.requestLatency,
		c.activeSessions,
	)

	return c
}

// RecordAuthEvent は処理された認証イベントを記録する。
func (c *Collector) RecordAuthEvent(eventType string) {
	c.authEvents.WithLabelValues(eventType).Inc()
}

// RecordCacheHit はリソースキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はリソースキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordSignedURL は署名付きURLの発行を記録する。
func (c *Collector) RecordSignedURL() {
	c.signedURLs.Inc()
}

// RecordStorageError はストレージ操作失敗を記録する。
func (c *Collector) RecordStorageError(operation string) {
	c.storageErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordActiveSessions は現在のアクティブセッション数を記録する。
func (c *Collector) RecordActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
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
