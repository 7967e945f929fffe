// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はクライアント操作のPrometheusメトリクスを収集する。
// client.MetricsRecorderインターフェースを実装する。
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	localFailures  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rttrail_client_requests_total",
			Help: "操作・HTTPステータスコード別のリクエスト数",
		}, []string{"operation", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rttrail_client_request_latency_seconds",
			Help:    "操作別のリクエストレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		localFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rttrail_client_local_failures_total",
			Help: "ディスパッチ前に失敗した操作の数（エラーコード別）",
		}, []string{"operation", "error_code"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.localFailures,
	)

	return c
}

// RecordRequest はHTTPレスポンスを受信した操作を記録する。
func (c *Collector) RecordRequest(operation string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.requestLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLocalFailure はディスパッチ前に失敗した操作を記録する。
// 必須パラメータ欠落、認証情報欠落、トランスポート失敗が該当する。
func (c *Collector) RecordLocalFailure(operation string, errCode string) {
	c.localFailures.WithLabelValues(operation, errCode).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
