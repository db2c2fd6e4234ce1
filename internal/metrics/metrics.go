// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 記録対象テーブル名。
const (
	TableDrummingData = "drumming_data"
	TablePostureData  = "posture_data"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーと姿勢スコアAPIクライアントから利用する。
type MetricsCollector interface {
	RecordScorerResult(result string, duration time.Duration)
	RecordRecordCreated(table string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	scorerRequests *prometheus.CounterVec
	scorerLatency  prometheus.Histogram
	recordsCreated *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scorerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drumposture_scorer_requests_total",
			Help: "姿勢スコアAPI呼び出しの結果別合計数",
		}, []string{"result"}),
		scorerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "drumposture_scorer_latency_seconds",
			Help:    "姿勢スコアAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drumposture_records_created_total",
			Help: "テーブル別の保存件数",
		}, []string{"table"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "drumposture_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.scorerRequests,
		c.scorerLatency,
		c.recordsCreated,
		c.httpStatus,
	)

	return c
}

// RecordScorerResult は姿勢スコアAPI呼び出しの結果とレイテンシを記録する。
func (c *Collector) RecordScorerResult(result string, duration time.Duration) {
	c.scorerRequests.WithLabelValues(result).Inc()
	c.scorerLatency.Observe(duration.Seconds())
}

// RecordRecordCreated は保存件数を記録する。
func (c *Collector) RecordRecordCreated(table string) {
	c.recordsCreated.WithLabelValues(table).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// statusRecorder はレスポンスのステータスコードを記録するResponseWriterラッパー。
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.statusCode = http.StatusOK
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware はレスポンスのステータスコードを記録するミドルウェアを返す。
func (c *Collector) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPStatus(rec.statusCode)
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
