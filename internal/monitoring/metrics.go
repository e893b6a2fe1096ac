package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 会话指标
	SessionsActive     prometheus.Gauge
	SessionsTotal      prometheus.Counter
	SessionsRejected   prometheus.Counter
	SessionsReplaced   prometheus.Counter

	// 投递指标
	EnvelopesPersisted prometheus.Counter
	EnvelopesDelivered *prometheus.CounterVec // path: live / replay
	PushFailures       prometheus.Counter
	MalformedRequests  prometheus.Counter
	UnknownRecipients  prometheus.Counter

	// 保留清理指标
	EnvelopesPurged *prometheus.CounterVec // kind: message / file
	SweepFailures   *prometheus.CounterVec // kind: message / file

	// 用户指标
	UsersRegistered prometheus.Counter
}

// NewMetrics 创建监控指标（promauto 自动完成注册）
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandeshaa_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandeshaa_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandeshaa_sessions_active",
				Help: "Number of currently registered live sessions",
			},
		),

		SessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_sessions_total",
				Help: "Total number of admitted websocket sessions",
			},
		),

		SessionsRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_sessions_rejected_total",
				Help: "Total number of connections rejected by the credential gate",
			},
		),

		SessionsReplaced: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_sessions_replaced_total",
				Help: "Total number of sessions evicted by a newer connection for the same identity",
			},
		),

		EnvelopesPersisted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_envelopes_persisted_total",
				Help: "Total number of message envelopes appended to the store",
			},
		),

		EnvelopesDelivered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandeshaa_envelopes_delivered_total",
				Help: "Total number of envelopes marked delivered, by delivery path",
			},
			[]string{"path"},
		),

		PushFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_push_failures_total",
				Help: "Total number of failed live pushes to a registered channel",
			},
		),

		MalformedRequests: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_malformed_requests_total",
				Help: "Total number of send requests with missing fields",
			},
		),

		UnknownRecipients: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_unknown_recipients_total",
				Help: "Total number of send requests to an unknown handle",
			},
		),

		EnvelopesPurged: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandeshaa_envelopes_purged_total",
				Help: "Total number of envelopes removed by the retention sweeper",
			},
			[]string{"kind"},
		),

		SweepFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandeshaa_sweep_failures_total",
				Help: "Total number of failed retention sweep runs",
			},
			[]string{"kind"},
		),

		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sandeshaa_users_registered_total",
				Help: "Total number of registered users",
			},
		),
	}
}

// HTTPHandler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
