package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/TerutomiBaba/golferweb-chatsrv/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry   *prometheus.Registry
	namespace  string
	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	wsConns    prometheus.Gauge
	sessions   prometheus.Gauge
	chatReqCnt *prometheus.CounterVec
	chatReqDur *prometheus.HistogramVec
	fanoutCnt  *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	r.MustRegister(httpReqCnt, httpDur)

	wsConns := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "websocket_connections"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "joined_sessions"})
	r.MustRegister(wsConns, sessions)

	chatReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "chat_requests_total"}, []string{"method", "status"})
	chatReqDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "chat_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method"})
	fanoutCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "fanout_deliveries_total"}, []string{"send_type", "result"})
	r.MustRegister(chatReqCnt, chatReqDur, fanoutCnt)

	return &Metrics{
		registry:   r,
		namespace:  ns,
		httpReqCnt: httpReqCnt,
		httpDur:    httpDur,
		wsConns:    wsConns,
		sessions:   sessions,
		chatReqCnt: chatReqCnt,
		chatReqDur: chatReqDur,
		fanoutCnt:  fanoutCnt,
	}
}

// ConnOpened records a new WebSocket connection.
func (m *Metrics) ConnOpened() {
	m.wsConns.Inc()
}

// ConnClosed records a closed WebSocket connection.
func (m *Metrics) ConnClosed() {
	m.wsConns.Dec()
}

// SetSessions records the current number of joined sessions.
func (m *Metrics) SetSessions(n int) {
	m.sessions.Set(float64(n))
}

// ChatReqDone records one dispatched chat request.
func (m *Metrics) ChatReqDone(method string, status int, since time.Time) {
	m.chatReqCnt.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.chatReqDur.WithLabelValues(method).Observe(time.Since(since).Seconds())
}

// FanoutDelivered records one fan-out push attempt.
func (m *Metrics) FanoutDelivered(sendType string, ok bool) {
	result := "delivered"
	if !ok {
		result = "failed"
	}
	m.fanoutCnt.WithLabelValues(sendType, result).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
