package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mimiclab/simlink/internal/common/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the instruments for the realtime session layer and the HTTP
// surfaces that embed it. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	namespace string

	connState    prometheus.Gauge
	reconnects   prometheus.Counter
	msgIn        *prometheus.CounterVec
	msgOut       *prometheus.CounterVec
	msgMalformed prometheus.Counter
	dedupDrops   prometheus.Counter
	queueDepth   prometheus.Gauge
	queueEvicted prometheus.Counter
	reqInfl      prometheus.Gauge
	reqCnt       *prometheus.CounterVec
	reqDur       prometheus.Histogram

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   *prometheus.GaugeVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	if ns == "" {
		ns = "simlink"
	}
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	connState := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "session_connected"})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "session_reconnect_attempts_total"})
	msgIn := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "messages_received_total"}, []string{"type"})
	msgOut := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "messages_sent_total"}, []string{"type"})
	msgMalformed := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "frames_malformed_total"})
	dedupDrops := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "messages_deduplicated_total"})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "outbound_queue_depth"})
	queueEvicted := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "outbound_queue_evicted_total"})
	reqInfl := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "requests_inflight"})
	reqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "requests_total"}, []string{"type", "status"})
	reqDur := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: "request_duration_seconds", Buckets: cfg.Buckets})
	r.MustRegister(connState, reconnects, msgIn, msgOut, msgMalformed, dedupDrops, queueDepth, queueEvicted, reqInfl, reqCnt, reqDur)

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	return &Metrics{
		registry:     r,
		namespace:    ns,
		connState:    connState,
		reconnects:   reconnects,
		msgIn:        msgIn,
		msgOut:       msgOut,
		msgMalformed: msgMalformed,
		dedupDrops:   dedupDrops,
		queueDepth:   queueDepth,
		queueEvicted: queueEvicted,
		reqInfl:      reqInfl,
		reqCnt:       reqCnt,
		reqDur:       reqDur,
		httpReqCnt:   httpReqCnt,
		httpDur:      httpDur,
		httpInfl:     httpInfl,
	}
}

func (m *Metrics) ConnState(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connState.Set(1)
	} else {
		m.connState.Set(0)
	}
}

func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.msgIn.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageSent(msgType string) {
	if m == nil {
		return
	}
	m.msgOut.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.msgMalformed.Inc()
}

func (m *Metrics) DuplicateDropped() {
	if m == nil {
		return
	}
	m.dedupDrops.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) QueueEvicted() {
	if m == nil {
		return
	}
	m.queueEvicted.Inc()
}

func (m *Metrics) RequestStart() {
	if m == nil {
		return
	}
	m.reqInfl.Inc()
}

func (m *Metrics) RequestDone(msgType, status string, since time.Time) {
	if m == nil {
		return
	}
	m.reqCnt.WithLabelValues(msgType, status).Inc()
	m.reqDur.Observe(time.Since(since).Seconds())
	m.reqInfl.Dec()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
