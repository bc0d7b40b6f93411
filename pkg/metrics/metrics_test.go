package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimiclab/simlink/internal/common/config"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnState(true)
		m.ReconnectScheduled()
		m.MessageReceived("ping")
		m.MessageSent("ping")
		m.MalformedFrame()
		m.DuplicateDropped()
		m.QueueDepth(3)
		m.QueueEvicted()
		m.RequestStart()
		m.RequestDone("ping", "ok", time.Now())
	})
}

func TestNilMetricsHTTPSurfaces(t *testing.T) {
	var m *Metrics

	mw := m.Middleware()
	require.NotNil(t, mw)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw)
	r.GET("/ping", func(c *gin.Context) { c.Status(200) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/ping", nil))
	assert.Equal(t, 200, rec.Code)

	h := m.Handler()
	require.NotNil(t, h)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerExposesSessionMetrics(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "simlinktest"})
	m.ConnState(true)
	m.MessageReceived("debug_model_info")
	m.QueueEvicted()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "simlinktest_session_connected 1")
	assert.Contains(t, body, `simlinktest_messages_received_total{type="debug_model_info"} 1`)
	assert.Contains(t, body, "simlinktest_outbound_queue_evicted_total 1")
}
