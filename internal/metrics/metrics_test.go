package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDenied("FOLLOW")
		m.ObserveActionToken("confirm", "success")
		m.ObserveGraphMutation("follow", true)
		m.ObserveNotification("follow", "sent")
	})
}

func TestCountersAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("snapgraph", reg)

	m.ObserveDenied("UPLOAD")
	m.ObserveGraphMutation("collect", false)
	m.ObserveGraphMutation("collect", false)

	body := scrape(t, m)
	assert.Contains(t, body, `snapgraph_authorization_denied_total{permission="UPLOAD"} 1`)
	assert.Contains(t, body, `snapgraph_graph_mutations_total{changed="false",kind="collect"} 2`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics("snapgraph", nil)

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/api/users/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/42", nil))

	body := scrape(t, m)
	assert.True(t, strings.Contains(body, `path="/api/users/:id"`))
	assert.False(t, strings.Contains(body, `path="/api/users/42"`))
}
