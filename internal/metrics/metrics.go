// Package metrics Prometheus 指标导出
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 包含所有服务指标。nil *Metrics 上的记录方法都是空操作。
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 鉴权指标
	AuthorizationDenied *prometheus.CounterVec

	// 操作令牌指标
	ActionTokens *prometheus.CounterVec

	// 关系图指标
	GraphMutations *prometheus.CounterVec

	// 消息提醒指标
	Notifications *prometheus.CounterVec
}

// NewMetrics 创建指标实例并注册到 reg。reg 为 nil 时使用独立的 registry。
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		registry := prometheus.NewRegistry()
		reg, gatherer = registry, registry
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: gatherer,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		AuthorizationDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_denied_total",
				Help:      "Requests rejected by the permission check",
			},
			[]string{"permission"},
		),
		ActionTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_tokens_total",
				Help:      "Action token verifications by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		GraphMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_mutations_total",
				Help:      "Follow and collect mutations by kind and whether state changed",
			},
			[]string{"kind", "changed"},
		),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification dispatch decisions by category",
			},
			[]string{"category", "result"},
		),
	}
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware 记录 HTTP 请求数与耗时，路径使用路由模板避免标签爆炸
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveDenied 记录一次鉴权拒绝
func (m *Metrics) ObserveDenied(permission string) {
	if m == nil {
		return
	}
	m.AuthorizationDenied.WithLabelValues(permission).Inc()
}

// ObserveActionToken 记录一次令牌校验结果
func (m *Metrics) ObserveActionToken(operation, outcome string) {
	if m == nil {
		return
	}
	m.ActionTokens.WithLabelValues(operation, outcome).Inc()
}

// ObserveGraphMutation 记录关注/收藏变更
func (m *Metrics) ObserveGraphMutation(kind string, changed bool) {
	if m == nil {
		return
	}
	m.GraphMutations.WithLabelValues(kind, strconv.FormatBool(changed)).Inc()
}

// ObserveNotification 记录一次提醒派发决定，result 为 sent 或 skipped
func (m *Metrics) ObserveNotification(category, result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(category, result).Inc()
}
