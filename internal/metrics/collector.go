// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/staticd/internal/pool"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现 httpd.Metrics
type Collector struct {
	// 连接指标
	connAccepted prometheus.Counter
	connRejected prometheus.Counter
	connActive   prometheus.Gauge

	// 请求指标
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec

	// 关闭指标
	shutdownDrained  *prometheus.CounterVec
	shutdownDuration prometheus.Histogram

	namespace string
	logger    *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		namespace: namespace,
		logger:    logger.With(zap.String("component", "metrics")),
	}

	// 连接指标
	c.connAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted TCP connections",
		},
	)

	c.connRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections accepted after shutdown began and closed immediately",
		},
	)

	c.connActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently owned by a worker",
		},
	)

	// 请求指标
	c.requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of requests answered",
		},
		[]string{"status", "class"},
	)

	c.requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from request head parsed to response written",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"class"},
	)

	c.responseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_size_bytes",
			Help:      "Bytes written per response, head included",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"class"},
	)

	// 关闭指标
	c.shutdownDrained = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shutdown_drained_total",
			Help:      "Connections and workers drained during shutdown",
		},
		[]string{"kind"}, // kind: connection, worker
	)

	c.shutdownDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shutdown_duration_seconds",
			Help:      "Time taken by the shutdown coordinator",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🔌 连接指标记录
// =============================================================================

// RecordConnAccepted 记录新连接
func (c *Collector) RecordConnAccepted() {
	c.connAccepted.Inc()
	c.connActive.Inc()
}

// RecordConnRejected 记录关闭期间被拒绝的连接
func (c *Collector) RecordConnRejected() {
	c.connRejected.Inc()
	c.connActive.Dec()
}

// RecordConnClosed 记录连接关闭
func (c *Collector) RecordConnClosed() {
	c.connActive.Dec()
}

// =============================================================================
// 🎯 请求指标记录
// =============================================================================

// RecordRequest 记录一次请求/响应
func (c *Collector) RecordRequest(status int, duration time.Duration, responseSize int) {
	class := statusClass(status)
	c.requestsTotal.WithLabelValues(statusLabel(status), class).Inc()
	c.requestDuration.WithLabelValues(class).Observe(duration.Seconds())
	c.responseSize.WithLabelValues(class).Observe(float64(responseSize))
}

// =============================================================================
// 🛑 关闭指标记录
// =============================================================================

// RecordShutdown 记录关闭协调器的结果
func (c *Collector) RecordShutdown(conns, workers int, duration time.Duration) {
	c.shutdownDrained.WithLabelValues("connection").Add(float64(conns))
	c.shutdownDrained.WithLabelValues("worker").Add(float64(workers))
	c.shutdownDuration.Observe(duration.Seconds())

	c.logger.Info("shutdown recorded",
		zap.Int("connections", conns),
		zap.Int("workers", workers),
		zap.Duration("duration", duration),
	)
}

// =============================================================================
// ♻️ 缓冲池指标
// =============================================================================

// ObserveBufferPool 注册缓冲池统计，抓取时回调 stats 读取
func (c *Collector) ObserveBufferPool(name string, stats func() pool.Stats) {
	labels := prometheus.Labels{"pool": name}

	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   c.namespace,
			Name:        "buffer_pool_gets_total",
			Help:        "Buffers taken from the pool",
			ConstLabels: labels,
		},
		func() float64 { return float64(stats().Gets) },
	)

	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   c.namespace,
			Name:        "buffer_pool_allocs_total",
			Help:        "Buffers allocated because the pool was empty",
			ConstLabels: labels,
		},
		func() float64 { return float64(stats().News) },
	)

	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace:   c.namespace,
			Name:        "buffer_pool_drops_total",
			Help:        "Buffers discarded on return for exceeding the size cap",
			ConstLabels: labels,
		},
		func() float64 { return float64(stats().Drops) },
	)

	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   c.namespace,
			Name:        "buffer_pool_hit_ratio",
			Help:        "Fraction of gets served without allocating",
			ConstLabels: labels,
		},
		func() float64 { return stats().HitRate() },
	)
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusClass 将 HTTP 状态码转换为类别
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}

func statusLabel(code int) string {
	switch code {
	case 200:
		return "200"
	case 404:
		return "404"
	case 501:
		return "501"
	default:
		return "other"
	}
}
