// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 请求指标
	requestsSent      *prometheus.CounterVec
	requestsCompleted *prometheus.CounterVec
	requestsRejected  *prometheus.CounterVec

	// 数据块指标
	chunksFetched  *prometheus.CounterVec
	bytesFetched   *prometheus.CounterVec
	chunkSizeBytes *prometheus.HistogramVec

	// 通道指标
	lanesInUse  *prometheus.GaugeVec
	sentBacklog *prometheus.GaugeVec

	// 请求池指标
	poolFreeSlots prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时使用默认注册表。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 请求指标
	c.requestsSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Total number of accepted fetch requests",
		},
		[]string{"channel"},
	)

	c.requestsCompleted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Total number of finished fetch requests",
		},
		[]string{"channel", "outcome"}, // outcome: success, failed, cancelled
	)

	c.requestsRejected = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Total number of rejected send calls",
		},
		[]string{"reason"}, // reason: validation, pool_exhausted, queue_full
	)

	// 数据块指标
	c.chunksFetched = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_fetched_total",
			Help:      "Total number of data chunks delivered to callbacks",
		},
		[]string{"channel"},
	)

	c.bytesFetched = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_fetched_total",
			Help:      "Total number of payload bytes delivered to callbacks",
		},
		[]string{"channel"},
	)

	c.chunkSizeBytes = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_size_bytes",
			Help:      "Distribution of delivered chunk sizes in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"channel"},
	)

	// 通道指标
	c.lanesInUse = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lanes_in_use",
			Help:      "Number of occupied lanes per channel",
		},
		[]string{"channel"},
	)

	c.sentBacklog = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sent_backlog",
			Help:      "Number of requests waiting in the sent queue per channel",
		},
		[]string{"channel"},
	)

	// 请求池指标
	c.poolFreeSlots = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_free_slots",
			Help:      "Number of free request pool slots",
		},
	)

	logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 指标记录
// =============================================================================

// RecordSend 记录一次被接受的请求
func (c *Collector) RecordSend(channel string) {
	c.requestsSent.WithLabelValues(channel).Inc()
}

// RecordReject 记录一次被拒绝的请求
func (c *Collector) RecordReject(reason string) {
	c.requestsRejected.WithLabelValues(reason).Inc()
}

// RecordCompletion 记录一次终态回调
func (c *Collector) RecordCompletion(channel, outcome string) {
	c.requestsCompleted.WithLabelValues(channel, outcome).Inc()
}

// RecordChunk 记录一个已交付的数据块
func (c *Collector) RecordChunk(channel string, size int64) {
	c.chunksFetched.WithLabelValues(channel).Inc()
	c.bytesFetched.WithLabelValues(channel).Add(float64(size))
	c.chunkSizeBytes.WithLabelValues(channel).Observe(float64(size))
}

// RecordChannelState 记录通道的泳道占用与积压
func (c *Collector) RecordChannelState(channel string, lanesInUse, backlog int) {
	c.lanesInUse.WithLabelValues(channel).Set(float64(lanesInUse))
	c.sentBacklog.WithLabelValues(channel).Set(float64(backlog))
}

// RecordPoolFreeSlots 记录请求池空闲槽位数
func (c *Collector) RecordPoolFreeSlots(n int) {
	c.poolFreeSlots.Set(float64(n))
}
