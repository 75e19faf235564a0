// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 分块指标
	chunksTotal *prometheus.CounterVec

	// Embedding 指标
	embeddingRequestsTotal   *prometheus.CounterVec
	embeddingRequestDuration *prometheus.HistogramVec
	embeddingTextsTotal      *prometheus.CounterVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 检索指标
	searchDuration *prometheus.HistogramVec

	// 索引指标
	indexEntries *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.chunksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_produced_total",
			Help:      "Total number of chunks produced by splitters",
		},
		[]string{"splitter"},
	)

	c.embeddingRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding provider requests",
		},
		[]string{"provider", "status"},
	)

	c.embeddingRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	c.embeddingTextsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_texts_total",
			Help:      "Total number of embedded texts by vector source",
		},
		[]string{"source"}, // provider, cache, fallback
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	c.searchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds by pass",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"pass"},
	)

	c.indexEntries = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Number of entries per collection",
		},
		[]string{"collection"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// ✂️ 分块指标记录
// =============================================================================

// RecordChunks 记录分块产出数量
func (c *Collector) RecordChunks(splitter string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.chunksTotal.WithLabelValues(splitter).Add(float64(n))
}

// =============================================================================
// 🧬 Embedding 指标记录
// =============================================================================

// RecordEmbeddingRequest 记录一次 provider 请求
func (c *Collector) RecordEmbeddingRequest(provider, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.embeddingRequestsTotal.WithLabelValues(provider, status).Inc()
	c.embeddingRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordEmbeddedTexts 按来源记录向量化文本数量
func (c *Collector) RecordEmbeddedTexts(source string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.embeddingTextsTotal.WithLabelValues(source).Add(float64(n))
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🔍 检索与索引指标记录
// =============================================================================

// RecordSearch 记录一次检索耗时
func (c *Collector) RecordSearch(pass string, duration time.Duration) {
	if c == nil {
		return
	}
	c.searchDuration.WithLabelValues(pass).Observe(duration.Seconds())
}

// SetIndexEntries 设置集合条目数
func (c *Collector) SetIndexEntries(collection string, n int) {
	if c == nil {
		return
	}
	c.indexEntries.WithLabelValues(collection).Set(float64(n))
}
