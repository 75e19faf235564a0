package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/BaSui01/ragcore/config"
	"github.com/BaSui01/ragcore/internal/cache"
	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/telemetry"
	"github.com/BaSui01/ragcore/llm/embedding"
	"github.com/BaSui01/ragcore/rag"
)

// app 持有一次命令执行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	metrics   *metrics.Collector
	telemetry *telemetry.Providers
	cache     *cache.Manager
	splitter  rag.TextSplitter
	embedder  *embedding.Service
	pipeline  *rag.Pipeline
}

// newApp 按配置组装分块器、embedding 服务、索引与检索器
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	if cfg.Metrics.Enabled {
		a.registry.MustRegister(collectors.NewGoCollector())
		a.metrics = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	a.telemetry = providers

	splitter, err := newSplitter(cfg.Chunking, logger, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	a.splitter = splitter

	provider, err := embedding.NewProviderFromConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	opts := []embedding.ServiceOption{embedding.WithMetrics(a.metrics)}
	if provider != nil {
		opts = append(opts, embedding.WithProvider(provider))
	}
	if cfg.Embedding.Cache == "redis" {
		if c := a.openRedisCache(); c != nil {
			opts = append(opts, embedding.WithCache(c))
		}
	}
	a.embedder = embedding.NewService(embedding.ServiceConfigFrom(cfg.Embedding), logger, opts...)

	index := rag.NewMemoryIndex(logger, rag.WithIndexMetrics(a.metrics))
	ranker, err := rag.NewHybridRanker(index, a.embedder, rag.HybridConfig{
		VectorWeight:   cfg.Search.VectorWeight,
		KeywordWeight:  cfg.Search.KeywordWeight,
		MinTokenLength: cfg.Search.MinTokenLength,
	}, logger, rag.WithRankerMetrics(a.metrics))
	if err != nil {
		return nil, fmt.Errorf("create hybrid ranker: %w", err)
	}

	a.pipeline, err = rag.NewPipeline(a.splitter, a.embedder, index, ranker, logger)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return a, nil
}

func newSplitter(cfg config.ChunkingConfig, logger *zap.Logger, m *metrics.Collector) (rag.TextSplitter, error) {
	sc := rag.SplitterConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Separators:   cfg.Separators,
	}
	opts := []rag.SplitterOption{rag.WithSplitterMetrics(m)}
	if cfg.TokenizerModel != "" {
		opts = append(opts, rag.WithTokenizer(rag.NewTokenizerForModel(cfg.TokenizerModel, logger)))
	}

	if cfg.Multilingual {
		return rag.NewMultilingualSplitter(sc, logger, opts...)
	}
	return rag.NewSplitter(sc, logger, opts...)
}

// openRedisCache 连接 Redis，失败时退回进程内缓存
func (a *app) openRedisCache() embedding.Cache {
	rc := a.cfg.Redis
	cc := cache.DefaultConfig()
	cc.Addr = rc.Addr
	cc.Password = rc.Password
	cc.DB = rc.DB
	cc.DefaultTTL = a.cfg.Embedding.CacheTTL
	if rc.PoolSize > 0 {
		cc.PoolSize = rc.PoolSize
	}
	if rc.MinIdleConns > 0 {
		cc.MinIdleConns = rc.MinIdleConns
	}

	manager, err := cache.NewManager(cc, a.logger)
	if err != nil {
		a.logger.Warn("redis not available, using in-memory embedding cache", zap.Error(err))
		return nil
	}
	a.cache = manager
	return embedding.NewRedisCache(manager, a.cfg.Embedding.CacheTTL, a.logger)
}

// writeMetrics 以 Prometheus 文本格式输出已采集的指标
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}

// close 释放 Redis 连接并刷新遥测数据
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis cache", zap.Error(err))
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("failed to shutdown telemetry", zap.Error(err))
	}
}
