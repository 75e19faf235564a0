package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/telemetry"
	"github.com/BaSui01/ragcore/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// fallbackProviderName 未配置外部服务时的 provider 名称
const fallbackProviderName = "fallback"

// ServiceConfig 配置 embedding 服务.
type ServiceConfig struct {
	// Model 参与缓存键，并随请求发送给 provider
	Model string `json:"model" yaml:"model"`
	// Dimensions 输出向量维度，provider 返回其他维度时视为失败
	Dimensions int `json:"dimensions" yaml:"dimensions"`
	// BatchSize 单次 provider 请求的最大输入条数
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// MaxInputChars 单条输入发送前截断到的字符数（rune）
	MaxInputChars int `json:"max_input_chars" yaml:"max_input_chars"`
	// Concurrency 同时进行的批次数
	Concurrency int `json:"concurrency" yaml:"concurrency"`
	// RequestsPerSecond provider 请求速率上限，0 表示不限速
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// DefaultServiceConfig 返回默认服务配置.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Model:         "text-embedding-ada-002",
		Dimensions:    1536,
		BatchSize:     16,
		MaxInputChars: 8000,
		Concurrency:   4,
	}
}

// ServiceOption 配置 Service 的可选依赖.
type ServiceOption func(*Service)

// WithProvider 设置外部 embedding 提供者，未设置时只使用确定性回退向量.
func WithProvider(p Provider) ServiceOption {
	return func(s *Service) { s.provider = p }
}

// WithCache 替换默认的进程内缓存.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) { s.cache = c }
}

// WithMetrics 设置指标收集器.
func WithMetrics(m *metrics.Collector) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// Service 将文本转换为定长向量.
//
// 命中缓存的文本直接返回；其余文本截断后按批发送给 provider，
// 任意批次失败（HTTP 错误、解码失败、数量或维度不符、限速等待失败、
// context 取消）都只记录一次日志并用 FallbackVector 替换，不向调用方返回错误。
// 回退向量不写入缓存。
type Service struct {
	cfg      ServiceConfig
	provider Provider
	cache    Cache
	limiter  *rate.Limiter
	flight   singleflight.Group
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewService 创建 embedding 服务，cfg 中的零值使用默认值.
func NewService(cfg ServiceConfig, logger *zap.Logger, opts ...ServiceOption) *Service {
	def := DefaultServiceConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = def.Dimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = def.MaxInputChars
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "embedding")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewMemoryCache()
	}
	if s.provider != nil && s.provider.MaxBatchSize() > 0 && s.cfg.BatchSize > s.provider.MaxBatchSize() {
		s.cfg.BatchSize = s.provider.MaxBatchSize()
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Concurrency)
	}

	s.logger.Info("embedding service initialized",
		zap.String("provider", s.ProviderName()),
		zap.String("model", s.cfg.Model),
		zap.Int("dimensions", s.cfg.Dimensions),
		zap.Int("batch_size", s.cfg.BatchSize),
		zap.String("cache", s.cache.Name()),
	)

	return s
}

// EmbedQuery 向量化单条查询，并发的相同查询只会计算一次.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("query text is empty")
	}

	v, err, _ := s.flight.Do(s.cacheKey(text), func() (any, error) {
		vecs, err := s.EmbedDocuments(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		return vecs[0], nil
	})
	if err != nil {
		return nil, err
	}
	return cloneVector(v.([]float64)), nil
}

// EmbedDocuments 批量向量化，结果与输入顺序和数量一致.
// 只有空文本会返回错误（VALIDATION_ERROR）。
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, types.NewValidationError("text at index %d is empty", i)
		}
	}
	results := make([][]float64, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "embedding.EmbedDocuments",
		trace.WithAttributes(attribute.Int("embedding.texts", len(texts))))
	defer span.End()

	// 去重，相同文本只查一次缓存、只发送一次
	positions := make(map[string][]int, len(texts))
	var unique []string
	for i, t := range texts {
		if _, seen := positions[t]; !seen {
			unique = append(unique, t)
		}
		positions[t] = append(positions[t], i)
	}

	cached, hit := s.lookup(ctx, unique)
	var pending []string
	for i, t := range unique {
		if !hit[i] {
			s.metrics.RecordCacheMiss(s.cache.Name())
			pending = append(pending, t)
			continue
		}
		s.metrics.RecordCacheHit(s.cache.Name())
		fill(results, positions[t], cached[i])
	}
	s.metrics.RecordEmbeddedTexts("cache", len(unique)-len(pending))
	span.SetAttributes(attribute.Int("embedding.cache_hits", len(unique)-len(pending)))

	if len(pending) > 0 {
		vecs := s.resolve(ctx, pending)
		for i, t := range pending {
			fill(results, positions[t], vecs[i])
		}
	}

	s.logger.Debug("embedded documents",
		zap.Int("texts", len(texts)),
		zap.Int("unique", len(unique)),
		zap.Int("computed", len(pending)),
	)

	return results, nil
}

// lookup 查询缓存，缓存支持批量查询时只做一次往返
func (s *Service) lookup(ctx context.Context, texts []string) ([][]float64, []bool) {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = s.cacheKey(t)
	}
	if bc, ok := s.cache.(batchCache); ok {
		return bc.GetMany(ctx, keys)
	}

	vecs := make([][]float64, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		vecs[i], found[i] = s.cache.Get(ctx, k)
	}
	return vecs, found
}

// resolve 为未命中缓存的文本生成向量，返回值与 pending 一一对应.
func (s *Service) resolve(ctx context.Context, pending []string) [][]float64 {
	vecs := make([][]float64, len(pending))

	if s.provider == nil {
		for i, t := range pending {
			vecs[i] = FallbackVector(t, s.cfg.Dimensions)
		}
		s.metrics.RecordEmbeddedTexts("fallback", len(pending))
		return vecs
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for start := 0; start < len(pending); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(pending))
		batch, out := pending[start:end], vecs[start:end]
		g.Go(func() error {
			s.embedBatch(ctx, batch, out)
			return nil
		})
	}
	_ = g.Wait()

	return vecs
}

// embedBatch 调用 provider 并写入 out，失败时整批使用回退向量.
func (s *Service) embedBatch(ctx context.Context, batch []string, out [][]float64) {
	name := s.provider.Name()
	ctx, span := telemetry.Tracer().Start(ctx, "embedding.batch",
		trace.WithAttributes(
			attribute.String("embedding.provider", name),
			attribute.Int("embedding.batch_size", len(batch)),
		))
	defer span.End()

	start := time.Now()
	vecs, err := s.callProvider(ctx, batch)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider failed, using fallback")
		s.metrics.RecordEmbeddingRequest(name, "fallback", duration)
		s.metrics.RecordEmbeddedTexts("fallback", len(batch))
		s.logger.Error("embedding provider failed, using fallback vectors",
			zap.String("provider", name),
			zap.Int("batch_size", len(batch)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		for i, t := range batch {
			out[i] = FallbackVector(t, s.cfg.Dimensions)
		}
		return
	}

	s.metrics.RecordEmbeddingRequest(name, "ok", duration)
	s.metrics.RecordEmbeddedTexts("provider", len(batch))
	for i, t := range batch {
		out[i] = vecs[i]
		s.cache.Set(ctx, s.cacheKey(t), vecs[i])
	}
}

func (s *Service) callProvider(ctx context.Context, batch []string) ([][]float64, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, types.NewError(types.ErrRateLimited, "rate limiter wait failed").WithCause(err)
		}
	}

	inputs := make([]string, len(batch))
	for i, t := range batch {
		inputs[i] = truncateRunes(t, s.cfg.MaxInputChars)
	}

	resp, err := s.provider.Embed(ctx, &EmbeddingRequest{
		Input:      inputs,
		Model:      s.cfg.Model,
		Dimensions: s.cfg.Dimensions,
		InputType:  InputTypeDocument,
	})
	if err != nil {
		return nil, err
	}

	vecs, err := orderEmbeddings(resp, len(batch), s.provider.Name())
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		if len(v) != s.cfg.Dimensions {
			return nil, types.NewError(types.ErrProvider,
				fmt.Sprintf("embedding %d has dimension %d, want %d", i, len(v), s.cfg.Dimensions)).
				WithProvider(s.provider.Name())
		}
	}
	return vecs, nil
}

// CacheLen 返回进程内缓存条目数.
func (s *Service) CacheLen() int { return s.cache.Len() }

// Forget 删除指定文本的缓存向量（含共享层），下次向量化会重新调用 provider.
func (s *Service) Forget(ctx context.Context, texts ...string) {
	if len(texts) == 0 {
		return
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = s.cacheKey(t)
	}
	s.cache.Delete(ctx, keys...)
	s.logger.Debug("embedding cache entries removed", zap.Int("texts", len(texts)))
}

// ClearCache 清空进程内缓存.
func (s *Service) ClearCache(ctx context.Context) { s.cache.Clear(ctx) }

// Dimensions 返回输出向量维度.
func (s *Service) Dimensions() int { return s.cfg.Dimensions }

// Model 返回模型名称.
func (s *Service) Model() string { return s.cfg.Model }

// ProviderName 返回 provider 名称，未配置时为 "fallback".
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return fallbackProviderName
	}
	return s.provider.Name()
}

func (s *Service) cacheKey(text string) string {
	return CacheKey(s.cfg.Model, text)
}

// fill 把 vec 的独立副本写入所有位置
func fill(results [][]float64, idx []int, vec []float64) {
	for _, i := range idx {
		results[i] = cloneVector(vec)
	}
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
