package rag

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/internal/telemetry"
	"github.com/BaSui01/ragcore/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// 检索通道
const (
	PassVector  = "vector"
	PassKeyword = "keyword"
	PassHybrid  = "hybrid"
)

// QueryEmbedder 把查询文本转换为向量，embedding.Service 实现了它
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
}

// HybridConfig 混合检索配置
type HybridConfig struct {
	VectorWeight   float64  `json:"vector_weight" yaml:"vector_weight"`
	KeywordWeight  float64  `json:"keyword_weight" yaml:"keyword_weight"`
	MinTokenLength int      `json:"min_token_length" yaml:"min_token_length"`
	Stopwords      []string `json:"stopwords" yaml:"stopwords"`
}

// DefaultHybridConfig 默认配置：向量 0.7，关键词 0.3
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		VectorWeight:   0.7,
		KeywordWeight:  0.3,
		MinTokenLength: DefaultMinTokenLength,
		Stopwords:      append([]string(nil), DefaultStopwords...),
	}
}

// HybridResult 融合后的检索结果
type HybridResult struct {
	ID            string         `json:"id"`
	Content       string         `json:"content"`
	Score         float64        `json:"score"`
	VectorScore   float64        `json:"vector_score"`
	KeywordScore  float64        `json:"keyword_score"`
	MatchedPasses []string       `json:"matched_passes"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// HybridRanker 组合向量检索与关键词检索。
//
// 每个通道取 2k 个候选，单通道得分乘以通道权重后按 id 累加，
// 按总分降序、id 升序取前 k 个。
type HybridRanker struct {
	index     VectorIndex
	embedder  QueryEmbedder
	config    HybridConfig
	stopwords map[string]struct{}
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// RankerOption 配置 HybridRanker
type RankerOption func(*HybridRanker)

// WithRankerMetrics 设置指标收集器
func WithRankerMetrics(m *metrics.Collector) RankerOption {
	return func(r *HybridRanker) { r.metrics = m }
}

// NewHybridRanker 创建混合检索器
func NewHybridRanker(index VectorIndex, embedder QueryEmbedder, config HybridConfig, logger *zap.Logger, opts ...RankerOption) (*HybridRanker, error) {
	if index == nil {
		return nil, types.NewValidationError("vector index is required")
	}
	if embedder == nil {
		return nil, types.NewValidationError("query embedder is required")
	}
	if config.VectorWeight < 0 || config.KeywordWeight < 0 {
		return nil, types.NewValidationError("weights must be non-negative, got %v/%v", config.VectorWeight, config.KeywordWeight)
	}
	if config.MinTokenLength <= 0 {
		config.MinTokenLength = DefaultMinTokenLength
	}
	if config.Stopwords == nil {
		config.Stopwords = DefaultStopwords
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &HybridRanker{
		index:     index,
		embedder:  embedder,
		config:    config,
		stopwords: stopwordSet(config.Stopwords),
		logger:    logger.With(zap.String("component", "hybrid_ranker")),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.logger.Info("hybrid ranker initialized",
		zap.Float64("vector_weight", config.VectorWeight),
		zap.Float64("keyword_weight", config.KeywordWeight))

	return r, nil
}

// searchOptions 单次混合检索的参数
type searchOptions struct {
	vectorWeight  float64
	keywordWeight float64
	filter        map[string]any
	useVector     bool
	useKeyword    bool
}

// SearchOption 单次混合检索选项
type SearchOption func(*searchOptions)

// WithWeights 覆盖通道权重
func WithWeights(vector, keyword float64) SearchOption {
	return func(o *searchOptions) {
		o.vectorWeight = vector
		o.keywordWeight = keyword
	}
}

// WithFilter 元数据精确匹配过滤
func WithFilter(filter map[string]any) SearchOption {
	return func(o *searchOptions) { o.filter = filter }
}

// WithPasses 启用或关闭各通道
func WithPasses(useVector, useKeyword bool) SearchOption {
	return func(o *searchOptions) {
		o.useVector = useVector
		o.useKeyword = useKeyword
	}
}

// KeywordSearch 关键词检索，得分为命中关键词比例，0 分不返回
func (r *HybridRanker) KeywordSearch(ctx context.Context, collection, query string, k int, filter map[string]any) ([]SearchResult, error) {
	if err := validateQuery(query, k); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "rag.KeywordSearch", searchAttributes(collection, k))
	defer span.End()

	results, err := r.keywordSearch(ctx, collection, query, k, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.metrics.RecordSearch(PassKeyword, time.Since(start))
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	return results, nil
}

func (r *HybridRanker) keywordSearch(ctx context.Context, collection, query string, k int, filter map[string]any) ([]SearchResult, error) {
	keywords := ExtractKeywords(query, r.config.MinTokenLength, r.stopwords)
	if len(keywords) == 0 {
		r.logger.Debug("no keywords in query", zap.String("query", truncateForLog(query)))
		return []SearchResult{}, nil
	}

	var results []SearchResult
	err := r.index.Scan(ctx, collection, filter, func(e Entry) bool {
		if score := keywordScore(keywords, e.Content); score > 0 {
			results = append(results, SearchResult{
				ID:       e.ID,
				Content:  e.Content,
				Score:    score,
				Metadata: e.Metadata,
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	sortResults(results)
	if k < len(results) {
		results = results[:k]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

// VectorSearch 向量化查询后做余弦检索
func (r *HybridRanker) VectorSearch(ctx context.Context, collection, query string, k int, filter map[string]any) ([]SearchResult, error) {
	if err := validateQuery(query, k); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "rag.VectorSearch", searchAttributes(collection, k))
	defer span.End()

	results, err := r.vectorSearch(ctx, collection, query, k, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	r.metrics.RecordSearch(PassVector, time.Since(start))
	span.SetAttributes(attribute.Int("rag.results", len(results)))
	return results, nil
}

func (r *HybridRanker) vectorSearch(ctx context.Context, collection, query string, k int, filter map[string]any) ([]SearchResult, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.index.Search(ctx, collection, vec, k, filter)
}

// HybridSearch 混合检索。
// 得分 = 向量得分×向量权重 + 关键词得分×关键词权重，只出现在一个通道的结果只计该项。
func (r *HybridRanker) HybridSearch(ctx context.Context, collection, query string, k int, opts ...SearchOption) ([]HybridResult, error) {
	if err := validateQuery(query, k); err != nil {
		return nil, err
	}

	o := searchOptions{
		vectorWeight:  r.config.VectorWeight,
		keywordWeight: r.config.KeywordWeight,
		useVector:     true,
		useKeyword:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.vectorWeight < 0 || o.keywordWeight < 0 {
		return nil, types.NewValidationError("weights must be non-negative, got %v/%v", o.vectorWeight, o.keywordWeight)
	}
	if !o.useVector && !o.useKeyword {
		return nil, types.NewValidationError("at least one search pass must be enabled")
	}

	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "rag.HybridSearch", searchAttributes(collection, k),
		trace.WithAttributes(
			attribute.Bool("rag.use_vector", o.useVector),
			attribute.Bool("rag.use_keyword", o.useKeyword),
		))
	defer span.End()

	candidates := 2 * k
	merged := make(map[string]*HybridResult)
	accumulate := func(pass string, results []SearchResult, weight float64) {
		for _, res := range results {
			h, ok := merged[res.ID]
			if !ok {
				h = &HybridResult{ID: res.ID, Content: res.Content, Metadata: maps.Clone(res.Metadata)}
				merged[res.ID] = h
			}
			if pass == PassVector {
				h.VectorScore = res.Score
			} else {
				h.KeywordScore = res.Score
			}
			h.Score += res.Score * weight
			h.MatchedPasses = append(h.MatchedPasses, pass)
		}
	}

	if o.useVector {
		passStart := time.Now()
		results, err := r.vectorSearch(ctx, collection, query, candidates, o.filter)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		r.metrics.RecordSearch(PassVector, time.Since(passStart))
		accumulate(PassVector, results, o.vectorWeight)
	}

	if o.useKeyword {
		passStart := time.Now()
		results, err := r.keywordSearch(ctx, collection, query, candidates, o.filter)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		r.metrics.RecordSearch(PassKeyword, time.Since(passStart))
		accumulate(PassKeyword, results, o.keywordWeight)
	}

	fused := make([]HybridResult, 0, len(merged))
	for _, h := range merged {
		fused = append(fused, *h)
	}
	slices.SortFunc(fused, func(a, b HybridResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
	if k < len(fused) {
		fused = fused[:k]
	}

	r.metrics.RecordSearch(PassHybrid, time.Since(start))
	span.SetAttributes(attribute.Int("rag.results", len(fused)))
	r.logger.Debug("hybrid search completed",
		zap.String("collection", collection),
		zap.Int("candidates", len(merged)),
		zap.Int("results", len(fused)),
		zap.Duration("duration", time.Since(start)))

	return fused, nil
}

// Config 返回检索配置副本
func (r *HybridRanker) Config() HybridConfig {
	cfg := r.config
	cfg.Stopwords = slices.Clone(r.config.Stopwords)
	return cfg
}

func validateQuery(query string, k int) error {
	if strings.TrimSpace(query) == "" {
		return types.NewValidationError("query is empty")
	}
	if k <= 0 {
		return types.NewValidationError("k must be positive, got %d", k)
	}
	return nil
}

func searchAttributes(collection string, k int) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("rag.collection", collection),
		attribute.Int("rag.k", k),
	)
}

// truncateForLog 截断日志中的查询文本
func truncateForLog(s string) string {
	const limit = 50
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
