package rag

import (
	"context"
	"maps"
	"time"

	"github.com/BaSui01/ragcore/types"
	"go.uber.org/zap"
)

// Embedder 文本向量化接口，embedding.Service 实现了它
type Embedder interface {
	QueryEmbedder
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// Pipeline 组合分块、向量化、索引与混合检索，是对外的库接口。
// 各组件由调用方创建并注入，Pipeline 不持有全局状态。
type Pipeline struct {
	splitter TextSplitter
	embedder Embedder
	index    VectorIndex
	ranker   *HybridRanker
	logger   *zap.Logger
}

// NewPipeline 创建 Pipeline
func NewPipeline(splitter TextSplitter, embedder Embedder, index VectorIndex, ranker *HybridRanker, logger *zap.Logger) (*Pipeline, error) {
	switch {
	case splitter == nil:
		return nil, types.NewValidationError("splitter is required")
	case embedder == nil:
		return nil, types.NewValidationError("embedder is required")
	case index == nil:
		return nil, types.NewValidationError("vector index is required")
	case ranker == nil:
		return nil, types.NewValidationError("hybrid ranker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		splitter: splitter,
		embedder: embedder,
		index:    index,
		ranker:   ranker,
		logger:   logger.With(zap.String("component", "pipeline")),
	}, nil
}

// SplitText 切分文本
func (p *Pipeline) SplitText(text string) ([]Chunk, error) {
	return p.splitter.SplitText(text)
}

// Embed 向量化单条文本
func (p *Pipeline) Embed(ctx context.Context, text string) ([]float64, error) {
	return p.embedder.EmbedQuery(ctx, text)
}

// EmbedBatch 批量向量化，结果顺序与输入一致
func (p *Pipeline) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	return p.embedder.EmbedDocuments(ctx, texts)
}

// IndexAdd 写入或替换一条记录
func (p *Pipeline) IndexAdd(ctx context.Context, collection, id, content string, vector []float64, metadata map[string]any) error {
	return p.index.Add(ctx, collection, id, content, vector, metadata)
}

// VectorSearch 用已有向量检索
func (p *Pipeline) VectorSearch(ctx context.Context, collection string, query []float64, k int, filter map[string]any) ([]SearchResult, error) {
	return p.index.Search(ctx, collection, query, k, filter)
}

// HybridSearch 使用默认权重的混合检索
func (p *Pipeline) HybridSearch(ctx context.Context, collection, query string, k int, filter map[string]any) ([]HybridResult, error) {
	return p.ranker.HybridSearch(ctx, collection, query, k, WithFilter(filter))
}

// DeleteEntries 删除记录，返回删除条数
func (p *Pipeline) DeleteEntries(ctx context.Context, ids []string) int {
	return p.index.Delete(ctx, ids)
}

// ClearCollection 清空集合
func (p *Pipeline) ClearCollection(ctx context.Context, collection string) int {
	return p.index.ClearCollection(ctx, collection)
}

// Stats 返回索引统计
func (p *Pipeline) Stats() IndexStats {
	return p.index.Stats()
}

// Ranker 返回混合检索器，用于按次指定权重或通道
func (p *Pipeline) Ranker() *HybridRanker {
	return p.ranker
}

// IngestText 切分、向量化并写入索引，返回按顺序排列的块 id。
// 每块的元数据为 metadata 加上 document_id、position、char_count、word_count 等字段。
func (p *Pipeline) IngestText(ctx context.Context, collection, documentID, text string, metadata map[string]any) ([]string, error) {
	start := time.Now()

	chunks, err := p.splitter.ChunksWithMetadata(text, documentID)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, contents)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		md := maps.Clone(metadata)
		if md == nil {
			md = make(map[string]any, 6)
		}
		maps.Copy(md, c.Metadata())

		entries[i] = Entry{ID: c.ID, Content: c.Content, Vector: vectors[i], Metadata: md}
		ids[i] = c.ID
	}

	if _, err := p.index.AddBatch(ctx, collection, entries); err != nil {
		return nil, err
	}

	p.logger.Info("document ingested",
		zap.String("collection", collection),
		zap.String("document_id", chunks[0].DocumentID),
		zap.Int("chunks", len(chunks)),
		zap.Duration("duration", time.Since(start)))

	return ids, nil
}
