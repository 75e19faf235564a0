package rag

import (
	"context"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/types"
	"go.uber.org/zap"
)

// Entry 索引中的一条记录
type Entry struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Vector    []float64      `json:"vector"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SearchResult 相似度检索结果
type SearchResult struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// IndexStats 索引统计
type IndexStats struct {
	TotalEntries int            `json:"total_entries"`
	Collections  map[string]int `json:"collections"`
	Dimensions   map[string]int `json:"dimensions"`
}

// VectorIndex 按集合划分的向量索引
type VectorIndex interface {
	// Add 写入或替换一条记录
	Add(ctx context.Context, collection, id, content string, vector []float64, metadata map[string]any) error

	// AddBatch 批量写入，返回写入条数
	AddBatch(ctx context.Context, collection string, entries []Entry) (int, error)

	// Search 余弦相似度检索，filter 中的键值必须与元数据完全相等
	Search(ctx context.Context, collection string, query []float64, k int, filter map[string]any) ([]SearchResult, error)

	// Get 按 id 读取
	Get(ctx context.Context, collection, id string) (Entry, error)

	// Scan 只读遍历集合中满足 filter 的记录，fn 返回 false 时停止
	Scan(ctx context.Context, collection string, filter map[string]any, fn func(Entry) bool) error

	// Delete 从所有集合中删除 id，返回删除条数
	Delete(ctx context.Context, ids []string) int

	// ClearCollection 删除整个集合，返回删除条数
	ClearCollection(ctx context.Context, collection string) int

	// Stats 返回统计信息
	Stats() IndexStats
}

// ====== 内存向量索引 ======

type collection struct {
	dimension int
	entries   map[string]*Entry
}

// MemoryIndex 进程内向量索引，读写由 RWMutex 保护。
// 每个集合的向量维度由第一条写入确定，集合被清空后重置。
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*collection
	metrics     *metrics.Collector
	logger      *zap.Logger
}

// IndexOption 配置 MemoryIndex
type IndexOption func(*MemoryIndex)

// WithIndexMetrics 设置指标收集器，用于导出每个集合的记录数
func WithIndexMetrics(m *metrics.Collector) IndexOption {
	return func(idx *MemoryIndex) { idx.metrics = m }
}

// NewMemoryIndex 创建内存索引
func NewMemoryIndex(logger *zap.Logger, opts ...IndexOption) *MemoryIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &MemoryIndex{
		collections: make(map[string]*collection),
		logger:      logger.With(zap.String("component", "memory_index")),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add 写入或替换一条记录
func (idx *MemoryIndex) Add(ctx context.Context, collectionName, id, content string, vector []float64, metadata map[string]any) error {
	_, err := idx.AddBatch(ctx, collectionName, []Entry{{
		ID:       id,
		Content:  content,
		Vector:   vector,
		Metadata: metadata,
	}})
	return err
}

// AddBatch 批量写入。先校验全部记录，任一非法时整批不写入。
func (idx *MemoryIndex) AddBatch(ctx context.Context, collectionName string, entries []Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if strings.TrimSpace(collectionName) == "" {
		return 0, types.NewValidationError("collection name is empty")
	}
	if len(entries) == 0 {
		return 0, nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	dim := 0
	if col, ok := idx.collections[collectionName]; ok {
		dim = col.dimension
	}
	for i, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			return 0, types.NewValidationError("entry %d: id is empty", i)
		}
		if len(e.Vector) == 0 {
			return 0, types.NewValidationError("entry %q: vector is empty", e.ID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return 0, types.NewDimensionMismatchError(collectionName, dim, len(e.Vector))
		}
	}

	col, ok := idx.collections[collectionName]
	if !ok {
		col = &collection{dimension: dim, entries: make(map[string]*Entry)}
		idx.collections[collectionName] = col
	}

	now := time.Now()
	for _, e := range entries {
		stored := cloneEntry(e)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		col.entries[e.ID] = &stored
	}

	idx.metrics.SetIndexEntries(collectionName, len(col.entries))
	idx.logger.Debug("entries added",
		zap.String("collection", collectionName),
		zap.Int("count", len(entries)),
		zap.Int("total", len(col.entries)))

	return len(entries), nil
}

// Search 余弦相似度检索。未知集合返回空结果；同分按 id 升序。
func (idx *MemoryIndex) Search(ctx context.Context, collectionName string, query []float64, k int, filter map[string]any) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, types.NewValidationError("k must be positive, got %d", k)
	}
	if len(query) == 0 {
		return nil, types.NewValidationError("query vector is empty")
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	col, ok := idx.collections[collectionName]
	if !ok {
		return []SearchResult{}, nil
	}
	if len(query) != col.dimension {
		return nil, types.NewDimensionMismatchError(collectionName, col.dimension, len(query))
	}

	results := make([]SearchResult, 0, len(col.entries))
	for _, e := range col.entries {
		if !matchesFilter(e.Metadata, filter) {
			continue
		}
		results = append(results, SearchResult{
			ID:       e.ID,
			Content:  e.Content,
			Score:    cosineSimilarity(query, e.Vector),
			Metadata: maps.Clone(e.Metadata),
		})
	}

	sortResults(results)
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Get 按 id 读取记录副本
func (idx *MemoryIndex) Get(ctx context.Context, collectionName, id string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if col, ok := idx.collections[collectionName]; ok {
		if e, ok := col.entries[id]; ok {
			return cloneEntry(*e), nil
		}
	}
	return Entry{}, types.NewError(types.ErrNotFound, fmt.Sprintf("entry %q not found in collection %q", id, collectionName))
}

// Scan 在读锁下遍历，传给 fn 的是副本
func (idx *MemoryIndex) Scan(ctx context.Context, collectionName string, filter map[string]any, fn func(Entry) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	col, ok := idx.collections[collectionName]
	if !ok {
		return nil
	}
	for _, e := range col.entries {
		if !matchesFilter(e.Metadata, filter) {
			continue
		}
		if !fn(cloneEntry(*e)) {
			break
		}
	}
	return nil
}

// Delete 从所有集合中删除给定 id，未知 id 忽略
func (idx *MemoryIndex) Delete(ctx context.Context, ids []string) int {
	if len(ids) == 0 {
		return 0
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	deleted := 0
	for name, col := range idx.collections {
		before := len(col.entries)
		for _, id := range ids {
			delete(col.entries, id)
		}
		if removed := before - len(col.entries); removed > 0 {
			deleted += removed
			idx.metrics.SetIndexEntries(name, len(col.entries))
		}
		if len(col.entries) == 0 {
			delete(idx.collections, name)
		}
	}

	idx.logger.Info("entries deleted",
		zap.Int("requested", len(ids)),
		zap.Int("deleted", deleted))

	return deleted
}

// ClearCollection 删除集合及其维度设定
func (idx *MemoryIndex) ClearCollection(ctx context.Context, collectionName string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	col, ok := idx.collections[collectionName]
	if !ok {
		return 0
	}
	n := len(col.entries)
	delete(idx.collections, collectionName)
	idx.metrics.SetIndexEntries(collectionName, 0)

	idx.logger.Info("collection cleared",
		zap.String("collection", collectionName),
		zap.Int("deleted", n))

	return n
}

// Stats 返回各集合记录数与维度
func (idx *MemoryIndex) Stats() IndexStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	stats := IndexStats{
		Collections: make(map[string]int, len(idx.collections)),
		Dimensions:  make(map[string]int, len(idx.collections)),
	}
	for name, col := range idx.collections {
		stats.Collections[name] = len(col.entries)
		stats.Dimensions[name] = col.dimension
		stats.TotalEntries += len(col.entries)
	}
	return stats
}

// 工具函数

// cosineSimilarity 余弦相似度，任一向量范数为 0 时返回 0
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortResults 按分数降序，同分按 id 升序
func sortResults(results []SearchResult) {
	slices.SortFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return strings.Compare(a.ID, b.ID)
		}
	})
}

// matchesFilter filter 中每个键都必须存在且值相等
func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func cloneEntry(e Entry) Entry {
	e.Vector = slices.Clone(e.Vector)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

var _ VectorIndex = (*MemoryIndex)(nil)
