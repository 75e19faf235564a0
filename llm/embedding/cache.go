package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/BaSui01/ragcore/internal/cache"
	"go.uber.org/zap"
)

// Cache 向量缓存.
// 实现必须并发安全，Get 返回的切片归调用方所有.
type Cache interface {
	Get(ctx context.Context, key string) ([]float64, bool)
	Set(ctx context.Context, key string, vec []float64)
	// Len 返回进程内持有的条目数
	Len() int
	// Delete 删除指定键（包括共享层）
	Delete(ctx context.Context, keys ...string)
	// Clear 清空进程内条目
	Clear(ctx context.Context)
	// Name 用作指标 cache_type 标签
	Name() string
}

// batchCache 支持批量查询的缓存（RedisCache 用一次往返代替逐键查询）
type batchCache interface {
	GetMany(ctx context.Context, keys []string) ([][]float64, []bool)
}

// CacheKey 生成向量缓存键：模型名 + 输入 sha256 前 16 字节.
func CacheKey(model, text string) string {
	hash := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(hash[:16])
}

func cloneVector(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// =============================================================================
// 进程内缓存
// =============================================================================

// MemoryCache 无界进程内缓存，不做淘汰.
// 长时间运行且输入多样时内存会持续增长，需要上限时使用 Clear 或 RedisCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float64
}

// NewMemoryCache 创建进程内缓存.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]float64)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return cloneVector(v), true
}

func (c *MemoryCache) Set(_ context.Context, key string, vec []float64) {
	c.mu.Lock()
	c.entries[key] = cloneVector(vec)
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
}

func (c *MemoryCache) Clear(context.Context) {
	c.mu.Lock()
	c.entries = make(map[string][]float64)
	c.mu.Unlock()
}

func (c *MemoryCache) Name() string { return "memory" }

// =============================================================================
// Redis 共享缓存
// =============================================================================

// RedisCache 两级缓存：先查进程内缓存，再查 Redis，Redis 命中后回填本地.
// Redis 故障只记录日志并按未命中处理，不影响向量生成.
type RedisCache struct {
	local   *MemoryCache
	manager *cache.Manager
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRedisCache 基于 cache.Manager 创建共享缓存，ttl 为 0 时使用 Manager 默认值.
func NewRedisCache(manager *cache.Manager, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		local:   NewMemoryCache(),
		manager: manager,
		ttl:     ttl,
		logger:  logger.With(zap.String("component", "embedding_cache")),
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]float64, bool) {
	// 1. 本地
	if v, ok := c.local.Get(ctx, key); ok {
		return v, true
	}

	// 2. Redis
	var vec []float64
	if err := c.manager.GetJSON(ctx, key, &vec); err != nil {
		if !cache.IsCacheMiss(err) {
			c.logger.Warn("redis get error", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	c.local.Set(ctx, key, vec)
	c.logger.Debug("redis cache hit", zap.String("key", key))
	return vec, true
}

// GetMany 批量查询：本地未命中的键合并为一次 MGET.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) ([][]float64, []bool) {
	vecs := make([][]float64, len(keys))
	found := make([]bool, len(keys))

	var missIdx []int
	var missKeys []string
	for i, k := range keys {
		if v, ok := c.local.Get(ctx, k); ok {
			vecs[i], found[i] = v, true
			continue
		}
		missIdx = append(missIdx, i)
		missKeys = append(missKeys, k)
	}
	if len(missKeys) == 0 {
		return vecs, found
	}

	values, ok, err := c.manager.GetMulti(ctx, missKeys)
	if err != nil {
		c.logger.Warn("redis mget error", zap.Int("keys", len(missKeys)), zap.Error(err))
		return vecs, found
	}
	for j, i := range missIdx {
		if !ok[j] {
			continue
		}
		var vec []float64
		if err := json.Unmarshal([]byte(values[j]), &vec); err != nil {
			c.logger.Warn("redis value decode error", zap.String("key", missKeys[j]), zap.Error(err))
			continue
		}
		c.local.Set(ctx, missKeys[j], vec)
		vecs[i], found[i] = vec, true
	}
	return vecs, found
}

func (c *RedisCache) Set(ctx context.Context, key string, vec []float64) {
	c.local.Set(ctx, key, vec)
	if err := c.manager.SetJSON(ctx, key, vec, c.ttl); err != nil {
		c.logger.Warn("redis set error", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Len() int { return c.local.Len() }

// Delete 同时删除本地层与 Redis 中的条目，Redis 失败只记录日志.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	c.local.Delete(ctx, keys...)
	if err := c.manager.Delete(ctx, keys...); err != nil {
		c.logger.Warn("redis delete error", zap.Int("keys", len(keys)), zap.Error(err))
	}
}

// Clear 只清空本地层，Redis 中的条目由 TTL 过期.
func (c *RedisCache) Clear(ctx context.Context) { c.local.Clear(ctx) }

func (c *RedisCache) Name() string { return "redis" }
