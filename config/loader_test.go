// 配置加载器与默认配置测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 默认配置测试 ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 分块默认值
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap)
	assert.True(t, cfg.Chunking.Multilingual)

	// Embedding 默认值
	assert.Equal(t, "none", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 8000, cfg.Embedding.MaxInputChars)
	assert.Equal(t, 30*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "memory", cfg.Embedding.Cache)

	// 检索默认值
	assert.Equal(t, 0.7, cfg.Search.VectorWeight)
	assert.Equal(t, 0.3, cfg.Search.KeywordWeight)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 3, cfg.Search.MinTokenLength)

	// Redis / Log
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "ragcore", cfg.Metrics.Namespace)

	require.NoError(t, cfg.Validate())
}

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, "general", cfg.Search.Collection)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
chunking:
  chunk_size: 500
  chunk_overlap: 50
  separators: ["\n\n", "\n", " ", ""]

embedding:
  provider: openai
  api_key: sk-test
  model: text-embedding-3-small
  dimensions: 512
  timeout: 10s

search:
  vector_weight: 0.6
  keyword_weight: 0.4
  top_k: 10

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, []string{"\n\n", "\n", " ", ""}, cfg.Chunking.Separators)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 512, cfg.Embedding.Dimensions)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 0.6, cfg.Search.VectorWeight)
	assert.Equal(t, 10, cfg.Search.TopK)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未出现在 YAML 中的字段保留默认值
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("RAGCORE_CHUNKING_CHUNK_SIZE", "800")
	t.Setenv("RAGCORE_CHUNKING_MULTILINGUAL", "false")
	t.Setenv("RAGCORE_EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("RAGCORE_EMBEDDING_TIMEOUT", "5s")
	t.Setenv("RAGCORE_EMBEDDING_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("RAGCORE_SEARCH_KEYWORD_WEIGHT", "0.5")
	t.Setenv("RAGCORE_REDIS_ADDR", "env-redis:6379")
	t.Setenv("RAGCORE_LOG_OUTPUT_PATHS", "stdout, /tmp/ragcore.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.False(t, cfg.Chunking.Multilingual)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.Model)
	assert.Equal(t, 5*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, 2.5, cfg.Embedding.RequestsPerSecond)
	assert.Equal(t, 0.5, cfg.Search.KeywordWeight)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"stdout", "/tmp/ragcore.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
chunking:
  chunk_size: 600
embedding:
  model: yaml-model
  batch_size: 8
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("RAGCORE_CHUNKING_CHUNK_SIZE", "700")
	t.Setenv("RAGCORE_EMBEDDING_MODEL", "env-model")

	cfg, err := NewLoader().WithConfigPath(configPath).Load()
	require.NoError(t, err)

	// 环境变量覆盖 YAML
	assert.Equal(t, 700, cfg.Chunking.ChunkSize)
	assert.Equal(t, "env-model", cfg.Embedding.Model)
	// YAML 值保留
	assert.Equal(t, 8, cfg.Embedding.BatchSize)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SEARCH_TOP_K", "42")

	cfg, err := NewLoader().WithEnvPrefix("MYAPP").Load()
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Search.TopK)
}

func TestLoader_EmptyEnvValue(t *testing.T) {
	// 空字符串可以清空字符串字段，其他类型忽略空值
	t.Setenv("RAGCORE_CHUNKING_TOKENIZER_MODEL", "")
	t.Setenv("RAGCORE_CHUNKING_CHUNK_SIZE", "")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Chunking.TokenizerModel)
	assert.Equal(t, DefaultChunkingConfig().ChunkSize, cfg.Chunking.ChunkSize)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("RAGCORE_CHUNKING_CHUNK_SIZE", "not-a-number")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("RAGCORE_CHUNKING_CHUNK_OVERLAP", "2000")

	_, err := NewLoader().
		WithValidator(func(cfg *Config) error { return cfg.Validate() }).
		Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/config.yaml").
		Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
chunking:
  chunk_size: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default is valid", func(*Config) {}, ""},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }, "chunk_size"},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }, "chunk_overlap"},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }, "chunk_overlap"},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "api_key"},
		{"openai with key", func(c *Config) {
			c.Embedding.Provider = "openai"
			c.Embedding.APIKey = "sk-test"
		}, ""},
		{"azure missing deployment", func(c *Config) {
			c.Embedding.Provider = "azure"
			c.Embedding.APIKey = "k"
			c.Embedding.BaseURL = "https://x.openai.azure.com"
		}, "deployment"},
		{"unknown provider", func(c *Config) { c.Embedding.Provider = "voyage" }, "unknown embedding provider"},
		{"unknown cache", func(c *Config) { c.Embedding.Cache = "bolt" }, "unknown embedding cache"},
		{"negative weight", func(c *Config) { c.Search.VectorWeight = -0.1 }, "weights"},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }, "top_k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("search:\n  top_k: 3\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 3, cfg.Search.TopK)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}
