// =============================================================================
// 📦 ragcore 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Chunking:  DefaultChunkingConfig(),
		Embedding: DefaultEmbeddingConfig(),
		Search:    DefaultSearchConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultChunkingConfig 返回默认分块配置
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		Multilingual:   true,
		TokenizerModel: "text-embedding-3-small",
	}
}

// DefaultEmbeddingConfig 返回默认 embedding 配置
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider:      "none",
		BaseURL:       "https://api.openai.com",
		APIVersion:    "2024-02-01",
		Model:         "text-embedding-ada-002",
		Dimensions:    1536,
		BatchSize:     16,
		MaxInputChars: 8000,
		Timeout:       30 * time.Second,
		Concurrency:   4,
		Cache:         "memory",
	}
}

// DefaultSearchConfig 返回默认检索配置
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		Collection:     "general",
		VectorWeight:   0.7,
		KeywordWeight:  0.3,
		TopK:           5,
		MinTokenLength: 3,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "ragcore",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "ragcore",
	}
}
