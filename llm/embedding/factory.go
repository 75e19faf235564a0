package embedding

import (
	"fmt"

	"github.com/BaSui01/ragcore/config"
)

// NewProviderFromConfig 按配置创建 provider，provider 为 "none" 或空时返回 nil.
func NewProviderFromConfig(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil
	case "azure":
		return NewAzureOpenAIProvider(AzureOpenAIConfig{
			APIKey:     cfg.APIKey,
			Endpoint:   cfg.BaseURL,
			Deployment: cfg.Deployment,
			APIVersion: cfg.APIVersion,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// ServiceConfigFrom 将 config.EmbeddingConfig 转换为 ServiceConfig.
func ServiceConfigFrom(cfg config.EmbeddingConfig) ServiceConfig {
	return ServiceConfig{
		Model:             cfg.Model,
		Dimensions:        cfg.Dimensions,
		BatchSize:         cfg.BatchSize,
		MaxInputChars:     cfg.MaxInputChars,
		Concurrency:       cfg.Concurrency,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
}
