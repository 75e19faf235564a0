package embedding

import "time"

// OpenAIConfig configures the OpenAI embedding provider.
type OpenAIConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`           // text-embedding-ada-002, text-embedding-3-small
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"` // 1536 for ada-002
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// AzureOpenAIConfig configures the Azure OpenAI embedding provider.
// Endpoint is the resource URL, e.g. https://my-resource.openai.azure.com.
type AzureOpenAIConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	Endpoint   string        `json:"endpoint" yaml:"endpoint"`
	Deployment string        `json:"deployment" yaml:"deployment"`
	APIVersion string        `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Dimensions int           `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultOpenAIConfig returns default OpenAI embedding config.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    "https://api.openai.com",
		Model:      "text-embedding-ada-002",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}

// DefaultAzureOpenAIConfig returns default Azure OpenAI embedding config.
func DefaultAzureOpenAIConfig() AzureOpenAIConfig {
	return AzureOpenAIConfig{
		APIVersion: "2024-02-01",
		Dimensions: 1536,
		Timeout:    30 * time.Second,
	}
}
