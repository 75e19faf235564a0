package embedding

import (
	"context"
	"net/http"
	"net/url"
)

// AzureOpenAIProvider implements embedding against an Azure OpenAI deployment.
// The model is fixed by the deployment, so EmbeddingRequest.Model is ignored.
type AzureOpenAIProvider struct {
	*BaseProvider
	cfg AzureOpenAIConfig
}

// NewAzureOpenAIProvider creates a new Azure OpenAI embedding provider.
func NewAzureOpenAIProvider(cfg AzureOpenAIConfig) *AzureOpenAIProvider {
	def := DefaultAzureOpenAIConfig()
	if cfg.APIVersion == "" {
		cfg.APIVersion = def.APIVersion
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = def.Dimensions
	}

	return &AzureOpenAIProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "azure-openai",
			BaseURL:    cfg.Endpoint,
			Model:      cfg.Deployment,
			Dimensions: cfg.Dimensions,
			// Azure 单次请求最多 16 条输入
			MaxBatch: 16,
			Timeout:  cfg.Timeout,
		}),
		cfg: cfg,
	}
}

func (p *AzureOpenAIProvider) endpoint() string {
	return "/openai/deployments/" + url.PathEscape(p.cfg.Deployment) +
		"/embeddings?api-version=" + url.QueryEscape(p.cfg.APIVersion)
}

// Embed generates embeddings for the given inputs.
func (p *AzureOpenAIProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	respBody, err := p.DoRequest(ctx, http.MethodPost, p.endpoint(), openAIEmbedRequest{Input: req.Input}, map[string]string{
		"api-key": p.cfg.APIKey,
	})
	if err != nil {
		return nil, err
	}

	resp, err := decodeOpenAIResponse(respBody, p.Name())
	if err != nil {
		return nil, err
	}
	if resp.Model == "" {
		resp.Model = p.cfg.Deployment
	}
	return resp, nil
}

// EmbedQuery embeds a single query.
func (p *AzureOpenAIProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return p.BaseProvider.EmbedQuery(ctx, query, p.Embed)
}

// EmbedDocuments embeds multiple documents.
func (p *AzureOpenAIProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	return p.BaseProvider.EmbedDocuments(ctx, documents, p.Embed)
}
