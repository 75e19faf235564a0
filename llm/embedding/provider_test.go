package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/ragcore/config"
	"github.com/BaSui01/ragcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ChooseModel ---

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req-model", ChooseModel("req-model", "default", "fallback"))
	assert.Equal(t, "default", ChooseModel("", "default", "fallback"))
	assert.Equal(t, "fallback", ChooseModel("", "", "fallback"))
}

// --- BaseProvider ---

func TestNewBaseProvider(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		bp := NewBaseProvider(BaseConfig{
			Name:    "test",
			BaseURL: "http://example.com/",
		})
		assert.Equal(t, "test", bp.Name())
		assert.Equal(t, 100, bp.MaxBatchSize())
		assert.Equal(t, "http://example.com", bp.baseURL)
	})

	t.Run("custom values", func(t *testing.T) {
		bp := NewBaseProvider(BaseConfig{
			Name:       "custom",
			BaseURL:    "http://api.test",
			Model:      "m",
			Dimensions: 512,
			MaxBatch:   50,
			Timeout:    10 * time.Second,
		})
		assert.Equal(t, 512, bp.Dimensions())
		assert.Equal(t, 50, bp.MaxBatchSize())
		assert.Equal(t, "m", bp.Model())
	})
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  types.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, types.ErrUnauthorized, false},
		{http.StatusForbidden, types.ErrForbidden, false},
		{http.StatusTooManyRequests, types.ErrRateLimited, true},
		{http.StatusBadRequest, types.ErrInvalidRequest, false},
		{http.StatusInternalServerError, types.ErrUpstreamError, true},
		{http.StatusServiceUnavailable, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := mapHTTPError(tt.status, "test error", "test-provider")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, "test-provider", err.Provider)
			assert.Equal(t, tt.status, err.HTTPStatus)
		})
	}
}

func TestBaseProviderDoRequest(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		bp := NewBaseProvider(BaseConfig{Name: "test", BaseURL: srv.URL})
		body, err := bp.DoRequest(context.Background(), http.MethodPost, "/embed", map[string]string{"q": "hello"}, map[string]string{
			"Authorization": "Bearer test-key",
		})
		require.NoError(t, err)
		assert.Contains(t, string(body), `"ok":true`)
	})

	t.Run("HTTP error mapped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid key"}`))
		}))
		defer srv.Close()

		bp := NewBaseProvider(BaseConfig{Name: "test", BaseURL: srv.URL})
		_, err := bp.DoRequest(context.Background(), http.MethodPost, "/embed", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid key")
		assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
	})

	t.Run("connection error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		bp := NewBaseProvider(BaseConfig{Name: "test", BaseURL: url})
		_, err := bp.DoRequest(context.Background(), http.MethodPost, "/embed", nil, nil)
		require.Error(t, err)
		assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
		assert.True(t, types.IsRetryable(err))
	})
}

func TestBaseProviderEmbedQueryAndDocuments(t *testing.T) {
	// 故意倒序返回，验证按 index 还原顺序
	mockEmbed := func(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
		n := len(req.Input)
		embeddings := make([]EmbeddingData, n)
		for i := range req.Input {
			embeddings[n-1-i] = EmbeddingData{Index: i, Embedding: []float64{float64(i)}}
		}
		return &EmbeddingResponse{Embeddings: embeddings}, nil
	}

	bp := NewBaseProvider(BaseConfig{Name: "test", BaseURL: "http://unused"})

	t.Run("EmbedQuery", func(t *testing.T) {
		vec, err := bp.EmbedQuery(context.Background(), "hello", mockEmbed)
		require.NoError(t, err)
		assert.Equal(t, []float64{0}, vec)
	})

	t.Run("EmbedDocuments keeps input order", func(t *testing.T) {
		vecs, err := bp.EmbedDocuments(context.Background(), []string{"a", "b", "c"}, mockEmbed)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{0}, {1}, {2}}, vecs)
	})

	t.Run("EmbedQuery empty response", func(t *testing.T) {
		emptyEmbed := func(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
			return &EmbeddingResponse{}, nil
		}
		_, err := bp.EmbedQuery(context.Background(), "hello", emptyEmbed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no embeddings")
	})
}

func TestOrderEmbeddings(t *testing.T) {
	t.Run("wrong arity", func(t *testing.T) {
		_, err := orderEmbeddings(&EmbeddingResponse{Embeddings: []EmbeddingData{{Index: 0}}}, 2, "p")
		assert.Equal(t, types.ErrProvider, types.GetErrorCode(err))
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := orderEmbeddings(&EmbeddingResponse{Embeddings: []EmbeddingData{{Index: 3}}}, 1, "p")
		assert.Error(t, err)
	})

	t.Run("duplicate index", func(t *testing.T) {
		_, err := orderEmbeddings(&EmbeddingResponse{Embeddings: []EmbeddingData{
			{Index: 0, Embedding: []float64{1}},
			{Index: 0, Embedding: []float64{2}},
		}}, 2, "p")
		assert.Error(t, err)
	})
}

// --- OpenAI Provider ---

func writeOpenAIResponse(t *testing.T, w http.ResponseWriter, model string, vecs ...[]float64) {
	t.Helper()
	data := make([]map[string]any, len(vecs))
	for i, v := range vecs {
		data[i] = map[string]any{"object": "embedding", "index": i, "embedding": v}
	}
	err := json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"model":  model,
		"data":   data,
		"usage":  map[string]int{"prompt_tokens": 5, "total_tokens": 5},
	})
	assert.NoError(t, err)
}

func TestOpenAIProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, 256, req.Dimensions)
		assert.Equal(t, []string{"hello world"}, req.Input)

		writeOpenAIResponse(t, w, "text-embedding-3-small", []float64{0.1, 0.2, 0.3})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		Model:      "text-embedding-3-small",
		Dimensions: 256,
	})

	resp, err := p.Embed(context.Background(), &EmbeddingRequest{Input: []string{"hello world"}})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "text-embedding-3-small", resp.Model)
	require.Len(t, resp.Embeddings, 1)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, resp.Embeddings[0].Embedding)
	assert.Equal(t, 5, resp.Usage.PromptTokens)
}

func TestOpenAIProviderOmitsDimensionsForAda(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, hasDims := raw["dimensions"]
		assert.False(t, hasDims)
		assert.Equal(t, "text-embedding-ada-002", raw["model"])
		writeOpenAIResponse(t, w, "text-embedding-ada-002", []float64{1})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	vec, err := p.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, vec)
}

func TestOpenAIProviderBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := p.Embed(context.Background(), &EmbeddingRequest{Input: []string{"x"}})
	assert.Equal(t, types.ErrProvider, types.GetErrorCode(err))
}

func TestOpenAIProviderDefaults(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"})
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, 1536, p.Dimensions())
	assert.Equal(t, 2048, p.MaxBatchSize())
	assert.Equal(t, "text-embedding-ada-002", p.Model())
}

// --- Azure OpenAI Provider ---

func TestAzureOpenAIProviderEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/emb-prod/embeddings", r.URL.Path)
		assert.Equal(t, "2024-02-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var req openAIEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Empty(t, req.Model)

		writeOpenAIResponse(t, w, "", []float64{1, 0}, []float64{0, 1})
	}))
	defer srv.Close()

	p := NewAzureOpenAIProvider(AzureOpenAIConfig{
		APIKey:     "azure-key",
		Endpoint:   srv.URL + "/",
		Deployment: "emb-prod",
	})
	assert.Equal(t, "azure-openai", p.Name())
	assert.Equal(t, 16, p.MaxBatchSize())

	vecs, err := p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)

	resp, err := p.Embed(context.Background(), &EmbeddingRequest{Input: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "emb-prod", resp.Model)
}

func TestAzureOpenAIProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewAzureOpenAIProvider(AzureOpenAIConfig{APIKey: "k", Endpoint: srv.URL, Deployment: "d"})
	_, err := p.EmbedQuery(context.Background(), "q")
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}

// --- Factory ---

func TestNewProviderFromConfig(t *testing.T) {
	cfg := config.DefaultEmbeddingConfig()

	p, err := NewProviderFromConfig(cfg)
	require.NoError(t, err)
	assert.Nil(t, p)

	cfg.Provider = "openai"
	p, err = NewProviderFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, p)

	cfg.Provider = "azure"
	cfg.Deployment = "d"
	p, err = NewProviderFromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &AzureOpenAIProvider{}, p)

	cfg.Provider = "voyage"
	_, err = NewProviderFromConfig(cfg)
	assert.Error(t, err)

	sc := ServiceConfigFrom(config.DefaultEmbeddingConfig())
	assert.Equal(t, 16, sc.BatchSize)
	assert.Equal(t, 8000, sc.MaxInputChars)
}
