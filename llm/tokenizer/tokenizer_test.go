package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimatorTokenizer_CountTokens(t *testing.T) {
	est := NewEstimatorTokenizer("test", 0)

	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "short latin rounds up to one", text: "hi", want: 1},
		{name: "latin", text: "abcdefghijklmnop", want: 4},
		{name: "cjk", text: "你好世界你好", want: 4},
		{name: "arabic", text: "مرحبابكمفي", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := est.CountTokens(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEstimatorTokenizer_EncodeMatchesCount(t *testing.T) {
	est := NewEstimatorTokenizer("test", 0)
	tokens, err := est.Encode("the quick brown fox jumps")
	require.NoError(t, err)
	count, err := est.CountTokens("the quick brown fox jumps")
	require.NoError(t, err)
	assert.Len(t, tokens, count)

	_, err = est.Decode(tokens)
	assert.Error(t, err)
	assert.Equal(t, 8191, est.MaxTokens())
	assert.Equal(t, "estimator", est.Name())
}

func TestForModel(t *testing.T) {
	assert.Equal(t, "estimator", ForModel("").Name())
	assert.Equal(t, "estimator", ForModel("nomic-embed-text").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", ForModel("text-embedding-3-small").Name())
	assert.Equal(t, "tiktoken[o200k_base]", ForModel("gpt-4o-mini-2024-07-18").Name())
}

func TestLookupEncoding_LongestPrefix(t *testing.T) {
	info, ok := lookupEncoding("gpt-4o-2024-08-06")
	require.True(t, ok)
	assert.Equal(t, "o200k_base", info.encoding)

	info, ok = lookupEncoding("gpt-4-0613")
	require.True(t, ok)
	assert.Equal(t, "cl100k_base", info.encoding)

	_, ok = lookupEncoding("mistral-embed")
	assert.False(t, ok)
}
