package rag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// --- hand-written mock for llm/tokenizer.Tokenizer ---

type mockLLMTokenizer struct {
	countResult int
	countErr    error
}

func (m *mockLLMTokenizer) CountTokens(string) (int, error) { return m.countResult, m.countErr }
func (m *mockLLMTokenizer) Encode(string) ([]int, error)    { return nil, m.countErr }
func (m *mockLLMTokenizer) Decode([]int) (string, error)    { return "", nil }
func (m *mockLLMTokenizer) MaxTokens() int                  { return 4096 }
func (m *mockLLMTokenizer) Name() string                    { return "mock" }

func TestLLMTokenizerAdapter_ImplementsTokenizer(t *testing.T) {
	var _ Tokenizer = (*LLMTokenizerAdapter)(nil)
}

func TestLLMTokenizerAdapter_CountTokens(t *testing.T) {
	a := NewLLMTokenizerAdapter(&mockLLMTokenizer{countResult: 42}, nil)
	assert.Equal(t, 42, a.CountTokens("hello world"))
}

func TestLLMTokenizerAdapter_FallbackWarnsOnce(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := NewLLMTokenizerAdapter(&mockLLMTokenizer{countErr: errors.New("no bpe")}, zap.New(core))

	// 16 个拉丁字符按 4 字符/token 估算
	assert.Equal(t, 4, a.CountTokens("abcdefghijklmnop"))
	assert.Equal(t, 4, a.CountTokens("abcdefghijklmnop"))
	assert.Equal(t, 1, logs.Len())
}

func TestNewTokenizerForModel_Estimator(t *testing.T) {
	a := NewTokenizerForModel("", nil)
	assert.Equal(t, 0, a.CountTokens(""))
	assert.Equal(t, 1, a.CountTokens("hi"))
}
