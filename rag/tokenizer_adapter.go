package rag

import (
	"sync"

	"go.uber.org/zap"

	lltok "github.com/BaSui01/ragcore/llm/tokenizer"
)

// Tokenizer 分块使用的 token 计数接口
type Tokenizer interface {
	CountTokens(text string) int
}

// LLMTokenizerAdapter 将 llm/tokenizer.Tokenizer 适配为 rag.Tokenizer 接口。
// 底层 tokenizer 出错时（例如离线环境无法加载 tiktoken 编码表）
// 回退到按文字系统估算，并只记录一次警告。
type LLMTokenizerAdapter struct {
	inner    lltok.Tokenizer
	fallback lltok.Tokenizer
	logger   *zap.Logger
	warnOnce sync.Once
}

// NewLLMTokenizerAdapter 创建适配器。
func NewLLMTokenizerAdapter(inner lltok.Tokenizer, logger *zap.Logger) *LLMTokenizerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMTokenizerAdapter{
		inner:    inner,
		fallback: lltok.NewEstimatorTokenizer(inner.Name(), 0),
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

// NewTokenizerForModel 为模型创建 rag.Tokenizer，model 为空时使用估算器。
func NewTokenizerForModel(model string, logger *zap.Logger) *LLMTokenizerAdapter {
	return NewLLMTokenizerAdapter(lltok.ForModel(model), logger)
}

// CountTokens 返回文本的 token 数。
func (a *LLMTokenizerAdapter) CountTokens(text string) int {
	count, err := a.inner.CountTokens(text)
	if err == nil {
		return count
	}

	a.warnOnce.Do(func() {
		a.logger.Warn("tokenizer CountTokens failed, falling back to estimate",
			zap.String("tokenizer", a.inner.Name()),
			zap.Error(err))
	})
	// 估算器不会返回错误
	count, _ = a.fallback.CountTokens(text)
	return count
}
