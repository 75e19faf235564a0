package tokenizer

import (
	"strings"
)

// Tokenizer是统一的代号计数界面.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// Encode 将文本转换为 token ID 列表.
	Encode(text string) ([]int, error)

	// Decode 将 token ID 转换回文本.
	Decode(tokens []int) (string, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// ForModel 为模型选择分词器：已知的 OpenAI 模型使用 tiktoken，
// 其余模型（或空模型名）使用估算器。
// 返回值由调用方持有，不存在进程级注册表。
func ForModel(model string) Tokenizer {
	if model == "" {
		return NewEstimatorTokenizer("", 0)
	}
	if _, ok := lookupEncoding(model); ok {
		t, err := NewTiktokenTokenizer(model)
		if err == nil {
			return t
		}
	}
	return NewEstimatorTokenizer(model, 0)
}

// lookupEncoding 精确匹配后回退到前缀匹配（如 "gpt-4o-2024-08-06" 匹配 "gpt-4o"）。
// 前缀匹配选择最长前缀，避免 "gpt-4" 抢先匹配 "gpt-4o-mini"。
func lookupEncoding(model string) (encodingInfo, bool) {
	if info, ok := modelEncodings[model]; ok {
		return info, true
	}
	var (
		best    encodingInfo
		bestLen int
	)
	for prefix, info := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = info, len(prefix)
		}
	}
	return best, bestLen > 0
}
