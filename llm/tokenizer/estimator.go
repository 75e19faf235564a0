package tokenizer

import (
	"fmt"
	"unicode"
)

// 每种书写系统平均每个 token 覆盖的字符数。
const (
	cjkCharsPerToken    = 1.5
	arabicCharsPerToken = 2.5
	otherCharsPerToken  = 4.0
)

// EstimatorTokenizer 按书写系统估算 token 数，不依赖任何编码表，
// 用于未知模型以及 tiktoken 编码表不可用时的回退。
type EstimatorTokenizer struct {
	model     string
	maxTokens int
}

// NewEstimatorTokenizer 创建估算器，maxTokens <= 0 时取 embedding 模型的常见上限。
func NewEstimatorTokenizer(model string, maxTokens int) *EstimatorTokenizer {
	if maxTokens <= 0 {
		maxTokens = 8191
	}
	return &EstimatorTokenizer{model: model, maxTokens: maxTokens}
}

// CountTokens 非空文本至少计为 1 个 token。
func (e *EstimatorTokenizer) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	var cjk, arabic, other int
	for _, r := range text {
		switch {
		case isCJK(r):
			cjk++
		case isArabic(r):
			arabic++
		default:
			other++
		}
	}

	estimated := int(float64(cjk)/cjkCharsPerToken +
		float64(arabic)/arabicCharsPerToken +
		float64(other)/otherCharsPerToken)
	return max(estimated, 1), nil
}

// Encode 估算器无法真正编码，返回与计数等长的伪 token ID。
func (e *EstimatorTokenizer) Encode(text string) ([]int, error) {
	count, err := e.CountTokens(text)
	if err != nil {
		return nil, err
	}
	tokens := make([]int, count)
	for i := range tokens {
		tokens[i] = i
	}
	return tokens, nil
}

func (e *EstimatorTokenizer) Decode(_ []int) (string, error) {
	return "", fmt.Errorf("estimator tokenizer for %q does not support decode", e.model)
}

func (e *EstimatorTokenizer) MaxTokens() int { return e.maxTokens }

func (e *EstimatorTokenizer) Name() string { return "estimator" }

// isCJK 汉字、CJK 符号以及全角字符
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF)
}

func isArabic(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}
