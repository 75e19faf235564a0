package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 基于 tiktoken 的精确计数，适用于 OpenAI 系列模型。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

type encodingInfo struct {
	encoding  string
	maxTokens int
}

// modelEncodings 模型名 → tiktoken 编码与上下文上限，embedding 模型优先列出。
var modelEncodings = map[string]encodingInfo{
	"text-embedding-3-large": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-3-small": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-ada-002": {encoding: "cl100k_base", maxTokens: 8191},
	"gpt-4o":                 {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4o-mini":            {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4":                  {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":          {encoding: "cl100k_base", maxTokens: 16385},
}

// NewTiktokenTokenizer 为模型创建 tiktoken 分词器，编码表在首次计数时才加载。
// 未知模型按 cl100k_base 处理。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	info, ok := lookupEncoding(model)
	if !ok {
		info = encodingInfo{encoding: "cl100k_base", maxTokens: 8191}
	}
	return &TiktokenTokenizer{
		model:     model,
		encoding:  info.encoding,
		maxTokens: info.maxTokens,
	}, nil
}

// encoder 懒加载编码表（离线环境可能下载失败，错误会被缓存）
func (t *TiktokenTokenizer) encoder() (*tiktoken.Tiktoken, error) {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding(t.encoding)
		if t.initErr != nil {
			t.initErr = fmt.Errorf("load tiktoken encoding %s for %s: %w", t.encoding, t.model, t.initErr)
		}
	})
	return t.enc, t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	tokens, err := t.Encode(text)
	return len(tokens), err
}

func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	enc, err := t.encoder()
	if err != nil {
		return nil, err
	}
	return enc.Encode(text, nil, nil), nil
}

func (t *TiktokenTokenizer) Decode(tokens []int) (string, error) {
	enc, err := t.encoder()
	if err != nil {
		return "", err
	}
	return enc.Decode(tokens), nil
}

func (t *TiktokenTokenizer) MaxTokens() int { return t.maxTokens }

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
