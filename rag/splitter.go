package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/ragcore/internal/metrics"
	"github.com/BaSui01/ragcore/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSeparators 默认分隔符，按优先级从高到低。
// 末尾的 "" 表示按字符切分。
var DefaultSeparators = []string{"\n\n", "\n", ". ", "。", "؟ ", "! ", "؛ ", ", ", " ", ""}

// SplitterConfig 分块配置，长度单位为字符（rune）
type SplitterConfig struct {
	ChunkSize    int      `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap" yaml:"chunk_overlap"`
	Separators   []string `json:"separators" yaml:"separators"`
}

// DefaultSplitterConfig 默认分块配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		Separators:   append([]string(nil), DefaultSeparators...),
	}
}

// Validate 检查配置
func (c SplitterConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return types.NewValidationError("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return types.NewValidationError("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// Chunk 文档块，产出后不再修改
type Chunk struct {
	ID          string `json:"id,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
	Content     string `json:"content"`
	Index       int    `json:"index"`
	TotalChunks int    `json:"total_chunks,omitempty"`
	CharCount   int    `json:"char_count"`
	WordCount   int    `json:"word_count"`
	TokenCount  int    `json:"token_count,omitempty"`
}

// Metadata 返回写入索引时使用的扁平元数据
func (c Chunk) Metadata() map[string]any {
	md := map[string]any{
		"position":   c.Index,
		"char_count": c.CharCount,
		"word_count": c.WordCount,
	}
	if c.DocumentID != "" {
		md["document_id"] = c.DocumentID
	}
	if c.TotalChunks > 0 {
		md["total_chunks"] = c.TotalChunks
	}
	if c.TokenCount > 0 {
		md["token_count"] = c.TokenCount
	}
	return md
}

// TextSplitter 分块器接口，Splitter 与 MultilingualSplitter 都实现它
type TextSplitter interface {
	SplitText(text string) ([]Chunk, error)
	SplitWithOverlap(text string) ([]Chunk, error)
	ChunksWithMetadata(text, documentID string) ([]Chunk, error)
	OverlapChunksWithMetadata(text, documentID string) ([]Chunk, error)
}

// Splitter 递归分块器。
//
// 文本按当前分隔符切开，分隔符重新附加到除最后一段外的每一段末尾，
// 片段贪心累积直到再加一段会超过 ChunkSize；单段超长时用剩余的低优先级
// 分隔符递归。分隔符用尽仍超长的片段按窗口 ChunkSize、步长
// ChunkSize-ChunkOverlap 强制切分。之后做一遍向前合并：当前累积块短于
// ChunkSize/2 时吸收下一块。
//
// 注意：向前合并额外要求合并后不超过 ChunkSize，否则短块原样保留
// （例如 C=100 时 10 字符块后接 95 字符块不会合并）。这是为了保证块长上限
// 而有意偏离无条件合并的行为，需产品确认。
type Splitter struct {
	config    SplitterConfig
	tokenizer Tokenizer
	metrics   *metrics.Collector
	name      string
	logger    *zap.Logger

	// 可选的预处理与逐块后处理，由 MultilingualSplitter 设置
	normalize   func(string) string
	postProcess func(string) string
}

// SplitterOption 配置 Splitter 的可选依赖
type SplitterOption func(*Splitter)

// WithTokenizer 设置 token 计数器，用于填充 Chunk.TokenCount
func WithTokenizer(t Tokenizer) SplitterOption {
	return func(s *Splitter) { s.tokenizer = t }
}

// WithSplitterMetrics 设置指标收集器
func WithSplitterMetrics(m *metrics.Collector) SplitterOption {
	return func(s *Splitter) { s.metrics = m }
}

// NewSplitter 创建分块器，Separators 为空时使用 DefaultSeparators
func NewSplitter(config SplitterConfig, logger *zap.Logger, opts ...SplitterOption) (*Splitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(config.Separators) == 0 {
		config.Separators = append([]string(nil), DefaultSeparators...)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Splitter{
		config: config,
		name:   "recursive",
		logger: logger.With(zap.String("component", "splitter")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config 返回分块配置副本
func (s *Splitter) Config() SplitterConfig {
	cfg := s.config
	cfg.Separators = append([]string(nil), s.config.Separators...)
	return cfg
}

// SplitText 将文本切分为有序、非空的块
func (s *Splitter) SplitText(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("text is empty")
	}
	if s.normalize != nil {
		if text = s.normalize(text); text == "" {
			return nil, types.NewValidationError("text is empty after normalization")
		}
	}

	pieces := s.splitRaw(text)
	chunks := s.toChunks(pieces)

	s.metrics.RecordChunks(s.name, len(chunks))
	s.logger.Debug("text split",
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", s.config.ChunkSize),
		zap.Int("chunk_overlap", s.config.ChunkOverlap),
	)

	return chunks, nil
}

// SplitWithOverlap 在基础切分后，为第 i 块（i>0）加上第 i-1 块末尾
// ChunkOverlap 个字符。加上前缀后块长度可能超过 ChunkSize，最多超出 ChunkOverlap。
func (s *Splitter) SplitWithOverlap(text string) ([]Chunk, error) {
	chunks, err := s.SplitText(text)
	if err != nil {
		return nil, err
	}
	return applyOverlap(chunks, s.config.ChunkOverlap, s.tokenizer), nil
}

// ChunksWithMetadata 切分并附加 id、总块数和文档 id。
// id 形如 <documentID>_chunk_<index>，documentID 为空时生成 uuid。
func (s *Splitter) ChunksWithMetadata(text, documentID string) ([]Chunk, error) {
	chunks, err := s.SplitText(text)
	if err != nil {
		return nil, err
	}
	return attachMetadata(chunks, documentID), nil
}

// OverlapChunksWithMetadata 先加重叠前缀，再附加 id、总块数和文档 id
func (s *Splitter) OverlapChunksWithMetadata(text, documentID string) ([]Chunk, error) {
	chunks, err := s.SplitWithOverlap(text)
	if err != nil {
		return nil, err
	}
	return attachMetadata(chunks, documentID), nil
}

// splitRaw 递归切分并向前合并，返回未修剪的片段
func (s *Splitter) splitRaw(text string) []string {
	return mergeSmallChunks(s.recursiveSplit(text, s.config.Separators), s.config.ChunkSize)
}

func (s *Splitter) recursiveSplit(text string, separators []string) []string {
	if len(separators) == 0 {
		return forceSlice(text, s.config.ChunkSize, s.config.ChunkOverlap)
	}

	separator := separators[0]
	var parts []string
	if separator == "" {
		parts = splitRunes(text)
	} else {
		parts = strings.Split(text, separator)
	}

	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		if bufLen > 0 {
			chunks = append(chunks, buf.String())
			buf.Reset()
			bufLen = 0
		}
	}

	for i, part := range parts {
		// 恢复分隔符（除了最后一个）
		if separator != "" && i < len(parts)-1 {
			part += separator
		}
		if part == "" {
			continue
		}

		partLen := utf8.RuneCountInString(part)
		if bufLen+partLen <= s.config.ChunkSize {
			buf.WriteString(part)
			bufLen += partLen
			continue
		}

		flush()

		// 单个片段超过限制，使用下一级分隔符
		if partLen > s.config.ChunkSize {
			chunks = append(chunks, s.recursiveSplit(part, separators[1:])...)
			continue
		}

		buf.WriteString(part)
		bufLen = partLen
	}
	flush()

	return chunks
}

// forceSlice 按固定窗口切分无法再分的片段
func forceSlice(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	stride := size - overlap
	var out []string
	for start := 0; start < len(runes); start += stride {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// mergeSmallChunks 向前合并：当前累积块短于 size/2 时把下一块接到它后面
func mergeSmallChunks(chunks []string, size int) []string {
	if len(chunks) <= 1 {
		return chunks
	}

	merged := make([]string, 0, len(chunks))
	current := chunks[0]
	currentLen := utf8.RuneCountInString(current)

	for _, next := range chunks[1:] {
		nextLen := utf8.RuneCountInString(next)
		if currentLen < size/2 && currentLen+nextLen <= size {
			current += next
			currentLen += nextLen
			continue
		}
		merged = append(merged, current)
		current, currentLen = next, nextLen
	}
	return append(merged, current)
}

// toChunks 修剪空白、丢弃空块并计算计数
func (s *Splitter) toChunks(pieces []string) []Chunk {
	chunks := make([]Chunk, 0, len(pieces))
	for _, p := range pieces {
		content := strings.TrimSpace(p)
		if s.postProcess != nil && content != "" {
			content = strings.TrimSpace(s.postProcess(content))
		}
		if content == "" {
			continue
		}
		chunks = append(chunks, newChunk(content, len(chunks), s.tokenizer))
	}
	return chunks
}

func newChunk(content string, index int, tok Tokenizer) Chunk {
	c := Chunk{
		Content:   content,
		Index:     index,
		CharCount: utf8.RuneCountInString(content),
		WordCount: len(strings.Fields(content)),
	}
	if tok != nil {
		c.TokenCount = tok.CountTokens(content)
	}
	return c
}

func applyOverlap(chunks []Chunk, overlap int, tok Tokenizer) []Chunk {
	if overlap <= 0 || len(chunks) <= 1 {
		return chunks
	}

	out := make([]Chunk, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		start := max(len(prev)-overlap, 0)
		out[i] = newChunk(string(prev[start:])+chunks[i].Content, chunks[i].Index, tok)
	}
	return out
}

func attachMetadata(chunks []Chunk, documentID string) []Chunk {
	if documentID == "" {
		documentID = uuid.NewString()
	}
	out := make([]Chunk, len(chunks))
	for i, c := range chunks {
		c.ID = fmt.Sprintf("%s_chunk_%d", documentID, c.Index)
		c.DocumentID = documentID
		c.TotalChunks = len(chunks)
		out[i] = c
	}
	return out
}

func splitRunes(text string) []string {
	parts := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		parts = append(parts, string(r))
	}
	return parts
}
