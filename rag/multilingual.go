package rag

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MultilingualSeparators 多语言分隔符：段落、行、拉丁/阿拉伯/中日韩句末标点、
// 连接词、空格，最后按字符。归一化会把 أو 折叠为 او，两种写法都列出。
var MultilingualSeparators = []string{
	"\n\n", "\n",
	". ", "。", "؟ ", "? ", "! ", "؛ ", "، ", ", ",
	" و ", " أو ", " او ", " ثم ", " and ", " or ", " then ",
	" ", "",
}

// leadingConjunctions 块首需要去掉的连接词，"او" 为 "أو" 归一化后的形式
var leadingConjunctions = []string{"و", "أو", "او", "ثم", "لكن", "بل", "and", "or", "but", "then"}

// 阿拉伯字母变体折叠
var arabicFolder = strings.NewReplacer(
	"إ", "ا",
	"أ", "ا",
	"آ", "ا",
	"ٱ", "ا",
	"ة", "ه",
)

// 语言标识
const (
	LanguageArabic  = "arabic"
	LanguageCJK     = "cjk"
	LanguageEnglish = "english"
	LanguageUnknown = "unknown"
)

// MultilingualSplitter 面向阿拉伯语/英语/中文混合文本的分块器。
// 切分前做 Unicode 归一化，切分后去掉块首连接词，其余行为与 Splitter 一致。
type MultilingualSplitter struct {
	*Splitter
}

// NewMultilingualSplitter 创建多语言分块器，Separators 为空时使用 MultilingualSeparators
func NewMultilingualSplitter(config SplitterConfig, logger *zap.Logger, opts ...SplitterOption) (*MultilingualSplitter, error) {
	if len(config.Separators) == 0 {
		config.Separators = append([]string(nil), MultilingualSeparators...)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	base, err := NewSplitter(config, logger, opts...)
	if err != nil {
		return nil, err
	}
	base.name = "multilingual"
	base.logger = logger.With(zap.String("component", "multilingual_splitter"))
	base.normalize = NormalizeText
	base.postProcess = stripLeadingConjunction

	return &MultilingualSplitter{Splitter: base}, nil
}

// NormalizeText 归一化文本：折叠阿拉伯字母变体，去掉组合附加符号
// （阿拉伯语 tashkeel 与拉丁重音），压缩行内空白与连续空行。
func NormalizeText(text string) string {
	text = arabicFolder.Replace(text)

	// Chain 有内部状态，每次调用新建
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isStrippableMark)), norm.NFC)
	if out, _, err := transform.String(t, text); err == nil {
		text = out
	}

	return collapseWhitespace(text)
}

// isStrippableMark 判断是否为需要删除的组合符号。
// U+0653..U+0655（madda、hamza）保留，NFC 会把它们重新组合回 ؤ、ئ 等字母。
func isStrippableMark(r rune) bool {
	if r >= 0x0653 && r <= 0x0655 {
		return false
	}
	if r >= 0x064B && r <= 0x065F || r == 0x0670 {
		return true
	}
	return unicode.Is(unicode.Mn, r)
}

// collapseWhitespace 行内连续空白压成一个空格，连续空行压成一个段落分隔
func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")

	var (
		b     strings.Builder
		blank bool
		wrote bool
	)
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if wrote {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		b.WriteString(line)
		wrote = true
		blank = false
	}
	return b.String()
}

// stripLeadingConjunction 去掉一个块首连接词（后面必须跟空格）
func stripLeadingConjunction(chunk string) string {
	chunk = strings.TrimSpace(chunk)
	lower := strings.ToLower(chunk)
	for _, conj := range leadingConjunctions {
		if strings.HasPrefix(lower, conj+" ") {
			return strings.TrimSpace(chunk[len(conj):])
		}
	}
	return chunk
}

// LanguageStats 文本的文字系统统计
type LanguageStats struct {
	TotalChars      int     `json:"total_chars"`
	ArabicChars     int     `json:"arabic_chars"`
	CJKChars        int     `json:"cjk_chars"`
	LatinChars      int     `json:"latin_chars"`
	ArabicPercent   float64 `json:"arabic_percentage"`
	CJKPercent      float64 `json:"cjk_percentage"`
	LatinPercent    float64 `json:"latin_percentage"`
	PrimaryLanguage string  `json:"primary_language"`
}

// LanguageStats 统计文本中阿拉伯、中日韩和拉丁字符的数量与比例
func (m *MultilingualSplitter) LanguageStats(text string) LanguageStats {
	return ComputeLanguageStats(text)
}

// IsArabic 文本是否包含阿拉伯字符
func (m *MultilingualSplitter) IsArabic(text string) bool {
	return IsArabic(text)
}

// ComputeLanguageStats 按字符计数。多数者胜出；并列时偏向非拉丁文字
// （阿拉伯优先于中日韩）；没有任何字母时为 unknown。
func ComputeLanguageStats(text string) LanguageStats {
	var st LanguageStats
	for _, r := range text {
		st.TotalChars++
		switch {
		case isArabicRune(r):
			st.ArabicChars++
		case unicode.Is(unicode.Han, r):
			st.CJKChars++
		case unicode.Is(unicode.Latin, r):
			st.LatinChars++
		}
	}

	if st.TotalChars > 0 {
		total := float64(st.TotalChars)
		st.ArabicPercent = float64(st.ArabicChars) / total * 100
		st.CJKPercent = float64(st.CJKChars) / total * 100
		st.LatinPercent = float64(st.LatinChars) / total * 100
	}

	switch {
	case st.ArabicChars == 0 && st.CJKChars == 0 && st.LatinChars == 0:
		st.PrimaryLanguage = LanguageUnknown
	case st.ArabicChars >= st.CJKChars && st.ArabicChars >= st.LatinChars:
		st.PrimaryLanguage = LanguageArabic
	case st.CJKChars >= st.LatinChars:
		st.PrimaryLanguage = LanguageCJK
	default:
		st.PrimaryLanguage = LanguageEnglish
	}
	return st
}

// IsArabic 文本是否包含 U+0600..U+06FF 范围内的字符
func IsArabic(text string) bool {
	return strings.ContainsFunc(text, isArabicRune)
}

func isArabicRune(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

var _ TextSplitter = (*MultilingualSplitter)(nil)
