package rag

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMinTokenLength 关键词最小长度（字符）
const DefaultMinTokenLength = 3

// DefaultStopwords 英语与阿拉伯语停用词
var DefaultStopwords = []string{
	"the", "is", "at", "which", "on",
	"في", "من", "إلى", "على", "هو", "هي",
}

func stopwordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// ExtractKeywords 从查询中提取关键词：转小写，非字母/数字/附加符号/下划线替换为空格，
// 丢弃短词与停用词。重复的词保留，每次出现都计入得分的分母。
func ExtractKeywords(text string, minLen int, stopwords map[string]struct{}) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			return r
		}
		return ' '
	}, strings.ToLower(text))

	words := strings.Fields(cleaned)
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		keywords = append(keywords, w)
	}
	return keywords
}

// keywordScore 命中关键词数 / 关键词总数，按小写子串匹配
func keywordScore(keywords []string, content string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	lower := strings.ToLower(content)
	matches := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords))
}
