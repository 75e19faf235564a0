package rag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractKeywords(t *testing.T) {
	stop := stopwordSet(DefaultStopwords)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"english", "The cats, at the ZOO!! cats", []string{"cats", "zoo", "cats"}},
		{"arabic", "ذهب الطالب إلى المدرسة في الصباح", []string{"ذهب", "الطالب", "المدرسة", "الصباح"}},
		{"underscore and digits", "user_id 42 abc123", []string{"user_id", "abc123"}},
		{"only stopwords", "the is at on", []string{}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractKeywords(tt.text, DefaultMinTokenLength, stop))
		})
	}
}

func TestExtractKeywords_MinLength(t *testing.T) {
	got := ExtractKeywords("go is fun", 2, nil)
	assert.Equal(t, []string{"go", "is", "fun"}, got)
}

func TestKeywordScore(t *testing.T) {
	assert.Equal(t, 0.5, keywordScore([]string{"cats", "zoo"}, "Cats live here"))
	assert.Equal(t, 1.0, keywordScore([]string{"mammals"}, "cats are mammals"))
	assert.Equal(t, 0.0, keywordScore(nil, "anything"))
	assert.Equal(t, 0.0, keywordScore([]string{"stocks"}, "cats are mammals"))
}

func TestKeywordScore_RepeatedQueryTokens(t *testing.T) {
	keywords := ExtractKeywords("mammals mammals stocks", DefaultMinTokenLength, stopwordSet(DefaultStopwords))
	assert.Equal(t, []string{"mammals", "mammals", "stocks"}, keywords)
	assert.InDelta(t, 2.0/3.0, keywordScore(keywords, "cats are mammals"), 1e-12)
	assert.InDelta(t, 1.0/3.0, keywordScore(keywords, "stocks rose sharply"), 1e-12)
}
