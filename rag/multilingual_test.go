package rag

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/BaSui01/ragcore/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMultilingual(t *testing.T, size, overlap int) *MultilingualSplitter {
	t.Helper()
	s, err := NewMultilingualSplitter(SplitterConfig{ChunkSize: size, ChunkOverlap: overlap}, nil)
	require.NoError(t, err)
	return s
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"arabic diacritics", "مَرْحَبًا", "مرحبا"},
		{"superscript alef", "هٰذا", "هذا"},
		{"alef variants", "أحمد إلى آدم ٱلكتاب", "احمد الى ادم الكتاب"},
		{"teh marbuta", "مدرسة", "مدرسه"},
		{"hamza carriers kept", "مسؤول", "مسؤول"},
		{"latin accents", "café naïve", "cafe naive"},
		{"whitespace", "a  \t b\n\n\n\nc\n   d  ", "a b\n\nc\nd"},
		{"cjk untouched", "你好，世界", "你好，世界"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}
}

func TestStripLeadingConjunction(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"و الكتاب", "الكتاب"},
		{"ثم ذهب", "ذهب"},
		{"أو القطة", "القطة"},
		{"او القطة", "القطة"},
		{"لكن هذا", "هذا"},
		{"And then we left", "then we left"},
		{"android phone", "android phone"},
		{"وقت", "وقت"},
		{"or", "or"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripLeadingConjunction(tt.in), "input %q", tt.in)
	}
}

func TestMultilingualSplitter_RemovesLeadingConjunction(t *testing.T) {
	s := newTestMultilingual(t, 100, 0)
	chunks, err := s.SplitText("  and   so on ")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "so on", chunks[0].Content)
	assert.Equal(t, 5, chunks[0].CharCount)
}

func TestMultilingualSplitter_SplitsOnConjunctions(t *testing.T) {
	s := newTestMultilingual(t, 12, 0)
	chunks, err := s.SplitText("apples and oranges and pears")
	require.NoError(t, err)
	assert.Equal(t, []string{"apples and", "oranges and", "pears"}, contents(chunks))
}

func TestMultilingualSplitter_FoldedArabicOr(t *testing.T) {
	s := newTestMultilingual(t, 100, 0)

	// أو 归一化为 او 后仍作为块首连接词去掉
	chunks, err := s.SplitText("أو القطة تنام في البيت")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "القطه تنام في البيت", chunks[0].Content)

	// 也作为分隔符生效
	s = newTestMultilingual(t, 15, 0)
	chunks, err = s.SplitText("الولد يقرأ أو الطالب يكتب")
	require.NoError(t, err)
	assert.Equal(t, []string{"الولد يقرا او", "الطالب يكتب"}, contents(chunks))
}

func TestMultilingualSplitter_EmptyAfterNormalization(t *testing.T) {
	s := newTestMultilingual(t, 100, 0)
	_, err := s.SplitText("َُ")
	assert.True(t, types.IsValidation(err))
}

func TestMultilingualSplitter_MixedScripts(t *testing.T) {
	s := newTestMultilingual(t, 40, 10)
	text := strings.Repeat("الطالب يدرس في المكتبة، و المعلم يشرح الدرس. ", 5) +
		strings.Repeat("学生在图书馆学习。", 5) +
		strings.Repeat("The student reads and the librarian explains. ", 5)

	chunks, err := s.ChunksWithMetadata(text, "mixed")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.NotEmpty(t, c.Content)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 40)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, len(chunks), c.TotalChunks)
		for _, conj := range leadingConjunctions {
			assert.False(t, strings.HasPrefix(strings.ToLower(c.Content), conj+" "),
				"chunk %d starts with %q: %q", i, conj, c.Content)
		}
	}

	overlapped, err := s.SplitWithOverlap(text)
	require.NoError(t, err)
	assert.Len(t, overlapped, len(chunks))
}

func TestLanguageStats(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		primary string
	}{
		{"english", "Hello", LanguageEnglish},
		{"arabic", "مرحبا", LanguageArabic},
		{"cjk", "你好世界", LanguageCJK},
		{"arabic latin tie", "ab مر", LanguageArabic},
		{"cjk latin tie", "ab 你好", LanguageCJK},
		{"arabic cjk tie", "مر 你好", LanguageArabic},
		{"no letters", "123 !!", LanguageUnknown},
		{"empty", "", LanguageUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.primary, ComputeLanguageStats(tt.text).PrimaryLanguage)
		})
	}
}

func TestLanguageStats_Counts(t *testing.T) {
	s := newTestMultilingual(t, 100, 0)
	st := s.LanguageStats("abcd مرحبا")

	assert.Equal(t, 10, st.TotalChars)
	assert.Equal(t, 4, st.LatinChars)
	assert.Equal(t, 5, st.ArabicChars)
	assert.Equal(t, 0, st.CJKChars)
	assert.InDelta(t, 40.0, st.LatinPercent, 1e-9)
	assert.InDelta(t, 50.0, st.ArabicPercent, 1e-9)
	assert.Equal(t, LanguageArabic, st.PrimaryLanguage)

	empty := s.LanguageStats("")
	assert.Zero(t, empty.ArabicPercent)
	assert.Zero(t, empty.LatinPercent)
}

func TestIsArabic(t *testing.T) {
	s := newTestMultilingual(t, 100, 0)
	assert.False(t, s.IsArabic("hello"))
	assert.True(t, s.IsArabic("hello مرحبا"))
	assert.False(t, IsArabic(""))
}
