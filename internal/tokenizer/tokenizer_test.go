package tokenizer

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertWellFormed checks the §4.1 contract shared by every non-identity
// tokenizer: positions start at 0, are strictly increasing, and byte
// spans fall on valid UTF-8 boundaries in source.
func assertWellFormed(t *testing.T, source string, tokens []Token) {
	t.Helper()
	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position, "position must be strictly increasing from 0")
		require.True(t, tok.Start >= 0 && tok.End <= len(source) && tok.Start <= tok.End)
		assert.True(t, utf8.RuneStart(byteAt(source, tok.Start)), "start must be a rune boundary")
		if tok.End < len(source) {
			assert.True(t, utf8.RuneStart(byteAt(source, tok.End)), "end must be a rune boundary")
		}
	}
}

func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

func TestDefaultTokenizer_WellFormed(t *testing.T) {
	cases := []string{
		"Hello, World! This is a test.",
		"café déjà vu naïve",
		"日本語のテキスト",
		"",
		"   leading and trailing space   ",
	}
	tok := NewDefault()
	for _, c := range cases {
		tokens := tok.Tokenize(c)
		assertWellFormed(t, c, tokens)
	}
}

func TestDefaultTokenizer_NormalizesDiacriticsAndCase(t *testing.T) {
	tokens := NewDefault().Tokenize("Café NAIVE")
	require.Len(t, tokens, 2)
	assert.Equal(t, "cafe", tokens[0].Text)
	assert.Equal(t, "naive", tokens[1].Text)
}

func TestDefaultTokenizer_Stopwords(t *testing.T) {
	tok := NewDefaultWithStopwords([]string{"the", "a"})
	tokens := tok.Tokenize("the quick brown fox a dog")
	var texts []string
	for _, tk := range tokens {
		texts = append(texts, tk.Text)
	}
	assert.Equal(t, []string{"quick", "brown", "fox", "dog"}, texts)
	assertWellFormed(t, "the quick brown fox a dog", tokens)
}

func TestStemmedTokenizer_English(t *testing.T) {
	tok := NewStemmed(LanguageEnglish)
	tokens := tok.Tokenize("running runners ran")
	require.Len(t, tokens, 3)
	assertWellFormed(t, "running runners ran", tokens)
	// Snowball's English stemmer reduces "running"/"runners" to "run"/"runner".
	assert.Equal(t, "run", tokens[0].Text)
}

func TestBigramTokenizer(t *testing.T) {
	tok := NewBigram(NewDefault())
	tokens := tok.Tokenize("quick brown fox")
	require.Len(t, tokens, 2)
	assert.Equal(t, "quick brown", tokens[0].Text)
	assert.Equal(t, "brown fox", tokens[1].Text)
	assert.Equal(t, 1, tokens[0].Position)
	assert.Equal(t, 2, tokens[1].Position)
}

func TestTrigramTokenizer_TooShortYieldsNothing(t *testing.T) {
	tok := NewTrigram(NewDefault())
	assert.Empty(t, tok.Tokenize("one two"))
}

func TestURLTokenizer_PreservesDelimiters(t *testing.T) {
	tok := NewURL()
	src := "https://www.example.com/path/to/page?q=1"
	tokens := tok.Tokenize(src)
	assertWellFormed(t, src, tokens)

	var texts []string
	for _, tk := range tokens {
		texts = append(texts, tk.Text)
	}
	assert.Contains(t, texts, "https")
	assert.Contains(t, texts, ":")
	assert.Contains(t, texts, "/")
	assert.Contains(t, texts, "example")
}

func TestNewlineTokenizer(t *testing.T) {
	tok := NewNewline()
	tokens := tok.Tokenize("line one\nline two\r\nline three")
	require.Len(t, tokens, 3)
	assertWellFormed(t, "line one\nline two\r\nline three", tokens)
}

func TestWordTokenizer(t *testing.T) {
	tok := NewWord()
	tokens := tok.Tokenize("one  two\tthree")
	require.Len(t, tokens, 3)
	assertWellFormed(t, "one  two\tthree", tokens)
}

func TestIdentityTokenizer_SingleVerbatimToken(t *testing.T) {
	tok := NewIdentity()
	tokens := tok.Tokenize("Exact.Verbatim-String")
	require.Len(t, tokens, 1)
	assert.Equal(t, "Exact.Verbatim-String", tokens[0].Text)
}

func TestIdentityTokenizer_Empty(t *testing.T) {
	assert.Empty(t, NewIdentity().Tokenize(""))
}

func TestNewRegistryDispatch(t *testing.T) {
	assert.IsType(t, &DefaultTokenizer{}, New("default", LanguageEnglish))
	assert.IsType(t, &StemmedTokenizer{}, New("stemmed", LanguageEnglish))
	assert.IsType(t, &NGramTokenizer{}, New("bigram", LanguageEnglish))
	assert.IsType(t, &URLTokenizer{}, New("url", LanguageEnglish))
	assert.IsType(t, &IdentityTokenizer{}, New("identity", LanguageEnglish))
	assert.IsType(t, &IdentityTokenizer{}, New("unknown-kind", LanguageEnglish))
}
