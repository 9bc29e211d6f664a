// Package tokenizer implements the analyzer chain of §4.1: script-aware
// split, Unicode NFKD normalization, diacritic stripping, lowercasing, and
// optional stopword/stemmer stages, exposed as the Default/Stemmed/
// Bigram/Trigram/URL/Newline/Word/Identity tokenizers.
package tokenizer

// Token is one output of a tokenizer: normalized text, its byte span in
// the original source string, and its position within the token stream.
type Token struct {
	Text     string
	Start    int
	End      int
	Position int
}

// Tokenizer turns source text into a sequence of tokens. Implementations
// other than Identity must emit strictly increasing positions (starting
// at 0, except n-gram tokenizers, whose positions are those of each
// n-gram's rightmost token) and byte spans that fall on UTF-8 rune
// boundaries in text.
type Tokenizer interface {
	Tokenize(text string) []Token
}
