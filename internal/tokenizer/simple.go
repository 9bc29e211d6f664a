package tokenizer

import "unicode"

// NewlineTokenizer splits on \n and \r (§4.1 "Newline").
type NewlineTokenizer struct{}

func NewNewline() *NewlineTokenizer { return &NewlineTokenizer{} }

func (t *NewlineTokenizer) Tokenize(text string) []Token {
	return splitOnRune(text, func(r rune) bool { return r == '\n' || r == '\r' })
}

// WordTokenizer splits on whitespace (§4.1 "Word").
type WordTokenizer struct{}

func NewWord() *WordTokenizer { return &WordTokenizer{} }

func (t *WordTokenizer) Tokenize(text string) []Token {
	return splitOnRune(text, unicode.IsSpace)
}

// IdentityTokenizer performs no tokenization: the whole input is a single
// verbatim token. Per §4.1, Identity is exempt from the strictly
// increasing-position/normalization requirements placed on the others.
type IdentityTokenizer struct{}

func NewIdentity() *IdentityTokenizer { return &IdentityTokenizer{} }

func (t *IdentityTokenizer) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}
	return []Token{{Text: text, Start: 0, End: len(text), Position: 0}}
}

// splitOnRune splits text on runs of runes matching isDelim, returning the
// non-delimiter segments as tokens with strictly increasing positions.
func splitOnRune(text string, isDelim func(rune) bool) []Token {
	var out []Token
	start := -1
	pos := 0
	for i, r := range text {
		if isDelim(r) {
			if start != -1 {
				out = append(out, Token{Text: text[start:i], Start: start, End: i, Position: pos})
				pos++
				start = -1
			}
			continue
		}
		if start == -1 {
			start = i
		}
	}
	if start != -1 {
		out = append(out, Token{Text: text[start:], Start: start, End: len(text), Position: pos})
	}
	return out
}
