package tokenizer

import "strings"

// NGramTokenizer wraps an underlying tokenizer and concatenates n
// consecutive non-empty tokens into a single n-gram token, per §4.1:
// "positions preserved as rightmost-index + span-of-leftmost-to-rightmost".
type NGramTokenizer struct {
	base Tokenizer
	n    int
}

// NewBigram wraps base as a bigram (n=2) tokenizer.
func NewBigram(base Tokenizer) *NGramTokenizer { return &NGramTokenizer{base: base, n: 2} }

// NewTrigram wraps base as a trigram (n=3) tokenizer.
func NewTrigram(base Tokenizer) *NGramTokenizer { return &NGramTokenizer{base: base, n: 3} }

func (t *NGramTokenizer) Tokenize(text string) []Token {
	unigrams := t.base.Tokenize(text)
	if len(unigrams) < t.n {
		return nil
	}

	out := make([]Token, 0, len(unigrams)-t.n+1)
	for i := 0; i+t.n <= len(unigrams); i++ {
		window := unigrams[i : i+t.n]
		texts := make([]string, t.n)
		for j, w := range window {
			texts[j] = w.Text
		}
		leftmost, rightmost := window[0], window[t.n-1]
		out = append(out, Token{
			Text:     strings.Join(texts, " "),
			Start:    leftmost.Start,
			End:      rightmost.End,
			Position: rightmost.Position,
		})
	}
	return out
}
