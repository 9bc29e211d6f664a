package tokenizer

// DefaultTokenizer implements the §4.1 "Default" analyzer: script-aware
// split, NFKD normalize, diacritic strip, lowercase, optional stopwords.
type DefaultTokenizer struct {
	// Stopwords, if non-nil, are dropped from the stream. Dropping a
	// token does not reuse its position: positions are assigned after
	// filtering so that remaining tokens keep strictly increasing,
	// contiguous positions (matching a phrase query's slop expectations
	// against the filtered stream it was built from).
	Stopwords map[string]struct{}
}

// NewDefault returns a DefaultTokenizer with no stopword filtering.
func NewDefault() *DefaultTokenizer {
	return &DefaultTokenizer{}
}

// NewDefaultWithStopwords returns a DefaultTokenizer that drops any token
// whose normalized text is in stopwords.
func NewDefaultWithStopwords(stopwords []string) *DefaultTokenizer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[w] = struct{}{}
	}
	return &DefaultTokenizer{Stopwords: set}
}

func (t *DefaultTokenizer) Tokenize(text string) []Token {
	raw := splitWords(text)
	out := make([]Token, 0, len(raw))
	pos := 0
	for _, tok := range raw {
		norm := normalizeToken(tok.Text)
		if norm == "" {
			continue
		}
		if t.Stopwords != nil {
			if _, skip := t.Stopwords[norm]; skip {
				continue
			}
		}
		out = append(out, Token{Text: norm, Start: tok.Start, End: tok.End, Position: pos})
		pos++
	}
	return out
}
