package tokenizer

import "github.com/stract-search/searchcore/internal/schema"

// New constructs the Tokenizer named by kind. lang selects the stemming
// algorithm when kind is schema.TokenizerStemmed; it is ignored otherwise.
func New(kind schema.TokenizerKind, lang Language) Tokenizer {
	switch kind {
	case schema.TokenizerDefault:
		return NewDefault()
	case schema.TokenizerStemmed:
		return NewStemmed(lang)
	case schema.TokenizerBigram:
		return NewBigram(NewDefault())
	case schema.TokenizerTrigram:
		return NewTrigram(NewDefault())
	case schema.TokenizerURL:
		return NewURL()
	case schema.TokenizerNewline:
		return NewNewline()
	case schema.TokenizerWord:
		return NewWord()
	case schema.TokenizerIdentity, schema.TokenizerNone:
		return NewIdentity()
	default:
		return NewIdentity()
	}
}
