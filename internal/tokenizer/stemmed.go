package tokenizer

import (
	"github.com/blevesearch/snowballstem"
	"github.com/blevesearch/snowballstem/english"
	"github.com/blevesearch/snowballstem/french"
	"github.com/blevesearch/snowballstem/german"
)

// Language selects the stemming algorithm for StemmedTokenizer.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageFrench  Language = "fr"
	LanguageGerman  Language = "de"
)

// stemFunc runs one snowball stemming pass over env in place.
type stemFunc func(env *snowballstem.Env) bool

var stemmers = map[Language]stemFunc{
	LanguageEnglish: english.Stem,
	LanguageFrench:  french.Stem,
	LanguageGerman:  german.Stem,
}

// StemmedTokenizer runs DefaultTokenizer, then a language-specific
// snowball stemmer over each surviving token (§4.1 "Stemmed").
type StemmedTokenizer struct {
	base *DefaultTokenizer
	stem stemFunc
}

// NewStemmed returns a StemmedTokenizer for lang, falling back to English
// stemming if lang is not recognized (language auto-detection itself is
// an indexer-time concern, out of scope for the search core).
func NewStemmed(lang Language) *StemmedTokenizer {
	fn, ok := stemmers[lang]
	if !ok {
		fn = english.Stem
	}
	return &StemmedTokenizer{base: NewDefault(), stem: fn}
}

func (t *StemmedTokenizer) Tokenize(text string) []Token {
	tokens := t.base.Tokenize(text)
	out := make([]Token, len(tokens))
	for i, tok := range tokens {
		env := snowballstem.NewEnv(tok.Text)
		t.stem(env)
		tok.Text = env.Current()
		out[i] = tok
	}
	return out
}
