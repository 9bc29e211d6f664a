package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes to NFKD and drops combining marks
// (diacritics); normalizeToken lowercases its output. Used by the
// Default tokenizer and the tokenizers built on it (Stemmed, Bigram,
// Trigram); the URL, Newline and Word tokenizers do not apply it.
var diacriticStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// normalizeToken strips diacritics and lowercases s. Errors from the
// transform are not possible for well-formed UTF-8 input; a failed
// transform falls back to the unmodified, lowercased string.
func normalizeToken(s string) string {
	out, _, err := transform.String(diacriticStripper, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// isWordRune reports whether r should be treated as part of a word for the
// purposes of script-aware splitting: letters, digits, and marks.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// splitWords splits text into maximal runs of word runes, returning each
// run's original (unnormalized) text and byte span. This is the
// script-aware split stage: scripts are not segmented further (no
// dictionary-based CJK segmentation), but run boundaries always fall on
// transitions between word and non-word runes, which are always valid
// UTF-8 boundaries.
func splitWords(text string) []Token {
	var tokens []Token
	start := -1
	pos := 0
	for i, r := range text {
		if isWordRune(r) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			tokens = append(tokens, Token{Text: text[start:i], Start: start, End: i, Position: pos})
			pos++
			start = -1
		}
	}
	if start != -1 {
		tokens = append(tokens, Token{Text: text[start:], Start: start, End: len(text), Position: pos})
	}
	return tokens
}
