package query

import (
	"strings"

	"github.com/stract-search/searchcore/internal/schema"
)

// clause is one parsed surface-syntax element before it is folded into
// the boolean tree: a bare term, a quoted phrase, or a field-qualified
// version of either, optionally negated.
type clause struct {
	field    schema.FieldName
	text     string
	isPhrase bool
	negate   bool
}

// Parse reads free-text query syntax per §4.3: whitespace-separated
// terms, "quoted phrases", "-negated" terms/phrases, and
// "field:value"/"field:\"a b\"" field qualifiers. defaultField is used
// for unqualified terms. An empty or whitespace-only text parses to a
// Const(1) universal match, per the "invalid/empty query" edge case of
// §6 (not an error).
func Parse(text string, defaultField schema.FieldName) (Node, error) {
	clauses := splitClauses(text)
	if len(clauses) == 0 {
		return Const{Score: 1}, nil
	}

	var positive []Node
	var negative []Node
	for _, c := range clauses {
		field := c.field
		if field == "" {
			field = defaultField
		}
		var node Node
		if c.isPhrase {
			node = Phrase{Field: field, Terms: strings.Fields(c.text)}
		} else {
			node = Term{Field: field, Text: c.text}
		}
		if c.negate {
			negative = append(negative, node)
		} else {
			positive = append(positive, node)
		}
	}

	var pos Node
	switch len(positive) {
	case 0:
		pos = Const{Score: 1}
	case 1:
		pos = positive[0]
	default:
		pos = Intersection{Clauses: positive}
	}

	if len(negative) == 0 {
		return pos, nil
	}
	var neg Node
	if len(negative) == 1 {
		neg = negative[0]
	} else {
		neg = Union{Clauses: negative}
	}
	return Not{Positive: pos, Negative: neg}, nil
}

// splitClauses tokenizes raw query syntax into clauses, honoring double
// quotes as phrase delimiters and a leading '-' as negation. A colon
// inside a token before any quote/space splits it into field:value.
func splitClauses(text string) []clause {
	var clauses []clause
	runes := []rune(text)
	i := 0
	n := len(runes)
	for i < n {
		for i < n && runes[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}
		negate := false
		if runes[i] == '-' && i+1 < n {
			negate = true
			i++
		}

		var field schema.FieldName
		start := i
		for i < n && runes[i] != ' ' && runes[i] != ':' && runes[i] != '"' {
			i++
		}
		if i < n && runes[i] == ':' && i > start {
			field = schema.FieldName(string(runes[start:i]))
			i++
		} else {
			i = start
		}

		if i < n && runes[i] == '"' {
			i++
			phraseStart := i
			for i < n && runes[i] != '"' {
				i++
			}
			phrase := string(runes[phraseStart:i])
			if i < n {
				i++
			}
			if strings.TrimSpace(phrase) == "" {
				continue
			}
			clauses = append(clauses, clause{field: field, text: phrase, isPhrase: true, negate: negate})
			continue
		}

		wordStart := i
		for i < n && runes[i] != ' ' {
			i++
		}
		word := string(runes[wordStart:i])
		if word == "" {
			continue
		}
		clauses = append(clauses, clause{field: field, text: word, negate: negate})
	}
	return clauses
}
