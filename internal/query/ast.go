// Package query implements the search query compiler of §4.3: parsing
// free text into a boolean term tree and compiling optics into score
// modifiers layered on top of it.
package query

import "github.com/stract-search/searchcore/internal/schema"

// Node is one node of a compiled query's boolean tree. The concrete
// types below are the closed set named in §4.3: Term, Phrase, Union,
// Intersection, Not, Boost, Const.
type Node interface {
	isNode()
}

// Term matches a single token in one field.
type Term struct {
	Field schema.FieldName
	Text  string
}

// Phrase matches an ordered run of tokens in one field, evaluated via
// the index's min-slop algorithm rather than simple intersection.
type Phrase struct {
	Field schema.FieldName
	Terms []string
}

// Union matches a document satisfying any clause (OR).
type Union struct {
	Clauses []Node
}

// Intersection matches a document satisfying every clause (AND).
type Intersection struct {
	Clauses []Node
}

// Not matches documents satisfying Positive but not Negative. A bare
// negation (no positive clause, e.g. "-spam" alone) is represented with
// Positive set to a Const(1) universal match.
type Not struct {
	Positive Node
	Negative Node
}

// Boost scales the contribution of Node by Factor without changing
// which documents match. Optic "boost" rules compile to this.
type Boost struct {
	Node   Node
	Factor float64
}

// Const matches every document with a fixed base score, used as the
// universal placeholder and for optic-only queries with no free text.
type Const struct {
	Score float64
}

func (Term) isNode()         {}
func (Phrase) isNode()       {}
func (Union) isNode()        {}
func (Intersection) isNode() {}
func (Not) isNode()          {}
func (Boost) isNode()        {}
func (Const) isNode()        {}
