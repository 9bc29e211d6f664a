package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stract-search/searchcore/internal/schema"
)

func TestParse_SingleTerm(t *testing.T) {
	node, err := Parse("hello", schema.FieldAllBody)
	require.NoError(t, err)
	term, ok := node.(Term)
	require.True(t, ok)
	assert.Equal(t, "hello", term.Text)
	assert.Equal(t, schema.FieldAllBody, term.Field)
}

func TestParse_MultipleTermsBecomeIntersection(t *testing.T) {
	node, err := Parse("hello world", schema.FieldAllBody)
	require.NoError(t, err)
	inter, ok := node.(Intersection)
	require.True(t, ok)
	assert.Len(t, inter.Clauses, 2)
}

func TestParse_QuotedPhrase(t *testing.T) {
	node, err := Parse(`"hello world"`, schema.FieldAllBody)
	require.NoError(t, err)
	phrase, ok := node.(Phrase)
	require.True(t, ok)
	assert.Equal(t, []string{"hello", "world"}, phrase.Terms)
}

func TestParse_FieldQualifier(t *testing.T) {
	node, err := Parse("title:hello", schema.FieldAllBody)
	require.NoError(t, err)
	term, ok := node.(Term)
	require.True(t, ok)
	assert.Equal(t, schema.FieldTitle, term.Field)
	assert.Equal(t, "hello", term.Text)
}

func TestParse_NegatedTerm(t *testing.T) {
	node, err := Parse("hello -spam", schema.FieldAllBody)
	require.NoError(t, err)
	not, ok := node.(Not)
	require.True(t, ok)
	assert.Equal(t, Term{Field: schema.FieldAllBody, Text: "hello"}, not.Positive)
	assert.Equal(t, Term{Field: schema.FieldAllBody, Text: "spam"}, not.Negative)
}

func TestParse_BareNegationOnly(t *testing.T) {
	node, err := Parse("-spam", schema.FieldAllBody)
	require.NoError(t, err)
	not, ok := node.(Not)
	require.True(t, ok)
	assert.Equal(t, Const{Score: 1}, not.Positive)
}

func TestParse_EmptyQueryIsUniversalMatch(t *testing.T) {
	node, err := Parse("   ", schema.FieldAllBody)
	require.NoError(t, err)
	assert.Equal(t, Const{Score: 1}, node)
}

func TestOptic_SitePrecedesHost(t *testing.T) {
	optic := &Optic{
		Rules: []Rule{
			{Action: RuleDiscard, Host: "spam.example", Delta: 0},
			{Action: RuleBoost, Site: "good.example/docs", Delta: 5},
		},
	}
	matched, action, delta := optic.Resolve("good.example/docs", "good.example")
	assert.True(t, matched)
	assert.Equal(t, RuleBoost, action)
	assert.Equal(t, 5.0, delta)

	matched, action, _ = optic.Resolve("spam.example/x", "spam.example")
	assert.True(t, matched)
	assert.Equal(t, RuleDiscard, action)
}

func TestOptic_NoMatch(t *testing.T) {
	optic := &Optic{Rules: []Rule{{Action: RuleDiscard, Host: "spam.example"}}}
	matched, _, _ := optic.Resolve("ok.example/x", "ok.example")
	assert.False(t, matched)
}

func TestCache_ReturnsSameCompiledQueryForSameInput(t *testing.T) {
	cache, err := NewCache(16)
	require.NoError(t, err)
	a, err := cache.CompileCached("hello world", schema.FieldAllBody, nil)
	require.NoError(t, err)
	b, err := cache.CompileCached("hello world", schema.FieldAllBody, nil)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestCache_DifferentOpticsDoNotCollide(t *testing.T) {
	cache, err := NewCache(16)
	require.NoError(t, err)
	opticA := &Optic{Name: "a"}
	opticB := &Optic{Name: "b"}
	a, err := cache.CompileCached("hello", schema.FieldAllBody, opticA)
	require.NoError(t, err)
	b, err := cache.CompileCached("hello", schema.FieldAllBody, opticB)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}
