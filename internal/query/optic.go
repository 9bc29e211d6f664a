package query

import "github.com/stract-search/searchcore/internal/schema"

// Optic is a compiled ranking policy: coefficient overrides plus
// host/site rules that boost, discard, or require matches, per §4.3.
// Signal names are plain strings here (rather than the closed enum
// internal/signal defines) so this package has no dependency on the
// signal package; internal/signal maps names to its enum at merge time.
type Optic struct {
	Name         string
	Coefficients map[string]float64
	Rules        []Rule
	// DiscardNonMatching requires every returned document to satisfy at
	// least one Rule with Action RuleBoost or RuleRequire; if true and
	// no rule matches a candidate, it is excluded.
	DiscardNonMatching bool
}

// RuleAction is the effect a Rule has on a matching document.
type RuleAction int

const (
	RuleBoost RuleAction = iota
	RuleDiscard
	RuleRequire
)

// Rule conditions on a site or host and applies Action with Delta added
// to (or, for discard, subtracted enough to exclude) the final score.
// Per §4.3's resolved Open Question, site rules are checked before host
// rules: a more specific site match always takes precedence over a
// host-wide rule for the same document.
type Rule struct {
	Action RuleAction
	Site   string // exact normalized host+path prefix match, empty if unused
	Host   string // normalized host match, empty if unused
	Delta  float64
}

// Matches reports whether the rule's site/host condition applies to a
// document with the given normalized site string and host.
func (r Rule) Matches(site, host string) bool {
	if r.Site != "" {
		return r.Site == site
	}
	if r.Host != "" {
		return r.Host == host
	}
	return false
}

// Resolve evaluates all rules against (site, host) in site-before-host
// precedence order and returns the winning rule's effect, if any.
// Multiple site rules for the same document are not expected to
// disagree; the first match in declaration order wins.
func (o *Optic) Resolve(site, host string) (matched bool, action RuleAction, delta float64) {
	for _, r := range o.Rules {
		if r.Site != "" && r.Matches(site, host) {
			return true, r.Action, r.Delta
		}
	}
	for _, r := range o.Rules {
		if r.Site == "" && r.Host != "" && r.Matches(site, host) {
			return true, r.Action, r.Delta
		}
	}
	return false, 0, 0
}

// CompiledQuery bundles the parsed boolean tree with the optic, if any,
// active for this search. NewCompiledQuery is the stable entry point
// callers (index.SearchInitial, the coordinator) construct against.
type CompiledQuery struct {
	Root  Node
	Optic *Optic
}

// NewCompiledQuery parses text against defaultField and attaches optic
// (nil for no optic).
func NewCompiledQuery(text string, defaultField schema.FieldName, optic *Optic) (*CompiledQuery, error) {
	root, err := Parse(text, defaultField)
	if err != nil {
		return nil, err
	}
	return &CompiledQuery{Root: root, Optic: optic}, nil
}
