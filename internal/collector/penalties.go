package collector

import "github.com/stract-search/searchcore/internal/schema"

// Penalties holds the collector-local collision penalties of §4.5,
// subtracted from a candidate's score the first time it collides with
// an already-seen site/title/url key in the same collector (a zero key
// counts as absent and never collides). This makes
// near-duplicate collisions unlikely to survive into the final dedup
// pass without outright excluding them (a later, much better-scoring
// duplicate can still win).
type Penalties struct {
	Site  float64
	Title float64
	URL   float64
}

// DefaultPenalties returns §4.5's configured defaults.
func DefaultPenalties() Penalties {
	return Penalties{Site: 0.3, Title: 2.0, URL: 20.0}
}

func (p Penalties) collisionPenalty(keys schema.DedupKeys, seenSite, seenTitle, seenURL map[uint64]struct{}) float64 {
	var total float64
	if _, ok := seenSite[keys.Site]; ok && keys.Site != 0 {
		total += p.Site
	}
	if _, ok := seenTitle[keys.Title]; ok && keys.Title != 0 {
		total += p.Title
	}
	if _, ok := seenURL[keys.URL]; ok && keys.URL != 0 {
		total += p.URL
	}
	return total
}
