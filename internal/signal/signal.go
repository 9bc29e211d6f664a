// Package signal computes the closed set of per-document scalar
// features consumed by the ranking pipeline, per §4.4. The signal set
// is a fixed enumeration backed by an array, never a map, so scoring a
// candidate never touches the heap beyond the array itself.
package signal

import "fmt"

// Enum is the discriminant for one signal. Values are stable across a
// deployment: they are never persisted, only used in-process within a
// single query's lifetime.
type Enum int

const (
	BM25Title Enum = iota
	BM25CleanBody
	BM25AllBody
	BM25URL
	BM25Site
	BM25Domain
	BM25BacklinkText
	MinTitleSlop
	MinCleanBodySlop
	HostCentrality
	PageCentrality
	TrackerScore
	UpdateTimestampRecency
	URLDepth
	URLSlashCount
	QueryTermCount
	InboundSimilarity
	TitleEmbeddingSimilarity
	KeywordEmbeddingSimilarity
	LambdaMART
	CrossEncoderTitle
	CrossEncoderSnippet

	numSignals
)

// NumSignals is the total count of the closed signal enumeration.
const NumSignals = int(numSignals)

var names = [numSignals]string{
	BM25Title:                  "bm25_title",
	BM25CleanBody:              "bm25_clean_body",
	BM25AllBody:                "bm25_all_body",
	BM25URL:                    "bm25_url",
	BM25Site:                   "bm25_site",
	BM25Domain:                 "bm25_domain",
	BM25BacklinkText:           "bm25_backlink_text",
	MinTitleSlop:               "min_title_slop",
	MinCleanBodySlop:           "min_clean_body_slop",
	HostCentrality:             "host_centrality",
	PageCentrality:             "page_centrality",
	TrackerScore:               "tracker_score",
	UpdateTimestampRecency:     "update_timestamp_recency",
	URLDepth:                   "url_depth",
	URLSlashCount:              "url_slash_count",
	QueryTermCount:             "query_term_count",
	InboundSimilarity:          "inbound_similarity",
	TitleEmbeddingSimilarity:   "title_embedding_similarity",
	KeywordEmbeddingSimilarity: "keyword_embedding_similarity",
	LambdaMART:                 "lambdamart",
	CrossEncoderTitle:          "cross_encoder_title",
	CrossEncoderSnippet:        "cross_encoder_snippet",
}

func (e Enum) String() string {
	if e < 0 || int(e) >= NumSignals {
		return fmt.Sprintf("signal(%d)", int(e))
	}
	return names[e]
}

// ByName resolves a signal's wire/config name back to its enum value,
// used when an optic's coefficient overrides arrive as a
// map[string]float64 from internal/query.
func ByName(name string) (Enum, bool) {
	for i, n := range names {
		if n == name {
			return Enum(i), true
		}
	}
	return 0, false
}

// defaultCoefficients holds each signal's default weight, per §4.4:
// "every signal has a default coefficient; optics may override."
var defaultCoefficients = [numSignals]float64{
	BM25Title:                  2.0,
	BM25CleanBody:              1.0,
	BM25AllBody:                0.5,
	BM25URL:                    0.3,
	BM25Site:                   0.3,
	BM25Domain:                 0.3,
	BM25BacklinkText:           0.7,
	MinTitleSlop:               1.5,
	MinCleanBodySlop:           1.0,
	HostCentrality:             1.5,
	PageCentrality:             1.0,
	TrackerScore:               -0.5,
	UpdateTimestampRecency:     0.5,
	URLDepth:                   -0.1,
	URLSlashCount:              -0.05,
	QueryTermCount:             0.2,
	InboundSimilarity:          1.0,
	TitleEmbeddingSimilarity:   1.0,
	KeywordEmbeddingSimilarity: 0.8,
	LambdaMART:                 1.0,
	CrossEncoderTitle:          1.0,
	CrossEncoderSnippet:        1.0,
}

// Coefficient is a fixed-size table of per-signal weights. The zero
// value is all-zero, not the defaults; use DefaultCoefficients for a
// populated table.
type Coefficient [numSignals]float64

// DefaultCoefficients returns a table seeded with each signal's default
// weight.
func DefaultCoefficients() Coefficient {
	return Coefficient(defaultCoefficients)
}

// MergeInto sums override into c in place, per §4.4: "SignalCoefficient
// merge_into sums overrides (so stacked optics compose)." Only entries
// present in override (non-zero by convention of the caller) are added;
// callers building override from optic deltas should leave unset
// signals at zero.
func (c *Coefficient) MergeInto(override Coefficient) {
	for i := range c {
		c[i] += override[i]
	}
}

// Get returns the coefficient for signal s.
func (c Coefficient) Get(s Enum) float64 { return c[s] }

// Set assigns the coefficient for signal s.
func (c *Coefficient) Set(s Enum, v float64) { c[s] = v }

// Values is a fixed-size table of each signal's raw computed value for
// one document, parallel in shape to Coefficient.
type Values [numSignals]float64

// Get returns the raw value for signal s, or 0 if never computed.
func (v Values) Get(s Enum) float64 { return v[s] }

// Set assigns the raw value for signal s.
func (v *Values) Set(s Enum, val float64) { v[s] = val }

// Score computes the weighted sum Σ coefficient[s]·value[s] across every
// signal, the "initial scoring sum" of §4.4.
func Score(coeff Coefficient, values Values) float64 {
	var total float64
	for i := 0; i < NumSignals; i++ {
		total += coeff[i] * values[i]
	}
	return total
}
