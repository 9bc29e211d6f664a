// Package ranking implements the multi-stage ranking pipeline of §4.6:
// recall (already-computed input) → LambdaMART → cross-encoder re-rank
// → modifiers, each stage re-sorting by total score and truncating to
// its configured top_n.
package ranking

import (
	"context"
	"sort"

	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/signal"
)

// Webpage is one candidate carried through the pipeline: its address,
// the raw signal values and effective coefficients computed upstream,
// and the running total score. Title/Snippet are populated before the
// cross-encoder stage runs.
type Webpage struct {
	Addr         index.DocAddress
	Values       signal.Values
	Coefficients signal.Coefficient
	Score        float64
	Title        string
	Snippet      string
}

// Unlimited marks a stage's TopN as having no truncation.
const Unlimited = -1

// Stage is one pipeline step: it may rewrite scores (writing new signal
// values) but must return documents re-sorted descending by Score.
type Stage interface {
	Name() string
	TopN() int
	Apply(ctx context.Context, queryText string, docs []Webpage) ([]Webpage, error)
}

// RunPipeline applies stages in order, sorting and truncating to each
// stage's TopN between steps, per §4.6.
func RunPipeline(ctx context.Context, stages []Stage, queryText string, docs []Webpage) ([]Webpage, error) {
	current := docs
	for _, stage := range stages {
		next, err := stage.Apply(ctx, queryText, current)
		if err != nil {
			// §7 model failure: the stage is skipped, prior ordering preserved.
			continue
		}
		sortByScore(next)
		if n := stage.TopN(); n != Unlimited && n < len(next) {
			next = next[:n]
		}
		current = next
	}
	return current, nil
}

func sortByScore(docs []Webpage) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Score != docs[j].Score {
			return docs[i].Score > docs[j].Score
		}
		return docs[i].Addr.Less(docs[j].Addr)
	})
}
