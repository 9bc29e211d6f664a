package ranking

import (
	"context"

	"github.com/stract-search/searchcore/internal/signal"
)

// inboundSimilaritySmoothing is the constant added to the raw inbound
// similarity signal before it multiplies the score, carried verbatim
// from original_source's ranking/pipeline/modifiers/inbound_similarity.rs
// so a document with zero inbound similarity still keeps most of its
// score rather than being zeroed out.
const inboundSimilaritySmoothing = 8.0

// InboundSimilarityModifier multiplies each document's score by
// (inbound_similarity + 8.0), per §4.6. Additional modifiers can be
// added to the pipeline without changing the Stage contract.
type InboundSimilarityModifier struct {
	topN int
}

// NewInboundSimilarityModifier builds the modifier stage.
func NewInboundSimilarityModifier(topN int) *InboundSimilarityModifier {
	return &InboundSimilarityModifier{topN: topN}
}

func (m *InboundSimilarityModifier) Name() string { return "inbound_similarity_modifier" }
func (m *InboundSimilarityModifier) TopN() int     { return m.topN }

func (m *InboundSimilarityModifier) Apply(ctx context.Context, queryText string, docs []Webpage) ([]Webpage, error) {
	out := make([]Webpage, len(docs))
	for i, doc := range docs {
		doc.Score *= doc.Values.Get(signal.InboundSimilarity) + inboundSimilaritySmoothing
		out[i] = doc
	}
	return out, nil
}
