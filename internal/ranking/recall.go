package ranking

import "context"

// RecallStage is the pipeline's input stage: scores were already
// computed by C5's collector, so Apply is a no-op pass-through that
// exists purely so the stage list is uniform and loggable.
type RecallStage struct {
	topN int
}

// NewRecallStage builds a recall stage with the given top_n (typically
// Unlimited, since C5 already bounded the candidate set).
func NewRecallStage(topN int) *RecallStage {
	return &RecallStage{topN: topN}
}

func (s *RecallStage) Name() string { return "recall" }
func (s *RecallStage) TopN() int    { return s.topN }

func (s *RecallStage) Apply(ctx context.Context, queryText string, docs []Webpage) ([]Webpage, error) {
	return docs, nil
}
