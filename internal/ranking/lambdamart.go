package ranking

import (
	"context"

	"github.com/stract-search/searchcore/internal/signal"
)

const lambdaMARTDefaultTopN = 20

// Model predicts a score from a document's signal values. Ensemble
// (the real LambdaMART tree evaluator) and LinearScorer (the
// configuration-free fallback of original_source's ranking/models/linear.rs)
// both implement it.
type Model interface {
	Predict(values signal.Values) float64
}

// TreeNode is one node of a regression tree: either an internal split
// on a signal's value against Threshold, or a Leaf with a Value.
type TreeNode struct {
	Leaf      bool
	Value     float64
	Feature   signal.Enum
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
}

func (n *TreeNode) eval(values signal.Values) float64 {
	if n.Leaf {
		return n.Value
	}
	if values.Get(n.Feature) <= n.Threshold {
		return n.Left.eval(values)
	}
	return n.Right.eval(values)
}

// Ensemble is a gradient-boosted tree ensemble: the prediction is the
// learning-rate-scaled sum of every tree's leaf value.
type Ensemble struct {
	Trees        []*TreeNode
	LearningRate float64
}

// Predict sums every tree's contribution, scaled by LearningRate.
func (e *Ensemble) Predict(values signal.Values) float64 {
	if len(e.Trees) == 0 {
		return 0
	}
	rate := e.LearningRate
	if rate == 0 {
		rate = 1.0
	}
	var total float64
	for _, t := range e.Trees {
		total += rate * t.eval(values)
	}
	return total
}

// LinearScorer is a model-free Model: a plain weighted sum over signal
// values, which a caller can pass to NewLambdaMARTStage in place of a
// trained ensemble; nothing in the module selects it automatically. Carried
// from original_source's ranking/models/linear.rs, which exists
// precisely so the pipeline has a sane default before a model is
// trained.
type LinearScorer struct {
	Weights signal.Coefficient
}

// Predict computes the weighted sum Σ weight[s]·value[s].
func (l LinearScorer) Predict(values signal.Values) float64 {
	return signal.Score(l.Weights, values)
}

// LambdaMARTStage writes signal.LambdaMART from Model's prediction and
// recomputes each doc's total score, unless the optic's coefficient for
// LambdaMART is zero, in which case the stage is a no-op and the raw
// signal sum from upstream is kept, per §4.6.
type LambdaMARTStage struct {
	Model Model
	topN  int
}

// NewLambdaMARTStage builds the stage with the default top_n of 20.
func NewLambdaMARTStage(model Model) *LambdaMARTStage {
	return &LambdaMARTStage{Model: model, topN: lambdaMARTDefaultTopN}
}

func (s *LambdaMARTStage) Name() string { return "lambdamart" }
func (s *LambdaMARTStage) TopN() int    { return s.topN }

func (s *LambdaMARTStage) Apply(ctx context.Context, queryText string, docs []Webpage) ([]Webpage, error) {
	out := make([]Webpage, len(docs))
	for i, doc := range docs {
		if doc.Coefficients.Get(signal.LambdaMART) == 0 {
			out[i] = doc
			continue
		}
		prediction := s.Model.Predict(doc.Values)
		doc.Values.Set(signal.LambdaMART, prediction)
		doc.Score = signal.Score(doc.Coefficients, doc.Values)
		out[i] = doc
	}
	return out, nil
}
