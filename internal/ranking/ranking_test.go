package ranking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/signal"
)

func webpage(doc uint32, score float64) Webpage {
	return Webpage{Addr: index.DocAddress{DocID: doc}, Score: score}
}

func TestRunPipeline_SortsAndTruncates(t *testing.T) {
	docs := []Webpage{webpage(0, 1), webpage(1, 3), webpage(2, 2)}
	stage := NewRecallStage(2)
	out, err := RunPipeline(context.Background(), []Stage{stage}, "q", docs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(1), out[0].Addr.DocID)
	assert.Equal(t, uint32(2), out[1].Addr.DocID)
}

func TestLambdaMARTStage_SkipsWhenCoefficientZero(t *testing.T) {
	stage := NewLambdaMARTStage(LinearScorer{Weights: signal.DefaultCoefficients()})
	doc := webpage(0, 5)
	doc.Coefficients = signal.Coefficient{} // zero => skip
	out, err := stage.Apply(context.Background(), "q", []Webpage{doc})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out[0].Score)
}

func TestLambdaMARTStage_AppliesModelWhenCoefficientNonZero(t *testing.T) {
	var coeff signal.Coefficient
	coeff.Set(signal.LambdaMART, 2.0)
	model := staticModel{value: 10}
	stage := NewLambdaMARTStage(model)
	doc := Webpage{Coefficients: coeff}
	out, err := stage.Apply(context.Background(), "q", []Webpage{doc})
	require.NoError(t, err)
	assert.Equal(t, 20.0, out[0].Score)
}

type staticModel struct{ value float64 }

func (m staticModel) Predict(values signal.Values) float64 { return m.value }

func TestEnsemble_PredictSumsTrees(t *testing.T) {
	leaf := func(v float64) *TreeNode { return &TreeNode{Leaf: true, Value: v} }
	e := &Ensemble{
		Trees:        []*TreeNode{leaf(1), leaf(2)},
		LearningRate: 1,
	}
	assert.Equal(t, 3.0, e.Predict(signal.Values{}))
}

func TestEnsemble_SplitsOnFeature(t *testing.T) {
	tree := &TreeNode{
		Feature:   signal.BM25Title,
		Threshold: 0.5,
		Left:      &TreeNode{Leaf: true, Value: 1},
		Right:     &TreeNode{Leaf: true, Value: 9},
	}
	e := &Ensemble{Trees: []*TreeNode{tree}, LearningRate: 1}

	var low signal.Values
	low.Set(signal.BM25Title, 0.1)
	assert.Equal(t, 1.0, e.Predict(low))

	var high signal.Values
	high.Set(signal.BM25Title, 0.9)
	assert.Equal(t, 9.0, e.Predict(high))
}

func TestInboundSimilarityModifier_MultipliesByConstant(t *testing.T) {
	mod := NewInboundSimilarityModifier(Unlimited)
	doc := webpage(0, 2)
	doc.Values.Set(signal.InboundSimilarity, 1.0)
	out, err := mod.Apply(context.Background(), "q", []Webpage{doc})
	require.NoError(t, err)
	assert.Equal(t, 2*9.0, out[0].Score)
}

func TestCrossEncoderStage_ScoresTitleAndSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req crossEncoderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		scores := make([]float64, len(req.Passages))
		for i := range scores {
			scores[i] = float64(i + 1)
		}
		_ = json.NewEncoder(w).Encode(crossEncoderResponse{Scores: scores})
	}))
	defer srv.Close()

	stage := NewCrossEncoderStage(CrossEncoderConfig{Endpoint: srv.URL}, Unlimited)
	docs := []Webpage{
		{Title: "a", Snippet: "a snip", Coefficients: signal.DefaultCoefficients()},
		{Title: "b", Snippet: "b snip", Coefficients: signal.DefaultCoefficients()},
	}
	out, err := stage.Apply(context.Background(), "q", docs)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out[0].Values.Get(signal.CrossEncoderTitle))
	assert.Equal(t, 2.0, out[1].Values.Get(signal.CrossEncoderTitle))
}

func TestCrossEncoderStage_ErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	stage := NewCrossEncoderStage(CrossEncoderConfig{Endpoint: srv.URL}, Unlimited)
	_, err := stage.Apply(context.Background(), "q", []Webpage{{Title: "a", Snippet: "b"}})
	assert.Error(t, err)
}

func TestRunPipeline_ModelFailureSkipsStagePreservingOrder(t *testing.T) {
	failing := failingStage{}
	docs := []Webpage{webpage(0, 1), webpage(1, 2)}
	out, err := RunPipeline(context.Background(), []Stage{failing}, "q", docs)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(0), out[0].Addr.DocID)
	assert.Equal(t, uint32(1), out[1].Addr.DocID)
}

type failingStage struct{}

func (failingStage) Name() string { return "failing" }
func (failingStage) TopN() int     { return Unlimited }
func (failingStage) Apply(ctx context.Context, queryText string, docs []Webpage) ([]Webpage, error) {
	return nil, assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "model unavailable" }
