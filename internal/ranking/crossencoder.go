package ranking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stract-search/searchcore/internal/signal"
)

const (
	defaultCrossEncoderTimeout   = 10 * time.Second
	defaultCrossEncoderBatchSize = 32
)

// CrossEncoderConfig configures the HTTP client to the pairwise
// (query, passage) re-ranking model server, per §4.6. The server is a
// locally hosted process; the client never retries across the
// coordinator's own deadline.
type CrossEncoderConfig struct {
	Endpoint  string
	Timeout   time.Duration
	BatchSize int
}

// crossEncoderRequest batches one field's worth of (query, passage)
// pairs for one HTTP call.
type crossEncoderRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
}

type crossEncoderResponse struct {
	Scores []float64 `json:"scores"`
}

// CrossEncoderStage scores each candidate's title and snippet against
// the query text via an external model server, writing
// signal.CrossEncoderTitle and signal.CrossEncoderSnippet. Per §7, if
// the model is unavailable the stage is skipped and the prior ordering
// is preserved; callers should treat any error from Apply as such.
type CrossEncoderStage struct {
	client *http.Client
	cfg    CrossEncoderConfig
	topN   int
}

// NewCrossEncoderStage builds the stage. topN bounds how many
// candidates (already truncated by the LambdaMART stage, typically 20)
// are sent to the model server.
func NewCrossEncoderStage(cfg CrossEncoderConfig, topN int) *CrossEncoderStage {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCrossEncoderTimeout
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = defaultCrossEncoderBatchSize
	}
	return &CrossEncoderStage{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		topN:   topN,
	}
}

func (s *CrossEncoderStage) Name() string { return "cross_encoder" }
func (s *CrossEncoderStage) TopN() int    { return s.topN }

// Apply batches docs into groups of cfg.BatchSize and scores title and
// snippet passages against queryText in two separate model calls per
// batch.
func (s *CrossEncoderStage) Apply(ctx context.Context, queryText string, docs []Webpage) ([]Webpage, error) {
	if len(docs) == 0 {
		return docs, nil
	}
	titleScores, err := s.scoreBatched(ctx, queryText, extractField(docs, func(w Webpage) string { return w.Title }))
	if err != nil {
		return nil, fmt.Errorf("ranking: cross-encoder title scoring: %w", err)
	}
	snippetScores, err := s.scoreBatched(ctx, queryText, extractField(docs, func(w Webpage) string { return w.Snippet }))
	if err != nil {
		return nil, fmt.Errorf("ranking: cross-encoder snippet scoring: %w", err)
	}

	out := make([]Webpage, len(docs))
	for i, doc := range docs {
		doc.Values.Set(signal.CrossEncoderTitle, titleScores[i])
		doc.Values.Set(signal.CrossEncoderSnippet, snippetScores[i])
		doc.Score = signal.Score(doc.Coefficients, doc.Values)
		out[i] = doc
	}
	return out, nil
}

func extractField(docs []Webpage, get func(Webpage) string) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = get(d)
	}
	return out
}

func (s *CrossEncoderStage) scoreBatched(ctx context.Context, query string, passages []string) ([]float64, error) {
	out := make([]float64, len(passages))
	for start := 0; start < len(passages); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(passages) {
			end = len(passages)
		}
		scores, err := s.scoreOne(ctx, query, passages[start:end])
		if err != nil {
			return nil, err
		}
		copy(out[start:end], scores)
	}
	return out, nil
}

func (s *CrossEncoderStage) scoreOne(ctx context.Context, query string, passages []string) ([]float64, error) {
	body, err := json.Marshal(crossEncoderRequest{Query: query, Passages: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded crossEncoderResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Scores) != len(passages) {
		return nil, fmt.Errorf("model server returned %d scores for %d passages", len(decoded.Scores), len(passages))
	}
	return decoded.Scores, nil
}
