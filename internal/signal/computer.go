package signal

import "github.com/stract-search/searchcore/internal/index"

// CentralitySource resolves a host id to its approximate harmonic
// centrality, per §4.9. Defined locally (rather than importing
// internal/webgraph) so signal never depends on the package that, in a
// fuller build, might want to depend on signal's types; webgraph
// satisfies this interface structurally.
type CentralitySource interface {
	HostCentrality(hostID uint64) (float64, bool)
}

// InboundSimilaritySource resolves a host id's similarity to the
// query's liked-host set, per §4.9.
type InboundSimilaritySource interface {
	InboundSimilarity(hostID uint64) float64
}

// DocumentFeatures carries every raw input the computer needs to
// produce a document's Values; callers (internal/searcher/local)
// assemble this from index column reads and match positions.
type DocumentFeatures struct {
	HostID uint64

	BM25TitleTermFreqs      []float64
	BM25CleanBodyTermFreqs  []float64
	BM25AllBodyTermFreqs    []float64
	BM25URLTermFreqs        []float64
	BM25SiteTermFreqs       []float64
	BM25DomainTermFreqs     []float64
	BM25BacklinkTermFreqs   []float64
	TitleFieldLen           float64
	CleanBodyFieldLen       float64
	AllBodyFieldLen         float64
	AvgTitleFieldLen        float64
	AvgCleanBodyFieldLen    float64
	AvgAllBodyFieldLen      float64
	NumDocs                 uint64
	DocFreqs                map[Enum][]uint64

	TitlePositions     [][]uint32
	CleanBodyPositions [][]uint32

	PageCentrality float64
	URL            string
	AgeDays        float64
	RecencyLambda  float64
	QueryTermCount float64

	TitleEmbedding   []float32
	KeywordEmbedding []float32
	QueryTitleEmbedding   []float32
	QueryKeywordEmbedding []float32
}

// Computer ties together the closed signal set's inputs: a centrality
// source and an inbound-similarity source, both of which may be nil (in
// which case those signals contribute 0, per §4.9's "if unavailable,
// their signals return zero" contract).
type Computer struct {
	Centrality       CentralitySource
	InboundSimilarity InboundSimilaritySource
	BM25             BM25Params
}

// NewComputer builds a Computer with default BM25 params.
func NewComputer(centrality CentralitySource, inbound InboundSimilaritySource) *Computer {
	return &Computer{Centrality: centrality, InboundSimilarity: inbound, BM25: DefaultBM25Params}
}

// Compute produces the full Values table for one document.
func (c *Computer) Compute(f DocumentFeatures) Values {
	var v Values

	v.Set(BM25Title, SumBM25(c.BM25, f.BM25TitleTermFreqs, f.TitleFieldLen, f.AvgTitleFieldLen, f.DocFreqs[BM25Title], f.NumDocs))
	v.Set(BM25CleanBody, SumBM25(c.BM25, f.BM25CleanBodyTermFreqs, f.CleanBodyFieldLen, f.AvgCleanBodyFieldLen, f.DocFreqs[BM25CleanBody], f.NumDocs))
	v.Set(BM25AllBody, SumBM25(c.BM25, f.BM25AllBodyTermFreqs, f.AllBodyFieldLen, f.AvgAllBodyFieldLen, f.DocFreqs[BM25AllBody], f.NumDocs))
	v.Set(BM25URL, SumBM25(c.BM25, f.BM25URLTermFreqs, 1, 1, f.DocFreqs[BM25URL], f.NumDocs))
	v.Set(BM25Site, SumBM25(c.BM25, f.BM25SiteTermFreqs, 1, 1, f.DocFreqs[BM25Site], f.NumDocs))
	v.Set(BM25Domain, SumBM25(c.BM25, f.BM25DomainTermFreqs, 1, 1, f.DocFreqs[BM25Domain], f.NumDocs))
	v.Set(BM25BacklinkText, SumBM25(c.BM25, f.BM25BacklinkTermFreqs, 1, 1, f.DocFreqs[BM25BacklinkText], f.NumDocs))

	if slop, ok := minSlopOf(f.TitlePositions); ok {
		v.Set(MinTitleSlop, scoreSlopOf(slop))
	}
	if slop, ok := minSlopOf(f.CleanBodyPositions); ok {
		v.Set(MinCleanBodySlop, scoreSlopOf(slop))
	}

	if c.Centrality != nil {
		if val, ok := c.Centrality.HostCentrality(f.HostID); ok {
			v.Set(HostCentrality, val)
		}
	}
	v.Set(PageCentrality, f.PageCentrality)

	v.Set(URLDepth, URLDepthOf(f.URL))
	v.Set(URLSlashCount, URLSlashCountOf(f.URL))
	v.Set(UpdateTimestampRecency, RecencyDecay(f.AgeDays, f.RecencyLambda))
	v.Set(QueryTermCount, f.QueryTermCount)

	if c.InboundSimilarity != nil {
		v.Set(InboundSimilarity, c.InboundSimilarity.InboundSimilarity(f.HostID))
	}

	if f.TitleEmbedding != nil && f.QueryTitleEmbedding != nil {
		v.Set(TitleEmbeddingSimilarity, CosineSimilarity(f.TitleEmbedding, f.QueryTitleEmbedding))
	}
	if f.KeywordEmbedding != nil && f.QueryKeywordEmbedding != nil {
		v.Set(KeywordEmbeddingSimilarity, CosineSimilarity(f.KeywordEmbedding, f.QueryKeywordEmbedding))
	}

	return v
}

func minSlopOf(positions [][]uint32) (float64, bool) {
	if len(positions) == 0 {
		return 0, false
	}
	return index.MinSlop(positions)
}

func scoreSlopOf(slop float64) float64 {
	return index.ScoreSlop(slop, true)
}
