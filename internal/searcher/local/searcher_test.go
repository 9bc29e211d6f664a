package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/schema"
	"github.com/stract-search/searchcore/internal/signal"
)

func buildTestShard(t *testing.T) (*index.Shard, func()) {
	t.Helper()
	dir := t.TempDir()
	sch := schema.Default(1)

	docs := []index.BuilderDoc{
		{
			Tokens: map[schema.FieldName][]index.TokenOccurrence{
				schema.FieldTitle:     {{Term: "hello", Position: 0}, {Term: "world", Position: 1}},
				schema.FieldCleanBody: {{Term: "hello", Position: 0}, {Term: "world", Position: 1}},
			},
			Columns: map[schema.FieldName]uint64{
				schema.FieldHostID:         100,
				schema.FieldSimhash:        5,
				schema.FieldHostCentrality: index.Float64Bits(0.9),
			},
			Stored: index.StoredFields{
				schema.FieldTitle:     "Hello World",
				schema.FieldURL:       "https://example.com/hello",
				schema.FieldCleanBody: "Hello world, this is the body used to exercise snippet extraction.",
			},
		},
		{
			Tokens: map[schema.FieldName][]index.TokenOccurrence{
				schema.FieldTitle:     {{Term: "goodbye", Position: 0}, {Term: "world", Position: 1}},
				schema.FieldCleanBody: {{Term: "goodbye", Position: 0}, {Term: "world", Position: 1}},
			},
			Columns: map[schema.FieldName]uint64{
				schema.FieldHostID:         200,
				schema.FieldSimhash:        9,
				schema.FieldHostCentrality: index.Float64Bits(0.1),
			},
			Stored: index.StoredFields{
				schema.FieldTitle:     "Goodbye World",
				schema.FieldURL:       "https://example.org/goodbye",
				schema.FieldCleanBody: "Goodbye world, a different body entirely for the other document.",
			},
		},
	}

	require.NoError(t, index.BuildSegment(dir, 0, sch, docs))
	shard, err := index.OpenShard(dir, sch, 64, false)
	require.NoError(t, err)
	return shard, func() { _ = shard.Close() }
}

func TestSearcher_SearchAndRetrieve(t *testing.T) {
	shard, closeFn := buildTestShard(t)
	defer closeFn()

	cache, err := query.NewCache(16)
	require.NoError(t, err)
	searcher := NewSearcher(shard, 1, schema.FieldTitle, cache)

	result, err := searcher.Search(context.Background(), "hello", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, result.TopDocs, 1)
	assert.Equal(t, uint32(0), result.TopDocs[0].Addr.DocID)
	assert.Equal(t, uint64(1), result.NumHits)

	retrieved := searcher.Retrieve([]index.DocAddress{result.TopDocs[0].Addr})
	require.Len(t, retrieved, 1)
	assert.Equal(t, "Hello World", retrieved[0].Fields[schema.FieldTitle])
	assert.NotEmpty(t, retrieved[0].Snippet.Text)
}

func TestSearcher_EmptyQueryReturnsEmpty(t *testing.T) {
	shard, closeFn := buildTestShard(t)
	defer closeFn()

	cache, err := query.NewCache(16)
	require.NoError(t, err)
	searcher := NewSearcher(shard, 1, schema.FieldTitle, cache)

	result, err := searcher.Search(context.Background(), "", nil, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, result.TopDocs)
}

func TestSearcher_RetrieveDropsUnknownAddress(t *testing.T) {
	shard, closeFn := buildTestShard(t)
	defer closeFn()

	out := (&Searcher{shard: shard}).Retrieve([]index.DocAddress{{ShardID: 1, SegmentOrd: 99, DocID: 0}})
	assert.Empty(t, out)
}

func TestCountTerms(t *testing.T) {
	root, err := query.Parse("hello world", schema.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, 2, countTerms(root))
}

// rarerTermShard is a three-doc fixture where "world" occurs in every
// title but "hello" occurs in only one, giving "hello" a much higher
// BM25 IDF term than a raw term-frequency count would produce.
func rarerTermShard(t *testing.T) (*index.Shard, func()) {
	t.Helper()
	dir := t.TempDir()
	sch := schema.Default(1)

	docs := []index.BuilderDoc{
		{
			Tokens: map[schema.FieldName][]index.TokenOccurrence{
				schema.FieldTitle: {{Term: "hello", Position: 0}, {Term: "world", Position: 1}},
			},
			Stored: index.StoredFields{schema.FieldTitle: "Hello World", schema.FieldURL: "https://a.example/x"},
		},
		{
			Tokens: map[schema.FieldName][]index.TokenOccurrence{
				schema.FieldTitle: {{Term: "big", Position: 0}, {Term: "world", Position: 1}},
			},
			Stored: index.StoredFields{schema.FieldTitle: "Big World", schema.FieldURL: "https://b.example/y"},
		},
		{
			Tokens: map[schema.FieldName][]index.TokenOccurrence{
				schema.FieldTitle: {{Term: "small", Position: 0}, {Term: "world", Position: 1}},
			},
			Stored: index.StoredFields{schema.FieldTitle: "Small World", schema.FieldURL: "https://c.example/z"},
		},
	}

	require.NoError(t, index.BuildSegment(dir, 0, sch, docs))
	shard, err := index.OpenShard(dir, sch, 64, false)
	require.NoError(t, err)
	return shard, func() { _ = shard.Close() }
}

func TestSearcher_BM25RanksRarerTermHigher(t *testing.T) {
	shard, closeFn := rarerTermShard(t)
	defer closeFn()

	cache, err := query.NewCache(16)
	require.NoError(t, err)
	searcher := NewSearcher(shard, 1, schema.FieldTitle, cache)

	// "world" alone matches all three docs under the parser's default AND
	// semantics; each has the same title length and term frequency, so a
	// real BM25 computation gives them an identical, nonzero title score.
	common, err := searcher.Search(context.Background(), "world", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, common.TopDocs, 3)
	commonScore := common.TopDocs[0].Values.Get(signal.BM25Title)
	assert.Greater(t, commonScore, 0.0)
	for _, d := range common.TopDocs {
		assert.InDelta(t, commonScore, d.Values.Get(signal.BM25Title), 1e-9)
	}

	// "hello" only matches doc0, and is rarer corpus-wide than "world", so
	// its BM25 title score (driven by IDF) must exceed the common term's.
	rare, err := searcher.Search(context.Background(), "hello", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, rare.TopDocs, 1)
	assert.Equal(t, uint32(0), rare.TopDocs[0].Addr.DocID)
	assert.Greater(t, rare.TopDocs[0].Values.Get(signal.BM25Title), commonScore)
}

func TestSearcher_SetCentralityAffectsScore(t *testing.T) {
	shard, closeFn := buildTestShard(t)
	defer closeFn()

	cache, err := query.NewCache(16)
	require.NoError(t, err)
	searcher := NewSearcher(shard, 1, schema.FieldTitle, cache)
	searcher.SetCentrality(stubCentrality{host: 100, value: 5}, nil)

	result, err := searcher.Search(context.Background(), "hello", nil, 0, 10)
	require.NoError(t, err)
	require.Len(t, result.TopDocs, 1)
	assert.Greater(t, result.TopDocs[0].Values.Get(signal.HostCentrality), 0.0)
}

type stubCentrality struct {
	host  uint64
	value float64
}

func (s stubCentrality) HostCentrality(hostID uint64) (float64, bool) {
	if hostID == s.host {
		return s.value, true
	}
	return 0, false
}
