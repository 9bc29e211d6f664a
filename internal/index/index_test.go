package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/schema"
)

func TestPostingListEncodeDecodeRoundtrip(t *testing.T) {
	list := PostingList{
		{DocID: 1, TermFreq: 2, Positions: []uint32{3, 7}},
		{DocID: 5, TermFreq: 1, Positions: []uint32{0}},
	}
	data := EncodePostingList(list)
	decoded, err := DecodePostingList(data)
	require.NoError(t, err)
	assert.Equal(t, list, decoded)
}

func TestDecodePostingList_Truncated(t *testing.T) {
	_, err := DecodePostingList([]byte{1, 2})
	assert.Error(t, err)
}

func TestMinSlop_SpecScenario(t *testing.T) {
	slop, ok := MinSlop([][]uint32{
		{13, 18, 22},
		{8, 15, 30},
		{9, 16},
	})
	require.True(t, ok)
	assert.Equal(t, 2.0, slop)
}

func TestMinSlop_EmptyListIsInfinite(t *testing.T) {
	_, ok := MinSlop([][]uint32{{1, 2}, {}})
	assert.False(t, ok)
}

func TestMinSlop_SingleTermIsZero(t *testing.T) {
	slop, ok := MinSlop([][]uint32{{5}})
	require.True(t, ok)
	assert.Equal(t, 0.0, slop)
}

func TestMinSlop_ExactAdjacentPhraseScoresHighest(t *testing.T) {
	exact, ok := MinSlop([][]uint32{{0}, {1}, {2}})
	require.True(t, ok)
	spread, ok2 := MinSlop([][]uint32{{0}, {1}, {4}})
	require.True(t, ok2)
	assert.Less(t, exact, spread)
	assert.Greater(t, ScoreSlop(exact, true), ScoreSlop(spread, true))
}

func TestDocAddressLess(t *testing.T) {
	a := DocAddress{ShardID: 0, SegmentOrd: 1, DocID: 5}
	b := DocAddress{ShardID: 0, SegmentOrd: 1, DocID: 6}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestExtractSnippet_ShortBodyReturnsWhole(t *testing.T) {
	snip := ExtractSnippet("short text", nil, 275, 50)
	assert.Equal(t, "short text", snip.Text)
}

func TestExtractSnippet_FindsDensestWindow(t *testing.T) {
	body := make([]byte, 1000)
	for i := range body {
		body[i] = 'x'
	}
	copy(body[400:410], []byte("needle1 needle2"))
	snip := ExtractSnippet(string(body), []int{400, 408}, 100, 10)
	assert.Contains(t, snip.Text, "needle")
}

func buildTestSegment(t *testing.T, sch *schema.Schema) (*Segment, func()) {
	t.Helper()
	dir := t.TempDir()
	docs := []BuilderDoc{
		{
			Tokens: map[schema.FieldName][]TokenOccurrence{
				schema.FieldTitle: {{Term: "hello", Position: 0}, {Term: "world", Position: 1}},
			},
			Columns: map[schema.FieldName]uint64{schema.FieldHostCentrality: Float64Bits(0.5)},
			Stored:  StoredFields{schema.FieldTitle: "Hello World", schema.FieldURL: "https://example.com/a"},
		},
		{
			Tokens: map[schema.FieldName][]TokenOccurrence{
				schema.FieldTitle: {{Term: "goodbye", Position: 0}, {Term: "world", Position: 1}},
			},
			Columns: map[schema.FieldName]uint64{schema.FieldHostCentrality: Float64Bits(0.2)},
			Stored:  StoredFields{schema.FieldTitle: "Goodbye World", schema.FieldURL: "https://example.com/b"},
		},
	}
	require.NoError(t, BuildSegment(dir, 0, sch, docs))
	seg, err := OpenSegment(dir, 0, sch, 16)
	require.NoError(t, err)
	return seg, func() { _ = seg.Close() }
}

type collectorFunc func(doc uint32, score float64, positions map[string]map[string][]uint32)

func (f collectorFunc) Collect(doc uint32, score float64, positions map[string]map[string][]uint32) {
	f(doc, score, positions)
}

func TestSegment_SearchInitial_TermMatch(t *testing.T) {
	sch := schema.Default(0)
	seg, closeFn := buildTestSegment(t, sch)
	defer closeFn()

	var matched []uint32
	collector := collectorFunc(func(doc uint32, score float64, positions map[string]map[string][]uint32) {
		matched = append(matched, doc)
	})

	cq, err := query.NewCompiledQuery("world", schema.FieldTitle, nil)
	require.NoError(t, err)
	require.NoError(t, seg.SearchInitial(cq, collector))
	assert.ElementsMatch(t, []uint32{0, 1}, matched)
}

func TestSegment_SearchInitial_PhraseRequiresAdjacency(t *testing.T) {
	sch := schema.Default(0)
	seg, closeFn := buildTestSegment(t, sch)
	defer closeFn()

	var matched []uint32
	collector := collectorFunc(func(doc uint32, score float64, positions map[string]map[string][]uint32) {
		matched = append(matched, doc)
	})

	cq, err := query.NewCompiledQuery(`"hello world"`, schema.FieldTitle, nil)
	require.NoError(t, err)
	require.NoError(t, seg.SearchInitial(cq, collector))
	assert.Equal(t, []uint32{0}, matched)
}

func TestSegment_ColumnFloat64_ReadsPresentValue(t *testing.T) {
	sch := schema.Default(0)
	seg, closeFn := buildTestSegment(t, sch)
	defer closeFn()

	v, ok, err := seg.ColumnFloat64(schema.FieldHostCentrality, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-9)
}

func TestSegment_Stored(t *testing.T) {
	sch := schema.Default(0)
	seg, closeFn := buildTestSegment(t, sch)
	defer closeFn()

	fields, err := seg.Stored(1)
	require.NoError(t, err)
	assert.Equal(t, "Goodbye World", fields[schema.FieldTitle])
}

func TestShard_OpenAndRetrieve(t *testing.T) {
	sch := schema.Default(0)
	dir := t.TempDir()
	docs := []BuilderDoc{
		{Stored: StoredFields{schema.FieldTitle: "Doc Zero"}},
	}
	require.NoError(t, BuildSegment(dir, 0, sch, docs))
	shard, err := OpenShard(dir, sch, 16, false)
	require.NoError(t, err)
	defer shard.Close()

	assert.Equal(t, uint32(1), shard.NumDocs())
	result := shard.Retrieve([]DocAddress{{ShardID: 0, SegmentOrd: 0, DocID: 0}})
	assert.Equal(t, "Doc Zero", result[DocAddress{ShardID: 0, SegmentOrd: 0, DocID: 0}][schema.FieldTitle])
}

func TestShard_RetrieveDropsMissingAddresses(t *testing.T) {
	sch := schema.Default(0)
	dir := t.TempDir()
	require.NoError(t, BuildSegment(dir, 0, sch, []BuilderDoc{{Stored: StoredFields{}}}))
	shard, err := OpenShard(dir, sch, 16, false)
	require.NoError(t, err)
	defer shard.Close()

	result := shard.Retrieve([]DocAddress{{ShardID: 0, SegmentOrd: 99, DocID: 0}})
	assert.Empty(t, result)
}
