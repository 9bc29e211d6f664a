package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/schema"
)

func addr(doc uint32) index.DocAddress {
	return index.DocAddress{ShardID: 0, SegmentOrd: 0, DocID: doc}
}

func TestTopK_RetainsOnlyBestK(t *testing.T) {
	top := NewTopK(2, Penalties{})
	top.Offer(Item{Addr: addr(0), Score: 1.0})
	top.Offer(Item{Addr: addr(1), Score: 3.0})
	top.Offer(Item{Addr: addr(2), Score: 2.0})

	items := top.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 3.0, items[0].Score)
	assert.Equal(t, 2.0, items[1].Score)
}

func TestTopK_TieBreaksByDocAddress(t *testing.T) {
	top := NewTopK(2, Penalties{})
	top.Offer(Item{Addr: addr(5), Score: 1.0})
	top.Offer(Item{Addr: addr(1), Score: 1.0})

	items := top.Items()
	require.Len(t, items, 2)
	assert.Equal(t, uint32(1), items[0].Addr.DocID)
}

func TestTopK_AppliesCollisionPenaltyOnSecondOccurrence(t *testing.T) {
	top := NewTopK(10, DefaultPenalties())
	keys := schema.DedupKeys{Site: 42}
	top.Offer(Item{Addr: addr(0), Score: 10, Keys: keys})
	top.Offer(Item{Addr: addr(1), Score: 10, Keys: keys})

	items := top.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 10.0, items[0].Score)
	assert.InDelta(t, 10-DefaultPenalties().Site, items[1].Score, 1e-9)
}

func TestDedup_DropsExactKeyCollision(t *testing.T) {
	items := []Item{
		{Addr: addr(0), Score: 10, Keys: schema.DedupKeys{URL: 1}},
		{Addr: addr(1), Score: 9, Keys: schema.DedupKeys{URL: 1}},
		{Addr: addr(2), Score: 8, Keys: schema.DedupKeys{URL: 2}},
	}
	out := Dedup(items, 3)
	require.Len(t, out, 2)
	assert.Equal(t, addr(0), out[0].Addr)
	assert.Equal(t, addr(2), out[1].Addr)
}

func TestDedup_DropsSimhashWithinThreshold(t *testing.T) {
	items := []Item{
		{Addr: addr(0), Score: 10, Keys: schema.DedupKeys{URL: 1, Simhash: 0b0100}},
		{Addr: addr(1), Score: 9, Keys: schema.DedupKeys{URL: 2, Simhash: 0b0111}}, // hamming dist 2
	}
	out := Dedup(items, 3)
	assert.Len(t, out, 1)
}

func TestDedup_KeepsDistinctSimhashesBeyondThreshold(t *testing.T) {
	items := []Item{
		{Addr: addr(0), Score: 10, Keys: schema.DedupKeys{URL: 1, Simhash: 0}},
		{Addr: addr(1), Score: 9, Keys: schema.DedupKeys{URL: 2, Simhash: 0b1111}}, // hamming dist 4
	}
	out := Dedup(items, 3)
	assert.Len(t, out, 2)
}

// TestDedup_NoSurvivorSharesKeyWithHigherRanked is property #3 of §8:
// no returned item on a page shares any of the 5 dedup keys with a
// higher-ranked returned item.
func TestDedup_NoSurvivorSharesKeyWithHigherRanked(t *testing.T) {
	items := []Item{
		{Addr: addr(0), Score: 10, Keys: schema.DedupKeys{Site: 1, Title: 1, URL: 1, URLNoTLD: 1, Simhash: 0}},
		{Addr: addr(1), Score: 9, Keys: schema.DedupKeys{Site: 1, Title: 2, URL: 2, URLNoTLD: 2, Simhash: 0xFFFFFFFF}},
		{Addr: addr(2), Score: 8, Keys: schema.DedupKeys{Site: 3, Title: 3, URL: 3, URLNoTLD: 3, Simhash: 0xFFFFFFFF}},
	}
	out := Dedup(items, 3)
	for i, a := range out {
		for _, b := range out[:i] {
			assert.NotEqual(t, a.Keys.Site, b.Keys.Site)
			assert.NotEqual(t, a.Keys.Title, b.Keys.Title)
			assert.NotEqual(t, a.Keys.URL, b.Keys.URL)
			assert.NotEqual(t, a.Keys.URLNoTLD, b.Keys.URLNoTLD)
		}
	}
}
