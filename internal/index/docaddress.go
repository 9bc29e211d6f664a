// Package index implements the per-shard inverted index: term dictionary,
// position-aware postings, dense column fields, and the document
// retrieval/snippet path of §4.2.
package index

import "fmt"

// ShardID identifies a horizontal partition of the index.
type ShardID uint64

// DocAddress globally identifies a document as (shard, segment, doc)
// within that segment, per §3.
type DocAddress struct {
	ShardID     ShardID
	SegmentOrd  uint32
	DocID       uint32
}

// String renders the address as "shard:segment:doc".
func (a DocAddress) String() string {
	return fmt.Sprintf("%d:%d:%d", a.ShardID, a.SegmentOrd, a.DocID)
}

// Less implements the lexicographic tie-break of §5: (shard_id, segment_ord,
// doc_id) ascending. Both C5's per-segment merge and C8's cross-shard
// merge call this so the two orderings can never disagree.
func (a DocAddress) Less(b DocAddress) bool {
	if a.ShardID != b.ShardID {
		return a.ShardID < b.ShardID
	}
	if a.SegmentOrd != b.SegmentOrd {
		return a.SegmentOrd < b.SegmentOrd
	}
	return a.DocID < b.DocID
}

// CanonicalID packs shard, segment, and doc into a single uint64: the
// shard id from bit 44, the segment ordinal from bit 20, and the doc id
// in the low bits. The fields do not overlap only while DocID < 2^20
// and SegmentOrd < 2^24; beyond those bounds distinct addresses can
// share an id.
// Supplemented from original_source's canon_index.rs.
func (a DocAddress) CanonicalID() uint64 {
	return (uint64(a.ShardID) << 44) | (uint64(a.SegmentOrd) << 20) | uint64(a.DocID)
}
