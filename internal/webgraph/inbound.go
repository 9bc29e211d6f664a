package webgraph

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// defaultSmoothing is the prior added to the candidate's inbound-edge
// count, so a host with a tiny inbound set doesn't get an outsized
// score from a single coincidental overlap.
const defaultSmoothing = 5.0

// InboundIndex resolves a host id to the compact, sorted-rank-id
// bitvector of hosts linking into it. A real implementation reads this
// from the webgraph's reversed adjacency; MapInboundIndex below is an
// in-memory one for tests and small deployments.
type InboundIndex interface {
	InboundEdges(hostID uint64) *roaring.Bitmap
}

// MapInboundIndex is a plain map-backed InboundIndex.
type MapInboundIndex map[uint64]*roaring.Bitmap

func (m MapInboundIndex) InboundEdges(hostID uint64) *roaring.Bitmap {
	return m[hostID]
}

// LikedHostScorer computes, for a set of "liked" hosts (from an optic
// or explicit user signal), each candidate host's similarity based on
// inbound-edge-set overlap, per §4.9. The liked set's union is
// precomputed once at construction; scoring a candidate is then a
// single bitvector intersection, O(min(|A|,|B|)) over deduplicated,
// sorted rank ids.
type LikedHostScorer struct {
	index     InboundIndex
	liked     *roaring.Bitmap
	likedSize uint64
	smoothing float64
}

// NewLikedHostScorer builds a scorer over likedHosts, resolved through
// index. Hosts with no recorded inbound edges contribute nothing to
// the liked set.
func NewLikedHostScorer(index InboundIndex, likedHosts []uint64) *LikedHostScorer {
	liked := roaring.New()
	for _, h := range likedHosts {
		if edges := index.InboundEdges(h); edges != nil {
			liked.Or(edges)
		}
	}
	return &LikedHostScorer{
		index:     index,
		liked:     liked,
		likedSize: liked.GetCardinality(),
		smoothing: defaultSmoothing,
	}
}

// InboundSimilarity implements signal.InboundSimilaritySource. It
// returns 0 if no liked hosts were configured or the candidate has no
// recorded inbound edges, satisfying §4.9's "if unavailable, signals
// return zero" contract.
func (s *LikedHostScorer) InboundSimilarity(hostID uint64) float64 {
	if s.likedSize == 0 {
		return 0
	}
	candidate := s.index.InboundEdges(hostID)
	if candidate == nil || candidate.IsEmpty() {
		return 0
	}
	overlap := candidate.AndCardinality(s.liked)
	return float64(overlap) / (float64(candidate.GetCardinality()) + s.smoothing)
}
