// Package collector implements the bucket top-K collector and
// post-segment/cross-shard dedup of §4.5.
package collector

import (
	"container/heap"
	"sync"

	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/schema"
)

// Item is one candidate document carried through collection, merge, and
// ranking: its address, current score, and dedup keys.
type Item struct {
	Addr  index.DocAddress
	Score float64
	Keys  schema.DedupKeys
}

// less implements the §5 tie-break: total_score desc, doc_address asc.
func less(a, b Item) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Addr.Less(b.Addr)
}

// itemHeap is a min-heap by the §5 order's inverse, so the worst
// surviving item sits at the root and can be evicted in O(log k) when a
// better candidate arrives.
type itemHeap []Item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return less(h[j], h[i]) } // inverted: root is worst
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x interface{}) { *h = append(*h, x.(Item)) }
func (h *itemHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TopK retains the best K items offered to it by score, applying
// collector-local collision penalties before admission, per §4.5.
type TopK struct {
	k         int
	penalties Penalties

	mu       sync.Mutex
	heap     itemHeap
	seenSite map[uint64]struct{}
	seenTitle map[uint64]struct{}
	seenURL  map[uint64]struct{}
}

// NewTopK builds a collector retaining the best k items, using the
// given collision penalties (see DefaultPenalties for §4.5's values).
func NewTopK(k int, penalties Penalties) *TopK {
	return &TopK{
		k:         k,
		penalties: penalties,
		seenSite:  make(map[uint64]struct{}),
		seenTitle: make(map[uint64]struct{}),
		seenURL:   make(map[uint64]struct{}),
	}
}

// Offer admits item, applying collector-local penalties for keys
// already seen in this collector, then retains it only if it ranks
// among the current best k.
func (t *TopK) Offer(item Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	item.Score -= t.penalties.collisionPenalty(item.Keys, t.seenSite, t.seenTitle, t.seenURL)
	t.markSeen(item.Keys)

	if t.heap.Len() < t.k {
		heap.Push(&t.heap, item)
		return
	}
	if t.heap.Len() > 0 && less(item, t.heap[0]) {
		heap.Pop(&t.heap)
		heap.Push(&t.heap, item)
	}
}

func (t *TopK) markSeen(keys schema.DedupKeys) {
	t.seenSite[keys.Site] = struct{}{}
	t.seenTitle[keys.Title] = struct{}{}
	t.seenURL[keys.URL] = struct{}{}
}

// Items returns the retained items sorted by the §5 order, best first.
func (t *TopK) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Item, len(t.heap))
	copy(out, t.heap)
	sortItems(out)
	return out
}

// Len returns the number of items currently retained.
func (t *TopK) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.heap.Len()
}

func sortItems(items []Item) {
	// insertion sort is fine: k is bounded (page_end + overfetch, small)
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && less(items[j], items[j-1]); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
