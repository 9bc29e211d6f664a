package index

import (
	"math"
	"sort"
)

// pairMinSlop returns the smallest b-a across monotone cursors a in A, b in
// B with b > a, per spec.md §4.2's minSlop(A, B) definition. A and B must
// already be sorted ascending. Returns +Inf if no such pair exists (B has
// nothing past the end of A, or either list is empty).
func pairMinSlop(a, b []uint32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, av := range a {
		// smallest element of b strictly greater than av
		idx := sort.Search(len(b), func(i int) bool { return b[i] > av })
		if idx == len(b) {
			continue
		}
		diff := float64(b[idx]) - float64(av)
		if diff < best {
			best = diff
		}
	}
	return best
}

// MinSlop implements spec.md §4.2's k-way min-slop algorithm: given
// per-term position lists in document/query order, the reported slop is
// maxᵢ minSlop(Pᵢ, Pᵢ₊₁). A single-term query (len(positions) <= 1) has
// slop 0 by convention (no pair to misalign). If any list is empty, slop
// is +Inf (ok=false), meaning the phrase cannot match in this document.
func MinSlop(positions [][]uint32) (slop float64, ok bool) {
	if len(positions) == 0 {
		return 0, false
	}
	for _, p := range positions {
		if len(p) == 0 {
			return math.Inf(1), false
		}
	}
	if len(positions) == 1 {
		return 0, true
	}
	max := 0.0
	for i := 0; i < len(positions)-1; i++ {
		s := pairMinSlop(positions[i], positions[i+1])
		if math.IsInf(s, 1) {
			return math.Inf(1), false
		}
		if s > max {
			max = s
		}
	}
	return max, true
}

// ScoreSlop converts a slop value into the §4.2 score contribution,
// 1/(slop+1), so an exact adjacent phrase (slop 1) scores 0.5 and score
// decays smoothly as terms spread apart. Callers must check ok from
// MinSlop first; an infinite slop contributes a score of 0.
func ScoreSlop(slop float64, ok bool) float64 {
	if !ok {
		return 0
	}
	return 1.0 / (slop + 1.0)
}
