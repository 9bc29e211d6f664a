package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stract-search/searchcore/internal/query"
)

// Collector receives candidate matches as SearchInitial walks a
// segment's postings. Implementations (internal/collector) decide
// top-K retention, dedup, and penalties; index has no opinion on
// ranking beyond producing (docID, score, matched positions). Defined
// locally (rather than imported from internal/collector) so index
// never needs to depend on the package that depends on it.
type Collector interface {
	// Collect offers one matched document. doc is the local segment
	// doc id; termPositions maps field -> term -> matched positions,
	// letting the caller compute per-field slop without re-querying.
	Collect(doc uint32, score float64, termPositions map[string]map[string][]uint32)
}

// SearchInitial evaluates compiled against the segment's postings and
// offers every matching document to collector, per §4.2. Evaluation is
// a straightforward tree walk: Term/Phrase fetch posting lists,
// Union/Intersection combine doc-id sets, Not excludes, Boost scales,
// Const matches every document in the segment unconditionally.
func (s *Segment) SearchInitial(compiled *query.CompiledQuery, collector Collector) error {
	matches, err := s.eval(compiled.Root)
	if err != nil {
		return fmt.Errorf("index: evaluate query on segment %d: %w", s.ord, err)
	}
	for doc, m := range matches {
		collector.Collect(doc, m.score, m.positions)
	}
	return nil
}

// matchSet maps doc id to its accumulated match info within one
// segment evaluation.
type matchSet map[uint32]*matchInfo

type matchInfo struct {
	score     float64
	positions map[string]map[string][]uint32 // field -> term -> positions
}

func newMatchInfo() *matchInfo {
	return &matchInfo{positions: make(map[string]map[string][]uint32)}
}

func (m *matchInfo) addPositions(field, term string, positions []uint32) {
	byTerm, ok := m.positions[field]
	if !ok {
		byTerm = make(map[string][]uint32)
		m.positions[field] = byTerm
	}
	byTerm[term] = positions
}

func (s *Segment) eval(node query.Node) (matchSet, error) {
	switch n := node.(type) {
	case query.Term:
		return s.evalTerm(n)
	case query.Phrase:
		return s.evalPhrase(n)
	case query.Union:
		return s.evalUnion(n)
	case query.Intersection:
		return s.evalIntersection(n)
	case query.Not:
		return s.evalNot(n)
	case query.Boost:
		return s.evalBoost(n)
	case query.Const:
		return s.evalConst(n)
	default:
		return nil, fmt.Errorf("index: unknown query node type %T", node)
	}
}

func (s *Segment) evalTerm(n query.Term) (matchSet, error) {
	list, err := s.Postings(n.Field, n.Text)
	if err != nil {
		return nil, err
	}
	out := make(matchSet, len(list))
	for _, p := range list {
		mi := newMatchInfo()
		mi.score = float64(p.TermFreq)
		mi.addPositions(string(n.Field), n.Text, p.Positions)
		out[p.DocID] = mi
	}
	return out, nil
}

func (s *Segment) evalPhrase(n query.Phrase) (matchSet, error) {
	if len(n.Terms) == 0 {
		return matchSet{}, nil
	}
	termLists := make([]PostingList, len(n.Terms))
	for i, term := range n.Terms {
		list, err := s.Postings(n.Field, term)
		if err != nil {
			return nil, err
		}
		termLists[i] = list
	}

	candidates := docIDsWithAllTerms(termLists)
	out := make(matchSet)
	for _, doc := range candidates {
		positions := make([][]uint32, len(n.Terms))
		for i, list := range termLists {
			positions[i] = positionsForDoc(list, doc)
		}
		slop, ok := MinSlop(positions)
		if !ok {
			continue
		}
		mi := newMatchInfo()
		mi.score = ScoreSlop(slop, ok)
		for i, term := range n.Terms {
			mi.addPositions(string(n.Field), term, positions[i])
		}
		out[doc] = mi
	}
	return out, nil
}

func docIDsWithAllTerms(lists []PostingList) []uint32 {
	if len(lists) == 0 {
		return nil
	}
	bitmaps := make([]*roaring.Bitmap, len(lists))
	for i, list := range lists {
		bm := roaring.New()
		for _, p := range list {
			bm.Add(p.DocID)
		}
		bitmaps[i] = bm
	}
	result := bitmaps[0].Clone()
	for _, bm := range bitmaps[1:] {
		result.And(bm)
	}
	out := make([]uint32, 0, result.GetCardinality())
	it := result.Iterator()
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}

func positionsForDoc(list PostingList, doc uint32) []uint32 {
	for _, p := range list {
		if p.DocID == doc {
			return p.Positions
		}
	}
	return nil
}

func (s *Segment) evalUnion(n query.Union) (matchSet, error) {
	out := make(matchSet)
	for _, clause := range n.Clauses {
		sub, err := s.eval(clause)
		if err != nil {
			return nil, err
		}
		for doc, mi := range sub {
			if existing, ok := out[doc]; ok {
				existing.score += mi.score
				for field, byTerm := range mi.positions {
					for term, pos := range byTerm {
						existing.addPositions(field, term, pos)
					}
				}
			} else {
				out[doc] = mi
			}
		}
	}
	return out, nil
}

func (s *Segment) evalIntersection(n query.Intersection) (matchSet, error) {
	if len(n.Clauses) == 0 {
		return matchSet{}, nil
	}
	sets := make([]matchSet, len(n.Clauses))
	for i, clause := range n.Clauses {
		sub, err := s.eval(clause)
		if err != nil {
			return nil, err
		}
		sets[i] = sub
	}
	out := make(matchSet)
	for doc, mi := range sets[0] {
		inAll := true
		total := mi.score
		merged := newMatchInfo()
		for field, byTerm := range mi.positions {
			for term, pos := range byTerm {
				merged.addPositions(field, term, pos)
			}
		}
		for _, other := range sets[1:] {
			omi, ok := other[doc]
			if !ok {
				inAll = false
				break
			}
			total += omi.score
			for field, byTerm := range omi.positions {
				for term, pos := range byTerm {
					merged.addPositions(field, term, pos)
				}
			}
		}
		if inAll {
			merged.score = total
			out[doc] = merged
		}
	}
	return out, nil
}

func (s *Segment) evalNot(n query.Not) (matchSet, error) {
	pos, err := s.eval(n.Positive)
	if err != nil {
		return nil, err
	}
	neg, err := s.eval(n.Negative)
	if err != nil {
		return nil, err
	}
	out := make(matchSet)
	for doc, mi := range pos {
		if _, excluded := neg[doc]; !excluded {
			out[doc] = mi
		}
	}
	return out, nil
}

func (s *Segment) evalBoost(n query.Boost) (matchSet, error) {
	sub, err := s.eval(n.Node)
	if err != nil {
		return nil, err
	}
	for _, mi := range sub {
		mi.score *= n.Factor
	}
	return sub, nil
}

func (s *Segment) evalConst(n query.Const) (matchSet, error) {
	out := make(matchSet, s.numDocs)
	for doc := uint32(0); doc < s.numDocs; doc++ {
		mi := newMatchInfo()
		mi.score = n.Score
		out[doc] = mi
	}
	return out, nil
}
