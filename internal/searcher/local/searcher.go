// Package local implements the per-shard search entry point of §4.7:
// compile, collect against the open segment snapshot, dedup, and
// retrieve. The distributed coordinator (C8) drives one of these per
// shard replica; it is also usable standalone for a single-shard
// deployment.
package local

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/stract-search/searchcore/internal/collector"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/schema"
	"github.com/stract-search/searchcore/internal/signal"
)

const defaultOverfetch = 50

// RecallRankingWebpage is one candidate surviving collection: enough to
// rank further (C6) and to hydrate later via Retrieve, per §4.7.
type RecallRankingWebpage struct {
	Addr         index.DocAddress
	Values       signal.Values
	Coefficients signal.Coefficient
	Score        float64
	DedupKeys    schema.DedupKeys
}

// InitialWebsiteResult is the shard's answer to one Search call.
type InitialWebsiteResult struct {
	TopDocs []RecallRankingWebpage
	NumHits uint64
}

// RetrievedWebpage carries a hydrated document's stored fields plus its
// materialized snippet, in the order requested.
type RetrievedWebpage struct {
	Addr    index.DocAddress
	Fields  index.StoredFields
	Snippet index.Snippet
}

// Searcher is the C7 entry point for one shard.
type Searcher struct {
	shard     *index.Shard
	shardID   index.ShardID
	field     schema.FieldName
	queries   *query.Cache
	overfetch int
	computer  *signal.Computer
}

// NewSearcher builds a Searcher over an already-open shard. field is the
// default field used to parse bare (unqualified) query terms against.
// It starts with no host-level centrality source; call SetCentrality
// once the webgraph's centrality store (C9) is opened, if configured.
func NewSearcher(shard *index.Shard, shardID index.ShardID, field schema.FieldName, queries *query.Cache) *Searcher {
	return &Searcher{
		shard:     shard,
		shardID:   shardID,
		field:     field,
		queries:   queries,
		overfetch: defaultOverfetch,
		computer:  signal.NewComputer(nil, nil),
	}
}

// SetCentrality wires in the host-level centrality and inbound-similarity
// sources the signal computer consults (§4.9). Either may be nil, per
// the closed signal set's "absent source scores zero" contract.
func (s *Searcher) SetCentrality(centrality signal.CentralitySource, inbound signal.InboundSimilaritySource) {
	s.computer = signal.NewComputer(centrality, inbound)
}

// Search runs the C7 flow: parse/compile, search_initial against the
// shard's currently published segment snapshot with a collector sized
// (page+1)·num_results + overfetch, dedup, and return the survivors.
func (s *Searcher) Search(ctx context.Context, queryText string, optic *query.Optic, page, numResults int) (*InitialWebsiteResult, error) {
	if queryText == "" {
		return &InitialWebsiteResult{}, nil
	}

	compiled, err := s.queries.CompileCached(queryText, s.field, optic)
	if err != nil {
		return nil, fmt.Errorf("local: compile query: %w", err)
	}

	coeff := signal.DefaultCoefficients()
	if optic != nil {
		coeff.MergeInto(signal.CoefficientFromOptic(optic))
	}

	size := (page+1)*numResults + s.overfetch
	if size < 1 {
		size = 1
	}
	topK := collector.NewTopK(size, collector.DefaultPenalties())

	adapter := &collectAdapter{
		shard:           s.shard,
		computer:        s.computer,
		queryTerms:      countTerms(compiled.Root),
		coeff:           coeff,
		topK:            topK,
		values:          make(map[index.DocAddress]signal.Values),
		numDocs:         uint64(s.shard.NumDocs()),
		avgTitleLen:     s.shard.AvgFieldLen(schema.FieldTitleLen),
		avgCleanBodyLen: s.shard.AvgFieldLen(schema.FieldCleanBodyLen),
		avgAllBodyLen:   s.shard.AvgFieldLen(schema.FieldAllBodyLen),
	}
	if err := s.shard.SearchInitial(s.shardID, compiled, adapter); err != nil {
		return nil, fmt.Errorf("local: search_initial: %w", err)
	}

	items := collector.Dedup(topK.Items(), 0)
	topDocs := make([]RecallRankingWebpage, len(items))
	for i, it := range items {
		topDocs[i] = RecallRankingWebpage{
			Addr:         it.Addr,
			Values:       adapter.values[it.Addr],
			Coefficients: coeff,
			Score:        it.Score,
			DedupKeys:    it.Keys,
		}
	}
	return &InitialWebsiteResult{TopDocs: topDocs, NumHits: uint64(adapter.numHits)}, nil
}

// Retrieve fetches full stored fields and materializes a snippet for
// each address, preserving the requested order. Addresses that no
// longer resolve (segment merged away, doc deleted) are dropped
// silently, per §6.
func (s *Searcher) Retrieve(addrs []index.DocAddress) []RetrievedWebpage {
	fields := s.shard.Retrieve(addrs)
	out := make([]RetrievedWebpage, 0, len(addrs))
	for _, addr := range addrs {
		f, ok := fields[addr]
		if !ok {
			continue
		}
		body := f[schema.FieldCleanBody]
		snippet := index.ExtractSnippet(body, nil, 0, 0)
		out = append(out, RetrievedWebpage{Addr: addr, Fields: f, Snippet: snippet})
	}
	return out
}

// Size returns the shard's document count, for the RPC Size() method of
// §6.
func (s *Searcher) Size() uint64 { return s.shard.Size() }

// GetByURL scans the shard for a stored document with an exact URL
// match, for the RPC GetWebpage(url) method of §6. No secondary URL
// index exists in this implementation, so this is a linear scan of
// stored fields; fine for the search core's scope, where this method is
// a low-volume lookup path rather than a hot query path.
func (s *Searcher) GetByURL(rawURL string) (*RetrievedWebpage, bool) {
	for _, seg := range s.shard.Segments() {
		for doc := uint32(0); doc < seg.NumDocs(); doc++ {
			fields, err := seg.Stored(doc)
			if err != nil {
				continue
			}
			if fields[schema.FieldURL] != rawURL {
				continue
			}
			addr := index.DocAddress{ShardID: s.shardID, SegmentOrd: seg.Ord(), DocID: doc}
			snippet := index.ExtractSnippet(fields[schema.FieldCleanBody], nil, 0, 0)
			return &RetrievedWebpage{Addr: addr, Fields: fields, Snippet: snippet}, true
		}
	}
	return nil, false
}

// GetByHost scans the shard for the shallowest-path document under host
// (the homepage heuristic), for the RPC GetHomepage(host) method of §6.
func (s *Searcher) GetByHost(host string) (*RetrievedWebpage, bool) {
	normalized := schema.NormalizeHost(host)
	var best *RetrievedWebpage
	bestDepth := -1.0
	for _, seg := range s.shard.Segments() {
		for doc := uint32(0); doc < seg.NumDocs(); doc++ {
			fields, err := seg.Stored(doc)
			if err != nil {
				continue
			}
			rawURL := fields[schema.FieldURL]
			u, err := url.Parse(rawURL)
			if err != nil || schema.NormalizeHost(u.Host) != normalized {
				continue
			}
			depth := signal.URLDepthOf(rawURL)
			if best == nil || depth < bestDepth {
				addr := index.DocAddress{ShardID: s.shardID, SegmentOrd: seg.Ord(), DocID: doc}
				snippet := index.ExtractSnippet(fields[schema.FieldCleanBody], nil, 0, 0)
				best = &RetrievedWebpage{Addr: addr, Fields: fields, Snippet: snippet}
				bestDepth = depth
			}
		}
	}
	return best, best != nil
}

// collectAdapter implements index.ShardCollector: for each candidate it
// assembles the signal computer's DocumentFeatures from the matched
// term positions, the document's column fields, and the shard's
// corpus-wide length/doc-count stats, then offers the scored result to
// the top-K collector.
type collectAdapter struct {
	shard      *index.Shard
	computer   *signal.Computer
	queryTerms int
	coeff      signal.Coefficient
	topK       *collector.TopK
	numHits    int
	values     map[index.DocAddress]signal.Values

	numDocs         uint64
	avgTitleLen     float64
	avgCleanBodyLen float64
	avgAllBodyLen   float64
}

func (a *collectAdapter) Collect(addr index.DocAddress, score float64, termPositions map[string]map[string][]uint32) {
	a.numHits++

	f := signal.DocumentFeatures{
		NumDocs:        a.numDocs,
		QueryTermCount: float64(a.queryTerms),
		DocFreqs:       make(map[signal.Enum][]uint64),
	}

	for field, byTerm := range termPositions {
		sig, isBM25 := fieldBM25Signal(schema.FieldName(field))
		slopSig, hasSlop := fieldSlopSignal(schema.FieldName(field))

		terms := make([]string, 0, len(byTerm))
		for term := range byTerm {
			terms = append(terms, term)
		}

		var positions [][]uint32
		var termFreqs []float64
		var docFreqs []uint64
		for _, term := range terms {
			pos := byTerm[term]
			termFreqs = append(termFreqs, float64(len(pos)))
			df, _ := a.shard.TermDocFreq(addr, schema.FieldName(field), term)
			docFreqs = append(docFreqs, df)
			positions = append(positions, pos)
		}

		if isBM25 {
			a.setBM25Inputs(&f, sig, termFreqs, docFreqs)
		}
		if hasSlop && len(positions) > 0 {
			if slopSig == signal.MinTitleSlop {
				f.TitlePositions = positions
			} else {
				f.CleanBodyPositions = positions
			}
		}
	}

	if hostID, ok, _ := a.shard.Column(addr, schema.FieldHostID); ok {
		f.HostID = hostID
	}
	if centrality, ok, _ := a.shard.ColumnFloat64(addr, schema.FieldHostCentrality); ok {
		f.PageCentrality = centrality
	}
	if ts, ok, _ := a.shard.Column(addr, schema.FieldFetchTimestamp); ok && ts != 0 {
		f.AgeDays = time.Since(time.Unix(int64(ts), 0)).Hours() / 24
	}
	f.RecencyLambda = signal.DefaultRecencyLambda

	if titleLen, ok, _ := a.shard.Column(addr, schema.FieldTitleLen); ok {
		f.TitleFieldLen = float64(titleLen)
	}
	if bodyLen, ok, _ := a.shard.Column(addr, schema.FieldCleanBodyLen); ok {
		f.CleanBodyFieldLen = float64(bodyLen)
	}
	if allBodyLen, ok, _ := a.shard.Column(addr, schema.FieldAllBodyLen); ok {
		f.AllBodyFieldLen = float64(allBodyLen)
	}
	f.AvgTitleFieldLen = a.avgTitleLen
	f.AvgCleanBodyFieldLen = a.avgCleanBodyLen
	f.AvgAllBodyFieldLen = a.avgAllBodyLen

	stored, hasStored := a.shard.Retrieve([]index.DocAddress{addr})[addr]
	if hasStored {
		f.URL = stored[schema.FieldURL]
	}

	values := a.computer.Compute(f)

	keys := a.dedupKeys(addr, stored, hasStored)

	total := signal.Score(a.coeff, values)
	total += score // raw recall contribution from the query evaluator itself

	a.values[addr] = values
	a.topK.Offer(collector.Item{Addr: addr, Score: total, Keys: keys})
}

// setBM25Inputs records termFreqs/docFreqs for sig under the signal
// enum the computer expects them filed under.
func (a *collectAdapter) setBM25Inputs(f *signal.DocumentFeatures, sig signal.Enum, termFreqs []float64, docFreqs []uint64) {
	f.DocFreqs[sig] = docFreqs
	switch sig {
	case signal.BM25Title:
		f.BM25TitleTermFreqs = termFreqs
	case signal.BM25CleanBody:
		f.BM25CleanBodyTermFreqs = termFreqs
	case signal.BM25AllBody:
		f.BM25AllBodyTermFreqs = termFreqs
	case signal.BM25URL:
		f.BM25URLTermFreqs = termFreqs
	case signal.BM25Site:
		f.BM25SiteTermFreqs = termFreqs
	case signal.BM25Domain:
		f.BM25DomainTermFreqs = termFreqs
	case signal.BM25BacklinkText:
		f.BM25BacklinkTermFreqs = termFreqs
	}
}

// dedupKeys builds a candidate's five dedup keys (§4.5, §8.3). stored is
// the document's already-fetched stored fields, shared with Collect's
// own URL-signal lookup so each candidate costs one retrieve, not two.
func (a *collectAdapter) dedupKeys(addr index.DocAddress, stored index.StoredFields, hasStored bool) schema.DedupKeys {
	var keys schema.DedupKeys
	if hostID, ok, _ := a.shard.Column(addr, schema.FieldHostID); ok {
		keys.Site = hostID
	}
	if simhash, ok, _ := a.shard.Column(addr, schema.FieldSimhash); ok {
		keys.Simhash = simhash
	}
	if hasStored {
		title := stored[schema.FieldTitle]
		rawURL := stored[schema.FieldURL]
		keys.Title = schema.HashString(title)
		keys.URL = schema.HashString(rawURL)
		keys.URLNoTLD = schema.HashString(schema.URLWithoutTLD(rawURL))
	}
	return keys
}

func fieldBM25Signal(field schema.FieldName) (signal.Enum, bool) {
	switch field {
	case schema.FieldTitle:
		return signal.BM25Title, true
	case schema.FieldCleanBody:
		return signal.BM25CleanBody, true
	case schema.FieldAllBody:
		return signal.BM25AllBody, true
	case schema.FieldURL:
		return signal.BM25URL, true
	case schema.FieldSite:
		return signal.BM25Site, true
	case schema.FieldDomain:
		return signal.BM25Domain, true
	case schema.FieldBacklinkText:
		return signal.BM25BacklinkText, true
	default:
		return 0, false
	}
}

func fieldSlopSignal(field schema.FieldName) (signal.Enum, bool) {
	switch field {
	case schema.FieldTitle:
		return signal.MinTitleSlop, true
	case schema.FieldCleanBody:
		return signal.MinCleanBodySlop, true
	default:
		return 0, false
	}
}

// countTerms counts the leaf Term/Phrase nodes in the compiled query
// tree, used for the QueryTermCount signal.
func countTerms(node query.Node) int {
	switch n := node.(type) {
	case query.Term:
		return 1
	case query.Phrase:
		return len(n.Terms)
	case query.Union:
		total := 0
		for _, c := range n.Clauses {
			total += countTerms(c)
		}
		return total
	case query.Intersection:
		total := 0
		for _, c := range n.Clauses {
			total += countTerms(c)
		}
		return total
	case query.Not:
		return countTerms(n.Positive)
	case query.Boost:
		return countTerms(n.Node)
	default:
		return 0
	}
}
