// Package distributed implements the coordinator of §4.8: scatter a
// query to one replica per shard, gather and dedup the results,
// rank the merged set (including the cross-encoder, run once here
// rather than per shard), and hydrate the final page.
package distributed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/stract-search/searchcore/internal/collector"
	serrors "github.com/stract-search/searchcore/internal/errors"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/metrics"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/ranking"
	"github.com/stract-search/searchcore/internal/schema"
	"github.com/stract-search/searchcore/internal/searcher/distributed/rpc"
	"github.com/stract-search/searchcore/internal/signal"
)

const (
	defaultShardTimeout          = 2 * time.Second
	defaultCoordinatorOverfetch  = 20
	defaultMaxConcurrentSearches = 64
)

// Config configures a Coordinator.
type Config struct {
	// MaxConcurrentSearches bounds in-flight queries; exceeding it
	// returns a typed Busy error immediately rather than queuing.
	MaxConcurrentSearches int64
	// ShardTimeout is the per-shard deadline for scatter and hydrate
	// RPCs, default 2s per §4.8.
	ShardTimeout time.Duration
	// ClientTimeout is the dial+round-trip timeout handed to each
	// rpc.Client.
	ClientTimeout time.Duration
	// Stages are the C6 ranking stages run on the merged set, in
	// order (LambdaMART, cross-encoder, modifiers).
	Stages []ranking.Stage
}

// DefaultConfig returns sane defaults; callers still need to set
// Stages.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSearches: defaultMaxConcurrentSearches,
		ShardTimeout:          defaultShardTimeout,
		ClientTimeout:         defaultShardTimeout,
	}
}

// ResultDoc is one document in the final, hydrated, paginated result
// set handed back to the caller.
type ResultDoc struct {
	Addr    index.DocAddress
	Title   string
	URL     string
	Snippet string
	Score   float64
}

// SearchResult is the coordinator's answer to one query.
type SearchResult struct {
	Results []ResultDoc
	// NumHits is the sum of per-shard hit counts. If Degraded, this
	// is a lower bound per §7 ("total-hit counts are marked as lower
	// bounds").
	NumHits  uint64
	Degraded bool
}

// Request is one user query as seen by the coordinator.
type Request struct {
	Query        string
	DefaultField schema.FieldName
	Optic        *query.Optic
	Page         int
	NumResults   int
}

type replicaState struct {
	client  *rpc.Client
	breaker *serrors.CircuitBreaker
}

// Coordinator is the C8 entry point.
type Coordinator struct {
	cluster   ClusterView
	cfg       Config
	admission *semaphore.Weighted
	metrics   *metrics.Metrics

	mu      sync.Mutex
	pools   map[string]*replicaState
	rrIndex map[index.ShardID]int
}

// NewCoordinator builds a coordinator over cluster, applying defaults
// for any zero-valued Config fields. m may be nil, in which case every
// metric record is a no-op.
func NewCoordinator(cluster ClusterView, cfg Config, m *metrics.Metrics) *Coordinator {
	if cfg.MaxConcurrentSearches <= 0 {
		cfg.MaxConcurrentSearches = defaultMaxConcurrentSearches
	}
	if cfg.ShardTimeout <= 0 {
		cfg.ShardTimeout = defaultShardTimeout
	}
	if cfg.ClientTimeout <= 0 {
		cfg.ClientTimeout = cfg.ShardTimeout
	}
	return &Coordinator{
		cluster:   cluster,
		cfg:       cfg,
		admission: semaphore.NewWeighted(cfg.MaxConcurrentSearches),
		metrics:   m,
		pools:     make(map[string]*replicaState),
		rrIndex:   make(map[index.ShardID]int),
	}
}

func (c *Coordinator) replica(addr string) *replicaState {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.pools[addr]
	if !ok {
		rs = &replicaState{
			client:  rpc.NewClient(addr, c.cfg.ClientTimeout),
			breaker: serrors.NewCircuitBreaker(addr),
		}
		c.pools[addr] = rs
	}
	return rs
}

// pickReplica chooses a replica for shard round-robin, skipping any
// whose circuit breaker is currently open in favor of a healthier one,
// per §4.8's "round-robin with health check".
func (c *Coordinator) pickReplica(shard ShardView) (*replicaState, string, bool) {
	if len(shard.Replicas) == 0 {
		return nil, "", false
	}

	c.mu.Lock()
	start := c.rrIndex[shard.ID]
	c.rrIndex[shard.ID] = (start + 1) % len(shard.Replicas)
	c.mu.Unlock()

	for i := 0; i < len(shard.Replicas); i++ {
		addr := shard.Replicas[(start+i)%len(shard.Replicas)].Addr
		rs := c.replica(addr)
		if rs.breaker.Allow() {
			return rs, addr, true
		}
		c.metrics.RecordCircuitOpen(addr)
	}
	// Every replica's breaker is open; try the round-robin pick anyway
	// so a half-open probe has a chance to run.
	addr := shard.Replicas[start].Addr
	return c.replica(addr), addr, true
}

// Search runs the full scatter/gather/rank/hydrate flow of §4.8.
func (c *Coordinator) Search(ctx context.Context, req Request) (*SearchResult, error) {
	queryStart := time.Now()
	if !c.admission.TryAcquire(1) {
		c.metrics.RecordAdmissionRejected()
		return nil, serrors.Busy()
	}
	defer c.admission.Release(1)

	shards := c.cluster.Shards()
	if req.Query == "" || len(shards) == 0 {
		return &SearchResult{}, nil
	}

	items, valuesByAddr, coeffByAddr, numHits, degraded := c.scatter(ctx, shards, req)

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Addr.Less(items[j].Addr)
	})
	deduped := collector.Dedup(items, 0)

	// Pagination per §4.8: page·num_results + num_results documents
	// are carried into ranking; only the final page is hydrated.
	globalSize := req.Page*req.NumResults + req.NumResults
	if globalSize < 1 {
		globalSize = req.NumResults
	}
	if globalSize < 1 {
		globalSize = 1
	}
	if globalSize > len(deduped) {
		globalSize = len(deduped)
	}
	merged := deduped[:globalSize]

	addrs := make([]index.DocAddress, len(merged))
	for i, it := range merged {
		addrs[i] = it.Addr
	}
	hydrated, hydrateDegraded := c.hydrate(ctx, shards, addrs)
	degraded = degraded || hydrateDegraded

	docs := make([]ranking.Webpage, 0, len(merged))
	for _, it := range merged {
		page, ok := hydrated[it.Addr]
		title, snippet := "", ""
		if ok {
			title = page.Fields[schema.FieldTitle]
			snippet = page.SnippetText
		}
		docs = append(docs, ranking.Webpage{
			Addr:         it.Addr,
			Values:       valuesByAddr[it.Addr],
			Coefficients: coeffByAddr[it.Addr],
			Score:        it.Score,
			Title:        title,
			Snippet:      snippet,
		})
	}

	ranked, err := ranking.RunPipeline(ctx, c.cfg.Stages, req.Query, docs)
	if err != nil {
		return nil, fmt.Errorf("distributed: rank: %w", err)
	}

	start := req.Page * req.NumResults
	end := start + req.NumResults
	if start > len(ranked) {
		start = len(ranked)
	}
	if end > len(ranked) {
		end = len(ranked)
	}

	results := make([]ResultDoc, 0, end-start)
	for _, doc := range ranked[start:end] {
		page, ok := hydrated[doc.Addr]
		if !ok {
			// §7: retrieve failure for a displayed doc drops it from
			// the page; the next-best doc is not promoted in its place.
			c.metrics.RecordHydrateDrop()
			continue
		}
		results = append(results, ResultDoc{
			Addr:    doc.Addr,
			Title:   page.Fields[schema.FieldTitle],
			URL:     page.Fields[schema.FieldURL],
			Snippet: page.SnippetText,
			Score:   doc.Score,
		})
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	c.metrics.RecordQuery(outcome, time.Since(queryStart))

	return &SearchResult{Results: results, NumHits: numHits, Degraded: degraded}, nil
}

func (c *Coordinator) scatter(ctx context.Context, shards []ShardView, req Request) (items []collector.Item, valuesByAddr map[index.DocAddress]signal.Values, coeffByAddr map[index.DocAddress]signal.Coefficient, numHits uint64, degraded bool) {
	valuesByAddr = make(map[index.DocAddress]signal.Values)
	coeffByAddr = make(map[index.DocAddress]signal.Coefficient)

	type shardResult struct {
		resp *rpc.SearchResponse
		err  error
	}
	out := make([]shardResult, len(shards))

	wantPerShard := req.Page*req.NumResults + req.NumResults + defaultCoordinatorOverfetch

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		i, shard := i, shard
		g.Go(func() error {
			shardCtx, cancel := context.WithTimeout(gctx, c.cfg.ShardTimeout)
			defer cancel()

			rs, addr, ok := c.pickReplica(shard)
			if !ok {
				out[i] = shardResult{err: serrors.RPCUnavailable(fmt.Sprintf("shard-%d", shard.ID), nil)}
				return nil
			}

			resp, err := serrors.CircuitExecuteWithResult(rs.breaker,
				func() (*rpc.SearchResponse, error) {
					return rs.client.Search(shardCtx, rpc.SearchRequest{
						Query:        req.Query,
						DefaultField: string(req.DefaultField),
						Optic:        req.Optic,
						Page:         req.Page,
						NumResults:   wantPerShard,
					})
				},
				func() (*rpc.SearchResponse, error) {
					return nil, serrors.RPCUnavailable(addr, nil)
				},
			)
			out[i] = shardResult{resp: resp, err: err}
			// Never fail the group: a shard error degrades the result
			// set, it doesn't abort the whole query.
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range out {
		if r.err != nil || r.resp == nil {
			degraded = true
			c.metrics.RecordShardError("search")
			continue
		}
		numHits += r.resp.NumHits
		for _, wd := range r.resp.TopDocs {
			items = append(items, collector.Item{Addr: wd.Addr, Score: wd.Score, Keys: wd.DedupKeys})
			valuesByAddr[wd.Addr] = wd.Values
			coeffByAddr[wd.Addr] = wd.Coefficients
		}
	}
	return items, valuesByAddr, coeffByAddr, numHits, degraded
}

func (c *Coordinator) hydrate(ctx context.Context, shards []ShardView, addrs []index.DocAddress) (map[index.DocAddress]*rpc.WireRetrievedWebpage, bool) {
	byShard := make(map[index.ShardID][]index.DocAddress)
	for _, a := range addrs {
		byShard[a.ShardID] = append(byShard[a.ShardID], a)
	}
	shardByID := make(map[index.ShardID]ShardView, len(shards))
	for _, s := range shards {
		shardByID[s.ID] = s
	}

	out := make(map[index.DocAddress]*rpc.WireRetrievedWebpage)
	var mu sync.Mutex
	degraded := false

	g, gctx := errgroup.WithContext(ctx)
	for shardID, shardAddrs := range byShard {
		shardID, shardAddrs := shardID, shardAddrs
		shard, ok := shardByID[shardID]
		if !ok {
			degraded = true
			continue
		}
		g.Go(func() error {
			shardCtx, cancel := context.WithTimeout(gctx, c.cfg.ShardTimeout)
			defer cancel()

			rs, addr, ok := c.pickReplica(shard)
			if !ok {
				mu.Lock()
				degraded = true
				mu.Unlock()
				return nil
			}

			resp, err := serrors.CircuitExecuteWithResult(rs.breaker,
				func() (*rpc.RetrieveResponse, error) {
					return rs.client.Retrieve(shardCtx, rpc.RetrieveRequest{Addrs: shardAddrs})
				},
				func() (*rpc.RetrieveResponse, error) {
					return nil, serrors.RPCUnavailable(addr, nil)
				},
			)
			if err != nil {
				mu.Lock()
				degraded = true
				mu.Unlock()
				c.metrics.RecordShardError("retrieve")
				return nil
			}

			mu.Lock()
			for i := range resp.Pages {
				page := resp.Pages[i]
				out[page.Addr] = &page
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out, degraded
}
