package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/stract-search/searchcore/internal/errors"
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/ranking"
	"github.com/stract-search/searchcore/internal/schema"
	"github.com/stract-search/searchcore/internal/searcher/distributed/rpc"
	"github.com/stract-search/searchcore/internal/searcher/local"
)

// testShardServer builds an in-process shard of shardID with the given
// docs, serves it over a real TCP listener, and returns its replica
// address plus a cleanup func.
func testShardServer(t *testing.T, shardID index.ShardID, docs []index.BuilderDoc) (string, func()) {
	t.Helper()
	dir := t.TempDir()
	sch := schema.Default(uint64(shardID))
	require.NoError(t, index.BuildSegment(dir, 0, sch, docs))

	shard, err := index.OpenShard(dir, sch, 64, false)
	require.NoError(t, err)

	cache, err := query.NewCache(16)
	require.NoError(t, err)

	searcher := local.NewSearcher(shard, shardID, schema.FieldTitle, cache)
	handler := rpc.NewShardHandler(searcher)
	server := rpc.NewServer("127.0.0.1:0", handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = server.ListenAndServe(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for server.Addr() == "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.NotEmpty(t, server.Addr())

	cleanup := func() {
		cancel()
		_ = server.Close()
		<-done
		_ = shard.Close()
	}
	return server.Addr(), cleanup
}

func docWithTitle(title, rawURL, body string) index.BuilderDoc {
	return index.BuilderDoc{
		Tokens: map[schema.FieldName][]index.TokenOccurrence{
			schema.FieldTitle:     {{Term: "hello", Position: 0}},
			schema.FieldCleanBody: {{Term: "hello", Position: 0}},
		},
		Columns: map[schema.FieldName]uint64{
			schema.FieldHostID:         schema.HashString(rawURL),
			schema.FieldSimhash:        schema.HashString(body),
			schema.FieldHostCentrality: index.Float64Bits(0.5),
		},
		Stored: index.StoredFields{
			schema.FieldTitle:     title,
			schema.FieldURL:       rawURL,
			schema.FieldCleanBody: body,
		},
	}
}

func twoShardCluster(t *testing.T) (ClusterView, func()) {
	addr1, cleanup1 := testShardServer(t, 1, []index.BuilderDoc{
		docWithTitle("Hello From Shard One", "https://one.example/hello", "hello from shard one, a document about greetings."),
	})
	addr2, cleanup2 := testShardServer(t, 2, []index.BuilderDoc{
		docWithTitle("Hello From Shard Two", "https://two.example/hello", "hello from shard two, another document about greetings."),
	})

	view := NewStaticClusterView([]ShardView{
		{ID: 1, Replicas: []Replica{{Addr: addr1}}},
		{ID: 2, Replicas: []Replica{{Addr: addr2}}},
	})
	return view, func() { cleanup1(); cleanup2() }
}

func passthroughStage() ranking.Stage {
	return ranking.NewRecallStage(ranking.Unlimited)
}

func TestCoordinator_SearchMergesAcrossShards(t *testing.T) {
	cluster, cleanup := twoShardCluster(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.Stages = []ranking.Stage{passthroughStage()}
	coord := NewCoordinator(cluster, cfg, nil)

	result, err := coord.Search(context.Background(), Request{
		Query:        "hello",
		DefaultField: schema.FieldTitle,
		Page:         0,
		NumResults:   10,
	})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, uint64(2), result.NumHits)
	require.Len(t, result.Results, 2)

	titles := map[string]bool{}
	for _, r := range result.Results {
		titles[r.Title] = true
		assert.NotEmpty(t, r.Snippet)
	}
	assert.True(t, titles["Hello From Shard One"])
	assert.True(t, titles["Hello From Shard Two"])
}

func TestCoordinator_EmptyQueryReturnsEmpty(t *testing.T) {
	cluster, cleanup := twoShardCluster(t)
	defer cleanup()

	coord := NewCoordinator(cluster, DefaultConfig(), nil)
	result, err := coord.Search(context.Background(), Request{Query: "", NumResults: 10})
	require.NoError(t, err)
	assert.Empty(t, result.Results)
}

func TestCoordinator_DegradesWhenShardUnreachable(t *testing.T) {
	addr1, cleanup1 := testShardServer(t, 1, []index.BuilderDoc{
		docWithTitle("Hello From Shard One", "https://one.example/hello", "hello from shard one, a document about greetings."),
	})
	defer cleanup1()

	view := NewStaticClusterView([]ShardView{
		{ID: 1, Replicas: []Replica{{Addr: addr1}}},
		{ID: 2, Replicas: []Replica{{Addr: "127.0.0.1:1"}}}, // nothing listens here
	})

	cfg := DefaultConfig()
	cfg.Stages = []ranking.Stage{passthroughStage()}
	cfg.ShardTimeout = 200 * time.Millisecond
	coord := NewCoordinator(view, cfg, nil)

	result, err := coord.Search(context.Background(), Request{
		Query:        "hello",
		DefaultField: schema.FieldTitle,
		Page:         0,
		NumResults:   10,
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "Hello From Shard One", result.Results[0].Title)
}

func TestCoordinator_AdmissionRejectsOverCapacity(t *testing.T) {
	cluster, cleanup := twoShardCluster(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.Stages = []ranking.Stage{passthroughStage()}
	cfg.MaxConcurrentSearches = 1
	coord := NewCoordinator(cluster, cfg, nil)

	require.True(t, coord.admission.TryAcquire(1))
	defer coord.admission.Release(1)

	_, err := coord.Search(context.Background(), Request{
		Query:        "hello",
		DefaultField: schema.FieldTitle,
		Page:         0,
		NumResults:   10,
	})
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeBusy, serrors.GetCode(err))
}
