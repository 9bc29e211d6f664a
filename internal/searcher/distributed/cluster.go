package distributed

import (
	"sync"

	"github.com/stract-search/searchcore/internal/index"
)

// Replica is one reachable instance of a shard, addressed as host:port
// for the rpc package's Client.
type Replica struct {
	Addr string
}

// ShardView is one shard's current set of replica endpoints, as
// discovered via gossip per §6.
type ShardView struct {
	ID       index.ShardID
	Replicas []Replica
}

// ClusterView is the coordinator's map of shard IDs to replica
// endpoints. Rebuilds on membership change are atomic, per §6 ("a
// pointer-swap to a new immutable view") — StaticClusterView below is
// the concrete, swappable implementation; a gossip-backed
// implementation lives in internal/cluster.
type ClusterView interface {
	Shards() []ShardView
}

// StaticClusterView is an immutable snapshot of the cluster's shard
// map. A new membership view is installed by swapping the pointer an
// owner holds to a StaticClusterView, never by mutating one in place.
type StaticClusterView struct {
	shards []ShardView
}

// NewStaticClusterView builds a view over shards.
func NewStaticClusterView(shards []ShardView) *StaticClusterView {
	return &StaticClusterView{shards: shards}
}

func (v *StaticClusterView) Shards() []ShardView { return v.shards }

// AtomicClusterView holds a ClusterView behind a mutex, for components
// that need to observe membership rebuilds without restarting.
type AtomicClusterView struct {
	mu   sync.RWMutex
	view ClusterView
}

// NewAtomicClusterView wraps an initial view.
func NewAtomicClusterView(initial ClusterView) *AtomicClusterView {
	return &AtomicClusterView{view: initial}
}

// Shards implements ClusterView by delegating to the currently
// installed view.
func (a *AtomicClusterView) Shards() []ShardView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view.Shards()
}

// Swap atomically replaces the installed view, per §6's "rebuilds are
// atomic" requirement.
func (a *AtomicClusterView) Swap(next ClusterView) {
	a.mu.Lock()
	a.view = next
	a.mu.Unlock()
}
