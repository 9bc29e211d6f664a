// Package cluster implements the gossip-based membership surface of §6:
// each node publishes a Member{id, service}, joining requires seed
// addresses, and Watch subscribes to membership changes to rebuild the
// coordinator's shard map as an atomic pointer-swap. The gossip subpackage
// provides the hashicorp/serf-backed transport; this package stays
// transport-agnostic, and the coordinator itself depends only on the
// distributed.ClusterView that Watch keeps current.
package cluster

import (
	"fmt"
	"sort"

	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/searcher/distributed"
)

// ServiceKind identifies what role a cluster member serves, per §6's
// service union: Searcher(host, shard_id), Api(host), Webgraph(host).
type ServiceKind string

const (
	ServiceSearcher ServiceKind = "searcher"
	ServiceAPI      ServiceKind = "api"
	ServiceWebgraph ServiceKind = "webgraph"
)

// Service describes what a member serves. ShardID is only meaningful
// when Kind is ServiceSearcher.
type Service struct {
	Kind    ServiceKind
	Host    string
	ShardID index.ShardID
}

// Member is one node's published identity, per §6's Member{id, service}.
type Member struct {
	ID      string
	Service Service
}

// Membership is the transport-agnostic contract that Watch and other
// cluster-aware components depend on. A concrete implementation
// (gossip.SerfMembership) owns the wire protocol.
type Membership interface {
	// Join contacts the given seed addresses and merges their view of
	// the cluster into this node's own. An empty seeds list is valid
	// for the first node of a new cluster.
	Join(seeds []string) error

	// Members returns the current, fully-converged membership snapshot.
	Members() []Member

	// Subscribe returns a channel that receives a fresh membership
	// snapshot every time the cluster's view changes. The channel is
	// closed when the membership is shut down.
	Subscribe() <-chan []Member

	// Leave gracefully announces departure before Shutdown.
	Leave() error

	// Shutdown tears down the local membership state without
	// announcing departure to the rest of the cluster.
	Shutdown() error
}

// ServiceTags encodes a Service into the flat string tags gossip
// transports carry (serf limits tag payloads, so this stays minimal).
func ServiceTags(svc Service) map[string]string {
	tags := map[string]string{
		"service": string(svc.Kind),
		"host":    svc.Host,
	}
	if svc.Kind == ServiceSearcher {
		tags["shard_id"] = fmt.Sprintf("%d", svc.ShardID)
	}
	return tags
}

// ServiceFromTags decodes the tags produced by ServiceTags. An unknown
// or missing "service" tag yields ok=false so callers can skip members
// that haven't finished publishing their tags yet.
func ServiceFromTags(tags map[string]string) (Service, bool) {
	kind := ServiceKind(tags["service"])
	switch kind {
	case ServiceSearcher, ServiceAPI, ServiceWebgraph:
	default:
		return Service{}, false
	}
	svc := Service{Kind: kind, Host: tags["host"]}
	if kind == ServiceSearcher {
		var shardID uint64
		if _, err := fmt.Sscanf(tags["shard_id"], "%d", &shardID); err != nil {
			return Service{}, false
		}
		svc.ShardID = index.ShardID(shardID)
	}
	return svc, true
}

// BuildClusterView groups every ServiceSearcher member by shard id into
// a distributed.ClusterView snapshot, for installing into a
// distributed.AtomicClusterView on every membership change. Members
// with other service kinds are ignored here; a future internal/api
// package would filter on ServiceAPI the same way.
func BuildClusterView(members []Member) *distributed.StaticClusterView {
	byShard := make(map[index.ShardID][]distributed.Replica)
	var order []index.ShardID
	for _, m := range members {
		if m.Service.Kind != ServiceSearcher {
			continue
		}
		id := m.Service.ShardID
		if _, ok := byShard[id]; !ok {
			order = append(order, id)
		}
		byShard[id] = append(byShard[id], distributed.Replica{Addr: m.Service.Host})
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	shards := make([]distributed.ShardView, 0, len(order))
	for _, id := range order {
		shards = append(shards, distributed.ShardView{ID: id, Replicas: byShard[id]})
	}
	return distributed.NewStaticClusterView(shards)
}

// Watch drives membership's Subscribe channel and installs every new
// snapshot into view via BuildClusterView, rebuilding the coordinator's
// shard map atomically as §6 requires. It runs until membership's
// channel is closed (on Shutdown) and should be started in its own
// goroutine.
func Watch(membership Membership, view *distributed.AtomicClusterView) {
	view.Swap(BuildClusterView(membership.Members()))
	for snapshot := range membership.Subscribe() {
		view.Swap(BuildClusterView(snapshot))
	}
}
