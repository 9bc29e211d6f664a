// Package gossip adapts hashicorp/serf into cluster.Membership, the
// concrete transport for §6's gossip-based cluster membership.
package gossip

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/memberlist"
	"github.com/hashicorp/serf/serf"

	"github.com/stract-search/searchcore/internal/cluster"
)

// eventBuffer bounds how many pending serf events this node will queue
// before the gossip library itself starts blocking; membership changes
// are infrequent relative to query traffic so this is generous.
const eventBuffer = 256

// SerfMembership implements cluster.Membership over a serf.Serf agent.
type SerfMembership struct {
	serf *serf.Serf

	eventCh chan serf.Event
	done    chan struct{}

	mu          sync.Mutex
	subscribers []chan []cluster.Member
}

// New starts a serf agent bound to bindAddr (host:port), publishing svc
// under nodeID. The node does not attempt to join any cluster until
// Join is called.
func New(nodeID string, bindAddr string, svc cluster.Service) (*SerfMembership, error) {
	host, portStr, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return nil, fmt.Errorf("cluster: invalid gossip bind address %q: %w", bindAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("cluster: invalid gossip bind port %q: %w", portStr, err)
	}

	mlConf := memberlist.DefaultLANConfig()
	mlConf.BindAddr = host
	mlConf.BindPort = port
	mlConf.AdvertiseAddr = host
	mlConf.AdvertisePort = port

	eventCh := make(chan serf.Event, eventBuffer)

	conf := serf.DefaultConfig()
	conf.NodeName = nodeID
	conf.Tags = cluster.ServiceTags(svc)
	conf.MemberlistConfig = mlConf
	conf.EventCh = eventCh

	agent, err := serf.Create(conf)
	if err != nil {
		return nil, fmt.Errorf("cluster: start gossip agent: %w", err)
	}

	m := &SerfMembership{
		serf:    agent,
		eventCh: eventCh,
		done:    make(chan struct{}),
	}
	go m.run()
	return m, nil
}

// Join contacts seeds and merges their membership view. An empty seeds
// list is valid for the first node of a new cluster.
func (m *SerfMembership) Join(seeds []string) error {
	if len(seeds) == 0 {
		return nil
	}
	if _, err := m.serf.Join(seeds, true); err != nil {
		return fmt.Errorf("cluster: join seeds %v: %w", seeds, err)
	}
	return nil
}

// Members returns every alive member with a recognized service tag.
// Members still converging their tags (ServiceFromTags returns false)
// are omitted rather than surfaced with a zero-value service.
func (m *SerfMembership) Members() []cluster.Member {
	raw := m.serf.Members()
	out := make([]cluster.Member, 0, len(raw))
	for _, rm := range raw {
		if rm.Status != serf.StatusAlive {
			continue
		}
		svc, ok := cluster.ServiceFromTags(rm.Tags)
		if !ok {
			continue
		}
		out = append(out, cluster.Member{ID: rm.Name, Service: svc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe returns a channel fed a fresh snapshot on every membership
// change. The channel has a buffer of one; a subscriber that falls
// behind a burst of changes sees the latest snapshot, not every
// intermediate one, which is sufficient since BuildClusterView is
// idempotent over the current state.
func (m *SerfMembership) Subscribe() <-chan []cluster.Member {
	ch := make(chan []cluster.Member, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Leave announces graceful departure to the rest of the cluster.
func (m *SerfMembership) Leave() error {
	return m.serf.Leave()
}

// Shutdown tears down the local agent and stops the event loop,
// closing every subscriber channel.
func (m *SerfMembership) Shutdown() error {
	err := m.serf.Shutdown()
	close(m.done)
	return err
}

func (m *SerfMembership) run() {
	for {
		select {
		case <-m.eventCh:
			m.broadcast()
		case <-m.done:
			m.closeSubscribers()
			return
		}
	}
}

func (m *SerfMembership) broadcast() {
	snapshot := m.Members()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- snapshot:
		default:
			// Subscriber hasn't drained the previous snapshot yet;
			// replace it with this newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (m *SerfMembership) closeSubscribers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
}
