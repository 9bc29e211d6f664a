package webgraph

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"go.etcd.io/bbolt"
)

// defaultEpsilon is the approximation error bound from
// original_source's approx_harmonic.rs; lower values sample more
// nodes for a tighter estimate at higher build cost.
const defaultEpsilon = 0.3

// maxHops truncates the single-source shortest-paths search run from
// each sampled node, per §4.9.
const maxHops = 7

var centralityBucket = []byte("centrality")

// ApproxHostCentrality is a read-only, bbolt-backed lookup of
// approximate harmonic centrality by host id, built offline by
// BuildApproxHarmonic and opened read-only at query time by
// OpenApproxHostCentrality. It satisfies signal.CentralitySource.
type ApproxHostCentrality struct {
	db *bbolt.DB
}

// BuildApproxHarmonic computes approximate harmonic centrality for
// every node in graph and persists it to dbPath, per §4.9: sample
// s = ceil(log2(n)/epsilon^2) nodes with outgoing edges, run a
// 7-hop-truncated SSSP from each, and accumulate
// (1/dist)·(n/(s·(n-1))) per target.
func BuildApproxHarmonic(graph Graph, dbPath string) (*ApproxHostCentrality, error) {
	return buildApproxHarmonic(graph, dbPath, defaultEpsilon, rand.New(rand.NewSource(1)))
}

func buildApproxHarmonic(graph Graph, dbPath string, epsilon float64, rng *rand.Rand) (*ApproxHostCentrality, error) {
	nodes := graph.Nodes()
	numNodes := len(nodes)
	if numNodes == 0 {
		return nil, fmt.Errorf("webgraph: cannot build centrality over an empty graph")
	}

	numSamples := int(math.Ceil(math.Log2(float64(numNodes)) / (epsilon * epsilon)))
	if numSamples < 1 {
		numSamples = 1
	}

	withOutgoing := make([]uint64, 0, numNodes)
	for _, n := range nodes {
		if len(graph.OutEdges(n)) > 0 {
			withOutgoing = append(withOutgoing, n)
		}
	}
	if len(withOutgoing) == 0 {
		withOutgoing = nodes
	}
	if numSamples > len(withOutgoing) {
		numSamples = len(withOutgoing)
	}

	sampled := sampleNodes(withOutgoing, numSamples, rng)

	var norm float64
	if numNodes > 1 {
		norm = float64(numNodes) / (float64(len(sampled)) * float64(numNodes-1))
	}

	centrality := make(map[uint64]float64)
	for _, source := range sampled {
		dists := truncatedSSSP(graph, source, maxHops)
		for target, dist := range dists {
			if dist == 0 {
				continue
			}
			centrality[target] += (1.0 / float64(dist)) * norm
		}
	}

	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("webgraph: open centrality store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(centralityBucket)
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		for node, val := range centrality {
			if err := bucket.Put(encodeNodeID(node), encodeFloat64(val)); err != nil {
				return fmt.Errorf("put %d: %w", node, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("webgraph: write centrality store: %w", err)
	}
	return &ApproxHostCentrality{db: db}, nil
}

// OpenApproxHostCentrality opens an already-built centrality store
// read-only, for use at query time.
func OpenApproxHostCentrality(dbPath string) (*ApproxHostCentrality, error) {
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("webgraph: open centrality store: %w", err)
	}
	return &ApproxHostCentrality{db: db}, nil
}

// HostCentrality implements signal.CentralitySource. A missing host
// (never sampled as a target, or simply absent from the graph) reports
// ok=false rather than a zero value, per §4.9's "if unavailable, their
// signals return zero" contract handled upstream by the signal
// computer.
func (c *ApproxHostCentrality) HostCentrality(hostID uint64) (float64, bool) {
	var val float64
	var ok bool
	_ = c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(centralityBucket)
		if bucket == nil {
			return nil
		}
		raw := bucket.Get(encodeNodeID(hostID))
		if raw == nil {
			return nil
		}
		val = decodeFloat64(raw)
		ok = true
		return nil
	})
	return val, ok
}

// Close releases the underlying bbolt handle.
func (c *ApproxHostCentrality) Close() error { return c.db.Close() }

func sampleNodes(candidates []uint64, n int, rng *rand.Rand) []uint64 {
	if n >= len(candidates) {
		out := make([]uint64, len(candidates))
		copy(out, candidates)
		return out
	}
	perm := rng.Perm(len(candidates))
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[perm[i]]
	}
	return out
}

// truncatedSSSP runs an unweighted BFS from source, stopping after
// maxHops layers. The result maps every reached node to its hop
// distance from source (0 for source itself).
func truncatedSSSP(graph Graph, source uint64, maxHops int) map[uint64]int {
	dist := map[uint64]int{source: 0}
	frontier := []uint64{source}
	for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
		var next []uint64
		for _, node := range frontier {
			for _, neighbor := range graph.OutEdges(node) {
				if _, seen := dist[neighbor]; seen {
					continue
				}
				dist[neighbor] = hop
				next = append(next, neighbor)
			}
		}
		frontier = next
	}
	return dist
}

func encodeNodeID(node uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], node)
	return b[:]
}

func encodeFloat64(v float64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	return b[:]
}

func decodeFloat64(raw []byte) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(raw))
}
