package schema

import (
	"hash/fnv"
	"net/url"
	"strings"
)

// HashString returns the fnv1a hash of s, used to build DedupKeys from
// textual fields at index time (and, for query-path tests, at read time).
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// URLWithoutTLD strips the scheme, "www.", and the last dot-separated
// label of the host (a cheap stand-in for public-suffix stripping), and
// returns the remaining host followed by the path, unhashed (callers
// hash it with HashString).
func URLWithoutTLD(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if i := strings.LastIndex(host, "."); i >= 0 {
		host = host[:i]
	}
	return host + u.Path
}

// ComputeDedupKeys derives the five dedup keys for a webpage from its
// stored fields. This mirrors what the indexer computes at build time;
// the search core treats the result as immutable (§3 invariant).
func ComputeDedupKeys(site, title, rawURL string, simhash uint64) DedupKeys {
	return DedupKeys{
		Site:     HashString(NormalizeHost(site)),
		Title:    HashString(strings.ToLower(strings.TrimSpace(title))),
		URL:      HashString(rawURL),
		URLNoTLD: HashString(URLWithoutTLD(rawURL)),
		Simhash:  simhash,
	}
}

// HammingDistance64 returns the Hamming distance between two 64-bit
// simhash fingerprints.
func HammingDistance64(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
