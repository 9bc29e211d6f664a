package signal

import (
	"math"
	"strings"
)

// URLDepthOf counts the non-empty path segments of a URL, used for the
// URLDepth signal (deeper paths score lower by default, reflecting a
// negative default coefficient).
func URLDepthOf(rawURL string) float64 {
	path := pathOf(rawURL)
	if path == "" {
		return 0
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	count := 0
	for _, s := range segments {
		if s != "" {
			count++
		}
	}
	return float64(count)
}

// URLSlashCountOf counts total '/' characters after the scheme, a
// cheaper proxy signal alongside URLDepthOf.
func URLSlashCountOf(rawURL string) float64 {
	path := pathOf(rawURL)
	return float64(strings.Count(path, "/"))
}

// IsHomepage reports whether rawURL's path is empty or "/", per §4.4's
// "is-homepage" URL signal.
func IsHomepage(rawURL string) bool {
	path := pathOf(rawURL)
	return path == "" || path == "/"
}

func pathOf(rawURL string) string {
	rest := rawURL
	if idx := strings.Index(rest, "://"); idx != -1 {
		rest = rest[idx+3:]
	}
	if idx := strings.IndexByte(rest, '/'); idx != -1 {
		return rest[idx:]
	}
	return ""
}

// DefaultRecencyLambda gives pages roughly a 90-day half-life absent an
// optic override: ln(2)/90.
const DefaultRecencyLambda = 0.0077

// RecencyDecay computes exp(-lambda * ageDays), the update-timestamp
// recency signal of §4.4.
func RecencyDecay(ageDays, lambda float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-lambda * ageDays)
}
