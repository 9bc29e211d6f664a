package signal

import (
	"math"

	"github.com/stract-search/searchcore/internal/query"
)

// CoefficientFromOptic translates an optic's string-keyed signal
// overrides into a Coefficient table. Unknown signal names (e.g. a
// stale optic referencing a retired signal) are skipped rather than
// erroring, since an optic is user-supplied data.
func CoefficientFromOptic(optic *query.Optic) Coefficient {
	var c Coefficient
	if optic == nil {
		return c
	}
	for name, delta := range optic.Coefficients {
		if e, ok := ByName(name); ok {
			c[e] = delta
		}
	}
	return c
}

// CosineSimilarity computes cosine similarity between two equal-length
// dense vectors, used for the title/keyword embedding signals. Returns
// 0 if either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
