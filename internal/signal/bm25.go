package signal

import "math"

// BM25Params holds the per-field (k1, b) tuning of Okapi BM25.
type BM25Params struct {
	K1 float64
	B  float64
}

// DefaultBM25Params is a conventional starting point (k1=1.2, b=0.75)
// used for every field unless overridden.
var DefaultBM25Params = BM25Params{K1: 1.2, B: 0.75}

// BM25 computes the Okapi BM25 contribution of one term occurrence:
// termFreq is the term's frequency in the document's field, fieldLen is
// the field's length in tokens, avgFieldLen is the corpus average for
// that field, docFreq is the number of documents containing the term,
// and numDocs is the total document count in the segment.
func BM25(params BM25Params, termFreq, fieldLen, avgFieldLen float64, docFreq, numDocs uint64) float64 {
	if numDocs == 0 || docFreq == 0 {
		return 0
	}
	idf := math.Log(1.0 + (float64(numDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
	if avgFieldLen <= 0 {
		avgFieldLen = 1
	}
	norm := 1 - params.B + params.B*(fieldLen/avgFieldLen)
	tf := (termFreq * (params.K1 + 1)) / (termFreq + params.K1*norm)
	return idf * tf
}

// SumBM25 accumulates BM25 across every query term matched in a field,
// the form the signal computer actually uses: one score per (document,
// field) combining all matched terms' individual contributions.
func SumBM25(params BM25Params, termFreqs []float64, fieldLen, avgFieldLen float64, docFreqs []uint64, numDocs uint64) float64 {
	var total float64
	for i, tf := range termFreqs {
		var df uint64
		if i < len(docFreqs) {
			df = docFreqs[i]
		}
		total += BM25(params, tf, fieldLen, avgFieldLen, df, numDocs)
	}
	return total
}
