// Package rpc implements the coordinator-to-shard wire protocol of §6:
// length-prefixed, CBOR-encoded request/response messages over TCP.
// One connection carries exactly one request/response pair, mirroring
// the per-call connection lifecycle of the teacher's daemon client.
package rpc

import (
	"github.com/stract-search/searchcore/internal/index"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/schema"
	"github.com/stract-search/searchcore/internal/signal"
)

// Method names for the five RPCs of §6.
const (
	MethodSearch      = "search"
	MethodRetrieve    = "retrieve"
	MethodSize        = "size"
	MethodGetWebpage  = "get_webpage"
	MethodGetHomepage = "get_homepage"
)

// Request is the envelope every call sends: a monotonic ID for
// matching (unused over the one-shot connection model but kept for
// parity with the teacher's protocol and for future connection
// pooling), a method name, and a CBOR-encoded payload specific to that
// method.
type Request struct {
	ID      uint64 `cbor:"id"`
	Method  string `cbor:"method"`
	Payload []byte `cbor:"payload"`
}

// Response mirrors Request: either Payload is set, or Error is.
type Response struct {
	ID      uint64 `cbor:"id"`
	Payload []byte `cbor:"payload,omitempty"`
	Error   string `cbor:"error,omitempty"`
}

// SearchRequest is MethodSearch's payload.
type SearchRequest struct {
	Query        string       `cbor:"query"`
	DefaultField string       `cbor:"default_field"`
	Optic        *query.Optic `cbor:"optic,omitempty"`
	Page         int          `cbor:"page"`
	NumResults   int          `cbor:"num_results"`
}

// WireWebpage is the wire form of local.RecallRankingWebpage.
type WireWebpage struct {
	Addr         index.DocAddress   `cbor:"addr"`
	Values       signal.Values      `cbor:"values"`
	Coefficients signal.Coefficient `cbor:"coefficients"`
	Score        float64            `cbor:"score"`
	DedupKeys    schema.DedupKeys   `cbor:"dedup_keys"`
}

// SearchResponse is MethodSearch's result payload.
type SearchResponse struct {
	TopDocs []WireWebpage `cbor:"top_docs"`
	NumHits uint64        `cbor:"num_hits"`
}

// RetrieveRequest is MethodRetrieve's payload.
type RetrieveRequest struct {
	Addrs []index.DocAddress `cbor:"addrs"`
}

// WireRetrievedWebpage is the wire form of local.RetrievedWebpage.
type WireRetrievedWebpage struct {
	Addr        index.DocAddress   `cbor:"addr"`
	Fields      index.StoredFields `cbor:"fields"`
	SnippetText string             `cbor:"snippet_text"`
	Highlights  []index.Span       `cbor:"highlights"`
}

// RetrieveResponse is MethodRetrieve's result payload.
type RetrieveResponse struct {
	Pages []WireRetrievedWebpage `cbor:"pages"`
}

// SizeResponse is MethodSize's result payload, per §6.
type SizeResponse struct {
	NumPages uint64 `cbor:"num_pages"`
}

// GetWebpageRequest is MethodGetWebpage's payload.
type GetWebpageRequest struct {
	URL string `cbor:"url"`
}

// GetHomepageRequest is MethodGetHomepage's payload.
type GetHomepageRequest struct {
	Host string `cbor:"host"`
}

// GetPageResponse answers both MethodGetWebpage and MethodGetHomepage:
// Found is false if no matching document exists on this shard.
type GetPageResponse struct {
	Found bool                 `cbor:"found"`
	Page  WireRetrievedWebpage `cbor:"page,omitempty"`
}
