package rpc

import (
	"context"
	"fmt"

	"github.com/stract-search/searchcore/internal/searcher/local"
)

// ShardHandler adapts a local.Searcher to the Handler interface, wiring
// one shard replica into the server.
type ShardHandler struct {
	searcher *local.Searcher
}

// NewShardHandler wraps searcher for serving over rpc.Server.
func NewShardHandler(searcher *local.Searcher) *ShardHandler {
	return &ShardHandler{searcher: searcher}
}

func (h *ShardHandler) HandleSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	result, err := h.searcher.Search(ctx, req.Query, req.Optic, req.Page, req.NumResults)
	if err != nil {
		return nil, fmt.Errorf("handle search: %w", err)
	}
	topDocs := make([]WireWebpage, len(result.TopDocs))
	for i, doc := range result.TopDocs {
		topDocs[i] = WireWebpage{
			Addr:         doc.Addr,
			Values:       doc.Values,
			Coefficients: doc.Coefficients,
			Score:        doc.Score,
			DedupKeys:    doc.DedupKeys,
		}
	}
	return &SearchResponse{TopDocs: topDocs, NumHits: result.NumHits}, nil
}

func (h *ShardHandler) HandleRetrieve(ctx context.Context, req RetrieveRequest) (*RetrieveResponse, error) {
	pages := h.searcher.Retrieve(req.Addrs)
	wire := make([]WireRetrievedWebpage, len(pages))
	for i, p := range pages {
		wire[i] = toWireRetrieved(p)
	}
	return &RetrieveResponse{Pages: wire}, nil
}

func (h *ShardHandler) HandleSize(ctx context.Context) (*SizeResponse, error) {
	return &SizeResponse{NumPages: h.searcher.Size()}, nil
}

func (h *ShardHandler) HandleGetWebpage(ctx context.Context, req GetWebpageRequest) (*GetPageResponse, error) {
	page, ok := h.searcher.GetByURL(req.URL)
	if !ok {
		return &GetPageResponse{Found: false}, nil
	}
	return &GetPageResponse{Found: true, Page: toWireRetrieved(*page)}, nil
}

func (h *ShardHandler) HandleGetHomepage(ctx context.Context, req GetHomepageRequest) (*GetPageResponse, error) {
	page, ok := h.searcher.GetByHost(req.Host)
	if !ok {
		return &GetPageResponse{Found: false}, nil
	}
	return &GetPageResponse{Found: true, Page: toWireRetrieved(*page)}, nil
}

func toWireRetrieved(p local.RetrievedWebpage) WireRetrievedWebpage {
	return WireRetrievedWebpage{
		Addr:        p.Addr,
		Fields:      p.Fields,
		SnippetText: p.Snippet.Text,
		Highlights:  p.Snippet.Highlights,
	}
}
