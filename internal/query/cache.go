package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stract-search/searchcore/internal/schema"
)

// cacheKey is the SHA-256 hex digest of the query text, default field,
// and optic name, so two requests for the same text under different
// optics don't collide.
type cacheKey string

func hashQuery(text string, field schema.FieldName, opticName string) cacheKey {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(field))
	h.Write([]byte{0})
	h.Write([]byte(opticName))
	return cacheKey(hex.EncodeToString(h.Sum(nil)))
}

// Cache memoizes compiled queries by content hash, per §4.3: parsing
// and optic compilation are pure functions of (text, field, optic), so
// repeated queries (a major fraction of real traffic) skip re-parsing.
type Cache struct {
	lru *lru.Cache[cacheKey, *CompiledQuery]
}

// NewCache builds a query compilation cache holding up to entries
// compiled queries.
func NewCache(entries int) (*Cache, error) {
	if entries <= 0 {
		entries = 1024
	}
	l, err := lru.New[cacheKey, *CompiledQuery](entries)
	if err != nil {
		return nil, fmt.Errorf("query: new cache: %w", err)
	}
	return &Cache{lru: l}, nil
}

// CompileCached returns a cached CompiledQuery for (text, field, optic)
// if present, otherwise compiles, caches, and returns a fresh one.
func (c *Cache) CompileCached(text string, field schema.FieldName, optic *Optic) (*CompiledQuery, error) {
	var opticName string
	if optic != nil {
		opticName = optic.Name
	}
	key := hashQuery(text, field, opticName)
	if cq, ok := c.lru.Get(key); ok {
		return cq, nil
	}
	cq, err := NewCompiledQuery(text, field, optic)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, cq)
	return cq, nil
}
