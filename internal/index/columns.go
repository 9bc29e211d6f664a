package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stract-search/searchcore/internal/schema"
)

// columnCache memoizes decoded uint64 column values per (field, docID) so
// hot signals (host_centrality, fetch_timestamp) touched by every
// candidate during scoring don't re-read mmap'd pages each stage.
type columnCacheKey struct {
	field schema.FieldName
	docID uint32
}

// ColumnStore is a segment's dense fixed-width column storage: one
// []uint64-equivalent array per column field, plus a presence bitset so a
// missing value (field absent on that document) is distinguishable from a
// stored zero.
type ColumnStore struct {
	mu       sync.Mutex
	data     []byte // raw mmap'd bytes, 8 bytes per (field, doc) in field-major order
	present  map[schema.FieldName]*roaring.Bitmap
	fields   []schema.FieldName
	numDocs  uint32
	cache    *lru.Cache[columnCacheKey, uint64]
}

// OpenColumnStore wraps raw bytes (already memory-mapped) plus the
// presence bitsets decoded from the segment's columns.meta sidecar.
func OpenColumnStore(data []byte, fields []schema.FieldName, present map[schema.FieldName]*roaring.Bitmap, numDocs uint32, cacheEntries int) (*ColumnStore, error) {
	if cacheEntries <= 0 {
		cacheEntries = 4096
	}
	c, err := lru.New[columnCacheKey, uint64](cacheEntries)
	if err != nil {
		return nil, fmt.Errorf("index: new column cache: %w", err)
	}
	return &ColumnStore{
		data:    data,
		present: present,
		fields:  fields,
		numDocs: numDocs,
		cache:   c,
	}, nil
}

func (c *ColumnStore) fieldIndex(field schema.FieldName) (int, bool) {
	for i, f := range c.fields {
		if f == field {
			return i, true
		}
	}
	return 0, false
}

// Get returns the raw uint64 bit pattern stored for (field, docID), and
// whether the field is present on that document at all.
func (c *ColumnStore) Get(field schema.FieldName, docID uint32) (uint64, bool, error) {
	idx, ok := c.fieldIndex(field)
	if !ok {
		return 0, false, fmt.Errorf("index: column field %q not present in this segment's schema", field)
	}
	if docID >= c.numDocs {
		return 0, false, fmt.Errorf("index: doc id %d out of range (numDocs=%d)", docID, c.numDocs)
	}
	if bm, ok := c.present[field]; ok && !bm.Contains(docID) {
		return 0, false, nil
	}
	key := columnCacheKey{field: field, docID: docID}
	if v, ok := c.cache.Get(key); ok {
		return v, true, nil
	}
	off := (int64(idx)*int64(c.numDocs) + int64(docID)) * 8
	if off+8 > int64(len(c.data)) {
		return 0, false, fmt.Errorf("index: column offset out of bounds for field %q doc %d", field, docID)
	}
	v := binary.LittleEndian.Uint64(c.data[off : off+8])
	c.cache.Add(key, v)
	return v, true, nil
}

// GetFloat64 interprets the stored bit pattern as an IEEE-754 float,
// used for host_centrality and similar real-valued signals.
func (c *ColumnStore) GetFloat64(field schema.FieldName, docID uint32) (float64, bool, error) {
	bits, ok, err := c.Get(field, docID)
	if err != nil || !ok {
		return 0, ok, err
	}
	return math.Float64frombits(bits), true, nil
}

// EncodeColumns builds the field-major dense byte layout for numDocs
// documents given a value provider, along with one presence bitmap per
// field. Missing values contribute no bitmap bit; their slot is left
// zeroed but must never be read without checking presence first.
func EncodeColumns(fields []schema.FieldName, numDocs uint32, value func(field schema.FieldName, docID uint32) (uint64, bool)) ([]byte, map[schema.FieldName]*roaring.Bitmap) {
	data := make([]byte, int(numDocs)*len(fields)*8)
	present := make(map[schema.FieldName]*roaring.Bitmap, len(fields))
	for idx, field := range fields {
		bm := roaring.New()
		for doc := uint32(0); doc < numDocs; doc++ {
			v, ok := value(field, doc)
			if !ok {
				continue
			}
			bm.Add(doc)
			off := (int64(idx)*int64(numDocs) + int64(doc)) * 8
			binary.LittleEndian.PutUint64(data[off:off+8], v)
		}
		present[field] = bm
	}
	return data, present
}

// Float64Bits converts a float64 signal value to its column wire
// representation.
func Float64Bits(v float64) uint64 { return math.Float64bits(v) }
