package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/blevesearch/mmap-go"
	"github.com/gofrs/flock"
	"github.com/stract-search/searchcore/internal/schema"
)

// segmentFiles lists the on-disk names making up one segment directory.
const (
	fileTerms        = "terms.%s.fst"
	filePostings     = "postings.%s.bin"
	fileColumns      = "columns.bin"
	fileColumnsMeta  = "columns.meta.json"
	fileStoredBlob   = "stored.bin"
	fileStoredOffset = "stored.offsets.bin"
	fileSegmentMeta  = "segment.json"
)

// segmentMeta is the small JSON sidecar recording segment-level facts
// that aren't easily derived from the binary files themselves.
type segmentMeta struct {
	NumDocs      uint32                       `json:"num_docs"`
	ColumnFields []schema.FieldName           `json:"column_fields"`
	FieldLenSum  map[schema.FieldName]uint64  `json:"field_len_sum,omitempty"`
}

// columnsMeta records per-field presence bitmaps, serialized as roaring's
// portable format so they can be mmap'd or loaded standalone.
type columnsMeta struct {
	Present map[schema.FieldName][]byte `json:"present"`
}

// Segment is one immutable, memory-mapped unit of a shard's index:
// per-field term dictionaries and postings, dense columns, and stored
// fields for retrieval. Segments are never mutated after Open; a
// corrupt segment fails to open rather than serving partial data.
type Segment struct {
	ord    uint32
	dir    string
	schema *schema.Schema

	mu       sync.Mutex
	termDict map[schema.FieldName]*TermDict
	postings map[schema.FieldName]mmap.MMap
	columns  *ColumnStore

	columnsMmap mmap.MMap
	storedBlob  mmap.MMap
	storedOff   []uint64

	numDocs     uint32
	fieldLenSum map[schema.FieldName]uint64

	handles []*os.File
	maps    []mmap.MMap
	lock    *flock.Flock
}

// OpenSegment memory-maps the segment at dir/segment-<ord>: the term
// dictionary and postings of every schema field with positions, the
// column fields listed in the segment's metadata, and the stored fields.
// A file that is missing or fails to parse makes this segment fail to
// open; other segments in the shard are unaffected.
func OpenSegment(dir string, ord uint32, sch *schema.Schema, cacheEntries int) (*Segment, error) {
	segDir := filepath.Join(dir, fmt.Sprintf("segment-%05d", ord))
	lock := flock.New(filepath.Join(segDir, ".lock"))
	locked, err := lock.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("index: lock segment %d: %w", ord, err)
	}
	if !locked {
		return nil, fmt.Errorf("index: segment %d is locked by another process", ord)
	}

	s := &Segment{
		ord:      ord,
		dir:      segDir,
		schema:   sch,
		termDict: make(map[schema.FieldName]*TermDict),
		postings: make(map[schema.FieldName]mmap.MMap),
		lock:     lock,
	}

	metaRaw, err := os.ReadFile(filepath.Join(segDir, fileSegmentMeta))
	if err != nil {
		s.closeOnError()
		return nil, fmt.Errorf("index: read segment %d metadata: %w", ord, err)
	}
	var meta segmentMeta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		s.closeOnError()
		return nil, fmt.Errorf("index: corrupt segment %d metadata: %w", ord, err)
	}
	s.numDocs = meta.NumDocs
	s.fieldLenSum = meta.FieldLenSum

	for _, field := range sch.Fields {
		opts, _ := sch.FieldOptions(field)
		if opts.Positions {
			if err := s.openTermField(field); err != nil {
				s.closeOnError()
				return nil, fmt.Errorf("index: open segment %d field %q: %w", ord, field, err)
			}
		}
	}

	if err := s.openColumns(meta.ColumnFields, cacheEntries); err != nil {
		s.closeOnError()
		return nil, fmt.Errorf("index: open segment %d columns: %w", ord, err)
	}

	if err := s.openStored(); err != nil {
		s.closeOnError()
		return nil, fmt.Errorf("index: open segment %d stored fields: %w", ord, err)
	}

	return s, nil
}

func (s *Segment) mapFile(name string) (mmap.MMap, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, err
	}
	s.handles = append(s.handles, f)
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return mmap.MMap{}, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	s.maps = append(s.maps, m)
	return m, nil
}

func (s *Segment) openTermField(field schema.FieldName) error {
	termsData, err := s.mapFile(fmt.Sprintf(fileTerms, field))
	if err != nil {
		return err
	}
	dict, err := OpenTermDict(termsData)
	if err != nil {
		return err
	}
	s.termDict[field] = dict

	postingsData, err := s.mapFile(fmt.Sprintf(filePostings, field))
	if err != nil {
		return err
	}
	s.postings[field] = postingsData
	return nil
}

func (s *Segment) openColumns(fields []schema.FieldName, cacheEntries int) error {
	if len(fields) == 0 {
		return nil
	}
	data, err := s.mapFile(fileColumns)
	if err != nil {
		return err
	}
	s.columnsMmap = data

	metaRaw, err := os.ReadFile(filepath.Join(s.dir, fileColumnsMeta))
	if err != nil {
		return err
	}
	var cm columnsMeta
	if err := json.Unmarshal(metaRaw, &cm); err != nil {
		return fmt.Errorf("corrupt columns metadata: %w", err)
	}
	present := make(map[schema.FieldName]*roaring.Bitmap, len(cm.Present))
	for field, raw := range cm.Present {
		bm := roaring.New()
		if _, err := bm.FromBuffer(raw); err != nil {
			return fmt.Errorf("corrupt presence bitmap for %q: %w", field, err)
		}
		present[field] = bm
	}
	store, err := OpenColumnStore([]byte(data), fields, present, s.numDocs, cacheEntries)
	if err != nil {
		return err
	}
	s.columns = store
	return nil
}

func (s *Segment) openStored() error {
	offData, err := os.ReadFile(filepath.Join(s.dir, fileStoredOffset))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	offsets, err := DecodeOffsetTable(offData)
	if err != nil {
		return err
	}
	s.storedOff = offsets

	blob, err := s.mapFile(fileStoredBlob)
	if err != nil {
		return err
	}
	s.storedBlob = blob
	return nil
}

// Postings returns the decoded posting list for term in field, or an
// empty list if the term does not occur in this segment.
func (s *Segment) Postings(field schema.FieldName, term string) (PostingList, error) {
	dict, ok := s.termDict[field]
	if !ok {
		return nil, fmt.Errorf("index: field %q has no term dictionary in segment %d", field, s.ord)
	}
	offset, found, err := dict.Lookup(term)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	data := []byte(s.postings[field])
	if int(offset) >= len(data) {
		return nil, fmt.Errorf("index: posting offset out of bounds for %q/%q in segment %d", field, term, s.ord)
	}
	return DecodePostingList(data[offset:])
}

// Column returns the raw bit pattern for (field, docID).
func (s *Segment) Column(field schema.FieldName, docID uint32) (uint64, bool, error) {
	if s.columns == nil {
		return 0, false, nil
	}
	return s.columns.Get(field, docID)
}

// ColumnFloat64 is Column interpreted as an IEEE-754 double.
func (s *Segment) ColumnFloat64(field schema.FieldName, docID uint32) (float64, bool, error) {
	if s.columns == nil {
		return 0, false, nil
	}
	return s.columns.GetFloat64(field, docID)
}

// Stored returns the stored field values for docID.
func (s *Segment) Stored(docID uint32) (StoredFields, error) {
	if s.storedOff == nil {
		return nil, fmt.Errorf("index: segment %d has no stored fields", s.ord)
	}
	return DecodeStoredRecord(s.storedOff, []byte(s.storedBlob), docID)
}

// NumDocs returns the document count of this segment.
func (s *Segment) NumDocs() uint32 { return s.numDocs }

// FieldLenSum returns the summed token count of field across every
// document in this segment, for corpus-average field length (§4.4's
// BM25 length normalization). ok is false if field has no recorded sum
// (not a derived length column, or the segment predates this metadata).
func (s *Segment) FieldLenSum(field schema.FieldName) (sum uint64, ok bool) {
	sum, ok = s.fieldLenSum[field]
	return sum, ok
}

// Ord returns the segment's ordinal within its shard.
func (s *Segment) Ord() uint32 { return s.ord }

func (s *Segment) closeOnError() {
	_ = s.Close()
}

// Close unmaps all files and releases the segment's directory lock.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, m := range s.maps {
		if len(m) == 0 {
			continue
		}
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, h := range s.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, d := range s.termDict {
		_ = d.Close()
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return firstErr
}
