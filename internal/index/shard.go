package index

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/stract-search/searchcore/internal/query"
	"github.com/stract-search/searchcore/internal/schema"
)

var segmentDirPattern = regexp.MustCompile(`^segment-(\d{5})$`)

// Shard owns every segment for one shard_id and serves search/retrieve
// across them, per §4.2. Segment sets are swapped atomically so readers
// never observe a half-updated view while a reload is in progress.
type Shard struct {
	dir          string
	schema       *schema.Schema
	cacheEntries int
	watch        bool

	segments atomic.Pointer[[]*Segment]

	closeOnce sync.Once
	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
}

// OpenShard discovers and opens every segment-NNNNN directory under
// dir. If watchForNewSegments is set, an fsnotify watcher republishes
// the segment set when new segment directories appear, without
// disrupting in-flight searches against the previous set.
func OpenShard(dir string, sch *schema.Schema, cacheEntries int, watchForNewSegments bool) (*Shard, error) {
	s := &Shard{dir: dir, schema: sch, cacheEntries: cacheEntries, watch: watchForNewSegments, stopCh: make(chan struct{})}
	if err := s.reload(); err != nil {
		return nil, err
	}
	if watchForNewSegments {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("index: new segment watcher: %w", err)
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("index: watch segment dir: %w", err)
		}
		s.watcher = w
		go s.watchLoop()
	}
	return s, nil
}

func (s *Shard) watchLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				_ = s.reload()
			}
		case <-s.watcher.Errors:
		}
	}
}

func (s *Shard) reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("index: read shard dir %s: %w", s.dir, err)
	}
	var ords []uint32
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m := segmentDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		ords = append(ords, uint32(n))
	}
	sort.Slice(ords, func(i, j int) bool { return ords[i] < ords[j] })

	newSegs := make([]*Segment, 0, len(ords))
	for _, ord := range ords {
		seg, err := OpenSegment(s.dir, ord, s.schema, s.cacheEntries)
		if err != nil {
			return fmt.Errorf("index: open segment %d: %w", ord, err)
		}
		newSegs = append(newSegs, seg)
	}
	old := s.segments.Swap(&newSegs)
	if old != nil {
		for _, seg := range *old {
			_ = seg.Close()
		}
	}
	return nil
}

// Segments returns the currently published segment set.
func (s *Shard) Segments() []*Segment {
	p := s.segments.Load()
	if p == nil {
		return nil
	}
	return *p
}

// NumDocs returns the total document count across all open segments.
func (s *Shard) NumDocs() uint32 {
	var total uint32
	for _, seg := range s.Segments() {
		total += seg.NumDocs()
	}
	return total
}

// Size is the RPC-facing document count, per §6.
func (s *Shard) Size() uint64 { return uint64(s.NumDocs()) }

// SearchInitial evaluates compiled against every open segment, offering
// matches to collector through a per-segment adapter that tags doc ids
// with their segment ordinal so downstream stages can form a DocAddress.
func (s *Shard) SearchInitial(shardID ShardID, compiled *query.CompiledQuery, collector ShardCollector) error {
	for _, seg := range s.Segments() {
		adapter := segmentCollectorAdapter{shardID: shardID, segmentOrd: seg.Ord(), target: collector}
		if err := seg.SearchInitial(compiled, adapter); err != nil {
			return err
		}
	}
	return nil
}

// ShardCollector is the shard-level collection interface: matches carry
// a full DocAddress instead of a bare local doc id.
type ShardCollector interface {
	Collect(addr DocAddress, score float64, termPositions map[string]map[string][]uint32)
}

type segmentCollectorAdapter struct {
	shardID    ShardID
	segmentOrd uint32
	target     ShardCollector
}

func (a segmentCollectorAdapter) Collect(doc uint32, score float64, termPositions map[string]map[string][]uint32) {
	a.target.Collect(DocAddress{ShardID: a.shardID, SegmentOrd: a.segmentOrd, DocID: doc}, score, termPositions)
}

// Retrieve resolves DocAddresses into their stored fields. Addresses
// whose segment or doc id no longer exists are silently dropped (the
// retrieve failure edge case of §6: the document is removed from
// results rather than failing the whole request).
func (s *Shard) Retrieve(addrs []DocAddress) map[DocAddress]StoredFields {
	bySegment := make(map[uint32][]DocAddress)
	for _, a := range addrs {
		bySegment[a.SegmentOrd] = append(bySegment[a.SegmentOrd], a)
	}
	segments := s.Segments()
	segByOrd := make(map[uint32]*Segment, len(segments))
	for _, seg := range segments {
		segByOrd[seg.Ord()] = seg
	}

	out := make(map[DocAddress]StoredFields, len(addrs))
	for ord, group := range bySegment {
		seg, ok := segByOrd[ord]
		if !ok {
			continue
		}
		for _, a := range group {
			fields, err := seg.Stored(a.DocID)
			if err != nil {
				continue
			}
			out[a] = fields
		}
	}
	return out
}

// Column resolves a single document's column value for field, looking up
// the segment that owns addr's SegmentOrd. Returns ok=false if the
// segment is gone or the field has no value for that doc.
func (s *Shard) Column(addr DocAddress, field schema.FieldName) (uint64, bool, error) {
	seg := s.segmentByOrd(addr.SegmentOrd)
	if seg == nil {
		return 0, false, nil
	}
	return seg.Column(field, addr.DocID)
}

// ColumnFloat64 is Column interpreted as an IEEE-754 double.
func (s *Shard) ColumnFloat64(addr DocAddress, field schema.FieldName) (float64, bool, error) {
	seg := s.segmentByOrd(addr.SegmentOrd)
	if seg == nil {
		return 0, false, nil
	}
	return seg.ColumnFloat64(field, addr.DocID)
}

// AvgFieldLen returns the corpus-wide average token count of field
// across every open segment, for BM25 length normalization. Zero if no
// segment carries a recorded sum for field.
func (s *Shard) AvgFieldLen(field schema.FieldName) float64 {
	var sum uint64
	var count uint32
	for _, seg := range s.Segments() {
		if n, ok := seg.FieldLenSum(field); ok {
			sum += n
			count += seg.NumDocs()
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

// TermDocFreq returns how many documents in addr's segment contain term
// in field, the df input to BM25's IDF term. It returns 0 and a nil
// error if the segment is gone; an error from the segment's postings
// lookup is returned as is.
func (s *Shard) TermDocFreq(addr DocAddress, field schema.FieldName, term string) (uint64, error) {
	seg := s.segmentByOrd(addr.SegmentOrd)
	if seg == nil {
		return 0, nil
	}
	list, err := seg.Postings(field, term)
	if err != nil {
		return 0, err
	}
	return uint64(len(list)), nil
}

func (s *Shard) segmentByOrd(ord uint32) *Segment {
	for _, seg := range s.Segments() {
		if seg.Ord() == ord {
			return seg
		}
	}
	return nil
}

// Close shuts down the watcher (if any) and closes every open segment.
func (s *Shard) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		if s.watcher != nil {
			_ = s.watcher.Close()
		}
	})
	var firstErr error
	for _, seg := range s.Segments() {
		if err := seg.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
