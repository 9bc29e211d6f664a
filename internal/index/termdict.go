package index

import (
	"bytes"
	"fmt"
	"os"

	"github.com/blevesearch/vellum"
)

// TermDictBuilder accumulates (term -> postings offset) pairs and writes
// them as a finite state transducer. vellum requires keys inserted in
// lexicographic order, which matches how segment construction already
// walks each field's term set.
type TermDictBuilder struct {
	buf     bytes.Buffer
	builder *vellum.Builder
	last    string
}

func NewTermDictBuilder() (*TermDictBuilder, error) {
	b := &TermDictBuilder{}
	vb, err := vellum.New(&b.buf, nil)
	if err != nil {
		return nil, fmt.Errorf("index: new term dict builder: %w", err)
	}
	b.builder = vb
	return b, nil
}

// Insert adds term -> offset. term must be lexicographically >= the
// previously inserted term.
func (b *TermDictBuilder) Insert(term string, offset uint64) error {
	if b.last != "" && term < b.last {
		return fmt.Errorf("index: term dict keys out of order: %q after %q", term, b.last)
	}
	b.last = term
	if err := b.builder.Insert([]byte(term), offset); err != nil {
		return fmt.Errorf("index: insert term %q: %w", term, err)
	}
	return nil
}

// Close finalizes the FST and returns its serialized bytes.
func (b *TermDictBuilder) Close() ([]byte, error) {
	if err := b.builder.Close(); err != nil {
		return nil, fmt.Errorf("index: close term dict builder: %w", err)
	}
	return b.buf.Bytes(), nil
}

// TermDict is the read side: a memory-mapped FST giving O(term length)
// lookup of a term's postings offset without loading the whole
// dictionary into the heap.
type TermDict struct {
	fst *vellum.FST
}

// OpenTermDict loads the FST from an already memory-mapped byte slice
// (the segment's per-field terms.<field>.fst file, via blevesearch/mmap-go).
func OpenTermDict(data []byte) (*TermDict, error) {
	fst, err := vellum.Load(data)
	if err != nil {
		return nil, fmt.Errorf("index: load term dict: %w", err)
	}
	return &TermDict{fst: fst}, nil
}

// Lookup returns the postings offset for term, or found=false if the
// term does not appear in this segment's dictionary for the field it
// belongs to.
func (d *TermDict) Lookup(term string) (offset uint64, found bool, err error) {
	v, exists, err := d.fst.Get([]byte(term))
	if err != nil {
		return 0, false, fmt.Errorf("index: term dict lookup %q: %w", term, err)
	}
	return v, exists, nil
}

// Close releases the underlying FST resources.
func (d *TermDict) Close() error {
	if d.fst == nil {
		return nil
	}
	return d.fst.Close()
}

// writeFile is a small helper shared by the builder paths below to write
// a file atomically enough for single-writer segment construction (no
// concurrent readers exist until the directory is published).
func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("index: create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("index: write %s: %w", path, err)
	}
	return f.Sync()
}
