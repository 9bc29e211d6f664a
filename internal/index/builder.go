package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stract-search/searchcore/internal/schema"
)

// BuilderDoc is one document's field values as handed to SegmentBuilder.
// Tokens carries pre-tokenized (text, position) pairs per positional
// field; Columns carries the raw uint64 wire value per column field;
// Stored carries the verbatim field text kept for retrieval/snippets.
type BuilderDoc struct {
	Tokens  map[schema.FieldName][]TokenOccurrence
	Columns map[schema.FieldName]uint64
	Stored  StoredFields
}

// TokenOccurrence is one token instance at one position, the unit
// SegmentBuilder groups into posting lists.
type TokenOccurrence struct {
	Term     string
	Position uint32
}

// BuildSegment writes a complete segment directory at dir/segment-<ord>
// from docs, producing the same on-disk layout OpenSegment reads. This
// is the construction path exercised by tests; production indexing
// (out of scope) would call the same primitives from a bulk ingest
// pipeline.
func BuildSegment(dir string, ord uint32, sch *schema.Schema, docs []BuilderDoc) error {
	segDir := filepath.Join(dir, fmt.Sprintf("segment-%05d", ord))
	if err := os.MkdirAll(segDir, 0o755); err != nil {
		return fmt.Errorf("index: create segment dir: %w", err)
	}

	var columnFields []schema.FieldName
	for _, field := range sch.Fields {
		opts, _ := sch.FieldOptions(field)
		if opts.Positions {
			if err := buildPositionalField(segDir, field, docs); err != nil {
				return fmt.Errorf("index: build field %q: %w", field, err)
			}
		}
		if opts.Column {
			columnFields = append(columnFields, field)
		}
	}
	sort.Slice(columnFields, func(i, j int) bool { return columnFields[i] < columnFields[j] })

	fieldLenSum := make(map[schema.FieldName]uint64, len(schema.DerivedLenFields()))

	if len(columnFields) > 0 {
		numDocs := uint32(len(docs))
		data, present := EncodeColumns(columnFields, numDocs, func(field schema.FieldName, doc uint32) (uint64, bool) {
			if v, ok := docs[doc].Columns[field]; ok {
				return v, true
			}
			if source, ok := schema.DerivedLenFields()[field]; ok {
				n := uint64(len(docs[doc].Tokens[source]))
				fieldLenSum[field] += n
				return n, true
			}
			return 0, false
		})
		if err := writeFile(filepath.Join(segDir, fileColumns), data); err != nil {
			return err
		}
		presentOut := make(map[schema.FieldName][]byte, len(present))
		for field, bm := range present {
			raw, err := bm.ToBytes()
			if err != nil {
				return fmt.Errorf("index: serialize presence bitmap for %q: %w", field, err)
			}
			presentOut[field] = raw
		}
		metaRaw, err := json.Marshal(columnsMeta{Present: presentOut})
		if err != nil {
			return err
		}
		if err := writeFile(filepath.Join(segDir, fileColumnsMeta), metaRaw); err != nil {
			return err
		}
	}

	records := make([]StoredFields, len(docs))
	for i, d := range docs {
		records[i] = d.Stored
	}
	offsets, blob, err := EncodeStoredRecords(records)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(segDir, fileStoredBlob), blob); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(segDir, fileStoredOffset), EncodeOffsetTable(offsets)); err != nil {
		return err
	}

	meta := segmentMeta{NumDocs: uint32(len(docs)), ColumnFields: columnFields, FieldLenSum: fieldLenSum}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(segDir, fileSegmentMeta), metaRaw)
}

func buildPositionalField(segDir string, field schema.FieldName, docs []BuilderDoc) error {
	termDocs := make(map[string]map[uint32][]uint32) // term -> doc -> positions
	for doc, d := range docs {
		for _, occ := range d.Tokens[field] {
			byDoc, ok := termDocs[occ.Term]
			if !ok {
				byDoc = make(map[uint32][]uint32)
				termDocs[occ.Term] = byDoc
			}
			byDoc[uint32(doc)] = append(byDoc[uint32(doc)], occ.Position)
		}
	}

	terms := make([]string, 0, len(termDocs))
	for term := range termDocs {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	builder, err := NewTermDictBuilder()
	if err != nil {
		return err
	}
	var postingsBuf []byte
	for _, term := range terms {
		byDoc := termDocs[term]
		docIDs := make([]uint32, 0, len(byDoc))
		for doc := range byDoc {
			docIDs = append(docIDs, doc)
		}
		sort.Slice(docIDs, func(i, j int) bool { return docIDs[i] < docIDs[j] })
		list := make(PostingList, 0, len(docIDs))
		for _, doc := range docIDs {
			pos := byDoc[doc]
			sort.Slice(pos, func(i, j int) bool { return pos[i] < pos[j] })
			list = append(list, Posting{DocID: doc, TermFreq: uint32(len(pos)), Positions: pos})
		}
		offset := uint64(len(postingsBuf))
		postingsBuf = append(postingsBuf, EncodePostingList(list)...)
		if err := builder.Insert(term, offset); err != nil {
			return err
		}
	}
	fstBytes, err := builder.Close()
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(segDir, fmt.Sprintf(fileTerms, field)), fstBytes); err != nil {
		return err
	}
	return writeFile(filepath.Join(segDir, fmt.Sprintf(filePostings, field)), postingsBuf)
}
