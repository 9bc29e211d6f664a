package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/stract-search/searchcore/internal/schema"
)

// StoredFields holds the subset of a document's field values marked
// "stored" in the schema (title, url, clean_body excerpt, etc.), kept
// verbatim for retrieval and snippet extraction.
type StoredFields map[schema.FieldName]string

// EncodeStoredRecords serializes one StoredFields map per document into
// the segment's stored.bin layout: a table of (offset, length) pairs
// followed by the concatenated JSON-encoded records, so any doc's
// fields can be read with a single mmap'd slice access.
func EncodeStoredRecords(records []StoredFields) (offsets []uint64, blob []byte, err error) {
	offsets = make([]uint64, len(records)+1)
	for i, rec := range records {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("index: encode stored fields for doc %d: %w", i, err)
		}
		blob = append(blob, encoded...)
		offsets[i+1] = offsets[i] + uint64(len(encoded))
	}
	return offsets, blob, nil
}

// DecodeStoredRecord reads the record for docID out of blob using the
// offsets table built by EncodeStoredRecords.
func DecodeStoredRecord(offsets []uint64, blob []byte, docID uint32) (StoredFields, error) {
	if int(docID)+1 >= len(offsets) {
		return nil, fmt.Errorf("index: doc id %d out of range for stored fields", docID)
	}
	start, end := offsets[docID], offsets[docID+1]
	if end > uint64(len(blob)) || start > end {
		return nil, fmt.Errorf("index: stored fields offset out of bounds for doc %d", docID)
	}
	var rec StoredFields
	if err := json.Unmarshal(blob[start:end], &rec); err != nil {
		return nil, fmt.Errorf("index: decode stored fields for doc %d: %w", docID, err)
	}
	return rec, nil
}

// EncodeOffsetTable serializes the offsets slice as fixed-width uint64s,
// kept as its own file so it can be mmap'd independently of the blob.
func EncodeOffsetTable(offsets []uint64) []byte {
	buf := make([]byte, 8*len(offsets))
	for i, o := range offsets {
		binary.LittleEndian.PutUint64(buf[i*8:], o)
	}
	return buf
}

// DecodeOffsetTable is the inverse of EncodeOffsetTable.
func DecodeOffsetTable(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("index: offset table length %d not a multiple of 8", len(data))
	}
	out := make([]uint64, len(data)/8)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return out, nil
}
