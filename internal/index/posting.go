package index

import (
	"encoding/binary"
	"fmt"
)

// Posting is one document's entry in a term's posting list: its doc id
// within the segment, term frequency, and (for position-aware fields)
// the strictly increasing positions at which the term occurred.
type Posting struct {
	DocID     uint32
	TermFreq  uint32
	Positions []uint32
}

// PostingList is the ascending-by-DocID sequence of postings for one
// (field, term) pair, per §3.
type PostingList []Posting

// EncodePostingList serializes list to the segment's postings.bin wire
// format: a count, then per-posting (docID, termFreq, numPositions,
// positions...), all fixed-width little-endian uint32s. Doc-ids ascending
// plus per-doc positions packed as one contiguous unit is the format no
// pack library models directly (see DESIGN.md).
func EncodePostingList(list PostingList) []byte {
	size := 4
	for _, p := range list {
		size += 4 + 4 + 4 + 4*len(p.Positions)
	}
	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(list)))
	off += 4
	for _, p := range list {
		binary.LittleEndian.PutUint32(buf[off:], p.DocID)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], p.TermFreq)
		off += 4
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(p.Positions)))
		off += 4
		for _, pos := range p.Positions {
			binary.LittleEndian.PutUint32(buf[off:], pos)
			off += 4
		}
	}
	return buf
}

// DecodePostingList parses the wire format produced by EncodePostingList.
func DecodePostingList(data []byte) (PostingList, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("index: posting list truncated")
	}
	count := binary.LittleEndian.Uint32(data)
	off := 4
	list := make(PostingList, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+12 > len(data) {
			return nil, fmt.Errorf("index: posting list truncated at entry %d", i)
		}
		docID := binary.LittleEndian.Uint32(data[off:])
		off += 4
		termFreq := binary.LittleEndian.Uint32(data[off:])
		off += 4
		numPos := binary.LittleEndian.Uint32(data[off:])
		off += 4
		if off+4*int(numPos) > len(data) {
			return nil, fmt.Errorf("index: posting list truncated positions at entry %d", i)
		}
		positions := make([]uint32, numPos)
		for j := uint32(0); j < numPos; j++ {
			positions[j] = binary.LittleEndian.Uint32(data[off:])
			off += 4
		}
		list = append(list, Posting{DocID: docID, TermFreq: termFreq, Positions: positions})
	}
	return list, nil
}
