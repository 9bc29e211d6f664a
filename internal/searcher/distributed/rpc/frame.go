package rpc

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single message so a corrupt or hostile length
// prefix can't force an unbounded allocation.
const maxFrameBytes = 64 << 20

// writeFrame writes a 4-byte big-endian length prefix followed by
// payload, per §6's "length-prefixed framed messages".
func writeFrame(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("rpc: write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("rpc: write frame payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame from r.
func readFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("rpc: read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return nil, fmt.Errorf("rpc: frame of %d bytes exceeds limit %d", n, maxFrameBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("rpc: read frame payload: %w", err)
	}
	return payload, nil
}
