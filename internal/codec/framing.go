// Package codec provides the length-prefixed binary framing used to
// serialize the zkVM witness stream and its variable-length fields
// (NMT proof lists, row-root lists). Adapted from the teacher's
// length-prefixed protobuf codec, generalized from proto.Message payloads
// to raw byte payloads since the witness stream's fields are the spec's
// own fixed/custom encodings, not protobuf messages.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Framer encodes/decodes a stream of length-prefixed byte chunks.
type Framer struct {
	maxChunkSize int
}

// NewFramer builds a Framer that rejects chunks larger than maxChunkSize
// (0 means unbounded).
func NewFramer(maxChunkSize int) *Framer {
	return &Framer{maxChunkSize: maxChunkSize}
}

// WriteChunk appends a 4-byte big-endian length prefix followed by data.
func (f *Framer) WriteChunk(buf []byte, data []byte) ([]byte, error) {
	if len(data) > math.MaxUint32 {
		return nil, fmt.Errorf("chunk size %d exceeds uint32 max", len(data))
	}
	if f.maxChunkSize > 0 && len(data) > f.maxChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds max %d", len(data), f.maxChunkSize)
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	return buf, nil
}

// WriteList frames a sequence of chunks as a 4-byte big-endian element
// count followed by each length-prefixed chunk, matching spec.md §6's
// "length-prefixed list" fields (NMT proofs, selected row roots).
func (f *Framer) WriteList(buf []byte, items [][]byte) ([]byte, error) {
	if len(items) > math.MaxUint32 {
		return nil, fmt.Errorf("list length %d exceeds uint32 max", len(items))
	}
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(items)))
	for _, item := range items {
		var err error
		buf, err = f.WriteChunk(buf, item)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// ReadChunk reads one length-prefixed chunk from r.
func (f *Framer) ReadChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if f.maxChunkSize > 0 && int(n) > f.maxChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds max %d", n, f.maxChunkSize)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadList reads a length-prefixed list of chunks from r.
func (f *Framer) ReadList(r io.Reader) ([][]byte, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(countBuf[:])
	out := make([][]byte, n)
	for i := range out {
		chunk, err := f.ReadChunk(r)
		if err != nil {
			return nil, fmt.Errorf("read list item %d: %w", i, err)
		}
		out[i] = chunk
	}
	return out, nil
}
