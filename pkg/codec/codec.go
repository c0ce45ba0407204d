// Package codec implements lossless binary codecs for optimized index
// and vertex buffers. The formats exploit the regularity that the
// pkg/mesh optimizers produce — predictable edge reuse in index streams,
// small per-lane deltas in vertex streams — and the output compresses
// further under a generic byte compressor.
//
// Both formats carry a 4-byte magic and a version byte; decoders reject
// unknown magics and versions, truncated streams, trailing bytes, and
// count/stride mismatches rather than guessing.
package codec

import (
	"encoding/binary"
	"errors"
)

// Codec errors.
var (
	ErrMalformedHeader = errors.New("malformed codec header")
	ErrMalformedStream = errors.New("malformed encoded stream")
	ErrIndexCount      = errors.New("index count must be a multiple of 3")
	ErrUnknownVersion  = errors.New("unknown codec format version")
	ErrTruncated       = errors.New("truncated encoded stream")
	ErrTrailingData    = errors.New("trailing bytes after encoded stream")
	ErrCountMismatch   = errors.New("encoded count does not match expected count")
	ErrInvalidStride   = errors.New("invalid vertex stride")
	ErrIndexRange      = errors.New("decoded index out of range")
)

// Format identifiers.
const (
	indexMagic  = "MPIB"
	vertexMagic = "MPVB"
	version     = 1
)

// cursor is a byte-aligned read cursor with explicit bounds errors, so
// decoders fail cleanly on truncation instead of panicking.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) remaining() int { return len(c.data) - c.pos }

func (c *cursor) byte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, ErrTruncated
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	// n may come from a decoded uvarint; values past 2^63 wrap negative.
	if n < 0 || c.remaining() < n {
		return nil, ErrTruncated
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) uvarint() (uint64, error) {
	v, n := binary.Uvarint(c.data[c.pos:])
	if n <= 0 {
		return 0, ErrTruncated
	}
	c.pos += n
	return v, nil
}

// checkHeader consumes and validates a magic + version prefix.
func (c *cursor) checkHeader(magic string) error {
	head, err := c.bytes(len(magic) + 1)
	if err != nil {
		return err
	}
	if string(head[:len(magic)]) != magic {
		return ErrMalformedHeader
	}
	if head[len(magic)] != version {
		return ErrUnknownVersion
	}
	return nil
}

func appendHeader(out []byte, magic string) []byte {
	out = append(out, magic...)
	return append(out, version)
}

// zigzag encodes a signed delta as an unsigned value with small magnitude
// for small absolute deltas.
func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
