package codec

import (
	"encoding/binary"
	"fmt"
)

// The index codec is a small state machine mirrored by the encoder and
// decoder: a FIFO of the last 16 emitted edges, a "next" counter for
// monotonically appearing vertices, and a last-value register for delta
// coding. Each triangle is either an edge-reuse opcode (slot * 3 +
// rotation, one byte plus the third vertex) or an explicit opcode with
// three vertex codes.
const (
	edgeFifoSize = 16
	opExplicit   = 0xF0
)

// Vertex code tags.
const (
	vtxNext  = 0x00 // value is the next counter, which then increments
	vtxDelta = 0x01 // zigzag varint delta against the last decoded value
)

type indexState struct {
	edges  [edgeFifoSize][2]uint32
	pushed int
	next   uint32
	last   uint32
}

func (s *indexState) pushEdges(a, b, c uint32) {
	s.edges[s.pushed%edgeFifoSize] = [2]uint32{a, b}
	s.pushed++
	s.edges[s.pushed%edgeFifoSize] = [2]uint32{b, c}
	s.pushed++
	s.edges[s.pushed%edgeFifoSize] = [2]uint32{c, a}
	s.pushed++
}

// edgeAt returns the edge at relative slot (0 = most recent).
func (s *indexState) edgeAt(slot int) ([2]uint32, bool) {
	if slot >= s.pushed || slot >= edgeFifoSize {
		return [2]uint32{}, false
	}
	return s.edges[(s.pushed-1-slot)%edgeFifoSize], true
}

// findEdge searches for a FIFO edge matched in reverse by some rotation
// of the triangle, preferring recent edges then lower rotations.
func (s *indexState) findEdge(tri [3]uint32) (slot, rotation int, ok bool) {
	limit := s.pushed
	if limit > edgeFifoSize {
		limit = edgeFifoSize
	}
	for slot = 0; slot < limit; slot++ {
		e := s.edges[(s.pushed-1-slot)%edgeFifoSize]
		for rotation = 0; rotation < 3; rotation++ {
			if tri[rotation] == e[1] && tri[(rotation+1)%3] == e[0] {
				return slot, rotation, true
			}
		}
	}
	return 0, 0, false
}

// EncodeIndexBuffer encodes a triangle list into a compact byte stream.
// The stream records the index count; DecodeIndexBuffer verifies it
// against the caller's expectation.
func EncodeIndexBuffer(indices []uint32) ([]byte, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexCount, len(indices))
	}

	out := appendHeader(make([]byte, 0, len(indices)+8), indexMagic)
	out = binary.AppendUvarint(out, uint64(len(indices)))

	var st indexState
	encodeVertex := func(v uint32) {
		if v == st.next {
			out = append(out, vtxNext)
			st.next++
		} else {
			out = append(out, vtxDelta)
			out = binary.AppendUvarint(out, zigzag(int64(v)-int64(st.last)))
		}
		st.last = v
	}

	for t := 0; t < len(indices)/3; t++ {
		tri := [3]uint32{indices[t*3], indices[t*3+1], indices[t*3+2]}
		if slot, rotation, ok := st.findEdge(tri); ok {
			out = append(out, byte(slot*3+rotation))
			encodeVertex(tri[(rotation+2)%3])
		} else {
			out = append(out, opExplicit)
			encodeVertex(tri[0])
			encodeVertex(tri[1])
			encodeVertex(tri[2])
		}
		st.pushEdges(tri[0], tri[1], tri[2])
	}
	return out, nil
}

// DecodeIndexBuffer decodes a stream produced by EncodeIndexBuffer,
// reproducing the original indices exactly. indexCount must match the
// count stored in the stream.
func DecodeIndexBuffer(encoded []byte, indexCount int) ([]uint32, error) {
	c := &cursor{data: encoded}
	if err := c.checkHeader(indexMagic); err != nil {
		return nil, err
	}
	count, err := c.uvarint()
	if err != nil {
		return nil, err
	}
	if count%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexCount, count)
	}
	if int(count) != indexCount {
		return nil, fmt.Errorf("%w: stream has %d, caller expects %d", ErrCountMismatch, count, indexCount)
	}

	var st indexState
	decodeVertex := func() (uint32, error) {
		tag, err := c.byte()
		if err != nil {
			return 0, err
		}
		var v uint32
		switch tag {
		case vtxNext:
			v = st.next
			st.next++
		case vtxDelta:
			raw, err := c.uvarint()
			if err != nil {
				return 0, err
			}
			d := int64(st.last) + unzigzag(raw)
			if d < 0 || d > 0xffffffff {
				return 0, fmt.Errorf("%w: delta to %d", ErrIndexRange, d)
			}
			v = uint32(d)
		default:
			return 0, fmt.Errorf("%w: vertex tag %#02x", ErrMalformedStream, tag)
		}
		st.last = v
		return v, nil
	}

	result := make([]uint32, 0, indexCount)
	for t := 0; t < indexCount/3; t++ {
		op, err := c.byte()
		if err != nil {
			return nil, err
		}
		var tri [3]uint32
		switch {
		case op < edgeFifoSize*3:
			slot, rotation := int(op)/3, int(op)%3
			e, ok := st.edgeAt(slot)
			if !ok {
				return nil, fmt.Errorf("%w: edge slot %d before any edge", ErrMalformedStream, slot)
			}
			third, err := decodeVertex()
			if err != nil {
				return nil, err
			}
			tri[rotation] = e[1]
			tri[(rotation+1)%3] = e[0]
			tri[(rotation+2)%3] = third
		case op == opExplicit:
			for k := 0; k < 3; k++ {
				if tri[k], err = decodeVertex(); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("%w: opcode %#02x", ErrMalformedStream, op)
		}
		st.pushEdges(tri[0], tri[1], tri[2])
		result = append(result, tri[0], tri[1], tri[2])
	}

	if c.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, c.remaining())
	}
	return result, nil
}

// DecodeIndexBuffer16 decodes into 16-bit indices, failing if any value
// does not fit.
func DecodeIndexBuffer16(encoded []byte, indexCount int) ([]uint16, error) {
	wide, err := DecodeIndexBuffer(encoded, indexCount)
	if err != nil {
		return nil, err
	}
	result := make([]uint16, len(wide))
	for i, v := range wide {
		if v > 0xffff {
			return nil, fmt.Errorf("%w: %d does not fit in 16 bits", ErrIndexRange, v)
		}
		result[i] = uint16(v)
	}
	return result, nil
}
