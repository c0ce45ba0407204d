// Package mesh implements the triangle mesh optimization pipeline:
// vertex deduplication, vertex cache and overdraw aware triangle
// reordering, vertex fetch reordering, meshlet construction, triangle
// stripification and mesh simplification, together with the GPU cost
// analyzers that validate each stage.
//
// All functions operate on flat buffers: a vertex buffer is a []byte of
// fixed-stride records, an index buffer is a []uint32 grouped in triples.
// Buffers passed in are borrowed for the duration of the call; returned
// buffers are owned by the caller. The intended pipeline order is
// OptimizeVertexCache, OptimizeOverdraw, OptimizeVertexFetch; the codecs
// in pkg/codec then compress the result.
package mesh

import (
	"errors"
	"fmt"

	mmath "github.com/Faultbox/meshprep/pkg/math"
	"github.com/chewxy/math32"
)

// Contract errors shared across the pipeline.
var (
	ErrIndexCount     = errors.New("index count must be a multiple of 3")
	ErrIndexRange     = errors.New("index out of range")
	ErrRemapLength    = errors.New("remap table length does not match vertex count")
	ErrVertexStride   = errors.New("vertex buffer length is not a multiple of stride")
	ErrStreamLength   = errors.New("vertex streams disagree on vertex count")
	ErrPositionOffset = errors.New("position offset does not fit in vertex stride")
	ErrInvalidConfig  = errors.New("configuration value out of range")
	ErrRestartIndex   = errors.New("restart index collides with a vertex index")
	ErrStripMalformed = errors.New("malformed triangle strip")
)

// InvalidIndex marks an unused slot in a remap table.
const InvalidIndex = ^uint32(0)

// VertexStream describes one attribute within a (possibly multi-stream)
// vertex layout: Size bytes of payload per vertex, spaced Stride bytes
// apart inside Data.
type VertexStream struct {
	Data   []byte
	Size   int
	Stride int
}

// count returns the number of vertices the stream can address. The last
// vertex only needs Size bytes, so a stream sliced to start mid-record
// still counts its tail vertex.
func (s VertexStream) count() int {
	if s.Stride == 0 || len(s.Data) < s.Size {
		return 0
	}
	return (len(s.Data)-s.Size)/s.Stride + 1
}

// at returns the attribute bytes for vertex i.
func (s VertexStream) at(i int) []byte {
	off := i * s.Stride
	return s.Data[off : off+s.Size]
}

// PositionSet is a read-only view of 3D float32 positions embedded in an
// interleaved vertex buffer. It is the capability geometry-aware stages
// (overdraw, meshlets, simplify) take instead of a full vertex layout.
type PositionSet struct {
	data   []byte
	count  int
	stride int
	offset int
}

// NewPositionSet wraps an interleaved vertex buffer. The position is read
// as three little-endian float32 values at offset bytes into each record.
func NewPositionSet(data []byte, stride, offset int) (*PositionSet, error) {
	if stride < 12 {
		return nil, fmt.Errorf("%w: stride %d", ErrInvalidConfig, stride)
	}
	if len(data)%stride != 0 {
		return nil, fmt.Errorf("%w: %d %% %d != 0", ErrVertexStride, len(data), stride)
	}
	if offset < 0 || offset+12 > stride {
		return nil, fmt.Errorf("%w: offset %d, stride %d", ErrPositionOffset, offset, stride)
	}
	return &PositionSet{
		data:   data,
		count:  len(data) / stride,
		stride: stride,
		offset: offset,
	}, nil
}

// NewPositionSetFromVec3 wraps a slice of positions directly.
func NewPositionSetFromVec3(positions []mmath.Vec3) *PositionSet {
	data := make([]byte, len(positions)*12)
	for i, p := range positions {
		putFloat32(data[i*12:], p.X)
		putFloat32(data[i*12+4:], p.Y)
		putFloat32(data[i*12+8:], p.Z)
	}
	return &PositionSet{data: data, count: len(positions), stride: 12, offset: 0}
}

// Count returns the number of vertices in the set.
func (p *PositionSet) Count() int { return p.count }

// At returns the position of vertex i.
func (p *PositionSet) At(i int) mmath.Vec3 {
	off := i*p.stride + p.offset
	return mmath.Vec3{
		X: getFloat32(p.data[off:]),
		Y: getFloat32(p.data[off+4:]),
		Z: getFloat32(p.data[off+8:]),
	}
}

func getFloat32(b []byte) float32 {
	_ = b[3]
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math32.Float32frombits(bits)
}

func putFloat32(b []byte, v float32) {
	_ = b[3]
	bits := math32.Float32bits(v)
	b[0] = byte(bits)
	b[1] = byte(bits >> 8)
	b[2] = byte(bits >> 16)
	b[3] = byte(bits >> 24)
}

// validateIndices checks triangle-list shape and the vertex count bound.
func validateIndices(indices []uint32, vertexCount int) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d", ErrIndexCount, len(indices))
	}
	for _, idx := range indices {
		if int(idx) >= vertexCount {
			return fmt.Errorf("%w: index %d, vertex count %d", ErrIndexRange, idx, vertexCount)
		}
	}
	return nil
}

// ConvertIndices32To16 narrows an index buffer to 16 bits, failing if any
// value does not fit.
func ConvertIndices32To16(indices []uint32) ([]uint16, error) {
	result := make([]uint16, len(indices))
	for i, idx := range indices {
		if idx > 0xffff {
			return nil, fmt.Errorf("%w: index %d does not fit in 16 bits", ErrIndexRange, idx)
		}
		result[i] = uint16(idx)
	}
	return result, nil
}

// ConvertIndices16To32 widens a 16-bit index buffer.
func ConvertIndices16To32(indices []uint16) []uint32 {
	result := make([]uint32, len(indices))
	for i, idx := range indices {
		result[i] = uint32(idx)
	}
	return result
}
