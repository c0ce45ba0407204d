package mesh

import (
	"github.com/Faultbox/meshprep/pkg/quantize"
	"github.com/chewxy/math32"
)

// Vertex is the canonical interchange vertex: position, normal, texture
// coordinates. Pipelines with richer layouts work on raw buffers instead.
type Vertex struct {
	P [3]float32
	N [3]float32
	T [2]float32
}

// Position returns the vertex position as separate components for
// PositionSet construction.
func (v Vertex) Position() (x, y, z float32) {
	return v.P[0], v.P[1], v.P[2]
}

// PackedVertex is Vertex quantized for GPU upload: half-precision
// positions and texture coordinates, 8-bit snorm normals. 16 bytes.
type PackedVertex struct {
	P [4]uint16 // fourth component pads to 8 bytes
	N [4]int8
	T [2]uint16
}

// PackedVertexOct packs the normal as a 2x8-bit octahedral encoding
// instead, saving two bytes. 14 bytes.
type PackedVertexOct struct {
	P [3]uint16
	N [2]uint8
	T [2]uint16
}

// Pack quantizes a Vertex.
func (p *PackedVertex) Pack(v Vertex) {
	p.P[0] = quantize.Half(v.P[0])
	p.P[1] = quantize.Half(v.P[1])
	p.P[2] = quantize.Half(v.P[2])
	p.P[3] = 0

	p.N[0] = int8(quantize.Snorm(v.N[0], 8))
	p.N[1] = int8(quantize.Snorm(v.N[1], 8))
	p.N[2] = int8(quantize.Snorm(v.N[2], 8))
	p.N[3] = 0

	p.T[0] = quantize.Half(v.T[0])
	p.T[1] = quantize.Half(v.T[1])
}

// Pack quantizes a Vertex with an octahedral normal.
func (p *PackedVertexOct) Pack(v Vertex) {
	p.P[0] = quantize.Half(v.P[0])
	p.P[1] = quantize.Half(v.P[1])
	p.P[2] = quantize.Half(v.P[2])

	nsum := math32.Abs(v.N[0]) + math32.Abs(v.N[1]) + math32.Abs(v.N[2])
	nx := v.N[0] / nsum
	ny := v.N[1] / nsum
	nz := v.N[2]

	nu, nv := nx, ny
	if nz < 0 {
		nu = (1 - math32.Abs(ny)) * signNonNeg(nx)
		nv = (1 - math32.Abs(nx)) * signNonNeg(ny)
	}

	p.N[0] = uint8(quantize.Snorm(nu, 8))
	p.N[1] = uint8(quantize.Snorm(nv, 8))

	p.T[0] = quantize.Half(v.T[0])
	p.T[1] = quantize.Half(v.T[1])
}

func signNonNeg(v float32) float32 {
	if v >= 0 {
		return 1
	}
	return -1
}

// PackVertices quantizes a vertex slice into PackedVertex records.
func PackVertices(input []Vertex) []PackedVertex {
	result := make([]PackedVertex, len(input))
	for i, v := range input {
		result[i].Pack(v)
	}
	return result
}

// PackVerticesOct quantizes a vertex slice into PackedVertexOct records.
func PackVerticesOct(input []Vertex) []PackedVertexOct {
	result := make([]PackedVertexOct, len(input))
	for i, v := range input {
		result[i].Pack(v)
	}
	return result
}

// PackedVertexStride is the byte size of a serialized PackedVertex.
const PackedVertexStride = 16

// PackedVertexBytes serializes packed vertices little-endian for the
// vertex codec.
func PackedVertexBytes(vertices []PackedVertex) []byte {
	out := make([]byte, 0, len(vertices)*PackedVertexStride)
	for _, v := range vertices {
		for _, h := range v.P {
			out = append(out, byte(h), byte(h>>8))
		}
		for _, n := range v.N {
			out = append(out, byte(n))
		}
		for _, h := range v.T {
			out = append(out, byte(h), byte(h>>8))
		}
	}
	return out
}

// VertexBytes serializes float vertices little-endian, 32 bytes each.
func VertexBytes(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*32)
	off := 0
	put := func(f float32) {
		putFloat32(out[off:], f)
		off += 4
	}
	for _, v := range vertices {
		put(v.P[0])
		put(v.P[1])
		put(v.P[2])
		put(v.N[0])
		put(v.N[1])
		put(v.N[2])
		put(v.T[0])
		put(v.T[1])
	}
	return out
}
