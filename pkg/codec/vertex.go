package codec

import (
	"encoding/binary"
	"fmt"

	mmath "github.com/Faultbox/meshprep/pkg/math"
	"github.com/chewxy/math32"
)

// The vertex codec stores the buffer lane-major: for each byte offset
// within the stride, the XOR delta of that byte against the previous
// vertex's, grouped into blocks with a one-byte control (all zero vs
// raw). Quantized attributes change slowly between fetch-ordered
// vertices, so high-order lanes collapse to zero-runs. The header carries
// a byte-size table per lane, which lets the position fast path skip
// lanes it does not need.
const (
	vertexBlockSize = 256
	maxVertexStride = 256
)

// Lane block controls.
const (
	blockZero = 0x00
	blockRaw  = 0x01
)

// EncodeVertexBuffer encodes count records of stride bytes losslessly.
// Compression works best after fetch optimization and quantization, but
// any buffer round-trips exactly.
func EncodeVertexBuffer(data []byte, count, stride int) ([]byte, error) {
	if stride < 1 || stride > maxVertexStride {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStride, stride)
	}
	if len(data) != count*stride {
		return nil, fmt.Errorf("%w: %d bytes for %d x %d", ErrCountMismatch, len(data), count, stride)
	}

	out := appendHeader(make([]byte, 0, len(data)/2+16), vertexMagic)
	out = binary.AppendUvarint(out, uint64(count))
	out = binary.AppendUvarint(out, uint64(stride))

	lane := make([]byte, count)
	for l := 0; l < stride; l++ {
		prev := byte(0)
		for v := 0; v < count; v++ {
			b := data[v*stride+l]
			lane[v] = b ^ prev
			prev = b
		}
		payload := encodeLane(lane)
		out = binary.AppendUvarint(out, uint64(len(payload)))
		out = append(out, payload...)
	}
	return out, nil
}

// encodeLane packs one lane of XOR residuals into control-prefixed blocks.
func encodeLane(residuals []byte) []byte {
	out := make([]byte, 0, len(residuals)+len(residuals)/vertexBlockSize+1)
	for start := 0; start < len(residuals); start += vertexBlockSize {
		end := start + vertexBlockSize
		if end > len(residuals) {
			end = len(residuals)
		}
		block := residuals[start:end]
		zero := true
		for _, b := range block {
			if b != 0 {
				zero = false
				break
			}
		}
		if zero {
			out = append(out, blockZero)
		} else {
			out = append(out, blockRaw)
			out = append(out, block...)
		}
	}
	return out
}

// DecodeVertexBuffer reconstructs the exact source bytes. count and
// stride must match the encoding call.
func DecodeVertexBuffer(encoded []byte, count, stride int) ([]byte, error) {
	c := &cursor{data: encoded}
	storedCount, storedStride, err := decodeVertexHeader(c)
	if err != nil {
		return nil, err
	}
	if storedCount != count || storedStride != stride {
		return nil, fmt.Errorf("%w: stream has %d x %d, caller expects %d x %d",
			ErrCountMismatch, storedCount, storedStride, count, stride)
	}

	result := make([]byte, count*stride)
	lane := make([]byte, count)
	for l := 0; l < stride; l++ {
		if err := decodeLane(c, lane); err != nil {
			return nil, fmt.Errorf("lane %d: %w", l, err)
		}
		prev := byte(0)
		for v := 0; v < count; v++ {
			prev ^= lane[v]
			result[v*stride+l] = prev
		}
	}

	if c.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, c.remaining())
	}
	return result, nil
}

// DecodeVertexBufferPositions decodes only the three float32 position
// components at posOffset within each record, without materializing the
// rest of the buffer. Useful for bounding volumes and collision queries
// over compressed meshes.
func DecodeVertexBufferPositions(encoded []byte, count, stride, posOffset int) ([]mmath.Vec3, error) {
	c := &cursor{data: encoded}
	storedCount, storedStride, err := decodeVertexHeader(c)
	if err != nil {
		return nil, err
	}
	if storedCount != count || storedStride != stride {
		return nil, fmt.Errorf("%w: stream has %d x %d, caller expects %d x %d",
			ErrCountMismatch, storedCount, storedStride, count, stride)
	}
	if posOffset < 0 || posOffset+12 > stride {
		return nil, fmt.Errorf("%w: position offset %d in stride %d", ErrInvalidStride, posOffset, stride)
	}

	skipLane := func() error {
		size, err := c.uvarint()
		if err != nil {
			return err
		}
		_, err = c.bytes(int(size))
		return err
	}

	for l := 0; l < posOffset; l++ {
		if err := skipLane(); err != nil {
			return nil, fmt.Errorf("lane %d: %w", l, err)
		}
	}

	// 12 position lanes: x, y, z as little-endian float32.
	posLanes := make([][]byte, 12)
	lane := make([]byte, count)
	for k := 0; k < 12; k++ {
		if err := decodeLane(c, lane); err != nil {
			return nil, fmt.Errorf("lane %d: %w", posOffset+k, err)
		}
		raw := make([]byte, count)
		prev := byte(0)
		for v := 0; v < count; v++ {
			prev ^= lane[v]
			raw[v] = prev
		}
		posLanes[k] = raw
	}

	for l := posOffset + 12; l < stride; l++ {
		if err := skipLane(); err != nil {
			return nil, fmt.Errorf("lane %d: %w", l, err)
		}
	}
	if c.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, c.remaining())
	}

	result := make([]mmath.Vec3, count)
	component := func(v, base int) float32 {
		bits := uint32(posLanes[base][v]) |
			uint32(posLanes[base+1][v])<<8 |
			uint32(posLanes[base+2][v])<<16 |
			uint32(posLanes[base+3][v])<<24
		return math32.Float32frombits(bits)
	}
	for v := 0; v < count; v++ {
		result[v] = mmath.Vec3{X: component(v, 0), Y: component(v, 4), Z: component(v, 8)}
	}
	return result, nil
}

func decodeVertexHeader(c *cursor) (count, stride int, err error) {
	if err := c.checkHeader(vertexMagic); err != nil {
		return 0, 0, err
	}
	storedCount, err := c.uvarint()
	if err != nil {
		return 0, 0, err
	}
	storedStride, err := c.uvarint()
	if err != nil {
		return 0, 0, err
	}
	if storedStride < 1 || storedStride > maxVertexStride {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidStride, storedStride)
	}
	return int(storedCount), int(storedStride), nil
}

// decodeLane reads one lane's declared payload and expands it into
// residuals, verifying the payload length is consumed exactly.
func decodeLane(c *cursor, residuals []byte) error {
	size, err := c.uvarint()
	if err != nil {
		return err
	}
	payload, err := c.bytes(int(size))
	if err != nil {
		return err
	}

	lc := &cursor{data: payload}
	for start := 0; start < len(residuals); start += vertexBlockSize {
		end := start + vertexBlockSize
		if end > len(residuals) {
			end = len(residuals)
		}
		control, err := lc.byte()
		if err != nil {
			return err
		}
		switch control {
		case blockZero:
			for i := start; i < end; i++ {
				residuals[i] = 0
			}
		case blockRaw:
			block, err := lc.bytes(end - start)
			if err != nil {
				return err
			}
			copy(residuals[start:end], block)
		default:
			return fmt.Errorf("%w: block control %#02x", ErrMalformedStream, control)
		}
	}
	if lc.remaining() != 0 {
		return fmt.Errorf("%w: %d bytes in lane", ErrTrailingData, lc.remaining())
	}
	return nil
}
