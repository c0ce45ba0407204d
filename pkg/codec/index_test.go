package codec

import (
	"errors"
	"testing"

	"github.com/Faultbox/meshprep/pkg/mesh"
	mmath "github.com/Faultbox/meshprep/pkg/math"
)

// gridIndices builds a cache-optimized w x h quad grid, the typical
// input to the index codec.
func gridIndices(t *testing.T, w, h int) []uint32 {
	t.Helper()
	positions := make([]mmath.Vec3, 0, (w+1)*(h+1))
	for y := 0; y <= h; y++ {
		for x := 0; x <= w; x++ {
			positions = append(positions, mmath.Vec3{X: float32(x), Y: float32(y)})
		}
	}
	indices := make([]uint32, 0, w*h*6)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint32(y*(w+1) + x)
			r := uint32(w + 1)
			indices = append(indices,
				v, v+1, v+r,
				v+1, v+r+1, v+r,
			)
		}
	}
	optimized, err := mesh.OptimizeVertexCache(indices, len(positions))
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}
	return optimized
}

func assertIndexRoundTrip(t *testing.T, indices []uint32) []byte {
	t.Helper()
	encoded, err := EncodeIndexBuffer(indices)
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}
	decoded, err := DecodeIndexBuffer(encoded, len(indices))
	if err != nil {
		t.Fatalf("DecodeIndexBuffer failed: %v", err)
	}
	if len(decoded) != len(indices) {
		t.Fatalf("decoded %d indices, want %d", len(decoded), len(indices))
	}
	for i := range indices {
		if decoded[i] != indices[i] {
			t.Fatalf("round trip differs at index %d: got %d, want %d", i, decoded[i], indices[i])
		}
	}
	return encoded
}

func TestIndexCodec_SingleTriangle(t *testing.T) {
	encoded := assertIndexRoundTrip(t, []uint32{0, 1, 2})
	// header(5) + count(1) + explicit opcode(1) + three next tags(3)
	if len(encoded) != 10 {
		t.Errorf("encoded single triangle in %d bytes, want 10", len(encoded))
	}
}

func TestIndexCodec_EdgeReuse(t *testing.T) {
	// Second triangle reuses an edge, the last two break the FIFO streak.
	assertIndexRoundTrip(t, []uint32{0, 1, 2, 2, 1, 3, 4, 6, 5, 7, 8, 9})
}

func TestIndexCodec_Empty(t *testing.T) {
	encoded := assertIndexRoundTrip(t, []uint32{})
	decoded, err := DecodeIndexBuffer(encoded, 0)
	if err != nil {
		t.Fatalf("DecodeIndexBuffer failed: %v", err)
	}
	if len(decoded) != 0 {
		t.Errorf("expected no indices, got %d", len(decoded))
	}
}

func TestIndexCodec_Grid(t *testing.T) {
	indices := gridIndices(t, 25, 20)
	encoded := assertIndexRoundTrip(t, indices)

	// Cache-optimized grids hit the edge FIFO on most triangles; anything
	// near the raw 4 bytes per index means the state machine is broken.
	if len(encoded) >= len(indices)*2 {
		t.Errorf("encoded %d indices into %d bytes, expected better than 2 bytes/index", len(indices), len(encoded))
	}
}

func TestIndexCodec_LargeIndices(t *testing.T) {
	assertIndexRoundTrip(t, []uint32{0, 70000, 2, 70000, 0xffffffff, 2})
}

func TestIndexCodec_NonMonotonic(t *testing.T) {
	assertIndexRoundTrip(t, []uint32{9, 5, 7, 1, 0, 8, 3, 3, 3})
}

func TestEncodeIndexBuffer_CountError(t *testing.T) {
	if _, err := EncodeIndexBuffer([]uint32{0, 1}); !errors.Is(err, ErrIndexCount) {
		t.Errorf("expected ErrIndexCount, got %v", err)
	}
}

func TestDecodeIndexBuffer_Truncation(t *testing.T) {
	encoded, err := EncodeIndexBuffer(gridIndices(t, 4, 4))
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}
	// Every strict prefix must fail; the full stream consumes every byte,
	// so a shorter one cannot reach the stored triangle count.
	for n := 0; n < len(encoded); n++ {
		if _, err := DecodeIndexBuffer(encoded[:n], 4*4*6); err == nil {
			t.Fatalf("prefix of %d/%d bytes decoded without error", n, len(encoded))
		}
	}
}

func TestDecodeIndexBuffer_TrailingData(t *testing.T) {
	encoded, err := EncodeIndexBuffer([]uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}
	if _, err := DecodeIndexBuffer(append(encoded, 0x00), 3); !errors.Is(err, ErrTrailingData) {
		t.Errorf("expected ErrTrailingData, got %v", err)
	}
}

func TestDecodeIndexBuffer_HeaderErrors(t *testing.T) {
	encoded, err := EncodeIndexBuffer([]uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}

	corrupt := append([]byte{}, encoded...)
	corrupt[0] = 'X'
	if _, err := DecodeIndexBuffer(corrupt, 3); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("expected ErrMalformedHeader, got %v", err)
	}

	wrongVersion := append([]byte{}, encoded...)
	wrongVersion[4] = version + 1
	if _, err := DecodeIndexBuffer(wrongVersion, 3); !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("expected ErrUnknownVersion, got %v", err)
	}
}

func TestDecodeIndexBuffer_CountMismatch(t *testing.T) {
	encoded, err := EncodeIndexBuffer([]uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}
	if _, err := DecodeIndexBuffer(encoded, 6); !errors.Is(err, ErrCountMismatch) {
		t.Errorf("expected ErrCountMismatch, got %v", err)
	}
}

func TestDecodeIndexBuffer16(t *testing.T) {
	encoded, err := EncodeIndexBuffer([]uint32{0, 1, 2})
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}
	narrow, err := DecodeIndexBuffer16(encoded, 3)
	if err != nil {
		t.Fatalf("DecodeIndexBuffer16 failed: %v", err)
	}
	if narrow[0] != 0 || narrow[1] != 1 || narrow[2] != 2 {
		t.Errorf("decoded %v, want [0 1 2]", narrow)
	}

	wide, err := EncodeIndexBuffer([]uint32{0, 70000, 2})
	if err != nil {
		t.Fatalf("EncodeIndexBuffer failed: %v", err)
	}
	if _, err := DecodeIndexBuffer16(wide, 3); !errors.Is(err, ErrIndexRange) {
		t.Errorf("expected ErrIndexRange, got %v", err)
	}
}
