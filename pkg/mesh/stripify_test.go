package mesh

import (
	"errors"
	"testing"
)

const testRestartIndex = ^uint32(0)

func TestStripify_SequentialStrip(t *testing.T) {
	// Triangles already laid out in strip order compress into a single
	// segment of 6 vertices.
	indices := []uint32{0, 1, 2, 2, 1, 3, 2, 3, 4, 4, 3, 5}

	strip, err := Stripify(indices, testRestartIndex)
	if err != nil {
		t.Fatalf("Stripify failed: %v", err)
	}
	want := []uint32{0, 1, 2, 3, 4, 5}
	if len(strip) != len(want) {
		t.Fatalf("strip = %v, want %v", strip, want)
	}
	for i := range want {
		if strip[i] != want[i] {
			t.Fatalf("strip = %v, want %v", strip, want)
		}
	}
}

func TestStripify_RoundTrip(t *testing.T) {
	indices, positions := gridMesh(25, 20)
	optimized, err := OptimizeVertexCache(indices, positions.Count())
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}

	strip, err := Stripify(optimized, testRestartIndex)
	if err != nil {
		t.Fatalf("Stripify failed: %v", err)
	}
	back, err := Unstripify(strip, testRestartIndex)
	if err != nil {
		t.Fatalf("Unstripify failed: %v", err)
	}

	// The round trip is exact: same triangles, same order, same rotation.
	if len(back) != len(optimized) {
		t.Fatalf("round trip has %d indices, want %d", len(back), len(optimized))
	}
	for i := range optimized {
		if back[i] != optimized[i] {
			t.Fatalf("round trip differs at index %d: got %d, want %d", i, back[i], optimized[i])
		}
	}
}

func TestStripify_Compresses(t *testing.T) {
	// A long single strip expands to 3 indices per triangle and must fold
	// back to exactly the original sequence.
	strip := make([]uint32, 100)
	for i := range strip {
		strip[i] = uint32(i)
	}
	indices, err := Unstripify(strip, testRestartIndex)
	if err != nil {
		t.Fatalf("Unstripify failed: %v", err)
	}
	if len(indices) != 98*3 {
		t.Fatalf("expected %d indices, got %d", 98*3, len(indices))
	}

	folded, err := Stripify(indices, testRestartIndex)
	if err != nil {
		t.Fatalf("Stripify failed: %v", err)
	}
	if len(folded) != len(strip) {
		t.Fatalf("refolded strip has %d indices, want %d", len(folded), len(strip))
	}
	for i := range strip {
		if folded[i] != strip[i] {
			t.Fatalf("refolded strip differs at index %d", i)
		}
	}
}

func TestStripify_DisconnectedTriangles(t *testing.T) {
	// No shared edges: every triangle becomes its own segment.
	indices := []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8}

	strip, err := Stripify(indices, testRestartIndex)
	if err != nil {
		t.Fatalf("Stripify failed: %v", err)
	}
	want := []uint32{0, 1, 2, testRestartIndex, 3, 4, 5, testRestartIndex, 6, 7, 8}
	if len(strip) != len(want) {
		t.Fatalf("strip = %v, want %v", strip, want)
	}
	for i := range want {
		if strip[i] != want[i] {
			t.Fatalf("strip = %v, want %v", strip, want)
		}
	}

	back, err := Unstripify(strip, testRestartIndex)
	if err != nil {
		t.Fatalf("Unstripify failed: %v", err)
	}
	for i := range indices {
		if back[i] != indices[i] {
			t.Fatalf("round trip differs at index %d", i)
		}
	}
}

func TestStripify_Empty(t *testing.T) {
	strip, err := Stripify(nil, testRestartIndex)
	if err != nil {
		t.Fatalf("Stripify failed: %v", err)
	}
	if len(strip) != 0 {
		t.Errorf("expected empty strip, got %v", strip)
	}
	back, err := Unstripify(strip, testRestartIndex)
	if err != nil {
		t.Fatalf("Unstripify failed: %v", err)
	}
	if len(back) != 0 {
		t.Errorf("expected empty list, got %v", back)
	}
}

func TestStripify_RestartCollision(t *testing.T) {
	if _, err := Stripify([]uint32{0, 1, 0xffff}, 0xffff); !errors.Is(err, ErrRestartIndex) {
		t.Errorf("expected ErrRestartIndex, got %v", err)
	}
}

func TestStripify_IndexCount(t *testing.T) {
	if _, err := Stripify([]uint32{0, 1}, testRestartIndex); !errors.Is(err, ErrIndexCount) {
		t.Errorf("expected ErrIndexCount, got %v", err)
	}
}

func TestUnstripify_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		strip []uint32
	}{
		{"short segment", []uint32{0, 1}},
		{"short middle segment", []uint32{0, 1, 2, testRestartIndex, 3, testRestartIndex, 4, 5, 6}},
		{"empty segment", []uint32{0, 1, 2, testRestartIndex, testRestartIndex, 3, 4, 5}},
		{"trailing restart", []uint32{0, 1, 2, testRestartIndex}},
	}
	for _, tc := range cases {
		if _, err := Unstripify(tc.strip, testRestartIndex); !errors.Is(err, ErrStripMalformed) {
			t.Errorf("%s: expected ErrStripMalformed, got %v", tc.name, err)
		}
	}
}
