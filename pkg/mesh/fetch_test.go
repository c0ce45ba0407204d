package mesh

import (
	"bytes"
	"errors"
	"testing"
)

func TestOptimizeVertexFetchRemap_FirstUseOrder(t *testing.T) {
	indices := []uint32{5, 2, 7, 2, 7, 0}

	remap, unique, err := OptimizeVertexFetchRemap(indices, 8)
	if err != nil {
		t.Fatalf("OptimizeVertexFetchRemap failed: %v", err)
	}
	if unique != 4 {
		t.Fatalf("expected 4 unique vertices, got %d", unique)
	}
	if remap[5] != 0 || remap[2] != 1 || remap[7] != 2 || remap[0] != 3 {
		t.Errorf("remap = %v, want first-use order 5->0 2->1 7->2 0->3", remap)
	}
	for _, v := range []int{1, 3, 4, 6} {
		if remap[v] != InvalidIndex {
			t.Errorf("remap[%d] = %d, want InvalidIndex", v, remap[v])
		}
	}
}

func TestOptimizeVertexFetch(t *testing.T) {
	// 4 vertices of 4 bytes each, only three referenced.
	data := []byte{
		10, 10, 10, 10,
		20, 20, 20, 20,
		30, 30, 30, 30,
		40, 40, 40, 40,
	}
	indices := []uint32{2, 0, 3}

	result, unique, err := OptimizeVertexFetch(data, 4, indices)
	if err != nil {
		t.Fatalf("OptimizeVertexFetch failed: %v", err)
	}
	if unique != 3 {
		t.Fatalf("expected 3 unique vertices, got %d", unique)
	}
	want := []byte{
		30, 30, 30, 30,
		10, 10, 10, 10,
		40, 40, 40, 40,
	}
	if !bytes.Equal(result, want) {
		t.Errorf("vertex buffer = %v, want %v", result, want)
	}
	if indices[0] != 0 || indices[1] != 1 || indices[2] != 2 {
		t.Errorf("indices = %v, want [0 1 2]", indices)
	}
}

func TestOptimizeVertexFetch_PreservesTriangleOrder(t *testing.T) {
	indices, positions := gridMesh(10, 10)
	optimized, err := OptimizeVertexCache(shuffleIndices(indices), positions.Count())
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}

	work := make([]uint32, len(optimized))
	copy(work, optimized)
	_, unique, err := OptimizeVertexFetch(positions.data, 12, work)
	if err != nil {
		t.Fatalf("OptimizeVertexFetch failed: %v", err)
	}
	if unique != positions.Count() {
		t.Errorf("expected all %d vertices referenced, got %d", positions.Count(), unique)
	}

	// Triangle sequence is untouched, only vertex numbers change: the
	// first occurrences of new indices must count up from zero.
	next := uint32(0)
	seen := make(map[uint32]bool)
	for _, idx := range work {
		if !seen[idx] {
			if idx != next {
				t.Fatalf("first use of %d out of order, want %d", idx, next)
			}
			seen[idx] = true
			next++
		}
	}
}

func TestOptimizeVertexFetch_StrideError(t *testing.T) {
	if _, _, err := OptimizeVertexFetch(make([]byte, 10), 4, []uint32{0, 1, 2}); !errors.Is(err, ErrVertexStride) {
		t.Errorf("expected ErrVertexStride, got %v", err)
	}
}
