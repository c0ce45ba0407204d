package mesh

import (
	"errors"
	"testing"
)

func TestOptimizeVertexCache_PreservesTriangles(t *testing.T) {
	indices, positions := gridMesh(25, 20)
	shuffled := shuffleIndices(indices)

	optimized, err := OptimizeVertexCache(shuffled, positions.Count())
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}
	assertSameTriangles(t, shuffled, optimized)
}

func TestOptimizeVertexCache_ImprovesACMR(t *testing.T) {
	indices, positions := gridMesh(25, 20)
	shuffled := shuffleIndices(indices)

	optimized, err := OptimizeVertexCache(shuffled, positions.Count())
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}

	before, err := AnalyzeVertexCache(shuffled, positions.Count(), 16)
	if err != nil {
		t.Fatalf("AnalyzeVertexCache failed: %v", err)
	}
	after, err := AnalyzeVertexCache(optimized, positions.Count(), 16)
	if err != nil {
		t.Fatalf("AnalyzeVertexCache failed: %v", err)
	}
	if after.ACMR > before.ACMR {
		t.Errorf("ACMR regressed: %v -> %v", before.ACMR, after.ACMR)
	}
	// A dense grid should get well below 1.5 after optimization.
	if after.ACMR > 1.5 {
		t.Errorf("optimized ACMR %v is too high for a regular grid", after.ACMR)
	}
}

func TestOptimizeVertexCache_Deterministic(t *testing.T) {
	indices, positions := gridMesh(10, 10)
	shuffled := shuffleIndices(indices)

	a, err := OptimizeVertexCache(shuffled, positions.Count())
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}
	b, err := OptimizeVertexCache(shuffled, positions.Count())
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic output at index %d", i)
		}
	}
}

func TestOptimizeVertexCache_Empty(t *testing.T) {
	out, err := OptimizeVertexCache(nil, 0)
	if err != nil {
		t.Fatalf("OptimizeVertexCache failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d indices", len(out))
	}
}

func TestOptimizeVertexCacheFIFO(t *testing.T) {
	indices, positions := gridMesh(25, 20)
	shuffled := shuffleIndices(indices)

	optimized, err := OptimizeVertexCacheFIFO(shuffled, positions.Count(), 16)
	if err != nil {
		t.Fatalf("OptimizeVertexCacheFIFO failed: %v", err)
	}
	assertSameTriangles(t, shuffled, optimized)

	before, _ := AnalyzeVertexCache(shuffled, positions.Count(), 16)
	after, _ := AnalyzeVertexCache(optimized, positions.Count(), 16)
	if after.ACMR > before.ACMR {
		t.Errorf("FIFO ACMR regressed: %v -> %v", before.ACMR, after.ACMR)
	}
}

func TestOptimizeVertexCacheFIFO_InvalidCacheSize(t *testing.T) {
	indices := cubeIndices()
	if _, err := OptimizeVertexCacheFIFO(indices, 8, 2); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for cache size 2, got %v", err)
	}
	if _, err := OptimizeVertexCacheFIFO(indices, 8, MaxCacheSize+1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for oversized cache, got %v", err)
	}
}

func TestOptimizeVertexCache_IndexErrors(t *testing.T) {
	if _, err := OptimizeVertexCache([]uint32{0, 1}, 8); !errors.Is(err, ErrIndexCount) {
		t.Errorf("expected ErrIndexCount, got %v", err)
	}
	if _, err := OptimizeVertexCache([]uint32{0, 1, 9}, 8); !errors.Is(err, ErrIndexRange) {
		t.Errorf("expected ErrIndexRange, got %v", err)
	}
}
