package mesh

import "fmt"

// OptimizeVertexFetchRemap builds a remap table that renumbers vertices
// in triangle first-use order, so that a linear walk of the index buffer
// touches vertex memory sequentially. Unreferenced vertices map to
// InvalidIndex. Apply with RemapVertexBuffer/RemapIndexBuffer; this is
// the variant to use for multi-stream layouts.
func OptimizeVertexFetchRemap(indices []uint32, vertexCount int) ([]uint32, int, error) {
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, 0, err
	}

	remap := make([]uint32, vertexCount)
	for i := range remap {
		remap[i] = InvalidIndex
	}
	next := uint32(0)
	for _, idx := range indices {
		if remap[idx] == InvalidIndex {
			remap[idx] = next
			next++
		}
	}
	return remap, int(next), nil
}

// OptimizeVertexFetch reorders a single-stream vertex buffer into triangle
// first-use order and rewrites indices in place to match. The returned
// buffer is trimmed to the vertices actually referenced; its length
// divided by stride is also returned.
//
// Run this after cache and overdraw optimization: it preserves triangle
// order exactly and only renumbers vertices.
func OptimizeVertexFetch(vertexData []byte, stride int, indices []uint32) ([]byte, int, error) {
	if stride <= 0 || len(vertexData)%stride != 0 {
		return nil, 0, fmt.Errorf("%w: %d %% %d != 0", ErrVertexStride, len(vertexData), stride)
	}
	vertexCount := len(vertexData) / stride

	remap, unique, err := OptimizeVertexFetchRemap(indices, vertexCount)
	if err != nil {
		return nil, 0, err
	}

	result := make([]byte, unique*stride)
	for v, slot := range remap {
		if slot == InvalidIndex {
			continue
		}
		copy(result[int(slot)*stride:], vertexData[v*stride:(v+1)*stride])
	}
	for i, idx := range indices {
		indices[i] = remap[idx]
	}
	return result, unique, nil
}
