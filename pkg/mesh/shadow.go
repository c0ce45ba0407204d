package mesh

import "fmt"

// GenerateShadowIndices builds an index buffer for depth-only rendering:
// every vertex whose position matches an earlier vertex bit-for-bit is
// redirected to that earlier vertex. The vertex buffer itself is left
// untouched, so the same buffer can serve both the main pass and a Z
// pre-pass or shadow map pass.
func GenerateShadowIndices(indices []uint32, positions *PositionSet) ([]uint32, error) {
	stream := VertexStream{
		Data:   positions.data[positions.offset:],
		Size:   12,
		Stride: positions.stride,
	}
	return GenerateShadowIndicesMulti(indices, positions.count, []VertexStream{stream})
}

// GenerateShadowIndicesMulti is GenerateShadowIndices with equality taken
// over an arbitrary set of vertex streams instead of just the position.
func GenerateShadowIndicesMulti(indices []uint32, vertexCount int, streams []VertexStream) ([]uint32, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no vertex streams", ErrInvalidConfig)
	}
	totalSize := 0
	for i, s := range streams {
		if s.Size <= 0 || s.Stride < s.Size {
			return nil, fmt.Errorf("%w: stream %d size %d stride %d", ErrInvalidConfig, i, s.Size, s.Stride)
		}
		if s.count() < vertexCount {
			return nil, fmt.Errorf("%w: stream %d holds %d vertices, want %d", ErrStreamLength, i, s.count(), vertexCount)
		}
		totalSize += s.Size
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, err
	}

	// remap lazily: only vertices actually referenced get hashed.
	remap := make([]uint32, vertexCount)
	for i := range remap {
		remap[i] = InvalidIndex
	}
	first := make(map[string]uint32, vertexCount)
	key := make([]byte, 0, totalSize)

	result := make([]uint32, len(indices))
	for i, idx := range indices {
		if remap[idx] == InvalidIndex {
			key = key[:0]
			for _, s := range streams {
				key = append(key, s.at(int(idx))...)
			}
			if rep, ok := first[string(key)]; ok {
				remap[idx] = rep
			} else {
				first[string(key)] = idx
				remap[idx] = idx
			}
		}
		result[i] = remap[idx]
	}
	return result, nil
}
