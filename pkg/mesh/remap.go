package mesh

import "fmt"

// GenerateVertexRemap builds a remap table that collapses bit-identical
// vertex records. The table maps each original vertex slot to a canonical
// slot in [0, uniqueCount); the canonical representative of a group of
// equal vertices is the one with the lowest original index.
//
// If indices is non-nil, only vertices referenced by it participate;
// unreferenced slots are marked InvalidIndex. A nil indices treats every
// vertex as referenced.
//
// The table is meant to be applied with RemapVertexBuffer and
// RemapIndexBuffer.
func GenerateVertexRemap(vertexData []byte, stride int, indices []uint32) ([]uint32, int, error) {
	if stride <= 0 || len(vertexData)%stride != 0 {
		return nil, 0, fmt.Errorf("%w: %d %% %d != 0", ErrVertexStride, len(vertexData), stride)
	}
	stream := VertexStream{Data: vertexData, Size: stride, Stride: stride}
	return GenerateVertexRemapMulti([]VertexStream{stream}, len(vertexData)/stride, indices)
}

// GenerateVertexRemapMulti is GenerateVertexRemap over a multi-stream
// vertex layout: two vertices are equal iff every stream's bytes match.
// All streams must address exactly vertexCount vertices.
func GenerateVertexRemapMulti(streams []VertexStream, vertexCount int, indices []uint32) ([]uint32, int, error) {
	if len(streams) == 0 {
		return nil, 0, fmt.Errorf("%w: no vertex streams", ErrInvalidConfig)
	}
	totalSize := 0
	for i, s := range streams {
		if s.Size <= 0 || s.Stride < s.Size {
			return nil, 0, fmt.Errorf("%w: stream %d size %d stride %d", ErrInvalidConfig, i, s.Size, s.Stride)
		}
		if s.count() < vertexCount {
			return nil, 0, fmt.Errorf("%w: stream %d holds %d vertices, want %d", ErrStreamLength, i, s.count(), vertexCount)
		}
		totalSize += s.Size
	}
	if indices != nil {
		if err := validateIndices(indices, vertexCount); err != nil {
			return nil, 0, err
		}
	}

	referenced := make([]bool, vertexCount)
	if indices == nil {
		for i := range referenced {
			referenced[i] = true
		}
	} else {
		for _, idx := range indices {
			referenced[idx] = true
		}
	}

	remap := make([]uint32, vertexCount)
	canonical := make(map[string]uint32, vertexCount)
	key := make([]byte, 0, totalSize)
	unique := 0

	// Scanning in ascending slot order makes the lowest original index the
	// canonical representative and keeps the output contiguous from 0.
	for i := 0; i < vertexCount; i++ {
		if !referenced[i] {
			remap[i] = InvalidIndex
			continue
		}
		key = key[:0]
		for _, s := range streams {
			key = append(key, s.at(i)...)
		}
		if slot, ok := canonical[string(key)]; ok {
			remap[i] = slot
			continue
		}
		slot := uint32(unique)
		canonical[string(key)] = slot
		remap[i] = slot
		unique++
	}

	return remap, unique, nil
}

// RemapVertexBuffer applies a remap table to a vertex buffer, producing a
// new buffer of exactly uniqueCount records. The table length must match
// the buffer's vertex count.
func RemapVertexBuffer(vertexData []byte, stride int, remap []uint32, uniqueCount int) ([]byte, error) {
	if stride <= 0 || len(vertexData)%stride != 0 {
		return nil, fmt.Errorf("%w: %d %% %d != 0", ErrVertexStride, len(vertexData), stride)
	}
	vertexCount := len(vertexData) / stride
	if len(remap) != vertexCount {
		return nil, fmt.Errorf("%w: table %d, vertices %d", ErrRemapLength, len(remap), vertexCount)
	}

	result := make([]byte, uniqueCount*stride)
	for i, slot := range remap {
		if slot == InvalidIndex {
			continue
		}
		if int(slot) >= uniqueCount {
			return nil, fmt.Errorf("%w: remap slot %d, unique count %d", ErrIndexRange, slot, uniqueCount)
		}
		copy(result[int(slot)*stride:], vertexData[i*stride:(i+1)*stride])
	}
	return result, nil
}

// RemapIndexBuffer rewrites an index buffer through a remap table,
// producing a new buffer of the same length.
func RemapIndexBuffer(indices []uint32, remap []uint32) ([]uint32, error) {
	if err := validateIndices(indices, len(remap)); err != nil {
		return nil, err
	}
	result := make([]uint32, len(indices))
	for i, idx := range indices {
		slot := remap[idx]
		if slot == InvalidIndex {
			return nil, fmt.Errorf("%w: index %d maps to an unused vertex", ErrIndexRange, idx)
		}
		result[i] = slot
	}
	return result, nil
}
