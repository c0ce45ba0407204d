package mesh

import (
	"fmt"
	"sort"

	mmath "github.com/Faultbox/meshprep/pkg/math"
)

// analysisCacheSize is the FIFO size used when checking the ACMR
// regression bound during overdraw optimization.
const analysisCacheSize = 16

// OptimizeOverdraw reorders triangles to reduce average overdraw while
// keeping the vertex cache ACMR within threshold times the ACMR of the
// input order. The input must already be cache-optimized (the output of
// OptimizeVertexCache); threshold must be >= 1.0, with 1.05 a reasonable
// default.
//
// The mesh is split into cache-coherent triangle clusters which are then
// sorted by occlusion potential (clusters facing away from the mesh
// center draw last). If no clustering satisfies the ACMR bound the input
// order is returned unchanged.
func OptimizeOverdraw(indices []uint32, positions *PositionSet, threshold float32) ([]uint32, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("%w: overdraw threshold %v < 1.0", ErrInvalidConfig, threshold)
	}
	if err := validateIndices(indices, positions.count); err != nil {
		return nil, err
	}
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return []uint32{}, nil
	}

	baseline, err := AnalyzeVertexCache(indices, positions.count, analysisCacheSize)
	if err != nil {
		return nil, err
	}
	budget := threshold * baseline.ACMR

	clusters := hardClusterBoundaries(indices, positions.count)

	// Try progressively coarser clusterings until the reorder fits the
	// ACMR budget; a single cluster degenerates to the input order.
	for len(clusters) > 1 {
		order := sortClustersByOcclusion(indices, positions, clusters)
		result := applyClusterOrder(indices, clusters, order)
		stats, err := AnalyzeVertexCache(result, positions.count, analysisCacheSize)
		if err != nil {
			return nil, err
		}
		if stats.ACMR <= budget {
			return result, nil
		}
		clusters = mergeClusterPairs(clusters)
	}

	result := make([]uint32, len(indices))
	copy(result, indices)
	return result, nil
}

// hardClusterBoundaries splits the triangle sequence wherever a triangle
// misses the simulated cache on all three vertices — the points where the
// cache-optimized walk restarts on a cold region.
func hardClusterBoundaries(indices []uint32, vertexCount int) []int {
	timestamp := make([]int, vertexCount)
	for i := range timestamp {
		timestamp[i] = -1 << 30
	}
	clock := 0

	var starts []int
	for tri := 0; tri < len(indices)/3; tri++ {
		misses := 0
		for k := 0; k < 3; k++ {
			if clock-timestamp[indices[tri*3+k]] > analysisCacheSize {
				misses++
			}
		}
		if misses == 3 || tri == 0 {
			starts = append(starts, tri)
		}
		for k := 0; k < 3; k++ {
			idx := indices[tri*3+k]
			if clock-timestamp[idx] > analysisCacheSize {
				clock++
				timestamp[idx] = clock
			}
		}
	}
	return starts
}

// sortClustersByOcclusion orders clusters by how strongly they face away
// from the mesh center: likely occluders first, back-facing shells last.
func sortClustersByOcclusion(indices []uint32, positions *PositionSet, starts []int) []int {
	triangleCount := len(indices) / 3

	var meshCentroid mmath.Vec3
	for tri := 0; tri < triangleCount; tri++ {
		meshCentroid = meshCentroid.Add(triangleCentroid(indices, positions, tri))
	}
	meshCentroid = meshCentroid.Scale(1 / float32(triangleCount))

	keys := make([]float32, len(starts))
	for c := range starts {
		end := triangleCount
		if c+1 < len(starts) {
			end = starts[c+1]
		}
		var centroid, normal mmath.Vec3
		for tri := starts[c]; tri < end; tri++ {
			centroid = centroid.Add(triangleCentroid(indices, positions, tri))
			normal = normal.Add(triangleNormalArea(indices, positions, tri))
		}
		centroid = centroid.Scale(1 / float32(end-starts[c]))
		keys[c] = centroid.Sub(meshCentroid).Normalize().Dot(normal.Normalize())
	}

	order := make([]int, len(starts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if keys[order[a]] != keys[order[b]] {
			return keys[order[a]] > keys[order[b]]
		}
		return order[a] < order[b]
	})
	return order
}

// applyClusterOrder concatenates clusters in the given order.
func applyClusterOrder(indices []uint32, starts []int, order []int) []uint32 {
	triangleCount := len(indices) / 3
	result := make([]uint32, 0, len(indices))
	for _, c := range order {
		end := triangleCount
		if c+1 < len(starts) {
			end = starts[c+1]
		}
		result = append(result, indices[starts[c]*3:end*3]...)
	}
	return result
}

// mergeClusterPairs halves the cluster count by joining neighbors.
func mergeClusterPairs(starts []int) []int {
	merged := make([]int, 0, (len(starts)+1)/2)
	for i := 0; i < len(starts); i += 2 {
		merged = append(merged, starts[i])
	}
	return merged
}

func triangleCentroid(indices []uint32, positions *PositionSet, tri int) mmath.Vec3 {
	a := positions.At(int(indices[tri*3]))
	b := positions.At(int(indices[tri*3+1]))
	c := positions.At(int(indices[tri*3+2]))
	return a.Add(b).Add(c).Scale(1.0 / 3.0)
}

// triangleNormalArea returns the unnormalized cross product: a normal
// whose length is twice the triangle area.
func triangleNormalArea(indices []uint32, positions *PositionSet, tri int) mmath.Vec3 {
	a := positions.At(int(indices[tri*3]))
	b := positions.At(int(indices[tri*3+1]))
	c := positions.At(int(indices[tri*3+2]))
	return b.Sub(a).Cross(c.Sub(a))
}
