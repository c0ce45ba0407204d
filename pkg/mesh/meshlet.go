package mesh

import (
	"fmt"
	"sort"

	mmath "github.com/Faultbox/meshprep/pkg/math"
	"github.com/chewxy/math32"
)

// Meshlet caps accepted by the builders.
const (
	MaxMeshletVertices  = 255
	MaxMeshletTriangles = 512
)

// Meshlet locates one cluster inside a Meshlets container.
type Meshlet struct {
	VertexOffset   uint32
	TriangleOffset uint32
	VertexCount    uint32
	TriangleCount  uint32
}

// Meshlets holds a full meshlet decomposition: per-meshlet ranges into a
// shared vertex table (indices into the original vertex buffer) and a
// shared micro-index table (byte-sized indices into the meshlet's own
// vertex range).
type Meshlets struct {
	Meshlets  []Meshlet
	Vertices  []uint32
	Triangles []uint8
}

// MeshletView is one meshlet's slice of the shared tables.
type MeshletView struct {
	Vertices  []uint32
	Triangles []uint8
}

// Get returns a view of meshlet i.
func (m *Meshlets) Get(i int) MeshletView {
	ml := m.Meshlets[i]
	return MeshletView{
		Vertices:  m.Vertices[ml.VertexOffset : ml.VertexOffset+ml.VertexCount],
		Triangles: m.Triangles[ml.TriangleOffset : ml.TriangleOffset+ml.TriangleCount*3],
	}
}

// Bounds is a culling volume for a cluster: a bounding sphere plus a
// normal cone. A cluster is backfacing when
// dot(view, ConeAxis) >= ConeCutoff.
type Bounds struct {
	Center     mmath.Vec3
	Radius     float32
	ConeApex   mmath.Vec3
	ConeAxis   mmath.Vec3
	ConeCutoff float32
}

// BuildMeshlets splits a mesh into meshlets of at most maxVertices
// vertices and maxTriangles triangles each, growing each meshlet by
// adjacency so cluster-local vertex reuse stays high. A positive
// coneWeight additionally pulls growth toward the meshlet's spatial
// centroid, which produces more compact clusters for raytracing at some
// cost in reuse; 0 disables it, 0.25..0.5 are typical.
//
// Every input triangle lands in exactly one meshlet and no meshlet is
// empty. maxVertices must be in [3, MaxMeshletVertices], maxTriangles in
// [1, MaxMeshletTriangles], coneWeight in [0, 1].
func BuildMeshlets(indices []uint32, positions *PositionSet, maxVertices, maxTriangles int, coneWeight float32) (*Meshlets, error) {
	if maxVertices < 3 || maxVertices > MaxMeshletVertices {
		return nil, fmt.Errorf("%w: max vertices %d not in [3, %d]", ErrInvalidConfig, maxVertices, MaxMeshletVertices)
	}
	if maxTriangles < 1 || maxTriangles > MaxMeshletTriangles {
		return nil, fmt.Errorf("%w: max triangles %d not in [1, %d]", ErrInvalidConfig, maxTriangles, MaxMeshletTriangles)
	}
	if coneWeight < 0 || coneWeight > 1 {
		return nil, fmt.Errorf("%w: cone weight %v not in [0, 1]", ErrInvalidConfig, coneWeight)
	}
	if err := validateIndices(indices, positions.count); err != nil {
		return nil, err
	}

	triangleCount := len(indices) / 3
	result := &Meshlets{}
	if triangleCount == 0 {
		return result, nil
	}

	adjacency := buildAdjacency(indices, positions.count)
	assigned := make([]bool, triangleCount)
	localSlot := make([]int, positions.count) // vertex -> slot in current meshlet, -1 if absent
	for i := range localSlot {
		localSlot[i] = -1
	}

	b := meshletBuilder{
		indices:      indices,
		positions:    positions,
		adjacency:    adjacency,
		assigned:     assigned,
		localSlot:    localSlot,
		maxVertices:  maxVertices,
		maxTriangles: maxTriangles,
		coneWeight:   coneWeight,
		out:          result,
	}

	seed := 0
	for remaining := triangleCount; remaining > 0; {
		for assigned[seed] {
			seed++
		}
		remaining -= b.grow(seed)
	}
	return result, nil
}

// BuildMeshletsScan fills meshlets by scanning triangles in order,
// closing each meshlet when a cap would be exceeded. Cheaper than
// BuildMeshlets and adequate when the index buffer is already
// cache-optimized, since cache order is locality order.
func BuildMeshletsScan(indices []uint32, vertexCount, maxVertices, maxTriangles int) (*Meshlets, error) {
	if maxVertices < 3 || maxVertices > MaxMeshletVertices {
		return nil, fmt.Errorf("%w: max vertices %d not in [3, %d]", ErrInvalidConfig, maxVertices, MaxMeshletVertices)
	}
	if maxTriangles < 1 || maxTriangles > MaxMeshletTriangles {
		return nil, fmt.Errorf("%w: max triangles %d not in [1, %d]", ErrInvalidConfig, maxTriangles, MaxMeshletTriangles)
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, err
	}

	result := &Meshlets{}
	localSlot := make([]int, vertexCount)
	for i := range localSlot {
		localSlot[i] = -1
	}

	var current Meshlet
	open := false
	flush := func() {
		if open && current.TriangleCount > 0 {
			for _, v := range result.Vertices[current.VertexOffset : current.VertexOffset+current.VertexCount] {
				localSlot[v] = -1
			}
			result.Meshlets = append(result.Meshlets, current)
		}
		open = false
	}

	for tri := 0; tri < len(indices)/3; tri++ {
		a, b, c := indices[tri*3], indices[tri*3+1], indices[tri*3+2]
		if open {
			extra := 0
			for _, v := range [3]uint32{a, b, c} {
				if localSlot[v] < 0 {
					extra++
				}
			}
			// A triangle with a repeated new vertex still fits if the
			// conservative estimate does, so no special casing here.
			if int(current.VertexCount)+extra > maxVertices || int(current.TriangleCount)+1 > maxTriangles {
				flush()
			}
		}
		if !open {
			current = Meshlet{
				VertexOffset:   uint32(len(result.Vertices)),
				TriangleOffset: uint32(len(result.Triangles)),
			}
			open = true
		}
		for _, v := range [3]uint32{a, b, c} {
			if localSlot[v] < 0 {
				localSlot[v] = int(current.VertexCount)
				result.Vertices = append(result.Vertices, v)
				current.VertexCount++
			}
			result.Triangles = append(result.Triangles, uint8(localSlot[v]))
		}
		current.TriangleCount++
	}
	flush()
	return result, nil
}

type meshletBuilder struct {
	indices      []uint32
	positions    *PositionSet
	adjacency    [][]int
	assigned     []bool
	localSlot    []int
	maxVertices  int
	maxTriangles int
	coneWeight   float32
	out          *Meshlets
}

// grow builds one meshlet starting from seed and returns the number of
// triangles consumed.
func (b *meshletBuilder) grow(seed int) int {
	current := Meshlet{
		VertexOffset:   uint32(len(b.out.Vertices)),
		TriangleOffset: uint32(len(b.out.Triangles)),
	}
	var centroidSum mmath.Vec3
	taken := 0

	add := func(tri int) {
		b.assigned[tri] = true
		for k := 0; k < 3; k++ {
			v := b.indices[tri*3+k]
			if b.localSlot[v] < 0 {
				b.localSlot[v] = int(current.VertexCount)
				b.out.Vertices = append(b.out.Vertices, v)
				current.VertexCount++
			}
			b.out.Triangles = append(b.out.Triangles, uint8(b.localSlot[v]))
		}
		current.TriangleCount++
		taken++
		centroidSum = centroidSum.Add(triangleCentroid(b.indices, b.positions, tri))
	}

	add(seed)

	for int(current.TriangleCount) < b.maxTriangles {
		best := -1
		bestScore := float32(-1 << 30)

		// Candidates share at least one vertex with the meshlet.
		for _, v := range b.out.Vertices[current.VertexOffset:] {
			for _, tri := range b.adjacency[v] {
				if b.assigned[tri] {
					continue
				}
				shared, extra := 0, 0
				seen := [3]uint32{InvalidIndex, InvalidIndex, InvalidIndex}
				for k := 0; k < 3; k++ {
					tv := b.indices[tri*3+k]
					if tv == seen[0] || tv == seen[1] {
						continue
					}
					seen[k] = tv
					if b.localSlot[tv] >= 0 {
						shared++
					} else {
						extra++
					}
				}
				if int(current.VertexCount)+extra > b.maxVertices {
					continue
				}
				score := float32(shared) - 0.5*float32(extra)
				if b.coneWeight > 0 {
					centroid := centroidSum.Scale(1 / float32(taken))
					d := triangleCentroid(b.indices, b.positions, tri).Distance(centroid)
					score += b.coneWeight / (1 + d)
				}
				if score > bestScore || (score == bestScore && tri < best) {
					bestScore = score
					best = tri
				}
			}
		}
		if best < 0 {
			break // nothing adjacent fits
		}
		add(best)
	}

	for _, v := range b.out.Vertices[current.VertexOffset:] {
		b.localSlot[v] = -1
	}
	b.out.Meshlets = append(b.out.Meshlets, current)
	return taken
}

// ComputeClusterBounds computes a bounding sphere and normal cone for a
// small cluster (at most MaxMeshletTriangles triangles), for frustum and
// backface culling.
func ComputeClusterBounds(indices []uint32, positions *PositionSet) (Bounds, error) {
	var bounds Bounds
	if err := validateIndices(indices, positions.count); err != nil {
		return bounds, err
	}
	if len(indices)/3 > MaxMeshletTriangles {
		return bounds, fmt.Errorf("%w: %d triangles exceed cluster limit %d", ErrInvalidConfig, len(indices)/3, MaxMeshletTriangles)
	}
	if len(indices) == 0 {
		return bounds, nil
	}

	lo := positions.At(int(indices[0]))
	hi := lo
	for _, idx := range indices {
		p := positions.At(int(idx))
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	bounds.Center = lo.Add(hi).Scale(0.5)
	for _, idx := range indices {
		d := positions.At(int(idx)).Distance(bounds.Center)
		if d > bounds.Radius {
			bounds.Radius = d
		}
	}

	var axis mmath.Vec3
	for tri := 0; tri < len(indices)/3; tri++ {
		axis = axis.Add(triangleNormalArea(indices, positions, tri))
	}
	axis = axis.Normalize()
	bounds.ConeAxis = axis
	bounds.ConeApex = bounds.Center

	// Cutoff from the widest deviation of any triangle normal from the
	// axis; a degenerate spread disables cone culling (cutoff 1).
	minDot := float32(1)
	for tri := 0; tri < len(indices)/3; tri++ {
		n := triangleNormalArea(indices, positions, tri).Normalize()
		if d := n.Dot(axis); d < minDot {
			minDot = d
		}
	}
	if minDot <= 0 {
		bounds.ConeCutoff = 1
	} else {
		bounds.ConeCutoff = math32.Sqrt(1 - minDot*minDot)
	}
	return bounds, nil
}

// ComputeMeshletBounds computes Bounds for meshlet i of a decomposition.
func ComputeMeshletBounds(m *Meshlets, i int, positions *PositionSet) (Bounds, error) {
	view := m.Get(i)
	indices := make([]uint32, len(view.Triangles))
	for j, local := range view.Triangles {
		indices[j] = view.Vertices[local]
	}
	return ComputeClusterBounds(indices, positions)
}

// PartitionClusters groups pre-built clusters (each a triangle index
// list) into spatial partitions of roughly targetPartitionSize clusters,
// using cluster centroids as the locality signal. The result assigns a
// partition id to every cluster; ids are dense from 0.
func PartitionClusters(clusters [][]uint32, positions *PositionSet, targetPartitionSize int) ([]uint32, error) {
	if targetPartitionSize < 1 {
		return nil, fmt.Errorf("%w: target partition size %d", ErrInvalidConfig, targetPartitionSize)
	}
	for i, c := range clusters {
		if err := validateIndices(c, positions.count); err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i, err)
		}
		if len(c) == 0 {
			return nil, fmt.Errorf("cluster %d: %w: empty cluster", i, ErrInvalidConfig)
		}
	}

	centroids := make([]mmath.Vec3, len(clusters))
	for i, c := range clusters {
		var sum mmath.Vec3
		for tri := 0; tri < len(c)/3; tri++ {
			sum = sum.Add(triangleCentroid(c, positions, tri))
		}
		centroids[i] = sum.Scale(1 / float32(len(c)/3))
	}

	// Order clusters along the dominant spatial axis, then cut the order
	// into runs of targetPartitionSize. Nearby clusters end up together
	// without any iterative refinement.
	order := make([]int, len(clusters))
	for i := range order {
		order[i] = i
	}
	if len(clusters) > 1 {
		lo, hi := centroids[0], centroids[0]
		for _, c := range centroids[1:] {
			lo = lo.Min(c)
			hi = hi.Max(c)
		}
		extent := hi.Sub(lo)
		axisKey := func(v mmath.Vec3) float32 {
			switch {
			case extent.X >= extent.Y && extent.X >= extent.Z:
				return v.X
			case extent.Y >= extent.Z:
				return v.Y
			default:
				return v.Z
			}
		}
		sort.SliceStable(order, func(a, b int) bool {
			ka, kb := axisKey(centroids[order[a]]), axisKey(centroids[order[b]])
			if ka != kb {
				return ka < kb
			}
			return order[a] < order[b]
		})
	}

	result := make([]uint32, len(clusters))
	for rank, cluster := range order {
		result[cluster] = uint32(rank / targetPartitionSize)
	}
	return result, nil
}
