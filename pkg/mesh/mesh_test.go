package mesh

import (
	"sort"
	"testing"

	mmath "github.com/Faultbox/meshprep/pkg/math"
)

// cubeCorners returns the 8 corners of a unit cube.
func cubeCorners() []mmath.Vec3 {
	return []mmath.Vec3{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 0, Y: 0, Z: 1},
		{X: 1, Y: 0, Z: 1},
		{X: 1, Y: 1, Z: 1},
		{X: 0, Y: 1, Z: 1},
	}
}

// cubeIndices returns the 12 triangles of a cube, outward-facing.
func cubeIndices() []uint32 {
	return []uint32{
		0, 2, 1, 0, 3, 2, // -z
		4, 5, 6, 4, 6, 7, // +z
		0, 1, 5, 0, 5, 4, // -y
		2, 3, 7, 2, 7, 6, // +y
		1, 2, 6, 1, 6, 5, // +x
		3, 0, 4, 3, 4, 7, // -x
	}
}

// rawCubeBuffer expands the indexed cube into 36 unindexed position
// records of 12 bytes each, the classic pre-remap layout.
func rawCubeBuffer() []byte {
	corners := cubeCorners()
	out := make([]byte, 0, 36*12)
	for _, idx := range cubeIndices() {
		p := corners[idx]
		var rec [12]byte
		putFloat32(rec[0:], p.X)
		putFloat32(rec[4:], p.Y)
		putFloat32(rec[8:], p.Z)
		out = append(out, rec[:]...)
	}
	return out
}

// gridMesh builds a (w x h)-quad grid: (w+1)*(h+1) vertices and 2*w*h
// triangles, indexed row-major.
func gridMesh(w, h int) ([]uint32, *PositionSet) {
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
	return indices, NewPositionSetFromVec3(positions)
}

// triangleMultiset returns triangles as sorted exact triples for order
// insensitive comparison.
func triangleMultiset(indices []uint32) [][3]uint32 {
	tris := make([][3]uint32, len(indices)/3)
	for i := range tris {
		tris[i] = [3]uint32{indices[i*3], indices[i*3+1], indices[i*3+2]}
	}
	sort.Slice(tris, func(a, b int) bool {
		for k := 0; k < 3; k++ {
			if tris[a][k] != tris[b][k] {
				return tris[a][k] < tris[b][k]
			}
		}
		return false
	})
	return tris
}

func assertSameTriangles(t *testing.T, before, after []uint32) {
	t.Helper()
	if len(before) != len(after) {
		t.Fatalf("index count changed: %d -> %d", len(before), len(after))
	}
	a := triangleMultiset(before)
	b := triangleMultiset(after)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("triangle multiset changed at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

// shuffleIndices deterministically scrambles triangle order with a
// multiplicative congruential walk.
func shuffleIndices(indices []uint32) []uint32 {
	triangleCount := len(indices) / 3
	perm := make([]int, triangleCount)
	for i := range perm {
		perm[i] = i
	}
	state := uint64(0x2545f4914f6cdd1d)
	for i := triangleCount - 1; i > 0; i-- {
		state = state*6364136223846793005 + 1442695040888963407
		j := int(state % uint64(i+1))
		perm[i], perm[j] = perm[j], perm[i]
	}
	out := make([]uint32, 0, len(indices))
	for _, tri := range perm {
		out = append(out, indices[tri*3:tri*3+3]...)
	}
	return out
}
