package mesh

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Simplify reduces the triangle count of a mesh by greedy edge collapse,
// aiming for targetIndexCount indices without moving any vertex further
// than targetError times the mesh extent. The result references vertices
// of the original vertex buffer; run OptimizeVertexFetch afterwards to
// compact it.
//
// Border edges (edges used by exactly one triangle) are pinned so open
// mesh silhouettes survive. The reduction stops early when no collapse
// within the error bound remains, so the result may hold more than
// targetIndexCount indices.
func Simplify(indices []uint32, positions *PositionSet, targetIndexCount int, targetError float32) ([]uint32, error) {
	if targetIndexCount < 0 || targetIndexCount%3 != 0 {
		return nil, fmt.Errorf("%w: target index count %d", ErrInvalidConfig, targetIndexCount)
	}
	if targetError < 0 {
		return nil, fmt.Errorf("%w: target error %v", ErrInvalidConfig, targetError)
	}
	if err := validateIndices(indices, positions.count); err != nil {
		return nil, err
	}

	current := make([]uint32, len(indices))
	copy(current, indices)
	if len(current) <= targetIndexCount {
		return current, nil
	}

	lo := positions.At(int(indices[0]))
	hi := lo
	for _, idx := range indices {
		p := positions.At(int(idx))
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	extent := hi.Sub(lo).Length()
	errorLimit := targetError * extent

	for len(current) > targetIndexCount {
		border := borderVertices(current, positions.count)

		type collapse struct {
			length   float32
			from, to uint32
		}
		var best *collapse
		for tri := 0; tri < len(current)/3; tri++ {
			for k := 0; k < 3; k++ {
				from := current[tri*3+k]
				to := current[tri*3+(k+1)%3]
				if from == to || border[from] {
					continue
				}
				l := positions.At(int(from)).Distance(positions.At(int(to)))
				if l > errorLimit {
					continue
				}
				c := collapse{length: l, from: from, to: to}
				if best == nil ||
					c.length < best.length ||
					(c.length == best.length && (c.from < best.from || (c.from == best.from && c.to < best.to))) {
					best = &c
				}
			}
		}
		if best == nil {
			break // nothing left within the error bound
		}

		next := current[:0]
		for tri := 0; tri < len(current)/3; tri++ {
			a, b, c := current[tri*3], current[tri*3+1], current[tri*3+2]
			if a == best.from {
				a = best.to
			}
			if b == best.from {
				b = best.to
			}
			if c == best.from {
				c = best.to
			}
			if a == b || b == c || a == c {
				continue // collapsed away
			}
			next = append(next, a, b, c)
		}
		if len(next) == len(current) {
			break // collapse removed nothing; avoid spinning
		}
		current = next
	}

	return current, nil
}

// SimplifyRatio is Simplify with the target expressed as a fraction of
// the input index count, e.g. 0.5 halves the triangle budget.
func SimplifyRatio(indices []uint32, positions *PositionSet, ratio, targetError float32) ([]uint32, error) {
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: simplify ratio %v not in (0, 1]", ErrInvalidConfig, ratio)
	}
	target := int(math32.Floor(float32(len(indices))*ratio/3)) * 3
	return Simplify(indices, positions, target, targetError)
}

// borderVertices flags vertices on open edges (edges used an odd number
// of times across the mesh), which Simplify refuses to move.
func borderVertices(indices []uint32, vertexCount int) []bool {
	type edge struct{ a, b uint32 }
	counts := make(map[edge]int, len(indices))
	for tri := 0; tri < len(indices)/3; tri++ {
		for k := 0; k < 3; k++ {
			a := indices[tri*3+k]
			b := indices[tri*3+(k+1)%3]
			if a > b {
				a, b = b, a
			}
			counts[edge{a, b}]++
		}
	}

	border := make([]bool, vertexCount)
	for e, n := range counts {
		if n%2 == 1 {
			border[e.a] = true
			border[e.b] = true
		}
	}
	return border
}
