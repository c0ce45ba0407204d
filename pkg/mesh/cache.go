package mesh

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Modeled cache geometry for the LRU optimizer. The first three slots are
// the triangle just emitted; they score lower than the rest of the cache
// so the walker fans out instead of revisiting one vertex forever.
const (
	lruCacheSize      = 32
	lastTriScore      = 0.75
	cacheDecayPower   = 1.5
	valenceBoostScale = 2.0
	valenceBoostPower = 0.5
)

// MinCacheSize and MaxCacheSize bound the FIFO cache size accepted by
// OptimizeVertexCacheFIFO and the cache analyzer.
const (
	MinCacheSize = 3
	MaxCacheSize = 64
)

// OptimizeVertexCache reorders triangles to maximize reuse of the GPU
// post-transform vertex cache, modeled as a 32-entry LRU with scored
// slots. The output contains exactly the input triangles, reordered; the
// vertex buffer is untouched.
//
// If the index buffer covers multiple draw ranges, call this per range.
func OptimizeVertexCache(indices []uint32, vertexCount int) ([]uint32, error) {
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, err
	}
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return []uint32{}, nil
	}

	adjacency := buildAdjacency(indices, vertexCount)

	valence := make([]int, vertexCount)
	for _, idx := range indices {
		valence[idx]++
	}

	cachePos := make([]int, vertexCount) // position in cache, -1 if absent
	for i := range cachePos {
		cachePos[i] = -1
	}
	score := make([]float32, vertexCount)
	for v := 0; v < vertexCount; v++ {
		score[v] = vertexScore(cachePos[v], valence[v])
	}

	emitted := make([]bool, triangleCount)
	cache := make([]uint32, 0, lruCacheSize+3)
	result := make([]uint32, 0, len(indices))
	scanCursor := 0

	for emittedCount := 0; emittedCount < triangleCount; emittedCount++ {
		best := -1
		bestScore := float32(math32.Inf(-1))

		// Candidates are the live triangles touching any cached vertex.
		for _, v := range cache {
			for _, tri := range adjacency[v] {
				if emitted[tri] {
					continue
				}
				s := score[indices[tri*3]] + score[indices[tri*3+1]] + score[indices[tri*3+2]]
				if s > bestScore || (s == bestScore && tri < best) {
					bestScore = s
					best = tri
				}
			}
		}

		// Cold start or disconnected component: lowest remaining index.
		if best < 0 {
			for emitted[scanCursor] {
				scanCursor++
			}
			best = scanCursor
		}

		emitted[best] = true
		a, b, c := indices[best*3], indices[best*3+1], indices[best*3+2]
		result = append(result, a, b, c)

		valence[a]--
		valence[b]--
		valence[c]--

		cache = touchCache(cache, a, b, c)
		if len(cache) > lruCacheSize {
			for _, v := range cache[lruCacheSize:] {
				cachePos[v] = -1
				score[v] = vertexScore(-1, valence[v])
			}
			cache = cache[:lruCacheSize]
		}
		for pos, v := range cache {
			cachePos[v] = pos
			score[v] = vertexScore(pos, valence[v])
		}
	}

	return result, nil
}

// OptimizeVertexCacheFIFO reorders triangles against a plain FIFO cache
// of the given size. It is cheaper than OptimizeVertexCache and matches
// hardware with strict FIFO post-transform caches, at some cost in ACMR.
// cacheSize must be in [MinCacheSize, MaxCacheSize].
func OptimizeVertexCacheFIFO(indices []uint32, vertexCount int, cacheSize int) ([]uint32, error) {
	if cacheSize < MinCacheSize || cacheSize > MaxCacheSize {
		return nil, fmt.Errorf("%w: cache size %d not in [%d, %d]", ErrInvalidConfig, cacheSize, MinCacheSize, MaxCacheSize)
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, err
	}
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return []uint32{}, nil
	}

	adjacency := buildAdjacency(indices, vertexCount)

	// FIFO residency via insertion timestamps: a vertex is resident while
	// fewer than cacheSize vertices entered after it.
	timestamp := make([]int, vertexCount)
	for i := range timestamp {
		timestamp[i] = -1 << 30
	}
	clock := 0
	resident := func(v uint32) bool { return clock-timestamp[v] < cacheSize }

	emitted := make([]bool, triangleCount)
	fifo := make([]uint32, 0, cacheSize+3)
	result := make([]uint32, 0, len(indices))
	scanCursor := 0

	for emittedCount := 0; emittedCount < triangleCount; emittedCount++ {
		best := -1
		bestCached := -1
		bestOpens := 4

		for _, v := range fifo {
			if !resident(v) {
				continue
			}
			for _, tri := range adjacency[v] {
				if emitted[tri] {
					continue
				}
				cached := 0
				for k := 0; k < 3; k++ {
					if resident(indices[tri*3+k]) {
						cached++
					}
				}
				opens := 3 - cached
				if cached > bestCached ||
					(cached == bestCached && opens < bestOpens) ||
					(cached == bestCached && opens == bestOpens && tri < best) {
					bestCached = cached
					bestOpens = opens
					best = tri
				}
			}
		}

		if best < 0 {
			for emitted[scanCursor] {
				scanCursor++
			}
			best = scanCursor
		}

		emitted[best] = true
		for k := 0; k < 3; k++ {
			v := indices[best*3+k]
			result = append(result, v)
			if !resident(v) {
				clock++
				timestamp[v] = clock
				fifo = append(fifo, v)
			}
		}
		// Drop entries that aged out so the candidate scan stays short.
		for len(fifo) > 0 && !resident(fifo[0]) {
			fifo = fifo[1:]
		}
	}

	return result, nil
}

// vertexScore rates a vertex by cache position and remaining valence.
// Vertices with no remaining triangles score -1 so finished fans drop out.
func vertexScore(cachePos, valence int) float32 {
	if valence == 0 {
		return -1
	}
	var score float32
	switch {
	case cachePos < 0:
		// not in cache
	case cachePos < 3:
		score = lastTriScore
	default:
		scaler := 1 / float32(lruCacheSize-3)
		score = 1 - float32(cachePos-3)*scaler
		score = math32.Pow(score, cacheDecayPower)
	}
	score += valenceBoostScale * math32.Pow(float32(valence), -valenceBoostPower)
	return score
}

// touchCache moves a, b, c to the front of the LRU, preserving the
// relative order of everything else.
func touchCache(cache []uint32, a, b, c uint32) []uint32 {
	next := make([]uint32, 0, len(cache)+3)
	next = append(next, a, b, c)
	for _, v := range cache {
		if v != a && v != b && v != c {
			next = append(next, v)
		}
	}
	return next
}

// buildAdjacency returns, per vertex, the list of triangles touching it.
func buildAdjacency(indices []uint32, vertexCount int) [][]int {
	counts := make([]int, vertexCount)
	for _, idx := range indices {
		counts[idx]++
	}
	adjacency := make([][]int, vertexCount)
	for v := range adjacency {
		adjacency[v] = make([]int, 0, counts[v])
	}
	for tri := 0; tri < len(indices)/3; tri++ {
		for k := 0; k < 3; k++ {
			v := indices[tri*3+k]
			adjacency[v] = append(adjacency[v], tri)
		}
	}
	return adjacency
}
