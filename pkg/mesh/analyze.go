package mesh

import (
	"fmt"

	mmath "github.com/Faultbox/meshprep/pkg/math"
)

// VertexCacheStatistics reports simulated post-transform cache behavior.
type VertexCacheStatistics struct {
	VerticesTransformed int
	// ACMR is transformed vertices per triangle; 3.0 is the worst case,
	// ~0.5 the practical best on dense regular meshes.
	ACMR float32
	// ATVR is transformed vertices per unique vertex; 1.0 is optimal.
	ATVR float32
}

// VertexFetchStatistics reports simulated vertex memory traffic.
type VertexFetchStatistics struct {
	BytesFetched int
	// Overfetch is bytes fetched per byte of vertex data; 1.0 is optimal.
	Overfetch float32
}

// OverdrawStatistics reports simulated rasterization cost, averaged over
// orthographic views along the three principal axes.
type OverdrawStatistics struct {
	PixelsCovered int
	PixelsShaded  int
	// Overdraw is shaded fragments per covered pixel; 1.0 is optimal.
	Overdraw float32
}

// Fetch and raster simulation constants. These model a generic GPU; exact
// numbers only need to be stable, not hardware-accurate.
const (
	fetchCacheLine  = 64 // bytes per memory transaction
	fetchCacheLines = 128
	rasterViewport  = 64
)

// AnalyzeVertexCache simulates a FIFO post-transform cache of the given
// size over the index buffer and reports miss ratios. Read-only.
func AnalyzeVertexCache(indices []uint32, vertexCount, cacheSize int) (VertexCacheStatistics, error) {
	var stats VertexCacheStatistics
	if cacheSize < MinCacheSize || cacheSize > MaxCacheSize {
		return stats, fmt.Errorf("%w: cache size %d not in [%d, %d]", ErrInvalidConfig, cacheSize, MinCacheSize, MaxCacheSize)
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return stats, err
	}
	triangleCount := len(indices) / 3
	if triangleCount == 0 {
		return stats, nil
	}

	timestamp := make([]int, vertexCount)
	for i := range timestamp {
		timestamp[i] = -1 << 30
	}
	seen := make([]bool, vertexCount)
	clock := 0
	unique := 0

	for _, idx := range indices {
		if !seen[idx] {
			seen[idx] = true
			unique++
		}
		if clock-timestamp[idx] < cacheSize {
			continue // hit
		}
		clock++
		timestamp[idx] = clock
		stats.VerticesTransformed++
	}

	stats.ACMR = float32(stats.VerticesTransformed) / float32(triangleCount)
	stats.ATVR = float32(stats.VerticesTransformed) / float32(unique)
	return stats, nil
}

// AnalyzeVertexFetch estimates memory traffic for fetching vertex records
// in index order: each post-transform cache miss fetches the cache lines
// covering the record, filtered through a small FIFO of recently touched
// lines. Read-only.
func AnalyzeVertexFetch(indices []uint32, vertexCount, stride int) (VertexFetchStatistics, error) {
	var stats VertexFetchStatistics
	if stride <= 0 || stride > 256 {
		return stats, fmt.Errorf("%w: stride %d", ErrInvalidConfig, stride)
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return stats, err
	}
	if len(indices) == 0 || vertexCount == 0 {
		return stats, nil
	}

	// Post-transform cache decides which fetches happen at all.
	timestamp := make([]int, vertexCount)
	for i := range timestamp {
		timestamp[i] = -1 << 30
	}
	clock := 0

	lineStamp := make(map[int]int, fetchCacheLines)
	lineClock := 0

	for _, idx := range indices {
		if clock-timestamp[idx] < 16 {
			continue
		}
		clock++
		timestamp[idx] = clock

		start := int(idx) * stride / fetchCacheLine
		end := (int(idx)*stride + stride - 1) / fetchCacheLine
		for line := start; line <= end; line++ {
			if stamp, ok := lineStamp[line]; ok && lineClock-stamp < fetchCacheLines {
				continue
			}
			lineClock++
			lineStamp[line] = lineClock
			stats.BytesFetched += fetchCacheLine
		}
	}

	stats.Overfetch = float32(stats.BytesFetched) / float32(vertexCount*stride)
	return stats, nil
}

// AnalyzeOverdraw rasterizes the mesh orthographically along the three
// principal axes with early depth testing and reports shaded fragments
// per covered pixel. Triangle order matters: front-to-back ordering gets
// close to 1.0. Read-only.
func AnalyzeOverdraw(indices []uint32, positions *PositionSet) (OverdrawStatistics, error) {
	var stats OverdrawStatistics
	if err := validateIndices(indices, positions.count); err != nil {
		return stats, err
	}
	if len(indices) == 0 {
		return stats, nil
	}

	lo := positions.At(int(indices[0]))
	hi := lo
	for _, idx := range indices {
		p := positions.At(int(idx))
		lo = lo.Min(p)
		hi = hi.Max(p)
	}
	extent := hi.Sub(lo)
	maxExtent := extent.X
	if extent.Y > maxExtent {
		maxExtent = extent.Y
	}
	if extent.Z > maxExtent {
		maxExtent = extent.Z
	}
	if maxExtent == 0 {
		return stats, nil
	}
	scale := float32(rasterViewport-1) / maxExtent

	for axis := 0; axis < 3; axis++ {
		covered, shaded := rasterizeAxis(indices, positions, lo, scale, axis)
		stats.PixelsCovered += covered
		stats.PixelsShaded += shaded
	}
	if stats.PixelsCovered > 0 {
		stats.Overdraw = float32(stats.PixelsShaded) / float32(stats.PixelsCovered)
	}
	return stats, nil
}

// rasterizeAxis draws every triangle into a zbuffer viewed down the given
// axis, with backface culling and a greater-than depth test.
func rasterizeAxis(indices []uint32, positions *PositionSet, lo mmath.Vec3, scale float32, axis int) (covered, shaded int) {
	zbuf := make([]float32, rasterViewport*rasterViewport)
	drawn := make([]bool, rasterViewport*rasterViewport)
	for i := range zbuf {
		zbuf[i] = float32(-1 << 30)
	}

	project := func(idx uint32) (x, y, z float32) {
		p := positions.At(int(idx)).Sub(lo)
		switch axis {
		case 0:
			return p.Y * scale, p.Z * scale, p.X
		case 1:
			return p.Z * scale, p.X * scale, p.Y
		default:
			return p.X * scale, p.Y * scale, p.Z
		}
	}

	for tri := 0; tri < len(indices)/3; tri++ {
		x0, y0, z0 := project(indices[tri*3])
		x1, y1, z1 := project(indices[tri*3+1])
		x2, y2, z2 := project(indices[tri*3+2])

		area := (x1-x0)*(y2-y0) - (y1-y0)*(x2-x0)
		if area <= 0 {
			continue // backfacing or degenerate in this view
		}

		minX := int(min3(x0, x1, x2))
		maxX := int(max3(x0, x1, x2)) + 1
		minY := int(min3(y0, y1, y2))
		maxY := int(max3(y0, y1, y2)) + 1
		minX, maxX = clampInt(minX, 0, rasterViewport), clampInt(maxX, 0, rasterViewport)
		minY, maxY = clampInt(minY, 0, rasterViewport), clampInt(maxY, 0, rasterViewport)

		for py := minY; py < maxY; py++ {
			for px := minX; px < maxX; px++ {
				cx := float32(px) + 0.5
				cy := float32(py) + 0.5
				w0 := (x1-cx)*(y2-cy) - (y1-cy)*(x2-cx)
				w1 := (x2-cx)*(y0-cy) - (y2-cy)*(x0-cx)
				w2 := (x0-cx)*(y1-cy) - (y0-cy)*(x1-cx)
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
				z := (w0*z0 + w1*z1 + w2*z2) / area
				cell := py*rasterViewport + px
				if !drawn[cell] {
					drawn[cell] = true
					covered++
				}
				if z > zbuf[cell] {
					zbuf[cell] = z
					shaded++
				}
			}
		}
	}
	return covered, shaded
}

func min3(a, b, c float32) float32 {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c float32) float32 {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
