// meshtool is a CLI utility for optimizing, compressing, and analyzing
// triangle meshes.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/chewxy/math32"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/Faultbox/meshprep/internal/config"
	"github.com/Faultbox/meshprep/internal/logger"
	"github.com/Faultbox/meshprep/internal/obj"
	"github.com/Faultbox/meshprep/pkg/codec"
	"github.com/Faultbox/meshprep/pkg/mesh"
	"github.com/Faultbox/meshprep/pkg/quantize"
)

func main() {
	// Global flags (config overrides) come before the command.
	config.ParseFlags()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch command {
	case "optimize", "opt":
		cmdOptimize(cfg, args)
	case "analyze":
		cmdAnalyze(args)
	case "encode":
		cmdEncode(args)
	case "decode":
		cmdDecode(args)
	case "meshlets":
		cmdMeshlets(cfg, args)
	case "strip":
		cmdStrip(cfg, args)
	case "simplify":
		cmdSimplify(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`meshtool - triangle mesh optimization utility

Usage:
  meshtool [global flags] <command> [options]

Commands:
  optimize [-out <dir>] <in.obj...>  Run the full optimization pipeline
  analyze <in.obj>                   Print cache/fetch/overdraw statistics
  encode [-quantize] <in.obj> <out.mp>  Compress a mesh
  decode <in.mp> <out.obj>           Decompress a mesh
  meshlets <in.obj>                  Build meshlets and report cluster stats
  strip <in.obj>                     Convert to triangle strips and report sizes
  simplify <in.obj> <out.obj>        Reduce triangle count

Examples:
  meshtool optimize -out ./optimized bunny.obj
  meshtool encode -quantize bunny.obj bunny.mp
  meshtool -meshlet-vertices 64 -meshlet-triangles 126 meshlets bunny.obj`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func loadMesh(path string) *obj.Mesh {
	m, err := obj.Load(path)
	if err != nil {
		fatal("loading %s: %v", path, err)
	}
	if len(m.Indices) == 0 {
		fatal("%s contains no triangles", path)
	}
	return m
}

// optimizePipeline runs remap, cache, overdraw, and fetch passes in the
// canonical order.
func optimizePipeline(cfg *config.Config, m *obj.Mesh) (*obj.Mesh, error) {
	data := mesh.VertexBytes(m.Vertices)
	const stride = 32

	remap, unique, err := mesh.GenerateVertexRemap(data, stride, m.Indices)
	if err != nil {
		return nil, err
	}
	indices, err := mesh.RemapIndexBuffer(m.Indices, remap)
	if err != nil {
		return nil, err
	}
	data, err = mesh.RemapVertexBuffer(data, stride, remap, unique)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.FIFOSize > 0 {
		indices, err = mesh.OptimizeVertexCacheFIFO(indices, unique, cfg.Cache.FIFOSize)
	} else {
		indices, err = mesh.OptimizeVertexCache(indices, unique)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Overdraw.Enabled {
		positions, err := mesh.NewPositionSet(data, stride, 0)
		if err != nil {
			return nil, err
		}
		indices, err = mesh.OptimizeOverdraw(indices, positions, cfg.Overdraw.Threshold)
		if err != nil {
			return nil, err
		}
	}

	data, unique, err = mesh.OptimizeVertexFetch(data, stride, indices)
	if err != nil {
		return nil, err
	}

	return &obj.Mesh{Vertices: verticesFromBytes(data, unique), Indices: indices}, nil
}

func cmdOptimize(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	outDir := fs.String("out", ".", "Output directory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("usage: meshtool optimize [-out <dir>] <in.obj...>")
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fatal("creating %s: %v", *outDir, err)
	}

	files := fs.Args()
	var bar *progressbar.ProgressBar
	if len(files) > 1 {
		bar = progressbar.Default(int64(len(files)), "optimizing")
	}

	for _, path := range files {
		m := loadMesh(path)
		before := cacheStats(m)

		result, err := optimizePipeline(cfg, m)
		if err != nil {
			fatal("optimizing %s: %v", path, err)
		}
		after := cacheStats(result)

		outPath := filepath.Join(*outDir, filepath.Base(path))
		if err := obj.Save(outPath, result); err != nil {
			fatal("writing %s: %v", outPath, err)
		}

		logger.Info("optimized mesh",
			zap.String("input", path),
			zap.String("output", outPath),
			zap.Int("triangles", len(result.Indices)/3),
			zap.Int("vertices", len(result.Vertices)),
			zap.Float64("acmr_before", float64(before.ACMR)),
			zap.Float64("acmr_after", float64(after.ACMR)))
		if bar != nil {
			bar.Add(1)
		}
	}
}

func cacheStats(m *obj.Mesh) mesh.VertexCacheStatistics {
	stats, err := mesh.AnalyzeVertexCache(m.Indices, len(m.Vertices), 16)
	if err != nil {
		fatal("analyzing cache: %v", err)
	}
	return stats
}

func cmdAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cacheSize := fs.Int("cache-size", 16, "Simulated vertex cache size")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("usage: meshtool analyze <in.obj>")
	}
	m := loadMesh(fs.Arg(0))

	cache, err := mesh.AnalyzeVertexCache(m.Indices, len(m.Vertices), *cacheSize)
	if err != nil {
		fatal("analyzing cache: %v", err)
	}
	fetch, err := mesh.AnalyzeVertexFetch(m.Indices, len(m.Vertices), 32)
	if err != nil {
		fatal("analyzing fetch: %v", err)
	}
	overdraw, err := mesh.AnalyzeOverdraw(m.Indices, m.Positions())
	if err != nil {
		fatal("analyzing overdraw: %v", err)
	}

	fmt.Printf("Mesh:       %s\n", fs.Arg(0))
	fmt.Printf("Triangles:  %d\n", len(m.Indices)/3)
	fmt.Printf("Vertices:   %d\n", len(m.Vertices))
	fmt.Printf("ACMR:       %.3f (cache size %d)\n", cache.ACMR, *cacheSize)
	fmt.Printf("ATVR:       %.3f\n", cache.ATVR)
	fmt.Printf("Overfetch:  %.3f\n", fetch.Overfetch)
	fmt.Printf("Overdraw:   %.3f\n", overdraw.Overdraw)
}

// Container layout for encoded meshes: a flags byte (bit 0 = quantized
// vertices), then uvarint index count, vertex count, and stride,
// followed by length-prefixed codec blocks.
const containerQuantized = 0x01

func cmdEncode(args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	quantizeFlag := fs.Bool("quantize", false, "Quantize vertices to 16 bytes before encoding")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fatal("usage: meshtool encode [-quantize] <in.obj> <out.mp>")
	}
	m := loadMesh(fs.Arg(0))

	var vertexData []byte
	var stride int
	flags := byte(0)
	if *quantizeFlag {
		vertexData = mesh.PackedVertexBytes(mesh.PackVertices(m.Vertices))
		stride = mesh.PackedVertexStride
		flags |= containerQuantized
	} else {
		vertexData = mesh.VertexBytes(m.Vertices)
		stride = 32
	}

	indexBlock, err := codec.EncodeIndexBuffer(m.Indices)
	if err != nil {
		fatal("encoding indices: %v", err)
	}
	vertexBlock, err := codec.EncodeVertexBuffer(vertexData, len(m.Vertices), stride)
	if err != nil {
		fatal("encoding vertices: %v", err)
	}

	out := []byte{flags}
	out = binary.AppendUvarint(out, uint64(len(m.Indices)))
	out = binary.AppendUvarint(out, uint64(len(m.Vertices)))
	out = binary.AppendUvarint(out, uint64(stride))
	out = binary.AppendUvarint(out, uint64(len(indexBlock)))
	out = append(out, indexBlock...)
	out = binary.AppendUvarint(out, uint64(len(vertexBlock)))
	out = append(out, vertexBlock...)

	if err := os.WriteFile(fs.Arg(1), out, 0644); err != nil {
		fatal("writing %s: %v", fs.Arg(1), err)
	}

	rawSize := len(m.Indices)*4 + len(vertexData)
	logger.Info("encoded mesh",
		zap.String("output", fs.Arg(1)),
		zap.Int("raw_bytes", rawSize),
		zap.Int("encoded_bytes", len(out)),
		zap.Float64("ratio", float64(len(out))/float64(rawSize)))
}

func cmdDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fatal("usage: meshtool decode <in.mp> <out.obj>")
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fatal("reading %s: %v", fs.Arg(0), err)
	}
	if len(data) < 1 {
		fatal("%s: empty file", fs.Arg(0))
	}
	flags := data[0]
	rest := data[1:]

	readUvarint := func() int {
		// Counts and block sizes fit uint32; anything larger (including
		// values that would wrap negative as int) is corruption.
		v, n := binary.Uvarint(rest)
		if n <= 0 || v > math.MaxUint32 {
			fatal("%s: corrupt container", fs.Arg(0))
		}
		rest = rest[n:]
		return int(v)
	}
	readBlock := func() []byte {
		size := readUvarint()
		if size > len(rest) {
			fatal("%s: corrupt container", fs.Arg(0))
		}
		block := rest[:size]
		rest = rest[size:]
		return block
	}

	indexCount := readUvarint()
	vertexCount := readUvarint()
	stride := readUvarint()
	indexBlock := readBlock()
	vertexBlock := readBlock()
	if len(rest) != 0 {
		fatal("%s: %d trailing bytes", fs.Arg(0), len(rest))
	}

	indices, err := codec.DecodeIndexBuffer(indexBlock, indexCount)
	if err != nil {
		fatal("decoding indices: %v", err)
	}
	vertexData, err := codec.DecodeVertexBuffer(vertexBlock, vertexCount, stride)
	if err != nil {
		fatal("decoding vertices: %v", err)
	}

	var vertices []mesh.Vertex
	if flags&containerQuantized != 0 {
		if stride != mesh.PackedVertexStride {
			fatal("%s: quantized container with stride %d", fs.Arg(0), stride)
		}
		vertices = unpackVertices(vertexData, vertexCount)
	} else {
		if stride != 32 {
			fatal("%s: float container with stride %d", fs.Arg(0), stride)
		}
		vertices = verticesFromBytes(vertexData, vertexCount)
	}

	if err := obj.Save(fs.Arg(1), &obj.Mesh{Vertices: vertices, Indices: indices}); err != nil {
		fatal("writing %s: %v", fs.Arg(1), err)
	}
	logger.Info("decoded mesh",
		zap.String("output", fs.Arg(1)),
		zap.Int("triangles", indexCount/3),
		zap.Int("vertices", vertexCount))
}

func cmdMeshlets(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("meshlets", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("usage: meshtool meshlets <in.obj>")
	}
	m := loadMesh(fs.Arg(0))
	positions := m.Positions()

	var meshlets *mesh.Meshlets
	var err error
	if cfg.Meshlets.Scan {
		meshlets, err = mesh.BuildMeshletsScan(m.Indices, len(m.Vertices),
			cfg.Meshlets.MaxVertices, cfg.Meshlets.MaxTriangles)
	} else {
		meshlets, err = mesh.BuildMeshlets(m.Indices, positions,
			cfg.Meshlets.MaxVertices, cfg.Meshlets.MaxTriangles, cfg.Meshlets.ConeWeight)
	}
	if err != nil {
		fatal("building meshlets: %v", err)
	}

	var totalVerts, totalTris int
	culled := 0
	for i, ml := range meshlets.Meshlets {
		totalVerts += int(ml.VertexCount)
		totalTris += int(ml.TriangleCount)
		bounds, err := mesh.ComputeMeshletBounds(meshlets, i, positions)
		if err != nil {
			fatal("computing bounds for meshlet %d: %v", i, err)
		}
		if bounds.ConeCutoff < 1 {
			culled++
		}
	}

	n := len(meshlets.Meshlets)
	fmt.Printf("Meshlets:       %d\n", n)
	fmt.Printf("Triangles:      %d\n", totalTris)
	if n > 0 {
		fmt.Printf("Avg vertices:   %.1f / %d\n", float64(totalVerts)/float64(n), cfg.Meshlets.MaxVertices)
		fmt.Printf("Avg triangles:  %.1f / %d\n", float64(totalTris)/float64(n), cfg.Meshlets.MaxTriangles)
		fmt.Printf("Cone-cullable:  %d (%.0f%%)\n", culled, 100*float64(culled)/float64(n))
	}
}

func cmdStrip(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("strip", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		fatal("usage: meshtool strip <in.obj>")
	}
	m := loadMesh(fs.Arg(0))

	strip, err := mesh.Stripify(m.Indices, cfg.Strip.RestartIndex)
	if err != nil {
		fatal("stripifying: %v", err)
	}

	fmt.Printf("List indices:   %d\n", len(m.Indices))
	fmt.Printf("Strip indices:  %d\n", len(strip))
	fmt.Printf("Ratio:          %.2f\n", float64(len(strip))/float64(len(m.Indices)))
}

func cmdSimplify(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("simplify", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 2 {
		fatal("usage: meshtool simplify <in.obj> <out.obj>")
	}
	m := loadMesh(fs.Arg(0))

	indices, err := mesh.SimplifyRatio(m.Indices, m.Positions(), cfg.Simplify.Ratio, cfg.Simplify.TargetError)
	if err != nil {
		fatal("simplifying: %v", err)
	}

	// Drop unreferenced vertices before writing.
	data := mesh.VertexBytes(m.Vertices)
	work := make([]uint32, len(indices))
	copy(work, indices)
	data, unique, err := mesh.OptimizeVertexFetch(data, 32, work)
	if err != nil {
		fatal("compacting: %v", err)
	}

	out := &obj.Mesh{Vertices: verticesFromBytes(data, unique), Indices: work}
	if err := obj.Save(fs.Arg(1), out); err != nil {
		fatal("writing %s: %v", fs.Arg(1), err)
	}

	logger.Info("simplified mesh",
		zap.String("output", fs.Arg(1)),
		zap.Int("triangles_before", len(m.Indices)/3),
		zap.Int("triangles_after", len(work)/3))
}

// verticesFromBytes deserializes the 32-byte little-endian layout
// produced by mesh.VertexBytes.
func verticesFromBytes(data []byte, count int) []mesh.Vertex {
	vertices := make([]mesh.Vertex, count)
	for i := 0; i < count; i++ {
		rec := data[i*32:]
		f := func(off int) float32 {
			bits := uint32(rec[off]) | uint32(rec[off+1])<<8 | uint32(rec[off+2])<<16 | uint32(rec[off+3])<<24
			return math32.Float32frombits(bits)
		}
		vertices[i] = mesh.Vertex{
			P: [3]float32{f(0), f(4), f(8)},
			N: [3]float32{f(12), f(16), f(20)},
			T: [2]float32{f(24), f(28)},
		}
	}
	return vertices
}

// unpackVertices dequantizes the 16-byte layout produced by
// mesh.PackedVertexBytes.
func unpackVertices(data []byte, count int) []mesh.Vertex {
	vertices := make([]mesh.Vertex, count)
	for i := 0; i < count; i++ {
		rec := data[i*16:]
		half := func(off int) float32 {
			return quantize.HalfToFloat(uint16(rec[off]) | uint16(rec[off+1])<<8)
		}
		snorm := func(off int) float32 {
			v := float32(int8(rec[off])) / 127
			if v < -1 {
				v = -1
			}
			return v
		}
		vertices[i] = mesh.Vertex{
			P: [3]float32{half(0), half(2), half(4)},
			N: [3]float32{snorm(8), snorm(9), snorm(10)},
			T: [2]float32{half(12), half(14)},
		}
	}
	return vertices
}
