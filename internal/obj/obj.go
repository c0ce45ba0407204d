// Package obj reads and writes Wavefront OBJ geometry. Only the
// attributes the pipeline consumes are parsed: positions, normals,
// texture coordinates, and triangulated faces. Materials, groups, and
// free-form geometry are skipped.
package obj

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	mmath "github.com/Faultbox/meshprep/pkg/math"
	"github.com/Faultbox/meshprep/pkg/mesh"
)

// OBJ errors.
var (
	ErrMalformedFace   = errors.New("malformed face element")
	ErrIndexOutOfRange = errors.New("face index out of range")
)

// Mesh is an indexed triangle mesh as loaded from an OBJ file. Each
// distinct position/texcoord/normal triple becomes one vertex.
type Mesh struct {
	Vertices []mesh.Vertex
	Indices  []uint32
}

// Parse reads OBJ data from r. Faces with more than three corners are
// triangulated as fans.
func Parse(r io.Reader) (*Mesh, error) {
	var (
		positions [][3]float32
		texcoords [][2]float32
		normals   [][3]float32
	)
	result := &Mesh{}
	corner := make(map[[3]int]uint32)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "v":
			p, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: position: %w", lineNo, err)
			}
			positions = append(positions, p)
		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: texcoord needs 2 components", lineNo)
			}
			u, err := parseFloat(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: texcoord: %w", lineNo, err)
			}
			v, err := parseFloat(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: texcoord: %w", lineNo, err)
			}
			texcoords = append(texcoords, [2]float32{u, v})
		case "vn":
			n, err := parseFloats3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: normal: %w", lineNo, err)
			}
			normals = append(normals, n)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: %w: %d corners", lineNo, ErrMalformedFace, len(fields)-1)
			}
			face := make([]uint32, 0, len(fields)-1)
			for _, elem := range fields[1:] {
				ref, err := parseCorner(elem, len(positions), len(texcoords), len(normals))
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				slot, ok := corner[ref]
				if !ok {
					slot = uint32(len(result.Vertices))
					corner[ref] = slot
					var vert mesh.Vertex
					vert.P = positions[ref[0]]
					if ref[1] >= 0 {
						vert.T = texcoords[ref[1]]
					}
					if ref[2] >= 0 {
						vert.N = normals[ref[2]]
					}
					result.Vertices = append(result.Vertices, vert)
				}
				face = append(face, slot)
			}
			for k := 2; k < len(face); k++ {
				result.Indices = append(result.Indices, face[0], face[k-1], face[k])
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Load parses an OBJ file from disk.
func Load(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Write writes the mesh as OBJ. Normals and texcoords are emitted only
// when any vertex carries a nonzero one, so position-only meshes stay
// compact.
func Write(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	hasT, hasN := false, false
	for _, v := range m.Vertices {
		if v.T != ([2]float32{}) {
			hasT = true
		}
		if v.N != ([3]float32{}) {
			hasN = true
		}
	}

	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v.P[0], v.P[1], v.P[2])
	}
	if hasT {
		for _, v := range m.Vertices {
			fmt.Fprintf(bw, "vt %g %g\n", v.T[0], v.T[1])
		}
	}
	if hasN {
		for _, v := range m.Vertices {
			fmt.Fprintf(bw, "vn %g %g %g\n", v.N[0], v.N[1], v.N[2])
		}
	}

	for tri := 0; tri < len(m.Indices)/3; tri++ {
		fmt.Fprint(bw, "f")
		for k := 0; k < 3; k++ {
			// OBJ indices are 1-based, and all three attribute streams
			// share the vertex index here.
			i := m.Indices[tri*3+k] + 1
			switch {
			case hasT && hasN:
				fmt.Fprintf(bw, " %d/%d/%d", i, i, i)
			case hasT:
				fmt.Fprintf(bw, " %d/%d", i, i)
			case hasN:
				fmt.Fprintf(bw, " %d//%d", i, i)
			default:
				fmt.Fprintf(bw, " %d", i)
			}
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// Save writes the mesh to an OBJ file on disk.
func Save(path string, m *Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Positions returns the vertex positions as a PositionSet for the
// position-based pkg/mesh operations.
func (m *Mesh) Positions() *mesh.PositionSet {
	points := make([]mmath.Vec3, len(m.Vertices))
	for i, v := range m.Vertices {
		points[i] = mmath.Vec3{X: v.P[0], Y: v.P[1], Z: v.P[2]}
	}
	return mesh.NewPositionSetFromVec3(points)
}

// parseCorner parses a face element v, v/vt, v//vn, or v/vt/vn into
// zero-based indices, -1 for absent attributes. Negative OBJ indices
// count back from the end of the respective list.
func parseCorner(elem string, nv, nt, nn int) ([3]int, error) {
	parts := strings.Split(elem, "/")
	if len(parts) > 3 {
		return [3]int{}, fmt.Errorf("%w: %q", ErrMalformedFace, elem)
	}

	ref := [3]int{-1, -1, -1}
	limits := [3]int{nv, nt, nn}
	for i, part := range parts {
		if part == "" {
			if i == 0 {
				return [3]int{}, fmt.Errorf("%w: %q", ErrMalformedFace, elem)
			}
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n == 0 {
			return [3]int{}, fmt.Errorf("%w: %q", ErrMalformedFace, elem)
		}
		if n < 0 {
			n += limits[i] + 1
		}
		if n < 1 || n > limits[i] {
			return [3]int{}, fmt.Errorf("%w: %q", ErrIndexOutOfRange, elem)
		}
		ref[i] = n - 1
	}
	return ref, nil
}

func parseFloat(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

func parseFloats3(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("need 3 components, have %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		v, err := parseFloat(fields[i])
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
