package mesh

import "fmt"

// Stripify converts a triangle list into a triangle strip, stitching
// segments with restartIndex. Triangles are emitted strictly in input
// order and with their exact vertex order: a strip continuation is only
// taken when the parity-decoded triangle reproduces the source triple
// verbatim, so Unstripify(Stripify(x)) == x byte for byte.
//
// Compression therefore depends on consecutive triangles already being
// written in strip rotation: such runs cost one index per triangle,
// anything else costs a restart plus three. restartIndex must not
// collide with any vertex index; 0xffff or 0xffffffff are the
// conventional choices.
func Stripify(indices []uint32, restartIndex uint32) ([]uint32, error) {
	if len(indices)%3 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrIndexCount, len(indices))
	}
	for _, idx := range indices {
		if idx == restartIndex {
			return nil, fmt.Errorf("%w: %d", ErrRestartIndex, restartIndex)
		}
	}
	if len(indices) == 0 {
		return []uint32{}, nil
	}

	strip := make([]uint32, 0, len(indices))
	segLen := 0 // vertices in the current segment

	for tri := 0; tri < len(indices)/3; tri++ {
		a, b, c := indices[tri*3], indices[tri*3+1], indices[tri*3+2]

		if segLen >= 3 {
			u := strip[len(strip)-2]
			v := strip[len(strip)-1]
			// Triangle j of a segment decodes as (s[j], s[j+1], s[j+2])
			// for even j and (s[j+1], s[j], s[j+2]) for odd j.
			j := segLen - 2
			var match bool
			if j%2 == 0 {
				match = a == u && b == v
			} else {
				match = a == v && b == u
			}
			if match {
				strip = append(strip, c)
				segLen++
				continue
			}
		}

		if segLen > 0 {
			strip = append(strip, restartIndex)
		}
		strip = append(strip, a, b, c)
		segLen = 3
	}
	return strip, nil
}

// Unstripify expands a triangle strip back into a triangle list,
// alternating winding per the usual strip parity rule. Segments shorter
// than three vertices (including empty segments from doubled restart
// markers) are malformed.
func Unstripify(strip []uint32, restartIndex uint32) ([]uint32, error) {
	result := make([]uint32, 0, len(strip)*3)
	segStart := 0

	flushSegment := func(end int) error {
		if end == segStart {
			return fmt.Errorf("%w: empty segment", ErrStripMalformed)
		}
		if end-segStart < 3 {
			return fmt.Errorf("%w: segment of %d vertices", ErrStripMalformed, end-segStart)
		}
		for j := 0; j+2 < end-segStart; j++ {
			s := strip[segStart+j:]
			if j%2 == 0 {
				result = append(result, s[0], s[1], s[2])
			} else {
				result = append(result, s[1], s[0], s[2])
			}
		}
		return nil
	}

	if len(strip) == 0 {
		return result, nil
	}
	for i, idx := range strip {
		if idx != restartIndex {
			continue
		}
		if err := flushSegment(i); err != nil {
			return nil, err
		}
		segStart = i + 1
	}
	if err := flushSegment(len(strip)); err != nil {
		return nil, err
	}
	return result, nil
}
