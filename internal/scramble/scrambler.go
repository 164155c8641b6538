package scramble

import (
	"fmt"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/keystream"
)

// Method names the scrambling scheme in container metadata.
const Method = "segment_permutation_v1"

// Scrambler applies the keyed line transform to whole frames. Input buffers
// are never mutated; every frame comes back as a fresh allocation.
type Scrambler struct {
	geo    Geometry
	levels analog.Levels
	gen    *keystream.Generator
	ops    Operations
}

// Operations selects which of the three per-segment transforms run. The
// zero value disables everything; use AllOperations for the full scheme.
type Operations struct {
	Permutation bool
	Inversion   bool
	Shift       bool
}

// AllOperations enables permutation, inversion, and shift.
func AllOperations() Operations {
	return Operations{Permutation: true, Inversion: true, Shift: true}
}

// NewScrambler builds a Scrambler over a validated geometry and keystream
// generator.
func NewScrambler(geo Geometry, gen *keystream.Generator, levels analog.Levels, ops Operations) (*Scrambler, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("scramble: nil keystream generator")
	}
	return &Scrambler{geo: geo, levels: levels, gen: gen, ops: ops}, nil
}

// Geometry exposes the line layout the scrambler was built with.
func (s *Scrambler) Geometry() Geometry { return s.geo }

// Operations reports the enabled transforms.
func (s *Scrambler) Operations() Operations { return s.ops }

// ScrambleFrame transforms one frame of samples. The buffer length must be an
// exact multiple of SamplesPerLine; blanking lines and lines whose geometry
// does not yield a full segment set pass through byte for byte.
func (s *Scrambler) ScrambleFrame(samples []float32, frame int) ([]float32, error) {
	spl := s.geo.SamplesPerLine
	if len(samples)%spl != 0 {
		return nil, fmt.Errorf("scramble: frame %d has %d samples, not a multiple of %d",
			frame, len(samples), spl)
	}

	out := make([]float32, len(samples))
	copy(out, samples)

	lines := len(samples) / spl
	for line := 0; line < lines; line++ {
		if !s.geo.lineActive(line) {
			continue
		}
		src := samples[line*spl : (line+1)*spl]
		sp, ok := s.geo.splitLine(src)
		if !ok {
			continue
		}
		if err := s.transformLine(&sp, frame, line); err != nil {
			return nil, err
		}
		remainder := src[s.geo.SyncEnd+s.geo.SegmentsPerLine*s.geo.SegmentSize() : s.geo.SyncEnd+s.geo.ActiveLength()]
		copy(out[line*spl:(line+1)*spl], s.geo.assemble(sp, remainder, s.levels.Blanking))
	}
	return out, nil
}

// transformLine applies permute, invert, shift in that order to a split's
// segments.
func (s *Scrambler) transformLine(sp *split, frame, line int) error {
	n := len(sp.segments)

	if s.ops.Permutation {
		perm, err := s.gen.Permutation(n, frame, line)
		if err != nil {
			return err
		}
		permuted := make([][]float32, n)
		for i, p := range perm {
			permuted[i] = sp.segments[p]
		}
		sp.segments = permuted
	}

	if s.ops.Inversion {
		inv, err := s.gen.Inversions(n, frame, line)
		if err != nil {
			return err
		}
		mid := s.levels.Mid()
		for i, flip := range inv {
			if !flip {
				continue
			}
			for j, v := range sp.segments[i] {
				sp.segments[i][j] = 2*mid - v
			}
		}
	}

	if s.ops.Shift {
		shifts, err := s.gen.Shifts(n, s.geo.MaxShift(), frame, line)
		if err != nil {
			return err
		}
		for i, by := range shifts {
			sp.segments[i] = rotateRight(sp.segments[i], by)
		}
	}
	return nil
}

// rotateRight returns seg circularly rotated right by n places.
func rotateRight(seg []float32, n int) []float32 {
	size := len(seg)
	if size == 0 {
		return seg
	}
	n %= size
	if n < 0 {
		n += size
	}
	if n == 0 {
		return seg
	}
	out := make([]float32, size)
	copy(out[n:], seg[:size-n])
	copy(out[:n], seg[size-n:])
	return out
}
