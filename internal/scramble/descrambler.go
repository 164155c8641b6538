package scramble

import (
	"fmt"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/container"
	"github.com/zsiec/ghostlink/internal/keystream"
)

// Descrambler undoes ScrambleFrame exactly when built with the same key,
// geometry, and operation set. The inverse transforms run in reverse order:
// unshift, uninvert, unpermute.
type Descrambler struct {
	geo    Geometry
	levels analog.Levels
	gen    *keystream.Generator
	ops    Operations
}

// NewDescrambler builds a Descrambler over a validated geometry and keystream
// generator.
func NewDescrambler(geo Geometry, gen *keystream.Generator, levels analog.Levels, ops Operations) (*Descrambler, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("scramble: nil keystream generator")
	}
	return &Descrambler{geo: geo, levels: levels, gen: gen, ops: ops}, nil
}

// DescramblerFromMetadata builds a Descrambler configured from a scrambled
// file's metadata: geometry, voltage levels, and the recorded operation set.
func DescramblerFromMetadata(meta container.Metadata, gen *keystream.Generator) (*Descrambler, error) {
	if !meta.Scrambled {
		return nil, fmt.Errorf("scramble: metadata is not marked scrambled")
	}
	geo, err := GeometryFromMetadata(meta, 0)
	if err != nil {
		return nil, err
	}
	ops := AllOperations()
	if meta.Operations != nil {
		ops = Operations{
			Permutation: meta.Operations.Permutation,
			Inversion:   meta.Operations.Inversion,
			Shift:       meta.Operations.Shift,
		}
	}
	return NewDescrambler(geo, gen, meta.VoltageLevels.Levels(), ops)
}

// Geometry exposes the line layout the descrambler was built with.
func (d *Descrambler) Geometry() Geometry { return d.geo }

// DescrambleFrame inverts the transform on one frame of samples. Lines the
// scrambler passed through pass through here too, so the round trip is exact
// for every line.
func (d *Descrambler) DescrambleFrame(samples []float32, frame int) ([]float32, error) {
	spl := d.geo.SamplesPerLine
	if len(samples)%spl != 0 {
		return nil, fmt.Errorf("scramble: frame %d has %d samples, not a multiple of %d",
			frame, len(samples), spl)
	}

	out := make([]float32, len(samples))
	copy(out, samples)

	lines := len(samples) / spl
	for line := 0; line < lines; line++ {
		if !d.geo.lineActive(line) {
			continue
		}
		src := samples[line*spl : (line+1)*spl]
		sp, ok := d.geo.splitLine(src)
		if !ok {
			continue
		}
		if err := d.invertLine(&sp, frame, line); err != nil {
			return nil, err
		}
		remainder := src[d.geo.SyncEnd+d.geo.SegmentsPerLine*d.geo.SegmentSize() : d.geo.SyncEnd+d.geo.ActiveLength()]
		copy(out[line*spl:(line+1)*spl], d.geo.assemble(sp, remainder, d.levels.Blanking))
	}
	return out, nil
}

// invertLine applies unshift, uninvert, unpermute in that order, each the
// exact inverse of the scrambler's transform for the same frame and line.
func (d *Descrambler) invertLine(sp *split, frame, line int) error {
	n := len(sp.segments)

	if d.ops.Shift {
		shifts, err := d.gen.Shifts(n, d.geo.MaxShift(), frame, line)
		if err != nil {
			return err
		}
		for i, by := range shifts {
			sp.segments[i] = rotateRight(sp.segments[i], -by)
		}
	}

	if d.ops.Inversion {
		inv, err := d.gen.Inversions(n, frame, line)
		if err != nil {
			return err
		}
		mid := d.levels.Mid()
		for i, flip := range inv {
			if !flip {
				continue
			}
			for j, v := range sp.segments[i] {
				sp.segments[i][j] = 2*mid - v
			}
		}
	}

	if d.ops.Permutation {
		perm, err := d.gen.Permutation(n, frame, line)
		if err != nil {
			return err
		}
		restored := make([][]float32, n)
		for i, p := range perm {
			// Segment i of the scrambled line came from position p.
			restored[p] = sp.segments[i]
		}
		sp.segments = restored
	}
	return nil
}
