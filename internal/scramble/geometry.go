// Package scramble makes a composite waveform unwatchable without the shared
// secret while keeping it structurally valid: the active region of every
// active line is split into fixed-size segments which are permuted, amplitude
// inverted, and circularly shifted under keystream control. Sync pulses,
// porches, and vertical blanking lines are never touched.
//
// Permutation and shift are index moves and invert exactly. The amplitude
// reflection 2*mid-v is float32 arithmetic: samples on a dyadic grid
// (integers, multiples of 1/1024, and all untouched regions) restore bit for
// bit, while arbitrary samples such as post-filter codec output restore to
// within one unit in the last place.
package scramble

import (
	"fmt"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/container"
)

// Default region constants of the scrambling path. They are deliberately
// independent of the codec's derived timing (see Geometry.CheckTiming):
// both ends of a link must agree on these, not on the codec's internals.
const (
	// DefaultSyncEnd is where the preserved sync+back-porch prefix ends,
	// 94 samples at the reference 10 MHz NTSC geometry.
	DefaultSyncEnd = 94
	// DefaultFrontPorchReserve is the preserved tail length.
	DefaultFrontPorchReserve = 15
	// DefaultSegmentsPerLine is the segment count when a caller does not
	// choose one.
	DefaultSegmentsPerLine = 16
)

// Geometry fixes the line layout shared by scrambler and descrambler:
// everything both sides must agree on for descrambling to be exact.
type Geometry struct {
	SamplesPerLine    int
	LinesPerFrame     int
	ActiveLines       int
	SegmentsPerLine   int
	SyncEnd           int
	FrontPorchReserve int
}

// GeometryFromMetadata builds a Geometry from container metadata, applying
// the default region constants and, when the metadata records a segment
// count, preferring it over segments.
func GeometryFromMetadata(meta container.Metadata, segments int) (Geometry, error) {
	if meta.SegmentsPerLine > 0 {
		segments = meta.SegmentsPerLine
	}
	if segments <= 0 {
		segments = DefaultSegmentsPerLine
	}
	g := Geometry{
		SamplesPerLine:    meta.SamplesPerLine,
		LinesPerFrame:     meta.LinesPerFrame,
		ActiveLines:       meta.ActiveLines,
		SegmentsPerLine:   segments,
		SyncEnd:           DefaultSyncEnd,
		FrontPorchReserve: DefaultFrontPorchReserve,
	}
	return g, g.Validate()
}

// Validate checks the geometry is usable. A non-divisible active length is
// not an error here: those lines pass through unscrambled.
func (g Geometry) Validate() error {
	if g.SamplesPerLine <= 0 || g.LinesPerFrame <= 0 {
		return fmt.Errorf("scramble: geometry has %d samples per line, %d lines",
			g.SamplesPerLine, g.LinesPerFrame)
	}
	if g.ActiveLines < 0 || g.ActiveLines > g.LinesPerFrame {
		return fmt.Errorf("scramble: %d active lines out of %d total", g.ActiveLines, g.LinesPerFrame)
	}
	if g.SegmentsPerLine <= 0 {
		return fmt.Errorf("scramble: segment count %d must be positive", g.SegmentsPerLine)
	}
	if g.ActiveLength() <= 0 {
		return fmt.Errorf("scramble: sync end %d and reserve %d leave no active region in %d samples",
			g.SyncEnd, g.FrontPorchReserve, g.SamplesPerLine)
	}
	return nil
}

// ActiveLength is the scrambled span of one line.
func (g Geometry) ActiveLength() int {
	return g.SamplesPerLine - g.SyncEnd - g.FrontPorchReserve
}

// SegmentSize is the length of one segment. Remainder samples beyond
// SegmentsPerLine*SegmentSize stay in place.
func (g Geometry) SegmentSize() int {
	return g.ActiveLength() / g.SegmentsPerLine
}

// MaxShift bounds the per-segment circular shift.
func (g Geometry) MaxShift() int {
	return g.SegmentSize() / 4
}

// VBlankTop is the index of the first active line; blanking is split evenly
// with the remainder at the bottom.
func (g Geometry) VBlankTop() int {
	return (g.LinesPerFrame - g.ActiveLines) / 2
}

// lineActive reports whether the line at idx is inside the active window.
func (g Geometry) lineActive(idx int) bool {
	top := g.VBlankTop()
	return idx >= top && idx < top+g.ActiveLines
}

// CheckTiming verifies the scrambling constants against a codec timing
// derivation. Disagreement is not fatal (the constants are authoritative for
// the scrambling path) but callers should surface it, because a sync end
// inside the codec's active region clips picture into the preserved prefix.
func (g Geometry) CheckTiming(t analog.Timing) error {
	if g.SamplesPerLine != t.SamplesPerLine {
		return fmt.Errorf("scramble: geometry line length %d != timing line length %d",
			g.SamplesPerLine, t.SamplesPerLine)
	}
	if g.SyncEnd < t.ActiveStart {
		return fmt.Errorf("scramble: sync end %d starts before the codec's active region at %d",
			g.SyncEnd, t.ActiveStart)
	}
	if g.FrontPorchReserve < t.FrontPorchSamples {
		return fmt.Errorf("scramble: reserve %d shorter than the codec's %d-sample front porch",
			g.FrontPorchReserve, t.FrontPorchSamples)
	}
	return nil
}

// split is the tagged result of partitioning one line. Both directions
// branch on the same value: a line either splits into exactly
// SegmentsPerLine full segments (Transformed path) or passes through
// untouched (PassThrough path).
type split struct {
	sync     []float32
	segments [][]float32
	tail     []float32
}

// splitLine partitions a line into sync prefix, segments, and tail. ok is
// false when the active region does not yield a full segment set; such lines
// are passed through unmodified by both scrambler and descrambler.
func (g Geometry) splitLine(line []float32) (split, bool) {
	segSize := g.SegmentSize()
	if segSize == 0 {
		return split{}, false
	}
	activeEnd := g.SyncEnd + g.ActiveLength()
	if activeEnd > len(line) {
		return split{}, false
	}

	active := line[g.SyncEnd:activeEnd]
	segments := make([][]float32, 0, g.SegmentsPerLine)
	for i := 0; i < g.SegmentsPerLine; i++ {
		start := i * segSize
		end := start + segSize
		if end > len(active) {
			return split{}, false
		}
		seg := make([]float32, segSize)
		copy(seg, active[start:end])
		segments = append(segments, seg)
	}

	s := split{
		sync:     line[:g.SyncEnd],
		segments: segments,
		tail:     line[activeEnd:],
	}
	return s, true
}

// assemble rebuilds a full line from a split, padding or truncating the
// active region to ActiveLength and the line to SamplesPerLine. blanking is
// the pad level for line-length shortfalls; active shortfalls repeat the last
// sample.
func (g Geometry) assemble(s split, remainder []float32, blanking float32) []float32 {
	active := make([]float32, 0, g.ActiveLength())
	for _, seg := range s.segments {
		active = append(active, seg...)
	}
	active = append(active, remainder...)

	if len(active) > g.ActiveLength() {
		active = active[:g.ActiveLength()]
	}
	for len(active) < g.ActiveLength() {
		last := blanking
		if len(active) > 0 {
			last = active[len(active)-1]
		}
		active = append(active, last)
	}

	line := make([]float32, 0, g.SamplesPerLine)
	line = append(line, s.sync...)
	line = append(line, active...)
	line = append(line, s.tail...)

	if len(line) > g.SamplesPerLine {
		line = line[:g.SamplesPerLine]
	}
	for len(line) < g.SamplesPerLine {
		line = append(line, blanking)
	}
	return line
}
