package media

import (
	"fmt"
	"io"
	"math"
	"os"
)

// Source is a pull-based frame producer. Next returns io.EOF when the source
// is exhausted; sources backed by devices or files must be closed.
type Source interface {
	Next() (*Frame, error)
	Close() error
}

// PatternSource generates a synthetic animated test pattern: a diagonal sine
// gradient sweeping across the frame with a bright disc orbiting the center.
// It produces at most Limit frames (unlimited when Limit <= 0).
type PatternSource struct {
	Width  int
	Height int
	Limit  int

	frame int
}

// NewPatternSource returns a pattern source producing limit frames of the
// given size.
func NewPatternSource(width, height, limit int) *PatternSource {
	return &PatternSource{Width: width, Height: height, Limit: limit}
}

// Next generates the next pattern frame.
func (p *PatternSource) Next() (*Frame, error) {
	if p.Limit > 0 && p.frame >= p.Limit {
		return nil, io.EOF
	}
	f := NewFrame(p.Width, p.Height)
	phase := float64(p.frame) * 0.1

	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			v := 128 + 127*math.Sin((float64(x+y)+phase*20)*0.02)
			f.Set(x, y, uint8(v))
		}
	}

	// Orbiting disc.
	cx := float64(p.Width)/2 + 100*math.Cos(phase)
	cy := float64(p.Height)/2 + 50*math.Sin(phase*1.5)
	const radius = 50.0
	x0, x1 := int(cx-radius), int(cx+radius)
	y0, y1 := int(cy-radius), int(cy+radius)
	for y := max(y0, 0); y <= min(y1, p.Height-1); y++ {
		for x := max(x0, 0); x <= min(x1, p.Width-1); x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= radius*radius {
				f.Set(x, y, 255)
			}
		}
	}

	p.frame++
	return f, nil
}

// Close implements Source. It is a no-op for synthetic sources.
func (p *PatternSource) Close() error { return nil }

// RawSource reads headerless 8-bit grayscale frames, width*height bytes per
// frame, from an underlying reader. A clean end between frames yields io.EOF;
// a partial trailing frame is reported as an error.
type RawSource struct {
	r      io.Reader
	c      io.Closer
	width  int
	height int
}

// NewRawSource wraps a reader of raw grayscale frames.
func NewRawSource(r io.Reader, width, height int) *RawSource {
	s := &RawSource{r: r, width: width, height: height}
	if c, ok := r.(io.Closer); ok {
		s.c = c
	}
	return s
}

// OpenRaw opens a raw grayscale frame file.
func OpenRaw(path string, width, height int) (*RawSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("media: open raw source: %w", err)
	}
	return NewRawSource(f, width, height), nil
}

// Next reads the next frame.
func (s *RawSource) Next() (*Frame, error) {
	f := NewFrame(s.width, s.height)
	if _, err := io.ReadFull(s.r, f.Pix); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("media: short frame read: %w", err)
	}
	return f, nil
}

// Close closes the underlying reader when it is closable.
func (s *RawSource) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}
