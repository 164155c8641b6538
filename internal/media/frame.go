// Package media defines the luminance frame type that flows through the
// ghostlink pipeline and the pull-based sources that produce frames for
// encoding.
package media

// Frame is a single-channel 8-bit luminance image in row-major order.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewFrame allocates a zeroed (black) frame of the given dimensions.
func NewFrame(width, height int) *Frame {
	return &Frame{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the luminance value at (x, y). No bounds checking.
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// Set stores a luminance value at (x, y). No bounds checking.
func (f *Frame) Set(x, y int, v uint8) {
	f.Pix[y*f.Width+x] = v
}

// Row returns the y-th row as a subslice of the frame's pixels.
func (f *Frame) Row(y int) []uint8 {
	return f.Pix[y*f.Width : (y+1)*f.Width]
}

// FromRGB24 converts packed 8-bit RGB pixels to a luminance frame using the
// BT.601 weights (Y = 0.299 R + 0.587 G + 0.114 B).
func FromRGB24(width, height int, rgb []uint8) *Frame {
	f := NewFrame(width, height)
	for i := 0; i < width*height; i++ {
		r := float64(rgb[3*i])
		g := float64(rgb[3*i+1])
		b := float64(rgb[3*i+2])
		f.Pix[i] = uint8(0.299*r + 0.587*g + 0.114*b)
	}
	return f
}

// RGB24 expands the luminance frame to packed 3-channel RGB, for consumers
// that require a color representation.
func (f *Frame) RGB24() []uint8 {
	out := make([]uint8, 3*len(f.Pix))
	for i, v := range f.Pix {
		out[3*i] = v
		out[3*i+1] = v
		out[3*i+2] = v
	}
	return out
}

// Resize returns a bilinearly resampled copy of the frame at the given
// dimensions. The original frame is unchanged. Resizing to the same
// dimensions returns the receiver.
func (f *Frame) Resize(width, height int) *Frame {
	if width == f.Width && height == f.Height {
		return f
	}
	out := NewFrame(width, height)

	xScale := float64(f.Width-1) / float64(max(width-1, 1))
	yScale := float64(f.Height-1) / float64(max(height-1, 1))

	for y := 0; y < height; y++ {
		sy := float64(y) * yScale
		y0 := int(sy)
		y1 := min(y0+1, f.Height-1)
		fy := sy - float64(y0)

		for x := 0; x < width; x++ {
			sx := float64(x) * xScale
			x0 := int(sx)
			x1 := min(x0+1, f.Width-1)
			fx := sx - float64(x0)

			top := float64(f.At(x0, y0))*(1-fx) + float64(f.At(x1, y0))*fx
			bot := float64(f.At(x0, y1))*(1-fx) + float64(f.At(x1, y1))*fx
			out.Set(x, y, uint8(top*(1-fy)+bot*fy+0.5))
		}
	}
	return out
}
