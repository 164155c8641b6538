// Package codec converts digital video frames to and from a synthetic
// composite analog waveform: sync pulses and blanking from the line template,
// bandwidth-limited luminance in the active region. Encoding is deterministic
// for a given frame and configuration (the optional noise hook excepted);
// decoding is a best-effort reconstruction, lossy relative to the pre-filter
// source.
package codec

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/media"
)

// EncoderConfig selects the signal geometry and luminance bandwidth for
// encoding.
type EncoderConfig struct {
	Standard   analog.Standard
	SampleRate int

	// Width and ActiveLines are the active resolution the luminance grid is
	// resized to before splicing.
	Width       int
	ActiveLines int

	// BandwidthMHz is the luminance bandwidth of the low-pass filter.
	BandwidthMHz float64

	// AddNoise enables the additive Gaussian noise hook.
	AddNoise       bool
	NoiseAmplitude float64
	NoiseSeed      int64
}

// Encoder turns luminance frames into frame-length sample buffers.
type Encoder struct {
	cfg      EncoderConfig
	timing   analog.Timing
	template []float32
	kernel   []float64
	noise    *rand.Rand
}

// NewEncoder validates the configuration and precomputes the line template
// and filter kernel.
func NewEncoder(cfg EncoderConfig) (*Encoder, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("codec: sample rate %d must be positive", cfg.SampleRate)
	}
	if cfg.Width <= 0 || cfg.ActiveLines <= 0 {
		return nil, fmt.Errorf("codec: active resolution %dx%d must be positive", cfg.Width, cfg.ActiveLines)
	}
	if cfg.ActiveLines > cfg.Standard.LinesPerFrame {
		return nil, fmt.Errorf("codec: %d active lines exceed the standard's %d lines",
			cfg.ActiveLines, cfg.Standard.LinesPerFrame)
	}
	if cfg.BandwidthMHz <= 0 {
		return nil, fmt.Errorf("codec: bandwidth %.2f MHz must be positive", cfg.BandwidthMHz)
	}

	e := &Encoder{
		cfg:    cfg,
		timing: analog.NewTiming(cfg.Standard, cfg.SampleRate),
		kernel: lpfKernel(cfg.BandwidthMHz*1e6, cfg.SampleRate),
	}
	e.template = e.lineTemplate()
	if cfg.AddNoise {
		e.noise = rand.New(rand.NewSource(cfg.NoiseSeed))
	}
	return e, nil
}

// Timing exposes the derived line geometry.
func (e *Encoder) Timing() analog.Timing { return e.timing }

// lineTemplate builds one blanked line: sync tip during the sync pulse,
// blanking level everywhere else.
func (e *Encoder) lineTemplate() []float32 {
	lv := e.cfg.Standard.Levels
	line := make([]float32, e.timing.SamplesPerLine)
	for i := range line {
		line[i] = lv.Blanking
	}
	for i := 0; i < e.timing.SyncSamples; i++ {
		line[i] = lv.SyncTip
	}
	return line
}

// Encode converts one frame into exactly SamplesPerFrame samples: top
// blanking lines, active lines with resampled luminance, bottom blanking
// lines, then the bandwidth-limiting filter over the whole frame and a final
// clip to [sync tip, white].
func (e *Encoder) Encode(f *media.Frame, frameIndex int) ([]float32, error) {
	if f == nil {
		return nil, fmt.Errorf("codec: nil frame %d", frameIndex)
	}
	lv := e.cfg.Standard.Levels
	luma := f.Resize(e.cfg.Width, e.cfg.ActiveLines)

	vblank := e.cfg.Standard.LinesPerFrame - e.cfg.ActiveLines
	vblankTop := vblank / 2

	out := make([]float32, e.timing.SamplesPerFrame)
	spl := e.timing.SamplesPerLine

	// All lines start from the template; only active lines get video.
	for line := 0; line < e.cfg.Standard.LinesPerFrame; line++ {
		copy(out[line*spl:(line+1)*spl], e.template)
	}

	row := make([]float64, e.cfg.Width)
	for i := 0; i < e.cfg.ActiveLines; i++ {
		for x, p := range luma.Row(i) {
			// Map [0,255] luminance into the black..white voltage span.
			row[x] = float64(lv.Black) + float64(p)/255.0*float64(lv.White-lv.Black)
		}
		active := resample(row, e.timing.ActiveSamples)

		base := (vblankTop + i) * spl
		for j, v := range active {
			out[base+e.timing.ActiveStart+j] = float32(v)
		}
	}

	out = convolveSame(out, e.kernel)

	if e.noise != nil {
		for i := range out {
			out[i] += float32(e.noise.NormFloat64() * e.cfg.NoiseAmplitude)
		}
	}

	for i, v := range out {
		if v < lv.SyncTip {
			out[i] = lv.SyncTip
		} else if v > lv.White {
			out[i] = lv.White
		}
	}
	return out, nil
}

// resample linearly interpolates src onto n evenly spaced points.
func resample(src []float64, n int) []float64 {
	if len(src) == n {
		out := make([]float64, n)
		copy(out, src)
		return out
	}
	out := make([]float64, n)
	if len(src) == 1 {
		for i := range out {
			out[i] = src[0]
		}
		return out
	}

	xs := floats.Span(make([]float64, len(src)), 0, 1)
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, src); err != nil {
		// xs is strictly increasing by construction; Fit cannot fail.
		panic(err)
	}
	if n == 1 {
		out[0] = pl.Predict(0)
		return out
	}
	for i, x := range floats.Span(make([]float64, n), 0, 1) {
		out[i] = pl.Predict(x)
	}
	return out
}
