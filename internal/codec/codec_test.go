package codec

import (
	"math"
	"testing"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/container"
	"github.com/zsiec/ghostlink/internal/media"
)

func testEncoder(t *testing.T) *Encoder {
	t.Helper()
	e, err := NewEncoder(EncoderConfig{
		Standard:     analog.NTSC,
		SampleRate:   10_000_000,
		Width:        160,
		ActiveLines:  120,
		BandwidthMHz: 4.2,
	})
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestLPFKernelUnitDCGain(t *testing.T) {
	t.Parallel()
	k := lpfKernel(4.2e6, 10_000_000)
	if len(k) != kernelSize {
		t.Fatalf("kernel length = %d, want %d", len(k), kernelSize)
	}
	var sum float64
	for _, v := range k {
		sum += v
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("kernel sum = %v, want 1", sum)
	}
	// Symmetric about the center tap.
	for i := 0; i < kernelSize/2; i++ {
		if math.Abs(k[i]-k[kernelSize-1-i]) > 1e-12 {
			t.Errorf("kernel not symmetric at tap %d: %v vs %v", i, k[i], k[kernelSize-1-i])
		}
	}
}

func TestConvolveSamePreservesDC(t *testing.T) {
	t.Parallel()
	k := lpfKernel(4.2e6, 10_000_000)
	signal := make([]float32, 200)
	for i := range signal {
		signal[i] = 0.5
	}
	out := convolveSame(signal, k)
	if len(out) != len(signal) {
		t.Fatalf("output length = %d, want %d", len(out), len(signal))
	}
	// Away from the zero-padded edges a constant signal passes unchanged.
	for i := kernelSize; i < len(out)-kernelSize; i++ {
		if math.Abs(float64(out[i])-0.5) > 1e-6 {
			t.Fatalf("sample %d = %v, want 0.5", i, out[i])
		}
	}
}

func TestEncodeLengthAndDeterminism(t *testing.T) {
	t.Parallel()
	e := testEncoder(t)
	src := media.NewPatternSource(160, 120, 1)
	frame, err := src.Next()
	if err != nil {
		t.Fatal(err)
	}

	a, err := e.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != e.Timing().SamplesPerFrame {
		t.Fatalf("encoded length = %d, want %d", len(a), e.Timing().SamplesPerFrame)
	}

	b, err := e.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("encode not deterministic at sample %d", i)
		}
	}
}

func TestEncodeClipsToVoltageRange(t *testing.T) {
	t.Parallel()
	e := testEncoder(t)
	frame := media.NewFrame(160, 120)
	for i := range frame.Pix {
		frame.Pix[i] = 255
	}
	out, err := e.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	lv := analog.NTSC.Levels
	for i, v := range out {
		if v < lv.SyncTip || v > lv.White {
			t.Fatalf("sample %d = %v outside [%v, %v]", i, v, lv.SyncTip, lv.White)
		}
	}
}

func TestEncodeDecodeRoundTripApproximate(t *testing.T) {
	t.Parallel()
	e := testEncoder(t)

	// Mid-gray frame: a flat field survives bandwidth limiting almost
	// untouched, so decode should land close to the original level.
	frame := media.NewFrame(160, 120)
	for i := range frame.Pix {
		frame.Pix[i] = 128
	}
	samples, err := e.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}

	meta := container.NewMetadata(analog.NTSC, e.Timing(), 160, 120, 120, 4.2)
	d, err := NewDecoder(meta)
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.Decode(samples)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 160 || got.Height != 120 {
		t.Fatalf("decoded size = %dx%d, want 160x120", got.Width, got.Height)
	}

	// Check interior pixels; edges suffer filter transients.
	for y := 10; y < 110; y += 13 {
		for x := 20; x < 140; x += 17 {
			v := int(got.At(x, y))
			if v < 108 || v > 148 {
				t.Fatalf("pixel (%d,%d) = %d, want near 128", x, y, v)
			}
		}
	}
}

func TestDecoderRejectsBadMetadata(t *testing.T) {
	t.Parallel()
	var meta container.Metadata
	if _, err := NewDecoder(meta); err == nil {
		t.Error("zero metadata should be rejected")
	}
}

func TestAnalyzeSyncCountsLines(t *testing.T) {
	t.Parallel()
	e := testEncoder(t)
	frame := media.NewFrame(160, 120)
	samples, err := e.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}

	meta := container.NewMetadata(analog.NTSC, e.Timing(), 160, 120, 120, 4.2)
	d, err := NewDecoder(meta)
	if err != nil {
		t.Fatal(err)
	}
	stats := d.AnalyzeSync(samples)

	if stats.ExpectedLines != analog.NTSC.LinesPerFrame {
		t.Errorf("expected lines = %d, want %d", stats.ExpectedLines, analog.NTSC.LinesPerFrame)
	}
	// One sync pulse per line; the filter can smear a handful at frame edges.
	if stats.SyncPulses < analog.NTSC.LinesPerFrame-5 || stats.SyncPulses > analog.NTSC.LinesPerFrame+5 {
		t.Errorf("sync pulses = %d, want about %d", stats.SyncPulses, analog.NTSC.LinesPerFrame)
	}
	if stats.SyncLevelMin > analog.NTSC.Levels.SyncTip+0.05 {
		t.Errorf("sync level min = %v, want near %v", stats.SyncLevelMin, analog.NTSC.Levels.SyncTip)
	}
	if stats.SignalMax > analog.NTSC.Levels.White {
		t.Errorf("signal max = %v exceeds white level", stats.SignalMax)
	}
}

func TestEncoderNoiseHook(t *testing.T) {
	t.Parallel()
	cfg := EncoderConfig{
		Standard:       analog.NTSC,
		SampleRate:     10_000_000,
		Width:          160,
		ActiveLines:    120,
		BandwidthMHz:   4.2,
		AddNoise:       true,
		NoiseAmplitude: 0.02,
	}
	e, err := NewEncoder(cfg)
	if err != nil {
		t.Fatal(err)
	}
	clean := testEncoder(t)

	frame := media.NewFrame(160, 120)
	noisy, err := e.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	ref, err := clean.Encode(frame, 0)
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range noisy {
		if noisy[i] != ref[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("noise hook should perturb the signal")
	}
}
