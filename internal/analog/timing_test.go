package analog

import "testing"

func TestNewTimingRegionsSum(t *testing.T) {
	t.Parallel()
	for _, std := range []Standard{NTSC, PAL} {
		for _, rate := range []int{10_000_000, 14_318_180, 1_000_000} {
			tm := NewTiming(std, rate)
			sum := tm.SyncSamples + tm.BackPorchSamples + tm.ActiveSamples + tm.FrontPorchSamples
			if sum != tm.SamplesPerLine {
				t.Errorf("%s @ %d Hz: region sum = %d, want %d",
					std.Name, rate, sum, tm.SamplesPerLine)
			}
			if tm.SamplesPerFrame != tm.SamplesPerLine*std.LinesPerFrame {
				t.Errorf("%s @ %d Hz: samples per frame = %d, want %d",
					std.Name, rate, tm.SamplesPerFrame, tm.SamplesPerLine*std.LinesPerFrame)
			}
		}
	}
}

func TestNewTimingOffsets(t *testing.T) {
	t.Parallel()
	tm := NewTiming(NTSC, 10_000_000)

	if tm.SyncStart != 0 {
		t.Errorf("sync start = %d, want 0", tm.SyncStart)
	}
	if tm.BackPorchStart != tm.SyncSamples {
		t.Errorf("back porch start = %d, want %d", tm.BackPorchStart, tm.SyncSamples)
	}
	if tm.ActiveStart != tm.SyncSamples+tm.BackPorchSamples {
		t.Errorf("active start = %d, want %d", tm.ActiveStart, tm.SyncSamples+tm.BackPorchSamples)
	}
	if tm.FrontPorchStart != tm.ActiveStart+tm.ActiveSamples {
		t.Errorf("front porch start = %d, want %d", tm.FrontPorchStart, tm.ActiveStart+tm.ActiveSamples)
	}

	// 4.7 µs at 10 MHz is 47 samples.
	if tm.SyncSamples != 47 {
		t.Errorf("sync samples = %d, want 47", tm.SyncSamples)
	}
}

func TestNewTimingClampsDegenerateRate(t *testing.T) {
	t.Parallel()
	// At 10 kHz every microsecond duration rounds to zero samples; each
	// region must still be at least one sample wide.
	tm := NewTiming(NTSC, 10_000)
	for name, n := range map[string]int{
		"sync":        tm.SyncSamples,
		"back porch":  tm.BackPorchSamples,
		"active":      tm.ActiveSamples,
		"front porch": tm.FrontPorchSamples,
	} {
		if n < 1 {
			t.Errorf("%s samples = %d, want >= 1", name, n)
		}
	}
}

func TestByName(t *testing.T) {
	t.Parallel()
	std, err := ByName("PAL")
	if err != nil {
		t.Fatalf("ByName(PAL) failed: %v", err)
	}
	if std.LinesPerFrame != 625 {
		t.Errorf("PAL lines = %d, want 625", std.LinesPerFrame)
	}
	if _, err := ByName("SECAM"); err == nil {
		t.Error("ByName(SECAM) should fail")
	}
}

func TestLevelsMid(t *testing.T) {
	t.Parallel()
	l := Levels{Black: 0.05, White: 0.7}
	if got, want := l.Mid(), float32(0.375); got != want {
		t.Errorf("mid = %v, want %v", got, want)
	}
}
