package analog

// Timing holds the integer sample geometry of one horizontal line at a given
// sample rate. The four regions always sum to SamplesPerLine: the front porch
// absorbs whatever rounding remainder the microsecond-to-sample conversion
// leaves over.
type Timing struct {
	SampleRate int

	SyncSamples       int
	BackPorchSamples  int
	ActiveSamples     int
	FrontPorchSamples int

	SyncStart       int
	BackPorchStart  int
	ActiveStart     int
	FrontPorchStart int

	SamplesPerLine  int
	SamplesPerFrame int
}

// NewTiming derives line timing for the standard at the given sample rate.
// Every region is clamped to at least one sample so that degenerate sample
// rates never produce an empty region.
func NewTiming(std Standard, sampleRate int) Timing {
	t := Timing{SampleRate: sampleRate}

	t.SamplesPerLine = usToSamples(std.LineDuration, sampleRate)
	t.SyncSamples = usToSamples(std.SyncDuration, sampleRate)
	t.BackPorchSamples = usToSamples(std.BackPorch, sampleRate)
	t.ActiveSamples = usToSamples(std.ActiveVideo, sampleRate)

	t.FrontPorchSamples = t.SamplesPerLine - t.SyncSamples - t.BackPorchSamples - t.ActiveSamples
	if t.FrontPorchSamples < 1 {
		// Shrink the active region so the porch keeps at least one sample.
		t.ActiveSamples += t.FrontPorchSamples - 1
		t.FrontPorchSamples = 1
		if t.ActiveSamples < 1 {
			t.ActiveSamples = 1
		}
	}

	t.SyncStart = 0
	t.BackPorchStart = t.SyncSamples
	t.ActiveStart = t.BackPorchStart + t.BackPorchSamples
	t.FrontPorchStart = t.ActiveStart + t.ActiveSamples

	t.SamplesPerFrame = t.SamplesPerLine * std.LinesPerFrame
	return t
}

func usToSamples(us float64, sampleRate int) int {
	n := int(us * 1e-6 * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	return n
}
