package codec

import (
	"fmt"

	"github.com/zsiec/ghostlink/internal/analog"
	"github.com/zsiec/ghostlink/internal/container"
	"github.com/zsiec/ghostlink/internal/media"
)

// Decoder reconstructs luminance frames from a waveform described by
// container metadata. Its active-region timing is estimated independently of
// the encoder's derivation (fixed 4.7 µs sync and back porch, a reserve of
// frontPorchEstimate samples), so reconstruction tolerates signals whose
// exact porch geometry is unknown.
type Decoder struct {
	meta   container.Metadata
	levels analog.Levels

	activeStart  int
	activeLength int
	vblankTop    int
}

// frontPorchEstimate reserves samples at the line end that are never treated
// as picture.
const frontPorchEstimate = 50

// NewDecoder builds a Decoder for signals carrying the given metadata.
func NewDecoder(meta container.Metadata) (*Decoder, error) {
	if meta.SamplesPerLine <= 0 || meta.LinesPerFrame <= 0 {
		return nil, fmt.Errorf("codec: metadata declares %d samples per line, %d lines",
			meta.SamplesPerLine, meta.LinesPerFrame)
	}
	if meta.Resolution[0] <= 0 || meta.Resolution[1] <= 0 {
		return nil, fmt.Errorf("codec: metadata declares resolution %dx%d",
			meta.Resolution[0], meta.Resolution[1])
	}

	syncSamples := int(4.7e-6 * float64(meta.SampleRate))
	backPorchSamples := int(4.7e-6 * float64(meta.SampleRate))

	d := &Decoder{
		meta:        meta,
		levels:      meta.VoltageLevels.Levels(),
		activeStart: syncSamples + backPorchSamples,
	}
	d.activeLength = meta.SamplesPerLine - d.activeStart - frontPorchEstimate
	if d.activeLength < 1 {
		return nil, fmt.Errorf("codec: %d samples per line leave no active region", meta.SamplesPerLine)
	}

	activeLines := meta.ActiveLines
	if activeLines <= 0 {
		activeLines = meta.Resolution[1]
	}
	d.vblankTop = (meta.LinesPerFrame - activeLines) / 2
	return d, nil
}

// Decode reconstructs one frame from a frame's worth of samples. Lines past
// the end of a short buffer are left black rather than failing the frame.
func (d *Decoder) Decode(samples []float32) (*media.Frame, error) {
	width := d.meta.Resolution[0]
	height := d.meta.Resolution[1]
	activeLines := d.meta.ActiveLines
	if activeLines <= 0 || activeLines > height {
		activeLines = height
	}

	frame := media.NewFrame(width, height)
	row := make([]float64, d.activeLength)

	for i := 0; i < activeLines; i++ {
		start := (d.vblankTop + i) * d.meta.SamplesPerLine
		end := start + d.meta.SamplesPerLine
		if end > len(samples) {
			break
		}
		active := samples[start+d.activeStart : start+d.activeStart+d.activeLength]

		// Clip to the picture range and normalize to [0,1].
		span := float64(d.levels.White - d.levels.Black)
		for j, v := range active {
			if v < d.levels.Black {
				v = d.levels.Black
			} else if v > d.levels.White {
				v = d.levels.White
			}
			row[j] = float64(v-d.levels.Black) / span
		}

		pixels := resample(row, width)
		for x, v := range pixels {
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			frame.Set(x, i, uint8(v*255+0.5))
		}
	}
	return frame, nil
}

// SyncStats summarizes sync-region health for one frame. It is advisory
// only: callers log it, nothing fails on it.
type SyncStats struct {
	SyncPulses    int
	ExpectedLines int
	SyncLevelMin  float32
	SyncLevelMean float32
	SignalMin     float32
	SignalMax     float32
}

// AnalyzeSync counts sync transitions (falling below the sync threshold) and
// measures extremal and mean voltages in the sync regions.
func (d *Decoder) AnalyzeSync(samples []float32) SyncStats {
	stats := SyncStats{ExpectedLines: d.meta.LinesPerFrame}
	if len(samples) == 0 {
		return stats
	}

	threshold := (d.levels.SyncTip + d.levels.Blanking) / 2
	stats.SignalMin = samples[0]
	stats.SignalMax = samples[0]
	stats.SyncLevelMin = d.levels.Blanking

	var syncSum float64
	var syncCount int
	prevBelow := false
	for _, v := range samples {
		if v < stats.SignalMin {
			stats.SignalMin = v
		}
		if v > stats.SignalMax {
			stats.SignalMax = v
		}
		below := v < threshold
		if below {
			if !prevBelow {
				stats.SyncPulses++
			}
			if syncCount == 0 || v < stats.SyncLevelMin {
				stats.SyncLevelMin = v
			}
			syncSum += float64(v)
			syncCount++
		}
		prevBelow = below
	}
	if syncCount > 0 {
		stats.SyncLevelMean = float32(syncSum / float64(syncCount))
	}
	return stats
}
