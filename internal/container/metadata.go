// Package container implements the ANLG analog waveform file format: a fixed
// magic and version, a length-prefixed JSON metadata document, and a stream
// of fixed-size float32 sample blocks, one per frame.
package container

import (
	"github.com/zsiec/ghostlink/internal/analog"
)

// VoltageLevels mirrors analog.Levels in the metadata document.
type VoltageLevels struct {
	SyncTip  float32 `json:"sync_tip"`
	Blanking float32 `json:"blanking"`
	Black    float32 `json:"black"`
	White    float32 `json:"white"`
}

// Levels converts the metadata representation back to analog.Levels.
func (v VoltageLevels) Levels() analog.Levels {
	return analog.Levels{SyncTip: v.SyncTip, Blanking: v.Blanking, Black: v.Black, White: v.White}
}

// Operations records which scrambling operations were applied to a file, so
// the descrambler can honor them without caller configuration.
type Operations struct {
	Permutation bool `json:"permutation"`
	Inversion   bool `json:"inversion"`
	Shift       bool `json:"shift"`
}

// Metadata is the attribute document stored in the container header. It is
// assembled completely before a Writer is constructed and never mutated
// afterwards; a transforming stage builds a derived copy (see WithScrambling
// and WithDescrambling) rather than updating a shared document.
type Metadata struct {
	Standard        string        `json:"standard"`
	SampleRate      int           `json:"sample_rate"`
	Resolution      [2]int        `json:"resolution"`
	LinesPerFrame   int           `json:"lines_per_frame"`
	FPS             float64       `json:"fps"`
	SamplesPerLine  int           `json:"samples_per_line"`
	SamplesPerFrame int           `json:"samples_per_frame"`
	ActiveLines     int           `json:"active_lines"`
	BandwidthMHz    float64       `json:"bandwidth_mhz"`
	VoltageLevels   VoltageLevels `json:"voltage_levels"`
	Timestamp       string        `json:"timestamp,omitempty"`

	ScramblingMethod   string      `json:"scrambling_method,omitempty"`
	DescramblingMethod string      `json:"descrambling_method,omitempty"`
	SegmentsPerLine    int         `json:"segments_per_line,omitempty"`
	Operations         *Operations `json:"operations,omitempty"`
	Scrambled          bool        `json:"scrambled,omitempty"`
	Descrambled        bool        `json:"descrambled,omitempty"`
}

// NewMetadata builds the metadata document for a freshly encoded signal.
func NewMetadata(std analog.Standard, t analog.Timing, width, height, activeLines int, bandwidthMHz float64) Metadata {
	return Metadata{
		Standard:        std.Name,
		SampleRate:      t.SampleRate,
		Resolution:      [2]int{width, height},
		LinesPerFrame:   std.LinesPerFrame,
		FPS:             std.FrameRate,
		SamplesPerLine:  t.SamplesPerLine,
		SamplesPerFrame: t.SamplesPerFrame,
		ActiveLines:     activeLines,
		BandwidthMHz:    bandwidthMHz,
		VoltageLevels: VoltageLevels{
			SyncTip:  std.Levels.SyncTip,
			Blanking: std.Levels.Blanking,
			Black:    std.Levels.Black,
			White:    std.Levels.White,
		},
	}
}

// WithScrambling returns a copy of the metadata marked as scrambled with the
// given segment count and enabled operations.
func (m Metadata) WithScrambling(method string, segments int, ops Operations) Metadata {
	m.ScramblingMethod = method
	m.SegmentsPerLine = segments
	m.Operations = &ops
	m.Scrambled = true
	m.Descrambled = false
	return m
}

// WithDescrambling returns a copy of the metadata marked as descrambled.
func (m Metadata) WithDescrambling(method string) Metadata {
	m.DescramblingMethod = method
	m.Scrambled = false
	m.Descrambled = true
	return m
}
