// Package analog defines composite video signal standards (NTSC, PAL) and
// derives per-sample-rate line timing from their microsecond geometry. The
// values here are the single source of truth for how the rest of the system
// partitions a scan line into sync, porches, and active video.
package analog

import "fmt"

// Levels holds the four voltage levels of a composite signal, normalized so
// that blanking sits at zero. Samples throughout the system are float32, so
// the levels are too.
type Levels struct {
	SyncTip  float32
	Blanking float32
	Black    float32
	White    float32
}

// Mid returns the midpoint between black and white, the reflection axis used
// by amplitude inversion.
func (l Levels) Mid() float32 {
	return (l.Black + l.White) / 2
}

// Standard describes an analog video standard: line count, frame rate, and
// the microsecond durations of each part of a horizontal line. A Standard is
// immutable; it is selected once per session and threaded by value.
type Standard struct {
	Name          string
	LinesPerFrame int
	FrameRate     float64

	// Durations in microseconds.
	LineDuration float64
	SyncDuration float64
	FrontPorch   float64
	BackPorch    float64
	ActiveVideo  float64

	Levels Levels
}

// FrameDuration returns the duration of one frame in seconds.
func (s Standard) FrameDuration() float64 {
	return 1.0 / s.FrameRate
}

// NTSC is the 525-line, 29.97 fps standard.
var NTSC = Standard{
	Name:          "NTSC",
	LinesPerFrame: 525,
	FrameRate:     29.97,
	LineDuration:  63.556,
	SyncDuration:  4.7,
	FrontPorch:    1.5,
	BackPorch:     4.7,
	ActiveVideo:   52.656,
	Levels:        Levels{SyncTip: -0.3, Blanking: 0.0, Black: 0.05, White: 0.7},
}

// PAL is the 625-line, 25 fps standard.
var PAL = Standard{
	Name:          "PAL",
	LinesPerFrame: 625,
	FrameRate:     25.0,
	LineDuration:  64.0,
	SyncDuration:  4.7,
	FrontPorch:    1.65,
	BackPorch:     5.7,
	ActiveVideo:   51.95,
	Levels:        Levels{SyncTip: -0.3, Blanking: 0.0, Black: 0.05, White: 0.7},
}

// ByName returns the standard with the given name (case-sensitive, "NTSC" or
// "PAL").
func ByName(name string) (Standard, error) {
	switch name {
	case "NTSC":
		return NTSC, nil
	case "PAL":
		return PAL, nil
	}
	return Standard{}, fmt.Errorf("analog: unknown standard %q", name)
}
