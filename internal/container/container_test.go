package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/zsiec/ghostlink/internal/analog"
)

func testMetadata(t *testing.T) Metadata {
	t.Helper()
	tm := analog.NewTiming(analog.NTSC, 1_000_000)
	return NewMetadata(analog.NTSC, tm, 640, 480, 480, 4.2)
}

func makeFrame(n int, base float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = base + float32(i)*0.001
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	meta := testMetadata(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, meta)
	if err != nil {
		t.Fatal(err)
	}
	const frames = 3
	for i := 0; i < frames; i++ {
		if err := w.WriteFrame(makeFrame(meta.SamplesPerFrame, float32(i))); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}
	if w.FramesWritten() != frames {
		t.Errorf("frames written = %d, want %d", w.FramesWritten(), frames)
	}

	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got := r.Metadata()
	if got.Standard != "NTSC" || got.SamplesPerFrame != meta.SamplesPerFrame {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if got.Timestamp == "" {
		t.Error("timestamp should be stamped at write time")
	}
	if got.VoltageLevels.Levels() != analog.NTSC.Levels {
		t.Errorf("levels = %+v, want %+v", got.VoltageLevels.Levels(), analog.NTSC.Levels)
	}

	for i := 0; i < frames; i++ {
		frame, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		want := makeFrame(meta.SamplesPerFrame, float32(i))
		if len(frame) != len(want) {
			t.Fatalf("frame %d length = %d, want %d", i, len(frame), len(want))
		}
		for j := range frame {
			if frame[j] != want[j] {
				t.Fatalf("frame %d sample %d = %v, want %v", i, j, frame[j], want[j])
			}
		}
	}
	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("end of stream: err = %v, want io.EOF", err)
	}
}

func TestShortTrailingFrameIsEOF(t *testing.T) {
	t.Parallel()
	meta := testMetadata(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(makeFrame(meta.SamplesPerFrame, 0)); err != nil {
		t.Fatal(err)
	}

	// Truncate mid-frame: the partial block signals end of stream.
	data := buf.Bytes()[:buf.Len()-100]
	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("truncated frame: err = %v, want io.EOF", err)
	}
}

func TestBadMagic(t *testing.T) {
	t.Parallel()
	data := append([]byte("NOPE"), make([]byte, 8)...)
	_, err := NewReader(bytes.NewReader(data))
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("err = %v, want ErrBadMagic", err)
	}
}

func TestBadVersion(t *testing.T) {
	t.Parallel()
	meta := testMetadata(t)
	header, err := EncodeHeader(meta)
	if err != nil {
		t.Fatal(err)
	}
	binary.LittleEndian.PutUint32(header[4:8], 2)
	_, err = NewReader(bytes.NewReader(header))
	if !errors.Is(err, ErrBadVersion) {
		t.Errorf("err = %v, want ErrBadVersion", err)
	}
}

func TestTruncatedMetadataIsFatal(t *testing.T) {
	t.Parallel()
	meta := testMetadata(t)
	header, err := EncodeHeader(meta)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewReader(bytes.NewReader(header[:20]))
	if err == nil {
		t.Fatal("truncated metadata should be a fatal format error")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want wrapped io.ErrUnexpectedEOF", err)
	}
}

func TestWriteFrameLengthCheck(t *testing.T) {
	t.Parallel()
	meta := testMetadata(t)
	w, err := NewWriter(&bytes.Buffer{}, meta)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(make([]float32, 10)); err == nil {
		t.Error("wrong-length frame should be rejected")
	}
}

func TestScramblingMetadataRoundTrip(t *testing.T) {
	t.Parallel()
	meta := testMetadata(t).WithScrambling("crypto", 16, Operations{
		Permutation: true,
		Inversion:   false,
		Shift:       true,
	})

	var buf bytes.Buffer
	if _, err := NewWriter(&buf, meta); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	got := r.Metadata()
	if !got.Scrambled {
		t.Error("scrambled flag lost")
	}
	if got.SegmentsPerLine != 16 {
		t.Errorf("segments = %d, want 16", got.SegmentsPerLine)
	}
	if got.Operations == nil {
		t.Fatal("operations lost")
	}
	if !got.Operations.Permutation || got.Operations.Inversion || !got.Operations.Shift {
		t.Errorf("operations = %+v", *got.Operations)
	}

	desc := got.WithDescrambling("crypto")
	if desc.Scrambled || !desc.Descrambled {
		t.Errorf("descrambling flags = scrambled:%v descrambled:%v", desc.Scrambled, desc.Descrambled)
	}
}
