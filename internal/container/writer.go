package container

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"
)

// Magic identifies an ANLG container file.
var Magic = [4]byte{'A', 'N', 'L', 'G'}

// Version is the only container version this package reads and writes.
const Version uint32 = 1

// EncodeHeader serializes the container header (magic, version, and the
// length-prefixed metadata document) for the given metadata.
func EncodeHeader(meta Metadata) ([]byte, error) {
	doc, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("container: marshal metadata: %w", err)
	}
	buf := make([]byte, 0, 12+len(doc))
	buf = append(buf, Magic[:]...)
	buf = binary.LittleEndian.AppendUint32(buf, Version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(doc)))
	buf = append(buf, doc...)
	return buf, nil
}

// EncodeFrame serializes one frame of samples as little-endian float32, the
// same block layout Writer.WriteFrame produces.
func EncodeFrame(samples []float32) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return buf
}

// Writer writes an ANLG container: the header once at construction, then one
// fixed-size sample block per frame. The metadata is immutable after the
// header is written.
type Writer struct {
	w       io.Writer
	c       io.Closer
	meta    Metadata
	buf     []byte
	written int
}

// NewWriter stamps the metadata timestamp (when absent) and writes the header
// immediately, so an interrupted run always leaves a header-valid file.
func NewWriter(w io.Writer, meta Metadata) (*Writer, error) {
	if meta.Timestamp == "" {
		meta.Timestamp = time.Now().Format(time.RFC3339)
	}
	header, err := EncodeHeader(meta)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("container: write header: %w", err)
	}
	cw := &Writer{w: w, meta: meta, buf: make([]byte, 4*meta.SamplesPerFrame)}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw, nil
}

// Create creates the file at path and writes the container header.
func Create(path string, meta Metadata) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("container: create %s: %w", path, err)
	}
	w, err := NewWriter(f, meta)
	if err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Metadata returns the document written to the header, including the stamped
// timestamp.
func (w *Writer) Metadata() Metadata { return w.meta }

// WriteFrame appends one frame of samples as little-endian float32. The frame
// is written as a single contiguous byte run so a cancelled pipeline never
// leaves a torn frame.
func (w *Writer) WriteFrame(samples []float32) error {
	if len(samples) != w.meta.SamplesPerFrame {
		return fmt.Errorf("container: frame has %d samples, want %d",
			len(samples), w.meta.SamplesPerFrame)
	}
	for i, s := range samples {
		binary.LittleEndian.PutUint32(w.buf[4*i:], math.Float32bits(s))
	}
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("container: write frame %d: %w", w.written, err)
	}
	w.written++
	return nil
}

// FramesWritten reports how many frames have been written so far.
func (w *Writer) FramesWritten() int { return w.written }

// Close closes the underlying writer when it is closable.
func (w *Writer) Close() error {
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}
