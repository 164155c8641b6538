package container

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Format errors. Truncated headers are reported as wrapped
// io.ErrUnexpectedEOF; a short trailing frame block signals end of stream
// rather than an error, matching the format's lack of an explicit trailer.
var (
	ErrBadMagic   = errors.New("container: bad magic")
	ErrBadVersion = errors.New("container: unsupported version")
)

// Reader reads an ANLG container: header at construction, then fixed-size
// frame blocks until a short read.
type Reader struct {
	r    io.Reader
	c    io.Closer
	meta Metadata
	buf  []byte
	read int
}

// NewReader parses the container header from r.
func NewReader(r io.Reader) (*Reader, error) {
	var fixed [12]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("container: read header: %w", err)
	}
	if [4]byte(fixed[0:4]) != Magic {
		return nil, fmt.Errorf("%w: % X", ErrBadMagic, fixed[0:4])
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	metaLen := binary.LittleEndian.Uint32(fixed[8:12])
	doc := make([]byte, metaLen)
	if _, err := io.ReadFull(r, doc); err != nil {
		return nil, fmt.Errorf("container: read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(doc, &meta); err != nil {
		return nil, fmt.Errorf("container: parse metadata: %w", err)
	}
	if meta.SamplesPerFrame <= 0 {
		return nil, fmt.Errorf("container: metadata declares %d samples per frame", meta.SamplesPerFrame)
	}

	cr := &Reader{r: r, meta: meta, buf: make([]byte, 4*meta.SamplesPerFrame)}
	if c, ok := r.(io.Closer); ok {
		cr.c = c
	}
	return cr, nil
}

// Open opens the file at path and parses its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("container: open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Metadata returns the header's attribute document.
func (r *Reader) Metadata() Metadata { return r.meta }

// ReadFrame returns the next frame of samples, or io.EOF when the stream ends
// (including a short trailing block).
func (r *Reader) ReadFrame() ([]float32, error) {
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("container: read frame %d: %w", r.read, err)
	}
	samples := make([]float32, r.meta.SamplesPerFrame)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(r.buf[4*i:]))
	}
	r.read++
	return samples, nil
}

// FramesRead reports how many frames have been read so far.
func (r *Reader) FramesRead() int { return r.read }

// Close closes the underlying reader when it is closable.
func (r *Reader) Close() error {
	if r.c != nil {
		return r.c.Close()
	}
	return nil
}
