// Package relay fans an encoded waveform stream out to connected viewers
// over QUIC. The relay itself is transport-agnostic: it holds the container
// header for replay to late joiners and per-viewer bounded queues, while the
// Server handles QUIC sessions.
package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultQueueDepth is the per-viewer frame queue capacity when the caller
// does not choose one.
const DefaultQueueDepth = 32

// Viewer is one connected consumer. Frames are delivered through a bounded
// queue; when a viewer falls behind, the oldest queued frames are dropped so
// delivery stays near the live edge.
type Viewer struct {
	id      string
	queue   chan []byte
	sent    atomic.Int64
	dropped atomic.Int64
}

// ID returns the viewer's session identifier.
func (v *Viewer) ID() string { return v.id }

// Frames is the viewer's delivery queue. It is closed when the viewer is
// removed from the relay.
func (v *Viewer) Frames() <-chan []byte { return v.queue }

// Stats returns delivery counters for this viewer.
func (v *Viewer) Stats() ViewerStats {
	return ViewerStats{
		ID:      v.id,
		Sent:    v.sent.Load(),
		Dropped: v.dropped.Load(),
		Queued:  len(v.queue),
	}
}

// ViewerStats is a point-in-time snapshot of one viewer's delivery counters.
type ViewerStats struct {
	ID      string `json:"id"`
	Sent    int64  `json:"sent"`
	Dropped int64  `json:"dropped"`
	Queued  int    `json:"queued"`
}

// Relay is the fan-out hub for one waveform stream. The container header is
// set once and replayed to every viewer before frames, so a late joiner
// always receives a parseable stream.
type Relay struct {
	log        *slog.Logger
	queueDepth int

	mu      sync.RWMutex
	viewers map[string]*Viewer
	header  []byte
	nextID  int

	frames atomic.Int64
}

// NewRelay creates a Relay with no viewers and the default queue depth.
func NewRelay() *Relay {
	return NewRelayWithDepth(DefaultQueueDepth)
}

// NewRelayWithDepth creates a Relay whose viewer queues hold up to depth
// frames.
func NewRelayWithDepth(depth int) *Relay {
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	return &Relay{
		log:        slog.With("component", "relay"),
		queueDepth: depth,
		viewers:    make(map[string]*Viewer),
	}
}

// SetHeader stores the container header replayed to new viewers. The first
// call wins; the stream's metadata never changes mid-flight.
func (r *Relay) SetHeader(header []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.header != nil {
		return
	}
	r.header = append([]byte(nil), header...)
	r.log.Debug("stream header set", "bytes", len(r.header))
}

// Header returns the stored container header, or nil before SetHeader.
func (r *Relay) Header() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.header
}

// AddViewer registers a new viewer and returns its session.
func (r *Relay) AddViewer() *Viewer {
	r.mu.Lock()
	r.nextID++
	v := &Viewer{
		id:    fmt.Sprintf("viewer-%d", r.nextID),
		queue: make(chan []byte, r.queueDepth),
	}
	r.viewers[v.id] = v
	count := len(r.viewers)
	r.mu.Unlock()

	r.log.Info("viewer added", "session", v.id, "viewers", count)
	return v
}

// RemoveViewer unregisters a viewer and closes its queue.
func (r *Relay) RemoveViewer(id string) {
	r.mu.Lock()
	v, ok := r.viewers[id]
	if ok {
		delete(r.viewers, id)
		close(v.queue)
	}
	count := len(r.viewers)
	r.mu.Unlock()

	if ok {
		r.log.Info("viewer removed", "session", id, "viewers", count)
	}
}

// Broadcast queues one encoded frame block for every viewer. A full queue
// sheds its oldest frame first so slow viewers skip ahead instead of stalling
// the broadcast.
func (r *Relay) Broadcast(frame []byte) {
	r.frames.Add(1)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.viewers {
		select {
		case v.queue <- frame:
			v.sent.Add(1)
			continue
		default:
		}
		select {
		case <-v.queue:
			v.dropped.Add(1)
		default:
		}
		select {
		case v.queue <- frame:
			v.sent.Add(1)
		default:
			v.dropped.Add(1)
		}
	}
}

// ViewerCount returns the number of connected viewers.
func (r *Relay) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

// FramesBroadcast reports how many frames have been broadcast so far.
func (r *Relay) FramesBroadcast() int64 { return r.frames.Load() }

// ViewerStatsAll returns delivery metrics for every connected viewer.
func (r *Relay) ViewerStatsAll() []ViewerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make([]ViewerStats, 0, len(r.viewers))
	for _, v := range r.viewers {
		stats = append(stats, v.Stats())
	}
	return stats
}
