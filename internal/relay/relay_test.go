package relay

import (
	"testing"
)

func TestHeaderFirstWriteWins(t *testing.T) {
	t.Parallel()
	r := NewRelay()
	if r.Header() != nil {
		t.Fatal("header should be nil before SetHeader")
	}
	r.SetHeader([]byte("first"))
	r.SetHeader([]byte("second"))
	if got := string(r.Header()); got != "first" {
		t.Errorf("header = %q, want %q", got, "first")
	}
}

func TestBroadcastReachesAllViewers(t *testing.T) {
	t.Parallel()
	r := NewRelay()
	a := r.AddViewer()
	b := r.AddViewer()
	if r.ViewerCount() != 2 {
		t.Fatalf("viewer count = %d, want 2", r.ViewerCount())
	}
	if a.ID() == b.ID() {
		t.Fatalf("viewer IDs collide: %s", a.ID())
	}

	r.Broadcast([]byte{1, 2, 3})
	for _, v := range []*Viewer{a, b} {
		frame := <-v.Frames()
		if len(frame) != 3 || frame[0] != 1 {
			t.Errorf("viewer %s received %v", v.ID(), frame)
		}
	}
	if r.FramesBroadcast() != 1 {
		t.Errorf("frames broadcast = %d, want 1", r.FramesBroadcast())
	}
}

func TestSlowViewerDropsOldest(t *testing.T) {
	t.Parallel()
	r := NewRelayWithDepth(2)
	v := r.AddViewer()

	r.Broadcast([]byte{0})
	r.Broadcast([]byte{1})
	// Queue full; frame 0 is shed to make room.
	r.Broadcast([]byte{2})

	if got := (<-v.Frames())[0]; got != 1 {
		t.Errorf("first delivered frame = %d, want 1", got)
	}
	if got := (<-v.Frames())[0]; got != 2 {
		t.Errorf("second delivered frame = %d, want 2", got)
	}

	stats := v.Stats()
	if stats.Sent != 3 {
		t.Errorf("sent = %d, want 3", stats.Sent)
	}
	if stats.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.Dropped)
	}
}

func TestRemoveViewerClosesQueue(t *testing.T) {
	t.Parallel()
	r := NewRelay()
	v := r.AddViewer()
	r.RemoveViewer(v.ID())
	if r.ViewerCount() != 0 {
		t.Fatalf("viewer count = %d, want 0", r.ViewerCount())
	}
	if _, ok := <-v.Frames(); ok {
		t.Error("queue should be closed after removal")
	}
	// Removing twice is a no-op.
	r.RemoveViewer(v.ID())

	// Broadcasts after removal must not reach the closed queue.
	r.Broadcast([]byte{9})
}

func TestViewerStatsAll(t *testing.T) {
	t.Parallel()
	r := NewRelay()
	r.AddViewer()
	r.AddViewer()
	r.Broadcast([]byte{1})

	stats := r.ViewerStatsAll()
	if len(stats) != 2 {
		t.Fatalf("stats for %d viewers, want 2", len(stats))
	}
	for _, s := range stats {
		if s.Sent != 1 {
			t.Errorf("viewer %s sent = %d, want 1", s.ID, s.Sent)
		}
		if s.Queued != 1 {
			t.Errorf("viewer %s queued = %d, want 1", s.ID, s.Queued)
		}
	}
}
