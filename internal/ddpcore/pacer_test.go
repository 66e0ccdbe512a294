package ddpcore

import (
	"sync"
	"testing"
	"time"
)

type fakeWriter struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeWriter) WriteFrame(pixels []byte, route *RoutingTable) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), pixels...)
	f.frames = append(f.frames, cp)
	return 0, nil
}

func (f *fakeWriter) Close() error { return nil }

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestPacerWritesLatestAndDropsStale(t *testing.T) {
	w := &fakeWriter{}
	p := NewPacer(1000, w, DefaultCorrectionConfig()) // fast enough for a short test
	in := make(chan PacedFrame, 8)
	stop := make(chan struct{})

	go p.Run(in, stop)

	// Enqueue several frames faster than the pacer could possibly drain
	// them one at a time; only the newest pending one should survive to
	// the next tick.
	in <- PacedFrame{Pixels: []byte{1, 1, 1}}
	in <- PacedFrame{Pixels: []byte{2, 2, 2}}
	in <- PacedFrame{Pixels: []byte{3, 3, 3}}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	time.Sleep(10 * time.Millisecond)

	written, dropped, _ := p.TakeCounters()
	if written == 0 {
		t.Fatal("pacer wrote no frames")
	}
	if dropped == 0 {
		t.Fatal("pacer should have dropped at least one superseded frame")
	}
	w.mu.Lock()
	last := w.frames[len(w.frames)-1]
	w.mu.Unlock()
	if last[0] != 3 {
		t.Fatalf("last written frame = %v, want the newest [3 3 3]", last)
	}
	_ = written
}
