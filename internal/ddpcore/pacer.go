package ddpcore

import (
	"sync/atomic"
	"time"
)

// DefaultMaxFPS is the pacing rate used when no override is configured.
const DefaultMaxFPS = 20

// PacedFrame is a completed, ready-to-write frame handed from the
// receiver goroutine to the pacer goroutine.
type PacedFrame struct {
	Pixels []byte
	Route  *RoutingTable
}

// Pacer drains a channel of completed frames at a fixed rate, always
// preferring the most recently received frame and discarding any older
// ones still queued (latest-wins), so the writer never falls behind the
// source under sustained backpressure.
type Pacer struct {
	Interval time.Duration
	Writer   Writer
	Correct  CorrectionConfig

	// dropped/written/latencyUsSum are mutated from Run/runUnpaced's
	// goroutine and read from TakeCounters, which supervisor.receiveLoop
	// calls from a different goroutine, so these are atomic.
	dropped      atomic.Int64
	written      atomic.Int64
	latencyUsSum atomic.Int64
}

// NewPacer builds a Pacer targeting maxFPS frames per second. A maxFPS of
// 0 disables pacing: Run writes every frame as soon as it arrives (still
// collapsing a backlog to the newest) instead of waiting for a tick.
func NewPacer(maxFPS int, w Writer, cfg CorrectionConfig) *Pacer {
	p := &Pacer{
		Writer:  w,
		Correct: cfg,
	}
	if maxFPS > 0 {
		p.Interval = time.Second / time.Duration(maxFPS)
	}
	return p
}

// Run consumes frames from in until it is closed or stop signals done,
// writing at most one frame per Interval (or, with pacing disabled, as
// soon as one is available). Between writes it drains in non-blockingly
// to keep only the newest frame, so a burst of completed frames collapses
// to the latest before the next write.
func (p *Pacer) Run(in <-chan PacedFrame, stop <-chan struct{}) {
	if p.Interval <= 0 {
		p.runUnpaced(in, stop)
		return
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	var pending *PacedFrame

	for {
		select {
		case <-stop:
			return
		case frame, ok := <-in:
			if !ok {
				return
			}
			if pending != nil {
				p.dropped.Add(1)
			}
			f := frame
			pending = &f
		case <-ticker.C:
			pending = p.drainLatest(in, pending)
			if pending == nil {
				continue
			}
			Apply(pending.Pixels, p.Correct)
			if latencyMs, err := p.Writer.WriteFrame(pending.Pixels, pending.Route); err == nil {
				p.written.Add(1)
				p.latencyUsSum.Add(int64(latencyMs * 1000))
			}
			pending = nil
		}
	}
}

// runUnpaced is Run's max_fps=0 path: no ticker, no throttling. Every
// frame received is written immediately, after first collapsing any
// backlog already sitting in in to the newest (latest-wins still holds
// under backpressure even with pacing disabled).
func (p *Pacer) runUnpaced(in <-chan PacedFrame, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case frame, ok := <-in:
			if !ok {
				return
			}
			f := frame
			pending := p.drainLatest(in, &f)
			Apply(pending.Pixels, p.Correct)
			if latencyMs, err := p.Writer.WriteFrame(pending.Pixels, pending.Route); err == nil {
				p.written.Add(1)
				p.latencyUsSum.Add(int64(latencyMs * 1000))
			}
		}
	}
}

// drainLatest non-blockingly pulls any additional buffered frames from
// in, counting each superseded frame as dropped, and returns the newest.
func (p *Pacer) drainLatest(in <-chan PacedFrame, pending *PacedFrame) *PacedFrame {
	for {
		select {
		case frame, ok := <-in:
			if !ok {
				return pending
			}
			if pending != nil {
				p.dropped.Add(1)
			}
			f := frame
			pending = &f
		default:
			return pending
		}
	}
}

// TakeCounters resets and returns the written/dropped counts and summed
// write latency (in milliseconds) accumulated since the last call.
func (p *Pacer) TakeCounters() (written, dropped int, latencyMsSum float64) {
	written = int(p.written.Swap(0))
	dropped = int(p.dropped.Swap(0))
	latencyMsSum = float64(p.latencyUsSum.Swap(0)) / 1000.0
	return
}
