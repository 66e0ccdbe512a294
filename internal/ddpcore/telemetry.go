package ddpcore

import (
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Telemetry accumulates lifetime and per-interval counters for the
// bridge and prints a human-readable status line on each Tick, mirroring
// a long-running capture loop's periodic stats report.
type Telemetry struct {
	startedAt time.Time

	packetsRead       int64
	packetsBad        int64
	framesDone        int64
	incomplete        int64
	dropped           int64
	written           int64
	pacerDropped      int64
	writeLatencyUsSum int64

	lastPacketsRead       int64
	lastPacketsBad        int64
	lastFramesDone        int64
	lastIncomplete        int64
	lastDropped           int64
	lastWritten           int64
	lastPacerDropped      int64
	lastWriteLatencyUsSum int64
}

// NewTelemetry starts a fresh counter set, stamped with the current time
// as the lifetime-summary baseline.
func NewTelemetry() *Telemetry {
	return &Telemetry{startedAt: time.Now()}
}

// AddReceiverStats folds one receiver iteration's counts into the
// running totals.
func (t *Telemetry) AddReceiverStats(s ReceiverStats) {
	atomic.AddInt64(&t.packetsRead, int64(s.PacketsRead))
	atomic.AddInt64(&t.packetsBad, int64(s.PacketsBad))
	atomic.AddInt64(&t.framesDone, int64(s.FramesDone))
	atomic.AddInt64(&t.incomplete, int64(s.Incomplete))
	atomic.AddInt64(&t.dropped, int64(s.Dropped))
}

// AddPacerStats folds one pacer drain's written/dropped counts and summed
// write latency (in milliseconds, converted to microseconds for integer
// accumulation) into the running totals.
func (t *Telemetry) AddPacerStats(written, dropped int, latencyMsSum float64) {
	atomic.AddInt64(&t.written, int64(written))
	atomic.AddInt64(&t.pacerDropped, int64(dropped))
	atomic.AddInt64(&t.writeLatencyUsSum, int64(latencyMsSum*1000))
}

// Tick logs one per-interval line, showing the delta since the previous
// Tick rather than the lifetime total, so the operator can see current
// throughput at a glance.
func (t *Telemetry) Tick() {
	read := atomic.LoadInt64(&t.packetsRead)
	bad := atomic.LoadInt64(&t.packetsBad)
	done := atomic.LoadInt64(&t.framesDone)
	incomplete := atomic.LoadInt64(&t.incomplete)
	dropped := atomic.LoadInt64(&t.dropped)
	written := atomic.LoadInt64(&t.written)
	pacerDropped := atomic.LoadInt64(&t.pacerDropped)
	writeLatencyUsSum := atomic.LoadInt64(&t.writeLatencyUsSum)

	log.Print(fmt.Sprintf(
		"pkts=%d bad=%d frames=%d incomplete=%d queueDrop=%d written=%d paceDrop=%d writeLatMs=%.2f",
		read-t.lastPacketsRead,
		bad-t.lastPacketsBad,
		done-t.lastFramesDone,
		incomplete-t.lastIncomplete,
		dropped-t.lastDropped,
		written-t.lastWritten,
		pacerDropped-t.lastPacerDropped,
		float64(writeLatencyUsSum-t.lastWriteLatencyUsSum)/1000.0,
	))

	t.lastPacketsRead = read
	t.lastPacketsBad = bad
	t.lastFramesDone = done
	t.lastIncomplete = incomplete
	t.lastDropped = dropped
	t.lastWritten = written
	t.lastPacerDropped = pacerDropped
	t.lastWriteLatencyUsSum = writeLatencyUsSum
}

// Summary logs the lifetime totals, intended for shutdown.
func (t *Telemetry) Summary() {
	uptime := time.Since(t.startedAt).Round(time.Second)
	log.Print(fmt.Sprintf(
		"lifetime: uptime=%s pkts=%d bad=%d frames=%d incomplete=%d queueDrop=%d written=%d paceDrop=%d writeLatMs=%.2f",
		uptime,
		atomic.LoadInt64(&t.packetsRead),
		atomic.LoadInt64(&t.packetsBad),
		atomic.LoadInt64(&t.framesDone),
		atomic.LoadInt64(&t.incomplete),
		atomic.LoadInt64(&t.dropped),
		atomic.LoadInt64(&t.written),
		atomic.LoadInt64(&t.pacerDropped),
		float64(atomic.LoadInt64(&t.writeLatencyUsSum))/1000.0,
	))
}

// Run logs a Tick every interval until stop is closed, then logs a final
// Summary.
func (t *Telemetry) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			t.Summary()
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}
