package ddpcore

import (
	"net/netip"
	"time"
)

const (
	ddpMagic = 0x41
	ddpFlagPush = 0x01
	ddpHeaderLen = 10

	// DefaultMaxActive is the cap on concurrent in-flight frame
	// assemblies (spec: MAX_ACTIVE).
	DefaultMaxActive = 12
	// DefaultCompletedCapacity bounds the completed-frame queue.
	DefaultCompletedCapacity = 50
	// DefaultFrameTimeout is how long an incomplete assembly may stay
	// in flight, counted from its first chunk, before it is expired.
	DefaultFrameTimeout = 100 * time.Millisecond
)

// assemblerCounters counts outcomes the assembler can't report any other
// way; Receiver.Poll reads and resets them via Assembler.TakeCounters.
type assemblerCounters struct {
	incomplete int
	drops      int
}

// Assembler reassembles DDP v1 frames per (sender, sequence), expiring
// stale in-flight frames and evicting the oldest active frame when the
// table exceeds MaxActive.
//
// Not safe for concurrent use from more than one goroutine; it is owned
// by the receiver loop.
type Assembler struct {
	FrameSize int
	MaxActive int
	Timeout   time.Duration

	active    map[FrameKey]*FrameState
	order     []FrameKey // insertion order, oldest first, for LRU eviction
	completed []*FrameState
	capacity  int

	counters assemblerCounters
}

// NewAssembler creates an Assembler for frames of frameSize bytes.
func NewAssembler(frameSize, maxActive, completedCapacity int, timeout time.Duration) *Assembler {
	if maxActive <= 0 {
		maxActive = DefaultMaxActive
	}
	if completedCapacity <= 0 {
		completedCapacity = DefaultCompletedCapacity
	}
	if timeout <= 0 {
		timeout = DefaultFrameTimeout
	}
	return &Assembler{
		FrameSize: frameSize,
		MaxActive: maxActive,
		Timeout:   timeout,
		active:    make(map[FrameKey]*FrameState),
		capacity:  completedCapacity,
	}
}

// ParsedChunk is one decoded DDP v1 packet.
type ParsedChunk struct {
	Sender  netip.AddrPort
	Seq     uint8
	Offset  int
	Length  int
	Push    bool
	Payload []byte
}

// ParseDDPPacket decodes a raw UDP datagram as a DDP v1 packet. Packets
// not starting with the magic byte, with a short header, or with a
// payload length mismatch are rejected. Offset/length overflow of the
// frame bounds is checked later, by Assembler.Ingest.
func ParseDDPPacket(sender netip.AddrPort, data []byte) (ParsedChunk, bool) {
	if len(data) < ddpHeaderLen || data[0] != ddpMagic {
		return ParsedChunk{}, false
	}
	flags := data[1]
	seq := data[2]
	off := int(data[3])<<16 | int(data[4])<<8 | int(data[5])
	length := int(data[6])<<8 | int(data[7])
	payload := data[ddpHeaderLen:]
	if len(payload) != length {
		return ParsedChunk{}, false
	}
	return ParsedChunk{
		Sender:  sender,
		Seq:     seq,
		Offset:  off,
		Length:  length,
		Push:    flags&ddpFlagPush != 0,
		Payload: payload,
	}, true
}

// Ingest applies one parsed chunk to the assembly table. It returns true
// if the chunk was accepted (even if it didn't complete a frame); it
// returns false if offset/length overflowed the frame bounds (I6).
func (a *Assembler) Ingest(chunk ParsedChunk) bool {
	if chunk.Offset < 0 || chunk.Offset+chunk.Length > a.FrameSize {
		return false
	}

	key := FrameKey{Sender: chunk.Sender, Sequence: chunk.Seq}
	fs, ok := a.active[key]
	if !ok {
		if len(a.active) >= a.MaxActive {
			a.evictOldest()
		}
		fs = newFrameState(key, a.FrameSize)
		a.active[key] = fs
		a.order = append(a.order, key)
	}

	copy(fs.Buf[chunk.Offset:chunk.Offset+chunk.Length], chunk.Payload)
	fs.markCovered(chunk.Offset, chunk.Length)
	fs.ChunksReceived++
	if chunk.Push {
		fs.SawPush = true
	}

	if fs.Complete() {
		a.completeFrame(key)
	}
	return true
}

// completeFrame moves an active assembly into the completed queue,
// dropping the oldest queued frame if the queue is already at capacity.
func (a *Assembler) completeFrame(key FrameKey) {
	fs := a.active[key]
	delete(a.active, key)
	a.removeFromOrder(key)

	a.completed = append(a.completed, fs)
	if len(a.completed) > a.capacity {
		a.completed = a.completed[1:]
		a.counters.drops++
	}
}

// Expire removes active assemblies older than Timeout, counting each as
// incomplete. Call once per receiver iteration.
func (a *Assembler) Expire(now time.Time) {
	var remaining []FrameKey
	for _, key := range a.order {
		fs, ok := a.active[key]
		if !ok {
			continue
		}
		if now.Sub(fs.StartTime) > a.Timeout {
			delete(a.active, key)
			a.counters.incomplete++
			continue
		}
		remaining = append(remaining, key)
	}
	a.order = remaining
}

// evictOldest drops the least-recently-created active assembly, counting
// it as incomplete, to make room under MaxActive.
func (a *Assembler) evictOldest() {
	if len(a.order) == 0 {
		return
	}
	oldest := a.order[0]
	a.order = a.order[1:]
	delete(a.active, oldest)
	a.counters.incomplete++
}

func (a *Assembler) removeFromOrder(key FrameKey) {
	for i, k := range a.order {
		if k == key {
			a.order = append(a.order[:i], a.order[i+1:]...)
			return
		}
	}
}

// ActiveCount returns the number of in-flight assemblies (for I3).
func (a *Assembler) ActiveCount() int {
	return len(a.active)
}

// DrainCompleted pops every completed frame currently queued, oldest
// first, and resets the queue. Callers that only want the newest should
// take the last element and count the rest as drops.
func (a *Assembler) DrainCompleted() []*FrameState {
	if len(a.completed) == 0 {
		return nil
	}
	out := a.completed
	a.completed = nil
	return out
}

// TakeCounters resets and returns the incomplete/drop counts accumulated
// since the last call, for Telemetry to fold into its own counters.
func (a *Assembler) TakeCounters() (incomplete, drops int) {
	incomplete, drops = a.counters.incomplete, a.counters.drops
	a.counters = assemblerCounters{}
	return
}
