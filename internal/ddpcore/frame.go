// Package ddpcore implements the real-time pixel delivery core: a DDP v1
// receiver that reassembles fragmented UDP frames, color correction, and
// the FPP pixel-overlay writer that scatters corrected pixels into a
// memory-mapped output buffer.
package ddpcore

import (
	"math/bits"
	"net/netip"
	"time"
)

// FrameKey identifies one in-flight DDP frame assembly.
//
// Keying by (sender, sequence) makes cross-sender sequence collisions
// impossible by construction.
type FrameKey struct {
	Sender   netip.AddrPort
	Sequence uint8
}

// FrameState is the in-progress reassembly of one DDP frame.
//
// Invariants: 0 <= MissingBytes <= len(Buf); every byte marked covered in
// the bitmap is reflected in MissingBytes; a FrameState is complete iff
// MissingBytes == 0 && SawPush.
type FrameState struct {
	Key            FrameKey
	Buf            []byte
	coverage       []uint64 // one bit per byte
	MissingBytes   int
	ChunksReceived int
	SawPush        bool
	StartTime      time.Time
}

func newFrameState(key FrameKey, frameSize int) *FrameState {
	return &FrameState{
		Key:          key,
		Buf:          make([]byte, frameSize),
		coverage:     make([]uint64, (frameSize+63)/64),
		MissingBytes: frameSize,
		StartTime:    time.Now(),
	}
}

// Complete reports whether the frame has every byte covered and has seen
// the PUSH flag.
func (f *FrameState) Complete() bool {
	return f.MissingBytes == 0 && f.SawPush
}

// markCovered marks [off, off+n) as covered and returns the number of
// newly covered bytes, so idempotent retransmissions don't under-count
// MissingBytes.
func (f *FrameState) markCovered(off, n int) int {
	newly := 0
	for i := off; i < off+n; i++ {
		word := i / 64
		bit := uint64(1) << uint(i%64)
		if f.coverage[word]&bit == 0 {
			f.coverage[word] |= bit
			newly++
		}
	}
	f.MissingBytes -= newly
	return newly
}

// popcount returns the number of covered bytes, used only by tests to
// check invariant I1 independently of MissingBytes bookkeeping.
func (f *FrameState) popcount() int {
	n := 0
	for _, w := range f.coverage {
		n += bits.OnesCount64(w)
	}
	return n
}
