package ddpcore

import (
	"net/netip"
	"testing"
)

func testKey() FrameKey {
	return FrameKey{Sender: netip.MustParseAddrPort("10.0.0.5:1234"), Sequence: 1}
}

func TestMarkCoveredIsIdempotent(t *testing.T) {
	fs := newFrameState(testKey(), 10)

	n := fs.markCovered(0, 4)
	if n != 4 {
		t.Fatalf("first markCovered = %d newly covered, want 4", n)
	}
	if fs.MissingBytes != 6 {
		t.Fatalf("MissingBytes = %d, want 6", fs.MissingBytes)
	}

	n = fs.markCovered(0, 4)
	if n != 0 {
		t.Fatalf("repeat markCovered = %d newly covered, want 0", n)
	}
	if fs.MissingBytes != 6 {
		t.Fatalf("MissingBytes after repeat = %d, want 6", fs.MissingBytes)
	}
}

func TestMarkCoveredOverlapping(t *testing.T) {
	fs := newFrameState(testKey(), 10)
	fs.markCovered(0, 6)
	n := fs.markCovered(4, 6)
	if n != 4 {
		t.Fatalf("overlapping markCovered = %d newly covered, want 4", n)
	}
	if fs.MissingBytes != 0 {
		t.Fatalf("MissingBytes = %d, want 0", fs.MissingBytes)
	}
	if fs.popcount() != 10 {
		t.Fatalf("popcount = %d, want 10", fs.popcount())
	}
}

func TestCompleteRequiresPush(t *testing.T) {
	fs := newFrameState(testKey(), 4)
	fs.markCovered(0, 4)
	if fs.Complete() {
		t.Fatal("Complete() = true before PUSH seen")
	}
	fs.SawPush = true
	if !fs.Complete() {
		t.Fatal("Complete() = false after full coverage and PUSH")
	}
}
