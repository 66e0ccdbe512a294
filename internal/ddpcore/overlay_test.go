package ddpcore

import "testing"

// testOverlay builds an Overlay with a plain byte slice standing in for
// the mmap'd region, so WriteFrame's scatter logic can be exercised
// without touching /dev/shm.
func testOverlay(totalLEDs int) *Overlay {
	return &Overlay{mapped: make([]byte, totalLEDs*3)}
}

func TestOverlayWriteFrameIdentityWithoutRoute(t *testing.T) {
	o := testOverlay(2)
	pixels := []byte{1, 2, 3, 4, 5, 6}
	if _, err := o.WriteFrame(pixels, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	for i := range pixels {
		if o.mapped[i] != pixels[i] {
			t.Fatalf("mapped[%d] = %d, want %d", i, o.mapped[i], pixels[i])
		}
	}
}

func TestOverlayWriteFrameScattersThroughRoute(t *testing.T) {
	o := testOverlay(3)
	pixels := []byte{10, 20, 30, 40, 50, 60} // 2 logical pixels
	route := &RoutingTable{
		Src: []int32{0, 1},
		Dst: []int32{2, 0}, // logical 0 -> physical LED 2, logical 1 -> physical LED 0
	}
	if _, err := o.WriteFrame(pixels, route); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if o.mapped[2*3] != 10 || o.mapped[2*3+1] != 20 || o.mapped[2*3+2] != 30 {
		t.Fatalf("LED 2 = %v, want 10,20,30", o.mapped[6:9])
	}
	if o.mapped[0] != 40 || o.mapped[1] != 50 || o.mapped[2] != 60 {
		t.Fatalf("LED 0 = %v, want 40,50,60", o.mapped[0:3])
	}
}

func TestOverlayWriteFrameSkipsOutOfRangeRouteEntries(t *testing.T) {
	o := testOverlay(1)
	pixels := []byte{10, 20, 30}
	route := &RoutingTable{Src: []int32{0}, Dst: []int32{5}} // out of range
	if _, err := o.WriteFrame(pixels, route); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	for _, b := range o.mapped {
		if b != 0 {
			t.Fatalf("out-of-range route entry wrote into mapped buffer: %v", o.mapped)
		}
	}
}

func TestOverlayWriteSolid(t *testing.T) {
	o := testOverlay(2)
	if _, err := o.WriteSolid(5, 6, 7); err != nil {
		t.Fatalf("WriteSolid: %v", err)
	}
	want := []byte{5, 6, 7, 5, 6, 7}
	for i := range want {
		if o.mapped[i] != want[i] {
			t.Fatalf("mapped[%d] = %d, want %d", i, o.mapped[i], want[i])
		}
	}
}

func TestDegradedOverlayWriteFrameIsNoOp(t *testing.T) {
	o := &Overlay{degraded: true}
	if _, err := o.WriteFrame([]byte{1, 2, 3}, nil); err != nil {
		t.Fatalf("WriteFrame on degraded overlay: %v", err)
	}
	if err := o.Close(); err != nil {
		t.Fatalf("Close on degraded overlay: %v", err)
	}
}
