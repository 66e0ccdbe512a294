// Command ddp-send emits synthetic DDP v1 frames, a moving gradient
// chunked and paced like a real wall source, for exercising a bridge
// without an actual Twinkly controller.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"
)

func makeFrame(width, height, seq int) []byte {
	size := width * height * 3
	buf := make([]byte, size)
	for i := 0; i < size; i += 3 {
		x := (i / 3) % width
		y := (i / 3) / width
		buf[i] = byte((x*5 + seq*3) % 256)
		buf[i+1] = byte((y*5 + seq*5) % 256)
		buf[i+2] = byte((x + y + seq*7) % 256)
	}
	return buf
}

func sendFrame(conn *net.UDPConn, frame []byte, seq, chunk int) error {
	size := len(frame)
	off := 0
	for off < size {
		n := chunk
		if size-off < n {
			n = size - off
		}
		endOfFrame := off+n >= size

		pkt := make([]byte, 10+n)
		pkt[0] = 0x41
		if endOfFrame {
			pkt[1] = 0x01
		}
		pkt[2] = byte(seq)
		pkt[3] = byte(off >> 16)
		pkt[4] = byte(off >> 8)
		pkt[5] = byte(off)
		pkt[6] = byte(n >> 8)
		pkt[7] = byte(n)
		copy(pkt[10:], frame[off:off+n])

		if _, err := conn.Write(pkt); err != nil {
			return err
		}
		off += n
	}
	return nil
}

func mainImpl() error {
	dest := flag.String("dest", envOr("DDP_DEST", "127.0.0.1"), "destination IP")
	port := flag.Int("port", 4049, "destination UDP port")
	width := flag.Int("width", 90, "matrix width")
	height := flag.Int("height", 50, "matrix height")
	fps := flag.Float64("fps", 20, "send rate in frames per second")
	duration := flag.Duration("duration", 10*time.Second, "how long to send")
	chunk := flag.Int("chunk", 1050, "payload bytes per packet (<=1460 recommended)")
	flag.Parse()
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}

	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", *dest, *port))
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetWriteBuffer(1 << 20)

	fmt.Printf("Sending DDP to %s at %.1f fps for %s (%dx%d, chunk=%d)\n", addr, *fps, *duration, *width, *height, *chunk)

	interval := time.Duration(float64(time.Second) / *fps)
	deadline := time.Now().Add(*duration)
	seq := 0
	next := time.Now()

	for time.Now().Before(deadline) {
		frame := makeFrame(*width, *height, seq)
		if err := sendFrame(conn, frame, seq, *chunk); err != nil {
			return err
		}
		seq = (seq + 1) & 0xFF

		next = next.Add(interval)
		if d := time.Until(next); d > 0 {
			time.Sleep(d)
		} else {
			next = time.Now()
		}
	}

	fmt.Println("Done.")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "ddp-send: %s.\n", err)
		os.Exit(1)
	}
}
