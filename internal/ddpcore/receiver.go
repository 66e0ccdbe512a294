package ddpcore

import (
	"fmt"
	"net"
	"net/netip"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
)

const (
	// DefaultBatchLimit bounds how many datagrams ReadBatch pulls per
	// syscall.
	DefaultBatchLimit = 200
	// DefaultRecvBuf is the requested SO_RCVBUF size; the kernel may
	// silently cap this lower.
	DefaultRecvBuf = 4 << 20
	// idleSleep is how long the receive loop parks when a non-blocking
	// batch read comes back empty.
	idleSleep = 100 * time.Microsecond

	maxDatagram = 1500
)

// ReceiverStats accumulates counts the receive loop can't hand off any
// other way; Poll returns them for each batch and the supervisor's
// receiveLoop folds them into Telemetry.
type ReceiverStats struct {
	PacketsRead   int
	PacketsBad    int
	FramesDone    int
	Incomplete    int
	Dropped       int
}

// Receiver owns the UDP socket and the Assembler, and drives batched
// non-blocking reads into frame reassembly.
type Receiver struct {
	conn      *ipv4.PacketConn
	rawConn   net.PacketConn
	assembler *Assembler
	batchSize int
	bufs      [][]byte
	msgs      []ipv4.Message
}

// NewReceiver opens a UDP listener on addr (e.g. ":4049") and wraps it
// for batched reads, with the assembler sized for frameSize-byte frames
// and stale assemblies evicted after frameTimeout (0 uses the spec
// default of 100ms).
func NewReceiver(addr string, frameSize, batchLimit int, frameTimeout time.Duration) (*Receiver, error) {
	pc, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("ddpcore: listen %s: %w", addr, err)
	}
	if uc, ok := pc.(*net.UDPConn); ok {
		_ = uc.SetReadBuffer(DefaultRecvBuf)
	}

	if batchLimit <= 0 {
		batchLimit = DefaultBatchLimit
	}
	bufs := make([][]byte, batchLimit)
	msgs := make([]ipv4.Message, batchLimit)
	for i := range bufs {
		bufs[i] = make([]byte, maxDatagram)
		msgs[i].Buffers = [][]byte{bufs[i]}
	}

	return &Receiver{
		conn:      ipv4.NewPacketConn(pc),
		rawConn:   pc,
		assembler: NewAssembler(frameSize, DefaultMaxActive, DefaultCompletedCapacity, frameTimeout),
		batchSize: batchLimit,
		bufs:      bufs,
		msgs:      msgs,
	}, nil
}

// Close releases the underlying socket.
func (r *Receiver) Close() error {
	return r.rawConn.Close()
}

// Assembler exposes the receiver's assembler, e.g. so a caller can read
// ActiveCount for telemetry.
func (r *Receiver) Assembler() *Assembler {
	return r.assembler
}

// Poll performs one non-blocking ReadBatch, feeding every valid DDP
// packet to the assembler, then runs the expiry scan and returns
// whatever frames completed plus stats for this iteration, every
// iteration regardless of whether any datagram was read — a frame sitting
// with no further traffic still needs to time out. Only once all of that
// bookkeeping is done does an empty batch sleep briefly, to avoid a hot
// spin loop.
func (r *Receiver) Poll() ([]*FrameState, ReceiverStats, error) {
	var stats ReceiverStats

	n, err := r.conn.ReadBatch(r.msgs[:r.batchSize], syscall.MSG_DONTWAIT)
	if err != nil {
		if !isTemporary(err) {
			return nil, stats, fmt.Errorf("ddpcore: read batch: %w", err)
		}
		n = 0
	}

	for i := 0; i < n; i++ {
		msg := r.msgs[i]
		stats.PacketsRead++

		sender, ok := senderAddrPort(msg.Addr)
		if !ok {
			stats.PacketsBad++
			continue
		}
		chunk, ok := ParseDDPPacket(sender, r.bufs[i][:msg.N])
		if !ok {
			stats.PacketsBad++
			continue
		}
		if !r.assembler.Ingest(chunk) {
			stats.PacketsBad++
		}
	}

	r.assembler.Expire(time.Now())
	incomplete, dropped := r.assembler.TakeCounters()
	stats.Incomplete = incomplete
	stats.Dropped = dropped

	completed := r.assembler.DrainCompleted()
	stats.FramesDone = len(completed)

	if n == 0 {
		time.Sleep(idleSleep)
	}
	return completed, stats, nil
}

func senderAddrPort(addr net.Addr) (netip.AddrPort, bool) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}, false
	}
	ip, ok := netip.AddrFromSlice(udpAddr.IP.To4())
	if !ok {
		ip, ok = netip.AddrFromSlice(udpAddr.IP.To16())
		if !ok {
			return netip.AddrPort{}, false
		}
	}
	return netip.AddrPortFrom(ip, uint16(udpAddr.Port)), true
}

// isTemporary reports whether err is a transient condition (e.g.
// EAGAIN/EWOULDBLOCK on a non-blocking socket) rather than a fatal one.
func isTemporary(err error) bool {
	type temporary interface {
		Temporary() bool
	}
	te, ok := err.(temporary)
	return ok && te.Temporary()
}
