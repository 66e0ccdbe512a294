package ddpcore

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Config is the full set of knobs for a running bridge, gathered from
// flags/env by the cmd/ddp-bridge entrypoint.
type Config struct {
	ListenAddr string
	Model      string
	Width      int
	Height     int
	TotalLEDs  int

	MappingPath  string
	MappingWatch bool

	Correction   CorrectionConfig
	MaxFPS       int
	BatchLimit   int
	FrameTimeout time.Duration

	FPPHost       string
	ActivateState int

	StatsInterval time.Duration
}

// DefaultConfig returns a Config with every field at its spec default;
// callers fill in Model/Width/Height/TotalLEDs for their wall.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    ":4049",
		Correction:    DefaultCorrectionConfig(),
		MaxFPS:        DefaultMaxFPS,
		BatchLimit:    DefaultBatchLimit,
		FrameTimeout:  DefaultFrameTimeout,
		ActivateState: 3,
		StatsInterval: time.Second,
	}
}

// Supervisor owns the receiver and pacer goroutines, the routing table
// (swappable at runtime via mapping hot-reload), and telemetry, and
// coordinates a clean shutdown.
type Supervisor struct {
	cfg Config

	receiver *Receiver
	overlay  *Overlay
	pacer    *Pacer
	tel      *Telemetry

	route chan *RoutingTable
}

// NewSupervisor wires a Supervisor from cfg but does not yet start it.
func NewSupervisor(cfg Config) (*Supervisor, error) {
	frameSize := cfg.Width * cfg.Height * 3
	receiver, err := NewReceiver(cfg.ListenAddr, frameSize, cfg.BatchLimit, cfg.FrameTimeout)
	if err != nil {
		return nil, err
	}

	overlay := NewOverlay(cfg.Model, cfg.TotalLEDs)
	if overlay.Degraded() {
		log.Printf("ddpcore: supervisor: overlay for model %q running in degraded (no-op) mode", cfg.Model)
	}

	return &Supervisor{
		cfg:      cfg,
		receiver: receiver,
		overlay:  overlay,
		pacer:    NewPacer(cfg.MaxFPS, overlay, cfg.Correction),
		tel:      NewTelemetry(),
		route:    make(chan *RoutingTable, 1),
	}, nil
}

// Run starts the receiver, pacer, mapping watcher (if configured), and
// telemetry, and blocks until stop is closed. On return, it flushes a
// black frame to the overlay and releases all resources.
func (s *Supervisor) Run(ctx context.Context, stop <-chan struct{}) error {
	if err := s.activateOverlay(); err != nil {
		log.Printf("ddpcore: supervisor: overlay activation: %v", err)
	}

	var current *RoutingTable
	if s.cfg.MappingPath != "" {
		rt, err := LoadMapping(s.cfg.MappingPath, s.cfg.Width, s.cfg.Height, s.cfg.TotalLEDs)
		if err != nil {
			return fmt.Errorf("ddpcore: supervisor: initial mapping load: %w", err)
		}
		current = rt
		if s.cfg.MappingWatch {
			if err := WatchMapping(ctx, s.cfg.MappingPath, s.cfg.Width, s.cfg.Height, s.cfg.TotalLEDs, func(rt *RoutingTable) {
				select {
				case s.route <- rt:
				default:
					<-s.route
					s.route <- rt
				}
			}); err != nil {
				log.Printf("ddpcore: supervisor: mapping watch: %v", err)
			}
		}
	}

	frames := make(chan PacedFrame, 4)
	pacerStop := make(chan struct{})
	go s.pacer.Run(frames, pacerStop)

	telStop := make(chan struct{})
	go s.tel.Run(s.cfg.StatsInterval, telStop)

	go s.receiveLoop(frames, stop, &current)

	<-stop
	close(pacerStop)
	close(telStop)

	if _, err := s.overlay.WriteSolid(0, 0, 0); err != nil {
		log.Printf("ddpcore: supervisor: blank on shutdown: %v", err)
	}
	if err := s.receiver.Close(); err != nil {
		log.Printf("ddpcore: supervisor: receiver close: %v", err)
	}
	if err := s.overlay.Close(); err != nil {
		log.Printf("ddpcore: supervisor: overlay close: %v", err)
	}
	return nil
}

// receiveLoop polls the receiver, applies any pending mapping reload,
// and forwards every completed frame, oldest first, into the pacer's
// input channel (blocking while it is full; the pacer keeps only the
// newest), until stop is closed.
func (s *Supervisor) receiveLoop(frames chan<- PacedFrame, stop <-chan struct{}, current **RoutingTable) {
	for {
		select {
		case <-stop:
			return
		case rt := <-s.route:
			*current = rt
		default:
		}

		completed, stats, err := s.receiver.Poll()
		if err != nil {
			log.Printf("ddpcore: supervisor: receive: %v", err)
			continue
		}
		s.tel.AddReceiverStats(stats)
		written, dropped, latencyMsSum := s.pacer.TakeCounters()
		s.tel.AddPacerStats(written, dropped, latencyMsSum)

		for _, fs := range completed {
			select {
			case frames <- PacedFrame{Pixels: fs.Buf, Route: *current}:
			case <-stop:
				return
			}
		}
	}
}

func (s *Supervisor) activateOverlay() error {
	if s.cfg.FPPHost == "" {
		return nil
	}
	return EnableOverlayState(&http.Client{Timeout: 2 * time.Second}, s.cfg.FPPHost, s.cfg.Model, s.cfg.ActivateState)
}
