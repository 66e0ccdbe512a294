// Command ddp-bridge receives DDP pixel data over UDP, reassembles it
// into frames, color-corrects and routes it through a logical-to-
// physical LED mapping, and writes it into an FPP pixel overlay.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/maruel/interrupt"

	"github.com/moseshoggatt/twinkly-ddp-core/internal/ddpcore"
)

// envOrString, envOrInt, and envOrFloat resolve a flag's default from the
// environment before flag.Parse runs, so an env var sets the baseline and
// an explicit command-line flag still overrides it (spec: "flags mirror
// environment variables; env takes lower precedence").
func envOrString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func mainImpl() error {
	host := flag.String("host", envOrString("DDP_HOST", "0.0.0.0"), "UDP host to receive DDP packets on")
	port := flag.Int("port", envOrInt("DDP_PORT", 4049), "UDP port to receive DDP packets on")
	model := flag.String("model", envOrString("DDP_MODEL", "Light_Wall"), "FPP model name backing /dev/shm/FPP-Model-Data-<model>")
	width := flag.Int("width", envOrInt("DDP_WIDTH", 90), "logical grid width in pixels")
	height := flag.Int("height", envOrInt("DDP_HEIGHT", 50), "logical grid height in pixels")
	totalLEDs := flag.Int("leds", envOrInt("DDP_LEDS", 90*50), "total physical LED count in the overlay buffer")

	mappingPath := flag.String("mapping", envOrString("DDP_MAPPING_CSV", ""), "CSV file mapping logical grid cells to physical LED index")
	mappingWatch := flag.Bool("mapping-watch", false, "hot-reload -mapping on file changes")

	channelOrder := flag.String("channel-order", envOrString("DDP_CHANNEL_ORDER", "RGB"), "physical channel order (RGB, GRB, BGR, ...)")
	gainR := flag.Float64("gain-r", envOrFloat("DDP_GAIN_R", 1), "red channel gain")
	gainG := flag.Float64("gain-g", envOrFloat("DDP_GAIN_G", 1), "green channel gain")
	gainB := flag.Float64("gain-b", envOrFloat("DDP_GAIN_B", 1), "blue channel gain")
	gamma := flag.Float64("gamma", envOrFloat("DDP_GAMMA", 1), "gamma correction exponent, 1 disables")

	maxFPS := flag.Int("max-fps", envOrInt("DDP_MAX_FPS", ddpcore.DefaultMaxFPS), "maximum frames written to the overlay per second (0 disables pacing)")
	batchLimit := flag.Int("batch-limit", envOrInt("DDP_BATCH_LIMIT", ddpcore.DefaultBatchLimit), "max datagrams read per batch syscall")
	frameTimeoutMs := flag.Int("frame-timeout-ms", envOrInt("DDP_FRAME_TIMEOUT_MS", int(ddpcore.DefaultFrameTimeout/time.Millisecond)), "milliseconds an incomplete assembly may stay in flight, counted from its first chunk, before eviction")

	fppHost := flag.String("fpp-host", envOrString("DDP_FPP_HOST", ""), "FPP host:port to PUT the overlay activation state to (empty skips activation)")
	activateState := flag.Int("activate-state", 3, "overlay state to activate (3 = always-on)")

	statsIntervalSec := flag.Int("stats-interval-sec", 1, "seconds between telemetry lines")
	durationSec := flag.Int("duration-sec", envOrInt("DDP_DURATION_SEC", 0), "exit automatically after this many seconds (0 = unlimited)")

	flag.Parse()
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *model == "" {
		return fmt.Errorf("-model is required")
	}

	cfg := ddpcore.DefaultConfig()
	cfg.ListenAddr = fmt.Sprintf("%s:%d", *host, *port)
	cfg.Model = *model
	cfg.Width = *width
	cfg.Height = *height
	cfg.TotalLEDs = *totalLEDs
	cfg.MappingPath = *mappingPath
	cfg.MappingWatch = *mappingWatch
	cfg.Correction = ddpcore.CorrectionConfig{
		Order: ddpcore.ParseChannelOrder(*channelOrder),
		Gains: [3]float32{float32(*gainR), float32(*gainG), float32(*gainB)},
	}
	if *gamma != 1 {
		g := float32(*gamma)
		cfg.Correction.Gamma = &g
	}
	cfg.MaxFPS = *maxFPS
	cfg.BatchLimit = *batchLimit
	cfg.FrameTimeout = time.Duration(*frameTimeoutMs) * time.Millisecond
	cfg.FPPHost = *fppHost
	cfg.ActivateState = *activateState
	cfg.StatsInterval = time.Duration(*statsIntervalSec) * time.Second

	interrupt.HandleCtrlC()

	sup, err := ddpcore.NewSupervisor(cfg)
	if err != nil {
		return err
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	stopAll := func() { stopOnce.Do(func() { close(stop) }) }
	go func() {
		<-interrupt.Channel
		stopAll()
	}()
	if *durationSec > 0 {
		go func() {
			select {
			case <-time.After(time.Duration(*durationSec) * time.Second):
				stopAll()
			case <-stop:
			}
		}()
	}

	return sup.Run(context.Background(), stop)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "ddp-bridge: %s.\n", err)
		os.Exit(1)
	}
}
