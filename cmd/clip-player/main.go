// Command clip-player replays a rendered-frame archive through an FPP
// pixel overlay, standing in for a live DDP source for rehearsal and
// pre-rendered shows.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/maruel/interrupt"

	"github.com/moseshoggatt/twinkly-ddp-core/internal/clip"
	"github.com/moseshoggatt/twinkly-ddp-core/internal/ddpcore"
)

func mainImpl() error {
	clipPath := flag.String("clip", "", "path to a .clip archive")
	model := flag.String("model", "", "FPP model name backing /dev/shm/FPP-Model-Data-<model>")
	totalLEDs := flag.Int("leds", 90*50, "total physical LED count in the overlay buffer")

	mappingPath := flag.String("mapping", "", "CSV file mapping logical grid cells to physical LED index")
	width := flag.Int("width", 90, "logical grid width in pixels, used with -mapping")
	height := flag.Int("height", 50, "logical grid height in pixels, used with -mapping")

	loop := flag.Bool("loop", false, "loop playback")
	repeat := flag.Int("repeat", 0, "repeat count when -loop is set (0 = forever)")
	speed := flag.Float64("speed", 1, "playback speed multiplier")
	fps := flag.Float64("fps", 0, "override playback frame rate (0 = use the clip's native rate)")
	start := flag.Int("start", 0, "first frame to play")
	end := flag.Int("end", 0, "last frame to play (0 = play to the end)")
	brightness := flag.Float64("brightness", 1, "brightness applied to every channel: 0-1 scales directly, >1 (up to 255) is treated as a raw 0-255 value")

	channelOrder := flag.String("channel-order", "RGB", "physical channel order (RGB, GRB, BGR, ...)")
	gainR := flag.Float64("gain-r", 1, "red channel gain")
	gainG := flag.Float64("gain-g", 1, "green channel gain")
	gainB := flag.Float64("gain-b", 1, "blue channel gain")
	gamma := flag.Float64("gamma", 1, "gamma correction exponent, 1 disables")

	flag.Parse()
	if len(flag.Args()) != 0 {
		return fmt.Errorf("unexpected argument: %s", flag.Args())
	}
	if *clipPath == "" {
		return fmt.Errorf("-clip is required")
	}
	if *model == "" {
		return fmt.Errorf("-model is required")
	}

	c, err := clip.Open(*clipPath)
	if err != nil {
		return err
	}
	defer c.Close()

	overlay := ddpcore.NewOverlay(*model, *totalLEDs)
	defer overlay.Close()

	var route *ddpcore.RoutingTable
	if *mappingPath != "" {
		route, err = ddpcore.LoadMapping(*mappingPath, *width, *height, *totalLEDs)
		if err != nil {
			return err
		}
	}

	opts := clip.DefaultPlayOptions()
	opts.Loop = *loop
	opts.Repeat = *repeat
	opts.Speed = *speed
	opts.PlaybackFPS = *fps
	opts.StartFrame = *start
	opts.EndFrame = *end
	opts.Brightness = *brightness

	correct := ddpcore.CorrectionConfig{
		Order: ddpcore.ParseChannelOrder(*channelOrder),
		Gains: [3]float32{float32(*gainR), float32(*gainG), float32(*gainB)},
	}
	if *gamma != 1 {
		g := float32(*gamma)
		correct.Gamma = &g
	}

	player := clip.NewPlayer(c, overlay, route, opts, correct)

	interrupt.HandleCtrlC()
	stop := make(chan struct{})
	go func() {
		<-interrupt.Channel
		close(stop)
	}()

	if err := player.Play(stop); err != nil {
		return err
	}
	_, err = overlay.WriteSolid(0, 0, 0)
	return err
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "clip-player: %s.\n", err)
		os.Exit(1)
	}
}
