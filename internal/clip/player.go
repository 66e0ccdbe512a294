package clip

import (
	"fmt"
	"io"
	"time"

	"github.com/moseshoggatt/twinkly-ddp-core/internal/ddpcore"
)

// PlayOptions controls clip playback: looping, a start/end frame window,
// a playback speed multiplier, an override frame rate, and a brightness
// scale applied to every channel before writing.
type PlayOptions struct {
	Loop        bool
	Repeat      int // used only when Loop is true: 0 loops forever, N > 0 plays the clip N times in total
	Speed       float64
	StartFrame  int
	EndFrame    int     // 0 means play to the last frame
	PlaybackFPS float64 // 0 means use the clip's native rate
	Brightness  float64 // 1.0 is unscaled
}

// DefaultPlayOptions plays a clip once, start to finish, at its native
// rate and full brightness.
func DefaultPlayOptions() PlayOptions {
	return PlayOptions{Speed: 1, Brightness: 1}
}

// Player drives a Clip's frames into a ddpcore.Writer on a wall-clock
// schedule, computed against a monotonic start time so per-frame
// overhead doesn't accumulate drift across a long loop. Each frame is
// pushed through the same color-correction step (gamma/gain/channel
// order) as the live DDP path before it reaches the writer.
type Player struct {
	clip    *Clip
	w       ddpcore.Writer
	route   *ddpcore.RoutingTable
	opts    PlayOptions
	correct ddpcore.CorrectionConfig
}

// NewPlayer builds a Player for c, writing through w with an optional
// route (nil for an identity layout) per opts, applying correct to every
// frame before it's written.
func NewPlayer(c *Clip, w ddpcore.Writer, route *ddpcore.RoutingTable, opts PlayOptions, correct ddpcore.CorrectionConfig) *Player {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	if opts.Brightness <= 0 {
		opts.Brightness = 1
	}
	return &Player{clip: c, w: w, route: route, opts: opts, correct: correct}
}

// Play streams frames until the clip (or the configured window) is
// exhausted, honoring Loop/Repeat, or until stop is closed.
func (p *Player) Play(stop <-chan struct{}) error {
	fps := p.opts.PlaybackFPS
	if fps <= 0 {
		fps = p.clip.Meta.FrameRate
	}
	if fps <= 0 {
		fps = 30
	}
	interval := time.Duration(float64(time.Second) / (fps * p.opts.Speed))

	repeats := 0
	for {
		if err := p.playOnce(stop, interval); err != nil && err != io.EOF {
			return err
		}
		select {
		case <-stop:
			return nil
		default:
		}
		if !p.opts.Loop {
			return nil
		}
		repeats++
		if p.opts.Repeat > 0 && repeats >= p.opts.Repeat {
			return nil
		}
		if err := p.rewind(); err != nil {
			return err
		}
	}
}

func (p *Player) playOnce(stop <-chan struct{}, interval time.Duration) error {
	start := time.Now()
	frameIdx := 0
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if frameIdx < p.opts.StartFrame {
			if _, err := p.clip.Next(); err != nil {
				return err
			}
			frameIdx++
			continue
		}
		if p.opts.EndFrame > 0 && frameIdx > p.opts.EndFrame {
			return nil
		}

		pixels, err := p.clip.Next()
		if err != nil {
			return err
		}
		if p.opts.Brightness != 1 {
			scaleBrightness(pixels, p.opts.Brightness)
		}
		ddpcore.Apply(pixels, p.correct)
		if _, err := p.w.WriteFrame(pixels, p.route); err != nil {
			return fmt.Errorf("clip: write frame %d: %w", frameIdx, err)
		}

		frameIdx++
		target := start.Add(interval * time.Duration(frameIdx))
		if d := time.Until(target); d > 0 {
			time.Sleep(d)
		}
	}
}

// rewind reopens the backing archive so playOnce can stream it again
// from frame 0; Clip's tar/gzip reader is forward-only.
func (p *Player) rewind() error {
	path := p.clip.path
	if err := p.clip.Close(); err != nil {
		return err
	}
	c, err := Open(path)
	if err != nil {
		return err
	}
	p.clip = c
	return nil
}

// scaleBrightness multiplies every channel by brightness, treating
// brightness <= 1 as a direct 0-1 scale and brightness > 1 as a 0-255
// raw value to be normalized first.
func scaleBrightness(pixels []byte, brightness float64) {
	scale := brightness
	if brightness > 1 {
		scale = brightness / 255
	}
	for i, v := range pixels {
		scaled := float64(v) * scale
		if scaled > 255 {
			scaled = 255
		}
		if scaled < 0 {
			scaled = 0
		}
		pixels[i] = byte(scaled + 0.5)
	}
}
