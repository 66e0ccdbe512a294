package ddpcore

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Writer accepts a finished, corrected pixel buffer and an optional
// routing table and delivers it to its output, reporting the write's
// latency in milliseconds. Overlay (the mmap writer) implements it; both
// the pacer and the clip player write through an Overlay.
type Writer interface {
	WriteFrame(pixels []byte, route *RoutingTable) (writeLatencyMs float64, err error)
	Close() error
}

// Overlay writes corrected RGB frames into an FPP pixel-overlay shared
// memory file via mmap, scattering through an optional RoutingTable. If
// the shared memory file cannot be opened or mapped, the Overlay falls
// back to a degraded no-op mode: WriteFrame still succeeds so upstream
// pacing is unaffected, but nothing is written.
type Overlay struct {
	model     string
	path      string
	totalLEDs int

	file     *os.File
	mapped   []byte
	degraded bool

	client *http.Client
}

// NewOverlay opens (creating if needed) the shared-memory-backed overlay
// file for model at the standard FPP path and maps totalLEDs*3 bytes. On
// any failure to open, size, or map the file it logs a warning and
// returns a degraded Overlay rather than an error, matching FPP's
// tolerance for running headless during development.
func NewOverlay(model string, totalLEDs int) *Overlay {
	path := fmt.Sprintf("/dev/shm/FPP-Model-Data-%s", strings.ReplaceAll(model, " ", "_"))
	o := &Overlay{
		model:     model,
		path:      path,
		totalLEDs: totalLEDs,
		client:    &http.Client{Timeout: 2 * time.Second},
	}

	size := int64(totalLEDs * 3)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		log.Printf("ddpcore: overlay: open %q: %v (degraded mode)", path, err)
		o.degraded = true
		return o
	}
	if err := f.Truncate(size); err != nil {
		log.Printf("ddpcore: overlay: resize %q: %v (degraded mode)", path, err)
		f.Close()
		o.degraded = true
		return o
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		log.Printf("ddpcore: overlay: mmap %q: %v (degraded mode)", path, err)
		f.Close()
		o.degraded = true
		return o
	}

	for i := range mapped {
		mapped[i] = 0
	}

	o.file = f
	o.mapped = mapped
	return o
}

// Degraded reports whether the overlay is running without an mmap
// backing (e.g. /dev/shm unwritable).
func (o *Overlay) Degraded() bool {
	return o.degraded
}

// WriteFrame scatters a corrected RGB pixel buffer into the mapped
// region and flushes it, returning the scatter+flush latency in
// milliseconds. With no routing table the buffer is copied in directly
// (identity layout); otherwise each Src logical pixel is placed at its
// Dst physical LED.
func (o *Overlay) WriteFrame(pixels []byte, route *RoutingTable) (float64, error) {
	if o.degraded {
		return 0, nil
	}
	start := time.Now()

	if route == nil || route.Len() == 0 {
		copy(o.mapped, pixels)
	} else {
		for i := 0; i < route.Len(); i++ {
			srcOff := int(route.Src[i]) * 3
			dstOff := int(route.Dst[i]) * 3
			if srcOff+3 > len(pixels) || dstOff+3 > len(o.mapped) {
				continue
			}
			copy(o.mapped[dstOff:dstOff+3], pixels[srcOff:srcOff+3])
		}
	}
	o.flush()

	return msElapsed(start), nil
}

// WriteSolid fills the entire mapped region with one RGB value, used for
// blanking the wall on shutdown, returning the fill+flush latency in
// milliseconds.
func (o *Overlay) WriteSolid(r, g, b byte) (float64, error) {
	if o.degraded {
		return 0, nil
	}
	start := time.Now()

	for i := 0; i+2 < len(o.mapped); i += 3 {
		o.mapped[i], o.mapped[i+1], o.mapped[i+2] = r, g, b
	}
	o.flush()

	return msElapsed(start), nil
}

// flush forces the scattered bytes out to the backing shared memory file,
// the Go equivalent of the Python original's mmap.flush() at the end of
// its write().
func (o *Overlay) flush() {
	if err := unix.Msync(o.mapped, unix.MS_SYNC); err != nil {
		log.Printf("ddpcore: overlay: msync %q: %v", o.path, err)
	}
}

func msElapsed(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// Close unmaps and closes the overlay file.
func (o *Overlay) Close() error {
	if o.degraded {
		return nil
	}
	var err error
	if o.mapped != nil {
		err = unix.Munmap(o.mapped)
		o.mapped = nil
	}
	if o.file != nil {
		if cerr := o.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// EnableOverlayState PUTs the requested overlay state (3 = always-on) to
// the FPP HTTP API for model, retrying up to 3 times with a 1 second
// backoff, and reads the state back via GET to confirm it stuck.
func EnableOverlayState(client *http.Client, fppHost, model string, state int) error {
	if client == nil {
		client = http.DefaultClient
	}
	url := fmt.Sprintf("http://%s/api/overlays/model/%s/state", fppHost, model)
	body := fmt.Sprintf(`{"State":%d}`, state)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := putOverlayState(client, url, body); err != nil {
			lastErr = err
			log.Printf("ddpcore: overlay: enable attempt %d/3 for %q failed: %v", attempt, model, err)
			time.Sleep(time.Second)
			continue
		}
		if ok, err := readbackOverlayState(client, url, state); err != nil {
			lastErr = err
		} else if ok {
			return nil
		} else {
			lastErr = fmt.Errorf("ddpcore: overlay: state readback mismatch for %q", model)
		}
		time.Sleep(time.Second)
	}
	return fmt.Errorf("ddpcore: overlay: failed to enable state for %q after 3 attempts: %w", model, lastErr)
}

func putOverlayState(client *http.Client, url, body string) error {
	req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func readbackOverlayState(client *http.Client, url string, want int) (bool, error) {
	resp, err := client.Get(url)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var got struct {
		State int `json:"State"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		return false, fmt.Errorf("decode state readback: %w", err)
	}
	return got.State == want, nil
}
