// Package clip reads rendered-frame archives and plays them back through
// an ddpcore.Writer, standing in for a live DDP source.
package clip

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Meta describes a clip archive's dimensions and native playback rate.
type Meta struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FrameRate float64 `json:"frame_rate"`
	Frames    int     `json:"frames"`
}

// Clip is a lazily-read rendered-frame archive: a gzip'd tar containing
// a meta.json and one frame_NNNNNN.rgb file per frame, each exactly
// Width*Height*3 bytes of packed RGB.
//
// Frames are read one after another with Next, decoding the gzip stream
// forward only; there is no random access to frame i. Player replays a
// clip from the start by reopening the archive.
type Clip struct {
	Meta Meta

	path      string
	file      *os.File
	gz        *gzip.Reader
	tr        *tar.Reader
	nextIndex int
}

// Open reads the archive at path far enough to parse meta.json, leaving
// the frame stream positioned at frame 0.
func Open(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("clip: open %q: %w", path, err)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("clip: gzip %q: %w", path, err)
	}
	tr := tar.NewReader(gz)

	c := &Clip{path: path, file: f, gz: gz, tr: tr}
	if err := c.readMeta(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Clip) readMeta() error {
	for {
		hdr, err := c.tr.Next()
		if err == io.EOF {
			return fmt.Errorf("clip: %q has no meta.json", c.path)
		}
		if err != nil {
			return fmt.Errorf("clip: %q: %w", c.path, err)
		}
		if hdr.Name != "meta.json" {
			continue
		}
		dec := json.NewDecoder(c.tr)
		if err := dec.Decode(&c.Meta); err != nil {
			return fmt.Errorf("clip: %q: decode meta.json: %w", c.path, err)
		}
		return nil
	}
}

// Next reads the next sequential frame's raw RGB bytes. It returns
// io.EOF once every frame_*.rgb entry has been consumed.
func (c *Clip) Next() ([]byte, error) {
	want := int64(c.Meta.Width) * int64(c.Meta.Height) * 3
	for {
		hdr, err := c.tr.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("clip: %q: %w", c.path, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size != want {
			return nil, fmt.Errorf("clip: %q: frame %q has %d bytes, want %d", c.path, hdr.Name, hdr.Size, want)
		}
		buf := make([]byte, want)
		if _, err := io.ReadFull(c.tr, buf); err != nil {
			return nil, fmt.Errorf("clip: %q: read %q: %w", c.path, hdr.Name, err)
		}
		c.nextIndex++
		return buf, nil
	}
}

// Close releases the underlying file and gzip reader.
func (c *Clip) Close() error {
	if c.gz != nil {
		c.gz.Close()
	}
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
