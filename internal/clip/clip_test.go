package clip

import (
	"bytes"
	"io"
	"testing"
)

func TestOpenReadsMeta(t *testing.T) {
	dir := t.TempDir()
	meta := Meta{Width: 2, Height: 1, FrameRate: 24, Frames: 2}
	frames := [][]byte{
		bytes.Repeat([]byte{1}, 6),
		bytes.Repeat([]byte{2}, 6),
	}
	path := writeTestArchive(t, dir, "test", meta, frames)

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if c.Meta != meta {
		t.Fatalf("Meta = %+v, want %+v", c.Meta, meta)
	}
}

func TestNextReturnsFramesInOrderThenEOF(t *testing.T) {
	dir := t.TempDir()
	meta := Meta{Width: 2, Height: 1, FrameRate: 24, Frames: 2}
	frames := [][]byte{
		bytes.Repeat([]byte{1}, 6),
		bytes.Repeat([]byte{2}, 6),
	}
	path := writeTestArchive(t, dir, "test", meta, frames)

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	for i, want := range frames {
		got, err := c.Next()
		if err != nil {
			t.Fatalf("Next() frame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("frame %d = %v, want %v", i, got, want)
		}
	}

	if _, err := c.Next(); err != io.EOF {
		t.Fatalf("Next() past last frame = %v, want io.EOF", err)
	}
}

func TestNextRejectsWrongSize(t *testing.T) {
	dir := t.TempDir()
	meta := Meta{Width: 2, Height: 1, FrameRate: 24, Frames: 1}
	frames := [][]byte{
		bytes.Repeat([]byte{1}, 4), // should be 6 bytes for 2x1 RGB
	}
	path := writeTestArchive(t, dir, "test", meta, frames)

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if _, err := c.Next(); err == nil {
		t.Fatal("Next() with wrong frame size = nil error, want error")
	}
}
