package clip

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeTestArchive builds a gzip'd tar clip archive at dir/name.clip with
// the given meta and frames (each already width*height*3 bytes), for use
// as test fixtures.
func writeTestArchive(t *testing.T, dir, name string, meta Meta, frames [][]byte) string {
	t.Helper()
	path := filepath.Join(dir, name+".clip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %q: %v", path, err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if err := tw.WriteHeader(&tar.Header{Name: "meta.json", Size: int64(len(metaBytes)), Mode: 0o644}); err != nil {
		t.Fatalf("write meta header: %v", err)
	}
	if _, err := tw.Write(metaBytes); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	for i, frame := range frames {
		hdr := &tar.Header{
			Name: fmt.Sprintf("frame_%06d.rgb", i),
			Size: int64(len(frame)),
			Mode: 0o644,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write frame header %d: %v", i, err)
		}
		if _, err := tw.Write(frame); err != nil {
			t.Fatalf("write frame %d: %v", i, err)
		}
	}

	return path
}
