package ddpcore

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	fsnotify "gopkg.in/fsnotify.v1"
)

// RoutingTable maps logical grid cells to physical LED indices.
//
// Src[i] is the flat logical-grid index (row*width+col) of the i-th
// mapped cell; Dst[i] is the physical LED index in the overlay buffer.
type RoutingTable struct {
	Src []int32
	Dst []int32
}

// Len returns the number of mapped cells.
func (t *RoutingTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Src)
}

// identityMapping returns a linear 1:1 mapping of the logical grid onto
// the first width*height physical LEDs.
func identityMapping(width, height int) *RoutingTable {
	n := width * height
	t := &RoutingTable{Src: make([]int32, n), Dst: make([]int32, n)}
	for i := 0; i < n; i++ {
		t.Src[i] = int32(i)
		t.Dst[i] = int32(i)
	}
	return t
}

// LoadMapping parses a CSV describing the physical LED index at each
// (physicalRow, physicalCol) of a staggered hex grid and builds the
// logical-to-physical routing table.
//
// The physical grid is twice the logical height: even logical columns map
// straight down (physicalRow = logicalRow*2), odd logical columns are
// staggered by one row (physicalRow = logicalRow*2+1), clamped to the
// last valid physical row. A missing file or a CSV that yields zero
// entries falls back to a linear identity mapping.
func LoadMapping(csvPath string, width, height, totalLEDs int) (*RoutingTable, error) {
	cells, err := parseMappingCSV(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("ddpcore: mapping file %q not found, using linear fallback", csvPath)
			return identityMapping(width, height), nil
		}
		return nil, err
	}

	physicalRows := height * 2
	var src, dst []int32
	for vr := 0; vr < height; vr++ {
		for vc := 0; vc < width; vc++ {
			pr := vr * 2
			if vc%2 != 0 {
				pr = vr*2 + 1
			}
			if pr > physicalRows-1 {
				pr = physicalRows - 1
			}
			idx, ok := cells[cellPos{row: pr, col: vc}]
			if !ok || idx < 0 || idx >= totalLEDs {
				continue
			}
			src = append(src, int32(vr*width+vc))
			dst = append(dst, int32(idx))
		}
	}

	if len(src) == 0 {
		log.Printf("ddpcore: mapping %q produced no entries, using linear fallback", csvPath)
		return identityMapping(width, height), nil
	}
	return &RoutingTable{Src: src, Dst: dst}, nil
}

type cellPos struct {
	row, col int
}

// parseMappingCSV reads a raw CSV where a non-empty cell holds the
// 1-based LED index at that (row, col); malformed cells are skipped.
func parseMappingCSV(path string) (map[cellPos]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cells := make(map[cellPos]int)
	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed row is skipped, not fatal; continue on the next line.
			row++
			continue
		}
		for col, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			v, err := strconv.Atoi(cell)
			if err != nil {
				continue
			}
			idx := v - 1
			if idx >= 0 {
				cells[cellPos{row: row, col: col}] = idx
			}
		}
		row++
	}
	return cells, nil
}

// WatchMapping watches csvPath for writes and calls onReload with a
// freshly parsed routing table whenever it changes, until ctx is
// cancelled. Parse errors are logged and do not stop the watch.
func WatchMapping(ctx context.Context, csvPath string, width, height, totalLEDs int, onReload func(*RoutingTable)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ddpcore: mapping watcher: %w", err)
	}
	if err := w.Add(csvPath); err != nil {
		w.Close()
		return fmt.Errorf("ddpcore: watch %q: %w", csvPath, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				rt, err := LoadMapping(csvPath, width, height, totalLEDs)
				if err != nil {
					log.Printf("ddpcore: mapping reload failed: %v", err)
					continue
				}
				log.Printf("ddpcore: mapping reloaded from %q (%d entries)", csvPath, rt.Len())
				onReload(rt)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("ddpcore: mapping watcher error: %v", err)
			}
		}
	}()
	return nil
}
