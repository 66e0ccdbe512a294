package ddpcore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMappingFallsBackOnMissingFile(t *testing.T) {
	rt, err := LoadMapping(filepath.Join(t.TempDir(), "nope.csv"), 3, 2, 100)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if rt.Len() != 6 {
		t.Fatalf("fallback mapping Len() = %d, want 6", rt.Len())
	}
	for i := range rt.Src {
		if rt.Src[i] != rt.Dst[i] {
			t.Fatalf("fallback mapping entry %d: Src=%d Dst=%d, want identity", i, rt.Src[i], rt.Dst[i])
		}
	}
}

func TestLoadMappingStaggersOddColumns(t *testing.T) {
	// A 2-wide, 2-tall logical grid over a 4-row physical CSV.
	// Logical (0,0) -> physical row 0; logical (0,1) -> physical row 1.
	// Logical (1,0) -> physical row 2; logical (1,1) -> physical row 3.
	csv := "1,2\n3,4\n5,6\n7,8\n"
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rt, err := LoadMapping(path, 2, 2, 100)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if rt.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", rt.Len())
	}

	got := map[int32]int32{}
	for i := range rt.Src {
		got[rt.Src[i]] = rt.Dst[i]
	}
	// logical index = row*width+col
	if got[0] != 0 { // (0,0) -> csv[0][0]=1 -> idx 0
		t.Errorf("logical 0 -> %d, want 0", got[0])
	}
	if got[1] != 3 { // (0,1) -> physical row 1, csv[1][1]=4 -> idx 3
		t.Errorf("logical 1 -> %d, want 3", got[1])
	}
	if got[2] != 4 { // (1,0) -> physical row 2, csv[2][0]=5 -> idx 4
		t.Errorf("logical 2 -> %d, want 4", got[2])
	}
	if got[3] != 7 { // (1,1) -> physical row 3, csv[3][1]=8 -> idx 7
		t.Errorf("logical 3 -> %d, want 7", got[3])
	}
}

func TestLoadMappingSkipsOutOfRangeIndices(t *testing.T) {
	csv := "9999\n"
	path := filepath.Join(t.TempDir(), "map.csv")
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	rt, err := LoadMapping(path, 1, 1, 10)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	// The only cell resolves to an out-of-range LED index, so the parse
	// yields zero usable entries and LoadMapping falls back to identity.
	if rt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (identity fallback)", rt.Len())
	}
	if rt.Src[0] != rt.Dst[0] {
		t.Fatalf("fallback entry not identity: Src=%d Dst=%d", rt.Src[0], rt.Dst[0])
	}
}
