package components

import (
	"strings"
	"testing"
)

func TestSegmentMap_OneBlockPerSegment(t *testing.T) {
	m := NewSegmentMapModel([]SegmentStatus{SegmentFetched, SegmentCached, SegmentPending}, 80, 3)

	blocks, cols := m.Blocks()
	if cols != 40 {
		t.Errorf("cols = %d, want 40", cols)
	}
	want := []BlockState{BlockFetched, BlockCached, BlockPending}
	if len(blocks) != len(want) {
		t.Fatalf("blocks = %d, want %d", len(blocks), len(want))
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %d, want %d", i, blocks[i], want[i])
		}
	}
}

func TestSegmentMap_Downsample(t *testing.T) {
	segs := make([]SegmentStatus, 100)
	for i := 0; i < 50; i++ {
		segs[i] = SegmentFetched
	}
	segs[75] = SegmentFetched

	// 5 columns x 2 rows = 10 blocks of 10 segments each.
	m := NewSegmentMapModel(segs, 10, 2)
	blocks, _ := m.Blocks()
	if len(blocks) != 10 {
		t.Fatalf("blocks = %d, want 10", len(blocks))
	}
	for i := 0; i < 5; i++ {
		if blocks[i] != BlockFetched {
			t.Errorf("block %d = %d, want fetched", i, blocks[i])
		}
	}
	if blocks[7] != BlockPartial {
		t.Errorf("block 7 = %d, want partial", blocks[7])
	}
	if blocks[9] != BlockPending {
		t.Errorf("block 9 = %d, want pending", blocks[9])
	}
}

func TestSegmentMap_RowsClamped(t *testing.T) {
	segs := make([]SegmentStatus, 1000)
	m := NewSegmentMapModel(segs, 20, 50)
	blocks, cols := m.Blocks()
	if len(blocks) != cols*5 {
		t.Errorf("blocks = %d, want %d (rows clamped to 5)", len(blocks), cols*5)
	}
}

func TestSegmentMap_ViewLayout(t *testing.T) {
	segs := make([]SegmentStatus, 6)
	m := NewSegmentMapModel(segs, 6, 2) // 3 columns
	view := m.View()
	if lines := strings.Count(view, "\n") + 1; lines != 2 {
		t.Errorf("view has %d lines, want 2", lines)
	}
	if got := strings.Count(view, block); got != 6 {
		t.Errorf("view has %d blocks, want 6", got)
	}
}

func TestSegmentMap_Empty(t *testing.T) {
	if v := NewSegmentMapModel(nil, 80, 3).View(); v != "" {
		t.Errorf("empty map view = %q, want empty", v)
	}
}
