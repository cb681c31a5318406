package block

import (
	"testing"

	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/frame"
)

func TestAccumulateLoopFilterMaskSkipsWhenLevelZero(t *testing.T) {
	e := NewEngine(dsp.Reference(), nil, 64, 64)
	hdr := &frame.Header{LoopFilter: frame.LoopFilterDeltas{Enabled: false}, LoopFilterLevel: 0}
	leaf := &Leaf{Col: 0, Row: 0, W: 8, H: 8, TxSize: dsp.Tx8x8}

	e.accumulateLoopFilterMask(leaf, hdr)

	for _, v := range e.lfLevel {
		if v != 0 {
			t.Fatalf("lfLevel set with loop filter disabled: %v", e.lfLevel)
		}
	}
	for _, v := range e.lfRightWidth {
		if v != 0 {
			t.Fatalf("lfRightWidth set with loop filter disabled: %v", e.lfRightWidth)
		}
	}
}

func TestAccumulateLoopFilterMaskDoesNotMarkRightEdgeAtPictureBoundary(t *testing.T) {
	// 8x8 picture: one 8x8 mi unit, with no right or bottom neighbor.
	e := NewEngine(dsp.Reference(), nil, 8, 8)
	hdr := &frame.Header{LoopFilter: frame.LoopFilterDeltas{Enabled: true}, LoopFilterLevel: 20}
	leaf := &Leaf{Col: 0, Row: 0, W: 8, H: 8, TxSize: dsp.Tx8x8}

	e.accumulateLoopFilterMask(leaf, hdr)

	if e.lfLevel[0] == 0 {
		t.Errorf("lfLevel not set for an enabled, in-picture leaf")
	}
	if e.lfRightWidth[0] != 0 {
		t.Errorf("lfRightWidth = %d at the picture's right edge, want 0 (boundary scenario S6)", e.lfRightWidth[0])
	}
	if e.lfBottomWidth[0] != 0 {
		t.Errorf("lfBottomWidth = %d at the picture's bottom edge, want 0", e.lfBottomWidth[0])
	}
}

func TestAccumulateLoopFilterMaskMarksInteriorRightEdge(t *testing.T) {
	// 16x8 picture: two 8x8 mi units side by side, so the left one has a
	// right neighbor and should get its right edge marked.
	e := NewEngine(dsp.Reference(), nil, 16, 8)
	hdr := &frame.Header{LoopFilter: frame.LoopFilterDeltas{Enabled: true}, LoopFilterLevel: 20}
	leaf := &Leaf{Col: 0, Row: 0, W: 8, H: 8, TxSize: dsp.Tx4x4}

	e.accumulateLoopFilterMask(leaf, hdr)

	if e.lfRightWidth[0] == 0 {
		t.Errorf("lfRightWidth not set for a leaf with a right neighbor in picture")
	}
	if e.lfRightWidth[0] != edgeWidthClass(dsp.Tx4x4) {
		t.Errorf("lfRightWidth = %d, want the Tx4x4 edge class %d", e.lfRightWidth[0], edgeWidthClass(dsp.Tx4x4))
	}
}

func TestFilterLevelAppliesInterRefDelta(t *testing.T) {
	hdr := &frame.Header{
		LoopFilterLevel: 20,
		LoopFilter: frame.LoopFilterDeltas{
			Enabled:  true,
			RefDelta: [4]int8{0, 5, 0, 0},
		},
	}
	intra := filterLevel(hdr, &Leaf{IsInter: false})
	inter := filterLevel(hdr, &Leaf{IsInter: true})
	if intra != 20 {
		t.Errorf("filterLevel(intra) = %d, want 20", intra)
	}
	if inter != 25 {
		t.Errorf("filterLevel(inter) = %d, want 25 (base + RefDelta[1])", inter)
	}
}
