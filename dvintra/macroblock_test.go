package dvintra

import "testing"

func TestMacroblockOrderReturnsFivePositions(t *testing.T) {
	h := &Header{System: System525}
	order, err := h.MacroblockOrder(0)
	if err != nil {
		t.Fatalf("MacroblockOrder: %v", err)
	}
	if len(order) != MacroblocksPerSegment {
		t.Fatalf("len(order) = %d, want %d", len(order), MacroblocksPerSegment)
	}
}

func TestMacroblockOrderRejectsOutOfRangeSegment(t *testing.T) {
	h := &Header{System: System525}
	if _, err := h.MacroblockOrder(h.SegmentCount()); err == nil {
		t.Error("MacroblockOrder at segment count: err = nil, want error")
	}
	if _, err := h.MacroblockOrder(-1); err == nil {
		t.Error("MacroblockOrder(-1): err = nil, want error")
	}
}

func TestMacroblockOrderIsDistinctWithinSegment(t *testing.T) {
	h := &Header{System: System625}
	order, err := h.MacroblockOrder(5)
	if err != nil {
		t.Fatalf("MacroblockOrder: %v", err)
	}
	seen := make(map[Position]bool)
	for _, p := range order {
		if seen[p] {
			t.Errorf("duplicate position %+v within segment", p)
		}
		seen[p] = true
	}
}

func TestMacroblockOrderStaysWithinGridBoundsForBothSystems(t *testing.T) {
	for _, sys := range []System{System525, System625} {
		h := &Header{System: sys}
		rows := macroblocksHigh(sys)
		for seg := 0; seg < h.SegmentCount(); seg++ {
			order, err := h.MacroblockOrder(seg)
			if err != nil {
				t.Fatalf("MacroblockOrder(%d): %v", seg, err)
			}
			for _, p := range order {
				if p.Col < 0 || p.Col >= macroblocksWide {
					t.Fatalf("segment %d: Col %d out of [0,%d)", seg, p.Col, macroblocksWide)
				}
				if p.Row < 0 || p.Row >= rows {
					t.Fatalf("segment %d: Row %d out of [0,%d)", seg, p.Row, rows)
				}
			}
		}
	}
}
