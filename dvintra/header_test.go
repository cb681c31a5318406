package dvintra

import (
	"bytes"
	"testing"

	"github.com/ausocean/vcore/bits"
)

func TestParseHeaderReads525System(t *testing.T) {
	// dsf=0 (525/60), 7 reserved bits, apt=3, 5 reserved bits.
	br := bits.NewBitReader(bytes.NewReader([]byte{0x00, 0b011_00000}))
	hdr, err := ParseHeader(br)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.System != System525 {
		t.Errorf("System = %v, want System525", hdr.System)
	}
	if hdr.APT != 3 {
		t.Errorf("APT = %d, want 3", hdr.APT)
	}
}

func TestParseHeaderReads625System(t *testing.T) {
	br := bits.NewBitReader(bytes.NewReader([]byte{0x80, 0x00}))
	hdr, err := ParseHeader(br)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if hdr.System != System625 {
		t.Errorf("System = %v, want System625", hdr.System)
	}
}

func TestParseHeaderRejectsShortStream(t *testing.T) {
	br := bits.NewBitReader(bytes.NewReader([]byte{0x00}))
	if _, err := ParseHeader(br); err == nil {
		t.Error("ParseHeader on truncated stream: err = nil, want error")
	}
}

func TestSegmentCountDiffersBySystem(t *testing.T) {
	h525 := &Header{System: System525}
	h625 := &Header{System: System625}
	if h525.SegmentCount() == h625.SegmentCount() {
		t.Errorf("SegmentCount equal across systems: %d", h525.SegmentCount())
	}
	if got, want := h525.SegmentCount(), 10*27; got != want {
		t.Errorf("525 SegmentCount = %d, want %d", got, want)
	}
	if got, want := h625.SegmentCount(), 12*27; got != want {
		t.Errorf("625 SegmentCount = %d, want %d", got, want)
	}
}
