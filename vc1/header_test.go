package vc1

import (
	"bytes"
	"testing"

	"github.com/ausocean/vcore/bits"
)

func TestReadEntryHeaderParsesBothFlags(t *testing.T) {
	br := bits.NewBitReader(bytes.NewReader([]byte{0b11000000}))
	h, err := ReadEntryHeader(br)
	if err != nil {
		t.Fatalf("ReadEntryHeader: %v", err)
	}
	if !h.BrokenLink || !h.ClosedEntry {
		t.Errorf("Header = %+v, want both flags set", h)
	}
}

func TestReadEntryHeaderRejectsShortStream(t *testing.T) {
	br := bits.NewBitReader(bytes.NewReader(nil))
	if _, err := ReadEntryHeader(br); err == nil {
		t.Error("ReadEntryHeader on empty stream: err = nil, want error")
	}
}
