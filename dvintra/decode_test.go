package dvintra

import (
	"bytes"
	"testing"

	"github.com/ausocean/vcore/bits"
)

func TestDecodeProducesSystemSizedLumaPlane(t *testing.T) {
	hdr := &Header{System: System525}
	data := make([]byte, hdr.SegmentCount()*MacroblocksPerSegment*2) // 9 bits rounds up to 2 bytes/block, generous
	br := bits.NewBitReader(bytes.NewReader(data))

	dec := NewDecoder(nil)
	fb, err := dec.Decode(br, hdr)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	wantW := macroblocksWide * blockDim
	wantH := macroblocksHigh(hdr.System) * blockDim
	if fb.Layout.Width != wantW || fb.Layout.Height != wantH {
		t.Errorf("Layout = %dx%d, want %dx%d", fb.Layout.Width, fb.Layout.Height, wantW, wantH)
	}
}

func TestDecodeRejectsTruncatedStream(t *testing.T) {
	hdr := &Header{System: System525}
	br := bits.NewBitReader(bytes.NewReader(nil))

	dec := NewDecoder(nil)
	if _, err := dec.Decode(br, hdr); err == nil {
		t.Error("Decode on empty stream: err = nil, want error")
	}
}

func TestDcToResidualIsCenteredOnZero(t *testing.T) {
	if got := dcToResidual(128); got != 0 {
		t.Errorf("dcToResidual(128) = %d, want 0", got)
	}
	if got := dcToResidual(0); got >= 0 {
		t.Errorf("dcToResidual(0) = %d, want negative", got)
	}
}
