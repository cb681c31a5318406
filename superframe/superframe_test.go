package superframe

import (
	"bytes"
	"testing"
)

func TestIsSuperframeFalseForPlainFrame(t *testing.T) {
	au := []byte{0x82, 0x00, 0x01, 0x02}
	if IsSuperframe(au) {
		t.Errorf("IsSuperframe: plain frame misidentified as superframe")
	}
}

func TestSplitNonSuperframeReturnsWhole(t *testing.T) {
	au := []byte{1, 2, 3, 4}
	frames, err := Split(au)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0], au) {
		t.Errorf("Split(plain frame) = %v, want [au]", frames)
	}
}

func TestJoinThenSplitRoundTrips(t *testing.T) {
	frames := [][]byte{
		bytes.Repeat([]byte{0xAA}, 10),
		bytes.Repeat([]byte{0xBB}, 257), // forces 2-byte size width
		bytes.Repeat([]byte{0xCC}, 3),
	}
	au, err := Join(frames)
	if err != nil {
		t.Fatal(err)
	}
	if !IsSuperframe(au) {
		t.Fatal("Join did not produce a recognizable superframe")
	}
	got, err := Split(au)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(frames) {
		t.Fatalf("Split returned %d frames, want %d", len(got), len(frames))
	}
	for i := range frames {
		if !bytes.Equal(got[i], frames[i]) {
			t.Errorf("frame %d mismatch: got %d bytes, want %d bytes", i, len(got[i]), len(frames[i]))
		}
	}
}

func TestSplitRejectsTruncatedIndex(t *testing.T) {
	marker := indexMarker(1, 2)
	au := []byte{0x00, marker} // index claims 2+2*1=4 bytes but only 2 present
	if _, err := Split(au); err == nil {
		t.Errorf("Split accepted a truncated superframe index")
	}
}

func TestSplitRejectsMismatchedMarkers(t *testing.T) {
	marker := indexMarker(1, 1)
	au := []byte{0x01, 0x02, marker ^ 0xFF, 1, marker}
	if _, err := Split(au); err == nil {
		t.Errorf("Split accepted a superframe index with mismatched leading marker")
	}
}

func TestBuildIndexRejectsTooManyFrames(t *testing.T) {
	sizes := make([]int, 9)
	if _, err := BuildIndex(sizes); err == nil {
		t.Errorf("BuildIndex accepted 9 frames, want a failure (max 8)")
	}
}
