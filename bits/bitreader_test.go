package bits

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/verr"
)

func TestReadBits(t *testing.T) {
	tests := []struct {
		in   []byte
		n    []int
		want []uint64
	}{
		{
			in:   []byte{0x8f, 0xe3},
			n:    []int{4, 2, 4, 6},
			want: []uint64{0x8, 0x3, 0xf, 0x23},
		},
		{
			in:   []byte{0xff},
			n:    []int{1, 1, 1, 1, 1, 1, 1, 1},
			want: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		},
	}

	for i, test := range tests {
		br := NewBitReader(bytes.NewReader(test.in))
		for j, n := range test.n {
			got, err := br.ReadBits(n)
			if err != nil {
				t.Fatalf("test %d: unexpected error at read %d: %v", i, j, err)
			}
			if got != test.want[j] {
				t.Errorf("test %d: read %d: got %d, want %d", i, j, got, test.want[j])
			}
		}
	}
}

func TestReadBitsShortBitstream(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0xff}))
	if _, err := br.ReadBits(16); errors.Cause(err) != verr.ErrShortBitstream {
		t.Errorf("got %v, want verr.ErrShortBitstream", err)
	}
}

func TestPeekBitsDoesNotAdvance(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0x8f, 0xe3}))
	peeked, err := br.PeekBits(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peeked != 0x8fe3 {
		t.Errorf("got %#x, want %#x", peeked, 0x8fe3)
	}
	read, err := br.ReadBits(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(peeked, read); diff != "" {
		t.Errorf("peek and subsequent read mismatch (-peek +read):\n%s", diff)
	}
}

func TestReadMarker(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0x00}))
	if err := br.ReadMarker(); err != nil {
		t.Errorf("unexpected error for zero marker: %v", err)
	}

	br = NewBitReader(bytes.NewReader([]byte{0x80}))
	if err := br.ReadMarker(); errors.Cause(err) != verr.ErrBadMarker {
		t.Errorf("got %v, want verr.ErrBadMarker", err)
	}
}

func TestAlignToByte(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0xab, 0xcd}))
	if _, err := br.ReadBits(3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := br.AlignToByte(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !br.ByteAligned() {
		t.Errorf("expected reader to be byte aligned")
	}
	got, err := br.ReadBits(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0xcd {
		t.Errorf("got %#x, want %#x", got, 0xcd)
	}
}
