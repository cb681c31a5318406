package dsp

import "testing"

func TestReferenceIsBuiltOnce(t *testing.T) {
	a := Reference()
	b := Reference()
	if a != b {
		t.Errorf("Reference() returned distinct instances across calls")
	}
}

func TestDCPredictFallsBackTo128WithNoNeighbors(t *testing.T) {
	cap := Reference()
	dst := make([]byte, 4*4)
	cap.IntraPredict[Tx4x4][0](dst, 4, nil, nil)
	for i, v := range dst {
		if v != 128 {
			t.Errorf("pixel %d = %d, want 128", i, v)
		}
	}
}

func TestDCPredictAveragesNeighbors(t *testing.T) {
	cap := Reference()
	dst := make([]byte, 4*4)
	left := []byte{0, 0, 0, 0}
	top := []byte{255, 255, 255, 255}
	cap.IntraPredict[Tx4x4][0](dst, 4, left, top)
	for i, v := range dst {
		if v < 126 || v > 129 {
			t.Errorf("pixel %d = %d, want ~127/128", i, v)
		}
	}
}

func TestCopyBlockMCFilterIsIdentityAtIntegerPhase(t *testing.T) {
	cap := Reference()
	src := []byte{1, 2, 3, 4}
	dst := make([]byte, 4)
	cap.MCFilter[Block4x4][FilterEightTap][0][0](dst, 4, src, 4, 4, 1, 0, 0, false)
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("pixel %d = %d, want %d", i, dst[i], src[i])
		}
	}
}

func TestEightTapFilterAtIntegerPhaseIsPassthrough(t *testing.T) {
	cap := Reference()
	// 9x9 source so the 6-tap filter's 2-pixel guard on each side of a
	// 4x4 destination block has real context to read.
	const srcStride = 9
	src := make([]byte, srcStride*9)
	for i := range src {
		src[i] = byte(100 + i%50)
	}
	// Position the filter read window 2 rows/cols in so the -2..+3 taps
	// stay in bounds.
	base := 2*srcStride + 2
	dst := make([]byte, 4*4)
	cap.MCFilter[Block4x4][FilterEightTap][1][1](dst, 4, src[base:], srcStride, 4, 4, 0, 0, false)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			got := dst[y*4+x]
			want := src[base+y*srcStride+x]
			if absByte(got, want) > 1 {
				t.Errorf("pixel (%d,%d) = %d, want ~%d", x, y, got, want)
			}
		}
	}
}

func absByte(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

func TestInverseDCTAddIsNoopWhenEOBZero(t *testing.T) {
	cap := Reference()
	dst := []byte{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 140, 150, 160}
	before := append([]byte(nil), dst...)
	cap.InverseTransform[Tx4x4][DCTDCT](dst, 4, make([]int32, 16), 0)
	for i := range dst {
		if dst[i] != before[i] {
			t.Errorf("pixel %d changed from %d to %d despite eob==0", i, before[i], dst[i])
		}
	}
}
