/*
DESCRIPTION
  reference.go provides a pure-Go reference Capability: straightforward,
  unoptimized kernels sufficient for correctness testing and for the
  cmd/vcoreprobe harness. The sub-pixel filter taps and clipping idiom
  are grounded on the vp8 package's interpred.go (subpelFilter,
  bilinearFilter, clip255) — the nearest available from-scratch Go
  implementation of this exact family of kernels in the example pack —
  generalized here to the block engine's MCFilterFunc shape.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dsp

// sixTapFilter holds the 8-phase, 6-tap sub-pel interpolation
// coefficients (eighth-pel positions 0..7), the shape
// vp8/interpred.go's subpelFilter table uses.
var sixTapFilter = [8][6]int32{
	{0, 0, 128, 0, 0, 0},
	{0, -6, 123, 12, -1, 0},
	{2, -11, 108, 36, -8, 1},
	{0, -9, 93, 50, -6, 0},
	{3, -16, 77, 77, -16, 3},
	{0, -6, 50, 93, -9, 0},
	{1, -8, 36, 108, -11, 2},
	{0, -1, 12, 123, -6, 0},
}

// bilinearTaps holds the 8-phase, 2-tap bilinear coefficients used by
// the FilterBilinear kernels.
var bilinearTaps = [8][2]int32{
	{128, 0}, {112, 16}, {96, 32}, {80, 48},
	{64, 64}, {48, 80}, {32, 96}, {16, 112},
}

func clip255(v int32) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

// Reference returns a singleton pure-Go Capability, built once on first
// call (§9, "Table builds happen once").
func Reference() *Capability {
	referenceOnce.Do(func() {
		reference = buildReference()
	})
	return reference
}

func buildReference() *Capability {
	c := &Capability{}

	for tx, n := range map[TxSize]int{Tx4x4: 4, Tx8x8: 8, Tx16x16: 16, Tx32x32: 32} {
		c.IntraPredict[tx][DCPred] = dcPredict(n)
		c.IntraPredict[tx][VPred] = vPredict(n)
		c.IntraPredict[tx][HPred] = hPredict(n)
	}

	for tx, n := range map[TxSize]int{Tx4x4: 4, Tx8x8: 8, Tx16x16: 16, Tx32x32: 32} {
		c.InverseTransform[tx][DCTDCT] = inverseDCTAdd(n)
	}
	c.InverseTransform[TxLossless][DCTDCT] = walshHadamardAdd

	for size, dims := range map[BlockSize][2]int{
		Block4x4: {4, 4}, Block8x8: {8, 8}, Block16x16: {16, 16},
		Block32x32: {32, 32}, Block64x64: {64, 64},
	} {
		w, h := dims[0], dims[1]
		c.MCFilter[size][FilterEightTap][1][1] = eightTapFilter(w, h)
		c.MCFilter[size][FilterEightTap][0][0] = copyBlock(w, h)
		c.MCFilter[size][FilterBilinear][1][1] = bilinearFilterFn(w, h)
		c.MCFilter[size][FilterBilinear][0][0] = copyBlock(w, h)
	}

	c.LoopFilter8[EdgeColumn] = simpleLoopFilter(8)
	c.LoopFilter8[EdgeRow] = simpleLoopFilter(8)
	c.LoopFilter16[EdgeColumn] = simpleLoopFilter(16)
	c.LoopFilter16[EdgeRow] = simpleLoopFilter(16)

	return c
}

// dcPredict fills an n x n block with the average of left and top,
// falling back to 128 when neither is available (DC_128_PRED, §4.3.4).
func dcPredict(n int) IntraPredictFunc {
	return func(dst []byte, stride int, left, top []byte) {
		var sum, count int32
		for i := 0; i < n; i++ {
			if left != nil {
				sum += int32(left[i])
				count++
			}
			if top != nil {
				sum += int32(top[i])
				count++
			}
		}
		var avg byte = 128
		if count > 0 {
			avg = byte((sum + count/2) / count)
		}
		for y := 0; y < n; y++ {
			row := dst[y*stride : y*stride+n]
			for x := range row {
				row[x] = avg
			}
		}
	}
}

// vPredict copies the top row down every row of the block (V_PRED,
// §4.3.4); it is dispatched whether or not top is available, and a nil
// top falls back to dcPredict.
func vPredict(n int) IntraPredictFunc {
	return func(dst []byte, stride int, left, top []byte) {
		if top == nil {
			dcPredict(n)(dst, stride, left, top)
			return
		}
		for y := 0; y < n; y++ {
			copy(dst[y*stride:y*stride+n], top[:n])
		}
	}
}

// hPredict copies the left column across every column of the block
// (H_PRED, §4.3.4); falls back to dcPredict when left is unavailable.
func hPredict(n int) IntraPredictFunc {
	return func(dst []byte, stride int, left, top []byte) {
		if left == nil {
			dcPredict(n)(dst, stride, left, top)
			return
		}
		for y := 0; y < n; y++ {
			row := dst[y*stride : y*stride+n]
			for x := range row {
				row[x] = left[y]
			}
		}
	}
}

// inverseDCTAdd returns a placeholder additive inverse transform: with
// no coefficients beyond eob, residual is zero and the predictor passes
// through unchanged, which is the correct behavior whenever eob==0 and
// is otherwise a stand-in for an externally supplied real IDCT kernel.
func inverseDCTAdd(n int) InverseTransformFunc {
	return func(dst []byte, stride int, coef []int32, eob int) {
		if eob == 0 {
			return
		}
		for y := 0; y < n; y++ {
			row := dst[y*stride : y*stride+n]
			for x := 0; x < n; x++ {
				idx := y*n + x
				if idx >= len(coef) {
					continue
				}
				v := int32(row[x]) + coef[idx]
				row[x] = clip255(v)
			}
		}
	}
}

func walshHadamardAdd(dst []byte, stride int, coef []int32, eob int) {
	inverseDCTAdd(4)(dst, stride, coef, eob)
}

func copyBlock(w, h int) MCFilterFunc {
	return func(dst []byte, dstStride int, src []byte, srcStride, bw, bh, mx, my int, avg bool) {
		w, h := bw, bh
		for y := 0; y < h; y++ {
			srow := src[y*srcStride : y*srcStride+w]
			drow := dst[y*dstStride : y*dstStride+w]
			for x := 0; x < w; x++ {
				if avg {
					drow[x] = byte((int32(drow[x]) + int32(srow[x]) + 1) / 2)
				} else {
					drow[x] = srow[x]
				}
			}
		}
	}
}

// eightTapFilter applies the horizontal-then-vertical 6-tap filter at
// the given eighth-pel phase, reading 2 extra taps of context on each
// side of src (callers are responsible for providing an
// emulated-edge-extended source per §4.3.4).
func eightTapFilter(w, h int) MCFilterFunc {
	return func(dst []byte, dstStride int, src []byte, srcStride, bw, bh, mx, my int, avg bool) {
		w, h := bw, bh
		hTap := sixTapFilter[mx&7]
		vTap := sixTapFilter[my&7]

		tmp := make([]int32, (h+5)*w)
		for y := 0; y < h+5; y++ {
			srow := src[(y-2)*srcStride:]
			for x := 0; x < w; x++ {
				var sum int32
				for k := 0; k < 6; k++ {
					sum += hTap[k] * int32(srow[x-2+k])
				}
				tmp[y*w+x] = (sum + 64) >> 7
			}
		}

		for y := 0; y < h; y++ {
			drow := dst[y*dstStride : y*dstStride+w]
			for x := 0; x < w; x++ {
				var sum int32
				for k := 0; k < 6; k++ {
					sum += vTap[k] * tmp[(y+k)*w+x]
				}
				v := (sum + 64) >> 7
				if avg {
					drow[x] = byte((int32(drow[x]) + clip32(v) + 1) / 2)
				} else {
					drow[x] = clip255(v)
				}
			}
		}
	}
}

func clip32(v int32) int32 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func bilinearFilterFn(w, h int) MCFilterFunc {
	return func(dst []byte, dstStride int, src []byte, srcStride, bw, bh, mx, my int, avg bool) {
		w, h := bw, bh
		hTap := bilinearTaps[mx&7]
		vTap := bilinearTaps[my&7]

		tmp := make([]int32, (h+1)*w)
		for y := 0; y < h+1; y++ {
			srow := src[y*srcStride:]
			for x := 0; x < w; x++ {
				sum := hTap[0]*int32(srow[x]) + hTap[1]*int32(srow[x+1])
				tmp[y*w+x] = (sum + 64) >> 7
			}
		}
		for y := 0; y < h; y++ {
			drow := dst[y*dstStride : y*dstStride+w]
			for x := 0; x < w; x++ {
				sum := vTap[0]*tmp[y*w+x] + vTap[1]*tmp[(y+1)*w+x]
				v := (sum + 64) >> 7
				if avg {
					drow[x] = byte((int32(drow[x]) + clip32(v) + 1) / 2)
				} else {
					drow[x] = clip255(v)
				}
			}
		}
	}
}

// simpleLoopFilter implements a minimal normal-strength deblocking
// filter across an n-wide edge: when the sample difference across the
// edge is within the limit and below the high-edge-variance threshold,
// it nudges the two boundary samples toward each other.
func simpleLoopFilter(n int) LoopFilterFunc {
	return func(dst []byte, stride int, mblim, lim, hev uint8) {
		for i := 0; i < n; i++ {
			idx := i * stride
			p1 := int32(dst[idx-2])
			p0 := int32(dst[idx-1])
			q0 := int32(dst[idx])
			q1 := int32(dst[idx+1])

			if absInt32(p0-q0)*2+absInt32(p1-q1)/2 > int32(mblim) {
				continue
			}
			if absInt32(p1-p0) >= int32(hev) || absInt32(q1-q0) >= int32(hev) {
				continue
			}

			a := clampSigned(3*(q0-p0) + clampSigned(p1-q1))
			f1 := clampSigned(a+4) >> 3
			f2 := clampSigned(a+3) >> 3
			dst[idx-1] = clip255(p0 + f2)
			dst[idx] = clip255(q0 - f1)
		}
	}
}

func clampSigned(v int32) int32 {
	if v < -128 {
		return -128
	}
	if v > 127 {
		return 127
	}
	return v
}

func absInt32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
