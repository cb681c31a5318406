/*
DESCRIPTION
  reconstruct.go implements §4.3.4: dispatching into the DSP capability
  set to predict and add residual for each leaf block, for both the
  intra and inter paths. Intra neighbor population reads directly from
  the destination frame buffer's already-reconstructed, not-yet-
  loop-filtered samples (decode proceeds causally within a tile column,
  so a block's left and top neighbors are always already written by the
  time it is reached; no loop-filter pass runs over the frame, only the
  filter mask is accumulated, §5.4). Inter prediction borrows the real reference picture from the
  pool, computes the integer-pel source position and sub-pixel phase
  from the decoded motion vector, and waits on the reference's
  row-progress signal before reading it (§5.2, testable property §8.2).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package block

import (
	"context"

	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/frame"
	"github.com/ausocean/vcore/prob"
	"github.com/ausocean/vcore/rangecoder"
)

// planeY and planeChroma index prob.Context.CoefToken's 2-wide plane
// dimension ("is chroma" collapses U and V onto planeChroma).
const (
	planeY      = 0
	planeChroma = 1
)

// blockSizeFor maps a leaf's pixel dimensions to the nearest dsp
// square-block bucket, since dsp.Capability's MC filter table is
// indexed by the five square sizes rather than by independent width and
// height (dsp.go's documented scope).
func blockSizeFor(w, h int) dsp.BlockSize {
	d := w
	if h > d {
		d = h
	}
	switch {
	case d <= 4:
		return dsp.Block4x4
	case d <= 8:
		return dsp.Block8x8
	case d <= 16:
		return dsp.Block16x16
	case d <= 32:
		return dsp.Block32x32
	default:
		return dsp.Block64x64
	}
}

func (e *Engine) decodeAndReconstruct(ctx context.Context, rng *rangecoder.Decoder, hdr *frame.Header, probCtx *prob.Context, counts *prob.Counts, ts *tileState, leaf *Leaf) error {
	isInterIdx := 0
	if leaf.IsInter {
		isInterIdx = 1
	}

	colMi, rowMi := leaf.Col/8, leaf.Row/8

	planes := []struct {
		idx    int
		ctxIdx int
		w, h   int
	}{
		{0, planeY, leaf.W, leaf.H},
		{1, planeChroma, chromaDim(leaf.W, hdr.SubsamplingX), chromaDim(leaf.H, hdr.SubsamplingY)},
		{2, planeChroma, chromaDim(leaf.W, hdr.SubsamplingX), chromaDim(leaf.H, hdr.SubsamplingY)},
	}

	for _, p := range planes {
		tx := leaf.TxSize
		if p.idx != 0 {
			tx = chromaTxSize(tx)
		}

		nnzCtx := e.nnzContext(ts, p.idx, colMi, rowMi)

		coef, eob, nonzero, err := e.decodeCoeffBlock(rng, probCtx, counts, p.ctxIdx, isInterIdx, tx, nnzCtx, hdr.BaseQIdx)
		if err != nil {
			return err
		}
		e.setNnzContext(ts, p.idx, colMi, rowMi, leaf.W, leaf.H, nonzero)

		if leaf.IsInter {
			e.reconstructInter(ctx, hdr, ts, leaf, p.idx, tx, coef, eob, p.w, p.h)
		} else {
			e.reconstructIntra(hdr, ts, leaf, p.idx, tx, coef, eob, p.w, p.h)
		}
	}
	return nil
}

// nnzContext derives this leaf's coefficient-decode seed context from
// the above/left nonzero-history strips (§3.1 "y/uv-nonzero-count"),
// tracked at this build's leaf granularity rather than per 4x4 unit.
func (e *Engine) nnzContext(ts *tileState, plane, colMi, rowMi int) int {
	var above, left uint8
	if plane == 0 {
		above = e.aboveNzY[minInt(colMi, len(e.aboveNzY)-1)]
		left = ts.leftNzY[rowMi%8]
	} else {
		above = e.aboveNzUV[minInt(colMi, len(e.aboveNzUV)-1)]
		left = ts.leftNzUV[rowMi%8]
	}
	ctx := (int(above) + int(left) + 1) >> 1
	if ctx > prob.CoefNeighborContexts-1 {
		ctx = prob.CoefNeighborContexts - 1
	}
	return ctx
}

// setNnzContext records whether this leaf's plane produced any nonzero
// coefficient, for the next leaf's nnzContext lookup.
func (e *Engine) setNnzContext(ts *tileState, plane, colMi, rowMi, w, h int, nonzero bool) {
	v := boolToU8(nonzero)
	wUnits := (w + 7) / 8
	hUnits := (h + 7) / 8
	strip := e.aboveNzY
	left := &ts.leftNzY
	if plane != 0 {
		strip = e.aboveNzUV
		left = &ts.leftNzUV
	}
	for i := 0; i < wUnits && colMi+i < len(strip); i++ {
		strip[colMi+i] = v
	}
	for i := 0; i < hUnits; i++ {
		left[(rowMi+i)%8] = v
	}
}

// predictOnly runs the prediction half of reconstruction with no
// residual, for a skip==true leaf (eob forced to 0).
func (e *Engine) predictOnly(ctx context.Context, hdr *frame.Header, ts *tileState, leaf *Leaf) {
	planeDims := [3][2]int{
		{leaf.W, leaf.H},
		{chromaDim(leaf.W, hdr.SubsamplingX), chromaDim(leaf.H, hdr.SubsamplingY)},
		{chromaDim(leaf.W, hdr.SubsamplingX), chromaDim(leaf.H, hdr.SubsamplingY)},
	}
	for plane := 0; plane < 3; plane++ {
		tx := leaf.TxSize
		if plane != 0 {
			tx = chromaTxSize(tx)
		}
		w, h := planeDims[plane][0], planeDims[plane][1]
		if leaf.IsInter {
			e.reconstructInter(ctx, hdr, ts, leaf, plane, tx, nil, 0, w, h)
		} else {
			e.reconstructIntra(hdr, ts, leaf, plane, tx, nil, 0, w, h)
		}
	}
}

func chromaDim(d, subsampling int) int {
	if subsampling == 0 {
		return d
	}
	c := d >> uint(subsampling)
	if c == 0 {
		c = 1
	}
	return c
}

func chromaTxSize(tx dsp.TxSize) dsp.TxSize {
	if tx > dsp.Tx4x4 && tx <= dsp.Tx32x32 {
		return tx - 1
	}
	return dsp.Tx4x4
}

// planeCoord converts a leaf's luma-space top-left corner to the given
// plane's own coordinate space.
func planeCoord(leaf *Leaf, hdr *frame.Header, plane int) (col, row int) {
	col, row = leaf.Col, leaf.Row
	if plane != 0 {
		col >>= uint(hdr.SubsamplingX)
		row >>= uint(hdr.SubsamplingY)
	}
	return col, row
}

// gatherNeighbors reads the w-wide top row and h-tall left column
// immediately outside (col,row) from fb's plane-th plane, or nil when
// that neighbor falls outside the picture (§4.3.4 steps 1-2). Samples
// come from whatever has already been reconstructed into fb, which for
// any in-picture neighbor is always the real decoded pixel, not a
// placeholder.
func gatherNeighbors(buf []byte, stride, col, row, w, h int) (left, top []byte) {
	if stride == 0 {
		return nil, nil
	}
	if col > 0 {
		left = make([]byte, h)
		for i := 0; i < h; i++ {
			idx := (row+i)*stride + col - 1
			if idx >= 0 && idx < len(buf) {
				left[i] = buf[idx]
			}
		}
	}
	if row > 0 {
		idx := (row-1)*stride + col
		if idx >= 0 && idx+w <= len(buf) {
			top = make([]byte, w)
			copy(top, buf[idx:idx+w])
		}
	}
	return left, top
}

// reconstructIntra resolves the (have_left, have_top) effective mode by
// dispatching the leaf's decoded intra mode with whichever neighbors
// are actually available; V_PRED/H_PRED's own kernels fall back to the
// DC predictor when their required neighbor is nil (dsp/reference.go),
// which is this build's realization of the §4.3.4 steps 1-2 fallback
// table. The DC_127/DC_129 weighted-DC variants are not distinguished:
// they collapse onto plain DC, since the DC kernel here has no weighting
// parameter.
func (e *Engine) reconstructIntra(hdr *frame.Header, ts *tileState, leaf *Leaf, plane int, tx dsp.TxSize, coef []int32, eob int, w, h int) {
	fb := ts.current
	if fb == nil || w <= 0 || h <= 0 {
		return
	}
	dst, stride, ok := planeWindow(fb, plane, leaf.Col, leaf.Row, plane != 0)
	if !ok {
		return
	}

	col, row := planeCoord(leaf, hdr, plane)
	left, top := gatherNeighbors(fb.Planes[plane], fb.Strides[plane], col, row, w, h)

	predict := e.Capability.IntraPredict[tx][int(leaf.IntraMode)]
	if predict != nil {
		predict(dst, stride, left, top)
	}

	itxfm := e.Capability.InverseTransform[tx][dsp.DCTDCT]
	if itxfm != nil && eob > 0 {
		itxfm(dst, stride, coef, eob)
	}
}

// reconstructInter motion-compensates plane from leaf's assigned
// reference (or references, for compound prediction per S5), then adds
// the inverse-transformed residual.
func (e *Engine) reconstructInter(ctx context.Context, hdr *frame.Header, ts *tileState, leaf *Leaf, plane int, tx dsp.TxSize, coef []int32, eob int, w, h int) {
	fb := ts.current
	if fb == nil || w <= 0 || h <= 0 {
		return
	}
	dst, stride, ok := planeWindow(fb, plane, leaf.Col, leaf.Row, plane != 0)
	if !ok {
		return
	}

	col, row := planeCoord(leaf, hdr, plane)
	e.motionCompensate(ctx, hdr, dst, stride, leaf.RefFrame, leaf.MVRow, leaf.MVCol, col, row, w, h, plane, false)
	if leaf.Compound {
		e.motionCompensate(ctx, hdr, dst, stride, leaf.RefFrame2, leaf.MVRow2, leaf.MVCol2, col, row, w, h, plane, true)
	}

	itxfm := e.Capability.InverseTransform[tx][dsp.DCTDCT]
	if itxfm != nil && eob > 0 {
		itxfm(dst, stride, coef, eob)
	}
}

// motionCompensate reads refIdx's borrowed reference picture at the
// integer-pel position the motion vector implies, applying the
// remaining 1/8-pel phase through the DSP capability's sub-pel filter.
// Chroma motion vectors are scaled by the plane's subsampling factor (an
// approximation of the §4.3.4 S2 scaled-MC path limited to same-ratio
// chroma scaling; a reference picture of a genuinely different
// resolution than the current frame is not modeled, see DESIGN.md). With
// no reference pool configured (dvintra- and vc1-style intra-only
// callers), this is a no-op and the destination keeps whatever the
// predictor step before it produced.
func (e *Engine) motionCompensate(ctx context.Context, hdr *frame.Header, dst []byte, dstStride int, refIdx, mvRow, mvCol, col, row, w, h, plane int, avg bool) {
	if e.pool == nil || refIdx < 0 || refIdx >= len(hdr.RefSlot) {
		return
	}
	borrow, err := e.pool.TakeReference(hdr.RefSlot[refIdx])
	if err != nil {
		return
	}
	defer borrow.Release()
	ref := borrow.Frame()

	refStride := ref.Strides[plane]
	refBuf := ref.Planes[plane]
	if refStride == 0 || len(refBuf) == 0 {
		return
	}

	mvr, mvc := mvRow, mvCol
	if plane != 0 {
		if hdr.SubsamplingY == 1 {
			mvr /= 2
		}
		if hdr.SubsamplingX == 1 {
			mvc /= 2
		}
	}

	srcCol := col + (mvc >> 3)
	srcRow := row + (mvr >> 3)
	subX := mvc & 7
	subY := mvr & 7

	waitRow := srcRow + h
	if waitRow < 0 {
		waitRow = 0
	}
	if err := ref.AwaitProgress(ctx, uint32(waitRow)); err != nil {
		return
	}

	const margin = 2
	refRows := len(refBuf) / refStride
	maxCol := refStride - w - margin
	maxRow := refRows - h - margin
	if maxCol < margin {
		maxCol = margin
	}
	if maxRow < margin {
		maxRow = margin
	}
	srcCol = prob.Clip3(margin, maxCol, srcCol)
	srcRow = prob.Clip3(margin, maxRow, srcRow)

	srcOffset := srcRow*refStride + srcCol
	if srcOffset < 0 || srcOffset >= len(refBuf) {
		return
	}
	src := refBuf[srcOffset:]

	size := blockSizeFor(w, h)
	var mc dsp.MCFilterFunc
	if subX != 0 || subY != 0 {
		mc = e.Capability.MCFilter[size][dsp.FilterEightTap][1][1]
	} else {
		mc = e.Capability.MCFilter[size][dsp.FilterEightTap][0][0]
	}
	if mc == nil {
		return
	}
	mc(dst, dstStride, src, refStride, w, h, subX, subY, avg)
}
