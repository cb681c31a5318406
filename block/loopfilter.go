/*
DESCRIPTION
  loopfilter.go implements §4.3.5: accumulating the per-8x8-unit
  right/bottom edge filter-width mask and per-unit filter level as each
  leaf finishes reconstruction, the way codec/h264/h264dec's deblocking
  pass accumulates its own bS (boundary strength) grid from mb_type and
  coded-block-pattern as macroblocks decode, except here the mask is
  built incrementally per leaf rather than in a separate pass.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package block

import (
	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/frame"
)

// edgeWidthClass maps a transform size to the §4.3.5 edge filter width
// class: the filter applied at a transform boundary is only ever as
// wide as the smaller of the two transform blocks meeting there, so a
// leaf's own tx size is an upper bound on every edge it contributes.
func edgeWidthClass(tx dsp.TxSize) uint8 {
	switch tx {
	case dsp.Tx4x4:
		return 1
	case dsp.Tx8x8:
		return 2
	default:
		return 3 // Tx16x16 and Tx32x32 both filter at the 16-pixel class
	}
}

// filterLevel computes this leaf's §4.3.5 filter level: the frame's
// base level, adjusted, when the loop-filter header enables deltas, by
// the reference/mode delta pair it carries. Segmentation does not
// adjust the level: no segment's ALT_L value is applied here. RefDelta
// is indexed INTRA_FRAME=0, LAST=1, GOLDEN=2, ALTREF=3, so an intra leaf
// takes RefDelta[0] and an inter leaf's RefFrame (0=LAST, 1=GOLDEN,
// 2=ALTREF) selects RefDelta[leaf.RefFrame+1]; ModeDelta[0] applies to
// ZEROMV, ModeDelta[1] to every other inter mode.
func filterLevel(hdr *frame.Header, leaf *Leaf) int {
	level := hdr.LoopFilterLevel
	if !hdr.LoopFilter.Enabled {
		return level
	}
	if leaf.IsInter {
		refIdx := leaf.RefFrame + 1
		if refIdx < 0 || refIdx >= len(hdr.LoopFilter.RefDelta) {
			refIdx = 1
		}
		level += int(hdr.LoopFilter.RefDelta[refIdx])
		if leaf.Mode == ModeZero {
			level += int(hdr.LoopFilter.ModeDelta[0])
		} else {
			level += int(hdr.LoopFilter.ModeDelta[1])
		}
	} else {
		level += int(hdr.LoopFilter.RefDelta[0])
	}
	if level < 0 {
		return 0
	}
	if level > 63 {
		return 63
	}
	return level
}

// accumulateLoopFilterMask records leaf's right and bottom edge filter
// widths and level into the frame-wide mask. Per invariant 5, a zero
// level leaves every mi unit the leaf spans untouched (the mask stays
// at its zero value); per
// boundary scenario S6, a leaf whose right (or bottom) edge coincides
// with the picture edge never marks that edge, since there is no
// neighboring block for the filter to straddle.
func (e *Engine) accumulateLoopFilterMask(leaf *Leaf, hdr *frame.Header) {
	level := filterLevel(hdr, leaf)
	if level == 0 {
		return
	}

	colMi, rowMi := leaf.Col/8, leaf.Row/8
	wMi := (leaf.W + 7) / 8
	hMi := (leaf.H + 7) / 8
	rightEdgeCol := colMi + wMi - 1
	bottomEdgeRow := rowMi + hMi - 1

	width := edgeWidthClass(leaf.TxSize)
	hasRightNeighbor := rightEdgeCol+1 < e.miCols
	hasBottomNeighbor := bottomEdgeRow+1 < e.miRows

	for r := rowMi; r <= bottomEdgeRow && r < e.miRows; r++ {
		for c := colMi; c <= rightEdgeCol && c < e.miCols; c++ {
			idx := r*e.miCols + c
			e.lfLevel[idx] = uint8(level)
			if c == rightEdgeCol && hasRightNeighbor {
				e.lfRightWidth[idx] = width
			}
			if r == bottomEdgeRow && hasBottomNeighbor {
				e.lfBottomWidth[idx] = width
			}
		}
	}
}
