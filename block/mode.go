/*
DESCRIPTION
  mode.go implements the §4.3.2 mode-decode sequence for one leaf block:
  skip flag, intra/inter flag, transform-size selection, and (for inter
  blocks) motion-vector decode, followed by dispatch into coefficient
  decode and reconstruction.

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

// intraModeTree resolves the 3-way {DC,V,H} intra mode this build
// models (dsp.Reference's populated predictor set).
var intraModeTree = []int8{
	-int8(dsp.DCPred), 2,
	-int8(dsp.VPred), -int8(dsp.HPred),
}

// interModeTree resolves the 4-way §4.3.2 inter mode symbol.
var interModeTree = []int8{
	-int8(ModeZero), 2,
	-int8(ModeNearest), 4,
	-int8(ModeNear), -int8(ModeNew),
}

// singleRefTree resolves which of the three logical reference frames a
// single-prediction inter block reads from.
var singleRefTree = []int8{
	-0, 2,
	-1, -2,
}

// decodeLeaf runs the full §4.3.2-§4.3.5 sequence for one leaf block of
// pixel dimensions w x h at (x0,y0), updating the above/left context
// strips as it goes.
func (e *Engine) decodeLeaf(ctx context.Context, rng *rangecoder.Decoder, hdr *frame.Header, probCtx *prob.Context, counts *prob.Counts, ts *tileState, x0, y0, w, h int) error {
	colMi, rowMi := x0/8, y0/8

	aboveSkip := e.aboveSkip[minInt(colMi, len(e.aboveSkip)-1)]
	leftSkip := ts.leftSkip[rowMi%8]
	skipCtx := int(aboveSkip) + int(leftSkip)
	if skipCtx > 2 {
		skipCtx = 2
	}

	skipBit, err := rng.ReadBool(probCtx.Skip[skipCtx])
	if err != nil {
		return err
	}
	counts.Skip[skipCtx].Observe(skipBit)
	skip := skipBit == 1

	isInter := false
	if !hdr.IsKeyFrame && !hdr.IntraOnly {
		interCtx := 0
		bit, err := rng.ReadBool(probCtx.IsInter[interCtx])
		if err != nil {
			return err
		}
		counts.IsInter[interCtx].Observe(bit)
		isInter = bit == 1
	}

	maxTx := w
	if h < maxTx {
		maxTx = h
	}
	if maxTx > 32 {
		maxTx = 32
	}
	isInterIdx := 0
	if isInter {
		isInterIdx = 1
	}
	tx, err := e.readTxSize(rng, probCtx, counts, maxTx, isInterIdx)
	if err != nil {
		return err
	}

	leaf := Leaf{Col: x0, Row: y0, W: w, H: h, Skip: skip, IsInter: isInter, TxSize: tx}

	if isInter {
		if err := e.decodeInterMode(rng, hdr, probCtx, counts, ts, colMi, rowMi, &leaf); err != nil {
			return err
		}
	} else {
		modeSym, err := rng.ReadTree(intraModeTree, probCtx.IntraMode[:])
		if err != nil {
			return err
		}
		if modeSym == int(dsp.DCPred) {
			counts.IntraMode[0].Observe(0)
		} else {
			counts.IntraMode[0].Observe(1)
			counts.IntraMode[1].Observe(boolToInt(modeSym == int(dsp.HPred)))
		}
		leaf.IntraMode = dsp.IntraMode(modeSym)
	}

	wUnits := (w + 7) / 8
	hUnits := (h + 7) / 8
	for i := 0; i < wUnits && colMi+i < len(e.aboveSkip); i++ {
		e.aboveSkip[colMi+i] = boolToU8(skip)
		e.aboveIsInter[colMi+i] = boolToU8(isInter)
		if isInter {
			e.aboveMVRow[colMi+i] = leaf.MVRow
			e.aboveMVCol[colMi+i] = leaf.MVCol
			e.aboveRef[colMi+i] = leaf.RefFrame
			e.aboveHasMV[colMi+i] = true
		} else {
			e.aboveHasMV[colMi+i] = false
		}
	}
	for i := 0; i < hUnits; i++ {
		idx := (rowMi + i) % 8
		ts.leftSkip[idx] = boolToU8(skip)
		if isInter {
			ts.leftMVRow[idx] = leaf.MVRow
			ts.leftMVCol[idx] = leaf.MVCol
			ts.leftRef[idx] = leaf.RefFrame
			ts.leftHasMV[idx] = true
		} else {
			ts.leftHasMV[idx] = false
		}
	}

	if !skip {
		if err := e.decodeAndReconstruct(ctx, rng, hdr, probCtx, counts, ts, &leaf); err != nil {
			return err
		}
	} else {
		e.predictOnly(ctx, hdr, ts, &leaf)
	}

	e.accumulateLoopFilterMask(&leaf, hdr)
	return nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// flipForBias negates mv when the candidate's originating reference and
// the target reference carry different sign biases (§4.3.2, "a
// candidate's motion vector is negated when the two references disagree
// on sign bias").
func flipForBias(mv int, fromBias, toBias bool) int {
	if fromBias != toBias {
		return -mv
	}
	return mv
}

// spatialCandidates returns up to two MV predictors for ref, drawn from
// the immediately-above and immediately-left neighbors (§4.3.2's
// NEAREST/NEAR candidate list; the co-located temporal candidate is not
// modeled in this build, see DESIGN.md). Candidates are sign-bias
// adjusted to ref before being returned.
func (e *Engine) spatialCandidates(ts *tileState, hdr *frame.Header, colMi, rowMi, ref int) (nearestRow, nearestCol int, haveNearest bool, nearRow, nearCol int, haveNear bool) {
	type cand struct{ row, col int }
	var cands []cand

	aboveIdx := minInt(colMi, len(e.aboveHasMV)-1)
	if aboveIdx >= 0 && e.aboveHasMV[aboveIdx] {
		r := flipForBias(e.aboveMVRow[aboveIdx], hdr.RefSignBias[e.aboveRef[aboveIdx]], hdr.RefSignBias[ref])
		c := flipForBias(e.aboveMVCol[aboveIdx], hdr.RefSignBias[e.aboveRef[aboveIdx]], hdr.RefSignBias[ref])
		cands = append(cands, cand{r, c})
	}
	leftIdx := rowMi % 8
	if ts.leftHasMV[leftIdx] {
		r := flipForBias(ts.leftMVRow[leftIdx], hdr.RefSignBias[ts.leftRef[leftIdx]], hdr.RefSignBias[ref])
		c := flipForBias(ts.leftMVCol[leftIdx], hdr.RefSignBias[ts.leftRef[leftIdx]], hdr.RefSignBias[ref])
		cands = append(cands, cand{r, c})
	}

	if len(cands) > 0 {
		nearestRow, nearestCol, haveNearest = cands[0].row, cands[0].col, true
	}
	if len(cands) > 1 {
		nearRow, nearCol, haveNear = cands[1].row, cands[1].col, true
	}
	return
}

// decodeInterMode runs the §4.3.2 inter mode-decode sequence: reference
// frame assignment (single, or compound per S5 when the frame's
// non-LAST references carry different sign biases), the 4-way mode
// symbol, and the motion vector each mode implies.
func (e *Engine) decodeInterMode(rng *rangecoder.Decoder, hdr *frame.Header, probCtx *prob.Context, counts *prob.Counts, ts *tileState, colMi, rowMi int, leaf *Leaf) error {
	compoundAllowed := hdr.RefSignBias[1] != hdr.RefSignBias[2]
	if compoundAllowed {
		bit, err := rng.ReadBool(probCtx.CompRef)
		if err != nil {
			return err
		}
		counts.CompRef.Observe(bit)
		leaf.Compound = bit == 1
	}

	if leaf.Compound {
		leaf.RefFrame = 0
		if hdr.RefSignBias[1] != hdr.RefSignBias[0] {
			leaf.RefFrame2 = 1
		} else {
			leaf.RefFrame2 = 2
		}
	} else {
		ref, err := rng.ReadTree(singleRefTree, probCtx.SingleRef[:])
		if err != nil {
			return err
		}
		counts.SingleRef[0].Observe(boolToInt(ref != 0))
		if ref != 0 {
			counts.SingleRef[1].Observe(boolToInt(ref == 2))
		}
		leaf.RefFrame = ref
	}

	modeSym, err := rng.ReadTree(interModeTree, probCtx.InterMode[:])
	if err != nil {
		return err
	}
	leaf.Mode = InterMode(modeSym)
	counts.InterMode[0].Observe(boolToInt(leaf.Mode != ModeZero))
	if leaf.Mode != ModeZero {
		counts.InterMode[1].Observe(boolToInt(leaf.Mode != ModeNearest))
		if leaf.Mode != ModeNearest {
			counts.InterMode[2].Observe(boolToInt(leaf.Mode == ModeNew))
		}
	}

	nearestRow, nearestCol, haveNearest, nearRow, nearCol, haveNear := e.spatialCandidates(ts, hdr, colMi, rowMi, leaf.RefFrame)

	switch leaf.Mode {
	case ModeZero:
		leaf.MVRow, leaf.MVCol = 0, 0
	case ModeNearest:
		if haveNearest {
			leaf.MVRow, leaf.MVCol = nearestRow, nearestCol
		}
	case ModeNear:
		if haveNear {
			leaf.MVRow, leaf.MVCol = nearRow, nearCol
		} else if haveNearest {
			leaf.MVRow, leaf.MVCol = nearestRow, nearestCol
		}
	case ModeNew:
		diffRow, diffCol, err := e.decodeMV(rng, probCtx, counts, hdr.HighPrecisionMVs)
		if err != nil {
			return err
		}
		leaf.MVRow, leaf.MVCol = nearestRow+diffRow, nearestCol+diffCol
	}

	if leaf.Compound {
		nearestRow2, nearestCol2, haveNearest2, nearRow2, nearCol2, haveNear2 := e.spatialCandidates(ts, hdr, colMi, rowMi, leaf.RefFrame2)
		switch leaf.Mode {
		case ModeZero:
			leaf.MVRow2, leaf.MVCol2 = 0, 0
		case ModeNearest:
			if haveNearest2 {
				leaf.MVRow2, leaf.MVCol2 = nearestRow2, nearestCol2
			}
		case ModeNear:
			if haveNear2 {
				leaf.MVRow2, leaf.MVCol2 = nearRow2, nearCol2
			} else if haveNearest2 {
				leaf.MVRow2, leaf.MVCol2 = nearestRow2, nearestCol2
			}
		case ModeNew:
			diffRow2, diffCol2, err := e.decodeMV(rng, probCtx, counts, hdr.HighPrecisionMVs)
			if err != nil {
				return err
			}
			leaf.MVRow2, leaf.MVCol2 = nearestRow2+diffRow2, nearestCol2+diffCol2
		}
	}

	return nil
}

// readTxSize decodes the transform-size tree for the given maximum
// eligible size, one fewer bit for each halving below maxTx (§4.3.2).
func (e *Engine) readTxSize(rng *rangecoder.Decoder, probCtx *prob.Context, counts *prob.Counts, maxTx, isInter int) (dsp.TxSize, error) {
	if maxTx < 8 {
		return dsp.Tx4x4, nil
	}

	bit0, err := rng.ReadBool(probCtx.TxSize8[isInter][0])
	if err != nil {
		return 0, err
	}
	counts.TxSize8[isInter][0].Observe(bit0)
	if maxTx == 8 || bit0 == 0 {
		if bit0 == 0 {
			return dsp.Tx4x4, nil
		}
		return dsp.Tx8x8, nil
	}

	bit1, err := rng.ReadBool(probCtx.TxSize16[isInter][1])
	if err != nil {
		return 0, err
	}
	counts.TxSize16[isInter][1].Observe(bit1)
	if maxTx == 16 || bit1 == 0 {
		if bit1 == 0 {
			return dsp.Tx8x8, nil
		}
		return dsp.Tx16x16, nil
	}

	bit2, err := rng.ReadBool(probCtx.TxSize32[isInter][2])
	if err != nil {
		return 0, err
	}
	counts.TxSize32[isInter][2].Observe(bit2)
	if bit2 == 0 {
		return dsp.Tx16x16, nil
	}
	return dsp.Tx32x32, nil
}

// decodeMV decodes one differential motion vector per §4.3.2's NEWMV
// path: a joint code, then per nonzero axis a sign, a class0-vs-higher
// flag, and up to 10 context-coded magnitude bits. Callers add this
// differential to the NEAREST candidate (decodeInterMode's ModeNew
// case) to recover the absolute MV, per §4.3.2's "predictor plus
// differential" rule.
func (e *Engine) decodeMV(rng *rangecoder.Decoder, probCtx *prob.Context, counts *prob.Counts, highPrecision bool) (row, col int, err error) {
	joint, err := rng.ReadTree(mvJointTree, probCtx.MVJoint[:])
	if err != nil {
		return 0, 0, err
	}
	// MVJoint has only 3 adapted probabilities for a 4-way symbol; count
	// the first-node decision as representative (see the partition
	// walk above for the fully node-accurate pattern).
	if joint == mvJointZero {
		counts.MVJoint[0].Observe(0)
	} else {
		counts.MVJoint[0].Observe(1)
	}

	readComponent := func(axis int) (int, error) {
		sign, err := rng.ReadBool(probCtx.MVSign[axis])
		if err != nil {
			return 0, err
		}
		counts.MVSign[axis].Observe(sign)

		isClass0, err := rng.ReadBool(probCtx.MVClass0[axis])
		if err != nil {
			return 0, err
		}
		counts.MVClass0[axis].Observe(isClass0)

		var mag int
		if isClass0 == 0 {
			bit, err := rng.ReadBool(probCtx.MVBits[axis][0])
			if err != nil {
				return 0, err
			}
			counts.MVBits[axis][0].Observe(bit)
			mag = int(bit)
		} else {
			for i := 0; i < 10; i++ {
				bit, err := rng.ReadBool(probCtx.MVBits[axis][i])
				if err != nil {
					return 0, err
				}
				counts.MVBits[axis][i].Observe(bit)
				mag = mag<<1 | int(bit)
			}
			mag += 8 // class0's two-value range offset
		}

		v := mag << 3 // to 1/8-pel
		if !highPrecision {
			v &^= 0x7 // clear the 1/8-pel fraction bits
		}
		if sign == 1 {
			v = -v
		}
		return v, nil
	}

	switch joint {
	case mvJointHNZVZ:
		col, err = readComponent(0)
	case mvJointHZVNZ:
		row, err = readComponent(1)
	case mvJointHVNZ:
		if row, err = readComponent(1); err == nil {
			col, err = readComponent(0)
		}
	}
	return row, col, err
}
