/*
DESCRIPTION
  context.go implements probability-context storage and the per-symbol
  adaptation rule of §4.2.1, generalising the single fixed
  PreCtxState/stateTransxTab pairing codec/h264/h264dec/cabac.go uses for
  CABAC into the count-driven adaptation these block-transform codecs use
  instead.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package prob implements the per-frame-context probability tables and
// their end-of-frame adaptation (§3.1, §4.2.1). A Context is cloned from
// a parent slot at frame-start, mutated during the compressed header and
// coefficient/mode decode (via Counts), and optionally adapted and
// written back at frame-end.
package prob

const (
	// NumFrameContexts is the number of frame-context-id parent slots
	// (§3.1): a 2-bit selector picks one of four.
	NumFrameContexts = 4

	// PartitionLevels indexes the four partition recursion depths: 64,
	// 32, 16 and 8.
	PartitionLevels = 4

	// PartitionContexts is the number of (above,left) partition contexts
	// at each level: c = above | (left << 1).
	PartitionContexts = 4

	// CoefBands is the number of coefficient scan-position bands.
	CoefBands = 6

	// CoefNeighborContexts is the number of nonzero-neighbor contexts
	// (nnz_ctx) a coefficient token is read at.
	CoefNeighborContexts = 6

	// TxSizes indexes {4,8,16,32}.
	TxSizes = 4

	// defaultUpdateFactor is "uf" from §4.2.1 for steady-state frames.
	defaultUpdateFactor = 128

	// firstInterUpdateFactor is "uf" for the first inter frame decoded
	// after a keyframe, which adapts more aggressively.
	firstInterUpdateFactor = 112

	// ModeTreeMax is MAX for most tree-structured mode/partition
	// probabilities.
	ModeTreeMax = 20

	// CoefTokenMax is MAX for coefficient-token probabilities.
	CoefTokenMax = 24
)

// Clip3 clips z to the closed interval [x,y] (5-5 in the H.264
// specifications; reused verbatim here since every codec flavor in this
// family needs the same clamp).
func Clip3(x, y, z int) int {
	if z < x {
		return x
	}
	if z > y {
		return y
	}
	return z
}

// AdaptProb applies the §4.2.1 adaptation rule to a single probability
// p1 given observed binary counts (c0,c1) and a class-specific maximum
// count max. uf is the update factor: defaultUpdateFactor, except for
// the first inter frame after a keyframe, which uses
// firstInterUpdateFactor.
func AdaptProb(p1 uint8, c0, c1 uint32, max, uf int) uint8 {
	ct := int(c0) + int(c1)
	if ct == 0 {
		return p1
	}

	factor := uf * min(ct, max) / max

	p2 := Clip3(1, 255, ((int(c0)<<8)+ct/2)/ct)

	delta := ((p2 - int(p1)) * factor) + 128
	pNew := int(p1) + (delta >> 8)
	return uint8(Clip3(1, 255, pNew))
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Pair holds the observed (c0,c1) counts for one binary decision.
type Pair struct {
	C0, C1 uint32
}

// Observe increments the count for the observed bit.
func (p *Pair) Observe(bit int) {
	if bit == 0 {
		p.C0++
	} else {
		p.C1++
	}
}

// Context is one frame-context-id's full probability table (§3.1). Only
// the classes actually exercised by package block are modelled field by
// field; every other tree-structured probability in the family (filter
// selection, single/comp reference selection, interpolation filter,
// further intra/inter mode trees) is adapted through the identical
// AdaptProb call and would add fields of the same shape without adding
// new mechanism — see DESIGN.md.
type Context struct {
	// Partition[level][ctx] holds 3 probabilities coding the 4-way
	// {none,horizontal,vertical,split} decision (§4.3.1).
	Partition [PartitionLevels][PartitionContexts][3]uint8

	// Skip[ctx] is P(skip==0) at context ctx = aboveSkip+leftSkip (0..2).
	Skip [3]uint8

	// IsInter[ctx] is P(intra) at a neighbor-derived context (0..3).
	IsInter [4]uint8

	// TxSize8/16/32[ctx] hold the tree probabilities for transform-size
	// selection at each eligible maximum block size (§4.3.2).
	TxSize8  [2][1]uint8
	TxSize16 [2][2]uint8
	TxSize32 [2][3]uint8

	// CoefToken[tx][plane][isInter][band][nnz] holds the cascade's three
	// node probabilities in scan order: [0] end-of-block, [1] zero-vs-
	// nonzero, [2] one-vs-CAT-extension (§4.3.3 step 4). The CAT
	// extension's own per-category bit probabilities are a separate,
	// smaller table (catSelect/catExtra below) since they are indexed by
	// category rather than by (tx,plane,isInter,band,nnz).
	CoefToken [TxSizes][2][2][CoefBands][CoefNeighborContexts][3]uint8

	// CatSelect holds the unary category-selector probabilities (one per
	// step, CAT1..CAT5 continuation) and CatExtra the per-category,
	// per-bit extension probabilities, approximating model-pareto8 (§4.3.3
	// step 4; DESIGN.md records this as an approximation since the
	// published per-category table is not present in the reference
	// material this build draws from).
	CatSelect [5]uint8
	CatExtra  [6][14]uint8

	// IntraMode holds the 2 node probabilities of the 3-way {DC,V,H}
	// intra mode tree (§4.3.2's mode decode, restricted to this build's
	// modeled predictor set; see dsp.IntraPredict's populated slots).
	IntraMode [2]uint8

	// InterMode holds the 3 node probabilities of the 4-way
	// {ZEROMV,NEARESTMV,NEARMV,NEWMV} inter mode tree (§4.3.2).
	InterMode [3]uint8

	// SingleRef holds the 2 node probabilities selecting among the three
	// logical reference frames (LAST/GOLDEN/ALTREF) for a
	// single-prediction inter block (§4.3.2, §4.3.4 "ref_frame").
	SingleRef [2]uint8

	// CompRef is P(single) at the one compound-vs-single context this
	// build models; compound prediction is only offered when the frame's
	// two non-LAST references carry different sign biases (§4.3.4 S5).
	CompRef uint8

	// MVJoint holds the 3 probabilities for the 2-bit (H,V nonzero)
	// joint code.
	MVJoint [3]uint8

	// MVSign, MVClass0 and MVBits are per-component (0=horizontal,
	// 1=vertical) motion-vector-differential probabilities (§4.3.2).
	MVSign   [2]uint8
	MVClass0 [2]uint8
	MVBits   [2][10]uint8
}

// Counts accumulates the observed (c0,c1) pairs for one frame's worth of
// symbol reads, mirroring the shape of Context field-for-field.
type Counts struct {
	Partition [PartitionLevels][PartitionContexts][3]Pair
	Skip      [3]Pair
	IsInter   [4]Pair
	TxSize8   [2][1]Pair
	TxSize16  [2][2]Pair
	TxSize32  [2][3]Pair
	CoefToken [TxSizes][2][2][CoefBands][CoefNeighborContexts][3]Pair
	CatSelect [5]Pair
	CatExtra  [6][14]Pair
	IntraMode [2]Pair
	InterMode [3]Pair
	SingleRef [2]Pair
	CompRef   Pair
	MVJoint   [3]Pair
	MVSign    [2]Pair
	MVClass0  [2]Pair
	MVBits    [2][10]Pair
}

// Default returns the canonical reset-state context used on keyframes
// and whenever reset_frame_context selects a full reset (§4.2 step 1).
// Real deployments load the published per-field default tables here;
// this build seeds every probability at the unbiased midpoint (128),
// which is a valid starting point for the adaptation rule (see the
// idempotence and convergence properties in §8) even though it is not
// itself the bitstream's specified constant table.
func Default() *Context {
	c := &Context{}
	fillUint8Tree(&c.Partition)
	fillUint8Slice(c.Skip[:])
	fillUint8Slice(c.IsInter[:])
	fillUint8Tree(&c.TxSize8)
	fillUint8Tree(&c.TxSize16)
	fillUint8Tree(&c.TxSize32)
	fillUint8Tree(&c.CoefToken)
	fillUint8Slice(c.CatSelect[:])
	for i := range c.CatExtra {
		fillUint8Slice(c.CatExtra[i][:])
	}
	fillUint8Slice(c.IntraMode[:])
	fillUint8Slice(c.InterMode[:])
	fillUint8Slice(c.SingleRef[:])
	c.CompRef = 128
	fillUint8Slice(c.MVJoint[:])
	fillUint8Slice(c.MVSign[:])
	fillUint8Slice(c.MVClass0[:])
	fillUint8Tree(&c.MVBits)
	return c
}

// Clone returns a deep copy of c, used when a frame clones its parent
// frame-context-id slot at frame-start (§3.3).
func (c *Context) Clone() *Context {
	cp := *c
	return &cp
}

// Adapt produces a new Context by applying AdaptProb to every field of c
// using the matching field of counts, per §4.2.1. uf selects the update
// factor (firstInterUpdateFactor for the first inter frame after a
// keyframe, defaultUpdateFactor otherwise).
func (c *Context) Adapt(counts *Counts, uf int) *Context {
	out := c.Clone()

	adaptTree3(&out.Partition, &c.Partition, &counts.Partition, ModeTreeMax, uf)
	adaptSlice(out.Skip[:], c.Skip[:], counts.Skip[:], ModeTreeMax, uf)
	adaptSlice(out.IsInter[:], c.IsInter[:], counts.IsInter[:], ModeTreeMax, uf)
	adaptTree1(&out.TxSize8, &c.TxSize8, &counts.TxSize8, ModeTreeMax, uf)
	adaptTree2(&out.TxSize16, &c.TxSize16, &counts.TxSize16, ModeTreeMax, uf)
	adaptTree2x3(&out.TxSize32, &c.TxSize32, &counts.TxSize32, ModeTreeMax, uf)
	adaptCoefToken(&out.CoefToken, &c.CoefToken, &counts.CoefToken, uf)
	adaptSlice(out.CatSelect[:], c.CatSelect[:], counts.CatSelect[:], CoefTokenMax, uf)
	for i := range c.CatExtra {
		adaptSlice(out.CatExtra[i][:], c.CatExtra[i][:], counts.CatExtra[i][:], CoefTokenMax, uf)
	}
	adaptSlice(out.IntraMode[:], c.IntraMode[:], counts.IntraMode[:], ModeTreeMax, uf)
	adaptSlice(out.InterMode[:], c.InterMode[:], counts.InterMode[:], ModeTreeMax, uf)
	adaptSlice(out.SingleRef[:], c.SingleRef[:], counts.SingleRef[:], ModeTreeMax, uf)
	out.CompRef = AdaptProb(c.CompRef, counts.CompRef.C0, counts.CompRef.C1, ModeTreeMax, uf)
	adaptSlice(out.MVJoint[:], c.MVJoint[:], counts.MVJoint[:], ModeTreeMax, uf)
	adaptSlice(out.MVSign[:], c.MVSign[:], counts.MVSign[:], ModeTreeMax, uf)
	adaptSlice(out.MVClass0[:], c.MVClass0[:], counts.MVClass0[:], ModeTreeMax, uf)
	adaptTree10(&out.MVBits, &c.MVBits, &counts.MVBits, ModeTreeMax, uf)

	return out
}

func adaptSlice(dst, src []uint8, counts []Pair, max, uf int) {
	for i := range src {
		dst[i] = AdaptProb(src[i], counts[i].C0, counts[i].C1, max, uf)
	}
}

func fillUint8Slice(s []uint8) {
	for i := range s {
		s[i] = 128
	}
}

// The fillUint8Tree/adaptTreeN helpers operate on the fixed-shape nested
// arrays above; Go's lack of generic array-rank abstraction means each
// rank gets its own tiny helper rather than one reflective walker, in
// keeping with the family's general avoidance of reflection-based
// syntax-element machinery (cavlc.go and cabac.go both hand-unroll their
// table shapes rather than walking them generically).
func fillUint8Tree(v interface{}) {
	switch t := v.(type) {
	case *[PartitionLevels][PartitionContexts][3]uint8:
		for i := range t {
			for j := range t[i] {
				fillUint8Slice(t[i][j][:])
			}
		}
	case *[2][1]uint8:
		for i := range t {
			fillUint8Slice(t[i][:])
		}
	case *[2][2]uint8:
		for i := range t {
			fillUint8Slice(t[i][:])
		}
	case *[2][3]uint8:
		for i := range t {
			fillUint8Slice(t[i][:])
		}
	case *[2][10]uint8:
		for i := range t {
			fillUint8Slice(t[i][:])
		}
	case *[TxSizes][2][2][CoefBands][CoefNeighborContexts][3]uint8:
		for a := range t {
			for b := range t[a] {
				for c := range t[a][b] {
					for d := range t[a][b][c] {
						for e := range t[a][b][c][d] {
							fillUint8Slice(t[a][b][c][d][e][:])
						}
					}
				}
			}
		}
	}
}

func adaptTree1(dst, src *[2][1]uint8, counts *[2][1]Pair, max, uf int) {
	for i := range src {
		adaptSlice(dst[i][:], src[i][:], counts[i][:], max, uf)
	}
}

func adaptTree2(dst, src *[2][2]uint8, counts *[2][2]Pair, max, uf int) {
	for i := range src {
		adaptSlice(dst[i][:], src[i][:], counts[i][:], max, uf)
	}
}

func adaptTree2x3(dst, src *[2][3]uint8, counts *[2][3]Pair, max, uf int) {
	for i := range src {
		adaptSlice(dst[i][:], src[i][:], counts[i][:], max, uf)
	}
}

func adaptTree3(dst, src *[PartitionLevels][PartitionContexts][3]uint8, counts *[PartitionLevels][PartitionContexts][3]Pair, max, uf int) {
	for i := range src {
		for j := range src[i] {
			adaptSlice(dst[i][j][:], src[i][j][:], counts[i][j][:], max, uf)
		}
	}
}

func adaptTree10(dst, src *[2][10]uint8, counts *[2][10]Pair, max, uf int) {
	for i := range src {
		adaptSlice(dst[i][:], src[i][:], counts[i][:], max, uf)
	}
}

func adaptCoefToken(dst, src *[TxSizes][2][2][CoefBands][CoefNeighborContexts][3]uint8, counts *[TxSizes][2][2][CoefBands][CoefNeighborContexts][3]Pair, uf int) {
	for a := range src {
		for b := range src[a] {
			for c := range src[a][b] {
				for d := range src[a][b][c] {
					for e := range src[a][b][c][d] {
						adaptSlice(dst[a][b][c][d][e][:], src[a][b][c][d][e][:], counts[a][b][c][d][e][:], CoefTokenMax, uf)
					}
				}
			}
		}
	}
}

// Merge folds other's observations into c, field by field. Tile columns
// in the same tile row decode concurrently against independent local
// Counts (§5); the Director merges each column's counts into the
// frame's shared totals once that column finishes, so no Pair is ever
// incremented by two goroutines at once.
func (c *Counts) Merge(other *Counts) {
	mergePairSlice3(&c.Partition, &other.Partition)
	mergePairSlice(c.Skip[:], other.Skip[:])
	mergePairSlice(c.IsInter[:], other.IsInter[:])
	mergePairTree1(&c.TxSize8, &other.TxSize8)
	mergePairTree2(&c.TxSize16, &other.TxSize16)
	mergePairTree2x3(&c.TxSize32, &other.TxSize32)
	mergeCoefToken(&c.CoefToken, &other.CoefToken)
	mergePairSlice(c.CatSelect[:], other.CatSelect[:])
	for i := range c.CatExtra {
		mergePairSlice(c.CatExtra[i][:], other.CatExtra[i][:])
	}
	mergePairSlice(c.IntraMode[:], other.IntraMode[:])
	mergePairSlice(c.InterMode[:], other.InterMode[:])
	mergePairSlice(c.SingleRef[:], other.SingleRef[:])
	c.CompRef.C0 += other.CompRef.C0
	c.CompRef.C1 += other.CompRef.C1
	mergePairSlice(c.MVJoint[:], other.MVJoint[:])
	mergePairSlice(c.MVSign[:], other.MVSign[:])
	mergePairSlice(c.MVClass0[:], other.MVClass0[:])
	mergePairTree10(&c.MVBits, &other.MVBits)
}

func mergePairSlice(dst, src []Pair) {
	for i := range dst {
		dst[i].C0 += src[i].C0
		dst[i].C1 += src[i].C1
	}
}

func mergePairTree1(dst, src *[2][1]Pair) {
	for i := range dst {
		mergePairSlice(dst[i][:], src[i][:])
	}
}

func mergePairTree2(dst, src *[2][2]Pair) {
	for i := range dst {
		mergePairSlice(dst[i][:], src[i][:])
	}
}

func mergePairTree2x3(dst, src *[2][3]Pair) {
	for i := range dst {
		mergePairSlice(dst[i][:], src[i][:])
	}
}

func mergePairTree10(dst, src *[2][10]Pair) {
	for i := range dst {
		mergePairSlice(dst[i][:], src[i][:])
	}
}

func mergePairSlice3(dst, src *[PartitionLevels][PartitionContexts][3]Pair) {
	for i := range dst {
		for j := range dst[i] {
			mergePairSlice(dst[i][j][:], src[i][j][:])
		}
	}
}

func mergeCoefToken(dst, src *[TxSizes][2][2][CoefBands][CoefNeighborContexts][3]Pair) {
	for a := range dst {
		for b := range dst[a] {
			for c := range dst[a][b] {
				for d := range dst[a][b][c] {
					for e := range dst[a][b][c][d] {
						mergePairSlice(dst[a][b][c][d][e][:], src[a][b][c][d][e][:])
					}
				}
			}
		}
	}
}
