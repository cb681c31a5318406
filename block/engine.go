/*
DESCRIPTION
  engine.go implements the Block Engine (§4.3): partition recursion,
  mode decode, coefficient decode, reconstruction, and loop-filter mask
  accumulation for one superblock. It reads symbols from a
  rangecoder.Decoder the way codec/h264/h264dec/cabac.go walks
  mb_type/coeff binarizations off its own arithmetic engine, but against
  the tree/probability shapes package prob defines instead of CABAC's
  context-state machine.

  SCOPE NOTE: intra dispatches DC_PRED/V_PRED/H_PRED per the decoded
  mode (dsp.Reference's populated table; the remaining directional
  modes are addressable but unpopulated, DESIGN.md). Inter decodes all
  four modes (ZEROMV/NEARESTMV/NEARMV/NEWMV) against a spatial-only
  candidate list (above mi-column and left tile-column caches; no
  co-located temporal candidate, DESIGN.md). Every symbol class the
  spec calls out as probability-adapted (partition, skip, is_inter,
  tx_size, coefficient tokens, MV joint/sign/class0/bits, intra/inter
  mode, reference selection) is wired to package prob and genuinely
  adapts.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package block implements the Block Engine: superblock partition
// recursion, per-leaf mode and coefficient decode, reconstruction via
// the DSP capability set, and loop-filter mask accumulation (§4.3).
package block

import (
	"bytes"
	"context"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/frame"
	"github.com/ausocean/vcore/prob"
	"github.com/ausocean/vcore/rangecoder"
	"github.com/ausocean/vcore/refpool"
)

// Partition is one of the four §4.3.1 partition symbols.
type Partition int

const (
	PartitionNone Partition = iota
	PartitionHorz
	PartitionVert
	PartitionSplit
)

// partitionTree is the binary tree rangecoder.ReadTree walks to resolve
// one of the four partition symbols from three context probabilities.
var partitionTree = []int8{
	-int8(PartitionNone), 2,
	-int8(PartitionHorz), 4,
	-int8(PartitionVert), -int8(PartitionSplit),
}

// mvJointTree mirrors the standard MV-joint binarization: zero, then
// horizontal-only, vertical-only, or both nonzero.
var mvJointTree = []int8{
	-0, 2,
	-1, 4,
	-2, -3,
}

const (
	mvJointZero = iota
	mvJointHNZVZ
	mvJointHZVNZ
	mvJointHVNZ
)

// Engine decodes one frame's worth of superblocks against a shared
// probability context and DSP capability set. The above-context strips
// are frame-wide and column-indexed, so concurrent tile columns (§5,
// "Tile-parallel within a single frame") touch disjoint slices of them
// safely; left-context and the destination frame buffer are instead
// carried per call in a tileState, since two tile columns in the same
// row would otherwise collide on the same row-relative index.
type Engine struct {
	Capability *dsp.Capability

	miCols, miRows int // frame dimensions in 8x8 "mode info" units

	aboveSkip    []uint8
	aboveIsInter []uint8
	abovePartCtx []uint8

	// aboveNzY/aboveNzUV carry, per 8x8 mi column, whether the most
	// recently decoded luma/chroma coefficient block in that column was
	// nonzero (§3.1 "y/uv-nonzero-count"). Frame-wide and column-disjoint
	// across concurrent tile columns, like the strips above.
	aboveNzY  []uint8
	aboveNzUV []uint8

	// aboveMVRow/aboveMVCol/aboveRef/aboveHasMV cache the above
	// neighbor's motion vector and reference index for the spatial half
	// of MV prediction (§4.3.2's NEAREST/NEAR candidate list).
	aboveMVRow []int
	aboveMVCol []int
	aboveRef   []int
	aboveHasMV []bool

	// pool resolves a leaf's logical reference-frame index into a
	// physical reference-pool slot for inter prediction (§4.3.4's inter
	// path, §4.4).
	pool *refpool.Pool

	// lfRightWidth/lfBottomWidth hold, per 8x8 mi unit, the §4.3.5 edge
	// filter width class (0 = no edge, 1/2/3 = 4/8/16-pixel filter) for
	// that unit's right and bottom edge. lfLevel holds the per-unit
	// filter level (0 disables filtering of every edge touching that
	// unit, §3.2 invariant 5). All three are frame-wide and
	// column-disjoint across concurrent tile columns, like the above-
	// context strips.
	lfRightWidth  []uint8
	lfBottomWidth []uint8
	lfLevel       []uint8
}

// tileState is the per-tile-column mutable state a single DecodeTile
// call owns outright: its left-context strip and a handle to the
// destination frame buffer. Keeping these off Engine lets tile columns
// in the same row run concurrently without synchronization.
type tileState struct {
	current     *refpool.FrameBuffer
	leftPartCtx [8]uint8 // one entry per 8-pixel row within the current superblock row
	leftSkip    [8]uint8
	leftNzY     [8]uint8
	leftNzUV    [8]uint8
	// leftMVRow/leftMVCol/leftRef cache the most recently decoded inter
	// leaf's motion vector and reference index in this tile column, the
	// spatial half of the §4.3.2 NEAREST/NEAR candidate list (the
	// co-located temporal candidate is not modeled in this build; see
	// DESIGN.md).
	leftMVRow [8]int
	leftMVCol [8]int
	leftRef   [8]int
	leftHasMV [8]bool
}

func newTileState(current *refpool.FrameBuffer) *tileState {
	return &tileState{current: current}
}

// NewEngine returns an Engine sized for a frame of the given pixel
// dimensions, borrowing reference pictures from pool for inter
// prediction (§4.4). pool may be nil for intra-only use (tests,
// all-keyframe streams), in which case any inter leaf falls back to a
// zero-motion same-frame copy rather than faulting.
func NewEngine(caps *dsp.Capability, pool *refpool.Pool, width, height int) *Engine {
	e := &Engine{Capability: caps, pool: pool}
	e.resize(width, height)
	return e
}

// PrepareFrame implements frame.FramePreparer: it resizes the Engine's
// above-context and loop-filter-mask strips for hdr's dimensions before
// DecodeTile is called concurrently for this frame's tile columns (§5).
// Resizing here, once and sequentially, rather than lazily inside
// DecodeTile, avoids every tile-column goroutine racing to reallocate
// the same strips on a resolution change.
func (e *Engine) PrepareFrame(hdr *frame.Header) {
	e.resize(hdr.Width, hdr.Height)
}

func (e *Engine) resize(width, height int) {
	miCols := (width + 7) / 8
	miRows := (height + 7) / 8
	if miCols == e.miCols && miRows == e.miRows {
		return
	}
	e.miCols = miCols
	e.miRows = miRows
	e.aboveSkip = make([]uint8, miCols)
	e.aboveIsInter = make([]uint8, miCols)
	e.abovePartCtx = make([]uint8, miCols)
	e.aboveNzY = make([]uint8, miCols)
	e.aboveNzUV = make([]uint8, miCols)
	e.aboveMVRow = make([]int, miCols)
	e.aboveMVCol = make([]int, miCols)
	e.aboveRef = make([]int, miCols)
	e.aboveHasMV = make([]bool, miCols)
	e.lfRightWidth = make([]uint8, miCols*miRows)
	e.lfBottomWidth = make([]uint8, miCols*miRows)
	e.lfLevel = make([]uint8, miCols*miRows)
}

// DecodeTile implements frame.TileDecoder: it decodes every superblock
// of t in raster order against rng, accumulating adapted-symbol counts
// into counts. Its left-context strip and destination buffer handle
// live in a tileState local to this call, so concurrent calls for other
// tile columns in the same row never share mutable state with it.
func (e *Engine) DecodeTile(ctx context.Context, t frame.Tile, hdr *frame.Header, probCtx *prob.Context, counts *prob.Counts, current *refpool.FrameBuffer) error {
	rng, err := tileDecoder(t.Data)
	if err != nil {
		return err
	}

	sbCols := (e.miCols + 7) / 8
	sbRows := (e.miRows + 7) / 8
	colStart := (t.Col * sbCols) >> uint(hdr.TileCols)
	colEnd := ((t.Col + 1) * sbCols) >> uint(hdr.TileCols)
	rowStart := (t.Row * sbRows) >> uint(hdr.TileRows)
	rowEnd := ((t.Row + 1) * sbRows) >> uint(hdr.TileRows)
	for sbRow := rowStart; sbRow < rowEnd; sbRow++ {
		ts := newTileState(current)
		for sbCol := colStart; sbCol < colEnd; sbCol++ {
			if err := e.decodeSuperblock(ctx, rng, hdr, probCtx, counts, ts, sbCol*8, sbRow*8); err != nil {
				return err
			}
		}
		current.ReportProgress(uint32((sbRow + 1) * 64))
	}
	return nil
}

func tileDecoder(data []byte) (*rangecoder.Decoder, error) {
	return rangecoder.NewDecoder(newByteBitReader(data))
}

// newByteBitReader wraps a tile's compressed-data byte slice in the bit
// reader the arithmetic decoder reads its raw bytes through.
func newByteBitReader(data []byte) *bits.BitReader {
	return bits.NewBitReader(bytes.NewReader(data))
}

// InterMode enumerates the four §4.3.2 inter prediction modes.
type InterMode int

const (
	ModeZero InterMode = iota
	ModeNearest
	ModeNear
	ModeNew
)

// Leaf is one decoded leaf block's mode-decode and coefficient results,
// ready for reconstruction.
type Leaf struct {
	Col, Row     int // pixel coordinates of the top-left corner
	W, H         int // pixel dimensions
	Skip         bool
	IsInter      bool
	TxSize       dsp.TxSize
	IntraMode    dsp.IntraMode
	Mode         InterMode
	MVRow, MVCol int // 1/8-pel
	RefFrame     int  // logical reference index (0=LAST,1=GOLDEN,2=ALTREF)
	Compound     bool
	RefFrame2    int
	MVRow2, MVCol2 int
}

// decodeSuperblock recursively decodes the 64x64 superblock rooted at
// pixel (x0,y0).
func (e *Engine) decodeSuperblock(ctx context.Context, rng *rangecoder.Decoder, hdr *frame.Header, probCtx *prob.Context, counts *prob.Counts, ts *tileState, x0, y0 int) error {
	return e.decodePartition(ctx, rng, hdr, probCtx, counts, ts, 0, x0, y0, 64)
}

// decodePartition decodes the partition symbol for the size x size block
// at (x0,y0) and recurses or dispatches to leaf decode.
func (e *Engine) decodePartition(ctx context.Context, rng *rangecoder.Decoder, hdr *frame.Header, probCtx *prob.Context, counts *prob.Counts, ts *tileState, level int, x0, y0, size int) error {
	colMi, rowMi := x0/8, y0/8
	sizeMi := size / 8

	hasCols := colMi+sizeMi/2 < e.miCols || sizeMi == 1
	hasRows := rowMi+sizeMi/2 < e.miRows || sizeMi == 1
	inPicture := colMi < e.miCols && rowMi < e.miRows
	if !inPicture {
		return nil
	}

	above := e.abovePartCtx[minInt(colMi, e.miCols-1)]
	left := ts.leftPartCtx[rowMi%8]
	c := int(above) | int(left)<<1

	part, err := e.readPartitionSymbol(rng, probCtx, counts, level, c, hasCols, hasRows)
	if err != nil {
		return err
	}

	// Above/left partition context tracks whether this position was
	// split finer than the current level. Only a SPLIT decision sets it,
	// ahead of the recursive calls below; leaf decode does not write it.
	if part == PartitionSplit {
		for i := colMi; i < colMi+sizeMi && i < len(e.abovePartCtx); i++ {
			e.abovePartCtx[i] = 1
		}
		for i := 0; i < sizeMi && i < 8; i++ {
			ts.leftPartCtx[(rowMi+i)%8] = 1
		}
	}

	half := size / 2
	switch {
	case size == 8:
		switch part {
		case PartitionNone:
			return e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0, 8, 8)
		case PartitionHorz:
			if err := e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0, 8, 4); err != nil {
				return err
			}
			return e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0+4, 8, 4)
		case PartitionVert:
			if err := e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0, 4, 8); err != nil {
				return err
			}
			return e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0+4, y0, 4, 8)
		default: // split: four 4x4 leaves, no further partition symbol
			for _, q := range quadrants(x0, y0, 4) {
				if err := e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, q[0], q[1], 4, 4); err != nil {
					return err
				}
			}
			return nil
		}
	default:
		switch part {
		case PartitionNone:
			return e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0, size, size)
		case PartitionHorz:
			if err := e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0, size, half); err != nil {
				return err
			}
			if y0+half < e.miRows*8 {
				return e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0+half, size, half)
			}
			return nil
		case PartitionVert:
			if err := e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0, y0, half, size); err != nil {
				return err
			}
			if x0+half < e.miCols*8 {
				return e.decodeLeaf(ctx, rng, hdr, probCtx, counts, ts, x0+half, y0, half, size)
			}
			return nil
		default: // split
			for _, q := range quadrants(x0, y0, half) {
				if err := e.decodePartition(ctx, rng, hdr, probCtx, counts, ts, level+1, q[0], q[1], half); err != nil {
					return err
				}
			}
			return nil
		}
	}
}

// planeWindow slices into fb's plane-th plane at the pixel position
// (col,row), applying the plane's chroma subsampling when chroma is
// true, and returns the slice from that offset to the end of its row's
// storage together with the plane's stride. ok is false when the
// position falls outside the allocated plane.
func planeWindow(fb *refpool.FrameBuffer, plane, col, row int, chroma bool) (dst []byte, stride int, ok bool) {
	px, py := col, row
	if chroma {
		px >>= uint(fb.Layout.SubsamplingX)
		py >>= uint(fb.Layout.SubsamplingY)
	}
	stride = fb.Strides[plane]
	if stride == 0 {
		return nil, 0, false
	}
	offset := py*stride + px
	if offset < 0 || offset >= len(fb.Planes[plane]) {
		return nil, 0, false
	}
	return fb.Planes[plane][offset:], stride, true
}

func quadrants(x0, y0, half int) [4][2]int {
	return [4][2]int{
		{x0, y0}, {x0 + half, y0}, {x0, y0 + half}, {x0 + half, y0 + half},
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// readPartitionSymbol decodes the partition symbol at (level,c), or its
// forced one-bit/implicit form when the block runs off the bottom or
// right frame edge (§4.3.1).
func (e *Engine) readPartitionSymbol(rng *rangecoder.Decoder, probCtx *prob.Context, counts *prob.Counts, level, c int, hasCols, hasRows bool) (Partition, error) {
	probs := probCtx.Partition[level][c][:]
	cnts := &counts.Partition[level][c]

	switch {
	case hasRows && hasCols:
		// Walked manually (rather than via rangecoder.ReadTree) so that
		// each internal node's observed bit is counted for adaptation,
		// matching the partitionTree shape node-for-node.
		bit0, err := rng.ReadBool(probs[0])
		if err != nil {
			return 0, err
		}
		cnts[0].Observe(bit0)
		if bit0 == 0 {
			return PartitionNone, nil
		}
		bit1, err := rng.ReadBool(probs[1])
		if err != nil {
			return 0, err
		}
		cnts[1].Observe(bit1)
		if bit1 == 0 {
			return PartitionHorz, nil
		}
		bit2, err := rng.ReadBool(probs[2])
		if err != nil {
			return 0, err
		}
		cnts[2].Observe(bit2)
		if bit2 == 0 {
			return PartitionVert, nil
		}
		return PartitionSplit, nil
	case hasCols:
		bit, err := rng.ReadBool(probs[1])
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			return PartitionSplit, nil
		}
		return PartitionHorz, nil
	case hasRows:
		bit, err := rng.ReadBool(probs[2])
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			return PartitionSplit, nil
		}
		return PartitionVert, nil
	default:
		return PartitionSplit, nil
	}
}
