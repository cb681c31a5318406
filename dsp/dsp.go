/*
DESCRIPTION
  dsp.go defines the DSP capability set (§4.5): a fixed table of scalar
  kernel function pointers selected once at init time. The core only
  specifies which kernel a given (transform size, mode) or (block size,
  filter, sub-pel phase) combination selects; it never computes pixels
  itself. A Capability is built once behind a sync.Once, the way
  codec/h264/h264dec/cavlc.go builds its coeff_token table once in an
  init() and treats it as immutable afterward (design note in §9,
  "Table builds happen once").

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dsp defines the opaque scalar-kernel capability set the block
// engine and frame director dispatch into for intra prediction, inverse
// transforms, sub-pixel motion compensation, and loop-filter edge
// filtering (§4.5). The core specifies selection rules only; kernel
// bodies are supplied by a Capability value, and a reference
// pure-Go set is provided for environments with no optimized kernel
// library to hand (tests, the cmd/vcoreprobe harness).
package dsp

import "sync"

// TxSize enumerates the inverse-transform block sizes the core selects
// kernels for size by.
type TxSize int

const (
	Tx4x4 TxSize = iota
	Tx8x8
	Tx16x16
	Tx32x32
	TxLossless
	numTxSizes
)

// TxType enumerates the pair of 1-D transforms applied vertically then
// horizontally (GLOSSARY: Transform type).
type TxType int

const (
	DCTDCT TxType = iota
	ADSTDCT
	DCTADST
	ADSTADST
	numTxTypes
)

// IntraMode enumerates the 15 intra prediction modes addressable by the
// 4xN intra predictor table. Only the first three slots are populated by
// Reference(); the rest are addressable but nil until a richer
// Capability supplies them (DESIGN.md).
type IntraMode int

const (
	DCPred IntraMode = iota
	VPred
	HPred
	numIntraModes = 15
)

// BlockSize enumerates the five motion-compensation block sizes.
type BlockSize int

const (
	Block4x4 BlockSize = iota
	Block8x8
	Block16x16
	Block32x32
	Block64x64
	numBlockSizes
)

// InterpFilter enumerates the four sub-pixel interpolation filter kinds
// (GLOSSARY: Switchable filter).
type InterpFilter int

const (
	FilterEightTap InterpFilter = iota
	FilterEightTapSmooth
	FilterEightTapSharp
	FilterBilinear
	numInterpFilters
)

// EdgeOrientation distinguishes a loop-filter column edge (vertical
// filtering) from a row edge (horizontal filtering).
type EdgeOrientation int

const (
	EdgeColumn EdgeOrientation = iota
	EdgeRow
	numEdgeOrientations
)

// IntraPredictFunc predicts one transform block from its already
// reconstructed left column and top row into dst.
type IntraPredictFunc func(dst []byte, stride int, left, top []byte)

// InverseTransformFunc applies the inverse transform to coef (eob
// nonzero positions significant) and adds the result into dst.
type InverseTransformFunc func(dst []byte, stride int, coef []int32, eob int)

// MCFilterFunc motion-compensates a w x h block from src (already
// positioned at the integer-pel source location) into dst, applying the
// sub-pixel phase (mx,my) in eighth-pel units. avg selects whether the
// result is blended with the existing dst contents (compound
// prediction's second reference, §4.3.4).
type MCFilterFunc func(dst []byte, dstStride int, src []byte, srcStride, w, h, mx, my int, avg bool)

// LoopFilterFunc filters one edge of the given width class.
type LoopFilterFunc func(dst []byte, stride int, mblim, lim, hev uint8)

// Capability is the full set of scalar kernels the block engine and
// frame director dispatch into. The zero value has all slots nil;
// callers must populate it (directly, or via Reference()) before
// decoding.
type Capability struct {
	// IntraPredict[txSize][mode] produces the DSP predict(dst, stride,
	// left, top) call of §4.3.4 step 3.
	IntraPredict [numTxSizes][numIntraModes]IntraPredictFunc

	// InverseTransform[txSize][txType] is itxfm_add of §4.3.4 step 4; the
	// TxLossless row only uses column 0 (the Walsh-Hadamard variant has
	// no ADST counterpart).
	InverseTransform [numTxSizes][numTxTypes]InverseTransformFunc

	// MCFilter[size][filter][subX][subY] is mc[size][filter][avg] of
	// §4.3.4's inter path; subX/subY distinguish whether either sub-pel
	// axis is fractional, letting a kernel set skip interpolation
	// entirely on an integer-pel axis.
	MCFilter [numBlockSizes][numInterpFilters][2][2]MCFilterFunc

	// LoopFilter8[orientation] and LoopFilter16[orientation] are the
	// loop_filter_8/16 edge functions of §4.5; LoopFilterMix additionally
	// filters two adjacent 8-unit edges of possibly different widths in
	// one call.
	LoopFilter8  [numEdgeOrientations]LoopFilterFunc
	LoopFilter16 [numEdgeOrientations]LoopFilterFunc
	LoopFilterMix [numEdgeOrientations]func(dst []byte, stride int, mblim, lim, hev [2]uint8)
}

var (
	reference     *Capability
	referenceOnce sync.Once
)
