/*
DESCRIPTION
  frametype.go implements the VC-1 frame-type disambiguation described
  in §4.2.2: the three-bit field-type tag used in field-picture mode,
  BI-as-B-without-motion-vectors handling, and the rotating
  intensity-compensation LUT triple a just-decoded field hands to the
  next P-field.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vc1 carries the VC-1-specific slice of the Frame Director:
// frame/field-type disambiguation and intensity-compensation LUT
// bookkeeping. Bitstream reading, block decode, reference pooling, and
// DSP dispatch are shared with the VP9 path via packages bits,
// rangecoder, block, refpool, and dsp.
package vc1

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/verr"
)

// PictureType enumerates the four VC-1 coded picture types (§4.2.2).
type PictureType int

const (
	PictureI PictureType = iota
	PictureP
	PictureB
	PictureBI
)

func (p PictureType) String() string {
	switch p {
	case PictureI:
		return "I"
	case PictureP:
		return "P"
	case PictureB:
		return "B"
	case PictureBI:
		return "BI"
	default:
		return "unknown"
	}
}

// fieldTypeTable maps the three-bit field-type tag (FPTYPE) to the
// (first field, second field) picture types, per the VC-1 field-picture
// coding table referenced in §4.2.2.
var fieldTypeTable = [8][2]PictureType{
	{PictureI, PictureI},
	{PictureI, PictureP},
	{PictureP, PictureI},
	{PictureP, PictureP},
	{PictureB, PictureB},
	{PictureB, PictureBI},
	{PictureBI, PictureB},
	{PictureBI, PictureBI},
}

// FieldPair holds the two picture types decoded from one three-bit
// field-type tag.
type FieldPair struct {
	First, Second PictureType
}

// ReadFieldType consumes the three-bit field-type tag and returns the
// pair of picture types it designates.
func ReadFieldType(br *bits.BitReader) (FieldPair, error) {
	tag, err := br.ReadBits(3)
	if err != nil {
		return FieldPair{}, err
	}
	pair := fieldTypeTable[tag]
	return FieldPair{First: pair[0], Second: pair[1]}, nil
}

// IsBWithoutMVs reports whether p is coded without motion vectors,
// which holds exactly for BI pictures: a BI picture decodes as a B
// picture with bi_type=1 and carries no motion vectors at all (§4.2.2).
func (p PictureType) IsBWithoutMVs() bool { return p == PictureBI }

// IntensityCompLUT holds the per-field luma and chroma intensity
// compensation scaling tables used by P-field intensity compensation.
type IntensityCompLUT struct {
	Luma   [256]uint8
	Chroma [256]uint8
}

// LUTRotation is the rotating (last, next, current) triple of
// intensity-compensation LUTs a VC-1 field decoder preserves so that a
// P-field may reference the just-decoded field's tables (§4.2.2).
type LUTRotation struct {
	Last, Next, Current *IntensityCompLUT
}

// Advance rotates the triple after a field finishes decoding: the field
// that was "current" becomes "last", "next" becomes "current", and a
// fresh table is installed as "next".
func (r *LUTRotation) Advance() {
	r.Last = r.Current
	r.Current = r.Next
	r.Next = &IntensityCompLUT{}
}

// BuildIntensityCompLUT fills lut from the signaled intensity
// compensation coefficient pair (lumscale, lumshift), computed the way
// the VC-1 annex defines: out[i] = clip(((i * lumscale) >> 6) +
// lumshift, 0, 255).
func BuildIntensityCompLUT(lumScale, lumShift int) *IntensityCompLUT {
	lut := &IntensityCompLUT{}
	for i := 0; i < 256; i++ {
		v := (i*lumScale)>>6 + lumShift
		lut.Luma[i] = clip255(v)
		lut.Chroma[i] = clip255(v)
	}
	return lut
}

func clip255(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ValidateReferenceSlots checks the §3.2 invariant 7 constraint for a
// B-frame's two reference indices: they must name distinct slots.
func ValidateReferenceSlots(a, b int) error {
	if a == b {
		return errors.Wrap(verr.ErrRefUnavailable, "vc1: B-frame reference indices must be distinct")
	}
	return nil
}
