/*
DESCRIPTION
  decode.go is the intra-only reconstruction loop: one macroblock per
  DIF block, a DC coefficient followed by the dvac.go AC cascade per
  macroblock's luma 8x8 anchor block, read and reconstructed the way
  dv.c's dv_decode_video_segment packs a 9-bit DC value per block
  (put_bits(pb, 9, ...)) ahead of dv_decode_ac's run/level cascade.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dvintra

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/refpool"
)

// dcBits is the width of the packed DC code dv.c's encoder emits per
// block (put_bits(pb, 9, ...)).
const dcBits = 9

// blockDim is the DV macroblock's luma anchor block edge length; DV's
// DCT blocks are always 8x8 (dv.c's get_pixels/idct operate on an 8x8
// DCTELEM block).
const blockDim = 8

// Decoder reconstructs DV intra frames using the reference pool for
// output storage and a DSP Capability for the DC predict/inverse
// transform pair, the way package vp9's Decoder wires the same two
// packages around package frame and package block. dvintra needs
// neither: there is one tile, one frame context, and no inter
// prediction, so its decode loop drives the DSP Capability directly.
type Decoder struct {
	caps *dsp.Capability
	pool *refpool.Pool
}

// NewDecoder returns a Decoder using caps, or dsp.Reference() if caps is
// nil.
func NewDecoder(caps *dsp.Capability) *Decoder {
	if caps == nil {
		caps = dsp.Reference()
	}
	return &Decoder{caps: caps, pool: refpool.New()}
}

// Decode reconstructs one DV frame's luma plane from br, positioned
// immediately after the header packs ParseHeader consumed, walking
// every video segment's five macroblocks in MacroblockOrder. Each
// macroblock reconstructs a single 8x8 luma block at its MacroblockOrder
// position, so only SegmentCount()*MacroblocksPerSegment blocks of the
// plane are written; the other samples keep the values the buffer held
// when it was acquired.
func (d *Decoder) Decode(br *bits.BitReader, hdr *Header) (*refpool.FrameBuffer, error) {
	fb, err := d.pool.AcquireBuffer(refpool.Layout{
		Width:  macroblocksWide * blockDim,
		Height: macroblocksHigh(hdr.System) * blockDim,
	})
	if err != nil {
		return nil, errors.Wrap(err, "dvintra: acquire frame buffer")
	}

	for segment := 0; segment < hdr.SegmentCount(); segment++ {
		order, err := hdr.MacroblockOrder(segment)
		if err != nil {
			d.pool.Release(fb)
			return nil, err
		}
		for _, pos := range order {
			if err := d.decodeMacroblock(br, fb, pos); err != nil {
				d.pool.Release(fb)
				return nil, errors.Wrapf(err, "dvintra: segment %d", segment)
			}
		}
	}
	return fb, nil
}

func (d *Decoder) decodeMacroblock(br *bits.BitReader, fb *refpool.FrameBuffer, pos Position) error {
	code, err := br.ReadBits(dcBits)
	if err != nil {
		return errors.Wrap(err, "read dc")
	}

	coef := [blockCoefs]int32{0: dcToResidual(code)}
	if err := decodeACCoefs(br, &coef); err != nil {
		return errors.Wrap(err, "decode ac")
	}
	stride := fb.Strides[0]
	if pos.Col*blockDim+blockDim > stride {
		return errors.Wrap(errShortPlane, "macroblock column out of frame bounds")
	}
	offset := pos.Row*blockDim*stride + pos.Col*blockDim
	if offset < 0 || offset+(blockDim-1)*stride+blockDim > len(fb.Planes[0]) {
		return errors.Wrap(errShortPlane, "macroblock position out of frame bounds")
	}
	dst := fb.Planes[0][offset:]

	predict := d.caps.IntraPredict[dsp.Tx8x8][0]
	predict(dst, stride, nil, nil)

	itxfm := d.caps.InverseTransform[dsp.Tx8x8][dsp.DCTDCT]
	itxfm(dst, stride, coef[:], 1)
	return nil
}

// dcToResidual undoes dv.c's DC packing
// (((mb[0] >> 3) - 1024 + 2) >> 2), recovering a signed residual
// centered on zero from the 9-bit unsigned code on the wire.
func dcToResidual(code uint64) int32 {
	return (int32(code) << 2) - 512
}

var errShortPlane = errors.New("dvintra: short plane buffer")
