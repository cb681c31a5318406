/*
DESCRIPTION
  header.go parses the DV intra-only header pack: the dsf (525/60 vs
  625/50 system) and apt (audio placement type) flavor bits that the
  libavcodec DV decoder reads off s->sys before it can size a frame or
  walk its DIF segments (original_source/libavcodec/dv.c,
  dv_frame_profile/dvvideo_decode_frame selecting s->sys by frame size
  and pix_fmt). dv.c only distinguishes profiles by decoded frame size;
  this header reads the flavor bits directly off the bitstream the way
  frame.ParseUncompressedHeader reads VP9's uncompressed header fields.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dvintra implements a minimal intra-only DV decode path: header
// flavor bits (dsf, apt) and the DIF segment macroblock ordering they
// select, reusing the Bitstream Reader, DSP Capability, and Reference
// Pool packages rather than a VP9- or VC-1-shaped tile/frame pipeline.
// DV has no inter prediction and no tiling, so it does not need
// package frame's Director or package block's tile-parallel Engine;
// every DV frame is one self-contained intra picture built from fixed
// 8x8 DCT macroblocks.
package dvintra

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/verr"
)

// System distinguishes the two DV broadcast systems, which differ in
// frame rate, active line count, and DIF sequence count per frame.
type System int

const (
	// System525 is the 525-line, 60 field/s system (NTSC).
	System525 System = iota
	// System625 is the 625-line, 50 field/s system (PAL).
	System625
)

// diFSequencesPerFrame gives each system's DIF sequence count (dv.c's
// s->sys->difseg_size is per-sequence segment count; the sequence count
// itself is the other half of the profile table dv.c selects by frame
// size).
var diFSequencesPerFrame = [...]int{
	System525: 10,
	System625: 12,
}

// segmentsPerSequence is the number of video segments per DIF sequence,
// constant across both systems (dv.c: s->sys->difseg_size * 27 bytes of
// the audio pack layout, 27 segments per sequence).
const segmentsPerSequence = 27

// Header carries the per-frame flavor bits that select a DV frame's
// dimensions and DIF segment layout: the system (dsf) and the audio
// placement type (apt), which together with dsf fix how many DIF
// segments compose a frame and the video_place macroblock order within
// each (dv.c: dv_decode_mt indexing s->sys->video_place[slice*5]).
type Header struct {
	System System
	// APT is the three-bit audio placement type carried in the AAUX
	// source pack; it selects audio block interleave and, by extension,
	// which of the fixed video_place tables a segment's five macroblocks
	// draw from. It does not itself reorder macroblocks within a
	// segment; see MacroblockOrder.
	APT uint8
}

// ParseHeader reads a DV header pack's dsf and apt flavor bits. The pack
// is two bytes: dsf in bit 7 of the first (as in dv.c's id-pack byte 3)
// and apt in the top three bits (7:5) of the second, where dv.c's aaux
// source pack holds it in bits 2:0; callers position br at the start
// of that pack before calling.
func ParseHeader(br *bits.BitReader) (*Header, error) {
	dsf, err := br.ReadBits(1)
	if err != nil {
		return nil, errors.Wrap(err, "dvintra: read dsf")
	}
	if _, err := br.ReadBits(7); err != nil { // remainder of the id-pack byte
		return nil, errors.Wrap(err, "dvintra: read id-pack reserved bits")
	}
	apt, err := br.ReadBits(3)
	if err != nil {
		return nil, errors.Wrap(err, "dvintra: read apt")
	}
	if _, err := br.ReadBits(5); err != nil { // remainder of the aaux source-pack byte
		return nil, errors.Wrap(err, "dvintra: read aaux source-pack reserved bits")
	}

	h := &Header{System: System(dsf), APT: uint8(apt)}
	if h.System != System525 && h.System != System625 {
		return nil, errors.Wrap(verr.ErrBadProfile, "dvintra: dsf out of range")
	}
	return h, nil
}

// SegmentCount returns the total number of video segments in a frame of
// this header's system.
func (h *Header) SegmentCount() int {
	return diFSequencesPerFrame[h.System] * segmentsPerSequence
}
