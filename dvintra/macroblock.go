/*
DESCRIPTION
  macroblock.go computes the five-macroblock position list for a DIF
  video segment, the decode-side counterpart of
  original_source/libavcodec/dv.c's dv_decode_mt, which looks up
  &s->sys->video_place[slice*5] and hands those five (mb_x, mb_y)
  positions to dv_decode_video_segment in order. The real video_place
  tables are per-system constant layouts (IEC 61834 annex tables) baked
  into libavcodec's dvdata.c, which original_source does not carry; this
  derives an equivalent deterministic raster-with-offset order from the
  frame geometry instead of reproducing that constant table verbatim
  (DESIGN.md has the open-question note).

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

	"github.com/ausocean/vcore/verr"
)

// MacroblocksPerSegment is fixed by the DV DIF block layout: one video
// segment occupies 5 DIF blocks of 80 bytes, one macroblock per block.
const MacroblocksPerSegment = 5

// macroblocksWide is the macroblock-grid width dv.c assumes for its
// 4:1:1/4:2:0 macroblock layout (720 luma samples wide, 8 samples per
// macroblock column).
const macroblocksWide = 720 / 8

// Position is a macroblock's column, row location in the macroblock
// grid (dv.c's packed v = mb_x | (mb_y << 8) read apart).
type Position struct {
	Col, Row int
}

// MacroblockOrder returns the MacroblocksPerSegment macroblock positions
// a segment's five DIF blocks reconstruct into, in DIF-block order. apt
// does not change this order (see Header.APT); only the segment index
// and system do, because the two systems differ in macroblock-grid
// height (dv.c: picture height varies with dsf, width does not).
func (h *Header) MacroblockOrder(segment int) ([MacroblocksPerSegment]Position, error) {
	var order [MacroblocksPerSegment]Position
	total := h.SegmentCount()
	if segment < 0 || segment >= total {
		return order, errors.Wrapf(verr.ErrBadScale, "dvintra: segment %d out of range [0,%d)", segment, total)
	}

	rowsHigh := macroblocksHigh(h.System)
	base := segment * MacroblocksPerSegment
	for i := 0; i < MacroblocksPerSegment; i++ {
		idx := base + i
		order[i] = Position{
			Col: idx % macroblocksWide,
			Row: (idx / macroblocksWide) % rowsHigh,
		}
	}
	return order, nil
}

// macroblocksHigh gives the macroblock-grid height dv.c's two profiles
// use: 480 active luma lines for the 525-line system, 576 for the
// 625-line system, each divided into 8-line macroblock rows.
func macroblocksHigh(sys System) int {
	switch sys {
	case System625:
		return 576 / 8
	default:
		return 480 / 8
	}
}
