/*
DESCRIPTION
  dvac.go decodes each block's AC residual, the counterpart to
  decode.go's DC-only path and dv.c's dv_decode_ac: a cascade of
  (run, level) pairs read off the bitstream and scattered into the
  block along a zigzag scan, stopping at either an end-of-block code or
  a scan position past the last coefficient (DCTSIZE2-1).

  dv_decode_ac's run/level pairs come off a canonical VLC table built at
  init time from dv_vlc_bits/dv_vlc_len/dv_vlc_run/dv_vlc_level, which
  live in libavcodec's dvdata.c; that table is a multi-hundred-entry
  constant the original_source pack does not carry (DESIGN.md has the
  open-question note), so this build codes each (run, level) pair with
  a small fixed-width scheme of its own instead of reproducing dvdata.c
  verbatim: a one-bit end-of-block flag, then a six-bit run and a
  nine-bit signed level when more coefficients follow. The decode loop
  shape (cascade until EOB or scan exhaustion, scatter via the scan
  table) is unchanged from dv.c; no per-position quantization shift is
  applied to the levels.

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
)

// blockCoefs is the number of coefficients in one 8x8 DV DCT block
// (dv.c's DCTELEM block[64]).
const blockCoefs = blockDim * blockDim

// acLevelBits is this build's fixed width for a coded AC level,
// including its sign bit, wide enough to carry the full dequantized
// coefficient range without the escape-code machinery dv_rl2vlc uses
// for out-of-table levels.
const acLevelBits = 9

// acRunBits is this build's fixed width for a coded run length; six
// bits spans the full 0-63 scan distance a run can cover.
const acRunBits = 6

// zigzagScan is the standard 8x8 zigzag scan order dv.c's dv_zigzag[0]
// is built from (idct_permutation composed with ff_zigzag_direct); this
// build carries the direct zigzag only, not dv.c's separate 2-4-8
// field-interlaced scan (dv_zigzag[1]), since no interlaced path is
// modeled here (DESIGN.md).
var zigzagScan = [blockCoefs]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// decodeACCoefs fills block's AC positions by repeatedly reading a
// (run, level) pair and scattering level at scan position pos+run,
// mirroring dv_decode_ac's for(;;) cascade: each pair advances pos by
// run, and the loop stops at either the end-of-block flag or pos
// reaching blockCoefs.
func decodeACCoefs(br *bits.BitReader, block *[blockCoefs]int32) error {
	pos := 1 // position 0 is the DC coefficient, already decoded.
	for pos < blockCoefs {
		eob, err := br.ReadBit()
		if err != nil {
			return errors.Wrap(err, "read eob flag")
		}
		if !eob {
			return nil
		}

		run, err := br.ReadBits(acRunBits)
		if err != nil {
			return errors.Wrap(err, "read run")
		}
		level, err := readSignedLevel(br)
		if err != nil {
			return errors.Wrap(err, "read level")
		}

		pos += int(run)
		if pos >= blockCoefs {
			return nil
		}
		block[zigzagScan[pos]] = level
	}
	return nil
}

// readSignedLevel reads an acLevelBits-wide sign-magnitude level, the
// same sign/magnitude split dv.c's dv_rl2vlc applies its `sign` bit to.
func readSignedLevel(br *bits.BitReader) (int32, error) {
	bitsRead, err := br.ReadBits(acLevelBits)
	if err != nil {
		return 0, err
	}
	sign := bitsRead & 1
	mag := int32(bitsRead >> 1)
	if sign == 1 {
		return -mag, nil
	}
	return mag, nil
}
