/*
DESCRIPTION
  rangecoder.go implements the adaptive binary range decoder specified in
  §4.1 of the specification: a (low, range, value) triple renormalized so
  that range stays in [128,255], parameterized per-read by an 8-bit
  probability. This plays the role codec/h264/h264dec/cabac.go's CABAC
  engine plays for H.264 macroblock syntax, but the renormalization rule
  itself is the simpler byte-oriented one these block-transform codecs
  share (VP8/VP9/VC-1 all use a variant of it), rather than CABAC's
  range-table-driven renormalization — so the table-driven pieces of
  cabac.go (rangeTabLPS, stateTransxTab) are not reused here; Clip3 is.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package rangecoder implements the adaptive binary range decoder shared
// by every block-transform codec flavor in the core (§4.1).
package rangecoder

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/verr"
)

// Decoder is a binary arithmetic (boolean range) decoder. Probabilities
// passed to ReadBool must lie in [1,255]; callers must clamp before
// calling, per invariant in §4.1 — 0 and 256 are not representable.
type Decoder struct {
	br    *bits.BitReader
	value uint32
	rng   uint32
	count int
}

// NewDecoder initializes a range decoder over br, priming its two-byte
// value window.
func NewDecoder(br *bits.BitReader) (*Decoder, error) {
	d := &Decoder{br: br, rng: 255}
	hi, err := d.nextByte()
	if err != nil {
		return nil, errors.Wrap(err, "could not prime range decoder")
	}
	lo, err := d.nextByte()
	if err != nil {
		return nil, errors.Wrap(err, "could not prime range decoder")
	}
	d.value = uint32(hi)<<8 | uint32(lo)
	return d, nil
}

// nextByte reads one byte from the bitstream, zero-padding past the end
// of the compressed partition — the trailing bits of a boolean-coded
// partition are not meaningful and real encoders do not guarantee they
// are present.
func (d *Decoder) nextByte() (byte, error) {
	b, err := d.br.ReadBits(8)
	if err != nil {
		if errors.Cause(err) == verr.ErrShortBitstream {
			return 0, nil
		}
		return 0, err
	}
	return byte(b), nil
}

// ReadBool decodes one binary symbol at probability prob (the
// probability, out of 256, that the symbol is 0).
func (d *Decoder) ReadBool(prob uint8) (int, error) {
	split := 1 + (((d.rng - 1) * uint32(prob)) >> 8)
	bigSplit := split << 8

	var bit int
	if d.value >= bigSplit {
		bit = 1
		d.rng -= split
		d.value -= bigSplit
	} else {
		bit = 0
		d.rng = split
	}

	for d.rng < 128 {
		d.value <<= 1
		d.rng <<= 1
		d.count++
		if d.count == 8 {
			d.count = 0
			b, err := d.nextByte()
			if err != nil {
				return 0, errors.Wrap(err, "could not renormalize range decoder")
			}
			d.value |= uint32(b)
		}
	}
	return bit, nil
}

// ReadFlag reads one unbiased (probability 128) bit.
func (d *Decoder) ReadFlag() (int, error) {
	return d.ReadBool(128)
}

// ReadLiteral reads n unbiased bits, most-significant-bit first, and
// returns them packed into an int — used for fixed-width fields carried
// inside the boolean-coded payload (e.g. compressed-header literals).
func (d *Decoder) ReadLiteral(n int) (int, error) {
	v := 0
	for i := 0; i < n; i++ {
		b, err := d.ReadFlag()
		if err != nil {
			return 0, err
		}
		v = v<<1 | b
	}
	return v, nil
}

// ReadSigned reads an n-bit magnitude followed by a sign flag (1 means
// negative), the common encoding for signed delta fields in the
// compressed header.
func (d *Decoder) ReadSigned(n int) (int, error) {
	v, err := d.ReadLiteral(n)
	if err != nil {
		return 0, err
	}
	sign, err := d.ReadFlag()
	if err != nil {
		return 0, err
	}
	if sign == 1 {
		return -v, nil
	}
	return v, nil
}

// ReadMarker reads one unbiased bit and fails with verr.ErrMarkerBitSet
// unless it is zero.
func (d *Decoder) ReadMarker() error {
	b, err := d.ReadFlag()
	if err != nil {
		return err
	}
	if b != 0 {
		return verr.ErrMarkerBitSet
	}
	return nil
}

// ReadTree decodes one symbol from a binary tree encoded the way VP9's
// mode/partition trees are: tree is a flat array of int8 pairs where a
// non-positive entry -v means "leaf, symbol v" and a positive entry is
// the index of the next pair to branch to. probs holds one probability
// per internal tree node, indexed by node>>1.
func (d *Decoder) ReadTree(tree []int8, probs []uint8) (int, error) {
	i := 0
	for {
		bit, err := d.ReadBool(probs[i>>1])
		if err != nil {
			return 0, err
		}
		node := tree[i+bit]
		if node <= 0 {
			return int(-node), nil
		}
		i = int(node)
	}
}
