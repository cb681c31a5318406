/*
DESCRIPTION
  vlc.go provides construction and lookup of two-level variable-length
  code tables, generalising the coeff_token table-building idiom
  codec/h264/h264dec/cavlc.go used for a single fixed table into a
  reusable primitive usable for any prefix-code alphabet (§4.1).

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package bits

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/verr"
)

// MaxCodeLength bounds the length of any single codeword a VLCTable will
// accept; table construction fails a code that would overflow it.
const MaxCodeLength = 32

// VLCEntry is one (symbol, codeword, length) triple supplied to
// NewVLCTable. Codewords must form a prefix code: no two entries may
// share a prefix of the same length.
type VLCEntry struct {
	Symbol   int
	Codeword uint32
	Length   int
}

// vlcSlot is one first-level table slot: either a resolved (symbol,
// length) pair, or a pointer to a subtable keyed by the next block of
// bits, signalled by length < 0 (with -length giving the already
// consumed prefix length and sub pointing at the subtable).
type vlcSlot struct {
	symbol int
	length int
	sub    *vlcTable
}

type vlcTable struct {
	width int // number of bits this table's index covers.
	slots []vlcSlot
}

// VLCTable is a two-level prefix-code decoding table: a first-level
// 2^k table mapping a k-bit peek to either a resolved symbol or a
// subtable, recursing for codewords longer than k.
type VLCTable struct {
	root *vlcTable
}

// NewVLCTable builds a two-level decoding table from entries, using
// lookupWidth as the first-level peek width k. Construction fails
// (verr.ErrInvalidCode) if two codewords share a prefix of the same
// length, or if a code would require more than MaxCodeLength bits.
func NewVLCTable(entries []VLCEntry, lookupWidth int) (*VLCTable, error) {
	for _, e := range entries {
		if e.Length <= 0 || e.Length > MaxCodeLength {
			return nil, errors.Wrapf(verr.ErrInvalidCode, "entry for symbol %d has invalid length %d", e.Symbol, e.Length)
		}
	}
	root, err := buildLevel(entries, lookupWidth, 0)
	if err != nil {
		return nil, err
	}
	return &VLCTable{root: root}, nil
}

// buildLevel constructs one table level covering `width` bits, for
// entries whose codewords have already had `consumed` bits matched by
// the levels above.
func buildLevel(entries []VLCEntry, width, consumed int) (*vlcTable, error) {
	t := &vlcTable{width: width, slots: make([]vlcSlot, 1<<uint(width))}
	filled := make([]bool, len(t.slots))

	// Partition entries into those that resolve within this level and
	// those that overflow into a subtable, grouped by their next `width`
	// bits of prefix.
	overflow := make(map[uint32][]VLCEntry)

	for _, e := range entries {
		remaining := e.Length - consumed
		if remaining <= width {
			// This codeword resolves within the current level: replicate it
			// into every index whose top `remaining` bits match.
			prefix := bitsAt(e.Codeword, e.Length, consumed, remaining)
			shift := width - remaining
			for fill := 0; fill < (1 << uint(shift)); fill++ {
				idx := (prefix << uint(shift)) | uint32(fill)
				if filled[idx] {
					return nil, errors.Wrapf(verr.ErrInvalidCode, "codeword for symbol %d collides with an existing entry", e.Symbol)
				}
				filled[idx] = true
				t.slots[idx] = vlcSlot{symbol: e.Symbol, length: remaining}
			}
			continue
		}
		key := bitsAt(e.Codeword, e.Length, consumed, width)
		overflow[key] = append(overflow[key], e)
	}

	for key, sub := range overflow {
		if filled[key] {
			return nil, errors.Wrapf(verr.ErrInvalidCode, "subtable prefix %d collides with a resolved entry", key)
		}
		subTable, err := buildLevel(sub, subWidth(sub, consumed+width), consumed+width)
		if err != nil {
			return nil, err
		}
		filled[key] = true
		t.slots[key] = vlcSlot{length: -(consumed + width), sub: subTable}
	}

	return t, nil
}

// subWidth picks the width of a subtable as the longest remaining
// codeword in the group, capped so a single symbol subtable still has a
// table of width 1 rather than 0.
func subWidth(entries []VLCEntry, consumed int) int {
	w := 1
	for _, e := range entries {
		if rem := e.Length - consumed; rem > w {
			w = rem
		}
	}
	return w
}

// bitsAt extracts `want` bits of codeword (itself `length` bits wide,
// MSB-first) starting `consumed` bits in.
func bitsAt(codeword uint32, length, consumed, want int) uint32 {
	shift := length - consumed - want
	return (codeword >> uint(shift)) & ((1 << uint(want)) - 1)
}

// Read consumes exactly the matched prefix from br and returns the
// decoded symbol. It fails with verr.ErrInvalidCode if no codeword
// terminates within MaxCodeLength bits of lookahead.
func (t *VLCTable) Read(br *BitReader) (int, error) {
	table := t.root
	for {
		peek, err := br.PeekBits(table.width)
		if err != nil {
			return 0, errors.Wrap(err, "could not peek for VLC lookup")
		}
		slot := table.slots[peek]
		if slot.sub == nil && slot.length == 0 {
			return 0, errors.Wrap(verr.ErrInvalidCode, "no codeword matched")
		}
		if slot.sub != nil {
			if _, err := br.ReadBits(table.width); err != nil {
				return 0, errors.Wrap(err, "could not consume VLC bits")
			}
			table = slot.sub
			continue
		}
		// The resolved codeword occupies only the top slot.length bits of
		// the width-bit window just peeked; consume exactly that many.
		if _, err := br.ReadBits(slot.length); err != nil {
			return 0, errors.Wrap(err, "could not consume VLC bits")
		}
		return slot.symbol, nil
	}
}
