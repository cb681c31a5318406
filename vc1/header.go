/*
DESCRIPTION
  header.go carries the VC-1 entry-point header fields this core
  propagates without interpreting, per Open Question 3: broken_link and
  closed_entry affect error-recovery semantics the VC-1 spec documents
  only informally, so rather than guess at recovery behavior this stays
  a plain field pair the caller inspects and acts on.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package vc1

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/bits"
)

// Header carries the per-entry-point fields the Frame Director needs
// before it can hand a sequence of VC-1 frames to the Block Engine.
type Header struct {
	// BrokenLink indicates the first frame following this entry point
	// may not be independently decodable (e.g. following a splice
	// point). Propagated, not interpreted (Open Question 3).
	BrokenLink bool
	// ClosedEntry indicates no frame before this entry point is needed
	// to decode frames after it. Propagated, not interpreted.
	ClosedEntry bool
}

// ReadEntryHeader consumes the two one-bit entry-point flags.
func ReadEntryHeader(br *bits.BitReader) (*Header, error) {
	broken, err := br.ReadBits(1)
	if err != nil {
		return nil, errors.Wrap(err, "vc1: read broken_link")
	}
	closed, err := br.ReadBits(1)
	if err != nil {
		return nil, errors.Wrap(err, "vc1: read closed_entry")
	}
	return &Header{BrokenLink: broken != 0, ClosedEntry: closed != 0}, nil
}
