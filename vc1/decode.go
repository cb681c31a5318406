/*
DESCRIPTION
  decode.go wires the VC-1 frame-type disambiguation and
  intensity-compensation bookkeeping (frametype.go) and the entry-point
  header (header.go) into a Decoder that drives the shared Block Engine
  and Reference Pool across one access unit's worth of coded pictures,
  the way vp9.Decoder wires package frame and package block for the VP9
  path. VC-1 has no tile grid, so each picture is handed to the Block
  Engine as a single synthetic tile spanning the whole frame, and there
  is no four-slot frame-context rotation (§3.2 invariant 2 is a VP9-only
  invariant): one prob.Context is carried and adapted across the whole
  access unit.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package vc1

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/block"
	"github.com/ausocean/vcore/dsp"
	"github.com/ausocean/vcore/frame"
	"github.com/ausocean/vcore/prob"
	"github.com/ausocean/vcore/refpool"
	"github.com/ausocean/vcore/verr"
)

// Options configures a Decoder. Width and Height are the sequence-layer
// coded dimensions; VC-1's sequence header lives outside this core's
// bitstream scope (it is container- or RCV-header-carried), so the
// caller supplies them once up front rather than this package parsing
// yet another outer framing layer.
type Options struct {
	Capability    *dsp.Capability
	Width, Height int
}

// Decoder decodes a sequence of VC-1 coded pictures sharing one entry
// point.
type Decoder struct {
	log     logging.Logger
	pool    *refpool.Pool
	engine  *block.Engine
	probCtx *prob.Context

	width, height int

	// luts is the rotating intensity-compensation LUT triple a just
	// decoded P-field hands to the next one (§4.2.2).
	luts LUTRotation

	forwardSlot  int
	backwardSlot int
}

// NewDecoder returns a Decoder backed by a fresh reference pool and
// block engine. log must be non-nil.
func NewDecoder(log logging.Logger, opts Options) *Decoder {
	caps := opts.Capability
	if caps == nil {
		caps = dsp.Reference()
	}
	pool := refpool.New()
	return &Decoder{
		log:          log,
		pool:         pool,
		engine:       block.NewEngine(caps, pool, opts.Width, opts.Height),
		probCtx:      prob.Default(),
		width:        opts.Width,
		height:       opts.Height,
		forwardSlot:  0,
		backwardSlot: 1,
	}
}

// Result is what Decode reports back per coded picture.
type Result struct {
	Picture PictureType
	Output  *refpool.FrameBuffer
	Visible bool
}

const steadyUpdateFactor = 128

// Decode runs every coded picture in one access unit through entry
// header parse, per-picture header parse, block decode, and
// intensity-compensation LUT rotation, in order. Pictures within an
// access unit are length-prefixed (4-byte big-endian size, mirroring
// package superframe's framing) rather than scanned for VC-1 start
// codes, since that scan belongs to the demuxer layer feeding this
// core, not to the core itself.
func (d *Decoder) Decode(ctx context.Context, accessUnit []byte) ([]*Result, error) {
	br := bits.NewBitReader(bytes.NewReader(accessUnit))
	entry, err := ReadEntryHeader(br)
	if err != nil {
		return nil, errors.Wrap(err, "vc1: read entry header")
	}
	d.log.Debug("vc1 entry point", "broken_link", entry.BrokenLink, "closed_entry", entry.ClosedEntry)

	if _, err := br.AlignToByte(); err != nil {
		return nil, errors.Wrap(err, "vc1: align after entry header")
	}
	payload := accessUnit[br.BytesRead():]

	var results []*Result
	for len(payload) > 0 {
		if len(payload) < 4 {
			return results, errors.Wrap(verr.ErrShortBitstream, "vc1: picture size prefix")
		}
		size := int(binary.BigEndian.Uint32(payload[:4]))
		payload = payload[4:]
		if size < 0 || size > len(payload) {
			return results, errors.Wrap(verr.ErrShortBitstream, "vc1: picture payload")
		}
		picPayload := payload[:size]
		payload = payload[size:]

		res, err := d.decodePicture(ctx, picPayload)
		if err != nil {
			return results, errors.Wrap(err, "vc1: decode picture")
		}
		results = append(results, res)
	}
	return results, nil
}

// pictureHeader holds the per-picture fields this decoder reads ahead
// of handing the rest of the picture's bits to the Block Engine.
type pictureHeader struct {
	picType       PictureType
	intensityComp bool
	lumScale      int
	lumShift      int
}

// readPictureHeader reads the picture-type tag and, for a P picture,
// the intensity-compensation flag and scale/shift pair (§4.2.2; field
// widths grounded on the VC-1 annex's INTCOMP signaling).
func readPictureHeader(br *bits.BitReader) (*pictureHeader, error) {
	tag, err := br.ReadBits(2)
	if err != nil {
		return nil, err
	}
	h := &pictureHeader{picType: PictureType(tag)}

	if h.picType == PictureP {
		comp, err := br.ReadBits(1)
		if err != nil {
			return nil, err
		}
		h.intensityComp = comp == 1
		if h.intensityComp {
			scale, err := br.ReadBits(6)
			if err != nil {
				return nil, err
			}
			shift, err := br.ReadBits(6)
			if err != nil {
				return nil, err
			}
			h.lumScale = int(scale)
			h.lumShift = int(shift)
		}
	}
	return h, nil
}

// decodePicture decodes one coded picture: its own small header,
// followed by the macroblock-layer bits handed to the Block Engine as a
// single whole-frame tile.
func (d *Decoder) decodePicture(ctx context.Context, payload []byte) (*Result, error) {
	br := bits.NewBitReader(bytes.NewReader(payload))
	ph, err := readPictureHeader(br)
	if err != nil {
		return nil, errors.Wrap(err, "vc1: read picture header")
	}

	if ph.picType == PictureB {
		if err := ValidateReferenceSlots(d.forwardSlot, d.backwardSlot); err != nil {
			return nil, err
		}
	}

	hdr := d.syntheticHeader(ph)

	current, err := d.pool.AcquireBuffer(refpool.Layout{
		Width: d.width, Height: d.height,
		SubsamplingX: 1, SubsamplingY: 1,
		BitDepth: 8,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vc1: acquire frame buffer")
	}

	if _, err := br.AlignToByte(); err != nil {
		d.pool.Release(current)
		return nil, errors.Wrap(err, "vc1: align picture header")
	}
	rest := payload[br.BytesRead():]

	tile := frame.Tile{Col: 0, Row: 0, Data: rest}
	var counts prob.Counts
	if err := d.engine.DecodeTile(ctx, tile, hdr, d.probCtx, &counts, current); err != nil {
		d.log.Error("vc1: tile decode failed, dropping picture", "error", err, "type", ph.picType.String())
		d.pool.Release(current)
		return nil, err
	}
	d.probCtx = d.probCtx.Adapt(&counts, steadyUpdateFactor)

	refreshMask := hdr.RefreshMask
	if refreshMask != 0 {
		d.pool.StoreCurrent(current, refreshMask)
	}

	if ph.picType == PictureI {
		d.forwardSlot, d.backwardSlot = 0, 1
	}

	if ph.intensityComp {
		lut := BuildIntensityCompLUT(ph.lumScale, ph.lumShift)
		d.luts.Next = lut
		d.luts.Advance()
	}

	return &Result{Picture: ph.picType, Output: current, Visible: true}, nil
}

// syntheticHeader assembles the shared frame.Header the Block Engine
// expects from this picture's VC-1-specific fields: I pictures refresh
// every slot like a VP9 keyframe, P pictures predict single-reference
// from the forward slot, and B pictures predict compound from the
// forward/backward pair with opposite sign bias so the Block Engine's
// existing compound-reference logic (grounded on VP9's sign-bias rule)
// picks them both up without a VC-1-specific branch.
func (d *Decoder) syntheticHeader(ph *pictureHeader) *frame.Header {
	hdr := &frame.Header{
		Width: d.width, Height: d.height,
		SubsamplingX: 1, SubsamplingY: 1,
		BitDepth: 8,
	}
	switch ph.picType {
	case PictureI, PictureBI:
		hdr.IsKeyFrame = true
		hdr.RefreshMask = 0xFF
	case PictureP:
		hdr.RefSlot = [3]int{d.forwardSlot, d.forwardSlot, d.forwardSlot}
		hdr.RefreshMask = 1 << uint(d.forwardSlot^1)
		d.forwardSlot ^= 1
	case PictureB:
		hdr.RefSlot = [3]int{d.forwardSlot, d.forwardSlot, d.backwardSlot}
		hdr.RefSignBias = [3]bool{false, false, true}
	}
	hdr.ShowFrame = true
	hdr.BaseQIdx = 32
	return hdr
}
