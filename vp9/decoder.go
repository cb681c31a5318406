/*
DESCRIPTION
  decoder.go wires the Bitstream Reader, Frame Director, Block Engine,
  Reference Pool and DSP Capability into the top-level entrypoint
  described in spec.md §2's dependency order: a frame comes in as one
  access unit, is split into its constituent coded frames by package
  superframe when it carries a superframe index (§6.2), and each coded
  frame is driven through frame.Director against a block.Engine, the
  way cmd/rv's probe.go wires codec/jpeg's lexer to its own frame
  source rather than the lexer owning its own I/O.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vp9 assembles the decode core's components into the VP9
// access-unit decode entrypoint.
package vp9

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
	"github.com/ausocean/vcore/refpool"
	"github.com/ausocean/vcore/superframe"
	"github.com/ausocean/vcore/verr"
)

// Options configures a Decoder, in the revid/config.Config spirit of a
// small typed struct rather than package-level globals (SPEC_FULL.md,
// "Configuration").
type Options struct {
	// Capability overrides the DSP function table; nil selects
	// dsp.Reference().
	Capability *dsp.Capability
}

// Decoder decodes a sequence of VP9 access units, each of which may
// itself carry more than one coded frame under a superframe index.
type Decoder struct {
	log      logging.Logger
	pool     *refpool.Pool
	director *frame.Director
	engine   *block.Engine
}

// NewDecoder returns a Decoder backed by a fresh reference pool and
// frame director. log must be non-nil (SPEC_FULL.md, "Logging").
func NewDecoder(log logging.Logger, opts Options) *Decoder {
	caps := opts.Capability
	if caps == nil {
		caps = dsp.Reference()
	}
	pool := refpool.New()
	return &Decoder{
		log:      log,
		pool:     pool,
		director: frame.NewDirector(pool, log),
		engine:   block.NewEngine(caps, pool, 0, 0),
	}
}

// Decode runs every coded frame in one access unit through the decode
// pipeline in order, returning one Result per coded frame.
func (d *Decoder) Decode(ctx context.Context, accessUnit []byte) ([]*frame.Result, error) {
	frames, err := superframe.Split(accessUnit)
	if err != nil {
		return nil, errors.Wrap(err, "vp9: split superframe")
	}

	results := make([]*frame.Result, 0, len(frames))
	for i, payload := range frames {
		d.log.Debug("decoding coded frame", "index", i, "bytes", len(payload))
		br := bits.NewBitReader(bytes.NewReader(payload))
		res, err := d.director.DecodeFrame(ctx, br, payload, d.engine, splitTiles)
		if err != nil {
			return results, errors.Wrapf(err, "vp9: decode frame %d", i)
		}
		results = append(results, res)
	}
	return results, nil
}

// splitTiles implements frame.Director's tileSplitter: it walks the
// tile grid in raster order, reading a 4-byte big-endian size prefix
// ahead of every tile but the last in the grid, which instead consumes
// whatever bytes remain (§4.2, "tile decode orchestration").
func splitTiles(hdr *frame.Header, payload []byte) ([]frame.Tile, error) {
	if hdr.CompressedHeaderSize > len(payload) {
		return nil, errors.Wrap(verr.ErrShortBitstream, "vp9: compressed header longer than payload")
	}
	data := payload[hdr.CompressedHeaderSize:]

	cols := 1 << uint(hdr.TileCols)
	rows := 1 << uint(hdr.TileRows)

	tiles := make([]frame.Tile, 0, cols*rows)
	offset := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			last := r == rows-1 && c == cols-1

			var size int
			if last {
				size = len(data) - offset
			} else {
				if offset+4 > len(data) {
					return nil, errors.Wrap(verr.ErrShortBitstream, "vp9: tile size prefix")
				}
				size = int(binary.BigEndian.Uint32(data[offset : offset+4]))
				offset += 4
			}
			if size < 0 || offset+size > len(data) {
				return nil, errors.Wrap(verr.ErrShortBitstream, "vp9: tile data")
			}

			tiles = append(tiles, frame.Tile{Col: c, Row: r, Data: data[offset : offset+size]})
			offset += size
		}
	}
	return tiles, nil
}
