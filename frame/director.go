/*
DESCRIPTION
  director.go implements the Frame Director's per-frame orchestration
  (§4.2): tile layout, end-of-frame probability adaptation and
  reference-slot refresh. Tile decode itself is delegated to a
  TileDecoder supplied by the caller (package vp9 wires this to package
  block), the way revid.go's pipeline stages are wired by its caller
  rather than by the stage itself.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package frame

import (
	"context"

	"github.com/ausocean/utils/logging"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/prob"
	"github.com/ausocean/vcore/refpool"
)

// Tile describes one entropy-coded rectangle's byte range within the
// compressed payload and its position in the tile grid (§4.2, "Tile
// decode orchestration").
type Tile struct {
	Col, Row   int
	Data       []byte
}

// TileDecoder decodes one tile's worth of superblocks, accumulating
// counts into counts for end-of-frame adaptation. Implemented by
// package block.
type TileDecoder interface {
	DecodeTile(ctx context.Context, t Tile, hdr *Header, probCtx *prob.Context, counts *prob.Counts, current *refpool.FrameBuffer) error
}

// FramePreparer is an optional TileDecoder capability: when implemented,
// DecodeFrame calls PrepareFrame once, sequentially, before fanning tile
// columns out across goroutines, so a decoder that sizes its per-frame
// context strips off hdr.Width/Height (package block's Engine) never
// races itself resizing those strips from two tile goroutines at once.
type FramePreparer interface {
	PrepareFrame(hdr *Header)
}

// Director runs the per-frame lifecycle described in §4.2 and §3.3: it
// owns the four probability-context parent slots and drives tile decode
// through a TileDecoder, then performs end-of-frame adaptation and
// reference-slot refresh.
type Director struct {
	log logging.Logger

	pool        *refpool.Pool
	contexts    [prob.NumFrameContexts]*prob.Context
	refSizes    [8][2]int

	sawFirstInterSinceKeyframe bool
}

// NewDirector returns a Director backed by pool, with every
// frame-context slot at its canonical reset state (§4.2 step 1 applies
// this again on every keyframe).
func NewDirector(pool *refpool.Pool, log logging.Logger) *Director {
	d := &Director{pool: pool, log: log}
	for i := range d.contexts {
		d.contexts[i] = prob.Default()
	}
	return d
}

// Result is what DecodeFrame reports back to the caller.
type Result struct {
	Header  *Header
	Output  *refpool.FrameBuffer // nil unless the frame (or the existing slot it names) is visible
	Visible bool
}

// DecodeFrame runs one coded frame through header parse, tile decode,
// and end-of-frame actions. tileSplitter breaks the compressed payload
// (immediately following the uncompressed header) into the tile grid;
// the compressed header is not parsed: DecodeFrame, the tile splitter
// and the TileDecoder all leave its bits uninterpreted, so no
// probability update it carries is applied to the frame's context.
func (d *Director) DecodeFrame(ctx context.Context, br *bits.BitReader, payload []byte, decoder TileDecoder, tileSplitter func(hdr *Header, payload []byte) ([]Tile, error)) (*Result, error) {
	hdr, err := ParseUncompressedHeader(br, d.refSizes)
	if err != nil {
		return nil, err
	}

	if hdr.ShowExistingFrame {
		borrow, err := d.pool.TakeReference(hdr.ExistingFrameSlot)
		if err != nil {
			return nil, err
		}
		defer borrow.Release()
		return &Result{Header: hdr, Output: borrow.Frame(), Visible: true}, nil
	}

	if hdr.IsKeyFrame {
		for i := range d.contexts {
			d.contexts[i] = prob.Default()
		}
		d.sawFirstInterSinceKeyframe = true
	} else if hdr.ResetFrameCtx >= 2 {
		d.contexts[hdr.FrameContextID] = prob.Default()
	} else if hdr.ResetFrameCtx == 1 {
		for i := range d.contexts {
			d.contexts[i] = prob.Default()
		}
	}

	current, err := d.pool.AcquireBuffer(refpool.Layout{
		Width: hdr.Width, Height: hdr.Height,
		SubsamplingX: hdr.SubsamplingX, SubsamplingY: hdr.SubsamplingY,
		BitDepth: hdr.BitDepth,
	})
	if err != nil {
		return nil, err
	}

	if preparer, ok := decoder.(FramePreparer); ok {
		preparer.PrepareFrame(hdr)
	}

	frameCtx := d.contexts[hdr.FrameContextID].Clone()
	var counts prob.Counts

	tiles, err := tileSplitter(hdr, payload)
	if err != nil {
		d.pool.Release(current)
		return nil, err
	}

	if err := d.decodeTiles(ctx, tiles, hdr, frameCtx, &counts, current, decoder); err != nil {
		// §7 propagation policy: the frame is unreferenced; its
		// refresh-mask is suppressed so store_current never runs.
		d.log.Error("tile decode failed, dropping frame", "error", err, "keyframe", hdr.IsKeyFrame)
		d.pool.Release(current)
		return nil, err
	}

	uf := steadyUpdateFactor
	if d.sawFirstInterSinceKeyframe && !hdr.IsKeyFrame {
		uf = firstInterUpdateFactor
		d.sawFirstInterSinceKeyframe = false
	}

	if hdr.RefreshContext && !hdr.ParallelMode {
		frameCtx = frameCtx.Adapt(&counts, uf)
	}
	if hdr.RefreshContext {
		d.contexts[hdr.FrameContextID] = frameCtx
	}

	// §3.2 invariant 2: the refresh-mask bit is applied after adaptation
	// completes, so any slot this frame refreshes carries the adapted
	// probabilities forward only via the frame-context slot above, not
	// via the reference picture itself (probabilities are not embedded
	// per-reference-picture in this build; see DESIGN.md).
	d.pool.StoreCurrent(current, hdr.RefreshMask)
	d.updateRefSizes(hdr)

	result := &Result{Header: hdr, Visible: hdr.ShowFrame}
	if hdr.ShowFrame {
		result.Output = current
	}
	return result, nil
}

const (
	steadyUpdateFactor     = 128
	firstInterUpdateFactor = 112
)

func (d *Director) decodeTiles(ctx context.Context, tiles []Tile, hdr *Header, frameCtx *prob.Context, counts *prob.Counts, current *refpool.FrameBuffer, decoder TileDecoder) error {
	rows := make(map[int][]Tile)
	for _, t := range tiles {
		rows[t.Row] = append(rows[t.Row], t)
	}

	for row := 0; row <= maxRow(tiles); row++ {
		rowTiles := rows[row]
		if len(rowTiles) == 0 {
			continue
		}
		if err := decodeRowParallel(ctx, rowTiles, hdr, frameCtx, counts, current, decoder); err != nil {
			return err
		}
	}
	return nil
}

func maxRow(tiles []Tile) int {
	max := 0
	for _, t := range tiles {
		if t.Row > max {
			max = t.Row
		}
	}
	return max
}

// decodeRowParallel decodes every tile in one tile-row concurrently
// (§5, "Tile-parallel within a single frame"): columns share the
// above-context strips owned by the frame but use independent
// arithmetic-coder state and left-context strips, so no locking is
// needed beyond waiting for every column in the row to finish before
// the next row begins. Each column accumulates into its own local
// Counts, merged into the shared totals only after that column's
// goroutine returns, so concurrent columns never race on the same Pair.
func decodeRowParallel(ctx context.Context, rowTiles []Tile, hdr *Header, frameCtx *prob.Context, counts *prob.Counts, current *refpool.FrameBuffer, decoder TileDecoder) error {
	type result struct {
		counts prob.Counts
		err    error
	}
	results := make(chan result, len(rowTiles))
	for _, t := range rowTiles {
		t := t
		go func() {
			var local prob.Counts
			err := decoder.DecodeTile(ctx, t, hdr, frameCtx, &local, current)
			results <- result{counts: local, err: err}
		}()
	}
	var first error
	for range rowTiles {
		r := <-results
		counts.Merge(&r.counts)
		if r.err != nil && first == nil {
			first = r.err
		}
	}
	return first
}

func (d *Director) updateRefSizes(hdr *Header) {
	for i := 0; i < 8; i++ {
		if hdr.RefreshMask&(1<<uint(i)) != 0 {
			d.refSizes[i][0] = hdr.Width
			d.refSizes[i][1] = hdr.Height
		}
	}
}
