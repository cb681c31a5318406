/*
DESCRIPTION
  header.go parses the VP9 uncompressed frame header bit-exactly in the
  field order given by §6.1, the way codec/h264/h264dec/sps.go and
  pps.go walk a fixed field sequence off a bits.BitReader and assemble
  it into a plain struct.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package frame implements the Frame Director (§4.2): uncompressed and
// compressed header parsing, per-frame state setup, tile-decode
// orchestration, and end-of-frame actions (probability adaptation and
// reference-slot refresh).
package frame

import (
	"github.com/pkg/errors"

	"github.com/ausocean/vcore/bits"
	"github.com/ausocean/vcore/verr"
)

// frameMarker is the required leading two-bit pattern of every VP9
// frame (§6.1 step 1).
const frameMarker = 0b10

// syncCode is the 24-bit keyframe sync pattern (§6.1 step 5).
const syncCode = 0x498342

// ColorSpace enumerates the 3-bit color-space tag read on keyframes.
type ColorSpace int

const (
	ColorSpaceUnknown ColorSpace = iota
	ColorSpaceBT601
	ColorSpaceBT709
	ColorSpaceSMPTE170
	ColorSpaceSMPTE240
	ColorSpaceBT2020
	ColorSpaceReserved
	ColorSpaceRGB
)

// LoopFilterDeltas holds the per-reference and per-mode loop-filter
// adjustment values (§3.1, §6.1 step 8).
type LoopFilterDeltas struct {
	Enabled    bool
	Updated    bool
	RefDelta   [4]int8
	ModeDelta  [2]int8
}

// SegmentFeature holds the per-segment quantizer/loop-filter/skip/
// reference overrides a segmentation map entry can carry.
type SegmentFeature struct {
	AltQEnabled  bool
	AltQ         int8
	AltLEnabled  bool
	AltL         int8
	RefEnabled   bool
	Ref          int
	SkipEnabled  bool
}

// Segmentation holds the §6.1 segmentation header fields.
type Segmentation struct {
	Enabled        bool
	UpdateMap      bool
	TreeProbs      [7]uint8
	TemporalUpdate bool
	PredProbs      [3]uint8
	AbsOrDeltaQ    bool
	Features       [8]SegmentFeature
}

// Header holds the parsed contents of one coded frame's uncompressed
// header (§3.1, "Frame header").
type Header struct {
	Profile          int
	ShowExistingFrame bool
	ExistingFrameSlot int

	IsKeyFrame     bool
	ShowFrame      bool
	ErrorResilient bool
	IntraOnly      bool
	ResetFrameCtx  int

	ColorSpace     ColorSpace
	ColorRangeFull bool
	SubsamplingX   int
	SubsamplingY   int
	BitDepth       int

	Width, Height           int
	RenderWidth, RenderHeight int

	RefreshMask   uint8
	RefSlot       [3]int
	RefSignBias   [3]bool
	RefFrameSizeFromSlot [3]bool

	HighPrecisionMVs bool
	InterpFilter     int // 4 means switchable

	RefreshContext bool
	ParallelMode   bool
	FrameContextID int

	LoopFilterLevel    int
	LoopFilterSharpness int
	LoopFilter         LoopFilterDeltas

	BaseQIdx int
	DeltaQYDC, DeltaQUVDC, DeltaQUVAC int8

	Segmentation Segmentation

	TileCols, TileRows int // log2

	CompressedHeaderSize int
}

// ParseUncompressedHeader reads one frame's uncompressed header from br,
// following the exact bit order of §6.1. refSizes supplies the
// (width,height) of each of the 8 reference slots, used to resolve the
// "same size as a prior reference" shortcut fields.
func ParseUncompressedHeader(br *bits.BitReader, refSizes [8][2]int) (*Header, error) {
	h := &Header{}

	marker, err := br.ReadBits(2)
	if err != nil {
		return nil, err
	}
	if marker != frameMarker {
		return nil, errors.Wrap(verr.ErrBadMarker, "frame marker")
	}

	loBit, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	hiBit, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	h.Profile = int(hiBit)<<1 | int(loBit)
	if h.Profile == 3 {
		if _, err := br.ReadBits(1); err != nil { // reserved zero bit
			return nil, err
		}
	}

	showExisting, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	if showExisting == 1 {
		slot, err := br.ReadBits(3)
		if err != nil {
			return nil, err
		}
		h.ShowExistingFrame = true
		h.ExistingFrameSlot = int(slot)
		return h, nil
	}

	notKey, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	h.IsKeyFrame = notKey == 0

	showFrame, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	h.ShowFrame = showFrame == 1

	errRes, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	h.ErrorResilient = errRes == 1

	if h.IsKeyFrame {
		if err := h.parseKeyframeColorConfig(br); err != nil {
			return nil, err
		}
		if err := h.parseFrameSize(br); err != nil {
			return nil, err
		}
		h.RefreshMask = 0xFF
	} else {
		if !h.ShowFrame {
			intraOnly, err := br.ReadBits(1)
			if err != nil {
				return nil, err
			}
			h.IntraOnly = intraOnly == 1
		}
		if !h.ErrorResilient {
			resetCtx, err := br.ReadBits(2)
			if err != nil {
				return nil, err
			}
			h.ResetFrameCtx = int(resetCtx)
		}
		if h.IntraOnly {
			if h.Profile > 0 {
				if err := h.parseKeyframeColorConfig(br); err != nil {
					return nil, err
				}
			} else {
				h.ColorSpace = ColorSpaceBT601
				h.SubsamplingX, h.SubsamplingY = 1, 1
				h.BitDepth = 8
			}
			refreshMask, err := br.ReadBits(8)
			if err != nil {
				return nil, err
			}
			h.RefreshMask = uint8(refreshMask)
			if err := h.parseFrameSize(br); err != nil {
				return nil, err
			}
		} else {
			h.BitDepth = 8
			h.ColorSpace = ColorSpaceBT601
			h.SubsamplingX, h.SubsamplingY = 1, 1

			refreshMask, err := br.ReadBits(8)
			if err != nil {
				return nil, err
			}
			h.RefreshMask = uint8(refreshMask)

			for i := 0; i < 3; i++ {
				slot, err := br.ReadBits(3)
				if err != nil {
					return nil, err
				}
				sign, err := br.ReadBits(1)
				if err != nil {
					return nil, err
				}
				h.RefSlot[i] = int(slot)
				h.RefSignBias[i] = sign == 1
			}
			for i := 0; i < 3; i++ {
				fromSlot, err := br.ReadBits(1)
				if err != nil {
					return nil, err
				}
				h.RefFrameSizeFromSlot[i] = fromSlot == 1
				if h.RefFrameSizeFromSlot[i] {
					w, hh := refSizes[h.RefSlot[i]][0], refSizes[h.RefSlot[i]][1]
					h.Width, h.Height = w, hh
					break
				}
			}
			if h.Width == 0 || h.Height == 0 {
				if err := h.parseFrameSize(br); err != nil {
					return nil, err
				}
			}

			hp, err := br.ReadBits(1)
			if err != nil {
				return nil, err
			}
			h.HighPrecisionMVs = hp == 1

			switchable, err := br.ReadBits(1)
			if err != nil {
				return nil, err
			}
			if switchable == 1 {
				h.InterpFilter = 4
			} else {
				filt, err := br.ReadBits(2)
				if err != nil {
					return nil, err
				}
				h.InterpFilter = int(filt)
			}
		}
	}

	refreshCtx, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	h.RefreshContext = refreshCtx == 1

	parallel, err := br.ReadBits(1)
	if err != nil {
		return nil, err
	}
	h.ParallelMode = parallel == 1

	ctxID, err := br.ReadBits(2)
	if err != nil {
		return nil, err
	}
	h.FrameContextID = int(ctxID)

	if err := h.parseLoopFilterParams(br); err != nil {
		return nil, err
	}
	if err := h.parseQuantizationParams(br); err != nil {
		return nil, err
	}
	if err := h.parseSegmentation(br); err != nil {
		return nil, err
	}
	if err := h.parseTileInfo(br); err != nil {
		return nil, err
	}

	sz, err := br.ReadBits(16)
	if err != nil {
		return nil, err
	}
	h.CompressedHeaderSize = int(sz)

	if _, err := br.AlignToByte(); err != nil {
		return nil, err
	}
	if err := br.ReadMarker(); err != nil {
		return nil, err
	}

	return h, nil
}

func (h *Header) parseKeyframeColorConfig(br *bits.BitReader) error {
	sync, err := br.ReadBits(24)
	if err != nil {
		return err
	}
	if sync != syncCode {
		return errors.Wrap(verr.ErrBadSyncCode, "keyframe sync code")
	}

	if h.Profile >= 2 {
		depth, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		if depth == 1 {
			h.BitDepth = 12
		} else {
			h.BitDepth = 10
		}
	} else {
		h.BitDepth = 8
	}

	cs, err := br.ReadBits(3)
	if err != nil {
		return err
	}
	h.ColorSpace = ColorSpace(cs)

	if h.ColorSpace != ColorSpaceRGB {
		rng, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		h.ColorRangeFull = rng == 1
		if h.Profile == 1 || h.Profile == 3 {
			sx, err := br.ReadBits(1)
			if err != nil {
				return err
			}
			sy, err := br.ReadBits(1)
			if err != nil {
				return err
			}
			h.SubsamplingX, h.SubsamplingY = int(sx), int(sy)
			if _, err := br.ReadBits(1); err != nil { // reserved zero bit
				return err
			}
		} else {
			h.SubsamplingX, h.SubsamplingY = 1, 1
		}
	} else {
		h.ColorRangeFull = true
		h.SubsamplingX, h.SubsamplingY = 0, 0
		if h.Profile == 1 || h.Profile == 3 {
			if _, err := br.ReadBits(1); err != nil { // reserved zero bit
				return err
			}
		}
	}
	return nil
}

func (h *Header) parseFrameSize(br *bits.BitReader) error {
	w, err := br.ReadBits(16)
	if err != nil {
		return err
	}
	hh, err := br.ReadBits(16)
	if err != nil {
		return err
	}
	h.Width = int(w) + 1
	h.Height = int(hh) + 1

	hasRenderSize, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	if hasRenderSize == 1 {
		rw, err := br.ReadBits(16)
		if err != nil {
			return err
		}
		rh, err := br.ReadBits(16)
		if err != nil {
			return err
		}
		h.RenderWidth = int(rw) + 1
		h.RenderHeight = int(rh) + 1
	} else {
		h.RenderWidth, h.RenderHeight = h.Width, h.Height
	}
	return nil
}

func readSignedDelta(br *bits.BitReader, n int) (int8, error) {
	present, err := br.ReadBits(1)
	if err != nil {
		return 0, err
	}
	if present == 0 {
		return 0, nil
	}
	mag, err := br.ReadBits(n)
	if err != nil {
		return 0, err
	}
	sign, err := br.ReadBits(1)
	if err != nil {
		return 0, err
	}
	v := int8(mag)
	if sign == 1 {
		v = -v
	}
	return v, nil
}

func (h *Header) parseLoopFilterParams(br *bits.BitReader) error {
	level, err := br.ReadBits(6)
	if err != nil {
		return err
	}
	h.LoopFilterLevel = int(level)

	sharp, err := br.ReadBits(3)
	if err != nil {
		return err
	}
	h.LoopFilterSharpness = int(sharp)

	enabled, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	h.LoopFilter.Enabled = enabled == 1
	if !h.LoopFilter.Enabled {
		return nil
	}

	updated, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	h.LoopFilter.Updated = updated == 1
	if !h.LoopFilter.Updated {
		return nil
	}

	for i := 0; i < 4; i++ {
		d, err := readSignedDelta(br, 6)
		if err != nil {
			return err
		}
		h.LoopFilter.RefDelta[i] = d
	}
	for i := 0; i < 2; i++ {
		d, err := readSignedDelta(br, 6)
		if err != nil {
			return err
		}
		h.LoopFilter.ModeDelta[i] = d
	}
	return nil
}

func (h *Header) parseQuantizationParams(br *bits.BitReader) error {
	yac, err := br.ReadBits(8)
	if err != nil {
		return err
	}
	h.BaseQIdx = int(yac)

	d, err := readSignedDelta(br, 4)
	if err != nil {
		return err
	}
	h.DeltaQYDC = d

	d, err = readSignedDelta(br, 4)
	if err != nil {
		return err
	}
	h.DeltaQUVDC = d

	d, err = readSignedDelta(br, 4)
	if err != nil {
		return err
	}
	h.DeltaQUVAC = d

	return nil
}

func (h *Header) parseSegmentation(br *bits.BitReader) error {
	s := &h.Segmentation
	enabled, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	s.Enabled = enabled == 1
	if !s.Enabled {
		return nil
	}

	updateMap, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	s.UpdateMap = updateMap == 1
	if s.UpdateMap {
		for i := range s.TreeProbs {
			present, err := br.ReadBits(1)
			if err != nil {
				return err
			}
			if present == 1 {
				p, err := br.ReadBits(8)
				if err != nil {
					return err
				}
				s.TreeProbs[i] = uint8(p)
			} else {
				s.TreeProbs[i] = 255
			}
		}
		temporal, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		s.TemporalUpdate = temporal == 1
		if s.TemporalUpdate {
			for i := range s.PredProbs {
				present, err := br.ReadBits(1)
				if err != nil {
					return err
				}
				if present == 1 {
					p, err := br.ReadBits(8)
					if err != nil {
						return err
					}
					s.PredProbs[i] = uint8(p)
				} else {
					s.PredProbs[i] = 255
				}
			}
		}
	}

	update, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	if update == 1 {
		absOrDelta, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		s.AbsOrDeltaQ = absOrDelta == 1

		featureBits := [4]int{8, 6, 2, 0}
		featureSigned := [4]bool{true, true, false, false}
		for i := range s.Features {
			f := &s.Features[i]
			for j, nb := range featureBits {
				present, err := br.ReadBits(1)
				if err != nil {
					return err
				}
				if present == 0 {
					continue
				}
				var mag uint64
				var sign uint64
				if nb > 0 {
					mag, err = br.ReadBits(nb)
					if err != nil {
						return err
					}
				}
				if featureSigned[j] {
					sign, err = br.ReadBits(1)
					if err != nil {
						return err
					}
				}
				v := int8(mag)
				if sign == 1 {
					v = -v
				}
				switch j {
				case 0:
					f.AltQEnabled, f.AltQ = true, v
				case 1:
					f.AltLEnabled, f.AltL = true, v
				case 2:
					f.RefEnabled, f.Ref = true, int(mag)
				case 3:
					f.SkipEnabled = true
				}
			}
		}
	}
	return nil
}

func (h *Header) parseTileInfo(br *bits.BitReader) error {
	minLog2, maxLog2 := tileLog2Bounds(h.Width)

	log2Cols := minLog2
	for log2Cols < maxLog2 {
		increment, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		if increment == 0 {
			break
		}
		log2Cols++
	}
	h.TileCols = log2Cols

	log2Rows := 0
	increment, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	if increment == 1 {
		log2Rows = 1
		increment2, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		if increment2 == 1 {
			log2Rows = 2
		}
	}
	h.TileRows = log2Rows
	return nil
}

// tileLog2Bounds computes the minimum and maximum log2 tile-column
// count for a frame of the given width, following the 64x64-superblock
// sizing rule (each tile at least 4 and at most 64 superblocks wide).
func tileLog2Bounds(width int) (minLog2, maxLog2 int) {
	const sbSize = 64
	sbCols := (width + sbSize - 1) / sbSize
	for (sbSize << uint(minLog2)) < sbCols {
		minLog2++
	}
	maxLog2 = 1
	for (sbCols >> uint(maxLog2)) >= 4 {
		maxLog2++
	}
	maxLog2--
	return minLog2, maxLog2
}
