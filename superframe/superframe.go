/*
DESCRIPTION
  superframe.go implements the §6.2 superframe index: detecting,
  parsing, splitting, and building the trailing index that packs
  several VP9 frames (typically a visible frame preceded by invisible
  alt-ref frames) into one access unit.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package superframe implements VP9 superframe index parsing and
// construction (§6.2).
package superframe

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ausocean/vcore/verr"
)

const markerTag = 0b110

// indexMarker derives the one-byte marker for nbytes (1..4) and
// nframes (1..8).
func indexMarker(nbytes, nframes int) byte {
	return byte(markerTag<<5) | byte((nbytes-1)<<3) | byte(nframes-1)
}

// IsSuperframe reports whether au's final byte marks it as a
// superframe, per §6.2.
func IsSuperframe(au []byte) bool {
	if len(au) == 0 {
		return false
	}
	return au[len(au)-1]>>5 == markerTag
}

// Split breaks a superframe access unit into its constituent frame
// payloads. If au is not a superframe, Split returns a single-element
// slice containing au unchanged.
func Split(au []byte) ([][]byte, error) {
	if !IsSuperframe(au) {
		return [][]byte{au}, nil
	}

	marker := au[len(au)-1]
	nbytes := int((marker>>3)&0x3) + 1
	nframes := int(marker&0x7) + 1
	indexSize := 2 + nframes*nbytes

	if len(au) < indexSize {
		return nil, errors.Wrap(verr.ErrShortBitstream, "superframe index truncated")
	}

	index := au[len(au)-indexSize:]
	if index[0] != marker {
		return nil, errors.Wrap(verr.ErrInvalidCode, "superframe index leading marker mismatch")
	}
	if index[len(index)-1] != marker {
		return nil, errors.Wrap(verr.ErrInvalidCode, "superframe index trailing marker mismatch")
	}

	sizes := make([]int, nframes)
	body := index[1 : 1+nframes*nbytes]
	for i := 0; i < nframes; i++ {
		sizes[i] = int(readLE(body[i*nbytes:(i+1)*nbytes], nbytes))
	}

	frames := make([][]byte, nframes)
	off := 0
	for i, sz := range sizes {
		if off+sz > len(au)-indexSize {
			return nil, errors.Wrap(verr.ErrShortBitstream, "superframe sub-frame size overruns payload")
		}
		frames[i] = au[off : off+sz]
		off += sz
	}
	return frames, nil
}

func readLE(b []byte, n int) uint32 {
	var buf [4]byte
	copy(buf[:n], b)
	return binary.LittleEndian.Uint32(buf[:])
}

// BuildIndex constructs the trailing superframe index for the given
// per-frame sizes, using the smallest byte width that represents the
// largest size.
func BuildIndex(sizes []int) ([]byte, error) {
	if len(sizes) == 0 || len(sizes) > 8 {
		return nil, errors.Wrap(verr.ErrInvalidCode, "superframe index: frame count out of range")
	}
	max := 0
	for _, s := range sizes {
		if s > max {
			max = s
		}
	}
	nbytes := 1
	for max >= 1<<(8*nbytes) {
		nbytes++
		if nbytes > 4 {
			return nil, errors.Wrap(verr.ErrInvalidCode, "superframe index: frame size too large")
		}
	}

	marker := indexMarker(nbytes, len(sizes))
	out := make([]byte, 0, 2+len(sizes)*nbytes)
	out = append(out, marker)
	for _, s := range sizes {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(s))
		out = append(out, buf[:nbytes]...)
	}
	out = append(out, marker)
	return out, nil
}

// Join concatenates frame payloads with a trailing superframe index, the
// inverse of Split, used by round-trip tests (§8 testable property 7).
func Join(frames [][]byte) ([]byte, error) {
	if len(frames) == 1 {
		return frames[0], nil
	}
	sizes := make([]int, len(frames))
	for i, f := range frames {
		sizes[i] = len(f)
	}
	index, err := BuildIndex(sizes)
	if err != nil {
		return nil, err
	}
	var out []byte
	for _, f := range frames {
		out = append(out, f...)
	}
	return append(out, index...), nil
}
