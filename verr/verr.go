/*
DESCRIPTION
  verr.go defines the sentinel error kinds surfaced to external callers of
  the decoder core, as catalogued in section 7 of the specification.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package verr defines the sentinel error values shared by every layer of
// the decoder core. Callers identify the kind of a wrapped error with
// errors.Cause (github.com/pkg/errors) or errors.Is.
package verr

import "errors"

var (
	// ErrShortBitstream indicates a read past the end of the compressed
	// buffer. Origin: bits.
	ErrShortBitstream = errors.New("vcore: short bitstream")

	// ErrInvalidCode indicates a VLC or tree-coded symbol did not decode,
	// either because no codeword matched or a table build was malformed.
	// Origin: bits.
	ErrInvalidCode = errors.New("vcore: invalid code")

	// ErrBadMarker indicates a required marker bit was not zero.
	// Origin: bits, frame.
	ErrBadMarker = errors.New("vcore: bad marker bit")

	// ErrMarkerBitSet indicates a boolean-range "marker" read observed 1
	// where 0 was required.
	// Origin: rangecoder.
	ErrMarkerBitSet = errors.New("vcore: marker bit set")

	// ErrBadSyncCode indicates a keyframe sync code mismatch.
	// Origin: frame.
	ErrBadSyncCode = errors.New("vcore: bad sync code")

	// ErrBadProfile indicates an unsupported profile/color-space
	// combination.
	// Origin: frame.
	ErrBadProfile = errors.New("vcore: bad profile")

	// ErrRefUnavailable indicates a referenced slot holds no frame.
	// Origin: frame, block.
	ErrRefUnavailable = errors.New("vcore: reference unavailable")

	// ErrBadScale indicates reference dimensions would require a scale
	// factor outside the supported range.
	// Origin: frame.
	ErrBadScale = errors.New("vcore: bad reference scale")

	// ErrAlloc indicates a buffer allocation failed.
	// Origin: refpool.
	ErrAlloc = errors.New("vcore: buffer allocation failed")

	// ErrCancelled indicates cooperative cancellation was observed.
	// Origin: any.
	ErrCancelled = errors.New("vcore: cancelled")
)
