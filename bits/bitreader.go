/*
DESCRIPTION
  bitreader.go provides a most-significant-bit-first bit reader over an
  io.Reader source, plus the marker-bit convenience the frame director
  leans on when parsing uncompressed headers.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bits provides the fixed-width bit-level reading primitive shared
// by every layer of the decoder core (§4.1 of the specification), and the
// VLC table decoding built on it (vlc.go). It does not implement
// boolean-range decoding; see package rangecoder, which is built on top
// of a BitReader.
package bits

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/vcore/verr"
)

type bytePeeker interface {
	io.ByteReader
	Peek(int) ([]byte, error)
}

// BitReader is a bit reader that provides methods for reading bits
// most-significant-bit first from an io.Reader source.
type BitReader struct {
	r     bytePeeker
	n     uint64
	bits  int
	nRead int
}

// NewBitReader returns a new BitReader over r.
func NewBitReader(r io.Reader) *BitReader {
	byter, ok := r.(bytePeeker)
	if !ok {
		byter = bufio.NewReader(r)
	}
	return &BitReader{r: byter}
}

// ReadBits reads n (1 <= n <= 32) bits from the source and returns them in
// the least-significant part of a uint64, most-significant-bit first.
// On underflow it returns verr.ErrShortBitstream.
func (br *BitReader) ReadBits(n int) (uint64, error) {
	for n > br.bits {
		b, err := br.r.ReadByte()
		if err == io.EOF {
			return 0, errors.Wrap(verr.ErrShortBitstream, "read past end of stream")
		}
		if err != nil {
			return 0, errors.Wrap(err, "could not read byte")
		}
		br.nRead++
		br.n <<= 8
		br.n |= uint64(b)
		br.bits += 8
	}

	r := (br.n >> uint(br.bits-n)) & ((1 << uint(n)) - 1)
	br.bits -= n
	return r, nil
}

// ReadBit reads a single bit as a bool.
func (br *BitReader) ReadBit() (bool, error) {
	b, err := br.ReadBits(1)
	if err != nil {
		return false, err
	}
	return b == 1, nil
}

// ReadMarker reads a single bit and fails with verr.ErrBadMarker unless it
// is zero, matching the many "marker_bit, must equal 0" fields scattered
// through the uncompressed header (spec.md §6.1).
func (br *BitReader) ReadMarker() error {
	b, err := br.ReadBit()
	if err != nil {
		return err
	}
	if b {
		return verr.ErrBadMarker
	}
	return nil
}

// PeekBits returns the next n bits in the least-significant part of a
// uint64 without advancing through the source.
func (br *BitReader) PeekBits(n int) (uint64, error) {
	need := int((n-br.bits)+7) / 8
	if need < 0 {
		need = 0
	}
	byt, err := br.r.Peek(need)
	bits := br.bits
	if err != nil {
		if err == io.EOF {
			return 0, errors.Wrap(verr.ErrShortBitstream, "peek past end of stream")
		}
		return 0, errors.Wrap(err, "could not peek")
	}

	n64 := br.n
	for i := 0; n > bits; i++ {
		n64 <<= 8
		n64 |= uint64(byt[i])
		bits += 8
	}

	return (n64 >> uint(bits-n)) & ((1 << uint(n)) - 1), nil
}

// ByteAligned reports whether the reader position is at the start of a byte.
func (br *BitReader) ByteAligned() bool {
	return br.bits == 0
}

// Off returns the number of bits of the current byte that have been
// fetched from the source but not yet consumed (0 when byte-aligned).
func (br *BitReader) Off() int {
	return br.bits
}

// BytesRead returns the number of whole bytes consumed from the underlying
// source so far.
func (br *BitReader) BytesRead() int {
	return br.nRead
}

// AlignToByte discards bits until the reader sits on a byte boundary,
// returning the discarded bits (used to reach the compressed-header byte
// boundary, spec.md §6.1 step 12).
func (br *BitReader) AlignToByte() (uint64, error) {
	if br.bits == 0 {
		return 0, nil
	}
	return br.ReadBits(br.bits)
}
