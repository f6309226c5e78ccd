// Package lz implements the LZSS container wrapping Monkey Ball stage
// binaries (.lz files).
//
// A container starts with an 8 byte little-endian header - compressed size
// including the header, then uncompressed size - followed by an LZSS stream:
// a flag byte covers eight items, set bits are literals and clear bits are
// two-byte back references into a 4 KiB ring window (12 bit window position,
// 4 bit length biased by the minimum match of 3).
package lz

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// HeaderSize is the fixed binary size of a container header.
	HeaderSize = 8

	windowSize = 0x1000
	windowInit = windowSize - maxMatch
	minMatch   = 3
	maxMatch   = (0xF) + minMatch
)

var (
	// ErrTruncated indicates that the compressed stream ended before the
	// declared uncompressed size was produced.
	ErrTruncated = errors.New("compressed stream truncated")

	// ErrSizeMismatch indicates that a header size field disagrees with the
	// actual data.
	ErrSizeMismatch = errors.New("header size mismatch")
)

// Header represents the container header of a .lz file.
type Header struct {
	CompressedSize   uint32 // Total file size, header included
	UncompressedSize uint32
}

// Validate checks the header against the byte length of the whole container.
func (h *Header) Validate(containerLen int) error {
	if int(h.CompressedSize) != containerLen {
		return fmt.Errorf("compressed size %d, container is %d bytes: %w",
			h.CompressedSize, containerLen, ErrSizeMismatch)
	}
	if h.UncompressedSize == 0 {
		return fmt.Errorf("uncompressed size is zero: %w", ErrSizeMismatch)
	}
	return nil
}

// DecodeFrom reads the header from the given buffer.
// Does not validate - use Validate for that.
func (h *Header) DecodeFrom(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("header data too short: need %d, got %d", HeaderSize, len(data))
	}
	h.CompressedSize = binary.LittleEndian.Uint32(data[0:4])
	h.UncompressedSize = binary.LittleEndian.Uint32(data[4:8])
	return nil
}

// EncodeTo writes the header to the given buffer.
// The buffer must be at least HeaderSize bytes.
func (h *Header) EncodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.CompressedSize)
	binary.LittleEndian.PutUint32(buf[4:8], h.UncompressedSize)
}

// IsCompressed reports whether data plausibly carries a .lz container
// header. Raw stagedef images (.lz.raw) fail this check because their first
// word is the float magic, not the file length.
func IsCompressed(data []byte) bool {
	var h Header
	if err := h.DecodeFrom(data); err != nil {
		return false
	}
	return h.Validate(len(data)) == nil
}

// Decompress expands a .lz container into the raw stage image.
func Decompress(data []byte) ([]byte, error) {
	var h Header
	if err := h.DecodeFrom(data); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if err := h.Validate(len(data)); err != nil {
		return nil, fmt.Errorf("validate header: %w", err)
	}

	out := make([]byte, 0, h.UncompressedSize)
	var win [windowSize]byte
	wpos := windowInit
	pos := HeaderSize

	for len(out) < int(h.UncompressedSize) {
		if pos >= len(data) {
			return nil, fmt.Errorf("at output byte %d of %d: %w", len(out), h.UncompressedSize, ErrTruncated)
		}
		flags := data[pos]
		pos++

		for bit := 0; bit < 8 && len(out) < int(h.UncompressedSize); bit++ {
			if flags&1 != 0 {
				if pos >= len(data) {
					return nil, fmt.Errorf("literal at output byte %d: %w", len(out), ErrTruncated)
				}
				b := data[pos]
				pos++
				out = append(out, b)
				win[wpos] = b
				wpos = (wpos + 1) & (windowSize - 1)
			} else {
				if pos+1 >= len(data) {
					return nil, fmt.Errorf("reference at output byte %d: %w", len(out), ErrTruncated)
				}
				b1, b2 := data[pos], data[pos+1]
				pos += 2
				off := int(b1) | int(b2&0xF0)<<4
				n := int(b2&0x0F) + minMatch
				for i := 0; i < n && len(out) < int(h.UncompressedSize); i++ {
					b := win[(off+i)&(windowSize-1)]
					out = append(out, b)
					win[wpos] = b
					wpos = (wpos + 1) & (windowSize - 1)
				}
			}
			flags >>= 1
		}
	}

	return out, nil
}

// Compress packs a raw stage image into a .lz container. Empty input
// fails: a zero uncompressed size is the header's own invalid marker.
//
// Matching is greedy: the longest window match of at least minMatch bytes
// wins, otherwise a literal is emitted. Output always round-trips through
// Decompress; it is not guaranteed to be bit-identical to output of the
// original game tools.
func Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input: %w", ErrSizeMismatch)
	}

	// Worst case: all literals, one flag byte per eight.
	out := make([]byte, HeaderSize, HeaderSize+len(data)+(len(data)+7)/8)

	var group [1 + 2*8]byte
	groupLen := 1
	groupItems := 0

	flush := func() {
		out = append(out, group[:groupLen]...)
		group[0] = 0
		groupLen = 1
		groupItems = 0
	}

	for i := 0; i < len(data); {
		matchPos, matchLen := findMatch(data, i)
		if matchLen >= minMatch {
			off := (windowInit + matchPos) & (windowSize - 1)
			group[groupLen] = byte(off & 0xFF)
			group[groupLen+1] = byte(off>>4&0xF0) | byte(matchLen-minMatch)
			groupLen += 2
			i += matchLen
		} else {
			group[0] |= 1 << groupItems
			group[groupLen] = data[i]
			groupLen++
			i++
		}
		groupItems++
		if groupItems == 8 {
			flush()
		}
	}
	if groupItems > 0 {
		flush()
	}

	h := Header{
		CompressedSize:   uint32(len(out)),
		UncompressedSize: uint32(len(data)),
	}
	h.EncodeTo(out[:HeaderSize])
	return out, nil
}

// findMatch returns the longest match for data[i:] starting at an earlier
// position within the window span. Matches may overlap position i; the
// decoder copies byte by byte, so overlapping references self-extend.
func findMatch(data []byte, i int) (pos, length int) {
	lo := i - windowSize
	if lo < 0 {
		lo = 0
	}
	limit := len(data) - i
	if limit > maxMatch {
		limit = maxMatch
	}
	for j := lo; j < i; j++ {
		n := 0
		for n < limit && data[j+n] == data[i+n] {
			n++
		}
		if n > length {
			pos, length = j, n
			if length == limit {
				break
			}
		}
	}
	return pos, length
}
