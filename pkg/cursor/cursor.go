// Package cursor provides bounds-checked, endianness-aware reading and
// writing over in-memory binary images.
//
// A Cursor never panics on malformed input: every read checks the requested
// span against the underlying buffer and every seek checks its target, so
// structural errors in a file surface as error values rather than slice
// range faults.
package cursor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrOutOfBounds indicates that a read or write span exceeds the buffer.
	ErrOutOfBounds = errors.New("span out of bounds")

	// ErrInvalidOffset indicates that a seek target lies outside [0, len].
	ErrInvalidOffset = errors.New("invalid offset")
)

// Cursor is a positioned reader/writer over a byte buffer.
//
// Read cursors are fixed-size; write cursors grow on demand when a write
// runs past the current end. Seeks stay within [0, Len()] for both kinds:
// zeroed regions come from NewWriterSize and Pad, never from seeking.
type Cursor struct {
	buf      []byte
	pos      int
	growable bool
}

// NewReader returns a fixed-size cursor positioned at the start of buf.
// The cursor does not copy buf.
func NewReader(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// NewWriter returns a growable cursor over an empty output buffer.
func NewWriter() *Cursor {
	return &Cursor{growable: true}
}

// NewWriterSize returns a growable cursor with a zeroed initial buffer of n
// bytes. Useful when the final image size is known up front.
func NewWriterSize(n int) *Cursor {
	return &Cursor{buf: make([]byte, n), growable: true}
}

// Len returns the current buffer length.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Bytes returns the underlying buffer. The returned slice aliases the
// cursor's storage until the next growing write.
func (c *Cursor) Bytes() []byte {
	return c.buf
}

// Tell returns the current cursor position.
func (c *Cursor) Tell() int {
	return c.pos
}

// Seek moves the cursor to the absolute offset off.
// Offsets in [0, Len()] are valid; anything else fails with ErrInvalidOffset.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return fmt.Errorf("seek to 0x%x in %d byte buffer: %w", off, len(c.buf), ErrInvalidOffset)
	}
	c.pos = off
	return nil
}

// Remaining returns the number of bytes between the cursor and the end of
// the buffer.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

func (c *Cursor) span(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("%d bytes at 0x%x in %d byte buffer: %w", n, c.pos, len(c.buf), ErrOutOfBounds)
	}
	s := c.buf[c.pos : c.pos+n]
	c.pos += n
	return s, nil
}

// ReadU8 reads a single byte.
func (c *Cursor) ReadU8() (uint8, error) {
	s, err := c.span(1)
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// ReadU16 reads a 16-bit unsigned integer with the given byte order.
func (c *Cursor) ReadU16(bo binary.ByteOrder) (uint16, error) {
	s, err := c.span(2)
	if err != nil {
		return 0, err
	}
	return bo.Uint16(s), nil
}

// ReadU32 reads a 32-bit unsigned integer with the given byte order.
func (c *Cursor) ReadU32(bo binary.ByteOrder) (uint32, error) {
	s, err := c.span(4)
	if err != nil {
		return 0, err
	}
	return bo.Uint32(s), nil
}

// ReadI32 reads a 32-bit signed integer with the given byte order.
func (c *Cursor) ReadI32(bo binary.ByteOrder) (int32, error) {
	v, err := c.ReadU32(bo)
	return int32(v), err
}

// ReadF32 reads a 32-bit IEEE 754 float with the given byte order.
func (c *Cursor) ReadF32(bo binary.ByteOrder) (float32, error) {
	v, err := c.ReadU32(bo)
	return math.Float32frombits(v), err
}

// ReadBytes reads exactly n bytes. The returned slice aliases the buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	return c.span(n)
}

// ReadCString reads bytes up to (but not including) the next NUL.
// The cursor ends up positioned after the terminator. Fails with
// ErrOutOfBounds if the buffer ends before a terminator is found.
func (c *Cursor) ReadCString() (string, error) {
	start := c.pos
	for i := c.pos; i < len(c.buf); i++ {
		if c.buf[i] == 0 {
			c.pos = i + 1
			return string(c.buf[start:i]), nil
		}
	}
	return "", fmt.Errorf("unterminated string at 0x%x: %w", start, ErrOutOfBounds)
}

func (c *Cursor) writeSpan(n int) ([]byte, error) {
	if !c.growable && c.pos+n > len(c.buf) {
		return nil, fmt.Errorf("write %d bytes at 0x%x in %d byte buffer: %w", n, c.pos, len(c.buf), ErrOutOfBounds)
	}
	if c.pos+n > len(c.buf) {
		grown := make([]byte, c.pos+n)
		copy(grown, c.buf)
		c.buf = grown
	}
	s := c.buf[c.pos : c.pos+n]
	c.pos += n
	return s, nil
}

// WriteU8 writes a single byte.
func (c *Cursor) WriteU8(v uint8) error {
	s, err := c.writeSpan(1)
	if err != nil {
		return err
	}
	s[0] = v
	return nil
}

// WriteU16 writes a 16-bit unsigned integer with the given byte order.
func (c *Cursor) WriteU16(bo binary.ByteOrder, v uint16) error {
	s, err := c.writeSpan(2)
	if err != nil {
		return err
	}
	bo.PutUint16(s, v)
	return nil
}

// WriteU32 writes a 32-bit unsigned integer with the given byte order.
func (c *Cursor) WriteU32(bo binary.ByteOrder, v uint32) error {
	s, err := c.writeSpan(4)
	if err != nil {
		return err
	}
	bo.PutUint32(s, v)
	return nil
}

// WriteI32 writes a 32-bit signed integer with the given byte order.
func (c *Cursor) WriteI32(bo binary.ByteOrder, v int32) error {
	return c.WriteU32(bo, uint32(v))
}

// WriteF32 writes a 32-bit IEEE 754 float with the given byte order.
func (c *Cursor) WriteF32(bo binary.ByteOrder, v float32) error {
	return c.WriteU32(bo, math.Float32bits(v))
}

// WriteBytes writes p at the current position.
func (c *Cursor) WriteBytes(p []byte) error {
	s, err := c.writeSpan(len(p))
	if err != nil {
		return err
	}
	copy(s, p)
	return nil
}

// WriteCString writes v followed by a NUL terminator.
func (c *Cursor) WriteCString(v string) error {
	if err := c.WriteBytes([]byte(v)); err != nil {
		return err
	}
	return c.WriteU8(0)
}

// Skip advances the cursor by n bytes without interpreting them.
func (c *Cursor) Skip(n int) error {
	_, err := c.span(n)
	return err
}

// Pad writes n zero bytes.
func (c *Cursor) Pad(n int) error {
	s, err := c.writeSpan(n)
	if err != nil {
		return err
	}
	for i := range s {
		s[i] = 0
	}
	return nil
}
