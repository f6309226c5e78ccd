package cursor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestRead(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0x42, 0x28, 0x00, 0x00, 'h', 'i', 0x00}

	t.Run("Integers", func(t *testing.T) {
		c := NewReader(buf)

		u8, err := c.ReadU8()
		if err != nil {
			t.Fatalf("read u8: %v", err)
		}
		if u8 != 0x01 {
			t.Errorf("u8 = %#x, want 0x01", u8)
		}

		u16, err := c.ReadU16(binary.BigEndian)
		if err != nil {
			t.Fatalf("read u16: %v", err)
		}
		if u16 != 0x0203 {
			t.Errorf("u16 = %#x, want 0x0203", u16)
		}

		if err := c.Seek(0); err != nil {
			t.Fatalf("seek: %v", err)
		}
		u32, err := c.ReadU32(binary.LittleEndian)
		if err != nil {
			t.Fatalf("read u32: %v", err)
		}
		if u32 != 0x04030201 {
			t.Errorf("u32 = %#x, want 0x04030201", u32)
		}
	})

	t.Run("Float", func(t *testing.T) {
		c := NewReader(buf)
		if err := c.Seek(4); err != nil {
			t.Fatalf("seek: %v", err)
		}
		f, err := c.ReadF32(binary.BigEndian)
		if err != nil {
			t.Fatalf("read f32: %v", err)
		}
		if f != 42.0 {
			t.Errorf("f32 = %v, want 42.0", f)
		}
	})

	t.Run("CString", func(t *testing.T) {
		c := NewReader(buf)
		if err := c.Seek(8); err != nil {
			t.Fatalf("seek: %v", err)
		}
		s, err := c.ReadCString()
		if err != nil {
			t.Fatalf("read cstring: %v", err)
		}
		if s != "hi" {
			t.Errorf("cstring = %q, want %q", s, "hi")
		}
		if c.Tell() != 11 {
			t.Errorf("pos = %d, want 11", c.Tell())
		}
	})

	t.Run("OutOfBounds", func(t *testing.T) {
		c := NewReader(buf)
		if err := c.Seek(len(buf) - 2); err != nil {
			t.Fatalf("seek: %v", err)
		}
		if _, err := c.ReadU32(binary.BigEndian); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("err = %v, want ErrOutOfBounds", err)
		}
		// A failed read must not move the cursor.
		if c.Tell() != len(buf)-2 {
			t.Errorf("pos = %d, want %d", c.Tell(), len(buf)-2)
		}
	})

	t.Run("UnterminatedString", func(t *testing.T) {
		c := NewReader([]byte{'a', 'b'})
		if _, err := c.ReadCString(); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("err = %v, want ErrOutOfBounds", err)
		}
	})
}

func TestSeek(t *testing.T) {
	c := NewReader(make([]byte, 8))

	if err := c.Seek(8); err != nil {
		t.Errorf("seek to len: %v", err)
	}
	if err := c.Seek(9); !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("seek past len: err = %v, want ErrInvalidOffset", err)
	}
	if err := c.Seek(-1); !errors.Is(err, ErrInvalidOffset) {
		t.Errorf("negative seek: err = %v, want ErrInvalidOffset", err)
	}
}

func TestWrite(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		w := NewWriter()
		if err := w.WriteU32(binary.BigEndian, 0xDEADBEEF); err != nil {
			t.Fatalf("write u32: %v", err)
		}
		if err := w.WriteF32(binary.BigEndian, -20.0); err != nil {
			t.Fatalf("write f32: %v", err)
		}
		if err := w.WriteCString("STAGE400"); err != nil {
			t.Fatalf("write cstring: %v", err)
		}

		r := NewReader(w.Bytes())
		u, err := r.ReadU32(binary.BigEndian)
		if err != nil || u != 0xDEADBEEF {
			t.Errorf("u32 = %#x (%v), want 0xDEADBEEF", u, err)
		}
		f, err := r.ReadF32(binary.BigEndian)
		if err != nil || f != -20.0 {
			t.Errorf("f32 = %v (%v), want -20.0", f, err)
		}
		s, err := r.ReadCString()
		if err != nil || s != "STAGE400" {
			t.Errorf("cstring = %q (%v), want STAGE400", s, err)
		}
	})

	t.Run("SeekGapZeroFills", func(t *testing.T) {
		w := NewWriterSize(4)
		if err := w.Seek(4); err != nil {
			t.Fatalf("seek: %v", err)
		}
		if err := w.WriteU8(0xFF); err != nil {
			t.Fatalf("write: %v", err)
		}
		want := []byte{0, 0, 0, 0, 0xFF}
		if !bytes.Equal(w.Bytes(), want) {
			t.Errorf("buf = %x, want %x", w.Bytes(), want)
		}
	})

	t.Run("OverwriteInPlace", func(t *testing.T) {
		w := NewWriterSize(8)
		if err := w.Seek(2); err != nil {
			t.Fatalf("seek: %v", err)
		}
		if err := w.WriteU16(binary.BigEndian, 0x1234); err != nil {
			t.Fatalf("write: %v", err)
		}
		if w.Len() != 8 {
			t.Errorf("len = %d, want 8", w.Len())
		}
		if w.Bytes()[2] != 0x12 || w.Bytes()[3] != 0x34 {
			t.Errorf("buf = %x", w.Bytes())
		}
	})
}

func BenchmarkReadU32(b *testing.B) {
	buf := make([]byte, 4096)
	c := NewReader(buf)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if c.Remaining() < 4 {
			c.Seek(0)
		}
		if _, err := c.ReadU32(binary.BigEndian); err != nil {
			b.Fatal(err)
		}
	}
}
