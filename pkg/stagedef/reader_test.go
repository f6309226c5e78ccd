package stagedef

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/TheBombSquad/MKBViewer/pkg/cursor"
)

// buildTestImage assembles a small but fully featured stagedef: one goal,
// seven bananas, a named background model, and one collision header with
// two triangles, a 2x1 grid and local windows into the global lists.
func buildTestImage(t testing.TB, bo binary.ByteOrder) []byte {
	t.Helper()
	c := cursor.NewWriterSize(0x212C)

	w8 := func(off int, v uint8) {
		if err := c.Seek(off); err != nil {
			t.Fatalf("seek 0x%x: %v", off, err)
		}
		if err := c.WriteU8(v); err != nil {
			t.Fatalf("write at 0x%x: %v", off, err)
		}
	}
	w16 := func(off int, v uint16) {
		if err := c.Seek(off); err != nil {
			t.Fatalf("seek 0x%x: %v", off, err)
		}
		if err := c.WriteU16(bo, v); err != nil {
			t.Fatalf("write at 0x%x: %v", off, err)
		}
	}
	w32 := func(off int, v uint32) {
		if err := c.Seek(off); err != nil {
			t.Fatalf("seek 0x%x: %v", off, err)
		}
		if err := c.WriteU32(bo, v); err != nil {
			t.Fatalf("write at 0x%x: %v", off, err)
		}
	}
	wf := func(off int, v float32) {
		if err := c.Seek(off); err != nil {
			t.Fatalf("seek 0x%x: %v", off, err)
		}
		if err := c.WriteF32(bo, v); err != nil {
			t.Fatalf("write at 0x%x: %v", off, err)
		}
	}

	// file header
	wf(hdrMagic1, 0)
	wf(hdrMagic2, 1000)
	w32(hdrCollisionList, 1)
	w32(hdrCollisionList+4, 0x1BFC)
	w32(hdrStartPosPtr, 0x89C)
	w32(hdrFalloutLevelPtr, 0x8B0)
	w32(hdrGoalList, 1)
	w32(hdrGoalList+4, 0x8B4)
	w32(hdrBananaList, 7)
	w32(hdrBananaList+4, 0x8C8)
	w32(hdrBgModelList, 1)
	w32(hdrBgModelList+4, 0x938)

	// start position: (0, 2.75, 14), no rotation
	wf(0x89C+4, 2.75)
	wf(0x89C+8, 14)

	// fallout level
	wf(0x8B0, -20)

	// goal: (0, 0, -115), blue, pad byte set
	wf(0x8B4+8, -115)
	w8(0x8B4+0x12, uint8(GoalBlue))
	w8(0x8B4+0x13, 1)

	// bananas, alternating single and bunch
	for i := 0; i < 7; i++ {
		base := 0x8C8 + i*BananaSize
		wf(base, float32(i))
		wf(base+4, 0.6)
		wf(base+8, -102)
		w32(base+12, uint32(i%2))
	}

	// background model with a shared name string
	w32(0x938+4, 0x970)
	wf(0x938+0xC, 1)
	wf(0x938+0x10, 2)
	wf(0x938+0x14, 3)
	w16(0x938+0x18, 0x1000)
	wf(0x938+0x20, 1)
	wf(0x938+0x24, 1)
	wf(0x938+0x28, 1)
	for i, ch := range []byte("TST_MODEL") {
		w8(0x970+i, ch)
	}

	// collision header
	const col = 0x1BFC
	wf(col+colCenterOfRotation+4, 1)
	w32(col+colTriangleListPtr, 0x2098)
	w32(col+colGridIndexListPtr, 0x2118)
	wf(col+colGridStartX, -10)
	wf(col+colGridStartZ, -10)
	wf(col+colGridStepX, 10)
	wf(col+colGridStepZ, 10)
	w32(col+colGridStepXCount, 2)
	w32(col+colGridStepZCount, 1)
	w32(col+colGoalList, 1)
	w32(col+colGoalList+4, 0x8B4)
	w32(col+colBananaList, 3)
	w32(col+colBananaList+4, 0x8E8)
	w16(col+colAnimationID, 3)
	wf(col+colSeesawSens, 0.5)
	wf(col+colSeesawFriction, 0.25)
	wf(col+colSeesawSpring, 0.125)
	wf(col+colAnimLoopPoint, 2.5)

	// two triangles
	for i := 0; i < 2; i++ {
		base := 0x2098 + i*TriangleSize
		wf(base, float32(i+1))
		wf(base+0x10, 1)
	}

	// grid: cell 0 -> {0, 1}, cell 1 -> {1}
	w32(0x2118, 0x2120)
	w32(0x211C, 0x2126)
	w16(0x2120, 0)
	w16(0x2122, 1)
	w16(0x2124, gridListTerminator)
	w16(0x2126, 1)
	w16(0x2128, gridListTerminator)

	return c.Bytes()
}

func TestDetectByteOrder(t *testing.T) {
	be := buildTestImage(t, binary.BigEndian)
	if bo, err := DetectByteOrder(be); err != nil || bo != binary.BigEndian {
		t.Fatalf("DetectByteOrder(be) = %v, %v", bo, err)
	}
	le := buildTestImage(t, binary.LittleEndian)
	if bo, err := DetectByteOrder(le); err != nil || bo != binary.LittleEndian {
		t.Fatalf("DetectByteOrder(le) = %v, %v", bo, err)
	}

	junk := make([]byte, FileHeaderSize)
	if _, err := DetectByteOrder(junk); !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("DetectByteOrder(junk) = %v, want ErrMalformedChunk", err)
	}
	if _, err := DetectByteOrder(junk[:16]); !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("DetectByteOrder(short) = %v, want ErrMalformedChunk", err)
	}
}

func TestDecode(t *testing.T) {
	for _, tc := range []struct {
		name string
		bo   binary.ByteOrder
	}{
		{"BigEndian", binary.BigEndian},
		{"LittleEndian", binary.LittleEndian},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img := buildTestImage(t, tc.bo)
			s, err := Decode(context.Background(), img)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if s.Magic2 != 1000 {
				t.Errorf("Magic2 = %v, want 1000", s.Magic2)
			}
			if s.Start.Position != (Vec3{0, 2.75, 14}) {
				t.Errorf("start position = %v", s.Start.Position)
			}
			if s.FalloutLevel != -20 {
				t.Errorf("fallout level = %v, want -20", s.FalloutLevel)
			}

			if len(s.Goals) != 1 {
				t.Fatalf("got %d goals, want 1", len(s.Goals))
			}
			g := s.Goals[0]
			if g.Position != (Vec3{0, 0, -115}) || g.Type != GoalBlue || g.Pad != 1 {
				t.Errorf("goal = %+v", g)
			}

			if len(s.Bananas) != 7 {
				t.Fatalf("got %d bananas, want 7", len(s.Bananas))
			}
			if s.Bananas[3].Position.X != 3 || s.Bananas[3].Type != BananaBunch {
				t.Errorf("banana 3 = %+v", s.Bananas[3])
			}

			if len(s.ModelNames) != 1 || s.ModelNames[0] != "TST_MODEL" {
				t.Fatalf("model names = %v", s.ModelNames)
			}
			if len(s.BackgroundModels) != 1 {
				t.Fatalf("got %d background models, want 1", len(s.BackgroundModels))
			}
			m := s.BackgroundModels[0]
			if m.Name != 0 || m.Position != (Vec3{1, 2, 3}) || m.Rotation.X != 0x1000 {
				t.Errorf("background model = %+v", m)
			}

			if len(s.CollisionHeaders) != 1 {
				t.Fatalf("got %d collision headers, want 1", len(s.CollisionHeaders))
			}
			h := s.CollisionHeaders[0]
			if h.CenterOfRotation.Y != 1 {
				t.Errorf("center of rotation = %v", h.CenterOfRotation)
			}
			if h.Goals != (ListRef{First: 0, Count: 1}) {
				t.Errorf("goal window = %+v", h.Goals)
			}
			if h.Bananas != (ListRef{First: 2, Count: 3}) {
				t.Errorf("banana window = %+v", h.Bananas)
			}
			if h.AnimationID != 3 || h.SeesawSensitivity != 0.5 || h.AnimationLoopPoint != 2.5 {
				t.Errorf("header scalars = %+v", h)
			}
			if len(h.Triangles) != 2 || h.Triangles[1].Position.X != 2 || h.Triangles[0].Normal.Y != 1 {
				t.Errorf("triangles = %+v", h.Triangles)
			}
			if h.GridStepXCount != 2 || h.GridStepZCount != 1 {
				t.Errorf("grid dims = %dx%d", h.GridStepXCount, h.GridStepZCount)
			}
			if len(h.GridCells) != 2 || len(h.GridCells[0]) != 2 || len(h.GridCells[1]) != 1 {
				t.Fatalf("grid cells = %v", h.GridCells)
			}
			if h.GridCells[0][1] != 1 || h.GridCells[1][0] != 1 {
				t.Errorf("grid cells = %v", h.GridCells)
			}

			if s.SourceImage() == nil {
				t.Error("SourceImage() = nil after decode")
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	bo := binary.BigEndian

	patch32 := func(img []byte, off int, v uint32) {
		bo.PutUint32(img[off:], v)
	}

	t.Run("DanglingListPointer", func(t *testing.T) {
		img := buildTestImage(t, bo)
		patch32(img, hdrGoalList+4, uint32(len(img))+0x100)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrDanglingPointer) {
			t.Fatalf("Decode = %v, want ErrDanglingPointer", err)
		}
	})

	t.Run("CyclicNamePointer", func(t *testing.T) {
		img := buildTestImage(t, bo)
		// Point the model name at the list being decoded.
		patch32(img, 0x938+4, 0x938)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrCyclicReference) {
			t.Fatalf("Decode = %v, want ErrCyclicReference", err)
		}
	})

	t.Run("BadGoalType", func(t *testing.T) {
		img := buildTestImage(t, bo)
		img[0x8B4+0x12] = 0x7F
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("LocalWindowMisaligned", func(t *testing.T) {
		img := buildTestImage(t, bo)
		patch32(img, 0x1BFC+colBananaList+4, 0x8E9)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("LocalWindowPastGlobal", func(t *testing.T) {
		img := buildTestImage(t, bo)
		patch32(img, 0x1BFC+colBananaList, 9)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("HugeGridDimensions", func(t *testing.T) {
		img := buildTestImage(t, bo)
		// More cells than the buffer could hold pointer entries for; must
		// fail before sizing any allocation from the stored counts.
		patch32(img, 0x1BFC+colGridStepXCount, 0x100000)
		patch32(img, 0x1BFC+colGridStepZCount, 0x100000)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("GridDimensionOverflow", func(t *testing.T) {
		img := buildTestImage(t, bo)
		// The cell product exceeds the signed integer range; the grid must
		// be rejected, not silently dropped.
		patch32(img, 0x1BFC+colGridStepXCount, 0xFFFFFFFF)
		patch32(img, 0x1BFC+colGridStepZCount, 0xFFFFFFFF)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("NestedModelName", func(t *testing.T) {
		img := buildTestImage(t, bo)
		// A name pointer landing inside the file header region would make
		// two chunks claim the same bytes.
		patch32(img, 0x938+4, 0x800)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("GridIndexPastTriangles", func(t *testing.T) {
		img := buildTestImage(t, bo)
		// A huge grid index implies a triangle list that runs far past
		// the end of the buffer.
		bo.PutUint16(img[0x2122:], 0x4000)
		if _, err := Decode(context.Background(), img); !errors.Is(err, ErrMalformedChunk) {
			t.Fatalf("Decode = %v, want ErrMalformedChunk", err)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		img := buildTestImage(t, bo)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := Decode(ctx, img); !errors.Is(err, context.Canceled) {
			t.Fatalf("Decode = %v, want context.Canceled", err)
		}
	})
}

func TestDecodeSharedTriangleList(t *testing.T) {
	// A second collision header pointing at the same triangle list and
	// grid block must alias the first header's data, not re-decode it.
	bo := binary.BigEndian
	img := buildTestImage(t, bo)

	// Both headers live at the end of the image; the second is a byte
	// copy of the first, so they point at the same triangles and grid.
	dup := make([]byte, len(img)+2*CollisionHeaderSize)
	copy(dup, img)
	base := len(img)
	copy(dup[base:], img[0x1BFC:0x1BFC+CollisionHeaderSize])
	copy(dup[base+CollisionHeaderSize:], img[0x1BFC:0x1BFC+CollisionHeaderSize])
	bo.PutUint32(dup[hdrCollisionList:], 2)
	bo.PutUint32(dup[hdrCollisionList+4:], uint32(base))

	s, err := Decode(context.Background(), dup)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(s.CollisionHeaders) != 2 {
		t.Fatalf("got %d collision headers, want 2", len(s.CollisionHeaders))
	}
	h0, h1 := &s.CollisionHeaders[0], &s.CollisionHeaders[1]
	if len(h0.Triangles) == 0 || len(h1.Triangles) == 0 {
		t.Fatal("triangle lists missing")
	}
	if &h0.Triangles[0] != &h1.Triangles[0] {
		t.Error("shared triangle list was decoded twice")
	}
	if h0.TriangleListOffset != h1.TriangleListOffset {
		t.Errorf("triangle offsets differ: 0x%x vs 0x%x", h0.TriangleListOffset, h1.TriangleListOffset)
	}
}
