package stagedef

import (
	"fmt"
	"sort"
)

// FieldType classifies a primitive field within a chunk.
type FieldType int

const (
	FieldU8 FieldType = iota
	FieldU16
	FieldU32
	FieldI32
	FieldF32
	FieldString
	FieldPointer
	FieldCountPointer
)

func (t FieldType) width() int {
	switch t {
	case FieldU8:
		return 1
	case FieldU16:
		return 2
	case FieldU32, FieldI32, FieldF32, FieldPointer:
		return 4
	case FieldCountPointer:
		return 8
	default:
		return 0
	}
}

// Field describes a typed primitive at a fixed offset within its chunk.
type Field struct {
	Name   string
	Type   FieldType
	Offset int // relative to the chunk start
	Width  int
}

// Chunk is a decoded byte region: a kind tag, the half-open range the
// region occupies, and the typed fields found in it. List chunks also
// carry their record count.
type Chunk struct {
	Kind       ChunkKind
	Start, End int
	Count      int
	Fields     []Field
}

// Len returns the chunk's byte length.
func (c Chunk) Len() int {
	return c.End - c.Start
}

func (c Chunk) validate() error {
	if c.End < c.Start {
		return fmt.Errorf("%v at 0x%x: inverted range: %w", c.Kind, c.Start, ErrMalformedChunk)
	}
	for _, f := range c.Fields {
		if f.Offset < 0 || f.Offset+f.Width > c.Len() {
			return fmt.Errorf("%v at 0x%x: field %q spans past chunk end: %w",
				c.Kind, c.Start, f.Name, ErrMalformedChunk)
		}
	}
	return nil
}

// OffsetTable resolves stored pointers into buffer offsets and tracks the
// decode state of every chunk, detecting pointer cycles and sharing already
// decoded entities between pointers that resolve to the same address.
type OffsetTable struct {
	size       int
	chunks     map[int]Chunk
	inProgress map[int]ChunkKind
	entities   map[int]any
}

// NewOffsetTable returns an empty table for a buffer of the given size.
func NewOffsetTable(size int) *OffsetTable {
	return &OffsetTable{
		size:       size,
		chunks:     make(map[int]Chunk),
		inProgress: make(map[int]ChunkKind),
		entities:   make(map[int]any),
	}
}

// Resolve converts a stored pointer into a buffer offset.
//
// Stagedef pointers are absolute file offsets; callers are expected to have
// rejected the null sentinel already. Addresses outside the buffer fail
// with ErrDanglingPointer.
func (t *OffsetTable) Resolve(ptr uint32) (int, error) {
	addr := int(ptr)
	if addr <= 0 || addr >= t.size {
		return 0, fmt.Errorf("pointer 0x%x in %d byte buffer: %w", ptr, t.size, ErrDanglingPointer)
	}
	return addr, nil
}

// begin marks addr as decode-in-progress. Re-entering an address that is
// still being decoded means the pointer graph has a cycle.
func (t *OffsetTable) begin(addr int, kind ChunkKind) error {
	if k, busy := t.inProgress[addr]; busy {
		return fmt.Errorf("%v at 0x%x revisited while decoding: %w", k, addr, ErrCyclicReference)
	}
	t.inProgress[addr] = kind
	return nil
}

// finish records the decoded chunk and its entity, clearing the
// in-progress mark. Later pointers to addr share the stored entity.
func (t *OffsetTable) finish(c Chunk, entity any) {
	delete(t.inProgress, c.Start)
	t.chunks[c.Start] = c
	if entity != nil {
		t.entities[c.Start] = entity
	}
}

// entity returns the shared entity decoded at addr, if any.
func (t *OffsetTable) entity(addr int) (any, bool) {
	e, ok := t.entities[addr]
	return e, ok
}

// decoded reports whether a chunk has already been fully decoded at addr.
func (t *OffsetTable) decoded(addr int) (Chunk, bool) {
	c, ok := t.chunks[addr]
	return c, ok
}

// Chunks returns all decoded chunks in file order.
func (t *OffsetTable) Chunks() []Chunk {
	out := make([]Chunk, 0, len(t.chunks))
	for _, c := range t.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

// validate checks every chunk's field invariant and the range invariant:
// decoded chunk ranges are pairwise disjoint. A pointer landing inside an
// already claimed region means two decoders disagree about who owns those
// bytes, and a re-encode could not place both.
func (t *OffsetTable) validate() error {
	chunks := t.Chunks()
	var prev Chunk
	for i, c := range chunks {
		if err := c.validate(); err != nil {
			return err
		}
		if i > 0 && c.Start < prev.End {
			return fmt.Errorf("%v at 0x%x overlaps %v at 0x%x: %w",
				c.Kind, c.Start, prev.Kind, prev.Start, ErrMalformedChunk)
		}
		prev = c
	}
	return nil
}
