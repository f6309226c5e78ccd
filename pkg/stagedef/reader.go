package stagedef

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/TheBombSquad/MKBViewer/pkg/cursor"
)

// DetectByteOrder inspects the float magic pair at the start of a stagedef
// image and returns the payload byte order. GameCube images are big-endian;
// the Deluxe port is little-endian.
func DetectByteOrder(data []byte) (binary.ByteOrder, error) {
	if len(data) < FileHeaderSize {
		return nil, fmt.Errorf("image of %d bytes is smaller than the file header: %w", len(data), ErrMalformedChunk)
	}
	for _, bo := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		c := cursor.NewReader(data)
		if err := c.Seek(hdrMagic2); err != nil {
			return nil, err
		}
		magic, err := c.ReadF32(bo)
		if err != nil {
			return nil, err
		}
		if magic == Magic2 {
			return bo, nil
		}
	}
	return nil, fmt.Errorf("magic number pair not found: %w", ErrMalformedChunk)
}

// listLoc is a (count, offset) pair read from a header field.
type listLoc struct {
	count uint32
	ptr   uint32
}

// absent reports the null sentinel: a zero count or zero offset.
func (l listLoc) absent() bool {
	return l.count == 0 || l.ptr == 0
}

type decoder struct {
	ctx   context.Context
	c     *cursor.Cursor
	bo    binary.ByteOrder
	table *OffsetTable
	stage *Stage

	globals  map[ChunkKind]listLoc
	sections []section
}

// Decode parses a raw (already decompressed) stagedef image.
//
// Decoding is strictly top-down: the file header first, then every chunk it
// points at, all through one offset table so entity sharing and cycle
// detection are global across the file. The context is consulted at chunk
// boundaries; cancellation abandons the partial result.
func Decode(ctx context.Context, data []byte) (*Stage, error) {
	bo, err := DetectByteOrder(data)
	if err != nil {
		return nil, err
	}

	d := &decoder{
		ctx:     ctx,
		c:       cursor.NewReader(data),
		bo:      bo,
		table:   NewOffsetTable(len(data)),
		stage:   &Stage{Game: SMB2, ByteOrder: bo},
		globals: make(map[ChunkKind]listLoc),
	}

	if err := d.decodeFileHeader(); err != nil {
		return nil, err
	}
	if err := d.table.validate(); err != nil {
		return nil, err
	}

	sort.Slice(d.sections, func(i, j int) bool { return d.sections[i].start < d.sections[j].start })
	d.stage.layout = &layout{src: data, sections: d.sections}
	return d.stage, nil
}

func (d *decoder) canceled() error {
	if err := d.ctx.Err(); err != nil {
		return fmt.Errorf("decode canceled: %w", err)
	}
	return nil
}

func (d *decoder) addSection(kind ChunkKind, start, size, ref int) {
	d.sections = append(d.sections, section{kind: kind, start: start, size: size, ref: ref})
}

func (d *decoder) readF32At(off int) (float32, error) {
	if err := d.c.Seek(off); err != nil {
		return 0, err
	}
	return d.c.ReadF32(d.bo)
}

func (d *decoder) readPtrAt(off int) (uint32, error) {
	if err := d.c.Seek(off); err != nil {
		return 0, err
	}
	return d.c.ReadU32(d.bo)
}

func (d *decoder) readListLocAt(off int) (listLoc, error) {
	if err := d.c.Seek(off); err != nil {
		return listLoc{}, err
	}
	count, err := d.c.ReadU32(d.bo)
	if err != nil {
		return listLoc{}, err
	}
	ptr, err := d.c.ReadU32(d.bo)
	if err != nil {
		return listLoc{}, err
	}
	return listLoc{count: count, ptr: ptr}, nil
}

func (d *decoder) readVec3() (Vec3, error) {
	var v Vec3
	var err error
	if v.X, err = d.c.ReadF32(d.bo); err != nil {
		return v, err
	}
	if v.Y, err = d.c.ReadF32(d.bo); err != nil {
		return v, err
	}
	v.Z, err = d.c.ReadF32(d.bo)
	return v, err
}

func (d *decoder) readVec2() (Vec2, error) {
	var v Vec2
	var err error
	if v.X, err = d.c.ReadF32(d.bo); err != nil {
		return v, err
	}
	v.Y, err = d.c.ReadF32(d.bo)
	return v, err
}

func (d *decoder) readShortVec3() (ShortVec3, error) {
	var v ShortVec3
	var err error
	if v.X, err = d.c.ReadU16(d.bo); err != nil {
		return v, err
	}
	if v.Y, err = d.c.ReadU16(d.bo); err != nil {
		return v, err
	}
	v.Z, err = d.c.ReadU16(d.bo)
	return v, err
}

// globalListKinds is the file-header list decode order.
var globalListKinds = []struct {
	kind ChunkKind
	off  int
}{
	{KindGoalList, hdrGoalList},
	{KindBumperList, hdrBumperList},
	{KindJamabarList, hdrJamabarList},
	{KindBananaList, hdrBananaList},
	{KindConeColList, hdrConeColList},
	{KindSphereColList, hdrSphereColList},
	{KindCylinderColList, hdrCylinderColList},
	{KindFalloutVolList, hdrFalloutVolList},
	{KindBgModelList, hdrBgModelList},
}

func (d *decoder) decodeFileHeader() error {
	if err := d.table.begin(0, KindFileHeader); err != nil {
		return err
	}

	var err error
	if d.stage.Magic1, err = d.readF32At(hdrMagic1); err != nil {
		return fmt.Errorf("read magic 1: %w", err)
	}
	if d.stage.Magic2, err = d.readF32At(hdrMagic2); err != nil {
		return fmt.Errorf("read magic 2: %w", err)
	}

	fields := []Field{
		{Name: "magic1", Type: FieldF32, Offset: hdrMagic1, Width: 4},
		{Name: "magic2", Type: FieldF32, Offset: hdrMagic2, Width: 4},
		{Name: "collisionHeaders", Type: FieldCountPointer, Offset: hdrCollisionList, Width: 8},
		{Name: "startPosition", Type: FieldPointer, Offset: hdrStartPosPtr, Width: 4},
		{Name: "falloutLevel", Type: FieldPointer, Offset: hdrFalloutLevelPtr, Width: 4},
	}

	// Start position and fallout level hang off plain pointers.
	startPtr, err := d.readPtrAt(hdrStartPosPtr)
	if err != nil {
		return fmt.Errorf("read start position pointer: %w", err)
	}
	if startPtr != 0 {
		if err := d.decodeStartPosition(startPtr); err != nil {
			return err
		}
	}

	falloutPtr, err := d.readPtrAt(hdrFalloutLevelPtr)
	if err != nil {
		return fmt.Errorf("read fallout level pointer: %w", err)
	}
	if falloutPtr != 0 {
		if err := d.decodeFalloutLevel(falloutPtr); err != nil {
			return err
		}
	}

	// Global object lists.
	for _, g := range globalListKinds {
		if err := d.canceled(); err != nil {
			return err
		}
		loc, err := d.readListLocAt(g.off)
		if err != nil {
			return fmt.Errorf("read %v location: %w", g.kind, err)
		}
		fields = append(fields, Field{Name: g.kind.String(), Type: FieldCountPointer, Offset: g.off, Width: 8})
		d.globals[g.kind] = loc
		if loc.absent() {
			continue
		}
		if err := d.decodeGlobalList(g.kind, loc); err != nil {
			return err
		}
	}

	// Collision headers last, so local windows can be matched against the
	// already decoded global lists.
	colLoc, err := d.readListLocAt(hdrCollisionList)
	if err != nil {
		return fmt.Errorf("read collision header location: %w", err)
	}
	if !colLoc.absent() {
		if err := d.decodeCollisionHeaders(colLoc); err != nil {
			return err
		}
	}

	d.table.finish(Chunk{Kind: KindFileHeader, Start: 0, End: FileHeaderSize, Fields: fields}, nil)
	d.addSection(KindFileHeader, 0, FileHeaderSize, -1)
	return nil
}

func (d *decoder) decodeStartPosition(ptr uint32) error {
	addr, err := d.table.Resolve(ptr)
	if err != nil {
		return fmt.Errorf("start position: %w", err)
	}
	if err := d.table.begin(addr, KindStartPosition); err != nil {
		return err
	}
	if err := d.c.Seek(addr); err != nil {
		return err
	}
	if d.stage.Start.Position, err = d.readVec3(); err != nil {
		return fmt.Errorf("read start position: %w", err)
	}
	if d.stage.Start.Rotation, err = d.readShortVec3(); err != nil {
		return fmt.Errorf("read start rotation: %w", err)
	}
	if d.stage.Start.Pad, err = d.c.ReadU16(d.bo); err != nil {
		return fmt.Errorf("read start position padding: %w", err)
	}
	d.table.finish(Chunk{Kind: KindStartPosition, Start: addr, End: addr + StartPosSize}, nil)
	d.addSection(KindStartPosition, addr, StartPosSize, -1)
	return nil
}

func (d *decoder) decodeFalloutLevel(ptr uint32) error {
	addr, err := d.table.Resolve(ptr)
	if err != nil {
		return fmt.Errorf("fallout level: %w", err)
	}
	if err := d.table.begin(addr, KindFalloutLevel); err != nil {
		return err
	}
	if err := d.c.Seek(addr); err != nil {
		return err
	}
	if d.stage.FalloutLevel, err = d.c.ReadF32(d.bo); err != nil {
		return fmt.Errorf("read fallout level: %w", err)
	}
	d.table.finish(Chunk{Kind: KindFalloutLevel, Start: addr, End: addr + FalloutLevelSize}, nil)
	d.addSection(KindFalloutLevel, addr, FalloutLevelSize, -1)
	return nil
}

func (d *decoder) decodeGlobalList(kind ChunkKind, loc listLoc) error {
	addr, err := d.table.Resolve(loc.ptr)
	if err != nil {
		return fmt.Errorf("%v: %w", kind, err)
	}
	if err := d.table.begin(addr, kind); err != nil {
		return err
	}

	size := recordSize(kind)
	end := addr + int(loc.count)*size
	if end > d.c.Len() {
		return fmt.Errorf("%v: %d records at 0x%x run past the buffer: %w", kind, loc.count, addr, ErrMalformedChunk)
	}
	if err := d.c.Seek(addr); err != nil {
		return err
	}

	for i := 0; i < int(loc.count); i++ {
		recStart := d.c.Tell()
		if err := d.decodeRecord(kind); err != nil {
			return fmt.Errorf("%v record %d: %w", kind, i, err)
		}
		// The payload length every record decoder consumes must match the
		// declared record size; a drifting cursor means wrong geometry.
		if got := d.c.Tell() - recStart; got != size {
			return fmt.Errorf("%v record %d consumed %d bytes, record size is %d: %w",
				kind, i, got, size, ErrMalformedChunk)
		}
	}

	d.table.finish(Chunk{Kind: kind, Start: addr, End: end, Count: int(loc.count)}, nil)
	d.addSection(kind, addr, end-addr, -1)
	return nil
}

// decodeRecord dispatches on the chunk kind and appends one record to the
// stage. The kind set is closed; anything else is an unsupported chunk.
func (d *decoder) decodeRecord(kind ChunkKind) error {
	switch kind {
	case KindGoalList:
		return d.decodeGoal()
	case KindBumperList:
		return d.decodeBumper()
	case KindJamabarList:
		return d.decodeJamabar()
	case KindBananaList:
		return d.decodeBanana()
	case KindConeColList:
		return d.decodeConeCollision()
	case KindSphereColList:
		return d.decodeSphereCollision()
	case KindCylinderColList:
		return d.decodeCylinderCollision()
	case KindFalloutVolList:
		return d.decodeFalloutVolume()
	case KindBgModelList:
		return d.decodeBackgroundModel()
	default:
		return fmt.Errorf("%v: %w", kind, ErrUnsupportedChunkKind)
	}
}

func (d *decoder) decodeGoal() error {
	var g Goal
	var err error
	if g.Position, err = d.readVec3(); err != nil {
		return err
	}
	if g.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	t, err := d.c.ReadU8()
	if err != nil {
		return err
	}
	g.Type = GoalType(t)
	if !g.Type.Valid() {
		return fmt.Errorf("goal type %#x: %w", t, ErrMalformedChunk)
	}
	if g.Pad, err = d.c.ReadU8(); err != nil {
		return err
	}
	d.stage.Goals = append(d.stage.Goals, g)
	return nil
}

func (d *decoder) decodeBumper() error {
	var b Bumper
	var err error
	if b.Position, err = d.readVec3(); err != nil {
		return err
	}
	if b.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	if b.Pad, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}
	if b.Scale, err = d.readVec3(); err != nil {
		return err
	}
	d.stage.Bumpers = append(d.stage.Bumpers, b)
	return nil
}

func (d *decoder) decodeJamabar() error {
	var j Jamabar
	var err error
	if j.Position, err = d.readVec3(); err != nil {
		return err
	}
	if j.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	if j.Pad, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}
	if j.Scale, err = d.readVec3(); err != nil {
		return err
	}
	d.stage.Jamabars = append(d.stage.Jamabars, j)
	return nil
}

func (d *decoder) decodeBanana() error {
	var b Banana
	var err error
	if b.Position, err = d.readVec3(); err != nil {
		return err
	}
	t, err := d.c.ReadU32(d.bo)
	if err != nil {
		return err
	}
	b.Type = BananaType(t)
	if !b.Type.Valid() {
		return fmt.Errorf("banana type %#x: %w", t, ErrMalformedChunk)
	}
	d.stage.Bananas = append(d.stage.Bananas, b)
	return nil
}

func (d *decoder) decodeConeCollision() error {
	var c ConeCollision
	var err error
	if c.Position, err = d.readVec3(); err != nil {
		return err
	}
	if c.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	if c.Pad, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}
	if c.Radius1, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if c.Height, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if c.Radius2, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	d.stage.ConeCollisions = append(d.stage.ConeCollisions, c)
	return nil
}

func (d *decoder) decodeSphereCollision() error {
	var s SphereCollision
	var err error
	if s.Position, err = d.readVec3(); err != nil {
		return err
	}
	if s.Radius, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if s.Unk0x10, err = d.c.ReadU32(d.bo); err != nil {
		return err
	}
	d.stage.SphereCollisions = append(d.stage.SphereCollisions, s)
	return nil
}

func (d *decoder) decodeCylinderCollision() error {
	var c CylinderCollision
	var err error
	if c.Position, err = d.readVec3(); err != nil {
		return err
	}
	if c.Radius, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if c.Height, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if c.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	if c.Unk0x1A, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}
	d.stage.CylinderCollisions = append(d.stage.CylinderCollisions, c)
	return nil
}

func (d *decoder) decodeFalloutVolume() error {
	var f FalloutVolume
	var err error
	if f.Position, err = d.readVec3(); err != nil {
		return err
	}
	if f.Size, err = d.readVec3(); err != nil {
		return err
	}
	if f.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	if f.Unk0x1E, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}
	d.stage.FalloutVolumes = append(d.stage.FalloutVolumes, f)
	return nil
}

func (d *decoder) decodeBackgroundModel() error {
	var m BackgroundModel
	var err error
	if m.Unk0x0, err = d.c.ReadU32(d.bo); err != nil {
		return err
	}
	namePtr, err := d.c.ReadU32(d.bo)
	if err != nil {
		return err
	}
	if m.Unk0x8, err = d.c.ReadU32(d.bo); err != nil {
		return err
	}
	if m.Position, err = d.readVec3(); err != nil {
		return err
	}
	if m.Rotation, err = d.readShortVec3(); err != nil {
		return err
	}
	if m.Unk0x1E, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}
	if m.Scale, err = d.readVec3(); err != nil {
		return err
	}
	for i := range m.TailPtrs {
		if m.TailPtrs[i], err = d.c.ReadU32(d.bo); err != nil {
			return err
		}
	}

	m.Name = -1
	if namePtr != 0 {
		// Model name strings are shared: two models pointing at the same
		// offset resolve to the same arena entry.
		ret := d.c.Tell()
		if m.Name, err = d.decodeModelName(namePtr); err != nil {
			return err
		}
		if err := d.c.Seek(ret); err != nil {
			return err
		}
	}

	d.stage.BackgroundModels = append(d.stage.BackgroundModels, m)
	return nil
}

func (d *decoder) decodeModelName(ptr uint32) (int, error) {
	addr, err := d.table.Resolve(ptr)
	if err != nil {
		return -1, fmt.Errorf("model name: %w", err)
	}
	if e, ok := d.table.entity(addr); ok {
		idx, ok := e.(int)
		if !ok {
			return -1, fmt.Errorf("model name pointer 0x%x lands inside a %v: %w",
				ptr, d.table.chunks[addr].Kind, ErrDanglingPointer)
		}
		return idx, nil
	}
	if err := d.table.begin(addr, KindModelName); err != nil {
		return -1, err
	}
	if err := d.c.Seek(addr); err != nil {
		return -1, err
	}
	name, err := d.c.ReadCString()
	if err != nil {
		return -1, fmt.Errorf("read model name at 0x%x: %w", addr, err)
	}
	idx := len(d.stage.ModelNames)
	d.stage.ModelNames = append(d.stage.ModelNames, name)
	d.table.finish(Chunk{
		Kind:   KindModelName,
		Start:  addr,
		End:    addr + len(name) + 1,
		Fields: []Field{{Name: "name", Type: FieldString, Offset: 0, Width: len(name) + 1}},
	}, idx)
	d.addSection(KindModelName, addr, len(name)+1, idx)
	return idx, nil
}
