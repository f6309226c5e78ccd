package stagedef

import (
	"fmt"
)

// localListKinds maps collision-header list fields to their global lists.
var localListKinds = []struct {
	kind ChunkKind
	off  int
}{
	{KindGoalList, colGoalList},
	{KindBumperList, colBumperList},
	{KindJamabarList, colJamabarList},
	{KindBananaList, colBananaList},
	{KindConeColList, colConeColList},
	{KindSphereColList, colSphereColList},
	{KindCylinderColList, colCylinderColList},
	{KindFalloutVolList, colFalloutVolList},
}

func (d *decoder) decodeCollisionHeaders(loc listLoc) error {
	base, err := d.table.Resolve(loc.ptr)
	if err != nil {
		return fmt.Errorf("collision header list: %w", err)
	}
	for i := 0; i < int(loc.count); i++ {
		if err := d.canceled(); err != nil {
			return err
		}
		if err := d.decodeCollisionHeader(i, base+i*CollisionHeaderSize); err != nil {
			return fmt.Errorf("collision header %d: %w", i, err)
		}
	}
	return nil
}

func (d *decoder) decodeCollisionHeader(index, addr int) error {
	if addr+CollisionHeaderSize > d.c.Len() {
		return fmt.Errorf("header at 0x%x runs past the buffer: %w", addr, ErrMalformedChunk)
	}
	if err := d.table.begin(addr, KindCollisionHeader); err != nil {
		return err
	}

	var h CollisionHeader
	var err error

	if err = d.c.Seek(addr + colCenterOfRotation); err != nil {
		return err
	}
	if h.CenterOfRotation, err = d.readVec3(); err != nil {
		return fmt.Errorf("read center of rotation: %w", err)
	}
	if h.InitialRotation, err = d.readShortVec3(); err != nil {
		return fmt.Errorf("read initial rotation: %w", err)
	}
	if h.AnimationType, err = d.c.ReadU16(d.bo); err != nil {
		return fmt.Errorf("read animation type: %w", err)
	}

	if err = d.c.Seek(addr + colConveyorVector); err != nil {
		return err
	}
	if h.ConveyorVector, err = d.readVec3(); err != nil {
		return fmt.Errorf("read conveyor vector: %w", err)
	}

	if err = d.c.Seek(addr + colGridStartX); err != nil {
		return err
	}
	if h.GridStartX, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if h.GridStartZ, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if h.GridStepX, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if h.GridStepZ, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if h.GridStepXCount, err = d.c.ReadU32(d.bo); err != nil {
		return err
	}
	if h.GridStepZCount, err = d.c.ReadU32(d.bo); err != nil {
		return err
	}

	// Object lists are windows into the global lists, never fresh copies.
	windows := []*ListRef{
		&h.Goals, &h.Bumpers, &h.Jamabars, &h.Bananas,
		&h.ConeCollisions, &h.SphereCollisions, &h.CylinderCollisions, &h.FalloutVolumes,
	}
	for i, l := range localListKinds {
		loc, err := d.readListLocAt(addr + l.off)
		if err != nil {
			return fmt.Errorf("read local %v location: %w", l.kind, err)
		}
		ref, err := d.localWindow(l.kind, loc)
		if err != nil {
			return err
		}
		*windows[i] = ref
	}

	if err = d.c.Seek(addr + colAnimationID); err != nil {
		return err
	}
	if h.AnimationID, err = d.c.ReadU16(d.bo); err != nil {
		return err
	}

	if err = d.c.Seek(addr + colSeesawSens); err != nil {
		return err
	}
	if h.SeesawSensitivity, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if h.SeesawFriction, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}
	if h.SeesawSpring, err = d.c.ReadF32(d.bo); err != nil {
		return err
	}

	if h.AnimationLoopPoint, err = d.readF32At(addr + colAnimLoopPoint); err != nil {
		return err
	}

	if err := d.decodeTriangleGrid(&h, addr); err != nil {
		return err
	}

	fields := []Field{
		{Name: "centerOfRotation", Type: FieldF32, Offset: colCenterOfRotation, Width: 12},
		{Name: "initialRotation", Type: FieldU16, Offset: colInitialRotation, Width: 6},
		{Name: "animationType", Type: FieldU16, Offset: colAnimationType, Width: 2},
		{Name: "conveyorVector", Type: FieldF32, Offset: colConveyorVector, Width: 12},
		{Name: "triangleList", Type: FieldPointer, Offset: colTriangleListPtr, Width: 4},
		{Name: "gridIndexTable", Type: FieldPointer, Offset: colGridIndexListPtr, Width: 4},
		{Name: "animationID", Type: FieldU16, Offset: colAnimationID, Width: 2},
		{Name: "seesawSensitivity", Type: FieldF32, Offset: colSeesawSens, Width: 4},
		{Name: "seesawFriction", Type: FieldF32, Offset: colSeesawFriction, Width: 4},
		{Name: "seesawSpring", Type: FieldF32, Offset: colSeesawSpring, Width: 4},
		{Name: "animationLoopPoint", Type: FieldF32, Offset: colAnimLoopPoint, Width: 4},
	}
	for _, l := range localListKinds {
		fields = append(fields, Field{Name: l.kind.String(), Type: FieldCountPointer, Offset: l.off, Width: 8})
	}

	d.stage.CollisionHeaders = append(d.stage.CollisionHeaders, h)
	d.table.finish(Chunk{Kind: KindCollisionHeader, Start: addr, End: addr + CollisionHeaderSize, Fields: fields}, nil)
	d.addSection(KindCollisionHeader, addr, CollisionHeaderSize, index)
	return nil
}

// localWindow matches a collision header's local list against the global
// list of the same kind and returns the window it denotes. Local lists
// that are not windows of their global list are structural errors; nothing
// is read twice and nothing is silently re-decoded.
func (d *decoder) localWindow(kind ChunkKind, loc listLoc) (ListRef, error) {
	if loc.absent() {
		return ListRef{}, nil
	}
	global, ok := d.globals[kind]
	if !ok || global.absent() {
		return ListRef{}, fmt.Errorf("local %v with no global list: %w", kind, ErrMalformedChunk)
	}
	if loc.ptr < global.ptr {
		return ListRef{}, fmt.Errorf("local %v at 0x%x precedes global list at 0x%x: %w",
			kind, loc.ptr, global.ptr, ErrMalformedChunk)
	}
	size := recordSize(kind)
	diff := int(loc.ptr - global.ptr)
	if diff%size != 0 {
		return ListRef{}, fmt.Errorf("local %v at 0x%x misaligned with global records: %w",
			kind, loc.ptr, ErrMalformedChunk)
	}
	first := diff / size
	if first+int(loc.count) > int(global.count) {
		return ListRef{}, fmt.Errorf("local %v window [%d,%d) exceeds %d global records: %w",
			kind, first, first+int(loc.count), global.count, ErrMalformedChunk)
	}
	return ListRef{First: first, Count: int(loc.count)}, nil
}

// decodeTriangleGrid reads the collision triangle list and the grid of
// per-cell triangle index lists.
//
// The triangle list carries no stored count: its length is implied by the
// highest index used by any grid cell. Grid cell lists must follow their
// pointer table; the whole block is recorded as one chunk.
func (d *decoder) decodeTriangleGrid(h *CollisionHeader, base int) error {
	triPtr, err := d.readPtrAt(base + colTriangleListPtr)
	if err != nil {
		return err
	}
	gridPtr, err := d.readPtrAt(base + colGridIndexListPtr)
	if err != nil {
		return err
	}

	// The raw pointers are recorded even when the referenced data is not
	// decoded, so re-encoding an unedited stage reproduces them.
	h.TriangleListOffset = triPtr
	h.GridTableOffset = gridPtr

	// Cell count in 64 bits: the stored dimensions multiply past int range.
	cells := uint64(h.GridStepXCount) * uint64(h.GridStepZCount)
	maxIndex := -1

	if gridPtr != 0 && cells > 0 {
		tableAddr, err := d.table.Resolve(gridPtr)
		if err != nil {
			return fmt.Errorf("grid index table: %w", err)
		}
		// The pointer table alone needs 4 bytes per cell; reject before
		// allocating anything sized by the stored dimensions.
		if room := uint64(d.c.Len()-tableAddr) / 4; cells > room {
			return fmt.Errorf("grid table at 0x%x declares %d cells, %d fit the buffer: %w",
				tableAddr, cells, room, ErrMalformedChunk)
		}
		if e, ok := d.table.entity(tableAddr); ok {
			// Shared grid between headers.
			cellsShared, ok := e.([][]uint16)
			if !ok || uint64(len(cellsShared)) != cells {
				return fmt.Errorf("grid table at 0x%x reused with different shape: %w", tableAddr, ErrMalformedChunk)
			}
			h.GridCells = cellsShared
			maxIndex = maxGridIndex(cellsShared)
		} else {
			cellsDecoded, end, err := d.decodeGridBlock(tableAddr, int(cells))
			if err != nil {
				return err
			}
			h.GridCells = cellsDecoded
			maxIndex = maxGridIndex(cellsDecoded)
			d.table.finish(Chunk{Kind: KindGridIndexTable, Start: tableAddr, End: end, Count: int(cells)}, cellsDecoded)
			d.addSection(KindGridIndexTable, tableAddr, end-tableAddr, len(d.stage.CollisionHeaders))
		}
	}

	if triPtr == 0 || maxIndex < 0 {
		return nil
	}

	triAddr, err := d.table.Resolve(triPtr)
	if err != nil {
		return fmt.Errorf("triangle list: %w", err)
	}

	if e, ok := d.table.entity(triAddr); ok {
		tris, ok := e.([]Triangle)
		if !ok {
			return fmt.Errorf("triangle pointer 0x%x lands inside a %v: %w",
				triPtr, d.table.chunks[triAddr].Kind, ErrDanglingPointer)
		}
		if maxIndex >= len(tris) {
			return fmt.Errorf("grid index %d exceeds shared triangle list of %d: %w",
				maxIndex, len(tris), ErrMalformedChunk)
		}
		h.Triangles = tris
		return nil
	}

	count := maxIndex + 1
	if err := d.table.begin(triAddr, KindTriangleList); err != nil {
		return err
	}
	end := triAddr + count*TriangleSize
	if end > d.c.Len() {
		return fmt.Errorf("%d triangles at 0x%x run past the buffer: %w", count, triAddr, ErrMalformedChunk)
	}
	if err := d.c.Seek(triAddr); err != nil {
		return err
	}
	tris := make([]Triangle, 0, count)
	for i := 0; i < count; i++ {
		t, err := d.decodeTriangle()
		if err != nil {
			return fmt.Errorf("triangle %d: %w", i, err)
		}
		tris = append(tris, t)
	}
	h.Triangles = tris
	d.table.finish(Chunk{Kind: KindTriangleList, Start: triAddr, End: end, Count: count}, tris)
	d.addSection(KindTriangleList, triAddr, end-triAddr, len(d.stage.CollisionHeaders))
	return nil
}

// decodeGridBlock reads a grid pointer table and the index lists packed
// after it, returning the cells and the end of the block.
func (d *decoder) decodeGridBlock(tableAddr, cells int) ([][]uint16, int, error) {
	if err := d.table.begin(tableAddr, KindGridIndexTable); err != nil {
		return nil, 0, err
	}
	if err := d.c.Seek(tableAddr); err != nil {
		return nil, 0, err
	}
	ptrs := make([]uint32, cells)
	for i := range ptrs {
		p, err := d.c.ReadU32(d.bo)
		if err != nil {
			return nil, 0, fmt.Errorf("grid pointer %d: %w", i, err)
		}
		ptrs[i] = p
	}

	tableEnd := tableAddr + 4*cells
	end := tableEnd
	out := make([][]uint16, cells)
	for i, p := range ptrs {
		if p == 0 {
			continue
		}
		addr, err := d.table.Resolve(p)
		if err != nil {
			return nil, 0, fmt.Errorf("grid cell %d: %w", i, err)
		}
		if addr < tableEnd {
			return nil, 0, fmt.Errorf("grid cell %d at 0x%x precedes its table: %w", i, addr, ErrMalformedChunk)
		}
		if err := d.c.Seek(addr); err != nil {
			return nil, 0, err
		}
		var list []uint16
		for {
			v, err := d.c.ReadU16(d.bo)
			if err != nil {
				return nil, 0, fmt.Errorf("grid cell %d: %w", i, err)
			}
			if v == gridListTerminator {
				break
			}
			list = append(list, v)
		}
		out[i] = list
		if d.c.Tell() > end {
			end = d.c.Tell()
		}
	}
	return out, end, nil
}

func maxGridIndex(cells [][]uint16) int {
	max := -1
	for _, cell := range cells {
		for _, idx := range cell {
			if int(idx) > max {
				max = int(idx)
			}
		}
	}
	return max
}

func (d *decoder) decodeTriangle() (Triangle, error) {
	var t Triangle
	var err error
	if t.Position, err = d.readVec3(); err != nil {
		return t, err
	}
	if t.Normal, err = d.readVec3(); err != nil {
		return t, err
	}
	if t.Rotation, err = d.readShortVec3(); err != nil {
		return t, err
	}
	if t.Pad, err = d.c.ReadU16(d.bo); err != nil {
		return t, err
	}
	if t.DeltaP2, err = d.readVec2(); err != nil {
		return t, err
	}
	if t.DeltaP3, err = d.readVec2(); err != nil {
		return t, err
	}
	if t.Tangent, err = d.readVec2(); err != nil {
		return t, err
	}
	if t.Binormal, err = d.readVec2(); err != nil {
		return t, err
	}
	return t, nil
}
