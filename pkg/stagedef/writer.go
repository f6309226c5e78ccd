package stagedef

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/TheBombSquad/MKBViewer/pkg/cursor"
)

// Auxiliary pointer slots the stage model does not carry semantically.
// Their values are copied from the source image and pushed through the
// address map so they keep pointing at the bytes they pointed at.
var (
	hdrAuxPtrSlots = []int{
		0x64, // foreground model list
		0x74, // reflective model list
		0x88, // model instance list
		0x94, // model pointer list A
		0x9C, // model pointer list B
		0xAC, // switch list
		0xB0, // fog animation header
		0xB8, // wormhole list
		0xBC, // fog header
		0xD4, // mystery 3
	}
	colAuxPtrSlots = []int{
		0x14, // animation header
		0x88, // reflective model list
		0x90, // model instance list
		0x98, // model pointer list B
		0xAC, // switch list
		0xC8, // wormhole list
		0xD8, // texture scroll header
	}
)

type encoder struct {
	ctx   context.Context
	stage *Stage
	bo    binary.ByteOrder
	src   []byte

	placements []placement
	gaps       []region
	byStart    map[int]*placement
	listStart  map[ChunkKind]*placement
	gridByRef  map[int]*placement
	triByOwner map[*Triangle]*placement
	nameByRef  map[int]*placement
	amap       addrMap
	total      int

	c *cursor.Cursor
}

// Encode serializes a stage back to a raw stagedef image.
//
// Stages that came from Decode reproduce their source image byte for byte
// when nothing was edited. Edits that change a chunk's size shift every
// later chunk by the growth rounded up to four bytes; all pointers,
// modeled or not, are repaired to the new offsets. Stages built
// programmatically are laid out in canonical file order.
func Encode(ctx context.Context, s *Stage) ([]byte, error) {
	bo := s.ByteOrder
	if bo == nil {
		bo = binary.BigEndian
	}
	if err := validateEncodable(s); err != nil {
		return nil, err
	}

	e := &encoder{
		ctx:        ctx,
		stage:      s,
		bo:         bo,
		byStart:    make(map[int]*placement),
		listStart:  make(map[ChunkKind]*placement),
		gridByRef:  make(map[int]*placement),
		triByOwner: make(map[*Triangle]*placement),
		nameByRef:  make(map[int]*placement),
	}
	if s.layout != nil {
		e.src = s.layout.src
	}

	if err := e.plan(); err != nil {
		return nil, err
	}
	return e.write()
}

func validateEncodable(s *Stage) error {
	for i, g := range s.Goals {
		if !g.Type.Valid() {
			return fmt.Errorf("goal %d has type %#x: %w", i, uint8(g.Type), ErrUnencodableEdit)
		}
	}
	for i, b := range s.Bananas {
		if !b.Type.Valid() {
			return fmt.Errorf("banana %d has type %#x: %w", i, uint32(b.Type), ErrUnencodableEdit)
		}
	}
	for i, name := range s.ModelNames {
		if strings.ContainsRune(name, 0) {
			return fmt.Errorf("model name %d contains a NUL byte: %w", i, ErrUnencodableEdit)
		}
	}
	for i, m := range s.BackgroundModels {
		if m.Name < -1 || m.Name >= len(s.ModelNames) {
			return fmt.Errorf("background model %d references model name %d of %d: %w",
				i, m.Name, len(s.ModelNames), ErrUnencodableEdit)
		}
	}

	if s.layout != nil {
		decoded := 0
		for _, sec := range s.layout.sections {
			if sec.kind == KindCollisionHeader {
				decoded++
			}
		}
		if decoded != len(s.CollisionHeaders) {
			return fmt.Errorf("collision header count changed from %d to %d: %w",
				decoded, len(s.CollisionHeaders), ErrUnencodableEdit)
		}
	}

	for i := range s.CollisionHeaders {
		h := &s.CollisionHeaders[i]
		windows := []struct {
			name string
			ref  ListRef
			n    int
		}{
			{"goal", h.Goals, len(s.Goals)},
			{"bumper", h.Bumpers, len(s.Bumpers)},
			{"jamabar", h.Jamabars, len(s.Jamabars)},
			{"banana", h.Bananas, len(s.Bananas)},
			{"cone", h.ConeCollisions, len(s.ConeCollisions)},
			{"sphere", h.SphereCollisions, len(s.SphereCollisions)},
			{"cylinder", h.CylinderCollisions, len(s.CylinderCollisions)},
			{"fallout volume", h.FalloutVolumes, len(s.FalloutVolumes)},
		}
		for _, w := range windows {
			if w.ref.First < 0 || w.ref.Count < 0 || w.ref.First+w.ref.Count > w.n {
				return fmt.Errorf("collision header %d %s window [%d,%d) exceeds %d records: %w",
					i, w.name, w.ref.First, w.ref.First+w.ref.Count, w.n, ErrUnencodableEdit)
			}
		}

		if h.GridCells != nil {
			want := uint64(h.GridStepXCount) * uint64(h.GridStepZCount)
			if uint64(len(h.GridCells)) != want {
				return fmt.Errorf("collision header %d has %d grid cells, dimensions say %d: %w",
					i, len(h.GridCells), want, ErrUnencodableEdit)
			}
			for j, cell := range h.GridCells {
				for _, idx := range cell {
					if idx == gridListTerminator {
						return fmt.Errorf("collision header %d grid cell %d uses the terminator value: %w",
							i, j, ErrUnencodableEdit)
					}
					if int(idx) >= len(h.Triangles) {
						return fmt.Errorf("collision header %d grid cell %d indexes triangle %d of %d: %w",
							i, j, idx, len(h.Triangles), ErrUnencodableEdit)
					}
				}
			}
		}
	}
	return nil
}

// plan is the first pass: place every section in the output image, keep
// inter-section gaps verbatim, and append sections for content the source
// image never had.
func (e *encoder) plan() error {
	var existing []section
	if e.stage.layout != nil {
		existing = e.stage.layout.sections
	}

	pos := 0
	prevOldEnd := 0
	for _, sec := range existing {
		if gap := sec.start - prevOldEnd; gap > 0 {
			e.gaps = append(e.gaps, region{oldStart: prevOldEnd, newStart: pos, size: gap})
			e.amap.add(prevOldEnd, pos, gap)
			pos += gap
		}
		newSize, err := e.sectionSize(sec)
		if err != nil {
			return err
		}
		eff := effectiveSize(sec.size, newSize)
		e.place(placement{sec: sec, newStart: pos, newSize: newSize, effSize: eff})
		e.amap.add(sec.start, pos, sec.size)
		pos += eff
		prevOldEnd = sec.end()
	}
	if trailing := len(e.src) - prevOldEnd; trailing > 0 {
		e.gaps = append(e.gaps, region{oldStart: prevOldEnd, newStart: pos, size: trailing})
		e.amap.add(prevOldEnd, pos, trailing)
		pos += trailing
	}

	for _, sec := range e.missingSections() {
		pos = roundUp4(pos)
		newSize, err := e.sectionSize(sec)
		if err != nil {
			return err
		}
		e.place(placement{sec: sec, newStart: pos, newSize: newSize, effSize: roundUp4(newSize)})
		pos += roundUp4(newSize)
	}

	e.total = pos
	return nil
}

func (e *encoder) place(pl placement) {
	e.placements = append(e.placements, pl)
	p := &e.placements[len(e.placements)-1]
	if p.sec.start >= 0 {
		e.byStart[p.sec.start] = p
	}
	switch p.sec.kind {
	case KindGoalList, KindBumperList, KindJamabarList, KindBananaList,
		KindConeColList, KindSphereColList, KindCylinderColList,
		KindFalloutVolList, KindBgModelList,
		KindFileHeader, KindStartPosition, KindFalloutLevel:
		e.listStart[p.sec.kind] = p
	case KindGridIndexTable:
		e.gridByRef[p.sec.ref] = p
	case KindTriangleList:
		tris := e.stage.CollisionHeaders[p.sec.ref].Triangles
		if len(tris) > 0 {
			e.triByOwner[&tris[0]] = p
		}
	case KindModelName:
		e.nameByRef[p.sec.ref] = p
	}
}

// missingSections returns sections, in canonical file order, for stage
// content that has no region in the source image. For a stage with no
// layout at all this builds the entire file.
func (e *encoder) missingSections() []section {
	fresh := e.stage.layout == nil
	var out []section
	add := func(kind ChunkKind, ref int) {
		out = append(out, section{kind: kind, start: -1, ref: ref})
	}

	if _, ok := e.listStart[KindFileHeader]; !ok {
		add(KindFileHeader, -1)
	}
	if _, ok := e.listStart[KindStartPosition]; !ok {
		if fresh || e.stage.Start != (StartPosition{}) {
			add(KindStartPosition, -1)
		}
	}
	if _, ok := e.listStart[KindFalloutLevel]; !ok {
		if fresh || e.stage.FalloutLevel != 0 {
			add(KindFalloutLevel, -1)
		}
	}
	for _, g := range globalListKinds {
		if _, ok := e.listStart[g.kind]; !ok && e.listLen(g.kind) > 0 {
			add(g.kind, -1)
		}
	}
	for idx := range e.stage.ModelNames {
		if _, ok := e.nameByRef[idx]; !ok {
			add(KindModelName, idx)
		}
	}
	for i := range e.stage.CollisionHeaders {
		if fresh {
			add(KindCollisionHeader, i)
		}
	}
	seenTris := make(map[*Triangle]bool)
	for i := range e.stage.CollisionHeaders {
		h := &e.stage.CollisionHeaders[i]
		if h.GridCells != nil && e.gridFor(h, i) == nil {
			add(KindGridIndexTable, i)
		}
		if len(h.Triangles) > 0 && e.triangleFor(h) == nil && !seenTris[&h.Triangles[0]] {
			seenTris[&h.Triangles[0]] = true
			add(KindTriangleList, i)
		}
	}
	return out
}

func (e *encoder) listLen(kind ChunkKind) int {
	switch kind {
	case KindGoalList:
		return len(e.stage.Goals)
	case KindBumperList:
		return len(e.stage.Bumpers)
	case KindJamabarList:
		return len(e.stage.Jamabars)
	case KindBananaList:
		return len(e.stage.Bananas)
	case KindConeColList:
		return len(e.stage.ConeCollisions)
	case KindSphereColList:
		return len(e.stage.SphereCollisions)
	case KindCylinderColList:
		return len(e.stage.CylinderCollisions)
	case KindFalloutVolList:
		return len(e.stage.FalloutVolumes)
	case KindBgModelList:
		return len(e.stage.BackgroundModels)
	}
	return 0
}

func (e *encoder) sectionSize(sec section) (int, error) {
	switch sec.kind {
	case KindFileHeader:
		return FileHeaderSize, nil
	case KindStartPosition:
		return StartPosSize, nil
	case KindFalloutLevel:
		return FalloutLevelSize, nil
	case KindCollisionHeader:
		return CollisionHeaderSize, nil
	case KindModelName:
		return len(e.stage.ModelNames[sec.ref]) + 1, nil
	case KindTriangleList:
		return len(e.stage.CollisionHeaders[sec.ref].Triangles) * TriangleSize, nil
	case KindGridIndexTable:
		h := &e.stage.CollisionHeaders[sec.ref]
		n := 4 * len(h.GridCells)
		for _, cell := range h.GridCells {
			if cell != nil {
				n += 2 * (len(cell) + 1)
			}
		}
		return n, nil
	default:
		if recordSize(sec.kind) > 0 {
			return e.listLen(sec.kind) * recordSize(sec.kind), nil
		}
		return 0, fmt.Errorf("%v: %w", sec.kind, ErrUnsupportedChunkKind)
	}
}

// gridFor resolves the grid block placement for a header: by source
// address when the header was decoded, by index for synthesized grids.
func (e *encoder) gridFor(h *CollisionHeader, idx int) *placement {
	if h.GridTableOffset != 0 {
		if p, ok := e.byStart[int(h.GridTableOffset)]; ok && p.sec.kind == KindGridIndexTable {
			return p
		}
	}
	return e.gridByRef[idx]
}

func (e *encoder) triangleFor(h *CollisionHeader) *placement {
	if h.TriangleListOffset != 0 {
		if p, ok := e.byStart[int(h.TriangleListOffset)]; ok && p.sec.kind == KindTriangleList {
			return p
		}
	}
	if len(h.Triangles) == 0 {
		return nil
	}
	return e.triByOwner[&h.Triangles[0]]
}

func (e *encoder) listPtr(kind ChunkKind) (uint32, uint32) {
	n := e.listLen(kind)
	p, ok := e.listStart[kind]
	if n == 0 || !ok {
		return 0, 0
	}
	return uint32(n), uint32(p.newStart)
}

func (e *encoder) ptrOf(kind ChunkKind) uint32 {
	if p, ok := e.listStart[kind]; ok {
		return uint32(p.newStart)
	}
	return 0
}

// write is the second pass: emit gaps verbatim and every section at its
// planned position.
func (e *encoder) write() ([]byte, error) {
	e.c = cursor.NewWriterSize(e.total)

	for _, g := range e.gaps {
		if err := e.c.Seek(g.newStart); err != nil {
			return nil, err
		}
		if err := e.c.WriteBytes(e.src[g.oldStart : g.oldStart+g.size]); err != nil {
			return nil, err
		}
	}

	for i := range e.placements {
		if err := e.ctx.Err(); err != nil {
			return nil, fmt.Errorf("encode canceled: %w", err)
		}
		p := &e.placements[i]
		if err := e.c.Seek(p.newStart); err != nil {
			return nil, err
		}
		if err := e.writeSection(p); err != nil {
			return nil, fmt.Errorf("write %v: %w", p.sec.kind, err)
		}
	}

	return e.c.Bytes(), nil
}

// copySource seeds a section's output span with its source bytes so
// unmodeled fields survive; synthesized sections start zeroed.
func (e *encoder) copySource(p *placement) error {
	if e.src == nil || p.sec.start < 0 {
		return nil
	}
	n := p.sec.size
	if p.newSize < n {
		n = p.newSize
	}
	return e.c.WriteBytes(e.src[p.sec.start : p.sec.start+n])
}

func (e *encoder) writeSection(p *placement) error {
	switch p.sec.kind {
	case KindFileHeader:
		return e.writeFileHeader(p)
	case KindStartPosition:
		return e.writeStartPosition()
	case KindFalloutLevel:
		return e.c.WriteF32(e.bo, e.stage.FalloutLevel)
	case KindCollisionHeader:
		return e.writeCollisionHeader(p)
	case KindGridIndexTable:
		return e.writeGridBlock(p)
	case KindTriangleList:
		for _, t := range e.stage.CollisionHeaders[p.sec.ref].Triangles {
			if err := e.writeTriangle(t); err != nil {
				return err
			}
		}
		return nil
	case KindModelName:
		return e.c.WriteCString(e.stage.ModelNames[p.sec.ref])
	default:
		return e.writeGlobalList(p.sec.kind)
	}
}

func (e *encoder) writeFileHeader(p *placement) error {
	if err := e.copySource(p); err != nil {
		return err
	}
	base := p.newStart

	if err := e.c.Seek(base + hdrMagic1); err != nil {
		return err
	}
	if err := e.c.WriteF32(e.bo, e.stage.Magic1); err != nil {
		return err
	}
	if err := e.c.WriteF32(e.bo, e.stage.Magic2); err != nil {
		return err
	}

	var colPtr uint32
	if first := e.findCollision(0); first != nil {
		colPtr = uint32(first.newStart)
	}
	if err := e.writeCountPtrAt(base+hdrCollisionList, uint32(len(e.stage.CollisionHeaders)), colPtr); err != nil {
		return err
	}

	if err := e.writeU32At(base+hdrStartPosPtr, e.ptrOf(KindStartPosition)); err != nil {
		return err
	}
	if err := e.writeU32At(base+hdrFalloutLevelPtr, e.ptrOf(KindFalloutLevel)); err != nil {
		return err
	}

	for _, g := range globalListKinds {
		count, ptr := e.listPtr(g.kind)
		if err := e.writeCountPtrAt(base+g.off, count, ptr); err != nil {
			return err
		}
	}

	return e.remapSlots(base, hdrAuxPtrSlots, p)
}

func (e *encoder) findCollision(ref int) *placement {
	for i := range e.placements {
		p := &e.placements[i]
		if p.sec.kind == KindCollisionHeader && p.sec.ref == ref {
			return p
		}
	}
	return nil
}

func (e *encoder) writeStartPosition() error {
	s := e.stage.Start
	if err := e.writeVec3(s.Position); err != nil {
		return err
	}
	if err := e.writeShortVec3(s.Rotation); err != nil {
		return err
	}
	return e.c.WriteU16(e.bo, s.Pad)
}

func (e *encoder) writeGlobalList(kind ChunkKind) error {
	switch kind {
	case KindGoalList:
		for _, g := range e.stage.Goals {
			if err := e.writeGoal(g); err != nil {
				return err
			}
		}
	case KindBumperList:
		for _, b := range e.stage.Bumpers {
			if err := e.writeBumper(b); err != nil {
				return err
			}
		}
	case KindJamabarList:
		for _, j := range e.stage.Jamabars {
			if err := e.writeJamabar(j); err != nil {
				return err
			}
		}
	case KindBananaList:
		for _, b := range e.stage.Bananas {
			if err := e.writeBanana(b); err != nil {
				return err
			}
		}
	case KindConeColList:
		for _, c := range e.stage.ConeCollisions {
			if err := e.writeConeCollision(c); err != nil {
				return err
			}
		}
	case KindSphereColList:
		for _, s := range e.stage.SphereCollisions {
			if err := e.writeSphereCollision(s); err != nil {
				return err
			}
		}
	case KindCylinderColList:
		for _, c := range e.stage.CylinderCollisions {
			if err := e.writeCylinderCollision(c); err != nil {
				return err
			}
		}
	case KindFalloutVolList:
		for _, f := range e.stage.FalloutVolumes {
			if err := e.writeFalloutVolume(f); err != nil {
				return err
			}
		}
	case KindBgModelList:
		for _, m := range e.stage.BackgroundModels {
			if err := e.writeBackgroundModel(m); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%v: %w", kind, ErrUnsupportedChunkKind)
	}
	return nil
}

func (e *encoder) writeCollisionHeader(p *placement) error {
	if err := e.copySource(p); err != nil {
		return err
	}
	base := p.newStart
	h := &e.stage.CollisionHeaders[p.sec.ref]

	if err := e.c.Seek(base + colCenterOfRotation); err != nil {
		return err
	}
	if err := e.writeVec3(h.CenterOfRotation); err != nil {
		return err
	}
	if err := e.writeShortVec3(h.InitialRotation); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, h.AnimationType); err != nil {
		return err
	}

	if err := e.c.Seek(base + colConveyorVector); err != nil {
		return err
	}
	if err := e.writeVec3(h.ConveyorVector); err != nil {
		return err
	}

	// A header can carry a triangle or grid pointer whose data was never
	// decoded (absent grid, empty cells); such pointers pass through the
	// address map like the aux slots.
	var triPtr, gridPtr uint32
	if tp := e.triangleFor(h); tp != nil {
		triPtr = uint32(tp.newStart)
	} else if h.TriangleListOffset != 0 {
		triPtr = e.amap.translate(h.TriangleListOffset)
	}
	if gp := e.gridFor(h, p.sec.ref); gp != nil {
		gridPtr = uint32(gp.newStart)
	} else if h.GridTableOffset != 0 {
		gridPtr = e.amap.translate(h.GridTableOffset)
	}
	if err := e.writeU32At(base+colTriangleListPtr, triPtr); err != nil {
		return err
	}
	if err := e.writeU32At(base+colGridIndexListPtr, gridPtr); err != nil {
		return err
	}

	if err := e.c.Seek(base + colGridStartX); err != nil {
		return err
	}
	for _, v := range []float32{h.GridStartX, h.GridStartZ, h.GridStepX, h.GridStepZ} {
		if err := e.c.WriteF32(e.bo, v); err != nil {
			return err
		}
	}
	if err := e.c.WriteU32(e.bo, h.GridStepXCount); err != nil {
		return err
	}
	if err := e.c.WriteU32(e.bo, h.GridStepZCount); err != nil {
		return err
	}

	windows := []ListRef{
		h.Goals, h.Bumpers, h.Jamabars, h.Bananas,
		h.ConeCollisions, h.SphereCollisions, h.CylinderCollisions, h.FalloutVolumes,
	}
	for i, l := range localListKinds {
		w := windows[i]
		var count, ptr uint32
		if w.Count > 0 {
			gp, ok := e.listStart[l.kind]
			if !ok {
				return fmt.Errorf("local %v window with no global list: %w", l.kind, ErrUnencodableEdit)
			}
			count = uint32(w.Count)
			ptr = uint32(gp.newStart + w.First*recordSize(l.kind))
		}
		if err := e.writeCountPtrAt(base+l.off, count, ptr); err != nil {
			return err
		}
	}

	if err := e.c.Seek(base + colAnimationID); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, h.AnimationID); err != nil {
		return err
	}
	if err := e.c.Seek(base + colSeesawSens); err != nil {
		return err
	}
	for _, v := range []float32{h.SeesawSensitivity, h.SeesawFriction, h.SeesawSpring} {
		if err := e.c.WriteF32(e.bo, v); err != nil {
			return err
		}
	}
	if err := e.c.Seek(base + colAnimLoopPoint); err != nil {
		return err
	}
	if err := e.c.WriteF32(e.bo, h.AnimationLoopPoint); err != nil {
		return err
	}

	return e.remapSlots(base, colAuxPtrSlots, p)
}

func (e *encoder) writeGridBlock(p *placement) error {
	h := &e.stage.CollisionHeaders[p.sec.ref]
	cells := h.GridCells
	listPos := p.newStart + 4*len(cells)

	for _, cell := range cells {
		var ptr uint32
		if cell != nil {
			ptr = uint32(listPos)
			listPos += 2 * (len(cell) + 1)
		}
		if err := e.c.WriteU32(e.bo, ptr); err != nil {
			return err
		}
	}
	for _, cell := range cells {
		if cell == nil {
			continue
		}
		for _, idx := range cell {
			if err := e.c.WriteU16(e.bo, idx); err != nil {
				return err
			}
		}
		if err := e.c.WriteU16(e.bo, gridListTerminator); err != nil {
			return err
		}
	}
	return nil
}

// remapSlots rewrites auxiliary pointer values inside a copied header so
// they track the spans they pointed at in the source image. Synthesized
// headers have nothing to remap.
func (e *encoder) remapSlots(base int, slots []int, p *placement) error {
	if e.src == nil || p.sec.start < 0 {
		return nil
	}
	for _, off := range slots {
		old := e.bo.Uint32(e.src[p.sec.start+off:])
		if err := e.writeU32At(base+off, e.amap.translate(old)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeU32At(off int, v uint32) error {
	if err := e.c.Seek(off); err != nil {
		return err
	}
	return e.c.WriteU32(e.bo, v)
}

func (e *encoder) writeCountPtrAt(off int, count, ptr uint32) error {
	if err := e.c.Seek(off); err != nil {
		return err
	}
	if err := e.c.WriteU32(e.bo, count); err != nil {
		return err
	}
	return e.c.WriteU32(e.bo, ptr)
}

func (e *encoder) writeVec3(v Vec3) error {
	for _, f := range []float32{v.X, v.Y, v.Z} {
		if err := e.c.WriteF32(e.bo, f); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeVec2(v Vec2) error {
	if err := e.c.WriteF32(e.bo, v.X); err != nil {
		return err
	}
	return e.c.WriteF32(e.bo, v.Y)
}

func (e *encoder) writeShortVec3(v ShortVec3) error {
	for _, u := range []uint16{v.X, v.Y, v.Z} {
		if err := e.c.WriteU16(e.bo, u); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeGoal(g Goal) error {
	if err := e.writeVec3(g.Position); err != nil {
		return err
	}
	if err := e.writeShortVec3(g.Rotation); err != nil {
		return err
	}
	if err := e.c.WriteU8(uint8(g.Type)); err != nil {
		return err
	}
	return e.c.WriteU8(g.Pad)
}

func (e *encoder) writeBumper(b Bumper) error {
	if err := e.writeVec3(b.Position); err != nil {
		return err
	}
	if err := e.writeShortVec3(b.Rotation); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, b.Pad); err != nil {
		return err
	}
	return e.writeVec3(b.Scale)
}

func (e *encoder) writeJamabar(j Jamabar) error {
	if err := e.writeVec3(j.Position); err != nil {
		return err
	}
	if err := e.writeShortVec3(j.Rotation); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, j.Pad); err != nil {
		return err
	}
	return e.writeVec3(j.Scale)
}

func (e *encoder) writeBanana(b Banana) error {
	if err := e.writeVec3(b.Position); err != nil {
		return err
	}
	return e.c.WriteU32(e.bo, uint32(b.Type))
}

func (e *encoder) writeConeCollision(c ConeCollision) error {
	if err := e.writeVec3(c.Position); err != nil {
		return err
	}
	if err := e.writeShortVec3(c.Rotation); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, c.Pad); err != nil {
		return err
	}
	for _, f := range []float32{c.Radius1, c.Height, c.Radius2} {
		if err := e.c.WriteF32(e.bo, f); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeSphereCollision(s SphereCollision) error {
	if err := e.writeVec3(s.Position); err != nil {
		return err
	}
	if err := e.c.WriteF32(e.bo, s.Radius); err != nil {
		return err
	}
	return e.c.WriteU32(e.bo, s.Unk0x10)
}

func (e *encoder) writeCylinderCollision(c CylinderCollision) error {
	if err := e.writeVec3(c.Position); err != nil {
		return err
	}
	if err := e.c.WriteF32(e.bo, c.Radius); err != nil {
		return err
	}
	if err := e.c.WriteF32(e.bo, c.Height); err != nil {
		return err
	}
	if err := e.writeShortVec3(c.Rotation); err != nil {
		return err
	}
	return e.c.WriteU16(e.bo, c.Unk0x1A)
}

func (e *encoder) writeFalloutVolume(f FalloutVolume) error {
	if err := e.writeVec3(f.Position); err != nil {
		return err
	}
	if err := e.writeVec3(f.Size); err != nil {
		return err
	}
	if err := e.writeShortVec3(f.Rotation); err != nil {
		return err
	}
	return e.c.WriteU16(e.bo, f.Unk0x1E)
}

func (e *encoder) writeBackgroundModel(m BackgroundModel) error {
	if err := e.c.WriteU32(e.bo, m.Unk0x0); err != nil {
		return err
	}
	var namePtr uint32
	if m.Name >= 0 {
		if p, ok := e.nameByRef[m.Name]; ok {
			namePtr = uint32(p.newStart)
		}
	}
	if err := e.c.WriteU32(e.bo, namePtr); err != nil {
		return err
	}
	if err := e.c.WriteU32(e.bo, m.Unk0x8); err != nil {
		return err
	}
	if err := e.writeVec3(m.Position); err != nil {
		return err
	}
	if err := e.writeShortVec3(m.Rotation); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, m.Unk0x1E); err != nil {
		return err
	}
	if err := e.writeVec3(m.Scale); err != nil {
		return err
	}
	// The tail pointers address animation and effect headers the stage
	// does not model; keep them tracking their targets.
	for _, ptr := range m.TailPtrs {
		if err := e.c.WriteU32(e.bo, e.amap.translate(ptr)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeTriangle(t Triangle) error {
	if err := e.writeVec3(t.Position); err != nil {
		return err
	}
	if err := e.writeVec3(t.Normal); err != nil {
		return err
	}
	if err := e.writeShortVec3(t.Rotation); err != nil {
		return err
	}
	if err := e.c.WriteU16(e.bo, t.Pad); err != nil {
		return err
	}
	for _, v := range []Vec2{t.DeltaP2, t.DeltaP3, t.Tangent, t.Binormal} {
		if err := e.writeVec2(v); err != nil {
			return err
		}
	}
	return nil
}
