// Package stagedef decodes and re-encodes Monkey Ball stage definition
// binaries.
//
// A stagedef is a single image holding a fixed-size file header full of
// pointer fields. Pointers are absolute byte offsets from the start of the
// file; list pointers are (count, offset) pairs where a zero count or zero
// offset marks an absent list. Collision headers embed further pointer
// fields at fixed offsets relative to the header start, whose stored values
// are again absolute. The payload byte order is detected from the float
// magic pair at the start of the file.
package stagedef

// Game selects a header format variant.
type Game int

const (
	// SMB2 is the main game format, also used by SMBDX.
	SMB2 Game = iota
)

func (g Game) String() string {
	switch g {
	case SMB2:
		return "SMB2"
	default:
		return "unknown game"
	}
}

// Magic values expected at the start of every stagedef.
const (
	Magic1 = float32(0.0)
	Magic2 = float32(1000.0)
)

// Record and header sizes in bytes.
const (
	FileHeaderSize      = 0x89C
	CollisionHeaderSize = 0x49C

	GoalSize          = 0x14
	BananaSize        = 0x10
	BumperSize        = 0x20
	JamabarSize       = 0x20
	ConeColSize       = 0x20
	SphereColSize     = 0x14
	CylinderColSize   = 0x1C
	FalloutVolumeSize = 0x20
	BgModelSize       = 0x38
	TriangleSize      = 0x40
	StartPosSize      = 0x14
	FalloutLevelSize  = 0x4
)

// File header field offsets (SMB2).
const (
	hdrMagic1          = 0x00
	hdrMagic2          = 0x04
	hdrCollisionList   = 0x08
	hdrStartPosPtr     = 0x10
	hdrFalloutLevelPtr = 0x14
	hdrGoalList        = 0x18
	hdrBumperList      = 0x20
	hdrJamabarList     = 0x28
	hdrBananaList      = 0x30
	hdrConeColList     = 0x38
	hdrSphereColList   = 0x40
	hdrCylinderColList = 0x48
	hdrFalloutVolList  = 0x50
	hdrBgModelList     = 0x58
)

// Collision header field offsets, relative to the header start (SMB2).
const (
	colCenterOfRotation = 0x00
	colInitialRotation  = 0x0C
	colAnimationType    = 0x12
	colConveyorVector   = 0x18
	colTriangleListPtr  = 0x24
	colGridIndexListPtr = 0x28
	colGridStartX       = 0x2C
	colGridStartZ       = 0x30
	colGridStepX        = 0x34
	colGridStepZ        = 0x38
	colGridStepXCount   = 0x3C
	colGridStepZCount   = 0x40
	colGoalList         = 0x44
	colBumperList       = 0x4C
	colJamabarList      = 0x54
	colBananaList       = 0x5C
	colConeColList      = 0x64
	colSphereColList    = 0x6C
	colCylinderColList  = 0x74
	colFalloutVolList   = 0x7C
	colAnimationID      = 0xA4
	colSeesawSens       = 0xB8
	colSeesawFriction   = 0xBC
	colSeesawSpring     = 0xC0
	colAnimLoopPoint    = 0xD4
)

// gridListTerminator ends each grid cell's triangle index list.
const gridListTerminator = 0xFFFF

// ChunkKind identifies the decoder responsible for a byte region.
//
// The set is closed: adding a kind means extending the switches in
// reader.go and writer.go, which the compiler then checks for
// exhaustiveness via the default ErrUnsupportedChunkKind arms.
type ChunkKind int

const (
	KindFileHeader ChunkKind = iota
	KindStartPosition
	KindFalloutLevel
	KindGoalList
	KindBumperList
	KindJamabarList
	KindBananaList
	KindConeColList
	KindSphereColList
	KindCylinderColList
	KindFalloutVolList
	KindBgModelList
	KindCollisionHeader
	KindTriangleList
	KindGridIndexTable
	KindGridIndexList
	KindModelName
)

var chunkKindNames = map[ChunkKind]string{
	KindFileHeader:      "file header",
	KindStartPosition:   "start position",
	KindFalloutLevel:    "fallout level",
	KindGoalList:        "goal list",
	KindBumperList:      "bumper list",
	KindJamabarList:     "jamabar list",
	KindBananaList:      "banana list",
	KindConeColList:     "cone collision list",
	KindSphereColList:   "sphere collision list",
	KindCylinderColList: "cylinder collision list",
	KindFalloutVolList:  "fallout volume list",
	KindBgModelList:     "background model list",
	KindCollisionHeader: "collision header",
	KindTriangleList:    "collision triangle list",
	KindGridIndexTable:  "collision grid pointer table",
	KindGridIndexList:   "collision grid index list",
	KindModelName:       "model name",
}

func (k ChunkKind) String() string {
	if s, ok := chunkKindNames[k]; ok {
		return s
	}
	return "unknown chunk kind"
}

// recordSize returns the fixed record size for list chunk kinds, or 0 for
// kinds without fixed-size records.
func recordSize(k ChunkKind) int {
	switch k {
	case KindGoalList:
		return GoalSize
	case KindBumperList:
		return BumperSize
	case KindJamabarList:
		return JamabarSize
	case KindBananaList:
		return BananaSize
	case KindConeColList:
		return ConeColSize
	case KindSphereColList:
		return SphereColSize
	case KindCylinderColList:
		return CylinderColSize
	case KindFalloutVolList:
		return FalloutVolumeSize
	case KindBgModelList:
		return BgModelSize
	case KindTriangleList:
		return TriangleSize
	case KindCollisionHeader:
		return CollisionHeaderSize
	default:
		return 0
	}
}
