package stagedef

import (
	"encoding/binary"
	"fmt"
)

// Vec3 is a 32-bit floating point 3 dimensional vector.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z)
}

// Vec2 is a 32-bit floating point 2 dimensional vector.
type Vec2 struct {
	X, Y float32
}

// ShortVec3 is a 16-bit 3 dimensional vector. Stagedefs use it for
// rotations, where 0x10000 is a full turn.
type ShortVec3 struct {
	X, Y, Z uint16
}

// Degrees converts the rotation to degrees per axis.
func (v ShortVec3) Degrees() Vec3 {
	const scale = 360.0 / 65536.0
	return Vec3{
		X: float32(v.X) * scale,
		Y: float32(v.Y) * scale,
		Z: float32(v.Z) * scale,
	}
}

// GoalType discriminates goal colors.
type GoalType uint8

const (
	GoalBlue  GoalType = 0x0
	GoalGreen GoalType = 0x1
	GoalRed   GoalType = 0x2
)

func (t GoalType) String() string {
	switch t {
	case GoalBlue:
		return "blue"
	case GoalGreen:
		return "green"
	case GoalRed:
		return "red"
	}
	return fmt.Sprintf("goal type %#x", uint8(t))
}

// Valid reports whether the value is one of the declared goal colors.
func (t GoalType) Valid() bool {
	return t <= GoalRed
}

// Goal is a goal object. The collision for goals is hardcoded by the game.
type Goal struct {
	Position Vec3
	Rotation ShortVec3
	Type     GoalType
	Pad      uint8 // Byte after the type tag, kept for round-tripping
}

// BananaType discriminates single bananas from bunches.
type BananaType uint32

const (
	BananaSingle BananaType = 0x0
	BananaBunch  BananaType = 0x1
)

func (t BananaType) String() string {
	switch t {
	case BananaSingle:
		return "single"
	case BananaBunch:
		return "bunch"
	}
	return fmt.Sprintf("banana type %#x", uint32(t))
}

// Valid reports whether the value is a declared banana type.
func (t BananaType) Valid() bool {
	return t <= BananaBunch
}

// Banana is a banana or banana bunch.
type Banana struct {
	Position Vec3
	Type     BananaType
}

// Bumper is a bumper.
type Bumper struct {
	Position Vec3
	Rotation ShortVec3
	Pad      uint16
	Scale    Vec3
}

// Jamabar is a rectangular prism that tilts on a fixed axis with the stage.
type Jamabar struct {
	Position Vec3
	Rotation ShortVec3
	Pad      uint16
	Scale    Vec3
}

// ConeCollision is a conical region the ball collides with.
type ConeCollision struct {
	Position Vec3
	Rotation ShortVec3
	Pad      uint16
	Radius1  float32
	Height   float32
	Radius2  float32
}

// SphereCollision is a spherical region the ball collides with.
type SphereCollision struct {
	Position Vec3
	Radius   float32
	Unk0x10  uint32
}

// CylinderCollision is a cylindrical region the ball collides with.
type CylinderCollision struct {
	Position Vec3
	Radius   float32
	Height   float32
	Rotation ShortVec3
	Unk0x1A  uint16
}

// FalloutVolume causes a fall-out while the ball is inside it.
type FalloutVolume struct {
	Position Vec3
	Size     Vec3
	Rotation ShortVec3
	Unk0x1E  uint16
}

// BackgroundModel places a named model that does not tilt with the stage.
//
// Name indexes the stage's ModelNames arena so models sharing one stored
// name string keep sharing it across decode, edit and encode.
type BackgroundModel struct {
	Unk0x0   uint32
	Name     int
	Unk0x8   uint32
	Position Vec3
	Rotation ShortVec3
	Unk0x1E  uint16
	Scale    Vec3
	// Trailing animation/effect header pointers, carried verbatim.
	TailPtrs [3]uint32
}

// Triangle is one collision triangle record.
type Triangle struct {
	Position Vec3
	Normal   Vec3
	Rotation ShortVec3
	Pad      uint16
	DeltaP2  Vec2
	DeltaP3  Vec2
	Tangent  Vec2
	Binormal Vec2
}

// ListRef is a window into one of the stage's global object lists.
//
// Collision headers never own objects: their lists alias slices of the
// global lists, and a window is how that aliasing survives re-encoding.
type ListRef struct {
	First, Count int
}

// IsZero reports whether the window is absent.
func (r ListRef) IsZero() bool {
	return r.Count == 0
}

// StartPosition is the ball's initial placement.
type StartPosition struct {
	Position Vec3
	Rotation ShortVec3
	Pad      uint16
}

// CollisionHeader groups a collision mesh with the subset of stage objects
// it animates with.
type CollisionHeader struct {
	CenterOfRotation Vec3
	InitialRotation  ShortVec3
	AnimationType    uint16
	ConveyorVector   Vec3

	// Triangles aliases a shared list when several headers point at the
	// same stored triangle data. TriangleListOffset is the stored pointer
	// value (0 for synthesized stages): the dedup key for shared lists,
	// kept even when an absent grid leaves the list length unknown and
	// Triangles empty, so re-encoding reproduces the pointer.
	Triangles          []Triangle
	TriangleListOffset uint32

	// GridTableOffset is the stored grid index table pointer, 0 for
	// synthesized stages. Like TriangleListOffset it keys shared data and
	// survives re-encoding when the grid itself is empty.
	GridTableOffset uint32

	GridStartX, GridStartZ float32
	GridStepX, GridStepZ   float32
	GridStepXCount         uint32
	GridStepZCount         uint32
	// GridCells holds one triangle index list per grid cell, in z-major
	// order, GridStepXCount*GridStepZCount cells total.
	GridCells [][]uint16

	Goals              ListRef
	Bumpers            ListRef
	Jamabars           ListRef
	Bananas            ListRef
	ConeCollisions     ListRef
	SphereCollisions   ListRef
	CylinderCollisions ListRef
	FalloutVolumes     ListRef

	AnimationID        uint16
	SeesawSensitivity  float32
	SeesawFriction     float32
	SeesawSpring       float32
	AnimationLoopPoint float32
}

// Stage is the decoded, pointer-free form of a stagedef image.
type Stage struct {
	Game      Game
	ByteOrder binary.ByteOrder

	Magic1 float32
	Magic2 float32

	Start        StartPosition
	FalloutLevel float32

	Goals              []Goal
	Bumpers            []Bumper
	Jamabars           []Jamabar
	Bananas            []Banana
	ConeCollisions     []ConeCollision
	SphereCollisions   []SphereCollision
	CylinderCollisions []CylinderCollision
	FalloutVolumes     []FalloutVolume

	ModelNames       []string
	BackgroundModels []BackgroundModel

	CollisionHeaders []CollisionHeader

	// layout carries the source image and chunk table for byte-exact
	// re-encoding. Nil for stages built programmatically.
	layout *layout
}

// Clone returns a deep copy of the stage.
//
// Triangle list sharing between collision headers is preserved: headers
// that aliased one list in the original alias one list in the copy. The
// source layout is immutable and shared.
func (s *Stage) Clone() *Stage {
	c := *s

	c.Goals = append([]Goal(nil), s.Goals...)
	c.Bumpers = append([]Bumper(nil), s.Bumpers...)
	c.Jamabars = append([]Jamabar(nil), s.Jamabars...)
	c.Bananas = append([]Banana(nil), s.Bananas...)
	c.ConeCollisions = append([]ConeCollision(nil), s.ConeCollisions...)
	c.SphereCollisions = append([]SphereCollision(nil), s.SphereCollisions...)
	c.CylinderCollisions = append([]CylinderCollision(nil), s.CylinderCollisions...)
	c.FalloutVolumes = append([]FalloutVolume(nil), s.FalloutVolumes...)
	c.ModelNames = append([]string(nil), s.ModelNames...)
	c.BackgroundModels = append([]BackgroundModel(nil), s.BackgroundModels...)

	shared := make(map[*Triangle][]Triangle)
	c.CollisionHeaders = append([]CollisionHeader(nil), s.CollisionHeaders...)
	for i := range c.CollisionHeaders {
		h := &c.CollisionHeaders[i]
		if len(h.Triangles) > 0 {
			key := &h.Triangles[0]
			copied, ok := shared[key]
			if !ok {
				copied = append([]Triangle(nil), h.Triangles...)
				shared[key] = copied
			}
			h.Triangles = copied
		}
		cells := make([][]uint16, len(h.GridCells))
		for j, cell := range h.GridCells {
			cells[j] = append([]uint16(nil), cell...)
		}
		h.GridCells = cells
	}

	return &c
}

// SourceImage returns the raw image the stage was decoded from, or nil for
// stages built programmatically.
func (s *Stage) SourceImage() []byte {
	if s.layout == nil {
		return nil
	}
	return s.layout.src
}
