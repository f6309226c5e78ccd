// Package scene assembles decoded stagedefs into a renderable scene
// graph. Nodes form a tree; meshes and materials live in arenas and are
// referenced by handle, so collision headers that share stored geometry
// share one mesh entity instead of carrying copies.
package scene

import (
	"errors"

	"github.com/TheBombSquad/MKBViewer/pkg/stagedef"
)

// ErrGeometryIndexOutOfRange indicates a grid index list entry that
// references a triangle beyond the mesh it belongs to. Hard error;
// clamping would corrupt visual output without signaling a suspect file.
var ErrGeometryIndexOutOfRange = errors.New("geometry index out of range")

type (
	// NodeHandle indexes Graph.Nodes.
	NodeHandle int
	// MeshHandle indexes Graph.Meshes.
	MeshHandle int
	// MaterialHandle indexes Graph.Materials.
	MaterialHandle int
)

// NoMesh and NoMaterial mark nodes without geometry or appearance.
const (
	NoMesh     MeshHandle     = -1
	NoMaterial MaterialHandle = -1
)

// Transform is a node placement: position, rotation in degrees per axis,
// and scale.
type Transform struct {
	Position stagedef.Vec3
	Rotation stagedef.Vec3
	Scale    stagedef.Vec3
}

// IdentityTransform returns the no-op placement.
func IdentityTransform() Transform {
	return Transform{Scale: stagedef.Vec3{X: 1, Y: 1, Z: 1}}
}

// MeshTriangle is one collision triangle with its corners resolved to
// world space.
type MeshTriangle struct {
	V1, V2, V3 stagedef.Vec3
	Normal     stagedef.Vec3
}

// Mesh is flattened geometry. SourceOffset is the stored address the
// triangle list came from; it doubles as the dedup key, so two nodes
// whose headers pointed at the same list hold the same handle.
type Mesh struct {
	SourceOffset uint32
	Triangles    []MeshTriangle
}

// Material is a model appearance reference, deduplicated by name.
type Material struct {
	Name string
}

// ObjectSet groups the placeable objects owned by one node.
type ObjectSet struct {
	Goals              []stagedef.Goal
	Bumpers            []stagedef.Bumper
	Jamabars           []stagedef.Jamabar
	Bananas            []stagedef.Banana
	ConeCollisions     []stagedef.ConeCollision
	SphereCollisions   []stagedef.SphereCollision
	CylinderCollisions []stagedef.CylinderCollision
	FalloutVolumes     []stagedef.FalloutVolume
}

// Empty reports whether the set holds no objects at all.
func (o ObjectSet) Empty() bool {
	return len(o.Goals) == 0 && len(o.Bumpers) == 0 && len(o.Jamabars) == 0 &&
		len(o.Bananas) == 0 && len(o.ConeCollisions) == 0 && len(o.SphereCollisions) == 0 &&
		len(o.CylinderCollisions) == 0 && len(o.FalloutVolumes) == 0
}

// Node is one scene graph node. Children are owned; mesh and material are
// non-owning arena handles.
type Node struct {
	Name      string
	Parent    NodeHandle
	Children  []NodeHandle
	Transform Transform
	Mesh      MeshHandle
	Material  MaterialHandle
	Objects   ObjectSet
}

// Graph is the assembled scene: a node tree over mesh and material
// arenas. The byte layout the graph came from is a tree of ranges, but
// shared meshes make the graph itself a DAG.
type Graph struct {
	Nodes     []Node
	Meshes    []Mesh
	Materials []Material
	Root      NodeHandle
}

// Node returns the node for a handle.
func (g *Graph) Node(h NodeHandle) *Node { return &g.Nodes[h] }

// Mesh returns the mesh for a handle.
func (g *Graph) Mesh(h MeshHandle) *Mesh { return &g.Meshes[h] }

// Material returns the material for a handle.
func (g *Graph) Material(h MaterialHandle) *Material { return &g.Materials[h] }

func (g *Graph) addNode(n Node) NodeHandle {
	h := NodeHandle(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)
	if n.Parent >= 0 {
		g.Nodes[n.Parent].Children = append(g.Nodes[n.Parent].Children, h)
	}
	return h
}
