package scene

import (
	"fmt"
	"math"

	"github.com/TheBombSquad/MKBViewer/pkg/stagedef"
)

// Build assembles a scene graph from a decoded stage.
//
// The graph gets one child node per collision header carrying that
// header's mesh and object windows, one static node for global objects no
// header claims, and one node per background model. Meshes are
// deduplicated by the triangle list's source offset, materials by model
// name, both through arena handles.
func Build(stage *stagedef.Stage) (*Graph, error) {
	b := &builder{
		stage:     stage,
		graph:     &Graph{},
		meshes:    make(map[*stagedef.Triangle]MeshHandle),
		materials: make(map[string]MaterialHandle),
	}

	b.graph.Root = b.graph.addNode(Node{
		Name:      "stage",
		Parent:    -1,
		Transform: IdentityTransform(),
		Mesh:      NoMesh,
		Material:  NoMaterial,
	})

	for i := range stage.CollisionHeaders {
		if err := b.addCollisionNode(i); err != nil {
			return nil, err
		}
	}
	b.addStaticNode()
	for i := range stage.BackgroundModels {
		b.addBackgroundNode(i)
	}

	return b.graph, nil
}

type builder struct {
	stage     *stagedef.Stage
	graph     *Graph
	meshes    map[*stagedef.Triangle]MeshHandle
	materials map[string]MaterialHandle
	claimed   claimSet
}

// claimSet tracks which global list records some collision header window
// covers, per kind. Unclaimed records end up on the static node.
type claimSet struct {
	goals, bumpers, jamabars, bananas []bool
	cones, spheres, cylinders, vols   []bool
}

func mark(set *[]bool, n int, ref stagedef.ListRef) {
	if *set == nil {
		*set = make([]bool, n)
	}
	for i := ref.First; i < ref.First+ref.Count && i < len(*set); i++ {
		(*set)[i] = true
	}
}

func (b *builder) addCollisionNode(idx int) error {
	h := &b.stage.CollisionHeaders[idx]

	mesh, err := b.meshFor(h)
	if err != nil {
		return fmt.Errorf("collision header %d: %w", idx, err)
	}

	s := b.stage
	mark(&b.claimed.goals, len(s.Goals), h.Goals)
	mark(&b.claimed.bumpers, len(s.Bumpers), h.Bumpers)
	mark(&b.claimed.jamabars, len(s.Jamabars), h.Jamabars)
	mark(&b.claimed.bananas, len(s.Bananas), h.Bananas)
	mark(&b.claimed.cones, len(s.ConeCollisions), h.ConeCollisions)
	mark(&b.claimed.spheres, len(s.SphereCollisions), h.SphereCollisions)
	mark(&b.claimed.cylinders, len(s.CylinderCollisions), h.CylinderCollisions)
	mark(&b.claimed.vols, len(s.FalloutVolumes), h.FalloutVolumes)

	b.graph.addNode(Node{
		Name:   fmt.Sprintf("collision_%d", idx),
		Parent: b.graph.Root,
		Transform: Transform{
			Position: h.CenterOfRotation,
			Rotation: h.InitialRotation.Degrees(),
			Scale:    stagedef.Vec3{X: 1, Y: 1, Z: 1},
		},
		Mesh:     mesh,
		Material: NoMaterial,
		Objects: ObjectSet{
			Goals:              window(s.Goals, h.Goals),
			Bumpers:            window(s.Bumpers, h.Bumpers),
			Jamabars:           window(s.Jamabars, h.Jamabars),
			Bananas:            window(s.Bananas, h.Bananas),
			ConeCollisions:     window(s.ConeCollisions, h.ConeCollisions),
			SphereCollisions:   window(s.SphereCollisions, h.SphereCollisions),
			CylinderCollisions: window(s.CylinderCollisions, h.CylinderCollisions),
			FalloutVolumes:     window(s.FalloutVolumes, h.FalloutVolumes),
		},
	})
	return nil
}

func window[T any](list []T, ref stagedef.ListRef) []T {
	if ref.Count == 0 || ref.First < 0 || ref.First+ref.Count > len(list) {
		return nil
	}
	return list[ref.First : ref.First+ref.Count]
}

// addStaticNode collects every global object no header window claimed.
func (b *builder) addStaticNode() {
	s := b.stage
	set := ObjectSet{
		Goals:              unclaimed(s.Goals, b.claimed.goals),
		Bumpers:            unclaimed(s.Bumpers, b.claimed.bumpers),
		Jamabars:           unclaimed(s.Jamabars, b.claimed.jamabars),
		Bananas:            unclaimed(s.Bananas, b.claimed.bananas),
		ConeCollisions:     unclaimed(s.ConeCollisions, b.claimed.cones),
		SphereCollisions:   unclaimed(s.SphereCollisions, b.claimed.spheres),
		CylinderCollisions: unclaimed(s.CylinderCollisions, b.claimed.cylinders),
		FalloutVolumes:     unclaimed(s.FalloutVolumes, b.claimed.vols),
	}
	if set.Empty() {
		return
	}
	b.graph.addNode(Node{
		Name:      "static",
		Parent:    b.graph.Root,
		Transform: IdentityTransform(),
		Mesh:      NoMesh,
		Material:  NoMaterial,
		Objects:   set,
	})
}

func unclaimed[T any](list []T, claimed []bool) []T {
	var out []T
	for i := range list {
		if claimed == nil || !claimed[i] {
			out = append(out, list[i])
		}
	}
	return out
}

func (b *builder) addBackgroundNode(idx int) {
	m := b.stage.BackgroundModels[idx]

	mat := NoMaterial
	if m.Name >= 0 && m.Name < len(b.stage.ModelNames) {
		mat = b.materialFor(b.stage.ModelNames[m.Name])
	}

	b.graph.addNode(Node{
		Name:   fmt.Sprintf("background_%d", idx),
		Parent: b.graph.Root,
		Transform: Transform{
			Position: m.Position,
			Rotation: m.Rotation.Degrees(),
			Scale:    m.Scale,
		},
		Mesh:     NoMesh,
		Material: mat,
	})
}

func (b *builder) materialFor(name string) MaterialHandle {
	if h, ok := b.materials[name]; ok {
		return h
	}
	h := MaterialHandle(len(b.graph.Materials))
	b.graph.Materials = append(b.graph.Materials, Material{Name: name})
	b.materials[name] = h
	return h
}

// meshFor resolves a header's triangle list to a mesh handle, building
// the mesh on first sight and validating the header's grid indices
// against it.
func (b *builder) meshFor(h *stagedef.CollisionHeader) (MeshHandle, error) {
	if len(h.Triangles) == 0 {
		if err := checkGrid(h, 0); err != nil {
			return NoMesh, err
		}
		return NoMesh, nil
	}
	if err := checkGrid(h, len(h.Triangles)); err != nil {
		return NoMesh, err
	}

	key := &h.Triangles[0]
	if handle, ok := b.meshes[key]; ok {
		return handle, nil
	}

	mesh := Mesh{
		SourceOffset: h.TriangleListOffset,
		Triangles:    make([]MeshTriangle, 0, len(h.Triangles)),
	}
	for _, t := range h.Triangles {
		mesh.Triangles = append(mesh.Triangles, resolveTriangle(t))
	}

	handle := MeshHandle(len(b.graph.Meshes))
	b.graph.Meshes = append(b.graph.Meshes, mesh)
	b.meshes[key] = handle
	return handle, nil
}

func checkGrid(h *stagedef.CollisionHeader, triangles int) error {
	for cell, list := range h.GridCells {
		for _, idx := range list {
			if int(idx) >= triangles {
				return fmt.Errorf("grid cell %d references triangle %d of %d: %w",
					cell, idx, triangles, ErrGeometryIndexOutOfRange)
			}
		}
	}
	return nil
}

// resolveTriangle reconstructs world-space corners from the stored form:
// vertex one plus two in-plane deltas, with the plane given by the
// triangle's rotation.
func resolveTriangle(t stagedef.Triangle) MeshTriangle {
	d2 := rotate(stagedef.Vec3{X: t.DeltaP2.X, Y: t.DeltaP2.Y}, t.Rotation)
	d3 := rotate(stagedef.Vec3{X: t.DeltaP3.X, Y: t.DeltaP3.Y}, t.Rotation)
	return MeshTriangle{
		V1:     t.Position,
		V2:     add(t.Position, d2),
		V3:     add(t.Position, d3),
		Normal: t.Normal,
	}
}

func add(a, b stagedef.Vec3) stagedef.Vec3 {
	return stagedef.Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}

// rotate applies the stored rotation to a triangle-local vector, Z axis
// first, then Y, then X, matching the game's decomposition.
func rotate(v stagedef.Vec3, r stagedef.ShortVec3) stagedef.Vec3 {
	const toRad = math.Pi / 0x8000
	v = rotZ(v, float64(r.Z)*toRad)
	v = rotY(v, float64(r.Y)*toRad)
	v = rotX(v, float64(r.X)*toRad)
	return v
}

func rotX(v stagedef.Vec3, a float64) stagedef.Vec3 {
	s, c := math.Sincos(a)
	return stagedef.Vec3{
		X: v.X,
		Y: float32(float64(v.Y)*c - float64(v.Z)*s),
		Z: float32(float64(v.Y)*s + float64(v.Z)*c),
	}
}

func rotY(v stagedef.Vec3, a float64) stagedef.Vec3 {
	s, c := math.Sincos(a)
	return stagedef.Vec3{
		X: float32(float64(v.X)*c + float64(v.Z)*s),
		Y: v.Y,
		Z: float32(-float64(v.X)*s + float64(v.Z)*c),
	}
}

func rotZ(v stagedef.Vec3, a float64) stagedef.Vec3 {
	s, c := math.Sincos(a)
	return stagedef.Vec3{
		X: float32(float64(v.X)*c - float64(v.Y)*s),
		Y: float32(float64(v.X)*s + float64(v.Y)*c),
		Z: v.Z,
	}
}
