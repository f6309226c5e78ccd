package scene

import (
	"errors"
	"testing"

	"github.com/TheBombSquad/MKBViewer/pkg/stagedef"
)

func testStage() *stagedef.Stage {
	tris := []stagedef.Triangle{
		{Position: stagedef.Vec3{X: 1}, Normal: stagedef.Vec3{Y: 1},
			DeltaP2: stagedef.Vec2{X: 2}, DeltaP3: stagedef.Vec2{Y: 2}},
		{Position: stagedef.Vec3{Z: 3}, Normal: stagedef.Vec3{Y: 1}},
	}
	return &stagedef.Stage{
		Goals: []stagedef.Goal{
			{Type: stagedef.GoalBlue},
			{Type: stagedef.GoalRed, Position: stagedef.Vec3{Z: -50}},
		},
		Bananas: []stagedef.Banana{{}, {}, {}},
		ModelNames: []string{
			"BG_A",
			"BG_B",
		},
		BackgroundModels: []stagedef.BackgroundModel{
			{Name: 0, Scale: stagedef.Vec3{X: 1, Y: 1, Z: 1}},
			{Name: 1},
			{Name: 0}, // same model as the first
		},
		CollisionHeaders: []stagedef.CollisionHeader{
			{
				Triangles:      tris,
				GridStepXCount: 1,
				GridStepZCount: 1,
				GridCells:      [][]uint16{{0, 1}},
				Goals:          stagedef.ListRef{First: 0, Count: 1},
				Bananas:        stagedef.ListRef{First: 0, Count: 2},
			},
			{
				Triangles: tris, // aliases the first header's list
			},
		},
	}
}

func TestBuild(t *testing.T) {
	g, err := Build(testStage())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	root := g.Node(g.Root)
	if root.Name != "stage" || root.Parent != -1 {
		t.Fatalf("root = %+v", root)
	}
	// two collision nodes, one static node, three background nodes
	if len(root.Children) != 6 {
		t.Fatalf("root has %d children, want 6", len(root.Children))
	}

	t.Run("MeshSharing", func(t *testing.T) {
		col0 := g.Node(root.Children[0])
		col1 := g.Node(root.Children[1])
		if col0.Mesh == NoMesh || col1.Mesh == NoMesh {
			t.Fatal("collision nodes missing meshes")
		}
		if col0.Mesh != col1.Mesh {
			t.Errorf("shared triangle list produced two meshes: %d vs %d", col0.Mesh, col1.Mesh)
		}
		if len(g.Meshes) != 1 {
			t.Errorf("mesh arena has %d entries, want 1", len(g.Meshes))
		}
	})

	t.Run("TriangleResolution", func(t *testing.T) {
		mesh := g.Mesh(g.Node(root.Children[0]).Mesh)
		if len(mesh.Triangles) != 2 {
			t.Fatalf("mesh has %d triangles, want 2", len(mesh.Triangles))
		}
		tri := mesh.Triangles[0]
		if tri.V1 != (stagedef.Vec3{X: 1}) {
			t.Errorf("v1 = %v", tri.V1)
		}
		// No rotation: the deltas stay in the XY plane.
		if tri.V2 != (stagedef.Vec3{X: 3}) {
			t.Errorf("v2 = %v", tri.V2)
		}
		if tri.V3 != (stagedef.Vec3{X: 1, Y: 2}) {
			t.Errorf("v3 = %v", tri.V3)
		}
	})

	t.Run("StaticNode", func(t *testing.T) {
		static := g.Node(root.Children[2])
		if static.Name != "static" {
			t.Fatalf("child 2 = %q, want static", static.Name)
		}
		// goal 1 and banana 2 are claimed by no header
		if len(static.Objects.Goals) != 1 || static.Objects.Goals[0].Type != stagedef.GoalRed {
			t.Errorf("static goals = %+v", static.Objects.Goals)
		}
		if len(static.Objects.Bananas) != 1 {
			t.Errorf("static bananas = %+v", static.Objects.Bananas)
		}
	})

	t.Run("MaterialDedup", func(t *testing.T) {
		if len(g.Materials) != 2 {
			t.Fatalf("material arena has %d entries, want 2", len(g.Materials))
		}
		bg0 := g.Node(root.Children[3])
		bg2 := g.Node(root.Children[5])
		if bg0.Material != bg2.Material {
			t.Errorf("same model name produced two materials: %d vs %d", bg0.Material, bg2.Material)
		}
	})

	t.Run("Windows", func(t *testing.T) {
		col0 := g.Node(root.Children[0])
		if len(col0.Objects.Goals) != 1 || len(col0.Objects.Bananas) != 2 {
			t.Errorf("collision 0 objects = %+v", col0.Objects)
		}
	})
}

func TestBuildGridIndexOutOfRange(t *testing.T) {
	s := testStage()
	s.CollisionHeaders[0].GridCells[0][1] = 9
	if _, err := Build(s); !errors.Is(err, ErrGeometryIndexOutOfRange) {
		t.Fatalf("Build = %v, want ErrGeometryIndexOutOfRange", err)
	}
}

func TestBuildIdentityStable(t *testing.T) {
	// Two builds of the same stage must agree structurally: same node
	// count and the same sharing pattern in the arenas.
	s := testStage()
	g1, err := Build(s)
	if err != nil {
		t.Fatal(err)
	}
	g2, err := Build(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(g1.Nodes) != len(g2.Nodes) || len(g1.Meshes) != len(g2.Meshes) || len(g1.Materials) != len(g2.Materials) {
		t.Fatalf("builds disagree: %d/%d/%d vs %d/%d/%d",
			len(g1.Nodes), len(g1.Meshes), len(g1.Materials),
			len(g2.Nodes), len(g2.Meshes), len(g2.Materials))
	}
}
