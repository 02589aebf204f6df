package arbor

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// trunkPlant builds a plant with a single straight vertical stem: five
// path samples, eight section divisions, tapered and capped.
func trunkPlant() (*Plant, *Stem) {
	plant := NewPlant()
	root := plant.CreateRoot()
	root.SetPath(linePath(3, 0.2, 0.05, mgl32.Vec3{}, mgl32.Vec3{0, 2, 0}))
	return plant, root
}

func generate(t *testing.T, plant *Plant) *Mesh {
	t.Helper()
	m := NewMesh(plant)
	if err := m.Generate(); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return m
}

func TestMeshEmptyPlant(t *testing.T) {
	m := generate(t, NewPlant())
	if m.VertexCount() != 0 || m.IndexCount() != 0 {
		t.Error("empty plant produced geometry")
	}
}

func TestMeshTrunkCounts(t *testing.T) {
	SetDebug(true)
	defer SetDebug(false)

	plant, _ := trunkPlant()
	m := generate(t, plant)
	// 5 rings of 9 vertices plus a 9-vertex cap fan.
	if m.VertexCount() != 5*9+9 {
		t.Errorf("VertexCount = %d, want %d", m.VertexCount(), 5*9+9)
	}
	// 4 ring strips of 16 triangles plus 6 cap triangles.
	if m.IndexCount() != 4*16*3+6*3 {
		t.Errorf("IndexCount = %d, want %d", m.IndexCount(), 4*16*3+6*3)
	}
	if m.MeshCount() != 1 || m.MaterialID(0) != 0 {
		t.Error("default plant should produce one default-material buffer")
	}
}

func TestMeshOpenTipHasNoCap(t *testing.T) {
	plant, root := trunkPlant()
	root.Path.MinRadius = 0
	m := generate(t, plant)
	if m.VertexCount() != 5*9 {
		t.Errorf("VertexCount = %d, want %d", m.VertexCount(), 5*9)
	}
	if m.IndexCount() != 4*16*3 {
		t.Errorf("IndexCount = %d, want %d", m.IndexCount(), 4*16*3)
	}
}

func TestMeshRegenerateIdentical(t *testing.T) {
	plant, root := trunkPlant()
	child := plant.AddStem(root)
	child.Swelling = mgl32.Vec2{1.2, 1.5}
	child.SetPath(linePath(2, 0.05, 0.01, mgl32.Vec3{}, mgl32.Vec3{0.6, 0.3, 0}))
	child.SetPosition(1)

	m := generate(t, plant)
	v1 := m.Vertices()
	i1 := m.Indices()
	if err := m.Generate(); err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !reflect.DeepEqual(v1, m.Vertices()) {
		t.Error("vertices differ between regenerations")
	}
	if !reflect.DeepEqual(i1, m.Indices()) {
		t.Error("indices differ between regenerations")
	}
}

func TestMeshFindStem(t *testing.T) {
	plant, root := trunkPlant()
	m := generate(t, plant)
	segment, ok := m.FindStem(root)
	if !ok {
		t.Fatal("root has no segment")
	}
	if segment.VertexCount == 0 || segment.IndexCount == 0 {
		t.Error("root segment is empty")
	}
	other := &Stem{}
	if _, ok := m.FindStem(other); ok {
		t.Error("unknown stem resolved to a segment")
	}
}

// --- hidden stems ---

func TestMeshHiddenStemSkipped(t *testing.T) {
	plant, root := trunkPlant()
	hidden := plant.AddStem(root)
	hidden.SetPath(linePath(2, 0.05, 0.01, mgl32.Vec3{}, mgl32.Vec3{0.3, 0.3, 0}))
	hidden.SetPosition(9) // past the trunk tip

	m := generate(t, plant)
	if _, ok := m.FindStem(hidden); ok {
		t.Error("hidden stem produced a segment")
	}
	if _, ok := m.FindStem(root); !ok {
		t.Error("root segment missing")
	}
}

func TestMeshHiddenStemChildrenStillVisited(t *testing.T) {
	plant, root := trunkPlant()
	hidden := plant.AddStem(root)
	hidden.SetPath(linePath(2, 0.05, 0.01, mgl32.Vec3{}, mgl32.Vec3{0.3, 0.3, 0}))
	hidden.SetPosition(9)
	grandchild := plant.AddStem(hidden)
	grandchild.SetPath(linePath(2, 0.02, 0, mgl32.Vec3{}, mgl32.Vec3{0.1, 0.1, 0}))
	grandchild.SetPosition(0.1)

	// The grandchild inherits a non-finite location, so no geometry is
	// expected, but traversal must cross the hidden stem without failing.
	m := generate(t, plant)
	if _, ok := m.FindStem(grandchild); ok {
		t.Error("stem with non-finite location produced a segment")
	}
}

// --- branch collars ---

func TestMeshBranchCollar(t *testing.T) {
	SetDebug(true)
	defer SetDebug(false)

	plant, root := trunkPlant()
	child := plant.AddStem(root)
	child.Swelling = mgl32.Vec2{1.2, 1.5}
	child.SetPath(linePath(2, 0.05, 0.01, mgl32.Vec3{}, mgl32.Vec3{0.6, 0.3, 0}))
	child.SetPosition(1)

	m := generate(t, plant)
	segment, ok := m.FindStem(child)
	if !ok {
		t.Fatal("child has no segment")
	}
	// First ring, three reserved collar rings, post-collar ring, cap fan.
	want := 9 + 3*9 + 9 + 9
	if segment.VertexCount != want {
		t.Errorf("VertexCount = %d, want %d", segment.VertexCount, want)
	}
	// Four ring strips across the collar plus the cap fan.
	if segment.IndexCount != 4*16*3+6*3 {
		t.Errorf("IndexCount = %d, want %d", segment.IndexCount, 4*16*3+6*3)
	}
}

func TestMeshCollarWithoutSwelling(t *testing.T) {
	plant, root := trunkPlant()
	child := plant.AddStem(root)
	child.SetPath(linePath(2, 0.05, 0, mgl32.Vec3{}, mgl32.Vec3{0.6, 0.3, 0}))
	child.SetPosition(1)

	m := generate(t, plant)
	segment, ok := m.FindStem(child)
	if !ok {
		t.Fatal("child has no segment")
	}
	// Plain rings, no reserved space, no cap.
	if segment.VertexCount != 4*9 {
		t.Errorf("VertexCount = %d, want %d", segment.VertexCount, 4*9)
	}
}

func TestMeshCollarRollbackOnDegenerateParent(t *testing.T) {
	plant := NewPlant()
	root := plant.CreateRoot()
	// Zero radius collapses the trunk's rings onto the axis, so the
	// collar projection cannot hit a triangle.
	root.SetPath(linePath(3, 0, 0, mgl32.Vec3{}, mgl32.Vec3{0, 2, 0}))
	child := plant.AddStem(root)
	child.Swelling = mgl32.Vec2{1.2, 1.5}
	child.SetPath(linePath(2, 0.05, 0, mgl32.Vec3{}, mgl32.Vec3{0.6, 0.3, 0}))
	child.SetPosition(1)

	m := generate(t, plant)
	segment, ok := m.FindStem(child)
	if !ok {
		t.Fatal("child has no segment")
	}
	// The abandoned collar must leave plain rings, not reserved garbage.
	if segment.VertexCount != 4*9 {
		t.Errorf("VertexCount = %d, want %d", segment.VertexCount, 4*9)
	}
	debugCheckBuffer(m.Vertices(), m.Indices())
}

// --- materials and buffers ---

func TestMeshPerMaterialBuffers(t *testing.T) {
	SetDebug(true)
	defer SetDebug(false)

	plant, root := trunkPlant()
	plant.AddMaterial(Material{ID: 2, Ratio: 1})
	child := plant.AddStem(root)
	child.OuterMaterial = 2
	child.InnerMaterial = 2
	child.SetPath(linePath(2, 0.05, 0.01, mgl32.Vec3{}, mgl32.Vec3{0.6, 0.3, 0}))
	child.SetPosition(1)

	m := generate(t, plant)
	if m.MeshCount() != 2 {
		t.Fatalf("MeshCount = %d, want 2", m.MeshCount())
	}
	if m.MaterialID(0) != 0 || m.MaterialID(1) != 2 {
		t.Errorf("buffer materials = %d, %d", m.MaterialID(0), m.MaterialID(1))
	}
	segment, ok := m.FindStem(child)
	if !ok {
		t.Fatal("child has no segment")
	}
	if segment.Mesh != 1 {
		t.Errorf("child buffer = %d, want 1", segment.Mesh)
	}
	// After merging, the second buffer's offsets follow the first.
	if segment.VertexStart < len(m.BufferVertices(0)) {
		t.Error("merged vertex offset not shifted past the first buffer")
	}
	vertices := m.Vertices()
	for _, idx := range m.Indices() {
		if int(idx) >= len(vertices) {
			t.Fatalf("combined index %d out of range", idx)
		}
	}
}

func TestMeshUnregisteredMaterialFails(t *testing.T) {
	plant, root := trunkPlant()
	root.OuterMaterial = 9
	m := NewMesh(plant)
	if err := m.Generate(); err == nil {
		t.Fatal("unregistered material did not fail")
	}
}

// --- skinning ---

func TestMeshJointWeights(t *testing.T) {
	plant, root := trunkPlant()
	root.AddJoint(Joint{ID: 0, PathIndex: 0})
	root.AddJoint(Joint{ID: 1, PathIndex: 2})
	root.AddJoint(Joint{ID: 2, PathIndex: 4})

	m := generate(t, plant)
	segment, _ := m.FindStem(root)
	vertices := m.Vertices()
	for i := segment.VertexStart; i < segment.VertexStart+segment.VertexCount; i++ {
		w := vertices[i].Weights
		if w[0] < 0 || w[0] > 1 || w[1] < 0 || w[1] > 1 {
			t.Fatalf("vertex %d weights out of range: %v", i, w)
		}
		assertNear(t, "weight sum", w[0]+w[1], 1)
	}
}

func TestMeshJointBoundarySplit(t *testing.T) {
	plant, root := trunkPlant()
	root.AddJoint(Joint{ID: 0, PathIndex: 0})
	root.AddJoint(Joint{ID: 1, PathIndex: 2})

	m := generate(t, plant)
	segment, _ := m.FindStem(root)
	// Ring at section 2 sits exactly on the second joint: an even split
	// between it and the previous joint.
	ring := segment.VertexStart + 2*9
	v := m.Vertices()[ring]
	assertNear(t, "w0", v.Weights[0], 0.5)
	assertNear(t, "w1", v.Weights[1], 0.5)
	assertNear(t, "joint", v.Joints[0], 1)
	assertNear(t, "prev joint", v.Joints[1], 0)
}

func TestMeshJointInheritance(t *testing.T) {
	plant, root := trunkPlant()
	root.AddJoint(Joint{ID: 7, PathIndex: 0})
	root.AddJoint(Joint{ID: 8, PathIndex: 4})
	child := plant.AddStem(root)
	child.SetPath(linePath(1, 0.05, 0.01, mgl32.Vec3{}, mgl32.Vec3{0.5, 0.2, 0}))
	child.SetPosition(1)

	m := generate(t, plant)
	segment, ok := m.FindStem(child)
	if !ok {
		t.Fatal("child has no segment")
	}
	vertices := m.Vertices()
	// A jointless stem binds every vertex to the parent joint nearest its
	// attachment point, with full weight.
	for i := segment.VertexStart; i < segment.VertexStart+segment.VertexCount; i++ {
		v := vertices[i]
		assertNear(t, "joint", v.Joints[0], 7)
		assertNear(t, "weight", v.Weights[0], 1)
		assertNear(t, "spare weight", v.Weights[1], 0)
	}
}

// --- leaves ---

func TestMeshLeaves(t *testing.T) {
	plant, root := trunkPlant()
	leaf := NewLeaf()
	leaf.Position = 1
	index := root.AddLeaf(leaf)

	m := generate(t, plant)
	if m.LeafCount(0) != 1 {
		t.Fatalf("LeafCount = %d, want 1", m.LeafCount(0))
	}
	segment, ok := m.FindLeaf(LeafID{Stem: root, Index: index})
	if !ok {
		t.Fatal("leaf has no segment")
	}
	if segment.VertexCount != 8 || segment.IndexCount != 12 {
		t.Errorf("leaf segment %d vertices, %d indices", segment.VertexCount, segment.IndexCount)
	}
	// The template is instantiated at the attachment point on the trunk.
	v := m.Vertices()[segment.VertexStart]
	if v.Position.Sub(mgl32.Vec3{0, 1, 0}).Len() > 1.5 {
		t.Errorf("leaf vertex %v far from its attachment", v.Position)
	}
}

func TestMeshLeafAtTip(t *testing.T) {
	plant, root := trunkPlant()
	index := root.AddLeaf(NewLeaf())

	m := generate(t, plant)
	segment, ok := m.FindLeaf(LeafID{Stem: root, Index: index})
	if !ok {
		t.Fatal("tip leaf has no segment")
	}
	v := m.Vertices()[segment.VertexStart]
	if v.Position.Sub(mgl32.Vec3{0, 2, 0}).Len() > 1.5 {
		t.Errorf("tip leaf vertex %v far from the tip", v.Position)
	}
}

func TestMeshUnregisteredLeafMeshFails(t *testing.T) {
	plant, root := trunkPlant()
	leaf := NewLeaf()
	leaf.MeshID = 9
	root.AddLeaf(leaf)
	m := NewMesh(plant)
	if err := m.Generate(); err == nil {
		t.Fatal("unregistered leaf mesh did not fail")
	}
}

// --- texture coordinates ---

func TestMeshUVsAdvanceAlongStem(t *testing.T) {
	plant, root := trunkPlant()
	m := generate(t, plant)
	segment, _ := m.FindStem(root)
	vertices := m.Vertices()
	prev := float32(-1)
	for ring := 0; ring < 5; ring++ {
		v := vertices[segment.VertexStart+ring*9]
		if v.UV[1] <= prev {
			t.Fatalf("ring %d V coordinate %v did not advance past %v", ring, v.UV[1], prev)
		}
		prev = v.UV[1]
	}
	seamStart := vertices[segment.VertexStart].UV[0]
	seamEnd := vertices[segment.VertexStart+8].UV[0]
	assertNear(t, "seam start U", seamStart, 0)
	assertNear(t, "seam end U", seamEnd, 1)
}
