package arbor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// growRoot creates a plant whose root follows a straight vertical path of
// the given length.
func growRoot(length float32) (*Plant, *Stem) {
	plant := NewPlant()
	root := plant.CreateRoot()
	root.SetPath(linePath(1, 0.2, 0.05, mgl32.Vec3{}, mgl32.Vec3{0, length, 0}))
	return plant, root
}

func TestStemDefaults(t *testing.T) {
	plant, root := growRoot(1)
	child := plant.AddStem(root)
	if child.SectionDivisions != defaultSectionDivisions {
		t.Errorf("SectionDivisions = %d, want %d", child.SectionDivisions, defaultSectionDivisions)
	}
	if child.CollarDivisions != defaultCollarDivisions {
		t.Errorf("CollarDivisions = %d, want %d", child.CollarDivisions, defaultCollarDivisions)
	}
	if child.Depth() != 1 {
		t.Errorf("Depth = %d, want 1", child.Depth())
	}
	if root.Depth() != 0 {
		t.Errorf("root Depth = %d, want 0", root.Depth())
	}
}

func TestStemSetPosition(t *testing.T) {
	plant, root := growRoot(2)
	child := plant.AddStem(root)
	child.SetPosition(0.5)
	assertVec3(t, "location", child.Location(), mgl32.Vec3{0, 0.5, 0})
	assertNear(t, "position", child.Position(), 0.5)
}

func TestStemSetPositionOvershootHides(t *testing.T) {
	plant, root := growRoot(1)
	child := plant.AddStem(root)
	child.SetPosition(5)
	if isFinite(child.Location()) {
		t.Error("overshoot position produced a finite location")
	}
}

func TestStemSetPathUpdatesDescendants(t *testing.T) {
	plant, root := growRoot(1)
	child := plant.AddStem(root)
	child.SetPosition(0.5)
	root.SetPath(linePath(1, 0.2, 0.05, mgl32.Vec3{}, mgl32.Vec3{1, 0, 0}))
	assertVec3(t, "relocated", child.Location(), mgl32.Vec3{0.5, 0, 0})
}

func TestStemIsDescendantOf(t *testing.T) {
	plant, root := growRoot(1)
	a := plant.AddStem(root)
	b := plant.AddStem(a)
	if !b.IsDescendantOf(root) || !b.IsDescendantOf(a) {
		t.Error("descendant not detected")
	}
	if root.IsDescendantOf(b) || a.IsDescendantOf(b) {
		t.Error("ancestor reported as descendant")
	}
}

// --- dichotomous forks ---

func TestStemLateralVsDichotomous(t *testing.T) {
	plant, root := growRoot(1)
	lateral := plant.AddStem(root)
	lateral.SetPosition(0.5)
	d1, d2 := plant.AddDichotomousStems(root)
	if lateral.IsLateral() != true {
		t.Error("lateral child not reported lateral")
	}
	if d1.IsLateral() || d2.IsLateral() {
		t.Error("fork stem reported lateral")
	}
	if root.IsLateral() {
		t.Error("root reported lateral")
	}
	if root.LateralChild(0) != lateral {
		t.Error("LateralChild skipped past the fork incorrectly")
	}
}

func TestStemResolutionPropagation(t *testing.T) {
	plant, root := growRoot(1)
	d1, d2 := plant.AddDichotomousStems(root)
	root.SetResolution(12)
	if d1.SectionDivisions != 12 || d2.SectionDivisions != 12 {
		t.Error("fork stems did not inherit the resolution")
	}
	// Setting on a fork redirects to the forked stem.
	d1.SetResolution(16)
	if root.SectionDivisions != 16 || d2.SectionDivisions != 16 {
		t.Error("setting resolution on a fork did not reach the parent chain")
	}
}

// --- joints ---

func TestStemAddJointSorted(t *testing.T) {
	plant, root := growRoot(1)
	_ = plant
	root.AddJoint(Joint{ID: 2, PathIndex: 4})
	root.AddJoint(Joint{ID: 0, PathIndex: 0})
	root.AddJoint(Joint{ID: 1, PathIndex: 2})
	joints := root.Joints()
	if len(joints) != 3 {
		t.Fatalf("len(joints) = %d, want 3", len(joints))
	}
	for i := 1; i < len(joints); i++ {
		if joints[i].PathIndex < joints[i-1].PathIndex {
			t.Fatalf("joints out of order: %v", joints)
		}
	}
	debugCheckJoints(root)
}

// --- leaves ---

func TestStemLeaves(t *testing.T) {
	plant, root := growRoot(1)
	_ = plant
	first := NewLeaf()
	second := NewLeaf()
	if first.ID() == second.ID() {
		t.Error("leaf ids collide")
	}
	root.AddLeaf(first)
	at := root.AddLeaf(second)
	if root.LeafCount() != 2 {
		t.Fatalf("LeafCount = %d, want 2", root.LeafCount())
	}
	if root.Leaf(at).ID() != second.ID() {
		t.Error("AddLeaf index does not resolve the added leaf")
	}
	root.RemoveLeaf(0)
	if root.LeafCount() != 1 || root.Leaf(0).ID() != second.ID() {
		t.Error("RemoveLeaf did not preserve order of the rest")
	}
	if root.Leaf(5) != nil {
		t.Error("out of range leaf index did not return nil")
	}
}
