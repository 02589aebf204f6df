package arbor

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Stem is one branch segment of the plant skeleton. Stems are allocated by
// a Plant, which guarantees their addresses stay valid across unrelated
// edits, so callers may retain *Stem handles between regenerations.
//
// Structural links are managed by Plant; the exported fields below are
// plain geometry and can be edited freely between regenerations.
type Stem struct {
	// Links. The sibling list is doubly linked; parent.child points at the
	// head, which is the stem with no previous sibling.
	parent      *Stem
	child       *Stem
	nextSibling *Stem
	prevSibling *Stem

	// Path is the curve the stem follows, with its radius profile.
	Path Path
	// SectionDivisions is the number of radial divisions per cross-section
	// ring.
	SectionDivisions int
	// CollarDivisions is the number of intermediate rings synthesized for
	// the branch collar.
	CollarDivisions int
	// Swelling holds the two collar swelling factors (sideways, along the
	// parent). A collar is synthesized only when both are >= 1 and the
	// stem has a parent.
	Swelling mgl32.Vec2
	// OuterMaterial selects the bark buffer; 0 is the default buffer.
	OuterMaterial int
	// InnerMaterial selects the buffer for tip caps; 0 is the default.
	InnerMaterial int

	depth    int
	position float32 // arc-length attachment offset on the parent's path
	location mgl32.Vec3

	joints []Joint
	leaves []Leaf

	rng            randState
	seed           uint64
	hasDichotomous bool
}

// init resets the stem for (re)use under the given parent. The random
// stream is spawned from the parent's stream so the subtree's stochastic
// decisions are reproducible independent of traversal order.
func (s *Stem) init(parent *Stem) {
	s.parent = parent
	s.SectionDivisions = defaultSectionDivisions
	s.CollarDivisions = defaultCollarDivisions
	if parent == nil {
		s.depth = 0
		s.position = 0
		s.location = mgl32.Vec3{}
	} else {
		s.depth = parent.depth + 1
		s.seedStream(parent.rng.next())
	}
}

// seedStream seeds the stem's random stream and records the seed so the
// stream can later be rewound to its starting point.
func (s *Stem) seedStream(seed uint64) {
	s.seed = seed
	s.rng = newRandState(seed)
}

const (
	defaultSectionDivisions = 8
	defaultCollarDivisions  = 3
)

// Parent returns the owning stem, or nil for the root.
func (s *Stem) Parent() *Stem { return s.parent }

// Child returns the head of the child list, or nil.
func (s *Stem) Child() *Stem { return s.child }

// Sibling returns the next sibling, or nil.
func (s *Stem) Sibling() *Stem { return s.nextSibling }

// PrevSibling returns the previous sibling, or nil.
func (s *Stem) PrevSibling() *Stem { return s.prevSibling }

// Depth returns the number of ancestors between this stem and the root.
func (s *Stem) Depth() int { return s.depth }

// Location returns the stem's base point in plant space. A non-finite
// location marks the stem as hidden; the mesh skips it.
func (s *Stem) Location() mgl32.Vec3 { return s.location }

// Position returns the arc-length attachment offset on the parent's path.
func (s *Stem) Position() float32 { return s.position }

// SetPosition moves the stem's attachment point along the parent's path
// and refreshes the locations of the whole subtree. Positions past the
// parent's tip yield a non-finite location, hiding the stem.
func (s *Stem) SetPosition(position float32) {
	if s.parent == nil {
		return
	}
	point := s.parent.Path.Intermediate(position)
	if !isFinite(point) {
		s.location = point
	} else {
		s.location = s.parent.location.Add(point)
	}
	s.position = position
	s.updatePositions()
}

// SetPath replaces the stem's path, generating it if needed, and refreshes
// descendant locations, which depend on this stem's geometry.
func (s *Stem) SetPath(path Path) {
	s.Path = path
	if !s.Path.Generated() {
		s.Path.Generate()
	}
	s.updatePositions()
}

// updatePositions recomputes child locations after this stem's geometry
// changed. Dichotomous stems stay pinned to the tip.
func (s *Stem) updatePositions() {
	i := 0
	for child := s.child; child != nil; child = child.nextSibling {
		if i < 2 && s.hasDichotomous {
			child.SetPosition(s.Path.Length())
		} else {
			child.SetPosition(child.position)
		}
		i++
	}
}

// IsLateral reports whether this stem is an ordinary side branch, as
// opposed to the root or one of a parent's two dichotomous forks.
func (s *Stem) IsLateral() bool {
	if s.depth == 0 {
		return false
	}
	if s.parent.hasDichotomous {
		if s.parent.DichotomousStem(0) == s || s.parent.DichotomousStem(1) == s {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether ancestor appears on this stem's parent
// chain.
func (s *Stem) IsDescendantOf(ancestor *Stem) bool {
	for p := s.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// HasDichotomous reports whether the first two children are a fork.
func (s *Stem) HasDichotomous() bool { return s.hasDichotomous }

// DichotomousStem returns fork stem index (0 or 1), or nil when the stem
// has no fork.
func (s *Stem) DichotomousStem(index int) *Stem {
	if !s.hasDichotomous {
		return nil
	}
	child := s.child
	for i := 0; i < index && child != nil; i++ {
		child = child.nextSibling
	}
	return child
}

// LateralChild returns the index-th non-dichotomous child.
func (s *Stem) LateralChild(index int) *Stem {
	child := s.child
	if s.hasDichotomous {
		for i := 0; i < 2 && child != nil; i++ {
			child = child.nextSibling
		}
	}
	for i := 0; i < index && child != nil; i++ {
		child = child.nextSibling
	}
	return child
}

// ChildCount returns the number of children, forks included.
func (s *Stem) ChildCount() int {
	n := 0
	for child := s.child; child != nil; child = child.nextSibling {
		n++
	}
	return n
}

// SetResolution sets the cross-section divisions. Dichotomous forks share
// their parent's resolution, so setting it on a fork redirects to the
// parent, and setting it on a forked stem propagates down the fork chain.
func (s *Stem) SetResolution(divisions int) {
	if s.parent != nil && !s.IsLateral() {
		s.parent.SetResolution(divisions)
		return
	}
	s.SectionDivisions = divisions
	s.propagateResolution(divisions)
}

func (s *Stem) propagateResolution(divisions int) {
	if !s.hasDichotomous {
		return
	}
	for i := 0; i < 2; i++ {
		if d := s.DichotomousStem(i); d != nil {
			d.SectionDivisions = divisions
			d.propagateResolution(divisions)
		}
	}
}

// MinRadius returns the stem's minimum radius; 0 means an open, uncapped
// tip.
func (s *Stem) MinRadius() float32 { return s.Path.MinRadius }

// AddJoint inserts a skinning joint, keeping joints ordered by path index.
func (s *Stem) AddJoint(j Joint) {
	at := sort.Search(len(s.joints), func(i int) bool {
		return s.joints[i].PathIndex > j.PathIndex
	})
	s.joints = append(s.joints, Joint{})
	copy(s.joints[at+1:], s.joints[at:])
	s.joints[at] = j
}

// Joints returns the stem's joints ordered by path index. The slice is
// owned by the stem.
func (s *Stem) Joints() []Joint { return s.joints }

// HasJoints reports whether the stem carries skinning joints.
func (s *Stem) HasJoints() bool { return len(s.joints) > 0 }

// AddLeaf attaches a leaf and returns its index on this stem.
func (s *Stem) AddLeaf(leaf Leaf) int {
	s.leaves = append(s.leaves, leaf)
	return len(s.leaves) - 1
}

// Leaf returns the leaf at index, or nil when out of range.
func (s *Stem) Leaf(index int) *Leaf {
	if index < 0 || index >= len(s.leaves) {
		return nil
	}
	return &s.leaves[index]
}

// LeafCount returns the number of leaves attached to this stem.
func (s *Stem) LeafCount() int { return len(s.leaves) }

// RemoveLeaf deletes the leaf at index, preserving the order of the rest.
func (s *Stem) RemoveLeaf(index int) {
	if index < 0 || index >= len(s.leaves) {
		return
	}
	s.leaves = append(s.leaves[:index], s.leaves[index+1:]...)
}

// RemoveLeaves detaches every leaf from this stem.
func (s *Stem) RemoveLeaves() {
	s.leaves = nil
}

// cloneValue returns a deep copy of the stem's value state with links
// cleared. Extraction records hold clones so later edits to the live tree
// cannot reach into a snapshot.
func (s *Stem) cloneValue() Stem {
	c := *s
	c.parent = nil
	c.child = nil
	c.nextSibling = nil
	c.prevSibling = nil
	c.Path.Spline.Controls = append([]mgl32.Vec3(nil), s.Path.Spline.Controls...)
	c.Path.points = append([]mgl32.Vec3(nil), s.Path.points...)
	c.Path.lengths = append([]float32(nil), s.Path.lengths...)
	c.joints = append([]Joint(nil), s.joints...)
	c.leaves = append([]Leaf(nil), s.leaves...)
	return c
}
