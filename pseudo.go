package arbor

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Derivation is one production rule of the rule-based allocator: how
// densely a stem of this level spawns laterals and leaves, and how child
// geometry relates to the parent's.
type Derivation struct {
	// StemDensity is the number of lateral stems per unit of path length.
	StemDensity float32 `yaml:"stem_density"`
	// StemStart is the arc length before the first lateral.
	StemStart float32 `yaml:"stem_start"`
	// LeafDensity is the number of leaves per unit of path length.
	LeafDensity float32 `yaml:"leaf_density"`
	// LeafStart is the arc length before the first leaf.
	LeafStart float32 `yaml:"leaf_start"`
	// Length is the path length of stems produced by this rule.
	Length float32 `yaml:"length"`
	// Radius is the base radius of stems produced by this rule.
	Radius float32 `yaml:"radius"`
	// MinRadius floors the radius profile; 0 leaves tips open.
	MinRadius float32 `yaml:"min_radius"`
	// Angle is the branching angle from the parent direction, radians.
	Angle float32 `yaml:"angle"`
	// AngleVariation randomizes the branching angle by up to this much.
	AngleVariation float32 `yaml:"angle_variation"`
	// Nodes is the number of path controls per produced stem.
	Nodes int `yaml:"nodes"`
}

// DerivationNode nests rules: the rule at a node governs stems whose
// children are produced by the node's child rules, depth-first.
type DerivationNode struct {
	Data     Derivation        `yaml:"rule"`
	Children []*DerivationNode `yaml:"children"`
}

// DerivationTree is a complete declarative plant description: a root rule
// plus the seed of the random stream that perturbs it.
type DerivationTree struct {
	Root *DerivationNode `yaml:"root"`
	Seed uint64          `yaml:"seed"`
}

// PseudoGenerator populates a plant from a DerivationTree instead of a
// light simulation. It shares the stem graph and mesh consumer with
// Generator but never touches a Volume.
type PseudoGenerator struct {
	plant *Plant
	dvn   DerivationTree
	rng   randState
}

// NewPseudoGenerator returns a rule-based generator with an empty
// derivation.
func NewPseudoGenerator(plant *Plant) *PseudoGenerator {
	return &PseudoGenerator{plant: plant}
}

// SetDerivation replaces the derivation tree.
func (pg *PseudoGenerator) SetDerivation(dvn DerivationTree) {
	pg.dvn = dvn
}

// Derivation returns the current derivation tree.
func (pg *PseudoGenerator) Derivation() DerivationTree {
	return pg.dvn
}

// Reset restores the random stream to the derivation seed so the next
// Grow reproduces the same plant.
func (pg *PseudoGenerator) Reset() {
	pg.rng = newRandState(pg.dvn.Seed)
}

// Grow replaces the plant's tree with one derived from the rules.
func (pg *PseudoGenerator) Grow() {
	if pg.dvn.Root == nil {
		return
	}
	pg.Reset()
	root := pg.plant.CreateRoot()
	root.seedStream(pg.rng.next())
	pg.GrowAt(root)
}

// GrowAt derives the subtree under stem from the rule level matching the
// stem's depth. The stem's existing laterals and leaves are replaced.
func (pg *PseudoGenerator) GrowAt(stem *Stem) {
	node := pg.nodeForDepth(stem.Depth())
	if node == nil {
		return
	}
	pg.setPath(stem, pg.stemDirection(stem, node.Data), node.Data)
	pg.plant.RemoveLateralStems(stem)
	stem.RemoveLeaves()
	pg.addLateralStems(stem, node)
	pg.addLeaves(stem, node.Data)
}

// nodeForDepth walks the derivation to the rule governing the given
// depth. Deeper stems than the tree describes produce nothing.
func (pg *PseudoGenerator) nodeForDepth(depth int) *DerivationNode {
	node := pg.dvn.Root
	for d := 0; d < depth && node != nil; d++ {
		if len(node.Children) == 0 {
			return nil
		}
		node = node.Children[0]
	}
	return node
}

// stemDirection picks the initial direction for a stem: straight up for
// the root, or the rule's branching angle off the parent direction with
// random roll and variation.
func (pg *PseudoGenerator) stemDirection(stem *Stem, d Derivation) mgl32.Vec3 {
	if stem.Parent() == nil {
		return mgl32.Vec3{0, 1, 0}
	}
	parentDir := stem.Parent().Path.IntermediateDirection(stem.Position())
	angle := d.Angle
	if d.AngleVariation > 0 {
		angle += stem.rng.rangeFloat32(-d.AngleVariation, d.AngleVariation)
	}
	roll := stem.rng.rangeFloat32(0, 2*math32.Pi)
	axis := mgl32.QuatRotate(roll, parentDir).Rotate(perpendicular(parentDir))
	return mgl32.QuatRotate(angle, axis).Rotate(parentDir).Normalize()
}

// setPath builds the stem's path along direction with the rule's length,
// radius, and node count.
func (pg *PseudoGenerator) setPath(stem *Stem, direction mgl32.Vec3, d Derivation) {
	nodes := d.Nodes
	if nodes < 1 {
		nodes = 1
	}
	var path Path
	path.Spline.Degree = 1
	path.Divisions = 2
	path.MaxRadius = d.Radius
	path.MinRadius = d.MinRadius
	path.Taper = TaperOutCubic

	step := d.Length / float32(nodes)
	point := mgl32.Vec3{}
	path.Spline.AddControl(point)
	dir := direction
	for i := 0; i < nodes; i++ {
		// Straighten toward vertical a little with each node, the way
		// real shoots right themselves.
		dir = dir.Add(mgl32.Vec3{0, 0.05, 0}).Normalize()
		point = point.Add(dir.Mul(step))
		path.Spline.AddControl(point)
	}
	stem.SetPath(path)
}

// addLateralStems distributes laterals per the node's first child rule and
// recurses into them.
func (pg *PseudoGenerator) addLateralStems(stem *Stem, node *DerivationNode) {
	if len(node.Children) == 0 {
		return
	}
	rule := node.Children[0].Data
	if rule.StemDensity <= 0 {
		return
	}
	distance := 1 / rule.StemDensity
	length := stem.Path.Length()
	for position := rule.StemStart; position < length; position += distance {
		pg.addLateralStem(stem, position, node.Children[0])
	}
}

func (pg *PseudoGenerator) addLateralStem(stem *Stem, position float32, node *DerivationNode) {
	child := pg.plant.AddStem(stem)
	child.Swelling = mgl32.Vec2{1.2, 1.5}
	// The attachment point has to be set first: the branching direction
	// starts from the parent's direction at that point.
	child.SetPosition(position)
	pg.setPath(child, pg.stemDirection(child, node.Data), node.Data)
	pg.addLateralStems(child, node)
	pg.addLeaves(child, node.Data)
}

// addLeaves distributes leaves along the stem per the rule, alternating
// sides.
func (pg *PseudoGenerator) addLeaves(stem *Stem, d Derivation) {
	if d.LeafDensity <= 0 {
		return
	}
	distance := 1 / d.LeafDensity
	length := stem.Path.Length()
	rotation := mgl32.QuatIdent()
	for position := length - d.LeafStart; position > 0; position -= distance {
		leaf := NewLeaf()
		leaf.Position = position
		leaf.Rotation = rotation
		rotation = pg.alternate(rotation)
		stem.AddLeaf(leaf)
	}
}

// alternate flips the leaf orientation half a turn around the stem axis so
// successive leaves face away from each other.
func (pg *PseudoGenerator) alternate(rotation mgl32.Quat) mgl32.Quat {
	return mgl32.QuatRotate(math32.Pi, mgl32.Vec3{0, 1, 0}).Mul(rotation)
}
