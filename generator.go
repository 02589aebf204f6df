package arbor

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween/ease"
)

// Generator grows a plant by simulating competition for light. Each growth
// cycle rasterizes the current skeleton into a Volume, casts rays through
// it, and lets every stem extend, branch, and thicken according to the
// flux its tip receives. All stochastic decisions come from the per-stem
// random streams, so growth is reproducible from the root seed.
type Generator struct {
	plant *Plant

	primaryGrowthRate   float32
	secondaryGrowthRate float32
	minRadius           float32
	rayCount            int
	rayLevels           int
	width               float32 // volume margin around the plant bounds

	seed     uint64
	seeded   bool
	maxDepth int
}

// Generator growth constants. These shape the simulation but are not
// correctness-critical; the tunables on Generator are the supported knobs.
const (
	minEfficiency     = 0.01
	maxPathNodes      = 24
	branchProbability = 0.4
	branchAngle       = 1.1 // radians from the parent direction
	upBias            = 0.35
	leavesPerStem     = 3
	densityPerArea    = 6.0
)

// NewGenerator returns a generator with the default tunables.
func NewGenerator(plant *Plant) *Generator {
	return &Generator{
		plant:               plant,
		primaryGrowthRate:   0.5,
		secondaryGrowthRate: 0.3,
		minRadius:           0.015,
		rayCount:            64,
		rayLevels:           2,
		width:               1,
		maxDepth:            4,
	}
}

// SetSeed fixes the root stem's random stream, making the whole run
// reproducible. Must be called before the first Grow.
func (g *Generator) SetSeed(seed uint64) {
	g.seed = seed
	g.seeded = true
}

// SetPrimaryGrowthRate scales how far stems extend per node.
func (g *Generator) SetPrimaryGrowthRate(rate float32) {
	g.primaryGrowthRate = rate
}

// SetSecondaryGrowthRate scales how fast stems thicken.
func (g *Generator) SetSecondaryGrowthRate(rate float32) {
	g.secondaryGrowthRate = rate
}

// SetRayDensity trades light estimation accuracy for cost: baseCount rays
// per level, levels refinement passes.
func (g *Generator) SetRayDensity(baseCount, levels int) {
	if baseCount > 0 {
		g.rayCount = baseCount
	}
	if levels > 0 {
		g.rayLevels = levels
	}
}

// Grow runs up to cycles growth cycles, each extending every stem by at
// most nodesPerCycle path nodes. A cycle that adds no nodes anywhere ends
// growth early. Returns the total number of nodes added.
func (g *Generator) Grow(cycles, nodesPerCycle int) int {
	g.initRoot()
	total := 0
	for c := 0; c < cycles; c++ {
		vol := g.buildVolume()
		g.castRays(vol)
		vol.GeneralizeFlux()

		added := g.growStem(vol, g.plant.Root(), nodesPerCycle)
		g.updateRadius(g.plant.Root())
		if added == 0 {
			break
		}
		total += added
	}
	return total
}

// initRoot creates the root stem with a short vertical path when the
// plant is empty.
func (g *Generator) initRoot() {
	if g.plant.Root() != nil {
		return
	}
	root := g.plant.CreateRoot()
	if g.seeded {
		root.seedStream(g.seed)
	}
	var path Path
	path.Spline.Degree = 1
	path.Spline.AddControl(mgl32.Vec3{})
	path.Spline.AddControl(mgl32.Vec3{0, g.primaryGrowthRate, 0})
	path.Divisions = 1
	path.MaxRadius = g.minRadius * 2
	path.MinRadius = g.minRadius
	path.Taper = TaperOutQuad
	root.SetPath(path)
	g.updateBoundingBox(root)
}

// buildVolume rasterizes the current skeleton into a fresh volume.
func (g *Generator) buildVolume() *Volume {
	bounds := g.plant.Bounds().Inflate(g.width)
	vol := NewVolume(bounds, g.maxDepth)
	g.addToVolume(vol, g.plant.Root())
	vol.GeneralizeDensity()
	return vol
}

// addToVolume marks the cells swept by the stem's cross sections as
// occupied, then recurses over the subtree.
func (g *Generator) addToVolume(vol *Volume, stem *Stem) {
	if stem == nil {
		return
	}
	if isFinite(stem.Location()) {
		for i := 0; i < stem.Path.Size(); i++ {
			p := stem.Location().Add(stem.Path.Point(i))
			r := stem.Path.Radius(i)
			vol.AddDensity(p, densityPerArea*r*r*stem.Path.SegmentLength(i))
		}
	}
	for child := stem.Child(); child != nil; child = child.Sibling() {
		g.addToVolume(vol, child)
	}
}

// castRays casts a deterministic dome of downward-biased rays through the
// volume. Directions follow a golden-angle spiral over the upper
// hemisphere; each level repeats the dome with a phase shift and half the
// energy, refining the estimate where the cheap pass was too coarse.
func (g *Generator) castRays(vol *Volume) {
	center := vol.Bounds().Center()
	radius := vol.Bounds().Size()[0]
	const golden = 2.39996323 // golden angle in radians
	energy := float32(1)
	for level := 0; level < g.rayLevels; level++ {
		phase := float32(level) * 0.5
		for i := 0; i < g.rayCount; i++ {
			// Stratify altitude so rays favor the zenith, where most
			// light comes from.
			u := (float32(i) + 0.5) / float32(g.rayCount)
			altitude := math32.Acos(1 - u*0.95)
			azimuth := golden*float32(i) + phase
			dir := mgl32.Vec3{
				math32.Sin(altitude) * math32.Cos(azimuth),
				-math32.Cos(altitude),
				math32.Sin(altitude) * math32.Sin(azimuth),
			}
			origin := center.Sub(dir.Mul(radius))
			vol.CastRay(Ray{Origin: origin, Direction: dir}, energy)
		}
		energy /= 2
	}
}

// evaluateEfficiency converts the flux around the stem's tip into a [0, 1]
// growth budget. Deep (thin) stems query a coarser level: their tips are
// small relative to a fine cell and the averaged value is steadier.
func (g *Generator) evaluateEfficiency(vol *Volume, stem *Stem) float32 {
	if stem.Path.Size() == 0 {
		return 0
	}
	tip := stem.Location().Add(stem.Path.Point(stem.Path.Size() - 1))
	level := vol.Depth()
	if stem.Depth() > 1 {
		level--
	}
	flux := vol.Flux(tip, level)
	return flux / (1 + flux)
}

// growStem runs one cycle's extension, branching, and leafing for stem and
// its subtree, returning the number of path nodes added.
func (g *Generator) growStem(vol *Volume, stem *Stem, nodesPerCycle int) int {
	if stem == nil {
		return 0
	}
	added := 0
	efficiency := g.evaluateEfficiency(vol, stem)
	n := g.addNodes(vol, stem, nodesPerCycle, efficiency)
	if n > 0 {
		added += n
		g.addStems(stem, vol, n)
	} else {
		g.addLeaves(stem)
	}
	for child := stem.Child(); child != nil; child = child.Sibling() {
		added += g.growStem(vol, child, nodesPerCycle)
	}
	return added
}

// addNodes extends the stem's path by up to the budgeted node count. Each
// node's direction chases the flux measured around the tip and is pulled
// upward against gravity. Extension stops when efficiency is too low or
// the path reached its node limit.
func (g *Generator) addNodes(vol *Volume, stem *Stem, budget int, efficiency float32) int {
	if efficiency < minEfficiency || budget <= 0 {
		return 0
	}
	if len(stem.Path.Spline.Controls) >= maxPathNodes {
		return 0
	}
	count := int(efficiency*float32(budget) + 0.5)
	if count < 1 {
		count = 1
	}
	if count > budget {
		count = budget
	}
	length := g.primaryGrowthRate * (0.5 + 0.5*efficiency)
	for i := 0; i < count; i++ {
		g.addNode(vol, stem, length)
	}
	stem.Path.Generate()
	stem.updatePositions()
	g.updateBoundingBox(stem)
	return count
}

// addNode appends one path control point toward the brightest nearby
// direction.
func (g *Generator) addNode(vol *Volume, stem *Stem, length float32) {
	controls := stem.Path.Spline.Controls
	tip := controls[len(controls)-1]
	dir := mgl32.Vec3{0, 1, 0}
	if len(controls) > 1 {
		dir = tip.Sub(controls[len(controls)-2]).Normalize()
	}
	origin := stem.Location().Add(tip)

	// Probe a few jittered headings and keep the one that sees the most
	// light. The sample set comes from the stem's own stream.
	best := dir
	bestFlux := vol.Flux(origin.Add(dir.Mul(length)), vol.Depth())
	for i := 0; i < 4; i++ {
		cand := g.jitterDirection(stem, dir)
		flux := vol.Flux(origin.Add(cand.Mul(length)), vol.Depth())
		if flux > bestFlux {
			bestFlux = flux
			best = cand
		}
	}
	grown := best.Add(mgl32.Vec3{0, upBias, 0}).Normalize()
	stem.Path.Spline.AddControl(tip.Add(grown.Mul(length)))
}

// jitterDirection perturbs dir by a small random rotation from the stem's
// stream.
func (g *Generator) jitterDirection(stem *Stem, dir mgl32.Vec3) mgl32.Vec3 {
	yaw := stem.rng.rangeFloat32(0, 2*math32.Pi)
	pitch := stem.rng.rangeFloat32(0.1, 0.5)
	axis := perpendicular(dir)
	q := mgl32.QuatRotate(yaw, dir).Mul(mgl32.QuatRotate(pitch, axis))
	return q.Rotate(dir).Normalize()
}

// perpendicular returns an arbitrary unit vector perpendicular to v.
func perpendicular(v mgl32.Vec3) mgl32.Vec3 {
	axis := v.Cross(mgl32.Vec3{0, 1, 0})
	if axis.Len() < epsilon {
		axis = v.Cross(mgl32.Vec3{1, 0, 0})
	}
	return axis.Normalize()
}

// addStems probabilistically spawns lateral stems along the newly grown
// span. Every draw comes from the stem's stream, so the decision sequence
// is reproducible.
func (g *Generator) addStems(stem *Stem, vol *Volume, newNodes int) {
	if stem.Depth() >= 3 {
		return
	}
	for i := 0; i < newNodes; i++ {
		if stem.rng.float32() >= branchProbability {
			continue
		}
		g.addLateral(stem)
	}
}

// addLateral creates one lateral stem at a random position on the
// recently grown part of the path.
func (g *Generator) addLateral(stem *Stem) {
	child := g.plant.AddStem(stem)
	child.Swelling = mgl32.Vec2{1.2, 1.5}

	length := stem.Path.Length()
	position := stem.rng.rangeFloat32(length*0.5, length)
	direction := stem.Path.IntermediateDirection(position)

	roll := child.rng.rangeFloat32(0, 2*math32.Pi)
	side := mgl32.QuatRotate(roll, direction).Rotate(perpendicular(direction))
	heading := mgl32.QuatRotate(branchAngle, side.Cross(direction).Normalize()).Rotate(direction)
	if heading[1] < 0 {
		heading[1] = -heading[1] * 0.3
	}
	heading = heading.Normalize()

	var path Path
	path.Spline.Degree = 1
	path.Spline.AddControl(mgl32.Vec3{})
	path.Spline.AddControl(heading.Mul(g.primaryGrowthRate * 0.5))
	path.Divisions = 1
	path.MaxRadius = g.minRadius
	path.MinRadius = g.minRadius
	path.Taper = TaperOutQuad
	child.SetPath(path)
	child.SetPosition(position)
}

// addLeaves attaches leaves once a stem has stopped extending. Leaf scale
// eases down toward the tip so foliage thins out where the wood is young.
func (g *Generator) addLeaves(stem *Stem) {
	if stem.Depth() == 0 || stem.LeafCount() > 0 {
		return
	}
	length := stem.Path.Length()
	if length <= 0 {
		return
	}
	rotation := mgl32.QuatIdent()
	flip := mgl32.QuatRotate(math32.Pi, mgl32.Vec3{0, 1, 0})
	for i := 0; i < leavesPerStem; i++ {
		t := float32(i) / float32(leavesPerStem)
		leaf := NewLeaf()
		if i == 0 {
			leaf.Position = LeafAtTip
		} else {
			leaf.Position = length - t*length*0.5
		}
		scale := ease.OutQuad(t, 1, -0.5, 1)
		leaf.Scale = mgl32.Vec3{scale, scale, scale}
		leaf.Rotation = rotation
		rotation = flip.Mul(rotation)
		stem.AddLeaf(leaf)
	}
}

// updateRadius recomputes radii bottom-up. Following the pipe model, a
// stem's cross-sectional area is never smaller than the sum of its
// children's, floored at the generator's minimum radius.
func (g *Generator) updateRadius(stem *Stem) float32 {
	if stem == nil {
		return 0
	}
	sum := float32(0)
	for child := stem.Child(); child != nil; child = child.Sibling() {
		r := g.updateRadius(child)
		sum += r * r
	}
	own := g.minRadius + g.secondaryGrowthRate*0.05*stem.Path.Length()
	radius := math32.Sqrt(own*own + sum)
	if radius < stem.Path.MinRadius {
		radius = stem.Path.MinRadius
	}
	stem.Path.MaxRadius = radius
	stem.Path.MinRadius = g.minRadius
	return radius
}

// updateBoundingBox extends the plant bounds over the stem's geometry so
// the next cycle's volume covers it.
func (g *Generator) updateBoundingBox(stem *Stem) {
	for i := 0; i < stem.Path.Size(); i++ {
		g.plant.ExtendBounds(stem.Location().Add(stem.Path.Point(i)))
	}
}
