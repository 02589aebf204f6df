package arbor

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Volume is a sparse octree over the plant's bounding box. Cells
// accumulate occupied wood density and received light flux; rays cast
// through the volume lose energy to the density they traverse, which is
// the self-shadowing approximation driving growth.
//
// The octree refines top-down on demand as density is added, and
// generalizes bottom-up by averaging so coarse-level queries (used for
// thin, distant stem tips) stay O(depth).
type Volume struct {
	bounds Box // cubified copy of the requested bounds
	depth  int
	cells  []volumeCell
}

type volumeCell struct {
	density  float32
	flux     float32
	children int32 // index of the first of 8 children, or -1
}

const noChildren = int32(-1)

// NewVolume creates a volume over bounds subdivided depth times. The
// bounds are expanded to a cube so cells stay cubic.
func NewVolume(bounds Box, depth int) *Volume {
	size := bounds.Size()
	half := size[0]
	if size[1] > half {
		half = size[1]
	}
	if size[2] > half {
		half = size[2]
	}
	half /= 2
	if half <= 0 {
		half = 1
	}
	center := bounds.Center()
	cube := Box{
		Min: center.Sub(mgl32.Vec3{half, half, half}),
		Max: center.Add(mgl32.Vec3{half, half, half}),
	}
	if depth < 1 {
		depth = 1
	}
	return &Volume{
		bounds: cube,
		depth:  depth,
		cells:  []volumeCell{{children: noChildren}},
	}
}

// Bounds returns the cubified bounds of the volume.
func (v *Volume) Bounds() Box {
	return v.bounds
}

// Depth returns the maximum refinement level.
func (v *Volume) Depth() int {
	return v.depth
}

// CellSize returns the edge length of a cell at the given level.
func (v *Volume) CellSize(level int) float32 {
	size := v.bounds.Size()[0]
	for i := 0; i < level; i++ {
		size /= 2
	}
	return size
}

// refine ensures cell has children, allocating them zeroed.
func (v *Volume) refine(cell int32) int32 {
	if v.cells[cell].children != noChildren {
		return v.cells[cell].children
	}
	first := int32(len(v.cells))
	for i := 0; i < 8; i++ {
		v.cells = append(v.cells, volumeCell{children: noChildren})
	}
	v.cells[cell].children = first
	return first
}

// descend walks to the cell containing p, refining when create is true,
// stopping at the requested level or at the deepest existing cell. It
// returns the cell index, or -1 when p lies outside the volume.
func (v *Volume) descend(p mgl32.Vec3, level int, create bool) int32 {
	if !v.bounds.Contains(p) {
		return -1
	}
	cell := int32(0)
	center := v.bounds.Center()
	half := v.bounds.Size()[0] / 2
	for l := 0; l < level; l++ {
		children := v.cells[cell].children
		if children == noChildren {
			if !create {
				return cell
			}
			children = v.refine(cell)
		}
		octant := int32(0)
		half /= 2
		for i := 0; i < 3; i++ {
			if p[i] >= center[i] {
				octant |= 1 << i
				center[i] += half
			} else {
				center[i] -= half
			}
		}
		cell = children + octant
	}
	return cell
}

// AddDensity deposits occupied wood mass at p, refining down to the
// finest level. Points outside the bounds are ignored.
func (v *Volume) AddDensity(p mgl32.Vec3, amount float32) {
	cell := v.descend(p, v.depth, true)
	if cell < 0 {
		return
	}
	v.cells[cell].density += amount
}

// AddFlux deposits light flux at p at the finest existing cell.
func (v *Volume) AddFlux(p mgl32.Vec3, amount float32) {
	cell := v.descend(p, v.depth, false)
	if cell < 0 {
		return
	}
	v.cells[cell].flux += amount
}

// Density returns the accumulated density of the cell containing p at the
// given level (or the deepest existing cell above it).
func (v *Volume) Density(p mgl32.Vec3, level int) float32 {
	cell := v.descend(p, level, false)
	if cell < 0 {
		return 0
	}
	return v.cells[cell].density
}

// Flux returns the accumulated flux of the cell containing p at the given
// level (or the deepest existing cell above it).
func (v *Volume) Flux(p mgl32.Vec3, level int) float32 {
	cell := v.descend(p, level, false)
	if cell < 0 {
		return 0
	}
	return v.cells[cell].flux
}

// GeneralizeDensity propagates fine densities up the tree: every interior
// cell becomes the average of its children. Call after the volume is
// filled and before coarse-level queries.
func (v *Volume) GeneralizeDensity() {
	v.generalize(func(c *volumeCell) *float32 { return &c.density })
}

// GeneralizeFlux propagates fine flux up the tree by averaging.
func (v *Volume) GeneralizeFlux() {
	v.generalize(func(c *volumeCell) *float32 { return &c.flux })
}

func (v *Volume) generalize(field func(*volumeCell) *float32) {
	var walk func(cell int32) float32
	walk = func(cell int32) float32 {
		c := &v.cells[cell]
		if c.children == noChildren {
			return *field(c)
		}
		sum := float32(0)
		for i := int32(0); i < 8; i++ {
			sum += walk(c.children + i)
		}
		*field(c) = sum / 8
		return *field(c)
	}
	walk(0)
}

// rayAbsorption scales how strongly traversed density attenuates a ray.
const rayAbsorption = 4.0

// CastRay marches the ray through the volume, depositing flux into every
// leaf cell it crosses. The deposit at each cell is the ray's remaining
// energy; energy decays multiplicatively with the density already
// traversed, so dense wood upstream shadows cells downstream. Returns the
// energy left when the ray exits.
func (v *Volume) CastRay(ray Ray, energy float32) float32 {
	dir := ray.Direction
	if dir.Len() == 0 {
		return energy
	}
	dir = dir.Normalize()
	tmin, tmax, ok := intersectBox(Ray{Origin: ray.Origin, Direction: dir}, v.bounds)
	if !ok {
		return energy
	}
	if tmin < 0 {
		tmin = 0
	}
	step := v.CellSize(v.depth) / 2
	lastCell := int32(-1)
	for t := tmin + step/2; t < tmax; t += step {
		p := ray.Origin.Add(dir.Mul(t))
		cell := v.descend(p, v.depth, false)
		if cell < 0 || cell == lastCell {
			continue
		}
		lastCell = cell
		c := &v.cells[cell]
		c.flux += energy
		energy /= 1 + c.density*rayAbsorption
		if energy < 1e-4 {
			break
		}
	}
	return energy
}
