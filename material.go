package arbor

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Material describes one surface appearance. Arbor only needs the texture
// aspect ratio (width over height) to keep bark texture tiling square; all
// other shading state lives in the renderer.
type Material struct {
	ID int
	// Ratio is the texture aspect ratio used to scale the V coordinate so
	// tiling matches the surface circumference. Zero is treated as 1.
	Ratio float32
}

// aspect returns the usable aspect ratio.
func (m Material) aspect() float32 {
	if m.Ratio == 0 {
		return 1
	}
	return m.Ratio
}

// Vertex is the renderable vertex layout produced by Mesh: position,
// normal, texture coordinates, and up to two skinning joints. Joint ids and
// weights are stored as float pairs so the buffer uploads directly as
// vertex attributes.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
	Weights  mgl32.Vec2
	Joints   mgl32.Vec2
}

// Geometry is a leaf template: a small triangle mesh instantiated once per
// leaf. ID 0 is reserved for the built-in plane.
type Geometry struct {
	ID       int
	vertices []Vertex
	indices  []uint32
}

// Vertices returns the template vertices. The slice is owned by the
// geometry.
func (g *Geometry) Vertices() []Vertex {
	return g.vertices
}

// Indices returns the template indices. The slice is owned by the geometry.
func (g *Geometry) Indices() []uint32 {
	return g.indices
}

// SetPlane replaces the geometry with a single quad: unit width across X,
// unit length along +Z, normal +Y.
func (g *Geometry) SetPlane() {
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
	g.addPlane(mgl32.QuatIdent())
}

// SetPerpendicularPlanes replaces the geometry with two unit quads crossed
// at right angles along the length axis.
func (g *Geometry) SetPerpendicularPlanes() {
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
	g.addPlane(mgl32.QuatIdent())
	g.addPlane(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}))
}

func (g *Geometry) addPlane(rotation mgl32.Quat) {
	base := uint32(len(g.vertices))
	normal := rotation.Rotate(mgl32.Vec3{0, 1, 0}).Normalize()
	corners := []mgl32.Vec3{
		{-0.5, 0, 0},
		{0.5, 0, 0},
		{-0.5, 0, 1},
		{0.5, 0, 1},
	}
	uvs := []mgl32.Vec2{{0, 0}, {1, 0}, {0, 1}, {1, 1}}
	for i, c := range corners {
		g.vertices = append(g.vertices, Vertex{
			Position: rotation.Rotate(c),
			Normal:   normal,
			UV:       uvs[i],
			Weights:  mgl32.Vec2{1, 0},
		})
	}
	g.indices = append(g.indices,
		base, base+1, base+2,
		base+2, base+1, base+3,
	)
}

// Transform bakes rotation, scale, and translation into the template's
// vertices, in that order.
func (g *Geometry) Transform(rotation mgl32.Quat, scale, translation mgl32.Vec3) {
	for i := range g.vertices {
		v := &g.vertices[i]
		p := v.Position
		p = mgl32.Vec3{p[0] * scale[0], p[1] * scale[1], p[2] * scale[2]}
		p = rotation.Rotate(p)
		v.Position = p.Add(translation)
		n := rotation.Rotate(v.Normal)
		if n.Len() > 0 {
			n = n.Normalize()
		}
		v.Normal = n
	}
}

// clone returns a deep copy so instantiation never mutates the registry
// template.
func (g *Geometry) clone() Geometry {
	out := Geometry{ID: g.ID}
	out.vertices = append([]Vertex(nil), g.vertices...)
	out.indices = append([]uint32(nil), g.indices...)
	return out
}
