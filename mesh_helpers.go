package arbor

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// crossSection is the unit ring template stamped out at every path sample.
// The ring lies in the XZ plane before rotation; the seam vertex is
// duplicated so the U coordinate can run 0..1 around the circumference.
type crossSection struct {
	resolution int
	vertices   []Vertex
}

// generate rebuilds the template for the given number of radial divisions.
func (c *crossSection) generate(divisions int) {
	c.resolution = divisions
	c.vertices = c.vertices[:0]
	for i := 0; i <= divisions; i++ {
		angle := 2 * math32.Pi * float32(i) / float32(divisions)
		p := mgl32.Vec3{math32.Cos(angle), 0, math32.Sin(angle)}
		c.vertices = append(c.vertices, Vertex{
			Position: p,
			Normal:   p,
			UV:       mgl32.Vec2{float32(i) / float32(divisions), 0},
		})
	}
}

// addTriangle appends one triangle to the buffer's index stream.
func (m *Mesh) addTriangle(mesh int, a, b, c uint32) {
	m.indices[mesh] = append(m.indices[mesh], a, b, c)
}

// addTriangleRing connects the ring starting at prevIndex with the ring
// starting at index: two triangles per circumferential edge. The second
// ring may not be emitted yet; indices are allowed to point at reserved
// space.
func (m *Mesh) addTriangleRing(prevIndex, index, divisions, mesh int) {
	p := uint32(prevIndex)
	i := uint32(index)
	for d := 0; d < divisions; d++ {
		m.addTriangle(mesh, i, i+1, p)
		i++
		m.addTriangle(mesh, p, i, p+1)
		p++
	}
}

// branchCollarScale builds the swelling matrix for a child stem fusing
// into parent: axes are the parent direction at the attachment point, the
// child's initial direction projected against it, and their cross
// product; the two transverse axes scale independently by the child's
// swelling factors.
func branchCollarScale(child, parent *Stem) mgl32.Mat4 {
	position := child.Position()
	yaxis := parent.Path.IntermediateDirection(position)
	xaxis := child.Path.Direction(0)
	xaxis = yaxis.Cross(xaxis).Cross(yaxis)
	if xaxis.Len() < epsilon {
		xaxis = perpendicular(yaxis)
	} else {
		xaxis = xaxis.Normalize()
	}
	zaxis := yaxis.Cross(xaxis).Normalize()

	axes := mgl32.Ident4()
	axes.SetCol(0, xaxis.Vec4(0))
	axes.SetCol(1, yaxis.Vec4(0))
	axes.SetCol(2, zaxis.Vec4(0))

	scale := mgl32.Ident4()
	scale[10] = child.Swelling[0] // z axis
	scale[5] = child.Swelling[1]  // y axis

	return axes.Mul4(scale).Mul4(axes.Transpose())
}

// moveToSurface projects the vertex onto the parent stem's already-emitted
// triangles along the ray from target (the matching post-collar point)
// toward the vertex. The closest hit in front of the target wins; the
// vertex adopts the hit position and the triangle's normal. Returns false
// when no triangle is hit.
func (m *Mesh) moveToSurface(vertex Vertex, target mgl32.Vec3, parent Segment, mesh int) (Vertex, bool) {
	dir := vertex.Position.Sub(target)
	if dir.Len() < epsilon {
		dir = vertex.Normal
	}
	if dir.Len() < epsilon {
		return vertex, false
	}
	dir = dir.Normalize()
	ray := Ray{Origin: target, Direction: dir}

	best := math32.Inf(1)
	var normal mgl32.Vec3
	indices := m.indices[mesh]
	for i := parent.IndexStart; i+2 < parent.IndexStart+parent.IndexCount; i += 3 {
		p1 := m.vertices[mesh][indices[i]].Position
		p2 := m.vertices[mesh][indices[i+1]].Position
		p3 := m.vertices[mesh][indices[i+2]].Position
		s := intersectTriangle(ray, p1, p3, p2)
		if s > 0 && s < best {
			best = s
			normal = p1.Sub(p2).Cross(p1.Sub(p3))
		}
	}
	if math32.IsInf(best, 1) {
		return vertex, false
	}
	vertex.Position = target.Add(dir.Mul(best))
	if normal.Len() > 0 {
		vertex.Normal = normal.Normalize()
	}
	return vertex, true
}

// aspect returns the texture aspect ratio of the stem's outer material.
func (m *Mesh) aspect(stem *Stem) float32 {
	if stem.OuterMaterial == 0 {
		return 1
	}
	mat, err := m.plant.Material(stem.OuterMaterial)
	if err != nil {
		return 1
	}
	return mat.aspect()
}

// textureLength returns the V-coordinate increment of the segment arriving
// at section, scaled so tiling matches the circumference at the previous
// ring.
func (m *Mesh) textureLength(stem *Stem, section int) float32 {
	if section <= 0 {
		return 0
	}
	length := stem.Path.SegmentLength(section)
	radius := m.plant.Radius(stem, section-1)
	if radius <= 0 {
		return 0
	}
	return (length * m.aspect(stem)) / (radius * 2 * math32.Pi)
}
