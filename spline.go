package arbor

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Spline is a piecewise parametric curve over a control polygon. Degree 1
// connects controls with straight lines; degree 3 interprets each run of
// four controls as a cubic Bézier segment sharing endpoints with the next.
type Spline struct {
	Controls []mgl32.Vec3
	Degree   int
}

// Curves returns the number of curve segments described by the controls.
func (s *Spline) Curves() int {
	if len(s.Controls) < 2 {
		return 0
	}
	switch s.Degree {
	case 3:
		return (len(s.Controls) - 1) / 3
	default:
		return len(s.Controls) - 1
	}
}

// AddControl appends a control point.
func (s *Spline) AddControl(p mgl32.Vec3) {
	s.Controls = append(s.Controls, p)
}

// Clear removes all control points, keeping the degree.
func (s *Spline) Clear() {
	s.Controls = s.Controls[:0]
}

// Point evaluates the given curve segment at parameter t in [0, 1].
func (s *Spline) Point(curve int, t float32) mgl32.Vec3 {
	if s.Degree == 3 {
		c := s.Controls[curve*3 : curve*3+4]
		return cubicPoint(c[0], c[1], c[2], c[3], t)
	}
	return lerpVec3(s.Controls[curve], s.Controls[curve+1], t)
}

// cubicPoint evaluates a cubic Bézier by de Casteljau reduction, which is
// numerically steadier than the expanded polynomial near t = 0 and t = 1.
func cubicPoint(p0, p1, p2, p3 mgl32.Vec3, t float32) mgl32.Vec3 {
	a := lerpVec3(p0, p1, t)
	b := lerpVec3(p1, p2, t)
	c := lerpVec3(p2, p3, t)
	d := lerpVec3(a, b, t)
	e := lerpVec3(b, c, t)
	return lerpVec3(d, e, t)
}
