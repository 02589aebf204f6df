package arbor

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-6

// Ray is a half-line used for volume marching and collar projection.
// Direction is not required to be unit length unless noted.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Extend grows the box to cover p. A zero box adopts p as both corners the
// first time it is extended.
func (b Box) Extend(p mgl32.Vec3) Box {
	if b == (Box{}) {
		return Box{Min: p, Max: p}
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] {
			b.Min[i] = p[i]
		}
		if p[i] > b.Max[i] {
			b.Max[i] = p[i]
		}
	}
	return b
}

// Inflate pads the box by d on every side.
func (b Box) Inflate(d float32) Box {
	pad := mgl32.Vec3{d, d, d}
	return Box{Min: b.Min.Sub(pad), Max: b.Max.Add(pad)}
}

// Center returns the midpoint of the box.
func (b Box) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the box extents along each axis.
func (b Box) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Contains reports whether p lies inside the box (inclusive).
func (b Box) Contains(p mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// rotateIntoVec returns the minimal rotation taking direction from to
// direction to. Both inputs must be unit length.
func rotateIntoVec(from, to mgl32.Vec3) mgl32.Quat {
	// QuatBetweenVectors degenerates when the vectors are anti-parallel;
	// pick any perpendicular axis and rotate half a turn.
	if from.Add(to).Len() < epsilon {
		axis := from.Cross(mgl32.Vec3{1, 0, 0})
		if axis.Len() < epsilon {
			axis = from.Cross(mgl32.Vec3{0, 0, 1})
		}
		return mgl32.QuatRotate(math32.Pi, axis.Normalize())
	}
	return mgl32.QuatBetweenVectors(from, to).Normalize()
}

// projectOntoPlane projects v onto the plane whose normal is n.
// n must be unit length.
func projectOntoPlane(v, n mgl32.Vec3) mgl32.Vec3 {
	return v.Sub(n.Mul(v.Dot(n)))
}

// intersectTriangle returns the ray parameter of the nearest intersection
// with triangle (p1, p2, p3), or 0 when the ray misses or the triangle lies
// behind the origin. The ray direction must be unit length.
func intersectTriangle(ray Ray, p1, p2, p3 mgl32.Vec3) float32 {
	e1 := p2.Sub(p1)
	e2 := p3.Sub(p1)
	h := ray.Direction.Cross(e2)
	det := e1.Dot(h)
	if math32.Abs(det) < epsilon {
		return 0
	}
	inv := 1 / det
	s := ray.Origin.Sub(p1)
	u := s.Dot(h) * inv
	if u < 0 || u > 1 {
		return 0
	}
	q := s.Cross(e1)
	v := ray.Direction.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0
	}
	t := e2.Dot(q) * inv
	if t <= epsilon {
		return 0
	}
	return t
}

// intersectBox returns the entry and exit parameters of the ray against the
// box using the slab method. When the ray misses, ok is false.
func intersectBox(ray Ray, box Box) (tmin, tmax float32, ok bool) {
	tmin = math32.Inf(-1)
	tmax = math32.Inf(1)
	for i := 0; i < 3; i++ {
		if math32.Abs(ray.Direction[i]) < epsilon {
			if ray.Origin[i] < box.Min[i] || ray.Origin[i] > box.Max[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / ray.Direction[i]
		t0 := (box.Min[i] - ray.Origin[i]) * inv
		t1 := (box.Max[i] - ray.Origin[i]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}

// isFinite reports whether every component of v is a real value.
func isFinite(v mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math32.IsNaN(v[i]) || math32.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

// lerpVec3 linearly interpolates between a and b.
func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
