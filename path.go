package arbor

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/tanema/gween/ease"
)

// Taper selects the easing profile used to interpolate a path's radius from
// MaxRadius at the base to MinRadius at the tip.
type Taper int

// Taper profiles. Values are stable; snapshots compare them directly.
const (
	TaperLinear Taper = iota
	TaperOutQuad
	TaperOutCubic
	TaperInOutQuad
)

func (t Taper) tween() ease.TweenFunc {
	switch t {
	case TaperOutQuad:
		return ease.OutQuad
	case TaperOutCubic:
		return ease.OutCubic
	case TaperInOutQuad:
		return ease.InOutQuad
	default:
		return ease.Linear
	}
}

// Path is the curve a stem follows: a spline plus an arc-length-indexed
// radius profile. Call Generate after changing the spline or divisions;
// the sampled points and cumulative lengths are cached.
type Path struct {
	Spline    Spline
	Divisions int // intermediate samples per spline curve

	MaxRadius float32
	MinRadius float32
	Taper     Taper

	points  []mgl32.Vec3
	lengths []float32 // cumulative arc length per sample
}

// Generate samples the spline and rebuilds the arc-length table.
func (p *Path) Generate() {
	p.points = p.points[:0]
	p.lengths = p.lengths[:0]
	curves := p.Spline.Curves()
	if curves == 0 {
		return
	}
	steps := p.Divisions + 1
	for c := 0; c < curves; c++ {
		start := 0
		if c > 0 {
			start = 1 // curve boundary is shared with the previous curve
		}
		for i := start; i <= steps; i++ {
			t := float32(i) / float32(steps)
			p.points = append(p.points, p.Spline.Point(c, t))
		}
	}
	p.lengths = append(p.lengths, 0)
	for i := 1; i < len(p.points); i++ {
		d := p.points[i].Sub(p.points[i-1]).Len()
		p.lengths = append(p.lengths, p.lengths[i-1]+d)
	}
}

// Generated reports whether the path has sampled points.
func (p *Path) Generated() bool {
	return len(p.points) > 0
}

// Size returns the number of sampled points.
func (p *Path) Size() int {
	return len(p.points)
}

// Point returns the sampled point at index i, relative to the path origin.
func (p *Path) Point(i int) mgl32.Vec3 {
	return p.points[i]
}

// Points returns the sampled points. The slice is owned by the path.
func (p *Path) Points() []mgl32.Vec3 {
	return p.points
}

// Length returns the total arc length.
func (p *Path) Length() float32 {
	if len(p.lengths) == 0 {
		return 0
	}
	return p.lengths[len(p.lengths)-1]
}

// SegmentLength returns the length of the segment ending at sample i.
func (p *Path) SegmentLength(i int) float32 {
	if i <= 0 {
		return 0
	}
	return p.lengths[i] - p.lengths[i-1]
}

// Distance returns the arc length from the base to sample i.
func (p *Path) Distance(i int) float32 {
	return p.lengths[i]
}

// DistanceBetween returns the arc length between samples a and b, a <= b.
func (p *Path) DistanceBetween(a, b int) float32 {
	return p.lengths[b] - p.lengths[a]
}

// Index returns the last sample at or before the given arc length.
func (p *Path) Index(distance float32) int {
	last := 0
	for i, l := range p.lengths {
		if l > distance {
			break
		}
		last = i
	}
	return last
}

// Direction returns the unit direction of the segment arriving at sample i.
// For the first sample it is the direction of the first segment.
func (p *Path) Direction(i int) mgl32.Vec3 {
	if i == 0 {
		i = 1
	}
	if i >= len(p.points) {
		i = len(p.points) - 1
	}
	return p.points[i].Sub(p.points[i-1]).Normalize()
}

// AverageDirection returns the direction at sample i averaged over the
// segments on either side, which smooths the frame at interior corners.
func (p *Path) AverageDirection(i int) mgl32.Vec3 {
	if i <= 0 || i >= len(p.points)-1 {
		return p.Direction(i)
	}
	return p.Direction(i).Add(p.Direction(i + 1)).Normalize()
}

// Intermediate returns the interpolated point at the given arc length,
// relative to the path origin. Arc lengths past the tip return positive
// infinity on every component so callers can detect overshoot.
func (p *Path) Intermediate(distance float32) mgl32.Vec3 {
	inf := math32.Inf(1)
	if len(p.points) == 0 || distance > p.Length() {
		return mgl32.Vec3{inf, inf, inf}
	}
	if distance <= 0 {
		return p.points[0]
	}
	i := p.Index(distance)
	if i >= len(p.points)-1 {
		return p.points[len(p.points)-1]
	}
	seg := p.lengths[i+1] - p.lengths[i]
	t := float32(0)
	if seg > 0 {
		t = (distance - p.lengths[i]) / seg
	}
	return lerpVec3(p.points[i], p.points[i+1], t)
}

// IntermediateDirection returns the unit direction at the given arc length.
func (p *Path) IntermediateDirection(distance float32) mgl32.Vec3 {
	if len(p.points) < 2 {
		return mgl32.Vec3{0, 1, 0}
	}
	if distance >= p.Length() {
		return p.Direction(len(p.points) - 1)
	}
	i := p.Index(distance)
	return p.Direction(i + 1)
}

// Radius returns the interpolated radius at sample i, following the taper
// profile from MaxRadius at the base down to MinRadius at the tip.
func (p *Path) Radius(i int) float32 {
	length := p.Length()
	if length <= 0 {
		return p.MaxRadius
	}
	tween := p.Taper.tween()
	r := tween(p.lengths[i], p.MaxRadius, p.MinRadius-p.MaxRadius, length)
	if r < p.MinRadius {
		r = p.MinRadius
	}
	return r
}
