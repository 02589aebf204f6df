package arbor

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const tolerance = 1e-4

func assertNear(t *testing.T, name string, got, want float32) {
	t.Helper()
	if math32.Abs(got-want) > tolerance {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertVec3(t *testing.T, name string, got, want mgl32.Vec3) {
	t.Helper()
	for i := range got {
		if math32.Abs(got[i]-want[i]) > tolerance {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}

// --- rotateIntoVec ---

func TestRotateIntoVec(t *testing.T) {
	from := mgl32.Vec3{0, 1, 0}
	to := mgl32.Vec3{1, 0, 0}
	q := rotateIntoVec(from, to)
	assertVec3(t, "rotated", q.Rotate(from), to)
}

func TestRotateIntoVecParallel(t *testing.T) {
	v := mgl32.Vec3{0, 0, 1}
	q := rotateIntoVec(v, v)
	assertVec3(t, "identity", q.Rotate(v), v)
}

func TestRotateIntoVecAntiparallel(t *testing.T) {
	from := mgl32.Vec3{0, 1, 0}
	to := mgl32.Vec3{0, -1, 0}
	q := rotateIntoVec(from, to)
	assertVec3(t, "flipped", q.Rotate(from), to)
}

// --- projectOntoPlane ---

func TestProjectOntoPlane(t *testing.T) {
	v := mgl32.Vec3{1, 1, 0}
	n := mgl32.Vec3{0, 1, 0}
	assertVec3(t, "projected", projectOntoPlane(v, n), mgl32.Vec3{1, 0, 0})
}

// --- intersectTriangle ---

func TestIntersectTriangleHit(t *testing.T) {
	ray := Ray{Origin: mgl32.Vec3{0.25, 0.25, -1}, Direction: mgl32.Vec3{0, 0, 1}}
	got := intersectTriangle(ray,
		mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	assertNear(t, "t", got, 1)
}

func TestIntersectTriangleMiss(t *testing.T) {
	ray := Ray{Origin: mgl32.Vec3{2, 2, -1}, Direction: mgl32.Vec3{0, 0, 1}}
	got := intersectTriangle(ray,
		mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	if got != 0 {
		t.Errorf("miss returned t = %v, want 0", got)
	}
}

func TestIntersectTriangleBehind(t *testing.T) {
	ray := Ray{Origin: mgl32.Vec3{0.25, 0.25, 1}, Direction: mgl32.Vec3{0, 0, 1}}
	got := intersectTriangle(ray,
		mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	if got != 0 {
		t.Errorf("triangle behind origin returned t = %v, want 0", got)
	}
}

// --- intersectBox ---

func TestIntersectBox(t *testing.T) {
	box := Box{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	ray := Ray{Origin: mgl32.Vec3{-1, 0.5, 0.5}, Direction: mgl32.Vec3{1, 0, 0}}
	tmin, tmax, ok := intersectBox(ray, box)
	if !ok {
		t.Fatal("expected hit")
	}
	assertNear(t, "tmin", tmin, 1)
	assertNear(t, "tmax", tmax, 2)
}

func TestIntersectBoxMiss(t *testing.T) {
	box := Box{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	ray := Ray{Origin: mgl32.Vec3{-1, 2, 0.5}, Direction: mgl32.Vec3{1, 0, 0}}
	if _, _, ok := intersectBox(ray, box); ok {
		t.Error("expected miss")
	}
}

// --- Box ---

func TestBoxExtendFromZero(t *testing.T) {
	var b Box
	b = b.Extend(mgl32.Vec3{1, 2, 3})
	assertVec3(t, "min", b.Min, mgl32.Vec3{1, 2, 3})
	assertVec3(t, "max", b.Max, mgl32.Vec3{1, 2, 3})
	b = b.Extend(mgl32.Vec3{-1, 0, 4})
	assertVec3(t, "min", b.Min, mgl32.Vec3{-1, 0, 3})
	assertVec3(t, "max", b.Max, mgl32.Vec3{1, 2, 4})
}

func TestBoxContains(t *testing.T) {
	b := Box{Min: mgl32.Vec3{0, 0, 0}, Max: mgl32.Vec3{1, 1, 1}}
	if !b.Contains(mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Error("expected center to be contained")
	}
	if b.Contains(mgl32.Vec3{1.5, 0.5, 0.5}) {
		t.Error("expected outside point to be rejected")
	}
}

// --- isFinite ---

func TestIsFinite(t *testing.T) {
	if !isFinite(mgl32.Vec3{1, 2, 3}) {
		t.Error("finite vector reported non-finite")
	}
	inf := math32.Inf(1)
	if isFinite(mgl32.Vec3{inf, inf, inf}) {
		t.Error("infinite vector reported finite")
	}
	if isFinite(mgl32.Vec3{0, math32.NaN(), 0}) {
		t.Error("NaN vector reported finite")
	}
}
