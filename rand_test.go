package arbor

import "testing"

func TestRandStateDeterministic(t *testing.T) {
	a := newRandState(42)
	b := newRandState(42)
	for i := 0; i < 100; i++ {
		if a.next() != b.next() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestRandStateSpawnIndependent(t *testing.T) {
	parent := newRandState(7)
	c1 := parent.spawn()
	c2 := parent.spawn()
	if c1.state == c2.state {
		t.Fatal("consecutive spawns share a state")
	}
	same := 0
	for i := 0; i < 64; i++ {
		if c1.next() == c2.next() {
			same++
		}
	}
	if same > 0 {
		t.Errorf("%d of 64 draws collided between spawned streams", same)
	}
}

func TestRandStateFloat32Range(t *testing.T) {
	r := newRandState(1)
	for i := 0; i < 1000; i++ {
		v := r.float32()
		if v < 0 || v >= 1 {
			t.Fatalf("float32 out of range: %v", v)
		}
	}
}

func TestRandStateRangeFloat32(t *testing.T) {
	r := newRandState(1)
	for i := 0; i < 1000; i++ {
		v := r.rangeFloat32(-2, 3)
		if v < -2 || v >= 3 {
			t.Fatalf("rangeFloat32 out of range: %v", v)
		}
	}
}

func TestRandStateIntn(t *testing.T) {
	r := newRandState(1)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := r.intn(5)
		if v < 0 || v >= 5 {
			t.Fatalf("intn out of range: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 5 {
		t.Errorf("intn covered %d of 5 values", len(seen))
	}
}
