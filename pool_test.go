package arbor

import "testing"

func TestPoolAllocateDistinct(t *testing.T) {
	pool := newStemPool()
	seen := make(map[*Stem]bool)
	// Span more than one slab.
	for i := 0; i < stemSlabSize*2+5; i++ {
		s := pool.allocate()
		if seen[s] {
			t.Fatalf("allocation %d returned a live address", i)
		}
		seen[s] = true
	}
	if pool.count() != stemSlabSize*2+5 {
		t.Errorf("count = %d, want %d", pool.count(), stemSlabSize*2+5)
	}
}

func TestPoolDeallocateReuse(t *testing.T) {
	pool := newStemPool()
	a := pool.allocate()
	a.SectionDivisions = 99
	pool.deallocate(a)
	if pool.count() != 0 {
		t.Errorf("count after deallocate = %d, want 0", pool.count())
	}
	b := pool.allocate()
	if b != a {
		t.Fatal("freed slot not reused")
	}
	if b.SectionDivisions != 0 {
		t.Error("reused slot not zeroed")
	}
}

func TestPoolAllocateAt(t *testing.T) {
	pool := newStemPool()
	a := pool.allocate()
	pool.deallocate(a)
	gen := pool.generation(a)
	if !pool.allocateAt(a, gen) {
		t.Fatal("allocateAt with the live generation failed")
	}
	if pool.count() != 1 {
		t.Errorf("count = %d, want 1", pool.count())
	}
}

func TestPoolAllocateAtStale(t *testing.T) {
	pool := newStemPool()
	a := pool.allocate()
	pool.deallocate(a)
	gen := pool.generation(a)

	// Reuse and free again; the recorded generation is now stale.
	if pool.allocate() != a {
		t.Fatal("expected LIFO reuse")
	}
	pool.deallocate(a)
	if pool.allocateAt(a, gen) {
		t.Error("allocateAt accepted a stale generation")
	}
}

func TestPoolAllocateAtLiveSlot(t *testing.T) {
	pool := newStemPool()
	a := pool.allocate()
	if pool.allocateAt(a, pool.generation(a)) {
		t.Error("allocateAt claimed a slot that is not free")
	}
}
