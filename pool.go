package arbor

// stemSlabSize is the number of stems per slab. Slabs are never moved or
// freed, which is what keeps *Stem addresses stable for the lifetime of
// the plant.
const stemSlabSize = 64

type stemSlab struct {
	stems [stemSlabSize]Stem
}

// stemPool hands out stable *Stem addresses from slab-backed storage.
// Freed slots go on a free list for reuse; a per-address generation
// counter detects handles that went stale because their slot was reused
// by an unrelated allocation.
type stemPool struct {
	slabs       []*stemSlab
	free        []*Stem
	generations map[*Stem]uint32
	allocated   int
}

func newStemPool() stemPool {
	return stemPool{generations: make(map[*Stem]uint32)}
}

// allocate returns a zeroed stem at a stable address.
func (p *stemPool) allocate() *Stem {
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		p.allocated++
		return s
	}
	slab := &stemSlab{}
	p.slabs = append(p.slabs, slab)
	for i := stemSlabSize - 1; i >= 1; i-- {
		p.free = append(p.free, &slab.stems[i])
	}
	p.allocated++
	return &slab.stems[0]
}

// allocateAt claims the specific freed slot at addr, as recorded by an
// extraction. It fails when the slot has been reused since (the recorded
// generation no longer matches) or when addr is not a freed slot of this
// pool.
func (p *stemPool) allocateAt(addr *Stem, generation uint32) bool {
	if p.generations[addr] != generation {
		return false
	}
	for i, s := range p.free {
		if s == addr {
			p.free = append(p.free[:i], p.free[i+1:]...)
			p.allocated++
			return true
		}
	}
	return false
}

// deallocate zeroes the slot, bumps its generation, and returns it to the
// free list.
func (p *stemPool) deallocate(s *Stem) {
	*s = Stem{}
	p.generations[s]++
	p.free = append(p.free, s)
	p.allocated--
}

// generation returns the current generation of the slot at addr.
func (p *stemPool) generation(addr *Stem) uint32 {
	return p.generations[addr]
}

// count returns the number of live stems.
func (p *stemPool) count() int {
	return p.allocated
}
