package arbor

// randState is the deterministic pseudo-random stream threaded through
// growth. It is a plain value so that extraction snapshots and reinsertion
// restore the exact stream position; a child stem's state is derived from
// its parent's stream, which makes every subtree reproducible regardless of
// traversal order.
//
// The core is splitmix64, which is small, fast, and passes the statistical
// tests that matter at this scale. The stdlib generators hide their state
// behind pointers and cannot be snapshotted by value, which is why growth
// does not use math/rand.
type randState struct {
	state uint64
}

// newRandState returns a stream seeded with seed.
func newRandState(seed uint64) randState {
	return randState{state: seed}
}

// next advances the stream and returns the next 64 random bits.
func (r *randState) next() uint64 {
	r.state += 0x9E3779B97F4A7C15
	z := r.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// spawn derives a new independent stream from this one, advancing it.
func (r *randState) spawn() randState {
	return randState{state: r.next()}
}

// float32 returns a uniform value in [0, 1).
func (r *randState) float32() float32 {
	return float32(r.next()>>40) / (1 << 24)
}

// rangeFloat32 returns a uniform value in [lo, hi).
func (r *randState) rangeFloat32(lo, hi float32) float32 {
	return lo + (hi-lo)*r.float32()
}

// intn returns a uniform value in [0, n). n must be positive.
func (r *randState) intn(n int) int {
	return int(r.next() % uint64(n))
}
