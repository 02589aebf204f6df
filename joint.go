package arbor

// Joint is a skinning joint anchored to a sample of a stem's path. Mesh
// vertices near the joint are blended toward it for animation.
type Joint struct {
	ID        int
	PathIndex int
}
