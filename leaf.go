package arbor

import (
	"github.com/go-gl/mathgl/mgl32"
)

// LeafAtTip is the sentinel position for a leaf attached at the very tip of
// its stem rather than at an arc-length offset.
const LeafAtTip = float32(-1)

// leafIDCounter is a plain counter; arbor is single-threaded.
var leafIDCounter int

func nextLeafID() int {
	leafIDCounter++
	return leafIDCounter
}

// Leaf is a foliage element attached to a stem. Its world placement is
// derived from the owning stem's path at Position, then adjusted by
// Rotation and Scale. Mesh selects the leaf template geometry by MeshID
// (0 means the built-in plane) and the buffer by Material.
type Leaf struct {
	id int

	// Position is the arc length along the owning stem's path, or
	// LeafAtTip to pin the leaf to the stem tip.
	Position float32
	// Rotation is applied on top of the direction-derived default
	// orientation from DefaultOrientation.
	Rotation mgl32.Quat
	// Scale is the non-uniform scale of the leaf template.
	Scale mgl32.Vec3
	// Material selects the destination buffer; 0 is the default buffer.
	Material int
	// MeshID selects the leaf template geometry; 0 is the built-in plane.
	MeshID int
}

// NewLeaf returns a leaf with a fresh id, attached at the tip, unit scale,
// and identity rotation.
func NewLeaf() Leaf {
	return Leaf{
		id:       nextLeafID(),
		Position: LeafAtTip,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// ID returns the leaf's stable identifier.
func (l *Leaf) ID() int {
	return l.id
}

// DefaultOrientation returns the orientation a leaf assumes from the
// direction of its stem at the attachment point, before Rotation is
// applied: the blade faces sideways from the stem and its top surface is
// turned upward.
func DefaultOrientation(stemDirection mgl32.Vec3) mgl32.Quat {
	normal := mgl32.Vec3{0, 1, 0}
	d := mgl32.Vec3{0, 0, 1}
	side := stemDirection.Cross(normal)
	if side.Len() < epsilon {
		// Vertical stem: any sideways direction works.
		side = mgl32.Vec3{1, 0, 0}
	}
	side = side.Normalize()
	q := rotateIntoVec(d, side)

	up := mgl32.Vec3{0, -1, 0}
	d = up.Cross(stemDirection)
	d = d.Cross(stemDirection)
	if d.Len() < epsilon {
		return q
	}
	d = d.Normalize()
	k := rotateIntoVec(normal, d)
	return k.Mul(q)
}
