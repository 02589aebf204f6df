package arbor

import "github.com/go-gl/mathgl/mgl32"

// Skinning assigns every vertex up to two joints with blended weights.
// Joints live on stems but influence descendants too, so a stem without
// joints inherits the nearest joint from its ancestors.

// setInitialJointState decides which joint a stem starts under. Stems
// without joints of their own inherit from the parent: either the joint
// closest to their attachment point or, when the parent has no joints
// either, whatever the parent inherited.
func (m *Mesh) setInitialJointState(state, parentState *meshState) {
	stem := state.segment.Stem
	parent := stem.Parent()
	state.jointID = 0
	state.jointIndex = 0
	state.jointOffset = 0

	joints := stem.Joints()
	if len(joints) == 0 && (parent == nil || !parent.HasJoints()) {
		state.jointID = parentState.jointID
	} else if len(joints) == 0 {
		index, joint := jointAt(parent, stem.Position())
		state.jointID = joint.ID
		state.jointIndex = index
	} else {
		state.jointID = joints[0].ID
	}
}

// jointAt returns the joint governing the given distance along the stem:
// the last joint whose path index does not exceed the position's index,
// or the first joint when the position lies before all of them.
func jointAt(stem *Stem, position float32) (int, Joint) {
	index := stem.Path.Index(position)
	joints := stem.Joints()
	for i, joint := range joints {
		if joint.PathIndex > index {
			if i > 0 {
				return i - 1, joints[i-1]
			}
			return 0, joint
		}
	}
	return len(joints) - 1, joints[len(joints)-1]
}

// incrementJoint advances to the next joint when the section lands on its
// path index.
func (m *Mesh) incrementJoint(state *meshState, joints []Joint) {
	if state.jointIndex+1 < len(joints) {
		next := joints[state.jointIndex+1]
		if next.PathIndex == state.section {
			state.jointIndex++
			state.jointID = next.ID
			state.jointOffset = 0
		}
	}
}

// updateJointState advances the joint cursor to the current section and
// returns the vertex joint indices and weights. Sections before the first
// joint and the path's endpoints bind fully to a single joint; a section
// exactly on a joint splits evenly with the previous joint; everything
// else interpolates by arc-length offset from the governing joint.
func (m *Mesh) updateJointState(state *meshState) (mgl32.Vec2, mgl32.Vec2) {
	stem := state.segment.Stem
	joints := stem.Joints()
	m.incrementJoint(state, joints)
	pathIndex := joints[state.jointIndex].PathIndex

	if state.jointIndex == 0 && state.section <= pathIndex {
		id := float32(state.jointID)
		return mgl32.Vec2{id, id}, mgl32.Vec2{1, 0}
	}
	if state.section == 0 || state.section == stem.Path.Size()-1 {
		id := float32(state.jointID)
		return mgl32.Vec2{id, id}, mgl32.Vec2{1, 0}
	}
	if state.section == pathIndex {
		prevID := joints[state.jointIndex-1].ID
		joints := mgl32.Vec2{float32(state.jointID), float32(prevID)}
		return joints, mgl32.Vec2{0.5, 0.5}
	}

	p1 := stem.Path.Point(state.section)
	p2 := stem.Path.Point(state.section - 1)
	state.jointOffset += p1.Sub(p2).Len()
	return jointInfo(stem, state.jointOffset, state.jointIndex)
}

// jointInfo blends a joint with its neighbor by how far along the
// joint-to-joint interval the offset falls. The first half of the
// interval blends backward, the second half forward; the midpoint and
// the open ends of the chain bind fully.
func jointInfo(stem *Stem, jointOffset float32, jointIndex int) (mgl32.Vec2, mgl32.Vec2) {
	joints := stem.Joints()
	pathIndex := joints[jointIndex].PathIndex
	jointID := joints[jointIndex].ID

	lastJoint := jointIndex+1 >= len(joints)
	var distance float32
	if lastJoint {
		distance = stem.Path.DistanceBetween(pathIndex, stem.Path.Size()-1)
	} else {
		distance = stem.Path.DistanceBetween(pathIndex, joints[jointIndex+1].PathIndex)
	}
	ratio := float32(0)
	if distance > 0 {
		ratio = jointOffset / distance
	}

	first := ratio < 0.5 && jointIndex == 0
	last := ratio > 0.5 && lastJoint
	switch {
	case ratio == 0.5 || first || last:
		id := float32(jointID)
		return mgl32.Vec2{id, id}, mgl32.Vec2{1, 0}
	case ratio > 0.5:
		nextID := joints[jointIndex+1].ID
		ids := mgl32.Vec2{float32(jointID), float32(nextID)}
		t := ratio - 0.5
		return ids, mgl32.Vec2{1 - t, t}
	default:
		prevID := joints[jointIndex-1].ID
		ids := mgl32.Vec2{float32(jointID), float32(prevID)}
		return ids, mgl32.Vec2{0.5 + ratio, 0.5 - ratio}
	}
}
