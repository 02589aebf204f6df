package arbor

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Segment is the sub-range of one buffer holding the geometry of a single
// stem or leaf, used for picking and highlighting. After Generate, start
// offsets refer to the combined buffers returned by Vertices and Indices.
type Segment struct {
	Stem      *Stem
	LeafIndex int

	Mesh        int
	VertexStart int
	VertexCount int
	IndexStart  int
	IndexCount  int
}

// LeafID identifies one leaf: the owning stem plus the leaf's index on it.
type LeafID struct {
	Stem  *Stem
	Index int
}

// meshState carries the per-stem synthesis cursor: the destination buffer,
// the current path sample, UV accumulation, the parallel-transport frame,
// and the skinning joint cursor.
type meshState struct {
	segment       Segment
	mesh          int
	section       int
	texOffset     float32
	prevIndex     int
	prevRotation  mgl32.Quat
	prevDirection mgl32.Vec3

	jointID     int
	jointIndex  int
	jointOffset float32
}

// Mesh synthesizes triangle geometry from a plant's stem graph. Buffers
// are grouped by material so the renderer can issue one draw call per
// material; Generate always starts from empty buffers and its output is a
// pure function of the plant's state.
type Mesh struct {
	plant *Plant

	crossSection crossSection

	materialIDs []int       // buffer index -> material id, ascending
	buffers     map[int]int // material id -> buffer index

	vertices     [][]Vertex
	indices      [][]uint32
	stemSegments []map[*Stem]Segment
	leafSegments []map[LeafID]Segment
}

// NewMesh returns a synthesizer bound to plant.
func NewMesh(plant *Plant) *Mesh {
	return &Mesh{plant: plant}
}

// Generate rebuilds all buffers from the current stem graph. It fails only
// on caller contract violations: a stem or leaf referencing an
// unregistered material or leaf template.
func (m *Mesh) Generate() error {
	m.initBuffers()
	root := m.plant.Root()
	if root == nil {
		return nil
	}
	var state meshState
	if err := m.addStem(root, &state); err != nil {
		return err
	}
	m.updateSegments()
	return nil
}

// initBuffers allocates one empty vertex/index buffer per registered
// material, ordered by material id with the default buffer first.
func (m *Mesh) initBuffers() {
	m.materialIDs = m.materialIDs[:0]
	for id := range m.plant.Materials() {
		m.materialIDs = append(m.materialIDs, id)
	}
	sort.Ints(m.materialIDs)
	if len(m.materialIDs) == 0 || m.materialIDs[0] != 0 {
		m.materialIDs = append([]int{0}, m.materialIDs...)
	}

	n := len(m.materialIDs)
	m.buffers = make(map[int]int, n)
	m.vertices = make([][]Vertex, n)
	m.indices = make([][]uint32, n)
	m.stemSegments = make([]map[*Stem]Segment, n)
	m.leafSegments = make([]map[LeafID]Segment, n)
	for i, id := range m.materialIDs {
		m.buffers[id] = i
		m.stemSegments[i] = make(map[*Stem]Segment)
		m.leafSegments[i] = make(map[LeafID]Segment)
	}
}

// selectBuffer maps a material id to its buffer index. Unregistered
// non-zero ids are caller contract violations.
func (m *Mesh) selectBuffer(material int) (int, error) {
	if i, ok := m.buffers[material]; ok {
		return i, nil
	}
	_, err := m.plant.Material(material)
	return 0, err
}

// addStem emits the stem's surface, caps, and leaves, then recurses over
// its children. A stem with a non-finite location is excluded from the
// mesh, but each child still decides on its own location, so a hidden
// parent does not hide a valid child.
func (m *Mesh) addStem(stem *Stem, parentState *meshState) error {
	state := meshState{}
	if isFinite(stem.Location()) {
		mesh, err := m.selectBuffer(stem.OuterMaterial)
		if err != nil {
			return err
		}
		state.mesh = mesh
		state.segment.Stem = stem
		state.segment.Mesh = mesh
		state.segment.VertexStart = len(m.vertices[mesh])
		state.segment.IndexStart = len(m.indices[mesh])
		m.setInitialJointState(&state, parentState)
		if err := m.addSections(&state); err != nil {
			return err
		}
		state.segment.VertexCount = len(m.vertices[mesh]) - state.segment.VertexStart
		state.segment.IndexCount = len(m.indices[mesh]) - state.segment.IndexStart
		m.stemSegments[mesh][stem] = state.segment

		if err := m.addLeaves(stem, &state); err != nil {
			return err
		}
	} else {
		// Hidden stems still forward the ancestor joint context so their
		// visible descendants skin correctly.
		state.segment.Stem = stem
		state.jointID = parentState.jointID
	}

	for child := stem.Child(); child != nil; child = child.Sibling() {
		if err := m.addStem(child, &state); err != nil {
			return err
		}
	}
	return nil
}

// addSections walks the stem's path emitting one ring per sample,
// starting with the branch collar when the stem has one, and finally caps
// a closed tip.
func (m *Mesh) addSections(state *meshState) error {
	stem := state.segment.Stem
	m.setInitialRotation(state)
	if stem.SectionDivisions != m.crossSection.resolution {
		m.crossSection.generate(stem.SectionDivisions)
	}

	state.texOffset = 0
	state.prevIndex = len(m.vertices[state.mesh])
	section, err := m.createBranchCollar(state)
	if err != nil {
		return err
	}
	state.section = section
	sections := stem.Path.Size()

	if state.section > 0 && state.section < sections {
		i := len(m.vertices[state.mesh])
		m.addTriangleRing(state.prevIndex, i, stem.SectionDivisions, state.mesh)
	}

	for ; state.section < sections; state.section++ {
		rotation := m.rotateSection(state)
		state.prevIndex = len(m.vertices[state.mesh])
		m.addSection(state, rotation)

		if state.section+1 < sections {
			i := len(m.vertices[state.mesh])
			m.addTriangleRing(state.prevIndex, i, stem.SectionDivisions, state.mesh)
		}
	}

	if stem.MinRadius() > 0 {
		return m.capStem(stem, state.mesh, state.prevIndex)
	}
	return nil
}

// setInitialRotation orients the first cross section. A child stem's ring
// is first rotated from the canonical up axis into the stem's initial
// direction, then rolled so its sideways axis lines up with the parent's
// local direction projected onto the section plane; without the roll
// correction branches spin arbitrarily around their own axis.
func (m *Mesh) setInitialRotation(state *meshState) {
	stem := state.segment.Stem
	parent := stem.Parent()
	if parent == nil || stem.Path.Size() == 0 {
		state.prevRotation = mgl32.QuatIdent()
		state.prevDirection = mgl32.Vec3{0, 1, 0}
		return
	}
	parentDirection := parent.Path.IntermediateDirection(stem.Position())
	stemDirection := stem.Path.Direction(0)
	up := mgl32.Vec3{0, 1, 0}
	state.prevRotation = rotateIntoVec(up, stemDirection)
	state.prevDirection = stemDirection

	sideways := state.prevRotation.Rotate(mgl32.Vec3{1, 0, 0}).Normalize()
	target := projectOntoPlane(parentDirection, stemDirection)
	if target.Len() < epsilon {
		return
	}
	target = target.Normalize()
	state.prevRotation = rotateIntoVec(sideways, target).Mul(state.prevRotation)
}

// rotateSection advances the frame to the current section by the minimal
// rotation between the previous and current path directions. Propagating
// frames this way avoids the twisting that orienting every ring against a
// global axis produces.
func (m *Mesh) rotateSection(state *meshState) mgl32.Quat {
	stem := state.segment.Stem
	direction := stem.Path.AverageDirection(state.section)
	rotation := rotateIntoVec(state.prevDirection, direction).Mul(state.prevRotation)
	state.prevRotation = rotation
	state.prevDirection = direction
	return rotation
}

// addSection emits one ring of vertices for the current path sample.
// Rings are connected by addTriangleRing at a later point.
func (m *Mesh) addSection(state *meshState, rotation mgl32.Quat) {
	stem := state.segment.Stem

	texV := m.textureLength(stem, state.section) + state.texOffset
	state.texOffset = texV

	location := stem.Location().Add(stem.Path.Point(state.section))

	var joints, weights mgl32.Vec2
	if stem.HasJoints() {
		joints, weights = m.updateJointState(state)
	} else {
		joints = mgl32.Vec2{float32(state.jointID), float32(state.jointID)}
		weights = mgl32.Vec2{1, 0}
	}

	radius := m.plant.Radius(stem, state.section)
	for _, template := range m.crossSection.vertices {
		var v Vertex
		v.Position = rotation.Rotate(template.Position.Mul(radius)).Add(location)
		v.Normal = rotation.Rotate(template.Normal).Normalize()
		v.UV = mgl32.Vec2{template.UV[0], texV}
		v.Weights = weights
		v.Joints = joints
		m.vertices[state.mesh] = append(m.vertices[state.mesh], v)
	}
}

// branchCollarSize returns the number of vertices reserved for the
// collar's intermediate rings.
func branchCollarSize(stem *Stem) int {
	return (stem.SectionDivisions + 1) * stem.CollarDivisions
}

// createBranchCollar emits the collar when the stem has one: the scaled
// first ring, reserved space for the intermediate rings, and the first
// ordinary ring after the collar. It returns the next path section to
// emit, or 0 when the stem has no collar or the collar was abandoned.
func (m *Mesh) createBranchCollar(state *meshState) (int, error) {
	stem := state.segment.Stem
	if stem.Parent() == nil || stem.Swelling[0] < 1 || stem.Swelling[1] < 1 {
		return 0, nil
	}
	if stem.Path.Size() <= stem.Path.Divisions+1 {
		return 0, nil
	}

	// Snapshot so an abandoned collar leaves no trace in the state.
	saved := *state

	state.section = 0
	state.prevIndex = len(m.vertices[state.mesh])
	m.addSection(state, m.rotateSection(state))

	collarStart := len(m.vertices[state.mesh])
	m.reserveBranchCollarSpace(stem, state.mesh)

	state.texOffset = 0
	state.section = stem.Path.Divisions + 1
	state.prevIndex = len(m.vertices[state.mesh])
	m.addSection(state, m.rotateSection(state))

	parentSegment, _ := m.findStemLocal(stem.Parent())
	section, err := m.connectCollar(state, parentSegment, collarStart)
	if err != nil {
		return 0, err
	}
	if section == 0 {
		// Projection miss: buffers were rolled back; restart cleanly.
		*state = saved
	}
	return section, nil
}

// reserveBranchCollarSpace appends zeroed vertices for the collar's
// intermediate rings. Rings are normally emitted one at a time; the
// collar interpolates many at once, and reserving up front keeps every
// vertex offset fixed while the rings are backfilled.
func (m *Mesh) reserveBranchCollarSpace(stem *Stem, mesh int) {
	m.vertices[mesh] = append(m.vertices[mesh], make([]Vertex, branchCollarSize(stem))...)
}

// connectCollar projects the collar's boundary rings onto the parent's
// surface, fits a cubic through each vertex pair, and backfills the
// reserved rings. On a projection miss the buffers are rolled back to the
// pre-collar state and 0 is returned.
func (m *Mesh) connectCollar(state *meshState, parent Segment, collarStart int) (int, error) {
	child := state.segment
	stem := child.Stem
	mesh1 := state.mesh
	mesh2 := mesh1
	if parent.Stem != nil {
		var err error
		mesh2, err = m.selectBuffer(parent.Stem.OuterMaterial)
		if err != nil {
			return 0, err
		}
	}
	sectionDivisions := stem.SectionDivisions
	collarDivisions := stem.CollarDivisions
	collarSize := branchCollarSize(stem)
	scale := branchCollarScale(stem, stem.Parent())

	// Tangent continuation for cubic child paths: the collar's fitted
	// curve leaves the surface along the same tangent the path arrives
	// with.
	var direction mgl32.Vec3
	degree := stem.Path.Spline.Degree
	if degree == 3 && len(stem.Path.Spline.Controls) >= 4 {
		controls := stem.Path.Spline.Controls
		direction = controls[3].Sub(controls[2])
	}

	rollback := func() {
		m.vertices[mesh1] = m.vertices[mesh1][:child.VertexStart]
		m.indices[mesh1] = m.indices[mesh1][:child.IndexStart]
	}

	location := stem.Location()
	for i := 0; i <= sectionDivisions; i++ {
		index := child.VertexStart + i
		nextIndex := index + collarSize + sectionDivisions + 1

		initPoint := m.vertices[mesh1][index]
		target := m.vertices[mesh1][nextIndex].Position

		scaledPoint := initPoint
		p := initPoint.Position.Sub(location)
		scaledPoint.Position = scale.Mul4x1(p.Vec4(1)).Vec3().Add(location)
		scaledPoint, ok := m.moveToSurface(scaledPoint, target, parent, mesh2)
		if !ok {
			rollback()
			return 0, nil
		}
		scaledPoint.Weights = initPoint.Weights
		scaledPoint.Joints = initPoint.Joints
		m.vertices[mesh1][index] = scaledPoint

		surfacePoint, ok := m.moveToSurface(initPoint, target, parent, mesh2)
		if !ok {
			rollback()
			return 0, nil
		}

		var spline Spline
		spline.Degree = 3
		spline.AddControl(scaledPoint.Position)
		spline.AddControl(surfacePoint.Position)
		if degree == 3 {
			spline.AddControl(target.Sub(direction))
		} else {
			spline.AddControl(target)
		}
		spline.AddControl(target)

		delta := 1 / float32(collarDivisions+1)
		t := delta
		for j := 0; j < collarDivisions; j++ {
			var v Vertex
			v.Position = spline.Point(0, t)
			v.Joints = scaledPoint.Joints
			v.Weights = scaledPoint.Weights
			offset := collarStart + i + (sectionDivisions+1)*j
			m.vertices[mesh1][offset] = v
			t += delta
		}
	}

	index1 := child.VertexStart
	index2 := child.VertexStart + sectionDivisions + 1
	for i := 0; i <= collarDivisions; i++ {
		m.addTriangleRing(index1, index2, sectionDivisions, mesh1)
		index1 = index2
		index2 += sectionDivisions + 1
	}

	m.setBranchCollarNormals(child.VertexStart, collarStart+collarSize,
		mesh1, sectionDivisions, collarDivisions)
	m.setBranchCollarUVs(collarStart+collarSize, stem,
		mesh1, sectionDivisions, collarDivisions)

	return stem.Path.Divisions + 2, nil
}

// setBranchCollarNormals interpolates normals across the reserved rings
// between the stem's first ring and the first ring after the collar.
func (m *Mesh) setBranchCollarNormals(index1, index2, mesh, resolution, divisions int) {
	for i := 0; i <= resolution; i++ {
		normal1 := m.vertices[mesh][index1].Normal
		normal2 := m.vertices[mesh][index2].Normal
		for j := 1; j <= divisions; j++ {
			t := float32(j) / float32(divisions)
			normal := lerpVec3(normal1, normal2, t)
			if normal.Len() > epsilon {
				normal = normal.Normalize()
			}
			offset := j * (resolution + 1)
			m.vertices[mesh][index1+offset].Normal = normal
		}
		index1++
		index2++
	}
}

// setBranchCollarUVs regenerates the collar's V coordinates backward from
// the post-collar ring: the fitted curve's true length is only known
// after sampling, so forward accumulation would not line up with the rest
// of the stem's tiling.
func (m *Mesh) setBranchCollarUVs(lastIndex int, stem *Stem, mesh, resolution, divisions int) {
	size := resolution + 1
	radius := m.plant.Radius(stem, 1)
	aspect := m.aspect(stem)
	for i := 0; i <= resolution; i++ {
		uv := m.vertices[mesh][lastIndex+i].UV
		index := lastIndex + i
		for j := divisions; j >= 0; j-- {
			p1 := m.vertices[mesh][index].Position
			index -= size
			p2 := m.vertices[mesh][index].Position
			length := p2.Sub(p1).Len()
			if radius > 0 {
				uv[1] -= (length * aspect) / (radius * 2 * math32.Pi)
			}
			m.vertices[mesh][index].UV = uv
		}
	}
}

// capStem closes the tip by fanning the last ring into the stem's
// inner-material buffer with a circular planar UV mapping.
func (m *Mesh) capStem(stem *Stem, stemMesh, section int) error {
	mesh, err := m.selectBuffer(stem.InnerMaterial)
	if err != nil {
		return err
	}
	divisions := stem.SectionDivisions
	start := len(m.vertices[mesh])

	angle := float32(0)
	rotation := 2 * math32.Pi / float32(divisions)
	for i := 0; i <= divisions; i++ {
		vertex := m.vertices[stemMesh][section+i]
		vertex.UV = mgl32.Vec2{
			math32.Cos(angle)*0.5 + 0.5,
			math32.Sin(angle)*0.5 + 0.5,
		}
		m.vertices[mesh] = append(m.vertices[mesh], vertex)
		angle += rotation
	}

	index := 0
	for ; index < divisions/2-1; index++ {
		m.addTriangle(mesh,
			uint32(start+index),
			uint32(start+divisions-index-1),
			uint32(start+index+1))
		m.addTriangle(mesh,
			uint32(start+index+1),
			uint32(start+divisions-index-1),
			uint32(start+divisions-index-2))
	}
	if divisions%2 != 0 {
		last := start + index
		m.addTriangle(mesh, uint32(last), uint32(last+2), uint32(last+1))
	}
	return nil
}

// addLeaves emits every leaf attached to the stem.
func (m *Mesh) addLeaves(stem *Stem, state *meshState) error {
	for i := 0; i < stem.LeafCount(); i++ {
		if err := m.addLeaf(stem, i, state); err != nil {
			return err
		}
	}
	return nil
}

// addLeaf instantiates one leaf template into the buffer chosen by the
// leaf's material, recording its segment.
func (m *Mesh) addLeaf(stem *Stem, leafIndex int, state *meshState) error {
	leaf := stem.Leaf(leafIndex)
	mesh, err := m.selectBuffer(leaf.Material)
	if err != nil {
		return err
	}
	segment := Segment{
		Stem:        stem,
		LeafIndex:   leafIndex,
		Mesh:        mesh,
		VertexStart: len(m.vertices[mesh]),
		IndexStart:  len(m.indices[mesh]),
	}

	var joints, weights mgl32.Vec2
	if stem.HasJoints() {
		position := leaf.Position
		if position < 0 {
			position = stem.Path.Length()
		}
		index, joint := jointAt(stem, position)
		offset := position - stem.Path.Distance(joint.PathIndex)
		joints, weights = jointInfo(stem, offset, index)
	} else {
		joints = mgl32.Vec2{float32(state.jointID), float32(state.jointID)}
		weights = mgl32.Vec2{1, 0}
	}

	geom, err := m.transformLeaf(leaf, stem)
	if err != nil {
		return err
	}
	base := uint32(len(m.vertices[mesh]))
	for _, v := range geom.Vertices() {
		v.Joints = joints
		v.Weights = weights
		m.vertices[mesh] = append(m.vertices[mesh], v)
	}
	for _, i := range geom.Indices() {
		m.indices[mesh] = append(m.indices[mesh], i+base)
	}

	segment.VertexCount = len(m.vertices[mesh]) - segment.VertexStart
	segment.IndexCount = len(m.indices[mesh]) - segment.IndexStart
	m.leafSegments[mesh][LeafID{Stem: stem, Index: leafIndex}] = segment
	return nil
}

// transformLeaf resolves the leaf's placement on its stem and bakes the
// full transform into a copy of its template geometry.
func (m *Mesh) transformLeaf(leaf *Leaf, stem *Stem) (Geometry, error) {
	location := stem.Location()
	var direction mgl32.Vec3
	if leaf.Position >= 0 && leaf.Position < stem.Path.Length() {
		direction = stem.Path.IntermediateDirection(leaf.Position)
		location = location.Add(stem.Path.Intermediate(leaf.Position))
	} else {
		direction = stem.Path.Direction(stem.Path.Size() - 1)
		location = location.Add(stem.Path.Point(stem.Path.Size() - 1))
	}

	geom, err := m.plant.LeafMesh(leaf.MeshID)
	if err != nil {
		return Geometry{}, err
	}
	rotation := DefaultOrientation(direction).Mul(leaf.Rotation)
	geom.Transform(rotation, leaf.Scale, location)
	return geom, nil
}

// updateSegments merges the per-material buffers into one logical pair of
// buffers: indices and segment offsets in every buffer after the first
// are shifted by the cumulative sizes of the buffers before it. Synthesis
// itself stays append-only with local offsets; only this post-pass knows
// about the combined layout.
func (m *Mesh) updateSegments() {
	if len(m.indices) == 0 {
		return
	}
	vsize := uint32(len(m.vertices[0]))
	isize := len(m.indices[0])
	for mesh := 1; mesh < len(m.indices); mesh++ {
		for i := range m.indices[mesh] {
			m.indices[mesh][i] += vsize
		}
		for stem, segment := range m.stemSegments[mesh] {
			segment.VertexStart += int(vsize)
			segment.IndexStart += isize
			m.stemSegments[mesh][stem] = segment
		}
		for id, segment := range m.leafSegments[mesh] {
			segment.VertexStart += int(vsize)
			segment.IndexStart += isize
			m.leafSegments[mesh][id] = segment
		}
		vsize += uint32(len(m.vertices[mesh]))
		isize += len(m.indices[mesh])
	}
	if globalDebug {
		debugCheckBuffer(m.Vertices(), m.Indices())
	}
}

// MeshCount returns the number of per-material buffers.
func (m *Mesh) MeshCount() int {
	return len(m.indices)
}

// MaterialID returns the material id rendered by the given buffer.
func (m *Mesh) MaterialID(mesh int) int {
	return m.materialIDs[mesh]
}

// VertexCount returns the total number of vertices across all buffers.
func (m *Mesh) VertexCount() int {
	n := 0
	for _, v := range m.vertices {
		n += len(v)
	}
	return n
}

// IndexCount returns the total number of indices across all buffers.
func (m *Mesh) IndexCount() int {
	n := 0
	for _, i := range m.indices {
		n += len(i)
	}
	return n
}

// Vertices returns the combined vertex buffer: every per-material buffer
// concatenated in buffer order.
func (m *Mesh) Vertices() []Vertex {
	out := make([]Vertex, 0, m.VertexCount())
	for _, v := range m.vertices {
		out = append(out, v...)
	}
	return out
}

// Indices returns the combined index buffer. After Generate the indices
// already refer to the combined vertex layout.
func (m *Mesh) Indices() []uint32 {
	out := make([]uint32, 0, m.IndexCount())
	for _, i := range m.indices {
		out = append(out, i...)
	}
	return out
}

// BufferVertices returns one material's vertices. The slice is owned by
// the mesh.
func (m *Mesh) BufferVertices(mesh int) []Vertex {
	return m.vertices[mesh]
}

// BufferIndices returns one material's indices. The slice is owned by the
// mesh.
func (m *Mesh) BufferIndices(mesh int) []uint32 {
	return m.indices[mesh]
}

// LeafCount returns the number of leaf segments in the given buffer.
func (m *Mesh) LeafCount(mesh int) int {
	return len(m.leafSegments[mesh])
}

// FindStem returns the stem's buffer segment. Not finding a stem is a
// routine outcome (hidden stems have no segment), reported by the second
// return value.
func (m *Mesh) FindStem(stem *Stem) (Segment, bool) {
	for i := range m.stemSegments {
		if segment, ok := m.stemSegments[i][stem]; ok {
			return segment, true
		}
	}
	return Segment{}, false
}

// findStemLocal is FindStem before updateSegments ran: offsets are still
// local to the stem's own buffer. The collar projection depends on that.
func (m *Mesh) findStemLocal(stem *Stem) (Segment, bool) {
	return m.FindStem(stem)
}

// FindLeaf returns the leaf's buffer segment.
func (m *Mesh) FindLeaf(id LeafID) (Segment, bool) {
	for i := range m.leafSegments {
		if segment, ok := m.leafSegments[i][id]; ok {
			return segment, true
		}
	}
	return Segment{}, false
}
