package arbor

import (
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
)

// Plant owns the stem graph: pooled stem storage, the root stem, and the
// material and leaf-template registries. All structural mutation goes
// through the plant so that stem addresses stay stable and links stay
// consistent in both directions.
type Plant struct {
	pool       stemPool
	root       *Stem
	materials  map[int]Material
	leafMeshes map[int]Geometry
	bounds     Box
}

// NewPlant returns an empty plant with the default material registered.
func NewPlant() *Plant {
	p := &Plant{
		pool:       newStemPool(),
		materials:  map[int]Material{0: {ID: 0, Ratio: 1}},
		leafMeshes: make(map[int]Geometry),
	}
	return p
}

// Root returns the root stem, or nil for an empty plant.
func (p *Plant) Root() *Stem {
	return p.root
}

// StemCount returns the number of live stems.
func (p *Plant) StemCount() int {
	return p.pool.count()
}

// AddStem allocates a new stem and links it at the head of parent's child
// list, or just past the fork stems when the parent has them, so the two
// forks always stay the first two children. A nil parent replaces the
// whole tree with a fresh root.
func (p *Plant) AddStem(parent *Stem) *Stem {
	if parent == nil {
		return p.CreateRoot()
	}
	stem := p.pool.allocate()
	stem.init(parent)
	p.link(stem, parent)
	if globalDebug {
		debugCheckLinks(parent)
	}
	return stem
}

// CreateRoot deallocates any existing tree and allocates a new root. The
// root's random stream is seeded from process entropy; use
// [Generator.SetSeed] or [Stem] state snapshots for reproducible growth.
func (p *Plant) CreateRoot() *Stem {
	if p.root != nil {
		p.deallocateStems(p.root)
	}
	p.root = p.pool.allocate()
	p.root.init(nil)
	p.root.seedStream(rand.Uint64())
	return p.root
}

// AddDichotomousStems allocates the two fork stems at the head of stem's
// child list, both attached at the tip. Exactly two stems are inserted.
func (p *Plant) AddDichotomousStems(stem *Stem) (*Stem, *Stem) {
	d2 := p.AddStem(stem)
	d1 := p.AddStem(stem)
	stem.hasDichotomous = true
	d1.SetPosition(stem.Path.Length())
	d2.SetPosition(stem.Path.Length())
	d1.SectionDivisions = stem.SectionDivisions
	d2.SectionDivisions = stem.SectionDivisions
	return d1, d2
}

// RemoveDichotomousStems deletes exactly the two fork stems, leaving the
// remaining children untouched and in order.
func (p *Plant) RemoveDichotomousStems(stem *Stem) {
	if !stem.hasDichotomous {
		return
	}
	for i := 0; i < 2; i++ {
		if stem.child != nil {
			p.DeleteStem(stem.child)
		}
	}
	stem.hasDichotomous = false
}

// RemoveLateralStems deletes every non-dichotomous child subtree.
func (p *Plant) RemoveLateralStems(stem *Stem) {
	child := stem.child
	if stem.hasDichotomous {
		for i := 0; i < 2 && child != nil; i++ {
			child = child.nextSibling
		}
	}
	for child != nil {
		next := child.nextSibling
		p.DeleteStem(child)
		child = next
	}
}

// SetStemDensity removes existing laterals and redistributes them evenly
// at 1/density spacing, starting at start. The stem's random stream is
// rewound to its recorded seed first so repeated calls produce identical
// children, random streams included.
func (p *Plant) SetStemDensity(stem *Stem, density, start float32) {
	if density <= 0 {
		return
	}
	p.RemoveLateralStems(stem)
	stem.rng = newRandState(stem.seed)
	length := stem.Path.Length()
	distance := 1 / density
	for position := start; position < length; position += distance {
		lateral := p.AddStem(stem)
		lateral.SetPosition(position)
	}
}

// link inserts stem at the head of parent's child list, except under a
// parent with dichotomous forks, where the new stem goes right after the
// second fork so the forks keep the first two positions.
func (p *Plant) link(stem, parent *Stem) {
	if !parent.hasDichotomous || parent.child == nil {
		p.linkHead(stem, parent)
		return
	}
	after := parent.child
	if after.nextSibling != nil {
		after = after.nextSibling
	}
	stem.parent = parent
	stem.prevSibling = after
	stem.nextSibling = after.nextSibling
	if after.nextSibling != nil {
		after.nextSibling.prevSibling = stem
	}
	after.nextSibling = stem
}

// linkHead inserts stem at the head of parent's child list.
func (p *Plant) linkHead(stem, parent *Stem) {
	firstChild := parent.child
	parent.child = stem
	stem.parent = parent
	if firstChild != nil {
		firstChild.prevSibling = stem
	}
	stem.nextSibling = firstChild
	stem.prevSibling = nil
}

// decouple unlinks stem from its parent and siblings without deallocating.
func (p *Plant) decouple(stem *Stem) {
	if stem == p.root {
		p.root = nil
	}
	if stem.prevSibling != nil {
		stem.prevSibling.nextSibling = stem.nextSibling
	}
	if stem.nextSibling != nil {
		stem.nextSibling.prevSibling = stem.prevSibling
	}
	if stem.parent != nil && stem.parent.child == stem {
		stem.parent.child = stem.nextSibling
	}
	stem.parent = nil
	stem.prevSibling = nil
	stem.nextSibling = nil
}

func (p *Plant) deallocateStems(stem *Stem) {
	child := stem.child
	for child != nil {
		next := child.nextSibling
		p.deallocateStems(child)
		child = next
	}
	p.pool.deallocate(stem)
}

// DeleteStem decouples the stem from the tree and deallocates its whole
// subtree. Handles into the subtree become stale.
func (p *Plant) DeleteStem(stem *Stem) {
	parent := stem.parent
	p.decouple(stem)
	p.deallocateStems(stem)
	if globalDebug && parent != nil {
		debugCheckLinks(parent)
	}
}

// RemoveRoot deletes the entire tree.
func (p *Plant) RemoveRoot() {
	if p.root != nil {
		p.deallocateStems(p.root)
		p.root = nil
	}
}

// Extraction is a structural snapshot of one stem: its value state, its
// recorded address, its parent, and the slot generation at extraction
// time. Addresses inside extractions remain meaningful handles until the
// pool reuses the slot for an unrelated allocation.
type Extraction struct {
	Address    *Stem
	Parent     *Stem
	value      Stem
	generation uint32
}

// ExtractStem snapshots the stem and deletes it from the live tree. The
// snapshot can later be spliced back with ReinsertStem at the very same
// address. The stem's children are deallocated; use ExtractStems to keep
// a whole subtree.
func (p *Plant) ExtractStem(stem *Stem) Extraction {
	e := Extraction{
		Address: stem,
		Parent:  stem.parent,
		value:   stem.cloneValue(),
	}
	p.DeleteStem(stem)
	e.generation = p.pool.generation(stem)
	return e
}

// ExtractStems snapshots the whole subtree in parent-before-child order,
// then deletes it. Reinserting the returned slice in order restores the
// subtree exactly.
func (p *Plant) ExtractStems(stem *Stem) []Extraction {
	var out []Extraction
	p.snapshot(stem, &out)
	p.DeleteStem(stem)
	for i := range out {
		out[i].generation = p.pool.generation(out[i].Address)
	}
	return out
}

func (p *Plant) snapshot(stem *Stem, out *[]Extraction) {
	*out = append(*out, Extraction{
		Address: stem,
		Parent:  stem.parent,
		value:   stem.cloneValue(),
	})
	for child := stem.child; child != nil; child = child.nextSibling {
		p.snapshot(child, out)
	}
}

// ReinsertStem re-allocates the recorded address and relinks the stem
// under its recorded parent, or makes it the root when it had none.
// Callers must reinsert parents before children; reinserting under a
// parent that is not present in the tree is a contract violation. The
// return value is false when the recorded slot has been reused since
// extraction.
func (p *Plant) ReinsertStem(e Extraction) bool {
	if !p.pool.allocateAt(e.Address, e.generation) {
		if globalDebug {
			log.Printf("arbor: reinsert of stale stem handle %p ignored", e.Address)
		}
		return false
	}
	*e.Address = e.value
	e.Address.parent = nil
	e.Address.child = nil
	e.Address.nextSibling = nil
	e.Address.prevSibling = nil
	if e.Parent != nil {
		p.link(e.Address, e.Parent)
	} else if p.root == nil {
		p.root = e.Address
	}
	return true
}

// ReinsertStems reinserts extractions in order. It stops at the first
// stale handle and reports how many were restored.
func (p *Plant) ReinsertStems(extractions []Extraction) int {
	for i, e := range extractions {
		if !p.ReinsertStem(e) {
			return i
		}
	}
	return len(extractions)
}

// AddMaterial registers a material, overwriting any previous entry with
// the same id.
func (p *Plant) AddMaterial(m Material) {
	p.materials[m.ID] = m
}

// RemoveMaterial unregisters a material and resets every stem referencing
// it to the default material. Id 0 cannot be removed.
func (p *Plant) RemoveMaterial(id int) {
	if id == 0 {
		return
	}
	if p.root != nil {
		p.resetMaterial(p.root, id)
	}
	delete(p.materials, id)
}

func (p *Plant) resetMaterial(stem *Stem, id int) {
	if stem.OuterMaterial == id {
		stem.OuterMaterial = 0
	}
	if stem.InnerMaterial == id {
		stem.InnerMaterial = 0
	}
	for i := range stem.leaves {
		if stem.leaves[i].Material == id {
			stem.leaves[i].Material = 0
		}
	}
	for child := stem.child; child != nil; child = child.nextSibling {
		p.resetMaterial(child, id)
	}
}

// Material returns the registered material. Id 0 always resolves; any
// other unregistered id is a caller contract violation.
func (p *Plant) Material(id int) (Material, error) {
	if m, ok := p.materials[id]; ok {
		return m, nil
	}
	if id == 0 {
		return Material{ID: 0, Ratio: 1}, nil
	}
	return Material{}, fmt.Errorf("arbor: material %d is not registered", id)
}

// Materials returns the registered materials keyed by id. The map is owned
// by the plant.
func (p *Plant) Materials() map[int]Material {
	return p.materials
}

// AddLeafMesh registers a leaf template, overwriting by id.
func (p *Plant) AddLeafMesh(g Geometry) {
	p.leafMeshes[g.ID] = g
}

// RemoveLeafMesh unregisters a leaf template.
func (p *Plant) RemoveLeafMesh(id int) {
	delete(p.leafMeshes, id)
}

// RemoveLeafMeshes clears the leaf template registry.
func (p *Plant) RemoveLeafMeshes() {
	p.leafMeshes = make(map[int]Geometry)
}

// LeafMesh returns a copy of the registered leaf template. Id 0 always
// resolves to the built-in perpendicular planes; any other unregistered
// id is a caller contract violation.
func (p *Plant) LeafMesh(id int) (Geometry, error) {
	if g, ok := p.leafMeshes[id]; ok {
		return g.clone(), nil
	}
	if id == 0 {
		var g Geometry
		g.SetPerpendicularPlanes()
		return g, nil
	}
	return Geometry{}, fmt.Errorf("arbor: leaf mesh %d is not registered", id)
}

// Radius returns the stem's surface radius at path sample section.
func (p *Plant) Radius(stem *Stem, section int) float32 {
	return stem.Path.Radius(section)
}

// Bounds returns the plant's bounding box as maintained by growth.
func (p *Plant) Bounds() Box {
	return p.bounds
}

// ExtendBounds grows the bounding box to cover point.
func (p *Plant) ExtendBounds(point mgl32.Vec3) {
	p.bounds = p.bounds.Extend(point)
}
