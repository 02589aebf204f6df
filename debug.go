package arbor

import (
	"fmt"
)

// globalDebug enables invariant checks in tree surgery and mesh synthesis.
// Off by default; the checks walk links and buffers and are too slow for
// production growth loops.
var globalDebug bool

// SetDebug toggles package-wide debug checks.
func SetDebug(enabled bool) {
	globalDebug = enabled
}

// debugCheckLinks panics when the child list of stem is inconsistent:
// the head must have no previous sibling, sibling links must agree in both
// directions, and every child must point back at stem.
func debugCheckLinks(stem *Stem) {
	if stem.child != nil && stem.child.prevSibling != nil {
		panic("arbor debug: first child has a previous sibling")
	}
	for child := stem.child; child != nil; child = child.nextSibling {
		if child.parent != stem {
			panic(fmt.Sprintf("arbor debug: child of %p points at parent %p", stem, child.parent))
		}
		if child.nextSibling != nil && child.nextSibling.prevSibling != child {
			panic("arbor debug: sibling links disagree")
		}
	}
}

// debugCheckJoints panics when a stem's joints are not ordered by path
// index.
func debugCheckJoints(stem *Stem) {
	for i := 1; i < len(stem.joints); i++ {
		if stem.joints[i].PathIndex < stem.joints[i-1].PathIndex {
			panic("arbor debug: joints out of order")
		}
	}
}

// debugCheckBuffer panics when an index in the given range points past the
// vertex buffer.
func debugCheckBuffer(vertices []Vertex, indices []uint32) {
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			panic(fmt.Sprintf("arbor debug: index %d out of range (%d vertices)", idx, len(vertices)))
		}
	}
}
