// Package arbor procedurally grows branching plants and turns them into
// renderable triangle meshes.
//
// Arbor provides the stem graph (the plant's skeleton), two growth
// allocators (a light-driven simulation and a rule-based derivation
// variant), and a mesh synthesizer that emits per-material vertex and index
// buffers with skinning data ready for a GPU pipeline.
//
// # Quick start
//
//	plant := arbor.NewPlant()
//	gen := arbor.NewGenerator(plant)
//	gen.SetSeed(42)
//	gen.Grow(10, 2)
//
//	mesh := arbor.NewMesh(plant)
//	mesh.Generate()
//	vertices := mesh.Vertices()
//	indices := mesh.Indices()
//
// The resulting buffers are plain slices: upload them to whatever renderer
// you use. Arbor never opens a window and never talks to the GPU.
//
// # Stem graph
//
// Every branch segment is a [Stem]. Stems form a tree owned by a [Plant],
// which pools their storage so that *Stem addresses stay valid across
// unrelated edits. Structural surgery (extraction and reinsertion of whole
// subtrees, used for reparenting and undo) goes through [Plant.ExtractStem]
// and [Plant.ReinsertStem].
//
// Each stem follows a [Path]: a spline with an interpolated radius profile.
// Cross-section resolution, branch collar swelling, skinning joints, and
// leaves are all per-stem properties.
//
// # Growth
//
// [Generator.Grow] runs growth cycles: it rasterizes the current plant into
// a sparse octree [Volume], casts light rays through it (denser wood
// upstream shadows stems downstream), and extends, branches, and thickens
// stems according to the light each tip receives. Radii follow the pipe
// model: a stem is never thinner than the branches it supports.
//
// [PseudoGenerator] is the declarative alternative: a [DerivationTree] of
// production rules populates the same stem graph without any light
// simulation.
//
// Both allocators draw every random decision from a per-stem generator
// chain seeded from the parent stem, so the same seed always grows the
// same plant.
//
// # Meshing
//
// [Mesh.Generate] walks the stem graph and fills one vertex/index buffer
// per material, stitching cross-section rings into triangle strips and
// blending child stems into their parents with branch collar fillets.
// [Mesh.FindStem] and [Mesh.FindLeaf] map a stem or leaf back to its
// buffer sub-range for picking and highlighting.
//
// Arbor is single-threaded; serialize edits and regenerations of a given
// plant.
package arbor
