// Package attrgraph implements an incremental-computation / attribute-graph
// engine: an arena-backed graph of attributes wired together by input
// edges, where reads lazily recompute stale dependencies and writes mark
// their dependents dirty without re-running anything until the next read.
//
// # Architecture Overview
//
// The engine is organized as a stack of packages, each owning one layer of
// the model:
//
//   - core: handle types (AttributeID, WeakAttributeID), state/option bit
//     layouts, configuration, and the two-tier trap/report error model.
//   - arena: the page-granular, zone-scoped, offset-addressed allocator
//     every attribute's storage is carved from.
//   - attribute: Node/IndirectNode records, the AttributeType registry,
//     add_attribute/add_input/resolve, value read/write and dirty
//     propagation.
//   - layout: the value-layout bytecode and structural Compare walker used
//     to detect whether a write actually changed a value.
//   - subgraph: the ownership/invalidation scope — a zone, a parent/child
//     DAG, observers, and an optional node cache.
//   - update: the single-threaded-per-graph evaluation protocol —
//     UpdateAttribute/GetValue, cancellation, deadlines, cycle detection.
//   - trace: the pluggable lifecycle/evaluation observer surface.
//   - combinators: a small catalog of built-in attribute types (Const, Map,
//     Map2) used by tests, the dsl package, and cmd/agctl.
//   - graph: the top-level coordinator tying the above into a Graph: type
//     interning, subgraph/context registries, invalidation queueing, and
//     trace fan-out.
//   - dsl: a tiny text format compiled directly into a graph of wired
//     attributes.
//   - debugserver: the token-framed introspection protocol, for attaching
//     an external debugger to a running graph.
//
// # Basic usage
//
//	g := graph.New(nil, core.DefaultConfig())
//	sg := g.SubgraphCreate(nil)
//	typeID := combinators.Const[int32](g.Types())
//	v := int32(42)
//	a := sg.AddAttribute(typeID, nil, unsafe.Pointer(&v), 0)
//	ptr, _, _ := g.GetValue(a, 0, typeID)
//
// See the package docs under each subdirectory for the full surface.
package attrgraph
