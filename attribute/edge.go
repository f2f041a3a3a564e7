// Package attribute implements spec.md §3/§4.2-§4.4: the in-arena attribute
// records (Node, IndirectNode, MutableIndirectNode), their input/output edge
// lists, the AttributeType registry, AttributeID resolution, and the
// value write/compare path. It depends on arena and core but not on
// subgraph, graph, or update — those layer on top of it.
package attribute

import "github.com/sbl8/attrgraph/core"

// InputEdge is one entry in a Node's input vector: the source attribute and
// the per-edge option bits (spec.md §4.3).
type InputEdge struct {
	Source  core.AttributeID
	Options core.InputOptions
}

// OutputEdge is the mirror back-reference maintained on the source's Node
// whenever an InputEdge is added or removed (spec.md §4.3, Invariant 7).
type OutputEdge struct {
	Target core.AttributeID
}
