package graph

import (
	"unsafe"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/subgraph"
)

// CreateAttribute implements spec.md §6's create_attribute(type_id, body,
// value?) -> AttributeID. The source's "current subgraph" is an implicit
// per-thread slot; Go has no such ambient state, so callers name the target
// subgraph explicitly rather than relying on one being installed earlier on
// the calling goroutine.
func (g *Graph) CreateAttribute(sg *subgraph.Subgraph, typeID uint32, body, value unsafe.Pointer, tag subgraph.Flags) core.AttributeID {
	return sg.AddAttribute(typeID, body, value, tag)
}
