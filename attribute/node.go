package attribute

import (
	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/core"
)

// Ptr is the arena offset type attribute records are addressed in. Aliased
// here so this file reads as the spec's own vocabulary without every field
// declaration spelling out the arena package name.
type Ptr = arena.Ptr

// Node is the in-arena record for a direct attribute (spec.md §3's 28-byte
// Node, relaxed here to whatever size Go's struct layout picks — the spec's
// byte count was a C packing target, not an observable contract; the fields
// and their semantics are what's preserved). NextSibling1/NextSibling2
// mirror the spec's two per-page sibling links (dirty-eligible and
// read-only, spec.md §4.3); nothing in this module writes or reads them.
type Node struct {
	State  core.NodeState
	Flags  core.NodeFlags
	TypeID uint32

	// BodyPtr/ValuePtr point at the inline storage (a persistent buffer
	// when Flags has HasIndirectSelf/HasIndirectValue, spec.md §3
	// Invariant 3) backing the attribute's body and value.
	BodyPtr  Ptr
	ValuePtr Ptr

	InputsPtr Ptr
	InputsLen uint32
	InputsCap uint32

	OutputsPtr Ptr
	OutputsLen uint32
	OutputsCap uint32

	NextSibling1 Ptr
	NextSibling2 Ptr
}

// IndirectNode is the in-arena record for an alias attribute (spec.md §3's
// 16-byte IndirectNode).
type IndirectNode struct {
	Source                 core.WeakAttributeID
	Offset                 uint32 // byte offset into the source's value; spec.md's 30-bit field
	Size                    uint16 // 0xffff = unknown
	TraversesGraphContexts bool
	IsMutable              bool
	NextSibling            Ptr
}

// UnknownIndirectSize is the sentinel IndirectNode.Size meaning "unknown".
const UnknownIndirectSize uint16 = 0xffff

// MutableIndirectNode extends IndirectNode with a retargetable dependency
// and reset bookkeeping (spec.md §3's 40-byte MutableIndirectNode).
type MutableIndirectNode struct {
	IndirectNode

	Dependency core.AttributeID

	OutputsPtr Ptr
	OutputsLen uint32
	OutputsCap uint32

	InitialSource core.WeakAttributeID
	InitialOffset uint32
}

// HasState reports whether the node's state has every bit in mask set.
func (n *Node) HasState(mask core.NodeState) bool { return n.State.Has(mask) }
