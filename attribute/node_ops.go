package attribute

import (
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/layout"
)

// AddAttribute implements spec.md §4.3's add_attribute: it allocates a Node
// for typeID, places the body inline when it is small and bitwise-takable
// or in a persistent buffer otherwise (HasIndirectSelf), and does the same
// for an optional initial value. body may be nil for a zero-size body type.
func (s *Store) AddAttribute(typeID uint32, body unsafe.Pointer, value unsafe.Pointer) core.AttributeID {
	t := s.Types.Type(typeID)

	nodePtr := s.Zone.AllocBytes(unsafe.Sizeof(Node{}))
	n := arena.At[Node](s.Table, nodePtr)
	n.TypeID = typeID

	if bodySize := t.BodyMetadata.Size(); bodySize > 0 {
		s.storeInto(&n.BodyPtr, &n.Flags, core.FlagHasIndirectSelf, body, bodySize, t.BodyMetadata.BitwiseTakable())
		n.State |= core.StateSelfInitialized
	}

	if value != nil {
		valueSize := t.ValueMetadata.Size()
		s.storeInto(&n.ValuePtr, &n.Flags, core.FlagHasIndirectValue, value, valueSize, t.ValueMetadata.BitwiseTakable())
		n.State |= core.StateValueInitialized
	} else {
		n.State |= core.StateDirty | core.StatePending
	}

	return DirectID(nodePtr)
}

// storeInto writes src (size bytes) either inline in the arena (allocating
// room for it) or into a persistent buffer, setting flagBit on flags in the
// indirect case — the shared logic behind a Node's body and value storage
// (spec.md §3 Invariant 3).
func (s *Store) storeInto(dst *arena.Ptr, flags *core.NodeFlags, flagBit core.NodeFlags, src unsafe.Pointer, size uintptr, bitwiseTakable bool) {
	if size == 0 {
		return
	}
	if size > maxInlineBodyBytes || !bitwiseTakable {
		buf := s.Zone.AllocPersistent(int(size))
		if src != nil {
			copyInto(unsafe.Pointer(&buf[0]), src, size)
		}
		*dst = s.storePersistent(buf)
		*flags |= flagBit
		return
	}
	p := s.Zone.AllocBytes(size)
	if src != nil {
		copyInto(arena.PointerAt(s.Table, p), src, size)
	}
	*dst = p
}

// AddInput implements spec.md §4.3's add_input: appends an InputEdge to
// self's input vector and mirrors an OutputEdge onto source (Invariant 7).
func (s *Store) AddInput(self core.AttributeID, source core.AttributeID, opts core.InputOptions) int {
	if opts == 0 {
		opts = core.InputUnprefetched
	}
	n := arena.At[Node](s.Table, ptrOf(self))
	index := int(n.InputsLen)
	appendInputEdge(s.Table, s.Zone, &n.InputsPtr, &n.InputsLen, &n.InputsCap, InputEdge{Source: source, Options: opts})
	s.addOutputEdge(source, self)
	return index
}

// RemoveInput removes the input edge at index from self, mirroring the
// removal on the source's output edge list.
func (s *Store) RemoveInput(self core.AttributeID, index int) {
	n := arena.At[Node](s.Table, ptrOf(self))
	if index < 0 || uint32(index) >= n.InputsLen {
		core.Trap("attribute: RemoveInput index %d out of range (len %d)", index, n.InputsLen)
	}
	edge := *arena.Elem[InputEdge](s.Table, n.InputsPtr, index)
	removeInputEdgeAt(s.Table, n, index)
	s.removeOutputEdge(edge.Source, self)
}

// addOutputEdge appends an OutputEdge{target} to source's output vector.
func (s *Store) addOutputEdge(source, target core.AttributeID) {
	if source.Kind() != core.KindDirect {
		return
	}
	n := arena.At[Node](s.Table, ptrOf(source))
	appendOutputEdge(s.Table, s.Zone, &n.OutputsPtr, &n.OutputsLen, &n.OutputsCap, OutputEdge{Target: target})
}

// removeOutputEdge removes the first OutputEdge on source targeting target.
func (s *Store) removeOutputEdge(source, target core.AttributeID) {
	if source.Kind() != core.KindDirect {
		return
	}
	n := arena.At[Node](s.Table, ptrOf(source))
	for i := 0; i < int(n.OutputsLen); i++ {
		e := arena.Elem[OutputEdge](s.Table, n.OutputsPtr, i)
		if e.Target == target {
			removeOutputEdgeAt(s.Table, n, i)
			return
		}
	}
}

// Inputs returns a copy of self's input edges.
func (s *Store) Inputs(self core.AttributeID) []InputEdge {
	n := arena.At[Node](s.Table, ptrOf(self))
	out := make([]InputEdge, n.InputsLen)
	for i := range out {
		out[i] = *arena.Elem[InputEdge](s.Table, n.InputsPtr, i)
	}
	return out
}

// InputEdgeAt returns a live pointer into self's input edge at index, so a
// caller (the update engine) can inspect and clear per-edge option bits
// (Changed, Unprefetched) without copying the whole input vector.
func (s *Store) InputEdgeAt(self core.AttributeID, index int) *InputEdge {
	n := arena.At[Node](s.Table, ptrOf(self))
	if index < 0 || uint32(index) >= n.InputsLen {
		core.Trap("attribute: InputEdgeAt index %d out of range (len %d)", index, n.InputsLen)
	}
	return arena.Elem[InputEdge](s.Table, n.InputsPtr, index)
}

// InputCount returns the number of input edges self currently has.
func (s *Store) InputCount(self core.AttributeID) int {
	return int(arena.At[Node](s.Table, ptrOf(self)).InputsLen)
}

// HasInput reports whether self already has an input edge sourced from
// source, so a dynamic get_input_value registration does not add a
// duplicate edge on repeated reads within the same evaluation.
func (s *Store) HasInput(self, source core.AttributeID) bool {
	n := arena.At[Node](s.Table, ptrOf(self))
	for i := 0; i < int(n.InputsLen); i++ {
		if arena.Elem[InputEdge](s.Table, n.InputsPtr, i).Source == source {
			return true
		}
	}
	return false
}

// Outputs returns a copy of self's output edges.
func (s *Store) Outputs(self core.AttributeID) []OutputEdge {
	n := arena.At[Node](s.Table, ptrOf(self))
	out := make([]OutputEdge, n.OutputsLen)
	for i := range out {
		out[i] = *arena.Elem[OutputEdge](s.Table, n.OutputsPtr, i)
	}
	return out
}

// MarkChanged implements spec.md §4.4's mark_changed: sets the Changed bit
// on every output edge so successors see "an input changed" on their next
// evaluation.
func (s *Store) MarkChanged(self core.AttributeID) {
	n := arena.At[Node](s.Table, ptrOf(self))
	for i := 0; i < int(n.OutputsLen); i++ {
		out := arena.Elem[OutputEdge](s.Table, n.OutputsPtr, i)
		if out.Target.Kind() != core.KindDirect {
			continue
		}
		target := arena.At[Node](s.Table, ptrOf(out.Target))
		for j := 0; j < int(target.InputsLen); j++ {
			in := arena.Elem[InputEdge](s.Table, target.InputsPtr, j)
			if in.Source == self {
				in.Options |= core.InputChanged
			}
		}
	}
}

// propagateDirty implements the dirty-propagation half of value_set/
// add_attribute: mark self dirty/pending and recursively dirty every
// consumer that isn't already dirty (spec.md §4.4 step 3/4, §5's
// "value3" propagation flags are approximated here by a direct walk since
// this implementation does not carry spec.md's separate subgraph
// propagation-flag byte).
func (s *Store) propagateDirty(self core.AttributeID) {
	n := arena.At[Node](s.Table, ptrOf(self))
	if n.State.Has(core.StateDirty) {
		return
	}
	n.State |= core.StateDirty | core.StatePending
	for i := 0; i < int(n.OutputsLen); i++ {
		out := arena.Elem[OutputEdge](s.Table, n.OutputsPtr, i)
		if out.Target.Kind() == core.KindDirect {
			s.propagateDirty(out.Target)
		}
	}
}

// SetValue implements spec.md §4.4's value_set. It does not check value's
// type against the attribute's registered value metadata. Setting a value
// on an attribute that has inputs and already holds one traps, except while
// that attribute is being evaluated (its own update thunk publishing its
// result). Returns true iff the value changed under structural equality.
func (s *Store) SetValue(self core.AttributeID, builder *layout.Builder, value unsafe.Pointer) bool {
	n := arena.At[Node](s.Table, ptrOf(self))
	t := s.Types.Type(n.TypeID)

	if n.InputsLen > 0 && n.State.Has(core.StateValueInitialized) && !n.State.Has(core.StateEvaluating) {
		core.Trap("attribute: set_value on a computed attribute that already has a value")
	}

	size := t.ValueMetadata.Size()
	if !n.State.Has(core.StateValueInitialized) {
		s.storeInto(&n.ValuePtr, &n.Flags, core.FlagHasIndirectValue, value, size, t.ValueMetadata.BitwiseTakable())
		n.State |= core.StateValueInitialized
		n.State &^= core.StateDirty
		s.MarkChanged(self)
		s.propagateDirty(self)
		return true
	}

	current := s.ValuePointer(n)
	d := t.ValueLayout(builder)
	if layout.Compare(d, current, value, size, builder.Oracle, 0) {
		return false
	}
	copyInto(current, value, size)
	s.MarkChanged(self)
	s.propagateDirty(self)
	return true
}

// NodeAt resolves a Direct AttributeID to its Node record.
func (s *Store) NodeAt(self core.AttributeID) *Node {
	if self.Kind() != core.KindDirect {
		core.Trap("attribute: NodeAt requires a Direct attribute, got kind %d", self.Kind())
	}
	return arena.At[Node](s.Table, ptrOf(self))
}

// RawValue returns self's current value pointer and whether it has been
// initialized yet, without triggering evaluation — the mechanical half of
// get_value; the update/graph layer wraps this with resolution and the
// dirty-triggers-recompute behavior of spec.md §4.6.
func (s *Store) RawValue(self core.AttributeID) (unsafe.Pointer, bool) {
	n := s.NodeAt(self)
	if !n.State.Has(core.StateValueInitialized) {
		return nil, false
	}
	return s.ValuePointer(n), true
}
