package attribute

import (
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/core"
)

// MakeWeak captures a WeakAttributeID for id: the generation of the zone
// currently owning it, per spec.md §3. A nil id yields the zero
// WeakAttributeID, which is always expired.
func MakeWeak(t *arena.Table, id core.AttributeID) core.WeakAttributeID {
	if id.IsNil() {
		return core.WeakAttributeID{}
	}
	var gen core.Generation
	if z := t.ZoneOf(ptrOf(id)); z != nil {
		gen = z.ID().AsGeneration()
	}
	return core.WeakAttributeID{ID: id, Generation: gen}
}

// AddIndirectAttribute implements create_indirect_attribute: allocates an
// IndirectNode (or MutableIndirectNode, when mutable) aliasing source at the
// given byte offset.
func (s *Store) AddIndirectAttribute(source core.AttributeID, offset uint32, size uint16, mutable bool) core.AttributeID {
	if offset >= 1<<30 {
		core.Trap("attribute: indirect offset %d exceeds spec.md's 30-bit range", offset)
	}
	weak := MakeWeak(s.Table, source)

	if mutable {
		p := s.Zone.AllocBytes(unsafe.Sizeof(MutableIndirectNode{}))
		m := arena.At[MutableIndirectNode](s.Table, p)
		m.Source = weak
		m.Offset = offset
		m.Size = size
		m.IsMutable = true
		m.InitialSource = weak
		m.InitialOffset = offset
		return IndirectID(p)
	}

	p := s.Zone.AllocBytes(unsafe.Sizeof(IndirectNode{}))
	ind := arena.At[IndirectNode](s.Table, p)
	ind.Source = weak
	ind.Offset = offset
	ind.Size = size
	return IndirectID(p)
}

// SetIndirectSource retargets a mutable indirect node's alias source
// (set_indirect_source). Per spec.md §9's open question, this
// implementation does not validate offset+size against the new source's
// declared size, whether or not size was given explicitly.
func (s *Store) SetIndirectSource(a core.AttributeID, source core.AttributeID, offset uint32, size uint16) {
	m := s.mutableIndirectAt(a)
	m.Source = MakeWeak(s.Table, source)
	m.Offset = offset
	m.Size = size
}

// SetIndirectDependency installs the lazy-pull dependency a mutable
// indirect node consults under core.OptUpdateDependencies (set_indirect_
// dependency).
func (s *Store) SetIndirectDependency(a core.AttributeID, dependency core.AttributeID) {
	m := s.mutableIndirectAt(a)
	m.Dependency = dependency
}

// ResetIndirect restores a mutable indirect node to its creation-time
// source and offset (reset_indirect); when clear is true the dependency is
// cleared too.
func (s *Store) ResetIndirect(a core.AttributeID, clear bool) {
	m := s.mutableIndirectAt(a)
	m.Source = m.InitialSource
	m.Offset = m.InitialOffset
	if clear {
		m.Dependency = core.NilAttributeID
	}
}

func (s *Store) mutableIndirectAt(a core.AttributeID) *MutableIndirectNode {
	if a.Kind() != core.KindIndirect {
		core.Trap("attribute: expected an indirect attribute, got kind %d", a.Kind())
	}
	m := arena.At[MutableIndirectNode](s.Table, ptrOf(a))
	if !m.IsMutable {
		core.Trap("attribute: indirect attribute is not mutable")
	}
	return m
}
