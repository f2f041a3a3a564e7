package attribute

import (
	"sync"
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/core"
)

// maxInlineBodyBytes is spec.md §4.3's threshold above which a body or
// value is placed in a persistent buffer instead of stored inline in the
// node (HasIndirectSelf / HasIndirectValue); storeInto applies the same
// threshold to bodies and values.
const maxInlineBodyBytes = 128

// maxIndirectSize is spec.md §7's fatal-precondition ceiling on an indirect
// reference's declared size.
const maxIndirectSize = 1<<30 - 1

// Store bundles the arena handles an attribute operation needs: the zone
// attributes are allocated from, the shared table (for cross-zone
// resolution through AttributeID/WeakAttributeID), and the type registry.
// One Store backs one Subgraph's zone.
type Store struct {
	Table *arena.Table
	Zone  *arena.Zone
	Types *Registry

	mu               sync.Mutex
	persistent       map[uint32][]byte
	nextPersistentID uint32
}

// NewStore constructs a Store over an existing zone and the shared type
// registry.
func NewStore(table *arena.Table, zone *arena.Zone, types *Registry) *Store {
	return &Store{Table: table, Zone: zone, Types: types, persistent: make(map[uint32][]byte)}
}

// storePersistent hands back an opaque handle for a persistent (non-moving)
// buffer. Go doesn't let us embed a raw heap pointer inside an arena.Ptr
// field the way the C original stores a real pointer, so HasIndirectSelf/
// HasIndirectValue fields hold this handle instead of an arena offset —
// meaningful only in combination with the corresponding flag bit. This is
// documented in DESIGN.md as the one place the arena.Ptr type is reused for
// something other than an arena offset.
func (s *Store) storePersistent(buf []byte) arena.Ptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPersistentID++
	id := s.nextPersistentID
	s.persistent[id] = buf
	return arena.Ptr(id)
}

func (s *Store) loadPersistent(handle arena.Ptr) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistent[uint32(handle)]
}

func (s *Store) dropPersistent(handle arena.Ptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.persistent, uint32(handle))
}

func copyInto(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	dstSlice := unsafe.Slice((*byte)(dst), n)
	srcSlice := unsafe.Slice((*byte)(src), n)
	copy(dstSlice, srcSlice)
}

// BodyPointer resolves a Node's body to a raw pointer, following the
// HasIndirectSelf indirection when set.
func (s *Store) BodyPointer(n *Node) unsafe.Pointer {
	if n.Flags&core.FlagHasIndirectSelf != 0 {
		buf := s.loadPersistent(n.BodyPtr)
		if len(buf) == 0 {
			return nil
		}
		return unsafe.Pointer(&buf[0])
	}
	return arena.PointerAt(s.Table, n.BodyPtr)
}

// ValuePointer resolves a Node's value to a raw pointer, following the
// HasIndirectValue indirection when set.
func (s *Store) ValuePointer(n *Node) unsafe.Pointer {
	if n.Flags&core.FlagHasIndirectValue != 0 {
		buf := s.loadPersistent(n.ValuePtr)
		if len(buf) == 0 {
			return nil
		}
		return unsafe.Pointer(&buf[0])
	}
	return arena.PointerAt(s.Table, n.ValuePtr)
}

// FinalizeAttribute implements spec.md §3's node destroy path: if the value
// is initialized it runs the type's registered Destroy hook (the
// witness-table destroy of the source library) on the value, then releases
// any persistent buffers the value and the body occupied. The Destroy hook
// is not run on the body. It does not free the node's own
// arena bytes — that happens wholesale when the owning zone is destroyed.
func (s *Store) FinalizeAttribute(self core.AttributeID) {
	n := s.NodeAt(self)
	t := s.Types.Type(n.TypeID)

	if n.State.Has(core.StateValueInitialized) {
		if t.Destroy != nil {
			t.Destroy(s.ValuePointer(n))
		}
		if n.Flags&core.FlagHasIndirectValue != 0 {
			s.dropPersistent(n.ValuePtr)
		}
	}
	if n.Flags&core.FlagHasIndirectSelf != 0 {
		s.dropPersistent(n.BodyPtr)
	}
}
