package attribute

import (
	"sync"
	"unsafe"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/layout"
	"github.com/sbl8/attrgraph/typeinfo"
)

// maxTypeID is spec.md §7's fatal-precondition ceiling: type ids are a
// 24-bit field packed alongside a Node's state/flags.
const maxTypeID = 1<<24 - 1

// UpdateContext is the callback surface an AttributeType's Update thunk uses
// to read its inputs and publish its result (spec.md §4.5's "the thunk may
// call back into the engine to read input values... or to write the node's
// value"). The update package's Engine implements this; attribute only
// needs the shape so Node/AttributeType can reference it without importing
// update (which itself imports attribute).
type UpdateContext interface {
	Self() core.AttributeID
	GetInputValue(input core.AttributeID) (unsafe.Pointer, bool)
	SetValue(value unsafe.Pointer)
	// Inputs returns self's current input edges, in add_input order, so a
	// thunk can discover which attributes it depends on without the body
	// needing to carry their ids itself.
	Inputs() []InputEdge
}

// UpdateThunk is an attribute type's recomputation function.
type UpdateThunk func(ctx UpdateContext, body unsafe.Pointer)

// TypeFlags are the per-AttributeType vtable flags of spec.md §3.
type TypeFlags uint8

const (
	FlagHasDestroySelf TypeFlags = 1 << 0
	FlagMainThread     TypeFlags = 1 << 1
	FlagExternal       TypeFlags = 1 << 2
	FlagThreadSafe     TypeFlags = 1 << 3
)

// AttributeType is the registered per-type descriptor of spec.md §3: body
// and value metadata, the update thunk, an optional destroy hook, a
// comparison mode and flags. It carries no body offset; a Node locates its
// body through its own BodyPtr (see node_ops.go).
type AttributeType struct {
	ID uint32

	BodyMetadata  typeinfo.Metadata
	ValueMetadata typeinfo.Metadata

	Update          UpdateThunk
	Destroy         func(body unsafe.Pointer)
	Describe        func(body unsafe.Pointer) string
	InitializeValue func(value unsafe.Pointer)

	ComparisonMode layout.Mode
	Flags          TypeFlags

	valueLayout *layout.Descriptor
	layoutOnce  sync.Once
}

// ValueLayout lazily builds and caches the AttributeType's value layout
// descriptor via b, per spec.md §4.7's per-(metadata, mode) cache.
func (t *AttributeType) ValueLayout(b *layout.Builder) *layout.Descriptor {
	t.layoutOnce.Do(func() {
		t.valueLayout = b.Build(t.ValueMetadata, t.ComparisonMode)
	})
	return t.valueLayout
}

// Registry is spec.md §4.9's type-interning table: "looks up metadata in a
// hash table; on miss, runs make to obtain a fresh AttributeType, ... and
// assigns a 24-bit id."
type Registry struct {
	mu         sync.Mutex
	byMetadata map[typeinfo.Metadata]uint32
	types      []*AttributeType
}

// NewRegistry constructs an empty type registry.
func NewRegistry() *Registry {
	return &Registry{byMetadata: make(map[typeinfo.Metadata]uint32)}
}

// Intern looks up meta and returns its existing id, or calls construct to
// build a fresh AttributeType, assigns it the next id, and caches it.
// construct runs under the registry lock, matching spec.md's original,
// which serializes type creation through the same lock that guards lookup —
// cheap to get right since type registration happens at startup, not on a
// hot path.
func (r *Registry) Intern(meta typeinfo.Metadata, construct func() *AttributeType) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byMetadata[meta]; ok {
		return id
	}
	t := construct()
	if len(r.types) > maxTypeID {
		core.Trap("attribute: type registry exceeded %d entries", maxTypeID+1)
	}
	id := uint32(len(r.types))
	t.ID = id
	r.types = append(r.types, t)
	r.byMetadata[meta] = id
	return id
}

// Type resolves a registered type by id, trapping if the id is out of
// range — a mismatched type id reaching here indicates in-arena corruption.
func (r *Registry) Type(id uint32) *AttributeType {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(id) >= len(r.types) {
		core.Trap("attribute: type id %d out of range (%d registered)", id, len(r.types))
	}
	return r.types[id]
}

// Count returns the number of interned types.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.types)
}
