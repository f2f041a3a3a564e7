// Package core holds the handle types, bit-layout constants, configuration and
// error-reporting primitives shared by every layer of the graph engine: the arena,
// the attribute model, the layout descriptor, the subgraph/graph coordinators and
// the update protocol all depend on core but core depends on none of them.
package core

// AttributeID is the 32-bit tagged handle described in spec.md §3: the low two
// bits carry a kind tag (Direct, Indirect) and the remaining bits are the byte
// offset of the referent inside the arena's address space. AttributeID(0) is the
// canonical nil value regardless of kind.
type AttributeID uint32

// Kind tags packed into an AttributeID's low bits.
const (
	KindDirect   = 0
	KindIndirect = 1
	// KindNil is never stored in the low bits of a non-zero id; it is the
	// logical kind reported for AttributeID(0).
	KindNil = 2
)

const idKindMask AttributeID = 0x3

// NilAttributeID is the canonical nil handle.
const NilAttributeID AttributeID = 0

// IsNil reports whether a is the canonical nil handle.
func (a AttributeID) IsNil() bool { return a == NilAttributeID }

// Kind returns the handle's kind tag, or KindNil for the nil handle.
func (a AttributeID) Kind() int {
	if a.IsNil() {
		return KindNil
	}
	return int(a & idKindMask)
}

// Offset returns the byte offset into the arena region, with the kind tag
// masked off. Masking further against a page's alignment yields the
// page-aligned pointer that reaches the owning zone via the page header.
func (a AttributeID) Offset() uint32 {
	return uint32(a &^ idKindMask)
}

// MakeAttributeID packs a byte offset and a kind tag into a handle. offset
// must already be aligned such that its low two bits are zero; the caller
// (arena.Ptr) is responsible for that invariant.
func MakeAttributeID(offset uint32, kind int) AttributeID {
	return AttributeID(offset&^uint32(idKindMask)) | AttributeID(kind)
}

// Generation is the zone id captured at the moment a WeakAttributeID was taken.
// It is compared against the zone's current id to detect expiry (spec.md §3,
// Testable Property 3).
type Generation uint32

// WeakAttributeID is the (AttributeID, generation) pair of spec.md §3. The
// referent is live iff the owning zone's current generation still equals the
// one captured here.
type WeakAttributeID struct {
	ID         AttributeID
	Generation Generation
}

// IsNil reports whether the underlying attribute handle is nil. It does not by
// itself imply expiry or liveness — callers resolve liveness through the
// owning zone's current generation.
func (w WeakAttributeID) IsNil() bool { return w.ID.IsNil() }

// ZoneID is the arena's monotonic per-zone identifier. Once a zone is
// released, its id is xor-tagged with deletedBit so a WeakAttributeID's
// captured generation can never alias a live zone that reused the slot.
type ZoneID uint32

const deletedBit ZoneID = 1 << 31

// WithDeleted returns z tagged as deleted.
func (z ZoneID) WithDeleted() ZoneID { return z | deletedBit }

// IsDeleted reports whether the deleted tag bit is set.
func (z ZoneID) IsDeleted() bool { return z&deletedBit != 0 }

// AsGeneration reinterprets a zone id as the Generation recorded in a
// WeakAttributeID taken while the zone was current.
func (z ZoneID) AsGeneration() Generation { return Generation(z) }
