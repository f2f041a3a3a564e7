package attribute

import (
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/core"
)

// PullFunc is invoked by Resolve when core.OptUpdateDependencies is set and
// traversal crosses a MutableIndirectNode with a live Dependency — the hook
// through which "this pulls a lazy dependency on-demand" (spec.md §4.2)
// reaches into the update engine without attribute importing it.
type PullFunc func(dependency core.AttributeID)

// ptrOf extracts the arena offset an AttributeID carries.
func ptrOf(id core.AttributeID) arena.Ptr { return arena.Ptr(id.Offset()) }

// DirectID / IndirectID build AttributeIDs of the given kind at p.
func DirectID(p arena.Ptr) core.AttributeID { return core.MakeAttributeID(uint32(p), core.KindDirect) }
func IndirectID(p arena.Ptr) core.AttributeID {
	return core.MakeAttributeID(uint32(p), core.KindIndirect)
}

// zoneIsLive reports whether the zone owning p is still the same zone (by
// generation) that captured it — the liveness half of a weak reference
// check (spec.md §3's WeakAttributeID).
func zoneIsLive(t *arena.Table, w core.WeakAttributeID) bool {
	if w.IsNil() {
		return false
	}
	z := t.ZoneOf(ptrOf(w.ID))
	if z == nil {
		return false
	}
	return z.ID().AsGeneration() == w.Generation
}

// Resolve walks the indirect chain starting at self per spec.md §4.2,
// accumulating the byte offset and honoring the traversal option bits.
// It returns the terminal AttributeID (Direct or Nil), the accumulated
// offset, and whether any indirection was traversed.
func Resolve(t *arena.Table, self core.AttributeID, opts core.TraversalOptions, pull PullFunc) (core.AttributeID, uint32, bool) {
	cur := self
	var offset uint32
	traversed := false

	for !cur.IsNil() && cur.Kind() == core.KindIndirect {
		p := ptrOf(cur)
		ind := arena.At[IndirectNode](t, p)

		if ind.IsMutable && opts&core.OptSkipMutableReference != 0 {
			return cur, offset, traversed
		}

		weak := ind.Source
		if opts&core.OptEvaluateWeakReferences != 0 && !zoneIsLive(t, weak) {
			if opts&core.OptAssertNotNil != 0 {
				core.Trap("attribute: resolve hit an expired weak reference with AssertNotNil set")
			}
			// Open Question (spec.md §9) resolved per the spec's own
			// guidance: short-circuit immediately rather than continuing
			// with the offset frozen.
			return core.NilAttributeID, offset, traversed
		}

		if ind.IsMutable && opts&core.OptUpdateDependencies != 0 && pull != nil {
			mind := (*MutableIndirectNode)(unsafe.Pointer(ind))
			if !mind.Dependency.IsNil() {
				pull(mind.Dependency)
			}
		}

		offset += ind.Offset
		traversed = true
		cur = weak.ID
	}

	if cur.IsNil() && opts&core.OptAssertNotNil != 0 {
		core.Trap("attribute: resolve hit a nil terminus with AssertNotNil set")
	}

	if traversed && opts&core.OptReportIndirectionOffset != 0 {
		offset++
	}
	return cur, offset, traversed
}
