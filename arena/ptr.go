// Package arena implements the page-granular, zone-scoped, offset-addressed
// allocator of spec.md §3/§4.1: a single process-wide Table maps a growable
// region, partitions it into fixed-size Pages, and hands pages out to Zones —
// one zone per Subgraph — which bump-allocate and recycle fragments within
// their own pages. Every allocation is addressed by a Ptr, a 32-bit byte
// offset into the Table's region, never by a raw Go pointer, so that growing
// the region (remapping it larger) never invalidates an attribute's identity.
package arena

import (
	"unsafe"

	"github.com/sbl8/attrgraph/core"
)

// PageSize is the fixed page granularity spec.md §3 specifies.
const PageSize = 512

// Ptr is a 1-based byte offset into a Table's mapped region. Ptr(0) is the
// reserved null value; the first page begins at offset 1, matching
// spec.md §4.1 ("Page offsets are 1-based ... so that offset 0 remains
// null").
type Ptr uint32

// NullPtr is the reserved null offset.
const NullPtr Ptr = 0

// IsNil reports whether p is the null pointer.
func (p Ptr) IsNil() bool { return p == NullPtr }

// PageIndex returns the zero-based index of the page containing p.
func (p Ptr) PageIndex() uint32 {
	return (uint32(p) - 1) / PageSize
}

// PageOffset returns the byte offset of p within its page.
func (p Ptr) PageOffset() uint32 {
	return (uint32(p) - 1) % PageSize
}

// PageBase returns the Ptr of the first byte of p's containing page.
func (p Ptr) PageBase() Ptr {
	return Ptr(p.PageIndex()*PageSize + 1)
}

// pageBaseForIndex returns the Ptr of page i's first byte.
func pageBaseForIndex(i uint32) Ptr {
	return Ptr(i*PageSize + 1)
}

// At reinterprets the bytes at p as *T. Callers must not hold the returned
// pointer across an operation that may grow the table's region (a fresh
// table.growForPages remaps the backing slice), since the Go slice backing
// a grown region is not guaranteed to share memory with the old one — the
// Ptr survives a grow, a raw *T does not. This mirrors the C original's
// "everything is addressed relative to the table, never by live pointer"
// discipline (spec.md §3, Invariant 1).
func At[T any](t *Table, p Ptr) *T {
	if p.IsNil() {
		core.Trap("arena: dereference of nil Ptr")
	}
	var zero T
	size := unsafe.Sizeof(zero)
	if uintptr(p)+size > uintptr(len(t.region)) {
		core.Trap("arena: ptr %d+%d out of bounds (region size %d)", p, size, len(t.region))
	}
	return (*T)(unsafe.Pointer(&t.region[p]))
}

// PointerAt returns a raw unsafe.Pointer to the byte at p, with no type
// reinterpretation — used by callers (attribute.Store) that need to hand a
// body/value location to code outside the arena package (an AttributeType's
// update thunk, the layout comparator) without committing to a Go type for
// it the way At[T] does.
func PointerAt(t *Table, p Ptr) unsafe.Pointer {
	if p.IsNil() {
		return nil
	}
	if uintptr(p) >= uintptr(len(t.region)) {
		core.Trap("arena: pointer %d out of bounds (region size %d)", p, len(t.region))
	}
	return unsafe.Pointer(&t.region[p])
}

// Elem returns a pointer to the i'th T in an array of T starting at base,
// the arena counterpart of indexing a slice — used throughout attribute and
// subgraph for the growable in-arena arrays (input/output edge vectors,
// free-node lists) spec.md describes as "arena pointer + count".
func Elem[T any](t *Table, base Ptr, i int) *T {
	var zero T
	return At[T](t, base+Ptr(uintptr(i)*unsafe.Sizeof(zero)))
}

// Bytes returns a byte slice view of the size bytes starting at p.
func Bytes(t *Table, p Ptr, size uintptr) []byte {
	if p.IsNil() {
		if size == 0 {
			return nil
		}
		core.Trap("arena: byte view of nil Ptr")
	}
	if uintptr(p)+size > uintptr(len(t.region)) {
		core.Trap("arena: byte view %d+%d out of bounds (region size %d)", p, size, len(t.region))
	}
	return t.region[p : uintptr(p)+size]
}
