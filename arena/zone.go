package arena

import "github.com/sbl8/attrgraph/core"

const allocAlignment = 8

// fragmentHeader is the in-place layout Zone writes into a freed byte range
// large enough to recycle: a singly-linked list of reusable fragments,
// threaded through the freed bytes themselves rather than a side structure,
// the same trick the original allocator uses to avoid a separate freelist
// arena (spec.md §4.1, "alloc_bytes_recycle").
type fragmentHeader struct {
	Next Ptr
	Size uint32
}

const fragmentHeaderSize = 8

// Zone is the per-Subgraph bump allocator spec.md §4.1 describes: it owns a
// chain of pages carved from a shared Table, bump-allocates from the tail
// page, and recycles freed fragments through a freelist before asking the
// Table for another page. One Zone backs exactly one Subgraph.
type Zone struct {
	table *Table
	index uint32
	id    core.ZoneID

	headPage Ptr
	tailPage Ptr
	cursor   Ptr // next free byte in the tail page
	pageEnd  Ptr // one past the last usable byte of the tail page

	freeHead Ptr

	persistent [][]byte

	destroyed bool
}

// NewZone allocates a fresh zone backed by t, registering it so
// Table.ZoneOf can resolve pages back to this zone.
func NewZone(t *Table) *Zone {
	z := &Zone{table: t}
	z.index, z.id = t.registerZone(z)
	z.addPage()
	return z
}

// Index is the zone's slot within its Table, used by PageHeader.ZoneIndex
// to resolve a page back to its (possibly since-replaced) owning zone.
func (z *Zone) Index() uint32 { return z.index }

// ID is the zone's monotonic, never-reused identifier — the generation a
// WeakAttributeID captures at the moment of creation (spec.md §3).
// Destroy() tags it with the deleted bit so a stale capture can never
// compare equal to a live zone's current id again.
func (z *Zone) ID() core.ZoneID {
	if z.destroyed {
		return z.id.WithDeleted()
	}
	return z.id
}

func (z *Zone) addPage() {
	base := z.table.AllocPages(1)
	hdr := PageHeaderAt(z.table, base)
	hdr.ZoneIndex = z.index
	hdr.Next = NullPtr
	hdr.Prev = z.tailPage

	if z.tailPage.IsNil() {
		z.headPage = base
	} else {
		PageHeaderAt(z.table, z.tailPage).Next = base
	}
	z.tailPage = base
	z.cursor = pageDataStart(base)
	z.pageEnd = base + PageSize
}

// alignUp rounds p up to a multiple of align, delegating to core.AlignUp
// rather than reimplementing the bit twiddling for Ptr's narrower uint32 representation.
func alignUp(p Ptr, align uintptr) Ptr {
	return Ptr(core.AlignUp(uintptr(p), align))
}

// AllocBytes returns size freshly zeroed bytes, preferring a recycled
// freelist fragment of adequate size before bump-allocating from the tail
// page, and growing the zone by one more page when the tail page is full —
// spec.md §4.1's "alloc_bytes_recycle" / "alloc_bytes" pair collapsed into
// one entry point, since every caller wants recycling when it's available.
func (z *Zone) AllocBytes(size uintptr) Ptr {
	core.TrapIf(!z.destroyed, "arena: AllocBytes on destroyed zone")
	if size == 0 {
		return NullPtr
	}
	if p, ok := z.tryRecycle(size); ok {
		return p
	}

	aligned := alignUp(z.cursor, allocAlignment)
	need := aligned + Ptr(size)
	if need > z.pageEnd {
		if size > UsablePageBytes {
			core.Trap("arena: allocation of %d bytes exceeds page capacity %d", size, UsablePageBytes)
		}
		z.addPage()
		aligned = alignUp(z.cursor, allocAlignment)
		need = aligned + Ptr(size)
	}
	z.cursor = need
	region := Bytes(z.table, aligned, size)
	for i := range region {
		region[i] = 0
	}
	return aligned
}

// tryRecycle walks the freelist for the first fragment at least size bytes
// long (first-fit), splitting the remainder back onto the freelist when it
// is large enough to hold another fragmentHeader.
func (z *Zone) tryRecycle(size uintptr) (Ptr, bool) {
	var prev Ptr
	cur := z.freeHead
	for !cur.IsNil() {
		frag := At[fragmentHeader](z.table, cur)
		if uintptr(frag.Size) >= size {
			next := frag.Next
			remaining := uintptr(frag.Size) - size
			if remaining >= fragmentHeaderSize {
				tail := cur + Ptr(size)
				tailFrag := At[fragmentHeader](z.table, tail)
				tailFrag.Next = next
				tailFrag.Size = uint32(remaining)
				next = tail
			}
			if prev.IsNil() {
				z.freeHead = next
			} else {
				At[fragmentHeader](z.table, prev).Next = next
			}
			region := Bytes(z.table, cur, size)
			for i := range region {
				region[i] = 0
			}
			return cur, true
		}
		prev = cur
		cur = frag.Next
	}
	return NullPtr, false
}

// Free returns size bytes at p to the zone's freelist. Fragments too small
// to carry a fragmentHeader are leaked until the zone is destroyed, matching
// the original's acceptance of small internal fragmentation in exchange for
// O(1) frees.
func (z *Zone) Free(p Ptr, size uintptr) {
	if p.IsNil() || size < fragmentHeaderSize {
		return
	}
	frag := At[fragmentHeader](z.table, p)
	frag.Next = z.freeHead
	frag.Size = uint32(size)
	z.freeHead = p
}

// ReallocBytes grows or shrinks an existing allocation by allocating size
// bytes fresh, copying min(oldSize, size) bytes across, and freeing the
// original range.
func (z *Zone) ReallocBytes(p Ptr, oldSize, size uintptr) Ptr {
	if p.IsNil() {
		return z.AllocBytes(size)
	}
	fresh := z.AllocBytes(size)
	n := oldSize
	if size < n {
		n = size
	}
	copy(Bytes(z.table, fresh, n), Bytes(z.table, p, n))
	z.Free(p, oldSize)
	return fresh
}

// AllocPersistent returns a heap-backed buffer that outlives page recycling
// entirely — spec.md §4.1's "persistent buffers", used for payloads too
// large or too long-lived to want bump-allocated inside a page (e.g. layout
// descriptor bytecode, large value copies under CompareCopyOnWrite). Unlike
// AllocBytes it is not addressed by Ptr; callers hold the []byte directly.
// The buffer is cache-line aligned (core.AlignedBytes) since these are the
// allocations most likely to be read concurrently by more than one zone.
func (z *Zone) AllocPersistent(size int) []byte {
	buf := core.AlignedBytes(size)
	z.persistent = append(z.persistent, buf)
	return buf
}

// Destroy releases every page the zone owns back to its Table and drops the
// zone's registry slot. Persistent buffers are left to the Go garbage
// collector. Destroy is idempotent.
func (z *Zone) Destroy() {
	if z.destroyed {
		return
	}
	page := z.headPage
	for !page.IsNil() {
		next := PageHeaderAt(z.table, page).Next
		z.table.ReleasePages(page, 1)
		page = next
	}
	z.table.unregisterZone(z.index)
	z.headPage, z.tailPage, z.freeHead = NullPtr, NullPtr, NullPtr
	z.persistent = nil
	z.destroyed = true
}
