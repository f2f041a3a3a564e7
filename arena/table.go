package arena

import (
	"fmt"
	"sync"

	"github.com/sbl8/attrgraph/core"
)

// growthFactor is how much the Table's region expands by when no run of free
// pages can be found, matching spec.md §4.1 ("growing the region 4× in place
// as needed").
const growthFactor = 4

// initialPages is the page count a freshly constructed Table reserves before
// any allocation is requested.
const initialPages = 64

// Table is the single process-wide owner of the mapped region every Zone's
// pages are carved from (spec.md §3 "Arena layout", §4.1). Table itself is
// safe for concurrent use — spec.md §5 calls for "an unfair mutex" guarding
// table lookup/insert and page-bitmap mutation — a plain sync.Mutex serves
// that role here since critical sections are always short (bitmap scans and
// flips), never blocking I/O.
type Table struct {
	mu   sync.Mutex
	vmem VirtualMemoryProvider
	cfg  core.Config

	region []byte
	// used and metadata are page-granularity bitmaps: bit i of used means
	// page i is allocated to some zone; bit i of metadata means page i is
	// the first page of an AllocPages run, of any length (spec.md §4.1).
	used     []uint64
	metadata []uint64
	pages    int
	cursor   uint32 // rotating scan cursor, in page units

	zones      []*Zone
	nextZoneID uint32
}

// NewTable constructs a Table backed by vmem. A nil vmem defaults to
// NewMmapProvider, the production virtual-memory provider.
func NewTable(vmem VirtualMemoryProvider, cfg core.Config) *Table {
	if vmem == nil {
		vmem = NewMmapProvider()
	}
	t := &Table{vmem: vmem, cfg: cfg}
	// Pointers are 1-based (offset 0 is reserved null, spec.md §4.1), so the
	// region needs one byte of padding beyond pages*PageSize or the last
	// page's final byte would index past the mapped slice.
	region, err := vmem.Reserve(initialPages*PageSize + 1)
	if err != nil {
		// Falling back to heap-backed memory keeps the engine usable in
		// environments (sandboxed CI, some container runtimes) that deny
		// anonymous mmap; it is a non-fatal precondition, not a trap,
		// because correctness does not depend on the region being mmap'd.
		core.Report("arena: mmap reserve failed (%v), falling back to heap-backed region", err)
		t.vmem = heapProvider{}
		region, _ = t.vmem.Reserve(initialPages*PageSize + 1)
	}
	t.region = region
	t.pages = initialPages
	words := (t.pages + 63) / 64
	t.used = make([]uint64, words)
	t.metadata = make([]uint64, words)
	return t
}

func bitSet(bitmap []uint64, i int) bool  { return bitmap[i/64]&(1<<uint(i%64)) != 0 }
func bitMark(bitmap []uint64, i int)      { bitmap[i/64] |= 1 << uint(i%64) }
func bitClear(bitmap []uint64, i int)     { bitmap[i/64] &^= 1 << uint(i%64) }

// findRun scans t.used for n consecutive free pages starting at the rotating
// cursor, wrapping once. It returns the starting page index and true on
// success.
func (t *Table) findRun(n int) (int, bool) {
	start := int(t.cursor) % t.pages
	checked := 0
	i := start
	for checked < t.pages {
		if !bitSet(t.used, i) {
			run := 0
			j := i
			for run < n && checked+run < t.pages && !bitSet(t.used, (i+run)%t.pages) {
				run++
				j = (i + run) % t.pages
				_ = j
			}
			if run >= n {
				return i, true
			}
			checked += run + 1
			i = (i + run + 1) % t.pages
			continue
		}
		checked++
		i = (i + 1) % t.pages
	}
	return 0, false
}

// growForPages grows the region until at least n contiguous free pages
// exist, or traps if the virtual-memory provider cannot grow further.
func (t *Table) growForPages(n int) {
	for {
		newPages := t.pages * growthFactor
		for newPages-t.pages < n {
			newPages *= growthFactor
		}
		newRegion, err := t.vmem.Grow(t.region, newPages*PageSize+1)
		if err != nil {
			core.Trap("arena: failed to grow region from %d to %d pages: %v", t.pages, newPages, err)
		}
		t.region = newRegion
		words := (newPages + 63) / 64
		grownUsed := make([]uint64, words)
		copy(grownUsed, t.used)
		grownMeta := make([]uint64, words)
		copy(grownMeta, t.metadata)
		t.used = grownUsed
		t.metadata = grownMeta
		t.pages = newPages
		if _, ok := t.findRun(n); ok {
			return
		}
	}
}

// AllocPages marks n consecutive pages used and returns the Ptr of the first
// page, growing the region if necessary. The first page is flagged in the
// metadata bitmap as an allocation start; PageHeaderAt does not read that
// bitmap.
func (t *Table) AllocPages(n int) Ptr {
	if n <= 0 {
		core.Trap("arena: AllocPages requires n > 0, got %d", n)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	start, ok := t.findRun(n)
	if !ok {
		t.growForPages(n)
		start, ok = t.findRun(n)
		if !ok {
			core.Trap("arena: unable to satisfy %d-page allocation after growth", n)
		}
	}
	for i := start; i < start+n; i++ {
		bitMark(t.used, i)
	}
	bitMark(t.metadata, start)
	t.cursor = uint32((start + n) % t.pages)
	return pageBaseForIndex(uint32(start))
}

// ReleasePages marks n pages starting at base as free and, when the table's
// config requests it (AG_UNMAP_REUSABLE), advises the OS the pages are
// reusable.
func (t *Table) ReleasePages(base Ptr, n int) {
	t.mu.Lock()
	start := int(base.PageIndex())
	for i := start; i < start+n; i++ {
		bitClear(t.used, i)
		bitClear(t.metadata, i)
	}
	region := t.region
	t.mu.Unlock()

	if t.cfg.UnmapReusable {
		reportAdviseFailure(t.vmem.Advise(region, int(base)-1, n*PageSize))
	}
}

// registerZone assigns a slot for page-header lookups (ZoneOf) and a fresh
// monotonic zone id. The slot index is reused once released — it only ever
// needs to resolve the *current* occupant of a page — but the zone id never
// is, since spec.md §3 Invariant 4 requires it to keep WeakAttributeID
// generations from aliasing: reusing a slot index would be safe for ZoneOf,
// but reusing the id would let a weak reference captured against a
// long-dead zone appear to resolve against a freshly created one occupying
// the same slot.
func (t *Table) registerZone(z *Zone) (slot uint32, id core.ZoneID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextZoneID++
	id = core.ZoneID(t.nextZoneID)
	for i, existing := range t.zones {
		if existing == nil {
			t.zones[i] = z
			return uint32(i), id
		}
	}
	t.zones = append(t.zones, z)
	return uint32(len(t.zones) - 1), id
}

func (t *Table) unregisterZone(index uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(index) < len(t.zones) {
		t.zones[index] = nil
	}
}

// ZoneOf resolves the Zone owning the page at p, by way of the page header's
// zone index (spec.md §3: "masking [the offset] off yields a page-aligned
// pointer which, through the page header, reaches the owning zone").
func (t *Table) ZoneOf(p Ptr) *Zone {
	hdr := PageHeaderAt(t, p)
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(hdr.ZoneIndex) >= len(t.zones) {
		return nil
	}
	return t.zones[hdr.ZoneIndex]
}

// Region exposes the raw backing slice for callers (At, Bytes) that resolve
// a Ptr directly; it is not safe to retain across an allocation that might
// trigger a grow.
func (t *Table) Region() []byte { return t.region }

func (t *Table) String() string {
	return fmt.Sprintf("Table{pages=%d, zones=%d}", t.pages, len(t.zones))
}
