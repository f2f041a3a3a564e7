package arena

// PageHeader sits at the first bytes of every page a Table hands out. It
// carries just enough bookkeeping for a Zone to thread its pages into a
// doubly-linked list and for Table.ZoneOf to resolve ownership — the "page
// header" spec.md §4.3 describes as reaching "the owning zone" via a
// page-aligned pointer.
type PageHeader struct {
	ZoneIndex uint32 // index into Table.zones; identifies the owning zone
	Next      Ptr    // next page in the owning zone's page list, or NullPtr
	Prev      Ptr    // previous page in the owning zone's page list, or NullPtr
	Flags     uint32
	_reserved [2]uint32
}

// PageHeaderSize is the fixed header cost subtracted from PageSize to get the
// bytes a Zone may actually bump-allocate from within a page.
const PageHeaderSize = 24 // 2*uint32 + 2*Ptr(uint32) + 2*uint32 reserved

// UsablePageBytes is the number of bytes available for zone allocation within
// a single page, after the header.
const UsablePageBytes = PageSize - PageHeaderSize

// PageHeaderAt returns the header of the page containing p.
func PageHeaderAt(t *Table, p Ptr) *PageHeader {
	return At[PageHeader](t, p.PageBase())
}

// pageDataStart returns the Ptr of the first usable (post-header) byte of the
// page based at base.
func pageDataStart(base Ptr) Ptr {
	return base + PageHeaderSize
}
