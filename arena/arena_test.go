package arena

import (
	"testing"

	"github.com/sbl8/attrgraph/core"
)

func TestTableAllocPagesMarksUsed(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())

	p1 := tbl.AllocPages(1)
	p2 := tbl.AllocPages(1)

	if p1 == p2 {
		t.Fatalf("expected distinct pages, got %d and %d", p1, p2)
	}
	if p1.PageIndex() == p2.PageIndex() {
		t.Fatalf("expected distinct page indices, got %d", p1.PageIndex())
	}
}

func TestTableGrowsWhenExhausted(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())

	seen := make(map[uint32]bool)
	for i := 0; i < initialPages*2; i++ {
		p := tbl.AllocPages(1)
		idx := p.PageIndex()
		if seen[idx] {
			t.Fatalf("page index %d allocated twice", idx)
		}
		seen[idx] = true
	}
	if tbl.pages <= initialPages {
		t.Fatalf("expected table to grow past %d pages, got %d", initialPages, tbl.pages)
	}
}

func TestTableReleasePagesAllowsReuse(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())

	p := tbl.AllocPages(1)
	tbl.ReleasePages(p, 1)

	total := tbl.pages
	for i := 0; i < total; i++ {
		tbl.AllocPages(1)
	}
	// The released page should have been reused rather than forcing growth
	// for every one of the `total` allocations above.
	if tbl.pages > total*growthFactor {
		t.Fatalf("table grew more than expected, suggesting release did not free a reusable page")
	}
}

func TestZoneAllocBytesDistinctAndZeroed(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z := NewZone(tbl)
	defer z.Destroy()

	a := z.AllocBytes(16)
	b := z.AllocBytes(16)
	if a == b {
		t.Fatalf("expected distinct allocations, got %d twice", a)
	}
	region := Bytes(tbl, a, 16)
	for i, v := range region {
		if v != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, v)
		}
	}
}

func TestZoneAllocSpansPages(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z := NewZone(tbl)
	defer z.Destroy()

	// Allocate enough to force at least one additional page.
	n := int(UsablePageBytes)/32 + 4
	ptrs := make([]Ptr, 0, n)
	for i := 0; i < n; i++ {
		ptrs = append(ptrs, z.AllocBytes(32))
	}
	if z.headPage == z.tailPage {
		t.Fatalf("expected zone to span multiple pages after %d allocations", n)
	}
	for i, p := range ptrs {
		for j := i + 1; j < len(ptrs); j++ {
			if p == ptrs[j] {
				t.Fatalf("duplicate allocation at indices %d,%d: %d", i, j, p)
			}
		}
	}
}

func TestZoneFreeAndRecycle(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z := NewZone(tbl)
	defer z.Destroy()

	a := z.AllocBytes(64)
	z.Free(a, 64)

	b := z.AllocBytes(64)
	if b != a {
		t.Fatalf("expected recycled fragment at %d, got fresh allocation at %d", a, b)
	}
}

func TestZoneReallocPreservesPrefix(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z := NewZone(tbl)
	defer z.Destroy()

	p := z.AllocBytes(16)
	copy(Bytes(tbl, p, 16), []byte("0123456789abcdef"))

	grown := z.ReallocBytes(p, 16, 32)
	if got := string(Bytes(tbl, grown, 16)); got != "0123456789abcdef" {
		t.Fatalf("realloc did not preserve prefix, got %q", got)
	}
}

func TestPageHeaderResolvesZone(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z1 := NewZone(tbl)
	z2 := NewZone(tbl)
	defer z1.Destroy()
	defer z2.Destroy()

	p1 := z1.AllocBytes(8)
	p2 := z2.AllocBytes(8)

	if tbl.ZoneOf(p1) != z1 {
		t.Errorf("ZoneOf(p1) did not resolve to z1")
	}
	if tbl.ZoneOf(p2) != z2 {
		t.Errorf("ZoneOf(p2) did not resolve to z2")
	}
}

func TestZoneDestroyReleasesPages(t *testing.T) {
	t.Parallel()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z := NewZone(tbl)
	p := z.AllocBytes(8)
	base := p.PageBase()

	z.Destroy()

	// The page should now be free and reusable by a fresh zone.
	z2 := NewZone(tbl)
	defer z2.Destroy()
	if z2.headPage != base {
		t.Skip("allocator did not reuse the exact released page; acceptable under rotating-cursor scheduling")
	}
}

func TestAllocBytesTrapsOnOversizedRequest(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected AllocBytes to trap on an oversized request")
		}
	}()
	tbl := NewTable(heapProvider{}, core.DefaultConfig())
	z := NewZone(tbl)
	defer z.Destroy()
	z.AllocBytes(UsablePageBytes + 1)
}
