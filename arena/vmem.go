package arena

import (
	"fmt"
	"sync"

	"github.com/edsrzf/mmap-go"
	"github.com/sbl8/attrgraph/core"
	"golang.org/x/sys/unix"
)

// VirtualMemoryProvider is the "external virtual-memory provider" spec.md §1
// names as an out-of-scope collaborator: the operating-system mapping
// primitives the Table uses to grow its region. It is an interface precisely
// so the Table never depends on a concrete OS mechanism; MmapProvider below
// is the production default, backed by github.com/edsrzf/mmap-go.
type VirtualMemoryProvider interface {
	// Reserve maps a fresh, zeroed region of the given size and returns it.
	Reserve(size int) ([]byte, error)
	// Grow maps a new region of newSize, copies old into its prefix, and
	// unmaps old. Real "remap in place" (mremap(2) with MREMAP_MAYMOVE) is
	// Linux-specific; the interface boundary lets a platform-specific
	// provider implement true in-place growth while the portable default
	// here does copy-and-remap, which is semantically equivalent from the
	// Table's point of view since all addressing is offset-based (Ptr),
	// never by live pointer.
	Grow(old []byte, newSize int) ([]byte, error)
	// Release unmaps a region entirely (used at Table shutdown in tests).
	Release(region []byte) error
	// Advise marks a byte range as reusable-but-retained, the "free but
	// reusable" advisory spec.md §4.1 calls for when reclaiming pages
	// (AG_UNMAP_REUSABLE, spec.md §6).
	Advise(region []byte, offset, length int) error
}

// MmapProvider is the default VirtualMemoryProvider, mapping anonymous
// memory via mmap-go and issuing MADV_FREE advisories via golang.org/x/sys/unix,
// the way a production build of this system would rather than faking the
// arena out of make([]byte, ...).
type MmapProvider struct {
	mu      sync.Mutex
	mapped  map[uintptr]mmap.MMap
}

// NewMmapProvider constructs the default mmap-backed provider.
func NewMmapProvider() *MmapProvider {
	return &MmapProvider{mapped: make(map[uintptr]mmap.MMap)}
}

func (p *MmapProvider) track(m mmap.MMap) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := []byte(m)
	if len(b) > 0 {
		p.mapped[sliceAddr(b)] = m
	}
	return b
}

func (p *MmapProvider) untrack(b []byte) (mmap.MMap, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(b) == 0 {
		return nil, false
	}
	m, ok := p.mapped[sliceAddr(b)]
	if ok {
		delete(p.mapped, sliceAddr(b))
	}
	return m, ok
}

func (p *MmapProvider) Reserve(size int) ([]byte, error) {
	m, err := mmap.MapRegion(nil, size, mmap.RDWR, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap reserve %d bytes: %w", size, err)
	}
	return p.track(m), nil
}

func (p *MmapProvider) Grow(old []byte, newSize int) ([]byte, error) {
	fresh, err := p.Reserve(newSize)
	if err != nil {
		return nil, err
	}
	copy(fresh, old)
	if err := p.Release(old); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (p *MmapProvider) Release(region []byte) error {
	m, ok := p.untrack(region)
	if !ok {
		return nil
	}
	if err := m.Unmap(); err != nil {
		return fmt.Errorf("arena: munmap: %w", err)
	}
	return nil
}

func (p *MmapProvider) Advise(region []byte, offset, length int) error {
	if offset < 0 || length <= 0 || offset+length > len(region) {
		return fmt.Errorf("arena: advise range out of bounds")
	}
	return unix.Madvise(region[offset:offset+length], unix.MADV_FREE)
}

// heapProvider is a VirtualMemoryProvider backed by plain Go heap
// allocations. It exists for platforms or test environments where mmap is
// unavailable or undesirable (e.g. under -race with heavy page churn); the
// Table falls back to it only if the mmap provider fails to reserve the
// initial region.
type heapProvider struct{}

func (heapProvider) Reserve(size int) ([]byte, error) { return make([]byte, size), nil }

func (heapProvider) Grow(old []byte, newSize int) ([]byte, error) {
	fresh := make([]byte, newSize)
	copy(fresh, old)
	return fresh, nil
}

func (heapProvider) Release([]byte) error { return nil }

func (heapProvider) Advise(region []byte, offset, length int) error {
	if offset < 0 || length <= 0 || offset+length > len(region) {
		return fmt.Errorf("arena: advise range out of bounds")
	}
	for i := offset; i < offset+length; i++ {
		region[i] = 0
	}
	return nil
}

// reportAdviseFailure logs a failed Advise call as a non-fatal precondition:
// losing the "return pages to the OS" optimization never corrupts state.
func reportAdviseFailure(err error) {
	if err != nil {
		core.Report("arena: advise reusable pages failed: %v", err)
	}
}
