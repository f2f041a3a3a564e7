package subgraph

import (
	"testing"
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/typeinfo"
)

type noopHost struct {
	deferring bool
	queued    []*Subgraph
	notified  []*Subgraph
}

func (h *noopHost) IsDeferringInvalidation() bool { return h.deferring }
func (h *noopHost) EnqueueDeferredInvalidation(s *Subgraph) {
	h.queued = append(h.queued, s)
}
func (h *noopHost) NotifySubgraphInvalidated(s *Subgraph) {
	h.notified = append(h.notified, s)
}

func newTestSetup(t *testing.T) (*arena.Table, *attribute.Registry, uint32) {
	t.Helper()
	tbl := arena.NewTable(nil, core.DefaultConfig())
	types := attribute.NewRegistry()
	typeID := types.Intern(typeinfo.Of[int32](), func() *attribute.AttributeType {
		return &attribute.AttributeType{ValueMetadata: typeinfo.Of[int32]()}
	})
	return tbl, types, typeID
}

func TestAddChildLinksBothDirections(t *testing.T) {
	t.Parallel()
	tbl, types, _ := newTestSetup(t)
	host := &noopHost{}
	parent := New(tbl, types, host, 1, 0)
	child := New(tbl, types, host, 1, 1)

	parent.AddChild(child, TagEnclosing)

	if !child.AncestorOf(parent) {
		t.Errorf("expected parent to be recorded as an ancestor of child")
	}
}

func TestRemoveChildUnlinksBothDirections(t *testing.T) {
	t.Parallel()
	tbl, types, _ := newTestSetup(t)
	host := &noopHost{}
	parent := New(tbl, types, host, 1, 0)
	child := New(tbl, types, host, 1, 1)
	parent.AddChild(child, TagEnclosing)

	parent.RemoveChild(child)

	if child.AncestorOf(parent) {
		t.Errorf("expected parent/child link to be fully removed")
	}
}

func TestImmediateInvalidationCascadesThroughSameContextChildren(t *testing.T) {
	t.Parallel()
	tbl, types, typeID := newTestSetup(t)
	host := &noopHost{}
	parent := New(tbl, types, host, 1, 0)
	child := New(tbl, types, host, 1, 1)
	parent.AddChild(child, TagEnclosing)

	v := int32(1)
	a := child.AddAttribute(typeID, nil, unsafe.Pointer(&v), 0)
	_ = a

	fired := false
	parent.AddObserver(func() { fired = true })

	parent.Invalidate()

	if !fired {
		t.Errorf("expected parent's observer to fire on invalidation")
	}
	if parent.ValidationState() != Invalidated {
		t.Errorf("expected parent to report Invalidated, got %v", parent.ValidationState())
	}
	if child.ValidationState() != Invalidated {
		t.Errorf("expected child sharing context to cascade to Invalidated, got %v", child.ValidationState())
	}
}

func TestDeferredInvalidationDelaysNodeDestruction(t *testing.T) {
	t.Parallel()
	tbl, types, _ := newTestSetup(t)
	host := &noopHost{deferring: true}
	s := New(tbl, types, host, 1, 0)

	s.Invalidate()

	if s.ValidationState() != InvalidationScheduled {
		t.Fatalf("expected InvalidationScheduled while deferring, got %v", s.ValidationState())
	}
	if len(host.queued) != 1 || host.queued[0] != s {
		t.Fatalf("expected s to be queued on the host, got %+v", host.queued)
	}

	s.RunDeferredInvalidation()
	if s.ValidationState() != Invalidated {
		t.Errorf("expected Invalidated after RunDeferredInvalidation, got %v", s.ValidationState())
	}
}

func TestApplyVisitsEachDescendantOnce(t *testing.T) {
	t.Parallel()
	tbl, types, typeID := newTestSetup(t)
	host := &noopHost{}
	parent := New(tbl, types, host, 1, 0)
	childA := New(tbl, types, host, 1, 1)
	childB := New(tbl, types, host, 1, 2)
	parent.AddChild(childA, TagEnclosing)
	parent.AddChild(childB, TagEnclosing)
	// diamond: both children share a common grandchild
	grandchild := New(tbl, types, host, 1, 3)
	childA.AddChild(grandchild, TagEnclosing)
	childB.AddChild(grandchild, TagShared)

	v := int32(1)
	grandchild.AddAttribute(typeID, nil, unsafe.Pointer(&v), 1)

	count := 0
	parent.Apply(0, func(core.AttributeID) { count++ })

	if count != 1 {
		t.Errorf("expected grandchild's single attribute to be visited exactly once, got %d", count)
	}
}

func TestNodeCacheFetchReusesFreedNodeOfSameType(t *testing.T) {
	t.Parallel()
	cache := NewNodeCache(8)

	var allocated, reset int
	allocate := func() core.AttributeID { allocated++; return core.AttributeID(allocated * 4) }
	resetNode := func(core.AttributeID) { reset++ }
	bodyEqual := func(core.AttributeID) bool { return true }

	first := cache.Fetch(42, 1, bodyEqual, resetNode, allocate)
	cache.Insert(1, first)

	second := cache.Fetch(99, 1, func(core.AttributeID) bool { return false }, resetNode, allocate)

	if second != first {
		t.Errorf("expected the freed node to be reused on a miss, got new=%v old=%v", second, first)
	}
	if reset != 1 {
		t.Errorf("expected resetNode to be called once, got %d", reset)
	}
	if allocated != 1 {
		t.Errorf("expected allocate to be called only once, got %d", allocated)
	}
}

func TestNodeCacheCollectEvictsStaleGenerations(t *testing.T) {
	t.Parallel()
	cache := NewNodeCache(8)
	allocate := func() core.AttributeID { return core.AttributeID(4) }
	bodyEqual := func(core.AttributeID) bool { return true }

	cache.Fetch(1, 1, bodyEqual, func(core.AttributeID) {}, allocate)

	var evicted []core.AttributeID
	for i := 0; i < 4; i++ {
		evicted = append(evicted, cache.Collect(1)...)
	}

	if len(evicted) != 1 {
		t.Errorf("expected the stale entry to be evicted, got %v", evicted)
	}
}

func TestTreeElementBracketsNestCorrectly(t *testing.T) {
	t.Parallel()
	tbl, types, typeID := newTestSetup(t)
	host := &noopHost{}
	s := New(tbl, types, host, 1, 0)

	outer := s.BeginTreeElement("outer", typeID)
	inner := s.BeginTreeElement("inner", typeID)
	v := int32(9)
	a := s.AddAttribute(typeID, nil, unsafe.Pointer(&v), 0)
	s.AddTreeValue("field", a, typeID)
	s.EndTreeElement(inner)
	s.EndTreeElement(outer)

	if len(outer.Children) != 1 || outer.Children[0] != inner {
		t.Fatalf("expected inner to be recorded as outer's child, got %+v", outer.Children)
	}
	if len(inner.Values) != 1 || inner.Values[0].Attribute != a {
		t.Errorf("expected the tree value to be attached to inner, got %+v", inner.Values)
	}
	if s.CurrentTreeElement() != nil {
		t.Errorf("expected no tree element to be open after both ends, got %+v", s.CurrentTreeElement())
	}
}
