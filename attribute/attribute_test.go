package attribute

import (
	"testing"
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/layout"
	"github.com/sbl8/attrgraph/typeinfo"
)

func newTestStore(t *testing.T) (*Store, *Registry) {
	t.Helper()
	tbl := arena.NewTable(nil, core.DefaultConfig())
	zone := arena.NewZone(tbl)
	types := NewRegistry()
	return NewStore(tbl, zone, types), types
}

func registerIntType(types *Registry) uint32 {
	return types.Intern(typeinfo.Of[int32](), func() *AttributeType {
		return &AttributeType{ValueMetadata: typeinfo.Of[int32]()}
	})
}

func TestAddAttributeKindIsDirect(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t)
	typeID := registerIntType(types)

	v := int32(42)
	a := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))
	if a.Kind() != core.KindDirect {
		t.Errorf("expected Direct kind, got %d", a.Kind())
	}
	if core.NilAttributeID.Kind() != core.KindNil {
		t.Errorf("expected nil id to report KindNil")
	}
}

func TestAddIndirectAttributeKindIsIndirect(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t)
	typeID := registerIntType(types)
	v := int32(1)
	a := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))

	b := s.AddIndirectAttribute(a, 0, 4, false)
	if b.Kind() != core.KindIndirect {
		t.Errorf("expected Indirect kind, got %d", b.Kind())
	}
}

func TestAddInputMirrorsOutputEdge(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t)
	typeID := registerIntType(types)
	v := int32(1)
	u := s.AddAttribute(typeID, nil, nil)
	_ = v
	vAttr := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))

	s.AddInput(u, vAttr, 0)

	outs := s.Outputs(vAttr)
	if len(outs) != 1 || outs[0].Target != u {
		t.Fatalf("expected v to have one output edge to u, got %+v", outs)
	}
	ins := s.Inputs(u)
	if len(ins) != 1 || ins[0].Source != vAttr {
		t.Fatalf("expected u to have one input edge from v, got %+v", ins)
	}
}

func TestRemoveInputRemovesMirroredOutputEdge(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t)
	typeID := registerIntType(types)
	v := int32(1)
	u := s.AddAttribute(typeID, nil, nil)
	vAttr := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))

	s.AddInput(u, vAttr, 0)
	s.RemoveInput(u, 0)

	if len(s.Outputs(vAttr)) != 0 {
		t.Errorf("expected output edge to be removed, got %+v", s.Outputs(vAttr))
	}
	if len(s.Inputs(u)) != 0 {
		t.Errorf("expected input edge to be removed, got %+v", s.Inputs(u))
	}
}

func TestSetValueIdempotentChangedFlag(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t)
	typeID := registerIntType(types)
	builder := layout.NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})

	v := int32(1)
	a := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))
	u := s.AddAttribute(typeID, nil, nil)
	s.AddInput(u, a, 0)

	first := int32(2)
	if !s.SetValue(a, builder, unsafe.Pointer(&first)) {
		t.Errorf("expected first differing set_value to report changed")
	}
	ins := s.Inputs(u)
	if ins[0].Options&core.InputChanged == 0 {
		t.Errorf("expected u's input edge to be marked Changed after a's value changed")
	}

	second := int32(2)
	if s.SetValue(a, builder, unsafe.Pointer(&second)) {
		t.Errorf("expected repeating set_value with an equal value to report unchanged")
	}
}

func TestResolveIndirectAlias(t *testing.T) {
	t.Parallel()
	s, types := newTestStore(t)
	typeID := registerIntType(types)
	v := int32(7)
	a := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))
	b := s.AddIndirectAttribute(a, 0, 4, false)

	resolved, offset, traversed := Resolve(s.Table, b, core.OptAssertNotNil, nil)
	if resolved != a {
		t.Errorf("expected resolve to reach a, got %v", resolved)
	}
	if offset != 0 || !traversed {
		t.Errorf("expected offset 0 and traversed=true, got offset=%d traversed=%v", offset, traversed)
	}
}

func TestResolveNilTrapsWithAssertNotNil(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Resolve to trap on a nil terminus with AssertNotNil")
		}
	}()
	tbl := arena.NewTable(nil, core.DefaultConfig())
	Resolve(tbl, core.NilAttributeID, core.OptAssertNotNil, nil)
}

func TestWeakAttributeExpiresAfterZoneDestroy(t *testing.T) {
	t.Parallel()
	tbl := arena.NewTable(nil, core.DefaultConfig())
	zone := arena.NewZone(tbl)
	types := NewRegistry()
	s := NewStore(tbl, zone, types)
	typeID := registerIntType(types)

	v := int32(5)
	a := s.AddAttribute(typeID, nil, unsafe.Pointer(&v))
	weak := MakeWeak(tbl, a)

	if !zoneIsLive(tbl, weak) {
		t.Fatalf("expected weak reference to be live before zone destruction")
	}
	zone.Destroy()
	if zoneIsLive(tbl, weak) {
		t.Errorf("expected weak reference to be expired after zone destruction")
	}
}
