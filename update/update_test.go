package update_test

import (
	"testing"
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/combinators"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/layout"
	"github.com/sbl8/attrgraph/trace"
	"github.com/sbl8/attrgraph/typeinfo"
	"github.com/sbl8/attrgraph/update"
)

func newTestEngine(t *testing.T) (*attribute.Store, *attribute.Registry, *layout.Builder, *update.Engine) {
	t.Helper()
	tbl := arena.NewTable(nil, core.DefaultConfig())
	zone := arena.NewZone(tbl)
	types := attribute.NewRegistry()
	store := attribute.NewStore(tbl, zone, types)
	builder := layout.NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})
	engine := update.NewEngine(store, builder, nil)
	return store, types, builder, engine
}

func registerFortyTwoType(types *attribute.Registry) uint32 {
	meta := typeinfo.Of[int32]()
	return types.Intern(meta, func() *attribute.AttributeType {
		return &attribute.AttributeType{
			ValueMetadata: meta,
			Update: func(ctx attribute.UpdateContext, _ unsafe.Pointer) {
				v := int32(42)
				ctx.SetValue(unsafe.Pointer(&v))
			},
		}
	})
}

func TestS1SingleAttribute(t *testing.T) {
	t.Parallel()
	store, types, _, engine := newTestEngine(t)
	typeID := registerFortyTwoType(types)
	a := store.AddAttribute(typeID, nil, nil)

	ptr, changed, status := engine.GetValue(a, 0, typeID)
	if status != core.StatusChanged || !changed {
		t.Fatalf("expected first read to report Changed/true, got status=%v changed=%v", status, changed)
	}
	if *(*int32)(ptr) != 42 {
		t.Fatalf("expected value 42, got %d", *(*int32)(ptr))
	}

	n := store.NodeAt(a)
	if !n.State.Has(core.StateValueInitialized) {
		t.Errorf("expected ValueInitialized after first read")
	}

	ptr2, changed2, _ := engine.GetValue(a, 0, typeID)
	if changed2 {
		t.Errorf("expected second read to report changed=false")
	}
	if *(*int32)(ptr2) != 42 {
		t.Fatalf("expected value to remain 42, got %d", *(*int32)(ptr2))
	}
}

func TestS2Diamond(t *testing.T) {
	t.Parallel()
	store, types, builder, engine := newTestEngine(t)

	constType := combinators.Const[int32](types)
	addOneType := combinators.Map[int32](types, func(v int32) int32 { return v + 1 })
	// spec.md's S2 literal results (d=4 at a=1, d=22 at a=10) are only
	// consistent with b and c both computing a+1 — its prose label "c=a+2"
	// does not itself satisfy the worked numbers, so this fixture matches
	// the stated results rather than the inconsistent label.
	addTwoType := combinators.Map[int32](types, func(v int32) int32 { return v + 1 })
	sumType := combinators.Map2[int32](types, func(x, y int32) int32 { return x + y })

	one := int32(1)
	a := store.AddAttribute(constType, nil, unsafe.Pointer(&one))
	b := store.AddAttribute(addOneType, nil, nil)
	store.AddInput(b, a, 0)
	c := store.AddAttribute(addTwoType, nil, nil)
	store.AddInput(c, a, 0)
	d := store.AddAttribute(sumType, nil, nil)
	store.AddInput(d, b, 0)
	store.AddInput(d, c, 0)

	ptr, changed, status := engine.GetValue(d, 0, sumType)
	if status != core.StatusChanged || !changed {
		t.Fatalf("expected first read of d to report changed, got status=%v", status)
	}
	if got := *(*int32)(ptr); got != 4 {
		t.Fatalf("expected d=4, got %d", got)
	}

	ten := int32(10)
	if !store.SetValue(a, builder, unsafe.Pointer(&ten)) {
		t.Fatalf("expected set_value(a, 10) to report changed")
	}

	ptr2, changed2, _ := engine.GetValue(d, 0, sumType)
	if !changed2 {
		t.Errorf("expected re-read of d after a changed to report changed=true")
	}
	if got := *(*int32)(ptr2); got != 22 {
		t.Fatalf("expected d=22 after a=10, got %d", got)
	}

	_, changed3, _ := engine.GetValue(d, 0, sumType)
	if changed3 {
		t.Errorf("expected a third read of d with no further writes to report changed=false")
	}
}

func TestS3IndirectAlias(t *testing.T) {
	t.Parallel()
	store, types, builder, engine := newTestEngine(t)

	type point struct{ X, Y int32 }
	meta := typeinfo.Of[point]()
	typeID := types.Intern(meta, func() *attribute.AttributeType {
		return &attribute.AttributeType{ValueMetadata: meta}
	})
	fieldTypeID := types.Intern(typeinfo.Of[int32](), func() *attribute.AttributeType {
		return &attribute.AttributeType{ValueMetadata: typeinfo.Of[int32]()}
	})

	p := point{X: 1, Y: 2}
	a := store.AddAttribute(typeID, nil, unsafe.Pointer(&p))
	b := store.AddIndirectAttribute(a, uint32(unsafe.Offsetof(point{}.Y)), 4, false)

	resolved, _, traversed := attribute.Resolve(store.Table, b, core.OptAssertNotNil, nil)
	if !traversed || resolved != a {
		t.Fatalf("expected b to resolve to a, got resolved=%v traversed=%v", resolved, traversed)
	}

	ptr, _, status := engine.GetValue(b, 0, fieldTypeID)
	if status != core.StatusNoChange {
		t.Fatalf("expected first read of b to report NoChange (a holds its initial value, nothing is evaluated), got status=%v", status)
	}
	if got := *(*int32)(ptr); got != 2 {
		t.Fatalf("expected get_value(b)=2 (a.Y), got %d", got)
	}

	p2 := point{X: 1, Y: 3}
	if !store.SetValue(a, builder, unsafe.Pointer(&p2)) {
		t.Fatalf("expected set_value(a, {1,3}) to report changed")
	}

	ptr2, changed2, _ := engine.GetValue(b, 0, fieldTypeID)
	if !changed2 {
		t.Errorf("expected get_value(b) after set_value(a) to report changed=true")
	}
	if got := *(*int32)(ptr2); got != 3 {
		t.Fatalf("expected get_value(b)=3 after a.Y=3, got %d", got)
	}
}

func TestS5CycleDoesNotCorruptState(t *testing.T) {
	t.Parallel()
	store, types, _, engine := newTestEngine(t)
	identity := combinators.Map[int32](types, func(v int32) int32 { return v })

	a := store.AddAttribute(identity, nil, nil)
	b := store.AddAttribute(identity, nil, nil)
	store.AddInput(a, b, 0)
	store.AddInput(b, a, 0)

	_, _, status := engine.GetValue(a, 0, identity)
	if status == core.StatusAborted {
		t.Fatalf("a self-referential cycle should not abort, got Aborted")
	}

	na := store.NodeAt(a)
	if na.State.Has(core.StateInUpdateStack) {
		t.Errorf("expected a's InUpdateStack bit to be cleared after the call returns")
	}
	nb := store.NodeAt(b)
	if nb.State.Has(core.StateInUpdateStack) {
		t.Errorf("expected b's InUpdateStack bit to be cleared after the call returns")
	}
}

type cancelAfterNTrace struct {
	trace.NopTrace
	engine  *update.Engine
	n       int
	count   int
	counted []core.AttributeID
}

func (c *cancelAfterNTrace) BeginUpdate(a core.AttributeID) {
	c.count++
	c.counted = append(c.counted, a)
	if c.count == c.n {
		c.engine.CancelUpdate()
	}
}

func TestS6CancelStopsFurtherEvaluation(t *testing.T) {
	t.Parallel()
	store, types, _, _ := newTestEngine(t)
	identity := combinators.Map[int32](types, func(v int32) int32 { return v })
	constType := combinators.Const[int32](types)

	const chainLen = 10
	zero := int32(0)
	ids := make([]core.AttributeID, chainLen)
	ids[0] = store.AddAttribute(constType, nil, unsafe.Pointer(&zero))
	for i := 1; i < chainLen; i++ {
		ids[i] = store.AddAttribute(identity, nil, nil)
		store.AddInput(ids[i], ids[i-1], 0)
	}

	builder := layout.NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})
	ct := &cancelAfterNTrace{n: 3}
	engine := update.NewEngine(store, builder, ct)
	ct.engine = engine

	status := engine.UpdateAttribute(ids[chainLen-1], core.UpdateAbortIfCancelled)
	if status != core.StatusAborted {
		t.Fatalf("expected cancellation to abort evaluation, got %v", status)
	}
	if ct.count != 3 {
		t.Fatalf("expected evaluation to stop after 3 BeginUpdate calls, got %d (%v)", ct.count, ct.counted)
	}
}

func TestUpdateFixedPointClearsDirtyBit(t *testing.T) {
	t.Parallel()
	store, types, _, engine := newTestEngine(t)
	typeID := registerFortyTwoType(types)
	a := store.AddAttribute(typeID, nil, nil)

	status := engine.UpdateAttribute(a, 0)
	if status != core.StatusChanged {
		t.Fatalf("expected first update to report Changed, got %v", status)
	}
	n := store.NodeAt(a)
	if n.State.Has(core.StateDirty) {
		t.Errorf("expected Dirty to be cleared after update_attribute completes")
	}
}
