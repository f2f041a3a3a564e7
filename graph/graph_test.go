package graph_test

import (
	"testing"
	"unsafe"

	"github.com/sbl8/attrgraph/combinators"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/graph"
	"github.com/sbl8/attrgraph/subgraph"
)

func TestSubgraphCreateRegistersAgainstGraph(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())
	sg := g.SubgraphCreate(nil)

	if g.Counter(graph.CounterSubgraphCount) != 1 {
		t.Fatalf("expected 1 live subgraph, got %d", g.Counter(graph.CounterSubgraphCount))
	}
	if !sg.IsValid() {
		t.Fatalf("expected freshly created subgraph to be valid")
	}
}

func TestGetValueAcrossTwoSubgraphs(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())
	producer := g.SubgraphCreate(nil)
	consumer := g.SubgraphCreate(nil)

	constType := combinators.Const[int32](g.Types())
	identity := combinators.Map[int32](g.Types(), func(v int32) int32 { return v })

	seven := int32(7)
	a := producer.AddAttribute(constType, nil, unsafe.Pointer(&seven), 0)
	b := consumer.AddAttribute(identity, nil, nil, 0)
	consumer.Store.AddInput(b, a, 0)

	ptr, changed, status := g.GetValue(b, 0, identity)
	if status != core.StatusChanged || !changed {
		t.Fatalf("expected first read of b to report changed, got status=%v", status)
	}
	if got := *(*int32)(ptr); got != 7 {
		t.Fatalf("expected b=7 (read through a different subgraph's store), got %d", got)
	}
}

func TestGraphInvalidateTearsDownRootSubgraphs(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())
	sg := g.SubgraphCreate(nil)

	fired := false
	sg.AddObserver(func() { fired = true })

	g.GraphInvalidate()

	if !fired {
		t.Errorf("expected invalidation to fire the subgraph's observer")
	}
	if sg.ValidationState() != subgraph.Invalidated {
		t.Errorf("expected subgraph to be Invalidated, got %v", sg.ValidationState())
	}
	if g.Counter(graph.CounterSubgraphCount) != 0 {
		t.Errorf("expected 0 live subgraphs after invalidate, got %d", g.Counter(graph.CounterSubgraphCount))
	}
}

func TestWithDeferredInvalidationDelaysUntilScopeExit(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())
	sg := g.SubgraphCreate(nil)

	g.WithDeferredInvalidation(func() {
		sg.Invalidate()
		if sg.ValidationState() != subgraph.InvalidationScheduled {
			t.Errorf("expected invalidation to be scheduled, not run, inside the deferring scope")
		}
	})

	if sg.ValidationState() != subgraph.Invalidated {
		t.Errorf("expected invalidation to run on scope exit, got %v", sg.ValidationState())
	}
}

func TestCreateSharedJoinsUnderlyingGraphWithNewContext(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())
	g2 := g.CreateShared("secondary")

	if g.ID() != g2.ID() {
		t.Fatalf("expected CreateShared to share the same underlying graph id")
	}
	if g2.Current.ID == g.Current.ID {
		t.Fatalf("expected CreateShared to allocate a distinct context id")
	}
	if g2.Current.Primary {
		t.Errorf("expected the shared graph's context to be non-primary")
	}

	sg := g2.SubgraphCreate(nil)
	if g.Counter(graph.CounterSubgraphCount) != 1 {
		t.Fatalf("expected a subgraph created through g2 to be visible via g's counters, got %d", g.Counter(graph.CounterSubgraphCount))
	}
	_ = sg
}

func TestCounterThreadUpdatingReflectsEngineBusy(t *testing.T) {
	t.Parallel()
	g := graph.New(nil, core.DefaultConfig())
	sg := g.SubgraphCreate(nil)
	typeID := combinators.Const[int32](g.Types())
	zero := int32(0)
	a := sg.AddAttribute(typeID, nil, unsafe.Pointer(&zero), 0)

	if g.Counter(graph.CounterThreadUpdating) != 0 {
		t.Fatalf("expected thread-updating counter to be 0 before any update")
	}
	g.UpdateValue(a, 0)
	if g.Counter(graph.CounterThreadUpdating) != 0 {
		t.Fatalf("expected thread-updating counter to be 0 once UpdateValue has returned")
	}
}
