package graph

import (
	"time"
	"unsafe"

	"github.com/sbl8/attrgraph/core"
)

// CounterQuery selects a graph_counter metric (spec.md §6).
type CounterQuery int

const (
	CounterNodeCount CounterQuery = iota
	CounterSubgraphCount
	CounterGraphID
	CounterContextID
	CounterNeedsUpdate
	CounterThreadUpdating
)

// Counter answers spec.md §6's graph_counter(graph, query).
func (g *Graph) Counter(q CounterQuery) uint64 {
	switch q {
	case CounterNodeCount:
		g.s.mu.Lock()
		total := 0
		for _, sg := range g.s.subgraphs {
			total += sg.AttributeCount()
		}
		g.s.mu.Unlock()
		return uint64(total)
	case CounterSubgraphCount:
		g.s.mu.Lock()
		n := len(g.s.subgraphs)
		g.s.mu.Unlock()
		return uint64(n)
	case CounterGraphID:
		return g.s.id
	case CounterContextID:
		return uint64(g.Current.ID)
	case CounterNeedsUpdate:
		g.s.mu.Lock()
		needs := g.s.needsUpdate
		g.s.mu.Unlock()
		if needs {
			return 1
		}
		return 0
	case CounterThreadUpdating:
		if g.s.Engine.IsUpdating() {
			return 1
		}
		return 0
	default:
		core.Trap("graph: unknown counter query %d", q)
		return 0
	}
}

// CancelUpdate implements spec.md §6's cancel_update().
func (g *Graph) CancelUpdate() { g.s.Engine.CancelUpdate() }

// UpdateWasCancelled implements spec.md §6's update_was_cancelled().
func (g *Graph) UpdateWasCancelled() bool { return g.s.Engine.UpdateWasCancelled() }

// SetDeadline implements spec.md §6's set_deadline(graph, nanoseconds).
func (g *Graph) SetDeadline(d time.Duration) { g.s.Engine.SetDeadline(d) }

// UpdateValue implements spec.md §6's update_value(a, options).
func (g *Graph) UpdateValue(a core.AttributeID, opts core.UpdateOptions) core.UpdateStatus {
	return g.s.Engine.UpdateAttribute(a, opts)
}

// GetValue implements spec.md §6's get_value(a, options, type).
func (g *Graph) GetValue(a core.AttributeID, opts core.TraversalOptions, expectedType uint32) (unsafe.Pointer, bool, core.UpdateStatus) {
	return g.s.Engine.GetValue(a, opts, expectedType)
}

// InvalidateValue implements spec.md §6's invalidate_value(a): forces a's
// Dirty bit without running its update thunk, so the next read recomputes.
func (g *Graph) InvalidateValue(a core.AttributeID) {
	st := g.s.storeForAttribute(a)
	st.NodeAt(a).State |= core.StateDirty | core.StatePending
	st.MarkChanged(a)
}

// InvalidateAllValues implements spec.md §6's invalidate_all_values(graph):
// marks every attribute in every live subgraph dirty.
func (g *Graph) InvalidateAllValues() {
	g.s.mu.Lock()
	subgraphs := g.s.subgraphs
	g.s.mu.Unlock()

	for _, sg := range subgraphs {
		sg.Apply(0, func(a core.AttributeID) {
			st := g.s.storeForAttribute(a)
			st.NodeAt(a).State |= core.StateDirty | core.StatePending
			st.MarkChanged(a)
		})
	}
}
