// Package trace implements spec.md §4.9/§9's Trace/Observer surface: a
// closed set of lifecycle and evaluation callback shapes, since (per §9)
// the set of event shapes is bounded even though the set of trace sinks
// listening to them is open. Grounded in the teacher's kernels.Catalog
// opcode-indexed dispatch table, mirrored here as an ordered slice of
// registered sinks rather than a map, so add/remove/foreach preserve
// insertion (and reverse-insertion) order the way spec.md §4.9 requires.
package trace

import "github.com/sbl8/attrgraph/core"

// Trace receives the engine's lifecycle and evaluation callbacks. Every
// method has a default no-op via NopTrace embedding, so a sink only
// implements what it cares about.
type Trace interface {
	BeginTrace(graphID uint64)
	EndTrace(graphID uint64)

	AttributeCreated(a core.AttributeID, typeID uint32)
	AttributeDestroyed(a core.AttributeID)

	BeginUpdate(a core.AttributeID)
	EndUpdate(a core.AttributeID, status core.UpdateStatus)

	EdgeAdded(from, to core.AttributeID)
	EdgeRemoved(from, to core.AttributeID)

	SetDirty(a core.AttributeID)
	SetPending(a core.AttributeID)
	MarkValue(a core.AttributeID, changed bool)

	CompareFailed(a core.AttributeID, offset, size uint32, typeID uint32)
	CycleDetected(a core.AttributeID)
	PassedDeadline(a core.AttributeID)

	CustomEvent(name string, attrs map[string]any)
}

// NopTrace is a Trace that does nothing; embed it to implement only the
// callbacks a sink cares about.
type NopTrace struct{}

func (NopTrace) BeginTrace(uint64)                                    {}
func (NopTrace) EndTrace(uint64)                                      {}
func (NopTrace) AttributeCreated(core.AttributeID, uint32)            {}
func (NopTrace) AttributeDestroyed(core.AttributeID)                  {}
func (NopTrace) BeginUpdate(core.AttributeID)                         {}
func (NopTrace) EndUpdate(core.AttributeID, core.UpdateStatus)        {}
func (NopTrace) EdgeAdded(core.AttributeID, core.AttributeID)         {}
func (NopTrace) EdgeRemoved(core.AttributeID, core.AttributeID)       {}
func (NopTrace) SetDirty(core.AttributeID)                            {}
func (NopTrace) SetPending(core.AttributeID)                          {}
func (NopTrace) MarkValue(core.AttributeID, bool)                     {}
func (NopTrace) CompareFailed(core.AttributeID, uint32, uint32, uint32) {}
func (NopTrace) CycleDetected(core.AttributeID)                       {}
func (NopTrace) PassedDeadline(core.AttributeID)                      {}
func (NopTrace) CustomEvent(string, map[string]any)                   {}

var _ Trace = NopTrace{}

// List is an ordered registry of trace sinks, supporting add/remove by id
// and reverse-order iteration (spec.md §4.9's foreach_trace).
type List struct {
	next   uint64
	ids    []uint64
	traces []Trace
}

// Add registers t, calling its BeginTrace hook, and returns an id usable
// with Remove.
func (l *List) Add(graphID uint64, t Trace) uint64 {
	l.next++
	id := l.next
	l.ids = append(l.ids, id)
	l.traces = append(l.traces, t)
	t.BeginTrace(graphID)
	return id
}

// Remove unregisters the trace sink with the given id, calling its
// EndTrace hook.
func (l *List) Remove(graphID uint64, id uint64) {
	for i, existing := range l.ids {
		if existing == id {
			t := l.traces[i]
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			l.traces = append(l.traces[:i], l.traces[i+1:]...)
			t.EndTrace(graphID)
			return
		}
	}
}

// ForEach invokes fn for every registered sink in reverse registration
// order, matching spec.md §4.9's foreach_trace.
func (l *List) ForEach(fn func(Trace)) {
	for i := len(l.traces) - 1; i >= 0; i-- {
		fn(l.traces[i])
	}
}
