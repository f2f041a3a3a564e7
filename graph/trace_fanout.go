package graph

import (
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/trace"
)

// fanoutTrace adapts the graph's ordered trace.List into the single
// trace.Trace the update.Engine calls directly — spec.md §4.9's
// foreach_trace, run in reverse registration order on every event the
// engine raises.
type fanoutTrace struct {
	trace.NopTrace
	list *trace.List
}

func (f *fanoutTrace) BeginUpdate(a core.AttributeID) {
	f.list.ForEach(func(t trace.Trace) { t.BeginUpdate(a) })
}

func (f *fanoutTrace) EndUpdate(a core.AttributeID, status core.UpdateStatus) {
	f.list.ForEach(func(t trace.Trace) { t.EndUpdate(a, status) })
}

func (f *fanoutTrace) MarkValue(a core.AttributeID, changed bool) {
	f.list.ForEach(func(t trace.Trace) { t.MarkValue(a, changed) })
}

func (f *fanoutTrace) CycleDetected(a core.AttributeID) {
	f.list.ForEach(func(t trace.Trace) { t.CycleDetected(a) })
}

func (f *fanoutTrace) PassedDeadline(a core.AttributeID) {
	f.list.ForEach(func(t trace.Trace) { t.PassedDeadline(a) })
}

func (f *fanoutTrace) CompareFailed(a core.AttributeID, offset, size uint32, typeID uint32) {
	f.list.ForEach(func(t trace.Trace) { t.CompareFailed(a, offset, size, typeID) })
}

func (f *fanoutTrace) CustomEvent(name string, attrs map[string]any) {
	f.list.ForEach(func(t trace.Trace) { t.CustomEvent(name, attrs) })
}

var _ trace.Trace = (*fanoutTrace)(nil)
