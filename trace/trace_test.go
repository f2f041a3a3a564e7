package trace

import (
	"testing"

	"github.com/sbl8/attrgraph/core"
)

type recordingTrace struct {
	NopTrace
	name string
	log  *[]string
}

func (r recordingTrace) BeginTrace(uint64) { *r.log = append(*r.log, "begin:"+r.name) }
func (r recordingTrace) EndTrace(uint64)   { *r.log = append(*r.log, "end:"+r.name) }
func (r recordingTrace) CycleDetected(core.AttributeID) {
	*r.log = append(*r.log, "cycle:"+r.name)
}

func TestListForEachRunsInReverseRegistrationOrder(t *testing.T) {
	t.Parallel()
	var log []string
	var list List

	idA := list.Add(1, recordingTrace{name: "a", log: &log})
	_ = list.Add(1, recordingTrace{name: "b", log: &log})

	log = nil
	list.ForEach(func(tr Trace) { tr.CycleDetected(0) })

	if len(log) != 2 || log[0] != "cycle:b" || log[1] != "cycle:a" {
		t.Fatalf("expected reverse-order dispatch [cycle:b cycle:a], got %v", log)
	}

	list.Remove(1, idA)
	log = nil
	list.ForEach(func(tr Trace) { tr.CycleDetected(0) })
	if len(log) != 1 || log[0] != "cycle:b" {
		t.Fatalf("expected only b to remain after removing a, got %v", log)
	}
}

func TestListAddAndRemoveInvokeBeginEndTrace(t *testing.T) {
	t.Parallel()
	var log []string
	var list List

	id := list.Add(7, recordingTrace{name: "x", log: &log})
	list.Remove(7, id)

	if len(log) != 2 || log[0] != "begin:x" || log[1] != "end:x" {
		t.Fatalf("expected [begin:x end:x], got %v", log)
	}
}
