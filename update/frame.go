// Package update implements spec.md §4.5/§4.6's evaluation protocol: the
// update stack, cycle detection, cancellation, deadline, the read/write
// path, and the main-thread handler rendezvous. Per §5 ("evaluation is
// single-threaded per graph") and the teacher's own single-goroutine
// runtime.Engine.Step loop, Engine.UpdateAttribute is not fanned out across
// goroutines — concurrent callers are serialized by an exclusivity guard
// that traps on violation (§7's "multi-thread graph update").
package update

import "github.com/sbl8/attrgraph/core"

// Frame is one entry in the update stack: the attribute being evaluated,
// the options it was entered with, and whether cancel() has walked through
// it (spec.md §4.5's "UpdateStack frame records (attribute, flags) where
// flags include cancelled").
type Frame struct {
	Attribute   core.AttributeID
	Options     core.UpdateOptions
	Cancelled   bool
	seenChanged map[core.AttributeID]bool
}

// sawChange records that input changed during this frame's evaluation
// (spec.md §4.6). Nothing reads the recorded set; GetValue's changed result
// comes from the status of its own evaluation.
func (f *Frame) sawChange(input core.AttributeID) {
	if f.seenChanged == nil {
		f.seenChanged = make(map[core.AttributeID]bool)
	}
	f.seenChanged[input] = true
}
