package update

import (
	"unsafe"

	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/core"
)

// GetValue implements spec.md §4.6's get_value: resolve the handle,
// recompute if stale, and report whether the value changed during this
// call. expectedType of zero skips the type-identity check (used by
// internal callers that have already validated it). A returned status of
// Aborted or NeedsCallMainHandler means ptr is invalid and must not be read.
func (e *Engine) GetValue(a core.AttributeID, opts core.TraversalOptions, expectedType uint32) (unsafe.Pointer, bool, core.UpdateStatus) {
	release := e.acquire()
	defer release()
	return e.getValue(a, opts, expectedType)
}

func (e *Engine) getValue(a core.AttributeID, opts core.TraversalOptions, expectedType uint32) (unsafe.Pointer, bool, core.UpdateStatus) {
	// Resolve for addressing, not diagnostics: OptReportIndirectionOffset's
	// +1 bias on the returned offset (resolve.go) exists so a caller can
	// tell "resolved through indirection" apart from "no indirection" in
	// trace output. Mixing that bias into pointer arithmetic here would
	// address one byte off through every indirect alias, so it's masked out
	// before the resolve that actually locates the value.
	resolveOpts := (opts | core.OptUpdateDependencies) &^ core.OptReportIndirectionOffset
	resolved, offset, traversed := attribute.Resolve(e.storeFor(a).Table, a, resolveOpts, func(dep core.AttributeID) {
		e.updateAttribute(dep, 0)
	})
	if resolved.IsNil() {
		return nil, false, core.StatusNoChange
	}

	store := e.storeFor(resolved)
	n := store.NodeAt(resolved)
	// An IndirectNode carries no TypeID of its own (attribute/indirect_ops.go):
	// once traversed, n is the aliased source's Direct node, whose TypeID
	// describes the source's full value (e.g. a struct), not the field b
	// aliases into it. Only a direct, non-aliased read can be checked
	// against the caller's expected field type here.
	if !traversed && expectedType != 0 && n.TypeID != expectedType {
		core.Trap("update: get_value type mismatch: expected type %d, attribute has type %d", expectedType, n.TypeID)
	}

	status := core.StatusNoChange
	if !n.State.Has(core.StateValueInitialized) || n.State.Has(core.StateDirty) {
		status = e.updateAttribute(resolved, 0)
		if status == core.StatusAborted || status == core.StatusNeedsCallMainHandler {
			return nil, false, status
		}
	}

	ptr, ok := store.RawValue(resolved)
	if ok && offset != 0 {
		ptr = unsafe.Add(ptr, uintptr(offset))
	}
	changed := status == core.StatusChanged
	e.Trace.MarkValue(resolved, changed)
	return ptr, changed, status
}

// getInputValue implements spec.md §4.6's get_input_value: a GetValue that
// additionally registers a dynamic input edge from self to input (if one
// doesn't already exist) and folds the read into self's current frame's
// observed-changed set.
func (e *Engine) getInputValue(self, input core.AttributeID) (unsafe.Pointer, bool) {
	selfStore := e.storeFor(self)
	if !selfStore.HasInput(self, input) {
		selfStore.AddInput(self, input, core.InputUnprefetched)
	}

	ptr, changed, status := e.getValue(input, core.OptUpdateDependencies, 0)
	if status == core.StatusAborted || status == core.StatusNeedsCallMainHandler {
		return nil, false
	}
	if changed && len(e.stack) > 0 {
		e.stack[len(e.stack)-1].sawChange(input)
	}
	return ptr, changed
}
