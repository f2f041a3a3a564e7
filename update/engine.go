package update

import (
	"sync"
	"time"
	"unsafe"

	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/layout"
	"github.com/sbl8/attrgraph/trace"
)

// StoreResolver maps an AttributeID to the attribute.Store backing its
// owning subgraph's zone. A graph with only one subgraph can resolve every
// id to the same Store; a graph with several needs this indirection since
// an input edge or IndirectNode may reference an attribute owned by a
// different subgraph's zone than the one doing the reading.
type StoreResolver func(core.AttributeID) *attribute.Store

// Engine drives spec.md §4.5's update_attribute/get_value protocol over
// every Store reachable through its resolver. One Engine serves one Graph;
// every subgraph within that graph shares it. Go has no exposed thread/
// goroutine identity to mirror the source's per-thread ownership check
// exactly, so Engine approximates spec.md §5's "at most one thread may be
// updating a graph at a time" with a non-reentrant exclusivity flag: a
// concurrent top-level call observes the flag already held and traps,
// while the recursive internal calls a single evaluation makes to its own
// inputs never re-acquire it.
type Engine struct {
	resolve StoreResolver
	Builder *layout.Builder
	Trace   trace.Trace

	mu    sync.Mutex
	busy  bool
	stack []*Frame

	hasDeadline bool
	deadline    time.Time

	mainHandlerActive bool
	cancelRequested   bool
}

// NewEngine constructs an Engine over a single store and builder — the
// common case of a graph with exactly one subgraph (or a test fixture). A
// nil tr installs trace.NopTrace{}.
func NewEngine(store *attribute.Store, builder *layout.Builder, tr trace.Trace) *Engine {
	return NewEngineWithResolver(func(core.AttributeID) *attribute.Store { return store }, builder, tr)
}

// NewEngineWithResolver constructs an Engine that looks up the owning Store
// per attribute via resolve, for a graph whose attributes may span several
// subgraphs' zones.
func NewEngineWithResolver(resolve StoreResolver, builder *layout.Builder, tr trace.Trace) *Engine {
	if tr == nil {
		tr = trace.NopTrace{}
	}
	return &Engine{resolve: resolve, Builder: builder, Trace: tr}
}

// storeFor resolves the Store owning a's node.
func (e *Engine) storeFor(a core.AttributeID) *attribute.Store {
	return e.resolve(a)
}

// acquire enforces the single-updater-at-a-time invariant for a top-level
// entry point, returning a release function. Traps per spec.md §7 if
// another top-level call is already in progress.
func (e *Engine) acquire() func() {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		core.Trap("update: invalid graph update (access from multiple threads)")
	}
	e.busy = true
	e.mu.Unlock()
	return func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}
}

// SetDeadline installs a deadline at now+d, per spec.md §4.5/§6's
// set_deadline. A zero or negative d clears any deadline.
func (e *Engine) SetDeadline(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d <= 0 {
		e.hasDeadline = false
		return
	}
	e.hasDeadline = true
	e.deadline = time.Now().Add(d)
}

// HasDeadlinePassed reports whether the installed deadline, if any, has
// elapsed (spec.md §5's has_deadline_passed).
func (e *Engine) HasDeadlinePassed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasDeadline && time.Now().After(e.deadline)
}

// CancelUpdate implements spec.md §4.5's cancel(): walks the stack from
// innermost outward, setting the cancelled bit on every frame until (and
// including) one that opted into AbortIfCancelled.
func (e *Engine) CancelUpdate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelRequested = true
	for i := len(e.stack) - 1; i >= 0; i-- {
		f := e.stack[i]
		f.Cancelled = true
		if f.Options&core.UpdateAbortIfCancelled != 0 {
			break
		}
	}
}

// UpdateWasCancelled reports the innermost frame's cancelled bit
// (spec.md §4.5's cancelled()).
func (e *Engine) UpdateWasCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.stack) == 0 {
		return e.cancelRequested
	}
	return e.stack[len(e.stack)-1].Cancelled
}

// WithMainThreadHandler runs fn with the engine's main-thread handler
// considered active, so attributes flagged FlagMainThread may be evaluated
// inline instead of returning NeedsCallMainHandler (spec.md §4.5).
func (e *Engine) WithMainThreadHandler(fn func()) {
	e.mu.Lock()
	e.mainHandlerActive = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.mainHandlerActive = false
		e.mu.Unlock()
	}()
	fn()
}

// IsUpdating reports whether this engine currently owns an in-progress
// top-level update — graph_counter's "thread-updating" query (spec.md §6).
func (e *Engine) IsUpdating() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// UpdateAttribute is the top-level entry point for spec.md §4.5's
// update_attribute: resolves indirection, detects cycles, evaluates
// inputs, and runs the type's update thunk when needed.
func (e *Engine) UpdateAttribute(a core.AttributeID, opts core.UpdateOptions) core.UpdateStatus {
	release := e.acquire()
	defer release()
	return e.updateAttribute(a, opts)
}

func (e *Engine) updateAttribute(a core.AttributeID, opts core.UpdateOptions) (status core.UpdateStatus) {
	if a.Kind() != core.KindDirect {
		// update_attribute operates at node granularity: an indirect alias
		// has no update thunk of its own, so resolving it here only needs
		// the aliased source's Direct node to evaluate. The accumulated
		// byte offset Resolve reports is for addressing a value pointer
		// (see getValue in read.go) and has no use at this granularity, so
		// it's discarded deliberately rather than threaded further.
		resolved, _, _ := attribute.Resolve(e.storeFor(a).Table, a, core.OptUpdateDependencies, func(dep core.AttributeID) {
			e.updateAttribute(dep, opts)
		})
		if resolved.IsNil() {
			return core.StatusNoChange
		}
		a = resolved
	}

	store := e.storeFor(a)
	n := store.NodeAt(a)

	// Cycle: spec.md §4.5/Testable Property 9 — a re-entrant call to an
	// attribute already on the update stack is reported and returns without
	// re-evaluating, rather than recursing into corruption.
	if n.State.Has(core.StateInUpdateStack) {
		e.Trace.CycleDetected(a)
		return core.StatusNoChange
	}

	if len(e.stack) > 0 && e.stack[len(e.stack)-1].Cancelled {
		return core.StatusAborted
	}
	if opts&core.UpdateCancelIfPassedDeadline != 0 && e.HasDeadlinePassed() {
		e.Trace.PassedDeadline(a)
		return core.StatusAborted
	}

	t := store.Types.Type(n.TypeID)
	if t.Flags&attribute.FlagMainThread != 0 && !e.mainHandlerActive {
		return core.StatusNeedsCallMainHandler
	}

	frame := &Frame{Attribute: a, Options: opts}
	e.stack = append(e.stack, frame)
	n.State |= core.StateInUpdateStack | core.StateEvaluating
	e.Trace.BeginUpdate(a)
	defer func() {
		n.State &^= core.StateInUpdateStack | core.StateEvaluating
		e.stack = e.stack[:len(e.stack)-1]
		e.Trace.EndUpdate(a, status)
	}()

	anyChanged := false
	count := store.InputCount(a)
	for i := 0; i < count; i++ {
		edge := store.InputEdgeAt(a, i)
		source := edge.Source
		needsEval := edge.Options&core.InputUnprefetched != 0
		if !needsEval && source.Kind() == core.KindDirect {
			needsEval = !e.storeFor(source).NodeAt(source).State.Has(core.StateValueInitialized)
		}
		if needsEval {
			st := e.updateAttribute(source, opts)
			if st == core.StatusAborted || st == core.StatusNeedsCallMainHandler {
				return st
			}
		}

		edge = store.InputEdgeAt(a, i)
		if edge.Options&core.InputChanged != 0 {
			anyChanged = true
			frame.sawChange(edge.Source)
		}
		edge.Options &^= core.InputChanged | core.InputUnprefetched
	}

	if !n.State.Has(core.StateDirty) && !anyChanged {
		return core.StatusNoChange
	}

	if t.Update != nil {
		ctx := &thunkContext{engine: e, self: a}
		t.Update(ctx, store.BodyPointer(n))
	}

	n.State &^= core.StateDirty | core.StatePending
	return core.StatusChanged
}

// thunkContext implements attribute.UpdateContext, the callback surface an
// AttributeType's Update thunk uses to read inputs and publish its result.
type thunkContext struct {
	engine *Engine
	self   core.AttributeID
}

func (c *thunkContext) Self() core.AttributeID { return c.self }

func (c *thunkContext) GetInputValue(input core.AttributeID) (unsafe.Pointer, bool) {
	return c.engine.getInputValue(c.self, input)
}

func (c *thunkContext) SetValue(value unsafe.Pointer) {
	c.engine.storeFor(c.self).SetValue(c.self, c.engine.Builder, value)
}

func (c *thunkContext) Inputs() []attribute.InputEdge {
	return c.engine.storeFor(c.self).Inputs(c.self)
}

var _ attribute.UpdateContext = (*thunkContext)(nil)
