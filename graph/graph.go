// Package graph implements spec.md §3/§4.9's Graph: the process-local
// coordinator of interned types, live subgraphs, contexts, the deferred-
// invalidation queue, and trace fan-out. Grounded in the teacher's
// runtime.Engine top-level struct, which plays the analogous "one struct
// owns the arena, the registry and the live graph state" role for a
// compute-kernel engine instead of an attribute graph.
package graph

import (
	"sync"
	"sync/atomic"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/layout"
	"github.com/sbl8/attrgraph/subgraph"
	"github.com/sbl8/attrgraph/trace"
	"github.com/sbl8/attrgraph/typeinfo"
	"github.com/sbl8/attrgraph/update"
)

var nextGraphID uint64

// shared is the state every Graph value sharing the same underlying graph
// (spec.md §6's graph_create_shared) points at in common: one arena table,
// one type registry, one update engine, one trace list, one set of live
// subgraphs and contexts. Graph itself is a thin (shared, current-context)
// pair, the way a host-side handle into a shared engine would be modeled.
type shared struct {
	mu sync.Mutex

	id uint64

	Table   *arena.Table
	Types   *attribute.Registry
	Builder *layout.Builder
	Engine  *update.Engine
	Traces  *trace.List

	contexts      map[uint32]*Context
	nextContextID uint32

	subgraphs         []*subgraph.Subgraph
	nextSubgraphIndex uint32
	zoneStores        map[*arena.Zone]*attribute.Store

	deferring           bool
	pendingInvalidation []*subgraph.Subgraph
	needsUpdate         bool
}

// storeForAttribute resolves the Store owning a's zone — the
// update.StoreResolver this graph's Engine is built with, since an input
// edge or IndirectNode may name an attribute in a different subgraph's
// zone than the one performing the read.
func (s *shared) storeForAttribute(a core.AttributeID) *attribute.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.Table.ZoneOf(arena.Ptr(a.Offset()))
	if z == nil {
		core.Trap("graph: attribute %v does not belong to any live zone in this graph", a)
	}
	store, ok := s.zoneStores[z]
	if !ok {
		core.Trap("graph: zone %v has no registered subgraph store", z.ID())
	}
	return store
}

// Graph is spec.md §6's Graph handle: the shared engine state plus the
// context this particular handle is currently acting through. New contexts
// created via CreateShared return a distinct *Graph over the same shared
// state, mirroring "graph_create_shared(other) -> Graph (joins the same
// underlying graph, new context)".
type Graph struct {
	s       *shared
	Current *Context
}

// New constructs a fresh graph with a primary context, backed by vmem (a
// nil vmem defaults to the production mmap provider, per arena.NewTable).
func New(vmem arena.VirtualMemoryProvider, cfg core.Config) *Graph {
	table := arena.NewTable(vmem, cfg)
	types := attribute.NewRegistry()
	builder := layout.NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})

	s := &shared{
		id:         atomic.AddUint64(&nextGraphID, 1),
		Table:      table,
		Types:      types,
		Builder:    builder,
		Traces:     &trace.List{},
		contexts:   make(map[uint32]*Context),
		zoneStores: make(map[*arena.Zone]*attribute.Store),
	}
	s.Engine = update.NewEngineWithResolver(s.storeForAttribute, builder, &fanoutTrace{list: s.Traces})

	g := &Graph{s: s}
	g.Current = g.newContext("primary", true)
	return g
}

// newContext allocates and registers a Context against g's shared state.
func (g *Graph) newContext(name string, primary bool) *Context {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.nextContextID++
	c := &Context{ID: g.s.nextContextID, Name: name, Primary: primary, graph: g}
	g.s.contexts[c.ID] = c
	return c
}

// CreateShared joins the same underlying graph as g with a fresh, non-
// primary context — spec.md §6's graph_create_shared.
func (g *Graph) CreateShared(name string) *Graph {
	g2 := &Graph{s: g.s}
	g2.Current = g2.newContext(name, false)
	return g2
}

// ID returns the underlying shared graph's identity (graph_counter's
// graph-id query).
func (g *Graph) ID() uint64 { return g.s.id }

// Engine returns the shared update engine driving evaluation for every
// subgraph in this graph.
func (g *Graph) Engine() *update.Engine { return g.s.Engine }

// Types returns the shared type registry.
func (g *Graph) Types() *attribute.Registry { return g.s.Types }

// Table returns the shared arena table.
func (g *Graph) Table() *arena.Table { return g.s.Table }

// Builder returns the shared layout builder, needed by callers of
// attribute.Store.SetValue outside the update package (e.g. driving a
// constant attribute from the outside between reads).
func (g *Graph) Builder() *layout.Builder { return g.s.Builder }

// InternType is spec.md §4.9's intern_type: look up meta, or build and
// register a fresh AttributeType via construct on miss.
func (g *Graph) InternType(meta typeinfo.Metadata, construct func() *attribute.AttributeType) uint32 {
	return g.s.Types.Intern(meta, construct)
}

// AddTrace registers a trace sink, firing its BeginTrace hook.
func (g *Graph) AddTrace(t trace.Trace) uint64 {
	return g.s.Traces.Add(g.s.id, t)
}

// RemoveTrace unregisters a previously added trace sink, firing its
// EndTrace hook.
func (g *Graph) RemoveTrace(id uint64) {
	g.s.Traces.Remove(g.s.id, id)
}

// SubgraphCreate creates a new Subgraph scoped to g's current context. If
// owner is non-nil, the new subgraph is linked as owner's enclosing child
// (spec.md §6's subgraph_create(graph, owner?)).
func (g *Graph) SubgraphCreate(owner *subgraph.Subgraph) *subgraph.Subgraph {
	g.s.mu.Lock()
	index := g.s.nextSubgraphIndex
	g.s.nextSubgraphIndex++
	contextID := g.Current.ID
	g.s.mu.Unlock()

	sg := subgraph.New(g.s.Table, g.s.Types, g, contextID, index)

	g.s.mu.Lock()
	g.s.subgraphs = append(g.s.subgraphs, sg)
	g.s.zoneStores[sg.Zone] = sg.Store
	g.s.mu.Unlock()

	if owner != nil {
		owner.AddChild(sg, subgraph.TagEnclosing)
	}
	return sg
}

// GraphInvalidate invalidates every root subgraph (one with no parent) in
// g — invalidation cascades into children sharing a context on its own, so
// only roots need an explicit call (spec.md §6's graph_invalidate).
func (g *Graph) GraphInvalidate() {
	g.s.mu.Lock()
	roots := make([]*subgraph.Subgraph, 0, len(g.s.subgraphs))
	for _, sg := range g.s.subgraphs {
		if !sg.HasParents() {
			roots = append(roots, sg)
		}
	}
	g.s.mu.Unlock()

	for _, sg := range roots {
		sg.Invalidate()
	}
}

// WithDeferredInvalidation runs fn with the graph's deferring flag set, so
// any subgraph.Invalidate call queues instead of running immediately, then
// drains the queue on exit — including on panic, per spec.md §5's
// "release paths ... must clear it".
func (g *Graph) WithDeferredInvalidation(fn func()) {
	g.s.mu.Lock()
	g.s.deferring = true
	g.s.mu.Unlock()

	defer func() {
		g.s.mu.Lock()
		g.s.deferring = false
		pending := g.s.pendingInvalidation
		g.s.pendingInvalidation = nil
		g.s.mu.Unlock()

		for _, sg := range pending {
			sg.RunDeferredInvalidation()
		}
	}()

	fn()
}

// IsDeferringInvalidation implements subgraph.Host.
func (g *Graph) IsDeferringInvalidation() bool {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	return g.s.deferring
}

// EnqueueDeferredInvalidation implements subgraph.Host.
func (g *Graph) EnqueueDeferredInvalidation(sg *subgraph.Subgraph) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	g.s.pendingInvalidation = append(g.s.pendingInvalidation, sg)
}

// NotifySubgraphInvalidated implements subgraph.Host: drops sg from the
// live-subgraph list and marks the graph as needing a fresh update pass.
func (g *Graph) NotifySubgraphInvalidated(sg *subgraph.Subgraph) {
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	for i, live := range g.s.subgraphs {
		if live == sg {
			g.s.subgraphs = append(g.s.subgraphs[:i], g.s.subgraphs[i+1:]...)
			break
		}
	}
	delete(g.s.zoneStores, sg.Zone)
	g.s.needsUpdate = true
}

var _ subgraph.Host = (*Graph)(nil)
