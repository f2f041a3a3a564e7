package subgraph

import (
	"sync"
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/core"
)

// ValidationState is a subgraph's lifecycle stage (spec.md §3).
type ValidationState int

const (
	Valid ValidationState = iota
	InvalidationScheduled
	Invalidated
	GraphDestroyed
)

// ChildTag is the 2-bit tag spec.md §3 attaches to each parent/child edge,
// distinguishing the child's owning ("enclosing") parent from any
// additional, non-owning cross-reference.
type ChildTag uint8

const (
	TagEnclosing ChildTag = 0
	TagShared    ChildTag = 1
)

// Flags are a subgraph-local attribute tag — spec.md §5's per-node
// "value3" propagation byte, generalized to a 32-bit mask other components
// (update, apply) filter on.
type Flags uint32

// Host is the subset of Graph a Subgraph needs without importing it back:
// whether invalidation should be deferred, where to queue a deferred
// invalidation, and whom to notify once one completes. graph.Graph
// implements this.
type Host interface {
	IsDeferringInvalidation() bool
	EnqueueDeferredInvalidation(s *Subgraph)
	NotifySubgraphInvalidated(s *Subgraph)
}

type childLink struct {
	child *Subgraph
	tag   ChildTag
}

type parentLink struct {
	parent *Subgraph
	tag    ChildTag
}

// Subgraph is spec.md §3/§4.8's owning scope for a set of attributes: one
// zone, a parent/child DAG, observers, an optional node cache, and an
// optional tree annotation.
type Subgraph struct {
	Host      Host
	ContextID uint32
	Store     *attribute.Store
	Zone      *arena.Zone
	Index     uint32

	mu             sync.Mutex
	parents        []parentLink
	children       []childLink
	observers      map[uint64]func()
	nextObserverID uint64
	validation     ValidationState
	cache          *NodeCache
	tags           map[core.AttributeID]Flags
	traversalSeed  uint64

	treeRoot *TreeElement
}

// New constructs a Subgraph backed by a fresh zone on table, owned by host
// and scoped to contextID.
func New(table *arena.Table, types *attribute.Registry, host Host, contextID uint32, index uint32) *Subgraph {
	zone := arena.NewZone(table)
	return &Subgraph{
		Host:      host,
		ContextID: contextID,
		Store:     attribute.NewStore(table, zone, types),
		Zone:      zone,
		Index:     index,
		observers: make(map[uint64]func()),
		tags:      make(map[core.AttributeID]Flags),
	}
}

// IsValid reports whether the subgraph may still be used.
func (s *Subgraph) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validation == Valid
}

// ValidationState returns the subgraph's current lifecycle stage.
func (s *Subgraph) ValidationState() ValidationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validation
}

// EnableNodeCache installs a node cache of the given fingerprint capacity.
func (s *Subgraph) EnableNodeCache(capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = NewNodeCache(capacity)
}

// Cache returns the subgraph's node cache, or nil if none was enabled.
func (s *Subgraph) Cache() *NodeCache {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache
}

// AttributeCount returns the number of attributes directly owned by s
// (not counting descendants), used by graph_counter's node-count query.
func (s *Subgraph) AttributeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tags)
}

// ChildCount returns the number of direct children linked to s.
func (s *Subgraph) ChildCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// HasParents reports whether s has any parent link, direct or shared.
func (s *Subgraph) HasParents() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parents) > 0
}

// AddAttribute creates an attribute in this subgraph's zone and records its
// propagation tag for Apply/Update filtering.
func (s *Subgraph) AddAttribute(typeID uint32, body unsafe.Pointer, value unsafe.Pointer, tag Flags) core.AttributeID {
	s.requireValid()
	a := s.Store.AddAttribute(typeID, body, value)
	s.mu.Lock()
	s.tags[a] = tag
	s.mu.Unlock()
	return a
}

func (s *Subgraph) requireValid() {
	if s.ValidationState() != Valid {
		core.Trap("subgraph: operation on an invalidated subgraph")
	}
}

// AddChild links child as a descendant of s with the given tag, recording
// the edge in both directions. It does not propagate the child's flag bits
// into s (spec.md §4.8); Apply reaches descendants by walking the child
// links, while Intersects, IsDirty and Update look only at s's own tags.
func (s *Subgraph) AddChild(child *Subgraph, tag ChildTag) {
	s.requireValid()
	s.mu.Lock()
	s.children = append(s.children, childLink{child: child, tag: tag})
	s.mu.Unlock()

	child.mu.Lock()
	child.parents = append(child.parents, parentLink{parent: s, tag: tag})
	child.mu.Unlock()
}

// RemoveChild unlinks child from s, severing both directions of the edge.
func (s *Subgraph) RemoveChild(child *Subgraph) {
	s.mu.Lock()
	for i, l := range s.children {
		if l.child == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	child.mu.Lock()
	for i, l := range child.parents {
		if l.parent == s {
			child.parents = append(child.parents[:i], child.parents[i+1:]...)
			break
		}
	}
	child.mu.Unlock()
}

// AncestorOf reports whether s is a (possibly indirect) parent of other, by
// depth-first walk over parents (spec.md §4.8's ancestor_of).
func (other *Subgraph) AncestorOf(s *Subgraph) bool {
	visited := make(map[*Subgraph]bool)
	var walk func(n *Subgraph) bool
	walk = func(n *Subgraph) bool {
		if visited[n] {
			return false
		}
		visited[n] = true
		n.mu.Lock()
		parents := append([]parentLink(nil), n.parents...)
		n.mu.Unlock()
		for _, p := range parents {
			if p.parent == s || walk(p.parent) {
				return true
			}
		}
		return false
	}
	return walk(other)
}

// AddObserver registers a closure invoked on invalidation, returning an id
// usable with RemoveObserver.
func (s *Subgraph) AddObserver(closure func()) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextObserverID++
	id := s.nextObserverID
	s.observers[id] = closure
	return id
}

// RemoveObserver releases a previously registered observer.
func (s *Subgraph) RemoveObserver(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, id)
}

// Intersects reports whether any attribute in s carries a tag overlapping
// flags (subgraph_intersects).
func (s *Subgraph) Intersects(flags Flags) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range s.tags {
		if tag&flags != 0 {
			return true
		}
	}
	return false
}

// IsDirty reports whether any attribute in s matching flags is currently
// Dirty (subgraph_is_dirty).
func (s *Subgraph) IsDirty(flags Flags) bool {
	s.mu.Lock()
	tags := make(map[core.AttributeID]Flags, len(s.tags))
	for a, f := range s.tags {
		tags[a] = f
	}
	s.mu.Unlock()

	for a, f := range tags {
		if f&flags == 0 {
			continue
		}
		if s.Store.NodeAt(a).State.Has(core.StateDirty) {
			return true
		}
	}
	return false
}

// Apply iterates every attribute in s and its reachable children whose tag
// overlaps flags (flags of 0 matches every attribute), invoking body once
// per attribute — spec.md §4.8's apply,
// using a monotonically increasing traversal seed so a descendant reachable
// through multiple paths is visited at most once.
func (s *Subgraph) Apply(flags Flags, body func(core.AttributeID)) {
	s.mu.Lock()
	s.traversalSeed++
	seed := s.traversalSeed
	s.mu.Unlock()

	visited := make(map[*Subgraph]uint64)
	var walk func(n *Subgraph)
	walk = func(n *Subgraph) {
		if visited[n] == seed {
			return
		}
		visited[n] = seed

		n.mu.Lock()
		tags := make(map[core.AttributeID]Flags, len(n.tags))
		for a, f := range n.tags {
			tags[a] = f
		}
		children := append([]childLink(nil), n.children...)
		n.mu.Unlock()

		for a, f := range tags {
			if f&flags != 0 || flags == 0 {
				body(a)
			}
		}
		for _, c := range children {
			walk(c.child)
		}
	}
	walk(s)
}

// Updater is the evaluation surface Subgraph.Update drives attributes
// through — implemented by the update package's Engine.
type Updater interface {
	UpdateAttribute(a core.AttributeID, opts core.UpdateOptions) core.UpdateStatus
}

// Update drives every attribute in s matching flags (flags of 0 matches
// every attribute) to quiescence: while
// any matching attribute is Dirty, call updater.UpdateAttribute on it, until
// none remain or the subgraph is invalidated (spec.md §4.8's update).
func (s *Subgraph) Update(flags Flags, updater Updater) core.UpdateStatus {
	for {
		if s.ValidationState() != Valid {
			return core.StatusAborted
		}
		next, ok := s.nextDirty(flags)
		if !ok {
			return core.StatusNoChange
		}
		status := updater.UpdateAttribute(next, core.UpdateInTransaction)
		if status == core.StatusAborted || status == core.StatusNeedsCallMainHandler {
			return status
		}
	}
}

func (s *Subgraph) nextDirty(flags Flags) (core.AttributeID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for a, f := range s.tags {
		if f&flags == 0 && flags != 0 {
			continue
		}
		if s.Store.NodeAt(a).State.Has(core.StateDirty) {
			return a, true
		}
	}
	return core.NilAttributeID, false
}
