package subgraph

import "github.com/sbl8/attrgraph/core"

// Invalidate implements spec.md §4.8's invalidate: when the host reports it
// is inside a deferring scope (a with_update block or an installed main
// handler), s is queued on Host and the real work runs on scope exit via
// RunDeferredInvalidation; otherwise invalidation happens immediately.
func (s *Subgraph) Invalidate() {
	s.mu.Lock()
	if s.validation != Valid {
		s.mu.Unlock()
		return
	}
	if s.Host != nil && s.Host.IsDeferringInvalidation() {
		s.validation = InvalidationScheduled
		s.mu.Unlock()
		s.Host.EnqueueDeferredInvalidation(s)
		return
	}
	s.mu.Unlock()
	s.invalidateNow()
}

// RunDeferredInvalidation performs the actual invalidation for a subgraph
// previously queued by Invalidate while the graph was deferring. The graph
// calls this for every queued subgraph on with_update scope exit.
func (s *Subgraph) RunDeferredInvalidation() {
	s.mu.Lock()
	if s.validation != InvalidationScheduled {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.invalidateNow()
}

// invalidateNow performs spec.md §4.8's immediate invalidation: mark s
// invalidated, fire its observers, cascade into every descendant sharing
// s's context id (unlinking non-enclosing parent links along the way), then
// destroy each invalidated subgraph's nodes and free its zone. Callbacks run
// here rather than through Update, so reads during invalidation cannot
// recurse into evaluation (spec.md §4.8's sentinel-update-frame note — this
// implementation achieves the same effect by never routing through
// Subgraph.Update from this path).
func (s *Subgraph) invalidateNow() {
	group := s.collectInvalidationGroup()
	for _, n := range group {
		n.mu.Lock()
		n.validation = Invalidated
		observers := make([]func(), 0, len(n.observers))
		for _, o := range n.observers {
			observers = append(observers, o)
		}
		n.mu.Unlock()
		for _, o := range observers {
			o()
		}
	}

	for _, n := range group {
		n.unlinkNonEnclosingParents()
	}

	for _, n := range group {
		n.destroyNodes()
		if n.Host != nil {
			n.Host.NotifySubgraphInvalidated(n)
		}
	}
}

// collectInvalidationGroup walks s's children, gathering every descendant
// that shares s's context id — the set a single invalidate() call tears
// down together.
func (s *Subgraph) collectInvalidationGroup() []*Subgraph {
	var group []*Subgraph
	visited := make(map[*Subgraph]bool)
	var walk func(n *Subgraph)
	walk = func(n *Subgraph) {
		if visited[n] {
			return
		}
		visited[n] = true
		group = append(group, n)

		n.mu.Lock()
		children := append([]childLink(nil), n.children...)
		n.mu.Unlock()
		for _, c := range children {
			if c.child.ContextID == s.ContextID {
				walk(c.child)
			}
		}
	}
	walk(s)
	return group
}

// unlinkNonEnclosingParents severs s's links to every parent it is not
// enclosed by, so a surviving ancestor in a different context does not keep
// a dangling reference to an invalidated subgraph.
func (s *Subgraph) unlinkNonEnclosingParents() {
	s.mu.Lock()
	parents := append([]parentLink(nil), s.parents...)
	s.parents = nil
	s.mu.Unlock()

	for _, p := range parents {
		if p.tag == TagEnclosing {
			continue
		}
		p.parent.mu.Lock()
		for i, l := range p.parent.children {
			if l.child == s {
				p.parent.children = append(p.parent.children[:i], p.parent.children[i+1:]...)
				break
			}
		}
		p.parent.mu.Unlock()
	}
}

// destroyNodes walks the direct attributes recorded in s's tag table,
// finalizing every node's value and body (spec.md §3's "destroy value, decrement accounting, destroy
// body" lifecycle), then frees the zone itself. Node finalization delegates
// to each attribute's registered Destroy hook through the store.
func (s *Subgraph) destroyNodes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Store == nil || s.Zone == nil {
		return
	}
	for a := range s.tags {
		if a.Kind() != core.KindDirect {
			continue
		}
		s.Store.FinalizeAttribute(a)
	}
	s.tags = nil
	s.Zone.Destroy()
}
