package graph

import "unsafe"

// Context is spec.md §3's named scope inside a Graph: a unique id, an
// optional closure pair, and a user pointer. The first
// context created for a graph (via New) is its "primary" context.
type Context struct {
	ID      uint32
	Name    string
	Primary bool

	// InvalidationClosure and UpdateClosure are optional host hooks stored
	// on the context, mirroring spec.md §3's "invalidation closure, update
	// closure"; nothing in this module calls either of them.
	InvalidationClosure func()
	UpdateClosure       func()

	// UserPointer is an opaque host-owned value threaded through the C-ABI
	// surface (spec.md §3); Go callers may ignore it or use it to hang
	// arbitrary per-context state off the Context value.
	UserPointer unsafe.Pointer

	graph *Graph
}

// Graph returns the Graph handle this context was created through.
func (c *Context) Graph() *Graph { return c.graph }
