// Package subgraph implements spec.md §3/§4.8: the Subgraph as the unit of
// ownership and invalidation for a set of attributes — a zone, a
// parent/child DAG, observers, an optional node cache, and an optional tree
// annotation.
package subgraph

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sbl8/attrgraph/core"
)

// cacheEntry is one interned node behind a fingerprint, per spec.md §4.8:
// "interns a Node keyed by (type, fingerprint, body-bytes via equality
// oracle)".
type cacheEntry struct {
	typeID     uint32
	node       core.AttributeID
	generation int
}

// NodeCache is a subgraph's cache_fetch/cache_collect/cache_insert table,
// backed by github.com/hashicorp/golang-lru/v2 for the outer fingerprint
// eviction and a small per-bucket slice for the (type, body) disambiguation
// a bare LRU can't express on its own.
type NodeCache struct {
	mu         sync.Mutex
	buckets    *lru.Cache[uint64, []*cacheEntry]
	freeList   map[uint32][]core.AttributeID
	generation int
}

// NewNodeCache constructs a node cache holding up to capacity distinct
// fingerprints.
func NewNodeCache(capacity int) *NodeCache {
	c, err := lru.New[uint64, []*cacheEntry](capacity)
	if err != nil {
		core.Trap("subgraph: invalid node cache capacity %d: %v", capacity, err)
	}
	return &NodeCache{buckets: c, freeList: make(map[uint32][]core.AttributeID)}
}

// Fetch implements cache_fetch: on a hit (same fingerprint, type, and
// oracle-equal body) it returns the existing node after refreshing its
// generation; on a miss, it prefers a previously freed node of the same
// type (reset by resetNode) before falling back to allocate.
func (c *NodeCache) Fetch(fingerprint uint64, typeID uint32, bodyEqual func(core.AttributeID) bool, resetNode func(core.AttributeID), allocate func() core.AttributeID) core.AttributeID {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entries, ok := c.buckets.Get(fingerprint); ok {
		for _, e := range entries {
			if e.typeID == typeID && bodyEqual(e.node) {
				e.generation = c.generation
				return e.node
			}
		}
	}

	var node core.AttributeID
	if free := c.freeList[typeID]; len(free) > 0 {
		node = free[len(free)-1]
		c.freeList[typeID] = free[:len(free)-1]
		resetNode(node)
	} else {
		node = allocate()
	}

	entries, _ := c.buckets.Get(fingerprint)
	entries = append(entries, &cacheEntry{typeID: typeID, node: node, generation: c.generation})
	c.buckets.Add(fingerprint, entries)
	return node
}

// Insert implements cache_insert: returns a no-longer-referenced node to the
// per-type free list for reuse by a future Fetch miss.
func (c *NodeCache) Insert(typeID uint32, node core.AttributeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freeList[typeID] = append(c.freeList[typeID], node)
}

// Collect implements cache_collect: bumps the generation counter, then
// evicts entries whose generation is more than maxAge behind the current
// one, returning the evicted node ids so the caller can finalize them.
func (c *NodeCache) Collect(maxAge int) []core.AttributeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++

	var evicted []core.AttributeID
	for _, key := range c.buckets.Keys() {
		entries, ok := c.buckets.Peek(key)
		if !ok {
			continue
		}
		kept := entries[:0:0]
		for _, e := range entries {
			if c.generation-e.generation > maxAge {
				evicted = append(evicted, e.node)
			} else {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			c.buckets.Remove(key)
		} else {
			c.buckets.Add(key, kept)
		}
	}
	return evicted
}
