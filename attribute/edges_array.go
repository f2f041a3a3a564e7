package attribute

import (
	"unsafe"

	"github.com/sbl8/attrgraph/arena"
)

// growAppend is the shared growable-array logic behind a Node's input and
// output edge vectors (spec.md §4.3: "an InputEdge... an in-arena growable
// array"): double the backing allocation via the zone's realloc when full,
// then write the new element.
func growAppend[T any](t *arena.Table, z *arena.Zone, basePtr *arena.Ptr, length, capacity *uint32, item T) {
	var zero T
	elemSize := unsafe.Sizeof(zero)
	if *length == *capacity {
		newCap := *capacity * 2
		if newCap == 0 {
			newCap = 4
		}
		newPtr := z.ReallocBytes(*basePtr, uintptr(*capacity)*elemSize, uintptr(newCap)*elemSize)
		*basePtr = newPtr
		*capacity = newCap
	}
	*arena.Elem[T](t, *basePtr, int(*length)) = item
	*length++
}

// removeAt removes the element at index by shifting the tail left, the
// arena counterpart of append(s[:i], s[i+1:]...).
func removeAt[T any](t *arena.Table, basePtr arena.Ptr, length *uint32, index int) {
	n := int(*length)
	for i := index; i < n-1; i++ {
		*arena.Elem[T](t, basePtr, i) = *arena.Elem[T](t, basePtr, i+1)
	}
	*length--
}

func appendInputEdge(t *arena.Table, z *arena.Zone, basePtr *arena.Ptr, length, capacity *uint32, item InputEdge) {
	growAppend[InputEdge](t, z, basePtr, length, capacity, item)
}

func appendOutputEdge(t *arena.Table, z *arena.Zone, basePtr *arena.Ptr, length, capacity *uint32, item OutputEdge) {
	growAppend[OutputEdge](t, z, basePtr, length, capacity, item)
}

func removeInputEdgeAt(t *arena.Table, n *Node, index int) {
	removeAt[InputEdge](t, n.InputsPtr, &n.InputsLen, index)
}

func removeOutputEdgeAt(t *arena.Table, n *Node, index int) {
	removeAt[OutputEdge](t, n.OutputsPtr, &n.OutputsLen, index)
}
