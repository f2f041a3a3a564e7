// Package combinators is a small catalog of built-in AttributeTypes —
// Const, Map, Map2 — grounded in the teacher's kernels package (an
// opcode-indexed catalog of in-place compute operators): there, a Catalog
// maps a small integer opcode to a compute kernel; here a constructor maps
// a Go closure to an attribute.AttributeType whose Update thunk runs it.
// Each Map/Map2 call interns a distinct type (one kernel implementation per
// registration), the way the teacher registers one kernel per opcode; every
// Const[T] call shares one type per T.
package combinators

import (
	"reflect"
	"sync/atomic"
	"unsafe"

	"github.com/sbl8/attrgraph/attribute"
	"github.com/sbl8/attrgraph/layout"
	"github.com/sbl8/attrgraph/typeinfo"
)

// Const registers a no-input attribute type over T. Its update thunk never
// runs because callers create Const attributes with an initial value
// (spec.md §4.3: "if a value is supplied ... ValueInitialized=true,
// Dirty=false"), so it exists purely to give the type a stable, reusable id.
func Const[T any](types *attribute.Registry) uint32 {
	meta := typeinfo.Of[T]()
	return types.Intern(meta, func() *attribute.AttributeType {
		return &attribute.AttributeType{
			ValueMetadata:  meta,
			ComparisonMode: layout.ModeStructural,
		}
	})
}

// registrations numbers Map/Map2 registrations for registrationKey.
var registrations atomic.Int64

// registrationKey returns a Registry key no other call returns. The Registry
// interns by metadata, so keying Map/Map2 by Of[T]() would hand every
// registration over T the first one's type and Update thunk.
func registrationKey() typeinfo.Metadata {
	n := int(registrations.Add(1))
	return typeinfo.Metadata{Type: reflect.ArrayOf(n, reflect.TypeOf(struct{}{}))}
}

// Map registers an attribute type over T whose update thunk reads its
// first input edge (wired by the caller via Store.AddInput) and writes
// fn applied to it.
func Map[T any](types *attribute.Registry, fn func(T) T) uint32 {
	meta := typeinfo.Of[T]()
	return types.Intern(registrationKey(), func() *attribute.AttributeType {
		return &attribute.AttributeType{
			ValueMetadata:  meta,
			ComparisonMode: layout.ModeStructural,
			Update: func(ctx attribute.UpdateContext, _ unsafe.Pointer) {
				inputs := ctx.Inputs()
				if len(inputs) == 0 {
					return
				}
				p, _ := ctx.GetInputValue(inputs[0].Source)
				if p == nil {
					return
				}
				v := fn(*(*T)(p))
				ctx.SetValue(unsafe.Pointer(&v))
			},
		}
	})
}

// Map2 registers an attribute type over T whose update thunk reads its
// first two input edges and writes fn applied to both — the two-operand
// analogue of Map (the generalization of the teacher's vectorAdd kernel).
func Map2[T any](types *attribute.Registry, fn func(a, b T) T) uint32 {
	meta := typeinfo.Of[T]()
	return types.Intern(registrationKey(), func() *attribute.AttributeType {
		return &attribute.AttributeType{
			ValueMetadata:  meta,
			ComparisonMode: layout.ModeStructural,
			Update: func(ctx attribute.UpdateContext, _ unsafe.Pointer) {
				inputs := ctx.Inputs()
				if len(inputs) < 2 {
					return
				}
				pa, _ := ctx.GetInputValue(inputs[0].Source)
				if pa == nil {
					return
				}
				pb, _ := ctx.GetInputValue(inputs[1].Source)
				if pb == nil {
					return
				}
				v := fn(*(*T)(pa), *(*T)(pb))
				ctx.SetValue(unsafe.Pointer(&v))
			},
		}
	})
}
