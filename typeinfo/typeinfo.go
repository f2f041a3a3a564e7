// Package typeinfo defines the external collaborators spec.md §1 calls out as
// out-of-scope: "the host language's runtime reflection used to introspect
// field layouts" (Introspector) and "the opaque equality dispatcher used for
// types that carry a user-defined equality" (EqualityOracle). Both are
// interfaces; ReflectProvider below is the one concrete adapter the
// engine ships so the rest of the system has something to run against end to
// end, the way a host embedding the real engine would supply its own runtime
// metadata instead.
package typeinfo

import (
	"reflect"
	"unsafe"
)

// Metadata identifies a host type used as an attribute's body or value type.
// It stands in for spec.md's opaque "body metadata" / "value metadata"
// pointers: two Metadata values compare equal (by Type) iff the host
// considers them the same type, which is the identity attribute.Registry
// interns types on (spec.md §4.9).
type Metadata struct {
	Type reflect.Type
}

// Of derives a Metadata from a zero value of T, the idiomatic Go analogue of
// the body/value metadata pointer a host would otherwise hand the engine.
func Of[T any]() Metadata {
	var zero T
	return Metadata{Type: reflect.TypeOf(zero)}
}

// OfValue derives a Metadata from a concrete value's dynamic type, for a
// caller that only has an interface{}, not a static T.
func OfValue(v any) Metadata {
	return Metadata{Type: reflect.TypeOf(v)}
}

// IsZero reports whether the metadata carries no type at all (the metadata
// of a zero-body attribute, e.g. most indirect nodes).
func (m Metadata) IsZero() bool { return m.Type == nil }

// Size is the type's in-memory footprint.
func (m Metadata) Size() uintptr {
	if m.Type == nil {
		return 0
	}
	return m.Type.Size()
}

// Align is the type's required alignment.
func (m Metadata) Align() uintptr {
	if m.Type == nil {
		return 1
	}
	return uintptr(m.Type.Align())
}

// BitwiseTakable reports whether a value of this type may be relocated with
// a raw byte copy — spec.md §4.3's "bitwise-takable" gate on whether a body
// or value is stored inline in the node versus behind a persistent,
// non-moving buffer (HasIndirectSelf / HasIndirectValue). Types containing
// pointers the runtime must track through a move (maps, channels, unsafe
// pointers to Go-managed memory) are not bitwise-takable; slices and strings
// are — their headers copy safely because their backing storage isn't
// addressed relative to the attribute.
func (m Metadata) BitwiseTakable() bool {
	if m.Type == nil {
		return true
	}
	return bitwiseTakable(m.Type, make(map[reflect.Type]bool))
}

func bitwiseTakable(t reflect.Type, seen map[reflect.Type]bool) bool {
	if v, ok := seen[t]; ok {
		return v
	}
	seen[t] = true
	switch t.Kind() {
	case reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	case reflect.Ptr:
		return true
	case reflect.Interface:
		return false
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !bitwiseTakable(t.Field(i).Type, seen) {
				return false
			}
		}
		return true
	case reflect.Array:
		return bitwiseTakable(t.Elem(), seen)
	default:
		return true
	}
}

// Field is one struct field as reported by an Introspector walk.
type Field struct {
	Name     string
	Offset   uintptr
	Metadata Metadata
}

// EnumCase is one variant of an enum-like (tagged union) type, as reported
// by Introspector.EnumCases.
type EnumCase struct {
	Index   int
	Name    string
	Payload Metadata // zero Metadata for a payload-less case
}

// Introspector is spec.md's external type-introspection provider: it answers
// "what are this type's fields" and "is this type enum-like, and if so what
// are its cases" for the layout builder (spec.md §4.7).
type Introspector interface {
	Fields(m Metadata) ([]Field, bool)
	EnumCases(m Metadata) ([]EnumCase, bool)
	IsEquatable(m Metadata) bool
}

// EqualityOracle is spec.md's external equality dispatcher: for a type that
// opts into the `Equals` bytecode opcode, it compares two values of that
// type found at the given pointers.
type EqualityOracle interface {
	Equal(m Metadata, a, b unsafe.Pointer) bool
	// Discriminant returns the active enum case index for a value of an
	// enum-like type at p.
	Discriminant(m Metadata, p unsafe.Pointer) int
}

// ReflectProvider is the default Introspector + EqualityOracle, built on
// reflect — the concrete adapter a host not supplying its own runtime
// metadata falls back to. It treats slice, map, func and chan types as
// "equatable" (Equal compares them with reflect.DeepEqual), and any struct as having
// its exported and unexported fields reported by Fields (unexported fields
// are read via unsafe, mirroring the body/value layout being a raw memory
// region rather than a language-level object).
type ReflectProvider struct{}

func (ReflectProvider) Fields(m Metadata) ([]Field, bool) {
	if m.Type == nil || m.Type.Kind() != reflect.Struct {
		return nil, false
	}
	fields := make([]Field, 0, m.Type.NumField())
	for i := 0; i < m.Type.NumField(); i++ {
		sf := m.Type.Field(i)
		fields = append(fields, Field{
			Name:     sf.Name,
			Offset:   sf.Offset,
			Metadata: Metadata{Type: sf.Type},
		})
	}
	return fields, true
}

func (ReflectProvider) EnumCases(Metadata) ([]EnumCase, bool) {
	// reflect has no native tagged-union concept; hosts that model enums
	// (e.g. via a discriminant field plus a oneof-style payload) supply
	// their own Introspector. The default provider always bails out to the
	// trivial byte-compare path for enum-shaped types, matching spec.md
	// §4.7's builder-wide fallback when a type can't be resolved.
	return nil, false
}

func (ReflectProvider) IsEquatable(m Metadata) bool {
	if m.Type == nil {
		return false
	}
	switch m.Type.Kind() {
	case reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

func (ReflectProvider) Equal(m Metadata, a, b unsafe.Pointer) bool {
	va := reflect.NewAt(m.Type, a).Elem().Interface()
	vb := reflect.NewAt(m.Type, b).Elem().Interface()
	return reflect.DeepEqual(va, vb)
}

func (ReflectProvider) Discriminant(Metadata, unsafe.Pointer) int { return 0 }
