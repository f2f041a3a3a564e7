package layout

import (
	"testing"
	"unsafe"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/typeinfo"
)

type point struct {
	X, Y int32
}

func TestCompareTrivialAgreesWithByteCompare(t *testing.T) {
	t.Parallel()
	b := NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})
	m := typeinfo.Of[point]()
	d := b.Build(m, ModeStructural)

	a := point{X: 1, Y: 2}
	c := point{X: 1, Y: 2}
	e := point{X: 1, Y: 3}

	if !Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&c), m.Size(), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected equal points to compare equal")
	}
	if Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&e), m.Size(), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected differing points to compare unequal")
	}
}

type withSlice struct {
	Tag  int32
	Data []byte
}

func TestCompareDispatchesEquatableFieldToOracle(t *testing.T) {
	t.Parallel()
	b := NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})
	m := typeinfo.Of[withSlice]()
	d := b.Build(m, ModeStructural)

	a := withSlice{Tag: 1, Data: []byte("abc")}
	c := withSlice{Tag: 1, Data: []byte("abc")}
	e := withSlice{Tag: 1, Data: []byte("abd")}

	if !Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&c), m.Size(), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected slices with equal contents to compare equal")
	}
	if Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&e), m.Size(), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected slices with differing contents to compare unequal")
	}
}

type nested struct {
	Outer int32
	Inner point
}

func TestCompareDescendsIntoNestedStruct(t *testing.T) {
	t.Parallel()
	b := NewBuilder(typeinfo.ReflectProvider{}, typeinfo.ReflectProvider{})
	m := typeinfo.Of[nested]()
	d := b.Build(m, ModeStructural)

	a := nested{Outer: 1, Inner: point{X: 2, Y: 3}}
	c := nested{Outer: 1, Inner: point{X: 2, Y: 3}}
	e := nested{Outer: 1, Inner: point{X: 2, Y: 4}}

	if !Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&c), m.Size(), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected nested structs with equal inner values to compare equal")
	}
	if Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&e), m.Size(), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected nested structs with differing inner values to compare unequal")
	}
}

// enumHost models a minimal tagged union: a discriminant plus a union-sized
// payload area big enough for any case, the way the builder's buildEnum
// path expects to find one when a custom Introspector opts a type in.
type enumHost struct {
	Tag     int32
	Payload [8]byte
}

type fixedCaseIntrospector struct {
	typeinfo.ReflectProvider
	host  typeinfo.Metadata
	cases []typeinfo.EnumCase
}

func (f fixedCaseIntrospector) EnumCases(m typeinfo.Metadata) ([]typeinfo.EnumCase, bool) {
	if m.Type == f.host.Type {
		return f.cases, true
	}
	return nil, false
}

type fixedDiscriminantOracle struct {
	typeinfo.ReflectProvider
}

func (fixedDiscriminantOracle) Discriminant(m typeinfo.Metadata, p unsafe.Pointer) int {
	return int(*(*int32)(p))
}

func TestCompareEnumFailsFastOnDiscriminantMismatch(t *testing.T) {
	t.Parallel()
	host := typeinfo.Of[enumHost]()
	intro := fixedCaseIntrospector{host: host, cases: []typeinfo.EnumCase{
		{Index: 0, Name: "A"},
		{Index: 1, Name: "B"},
	}}
	oracle := fixedDiscriminantOracle{}
	b := NewBuilder(intro, oracle)
	d := b.Build(host, ModeStructural)

	a := enumHost{Tag: 0}
	e := enumHost{Tag: 1}

	if Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&e), host.Size(), oracle, 0) {
		t.Errorf("expected mismatched discriminants to fail comparison")
	}
	c := enumHost{Tag: 0}
	if !Compare(d, unsafe.Pointer(&a), unsafe.Pointer(&c), host.Size(), oracle, core.CompareReportFailures) {
		t.Errorf("expected matching discriminants (no payload) to compare equal")
	}
}

func TestCompareShortCircuitsOnIdenticalPointer(t *testing.T) {
	t.Parallel()
	a := point{X: 1, Y: 2}
	if !Compare(nil, unsafe.Pointer(&a), unsafe.Pointer(&a), unsafe.Sizeof(a), typeinfo.ReflectProvider{}, 0) {
		t.Errorf("expected identical pointers to short-circuit to equal")
	}
}
