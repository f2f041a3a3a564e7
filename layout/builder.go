package layout

import (
	"sort"

	"github.com/sbl8/attrgraph/typeinfo"
)

// Mode mirrors spec.md §6's comparison-mode nibble carried in
// ComparisonOptions: together with the metadata it keys the Builder's cache
// of which Descriptor a given (type, mode) pair resolves to (there is no
// heap-mode component), since some types compare
// differently depending on mode (e.g. "equatable" fields may be skipped
// entirely in a mode that only cares about identity).
type Mode uint8

const (
	ModeStructural Mode = iota
	ModeIdentityOnly
)

// Builder constructs Descriptors by walking an Introspector, per spec.md
// §4.7: "Layouts are built by a visitor over the external
// type-introspection provider."
type Builder struct {
	Introspector typeinfo.Introspector
	Oracle       typeinfo.EqualityOracle

	cache map[cacheKey]*Descriptor
}

type cacheKey struct {
	typ  typeinfo.Metadata
	mode Mode
}

// NewBuilder constructs a Builder over the given introspection/equality
// collaborators.
func NewBuilder(introspector typeinfo.Introspector, oracle typeinfo.EqualityOracle) *Builder {
	return &Builder{Introspector: introspector, Oracle: oracle, cache: make(map[cacheKey]*Descriptor)}
}

// Build returns the cached Descriptor for (m, mode), building and caching it
// on first request.
func (b *Builder) Build(m typeinfo.Metadata, mode Mode) *Descriptor {
	key := cacheKey{typ: m, mode: mode}
	if d, ok := b.cache[key]; ok {
		return d
	}
	d := b.build(m, mode)
	b.cache[key] = d
	return d
}

func (b *Builder) build(m typeinfo.Metadata, mode Mode) *Descriptor {
	if m.IsZero() || m.Size() == 0 {
		return trivialDescriptor(m.Size())
	}
	if mode == ModeIdentityOnly {
		return trivialDescriptor(m.Size())
	}
	if cases, ok := b.Introspector.EnumCases(m); ok {
		if d := b.buildEnum(m, cases, mode); d != nil {
			return d
		}
		// Enum payload could not be resolved: bail out (spec.md §4.7).
		return trivialDescriptor(m.Size())
	}
	fields, ok := b.Introspector.Fields(m)
	if !ok {
		return trivialDescriptor(m.Size())
	}
	return b.buildStruct(m, fields, mode)
}

func (b *Builder) buildStruct(m typeinfo.Metadata, fields []typeinfo.Field, mode Mode) *Descriptor {
	sorted := append([]typeinfo.Field(nil), fields...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	d := &Descriptor{Size: m.Size()}
	var cursor uintptr
	for _, f := range sorted {
		if f.Offset < cursor {
			// Overlapping field offsets (e.g. a union) are unrepresentable
			// by this simple sequential walk; bail to trivial.
			return trivialDescriptor(m.Size())
		}
		if f.Offset > cursor {
			d.appendSkip(f.Offset - cursor)
			cursor = f.Offset
		}
		b.emitField(d, f.Metadata, mode)
		cursor += f.Metadata.Size()
	}
	if cursor > m.Size() {
		// Computed layout overruns the object: degrade entirely.
		return trivialDescriptor(m.Size())
	}
	if cursor < m.Size() {
		d.appendSkip(m.Size() - cursor)
	}
	d.Code = append(d.Code, byte(OpEnd))
	return d
}

func (b *Builder) emitField(d *Descriptor, fm typeinfo.Metadata, mode Mode) {
	switch {
	case fm.IsZero() || fm.Size() == 0:
		return
	case b.Introspector.IsEquatable(fm):
		idx := d.addOperand(operand{meta: fm})
		d.Code = append(d.Code, byte(OpEquals), idx)
	default:
		if _, ok := b.Introspector.Fields(fm); ok {
			nested := b.Build(fm, mode)
			idx := d.addOperand(operand{nested: nested, size: fm.Size()})
			d.Code = append(d.Code, byte(OpNestedSubLayout), idx)
			return
		}
		if _, ok := b.Introspector.EnumCases(fm); ok {
			nested := b.Build(fm, mode)
			idx := d.addOperand(operand{nested: nested, size: fm.Size()})
			d.Code = append(d.Code, byte(OpNestedSubLayout), idx)
			return
		}
		d.appendCompareRun(fm.Size())
	}
}

func (b *Builder) buildEnum(m typeinfo.Metadata, cases []typeinfo.EnumCase, mode Mode) *Descriptor {
	builtCases := make([]enumCase, 0, len(cases))
	for _, c := range cases {
		var payload *Descriptor
		if !c.Payload.IsZero() && c.Payload.Size() > 0 {
			payload = b.Build(c.Payload, mode)
		}
		builtCases = append(builtCases, enumCase{Index: c.Index, Payload: payload})
	}
	d := &Descriptor{Size: m.Size()}
	idx := d.addOperand(operand{hostMeta: m, cases: builtCases})
	d.Code = append(d.Code, byte(OpEnumCaseStart), idx, byte(OpEnumEnd))
	d.Code = append(d.Code, byte(OpEnd))
	return d
}
