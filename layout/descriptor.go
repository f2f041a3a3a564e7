package layout

import "github.com/sbl8/attrgraph/typeinfo"

// enumCase is one arm of a bundled enum case table (see OpEnumCaseStart).
type enumCase struct {
	Index   int
	Payload *Descriptor
}

// operand is the side-table entry an opcode with an operand byte indexes
// into. Exactly one field is meaningful per opcode kind.
type operand struct {
	meta    typeinfo.Metadata // OpEquals, OpExistential, OpStrongRef
	nested  *Descriptor       // OpIndirectEnum, OpNestedSubLayout, OpCompactNestedSubLayout
	size    uintptr           // declared size for nested/compact sub-layouts
	hostMeta typeinfo.Metadata // OpEnumCaseStart: the enum host type, for Discriminant
	cases   []enumCase        // OpEnumCaseStart: the bundled case table
}

// Descriptor is a built layout: a bytecode Code stream plus the Operands
// side table opcodes with operands index into. Size is the value type's
// total byte footprint, cached alongside so Compare's top-level null-layout
// shortcut (spec.md §4.7, "Null layout or equal pointers: byte-compare size
// bytes") has something to fall back on.
type Descriptor struct {
	Code     []byte
	Operands []operand
	Size     uintptr
	// Trivial is true when the builder bailed out to a pure byte compare —
	// spec.md §4.7's "degrade to the trivial byte comparison" path, taken
	// when field visitation fails, an enum payload can't be resolved, or
	// the computed layout would exceed the object's size.
	Trivial bool
}

// trivialDescriptor returns the degraded byte-compare-only layout for a
// value of the given size.
func trivialDescriptor(size uintptr) *Descriptor {
	d := &Descriptor{Size: size, Trivial: true}
	d.appendCompareRun(size)
	d.Code = append(d.Code, byte(OpEnd))
	return d
}

// appendCompareRun appends one or more OpCompare instructions covering n
// bytes, splitting into maxCompareRun-sized chunks as needed.
func (d *Descriptor) appendCompareRun(n uintptr) {
	for n > 0 {
		chunk := uintptr(maxCompareRun)
		if n < chunk {
			chunk = n
		}
		d.Code = append(d.Code, compareOpcode(int(chunk)))
		n -= chunk
	}
}

// appendSkip appends one or more OpSkip instructions covering n bytes.
func (d *Descriptor) appendSkip(n uintptr) {
	for n > 0 {
		chunk := uintptr(maxSkip)
		if n < chunk {
			chunk = n
		}
		d.Code = append(d.Code, skipOpcode(int(chunk)))
		n -= chunk
	}
}

// addOperand appends op to the operand table and returns its index, emitted
// as the byte immediately following an opcode that references it.
func (d *Descriptor) addOperand(op operand) byte {
	d.Operands = append(d.Operands, op)
	idx := len(d.Operands) - 1
	if idx > 0xff {
		panic("layout: more than 255 operands in one descriptor")
	}
	return byte(idx)
}
