package layout

import (
	"unsafe"

	"github.com/sbl8/attrgraph/core"
	"github.com/sbl8/attrgraph/typeinfo"
)

const pointerSize = unsafe.Sizeof(uintptr(0))

func byteAt(p unsafe.Pointer, off uintptr) byte {
	return *(*byte)(unsafe.Pointer(uintptr(p) + off))
}

func compareBytes(lhs, rhs unsafe.Pointer, offset uintptr, n int) bool {
	for i := 0; i < n; i++ {
		if byteAt(lhs, offset+uintptr(i)) != byteAt(rhs, offset+uintptr(i)) {
			return false
		}
	}
	return true
}

func readPointer(p unsafe.Pointer, offset uintptr) unsafe.Pointer {
	return *(*unsafe.Pointer)(unsafe.Pointer(uintptr(p) + offset))
}

// Compare implements spec.md §4.7's compare(layout, lhs, rhs, size, options):
// a null layout, or lhs and rhs being the identical address, short-circuits
// to a byte-for-byte comparison of size bytes; otherwise the bytecode is
// walked maintaining a byte offset cursor.
func Compare(d *Descriptor, lhs, rhs unsafe.Pointer, size uintptr, oracle typeinfo.EqualityOracle, opts core.ComparisonOptions) bool {
	if d == nil || lhs == rhs {
		return compareBytes(lhs, rhs, 0, int(size))
	}
	var offset uintptr
	pc := 0
	for pc < len(d.Code) {
		op := d.Code[pc]
		switch {
		case op == byte(OpEnd):
			return true
		case isSkip(op):
			offset += uintptr(skipLen(op))
			pc++
		case isCompare(op):
			n := compareLen(op)
			if !compareBytes(lhs, rhs, offset, n) {
				reportFailureIfRequested(opts, offset, uintptr(n))
				return false
			}
			offset += uintptr(n)
			pc++
		case op == byte(OpEquals):
			idx := d.Code[pc+1]
			o := d.Operands[idx]
			if !oracle.Equal(o.meta, unsafe.Add(lhs, offset), unsafe.Add(rhs, offset)) {
				reportFailureIfRequested(opts, offset, o.meta.Size())
				return false
			}
			offset += o.meta.Size()
			pc += 2
		case op == byte(OpExistential):
			idx := d.Code[pc+1]
			o := d.Operands[idx]
			if !compareExistential(lhs, rhs, offset, o) {
				reportFailureIfRequested(opts, offset, 2*pointerSize)
				return false
			}
			offset += 2 * pointerSize
			pc += 2
		case op == byte(OpStrongRef):
			pl := readPointer(lhs, offset)
			pr := readPointer(rhs, offset)
			// Pointer identity short-circuits; distinct pointers to
			// metadata-identical boxes would ideally recurse (spec.md
			// §4.7), but without a registry mapping a raw pointer back to
			// its own Metadata there's nothing to recurse with, so this
			// degrades to a pointer-equality check.
			if pl != pr {
				reportFailureIfRequested(opts, offset, pointerSize)
				return false
			}
			offset += pointerSize
			pc++
		case op == byte(OpFunctionValue):
			pl := readPointer(lhs, offset)
			pr := readPointer(rhs, offset)
			if pl != pr {
				reportFailureIfRequested(opts, offset, pointerSize)
				return false
			}
			offset += pointerSize
			pc++
		case op == byte(OpIndirectEnum):
			idx := d.Code[pc+1]
			o := d.Operands[idx]
			pl := readPointer(lhs, offset)
			pr := readPointer(rhs, offset)
			if pl != pr {
				if pl == nil || pr == nil || !Compare(o.nested, pl, pr, o.size, oracle, opts) {
					reportFailureIfRequested(opts, offset, o.size)
					return false
				}
			}
			offset += pointerSize
			pc += 2
		case op == byte(OpNestedSubLayout), op == byte(OpCompactNestedSubLayout):
			idx := d.Code[pc+1]
			o := d.Operands[idx]
			if !Compare(o.nested, unsafe.Add(lhs, offset), unsafe.Add(rhs, offset), o.size, oracle, opts) {
				return false
			}
			offset += o.size
			pc += 2
		case op == byte(OpEnumCaseStart):
			idx := d.Code[pc+1]
			o := d.Operands[idx]
			dl := oracle.Discriminant(o.hostMeta, unsafe.Add(lhs, offset))
			dr := oracle.Discriminant(o.hostMeta, unsafe.Add(rhs, offset))
			if dl != dr {
				reportFailureIfRequested(opts, offset, o.hostMeta.Size())
				return false
			}
			var matched *enumCase
			for i := range o.cases {
				if o.cases[i].Index == dl {
					matched = &o.cases[i]
					break
				}
			}
			if matched != nil && matched.Payload != nil {
				if !Compare(matched.Payload, unsafe.Add(lhs, offset), unsafe.Add(rhs, offset), matched.Payload.Size, oracle, opts) {
					return false
				}
			}
			offset += o.hostMeta.Size()
			pc += 2
			if pc < len(d.Code) && d.Code[pc] == byte(OpEnumEnd) {
				pc++
			}
		case op == byte(OpEnumEnd):
			pc++
		default:
			core.Trap("layout: unrecognized opcode 0x%02x at pc %d", op, pc)
		}
	}
	return true
}

func compareExistential(lhs, rhs unsafe.Pointer, offset uintptr, o operand) bool {
	// An existential (interface{}) is stored as a two-word header: the
	// Go runtime already carries dynamic-type identity in that header, so
	// reading it back as `any` and delegating to reflect.DeepEqual mirrors
	// spec.md §4.7's "compare by dynamic type then projected value"
	// without needing a separate type-tag opcode.
	a := *(*any)(unsafe.Add(lhs, offset))
	b := *(*any)(unsafe.Add(rhs, offset))
	return deepEqualAny(a, b)
}

func reportFailureIfRequested(opts core.ComparisonOptions, offset, size uintptr) {
	if opts&core.CompareReportFailures != 0 {
		core.Report("layout: compare failed at offset %d size %d", offset, size)
	}
}
