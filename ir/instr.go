package ir

// Instruction is a single fixed-width 32-bit register-machine word:
// opcode in the low 7 bits, operands packed above per the opcode's
// Shape (spec.md §3). Disassembling and re-encoding an Instruction
// always reproduces the same 32-bit value (spec.md §8 round-trip
// property) because Encode* never depends on anything but its inputs.
type Instruction uint32

const (
	opcodeBits = 7
	opcodeMask = 1<<opcodeBits - 1

	aBits = 9
	aMask = 1<<aBits - 1

	bBits = 9
	bMask = 1<<bBits - 1

	cBits = 7
	cMask = 1<<cBits - 1

	bxBits = 16
	bxMask = 1<<bxBits - 1

	axBits = 25
	axMask = 1<<axBits - 1
)

// MaxRegister is the highest register index an A/B operand can address.
const MaxRegister = aMask // 511

// MaxDirectArgs is CALL_MAXARGS (spec.md §4.2): the largest argument
// count encodable directly in a C operand; beyond this count,
// gen_values switches to array-building mode and passes this sentinel.
const MaxDirectArgs = cMask // 127

// EncodeA packs a ShapeA instruction (opcode + A, nothing else).
func EncodeA(op Opcode, a int) Instruction {
	return Instruction(uint32(op)&opcodeMask | uint32(a&aMask)<<opcodeBits)
}

// EncodeAB packs a ShapeAB instruction.
func EncodeAB(op Opcode, a, b int) Instruction {
	return Instruction(uint32(op)&opcodeMask |
		uint32(a&aMask)<<opcodeBits |
		uint32(b&bMask)<<(opcodeBits+aBits))
}

// EncodeABC packs a ShapeABC instruction.
func EncodeABC(op Opcode, a, b, c int) Instruction {
	return Instruction(uint32(op)&opcodeMask |
		uint32(a&aMask)<<opcodeBits |
		uint32(b&bMask)<<(opcodeBits+aBits) |
		uint32(c&cMask)<<(opcodeBits+aBits+bBits))
}

// EncodeABx packs a ShapeABx instruction (Bx unsigned 16-bit).
func EncodeABx(op Opcode, a, bx int) Instruction {
	return Instruction(uint32(op)&opcodeMask |
		uint32(a&aMask)<<opcodeBits |
		uint32(bx&bxMask)<<(opcodeBits+aBits))
}

// EncodeAsBx packs a ShapeAsBx instruction (sBx signed 16-bit).
func EncodeAsBx(op Opcode, a, sbx int) Instruction {
	return EncodeABx(op, a, (sbx+0x8000)&bxMask) // bias, see SBx()
}

// EncodeAx packs a ShapeAx instruction (Ax unsigned 25-bit, no A field).
func EncodeAx(op Opcode, ax int) Instruction {
	return Instruction(uint32(op)&opcodeMask | uint32(ax&axMask)<<opcodeBits)
}

// Opcode extracts the opcode field.
func (i Instruction) Opcode() Opcode { return Opcode(uint32(i) & opcodeMask) }

// A extracts the A operand (valid for ShapeA/AB/ABC/ABx/AsBx).
func (i Instruction) A() int { return int(uint32(i)>>opcodeBits) & aMask }

// B extracts the B operand (valid for ShapeAB/ABC).
func (i Instruction) B() int { return int(uint32(i)>>(opcodeBits+aBits)) & bMask }

// C extracts the C operand (valid for ShapeABC).
func (i Instruction) C() int { return int(uint32(i)>>(opcodeBits+aBits+bBits)) & cMask }

// Bx extracts the unsigned 16-bit Bx operand (valid for ShapeABx).
func (i Instruction) Bx() int { return int(uint32(i)>>(opcodeBits+aBits)) & bxMask }

// SBx extracts the signed 16-bit sBx operand (valid for ShapeAsBx).
// The bias applied by EncodeAsBx is undone here so offsets round-trip
// through the full int16 range.
func (i Instruction) SBx() int { return i.Bx() - 0x8000 }

// Ax extracts the unsigned 25-bit Ax operand (valid for ShapeAx).
func (i Instruction) Ax() int { return int(uint32(i)>>opcodeBits) & axMask }

// WithSBx returns a copy of the instruction with its sBx field replaced,
// used by JumpPatcher to resolve a forward jump in place.
func (i Instruction) WithSBx(sbx int) Instruction {
	return EncodeAsBx(i.Opcode(), i.A(), sbx)
}

// WithBx returns a copy of the instruction with its Bx field replaced.
func (i Instruction) WithBx(bx int) Instruction {
	return EncodeABx(i.Opcode(), i.A(), bx)
}

// WithA returns a copy of the instruction with its A field replaced,
// keeping the original shape's other operands intact. Used heavily by
// the peephole rewriter (spec.md §4.5).
func (i Instruction) WithA(a int) Instruction {
	_, shape := i.Opcode().Info()
	switch shape {
	case ShapeA:
		return EncodeA(i.Opcode(), a)
	case ShapeAB:
		return EncodeAB(i.Opcode(), a, i.B())
	case ShapeABC:
		return EncodeABC(i.Opcode(), a, i.B(), i.C())
	case ShapeABx:
		return EncodeABx(i.Opcode(), a, i.Bx())
	case ShapeAsBx:
		return EncodeAsBx(i.Opcode(), a, i.SBx())
	default:
		return i
	}
}

// WithB returns a copy with its B field replaced (ShapeAB/ABC only).
func (i Instruction) WithB(b int) Instruction {
	_, shape := i.Opcode().Info()
	switch shape {
	case ShapeAB:
		return EncodeAB(i.Opcode(), i.A(), b)
	case ShapeABC:
		return EncodeABC(i.Opcode(), i.A(), b, i.C())
	default:
		return i
	}
}

// WithOpcode returns a copy of the instruction with a different opcode
// but the same raw operand bits, without re-deriving A/B/C
// individually.
func (i Instruction) WithOpcode(op Opcode) Instruction {
	return Instruction(uint32(op)&opcodeMask | uint32(i)&^opcodeMask)
}
