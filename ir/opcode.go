package ir

import (
	"fmt"
	"sort"
)

// Opcode identifies a single register-machine instruction. The
// numbering has no significance beyond stability within a compile; it
// is not wire-compatible with any external VM.
type Opcode byte

// Data movement.
const (
	OpMove Opcode = iota
	OpLoadI
	OpLoadL
	OpLoadSym
	OpLoadNil
	OpLoadSelf
	OpLoadT
	OpLoadF
)

// Variable access.
const (
	OpGetGlobal Opcode = iota + 16
	OpSetGlobal
	OpGetIV
	OpSetIV
	OpGetCV
	OpSetCV
	OpGetConst
	OpSetConst
	OpGetMCnst
	OpSetMCnst
	OpGetUpvar
	OpSetUpvar
	OpGetSpecial
)

// Arithmetic and comparison. These are SEND fast paths, not raw
// register ALU ops: A is the receiver register (and where the result
// lands), B is the operator's symbol id (the fallback dispatch target
// if the receiver isn't a type the VM open-codes), and the right
// operand sits in register A+1 by calling convention. ADDI/SUBI are
// the peephole-fused immediate forms (spec.md §4.5 rule 15): C carries
// the folded constant instead of an implicit operand register.
const (
	OpAdd Opcode = iota + 32
	OpSub
	OpMul
	OpDiv
	OpAddI
	OpSubI
	OpLT
	OpLE
	OpGT
	OpGE
	OpEQ
)

// Aggregates.
const (
	OpArray Opcode = iota + 48
	OpARef
	OpAPost
	OpAryPush
	OpAryCat
	OpHash
	OpRange
	OpStrCat
	OpString
)

// Calls.
const (
	OpSend Opcode = iota + 64
	OpSendB
	OpSuper
	OpTailCall
	OpCall
	OpBlkPush
	OpArgAry
)

// Definitions.
const (
	OpClass Opcode = iota + 80
	OpModule
	OpSClass
	OpOClass
	OpTClass
	OpMethod
	OpExec
	OpLambda
)

// Control.
const (
	OpJmp Opcode = iota + 96
	OpJmpIf
	OpJmpNot
	OpEnter
	OpReturn
	OpBreak
)

// Exception regions.
const (
	OpOnErr Opcode = iota + 112
	OpRescue
	OpRaise
	OpPopErr
	OpEPush
	OpEPop
	OpErr
	OpStop
)

// LambdaKind distinguishes the three LAMBDA flavors a CLASS/DEF/block
// lowering can attach to a child Proc.
type LambdaKind byte

const (
	LambdaBlock LambdaKind = iota
	LambdaMethod
	LambdaLambda
)

// ReturnKind tags a RETURN/BREAK instruction's unwind target, per
// spec.md §4.6 and the R_* constants of the original mruby codegen.
type ReturnKind byte

const (
	ReturnNormal ReturnKind = iota // ordinary method return
	ReturnBreak                    // unwind to the nearest enclosing loop's break target
	ReturnReturn                   // non-local return to the lexically enclosing method
)

// Shape identifies how an Instruction's 32-bit word is carved up.
type Shape byte

const (
	ShapeA   Shape = iota // opcode + A only
	ShapeAB               // opcode + A + B
	ShapeABC              // opcode + A + B + C
	ShapeABx              // opcode + A + Bx (16-bit unsigned)
	ShapeAsBx             // opcode + A + sBx (16-bit signed)
	ShapeAx               // opcode + Ax (25-bit unsigned, no separate A)
)

type opcodeInfo struct {
	name  string
	shape Shape
}

var opcodeTable = map[Opcode]opcodeInfo{
	OpMove:     {"MOVE", ShapeAB},
	OpLoadI:    {"LOADI", ShapeAsBx},
	OpLoadL:    {"LOADL", ShapeABx},
	OpLoadSym:  {"LOADSYM", ShapeABx},
	OpLoadNil:  {"LOADNIL", ShapeA},
	OpLoadSelf: {"LOADSELF", ShapeA},
	OpLoadT:    {"LOADT", ShapeA},
	OpLoadF:    {"LOADF", ShapeA},

	OpGetGlobal:  {"GETGLOBAL", ShapeABx},
	OpSetGlobal:  {"SETGLOBAL", ShapeABx},
	OpGetIV:      {"GETIV", ShapeABx},
	OpSetIV:      {"SETIV", ShapeABx},
	OpGetCV:      {"GETCV", ShapeABx},
	OpSetCV:      {"SETCV", ShapeABx},
	OpGetConst:   {"GETCONST", ShapeABx},
	OpSetConst:   {"SETCONST", ShapeABx},
	OpGetMCnst:   {"GETMCNST", ShapeABx},
	OpSetMCnst:   {"SETMCNST", ShapeABx},
	OpGetUpvar:   {"GETUPVAR", ShapeABC},
	OpSetUpvar:   {"SETUPVAR", ShapeABC},
	OpGetSpecial: {"GETSPECIAL", ShapeABx},

	OpAdd:  {"ADD", ShapeABC},
	OpSub:  {"SUB", ShapeABC},
	OpMul:  {"MUL", ShapeABC},
	OpDiv:  {"DIV", ShapeABC},
	OpAddI: {"ADDI", ShapeABC},
	OpSubI: {"SUBI", ShapeABC},
	OpLT:   {"LT", ShapeABC},
	OpLE:   {"LE", ShapeABC},
	OpGT:   {"GT", ShapeABC},
	OpGE:   {"GE", ShapeABC},
	OpEQ:   {"EQ", ShapeABC},

	OpArray:   {"ARRAY", ShapeABC},
	OpARef:    {"AREF", ShapeABC},
	OpAPost:   {"APOST", ShapeABC},
	OpAryPush: {"ARYPUSH", ShapeAB},
	OpAryCat:  {"ARYCAT", ShapeAB},
	OpHash:    {"HASH", ShapeABC},
	OpRange:   {"RANGE", ShapeABC},
	OpStrCat:  {"STRCAT", ShapeAB},
	OpString:  {"STRING", ShapeABx},

	OpSend:     {"SEND", ShapeABC},
	OpSendB:    {"SENDB", ShapeABC},
	OpSuper:    {"SUPER", ShapeABC},
	OpTailCall: {"TAILCALL", ShapeABC},
	OpCall:     {"CALL", ShapeA},
	OpBlkPush:  {"BLKPUSH", ShapeABx},
	OpArgAry:   {"ARGARY", ShapeABx},

	OpClass:  {"CLASS", ShapeABC},
	OpModule: {"MODULE", ShapeAB},
	OpSClass: {"SCLASS", ShapeAB},
	OpOClass: {"OCLASS", ShapeA},
	OpTClass: {"TCLASS", ShapeA},
	OpMethod: {"METHOD", ShapeAB},
	OpExec:   {"EXEC", ShapeABx},
	OpLambda: {"LAMBDA", ShapeABC},

	OpJmp:    {"JMP", ShapeAsBx},
	OpJmpIf:  {"JMPIF", ShapeAsBx},
	OpJmpNot: {"JMPNOT", ShapeAsBx},
	OpEnter:  {"ENTER", ShapeAx},
	OpReturn: {"RETURN", ShapeAB},
	OpBreak:  {"BREAK", ShapeAB},

	OpOnErr:  {"ONERR", ShapeAsBx},
	OpRescue: {"RESCUE", ShapeAB},
	OpRaise:  {"RAISE", ShapeA},
	OpPopErr: {"POPERR", ShapeA},
	OpEPush:  {"EPUSH", ShapeABx},
	OpEPop:   {"EPOP", ShapeA},
	OpErr:    {"ERR", ShapeA},
	OpStop:   {"STOP", ShapeA},
}

// AllOpcodes returns every defined opcode, ordered by numeric value.
// Tooling (cmd/cinderc's disasm -go-const) walks this to emit a
// mnemonic table without reaching into the unexported opcodeTable.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeTable))
	for op := range opcodeTable {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// Info returns the name and operand shape for an opcode.
func (op Opcode) Info() (name string, shape Shape) {
	if info, ok := opcodeTable[op]; ok {
		return info.name, info.shape
	}
	return fmt.Sprintf("UNKNOWN_%02X", byte(op)), ShapeA
}

// String renders the opcode mnemonic, for disassembly and error text.
func (op Opcode) String() string {
	name, _ := op.Info()
	return name
}

// isJump reports whether the opcode carries a (s)Bx jump offset, i.e.
// whether Proc.Validate range-checks its target.
func (op Opcode) isJump() bool {
	switch op {
	case OpJmp, OpJmpIf, OpJmpNot, OpOnErr:
		return true
	default:
		return false
	}
}
