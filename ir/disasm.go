package ir

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable instruction listing for a Proc,
// following (loosely) the header/constants/code layout the teacher's
// bytecode disassembler uses. Intended for tests and tooling, not for
// any machine-readable contract.
func (p *Proc) Disassemble() string {
	return p.disassemble("")
}

// DisassembleTree disassembles a Proc and every nested Rep, indenting
// child procedures under their LAMBDA site.
func (p *Proc) DisassembleTree(name string) string {
	var sb strings.Builder
	sb.WriteString(p.disassemble(name))
	for i, child := range p.Reps {
		sb.WriteString(fmt.Sprintf("\n; --- rep[%d] ---\n", i))
		sb.WriteString(child.DisassembleTree(fmt.Sprintf("%s.rep%d", name, i)))
	}
	return sb.String()
}

func (p *Proc) disassemble(name string) string {
	var sb strings.Builder

	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; nregs=%d nlocals=%d aspec=0x%x file=%s\n", p.NRegs, p.NLocals, p.Aspec, p.Filename))

	if len(p.Pool) > 0 {
		sb.WriteString("; pool:\n")
		for i, lit := range p.Pool {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, literalString(lit)))
		}
	}
	if len(p.Syms) > 0 {
		sb.WriteString("; syms:\n")
		for i, s := range p.Syms {
			sb.WriteString(fmt.Sprintf(";   [%3d] :%s\n", i, s))
		}
	}

	sb.WriteString("; code:\n")
	for pc, instr := range p.Code {
		line := 0
		if pc < len(p.Debug.Lines) {
			line = int(p.Debug.Lines[pc])
		}
		sb.WriteString(fmt.Sprintf("%4d  %-28s ; line %d\n", pc, instrString(instr, pc), line))
	}
	return sb.String()
}

func literalString(l Literal) string {
	switch l.Kind {
	case LiteralInt:
		return fmt.Sprintf("int(%d)", l.Int)
	case LiteralFloat:
		return fmt.Sprintf("float(%g)", l.Flt)
	case LiteralString:
		return fmt.Sprintf("str(%q)", l.Str)
	default:
		return "?"
	}
}

func instrString(i Instruction, pc int) string {
	op := i.Opcode()
	name, shape := op.Info()
	switch shape {
	case ShapeA:
		return fmt.Sprintf("%-8s R%d", name, i.A())
	case ShapeAB:
		return fmt.Sprintf("%-8s R%d R%d", name, i.A(), i.B())
	case ShapeABC:
		return fmt.Sprintf("%-8s R%d R%d %d", name, i.A(), i.B(), i.C())
	case ShapeABx:
		return fmt.Sprintf("%-8s R%d %d", name, i.A(), i.Bx())
	case ShapeAsBx:
		target := pc + 1 + i.SBx()
		return fmt.Sprintf("%-8s R%d =>%d", name, i.A(), target)
	case ShapeAx:
		return fmt.Sprintf("%-8s 0x%x", name, i.Ax())
	default:
		return name
	}
}
