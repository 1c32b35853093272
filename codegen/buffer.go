package codegen

import "github.com/cinder-lang/cinder/ir"

// InstructionBuffer accumulates a ScopeUnit's code array, running every
// append through the peephole rewriter (spec.md §4.5) unless disabled,
// and tracking the parallel per-pc line table the debug info needs.
type InstructionBuffer struct {
	code       []ir.Instruction
	lines      []uint16
	lastLabel  int // pc of the most recent jump target; peephole never reaches across it
	noOptimize bool
}

func NewInstructionBuffer(noOptimize bool) *InstructionBuffer {
	return &InstructionBuffer{noOptimize: noOptimize}
}

// PC returns the position the next Emit will land on.
func (b *InstructionBuffer) PC() int { return len(b.code) }

// Label marks the current pc as a jump target, fencing the peephole
// window: no rule may fuse across a point another instruction jumps to.
func (b *InstructionBuffer) Label() int {
	b.lastLabel = len(b.code)
	return b.lastLabel
}

// Emit appends instr at the current line, first giving the peephole
// rewriter a chance to fuse it with the previously emitted instruction.
// A peepRewrite result is applied recursively: the rewritten candidate
// is tried again against whatever now sits at the top of the buffer,
// matching genop_peep's "rewrite prior, recurse" behavior (rule 4/6/9
// etc. can cascade several instructions deep).
func (b *InstructionBuffer) Emit(instr ir.Instruction, line int, ctx peepCtx) int {
	if !b.noOptimize {
		if instr.Opcode() == ir.OpMove && instr.A() == instr.B() {
			return b.PC() // rule 1
		}
		for len(b.code) > 0 && b.lastLabel != len(b.code) {
			result, action := peep(b.code[len(b.code)-1], instr, ctx)
			switch action {
			case peepNone:
				goto appendInstr
			case peepElideNext:
				return len(b.code) - 1
			case peepDropBoth:
				b.code = b.code[:len(b.code)-1]
				b.lines = b.lines[:len(b.lines)-1]
				return len(b.code)
			case peepRewrite:
				b.code = b.code[:len(b.code)-1]
				b.lines = b.lines[:len(b.lines)-1]
				instr = result
				continue
			}
		}
	}
appendInstr:
	pc := len(b.code)
	b.code = append(b.code, instr)
	b.lines = append(b.lines, uint16(line))
	return pc
}

// At returns the instruction at pc, for the few spots (gen_call's
// shortcut-arg fixups) that need to re-read what was just emitted.
func (b *InstructionBuffer) At(pc int) ir.Instruction { return b.code[pc] }

// Patch overwrites the instruction at pc in place, used both to resolve
// jump targets and to apply register fixups after the fact.
func (b *InstructionBuffer) Patch(pc int, instr ir.Instruction) { b.code[pc] = instr }

// PatchJump resolves a previously emitted jump instruction's sBx field
// to point at target, then fences the peephole window there: code
// already emitted before a jump target must never be fused across it
// by instructions emitted afterward.
func (b *InstructionBuffer) PatchJump(pc int, target int) {
	b.code[pc] = b.code[pc].WithSBx(target - (pc + 1))
	if target == len(b.code) {
		b.lastLabel = target
	}
}

// JumpChain is a list of pending forward-jump program counters all
// destined for the same eventual target, e.g. every `break` inside a
// loop body chains onto the frame's PC3 until the loop's exit label is
// known. The original threads this list through each jump's own sBx
// field to avoid a side allocation; Go has no reason to economize that
// way, so this is an ordinary slice of pending pcs instead.
type JumpChain []int

// PatchChain resolves every pc in the chain to target.
func (b *InstructionBuffer) PatchChain(chain JumpChain, target int) {
	for _, pc := range chain {
		b.code[pc] = b.code[pc].WithSBx(target - (pc + 1))
	}
	if len(chain) > 0 && target == len(b.code) {
		b.lastLabel = target
	}
}

// PatchChainHere resolves every pc in the chain to the current pc.
func (b *InstructionBuffer) PatchChainHere(chain JumpChain) {
	b.PatchChain(chain, len(b.code))
}

func (b *InstructionBuffer) Code() []ir.Instruction { return b.code }
func (b *InstructionBuffer) Lines() []uint16        { return b.lines }
