package codegen

import (
	"github.com/cinder-lang/cinder/ir"
	"github.com/cinder-lang/cinder/symtab"
)

// localVar names a register in the scope's fixed local-variable region
// (registers [1, nlocals); register 0 always holds self).
type localVar struct {
	name string
	reg  int
}

// ScopeUnit is the single lowering context for one Proc: a method body,
// a block, a class/module body, or the toplevel. It owns everything
// codegen.go's dispatcher touches while walking one ast.Node subtree,
// and mirrors the source's `codegen_scope` (spec.md §2 item 2).
type ScopeUnit struct {
	parent *ScopeUnit
	opts   *CompileOptions

	filename string
	line     int

	mscope bool // a method/lambda/top-level scope; false for a plain block

	buf    *InstructionBuffer
	pool   *symtab.LiteralPool
	syms   *symtab.SymbolTable
	regs   RegisterStack
	loops  LoopStack

	locals      []localVar
	nlocals     int // size of the fixed local region; sp starts here
	ensureLevel int
	aspec       int
	fileSpans   []ir.FileSpan

	reps []*ir.Proc
}

// newScope allocates a child ScopeUnit, inheriting filename/line/opts
// from its parent (nil parent means this is the toplevel).
func newScope(parent *ScopeUnit, mscope bool, opts *CompileOptions) *ScopeUnit {
	s := &ScopeUnit{
		parent: parent,
		opts:   opts,
		mscope: mscope,
		buf:    NewInstructionBuffer(opts.NoOptimize),
		pool:   symtab.NewLiteralPool(),
		syms:   symtab.New(),
	}
	if parent != nil {
		s.filename = parent.filename
		s.line = parent.line
	}
	// register 0 is self; it is always reserved even though nothing in
	// `locals` names it.
	s.regs.Push()
	s.nlocals = 1
	return s
}

// setPos updates the scope's current source position, used by errf and
// by every emitted instruction's debug line entry.
func (s *ScopeUnit) setPos(line int) { s.line = line }

func (s *ScopeUnit) peepCtx(valNoval bool) peepCtx {
	return peepCtx{NLocals: s.nlocals, ValIsNoval: valNoval, IsEmptyStr: s.pool.IsEmptyString}
}

// emit appends instr tagged at the scope's current line, running it
// through the peephole rewriter. Most codegen call sites want val==NOVAL
// for statement-position emission (rule 9's precondition); emitVal
// should be used for expression-position SETxx emission, where the
// result is still needed afterward.
func (s *ScopeUnit) emit(instr ir.Instruction) int {
	return s.buf.Emit(instr, s.line, s.peepCtx(true))
}

func (s *ScopeUnit) emitVal(instr ir.Instruction) int {
	return s.buf.Emit(instr, s.line, s.peepCtx(false))
}

// emitJumpTo emits a jump-shaped instruction and immediately resolves
// it to target, for the many control-transfer sites (NEXT/REDO/RETRY)
// whose destination is already known at emission time.
func (s *ScopeUnit) emitJumpTo(op ir.Opcode, a int, target int) {
	pc := s.emit(ir.EncodeAsBx(op, a, 0))
	s.buf.PatchJump(pc, target)
}

// emitEnsureUnwind pops however many ENSURE regions are active between
// the current ensure_level and targetLevel, via a single EPOP (the
// peephole rewriter would merge multiple adjacent EPOPs into one
// anyway; emitting the summed count directly avoids relying on that).
func (s *ScopeUnit) emitEnsureUnwind(targetLevel int) {
	if delta := s.ensureLevel - targetLevel; delta > 0 {
		s.emit(ir.EncodeA(ir.OpEPop, delta))
	}
}

// emitPopErrs unwinds count pending ONERR regions (each LOOP_BEGIN
// frame crossed by a BREAK/RETRY owns exactly one).
func (s *ScopeUnit) emitPopErrs(count int) {
	if count > 0 {
		s.emit(ir.EncodeA(ir.OpPopErr, count))
	}
}

// msym interns name in the capped method-symbol window, translating an
// overflow into a proper compile *Error (spec.md §4.10, §7 kind 1).
func (s *ScopeUnit) msym(name string) (int, error) {
	id, err := s.syms.MSym(name)
	if err != nil {
		return 0, s.errf("%s", err.Error())
	}
	return id, nil
}

// newLocal reserves the next register as a named local, growing the
// fixed local-variable region. Must be called before any temp registers
// are pushed on top of it for this declaration to be valid.
func (s *ScopeUnit) newLocal(name string) int {
	reg := s.regs.Push()
	s.locals = append(s.locals, localVar{name: name, reg: reg})
	s.nlocals = s.regs.Cursp()
	return reg
}

// findLocal looks up name in this scope only (no upvar walk).
func (s *ScopeUnit) findLocal(name string) (int, bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if s.locals[i].name == name {
			return s.locals[i].reg, true
		}
	}
	return 0, false
}

// findUpvar walks enclosing scopes looking for name, returning the
// register it lives in at that depth and the number of scopes crossed
// (depth 0 would have been a local, so callers only invoke this after
// findLocal fails; depth >= 1 on success).
func (s *ScopeUnit) findUpvar(name string) (reg int, depth int, ok bool) {
	depth = 1
	for p := s.parent; p != nil; p = p.parent {
		if reg, found := p.findLocal(name); found {
			return reg, depth, true
		}
		depth++
	}
	return 0, 0, false
}

// pushLoop/popLoop delegate to the loop stack, threading the scope's
// current ensure_level so NEXT/BREAK/RETRY know how many EPUSH regions
// they must unwind through.
func (s *ScopeUnit) pushLoop(kind LoopKind) *LoopFrame { return s.loops.Push(kind, s.ensureLevel) }
func (s *ScopeUnit) popLoop()                          { s.loops.Pop() }

// addRep records a just-finished child Proc (a block, def, class body,
// or lambda) and returns its index in this scope's Reps table, the
// value LAMBDA/CLASS/... embed as their literal operand.
func (s *ScopeUnit) addRep(p *ir.Proc) int {
	idx := len(s.reps)
	s.reps = append(s.reps, p)
	return idx
}

// finish packages the scope's accumulated state into an *ir.Proc. The
// caller is responsible for having emitted a trailing RETURN/STOP.
func (s *ScopeUnit) finish() *ir.Proc {
	locals := make([]ir.LocalVar, len(s.locals))
	for i, lv := range s.locals {
		locals[i] = ir.LocalVar{Name: lv.name, Reg: lv.reg}
	}
	return &ir.Proc{
		Code:     s.buf.Code(),
		Pool:     s.pool.Entries(),
		Syms:     s.syms.Names(),
		Reps:     s.reps,
		Locals:   locals,
		NRegs:    s.regs.NRegs(),
		NLocals:  s.nlocals,
		Aspec:    s.aspec,
		Filename: s.filename,
		Debug: ir.DebugInfo{
			Lines:     s.buf.Lines(),
			FileSpans: s.fileSpans,
			SessionID: s.opts.SessionID,
		},
	}
}
