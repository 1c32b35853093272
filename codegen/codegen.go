package codegen

import (
	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// codegenExpr is the single recursive lowering entry point, selecting on
// node's dynamic type the way the source selects on an integer tag
// (spec.md §4.1). mode tells the callee whether its result must land on
// the register stack (VAL) or may be discarded (NOVAL); the returned
// int is the register holding the result when mode == VAL, and is
// meaningless (0) otherwise.
func codegenExpr(s *ScopeUnit, node ast.Node, mode Mode) (int, error) {
	switch n := node.(type) {

	case *ast.Begin:
		return genBegin(s, n, mode)
	case *ast.If:
		return genIf(s, n, mode)
	case *ast.And:
		return genAnd(s, n, mode)
	case *ast.Or:
		return genOr(s, n, mode)
	case *ast.While:
		return genWhile(s, n, mode)
	case *ast.For:
		return genFor(s, n, mode)
	case *ast.Case:
		return genCase(s, n, mode)
	case *ast.Rescue:
		return genRescue(s, n, mode)
	case *ast.Ensure:
		return genEnsure(s, n, mode)

	case *ast.Asgn:
		return genAsgn(s, n, mode)
	case *ast.MAsgn:
		return genMAsgn(s, n, mode)
	case *ast.OpAsgn:
		return genOpAsgn(s, n, mode)

	case *ast.Call:
		return genCallNode(s, n, mode)
	case *ast.Super:
		return genSuper(s, n, mode)
	case *ast.ZSuper:
		return genZSuper(s, n, mode)
	case *ast.Yield:
		return genYield(s, n, mode)

	case *ast.Return:
		return genReturn(s, n, mode)
	case *ast.Next:
		return genNext(s, n, mode)
	case *ast.Break:
		return genBreak(s, n, mode)
	case *ast.Redo:
		return genRedo(s, n, mode)
	case *ast.Retry:
		return genRetry(s, n, mode)

	case *ast.Int:
		return genInt(s, n, mode)
	case *ast.Float:
		return genFloat(s, n, mode)
	case *ast.Negate:
		return genNegate(s, n, mode)

	case *ast.Str:
		return genStr(s, n, mode)
	case *ast.DStr:
		return genDStr(s, n.Parts, mode)
	case *ast.Heredoc:
		return genDStr(s, n.Parts, mode)
	case *ast.XStr:
		return genXStr(s, n, mode)
	case *ast.DXStr:
		return genDXStr(s, n, mode)
	case *ast.Regex:
		return genRegex(s, n, mode)
	case *ast.DRegex:
		return genDRegex(s, n, mode)
	case *ast.Words:
		return genWords(s, n.Words, false, mode)
	case *ast.Symbols:
		return genWords(s, n.Words, true, mode)
	case *ast.HashLit:
		return genHash(s, n, mode)
	case *ast.ArrayLit:
		return genArray(s, n, mode)
	case *ast.Splat:
		return codegenExpr(s, n.Value, mode)
	case *ast.DotRange:
		return genRange(s, n, mode)

	case *ast.Self:
		return s.pushNullary(mode, ir.OpLoadSelf)
	case *ast.NilLit:
		return s.pushNullary(mode, ir.OpLoadNil)
	case *ast.TrueLit:
		return s.pushNullary(mode, ir.OpLoadT)
	case *ast.FalseLit:
		return s.pushNullary(mode, ir.OpLoadF)

	case *ast.LVar:
		return genLVarRead(s, n, mode)
	case *ast.GVar:
		return genSymRead(s, mode, ir.OpGetGlobal, n.Name)
	case *ast.IVar:
		return genSymRead(s, mode, ir.OpGetIV, n.Name)
	case *ast.CVar:
		return genSymRead(s, mode, ir.OpGetCV, n.Name)
	case *ast.Const:
		return genSymRead(s, mode, ir.OpGetConst, n.Name)
	case *ast.Colon2:
		return genColon2(s, n, mode)
	case *ast.Colon3:
		return genColon3(s, n, mode)
	case *ast.BackRef:
		return genSymRead(s, mode, ir.OpGetGlobal, "$"+string(n.Char))
	case *ast.NthRef:
		return genSymRead(s, mode, ir.OpGetGlobal, "$"+itoa(n.N))

	case *ast.Defined:
		return genDefined(s, n, mode)
	case *ast.PostExe:
		if _, err := codegenExpr(s, n.Body, NOVAL); err != nil {
			return 0, err
		}
		return s.maybeNil(mode)

	case *ast.Def:
		return genDef(s, n, mode)
	case *ast.SDef:
		return genSDef(s, n, mode)
	case *ast.ClassDef:
		return genClassDef(s, n, mode)
	case *ast.ModuleDef:
		return genModuleDef(s, n, mode)
	case *ast.SClassDef:
		return genSClassDef(s, n, mode)
	case *ast.Alias:
		return genAlias(s, n, mode)
	case *ast.Undef:
		return genUndef(s, n, mode)

	default:
		return 0, s.errf("unhandled node type %T", node)
	}
}

// genBegin lowers a statement sequence: only the last child follows the
// caller's mode, every earlier one is NOVAL (spec.md §4.1 BEGIN).
func genBegin(s *ScopeUnit, n *ast.Begin, mode Mode) (int, error) {
	if len(n.List) == 0 {
		return s.maybeNil(mode)
	}
	for _, child := range n.List[:len(n.List)-1] {
		if _, err := codegenExpr(s, child, NOVAL); err != nil {
			return 0, err
		}
	}
	return codegenExpr(s, n.List[len(n.List)-1], mode)
}

// genIf implements spec.md §4.1's IF row, including literal-predicate
// constant folding and the "VAL with no else ⇒ nil-load" convergence
// rule.
func genIf(s *ScopeUnit, n *ast.If, mode Mode) (int, error) {
	switch n.Cond.(type) {
	case *ast.TrueLit:
		return codegenExpr(s, n.Then, mode)
	case *ast.FalseLit, *ast.NilLit:
		if n.Else != nil {
			return codegenExpr(s, n.Else, mode)
		}
		return s.maybeNil(mode)
	}

	sp0 := s.regs.Cursp()
	condReg, err := codegenExpr(s, n.Cond, VAL)
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(sp0)
	p1 := s.emit(ir.EncodeAsBx(ir.OpJmpNot, condReg, 0))

	if _, err := codegenExpr(s, n.Then, mode); err != nil {
		return 0, err
	}

	elseNode := n.Else
	if elseNode == nil && mode == VAL {
		elseNode = &ast.NilLit{}
	}
	if elseNode != nil {
		p2 := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))
		s.buf.PatchJump(p1, s.buf.PC())
		s.buf.Label()
		s.regs.SetSP(sp0)
		if _, err := codegenExpr(s, elseNode, mode); err != nil {
			return 0, err
		}
		s.buf.PatchJump(p2, s.buf.PC())
		s.buf.Label()
	} else {
		s.buf.PatchJump(p1, s.buf.PC())
		s.buf.Label()
	}
	if mode == VAL {
		return sp0, nil
	}
	return 0, nil
}

// genAnd lowers `a && b`: VAL(a); JMPNOT past b; b in caller's mode.
func genAnd(s *ScopeUnit, n *ast.And, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	reg, err := codegenExpr(s, n.A, VAL)
	if err != nil {
		return 0, err
	}
	p := s.emit(ir.EncodeAsBx(ir.OpJmpNot, reg, 0))
	s.regs.SetSP(sp0)
	if _, err := codegenExpr(s, n.B, mode); err != nil {
		return 0, err
	}
	s.buf.PatchJump(p, s.buf.PC())
	s.buf.Label()
	if mode == VAL {
		return sp0, nil
	}
	return 0, nil
}

// genOr mirrors genAnd with JMPIF.
func genOr(s *ScopeUnit, n *ast.Or, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	reg, err := codegenExpr(s, n.A, VAL)
	if err != nil {
		return 0, err
	}
	p := s.emit(ir.EncodeAsBx(ir.OpJmpIf, reg, 0))
	s.regs.SetSP(sp0)
	if _, err := codegenExpr(s, n.B, mode); err != nil {
		return 0, err
	}
	s.buf.PatchJump(p, s.buf.PC())
	s.buf.Label()
	if mode == VAL {
		return sp0, nil
	}
	return 0, nil
}

// genWhile implements spec.md §4.1's WHILE/UNTIL row: `JMP top; body:
// body NOVAL; top: cond VAL; JMPIF/JMPNOT body`. DoWhile skips the
// initial unconditional jump so the body runs once before the first
// test.
func genWhile(s *ScopeUnit, n *ast.While, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	accReg := s.regs.Push() // break's value lands here; normal exit loads nil
	frame := s.pushLoop(LoopNormal)
	frame.Acc = accReg

	var skipFirstTest int
	if !n.DoWhile {
		skipFirstTest = s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))
		frame.PC1 = skipFirstTest
	}
	bodyPC := s.buf.PC()
	s.buf.Label()
	frame.PC2 = bodyPC
	if _, err := codegenExpr(s, n.Body, NOVAL); err != nil {
		return 0, err
	}
	s.regs.SetSP(accReg + 1)
	testPC := s.buf.PC()
	frame.PC1 = testPC
	if !n.DoWhile {
		s.buf.PatchJump(skipFirstTest, testPC)
	}
	s.buf.Label()
	condReg, err := codegenExpr(s, n.Cond, VAL)
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(accReg + 1)
	jumpBack := ir.OpJmpIf
	if n.Until {
		jumpBack = ir.OpJmpNot
	}
	p := s.emit(ir.EncodeAsBx(jumpBack, condReg, 0))
	s.buf.PatchJump(p, bodyPC)

	s.emit(ir.EncodeA(ir.OpLoadNil, accReg))
	breaks := frame.Breaks
	s.popLoop()
	s.buf.PatchChainHere(breaks)
	s.buf.Label()
	if mode == VAL {
		return accReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// pushNullary emits a nullary load (LOADNIL/LOADSELF/LOADT/LOADF) into a
// fresh register when mode == VAL; a pure nullary read is dead in NOVAL
// mode, so nothing is emitted.
func (s *ScopeUnit) pushNullary(mode Mode, op ir.Opcode) (int, error) {
	if mode == NOVAL {
		return 0, nil
	}
	reg := s.regs.Push()
	s.emit(ir.EncodeA(op, reg))
	return reg, nil
}

// maybeNil is the "VAL needs a value, NOVAL needs nothing" leaf used by
// an empty BEGIN, a dead-branch IF, and NODE_POSTEXE's result.
func (s *ScopeUnit) maybeNil(mode Mode) (int, error) {
	return s.pushNullary(mode, ir.OpLoadNil)
}

// genSymRead lowers a read of any symbol-addressed variable family
// (global/ivar/cvar/const) via its GETxx opcode. A pure read is dead in
// NOVAL mode but the symbol is still interned, matching how a front-end
// would have already registered the name regardless of how it's used.
func genSymRead(s *ScopeUnit, mode Mode, op ir.Opcode, name string) (int, error) {
	idx := s.syms.Sym(name)
	if mode == NOVAL {
		return 0, nil
	}
	reg := s.regs.Push()
	s.emit(ir.EncodeABx(op, reg, idx))
	return reg, nil
}

// genLVarRead resolves name in the current scope, then walks parents
// for an upvar, matching spec.md §4.1's LVAR row.
func genLVarRead(s *ScopeUnit, n *ast.LVar, mode Mode) (int, error) {
	if reg, ok := s.findLocal(n.Name); ok {
		if mode == NOVAL {
			return 0, nil
		}
		dst := s.regs.Push()
		s.emit(ir.EncodeAB(ir.OpMove, dst, reg))
		return dst, nil
	}
	if reg, depth, ok := s.findUpvar(n.Name); ok {
		if mode == NOVAL {
			return 0, nil
		}
		dst := s.regs.Push()
		s.emit(ir.EncodeABC(ir.OpGetUpvar, dst, reg, depth))
		return dst, nil
	}
	return 0, s.errf("undefined local variable or method '%s'", n.Name)
}

func genColon2(s *ScopeUnit, n *ast.Colon2, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	recvReg, err := codegenExpr(s, n.Recv, VAL)
	if err != nil {
		return 0, err
	}
	idx := s.syms.Sym(n.Name)
	if mode == NOVAL {
		s.regs.SetSP(sp0)
		return 0, nil
	}
	s.emit(ir.EncodeABx(ir.OpGetMCnst, recvReg, idx))
	return recvReg, nil
}

func genColon3(s *ScopeUnit, n *ast.Colon3, mode Mode) (int, error) {
	idx := s.syms.Sym(n.Name)
	if mode == NOVAL {
		return 0, nil
	}
	reg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpOClass, reg))
	s.emit(ir.EncodeABx(ir.OpGetMCnst, reg, idx))
	return reg, nil
}

// genDefined lowers operand in VAL mode, discards it, and yields nil: spec.md §9
// records that the source itself falls through without producing a
// boolean, so a faithful reimplementation intentionally does not
// synthesize one either.
func genDefined(s *ScopeUnit, n *ast.Defined, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	if _, err := codegenExpr(s, n.Value, VAL); err != nil {
		return 0, err
	}
	s.regs.SetSP(sp0)
	return s.maybeNil(mode)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
