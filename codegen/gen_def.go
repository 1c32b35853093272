package codegen

import (
	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// genDef lowers `def name(args); body; end`: compile body as a method
// lambda, then TCLASS/LAMBDA(METHOD)/METHOD on the current class. The
// lambda lands in the register adjacent to TCLASS's so METHOD can read
// both without a third operand, mirroring the source's register
// adjacency convention for this triad.
func genDef(s *ScopeUnit, n *ast.Def, mode Mode) (int, error) {
	sym, err := s.msym(n.Name)
	if err != nil {
		return 0, err
	}
	idx, err := compileMethodBody(s, n.Args, n.Body)
	if err != nil {
		return 0, err
	}
	sp0 := s.regs.Cursp()
	tclassReg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpTClass, tclassReg))
	lamReg := s.regs.Push()
	s.emit(ir.EncodeABC(ir.OpLambda, lamReg, idx, int(ir.LambdaMethod)))
	s.regs.SetSP(tclassReg)
	s.emit(ir.EncodeAB(ir.OpMethod, tclassReg, sym))
	if mode == NOVAL {
		s.regs.SetSP(sp0)
		return 0, nil
	}
	reg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpLoadSym, reg, sym))
	return reg, nil
}

// genSDef lowers `def recv.name(args); body; end`: open recv's
// singleton class in place, then the same LAMBDA(METHOD)/METHOD pair
// genDef uses.
func genSDef(s *ScopeUnit, n *ast.SDef, mode Mode) (int, error) {
	sym, err := s.msym(n.Name)
	if err != nil {
		return 0, err
	}
	idx, err := compileMethodBody(s, n.Args, n.Body)
	if err != nil {
		return 0, err
	}
	sp0 := s.regs.Cursp()
	recvReg, err := codegenExpr(s, n.Recv, VAL)
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeAB(ir.OpSClass, recvReg, recvReg))
	lamReg := s.regs.Push()
	s.emit(ir.EncodeABC(ir.OpLambda, lamReg, idx, int(ir.LambdaMethod)))
	s.regs.SetSP(recvReg)
	s.emit(ir.EncodeAB(ir.OpMethod, recvReg, sym))
	if mode == NOVAL {
		s.regs.SetSP(sp0)
		return 0, nil
	}
	reg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpLoadSym, reg, sym))
	return reg, nil
}

// compileMethodBody compiles args/body into a fresh mscope=true child
// Proc and returns its Reps index, the operand LAMBDA(METHOD) embeds.
func compileMethodBody(s *ScopeUnit, args *ast.MethodArgs, body ast.Node) (int, error) {
	child := newScope(s, true, s.opts)
	child.aspec = PackAspec(args)
	if err := bindMethodArgs(child, args); err != nil {
		return 0, err
	}
	reg, err := codegenExpr(child, body, VAL)
	if err != nil {
		return 0, err
	}
	child.emit(ir.EncodeAB(ir.OpReturn, reg, int(ir.ReturnNormal)))
	return s.addRep(child.finish()), nil
}

// classOuterReg lowers a CLASS/MODULE node's outer-namespace operand
// per spec.md §4.1: nil ⇒ LOADNIL, object-class ⇒ OCLASS, otherwise
// lower the explicit expression.
func classOuterReg(s *ScopeUnit, outer ast.ClassOuter, outerExpr ast.Node) (int, error) {
	switch outer {
	case ast.OuterNil:
		return s.pushNullary(VAL, ir.OpLoadNil)
	case ast.OuterObject:
		return s.pushNullary(VAL, ir.OpOClass)
	default:
		return codegenExpr(s, outerExpr, VAL)
	}
}

// genClassDef lowers `class Name[::Outer] [< Super]; body; end`. The
// outer-namespace register and, when present, the superclass register
// are adjacent (outerReg, outerReg+1); C signals to the VM whether a
// superclass operand follows, since this core's CLASS carries that as
// an explicit third field rather than mutating global register state.
func genClassDef(s *ScopeUnit, n *ast.ClassDef, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	outerReg, err := classOuterReg(s, n.Outer, n.OuterExpr)
	if err != nil {
		return 0, err
	}
	hasSuper := 0
	if n.Super != nil {
		if _, err := codegenExpr(s, n.Super, VAL); err != nil {
			return 0, err
		}
		hasSuper = 1
	} else {
		if _, err := s.pushNullary(VAL, ir.OpLoadNil); err != nil {
			return 0, err
		}
	}
	sym, err := s.msym(n.Name)
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(outerReg)
	s.emit(ir.EncodeABC(ir.OpClass, outerReg, sym, hasSuper))
	idx, err := compileScopeBody(s, n.Body)
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeABx(ir.OpExec, outerReg, idx))
	return s.finishCallResult(sp0, outerReg, mode), nil
}

// genModuleDef mirrors genClassDef without a superclass slot.
func genModuleDef(s *ScopeUnit, n *ast.ModuleDef, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	outerReg, err := classOuterReg(s, n.Outer, n.OuterExpr)
	if err != nil {
		return 0, err
	}
	sym, err := s.msym(n.Name)
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(outerReg)
	s.emit(ir.EncodeAB(ir.OpModule, outerReg, sym))
	idx, err := compileScopeBody(s, n.Body)
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeABx(ir.OpExec, outerReg, idx))
	return s.finishCallResult(sp0, outerReg, mode), nil
}

// genSClassDef lowers `class << recv; body; end`: open recv's singleton
// class in place and EXEC the body against it.
func genSClassDef(s *ScopeUnit, n *ast.SClassDef, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	recvReg, err := codegenExpr(s, n.Recv, VAL)
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeAB(ir.OpSClass, recvReg, recvReg))
	idx, err := compileScopeBody(s, n.Body)
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeABx(ir.OpExec, recvReg, idx))
	return s.finishCallResult(sp0, recvReg, mode), nil
}

// compileScopeBody compiles a class/module/sclass body into a fresh
// child Proc (no enclosing locals, mscope=false: a class body is
// executed rather than called like a method) and returns its Reps index.
func compileScopeBody(s *ScopeUnit, body ast.Node) (int, error) {
	child := newScope(s, false, s.opts)
	reg, err := codegenExpr(child, body, VAL)
	if err != nil {
		return 0, err
	}
	child.emit(ir.EncodeAB(ir.OpReturn, reg, int(ir.ReturnNormal)))
	return s.addRep(child.finish()), nil
}

// genAlias lowers `alias new old` via TCLASS.alias_method(:new, :old).
func genAlias(s *ScopeUnit, n *ast.Alias, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	tclassReg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpTClass, tclassReg))
	newReg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpLoadSym, newReg, s.syms.Sym(n.New)))
	oldReg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpLoadSym, oldReg, s.syms.Sym(n.Old)))
	sym, err := s.msym("alias_method")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(tclassReg)
	s.emit(ir.EncodeABC(ir.OpSend, tclassReg, sym, 2))
	return s.finishCallResult(sp0, tclassReg, mode), nil
}

// genUndef lowers `undef a, b, ...` via TCLASS.undef_method(:a, :b, ...).
func genUndef(s *ScopeUnit, n *ast.Undef, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	tclassReg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpTClass, tclassReg))
	for _, name := range n.Names {
		reg := s.regs.Push()
		s.emit(ir.EncodeABx(ir.OpLoadSym, reg, s.syms.Sym(name)))
	}
	sym, err := s.msym("undef_method")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(tclassReg)
	s.emit(ir.EncodeABC(ir.OpSend, tclassReg, sym, len(n.Names)))
	return s.finishCallResult(sp0, tclassReg, mode), nil
}
