package codegen

import (
	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// genAsgn lowers a single-target assignment: RHS VAL, then
// gen_assignment(lhs, cursp(), mode) (spec.md §4.1 ASGN row).
func genAsgn(s *ScopeUnit, n *ast.Asgn, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	rhsReg, err := codegenExpr(s, n.RHS, VAL)
	if err != nil {
		return 0, err
	}
	if err := assignTarget(s, n.LHS, rhsReg); err != nil {
		return 0, err
	}
	if mode == VAL {
		return rhsReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// assignTarget stores srcReg into lhs, resolving locals, upvars,
// globals/ivars/cvars/consts, and Call (attribute-setter) targets.
func assignTarget(s *ScopeUnit, lhs ast.Node, srcReg int) error {
	switch t := lhs.(type) {
	case *ast.LVar:
		if reg, ok := s.findLocal(t.Name); ok {
			if reg != srcReg {
				s.emit(ir.EncodeAB(ir.OpMove, reg, srcReg))
			}
			return nil
		}
		if upReg, depth, ok := s.findUpvar(t.Name); ok {
			s.emit(ir.EncodeABC(ir.OpSetUpvar, srcReg, upReg, depth))
			return nil
		}
		reg := s.newLocal(t.Name)
		if reg != srcReg {
			s.emit(ir.EncodeAB(ir.OpMove, reg, srcReg))
		}
		return nil

	case *ast.GVar:
		idx := s.syms.Sym(t.Name)
		s.emit(ir.EncodeABx(ir.OpSetGlobal, srcReg, idx))
		return nil
	case *ast.IVar:
		idx := s.syms.Sym(t.Name)
		s.emit(ir.EncodeABx(ir.OpSetIV, srcReg, idx))
		return nil
	case *ast.CVar:
		idx := s.syms.Sym(t.Name)
		s.emit(ir.EncodeABx(ir.OpSetCV, srcReg, idx))
		return nil
	case *ast.Const:
		idx := s.syms.Sym(t.Name)
		s.emit(ir.EncodeABx(ir.OpSetConst, srcReg, idx))
		return nil
	case *ast.Colon2:
		// A single SETMCNST with the value register and the constant's
		// name, following SETCONST's single-register convention; the
		// scope expression on the left of `::` is not evaluated and no
		// namespace operand is emitted.
		idx := s.syms.Sym(t.Name)
		s.emit(ir.EncodeABx(ir.OpSetMCnst, srcReg, idx))
		return nil
	case *ast.Call:
		return genAttrAssign(s, t, srcReg)
	default:
		return s.errf("invalid assignment target %T", lhs)
	}
}

// genOpAsgn desugars `lhs op= rhs`.
func genOpAsgn(s *ScopeUnit, n *ast.OpAsgn, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()

	if n.Op == "||" || n.Op == "&&" {
		curReg, err := readLHSProbe(s, n.LHS)
		if err != nil {
			return 0, err
		}
		jumpOp := ir.OpJmpIf
		if n.Op == "&&" {
			jumpOp = ir.OpJmpNot
		}
		p := s.emit(ir.EncodeAsBx(jumpOp, curReg, 0))
		s.regs.SetSP(curReg)
		rhsReg, err := codegenExpr(s, n.RHS, VAL)
		if err != nil {
			return 0, err
		}
		if err := assignTarget(s, n.LHS, rhsReg); err != nil {
			return 0, err
		}
		s.buf.PatchJump(p, s.buf.PC())
		if mode == VAL {
			return curReg, nil
		}
		s.regs.SetSP(sp0)
		return 0, nil
	}

	curReg, err := readLHSProbe(s, n.LHS)
	if err != nil {
		return 0, err
	}
	// codegenExpr's VAL convention always lands its result at the sp it
	// was called with, so the RHS comes in at exactly curReg+1, already
	// where SEND/the fast-path op expects its sole argument.
	if _, err := codegenExpr(s, n.RHS, VAL); err != nil {
		return 0, err
	}
	sym, err := s.msym(n.Op)
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(curReg + 1)
	if op, ok := fastPathOps[n.Op]; ok {
		s.emit(ir.EncodeABC(op, curReg, sym, 1))
	} else {
		s.emit(ir.EncodeABC(ir.OpSend, curReg, sym, 1))
	}
	if err := assignTarget(s, n.LHS, curReg); err != nil {
		return 0, err
	}
	if mode == VAL {
		return curReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// readLHSProbe reads an OP_ASGN target's current value into a fresh
// register, the way a plain read of that same node shape would.
func readLHSProbe(s *ScopeUnit, lhs ast.Node) (int, error) {
	return codegenExpr(s, lhs, VAL)
}

// genMAsgn implements gen_vmassignment's two shapes (spec.md §4.3).
func genMAsgn(s *ScopeUnit, n *ast.MAsgn, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()

	if n.FixedRHS != nil {
		rhsStart := s.regs.Cursp()
		for _, expr := range n.FixedRHS {
			if _, err := codegenExpr(s, expr, VAL); err != nil {
				return 0, err
			}
		}
		rhsLen := len(n.FixedRHS)
		pre := len(n.LHS.Pre)
		post := len(n.LHS.Post)
		for i, target := range n.LHS.Pre {
			if err := assignTarget(s, target, rhsStart+i); err != nil {
				return 0, err
			}
		}
		rn := rhsLen - pre - post
		if rn < 0 {
			rn = 0
		}
		if n.LHS.Rest != nil {
			destReg := s.regs.Cursp()
			s.emit(ir.EncodeABC(ir.OpArray, destReg, rhsStart+pre, rn))
			s.regs.SetSP(destReg + 1)
			if err := assignTarget(s, n.LHS.Rest, destReg); err != nil {
				return 0, err
			}
		}
		for i, target := range n.LHS.Post {
			if err := assignTarget(s, target, rhsStart+pre+rn+i); err != nil {
				return 0, err
			}
		}
		if mode == VAL {
			result := sp0
			s.emit(ir.EncodeABC(ir.OpArray, result, rhsStart, rhsLen))
			s.regs.SetSP(result + 1)
			return result, nil
		}
		s.regs.SetSP(sp0)
		return 0, nil
	}

	rhsReg, err := codegenExpr(s, n.RHS, VAL)
	if err != nil {
		return 0, err
	}
	if err := assignMLHSFromReg(s, n.LHS, rhsReg); err != nil {
		return 0, err
	}
	if mode == VAL {
		return rhsReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// assignMLHSFromReg implements the "variable RHS" shape of §4.3: rhsReg
// already holds an array-like value; AREF pulls out each pre-target,
// APOST splits off the rest/post tail.
func assignMLHSFromReg(s *ScopeUnit, lhs ast.MLHS, rhsReg int) error {
	pre := len(lhs.Pre)
	post := len(lhs.Post)
	for i, target := range lhs.Pre {
		tmp := s.regs.Push()
		s.emit(ir.EncodeABC(ir.OpARef, tmp, rhsReg, i))
		if err := assignTarget(s, target, tmp); err != nil {
			return err
		}
		s.regs.SetSP(tmp)
	}
	if lhs.Rest != nil || post > 0 {
		restReg := s.regs.Push()
		s.emit(ir.EncodeABC(ir.OpAPost, restReg, pre, post))
		if lhs.Rest != nil {
			if err := assignTarget(s, lhs.Rest, restReg); err != nil {
				return err
			}
		}
		for i, target := range lhs.Post {
			tmp := restReg + 1 + i
			if err := assignTarget(s, target, tmp); err != nil {
				return err
			}
		}
		s.regs.SetSP(restReg)
	}
	return nil
}
