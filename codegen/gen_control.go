package codegen

import (
	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// genReturn lowers `return expr` (nil Value means bare `return`, which
// returns nil). RETURN's mode operand is R_NORMAL in a method, lambda
// or top-level scope (mscope) and R_RETURN anywhere else, so a return
// inside a block unwinds to the lexically enclosing method.
func genReturn(s *ScopeUnit, n *ast.Return, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	var reg int
	var err error
	if n.Value != nil {
		reg, err = codegenExpr(s, n.Value, VAL)
	} else {
		reg, err = s.pushNullary(VAL, ir.OpLoadNil)
	}
	if err != nil {
		return 0, err
	}
	s.emitEnsureUnwind(0)
	kind := ir.ReturnNormal
	if !s.mscope {
		// a bare block isn't a method frame of its own: RETURN here must
		// unwind past it to the lexically enclosing method.
		kind = ir.ReturnReturn
	}
	s.emit(ir.EncodeAB(ir.OpReturn, reg, int(kind)))
	s.regs.SetSP(sp0)
	return s.maybeNil(mode)
}

// genNext lowers `next expr` inside the nearest enclosing loop (walking
// past Begin/Rescue frames the same way BREAK does, per this core's
// resolution of the loop-nesting ambiguity: a `next` inside a rescue
// clause still targets the enclosing while/for, not the rescue itself).
// Inside a block activation (LoopBlock/LoopFor), the loop body is a
// separate child Proc, so "next" can't jump in-proc: it has to return
// from this call the ordinary way, letting the each-style caller drive
// the next iteration.
func genNext(s *ScopeUnit, n *ast.Next, mode Mode) (int, error) {
	frame, begins := s.loops.NearestLoop()
	if frame == nil {
		return 0, s.errf("next used outside of a loop")
	}
	sp0 := s.regs.Cursp()
	if frame.Kind == LoopFor || frame.Kind == LoopBlock {
		reg, err := nextValueReg(s, n.Value)
		if err != nil {
			return 0, err
		}
		s.emitPopErrs(begins)
		s.emitEnsureUnwind(frame.EnsureLevel)
		s.emit(ir.EncodeAB(ir.OpReturn, reg, int(ir.ReturnNormal)))
		s.regs.SetSP(sp0)
		return s.maybeNil(mode)
	}
	if n.Value != nil {
		if _, err := codegenExpr(s, n.Value, NOVAL); err != nil {
			return 0, err
		}
	}
	s.regs.SetSP(sp0)
	s.emitPopErrs(begins)
	s.emitEnsureUnwind(frame.EnsureLevel)
	s.emitJumpTo(ir.OpJmp, 0, frame.PC1)
	return s.maybeNil(mode)
}

func nextValueReg(s *ScopeUnit, value ast.Node) (int, error) {
	if value != nil {
		return codegenExpr(s, value, VAL)
	}
	return s.pushNullary(VAL, ir.OpLoadNil)
}

// genBreak lowers `break expr`. In a plain while/for loop, the value
// lands in the loop frame's acc register and control jumps to the
// frame's exit label via its pending Breaks chain. Inside a block
// activation, break has to unwind past the each-style caller entirely,
// so it returns with the ReturnBreak tag instead — the VM resumes
// execution at the enclosing SENDB's call site.
func genBreak(s *ScopeUnit, n *ast.Break, mode Mode) (int, error) {
	frame, begins := s.loops.NearestLoop()
	if frame == nil {
		return 0, s.errf("break used outside of a loop")
	}
	sp0 := s.regs.Cursp()
	valReg, err := nextValueReg(s, n.Value)
	if err != nil {
		return 0, err
	}
	if frame.Kind == LoopFor || frame.Kind == LoopBlock {
		s.emitPopErrs(begins)
		s.emitEnsureUnwind(frame.EnsureLevel)
		s.emit(ir.EncodeAB(ir.OpReturn, valReg, int(ir.ReturnBreak)))
		s.regs.SetSP(sp0)
		return s.maybeNil(mode)
	}
	if valReg != frame.Acc {
		s.emit(ir.EncodeAB(ir.OpMove, frame.Acc, valReg))
	}
	s.regs.SetSP(sp0)
	s.emitPopErrs(begins)
	s.emitEnsureUnwind(frame.EnsureLevel)
	pc := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))
	frame.Breaks = append(frame.Breaks, pc)
	return s.maybeNil(mode)
}

// genRedo restarts the current loop body (or block activation) from its
// top, without re-testing the loop condition.
func genRedo(s *ScopeUnit, n *ast.Redo, mode Mode) (int, error) {
	frame, begins := s.loops.NearestLoop()
	if frame == nil {
		return 0, s.errf("redo used outside of a loop or block")
	}
	s.emitPopErrs(begins)
	s.emitEnsureUnwind(frame.EnsureLevel)
	s.emitJumpTo(ir.OpJmp, 0, frame.PC2)
	return s.maybeNil(mode)
}

// genRetry re-enters the body of the nearest enclosing begin/rescue,
// unwinding any LOOP_BEGIN frames crossed along the way (each owns one
// ONERR region that must be popped before the body re-runs under a
// fresh one).
func genRetry(s *ScopeUnit, n *ast.Retry, mode Mode) (int, error) {
	frame, begins := s.loops.NearestRescue()
	if frame == nil {
		return 0, s.errf("retry used outside of a rescue clause")
	}
	s.emitPopErrs(begins)
	s.emitEnsureUnwind(frame.EnsureLevel)
	s.emitJumpTo(ir.OpJmp, 0, frame.PC1)
	return s.maybeNil(mode)
}

// genFor desugars `for vars in iter; body; end` into
// `iter.each { |*vars| body }` (spec.md §4.7), binding vars against the
// block's single implicit argument via the same multi-assignment
// helper ordinary masgn uses.
func genFor(s *ScopeUnit, n *ast.For, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	iterReg, err := codegenExpr(s, n.Iter, VAL)
	if err != nil {
		return 0, err
	}

	child := newScope(s, false, s.opts)
	child.aspec = forAspec
	argReg := child.newLocal("")
	child.pushLoop(LoopFor)
	if err := assignMLHSFromReg(child, n.Vars, argReg); err != nil {
		return 0, err
	}
	bodyReg, err := codegenExpr(child, n.Body, VAL)
	if err != nil {
		return 0, err
	}
	child.popLoop()
	child.emit(ir.EncodeAB(ir.OpReturn, bodyReg, int(ir.ReturnNormal)))
	idx := s.addRep(child.finish())

	blockReg := s.regs.Push()
	s.emit(ir.EncodeABC(ir.OpLambda, blockReg, idx, int(ir.LambdaBlock)))
	s.regs.SetSP(iterReg)
	sym, err := s.msym("each")
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeABC(ir.OpSendB, iterReg, sym, 0))
	return s.finishCallResult(sp0, iterReg, mode), nil
}

// genCase lowers spec.md §4.1's CASE row: each `when` clause tests its
// patterns against the subject via `===` (or as a plain boolean when
// Subject is nil), short-circuiting to that arm's body on the first
// match.
func genCase(s *ScopeUnit, n *ast.Case, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	var subjReg int
	hasSubject := n.Subject != nil
	if hasSubject {
		var err error
		subjReg, err = codegenExpr(s, n.Subject, VAL)
		if err != nil {
			return 0, err
		}
	}
	bodyReg := s.regs.Cursp()

	var exitJumps JumpChain
	for _, when := range n.Whens {
		var nextClause JumpChain
		for _, pat := range when.Patterns {
			matchReg := s.regs.Cursp()
			if splat, ok := pat.(*ast.Splat); ok {
				// `when *arr` tests `arr.include?(subject)`.
				testReg, err := codegenExpr(s, splat.Value, VAL)
				if err != nil {
					return 0, err
				}
				sym, err := s.msym("include?")
				if err != nil {
					return 0, err
				}
				if hasSubject {
					s.emit(ir.EncodeAB(ir.OpMove, testReg+1, subjReg))
				} else {
					s.emit(ir.EncodeA(ir.OpLoadT, testReg+1))
				}
				s.regs.SetSP(testReg + 1)
				s.emit(ir.EncodeABC(ir.OpSend, testReg, sym, 1))
				p := s.emit(ir.EncodeAsBx(ir.OpJmpIf, testReg, 0))
				s.regs.SetSP(matchReg)
				matchJump(&nextClause, p)
				continue
			}

			if !hasSubject {
				condReg, err := codegenExpr(s, pat, VAL)
				if err != nil {
					return 0, err
				}
				p := s.emit(ir.EncodeAsBx(ir.OpJmpIf, condReg, 0))
				s.regs.SetSP(matchReg)
				matchJump(&nextClause, p)
				continue
			}

			// `pat === subject`.
			testReg, err := codegenExpr(s, pat, VAL)
			if err != nil {
				return 0, err
			}
			sym, err := s.msym("===")
			if err != nil {
				return 0, err
			}
			s.emit(ir.EncodeAB(ir.OpMove, testReg+1, subjReg))
			s.regs.SetSP(testReg + 1)
			s.emit(ir.EncodeABC(ir.OpSend, testReg, sym, 1))
			p := s.emit(ir.EncodeAsBx(ir.OpJmpIf, testReg, 0))
			s.regs.SetSP(matchReg)
			matchJump(&nextClause, p)
		}
		skipBody := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))

		s.buf.PatchChainHere(nextClause)
		s.buf.Label()
		if _, err := codegenExpr(s, when.Body, mode); err != nil {
			return 0, err
		}
		s.regs.SetSP(bodyReg)
		p := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))
		exitJumps = append(exitJumps, p)
		s.buf.PatchJump(skipBody, s.buf.PC())
		s.buf.Label()
	}

	if n.Else != nil {
		if _, err := codegenExpr(s, n.Else, mode); err != nil {
			return 0, err
		}
	} else {
		if _, err := s.maybeNil(mode); err != nil {
			return 0, err
		}
	}
	s.buf.PatchChainHere(exitJumps)
	s.buf.Label()
	if mode == VAL {
		if bodyReg != sp0 {
			s.emit(ir.EncodeAB(ir.OpMove, sp0, bodyReg))
		}
		s.regs.SetSP(sp0 + 1)
		return sp0, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// matchJump records a JMPIF that fires straight into the clause's body
// on a pattern match; a non-match just falls through to the next
// pattern test. nextClause collects every such jump so they can all be
// patched to the body's entry point once the last pattern has been
// tried.
func matchJump(chain *JumpChain, pc int) {
	*chain = append(*chain, pc)
}

// genRescue lowers spec.md §4.6/§4.8: ONERR guards Body, each handler
// tests the raised exception's class membership via `===`-style
// matching (defaulting to StandardError when a clause names no
// classes), binds its `=> var`, and runs its Body; an unmatched
// exception re-raises. Else runs only when Body completed without
// raising.
func genRescue(s *ScopeUnit, n *ast.Rescue, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	onerrPC := s.emit(ir.EncodeAsBx(ir.OpOnErr, 0, 0))

	s.pushLoop(LoopBegin)
	bodyReg, err := codegenExpr(s, n.Body, VAL)
	if err != nil {
		return 0, err
	}
	s.popLoop()
	s.regs.SetSP(sp0)
	s.emit(ir.EncodeA(ir.OpPopErr, 1))

	resultReg := s.regs.Push()
	if bodyReg != resultReg {
		s.emit(ir.EncodeAB(ir.OpMove, resultReg, bodyReg))
	}
	if n.Else != nil {
		s.regs.SetSP(resultReg)
		elseReg, err := codegenExpr(s, n.Else, VAL)
		if err != nil {
			return 0, err
		}
		if elseReg != resultReg {
			s.emit(ir.EncodeAB(ir.OpMove, resultReg, elseReg))
		}
	}
	s.regs.SetSP(resultReg + 1)
	doneJump := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))

	s.buf.PatchJump(onerrPC, s.buf.PC())
	s.buf.Label()
	s.regs.SetSP(sp0)
	excReg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpErr, excReg))

	rescue := s.pushLoop(LoopRescue)
	rescue.PC1 = onerrPC
	var handlerExits JumpChain
	var nextHandler JumpChain
	for _, clause := range n.Handlers {
		s.buf.PatchChainHere(nextHandler)
		s.buf.Label()
		nextHandler = nil

		matchBase := s.regs.Cursp()
		var hits JumpChain
		if len(clause.Classes) == 0 {
			testReg := s.regs.Push()
			sym, serr := s.msym("===")
			if serr != nil {
				return 0, serr
			}
			s.emit(ir.EncodeA(ir.OpOClass, testReg))
			s.emit(ir.EncodeABx(ir.OpGetMCnst, testReg, s.syms.Sym("StandardError")))
			s.emit(ir.EncodeAB(ir.OpMove, testReg+1, excReg))
			s.regs.SetSP(testReg + 1)
			s.emit(ir.EncodeABC(ir.OpSend, testReg, sym, 1))
			p := s.emit(ir.EncodeAsBx(ir.OpJmpIf, testReg, 0))
			s.regs.SetSP(matchBase)
			hits = append(hits, p)
		} else {
			for _, cls := range clause.Classes {
				testReg, cerr := codegenExpr(s, cls, VAL)
				if cerr != nil {
					return 0, cerr
				}
				sym, serr := s.msym("===")
				if serr != nil {
					return 0, serr
				}
				s.emit(ir.EncodeAB(ir.OpMove, testReg+1, excReg))
				s.regs.SetSP(testReg + 1)
				s.emit(ir.EncodeABC(ir.OpSend, testReg, sym, 1))
				p := s.emit(ir.EncodeAsBx(ir.OpJmpIf, testReg, 0))
				s.regs.SetSP(matchBase)
				hits = append(hits, p)
			}
		}
		missJump := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))
		s.buf.PatchChainHere(hits)
		s.buf.Label()

		if clause.Var != nil {
			if err := assignTarget(s, clause.Var, excReg); err != nil {
				return 0, err
			}
		}
		handlerReg, herr := codegenExpr(s, clause.Body, VAL)
		if herr != nil {
			return 0, herr
		}
		if handlerReg != resultReg {
			s.emit(ir.EncodeAB(ir.OpMove, resultReg, handlerReg))
		}
		s.regs.SetSP(resultReg + 1)
		exitP := s.emit(ir.EncodeAsBx(ir.OpJmp, 0, 0))
		handlerExits = append(handlerExits, exitP)
		nextHandler = append(nextHandler, missJump)
	}
	s.popLoop()

	s.buf.PatchChainHere(nextHandler)
	s.buf.Label()
	s.emit(ir.EncodeA(ir.OpRaise, excReg))

	s.buf.PatchChainHere(handlerExits)
	s.buf.PatchJump(doneJump, s.buf.PC())
	s.buf.Label()

	if mode == VAL {
		return resultReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// genEnsure lowers spec.md §4.6's ENSURE: EPUSH wraps a child Proc
// holding EnsureBody, Body runs at ensure_level+1, and an EPOP on every
// exit path (normal fallthrough here; RETURN/BREAK/NEXT/RETRY unwind
// through emitEnsureUnwind/emitPopErrs at their own emission sites)
// restores the level.
func genEnsure(s *ScopeUnit, n *ast.Ensure, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()

	child := newScope(s, true, s.opts)
	eReg, err := codegenExpr(child, n.EnsureBody, VAL)
	if err != nil {
		return 0, err
	}
	child.emit(ir.EncodeAB(ir.OpReturn, eReg, int(ir.ReturnNormal)))
	idx := s.addRep(child.finish())
	s.emit(ir.EncodeABx(ir.OpEPush, 0, idx))
	s.ensureLevel++

	bodyReg, err := codegenExpr(s, n.Body, mode)
	if err != nil {
		return 0, err
	}

	s.ensureLevel--
	s.emit(ir.EncodeA(ir.OpEPop, 1))

	if mode == VAL {
		return bodyReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}
