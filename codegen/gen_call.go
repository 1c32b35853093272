package codegen

import (
	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// fastPathOps maps a binary operator name to its open-coded SEND fast
// path (spec.md §4.2 step 7): ADD/SUB/MUL/DIV/LT/LE/GT/GE/EQ, each
// still carrying the operator's symbol id in B for the VM's fallback
// dispatch if the receiver isn't a fast-pathable type.
var fastPathOps = map[string]ir.Opcode{
	"+": ir.OpAdd, "-": ir.OpSub, "*": ir.OpMul, "/": ir.OpDiv,
	"<": ir.OpLT, "<=": ir.OpLE, ">": ir.OpGT, ">=": ir.OpGE, "==": ir.OpEQ,
}

// genValues lowers a call-site argument list (spec.md §4.4). On the
// flat path it returns the argument count n (< 128); on encountering a
// splat, or exceeding 127 arguments, it switches to array-building mode
// (ARRAY then ARYPUSH/ARYCAT per element) and returns -1, signaling the
// caller to pass args as a single array via CALL_MAXARGS.
func genValues(s *ScopeUnit, items []Node, startReg int) (n int, spread bool, err error) {
	needsArray := len(items) > ir.MaxDirectArgs
	for _, item := range items {
		if _, ok := item.(*ast.Splat); ok {
			needsArray = true
			break
		}
	}
	if !needsArray {
		for _, item := range items {
			if _, err := codegenExpr(s, item, VAL); err != nil {
				return 0, false, err
			}
		}
		return len(items), false, nil
	}

	if len(items) > 0 {
		if sp, ok := items[0].(*ast.Splat); ok {
			if arr, ok := sp.Value.(*ast.ArrayLit); ok {
				// avoid double-wrapping a literal array splat at the head.
				return genValuesArrayMode(s, arr.Elements, items[1:], startReg)
			}
		}
	}
	return genValuesArrayMode(s, nil, items, startReg)
}

// genValuesArrayMode builds an ARRAY from flat (non-splat, already
// known not to contain one) then folds rest (which may start with a
// splat) onto it via ARYPUSH/ARYCAT.
func genValuesArrayMode(s *ScopeUnit, flat []Node, rest []Node, startReg int) (int, bool, error) {
	s.regs.SetSP(startReg)
	for _, item := range flat {
		if _, err := codegenExpr(s, item, VAL); err != nil {
			return 0, false, err
		}
	}
	arrReg := startReg
	s.emit(ir.EncodeABC(ir.OpArray, arrReg, startReg, len(flat)))
	s.regs.SetSP(arrReg + 1)
	for _, item := range rest {
		if sp, ok := item.(*ast.Splat); ok {
			elReg, err := codegenExpr(s, sp.Value, VAL)
			if err != nil {
				return 0, false, err
			}
			s.emit(ir.EncodeAB(ir.OpAryCat, arrReg, elReg))
		} else {
			elReg, err := codegenExpr(s, item, VAL)
			if err != nil {
				return 0, false, err
			}
			s.emit(ir.EncodeAB(ir.OpAryPush, arrReg, elReg))
		}
		s.regs.SetSP(arrReg + 1)
	}
	return -1, true, nil
}

// Node is a local alias so this file reads closer to the spec's own
// "gen_values(nodes)" phrasing without repeating the ast. prefix.
type Node = ast.Node

// genCallNode lowers a Call AST node via sendCall, the shared send
// machinery also used by attribute-assignment and SUPER/YIELD paths.
func genCallNode(s *ScopeUnit, n *ast.Call, mode Mode) (int, error) {
	return sendCall(s, n.Recv, n.Name, n.Args, n.Block, n.Safe, 0, mode)
}

// sendCall implements gen_call (spec.md §4.2). reuseReg, when nonzero,
// is a register from an enclosing compound-assignment receiver that
// must be folded in as an extra trailing argument (step 4).
func sendCall(s *ScopeUnit, recvNode ast.Node, name string, args *ast.Args, block *ast.Block, safe bool, reuseReg int, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()

	var recvReg int
	var err error
	if recvNode != nil {
		recvReg, err = codegenExpr(s, recvNode, VAL)
	} else {
		recvReg, err = s.pushNullary(VAL, ir.OpLoadSelf)
	}
	if err != nil {
		return 0, err
	}

	var safeSkip int
	if safe {
		nilReg := s.regs.Push()
		s.emit(ir.EncodeA(ir.OpLoadNil, nilReg))
		argReg := s.regs.Push()
		s.emit(ir.EncodeAB(ir.OpMove, argReg, recvReg))
		eqSym, eqErr := s.msym("==")
		if eqErr != nil {
			return 0, eqErr
		}
		s.emit(ir.EncodeABC(ir.OpEQ, nilReg, eqSym, 1))
		s.regs.SetSP(recvReg + 1)
		safeSkip = s.emit(ir.EncodeAsBx(ir.OpJmpIf, nilReg, 0))
	}

	var items []ast.Node
	if args != nil {
		items = args.Items
	}
	n, sendv, err := genValues(s, items, recvReg+1)
	if err != nil {
		return 0, err
	}
	if sendv {
		n = 1
	}

	if reuseReg != 0 {
		if sendv {
			s.emit(ir.EncodeAB(ir.OpAryPush, recvReg+1, reuseReg))
		} else {
			extra := s.regs.Push()
			s.emit(ir.EncodeAB(ir.OpMove, extra, reuseReg))
			n++
		}
	}

	var blockArg ast.Node
	if args != nil {
		blockArg = args.Block
	}
	hasBlock := block != nil || blockArg != nil
	if hasBlock {
		blockReg := s.regs.Cursp()
		if block != nil {
			if err := genBlockLiteral(s, block, blockReg); err != nil {
				return 0, err
			}
		} else if _, err := codegenExpr(s, blockArg, VAL); err != nil {
			return 0, err
		}
		s.regs.SetSP(blockReg + 1)
	}

	s.regs.SetSP(recvReg)

	var instr ir.Instruction
	if op, ok := fastPathOps[name]; ok && !sendv && n == 1 && !hasBlock {
		sym, symErr := s.msym(name)
		if symErr != nil {
			return 0, symErr
		}
		instr = ir.EncodeABC(op, recvReg, sym, 1)
	} else {
		sym, symErr := s.msym(name)
		if symErr != nil {
			return 0, symErr
		}
		argc := n
		if sendv {
			argc = ir.MaxDirectArgs
		}
		op := ir.OpSend
		if hasBlock {
			op = ir.OpSendB
		}
		instr = ir.EncodeABC(op, recvReg, sym, argc)
	}
	s.emit(instr)

	if safe {
		s.buf.PatchJump(safeSkip, s.buf.PC())
		s.buf.Label()
	}

	if mode == VAL {
		result := s.regs.Push()
		if result != recvReg {
			s.emit(ir.EncodeAB(ir.OpMove, result, recvReg))
		}
		return result, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// genBlockLiteral compiles a block into a child Proc, then emits a
// LAMBDA(BLOCK) into dstReg.
func genBlockLiteral(s *ScopeUnit, block *ast.Block, dstReg int) error {
	child := newScope(s, false, s.opts)
	child.aspec = PackAspec(block.Args)
	if err := bindMethodArgs(child, block.Args); err != nil {
		return err
	}
	child.pushLoop(LoopBlock)
	reg, err := codegenExpr(child, block.Body, VAL)
	if err != nil {
		return err
	}
	child.popLoop()
	child.emit(ir.EncodeAB(ir.OpReturn, reg, int(ir.ReturnNormal)))
	idx := s.addRep(child.finish())
	s.emit(ir.EncodeABC(ir.OpLambda, dstReg, idx, int(ir.LambdaBlock)))
	return nil
}

// genSuper lowers explicit-arg `super(...)`.
func genSuper(s *ScopeUnit, n *ast.Super, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	selfReg, err := s.pushNullary(VAL, ir.OpLoadSelf)
	if err != nil {
		return 0, err
	}
	var items []ast.Node
	if n.Args != nil {
		items = n.Args.Items
	}
	argc, sendv, err := genValues(s, items, selfReg+1)
	if err != nil {
		return 0, err
	}
	if sendv {
		argc = ir.MaxDirectArgs
	}
	s.regs.SetSP(selfReg)
	s.emit(ir.EncodeABC(ir.OpSuper, selfReg, 0, argc))
	return s.finishCallResult(sp0, selfReg, mode), nil
}

// genZSuper derives its argument list from the enclosing method's own
// parameters (ARGARY from the nearest mscope ancestor's ainfo).
func genZSuper(s *ScopeUnit, n *ast.ZSuper, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	owner := s
	for owner != nil && !owner.mscope {
		owner = owner.parent
	}
	if owner == nil {
		return 0, s.errf("zsuper used outside of a method")
	}
	info := AInfo(UnpackAspec(owner.aspec))
	selfReg, err := s.pushNullary(VAL, ir.OpLoadSelf)
	if err != nil {
		return 0, err
	}
	argReg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpArgAry, argReg, info))
	s.regs.SetSP(selfReg)
	s.emit(ir.EncodeABC(ir.OpSuper, selfReg, 0, ir.MaxDirectArgs))
	return s.finishCallResult(sp0, selfReg, mode), nil
}

// genYield lowers `yield(...)`: BLKPUSH the enclosing method's block
// parameter, then SEND :call.
func genYield(s *ScopeUnit, n *ast.Yield, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	owner := s
	for owner != nil && !owner.mscope {
		owner = owner.parent
	}
	if owner == nil {
		return 0, s.errf("yield used outside of a method")
	}
	info := AInfo(UnpackAspec(owner.aspec))
	blkReg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpBlkPush, blkReg, info))
	var items []ast.Node
	if n.Args != nil {
		items = n.Args.Items
	}
	argc, sendv, err := genValues(s, items, blkReg+1)
	if err != nil {
		return 0, err
	}
	if sendv {
		argc = ir.MaxDirectArgs
	}
	sym, err := s.msym("call")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(blkReg)
	s.emit(ir.EncodeABC(ir.OpSend, blkReg, sym, argc))
	return s.finishCallResult(sp0, blkReg, mode), nil
}

func (s *ScopeUnit) finishCallResult(sp0, resultReg int, mode Mode) int {
	if mode == VAL {
		out := s.regs.Push()
		if out != resultReg {
			s.emit(ir.EncodeAB(ir.OpMove, out, resultReg))
		}
		return out
	}
	s.regs.SetSP(sp0)
	return 0
}

// genAttrAssign lowers `recv.name = srcReg` (spec.md §4.1 ASGN row when
// the LHS is a Call): a SEND to attrsym(name) = name + "=" with srcReg
// as the sole argument (spec.md §9's attrsym concatenation note).
func genAttrAssign(s *ScopeUnit, call *ast.Call, srcReg int) error {
	sp0 := s.regs.Cursp()
	recvReg, err := codegenExpr(s, call.Recv, VAL)
	if err != nil {
		return err
	}
	argReg := s.regs.Push()
	s.emit(ir.EncodeAB(ir.OpMove, argReg, srcReg))
	sym, err := s.msym(call.Name + "=")
	if err != nil {
		return err
	}
	s.emit(ir.EncodeABC(ir.OpSend, recvReg, sym, 1))
	s.regs.SetSP(sp0)
	return nil
}

// bindMethodArgs reserves one local register per required/optional/
// rest/post/keyword/block parameter, in source order, starting at
// register 1 (register 0 is self). Only the registers are reserved:
// default-value expressions of optional and keyword parameters are not
// lowered, and no jump table over already-supplied optionals is
// emitted.
func bindMethodArgs(s *ScopeUnit, args *ast.MethodArgs) error {
	if args == nil {
		return nil
	}
	for _, name := range args.Required {
		s.newLocal(name)
	}
	for _, opt := range args.Optional {
		s.newLocal(opt.Name)
	}
	if args.Rest != "" {
		s.newLocal(args.Rest)
	}
	for _, name := range args.Post {
		s.newLocal(name)
	}
	for _, kw := range args.Keyword {
		s.newLocal(kw.Name)
	}
	if args.KeywordRest != "" {
		s.newLocal(args.KeywordRest)
	}
	if args.Block != "" {
		s.newLocal(args.Block)
	}
	s.emit(ir.EncodeAx(ir.OpEnter, s.aspec))
	return nil
}
