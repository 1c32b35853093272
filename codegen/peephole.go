package codegen

import "github.com/cinder-lang/cinder/ir"

// peepAction tells Emit what to do with a peephole match.
type peepAction int

const (
	peepNone      peepAction = iota // no rule matched; append next as-is
	peepDropBoth                    // remove prev, do not append next either
	peepElideNext                   // keep prev unchanged, do not append next
	peepRewrite                     // remove prev; the returned instruction becomes the new candidate (recurse)
)

// peepCtx supplies the scope state rule 4/5/6/7/8/9/13/15/16 need:
// which registers are locals vs temps, whether the caller wants a
// value, and literal-pool lookups for the STRCAT elision rules.
type peepCtx struct {
	NLocals    int
	ValIsNoval bool
	IsEmptyStr func(poolIdx int) bool
}

func (c peepCtx) isTemp(reg int) bool { return reg >= c.NLocals }

// fusableDest is the set of opcodes rules 6/7/8 allow folding a
// following MOVE's destination into: anything whose A operand is the
// register the MOVE is about to copy out of.
var fusableDest = map[ir.Opcode]bool{
	ir.OpArray: true, ir.OpHash: true, ir.OpRange: true, ir.OpARef: true, ir.OpGetUpvar: true,
	ir.OpLoadSym: true, ir.OpGetGlobal: true, ir.OpGetIV: true, ir.OpGetCV: true,
	ir.OpGetConst: true, ir.OpGetSpecial: true, ir.OpLoadL: true, ir.OpString: true,
	ir.OpSClass: true, ir.OpLoadNil: true, ir.OpLoadSelf: true, ir.OpLoadT: true, ir.OpLoadF: true, ir.OpOClass: true,
}

var setFamily = map[ir.Opcode]bool{
	ir.OpSetIV: true, ir.OpSetCV: true, ir.OpSetConst: true, ir.OpSetMCnst: true, ir.OpSetGlobal: true,
}

// peep implements genop_peep's closed ruleset (spec.md §4.5), rules
// 2-13 and 15-17; rule 14 is not implemented (rule 1, MOVE a,a
// elision, is checked by the caller before any
// prev instruction is available). It is a pure function of the two
// instructions and the ambient scope state: easy to unit test in
// isolation, per spec.md §9's suggestion.
func peep(prev, next ir.Instruction, ctx peepCtx) (ir.Instruction, peepAction) {
	// Rule 3: MOVE a,b after MOVE b,a (swap cancels).
	if prev.Opcode() == ir.OpMove && next.Opcode() == ir.OpMove &&
		prev.A() == next.B() && prev.B() == next.A() {
		return 0, peepDropBoth
	}

	// Rule 2: MOVE a,b after MOVE a,x (prior write to a is dead).
	if prev.Opcode() == ir.OpMove && next.Opcode() == ir.OpMove && prev.A() == next.A() {
		return next, peepRewrite
	}

	// Rule 4: MOVE a,b after MOVE b,c, b a temp => MOVE a,c.
	if prev.Opcode() == ir.OpMove && next.Opcode() == ir.OpMove &&
		prev.A() == next.B() && ctx.isTemp(next.B()) {
		return ir.EncodeAB(ir.OpMove, next.A(), prev.B()), peepRewrite
	}

	// Rule 5: MOVE a,b after LOADI b,k, b a temp => LOADI a,k.
	if prev.Opcode() == ir.OpLoadI && next.Opcode() == ir.OpMove &&
		prev.A() == next.B() && ctx.isTemp(next.B()) {
		return ir.EncodeAsBx(ir.OpLoadI, next.A(), prev.SBx()), peepRewrite
	}

	// Rules 6/7/8: MOVE a,b after an opcode that just wrote register b
	// (ARRAY/HASH/RANGE/AREF/GETUPVAR/LOADSYM/GET*/LOADL/STRING/
	// SCLASS/LOADNIL/LOADSELF/LOADT/LOADF/OCLASS), b a temp => retarget
	// the producer's destination to a.
	if next.Opcode() == ir.OpMove && fusableDest[prev.Opcode()] &&
		prev.A() == next.B() && ctx.isTemp(next.B()) {
		return prev.WithA(next.A()), peepRewrite
	}

	// Rule 9: SETIV/CV/CONST/MCNST/GLOBAL a,k after MOVE a,b, val==NOVAL
	// => SETxx b,k.
	if prev.Opcode() == ir.OpMove && setFamily[next.Opcode()] &&
		prev.A() == next.A() && ctx.ValIsNoval {
		return ir.EncodeABx(next.Opcode(), prev.B(), next.Bx()), peepRewrite
	}

	// Rule 10: SETUPVAR a,b,c after MOVE a,x => SETUPVAR x,b,c.
	if prev.Opcode() == ir.OpMove && next.Opcode() == ir.OpSetUpvar && prev.A() == next.A() {
		return ir.EncodeABC(ir.OpSetUpvar, prev.B(), next.B(), next.C()), peepRewrite
	}

	// Rule 11: EPOP m after EPOP n => EPOP m+n (and the same for POPERR).
	if prev.Opcode() == ir.OpEPop && next.Opcode() == ir.OpEPop {
		return ir.EncodeA(ir.OpEPop, prev.A()+next.A()), peepRewrite
	}
	if prev.Opcode() == ir.OpPopErr && next.Opcode() == ir.OpPopErr {
		return ir.EncodeA(ir.OpPopErr, prev.A()+next.A()), peepRewrite
	}

	// Rule 12: RETURN after RETURN => elide the second.
	if prev.Opcode() == ir.OpReturn && next.Opcode() == ir.OpReturn {
		return 0, peepElideNext
	}

	// Rule 13: RETURN a after MOVE a,b, b a temp => RETURN b.
	if prev.Opcode() == ir.OpMove && next.Opcode() == ir.OpReturn &&
		prev.A() == next.A() && ctx.isTemp(prev.B()) {
		return ir.EncodeAB(ir.OpReturn, prev.B(), next.B()), peepRewrite
	}

	// Rule 15: ADD/SUB ra,sym,1 after LOADI tmp,k (tmp=ra+1, |k|<=127)
	// => ADDI/SUBI ra,sym,|k| (C is unsigned, so a negative k swaps
	// ADDI and SUBI).
	if prev.Opcode() == ir.OpLoadI && (next.Opcode() == ir.OpAdd || next.Opcode() == ir.OpSub) &&
		next.C() == 1 && prev.A() == next.A()+1 {
		k := prev.SBx()
		if k >= -127 && k <= 127 {
			op := ir.OpAddI
			if next.Opcode() == ir.OpSub {
				op = ir.OpSubI
			}
			if k < 0 {
				k = -k
				if op == ir.OpAddI {
					op = ir.OpSubI
				} else {
					op = ir.OpAddI
				}
			}
			return ir.EncodeABC(op, next.A(), next.B(), k), peepRewrite
		}
	}

	// Rule 16: STRCAT a,b after STRING b,"" or LOADNIL b => elide both.
	if next.Opcode() == ir.OpStrCat {
		if prev.Opcode() == ir.OpString && prev.A() == next.B() && ctx.IsEmptyStr != nil && ctx.IsEmptyStr(prev.Bx()) {
			return 0, peepDropBoth
		}
		if prev.Opcode() == ir.OpLoadNil && prev.A() == next.B() {
			return 0, peepDropBoth
		}
	}

	// Rule 17: JMPIF/JMPNOT a,off after MOVE a,b => test b directly.
	if prev.Opcode() == ir.OpMove && (next.Opcode() == ir.OpJmpIf || next.Opcode() == ir.OpJmpNot) &&
		prev.A() == next.A() {
		return ir.EncodeAsBx(next.Opcode(), prev.B(), next.SBx()), peepRewrite
	}

	return 0, peepNone
}
