package codegen

import (
	"strconv"

	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// maxSBx is the largest magnitude an sBx-encoded field holds, the
// LOADI/LOADL boundary spec.md §4.9 fixes.
const maxSBx = 1<<15 - 1

// genInt lowers an integer literal: LOADI when it fits the signed
// 16-bit sBx field, LOADL (pool-backed) otherwise. An overflow of the
// text's own base reparses as a float, matching the source's fallback
// when a literal is too wide even for an int64 pool entry.
func genInt(s *ScopeUnit, n *ast.Int, mode Mode) (int, error) {
	v, err := strconv.ParseInt(n.Text, n.Base, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(n.Text, 64)
		if ferr != nil {
			return 0, s.errf("invalid integer literal %q: %s", n.Text, err)
		}
		if mode == NOVAL {
			return 0, nil
		}
		reg := s.regs.Push()
		idx := s.pool.Float(f)
		s.emit(ir.EncodeABx(ir.OpLoadL, reg, idx))
		return reg, nil
	}
	if mode == NOVAL {
		return 0, nil
	}
	reg := s.regs.Push()
	if -maxSBx < v && v < maxSBx {
		s.emit(ir.EncodeAsBx(ir.OpLoadI, reg, int(v)))
	} else {
		idx := s.pool.Int(v)
		s.emit(ir.EncodeABx(ir.OpLoadL, reg, idx))
	}
	return reg, nil
}

// genFloat lowers a float literal: always pool-backed (spec.md §4.9).
func genFloat(s *ScopeUnit, n *ast.Float, mode Mode) (int, error) {
	f, err := strconv.ParseFloat(n.Text, 64)
	if err != nil {
		return 0, s.errf("invalid float literal %q: %s", n.Text, err)
	}
	if mode == NOVAL {
		return 0, nil
	}
	reg := s.regs.Push()
	idx := s.pool.Float(f)
	s.emit(ir.EncodeABx(ir.OpLoadL, reg, idx))
	return reg, nil
}

// genNegate lowers unary minus. NEGATE(INT) range-checks the negated
// value before the LOADI/LOADL split so that `-MAXARG_sBx-1` (which
// fits) and `MAXARG_sBx+1` (which doesn't) land correctly — ordinary
// positive-literal parsing followed by a separate negate step would
// get this boundary wrong by one. NEGATE(other) lowers as `0 - expr`.
func genNegate(s *ScopeUnit, n *ast.Negate, mode Mode) (int, error) {
	if lit, ok := n.Value.(*ast.Int); ok {
		v, err := strconv.ParseInt(lit.Text, lit.Base, 64)
		if err == nil {
			neg := -v
			if mode == NOVAL {
				return 0, nil
			}
			reg := s.regs.Push()
			if -maxSBx-1 <= neg && neg <= maxSBx {
				s.emit(ir.EncodeAsBx(ir.OpLoadI, reg, int(neg)))
			} else {
				idx := s.pool.Int(neg)
				s.emit(ir.EncodeABx(ir.OpLoadL, reg, idx))
			}
			return reg, nil
		}
	}
	if lit, ok := n.Value.(*ast.Float); ok {
		f, err := strconv.ParseFloat(lit.Text, 64)
		if err == nil {
			if mode == NOVAL {
				return 0, nil
			}
			reg := s.regs.Push()
			idx := s.pool.Float(-f)
			s.emit(ir.EncodeABx(ir.OpLoadL, reg, idx))
			return reg, nil
		}
	}

	sp0 := s.regs.Cursp()
	zero := s.regs.Push()
	s.emit(ir.EncodeAsBx(ir.OpLoadI, zero, 0))
	if _, err := codegenExpr(s, n.Value, VAL); err != nil {
		return 0, err
	}
	sym, err := s.msym("-")
	if err != nil {
		return 0, err
	}
	s.emit(ir.EncodeABC(ir.OpSub, zero, sym, 1))
	if mode == VAL {
		s.regs.SetSP(zero + 1)
		return zero, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// genStr lowers a plain string literal.
func genStr(s *ScopeUnit, n *ast.Str, mode Mode) (int, error) {
	if mode == NOVAL {
		return 0, nil
	}
	reg := s.regs.Push()
	idx := s.pool.String(n.Value)
	s.emit(ir.EncodeABx(ir.OpString, reg, idx))
	return reg, nil
}

// genDStr lowers an interpolated string: STRING the first part, then
// STRCAT every subsequent part onto it (the peephole elides a STRCAT
// against a known-empty STRING/LOADNIL piece per rule 16).
func genDStr(s *ScopeUnit, parts []ast.Node, mode Mode) (int, error) {
	if len(parts) == 0 {
		if mode == NOVAL {
			return 0, nil
		}
		reg := s.regs.Push()
		idx := s.pool.String("")
		s.emit(ir.EncodeABx(ir.OpString, reg, idx))
		return reg, nil
	}
	sp0 := s.regs.Cursp()
	headReg, err := dstrPart(s, parts[0])
	if err != nil {
		return 0, err
	}
	for _, part := range parts[1:] {
		partReg, err := dstrPart(s, part)
		if err != nil {
			return 0, err
		}
		s.emit(ir.EncodeAB(ir.OpStrCat, headReg, partReg))
		s.regs.SetSP(headReg + 1)
	}
	if mode == NOVAL {
		s.regs.SetSP(sp0)
		return 0, nil
	}
	return headReg, nil
}

// dstrPart lowers one interpolation piece: a literal Str part emits
// STRING directly so STRCAT can fold it; any other expression is
// to_s-converted by STRCAT itself at the VM level and just needs a VAL
// result.
func dstrPart(s *ScopeUnit, part ast.Node) (int, error) {
	if str, ok := part.(*ast.Str); ok {
		reg := s.regs.Push()
		idx := s.pool.String(str.Value)
		s.emit(ir.EncodeABx(ir.OpString, reg, idx))
		return reg, nil
	}
	return codegenExpr(s, part, VAL)
}

// genXStr lowers a backtick literal: Kernel#` called on self with the
// command string.
func genXStr(s *ScopeUnit, n *ast.XStr, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	selfReg, err := s.pushNullary(VAL, ir.OpLoadSelf)
	if err != nil {
		return 0, err
	}
	argReg := s.regs.Push()
	idx := s.pool.String(n.Value)
	s.emit(ir.EncodeABx(ir.OpString, argReg, idx))
	sym, err := s.msym("`")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(selfReg)
	s.emit(ir.EncodeABC(ir.OpSend, selfReg, sym, 1))
	return s.finishCallResult(sp0, selfReg, mode), nil
}

// genDXStr mirrors genXStr with an interpolated command string.
func genDXStr(s *ScopeUnit, n *ast.DXStr, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	selfReg, err := s.pushNullary(VAL, ir.OpLoadSelf)
	if err != nil {
		return 0, err
	}
	if _, err := genDStr(s, n.Parts, VAL); err != nil {
		return 0, err
	}
	sym, err := s.msym("`")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(selfReg)
	s.emit(ir.EncodeABC(ir.OpSend, selfReg, sym, 1))
	return s.finishCallResult(sp0, selfReg, mode), nil
}

// genRegex lowers `Regexp.compile(pattern[, flags[, encoding]])`.
func genRegex(s *ScopeUnit, n *ast.Regex, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	recvReg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpOClass, recvReg))
	s.emit(ir.EncodeABx(ir.OpGetMCnst, recvReg, s.syms.Sym("Regexp")))
	n2 := regexArgs(s, n.Pattern, n.Flags, n.Encoding)
	sym, err := s.msym("compile")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(recvReg)
	s.emit(ir.EncodeABC(ir.OpSend, recvReg, sym, n2))
	return s.finishCallResult(sp0, recvReg, mode), nil
}

func regexArgs(s *ScopeUnit, pattern, flags, encoding string) int {
	argReg := s.regs.Push()
	s.emit(ir.EncodeABx(ir.OpString, argReg, s.pool.String(pattern)))
	n := 1
	if flags != "" || encoding != "" {
		fReg := s.regs.Push()
		s.emit(ir.EncodeABx(ir.OpString, fReg, s.pool.String(flags)))
		n = 2
	}
	if encoding != "" {
		eReg := s.regs.Push()
		s.emit(ir.EncodeABx(ir.OpString, eReg, s.pool.String(encoding)))
		n = 3
	}
	return n
}

// genDRegex mirrors genRegex for an interpolated pattern; flags and
// encoding are still fixed literal text.
func genDRegex(s *ScopeUnit, n *ast.DRegex, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	recvReg := s.regs.Push()
	s.emit(ir.EncodeA(ir.OpOClass, recvReg))
	s.emit(ir.EncodeABx(ir.OpGetMCnst, recvReg, s.syms.Sym("Regexp")))
	if _, err := genDStr(s, n.Parts, VAL); err != nil {
		return 0, err
	}
	argc := 1
	if n.Flags != "" {
		fReg := s.regs.Push()
		s.emit(ir.EncodeABx(ir.OpString, fReg, s.pool.String(n.Flags)))
		argc = 2
	}
	if n.Encoding != "" {
		eReg := s.regs.Push()
		s.emit(ir.EncodeABx(ir.OpString, eReg, s.pool.String(n.Encoding)))
		argc = 3
	}
	sym, err := s.msym("compile")
	if err != nil {
		return 0, err
	}
	s.regs.SetSP(recvReg)
	s.emit(ir.EncodeABC(ir.OpSend, recvReg, sym, argc))
	return s.finishCallResult(sp0, recvReg, mode), nil
}

// genWords lowers %w(...)/%i(...): an array literal whose elements are
// themselves STRCAT-folded interpolation sequences; symbols is true
// for %i/%I, which additionally interns each resulting string.
func genWords(s *ScopeUnit, words [][]ast.Node, symbols bool, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	arrReg := s.regs.Push()
	base := arrReg + 1
	for i, word := range words {
		s.regs.SetSP(base + i)
		wordReg, err := genDStr(s, word, VAL)
		if err != nil {
			return 0, err
		}
		if symbols {
			sym, err := s.msym("intern")
			if err != nil {
				return 0, err
			}
			s.emit(ir.EncodeABC(ir.OpSend, wordReg, sym, 0))
		}
		s.regs.SetSP(base + i + 1)
	}
	s.emit(ir.EncodeABC(ir.OpArray, arrReg, base, len(words)))
	s.regs.SetSP(arrReg + 1)
	if mode == VAL {
		return arrReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// hashFlushThreshold is the per-HASH pair cap (spec.md invariant: 126
// pairs emit one HASH; 127 triggers an __update-merge flush).
const hashFlushThreshold = 126

// genHash lowers a hash literal, flushing through Hash#__update once
// more than hashFlushThreshold pairs have accumulated in a single
// register run.
func genHash(s *ScopeUnit, n *ast.HashLit, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	hashReg := s.regs.Push()
	base := hashReg + 1
	pending := 0
	haveHash := false
	for _, pair := range n.Pairs {
		s.regs.SetSP(base + 2*pending)
		if _, err := codegenExpr(s, pair.Key, VAL); err != nil {
			return 0, err
		}
		if _, err := codegenExpr(s, pair.Value, VAL); err != nil {
			return 0, err
		}
		pending++
		if pending == hashFlushThreshold {
			if err := flushHash(s, hashReg, base, pending, &haveHash); err != nil {
				return 0, err
			}
			pending = 0
		}
	}
	if pending > 0 || !haveHash {
		if err := flushHash(s, hashReg, base, pending, &haveHash); err != nil {
			return 0, err
		}
	}
	s.regs.SetSP(hashReg + 1)
	if mode == VAL {
		return hashReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// flushHash emits either the first HASH n or, once a hash already
// exists in hashReg, builds a fresh HASH from the pending pairs and
// merges it in via Hash#__update (spec.md's 127th-pair boundary).
func flushHash(s *ScopeUnit, hashReg, base, npairs int, haveHash *bool) error {
	if !*haveHash {
		s.emit(ir.EncodeABC(ir.OpHash, hashReg, base, npairs))
		*haveHash = true
		return nil
	}
	s.emit(ir.EncodeABC(ir.OpHash, base, base, npairs))
	sym, err := s.msym("__update")
	if err != nil {
		return err
	}
	s.regs.SetSP(base + 1)
	s.emit(ir.EncodeABC(ir.OpSend, hashReg, sym, 1))
	return nil
}

// genArray lowers an array literal via genValues' array-building path,
// reusing the same splat-folding machinery call sites use.
func genArray(s *ScopeUnit, n *ast.ArrayLit, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	arrReg := s.regs.Push()
	_, _, err := genValuesArrayMode(s, nil, n.Elements, arrReg)
	if err != nil {
		return 0, err
	}
	if mode == VAL {
		return arrReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}

// genRange lowers DOT2/DOT3 via RANGE a,b,exclusive.
func genRange(s *ScopeUnit, n *ast.DotRange, mode Mode) (int, error) {
	sp0 := s.regs.Cursp()
	lowReg, err := codegenExpr(s, n.Low, VAL)
	if err != nil {
		return 0, err
	}
	if _, err := codegenExpr(s, n.High, VAL); err != nil {
		return 0, err
	}
	excl := 0
	if n.Exclusive {
		excl = 1
	}
	s.emit(ir.EncodeABC(ir.OpRange, lowReg, lowReg, excl))
	if mode == VAL {
		s.regs.SetSP(lowReg + 1)
		return lowReg, nil
	}
	s.regs.SetSP(sp0)
	return 0, nil
}
