package symtab

import (
	"math"

	"github.com/cinder-lang/cinder/ir"
)

// LiteralPool interns numeric and string literals with deduplication:
// strings compare by bytes, floats by bit-equal value, ints by integer
// equality (spec.md §4.10 `new_lit`). Growth is geometric via Go's
// append; there is no fixed capacity.
type LiteralPool struct {
	entries  []ir.Literal
	intIndex map[int64]int
	fltIndex map[uint64]int // float64 compared by bit pattern, not ==
	strIndex map[string]int
}

// NewLiteralPool creates an empty pool.
func NewLiteralPool() *LiteralPool {
	return &LiteralPool{
		intIndex: make(map[int64]int),
		fltIndex: make(map[uint64]int),
		strIndex: make(map[string]int),
	}
}

// Int interns an integer literal, returning its pool index.
func (lp *LiteralPool) Int(v int64) int {
	if idx, ok := lp.intIndex[v]; ok {
		return idx
	}
	idx := len(lp.entries)
	lp.entries = append(lp.entries, ir.Literal{Kind: ir.LiteralInt, Int: v})
	lp.intIndex[v] = idx
	return idx
}

// Float interns a float literal by its exact bit pattern.
func (lp *LiteralPool) Float(v float64) int {
	bits := floatBits(v)
	if idx, ok := lp.fltIndex[bits]; ok {
		return idx
	}
	idx := len(lp.entries)
	lp.entries = append(lp.entries, ir.Literal{Kind: ir.LiteralFloat, Flt: v})
	lp.fltIndex[bits] = idx
	return idx
}

// String interns a string literal by byte content. The pool stores its
// own copy, matching spec.md §4.10's "pool-owned copy" requirement.
func (lp *LiteralPool) String(v string) int {
	if idx, ok := lp.strIndex[v]; ok {
		return idx
	}
	owned := string([]byte(v))
	idx := len(lp.entries)
	lp.entries = append(lp.entries, ir.Literal{Kind: ir.LiteralString, Str: owned})
	lp.strIndex[owned] = idx
	return idx
}

// Entries returns the pool contents in insertion order, suitable for
// direct assignment to ir.Proc.Pool at scope_finish time.
func (lp *LiteralPool) Entries() []ir.Literal {
	out := make([]ir.Literal, len(lp.entries))
	copy(out, lp.entries)
	return out
}

// Len returns the number of distinct literals interned so far.
func (lp *LiteralPool) Len() int { return len(lp.entries) }

// IsEmptyString reports whether the pool entry at idx is the
// zero-length string literal, the condition peephole rule 16 elides a
// STRCAT against.
func (lp *LiteralPool) IsEmptyString(idx int) bool {
	return idx >= 0 && idx < len(lp.entries) &&
		lp.entries[idx].Kind == ir.LiteralString && lp.entries[idx].Str == ""
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}
