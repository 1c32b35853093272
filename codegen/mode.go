// Package codegen lowers an ast.Node tree into an ir.Proc tree: the
// ASTLowerer, ScopeUnit, RegisterStack, PeepholeOptimizer, JumpPatcher,
// and LoopStack/EnsureTracker components of spec.md §2.
package codegen

// Mode tells codegen whether the expression being lowered must leave a
// value on the register stack (VAL) or may discard it (NOVAL) —
// spec.md §3's invariant: after lowering in VAL mode, sp is exactly one
// higher than before; in NOVAL mode, sp is unchanged.
type Mode bool

const (
	NOVAL Mode = false
	VAL   Mode = true
)
