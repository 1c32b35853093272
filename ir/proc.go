// Package ir defines the executable intermediate representation the
// codegen core emits: fixed-width instructions, literal pools, symbol
// tables, nested sub-procedures, and source-location debug tables
// (spec.md §3 "IR Procedure"). Executing this representation is the
// VM's job (out of scope, spec.md §1); this package only defines the
// container shape and its (de)serialization.
package ir

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// LiteralKind tags the payload of a pooled Literal.
type LiteralKind byte

const (
	LiteralInt LiteralKind = iota
	LiteralFloat
	LiteralString
)

// Literal is one entry of a Proc's literal pool. new_lit dedups by byte
// equality for strings, bit-equality for floats, and value equality for
// ints (spec.md §4.10).
type Literal struct {
	Kind LiteralKind `cbor:"k"`
	Int  int64       `cbor:"i,omitempty"`
	Flt  float64     `cbor:"f,omitempty"`
	Str  string      `cbor:"s,omitempty"`
}

// LocalVar is one entry of a Proc's local-variable descriptor list,
// preserved for index lookup and upvar resolution by child scopes.
type LocalVar struct {
	Name string `cbor:"n"`
	Reg  int    `cbor:"r"`
}

// FileSpan is one entry of the debug file-span table: the original
// mruby codegen tracks, per Proc, which filename a contiguous PC range
// belongs to (per-PC lines live in DebugInfo.Lines), so a single Proc can mix source from more than
// one file (eval/instance_eval bodies) — see SPEC_FULL.md's
// "Supplemented features".
type FileSpan struct {
	StartPC  int    `cbor:"start"`
	EndPC    int    `cbor:"end"`
	Filename string `cbor:"file"`
}

// DebugInfo carries both the dense per-PC line array spec.md §3
// requires and the richer multi-file span table from the original
// implementation.
type DebugInfo struct {
	Lines     []uint16   `cbor:"lines"`
	FileSpans []FileSpan `cbor:"spans,omitempty"`
	SessionID string     `cbor:"session,omitempty"`
}

// Proc is one compiled IR Procedure: the unit a ScopeUnit produces.
// Every Reps entry must itself be a valid Proc (spec.md §8).
type Proc struct {
	Code   []Instruction `cbor:"code"`
	Pool   []Literal     `cbor:"pool"`
	Syms   []string      `cbor:"syms"`
	Reps   []*Proc       `cbor:"reps"`
	Locals []LocalVar    `cbor:"locals"`

	NRegs   int `cbor:"nregs"`
	NLocals int `cbor:"nlocals"`

	// Aspec is the packed argument descriptor (spec.md §3); zero for
	// Procs that are not method/lambda bodies (e.g. top-level, class
	// bodies, `for` blocks use a fixed synthetic Aspec instead).
	Aspec int `cbor:"aspec"`

	Filename string    `cbor:"filename"`
	Debug    DebugInfo `cbor:"debug"`
}

// ILen returns the instruction count (spec.md's `ilen`).
func (p *Proc) ILen() int { return len(p.Code) }

// Validate checks the invariants spec.md §8 states must hold for every
// Proc in a finished compile: jump targets in range, Reps recursively
// valid. It does not re-verify peephole/EPUSH-EPOP balance, which is
// ensured structurally by codegen (see codegen.Error for compile-time
// failures of that kind).
func (p *Proc) Validate() error {
	for pc, instr := range p.Code {
		if instr.Opcode().isJump() {
			target := pc + 1 + instr.SBx()
			if target < 0 || target > len(p.Code) {
				return fmt.Errorf("ir: jump at pc=%d targets out-of-range pc=%d (ilen=%d)", pc, target, len(p.Code))
			}
		}
	}
	for _, child := range p.Reps {
		if err := child.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EncodeCache serializes the Proc tree (including all Reps) to CBOR for
// an on-disk compile cache keyed by source hash (SPEC_FULL.md domain
// stack: fxamacker/cbor), so a driver can skip recompiling unchanged
// sources.
func (p *Proc) EncodeCache() ([]byte, error) {
	return cbor.Marshal(p)
}

// DecodeCache reverses EncodeCache.
func DecodeCache(data []byte) (*Proc, error) {
	var p Proc
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
