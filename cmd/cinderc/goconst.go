package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dave/jennifer/jen"

	"github.com/cinder-lang/cinder/ir"
)

// emitGoConsts renders every opcode a Proc's code actually touches as
// a Go byte constant declaration, via dave/jennifer. Useful for a
// downstream VM package that wants opcode mnemonics as real Go
// identifiers instead of re-deriving them from ir.Opcode.String() at
// runtime.
func emitGoConsts(proc *ir.Proc, name string) error {
	used := map[ir.Opcode]bool{}
	collectOpcodes(proc, used)

	f := jen.NewFile("opcodes")
	f.HeaderComment(fmt.Sprintf("generated from %s; do not edit by hand", name))

	var group []jen.Code
	for _, op := range ir.AllOpcodes() {
		if !used[op] {
			continue
		}
		mnemonic, _ := op.Info()
		group = append(group, jen.Id("Op"+pascalMnemonic(mnemonic)).Op("=").Lit(byte(op)))
	}
	f.Const().Defs(group...)

	return f.Render(os.Stdout)
}

// pascalMnemonic turns an all-caps opcode mnemonic ("LOADI") into a Go
// exported identifier suffix ("Loadi").
func pascalMnemonic(mnemonic string) string {
	lower := strings.ToLower(mnemonic)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

func collectOpcodes(proc *ir.Proc, seen map[ir.Opcode]bool) {
	for _, instr := range proc.Code {
		seen[instr.Opcode()] = true
	}
	for _, child := range proc.Reps {
		collectOpcodes(child, seen)
	}
}
