package codegen

import (
	"github.com/cinder-lang/cinder/ast"
	"github.com/cinder-lang/cinder/ir"
)

// Logger is the minimal leveled-logger surface Generate takes for
// non-fatal messages, distinct from the fatal *Error path; Generate
// logs only compile start and completion through it. Both *slog.Logger and a commonlog.Logger satisfy it
// structurally, so this package takes no hard dependency on either.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// CompileOptions bundles the knobs Generate accepts, mirroring the
// source's parser_state.no_optimize plus the ambient logging/session
// concerns a Go embedding adds.
type CompileOptions struct {
	NoOptimize     bool
	Logger         Logger
	SessionID      string
	EnableTailCall bool
}

func (o *CompileOptions) logger() Logger {
	if o == nil || o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}

// Generate lowers a top-level ast.Node (typically an *ast.Begin) into
// an *ir.Proc, the single public entry point of the codegen core. It
// returns a *Error on the first fatal failure, per spec.md §7's "no
// partial IR" guarantee: a non-nil error always pairs with a nil Proc.
func Generate(root ast.Node, filename string, opts CompileOptions) (*ir.Proc, error) {
	s := newScope(nil, true, &opts)
	s.filename = filename
	s.line = root.Pos().Line

	opts.logger().Info("codegen start", "file", filename)

	reg, genErr := codegenExpr(s, root, VAL)
	if genErr != nil {
		return nil, genErr
	}
	s.emit(ir.EncodeAB(ir.OpReturn, reg, int(ir.ReturnNormal)))

	p := s.finish()
	if err := p.Validate(); err != nil {
		return nil, &Error{File: filename, Msg: err.Error()}
	}
	opts.logger().Info("codegen done", "file", filename, "nregs", p.NRegs, "ninstr", p.ILen())
	return p, nil
}
