package codegen

import "fmt"

// Error is a fatal codegen failure: spec.md §7 says the compiler
// produces no partial IR and surfaces exactly one textual diagnostic.
// Rather than the source's long-jump (MRB_THROW), every recursive
// codegen call threads this as an ordinary Go error return (spec.md §9
// "Non-local exits"), and Generate returns it with a nil Proc; any
// partially built scopes are simply dropped.
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("codegen error:%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("codegen error: %s", e.Msg)
}

// errf builds an *Error anchored at the scope's current source
// position, mirroring the source's codegen_error(s, msg).
func (s *ScopeUnit) errf(format string, args ...any) *Error {
	return &Error{File: s.filename, Line: s.line, Msg: fmt.Sprintf(format, args...)}
}
