package vm

import (
	"peach/internal/ir"
	"peach/internal/value"
)

// Session runs a growing instruction buffer in one persistent frame, so
// variables declared by earlier REPL inputs stay bound.
type Session struct {
	vm    *VM
	name  string
	frame *frame
	ran   int
}

func (vm *VM) NewSession(name string) *Session {
	return &Session{
		vm:    vm,
		name:  name,
		frame: newFrame(nil),
	}
}

// Run executes the instructions appended to code since the previous Run.
// The whole buffer counts as executed afterwards, even on error.
func (s *Session) Run(code []ir.Instruction) (value.Value, error) {
	start := s.ran
	s.ran = len(code)
	if start >= len(code) {
		return value.Void(), nil
	}
	return s.vm.exec(s.name, code, start, s.frame)
}

// Depth reports the operand stack height, for diagnostics.
func (s *Session) Depth() int {
	return len(s.frame.stack)
}
