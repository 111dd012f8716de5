package resolver

import (
	"fmt"
	"strings"

	"peach/internal/ast"
	"peach/internal/ir"
	"peach/internal/parser"
	"peach/internal/types"
	"peach/internal/value"
	"peach/internal/vm"
)

func (e *Engine) rawCompiler(code *[]ir.Instruction, vars *ir.VarStack) *funcCompiler {
	return &funcCompiler{
		e:     e,
		name:  "<repl>",
		scope: 0,
		vars:  vars,
		code:  code,
		ret:   types.Unknown,
	}
}

// rollback undoes a failed compilation of REPL input.
func rollback(code *[]ir.Instruction, n int, vars *ir.VarStack, snap ir.Snapshot) {
	*code = (*code)[:n]
	vars.Restore(snap)
}

// ProcessRawExpr parses src as an expression and appends its code to code,
// resolving names from the root scope. Parse errors are returned as
// *parser.Error; on any error code and vars are left unchanged.
func (e *Engine) ProcessRawExpr(src string, code *[]ir.Instruction, vars *ir.VarStack) (types.Ty, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return types.Unknown, err
	}
	n, snap := len(*code), vars.Snapshot()
	ty, err := e.rawCompiler(code, vars).compileExpr(expr)
	if err != nil {
		rollback(code, n, vars, snap)
		return types.Unknown, err
	}
	return ty, nil
}

// ProcessRawStmt is ProcessRawExpr for one statement. Item statements are
// registered into the root scope and emit no code.
func (e *Engine) ProcessRawStmt(src string, code *[]ir.Instruction, vars *ir.VarStack) error {
	stmt, err := parser.ParseStmt(src)
	if err != nil {
		return err
	}
	if is, ok := stmt.(*ast.ItemStmt); ok {
		return e.Register(is.Item, 0)
	}
	n, snap := len(*code), vars.Snapshot()
	if err := e.rawCompiler(code, vars).compileStmt(stmt); err != nil {
		rollback(code, n, vars, snap)
		return err
	}
	return nil
}

// Session evaluates interactive input line by line. Variables and items
// declared by one line are visible to the following ones.
type Session struct {
	e    *Engine
	code []ir.Instruction
	vars ir.VarStack
	run  *vm.Session
}

func (e *Engine) NewSession() *Session {
	return &Session{e: e, run: e.VM().NewSession("<repl>")}
}

// Eval compiles and runs line. A line that parses as an expression yields
// its value and type; statements yield Void and ().
func (s *Session) Eval(line string) (value.Value, types.Ty, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return value.Void(), types.Unit, nil
	}

	n, snap := len(s.code), s.vars.Snapshot()
	ty := types.Unit
	if _, perr := parser.ParseExpr(line); perr == nil {
		var err error
		if ty, err = s.e.ProcessRawExpr(line, &s.code, &s.vars); err != nil {
			return value.Void(), types.Unknown, err
		}
		if ty != types.Unit {
			ir.Emit(&s.code, ir.Instruction{Op: ir.OpReturn})
		}
	} else if err := s.e.ProcessRawStmt(line, &s.code, &s.vars); err != nil {
		return value.Void(), types.Unknown, err
	}

	v, err := s.run.Run(s.code)
	if err != nil {
		// Declarations that never ran must not stay visible.
		s.vars.Restore(snap)
		log.Debugf("repl input failed after %d instructions: %v", len(s.code)-n, err)
		return value.Void(), types.Unknown, fmt.Errorf("runtime: %w", err)
	}
	if ty == types.Unit {
		return value.Void(), ty, nil
	}
	return v, ty, nil
}

// Vars lists the variables currently in scope, oldest first.
func (s *Session) Vars() []string {
	return s.vars.Visible()
}
