package resolver

import (
	"fmt"

	"peach/internal/ast"
	"peach/internal/ir"
)

// State is the lifecycle of one definition:
// Unresolved -> Compiling -> ResolvedFunction for functions and
// Unresolved -> Loading -> ResolvedModule for external modules. A failed
// compile or load goes back to Unresolved.
type State int

const (
	Unresolved State = iota
	// Compiling marks a function whose body is being compiled, so that
	// recursive references resolve to its id without compiling it again.
	Compiling
	// Loading marks an external module whose file is being registered.
	Loading
	ResolvedFunction
	ResolvedModule
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Compiling:
		return "compiling"
	case Loading:
		return "loading"
	case ResolvedFunction:
		return "function"
	case ResolvedModule:
		return "module"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Definition is one slot of the definition table.
type Definition struct {
	Name  string
	State State
	// Scope is where the definition was declared; function bodies
	// resolve names from here.
	Scope ir.ScopeID

	Item   ast.Item     // *ast.FnItem or *ast.ModItem until resolved
	Fn     *ir.Function // ResolvedFunction
	Module ir.ScopeID   // ResolvedModule
}

func (d *Definition) isFunction() bool {
	if d.State == ResolvedFunction {
		return true
	}
	_, ok := d.Item.(*ast.FnItem)
	return ok
}

// module returns the scope of a module definition. A module that is still
// loading already has its scope.
func (d *Definition) module() (ir.ScopeID, bool) {
	if d.State == ResolvedModule || d.State == Loading {
		return d.Module, true
	}
	return 0, false
}

func (e *Engine) addDef(d *Definition) ir.DefID {
	e.defs = append(e.defs, d)
	return ir.DefID(len(e.defs) - 1)
}

// State reports the lifecycle state of id.
func (e *Engine) State(id ir.DefID) State {
	return e.defs[id].State
}

// Definition returns a copy of the table entry for id.
func (e *Engine) Definition(id ir.DefID) Definition {
	return *e.defs[id]
}

// NumDefinitions is the size of the definition table.
func (e *Engine) NumDefinitions() int {
	return len(e.defs)
}
