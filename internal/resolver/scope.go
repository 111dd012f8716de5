package resolver

import (
	"fmt"
	"sort"

	"peach/internal/ir"
)

const noParent ir.ScopeID = -1

// Scope is one namespace level. Scopes are never removed; a scope refers to
// its parent by id only.
type Scope struct {
	Parent   ir.ScopeID
	IsModule bool
	Names    map[string]ir.DefID
}

func (e *Engine) newScope(parent ir.ScopeID, isModule bool) ir.ScopeID {
	e.scopes = append(e.scopes, &Scope{
		Parent:   parent,
		IsModule: isModule,
		Names:    make(map[string]ir.DefID),
	})
	return ir.ScopeID(len(e.scopes) - 1)
}

// bind installs name in scope, replacing any earlier binding.
func (e *Engine) bind(scope ir.ScopeID, name string, id ir.DefID) {
	e.scopes[scope].Names[name] = id
}

// Lookup finds name starting at scope and walking parents. The walk stops
// after the first module scope it checks.
func (e *Engine) Lookup(name string, scope ir.ScopeID) (ir.DefID, ir.ScopeID, error) {
	cur := scope
	for {
		s := e.scopes[cur]
		if id, ok := s.Names[name]; ok {
			return id, cur, nil
		}
		if s.IsModule || s.Parent == noParent {
			return 0, 0, fmt.Errorf("%w: %q not found from scope %d", ErrUndefined, name, scope)
		}
		cur = s.Parent
	}
}

// Names returns the names bound directly in scope, sorted.
func (e *Engine) Names(scope ir.ScopeID) []string {
	names := make([]string, 0, len(e.scopes[scope].Names))
	for name := range e.scopes[scope].Names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// moduleScope returns the nearest module scope enclosing scope.
func (e *Engine) moduleScope(scope ir.ScopeID) ir.ScopeID {
	cur := scope
	for !e.scopes[cur].IsModule && e.scopes[cur].Parent != noParent {
		cur = e.scopes[cur].Parent
	}
	return cur
}

// outermost follows parents to the top of the chain.
func (e *Engine) outermost(scope ir.ScopeID) ir.ScopeID {
	cur := scope
	for e.scopes[cur].Parent != noParent {
		cur = e.scopes[cur].Parent
	}
	return cur
}

// superScope returns the module enclosing the module that contains scope.
func (e *Engine) superScope(scope ir.ScopeID) (ir.ScopeID, error) {
	mod := e.moduleScope(scope)
	parent := e.scopes[mod].Parent
	if parent == noParent {
		return 0, fmt.Errorf("%w: 'super' used in the root module", ErrUndefined)
	}
	return e.moduleScope(parent), nil
}
