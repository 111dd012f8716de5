package resolver

import (
	"fmt"

	"peach/internal/ast"
	"peach/internal/ir"
)

// Resolve looks name up from scope and forces it: functions are compiled,
// external modules are loaded. Resolving twice returns the same id and
// does no further work.
func (e *Engine) Resolve(name string, scope ir.ScopeID) (ir.DefID, error) {
	id, _, err := e.Lookup(name, scope)
	if err != nil {
		return 0, err
	}
	if err := e.force(id); err != nil {
		return 0, err
	}
	return id, nil
}

func (e *Engine) force(id ir.DefID) error {
	d := e.defs[id]
	if d.State != Unresolved {
		return nil
	}
	switch d.Item.(type) {
	case *ast.FnItem:
		return e.compileFn(id)
	case *ast.ModItem:
		return e.loadModule(id)
	}
	return fmt.Errorf("%w: definition %s has no item", ErrUnsupported, d.Name)
}

// resolveModule resolves name as a module and returns its scope.
func (e *Engine) resolveModule(name string, scope ir.ScopeID) (ir.ScopeID, error) {
	id, err := e.Resolve(name, scope)
	if err != nil {
		return 0, err
	}
	scope, ok := e.defs[id].module()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotModule, name)
	}
	return scope, nil
}

// resolvePath resolves a::b::c. Every segment but the last must be a
// module; the last is forced as an ordinary definition.
func (e *Engine) resolvePath(leading bool, segments []string, scope ir.ScopeID) (ir.DefID, error) {
	if len(segments) == 0 {
		return 0, fmt.Errorf("%w: empty path", ErrUndefined)
	}
	cur := scope
	if leading {
		cur = e.outermost(scope)
	}

	for _, seg := range segments[:len(segments)-1] {
		var err error
		switch seg {
		case "crate":
			cur = e.outermost(cur)
		case "self":
			cur = e.moduleScope(cur)
		case "super":
			cur, err = e.superScope(cur)
		default:
			cur, err = e.resolveModule(seg, cur)
		}
		if err != nil {
			return 0, err
		}
	}

	last := segments[len(segments)-1]
	switch last {
	case "crate", "self", "super":
		return 0, fmt.Errorf("%w: path cannot end in %q", ErrUnsupported, last)
	}
	return e.Resolve(last, cur)
}

// useBase is the module a use tree is currently descending through.
// def is -1 at the start of the tree.
type useBase struct {
	scope ir.ScopeID
	def   ir.DefID
	name  string
}

func (e *Engine) processUse(u *ast.UseItem, scope ir.ScopeID) error {
	base := useBase{scope: e.moduleScope(scope), def: -1}
	if u.Leading {
		base.scope = e.outermost(scope)
	}
	if err := e.useTree(u.Tree, scope, base); err != nil {
		return fmt.Errorf("%s: use: %w", u.UsePos, err)
	}
	return nil
}

// useTree binds the names selected by tree into original.
func (e *Engine) useTree(tree ast.UseTree, original ir.ScopeID, base useBase) error {
	switch t := tree.(type) {
	case *ast.UseName:
		if t.Name == "self" {
			if base.def < 0 {
				return fmt.Errorf("%w: 'self' import needs a module path", ErrUnsupported)
			}
			e.bind(original, base.name, base.def)
			return nil
		}
		id, err := e.importDef(t.Name, base.scope)
		if err != nil {
			return err
		}
		e.bind(original, t.Name, id)

	case *ast.UseRename:
		id := base.def
		if t.Name == "self" {
			if base.def < 0 {
				return fmt.Errorf("%w: 'self' import needs a module path", ErrUnsupported)
			}
		} else {
			var err error
			if id, err = e.importDef(t.Name, base.scope); err != nil {
				return err
			}
		}
		e.bind(original, t.Rename, id)

	case *ast.UsePath:
		next := useBase{def: -1}
		switch t.Name {
		case "crate":
			next.scope = e.outermost(base.scope)
		case "self":
			next.scope = e.moduleScope(base.scope)
		case "super":
			s, err := e.superScope(base.scope)
			if err != nil {
				return err
			}
			next.scope = s
		default:
			id, err := e.Resolve(t.Name, base.scope)
			if err != nil {
				return err
			}
			scope, ok := e.defs[id].module()
			if !ok {
				return fmt.Errorf("%w: %s", ErrNotModule, t.Name)
			}
			next = useBase{scope: scope, def: id, name: t.Name}
		}
		return e.useTree(t.Tree, original, next)

	case *ast.UseGroup:
		for _, item := range t.Items {
			if err := e.useTree(item, original, base); err != nil {
				return err
			}
		}

	case *ast.UseGlob:
		// Only names present now are imported.
		for _, name := range e.Names(base.scope) {
			id := e.scopes[base.scope].Names[name]
			if err := e.forceImport(id); err != nil {
				return err
			}
			e.bind(original, name, id)
		}

	default:
		return fmt.Errorf("%w use tree %T", ErrUnsupported, tree)
	}
	return nil
}

// importDef looks name up for a use item and forces it with forceImport.
func (e *Engine) importDef(name string, scope ir.ScopeID) (ir.DefID, error) {
	id, _, err := e.Lookup(name, scope)
	if err != nil {
		return 0, err
	}
	return id, e.forceImport(id)
}

// forceImport loads imported modules at once. Imported functions are queued
// for registerItems, since their bodies may use names that later use items
// bind.
func (e *Engine) forceImport(id ir.DefID) error {
	d := e.defs[id]
	if _, ok := d.Item.(*ast.FnItem); ok && d.State == Unresolved {
		e.deferred = append(e.deferred, id)
		return nil
	}
	return e.force(id)
}
