package resolver

import (
	"fmt"
	"path/filepath"

	"peach/internal/ast"
	"peach/internal/ir"
	"peach/internal/modules"
)

// LoadFile reads name (relative to the project root) and registers its
// items into the root scope. Nothing is compiled.
func (e *Engine) LoadFile(name string) error {
	path := name
	if !filepath.IsAbs(path) {
		root, err := e.rootDir()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLoad, err)
		}
		path = filepath.Join(root, name)
	}
	return e.loadSource(path, 0)
}

func (e *Engine) loadSource(path string, scope ir.ScopeID) error {
	src, err := modules.Load(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	e.sources = append(e.sources, ir.Source{Path: path, Digest: src.Digest})
	return e.registerItems(src.File.Items, scope)
}

// pendingUse is a use item waiting for the declaration pass to finish.
type pendingUse struct {
	item  *ast.UseItem
	scope ir.ScopeID
}

// registerItems declares every item in the list, including the contents of
// inline modules at any depth, and only then processes the use items in
// source order. A use may therefore name a module declared later, or one
// nested in a sibling. Functions named by uses compile once every use of
// the outermost load is bound.
func (e *Engine) registerItems(items []ast.Item, scope ir.ScopeID) error {
	var uses []pendingUse
	if err := e.declare(items, scope, &uses); err != nil {
		return err
	}

	e.loading++
	defer func() { e.loading-- }()

	var err error
	for _, u := range uses {
		if err = e.processUse(u.item, u.scope); err != nil {
			break
		}
	}
	if e.loading > 1 {
		return err
	}
	if err == nil {
		err = e.forceDeferred()
	}
	if err != nil {
		e.deferred = nil
	}
	return err
}

func (e *Engine) declare(items []ast.Item, scope ir.ScopeID, uses *[]pendingUse) error {
	for _, item := range items {
		switch it := item.(type) {
		case *ast.UseItem:
			*uses = append(*uses, pendingUse{item: it, scope: scope})
			continue
		case *ast.ModItem:
			if it.Inline {
				if err := e.declare(it.Items, e.declareInlineMod(it, scope), uses); err != nil {
					return err
				}
				continue
			}
		}
		if err := e.Register(item, scope); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) declareInlineMod(m *ast.ModItem, scope ir.ScopeID) ir.ScopeID {
	modScope := e.newScope(scope, true)
	id := e.addDef(&Definition{Name: m.Name, State: ResolvedModule, Scope: scope, Module: modScope})
	e.bind(scope, m.Name, id)
	log.Debugf("registered inline mod %s as #%d with scope %d", m.Name, id, modScope)
	return modScope
}

// forceDeferred compiles the functions queued by use items. Compiling one
// may queue more.
func (e *Engine) forceDeferred() error {
	for len(e.deferred) > 0 {
		id := e.deferred[0]
		e.deferred = e.deferred[1:]
		if err := e.force(id); err != nil {
			return err
		}
	}
	return nil
}

// Register adds one item to scope. Functions and external modules stay
// unresolved; inline modules get their scope immediately; use items are
// resolved on the spot.
func (e *Engine) Register(item ast.Item, scope ir.ScopeID) error {
	switch it := item.(type) {
	case *ast.FnItem:
		id := e.addDef(&Definition{Name: it.Name, State: Unresolved, Scope: scope, Item: it})
		e.bind(scope, it.Name, id)
		log.Debugf("registered fn %s as #%d in scope %d", it.Name, id, scope)

	case *ast.ModItem:
		if it.Inline {
			return e.registerItems([]ast.Item{it}, scope)
		}
		id := e.addDef(&Definition{Name: it.Name, State: Unresolved, Scope: scope, Item: it})
		e.bind(scope, it.Name, id)
		log.Debugf("registered external mod %s as #%d", it.Name, id)

	case *ast.UseItem:
		return e.registerItems([]ast.Item{it}, scope)

	case *ast.UnsupportedItem:
		return fmt.Errorf("%s: %w item: %s %s", it.KwPos, ErrUnsupported, it.Keyword, it.Name)

	default:
		return fmt.Errorf("%w item %T", ErrUnsupported, item)
	}
	return nil
}

// loadModule reads the body of `mod name;` into a fresh module scope. The
// definition only becomes a resolved module once the whole file loaded;
// on failure it is unresolved again.
func (e *Engine) loadModule(id ir.DefID) error {
	d := e.defs[id]
	root, err := e.rootDir()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}
	path, err := modules.Locate(root, d.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoad, err)
	}

	modScope := e.newScope(d.Scope, true)
	d.State = Loading
	d.Module = modScope
	log.Debugf("loading mod %s from %s into scope %d", d.Name, path, modScope)
	if err := e.loadSource(path, modScope); err != nil {
		d.State = Unresolved
		d.Module = 0
		return fmt.Errorf("mod %s: %w", d.Name, err)
	}
	d.State = ResolvedModule
	d.Item = nil
	return nil
}
