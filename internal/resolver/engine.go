package resolver

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"peach/internal/ir"
	"peach/internal/modules"
	"peach/internal/value"
	"peach/internal/vm"
)

var log = commonlog.GetLogger("peach.resolver")

// Engine owns the definition table and the scope arena. Items are
// registered when their file is loaded and compiled the first time
// something refers to them. An Engine is not safe for concurrent use.
type Engine struct {
	scopes []*Scope
	defs   []*Definition

	root    string
	sources []ir.Source

	compiled int

	// loading counts nested registerItems calls; deferred holds functions
	// named by use items, compiled when the outermost call finishes.
	loading  int
	deferred []ir.DefID

	out      io.Writer
	trace    vm.TraceFunc
	maxDepth int
}

type Option func(*Engine)

// WithOutput sets where println! writes during Eval.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

func WithTrace(f vm.TraceFunc) Option {
	return func(e *Engine) { e.trace = f }
}

func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// New creates an engine with an empty root scope.
func New(opts ...Option) *Engine {
	e := &Engine{out: os.Stdout}
	e.newScope(noParent, true)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetProjectRoot sets the directory module files and LoadFile names are
// resolved against. The working directory is used until it is set.
func (e *Engine) SetProjectRoot(dir string) error {
	root, err := modules.Root(dir)
	if err != nil {
		return err
	}
	e.root = root
	return nil
}

func (e *Engine) rootDir() (string, error) {
	if e.root != "" {
		return e.root, nil
	}
	return modules.Root("")
}

// Sources lists every file read so far with its digest.
func (e *Engine) Sources() []ir.Source {
	return append([]ir.Source(nil), e.sources...)
}

// Compilations counts function bodies compiled so far.
func (e *Engine) Compilations() int {
	return e.compiled
}

// ProcessFn resolves and compiles the function name, looked up from the
// root scope. name may be a path such as util::helper.
func (e *Engine) ProcessFn(name string) (ir.DefID, error) {
	id, err := e.resolvePath(false, strings.Split(name, "::"), 0)
	if err != nil {
		return 0, err
	}
	if !e.defs[id].isFunction() {
		return 0, fmt.Errorf("%w: %s", ErrNotFunction, name)
	}
	return id, nil
}

// Fn fetches an already compiled function by name from the root scope.
func (e *Engine) Fn(name string) (*ir.Function, error) {
	id, _, err := e.Lookup(name, 0)
	if err != nil {
		return nil, err
	}
	d := e.defs[id]
	switch {
	case d.State == ResolvedFunction:
		return d.Fn, nil
	case d.isFunction():
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCompiled, name, d.State)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFunction, name)
	}
}

// Function implements vm.Program. Callees that are still unresolved are
// compiled before they run.
func (e *Engine) Function(id ir.DefID) (*ir.Function, error) {
	if id < 0 || int(id) >= len(e.defs) {
		return nil, fmt.Errorf("%w: no definition #%d", ErrUndefined, id)
	}
	if err := e.force(id); err != nil {
		return nil, err
	}
	d := e.defs[id]
	if d.State != ResolvedFunction {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFunction, d.Name, d.State)
	}
	return d.Fn, nil
}

// VM returns an evaluator wired to this engine and its options.
func (e *Engine) VM() *vm.VM {
	return vm.New(e,
		vm.WithOutput(e.out),
		vm.WithTrace(e.trace),
		vm.WithMaxDepth(e.maxDepth),
	)
}

// Eval compiles name and runs it with args.
func (e *Engine) Eval(name string, args ...value.Value) (value.Value, error) {
	id, err := e.ProcessFn(name)
	if err != nil {
		return value.Value{}, err
	}
	fn, err := e.Function(id)
	if err != nil {
		return value.Value{}, err
	}
	log.Debugf("evaluating %s", name)
	return e.VM().Call(fn, args...)
}

// ScopeOf returns the scope of the module at path (a::b), forcing every
// module on the way. The empty path is the root scope.
func (e *Engine) ScopeOf(path string) (ir.ScopeID, error) {
	scope := ir.ScopeID(0)
	if path == "" {
		return scope, nil
	}
	for _, seg := range strings.Split(path, "::") {
		next, err := e.resolveModule(seg, scope)
		if err != nil {
			return 0, err
		}
		scope = next
	}
	return scope, nil
}

// Image compiles entry and every function it can reach and returns them as
// a standalone image.
func (e *Engine) Image(entry string) (*ir.Image, error) {
	id, err := e.ProcessFn(entry)
	if err != nil {
		return nil, err
	}

	seen := map[ir.DefID]bool{id: true}
	queue := []ir.DefID{id}
	var fns []*ir.Function
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		fn, err := e.Function(cur)
		if err != nil {
			return nil, err
		}
		fns = append(fns, fn)
		for _, in := range fn.Code {
			if in.Op != ir.OpCall {
				continue
			}
			callee := ir.DefID(in.A)
			if !seen[callee] {
				seen[callee] = true
				queue = append(queue, callee)
			}
		}
	}

	entryFn, _ := e.Function(id)
	log.Infof("image for %s: %d functions from %d sources", entry, len(fns), len(e.sources))
	return ir.NewImage(entryFn, fns, e.Sources()), nil
}
