package resolver

import "errors"

// Every error returned by the engine, except *parser.Error from the REPL
// entry points, is fatal for the operation that produced it.
var (
	ErrUndefined    = errors.New("undefined")
	ErrUnsupported  = errors.New("unsupported")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrNotModule    = errors.New("not a module")
	ErrNotFunction  = errors.New("not a function")
	ErrNotCompiled  = errors.New("function not compiled")
	ErrArity        = errors.New("wrong number of arguments")
	ErrLoad         = errors.New("load failed")
)
