package types

import (
	"errors"
	"fmt"

	"peach/internal/token"
)

// Ty is the static type of a value. The set is closed: the compiled
// language has unsigned integers, booleans and unit.
type Ty int

const (
	// Unknown is the placeholder used before an expected type is known,
	// e.g. for top-level REPL expressions. It unifies with anything.
	Unknown Ty = iota
	U64
	Bool
	Unit
)

var names = [...]string{
	Unknown: "_",
	U64:     "u64",
	Bool:    "bool",
	Unit:    "()",
}

func (t Ty) String() string {
	if t < 0 || int(t) >= len(names) {
		return fmt.Sprintf("Ty(%d)", int(t))
	}
	return names[t]
}

var (
	ErrMismatch    = errors.New("type mismatch")
	ErrUnsupported = errors.New("unsupported type")
)

// FromName maps a source type name to its Ty.
func FromName(name string) (Ty, error) {
	switch name {
	case "u64":
		return U64, nil
	case "bool":
		return Bool, nil
	case "()":
		return Unit, nil
	}
	return Unknown, fmt.Errorf("%w: %s", ErrUnsupported, name)
}

// Unify returns the more specific of a and b.
func Unify(a, b Ty) (Ty, error) {
	switch {
	case a == b:
		return a, nil
	case a == Unknown:
		return b, nil
	case b == Unknown:
		return a, nil
	}
	return Unknown, fmt.Errorf("%w: expected %s, found %s", ErrMismatch, a, b)
}

// Binary gives the result type of l op r.
func Binary(op token.Kind, l, r Ty) (Ty, error) {
	if _, err := Unify(U64, l); err != nil {
		return Unknown, fmt.Errorf("left operand of %s: %w", op, err)
	}
	if _, err := Unify(U64, r); err != nil {
		return Unknown, fmt.Errorf("right operand of %s: %w", op, err)
	}
	switch op {
	case token.Plus, token.Minus, token.Star, token.Slash:
		return U64, nil
	case token.Lt:
		return Bool, nil
	}
	return Unknown, fmt.Errorf("%w: operator %s", ErrUnsupported, op)
}
