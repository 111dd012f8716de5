package value

import (
	"fmt"

	"peach/internal/types"
)

// Kind is the type of a value at runtime.
type Kind int

const (
	KindVoid Kind = iota
	KindU64
	KindBool
	KindError
)

// Value is a universal value for the VM. It is never persisted.
type Value struct {
	Kind Kind
	U64  uint64
	Bool bool
}

func (v Value) String() string {
	switch v.Kind {
	case KindU64:
		return fmt.Sprintf("%d", v.U64)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindVoid:
		return "()"
	case KindError:
		return "<error>"
	default:
		return "<invalid>"
	}
}

// Ty returns the static type that describes v.
func (v Value) Ty() types.Ty {
	switch v.Kind {
	case KindU64:
		return types.U64
	case KindBool:
		return types.Bool
	case KindVoid:
		return types.Unit
	}
	return types.Unknown
}

// IsError reports whether v is the error sentinel.
func (v Value) IsError() bool { return v.Kind == KindError }

// Helpers

func U64(v uint64) Value {
	return Value{Kind: KindU64, U64: v}
}

func Bool(v bool) Value {
	return Value{Kind: KindBool, Bool: v}
}

func Void() Value {
	return Value{Kind: KindVoid}
}

// Error is the sentinel returned when a Return finds an empty stack.
func Error() Value {
	return Value{Kind: KindError}
}
