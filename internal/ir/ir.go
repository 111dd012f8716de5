package ir

import (
	"fmt"

	"peach/internal/types"
)

// DefID indexes the definition table. It is stable for the lifetime of an
// engine and is the operand of OpCall.
type DefID int

// ScopeID indexes the scope arena. Scope 0 is the root.
type ScopeID int

// OpCode is an opcode for peach bytecode
type OpCode byte

const (
	OpPushInt OpCode = iota // Imm = literal

	OpPushBool // A = 0 or 1

	// Math; pop right, then left
	OpAdd
	OpSub
	OpMul
	OpDiv

	// Compare
	OpLt

	// Variables
	OpVarDecl       // A = slot; bind the value on top of the stack
	OpVarDeclUninit // A = slot; push a placeholder and bind it
	OpVar           // A = slot; push its value
	OpAssign        // A = slot; pop and store

	OpCall // A = callee DefID

	// Conditionals
	OpIf    // pop cond; if false, ip += A (else body, or the EndIf)
	OpElse  // ip += A (the EndIf)
	OpEndIf // Ty = result type; restore stack height, keeping the result unless Ty is ()

	// Loops
	OpBeginWhile
	OpWhileCond // pop cond; if false, ip += A (one past EndWhile)
	OpEndWhile  // ip -= A (first condition instruction)

	OpReturn     // pop and return
	OpReturnVoid // return ()

	OpDebugPrint // pop and print; A = 1 omits the newline
)

var opNames = [...]string{
	OpPushInt:       "PushInt",
	OpPushBool:      "PushBool",
	OpAdd:           "Add",
	OpSub:           "Sub",
	OpMul:           "Mul",
	OpDiv:           "Div",
	OpLt:            "Lt",
	OpVarDecl:       "VarDecl",
	OpVarDeclUninit: "VarDeclUninit",
	OpVar:           "Var",
	OpAssign:        "Assign",
	OpCall:          "Call",
	OpIf:            "If",
	OpElse:          "Else",
	OpEndIf:         "EndIf",
	OpBeginWhile:    "BeginWhile",
	OpWhileCond:     "WhileCond",
	OpEndWhile:      "EndWhile",
	OpReturn:        "Return",
	OpReturnVoid:    "ReturnVoid",
	OpDebugPrint:    "DebugPrint",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", byte(op))
}

// Instruction is one bytecode instruction.
// A is a slot, DefID or jump offset depending on Op; Imm holds integer
// literals; Ty is the result type of a conditional expression.
type Instruction struct {
	Op  OpCode   `cbor:"1,keyasint"`
	A   int      `cbor:"2,keyasint,omitempty"`
	Imm uint64   `cbor:"3,keyasint,omitempty"`
	Ty  types.Ty `cbor:"4,keyasint,omitempty"`
}

func (in Instruction) String() string {
	switch in.Op {
	case OpPushInt:
		return fmt.Sprintf("%s %d", in.Op, in.Imm)
	case OpPushBool:
		return fmt.Sprintf("%s %t", in.Op, in.A != 0)
	case OpVarDecl, OpVarDeclUninit, OpVar, OpAssign:
		return fmt.Sprintf("%s $%d", in.Op, in.A)
	case OpCall:
		return fmt.Sprintf("%s #%d", in.Op, in.A)
	case OpIf, OpElse, OpWhileCond:
		return fmt.Sprintf("%s +%d", in.Op, in.A)
	case OpEndWhile:
		return fmt.Sprintf("%s -%d", in.Op, in.A)
	case OpEndIf:
		return fmt.Sprintf("%s %s", in.Op, in.Ty)
	default:
		return in.Op.String()
	}
}

// Param is a function parameter. Parameters occupy the first slots.
type Param struct {
	Name string   `cbor:"1,keyasint"`
	Slot int      `cbor:"2,keyasint"`
	Ty   types.Ty `cbor:"3,keyasint"`
}

// VarDecl is one local variable; its slot is its index in Function.Vars.
type VarDecl struct {
	Name string   `cbor:"1,keyasint"`
	Ty   types.Ty `cbor:"2,keyasint"`
}

// Function represents a single compiled function. It is immutable once the
// compiler hands it over.
type Function struct {
	ID     DefID         `cbor:"1,keyasint"`
	Name   string        `cbor:"2,keyasint"`
	Params []Param       `cbor:"3,keyasint,omitempty"`
	Ret    types.Ty      `cbor:"4,keyasint"`
	Vars   []VarDecl     `cbor:"5,keyasint,omitempty"`
	Code   []Instruction `cbor:"6,keyasint"`
}

// Emit appends an instruction and returns its index, for later patching.
func Emit(code *[]Instruction, in Instruction) int {
	*code = append(*code, in)
	return len(*code) - 1
}
