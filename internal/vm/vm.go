package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"peach/internal/ir"
	"peach/internal/types"
	"peach/internal/value"
)

var (
	ErrOperand       = errors.New("invalid operand")
	ErrDivideByZero  = errors.New("division by zero")
	ErrStackOverflow = errors.New("call depth exceeded")
	ErrUnderflow     = errors.New("stack underflow")
	ErrBadJump       = errors.New("jump out of range")
	ErrBadSlot       = errors.New("unbound variable slot")
)

// Program supplies compiled functions by id. The engine implements it by
// forcing compilation on demand; an image implements it from its table.
type Program interface {
	Function(id ir.DefID) (*ir.Function, error)
}

// TraceFunc observes every instruction just before it executes.
type TraceFunc func(fn string, ip int, in ir.Instruction)

// VM is a stack-based virtual machine for peach bytecode. Each call runs in
// a fresh frame on the host call stack.
type VM struct {
	prog     Program
	out      io.Writer
	trace    TraceFunc
	maxDepth int
	depth    int
}

type Option func(*VM)

// WithOutput sets where DebugPrint writes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

func WithTrace(f TraceFunc) Option {
	return func(vm *VM) { vm.trace = f }
}

// WithMaxDepth bounds nested calls; zero means unbounded.
func WithMaxDepth(n int) Option {
	return func(vm *VM) { vm.maxDepth = n }
}

// New creates a VM that resolves call targets through prog.
func New(prog Program, opts ...Option) *VM {
	vm := &VM{
		prog: prog,
		out:  os.Stdout,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// frame is the state of one invocation: an operand stack, the stack
// position each slot was bound to, and the heights recorded by If and
// BeginWhile.
type frame struct {
	stack []value.Value
	slots []int
	marks []int
}

func newFrame(args []value.Value) *frame {
	fr := &frame{
		stack: make([]value.Value, 0, 16),
	}
	fr.stack = append(fr.stack, args...)
	return fr
}

func (fr *frame) push(v value.Value) {
	fr.stack = append(fr.stack, v)
}

func (fr *frame) pop() (value.Value, error) {
	if len(fr.stack) == 0 {
		return value.Value{}, ErrUnderflow
	}
	v := fr.stack[len(fr.stack)-1]
	fr.stack = fr.stack[:len(fr.stack)-1]
	return v, nil
}

func (fr *frame) bind(slot, pos int) {
	for len(fr.slots) <= slot {
		fr.slots = append(fr.slots, -1)
	}
	fr.slots[slot] = pos
}

func (fr *frame) position(slot int) (int, error) {
	if slot < 0 || slot >= len(fr.slots) || fr.slots[slot] < 0 || fr.slots[slot] >= len(fr.stack) {
		return 0, fmt.Errorf("%w: $%d", ErrBadSlot, slot)
	}
	return fr.slots[slot], nil
}

func (fr *frame) truncate(height int) {
	if height < len(fr.stack) {
		fr.stack = fr.stack[:height]
	}
}

func (fr *frame) popMark() (int, error) {
	if len(fr.marks) == 0 {
		return 0, ErrUnderflow
	}
	m := fr.marks[len(fr.marks)-1]
	fr.marks = fr.marks[:len(fr.marks)-1]
	return m, nil
}

func (fr *frame) topMark() (int, error) {
	if len(fr.marks) == 0 {
		return 0, ErrUnderflow
	}
	return fr.marks[len(fr.marks)-1], nil
}

// Call evaluates fn with args bound to its parameters.
func (vm *VM) Call(fn *ir.Function, args ...value.Value) (value.Value, error) {
	if len(args) != len(fn.Params) {
		return value.Value{}, fmt.Errorf("function %s expects %d args, got %d",
			fn.Name, len(fn.Params), len(args))
	}

	vm.depth++
	defer func() { vm.depth-- }()
	if vm.maxDepth > 0 && vm.depth > vm.maxDepth {
		return value.Value{}, fmt.Errorf("%w: %d calls deep in %s", ErrStackOverflow, vm.depth, fn.Name)
	}

	fr := newFrame(args)
	for i, p := range fn.Params {
		fr.bind(p.Slot, i)
	}
	return vm.exec(fn.Name, fn.Code, 0, fr)
}

// exec runs code from ip until a return or the end of the sequence.
func (vm *VM) exec(name string, code []ir.Instruction, ip int, fr *frame) (value.Value, error) {
	fail := func(ip int, err error) (value.Value, error) {
		return value.Value{}, fmt.Errorf("%s@%d: %w", name, ip, err)
	}

	for ip < len(code) {
		inst := code[ip]
		if vm.trace != nil {
			vm.trace(name, ip, inst)
		}

		switch inst.Op {
		case ir.OpPushInt:
			fr.push(value.U64(inst.Imm))

		case ir.OpPushBool:
			fr.push(value.Bool(inst.A != 0))

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpLt:
			if err := binaryOp(fr, inst.Op); err != nil {
				return fail(ip, err)
			}

		case ir.OpVarDecl:
			if len(fr.stack) == 0 {
				return fail(ip, ErrUnderflow)
			}
			fr.bind(inst.A, len(fr.stack)-1)

		case ir.OpVarDeclUninit:
			fr.push(value.Void())
			fr.bind(inst.A, len(fr.stack)-1)

		case ir.OpVar:
			pos, err := fr.position(inst.A)
			if err != nil {
				return fail(ip, err)
			}
			fr.push(fr.stack[pos])

		case ir.OpAssign:
			v, err := fr.pop()
			if err != nil {
				return fail(ip, err)
			}
			pos, err := fr.position(inst.A)
			if err != nil {
				return fail(ip, err)
			}
			fr.stack[pos] = v

		case ir.OpCall:
			callee, err := vm.prog.Function(ir.DefID(inst.A))
			if err != nil {
				return fail(ip, err)
			}
			n := len(callee.Params)
			if len(fr.stack) < n {
				return fail(ip, ErrUnderflow)
			}
			args := make([]value.Value, n)
			copy(args, fr.stack[len(fr.stack)-n:])
			fr.truncate(len(fr.stack) - n)

			ret, err := vm.Call(callee, args...)
			if err != nil {
				return value.Value{}, err
			}
			if callee.Ret != types.Unit {
				fr.push(ret)
			}

		case ir.OpIf:
			cond, err := popBool(fr)
			if err != nil {
				return fail(ip, err)
			}
			fr.marks = append(fr.marks, len(fr.stack))
			if !cond {
				target := ip + inst.A
				if inst.A <= 0 || target > len(code) {
					return fail(ip, ErrBadJump)
				}
				ip = target
				continue
			}

		case ir.OpElse:
			target := ip + inst.A
			if inst.A <= 0 || target > len(code) {
				return fail(ip, ErrBadJump)
			}
			ip = target
			continue

		case ir.OpEndIf:
			mark, err := fr.popMark()
			if err != nil {
				return fail(ip, err)
			}
			if inst.Ty != types.Unit && len(fr.stack) > mark {
				result := fr.stack[len(fr.stack)-1]
				fr.truncate(mark)
				fr.push(result)
			} else {
				fr.truncate(mark)
			}

		case ir.OpBeginWhile:
			fr.marks = append(fr.marks, len(fr.stack))

		case ir.OpWhileCond:
			cond, err := popBool(fr)
			if err != nil {
				return fail(ip, err)
			}
			if !cond {
				mark, err := fr.popMark()
				if err != nil {
					return fail(ip, err)
				}
				fr.truncate(mark)
				target := ip + inst.A
				if inst.A <= 0 || target > len(code) {
					return fail(ip, ErrBadJump)
				}
				ip = target
				continue
			}

		case ir.OpEndWhile:
			mark, err := fr.topMark()
			if err != nil {
				return fail(ip, err)
			}
			fr.truncate(mark)
			target := ip - inst.A
			if inst.A <= 0 || target < 0 {
				return fail(ip, ErrBadJump)
			}
			ip = target
			continue

		case ir.OpReturn:
			if len(fr.stack) == 0 {
				return value.Error(), nil
			}
			v, _ := fr.pop()
			return v, nil

		case ir.OpReturnVoid:
			return value.Void(), nil

		case ir.OpDebugPrint:
			v, err := fr.pop()
			if err != nil {
				return fail(ip, err)
			}
			if inst.A == 1 {
				fmt.Fprint(vm.out, v.String())
			} else {
				fmt.Fprintln(vm.out, v.String())
			}

		default:
			return fail(ip, fmt.Errorf("unknown opcode %d", inst.Op))
		}

		ip++
	}

	return value.Void(), nil
}

func popBool(fr *frame) (bool, error) {
	v, err := fr.pop()
	if err != nil {
		return false, err
	}
	if v.Kind != value.KindBool {
		return false, fmt.Errorf("%w: condition is %s", ErrOperand, v)
	}
	return v.Bool, nil
}

// binaryOp pops the right operand, then the left.
func binaryOp(fr *frame, op ir.OpCode) error {
	b, err := fr.pop()
	if err != nil {
		return err
	}
	a, err := fr.pop()
	if err != nil {
		return err
	}
	if a.Kind != value.KindU64 || b.Kind != value.KindU64 {
		return fmt.Errorf("%w: %s expects (u64, u64), got (%s, %s)", ErrOperand, op, a, b)
	}

	switch op {
	case ir.OpAdd:
		fr.push(value.U64(a.U64 + b.U64))
	case ir.OpSub:
		fr.push(value.U64(a.U64 - b.U64))
	case ir.OpMul:
		fr.push(value.U64(a.U64 * b.U64))
	case ir.OpDiv:
		if b.U64 == 0 {
			return ErrDivideByZero
		}
		fr.push(value.U64(a.U64 / b.U64))
	case ir.OpLt:
		fr.push(value.Bool(a.U64 < b.U64))
	}
	return nil
}
