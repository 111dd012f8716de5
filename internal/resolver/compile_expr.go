package resolver

import (
	"errors"
	"fmt"

	"peach/internal/ast"
	"peach/internal/ir"
	"peach/internal/token"
	"peach/internal/types"
)

var binaryOps = map[token.Kind]ir.OpCode{
	token.Plus:  ir.OpAdd,
	token.Minus: ir.OpSub,
	token.Star:  ir.OpMul,
	token.Slash: ir.OpDiv,
	token.Lt:    ir.OpLt,
}

func (fc *funcCompiler) compileExpr(e ast.Expr) (types.Ty, error) {
	switch n := e.(type) {
	case *ast.IntLiteral:
		fc.emit(ir.Instruction{Op: ir.OpPushInt, Imm: n.Value})
		return types.U64, nil

	case *ast.BoolLiteral:
		in := ir.Instruction{Op: ir.OpPushBool}
		if n.Value {
			in.A = 1
		}
		fc.emit(in)
		return types.Bool, nil

	case *ast.UnitLiteral:
		return types.Unit, nil

	case *ast.PathExpr:
		return fc.compileVar(n)

	case *ast.BinaryExpr:
		return fc.compileBinary(n)

	case *ast.CallExpr:
		return fc.compileCall(n)

	case *ast.MacroExpr:
		return fc.compileMacro(n)

	case *ast.BlockExpr:
		return fc.compileBlockExpr(n)

	case *ast.IfExpr:
		return fc.compileIf(n)

	default:
		return types.Unknown, fmt.Errorf("%s: %w expression %T", e.Pos(), ErrUnsupported, e)
	}
}

// compileVar reads a local variable. Unit variables have no runtime value.
func (fc *funcCompiler) compileVar(n *ast.PathExpr) (types.Ty, error) {
	if !n.IsIdent() {
		return types.Unknown, fmt.Errorf("%s: %w: path %s used as a value", n.PathPos, ErrUnsupported, n)
	}
	name := n.Segments[0]
	slot, ok := fc.vars.Find(name)
	if !ok {
		return types.Unknown, fmt.Errorf("%s: %w variable %q", n.PathPos, ErrUndefined, name)
	}
	ty := fc.vars.Ty(slot)
	switch ty {
	case types.Unit:
		return ty, nil
	case types.Unknown:
		return ty, fmt.Errorf("%s: %w: variable %q used before it is assigned", n.PathPos, ErrTypeMismatch, name)
	}
	fc.emit(ir.Instruction{Op: ir.OpVar, A: slot})
	return ty, nil
}

func (fc *funcCompiler) binaryType(op token.Kind, l, r types.Ty, n ast.Node) (types.Ty, error) {
	ty, err := types.Binary(op, l, r)
	if err == nil {
		return ty, nil
	}
	if errors.Is(err, types.ErrUnsupported) {
		return types.Unknown, fmt.Errorf("%s: %w: %v", n.Pos(), ErrUnsupported, err)
	}
	return types.Unknown, fmt.Errorf("%s: %w: %v", n.Pos(), ErrTypeMismatch, err)
}

func (fc *funcCompiler) compileBinary(n *ast.BinaryExpr) (types.Ty, error) {
	l, err := fc.compileExpr(n.Left)
	if err != nil {
		return types.Unknown, err
	}
	r, err := fc.compileExpr(n.Right)
	if err != nil {
		return types.Unknown, err
	}
	ty, err := fc.binaryType(n.Op, l, r, n)
	if err != nil {
		return types.Unknown, err
	}
	fc.emitOp(binaryOps[n.Op])
	return ty, nil
}

// compileCall resolves the callee from the current scope, forcing its
// compilation unless it is already being compiled.
func (fc *funcCompiler) compileCall(n *ast.CallExpr) (types.Ty, error) {
	id, err := fc.e.resolvePath(n.Callee.Leading, n.Callee.Segments, fc.scope)
	if err != nil {
		return types.Unknown, fmt.Errorf("%s: %w", n.Callee.PathPos, err)
	}
	d := fc.e.defs[id]
	if !d.isFunction() {
		return types.Unknown, fmt.Errorf("%s: %w: %s", n.Callee.PathPos, ErrNotFunction, n.Callee)
	}

	params, ret, err := fc.e.signature(d)
	if err != nil {
		return types.Unknown, err
	}
	if len(n.Args) != len(params) {
		return types.Unknown, fmt.Errorf("%s: %w: %s takes %d arguments, got %d",
			n.Callee.PathPos, ErrArity, n.Callee, len(params), len(n.Args))
	}
	for i, arg := range n.Args {
		got, err := fc.compileExpr(arg)
		if err != nil {
			return types.Unknown, err
		}
		if _, err := fc.unify(params[i], got, arg, fmt.Sprintf("argument %d of %s", i+1, n.Callee)); err != nil {
			return types.Unknown, err
		}
	}

	fc.emit(ir.Instruction{Op: ir.OpCall, A: int(id)})
	return ret, nil
}

func (fc *funcCompiler) compileMacro(n *ast.MacroExpr) (types.Ty, error) {
	switch n.Name {
	case "println", "print":
	default:
		return types.Unknown, fmt.Errorf("%s: %w macro %s!", n.NamePos, ErrUnsupported, n.Name)
	}
	if len(n.Args) != 1 {
		return types.Unknown, fmt.Errorf("%s: %w: %s! takes exactly one argument", n.NamePos, ErrUnsupported, n.Name)
	}

	ty, err := fc.compileExpr(n.Args[0])
	if err != nil {
		return types.Unknown, err
	}
	if ty == types.Unit {
		return types.Unknown, fmt.Errorf("%s: %w: %s! of ()", n.NamePos, ErrUnsupported, n.Name)
	}
	in := ir.Instruction{Op: ir.OpDebugPrint}
	if n.Name == "print" {
		in.A = 1
	}
	fc.emit(in)
	return types.Unit, nil
}

// compileBlockExpr compiles a block used as a value. Blocks with statements
// run under an always-taken If so EndIf clears whatever they leave behind.
func (fc *funcCompiler) compileBlockExpr(b *ast.BlockExpr) (types.Ty, error) {
	if len(b.Stmts) == 0 {
		return fc.compileBlock(b)
	}

	fc.emit(ir.Instruction{Op: ir.OpPushBool, A: 1})
	ifIdx := fc.emitOp(ir.OpIf)
	ty, err := fc.compileBlock(b)
	if err != nil {
		return types.Unknown, err
	}
	endIdx := fc.emit(ir.Instruction{Op: ir.OpEndIf, Ty: keptTy(ty)})
	fc.patch(ifIdx, endIdx-ifIdx)
	return ty, nil
}

// keptTy is the type EndIf keeps on the stack; diverging branches keep
// nothing.
func keptTy(ty types.Ty) types.Ty {
	if ty == types.Unknown {
		return types.Unit
	}
	return ty
}

// compileIf emits
//
//	cond; If(+a); then; Else(+b); else; EndIf(ty)
//
// If jumps to the first else instruction and Else jumps to EndIf. Without
// an else branch If jumps straight to EndIf.
func (fc *funcCompiler) compileIf(n *ast.IfExpr) (types.Ty, error) {
	condTy, err := fc.compileExpr(n.Cond)
	if err != nil {
		return types.Unknown, err
	}
	if _, err := fc.unify(types.Bool, condTy, n.Cond, "if condition"); err != nil {
		return types.Unknown, err
	}

	ifIdx := fc.emitOp(ir.OpIf)
	thenTy, err := fc.compileBlock(n.Then)
	if err != nil {
		return types.Unknown, err
	}

	if n.Else == nil {
		if _, err := fc.unify(types.Unit, thenTy, n.Then, "if without else"); err != nil {
			return types.Unknown, err
		}
		endIdx := fc.emit(ir.Instruction{Op: ir.OpEndIf, Ty: types.Unit})
		fc.patch(ifIdx, endIdx-ifIdx)
		return types.Unit, nil
	}

	elseIdx := fc.emitOp(ir.OpElse)
	fc.patch(ifIdx, fc.here()-ifIdx)

	var elseTy types.Ty
	switch els := n.Else.(type) {
	case *ast.BlockExpr:
		elseTy, err = fc.compileBlock(els)
	case *ast.IfExpr:
		elseTy, err = fc.compileIf(els)
	default:
		elseTy, err = fc.compileExpr(els)
	}
	if err != nil {
		return types.Unknown, err
	}

	ty, err := fc.unify(thenTy, elseTy, n.Else, "if branches")
	if err != nil {
		return types.Unknown, err
	}
	endIdx := fc.emit(ir.Instruction{Op: ir.OpEndIf, Ty: keptTy(ty)})
	fc.patch(elseIdx, endIdx-elseIdx)
	return ty, nil
}
