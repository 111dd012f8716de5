package resolver

import (
	"fmt"

	"peach/internal/ast"
	"peach/internal/ir"
	"peach/internal/token"
	"peach/internal/types"
)

// funcCompiler turns one body into bytecode. Unit-typed expressions leave
// nothing on the operand stack; every other expression leaves exactly one
// value.
type funcCompiler struct {
	e    *Engine
	name string

	// scope is where paths in the body are looked up. Blocks that declare
	// items get a child scope of their own.
	scope ir.ScopeID

	vars *ir.VarStack
	code *[]ir.Instruction
	ret  types.Ty
}

func (fc *funcCompiler) emit(in ir.Instruction) int {
	return ir.Emit(fc.code, in)
}

func (fc *funcCompiler) emitOp(op ir.OpCode) int {
	return fc.emit(ir.Instruction{Op: op})
}

// patch sets the jump offset of the instruction at idx.
func (fc *funcCompiler) patch(idx, offset int) {
	(*fc.code)[idx].A = offset
}

func (fc *funcCompiler) here() int {
	return len(*fc.code)
}

func (fc *funcCompiler) unify(want, got types.Ty, n ast.Node, what string) (types.Ty, error) {
	ty, err := types.Unify(want, got)
	if err != nil {
		return types.Unknown, fmt.Errorf("%s: %w: %s: %v", n.Pos(), ErrTypeMismatch, what, err)
	}
	return ty, nil
}

func typeOf(t *ast.TypeRef) (types.Ty, error) {
	ty, err := types.FromName(t.Name)
	if err != nil {
		return types.Unknown, fmt.Errorf("%s: %w: %v", t.NamePos, ErrUnsupported, err)
	}
	return ty, nil
}

// signature reads parameter and return types from a compiled function or,
// while it is still being compiled, from its declaration.
func (e *Engine) signature(d *Definition) ([]types.Ty, types.Ty, error) {
	if d.State == ResolvedFunction {
		params := make([]types.Ty, len(d.Fn.Params))
		for i, p := range d.Fn.Params {
			params[i] = p.Ty
		}
		return params, d.Fn.Ret, nil
	}

	item, ok := d.Item.(*ast.FnItem)
	if !ok {
		return nil, types.Unknown, fmt.Errorf("%w: %s", ErrNotFunction, d.Name)
	}
	params := make([]types.Ty, len(item.Params))
	for i, p := range item.Params {
		ty, err := paramType(p)
		if err != nil {
			return nil, types.Unknown, err
		}
		params[i] = ty
	}
	ret := types.Unit
	if item.Return != nil {
		var err error
		if ret, err = typeOf(item.Return); err != nil {
			return nil, types.Unknown, err
		}
	}
	return params, ret, nil
}

func paramType(p *ast.Param) (types.Ty, error) {
	ty, err := typeOf(p.Type)
	if err != nil {
		return types.Unknown, err
	}
	if ty == types.Unit {
		return types.Unknown, fmt.Errorf("%s: %w: parameter %s of type ()", p.NamePos, ErrUnsupported, p.Name)
	}
	return ty, nil
}

// compileFn compiles the unresolved function id. The definition is marked
// Compiling for the duration, so recursive calls resolve to id directly.
func (e *Engine) compileFn(id ir.DefID) (err error) {
	d := e.defs[id]
	item := d.Item.(*ast.FnItem)

	d.State = Compiling
	defer func() {
		if err != nil {
			d.State = Unresolved
		}
	}()

	paramTys, ret, err := e.signature(d)
	if err != nil {
		return fmt.Errorf("fn %s: %w", d.Name, err)
	}

	var vars ir.VarStack
	var code []ir.Instruction
	params := make([]ir.Param, len(item.Params))
	for i, p := range item.Params {
		slot := vars.Add(p.Name, paramTys[i])
		params[i] = ir.Param{Name: p.Name, Slot: slot, Ty: paramTys[i]}
	}

	fc := &funcCompiler{
		e:     e,
		name:  d.Name,
		scope: d.Scope,
		vars:  &vars,
		code:  &code,
		ret:   ret,
	}
	if err := fc.compileBody(item.Body); err != nil {
		return fmt.Errorf("fn %s: %w", d.Name, err)
	}

	d.Fn = &ir.Function{
		ID:     id,
		Name:   d.Name,
		Params: params,
		Ret:    ret,
		Vars:   vars.Decls,
		Code:   code,
	}
	d.State = ResolvedFunction
	d.Item = nil
	e.compiled++
	log.Debugf("compiled fn %s (#%d): %d instructions, %d vars", d.Name, id, len(code), len(vars.Decls))
	return nil
}

// compileBody compiles a function body. A tail expression becomes the
// return value.
func (fc *funcCompiler) compileBody(body *ast.BlockExpr) error {
	ty, err := fc.compileBlock(body)
	if err != nil {
		return err
	}

	if body.Tail != nil {
		if _, err := fc.unify(fc.ret, ty, body.Tail, "return value"); err != nil {
			return err
		}
		if ty == types.Unit {
			fc.emitOp(ir.OpReturnVoid)
		} else {
			fc.emitOp(ir.OpReturn)
		}
		return nil
	}

	// ty is Unknown when the body ends in a return statement.
	if ty != types.Unknown {
		if _, err := fc.unify(fc.ret, types.Unit, body, "missing return value"); err != nil {
			return err
		}
	}
	fc.emitOp(ir.OpReturnVoid)
	return nil
}

// compileBlock compiles the statements and tail of b. Variables declared
// inside are hidden again afterwards. The result is Unknown when the block
// ends in a return statement.
func (fc *funcCompiler) compileBlock(b *ast.BlockExpr) (types.Ty, error) {
	mark := fc.vars.Mark()
	defer fc.vars.Truncate(mark)

	var items []ast.Item
	for _, s := range b.Stmts {
		if is, ok := s.(*ast.ItemStmt); ok {
			items = append(items, is.Item)
		}
	}
	if len(items) > 0 {
		prev := fc.scope
		fc.scope = fc.e.newScope(prev, false)
		defer func() { fc.scope = prev }()
		if err := fc.e.registerItems(items, fc.scope); err != nil {
			return types.Unknown, err
		}
	}

	for _, s := range b.Stmts {
		if _, ok := s.(*ast.ItemStmt); ok {
			continue
		}
		if err := fc.compileStmt(s); err != nil {
			return types.Unknown, err
		}
	}

	if b.Tail != nil {
		return fc.compileExpr(b.Tail)
	}
	if n := len(b.Stmts); n > 0 {
		if _, ok := b.Stmts[n-1].(*ast.ReturnStmt); ok {
			return types.Unknown, nil
		}
	}
	return types.Unit, nil
}

func (fc *funcCompiler) compileStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.LetStmt:
		return fc.compileLet(st)

	case *ast.AssignStmt:
		return fc.compileAssign(st)

	case *ast.ExprStmt:
		_, err := fc.compileExpr(st.Expression)
		return err

	case *ast.WhileStmt:
		return fc.compileWhile(st)

	case *ast.ReturnStmt:
		return fc.compileReturn(st)

	case *ast.ItemStmt:
		return fc.e.Register(st.Item, fc.scope)

	default:
		return fmt.Errorf("%s: %w statement %T", s.Pos(), ErrUnsupported, s)
	}
}

func (fc *funcCompiler) compileLet(st *ast.LetStmt) error {
	declared := types.Unknown
	if st.Type != nil {
		var err error
		if declared, err = typeOf(st.Type); err != nil {
			return err
		}
	}

	if st.Value == nil {
		slot := fc.vars.Add(st.Name, declared)
		fc.emit(ir.Instruction{Op: ir.OpVarDeclUninit, A: slot})
		return nil
	}

	got, err := fc.compileExpr(st.Value)
	if err != nil {
		return err
	}
	ty, err := fc.unify(declared, got, st.Value, "let "+st.Name)
	if err != nil {
		return err
	}

	// The variable becomes visible only after its initializer.
	slot := fc.vars.Add(st.Name, ty)
	if got == types.Unit {
		fc.emit(ir.Instruction{Op: ir.OpVarDeclUninit, A: slot})
	} else {
		fc.emit(ir.Instruction{Op: ir.OpVarDecl, A: slot})
	}
	return nil
}

func (fc *funcCompiler) compileAssign(st *ast.AssignStmt) error {
	slot, ok := fc.vars.Find(st.Name)
	if !ok {
		return fmt.Errorf("%s: %w variable %q", st.NamePos, ErrUndefined, st.Name)
	}

	if st.Op == token.Assign {
		got, err := fc.compileExpr(st.Value)
		if err != nil {
			return err
		}
		ty, err := fc.unify(fc.vars.Ty(slot), got, st.Value, "assignment to "+st.Name)
		if err != nil {
			return err
		}
		fc.vars.SetTy(slot, ty)
		if got != types.Unit {
			fc.emit(ir.Instruction{Op: ir.OpAssign, A: slot})
		}
		return nil
	}

	// x op= e is x = x op e.
	op := token.BinaryOf(st.Op)
	if _, err := fc.unify(types.U64, fc.vars.Ty(slot), st, st.Name); err != nil {
		return err
	}
	fc.vars.SetTy(slot, types.U64)
	fc.emit(ir.Instruction{Op: ir.OpVar, A: slot})
	right, err := fc.compileExpr(st.Value)
	if err != nil {
		return err
	}
	if _, err := fc.binaryType(op, types.U64, right, st); err != nil {
		return err
	}
	fc.emitOp(binaryOps[op])
	fc.emit(ir.Instruction{Op: ir.OpAssign, A: slot})
	return nil
}

// compileWhile emits
//
//	BeginWhile; cond; WhileCond(+n); body; EndWhile(-m)
//
// where WhileCond jumps one past EndWhile and EndWhile jumps back to the
// first condition instruction.
func (fc *funcCompiler) compileWhile(st *ast.WhileStmt) error {
	fc.emitOp(ir.OpBeginWhile)
	condStart := fc.here()

	condTy, err := fc.compileExpr(st.Cond)
	if err != nil {
		return err
	}
	if _, err := fc.unify(types.Bool, condTy, st.Cond, "while condition"); err != nil {
		return err
	}
	condIdx := fc.emitOp(ir.OpWhileCond)

	bodyTy, err := fc.compileBlock(st.Body)
	if err != nil {
		return err
	}
	if _, err := fc.unify(types.Unit, bodyTy, st.Body, "while body"); err != nil {
		return err
	}

	endIdx := fc.emitOp(ir.OpEndWhile)
	fc.patch(endIdx, endIdx-condStart)
	fc.patch(condIdx, endIdx+1-condIdx)
	return nil
}

func (fc *funcCompiler) compileReturn(st *ast.ReturnStmt) error {
	if st.Result == nil {
		if _, err := fc.unify(fc.ret, types.Unit, st, "return"); err != nil {
			return err
		}
		fc.emitOp(ir.OpReturnVoid)
		return nil
	}

	got, err := fc.compileExpr(st.Result)
	if err != nil {
		return err
	}
	if _, err := fc.unify(fc.ret, got, st.Result, "return value"); err != nil {
		return err
	}
	if got == types.Unit {
		fc.emitOp(ir.OpReturnVoid)
	} else {
		fc.emitOp(ir.OpReturn)
	}
	return nil
}
