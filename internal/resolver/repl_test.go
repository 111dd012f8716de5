package resolver

import (
	"bytes"
	"errors"
	"testing"

	"peach/internal/ir"
	"peach/internal/parser"
	"peach/internal/types"
	"peach/internal/vm"
)

func TestProcessRawExpr_RollsBackOnError(t *testing.T) {
	e := New()
	var code []ir.Instruction
	var vars ir.VarStack

	ty, err := e.ProcessRawExpr("1 + 2", &code, &vars)
	if err != nil {
		t.Fatalf("ProcessRawExpr: %v", err)
	}
	if ty != types.U64 || len(code) != 3 {
		t.Fatalf("expected u64 in 3 instructions, got %s in %d", ty, len(code))
	}

	if _, err := e.ProcessRawExpr("1 + nope", &code, &vars); !errors.Is(err, ErrUndefined) {
		t.Fatalf("expected ErrUndefined, got %v", err)
	}
	if len(code) != 3 {
		t.Fatalf("failed input left %d instructions behind", len(code)-3)
	}

	var perr *parser.Error
	if _, err := e.ProcessRawExpr("1 +", &code, &vars); !errors.As(err, &perr) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestProcessRawStmt_Variables(t *testing.T) {
	e := New()
	var code []ir.Instruction
	var vars ir.VarStack

	if err := e.ProcessRawStmt("let x = 5;", &code, &vars); err != nil {
		t.Fatalf("ProcessRawStmt: %v", err)
	}
	if err := e.ProcessRawStmt("let y = x + missing;", &code, &vars); err == nil {
		t.Fatal("expected an error")
	}
	if got := vars.Visible(); len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected only x to be visible, got %v", got)
	}
	if len(code) != 2 {
		t.Fatalf("expected 2 instructions, got %d", len(code))
	}
}

func TestSession_Eval(t *testing.T) {
	var out bytes.Buffer
	s := New(WithOutput(&out)).NewSession()

	steps := []struct {
		line string
		want uint64
		ty   types.Ty
	}{
		{"let x = 5;", 0, types.Unit},
		{"x + 1", 6, types.U64},
		{"fn double(n: u64) -> u64 { n * 2 }", 0, types.Unit},
		{"double(x)", 10, types.U64},
		{"x = x + 1", 0, types.Unit},
		{"x", 6, types.U64},
		{"if x < 10 { 1 } else { 2 }", 1, types.U64},
	}
	for _, step := range steps {
		v, ty, err := s.Eval(step.line)
		if err != nil {
			t.Fatalf("Eval(%q): %v", step.line, err)
		}
		if ty != step.ty {
			t.Fatalf("Eval(%q): expected type %s, got %s", step.line, step.ty, ty)
		}
		if ty == types.U64 && v.U64 != step.want {
			t.Fatalf("Eval(%q): expected %d, got %s", step.line, step.want, v)
		}
	}

	if _, _, err := s.Eval("println!(x)"); err != nil {
		t.Fatalf("println: %v", err)
	}
	if out.String() != "6\n" {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestSession_ErrorsDoNotBreakState(t *testing.T) {
	s := New().NewSession()
	if _, _, err := s.Eval("let x = 2;"); err != nil {
		t.Fatal(err)
	}

	if _, _, err := s.Eval("y"); !errors.Is(err, ErrUndefined) {
		t.Fatalf("expected ErrUndefined, got %v", err)
	}
	var perr *parser.Error
	if _, _, err := s.Eval("let z = 1 +"); !errors.As(err, &perr) {
		t.Fatalf("expected a parse error, got %v", err)
	}
	if _, _, err := s.Eval("let w = 1 / 0;"); !errors.Is(err, vm.ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
	if vars := s.Vars(); len(vars) != 1 || vars[0] != "x" {
		t.Fatalf("expected only x after failed inputs, got %v", vars)
	}

	v, _, err := s.Eval("x * 21")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.U64 != 42 {
		t.Fatalf("expected 42, got %s", v)
	}
}

func TestSession_FailedAssignmentKeepsVariableUntyped(t *testing.T) {
	s := New().NewSession()
	if _, _, err := s.Eval("let x;"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Eval("x = 1 / 0;"); !errors.Is(err, vm.ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
	if _, _, err := s.Eval("x + 1"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected a compile-time error for unassigned x, got %v", err)
	}

	if _, _, err := s.Eval("x = 4;"); err != nil {
		t.Fatal(err)
	}
	v, _, err := s.Eval("x + 1")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.U64 != 5 {
		t.Fatalf("expected 5, got %s", v)
	}
}
