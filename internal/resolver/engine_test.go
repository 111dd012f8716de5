package resolver

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"peach/internal/ast"
	"peach/internal/ir"
	"peach/internal/value"
	"peach/internal/vm"
)

// project writes files into a temporary root and loads main.rs from it.
func project(t *testing.T, files map[string]string, opts ...Option) *Engine {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	e := New(opts...)
	if err := e.SetProjectRoot(dir); err != nil {
		t.Fatalf("SetProjectRoot: %v", err)
	}
	if err := e.LoadFile("main.rs"); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return e
}

func evalMain(t *testing.T, src string, opts ...Option) value.Value {
	t.Helper()
	e := project(t, map[string]string{"main.rs": src}, opts...)
	v, err := e.Eval("main")
	if err != nil {
		t.Fatalf("Eval error: %v", err)
	}
	return v
}

func TestEval_Precedence(t *testing.T) {
	v := evalMain(t, `fn main() -> u64 { 2 + 3 * 4 }`)
	if v.Kind != value.KindU64 || v.U64 != 14 {
		t.Fatalf("expected 14, got %s", v)
	}
}

func TestEval_RecursiveFactorial(t *testing.T) {
	v := evalMain(t, `
fn fact(n: u64) -> u64 {
    if n < 2 { 1 } else { n * fact(n - 1) }
}

fn main() -> u64 { fact(5) }
`)
	if v.U64 != 120 {
		t.Fatalf("expected 120, got %s", v)
	}
}

func TestEval_MutualRecursion(t *testing.T) {
	v := evalMain(t, `
fn is_even(n: u64) -> bool { if n < 1 { true } else { is_odd(n - 1) } }
fn is_odd(n: u64) -> bool { if n < 1 { false } else { is_even(n - 1) } }
fn main() -> bool { is_even(10) }
`)
	if v.Kind != value.KindBool || !v.Bool {
		t.Fatalf("expected true, got %s", v)
	}
}

func TestEval_IfFalseTakesElse(t *testing.T) {
	var pushed []uint64
	v := evalMain(t, `fn main() -> u64 { if false { 1 } else { 2 } }`,
		WithTrace(func(_ string, _ int, in ir.Instruction) {
			if in.Op == ir.OpPushInt {
				pushed = append(pushed, in.Imm)
			}
		}))
	if v.U64 != 2 {
		t.Fatalf("expected 2, got %s", v)
	}
	if len(pushed) != 1 || pushed[0] != 2 {
		t.Fatalf("expected only the else branch to run, pushed %v", pushed)
	}
}

func TestEval_LoopBackEdges(t *testing.T) {
	backEdges := 0
	v := evalMain(t, `
fn main() -> u64 {
    let mut i = 0;
    while i < 3 {
        i += 1;
    }
    i
}
`, WithTrace(func(_ string, _ int, in ir.Instruction) {
		if in.Op == ir.OpEndWhile {
			backEdges++
		}
	}))
	if v.U64 != 3 {
		t.Fatalf("expected 3, got %s", v)
	}
	if backEdges != 3 {
		t.Fatalf("expected 3 back edges, got %d", backEdges)
	}
}

func TestEval_Shadowing(t *testing.T) {
	v := evalMain(t, `
fn main() -> u64 {
    let x = 1;
    let x = x + 10;
    let inner = {
        let x = 100;
        x
    };
    inner + x
}
`)
	// 100 from the inner x, 11 from the outer one once the block ends.
	if v.U64 != 111 {
		t.Fatalf("expected 111, got %s", v)
	}
}

func TestEval_BlockValueAndLocalItems(t *testing.T) {
	v := evalMain(t, `
fn main() -> u64 {
    fn helper() -> u64 { 5 }
    let y = { let z = helper(); z * 2 };
    y + 1
}
`)
	if v.U64 != 11 {
		t.Fatalf("expected 11, got %s", v)
	}
}

func TestEval_UnitFunctionsAndPrint(t *testing.T) {
	var out bytes.Buffer
	v := evalMain(t, `
fn countdown(n: u64) {
    if n < 1 {
        return;
    }
    println!(n);
    countdown(n - 1);
}

fn main() -> u64 {
    countdown(3);
    let v = 7;
    v
}
`, WithOutput(&out))
	if v.U64 != 7 {
		t.Fatalf("expected 7, got %s", v)
	}
	if got := out.String(); got != "3\n2\n1\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

func TestEval_DeclareThenAssign(t *testing.T) {
	v := evalMain(t, `
fn main() -> u64 {
    let x: u64;
    if true { x = 4; } else { x = 5; }
    let mut acc = 100;
    acc -= x;
    acc /= 2;
    acc
}
`)
	if v.U64 != 48 {
		t.Fatalf("expected 48, got %s", v)
	}
}

func TestEval_ReturnStatement(t *testing.T) {
	v := evalMain(t, `
fn first_at_least(limit: u64) -> u64 {
    let mut i = 0;
    while true {
        if limit < i * i { return i; }
        i = i + 1;
    }
    return 0;
}

fn main() -> u64 { first_at_least(50) }
`)
	if v.U64 != 8 {
		t.Fatalf("expected 8, got %s", v)
	}
}

func TestProcessFn_Idempotent(t *testing.T) {
	e := project(t, map[string]string{"main.rs": `
fn helper() -> u64 { 1 }
fn main() -> u64 { helper() + 1 }
`})
	id1, err := e.ProcessFn("main")
	if err != nil {
		t.Fatalf("ProcessFn: %v", err)
	}
	n := e.Compilations()
	id2, err := e.ProcessFn("main")
	if err != nil {
		t.Fatalf("ProcessFn: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ids differ: %d vs %d", id1, id2)
	}
	if e.Compilations() != n || n != 2 {
		t.Fatalf("expected 2 compilations total, got %d then %d", n, e.Compilations())
	}
	if e.State(id1) != ResolvedFunction {
		t.Fatalf("main is %s", e.State(id1))
	}
}

func TestLazy_UnreferencedStaysUnresolved(t *testing.T) {
	e := project(t, map[string]string{"main.rs": `
mod missing;
fn main() -> u64 { 1 }
fn unused() -> u64 { does_not_exist() }
`})
	if _, err := e.Eval("main"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	for _, name := range []string{"unused", "missing"} {
		id, _, err := e.Lookup(name, 0)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", name, err)
		}
		if e.State(id) != Unresolved {
			t.Fatalf("%s should be unresolved, is %s", name, e.State(id))
		}
	}
	if _, err := e.Fn("unused"); !errors.Is(err, ErrNotCompiled) {
		t.Fatalf("expected ErrNotCompiled, got %v", err)
	}
	if _, err := e.ScopeOf("missing"); !errors.Is(err, ErrLoad) {
		t.Fatalf("expected ErrLoad for a missing module file, got %v", err)
	}
}

func TestUse_Forms(t *testing.T) {
	v := evalMain(t, `
mod util {
    pub fn one() -> u64 { 1 }
    pub fn two() -> u64 { 2 }
    pub mod deep {
        pub fn three() -> u64 { super::two() + 1 }
    }
}

use util::{one, deep::three as tri, self};

fn main() -> u64 {
    one() + tri() + util::two() + crate::util::deep::three()
}
`)
	if v.U64 != 9 {
		t.Fatalf("expected 9, got %s", v)
	}
}

func TestUse_GlobIsASnapshot(t *testing.T) {
	e := project(t, map[string]string{"main.rs": `
mod m {
    pub fn a() -> u64 { 1 }
}
use m::*;
fn main() -> u64 { a() }
`})
	if v, err := e.Eval("main"); err != nil || v.U64 != 1 {
		t.Fatalf("Eval = %s, %v", v, err)
	}

	scope, err := e.ScopeOf("m")
	if err != nil {
		t.Fatalf("ScopeOf: %v", err)
	}
	late := &ast.FnItem{Name: "late", Body: &ast.BlockExpr{}}
	if err := e.Register(late, scope); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := e.Lookup("late", scope); err != nil {
		t.Fatalf("late should be visible inside m: %v", err)
	}
	if _, _, err := e.Lookup("late", 0); !errors.Is(err, ErrUndefined) {
		t.Fatalf("expected late to stay invisible at the root, got %v", err)
	}
}

func TestUse_SiblingModulesImportEachOther(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want uint64
	}{
		{"forward", `
mod a {
    use super::b::f;
    pub fn g() -> u64 { f() }
}
mod b {
    pub fn f() -> u64 { 7 }
}
fn main() -> u64 { a::g() }
`, 7},
		{"both ways", `
mod a {
    use super::b::f;
    pub fn g() -> u64 { 1 }
    pub fn h() -> u64 { f() + 1 }
}
mod b {
    use super::a::g;
    pub fn f() -> u64 { g() + 10 }
}
fn main() -> u64 { a::h() + b::f() }
`, 23},
		{"nested", `
mod outer {
    pub mod left {
        use crate::outer::right::two;
        pub fn four() -> u64 { two() * 2 }
    }
    pub mod right {
        pub fn two() -> u64 { 2 }
    }
}
fn main() -> u64 { outer::left::four() }
`, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := evalMain(t, tt.src)
			if v.U64 != tt.want {
				t.Fatalf("expected %d, got %s", tt.want, v)
			}
		})
	}
}

func TestModules_BrokenFileStaysUnresolved(t *testing.T) {
	e := project(t, map[string]string{
		"main.rs": `
mod bad;
fn main() -> u64 { bad::f() }
`,
		"bad.rs": `pub fn f() -> u64 { 1 +`,
	})
	for i := 0; i < 2; i++ {
		if _, err := e.Eval("main"); !errors.Is(err, ErrLoad) {
			t.Fatalf("attempt %d: expected ErrLoad, got %v", i+1, err)
		}
	}
	id, _, err := e.Lookup("bad", 0)
	if err != nil {
		t.Fatal(err)
	}
	if e.State(id) != Unresolved {
		t.Fatalf("bad should stay unresolved, is %s", e.State(id))
	}
}

func TestModules_ExternalFiles(t *testing.T) {
	e := project(t, map[string]string{
		"main.rs": `
mod math;
mod geo;
use math::sq;

fn main() -> u64 { sq(7) + geo::area(3, 4) }
`,
		"math.rs":       `pub fn sq(x: u64) -> u64 { x * x }`,
		"geo/mod.rs":    `pub fn area(w: u64, h: u64) -> u64 { w * h }`,
		"unrelated.rs":  `this is not valid`,
		"geo/helper.rs": `fn nothing() {}`,
	})
	v, err := e.Eval("main")
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.U64 != 61 {
		t.Fatalf("expected 61, got %s", v)
	}
	if n := len(e.Sources()); n != 3 {
		t.Fatalf("expected 3 sources read, got %d", n)
	}
}

func TestModules_FunctionsCannotSeePastTheirModule(t *testing.T) {
	e := project(t, map[string]string{"main.rs": `
fn outer() -> u64 { 1 }
mod m {
    pub fn f() -> u64 { outer() }
}
fn main() -> u64 { m::f() }
`})
	if _, err := e.Eval("main"); !errors.Is(err, ErrUndefined) {
		t.Fatalf("expected ErrUndefined, got %v", err)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"undefined function", `fn main() -> u64 { nope() }`, ErrUndefined},
		{"undefined variable", `fn main() -> u64 { y }`, ErrUndefined},
		{"return type", `fn main() -> u64 { true }`, ErrTypeMismatch},
		{"bool arithmetic", `fn main() -> u64 { 1 + true }`, ErrTypeMismatch},
		{"if without else", `fn main() -> u64 { if true { 1 } 2 }`, ErrTypeMismatch},
		{"argument type", `fn f(a: u64) -> u64 { a } fn main() -> u64 { f(false) }`, ErrTypeMismatch},
		{"arity", `fn f(a: u64) -> u64 { a } fn main() -> u64 { f(1, 2) }`, ErrArity},
		{"module called", `mod m {} fn main() -> u64 { m() }`, ErrNotFunction},
		{"function as module", `fn f() {} fn main() { f::g(); }`, ErrNotModule},
		{"super at root", `fn main() -> u64 { super::f() }`, ErrUndefined},
		{"unknown macro", `fn main() { vec!(1); }`, ErrUnsupported},
		{"unknown type", `fn main() -> i32 { 1 }`, ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := project(t, map[string]string{"main.rs": tt.src})
			_, err := e.Eval("main")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			id, _, lerr := e.Lookup("main", 0)
			if lerr != nil {
				t.Fatal(lerr)
			}
			if e.State(id) != Unresolved {
				t.Fatalf("failed main should revert to unresolved, is %s", e.State(id))
			}
		})
	}
}

func TestLoad_UnsupportedItem(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "main.rs"), []byte("struct S;\nfn main() {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := New()
	if err := e.SetProjectRoot(dir); err != nil {
		t.Fatal(err)
	}
	err := e.LoadFile("main.rs")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if !strings.Contains(err.Error(), "struct S") {
		t.Fatalf("error should name the item: %v", err)
	}
}

func TestEval_RuntimeError(t *testing.T) {
	e := project(t, map[string]string{"main.rs": `fn main() -> u64 { 1 / 0 }`})
	if _, err := e.Eval("main"); !errors.Is(err, vm.ErrDivideByZero) {
		t.Fatalf("expected ErrDivideByZero, got %v", err)
	}
}

func TestImage_RunsWithoutCompiler(t *testing.T) {
	e := project(t, map[string]string{"main.rs": `
fn fact(n: u64) -> u64 { if n < 2 { 1 } else { n * fact(n - 1) } }
fn unused() -> u64 { 0 }
fn main() -> u64 { fact(5) }
`})
	img, err := e.Image("main")
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.EntryName != "main" || len(img.Functions) != 2 {
		t.Fatalf("expected main and fact in the image, got %s with %d functions", img.EntryName, len(img.Functions))
	}

	data, err := ir.MarshalImage(img)
	if err != nil {
		t.Fatalf("MarshalImage: %v", err)
	}
	loaded, err := ir.UnmarshalImage(data)
	if err != nil {
		t.Fatalf("UnmarshalImage: %v", err)
	}
	entry, err := loaded.EntryFunction()
	if err != nil {
		t.Fatal(err)
	}
	v, err := vm.New(loaded).Call(entry)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v.U64 != 120 {
		t.Fatalf("expected 120, got %s", v)
	}

	id, _, _ := e.Lookup("unused", 0)
	if e.State(id) != Unresolved {
		t.Fatalf("unused should not be compiled for the image")
	}
}
