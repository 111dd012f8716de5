package ir_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"peach/internal/ir"
	"peach/internal/types"
)

func TestVarStackShadowing(t *testing.T) {
	var vs ir.VarStack
	outer := vs.Add("x", types.U64)

	mark := vs.Mark()
	inner := vs.Add("x", types.Bool)
	if got, ok := vs.Find("x"); !ok || got != inner {
		t.Fatalf("expected inner slot %d, got %d (ok=%v)", inner, got, ok)
	}

	vs.Truncate(mark)
	if got, ok := vs.Find("x"); !ok || got != outer {
		t.Fatalf("expected outer slot %d after truncate, got %d (ok=%v)", outer, got, ok)
	}
	if len(vs.Decls) != 2 {
		t.Fatalf("declarations must survive truncation, got %d", len(vs.Decls))
	}
	if _, ok := vs.Find("y"); ok {
		t.Fatalf("expected y to be undeclared")
	}
}

func TestVarStackRestoreResetsTypes(t *testing.T) {
	var vs ir.VarStack
	x := vs.Add("x", types.Unknown)

	snap := vs.Snapshot()
	vs.SetTy(x, types.U64)
	vs.Add("y", types.Bool)
	vs.Restore(snap)

	if got := vs.Ty(x); got != types.Unknown {
		t.Fatalf("expected x to be untyped again, got %s", got)
	}
	if _, ok := vs.Find("y"); ok || len(vs.Decls) != 1 {
		t.Fatalf("expected y to be dropped, have %d declarations", len(vs.Decls))
	}
}

func sampleFunction() *ir.Function {
	// fn count() -> u64 { let mut i = 0; while i < 3 { i += 1; } i }
	return &ir.Function{
		ID:   2,
		Name: "count",
		Ret:  types.U64,
		Vars: []ir.VarDecl{{Name: "i", Ty: types.U64}},
		Code: []ir.Instruction{
			{Op: ir.OpPushInt, Imm: 0},
			{Op: ir.OpVarDecl, A: 0},
			{Op: ir.OpBeginWhile},
			{Op: ir.OpVar, A: 0},
			{Op: ir.OpPushInt, Imm: 3},
			{Op: ir.OpLt},
			{Op: ir.OpWhileCond, A: 6},
			{Op: ir.OpVar, A: 0},
			{Op: ir.OpPushInt, Imm: 1},
			{Op: ir.OpAdd},
			{Op: ir.OpAssign, A: 0},
			{Op: ir.OpEndWhile, A: 8},
			{Op: ir.OpVar, A: 0},
			{Op: ir.OpReturn},
		},
	}
}

func TestImageRoundTrip(t *testing.T) {
	fn := sampleFunction()
	img := ir.NewImage(fn, []*ir.Function{fn}, []ir.Source{{Path: "main.rs", Digest: [32]byte{1, 2, 3}}})
	img.BuildID = "test-build"

	path := filepath.Join(t.TempDir(), "count.pbc")
	if err := ir.WriteImageFile(path, img); err != nil {
		t.Fatalf("write image: %v", err)
	}
	got, err := ir.ReadImageFile(path)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}

	entry, err := got.EntryFunction()
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if entry.Name != "count" || len(entry.Code) != len(fn.Code) {
		t.Fatalf("unexpected entry %s with %d instructions", entry.Name, len(entry.Code))
	}
	for i := range fn.Code {
		if entry.Code[i] != fn.Code[i] {
			t.Fatalf("instruction %d: got %v, want %v", i, entry.Code[i], fn.Code[i])
		}
	}
	if got.BuildID != "test-build" || len(got.Sources) != 1 || got.Sources[0].Digest[2] != 3 {
		t.Fatalf("metadata lost: %+v", got)
	}
}

func TestUnmarshalImageRejectsGarbage(t *testing.T) {
	if _, err := ir.UnmarshalImage([]byte("fn main() {}")); !errors.Is(err, ir.ErrBadImage) {
		t.Fatalf("expected ErrBadImage, got %v", err)
	}
	if ir.IsImage([]byte("PB")) {
		t.Fatalf("short input must not look like an image")
	}
}

func TestDisassembleShowsJumpTargets(t *testing.T) {
	var buf bytes.Buffer
	ir.Disassemble(&buf, sampleFunction())
	out := buf.String()

	for _, want := range []string{
		"fn #2 count() -> u64",
		"WhileCond +6",
		"; -> 0012",
		"EndWhile -8",
		"; -> 0003",
		"; i",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in listing:\n%s", want, out)
		}
	}
}
