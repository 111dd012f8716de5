package ir

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble writes a readable listing of fn to w. Jump targets are shown
// as absolute instruction indices.
func Disassemble(w io.Writer, fn *Function) {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("%s: %s", p.Name, p.Ty)
	}
	fmt.Fprintf(w, "fn #%d %s(%s) -> %s (vars=%d, code=%d)\n",
		fn.ID, fn.Name, strings.Join(params, ", "), fn.Ret, len(fn.Vars), len(fn.Code))

	for slot, v := range fn.Vars {
		fmt.Fprintf(w, "  $%d %s: %s\n", slot, v.Name, v.Ty)
	}
	for ip, in := range fn.Code {
		fmt.Fprintf(w, "  %04d  %-20s", ip, in)
		switch in.Op {
		case OpIf, OpElse, OpWhileCond:
			fmt.Fprintf(w, " ; -> %04d", ip+in.A)
		case OpEndWhile:
			fmt.Fprintf(w, " ; -> %04d", ip-in.A)
		case OpVarDecl, OpVarDeclUninit, OpVar, OpAssign:
			if in.A >= 0 && in.A < len(fn.Vars) {
				fmt.Fprintf(w, " ; %s", fn.Vars[in.A].Name)
			}
		}
		fmt.Fprintln(w)
	}
}

// DisassembleImage lists every function in img, entry first.
func DisassembleImage(w io.Writer, img *Image) error {
	entry, err := img.EntryFunction()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "image v%d entry=%s", img.Version, img.EntryName)
	if img.BuildID != "" {
		fmt.Fprintf(w, " build=%s", img.BuildID)
	}
	fmt.Fprintln(w)
	for _, src := range img.Sources {
		fmt.Fprintf(w, "source %s %x\n", src.Path, src.Digest[:8])
	}
	fmt.Fprintln(w)
	Disassemble(w, entry)
	for _, fn := range img.Functions {
		if fn.ID == entry.ID {
			continue
		}
		fmt.Fprintln(w)
		Disassemble(w, fn)
	}
	return nil
}
