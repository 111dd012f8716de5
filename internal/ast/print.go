package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump returns a human-readable representation of the AST.
func Dump(node Node) string {
	var sb strings.Builder
	fprintNode(&sb, node, 0)
	return sb.String()
}

// DumpFile returns a human-readable representation of every item in f.
func DumpFile(f *File) string {
	var sb strings.Builder
	sb.WriteString("File\n")
	for _, it := range f.Items {
		fprintNode(&sb, it, 1)
	}
	return sb.String()
}

func fprintNode(w io.Writer, n Node, indent int) {
	if n == nil {
		return
	}

	ind := strings.Repeat("  ", indent)

	switch n := n.(type) {
	case *FnItem:
		pubStr := ""
		if n.IsPublic {
			pubStr = " pub"
		}
		ret := "()"
		if n.Return != nil {
			ret = n.Return.Name
		}
		fmt.Fprintf(w, "%sFnItem name=%s%s -> %s\n", ind, n.Name, pubStr, ret)
		for _, p := range n.Params {
			fmt.Fprintf(w, "%s  Param %s: %s\n", ind, p.Name, typeName(p.Type))
		}
		fprintNode(w, n.Body, indent+1)

	case *ModItem:
		if !n.Inline {
			fmt.Fprintf(w, "%sModItem name=%s (external)\n", ind, n.Name)
			return
		}
		fmt.Fprintf(w, "%sModItem name=%s\n", ind, n.Name)
		for _, it := range n.Items {
			fprintNode(w, it, indent+1)
		}

	case *UseItem:
		lead := ""
		if n.Leading {
			lead = " leading"
		}
		fmt.Fprintf(w, "%sUseItem%s\n", ind, lead)
		fprintNode(w, n.Tree, indent+1)

	case *UnsupportedItem:
		fmt.Fprintf(w, "%sUnsupportedItem %s %s\n", ind, n.Keyword, n.Name)

	case *UseName:
		fmt.Fprintf(w, "%sUseName %s\n", ind, n.Name)
	case *UsePath:
		fmt.Fprintf(w, "%sUsePath %s\n", ind, n.Name)
		fprintNode(w, n.Tree, indent+1)
	case *UseGroup:
		fmt.Fprintf(w, "%sUseGroup\n", ind)
		for _, t := range n.Items {
			fprintNode(w, t, indent+1)
		}
	case *UseGlob:
		fmt.Fprintf(w, "%sUseGlob\n", ind)
	case *UseRename:
		fmt.Fprintf(w, "%sUseRename %s as %s\n", ind, n.Name, n.Rename)

	case *BlockExpr:
		fmt.Fprintf(w, "%sBlock\n", ind)
		for _, s := range n.Stmts {
			fprintNode(w, s, indent+1)
		}
		if n.Tail != nil {
			fmt.Fprintf(w, "%s  Tail:\n", ind)
			fprintNode(w, n.Tail, indent+2)
		}

	case *LetStmt:
		mut := ""
		if n.Mutable {
			mut = " mut"
		}
		fmt.Fprintf(w, "%sLet%s %s: %s\n", ind, mut, n.Name, typeName(n.Type))
		fprintNode(w, n.Value, indent+1)

	case *AssignStmt:
		fmt.Fprintf(w, "%sAssign %s %s\n", ind, n.Name, n.Op)
		fprintNode(w, n.Value, indent+1)

	case *ExprStmt:
		fmt.Fprintf(w, "%sExprStmt\n", ind)
		fprintNode(w, n.Expression, indent+1)

	case *WhileStmt:
		fmt.Fprintf(w, "%sWhile\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Body, indent+1)

	case *ReturnStmt:
		fmt.Fprintf(w, "%sReturn\n", ind)
		fprintNode(w, n.Result, indent+1)

	case *ItemStmt:
		fprintNode(w, n.Item, indent)

	case *IntLiteral:
		fmt.Fprintf(w, "%sInt %d\n", ind, n.Value)
	case *BoolLiteral:
		fmt.Fprintf(w, "%sBool %t\n", ind, n.Value)
	case *UnitLiteral:
		fmt.Fprintf(w, "%sUnit\n", ind)
	case *PathExpr:
		fmt.Fprintf(w, "%sPath %s\n", ind, n.String())

	case *CallExpr:
		fmt.Fprintf(w, "%sCall %s\n", ind, n.Callee.String())
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *MacroExpr:
		fmt.Fprintf(w, "%sMacro %s!\n", ind, n.Name)
		for _, a := range n.Args {
			fprintNode(w, a, indent+1)
		}

	case *BinaryExpr:
		fmt.Fprintf(w, "%sBinary %s\n", ind, n.Op)
		fprintNode(w, n.Left, indent+1)
		fprintNode(w, n.Right, indent+1)

	case *IfExpr:
		fmt.Fprintf(w, "%sIf\n", ind)
		fprintNode(w, n.Cond, indent+1)
		fprintNode(w, n.Then, indent+1)
		if n.Else != nil {
			fmt.Fprintf(w, "%s  Else:\n", ind)
			fprintNode(w, n.Else, indent+2)
		}

	default:
		fmt.Fprintf(w, "%s<unknown %T>\n", ind, n)
	}
}

func typeName(t *TypeRef) string {
	if t == nil {
		return "_"
	}
	return t.Name
}
