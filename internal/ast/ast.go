package ast

import "peach/internal/token"

// Basic interfaces

type Node interface {
	Pos() token.Position
}

type Item interface {
	Node
	itemNode()
}

type Stmt interface {
	Node
	stmtNode()
}

type Expr interface {
	Node
	exprNode()
}

// UseTree is one of UseName, UsePath, UseGroup, UseGlob or UseRename.
type UseTree interface {
	Node
	useTree()
}

// File is a parsed source file: an ordered list of top-level items.
type File struct {
	Items []Item
}

// ---------- Items ----------

type FnItem struct {
	Name     string
	NamePos  token.Position
	Params   []*Param
	Return   *TypeRef // nil means ()
	Body     *BlockExpr
	IsPublic bool
}

func (f *FnItem) Pos() token.Position { return f.NamePos }
func (f *FnItem) itemNode()           {}

type Param struct {
	Name    string
	NamePos token.Position
	Type    *TypeRef
}

func (p *Param) Pos() token.Position { return p.NamePos }

// ModItem is `mod name;` (Inline false) or `mod name { items }`.
type ModItem struct {
	Name     string
	NamePos  token.Position
	Inline   bool
	Items    []Item
	IsPublic bool
}

func (m *ModItem) Pos() token.Position { return m.NamePos }
func (m *ModItem) itemNode()           {}

type UseItem struct {
	UsePos  token.Position
	Leading bool // `use ::a::b`
	Tree    UseTree
}

func (u *UseItem) Pos() token.Position { return u.UsePos }
func (u *UseItem) itemNode()           {}

// UnsupportedItem is an item the parser recognises but the loader refuses
// (struct, enum, impl, trait, const, static, type).
type UnsupportedItem struct {
	Keyword string
	Name    string
	KwPos   token.Position
}

func (u *UnsupportedItem) Pos() token.Position { return u.KwPos }
func (u *UnsupportedItem) itemNode()           {}

// ---------- Use trees ----------

type UseName struct {
	Name    string
	NamePos token.Position
}

func (u *UseName) Pos() token.Position { return u.NamePos }
func (u *UseName) useTree()            {}

type UsePath struct {
	Name    string
	NamePos token.Position
	Tree    UseTree
}

func (u *UsePath) Pos() token.Position { return u.NamePos }
func (u *UsePath) useTree()            {}

type UseGroup struct {
	LBrace token.Position
	Items  []UseTree
}

func (u *UseGroup) Pos() token.Position { return u.LBrace }
func (u *UseGroup) useTree()            {}

type UseGlob struct {
	StarPos token.Position
}

func (u *UseGlob) Pos() token.Position { return u.StarPos }
func (u *UseGlob) useTree()            {}

type UseRename struct {
	Name    string
	NamePos token.Position
	Rename  string
}

func (u *UseRename) Pos() token.Position { return u.NamePos }
func (u *UseRename) useTree()            {}

// ---------- Types ----------

// TypeRef names a type; "()" is the unit type.
type TypeRef struct {
	Name    string
	NamePos token.Position
}

func (t *TypeRef) Pos() token.Position { return t.NamePos }

// ---------- Statements ----------

type LetStmt struct {
	LetPos  token.Position
	Name    string
	NamePos token.Position
	Mutable bool
	Type    *TypeRef // nil if not annotated
	Value   Expr     // nil for `let x: T;`
}

func (s *LetStmt) Pos() token.Position { return s.LetPos }
func (s *LetStmt) stmtNode()           {}

// AssignStmt is `x = e;` or a compound `x += e;` (Op holds the operator token).
type AssignStmt struct {
	Name    string
	NamePos token.Position
	Op      token.Kind
	Value   Expr
}

func (s *AssignStmt) Pos() token.Position { return s.NamePos }
func (s *AssignStmt) stmtNode()           {}

type ExprStmt struct {
	Expression Expr
}

func (s *ExprStmt) Pos() token.Position { return s.Expression.Pos() }
func (s *ExprStmt) stmtNode()           {}

type WhileStmt struct {
	WhilePos token.Position
	Cond     Expr
	Body     *BlockExpr
}

func (s *WhileStmt) Pos() token.Position { return s.WhilePos }
func (s *WhileStmt) stmtNode()           {}

type ReturnStmt struct {
	ReturnPos token.Position
	Result    Expr // may be nil for `return;`
}

func (s *ReturnStmt) Pos() token.Position { return s.ReturnPos }
func (s *ReturnStmt) stmtNode()           {}

// ItemStmt is an item declared inside a block.
type ItemStmt struct {
	Item Item
}

func (s *ItemStmt) Pos() token.Position { return s.Item.Pos() }
func (s *ItemStmt) stmtNode()           {}

// ---------- Expressions ----------

type IntLiteral struct {
	Value  uint64
	LitPos token.Position
	Raw    string
}

func (e *IntLiteral) Pos() token.Position { return e.LitPos }
func (e *IntLiteral) exprNode()           {}

type BoolLiteral struct {
	Value  bool
	LitPos token.Position
}

func (e *BoolLiteral) Pos() token.Position { return e.LitPos }
func (e *BoolLiteral) exprNode()           {}

type UnitLiteral struct {
	LitPos token.Position
}

func (e *UnitLiteral) Pos() token.Position { return e.LitPos }
func (e *UnitLiteral) exprNode()           {}

// PathExpr is a plain identifier (one segment) or a qualified path a::b::c.
type PathExpr struct {
	Leading  bool
	Segments []string
	PathPos  token.Position
}

func (e *PathExpr) Pos() token.Position { return e.PathPos }
func (e *PathExpr) exprNode()           {}

// IsIdent reports whether the path is a single unqualified name.
func (e *PathExpr) IsIdent() bool { return !e.Leading && len(e.Segments) == 1 }

func (e *PathExpr) String() string {
	s := ""
	if e.Leading {
		s = "::"
	}
	for i, seg := range e.Segments {
		if i > 0 {
			s += "::"
		}
		s += seg
	}
	return s
}

type CallExpr struct {
	Callee *PathExpr
	LParen token.Position
	Args   []Expr
	RParen token.Position
}

func (e *CallExpr) Pos() token.Position { return e.Callee.Pos() }
func (e *CallExpr) exprNode()           {}

// MacroExpr is a macro invocation such as println!(x).
type MacroExpr struct {
	Name    string
	NamePos token.Position
	Args    []Expr
}

func (e *MacroExpr) Pos() token.Position { return e.NamePos }
func (e *MacroExpr) exprNode()           {}

type BinaryExpr struct {
	OpPos token.Position
	Op    token.Kind
	Left  Expr
	Right Expr
}

func (e *BinaryExpr) Pos() token.Position { return e.Left.Pos() }
func (e *BinaryExpr) exprNode()           {}

// BlockExpr is `{ stmts; tail }`; Tail is nil when the block ends with a
// statement.
type BlockExpr struct {
	LBrace token.Position
	Stmts  []Stmt
	Tail   Expr
	RBrace token.Position
}

func (e *BlockExpr) Pos() token.Position { return e.LBrace }
func (e *BlockExpr) exprNode()           {}

type IfExpr struct {
	IfPos token.Position
	Cond  Expr
	Then  *BlockExpr
	Else  Expr // nil, *BlockExpr or *IfExpr
}

func (e *IfExpr) Pos() token.Position { return e.IfPos }
func (e *IfExpr) exprNode()           {}
