package parser

import (
	"fmt"
	"strconv"
	"strings"

	"peach/internal/ast"
	"peach/internal/lexer"
	"peach/internal/token"
)

// Error carries every positioned message produced while parsing one input.
type Error struct {
	Msgs []string
}

func (e *Error) Error() string {
	return strings.Join(e.Msgs, "; ")
}

// ParseFile parses a whole source file into its top-level items.
func ParseFile(src string) (*ast.File, error) {
	p := New(lexer.New(src))
	f := p.ParseItems()
	if err := p.err(); err != nil {
		return nil, err
	}
	return f, nil
}

// ParseStmt parses exactly one statement; the trailing semicolon is optional.
func ParseStmt(src string) (ast.Stmt, error) {
	p := New(lexer.New(src))
	s := p.ParseStatement()
	if p.cur.Kind != token.EOF {
		p.errorf(p.cur.Pos, "unexpected %s after statement", p.cur.Kind)
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return s, nil
}

// ParseExpr parses exactly one expression.
func ParseExpr(src string) (ast.Expr, error) {
	p := New(lexer.New(src))
	e := p.ParseExpression()
	if p.cur.Kind != token.EOF {
		p.errorf(p.cur.Pos, "unexpected %s after expression", p.cur.Kind)
	}
	if err := p.err(); err != nil {
		return nil, err
	}
	return e, nil
}

type Parser struct {
	l *lexer.Lexer

	cur  token.Token
	peek token.Token

	errors []string
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	// init cur/peek
	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns lexer and parser messages in that order.
func (p *Parser) Errors() []string {
	return append(append([]string(nil), p.l.Errors()...), p.errors...)
}

func (p *Parser) err() error {
	if msgs := p.Errors(); len(msgs) > 0 {
		return &Error{Msgs: msgs}
	}
	return nil
}

func (p *Parser) nextToken() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) errorf(pos token.Position, format string, args ...interface{}) {
	msg := fmt.Sprintf("%d:%d: ", pos.Line, pos.Column) + fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
}

func (p *Parser) expect(kind token.Kind) token.Token {
	if p.cur.Kind != kind {
		p.errorf(p.cur.Pos, "expected %s, got %s (%q)", kind, p.cur.Kind, p.cur.Lexeme)
	}
	tok := p.cur
	p.nextToken()
	return tok
}

// ---------- Items ----------

// ParseItems parses items until EOF.
func (p *Parser) ParseItems() *ast.File {
	f := &ast.File{}
	for p.cur.Kind != token.EOF {
		if it := p.parseItem(); it != nil {
			f.Items = append(f.Items, it)
		}
	}
	return f
}

func isItemStart(k token.Kind) bool {
	switch k {
	case token.Fn, token.Mod, token.Use, token.Pub,
		token.Struct, token.Enum, token.Impl, token.Trait,
		token.Const, token.Static, token.Type:
		return true
	}
	return false
}

func (p *Parser) parseItem() ast.Item {
	isPublic := false
	if p.cur.Kind == token.Pub {
		isPublic = true
		p.nextToken()
	}

	switch p.cur.Kind {
	case token.Fn:
		fn := p.parseFnItem()
		if fn != nil {
			fn.IsPublic = isPublic
			return fn
		}
		return nil
	case token.Mod:
		m := p.parseModItem()
		if m != nil {
			m.IsPublic = isPublic
			return m
		}
		return nil
	case token.Use:
		return p.parseUseItem()
	case token.Struct, token.Enum, token.Impl, token.Trait,
		token.Const, token.Static, token.Type:
		return p.parseUnsupportedItem()
	default:
		p.errorf(p.cur.Pos, "unexpected token at item level: %s (%q)", p.cur.Kind, p.cur.Lexeme)
		p.nextToken()
		return nil
	}
}

func (p *Parser) parseFnItem() *ast.FnItem {
	p.expect(token.Fn)
	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected function name after 'fn'")
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	p.expect(token.LParen)
	var params []*ast.Param
	for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Mut {
			p.nextToken()
		}
		if p.cur.Kind != token.Ident {
			p.errorf(p.cur.Pos, "expected parameter name, got %s", p.cur.Kind)
			break
		}
		pTok := p.cur
		p.nextToken()
		p.expect(token.Colon)
		params = append(params, &ast.Param{
			Name:    pTok.Lexeme,
			NamePos: pTok.Pos,
			Type:    p.parseType(),
		})
		if p.cur.Kind != token.Comma {
			break
		}
		p.nextToken()
	}
	p.expect(token.RParen)

	var ret *ast.TypeRef
	if p.cur.Kind == token.Arrow {
		p.nextToken()
		ret = p.parseType()
	}

	if p.cur.Kind != token.LBrace {
		p.errorf(p.cur.Pos, "expected function body for %q", nameTok.Lexeme)
		return nil
	}
	body := p.parseBlock()

	return &ast.FnItem{
		Name:    nameTok.Lexeme,
		NamePos: nameTok.Pos,
		Params:  params,
		Return:  ret,
		Body:    body,
	}
}

func (p *Parser) parseType() *ast.TypeRef {
	tok := p.cur
	switch tok.Kind {
	case token.Ident:
		p.nextToken()
		return &ast.TypeRef{Name: tok.Lexeme, NamePos: tok.Pos}
	case token.LParen:
		p.nextToken()
		p.expect(token.RParen)
		return &ast.TypeRef{Name: "()", NamePos: tok.Pos}
	default:
		p.errorf(tok.Pos, "expected type, got %s", tok.Kind)
		p.nextToken()
		return &ast.TypeRef{Name: "<invalid>", NamePos: tok.Pos}
	}
}

func (p *Parser) parseModItem() *ast.ModItem {
	p.expect(token.Mod)
	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected module name after 'mod'")
		return nil
	}
	nameTok := p.cur
	p.nextToken()

	m := &ast.ModItem{Name: nameTok.Lexeme, NamePos: nameTok.Pos}
	if p.cur.Kind == token.Semicolon {
		p.nextToken()
		return m
	}

	m.Inline = true
	p.expect(token.LBrace)
	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		if it := p.parseItem(); it != nil {
			m.Items = append(m.Items, it)
		}
	}
	p.expect(token.RBrace)
	return m
}

func (p *Parser) parseUseItem() *ast.UseItem {
	useTok := p.expect(token.Use)
	u := &ast.UseItem{UsePos: useTok.Pos}
	if p.cur.Kind == token.ColonColon {
		u.Leading = true
		p.nextToken()
	}
	u.Tree = p.parseUseTree()
	p.expect(token.Semicolon)
	return u
}

func isPathSegment(k token.Kind) bool {
	return k == token.Ident || k == token.Crate || k == token.Self || k == token.Super
}

func (p *Parser) parseUseTree() ast.UseTree {
	tok := p.cur
	switch {
	case tok.Kind == token.Star:
		p.nextToken()
		return &ast.UseGlob{StarPos: tok.Pos}

	case tok.Kind == token.LBrace:
		p.nextToken()
		g := &ast.UseGroup{LBrace: tok.Pos}
		for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
			g.Items = append(g.Items, p.parseUseTree())
			if p.cur.Kind != token.Comma {
				break
			}
			p.nextToken()
		}
		p.expect(token.RBrace)
		return g

	case isPathSegment(tok.Kind):
		p.nextToken()
		switch p.cur.Kind {
		case token.ColonColon:
			p.nextToken()
			return &ast.UsePath{Name: tok.Lexeme, NamePos: tok.Pos, Tree: p.parseUseTree()}
		case token.As:
			p.nextToken()
			if p.cur.Kind != token.Ident {
				p.errorf(p.cur.Pos, "expected name after 'as'")
				return &ast.UseName{Name: tok.Lexeme, NamePos: tok.Pos}
			}
			rename := p.cur.Lexeme
			p.nextToken()
			return &ast.UseRename{Name: tok.Lexeme, NamePos: tok.Pos, Rename: rename}
		default:
			return &ast.UseName{Name: tok.Lexeme, NamePos: tok.Pos}
		}

	default:
		p.errorf(tok.Pos, "unexpected %s in use declaration", tok.Kind)
		p.nextToken()
		return &ast.UseGroup{LBrace: tok.Pos}
	}
}

// parseUnsupportedItem records the item and skips its tokens: up to a ';'
// at brace depth zero, or the brace that closes its body.
func (p *Parser) parseUnsupportedItem() ast.Item {
	kw := p.cur
	p.nextToken()
	it := &ast.UnsupportedItem{Keyword: kw.Lexeme, KwPos: kw.Pos}
	if p.cur.Kind == token.Ident {
		it.Name = p.cur.Lexeme
	}
	depth := 0
	for p.cur.Kind != token.EOF {
		switch p.cur.Kind {
		case token.LBrace:
			depth++
		case token.RBrace:
			depth--
			if depth == 0 {
				p.nextToken()
				return it
			}
		case token.Semicolon:
			if depth == 0 {
				p.nextToken()
				return it
			}
		}
		p.nextToken()
	}
	return it
}

// ---------- Statements ----------

func (p *Parser) parseBlock() *ast.BlockExpr {
	lbrace := p.expect(token.LBrace)

	block := &ast.BlockExpr{
		LBrace: lbrace.Pos,
	}

	for p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		if p.cur.Kind == token.Semicolon {
			p.nextToken()
			continue
		}
		if stmt := p.parseStmtIn(block); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if block.Tail != nil {
			break
		}
	}

	if p.cur.Kind == token.RBrace {
		block.RBrace = p.cur.Pos
		p.nextToken()
	} else {
		p.errorf(p.cur.Pos, "expected '}' to close block")
	}

	return block
}

// ParseStatement parses one statement where the final semicolon may be
// omitted.
func (p *Parser) ParseStatement() ast.Stmt {
	return p.parseStmtIn(nil)
}

// parseStmtIn parses one statement. When block is non-nil and an expression
// without ';' is directly followed by '}', it becomes block.Tail and nil is
// returned.
func (p *Parser) parseStmtIn(block *ast.BlockExpr) ast.Stmt {
	switch p.cur.Kind {
	case token.Let:
		return p.parseLetStmt()
	case token.While:
		return p.parseWhileStmt()
	case token.Return:
		return p.parseReturnStmt()
	}

	if isItemStart(p.cur.Kind) {
		if it := p.parseItem(); it != nil {
			return &ast.ItemStmt{Item: it}
		}
		return nil
	}

	if p.cur.Kind == token.Ident && (p.peek.Kind == token.Assign || token.IsCompoundAssign(p.peek.Kind)) {
		return p.parseAssignStmt()
	}

	start := p.cur
	expr := p.ParseExpression()
	switch {
	case p.cur.Kind == token.Semicolon:
		p.nextToken()
		return &ast.ExprStmt{Expression: expr}
	case block != nil && p.cur.Kind == token.RBrace:
		block.Tail = expr
		return nil
	case block == nil && p.cur.Kind == token.EOF:
		return &ast.ExprStmt{Expression: expr}
	case isBlockLike(expr):
		return &ast.ExprStmt{Expression: expr}
	default:
		p.errorf(p.cur.Pos, "expected ';' after expression, got %s", p.cur.Kind)
		if p.cur.Kind == start.Kind && p.cur.Pos == start.Pos {
			p.nextToken()
		}
		return &ast.ExprStmt{Expression: expr}
	}
}

func isBlockLike(e ast.Expr) bool {
	switch e.(type) {
	case *ast.IfExpr, *ast.BlockExpr:
		return true
	}
	return false
}

func (p *Parser) optionalSemicolon() {
	if p.cur.Kind == token.Semicolon {
		p.nextToken()
		return
	}
	if p.cur.Kind != token.EOF && p.cur.Kind != token.RBrace {
		p.errorf(p.cur.Pos, "expected ';', got %s", p.cur.Kind)
	}
}

func (p *Parser) parseLetStmt() ast.Stmt {
	letTok := p.cur
	p.nextToken()

	s := &ast.LetStmt{LetPos: letTok.Pos}
	if p.cur.Kind == token.Mut {
		s.Mutable = true
		p.nextToken()
	}
	if p.cur.Kind != token.Ident {
		p.errorf(p.cur.Pos, "expected variable name after 'let'")
		p.nextToken()
		return nil
	}
	s.Name = p.cur.Lexeme
	s.NamePos = p.cur.Pos
	p.nextToken()

	if p.cur.Kind == token.Colon {
		p.nextToken()
		s.Type = p.parseType()
	}
	if p.cur.Kind == token.Assign {
		p.nextToken()
		s.Value = p.ParseExpression()
	}
	p.optionalSemicolon()
	return s
}

func (p *Parser) parseAssignStmt() ast.Stmt {
	nameTok := p.cur
	p.nextToken()
	op := p.cur.Kind
	p.nextToken()
	value := p.ParseExpression()
	p.optionalSemicolon()

	return &ast.AssignStmt{
		Name:    nameTok.Lexeme,
		NamePos: nameTok.Pos,
		Op:      op,
		Value:   value,
	}
}

func (p *Parser) parseReturnStmt() ast.Stmt {
	retTok := p.cur
	p.nextToken()

	var result ast.Expr
	if p.cur.Kind != token.Semicolon && p.cur.Kind != token.RBrace && p.cur.Kind != token.EOF {
		result = p.ParseExpression()
	}
	p.optionalSemicolon()

	return &ast.ReturnStmt{
		ReturnPos: retTok.Pos,
		Result:    result,
	}
}

func (p *Parser) parseWhileStmt() ast.Stmt {
	whileTok := p.cur
	p.nextToken()
	cond := p.ParseExpression()
	body := p.parseBlock()
	if p.cur.Kind == token.Semicolon {
		p.nextToken()
	}

	return &ast.WhileStmt{
		WhilePos: whileTok.Pos,
		Cond:     cond,
		Body:     body,
	}
}

// ---------- Expressions ----------

func (p *Parser) ParseExpression() ast.Expr {
	return p.parseComparison()
}

func isComparison(k token.Kind) bool {
	switch k {
	case token.Lt, token.LtEq, token.Gt, token.GtEq, token.Eq, token.NotEq:
		return true
	}
	return false
}

// Comparisons do not chain.
func (p *Parser) parseComparison() ast.Expr {
	left := p.parseAdditive()
	if isComparison(p.cur.Kind) {
		opTok := p.cur
		p.nextToken()
		right := p.parseAdditive()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
		if isComparison(p.cur.Kind) {
			p.errorf(p.cur.Pos, "comparison operators cannot be chained")
		}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expr {
	left := p.parseMultiplicative()
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus {
		opTok := p.cur
		p.nextToken()
		right := p.parseMultiplicative()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expr {
	left := p.parsePostfix()
	for p.cur.Kind == token.Star || p.cur.Kind == token.Slash {
		opTok := p.cur
		p.nextToken()
		right := p.parsePostfix()
		left = &ast.BinaryExpr{
			OpPos: opTok.Pos,
			Op:    opTok.Kind,
			Left:  left,
			Right: right,
		}
	}
	return left
}

func (p *Parser) parsePostfix() ast.Expr {
	expr := p.parsePrimary()
	path, ok := expr.(*ast.PathExpr)
	if !ok {
		return expr
	}

	switch p.cur.Kind {
	case token.Bang:
		if !path.IsIdent() {
			p.errorf(p.cur.Pos, "macro name must be a single identifier")
		}
		p.nextToken()
		p.expect(token.LParen)
		args, _ := p.parseArgs()
		return &ast.MacroExpr{
			Name:    path.Segments[len(path.Segments)-1],
			NamePos: path.PathPos,
			Args:    args,
		}
	case token.LParen:
		lparen := p.cur
		p.nextToken()
		args, rparen := p.parseArgs()
		return &ast.CallExpr{
			Callee: path,
			LParen: lparen.Pos,
			Args:   args,
			RParen: rparen.Pos,
		}
	}
	return expr
}

// parseArgs parses a comma separated list after '(' up to and including ')'.
func (p *Parser) parseArgs() ([]ast.Expr, token.Token) {
	var args []ast.Expr
	for p.cur.Kind != token.RParen && p.cur.Kind != token.EOF {
		args = append(args, p.ParseExpression())
		if p.cur.Kind != token.Comma {
			break
		}
		p.nextToken()
	}
	rparen := p.expect(token.RParen)
	return args, rparen
}

func (p *Parser) parsePath() *ast.PathExpr {
	path := &ast.PathExpr{PathPos: p.cur.Pos}
	if p.cur.Kind == token.ColonColon {
		path.Leading = true
		p.nextToken()
	}
	for {
		if !isPathSegment(p.cur.Kind) {
			p.errorf(p.cur.Pos, "expected path segment, got %s", p.cur.Kind)
			return path
		}
		path.Segments = append(path.Segments, p.cur.Lexeme)
		p.nextToken()
		if p.cur.Kind != token.ColonColon {
			return path
		}
		p.nextToken()
	}
}

func (p *Parser) parseIf() *ast.IfExpr {
	ifTok := p.cur
	p.nextToken()
	cond := p.ParseExpression()
	then := p.parseBlock()

	var elseExpr ast.Expr
	if p.cur.Kind == token.Else {
		p.nextToken()
		if p.cur.Kind == token.If {
			elseExpr = p.parseIf()
		} else {
			elseExpr = p.parseBlock()
		}
	}

	return &ast.IfExpr{
		IfPos: ifTok.Pos,
		Cond:  cond,
		Then:  then,
		Else:  elseExpr,
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	switch p.cur.Kind {
	case token.Int:
		tok := p.cur
		p.nextToken()
		return &ast.IntLiteral{
			Value:  p.parseIntLexeme(tok),
			LitPos: tok.Pos,
			Raw:    tok.Lexeme,
		}
	case token.True, token.False:
		tok := p.cur
		p.nextToken()
		return &ast.BoolLiteral{
			Value:  tok.Kind == token.True,
			LitPos: tok.Pos,
		}
	case token.LParen:
		tok := p.cur
		p.nextToken()
		if p.cur.Kind == token.RParen {
			p.nextToken()
			return &ast.UnitLiteral{LitPos: tok.Pos}
		}
		expr := p.ParseExpression()
		p.expect(token.RParen)
		return expr
	case token.LBrace:
		return p.parseBlock()
	case token.If:
		return p.parseIf()
	case token.Ident, token.Crate, token.Self, token.Super, token.ColonColon:
		return p.parsePath()
	default:
		tok := p.cur
		p.errorf(tok.Pos, "unexpected token in expression: %s (%q)", tok.Kind, tok.Lexeme)
		p.nextToken()
		return &ast.UnitLiteral{LitPos: tok.Pos}
	}
}

// parseIntLexeme accepts decimal digits with '_' separators and an optional
// u64 suffix.
func (p *Parser) parseIntLexeme(tok token.Token) uint64 {
	raw := strings.ReplaceAll(tok.Lexeme, "_", "")
	digits := strings.TrimSuffix(raw, "u64")
	val, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		p.errorf(tok.Pos, "invalid integer literal %q", tok.Lexeme)
		return 0
	}
	return val
}
