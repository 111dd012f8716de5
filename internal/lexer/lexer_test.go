package lexer_test

import (
	"testing"

	"peach/internal/lexer"
	"peach/internal/token"
)

func TestNextToken_BasicProgram(t *testing.T) {
	input := `mod util;
use util::{add, mul as times};

fn main() -> u64 {
    let mut a: u64 = 10;
    a += 2;
    println!(a);
    add(a, 1_000u64)
}
`

	tests := []struct {
		kind token.Kind
		lit  string
	}{
		{token.Mod, "mod"},
		{token.Ident, "util"},
		{token.Semicolon, ";"},

		{token.Use, "use"},
		{token.Ident, "util"},
		{token.ColonColon, "::"},
		{token.LBrace, "{"},
		{token.Ident, "add"},
		{token.Comma, ","},
		{token.Ident, "mul"},
		{token.As, "as"},
		{token.Ident, "times"},
		{token.RBrace, "}"},
		{token.Semicolon, ";"},

		{token.Fn, "fn"},
		{token.Ident, "main"},
		{token.LParen, "("},
		{token.RParen, ")"},
		{token.Arrow, "->"},
		{token.Ident, "u64"},
		{token.LBrace, "{"},

		{token.Let, "let"},
		{token.Mut, "mut"},
		{token.Ident, "a"},
		{token.Colon, ":"},
		{token.Ident, "u64"},
		{token.Assign, "="},
		{token.Int, "10"},
		{token.Semicolon, ";"},

		{token.Ident, "a"},
		{token.PlusAssign, "+="},
		{token.Int, "2"},
		{token.Semicolon, ";"},

		{token.Ident, "println"},
		{token.Bang, "!"},
		{token.LParen, "("},
		{token.Ident, "a"},
		{token.RParen, ")"},
		{token.Semicolon, ";"},

		{token.Ident, "add"},
		{token.LParen, "("},
		{token.Ident, "a"},
		{token.Comma, ","},
		{token.Int, "1_000u64"},
		{token.RParen, ")"},

		{token.RBrace, "}"},
		{token.EOF, ""},
	}

	l := lexer.New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d] - kind wrong. expected=%s, got=%s (lexeme=%q, pos=%+v)",
				i, tt.kind, tok.Kind, tok.Lexeme, tok.Pos)
		}

		if tok.Lexeme != tt.lit {
			t.Fatalf("tests[%d] - lexeme wrong. expected=%q, got=%q",
				i, tt.lit, tok.Lexeme)
		}
	}
	if len(l.Errors()) > 0 {
		t.Fatalf("unexpected lexer errors: %v", l.Errors())
	}
}

func TestIdentifierAtEndOfInput(t *testing.T) {
	l := lexer.New("x + 42")
	want := []string{"x", "+", "42", ""}
	for i, w := range want {
		tok := l.NextToken()
		if tok.Lexeme != w {
			t.Fatalf("token %d: expected %q, got %q", i, w, tok.Lexeme)
		}
	}
}

func TestCommentsAreSkipped(t *testing.T) {
	input := `// line comment
/* block /* nested */ still comment */ fn`
	l := lexer.New(input)
	tok := l.NextToken()
	if tok.Kind != token.Fn {
		t.Fatalf("expected fn, got %s (%q)", tok.Kind, tok.Lexeme)
	}
	if tok.Pos.Line != 2 {
		t.Fatalf("expected line 2, got %d", tok.Pos.Line)
	}
}

func TestUnterminatedBlockComment(t *testing.T) {
	l := lexer.New("fn /* never closed")
	for tok := l.NextToken(); tok.Kind != token.EOF; tok = l.NextToken() {
	}
	if len(l.Errors()) == 0 {
		t.Fatalf("expected lexer error for unterminated comment, got none")
	}
}

func TestIllegalCharacter(t *testing.T) {
	l := lexer.New("let a = 1 @ 2;")
	var sawIllegal bool
	for tok := l.NextToken(); tok.Kind != token.EOF; tok = l.NextToken() {
		if tok.Kind == token.Illegal {
			sawIllegal = true
		}
	}
	if !sawIllegal || len(l.Errors()) != 1 {
		t.Fatalf("expected one illegal token error, got %v", l.Errors())
	}
}

func TestTwoCharOperators(t *testing.T) {
	l := lexer.New(":: -> += -= *= /= <= >= == != < > : -")
	want := []token.Kind{
		token.ColonColon, token.Arrow, token.PlusAssign, token.MinusAssign,
		token.StarAssign, token.SlashAssign, token.LtEq, token.GtEq, token.Eq,
		token.NotEq, token.Lt, token.Gt, token.Colon, token.Minus, token.EOF,
	}
	for i, k := range want {
		tok := l.NextToken()
		if tok.Kind != k {
			t.Fatalf("token %d: expected %s, got %s", i, k, tok.Kind)
		}
	}
}
