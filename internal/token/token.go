package token

import "fmt"

type Kind int

const (
	Illegal Kind = iota
	EOF

	Ident // Identifier
	Int   // Integer

	// Keywords
	Fn
	Mod
	Use
	Pub
	Let
	Mut
	If
	Else
	While
	Return
	As
	True
	False
	Crate
	Self
	Super

	// Item keywords the loader refuses
	Struct
	Enum
	Impl
	Trait
	Const
	Static
	Type

	// Operators
	Assign // =

	Plus  // +
	Minus // -
	Star  // *
	Slash // /

	PlusAssign  // +=
	MinusAssign // -=
	StarAssign  // *=
	SlashAssign // /=

	Lt    // <
	LtEq  // <=
	Gt    // >
	GtEq  // >=
	Eq    // ==
	NotEq // !=
	Bang  // !
	Arrow // ->

	// Symbols
	Comma      // ,
	Semicolon  // ;
	Colon      // :
	ColonColon // ::

	LParen // (
	RParen // )
	LBrace // {
	RBrace // }
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Token struct {
	Kind   Kind
	Lexeme string
	Pos    Position
}

var names = map[Kind]string{
	Illegal:     "Illegal",
	EOF:         "EOF",
	Ident:       "Ident",
	Int:         "Int",
	Fn:          "fn",
	Mod:         "mod",
	Use:         "use",
	Pub:         "pub",
	Let:         "let",
	Mut:         "mut",
	If:          "if",
	Else:        "else",
	While:       "while",
	Return:      "return",
	As:          "as",
	True:        "true",
	False:       "false",
	Crate:       "crate",
	Self:        "self",
	Super:       "super",
	Struct:      "struct",
	Enum:        "enum",
	Impl:        "impl",
	Trait:       "trait",
	Const:       "const",
	Static:      "static",
	Type:        "type",
	Assign:      "'='",
	Plus:        "'+'",
	Minus:       "'-'",
	Star:        "'*'",
	Slash:       "'/'",
	PlusAssign:  "'+='",
	MinusAssign: "'-='",
	StarAssign:  "'*='",
	SlashAssign: "'/='",
	Lt:          "'<'",
	LtEq:        "'<='",
	Gt:          "'>'",
	GtEq:        "'>='",
	Eq:          "'=='",
	NotEq:       "'!='",
	Bang:        "'!'",
	Arrow:       "'->'",
	Comma:       "','",
	Semicolon:   "';'",
	Colon:       "':'",
	ColonColon:  "'::'",
	LParen:      "'('",
	RParen:      "')'",
	LBrace:      "'{'",
	RBrace:      "'}'",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var keywords = map[string]Kind{
	"fn":     Fn,
	"mod":    Mod,
	"use":    Use,
	"pub":    Pub,
	"let":    Let,
	"mut":    Mut,
	"if":     If,
	"else":   Else,
	"while":  While,
	"return": Return,
	"as":     As,
	"true":   True,
	"false":  False,
	"crate":  Crate,
	"self":   Self,
	"super":  Super,
	"struct": Struct,
	"enum":   Enum,
	"impl":   Impl,
	"trait":  Trait,
	"const":  Const,
	"static": Static,
	"type":   Type,
}

func LookupIdent(lit string) Kind {
	if kind, ok := keywords[lit]; ok {
		return kind
	}
	return Ident
}

// IsCompoundAssign reports whether k is one of += -= *= /=.
func IsCompoundAssign(k Kind) bool {
	return k == PlusAssign || k == MinusAssign || k == StarAssign || k == SlashAssign
}

// BinaryOf maps a compound assignment to the arithmetic operator it applies.
func BinaryOf(k Kind) Kind {
	switch k {
	case PlusAssign:
		return Plus
	case MinusAssign:
		return Minus
	case StarAssign:
		return Star
	case SlashAssign:
		return Slash
	}
	return Illegal
}
