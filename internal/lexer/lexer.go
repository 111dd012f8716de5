package lexer

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"peach/internal/token"
)

type Lexer struct {
	input []rune

	pos int
	at  int // index of ch in input

	ch   rune
	line int
	col  int

	errors []string
}

func New(input string) *Lexer {
	l := &Lexer{
		input: []rune(input),
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

func (l *Lexer) NextToken() token.Token {
	l.skipWhitespaceAndComments()

	pos := token.Position{
		Line:   l.line,
		Column: l.col,
	}

	ch := l.ch

	if ch == 0 {
		return token.Token{
			Kind:   token.EOF,
			Lexeme: "",
			Pos:    pos,
		}
	}

	if isDigit(ch) {
		return token.Token{
			Kind:   token.Int,
			Lexeme: l.readNumber(),
			Pos:    pos,
		}
	}

	if isLetter(ch) {
		lit := l.readIdentifier()
		return token.Token{
			Kind:   token.LookupIdent(lit),
			Lexeme: lit,
			Pos:    pos,
		}
	}

	var kind token.Kind
	var lexeme string

	// two-character operators first
	switch {
	case ch == ':' && l.peekChar() == ':':
		kind, lexeme = token.ColonColon, "::"
	case ch == '-' && l.peekChar() == '>':
		kind, lexeme = token.Arrow, "->"
	case ch == '+' && l.peekChar() == '=':
		kind, lexeme = token.PlusAssign, "+="
	case ch == '-' && l.peekChar() == '=':
		kind, lexeme = token.MinusAssign, "-="
	case ch == '*' && l.peekChar() == '=':
		kind, lexeme = token.StarAssign, "*="
	case ch == '/' && l.peekChar() == '=':
		kind, lexeme = token.SlashAssign, "/="
	case ch == '<' && l.peekChar() == '=':
		kind, lexeme = token.LtEq, "<="
	case ch == '>' && l.peekChar() == '=':
		kind, lexeme = token.GtEq, ">="
	case ch == '=' && l.peekChar() == '=':
		kind, lexeme = token.Eq, "=="
	case ch == '!' && l.peekChar() == '=':
		kind, lexeme = token.NotEq, "!="
	}
	if lexeme != "" {
		l.readChar()
		l.readChar()
		return token.Token{Kind: kind, Lexeme: lexeme, Pos: pos}
	}

	switch ch {
	case ';':
		kind = token.Semicolon
	case ',':
		kind = token.Comma
	case ':':
		kind = token.Colon
	case '(':
		kind = token.LParen
	case ')':
		kind = token.RParen
	case '{':
		kind = token.LBrace
	case '}':
		kind = token.RBrace
	case '+':
		kind = token.Plus
	case '-':
		kind = token.Minus
	case '*':
		kind = token.Star
	case '/':
		kind = token.Slash
	case '<':
		kind = token.Lt
	case '>':
		kind = token.Gt
	case '=':
		kind = token.Assign
	case '!':
		kind = token.Bang
	default:
		kind = token.Illegal
		l.errorf(pos, fmt.Sprintf("unexpected character %q", ch))
	}
	lexeme = string(ch)

	l.readChar()

	return token.Token{
		Kind:   kind,
		Lexeme: lexeme,
		Pos:    pos,
	}
}

// Helpers

func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
		l.at = len(l.input)
		return
	}

	l.ch = l.input[l.pos]
	l.at = l.pos
	l.pos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}

		if l.ch == '/' {
			switch l.peekChar() {
			case '/':
				l.readChar() // '/'
				l.readChar() // second '/'
				for l.ch != '\n' && l.ch != 0 {
					l.readChar()
				}
				continue
			case '*':
				start := token.Position{Line: l.line, Column: l.col}
				l.readChar() // '/'
				l.readChar() // '*'
				depth := 1
				for depth > 0 {
					if l.ch == 0 {
						l.errorf(start, "unterminated block comment")
						return
					}
					if l.ch == '/' && l.peekChar() == '*' {
						l.readChar()
						depth++
					} else if l.ch == '*' && l.peekChar() == '/' {
						l.readChar()
						depth--
					}
					l.readChar()
				}
				continue
			}
		}

		break
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.at
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.at])
}

// readNumber reads digits with optional '_' separators and an optional
// integer suffix such as u64; the suffix stays in the lexeme.
func (l *Lexer) readNumber() string {
	start := l.at
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return string(l.input[start:l.at])
}

func (l *Lexer) errorf(pos token.Position, msg string) {
	l.errors = append(l.errors, formatError(pos, msg))
}

func formatError(pos token.Position, msg string) string {
	return fmt.Sprintf("%d:%d: %s", pos.Line, pos.Column, msg)
}

func (l *Lexer) Errors() []string {
	return l.errors
}

func isLetter(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	if ch > utf8.RuneSelf {
		return false
	}
	return ch >= '0' && ch <= '9'
}
