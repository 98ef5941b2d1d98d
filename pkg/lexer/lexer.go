// Package lexer tokenizes the expression and type strings embedded in IR
// documents, e.g. "8 * io + ii", "x[i, 0:8]" or "f32[n, m] @DRAM".
package lexer

import (
	"strings"
	"unicode/utf8"
)

// operators in match order: two-character forms precede their prefixes
var operators = []struct {
	text string
	typ  TokenType
}{
	{"==", TokenEq},
	{"!=", TokenNe},
	{"<=", TokenLe},
	{">=", TokenGe},
	{"&&", TokenAnd},
	{"||", TokenOr},
	{"+", TokenPlus},
	{"-", TokenMinus},
	{"*", TokenStar},
	{"/", TokenSlash},
	{"%", TokenPercent},
	{"<", TokenLt},
	{">", TokenGt},
	{"(", TokenLParen},
	{")", TokenRParen},
	{"[", TokenLBracket},
	{"]", TokenRBracket},
	{",", TokenComma},
	{":", TokenColon},
	{"@", TokenAt},
}

// Lexer splits IR text into tokens. Lines and columns are 1-based.
type Lexer struct {
	src  string
	off  int
	line int
	col  int
}

// New creates a new Lexer for the given input
func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

// advance consumes n bytes
func (l *Lexer) advance(n int) {
	for ; n > 0 && l.off < len(l.src); n-- {
		if l.src[l.off] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.off++
	}
}

// NextToken returns the next token; at the end of input it keeps
// returning EOF.
func (l *Lexer) NextToken() Token {
	for l.off < len(l.src) && isSpace(l.src[l.off]) {
		l.advance(1)
	}
	tok := Token{Type: TokenEOF, Line: l.line, Column: l.col}
	if l.off >= len(l.src) {
		return tok
	}

	rest := l.src[l.off:]
	switch c := rest[0]; {
	case isLetter(c):
		tok.Literal = rest[:span(rest, isIdentChar)]
		tok.Type = LookupIdent(tok.Literal)
	case isDigit(c) || (c == '.' && len(rest) > 1 && isDigit(rest[1])):
		n, typ := scanNumber(rest)
		tok.Literal, tok.Type = rest[:n], typ
	default:
		_, size := utf8.DecodeRuneInString(rest)
		tok.Literal, tok.Type = rest[:size], TokenIllegal
		for _, op := range operators {
			if strings.HasPrefix(rest, op.text) {
				tok.Literal, tok.Type = op.text, op.typ
				break
			}
		}
	}
	l.advance(len(tok.Literal))
	return tok
}

// scanNumber measures an integer or a decimal float with optional
// exponent at the start of s. A dangling "e" is not part of the number.
func scanNumber(s string) (int, TokenType) {
	typ := TokenInt
	n := span(s, isDigit)
	if n < len(s) && s[n] == '.' {
		typ = TokenFloat
		n++
		n += span(s[n:], isDigit)
	}
	if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
		exp := n + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		if digits := span(s[exp:], isDigit); digits > 0 {
			return exp + digits, TokenFloat
		}
	}
	return n, typ
}

func span(s string, ok func(byte) bool) int {
	n := 0
	for n < len(s) && ok(s[n]) {
		n++
	}
	return n
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c)
}
