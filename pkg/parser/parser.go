// Package parser parses the expression and type strings of IR documents
// into loopir nodes.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/raymyers/loopcc/pkg/lexer"
	"github.com/raymyers/loopcc/pkg/loopir"
)

// Precedence levels, lowest first
const (
	_ int = iota
	LOWEST
	OR      // or ||
	AND     // and &&
	COMPARE // < > <= >= ==
	SUM     // + -
	PRODUCT // * / %
	PREFIX  // -x
)

var precedences = map[lexer.TokenType]int{
	lexer.TokenOrKw:    OR,
	lexer.TokenOr:      OR,
	lexer.TokenAndKw:   AND,
	lexer.TokenAnd:     AND,
	lexer.TokenLt:      COMPARE,
	lexer.TokenGt:      COMPARE,
	lexer.TokenLe:      COMPARE,
	lexer.TokenGe:      COMPARE,
	lexer.TokenEq:      COMPARE,
	lexer.TokenNe:      COMPARE,
	lexer.TokenPlus:    SUM,
	lexer.TokenMinus:   SUM,
	lexer.TokenStar:    PRODUCT,
	lexer.TokenSlash:   PRODUCT,
	lexer.TokenPercent: PRODUCT,
}

var binaryOps = map[lexer.TokenType]loopir.BinaryOp{
	lexer.TokenOrKw:    loopir.Or,
	lexer.TokenOr:      loopir.Or,
	lexer.TokenAndKw:   loopir.And,
	lexer.TokenAnd:     loopir.And,
	lexer.TokenLt:      loopir.Lt,
	lexer.TokenGt:      loopir.Gt,
	lexer.TokenLe:      loopir.Le,
	lexer.TokenGe:      loopir.Ge,
	lexer.TokenEq:      loopir.Eq,
	lexer.TokenPlus:    loopir.Add,
	lexer.TokenMinus:   loopir.Sub,
	lexer.TokenStar:    loopir.Mul,
	lexer.TokenSlash:   loopir.Div,
	lexer.TokenPercent: loopir.Mod,
}

// Parser parses IR expressions and types
type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  lexer.Token
	peekToken lexer.Token

	// FloatType is the element type given to float literals.
	FloatType loopir.BaseType
}

// New creates a new Parser
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l, errors: []string{}, FloatType: loopir.F32}
	// Read two tokens to initialize curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

// Errors returns the list of parsing errors
func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(msg string) {
	p.errors = append(p.errors, fmt.Sprintf("line %d, col %d: %s", p.curToken.Line, p.curToken.Column, msg))
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.nextToken()
	p.addError(fmt.Sprintf("expected %s, got %s", t, p.curToken.Type))
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// ParseExpression parses a whole input as one expression
func (p *Parser) ParseExpression() loopir.Expr {
	e := p.parseExpression(LOWEST)
	if e != nil && !p.peekTokenIs(lexer.TokenEOF) {
		p.nextToken()
		p.addError(fmt.Sprintf("unexpected %s after expression", describe(p.curToken)))
		return nil
	}
	return e
}

// parseExpression is precedence climbing; on return curToken is the last
// token of the expression.
func (p *Parser) parseExpression(precedence int) loopir.Expr {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}
	for !p.peekTokenIs(lexer.TokenEOF) && precedence < p.peekPrecedence() {
		p.nextToken()
		if p.curTokenIs(lexer.TokenNe) {
			p.addError("operator != is not supported")
			return nil
		}
		op := binaryOps[p.curToken.Type]
		prec := precedences[p.curToken.Type]
		p.nextToken()
		right := p.parseExpression(prec)
		if right == nil {
			return nil
		}
		left = loopir.Bin(op, left, right)
	}
	return left
}

func (p *Parser) parsePrefix() loopir.Expr {
	switch p.curToken.Type {
	case lexer.TokenInt:
		v, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid integer %q", p.curToken.Literal))
			return nil
		}
		return loopir.Int(v)
	case lexer.TokenFloat:
		v, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			p.addError(fmt.Sprintf("invalid float %q", p.curToken.Literal))
			return nil
		}
		return loopir.FloatConst{Value: v, Type: p.FloatType}
	case lexer.TokenTrue:
		return loopir.BoolConst{Value: true}
	case lexer.TokenFalse:
		return loopir.BoolConst{Value: false}
	case lexer.TokenMinus:
		p.nextToken()
		arg := p.parseExpression(PREFIX)
		if arg == nil {
			return nil
		}
		switch a := arg.(type) {
		case loopir.IntConst:
			return loopir.Int(-a.Value)
		case loopir.FloatConst:
			return loopir.FloatConst{Value: -a.Value, Type: a.Type}
		}
		return loopir.USub{Arg: arg}
	case lexer.TokenLParen:
		p.nextToken()
		e := p.parseExpression(LOWEST)
		if e == nil || !p.expectPeek(lexer.TokenRParen) {
			return nil
		}
		return e
	case lexer.TokenStride:
		return p.parseStride()
	case lexer.TokenIdent:
		return p.parseAccess()
	}
	p.addError(fmt.Sprintf("unexpected %s", describe(p.curToken)))
	return nil
}

// parseStride parses stride(x, d)
func (p *Parser) parseStride() loopir.Expr {
	if !p.expectPeek(lexer.TokenLParen) || !p.expectPeek(lexer.TokenIdent) {
		return nil
	}
	name := loopir.Sym(p.curToken.Literal)
	if !p.expectPeek(lexer.TokenComma) || !p.expectPeek(lexer.TokenInt) {
		return nil
	}
	dim, err := strconv.Atoi(p.curToken.Literal)
	if err != nil {
		p.addError(fmt.Sprintf("invalid dimension %q", p.curToken.Literal))
		return nil
	}
	if !p.expectPeek(lexer.TokenRParen) {
		return nil
	}
	return loopir.StrideExpr{Name: name, Dim: dim}
}

// parseAccess parses a name optionally followed by an index list. Any
// interval index makes the whole access a window expression.
func (p *Parser) parseAccess() loopir.Expr {
	name := loopir.Sym(p.curToken.Literal)
	if !p.peekTokenIs(lexer.TokenLBracket) {
		return loopir.Var(name)
	}
	p.nextToken()

	var accesses []loopir.Access
	window := false
	for {
		p.nextToken()
		a := p.parseIndex()
		if a == nil {
			return nil
		}
		if _, ok := a.(loopir.Interval); ok {
			window = true
		}
		accesses = append(accesses, a)
		if p.peekTokenIs(lexer.TokenComma) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(lexer.TokenRBracket) {
			return nil
		}
		break
	}

	if window {
		return loopir.WindowExpr{Name: name, Idx: accesses}
	}
	idx := make([]loopir.Expr, len(accesses))
	for i, a := range accesses {
		idx[i] = a.(loopir.Point).Pt
	}
	return loopir.Read{Name: name, Idx: idx}
}

func (p *Parser) parseIndex() loopir.Access {
	lo := p.parseExpression(LOWEST)
	if lo == nil {
		return nil
	}
	if !p.peekTokenIs(lexer.TokenColon) {
		return loopir.Point{Pt: lo}
	}
	p.nextToken()
	p.nextToken()
	hi := p.parseExpression(LOWEST)
	if hi == nil {
		return nil
	}
	return loopir.Interval{Lo: lo, Hi: hi}
}

// ParseType parses "f32", "f32[n, 8]" or the window form "[f32][n, 8]",
// optionally followed by "@MEM". The memory space is returned separately.
func (p *Parser) ParseType() (loopir.Type, string) {
	var t loopir.Type
	if p.curTokenIs(lexer.TokenLBracket) {
		t.Window = true
		if !p.expectPeek(lexer.TokenIdent) {
			return t, ""
		}
		if !p.parseBase(&t) || !p.expectPeek(lexer.TokenRBracket) {
			return t, ""
		}
		if !p.peekTokenIs(lexer.TokenLBracket) {
			p.nextToken()
			p.addError("window type needs a shape")
			return t, ""
		}
	} else {
		// stride is a keyword in expressions but a base type here
		if !p.curTokenIs(lexer.TokenIdent) && !p.curTokenIs(lexer.TokenStride) {
			p.addError(fmt.Sprintf("expected type, got %s", describe(p.curToken)))
			return t, ""
		}
		if !p.parseBase(&t) {
			return t, ""
		}
	}

	if p.peekTokenIs(lexer.TokenLBracket) {
		p.nextToken()
		for {
			p.nextToken()
			d := p.parseExpression(LOWEST)
			if d == nil {
				return t, ""
			}
			t.Shape = append(t.Shape, d)
			if p.peekTokenIs(lexer.TokenComma) {
				p.nextToken()
				continue
			}
			if !p.expectPeek(lexer.TokenRBracket) {
				return t, ""
			}
			break
		}
	}

	mem := ""
	if p.peekTokenIs(lexer.TokenAt) {
		p.nextToken()
		if !p.expectPeek(lexer.TokenIdent) {
			return t, ""
		}
		mem = p.curToken.Literal
	}
	if !p.peekTokenIs(lexer.TokenEOF) {
		p.nextToken()
		p.addError(fmt.Sprintf("unexpected %s after type", describe(p.curToken)))
	}
	return t, mem
}

func (p *Parser) parseBase(t *loopir.Type) bool {
	b, err := loopir.ParseBaseType(p.curToken.Literal)
	if err != nil {
		p.addError(err.Error())
		return false
	}
	t.Base = b
	return true
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.TokenEOF:
		return "end of input"
	case lexer.TokenIdent, lexer.TokenInt, lexer.TokenFloat, lexer.TokenIllegal:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	}
	return fmt.Sprintf("%q", tok.Literal)
}

func parseErr(errs []string) error {
	return errors.New(strings.Join(errs, "; "))
}

// ParseExpr parses src as an expression with f32 float literals.
func ParseExpr(src string) (loopir.Expr, error) {
	return ParseExprAs(src, loopir.F32)
}

// ParseExprAs parses src, typing float literals as ft.
func ParseExprAs(src string, ft loopir.BaseType) (loopir.Expr, error) {
	p := New(lexer.New(src))
	p.FloatType = ft
	e := p.ParseExpression()
	if len(p.Errors()) > 0 {
		return nil, parseErr(p.Errors())
	}
	return e, nil
}

// ParseTypeString parses a type with an optional memory space suffix.
func ParseTypeString(src string) (loopir.Type, string, error) {
	p := New(lexer.New(src))
	t, mem := p.ParseType()
	if len(p.Errors()) > 0 {
		return loopir.Type{}, "", parseErr(p.Errors())
	}
	return t, mem, nil
}
